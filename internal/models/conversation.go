package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Conversation owns an ordered sequence of messages for one user.
// Config stores the conversation-level retrieval defaults (knowledge base
// ids, top_k, similarity_threshold, use_rerank, rerank_top_n).
type Conversation struct {
	ID       string `gorm:"primaryKey;size:36"`
	TenantID string `gorm:"size:36;not null;index:idx_conversation_tenant_user"`
	UserID   string `gorm:"size:36;not null;index:idx_conversation_tenant_user"`

	Title  string         `gorm:"size:500"` // set from the first question when empty
	Status string         `gorm:"size:20;not null;default:'active'"`
	Config datatypes.JSON // ConversationConfig

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

// ConversationConfig is the stored retrieval configuration of a conversation.
type ConversationConfig struct {
	KnowledgeBaseIDs    []string `json:"knowledge_base_ids,omitempty"`
	TopK                *int     `json:"top_k,omitempty"`
	SimilarityThreshold *float64 `json:"similarity_threshold,omitempty"`
	UseRerank           *bool    `json:"use_rerank,omitempty"`
	RerankTopN          *int     `json:"rerank_top_n,omitempty"`
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}

func (Conversation) TableName() string {
	return "conversations"
}
