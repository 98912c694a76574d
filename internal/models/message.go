package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is one turn in a conversation. Assistant messages carry the
// retrieval references snapshot used to answer, plus token usage counters.
// Sequence orders messages within a conversation and is gap-tolerant.
type Message struct {
	ID             string `gorm:"primaryKey;size:36"`
	ConversationID string `gorm:"size:36;not null;index:idx_message_conv_seq"`
	TenantID       string `gorm:"size:36;not null;index"`
	UserID         string `gorm:"size:36;not null"`

	Role    string `gorm:"size:20;not null"` // user/assistant/system
	Content string `gorm:"type:text;not null"`

	References datatypes.JSON // retrieval result snapshot (assistant messages)

	PromptTokens     *int
	CompletionTokens *int
	TotalTokens      *int

	Sequence int `gorm:"not null;index:idx_message_conv_seq"`

	CreatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}

func (Message) TableName() string {
	return "messages"
}
