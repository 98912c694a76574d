package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DocumentChunk is one embedded slice of a document's extracted text.
// ChunkIndex is contiguous from 0 for a document's current chunk set, and
// VectorID points into the vector store. Chunks are the join key back from a
// vector hit to document content.
type DocumentChunk struct {
	ID         string  `gorm:"primaryKey;size:36"`
	DocumentID string  `gorm:"size:36;not null;index:idx_chunk_doc_index,unique"`
	ChunkIndex int     `gorm:"not null;index:idx_chunk_doc_index,unique"`
	TenantID   string  `gorm:"size:36;not null;index"`
	UserID     string  `gorm:"size:36;not null"`
	FolderID   *string `gorm:"size:36"`

	Content  string         `gorm:"type:text;not null"`
	VectorID string         `gorm:"size:36;not null;index"`
	Metadata datatypes.JSON // lightweight per-chunk metadata, e.g. {"length": 412}

	CreatedAt time.Time
}

func (c *DocumentChunk) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}

func (DocumentChunk) TableName() string {
	return "document_chunks"
}
