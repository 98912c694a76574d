package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Split methods supported by the text splitter.
const (
	SplitByLength    = "length"
	SplitByParagraph = "paragraph"
	SplitByKeyword   = "keyword"
)

// DocumentConfig is the chunking policy for one document (one-to-one).
// ChunkOverlap must be strictly smaller than ChunkSize.
type DocumentConfig struct {
	ID           string  `gorm:"primaryKey;size:36"`
	DocumentID   string  `gorm:"size:36;not null;uniqueIndex"`
	ChunkSize    int     `gorm:"not null;default:400"`
	ChunkOverlap int     `gorm:"not null;default:100"`
	SplitMethod  string  `gorm:"size:20;not null;default:'length'"` // length/paragraph/keyword
	SplitKeyword *string `gorm:"size:100"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (c *DocumentConfig) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}

func (DocumentConfig) TableName() string {
	return "document_configs"
}

// UserRecentConfig remembers the last chunking settings a user supplied
// explicitly, used as the default for their next upload.
type UserRecentConfig struct {
	ID           string  `gorm:"primaryKey;size:36"`
	UserID       string  `gorm:"size:36;not null;uniqueIndex"`
	ChunkSize    int     `gorm:"not null"`
	ChunkOverlap int     `gorm:"not null"`
	SplitMethod  string  `gorm:"size:20;not null"`
	SplitKeyword *string `gorm:"size:100"`
	UpdatedAt    time.Time
}

func (c *UserRecentConfig) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}

func (UserRecentConfig) TableName() string {
	return "user_recent_configs"
}
