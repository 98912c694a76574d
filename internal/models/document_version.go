package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DocumentVersion is an append-only history row for a document version chain.
// Exactly one row per chain carries IsCurrent=true at any time.
type DocumentVersion struct {
	ID           string  `gorm:"primaryKey;size:36"`
	DocumentID   string  `gorm:"size:36;not null;index"` // the Document row this version describes
	ChainID      string  `gorm:"size:36;not null;index"` // id of the first document in the chain
	Version      string  `gorm:"size:20;not null"`       // "V1", "V2", ...
	FileHash     string  `gorm:"size:64;not null"`
	StoragePath  string  `gorm:"size:1000;not null"`
	MarkdownPath *string `gorm:"size:1000"`
	OperatorID   string  `gorm:"size:36;not null"`
	Remark       string  `gorm:"size:500"`
	IsCurrent    bool    `gorm:"not null;default:false;index"`
	CreatedAt    time.Time
}

func (v *DocumentVersion) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	return nil
}

func (DocumentVersion) TableName() string {
	return "document_versions"
}
