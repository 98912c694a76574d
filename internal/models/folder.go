package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Folder represents a user-defined folder used to categorize documents.
// Folders are the retrieval scope ("knowledge base") for QA searches.
// The combination of (TenantID, UserID, ParentID, Name) should be unique.
type Folder struct {
	ID       string  `gorm:"primaryKey;size:36"`
	TenantID string  `gorm:"size:36;not null;index:idx_folder_tenant_user"`
	UserID   string  `gorm:"size:36;not null;index:idx_folder_tenant_user"`
	ParentID *string `gorm:"size:36;index"` // nil for top-level folders
	Name     string  `gorm:"size:255;not null"`
	Path     string  `gorm:"size:1000;not null"` // materialized path, e.g. "research/2026"

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (f *Folder) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	return nil
}

func (Folder) TableName() string {
	return "folders"
}
