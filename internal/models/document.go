package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DocumentStatus tracks a document through the ingestion pipeline.
type DocumentStatus string

const (
	DocStatusUploaded        DocumentStatus = "uploaded"
	DocStatusParsing         DocumentStatus = "parsing"
	DocStatusParseFailed     DocumentStatus = "parse_failed"
	DocStatusParsed          DocumentStatus = "parsed"
	DocStatusVectorizing     DocumentStatus = "vectorizing"
	DocStatusVectorizeFailed DocumentStatus = "vectorize_failed"
	DocStatusCompleted       DocumentStatus = "completed"
)

// IsProcessing reports whether the status indicates in-flight pipeline work.
func (s DocumentStatus) IsProcessing() bool {
	return s == DocStatusParsing || s == DocStatusVectorizing
}

// IsFailed reports whether the status is a failed terminal state.
func (s DocumentStatus) IsFailed() bool {
	return s == DocStatusParseFailed || s == DocStatusVectorizeFailed
}

// Document is an uploaded file plus its parse/vectorize lifecycle state.
// (TenantID, UserID, FolderID, Name) identifies a version chain; the
// uniqueness is advisory, not enforced by a constraint.
type Document struct {
	ID       string  `gorm:"primaryKey;size:36"`
	TenantID string  `gorm:"size:36;not null;index:idx_document_tenant_user"`
	UserID   string  `gorm:"size:36;not null;index:idx_document_tenant_user"`
	FolderID *string `gorm:"size:36;index"` // nil means the root folder

	Name         string `gorm:"size:255;not null"`
	OriginalName string `gorm:"size:255;not null"`
	FileType     string `gorm:"size:20;not null"`  // txt/md/pdf/word
	MimeType     string `gorm:"size:100;not null"`
	FileSize     int64  `gorm:"not null"`
	FileHash     string `gorm:"size:64;not null;index"` // SHA-256, enables storage reuse
	StoragePath  string `gorm:"size:1000;not null"`
	MarkdownPath *string `gorm:"size:1000"` // nil until parsed

	Version string         `gorm:"size:20;not null;default:'V1'"` // "V1", "V2", ...
	Status  DocumentStatus `gorm:"type:varchar(20);not null;default:'uploaded';index"`

	Title     *string `gorm:"size:500"`
	Summary   *string `gorm:"type:text"`
	PageCount *int

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (d *Document) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	return nil
}

// IsOwnedBy reports whether the document belongs to the given user.
func (d *Document) IsOwnedBy(userID string) bool {
	return d.UserID == userID
}

// CanBeDeleted reports whether the document may be soft-deleted right now.
func (d *Document) CanBeDeleted() bool {
	return !d.Status.IsProcessing()
}

// FolderIDOrRoot returns the folder id, or "root" for folderless documents.
// This is the value stored in vector metadata.
func (d *Document) FolderIDOrRoot() string {
	if d.FolderID == nil || *d.FolderID == "" {
		return "root"
	}
	return *d.FolderID
}

func (Document) TableName() string {
	return "documents"
}
