package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TaskStatus is the lifecycle of a background document task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// Task types.
const (
	TaskTypeProcess = "process" // parse + vectorize + supersede-cleanup
)

// DocumentTask is a durable row backing the post-upload pipeline. Rows left
// in pending/running state are re-enqueued at startup, giving at-least-once
// delivery; the stages themselves are idempotent against Document.Status.
type DocumentTask struct {
	ID         string `gorm:"primaryKey;size:36"`
	DocumentID string `gorm:"size:36;not null;index"`
	TenantID   string `gorm:"size:36;not null;index"`
	UserID     string `gorm:"size:36;not null"`

	TaskType  string         `gorm:"size:32;not null"`
	Payload   datatypes.JSON // TaskPayload
	Status    TaskStatus     `gorm:"type:varchar(20);not null;default:'pending';index"`
	Attempts  int            `gorm:"not null;default:0"`
	LastError string         `gorm:"size:2000"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TaskPayload is the JSON body of a process task.
type TaskPayload struct {
	StoragePath     string `json:"storage_path"`
	FileType        string `json:"file_type"`
	PriorDocumentID string `json:"prior_document_id,omitempty"` // superseded version, cleaned up after vectorize
}

func (t *DocumentTask) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	return nil
}

func (DocumentTask) TableName() string {
	return "document_tasks"
}
