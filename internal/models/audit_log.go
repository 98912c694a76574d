package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditLog records one mutating API request: who did what to which resource.
// Rows are written by the audit middleware; the same event is also published
// to Kafka when a broker is configured.
type AuditLog struct {
	ID       string  `gorm:"primaryKey;size:36"`
	TenantID *string `gorm:"size:36;index"`
	UserID   *string `gorm:"size:36;index"`

	Method     string `gorm:"size:10;not null"`
	Path       string `gorm:"size:500;not null"`
	Action     string `gorm:"size:100"` // e.g. "document.upload"
	StatusCode int    `gorm:"not null"`
	ClientIP   string `gorm:"size:64"`
	LatencyMS  int64
	Detail     datatypes.JSON

	CreatedAt time.Time `gorm:"index"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}

func (AuditLog) TableName() string {
	return "audit_logs"
}
