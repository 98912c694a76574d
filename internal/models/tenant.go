package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TenantStatus 定义了租户的生命周期状态。
type TenantStatus string

const (
	TenantActive    TenantStatus = "active"    // 租户正常
	TenantSuspended TenantStatus = "suspended" // 租户被暂停
)

// Tenant 代表系统中的一个租户，租户拥有用户、文件夹、文档和会话。
type Tenant struct {
	ID        string       `gorm:"primaryKey;size:36"`
	Name      string       `gorm:"size:255;not null;uniqueIndex"`
	Code      string       `gorm:"size:64;not null;uniqueIndex"` // 租户编码，用于登录时定位租户
	Status    TenantStatus `gorm:"type:varchar(20);default:'active';not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (t *Tenant) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	return nil
}

func (Tenant) TableName() string {
	return "tenants"
}
