package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Config scopes, from widest to narrowest. The effective configuration is the
// merge of the three scopes with the narrowest scope winning.
const (
	ScopeSystem = "system"
	ScopeTenant = "tenant"
	ScopeUser   = "user"
)

// ConfigEntry is one scoped configuration value, e.g.
// (tenant, <tenant-id>, "embedding", "default") -> {"provider": ..., "api_key": "ENC:..."}.
// Sensitive fields inside Value are stored with an "ENC:" base64 prefix.
type ConfigEntry struct {
	ID       string  `gorm:"primaryKey;size:36"`
	Scope    string  `gorm:"size:20;not null;index:idx_config_scope,unique"`
	ScopeID  *string `gorm:"size:36;index:idx_config_scope,unique"` // nil for system scope
	Category string  `gorm:"size:64;not null;index:idx_config_scope,unique"`
	Key      string  `gorm:"size:64;not null;index:idx_config_scope,unique"`

	Value datatypes.JSON `gorm:"not null"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (c *ConfigEntry) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}

func (ConfigEntry) TableName() string {
	return "configs"
}
