package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/choudian/document-QA-system/internal/models"
)

// ConfigRepository provides data access methods for scoped configuration
// entries.
type ConfigRepository struct {
	db *gorm.DB
}

// NewConfigRepository creates a new ConfigRepository.
func NewConfigRepository(db *gorm.DB) *ConfigRepository {
	return &ConfigRepository{db: db}
}

// Upsert inserts or replaces the value of one (scope, scope_id, category,
// key) entry.
func (r *ConfigRepository) Upsert(ctx context.Context, entry *models.ConfigEntry) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "scope"}, {Name: "scope_id"}, {Name: "category"}, {Name: "key"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(entry).Error
}

// Get fetches one entry. scopeID is nil for the system scope.
func (r *ConfigRepository) Get(ctx context.Context, scope string, scopeID *string, category, key string) (*models.ConfigEntry, error) {
	query := r.db.WithContext(ctx).Where("scope = ? AND category = ? AND `key` = ?", scope, category, key)
	if scopeID == nil {
		query = query.Where("scope_id IS NULL")
	} else {
		query = query.Where("scope_id = ?", *scopeID)
	}

	var entry models.ConfigEntry
	err := query.First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListScope returns every entry of one scope instance.
func (r *ConfigRepository) ListScope(ctx context.Context, scope string, scopeID *string) ([]*models.ConfigEntry, error) {
	query := r.db.WithContext(ctx).Where("scope = ?", scope)
	if scopeID == nil {
		query = query.Where("scope_id IS NULL")
	} else {
		query = query.Where("scope_id = ?", *scopeID)
	}

	var entries []*models.ConfigEntry
	if err := query.Order("category, `key`").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// Delete removes one entry.
func (r *ConfigRepository) Delete(ctx context.Context, scope string, scopeID *string, category, key string) error {
	query := r.db.WithContext(ctx).Where("scope = ? AND category = ? AND `key` = ?", scope, category, key)
	if scopeID == nil {
		query = query.Where("scope_id IS NULL")
	} else {
		query = query.Where("scope_id = ?", *scopeID)
	}

	result := query.Delete(&models.ConfigEntry{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
