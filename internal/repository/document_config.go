package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/choudian/document-QA-system/internal/models"
)

// DocumentConfigRepository provides data access methods for per-document
// chunking policies and per-user recent settings.
type DocumentConfigRepository struct {
	db *gorm.DB
}

// NewDocumentConfigRepository creates a new DocumentConfigRepository.
func NewDocumentConfigRepository(db *gorm.DB) *DocumentConfigRepository {
	return &DocumentConfigRepository{db: db}
}

// GetByDocument fetches a document's chunking policy.
func (r *DocumentConfigRepository) GetByDocument(ctx context.Context, documentID string) (*models.DocumentConfig, error) {
	var cfg models.DocumentConfig
	err := r.db.WithContext(ctx).First(&cfg, "document_id = ?", documentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Upsert inserts or replaces a document's chunking policy.
func (r *DocumentConfigRepository) Upsert(ctx context.Context, cfg *models.DocumentConfig) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "document_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"chunk_size", "chunk_overlap", "split_method", "split_keyword", "updated_at",
		}),
	}).Create(cfg).Error
}

// DeleteByDocument drops a document's chunking policy.
func (r *DocumentConfigRepository) DeleteByDocument(ctx context.Context, documentID string) error {
	return r.db.WithContext(ctx).Where("document_id = ?", documentID).
		Delete(&models.DocumentConfig{}).Error
}

// GetUserRecent returns the chunking settings the user supplied last time,
// or ErrNotFound when they never supplied any.
func (r *DocumentConfigRepository) GetUserRecent(ctx context.Context, userID string) (*models.UserRecentConfig, error) {
	var cfg models.UserRecentConfig
	err := r.db.WithContext(ctx).First(&cfg, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SaveUserRecent remembers the user's explicit chunking settings.
func (r *DocumentConfigRepository) SaveUserRecent(ctx context.Context, cfg *models.UserRecentConfig) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"chunk_size", "chunk_overlap", "split_method", "split_keyword", "updated_at",
		}),
	}).Create(cfg).Error
}
