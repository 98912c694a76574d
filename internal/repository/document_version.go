package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/choudian/document-QA-system/internal/models"
)

// DocumentVersionRepository provides data access methods for document
// version chains.
type DocumentVersionRepository struct {
	db *gorm.DB
}

// NewDocumentVersionRepository creates a new DocumentVersionRepository.
func NewDocumentVersionRepository(db *gorm.DB) *DocumentVersionRepository {
	return &DocumentVersionRepository{db: db}
}

func (r *DocumentVersionRepository) Create(ctx context.Context, version *models.DocumentVersion) error {
	return r.db.WithContext(ctx).Create(version).Error
}

// GetByID fetches one version row.
func (r *DocumentVersionRepository) GetByID(ctx context.Context, id string) (*models.DocumentVersion, error) {
	var version models.DocumentVersion
	err := r.db.WithContext(ctx).First(&version, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &version, nil
}

// ListByDocument returns the version rows that describe one document.
func (r *DocumentVersionRepository) ListByDocument(ctx context.Context, documentID string) ([]*models.DocumentVersion, error) {
	var versions []*models.DocumentVersion
	err := r.db.WithContext(ctx).Where("document_id = ?", documentID).
		Order("created_at DESC").Find(&versions).Error
	if err != nil {
		return nil, err
	}
	return versions, nil
}

// ListByChain returns a chain's versions, newest first.
func (r *DocumentVersionRepository) ListByChain(ctx context.Context, chainID string) ([]*models.DocumentVersion, error) {
	var versions []*models.DocumentVersion
	err := r.db.WithContext(ctx).Where("chain_id = ?", chainID).
		Order("created_at DESC").Find(&versions).Error
	if err != nil {
		return nil, err
	}
	return versions, nil
}

// GetCurrent returns the chain's current version.
func (r *DocumentVersionRepository) GetCurrent(ctx context.Context, chainID string) (*models.DocumentVersion, error) {
	var version models.DocumentVersion
	err := r.db.WithContext(ctx).Where("chain_id = ? AND is_current = ?", chainID, true).
		First(&version).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &version, nil
}

// AppendVersion records a new current version for a chain in one
// transaction: the previous current row is demoted first.
func (r *DocumentVersionRepository) AppendVersion(ctx context.Context, version *models.DocumentVersion) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.DocumentVersion{}).
			Where("chain_id = ? AND is_current = ?", version.ChainID, true).
			Update("is_current", false).Error; err != nil {
			return err
		}
		version.IsCurrent = true
		return tx.Create(version).Error
	})
}

// SetCurrent switches the chain's current marker to one existing version.
// Used by version rollback.
func (r *DocumentVersionRepository) SetCurrent(ctx context.Context, chainID, versionID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.DocumentVersion{}).
			Where("id = ? AND chain_id = ?", versionID, chainID).
			Update("is_current", true)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Model(&models.DocumentVersion{}).
			Where("chain_id = ? AND id <> ?", chainID, versionID).
			Update("is_current", false).Error
	})
}

// CountByChain returns how many versions a chain has.
func (r *DocumentVersionRepository) CountByChain(ctx context.Context, chainID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.DocumentVersion{}).
		Where("chain_id = ?", chainID).Count(&count).Error
	return count, err
}
