package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/choudian/document-QA-system/internal/models"
)

// FolderRepository provides data access methods for folders.
type FolderRepository struct {
	db *gorm.DB
}

// NewFolderRepository creates a new FolderRepository.
func NewFolderRepository(db *gorm.DB) *FolderRepository {
	return &FolderRepository{db: db}
}

func (r *FolderRepository) Create(ctx context.Context, folder *models.Folder) error {
	return r.db.WithContext(ctx).Create(folder).Error
}

func (r *FolderRepository) GetByID(ctx context.Context, tenantID, id string) (*models.Folder, error) {
	var folder models.Folder
	err := r.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, id).First(&folder).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &folder, nil
}

// ListChildren returns a user's folders directly under one parent (nil for
// top level).
func (r *FolderRepository) ListChildren(ctx context.Context, tenantID, userID string, parentID *string) ([]*models.Folder, error) {
	query := r.db.WithContext(ctx).Where("tenant_id = ? AND user_id = ?", tenantID, userID)
	if parentID == nil || *parentID == "" {
		query = query.Where("parent_id IS NULL")
	} else {
		query = query.Where("parent_id = ?", *parentID)
	}

	var folders []*models.Folder
	if err := query.Order("name ASC").Find(&folders).Error; err != nil {
		return nil, err
	}
	return folders, nil
}

// ListAll returns every folder of a user, for building trees client-side.
func (r *FolderRepository) ListAll(ctx context.Context, tenantID, userID string) ([]*models.Folder, error) {
	var folders []*models.Folder
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ?", tenantID, userID).
		Order("path ASC").Find(&folders).Error
	if err != nil {
		return nil, err
	}
	return folders, nil
}

// FindByName locates a folder by name within one parent scope, to enforce
// sibling-name uniqueness.
func (r *FolderRepository) FindByName(ctx context.Context, tenantID, userID string, parentID *string, name string) (*models.Folder, error) {
	query := r.db.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ? AND name = ?", tenantID, userID, name)
	if parentID == nil || *parentID == "" {
		query = query.Where("parent_id IS NULL")
	} else {
		query = query.Where("parent_id = ?", *parentID)
	}

	var folder models.Folder
	err := query.First(&folder).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &folder, nil
}

func (r *FolderRepository) Update(ctx context.Context, folder *models.Folder) error {
	return r.db.WithContext(ctx).Save(folder).Error
}

// HasChildren reports whether a folder contains sub-folders.
func (r *FolderRepository) HasChildren(ctx context.Context, folderID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Folder{}).
		Where("parent_id = ?", folderID).Count(&count).Error
	return count > 0, err
}

// SoftDelete removes a folder.
func (r *FolderRepository) SoftDelete(ctx context.Context, tenantID, id string) error {
	result := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Delete(&models.Folder{ID: id})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
