package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/choudian/document-QA-system/internal/models"
)

// ErrNotFound is returned by all repositories when a row does not exist or
// is not visible to the caller.
var ErrNotFound = errors.New("record not found")

// DocumentFilter narrows List queries. Zero values mean "no filter".
type DocumentFilter struct {
	FolderID *string // nil: all folders; pointer to "": root only
	Status   models.DocumentStatus
	Keyword  string // matches name
	Page     int
	PageSize int
}

// DocumentRepository provides data access methods for documents.
type DocumentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	return r.db.WithContext(ctx).Create(doc).Error
}

// GetByID fetches one live document scoped to a tenant.
func (r *DocumentRepository) GetByID(ctx context.Context, tenantID, id string) (*models.Document, error) {
	var doc models.Document
	err := r.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, id).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// GetByIDIncludingDeleted also finds soft-deleted documents, for restore and
// trash views.
func (r *DocumentRepository) GetByIDIncludingDeleted(ctx context.Context, tenantID, id string) (*models.Document, error) {
	var doc models.Document
	err := r.db.WithContext(ctx).Unscoped().Where("tenant_id = ? AND id = ?", tenantID, id).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *DocumentRepository) Update(ctx context.Context, doc *models.Document) error {
	return r.db.WithContext(ctx).Save(doc).Error
}

// UpdateStatus transitions a document's pipeline status.
func (r *DocumentRepository) UpdateStatus(ctx context.Context, id string, status models.DocumentStatus) error {
	return r.db.WithContext(ctx).Model(&models.Document{}).Where("id = ?", id).
		Update("status", status).Error
}

// UpdateParseResult stores the outcome of a successful parse.
func (r *DocumentRepository) UpdateParseResult(ctx context.Context, id, markdownPath, title, summary string, pageCount int) error {
	updates := map[string]interface{}{
		"markdown_path": markdownPath,
		"title":         title,
		"summary":       summary,
		"status":        models.DocStatusParsed,
	}
	if pageCount > 0 {
		updates["page_count"] = pageCount
	}
	return r.db.WithContext(ctx).Model(&models.Document{}).Where("id = ?", id).
		Updates(updates).Error
}

// List returns a page of a user's live documents plus the total count.
func (r *DocumentRepository) List(ctx context.Context, tenantID, userID string, filter DocumentFilter) ([]*models.Document, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Document{}).
		Where("tenant_id = ? AND user_id = ?", tenantID, userID)

	if filter.FolderID != nil {
		if *filter.FolderID == "" {
			query = query.Where("folder_id IS NULL")
		} else {
			query = query.Where("folder_id = ?", *filter.FolderID)
		}
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Keyword != "" {
		query = query.Where("name LIKE ?", "%"+filter.Keyword+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	var docs []*models.Document
	err := query.Order("created_at DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&docs).Error
	if err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

// FindCurrentByName locates the live document with a given name within one
// (tenant, user, folder) scope. Used to detect re-uploads of the same name.
func (r *DocumentRepository) FindCurrentByName(ctx context.Context, tenantID, userID string, folderID *string, name string) (*models.Document, error) {
	query := r.db.WithContext(ctx).Where("tenant_id = ? AND user_id = ? AND name = ?", tenantID, userID, name)
	if folderID == nil || *folderID == "" {
		query = query.Where("folder_id IS NULL")
	} else {
		query = query.Where("folder_id = ?", *folderID)
	}

	var doc models.Document
	err := query.First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// FindByHash returns any live document of the user with the given content
// hash, for upload deduplication.
func (r *DocumentRepository) FindByHash(ctx context.Context, tenantID, userID, fileHash string) (*models.Document, error) {
	var doc models.Document
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ? AND file_hash = ?", tenantID, userID, fileHash).
		First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// StoragePathShared reports whether any other document row (live or trashed)
// still references the storage path. Physical files are only removed when
// the last referent goes away.
func (r *DocumentRepository) StoragePathShared(ctx context.Context, storagePath, excludeDocumentID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Unscoped().Model(&models.Document{}).
		Where("storage_path = ? AND id <> ?", storagePath, excludeDocumentID).
		Count(&count).Error
	return count > 0, err
}

// SoftDelete moves a document to the trash.
func (r *DocumentRepository) SoftDelete(ctx context.Context, tenantID, id string) error {
	result := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Delete(&models.Document{ID: id})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Restore brings a trashed document back.
func (r *DocumentRepository) Restore(ctx context.Context, tenantID, id string) error {
	result := r.db.WithContext(ctx).Unscoped().Model(&models.Document{}).
		Where("tenant_id = ? AND id = ? AND deleted_at IS NOT NULL", tenantID, id).
		Update("deleted_at", nil)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListTrashed returns the user's soft-deleted documents.
func (r *DocumentRepository) ListTrashed(ctx context.Context, tenantID, userID string, page, pageSize int) ([]*models.Document, int64, error) {
	query := r.db.WithContext(ctx).Unscoped().Model(&models.Document{}).
		Where("tenant_id = ? AND user_id = ? AND deleted_at IS NOT NULL", tenantID, userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, pageSize = normalizePage(page, pageSize)
	var docs []*models.Document
	err := query.Order("deleted_at DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&docs).Error
	if err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

// HardDelete removes a document row permanently.
func (r *DocumentRepository) HardDelete(ctx context.Context, tenantID, id string) error {
	return r.db.WithContext(ctx).Unscoped().
		Where("tenant_id = ?", tenantID).Delete(&models.Document{ID: id}).Error
}

// CountByFolder counts live documents directly inside a folder.
func (r *DocumentRepository) CountByFolder(ctx context.Context, tenantID, userID, folderID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Document{}).
		Where("tenant_id = ? AND user_id = ? AND folder_id = ?", tenantID, userID, folderID).
		Count(&count).Error
	return count, err
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}
