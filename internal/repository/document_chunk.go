package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/choudian/document-QA-system/internal/models"
)

// DocumentChunkRepository provides data access methods for document chunks.
type DocumentChunkRepository struct {
	db *gorm.DB
}

// NewDocumentChunkRepository creates a new DocumentChunkRepository.
func NewDocumentChunkRepository(db *gorm.DB) *DocumentChunkRepository {
	return &DocumentChunkRepository{db: db}
}

// ReplaceForDocument atomically replaces a document's chunk set. Re-running
// vectorization therefore never leaves duplicate or stale chunks behind.
func (r *DocumentChunkRepository) ReplaceForDocument(ctx context.Context, documentID string, chunks []*models.DocumentChunk) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", documentID).Delete(&models.DocumentChunk{}).Error; err != nil {
			return err
		}
		if len(chunks) == 0 {
			return nil
		}
		return tx.CreateInBatches(chunks, 200).Error
	})
}

// ListByDocument returns a document's chunks ordered by chunk index.
func (r *DocumentChunkRepository) ListByDocument(ctx context.Context, documentID string) ([]*models.DocumentChunk, error) {
	var chunks []*models.DocumentChunk
	err := r.db.WithContext(ctx).Where("document_id = ?", documentID).
		Order("chunk_index ASC").Find(&chunks).Error
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

// GetByDocumentAndIndex resolves one chunk, the join key from vector hits
// back to chunk content.
func (r *DocumentChunkRepository) GetByDocumentAndIndex(ctx context.Context, documentID string, chunkIndex int) (*models.DocumentChunk, error) {
	var chunk models.DocumentChunk
	err := r.db.WithContext(ctx).
		Where("document_id = ? AND chunk_index = ?", documentID, chunkIndex).
		First(&chunk).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &chunk, nil
}

// DeleteByDocument removes a document's chunks.
func (r *DocumentChunkRepository) DeleteByDocument(ctx context.Context, documentID string) error {
	return r.db.WithContext(ctx).Where("document_id = ?", documentID).
		Delete(&models.DocumentChunk{}).Error
}

// CountByDocument returns a document's chunk count.
func (r *DocumentChunkRepository) CountByDocument(ctx context.Context, documentID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.DocumentChunk{}).
		Where("document_id = ?", documentID).Count(&count).Error
	return count, err
}
