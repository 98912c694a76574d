package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/choudian/document-QA-system/internal/models"
)

// ConversationRepository provides data access methods for conversations.
type ConversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository creates a new ConversationRepository.
func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) Create(ctx context.Context, conv *models.Conversation) error {
	return r.db.WithContext(ctx).Create(conv).Error
}

func (r *ConversationRepository) GetByID(ctx context.Context, tenantID, userID, id string) (*models.Conversation, error) {
	var conv models.Conversation
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ? AND id = ?", tenantID, userID, id).
		First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// List returns a page of the user's conversations, most recently updated
// first.
func (r *ConversationRepository) List(ctx context.Context, tenantID, userID string, page, pageSize int) ([]*models.Conversation, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("tenant_id = ? AND user_id = ?", tenantID, userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, pageSize = normalizePage(page, pageSize)
	var convs []*models.Conversation
	err := query.Order("updated_at DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&convs).Error
	if err != nil {
		return nil, 0, err
	}
	return convs, total, nil
}

func (r *ConversationRepository) Update(ctx context.Context, conv *models.Conversation) error {
	return r.db.WithContext(ctx).Save(conv).Error
}

// UpdateTitle sets the conversation title if it is still empty.
func (r *ConversationRepository) UpdateTitle(ctx context.Context, id, title string) error {
	return r.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ? AND (title = '' OR title IS NULL)", id).
		Update("title", title).Error
}

// Touch bumps updated_at so the conversation sorts to the top of the list.
func (r *ConversationRepository) Touch(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ?", id).
		Update("updated_at", gorm.Expr("CURRENT_TIMESTAMP")).Error
}

func (r *ConversationRepository) SoftDelete(ctx context.Context, tenantID, userID, id string) error {
	result := r.db.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ?", tenantID, userID).
		Delete(&models.Conversation{ID: id})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
