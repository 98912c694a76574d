package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/choudian/document-QA-system/internal/models"
)

// MessageRepository provides data access methods for conversation messages.
type MessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new MessageRepository.
func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(ctx context.Context, msg *models.Message) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

// NextSequence allocates the next message sequence number within a
// conversation.
func (r *MessageRepository) NextSequence(ctx context.Context, conversationID string) (int, error) {
	var max int
	err := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("conversation_id = ?", conversationID).
		Select("COALESCE(MAX(sequence), 0)").Scan(&max).Error
	if err != nil {
		return 0, err
	}
	return max + 1, nil
}

// ListByConversation returns a page of messages in sequence order.
func (r *MessageRepository) ListByConversation(ctx context.Context, conversationID string, page, pageSize int) ([]*models.Message, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("conversation_id = ?", conversationID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, pageSize = normalizePage(page, pageSize)
	var msgs []*models.Message
	err := query.Order("sequence ASC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&msgs).Error
	if err != nil {
		return nil, 0, err
	}
	return msgs, total, nil
}

// ListRecent returns the newest messages of a conversation in chronological
// order, for building LLM history.
func (r *MessageRepository) ListRecent(ctx context.Context, conversationID string, limit int) ([]*models.Message, error) {
	var msgs []*models.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("sequence DESC").Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	// reverse into chronological order
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// DeleteByConversation soft-deletes all messages of a conversation.
func (r *MessageRepository) DeleteByConversation(ctx context.Context, conversationID string) error {
	return r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Delete(&models.Message{}).Error
}
