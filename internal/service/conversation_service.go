package service

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"github.com/choudian/document-QA-system/internal/models"
	"github.com/choudian/document-QA-system/internal/repository"
	"github.com/choudian/document-QA-system/pkg/logger"
)

// ConversationService 管理会话及其消息历史。
type ConversationService struct {
	conversations *repository.ConversationRepository
	messages      *repository.MessageRepository
	log           *logger.Logger
}

func NewConversationService(conversations *repository.ConversationRepository, messages *repository.MessageRepository) *ConversationService {
	return &ConversationService{
		conversations: conversations,
		messages:      messages,
		log:           logger.New("conversation"),
	}
}

// Create 新建一个会话，可附带会话级检索配置。
func (s *ConversationService) Create(ctx context.Context, tenantID, userID, title string, cfg *models.ConversationConfig) (*models.Conversation, error) {
	conv := &models.Conversation{
		TenantID: tenantID,
		UserID:   userID,
		Title:    title,
		Status:   "active",
	}
	if cfg != nil {
		raw, err := json.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("%w: 会话配置无效", ErrValidation)
		}
		conv.Config = datatypes.JSON(raw)
	}
	if err := s.conversations.Create(ctx, conv); err != nil {
		return nil, fmt.Errorf("创建会话失败: %w", err)
	}
	return conv, nil
}

// Get 返回单个会话。
func (s *ConversationService) Get(ctx context.Context, tenantID, userID, conversationID string) (*models.Conversation, error) {
	return s.conversations.GetByID(ctx, tenantID, userID, conversationID)
}

// List 分页列出会话，按最近活跃排序。
func (s *ConversationService) List(ctx context.Context, tenantID, userID string, page, pageSize int) ([]*models.Conversation, int64, error) {
	return s.conversations.List(ctx, tenantID, userID, page, pageSize)
}

// UpdateConfig 更新会话级检索配置。
func (s *ConversationService) UpdateConfig(ctx context.Context, tenantID, userID, conversationID string, cfg *models.ConversationConfig) (*models.Conversation, error) {
	conv, err := s.conversations.GetByID(ctx, tenantID, userID, conversationID)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: 会话配置无效", ErrValidation)
	}
	conv.Config = datatypes.JSON(raw)
	if err := s.conversations.Update(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// Rename 修改会话标题。
func (s *ConversationService) Rename(ctx context.Context, tenantID, userID, conversationID, title string) error {
	conv, err := s.conversations.GetByID(ctx, tenantID, userID, conversationID)
	if err != nil {
		return err
	}
	conv.Title = title
	return s.conversations.Update(ctx, conv)
}

// Delete 删除会话及其消息。
func (s *ConversationService) Delete(ctx context.Context, tenantID, userID, conversationID string) error {
	if _, err := s.conversations.GetByID(ctx, tenantID, userID, conversationID); err != nil {
		return err
	}
	if err := s.messages.DeleteByConversation(ctx, conversationID); err != nil {
		s.log.WithError(err).WithField("conversation_id", conversationID).Warn("删除会话消息失败")
	}
	return s.conversations.SoftDelete(ctx, tenantID, userID, conversationID)
}

// Messages 分页返回会话内的消息，按序号升序。
func (s *ConversationService) Messages(ctx context.Context, tenantID, userID, conversationID string, page, pageSize int) ([]*models.Message, int64, error) {
	if _, err := s.conversations.GetByID(ctx, tenantID, userID, conversationID); err != nil {
		return nil, 0, err
	}
	return s.messages.ListByConversation(ctx, conversationID, page, pageSize)
}

// ParsedConfig 解析会话的检索配置，未配置时返回零值。
func (s *ConversationService) ParsedConfig(conv *models.Conversation) models.ConversationConfig {
	var cfg models.ConversationConfig
	if len(conv.Config) > 0 {
		if err := json.Unmarshal(conv.Config, &cfg); err != nil {
			s.log.WithError(err).WithField("conversation_id", conv.ID).Warn("会话配置解析失败")
		}
	}
	return cfg
}
