package service

import (
	"context"
	"time"

	"github.com/choudian/document-QA-system/internal/database/kafka"
	"github.com/choudian/document-QA-system/internal/models"
	"github.com/choudian/document-QA-system/internal/repository"
	"github.com/choudian/document-QA-system/pkg/logger"
)

const auditPublishTimeout = 3 * time.Second

// AuditService 记录变更类请求的审计轨迹：落库一份，配置了 Kafka 时
// 再异步发布一份事件。两者都是尽力而为，不影响业务请求。
type AuditService struct {
	repo      *repository.AuditRepository
	publisher *kafka.AuditPublisher // nil 表示未启用 Kafka
	log       *logger.Logger
}

func NewAuditService(repo *repository.AuditRepository, publisher *kafka.AuditPublisher) *AuditService {
	return &AuditService{
		repo:      repo,
		publisher: publisher,
		log:       logger.New("audit"),
	}
}

// Record 写入一条审计记录并发布事件。
func (s *AuditService) Record(ctx context.Context, entry *models.AuditLog) {
	if err := s.repo.Create(ctx, entry); err != nil {
		s.log.WithError(err).Warn("写入审计记录失败")
	}

	if s.publisher == nil {
		return
	}
	key := ""
	if entry.TenantID != nil {
		key = *entry.TenantID
	}
	go func() {
		pubCtx, cancel := context.WithTimeout(context.Background(), auditPublishTimeout)
		defer cancel()
		if err := s.publisher.Publish(pubCtx, key, entry); err != nil {
			s.log.WithError(err).Warn("发布审计事件失败")
		}
	}()
}

// List 分页查询租户的审计记录。
func (s *AuditService) List(ctx context.Context, tenantID string, page, pageSize int) ([]*models.AuditLog, int64, error) {
	return s.repo.List(ctx, tenantID, page, pageSize)
}
