package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/choudian/document-QA-system/internal/repository"
	"github.com/choudian/document-QA-system/pkg/logger"
)

// permissionCacheTTL 控制权限码缓存的有效期。角色或权限变更时会主动失效，
// TTL 只是兜底，避免遗漏失效导致权限长期不刷新。
const permissionCacheTTL = 10 * time.Minute

// PermissionService 提供用户权限查询，带 Redis 缓存层。
// Redis 不可用时自动降级为直接查库。
type PermissionService struct {
	users *repository.UserRepository
	redis *redis.Client
	log   *logger.Logger
}

func NewPermissionService(users *repository.UserRepository, rdb *redis.Client) *PermissionService {
	return &PermissionService{
		users: users,
		redis: rdb,
		log:   logger.New("permission"),
	}
}

// UserPermissions 返回用户通过角色获得的全部权限码。
func (s *PermissionService) UserPermissions(ctx context.Context, userID string) ([]string, error) {
	if codes, ok := s.cacheGet(ctx, userID); ok {
		return codes, nil
	}

	codes, err := s.users.UserPermissionCodes(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("查询用户权限失败: %w", err)
	}

	s.cacheSet(ctx, userID, codes)
	return codes, nil
}

// HasPermission 判断用户是否拥有指定权限码。
func (s *PermissionService) HasPermission(ctx context.Context, userID, code string) (bool, error) {
	codes, err := s.UserPermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, c := range codes {
		if c == code {
			return true, nil
		}
	}
	return false, nil
}

// Invalidate 清除单个用户的权限缓存，在调整用户角色后调用。
func (s *PermissionService) Invalidate(ctx context.Context, userID string) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, s.cacheKey(userID)).Err(); err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("清除权限缓存失败")
	}
}

// InvalidateAll 清除全部权限缓存，在修改角色的权限集合后调用。
func (s *PermissionService) InvalidateAll(ctx context.Context) {
	if s.redis == nil {
		return
	}
	iter := s.redis.Scan(ctx, 0, "perm:user:*", 200).Iterator()
	for iter.Next(ctx) {
		if err := s.redis.Del(ctx, iter.Val()).Err(); err != nil {
			s.log.WithError(err).Warn("清除权限缓存失败")
		}
	}
	if err := iter.Err(); err != nil {
		s.log.WithError(err).Warn("扫描权限缓存失败")
	}
}

func (s *PermissionService) cacheKey(userID string) string {
	return "perm:user:" + userID
}

func (s *PermissionService) cacheGet(ctx context.Context, userID string) ([]string, bool) {
	if s.redis == nil {
		return nil, false
	}
	raw, err := s.redis.Get(ctx, s.cacheKey(userID)).Result()
	if err != nil {
		if err != redis.Nil {
			s.log.WithError(err).Warn("读取权限缓存失败")
		}
		return nil, false
	}
	var codes []string
	if err := json.Unmarshal([]byte(raw), &codes); err != nil {
		return nil, false
	}
	return codes, true
}

func (s *PermissionService) cacheSet(ctx context.Context, userID string, codes []string) {
	if s.redis == nil {
		return
	}
	raw, err := json.Marshal(codes)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, s.cacheKey(userID), raw, permissionCacheTTL).Err(); err != nil {
		s.log.WithError(err).Warn("写入权限缓存失败")
	}
}
