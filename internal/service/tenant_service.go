package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/choudian/document-QA-system/internal/models"
	"github.com/choudian/document-QA-system/internal/repository"
	"github.com/choudian/document-QA-system/pkg/logger"
)

var ErrTenantCodeTaken = errors.New("租户编码已被占用")

// TenantService 管理租户的创建与生命周期。创建租户时同时创建其管理员账号。
type TenantService struct {
	tenants *repository.TenantRepository
	users   *repository.UserRepository
	log     *logger.Logger
}

func NewTenantService(tenants *repository.TenantRepository, users *repository.UserRepository) *TenantService {
	return &TenantService{
		tenants: tenants,
		users:   users,
		log:     logger.New("tenant"),
	}
}

// Create 创建租户及其初始管理员。
func (s *TenantService) Create(ctx context.Context, name, code, adminUsername, adminPassword string) (*models.Tenant, *models.User, error) {
	name = strings.TrimSpace(name)
	code = strings.TrimSpace(code)
	if name == "" || code == "" {
		return nil, nil, fmt.Errorf("%w: 租户名称和编码不能为空", ErrValidation)
	}
	if adminUsername == "" || len(adminPassword) < 8 {
		return nil, nil, fmt.Errorf("%w: 管理员账号无效或密码少于 8 位", ErrValidation)
	}

	if existing, err := s.tenants.GetByCode(ctx, code); err == nil && existing != nil {
		return nil, nil, ErrTenantCodeTaken
	}

	tenant := &models.Tenant{
		Name:   name,
		Code:   code,
		Status: models.TenantActive,
	}
	if err := s.tenants.Create(ctx, tenant); err != nil {
		return nil, nil, fmt.Errorf("创建租户失败: %w", err)
	}

	hashed, err := HashPassword(adminPassword)
	if err != nil {
		return nil, nil, err
	}
	admin := &models.User{
		TenantID: tenant.ID,
		Username: adminUsername,
		FullName: adminUsername,
		Password: hashed,
		Status:   models.StatusActive,
		IsAdmin:  true,
	}
	if err := s.users.Create(ctx, admin); err != nil {
		return nil, nil, fmt.Errorf("创建租户管理员失败: %w", err)
	}

	s.log.WithFields(map[string]interface{}{
		"tenant_id": tenant.ID, "code": code,
	}).Info("租户创建成功")
	return tenant, admin, nil
}

// Get 返回单个租户。
func (s *TenantService) Get(ctx context.Context, tenantID string) (*models.Tenant, error) {
	return s.tenants.GetByID(ctx, tenantID)
}

// Update 修改租户名称。
func (s *TenantService) Update(ctx context.Context, tenantID, name string) (*models.Tenant, error) {
	tenant, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	tenant.Name = strings.TrimSpace(name)
	if tenant.Name == "" {
		return nil, fmt.Errorf("%w: 租户名称不能为空", ErrValidation)
	}
	if err := s.tenants.Update(ctx, tenant); err != nil {
		return nil, err
	}
	return tenant, nil
}

// SetStatus 切换租户状态。暂停的租户下所有用户无法登录。
func (s *TenantService) SetStatus(ctx context.Context, tenantID string, status models.TenantStatus) error {
	if status != models.TenantActive && status != models.TenantSuspended {
		return fmt.Errorf("%w: 无效的租户状态 %s", ErrValidation, status)
	}
	tenant, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return err
	}
	tenant.Status = status
	return s.tenants.Update(ctx, tenant)
}

// Delete 软删除租户。
func (s *TenantService) Delete(ctx context.Context, tenantID string) error {
	s.log.WithField("tenant_id", tenantID).Info("删除租户")
	return s.tenants.SoftDelete(ctx, tenantID)
}
