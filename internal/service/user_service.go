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

var ErrUsernameTaken = errors.New("用户名已存在")

// UserService 管理租户内的用户、角色与权限分配。
// 所有改变用户角色或角色权限的操作都会使权限缓存失效。
type UserService struct {
	users       *repository.UserRepository
	permissions *PermissionService
	log         *logger.Logger
}

func NewUserService(users *repository.UserRepository, permissions *PermissionService) *UserService {
	return &UserService{
		users:       users,
		permissions: permissions,
		log:         logger.New("user"),
	}
}

// CreateUser 在租户内创建一个用户。
func (s *UserService) CreateUser(ctx context.Context, tenantID, username, fullName, email, password string, isAdmin bool) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("%w: 用户名不能为空", ErrValidation)
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("%w: 密码长度不能少于 8 位", ErrValidation)
	}

	if existing, err := s.users.GetByUsername(ctx, tenantID, username); err == nil && existing != nil {
		return nil, ErrUsernameTaken
	}

	hashed, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		TenantID: tenantID,
		Username: username,
		FullName: fullName,
		Email:    email,
		Password: hashed,
		Status:   models.StatusActive,
		IsAdmin:  isAdmin,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("创建用户失败: %w", err)
	}

	s.log.WithFields(map[string]interface{}{
		"tenant_id": tenantID, "user_id": user.ID,
	}).Info("用户创建成功")
	return user, nil
}

// Get 返回单个用户（包含其角色）。
func (s *UserService) Get(ctx context.Context, tenantID, userID string) (*models.User, error) {
	return s.users.GetByID(ctx, tenantID, userID)
}

// List 分页列出用户，支持按用户名或姓名关键字过滤。
func (s *UserService) List(ctx context.Context, tenantID, keyword string, page, pageSize int) ([]*models.User, int64, error) {
	return s.users.List(ctx, tenantID, keyword, page, pageSize)
}

// Update 修改用户资料与状态。
func (s *UserService) Update(ctx context.Context, tenantID, userID, fullName, email string, status models.UserStatus) (*models.User, error) {
	user, err := s.users.GetByID(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	if fullName != "" {
		user.FullName = fullName
	}
	if email != "" {
		user.Email = email
	}
	if status != "" {
		user.Status = status
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Delete 软删除用户并清理其权限缓存。
func (s *UserService) Delete(ctx context.Context, tenantID, userID string) error {
	if err := s.users.SoftDelete(ctx, tenantID, userID); err != nil {
		return err
	}
	s.permissions.Invalidate(ctx, userID)
	return nil
}

// AssignRoles 重设用户的角色集合。
func (s *UserService) AssignRoles(ctx context.Context, tenantID, userID string, roleIDs []string) error {
	user, err := s.users.GetByID(ctx, tenantID, userID)
	if err != nil {
		return err
	}

	roles := make([]*models.AuthRole, 0, len(roleIDs))
	for _, roleID := range roleIDs {
		role, err := s.users.GetRoleByID(ctx, tenantID, roleID)
		if err != nil {
			return fmt.Errorf("角色不存在: %s", roleID)
		}
		roles = append(roles, role)
	}

	if err := s.users.SetRoles(ctx, user, roles); err != nil {
		return fmt.Errorf("分配角色失败: %w", err)
	}
	s.permissions.Invalidate(ctx, userID)
	return nil
}

// CreateRole 创建一个租户级角色并绑定权限。
func (s *UserService) CreateRole(ctx context.Context, tenantID, name, description string, permissionCodes []string) (*models.AuthRole, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: 角色名称不能为空", ErrValidation)
	}

	role := &models.AuthRole{
		TenantID:    &tenantID,
		Name:        name,
		Description: description,
	}
	if err := s.users.CreateRole(ctx, role); err != nil {
		return nil, fmt.Errorf("创建角色失败: %w", err)
	}
	if len(permissionCodes) > 0 {
		if err := s.setRolePermissionsByCodes(ctx, role, permissionCodes); err != nil {
			return nil, err
		}
	}
	return role, nil
}

// UpdateRole 修改角色及其权限集合，并使所有权限缓存失效。
func (s *UserService) UpdateRole(ctx context.Context, tenantID, roleID, name, description string, permissionCodes []string) (*models.AuthRole, error) {
	role, err := s.users.GetRoleByID(ctx, tenantID, roleID)
	if err != nil {
		return nil, err
	}
	if role.TenantID == nil {
		return nil, fmt.Errorf("%w: 系统级角色不允许修改", ErrValidation)
	}

	if name != "" {
		role.Name = name
	}
	role.Description = description
	if err := s.users.UpdateRole(ctx, role); err != nil {
		return nil, err
	}
	if permissionCodes != nil {
		if err := s.setRolePermissionsByCodes(ctx, role, permissionCodes); err != nil {
			return nil, err
		}
	}
	s.permissions.InvalidateAll(ctx)
	return role, nil
}

// DeleteRole 删除一个租户级角色。
func (s *UserService) DeleteRole(ctx context.Context, tenantID, roleID string) error {
	role, err := s.users.GetRoleByID(ctx, tenantID, roleID)
	if err != nil {
		return err
	}
	if role.TenantID == nil {
		return fmt.Errorf("%w: 系统级角色不允许删除", ErrValidation)
	}
	if err := s.users.DeleteRole(ctx, tenantID, roleID); err != nil {
		return err
	}
	s.permissions.InvalidateAll(ctx)
	return nil
}

// ListRoles 列出租户可见的角色（租户级 + 系统级）。
func (s *UserService) ListRoles(ctx context.Context, tenantID string) ([]*models.AuthRole, error) {
	return s.users.ListRoles(ctx, tenantID)
}

// ListPermissions 列出全部权限定义。
func (s *UserService) ListPermissions(ctx context.Context) ([]*models.Permission, error) {
	return s.users.ListPermissions(ctx)
}

func (s *UserService) setRolePermissionsByCodes(ctx context.Context, role *models.AuthRole, codes []string) error {
	permissions, err := s.users.FindPermissionsByCodes(ctx, codes)
	if err != nil {
		return err
	}
	if len(permissions) != len(codes) {
		return fmt.Errorf("%w: 存在未知的权限标识", ErrValidation)
	}
	if err := s.users.SetRolePermissions(ctx, role, permissions); err != nil {
		return fmt.Errorf("设置角色权限失败: %w", err)
	}
	return nil
}
