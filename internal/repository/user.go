package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/choudian/document-QA-system/internal/models"
)

// UserRepository provides data access methods for users, roles and
// permissions.
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// --- users ---

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *UserRepository) GetByID(ctx context.Context, tenantID, id string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Preload("Roles").
		Where("tenant_id = ? AND id = ?", tenantID, id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByUsername finds a user by their login name within one tenant.
func (r *UserRepository) GetByUsername(ctx context.Context, tenantID, username string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Preload("Roles").
		Where("tenant_id = ? AND username = ?", tenantID, username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// List returns a page of a tenant's users.
func (r *UserRepository) List(ctx context.Context, tenantID string, keyword string, page, pageSize int) ([]*models.User, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.User{}).Where("tenant_id = ?", tenantID)
	if keyword != "" {
		query = query.Where("username LIKE ? OR full_name LIKE ?", "%"+keyword+"%", "%"+keyword+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, pageSize = normalizePage(page, pageSize)
	var users []*models.User
	err := query.Preload("Roles").Order("created_at DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&users).Error
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}

// UpdateLastLogin stamps a successful login.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).Update("last_login_at", at).Error
}

func (r *UserRepository) SoftDelete(ctx context.Context, tenantID, id string) error {
	result := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Delete(&models.User{ID: id})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetRoles replaces a user's role assignments.
func (r *UserRepository) SetRoles(ctx context.Context, user *models.User, roles []*models.AuthRole) error {
	return r.db.WithContext(ctx).Model(user).Association("Roles").Replace(roles)
}

// --- roles ---

func (r *UserRepository) CreateRole(ctx context.Context, role *models.AuthRole) error {
	return r.db.WithContext(ctx).Create(role).Error
}

// GetRoleByID loads a role with its permissions. Tenant roles are only
// visible within their tenant; system roles (nil tenant) everywhere.
func (r *UserRepository) GetRoleByID(ctx context.Context, tenantID, id string) (*models.AuthRole, error) {
	var role models.AuthRole
	err := r.db.WithContext(ctx).Preload("Permissions").
		Where("id = ? AND (tenant_id = ? OR tenant_id IS NULL)", id, tenantID).
		First(&role).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &role, nil
}

// ListRoles returns the roles visible to one tenant: its own plus system
// roles.
func (r *UserRepository) ListRoles(ctx context.Context, tenantID string) ([]*models.AuthRole, error) {
	var roles []*models.AuthRole
	err := r.db.WithContext(ctx).Preload("Permissions").
		Where("tenant_id = ? OR tenant_id IS NULL", tenantID).
		Order("name ASC").Find(&roles).Error
	if err != nil {
		return nil, err
	}
	return roles, nil
}

func (r *UserRepository) UpdateRole(ctx context.Context, role *models.AuthRole) error {
	return r.db.WithContext(ctx).Save(role).Error
}

func (r *UserRepository) DeleteRole(ctx context.Context, tenantID, id string) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		Delete(&models.AuthRole{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetRolePermissions replaces a role's permission set.
func (r *UserRepository) SetRolePermissions(ctx context.Context, role *models.AuthRole, permissions []*models.Permission) error {
	return r.db.WithContext(ctx).Model(role).Association("Permissions").Replace(permissions)
}

// --- permissions ---

// ListPermissions returns all registered permissions.
func (r *UserRepository) ListPermissions(ctx context.Context) ([]*models.Permission, error) {
	var permissions []*models.Permission
	if err := r.db.WithContext(ctx).Order("code ASC").Find(&permissions).Error; err != nil {
		return nil, err
	}
	return permissions, nil
}

// FindPermissionsByCodes resolves permission rows from their codes.
func (r *UserRepository) FindPermissionsByCodes(ctx context.Context, codes []string) ([]*models.Permission, error) {
	var permissions []*models.Permission
	if err := r.db.WithContext(ctx).Where("code IN ?", codes).Find(&permissions).Error; err != nil {
		return nil, err
	}
	return permissions, nil
}

// UserPermissionCodes collects the distinct permission codes granted to a
// user through their roles.
func (r *UserRepository) UserPermissionCodes(ctx context.Context, userID string) ([]string, error) {
	var codes []string
	err := r.db.WithContext(ctx).
		Table("permissions").
		Distinct("permissions.code").
		Joins("JOIN role_permissions ON role_permissions.permission_id = permissions.id").
		Joins("JOIN user_roles ON user_roles.auth_role_id = role_permissions.auth_role_id").
		Where("user_roles.user_id = ?", userID).
		Pluck("permissions.code", &codes).Error
	if err != nil {
		return nil, err
	}
	return codes, nil
}
