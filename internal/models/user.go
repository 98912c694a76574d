package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserStatus 定义了用户账户的生命周期状态。
type UserStatus string

const (
	StatusPending     UserStatus = "pending"     // 账号待激活或验证
	StatusActive      UserStatus = "active"      // 账号正常
	StatusSuspended   UserStatus = "suspended"   // 账号被暂停
	StatusDeactivated UserStatus = "deactivated" // 账号已停用
)

// --- RBAC 模型 ---

// Permission 代表一个可以被执行的具体操作权限。
type Permission struct {
	ID          string `gorm:"primaryKey;size:36"`
	Code        string `gorm:"unique;not null;size:255"` // 权限标识，例如 "doc:file:upload", "qa:chat"
	Description string `gorm:"size:1024"`                // 权限的详细描述
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AuthRole 代表一组权限的集合。角色可以是系统级（TenantID 为空）或租户级。
type AuthRole struct {
	ID          string        `gorm:"primaryKey;size:36"`
	TenantID    *string       `gorm:"size:36;index"`            // 为空表示系统级角色
	Name        string        `gorm:"not null;size:255"`        // 角色名称，例如 "Admin", "Member"
	Description string        `gorm:"size:1024"`                // 角色的详细描述
	Permissions []*Permission `gorm:"many2many:role_permissions;"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// User 代表系统中的一个用户账户。
type User struct {
	ID       string `gorm:"primaryKey;size:36"`
	TenantID string `gorm:"size:36;not null;index:idx_tenant_username,unique"`
	Username string `gorm:"not null;size:255;index:idx_tenant_username,unique"`
	FullName string `gorm:"size:255"`
	Email    string `gorm:"size:255;index"`
	Password string `gorm:"size:255" json:"-"` // 存储哈希后的密码，json中忽略

	Status      UserStatus `gorm:"type:varchar(20);default:'active';not null"`
	IsAdmin     bool       `gorm:"default:false"` // 是否为系统管理员
	LastLoginAt *time.Time

	// RBAC 关系: 一个用户可以拥有多个角色
	Roles []*AuthRole `gorm:"many2many:user_roles;"`

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return nil
}

func (p *Permission) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}

func (r *AuthRole) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}

// --- 自定义表名 ---

func (User) TableName() string {
	return "users"
}

func (AuthRole) TableName() string {
	return "roles"
}

func (Permission) TableName() string {
	return "permissions"
}
