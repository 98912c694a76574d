package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
	"golang.org/x/crypto/bcrypt"

	"github.com/choudian/document-QA-system/internal/models"
	"github.com/choudian/document-QA-system/internal/repository"
	"github.com/choudian/document-QA-system/pkg/logger"
)

// 认证相关的业务错误。
var (
	ErrUnauthorized   = errors.New("用户名或密码错误")
	ErrTenantDisabled = errors.New("租户已被暂停")
	ErrUserDisabled   = errors.New("账号不可用")
)

// TokenClaims 是解析 JWT 后得到的身份信息。
type TokenClaims struct {
	UserID   string
	TenantID string
	IsAdmin  bool
}

// AuthService 处理登录、令牌签发与校验、密码修改。
type AuthService struct {
	users     *repository.UserRepository
	tenants   *repository.TenantRepository
	jwtSecret []byte
	tokenTTL  time.Duration
	log       *logger.Logger
}

// NewAuthService 创建一个新的 AuthService 实例。
func NewAuthService(users *repository.UserRepository, tenants *repository.TenantRepository, jwtSecret string, tokenTTL time.Duration) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &AuthService{
		users:     users,
		tenants:   tenants,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
		log:       logger.New("auth"),
	}
}

// Login 校验租户编码 + 用户名 + 密码，成功后返回 JWT 和用户信息。
// 为避免用户枚举，租户不存在、用户不存在、密码错误统一返回 ErrUnauthorized。
func (s *AuthService) Login(ctx context.Context, tenantCode, username, password string) (string, *models.User, error) {
	tenant, err := s.tenants.GetByCode(ctx, tenantCode)
	if err != nil {
		return "", nil, ErrUnauthorized
	}
	if tenant.Status != models.TenantActive {
		return "", nil, ErrTenantDisabled
	}

	user, err := s.users.GetByUsername(ctx, tenant.ID, username)
	if err != nil {
		return "", nil, ErrUnauthorized
	}
	if user.Status != models.StatusActive {
		return "", nil, ErrUserDisabled
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", nil, ErrUnauthorized
	}

	now := time.Now()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.log.WithError(err).WithField("user_id", user.ID).Warn("更新最后登录时间失败")
	}

	token, err := s.generateJWT(user)
	if err != nil {
		return "", nil, err
	}

	s.log.WithFields(map[string]interface{}{
		"tenant_id": tenant.ID, "user_id": user.ID,
	}).Info("用户登录成功")
	return token, user, nil
}

// ChangePassword 校验旧密码后更新为新密码。
func (s *AuthService) ChangePassword(ctx context.Context, tenantID, userID, oldPassword, newPassword string) error {
	user, err := s.users.GetByID(ctx, tenantID, userID)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(oldPassword)); err != nil {
		return ErrUnauthorized
	}
	if len(newPassword) < 8 {
		return fmt.Errorf("%w: 新密码长度不能少于 8 位", ErrValidation)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("密码哈希失败: %w", err)
	}
	user.Password = string(hashed)
	return s.users.Update(ctx, user)
}

// ParseToken 校验并解析 JWT，返回其中的身份信息。
func (s *AuthService) ParseToken(tokenString string) (*TokenClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("不支持的签名算法: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("无效的令牌")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("无效的令牌")
	}

	userID, _ := claims["sub"].(string)
	tenantID, _ := claims["tid"].(string)
	isAdmin, _ := claims["adm"].(bool)
	if userID == "" || tenantID == "" {
		return nil, errors.New("无效的令牌")
	}

	return &TokenClaims{UserID: userID, TenantID: tenantID, IsAdmin: isAdmin}, nil
}

// generateJWT 为指定用户生成一个新的 JWT。
func (s *AuthService) generateJWT(user *models.User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": user.ID,
		"tid": user.TenantID,
		"adm": user.IsAdmin,
		"iss": "document-qa-system",
		"exp": now.Add(s.tokenTTL).Unix(),
		"iat": now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// HashPassword 生成 bcrypt 密码哈希，供用户管理创建账号时使用。
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("密码哈希失败: %w", err)
	}
	return string(hashed), nil
}
