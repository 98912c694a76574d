package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/choudian/document-QA-system/internal/service"
)

// AuthAPI 提供注册、登录与密码管理接口。
type AuthAPI struct {
	auth    *service.AuthService
	tenants *service.TenantService
}

func NewAuthAPI(auth *service.AuthService, tenants *service.TenantService) *AuthAPI {
	return &AuthAPI{auth: auth, tenants: tenants}
}

// RegisterHandler 注册新租户，同时创建其管理员账号。
func (a *AuthAPI) RegisterHandler(c *gin.Context) {
	var payload struct {
		TenantName    string `json:"tenant_name" binding:"required"`
		TenantCode    string `json:"tenant_code" binding:"required"`
		AdminUsername string `json:"admin_username" binding:"required"`
		AdminPassword string `json:"admin_password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数无效"})
		return
	}

	tenant, admin, err := a.tenants.Create(c.Request.Context(), payload.TenantName, payload.TenantCode, payload.AdminUsername, payload.AdminPassword)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"tenant": gin.H{
			"id":   tenant.ID,
			"name": tenant.Name,
			"code": tenant.Code,
		},
		"admin": gin.H{
			"id":       admin.ID,
			"username": admin.Username,
		},
	})
}

// LoginHandler 处理登录请求，返回 JWT 与用户概要。
func (a *AuthAPI) LoginHandler(c *gin.Context) {
	var payload struct {
		TenantCode string `json:"tenant_code" binding:"required"`
		Username   string `json:"username" binding:"required"`
		Password   string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数无效"})
		return
	}

	token, user, err := a.auth.Login(c.Request.Context(), payload.TenantCode, payload.Username, payload.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user": gin.H{
			"id":        user.ID,
			"username":  user.Username,
			"full_name": user.FullName,
			"is_admin":  user.IsAdmin,
		},
	})
}

// ChangePasswordHandler 修改当前用户的密码。
func (a *AuthAPI) ChangePasswordHandler(c *gin.Context) {
	var payload struct {
		OldPassword string `json:"old_password" binding:"required"`
		NewPassword string `json:"new_password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数无效"})
		return
	}

	err := a.auth.ChangePassword(c.Request.Context(), c.GetString(ctxTenantID), c.GetString(ctxUserID), payload.OldPassword, payload.NewPassword)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "密码修改成功"})
}

// queryInt 读取整型查询参数，解析失败时返回默认值。
func queryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
