package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/choudian/document-QA-system/internal/models"
	"github.com/choudian/document-QA-system/internal/service"
)

// AdminAPI 提供租户内的用户、角色与审计管理接口。
type AdminAPI struct {
	users   *service.UserService
	tenants *service.TenantService
	audit   *service.AuditService
}

func NewAdminAPI(users *service.UserService, tenants *service.TenantService, audit *service.AuditService) *AdminAPI {
	return &AdminAPI{users: users, tenants: tenants, audit: audit}
}

// CreateUserHandler 创建用户。
func (a *AdminAPI) CreateUserHandler(c *gin.Context) {
	var payload struct {
		Username string `json:"username" binding:"required"`
		FullName string `json:"full_name"`
		Email    string `json:"email"`
		Password string `json:"password" binding:"required"`
		IsAdmin  bool   `json:"is_admin"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数无效"})
		return
	}

	user, err := a.users.CreateUser(c.Request.Context(), c.GetString(ctxTenantID), payload.Username, payload.FullName, payload.Email, payload.Password, payload.IsAdmin)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// ListUsersHandler 分页列出用户。
func (a *AdminAPI) ListUsersHandler(c *gin.Context) {
	page, pageSize := pagination(c)
	users, total, err := a.users.List(c.Request.Context(), c.GetString(ctxTenantID), c.Query("keyword"), page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": users, "total": total})
}

// GetUserHandler 返回单个用户。
func (a *AdminAPI) GetUserHandler(c *gin.Context) {
	user, err := a.users.Get(c.Request.Context(), c.GetString(ctxTenantID), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// UpdateUserHandler 修改用户资料与状态。
func (a *AdminAPI) UpdateUserHandler(c *gin.Context) {
	var payload struct {
		FullName string `json:"full_name"`
		Email    string `json:"email"`
		Status   string `json:"status"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数无效"})
		return
	}

	user, err := a.users.Update(c.Request.Context(), c.GetString(ctxTenantID), c.Param("id"), payload.FullName, payload.Email, models.UserStatus(payload.Status))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// DeleteUserHandler 删除用户。
func (a *AdminAPI) DeleteUserHandler(c *gin.Context) {
	if err := a.users.Delete(c.Request.Context(), c.GetString(ctxTenantID), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "用户已删除"})
}

// AssignRolesHandler 重设用户的角色集合。
func (a *AdminAPI) AssignRolesHandler(c *gin.Context) {
	var payload struct {
		RoleIDs []string `json:"role_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数无效"})
		return
	}

	if err := a.users.AssignRoles(c.Request.Context(), c.GetString(ctxTenantID), c.Param("id"), payload.RoleIDs); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "角色已更新"})
}

// CreateRoleHandler 创建角色。
func (a *AdminAPI) CreateRoleHandler(c *gin.Context) {
	var payload struct {
		Name            string   `json:"name" binding:"required"`
		Description     string   `json:"description"`
		PermissionCodes []string `json:"permission_codes"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数无效"})
		return
	}

	role, err := a.users.CreateRole(c.Request.Context(), c.GetString(ctxTenantID), payload.Name, payload.Description, payload.PermissionCodes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, role)
}

// ListRolesHandler 列出租户可见的角色。
func (a *AdminAPI) ListRolesHandler(c *gin.Context) {
	roles, err := a.users.ListRoles(c.Request.Context(), c.GetString(ctxTenantID))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": roles})
}

// UpdateRoleHandler 修改角色与其权限集合。
func (a *AdminAPI) UpdateRoleHandler(c *gin.Context) {
	var payload struct {
		Name            string   `json:"name"`
		Description     string   `json:"description"`
		PermissionCodes []string `json:"permission_codes"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数无效"})
		return
	}

	role, err := a.users.UpdateRole(c.Request.Context(), c.GetString(ctxTenantID), c.Param("id"), payload.Name, payload.Description, payload.PermissionCodes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, role)
}

// DeleteRoleHandler 删除角色。
func (a *AdminAPI) DeleteRoleHandler(c *gin.Context) {
	if err := a.users.DeleteRole(c.Request.Context(), c.GetString(ctxTenantID), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "角色已删除"})
}

// ListPermissionsHandler 列出全部权限定义。
func (a *AdminAPI) ListPermissionsHandler(c *gin.Context) {
	permissions, err := a.users.ListPermissions(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": permissions})
}

// ListAuditLogsHandler 分页查询租户的审计记录。
func (a *AdminAPI) ListAuditLogsHandler(c *gin.Context) {
	page, pageSize := pagination(c)
	items, total, err := a.audit.List(c.Request.Context(), c.GetString(ctxTenantID), page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total})
}

// GetTenantHandler 返回当前租户信息。
func (a *AdminAPI) GetTenantHandler(c *gin.Context) {
	tenant, err := a.tenants.Get(c.Request.Context(), c.GetString(ctxTenantID))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tenant)
}

// SetTenantStatusHandler 激活或暂停当前租户。暂停后全租户无法登录。
func (a *AdminAPI) SetTenantStatusHandler(c *gin.Context) {
	var payload struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数无效"})
		return
	}

	err := a.tenants.SetStatus(c.Request.Context(), c.GetString(ctxTenantID), models.TenantStatus(payload.Status))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "租户状态已更新"})
}

// DeleteTenantHandler 注销当前租户。
func (a *AdminAPI) DeleteTenantHandler(c *gin.Context) {
	if err := a.tenants.Delete(c.Request.Context(), c.GetString(ctxTenantID)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "租户已注销"})
}

// UpdateTenantHandler 修改当前租户的名称。
func (a *AdminAPI) UpdateTenantHandler(c *gin.Context) {
	var payload struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数无效"})
		return
	}

	tenant, err := a.tenants.Update(c.Request.Context(), c.GetString(ctxTenantID), payload.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tenant)
}
