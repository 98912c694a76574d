package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/choudian/document-QA-system/internal/service"
)

// ConfigAPI 提供分层模型配置的查询与修改。读取接口返回的敏感字段
// 一律是掩码后的值。
type ConfigAPI struct {
	configs *service.ConfigService
}

func NewConfigAPI(configs *service.ConfigService) *ConfigAPI {
	return &ConfigAPI{configs: configs}
}

// EffectiveHandler 返回当前用户视角的生效配置（system < tenant < user 合并）。
func (a *ConfigAPI) EffectiveHandler(c *gin.Context) {
	tenantID := c.GetString(ctxTenantID)
	userID := c.GetString(ctxUserID)
	merged, err := a.configs.GetEffectiveConfig(c.Request.Context(), &tenantID, &userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, merged)
}

// TenantConfigHandler 返回租户层的配置。
func (a *ConfigAPI) TenantConfigHandler(c *gin.Context) {
	tenantID := c.GetString(ctxTenantID)
	items, err := a.configs.ListScopeConfigs(c.Request.Context(), "tenant", &tenantID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// UpdateTenantConfigHandler 修改租户层配置，仅管理员可用。
// 提交空值表示删除该项，回落到系统默认。
func (a *ConfigAPI) UpdateTenantConfigHandler(c *gin.Context) {
	var payload struct {
		Items []service.ConfigItem `json:"items" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数无效"})
		return
	}

	tenantID := c.GetString(ctxTenantID)
	if err := a.configs.UpdateScopeConfigs(c.Request.Context(), "tenant", &tenantID, payload.Items); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "配置已更新"})
}

// UserConfigHandler 返回当前用户层的配置。
func (a *ConfigAPI) UserConfigHandler(c *gin.Context) {
	userID := c.GetString(ctxUserID)
	items, err := a.configs.ListScopeConfigs(c.Request.Context(), "user", &userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// UpdateUserConfigHandler 修改当前用户层的配置。
func (a *ConfigAPI) UpdateUserConfigHandler(c *gin.Context) {
	var payload struct {
		Items []service.ConfigItem `json:"items" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数无效"})
		return
	}

	userID := c.GetString(ctxUserID)
	if err := a.configs.UpdateScopeConfigs(c.Request.Context(), "user", &userID, payload.Items); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "配置已更新"})
}
