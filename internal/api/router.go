package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/choudian/document-QA-system/internal/config"
	"github.com/choudian/document-QA-system/internal/service"
	"github.com/choudian/document-QA-system/pkg/ratelimiter"
)

// Handlers 汇集路由需要的全部处理器与中间件依赖。
type Handlers struct {
	Auth        *AuthAPI
	Documents   *DocumentAPI
	Folders     *FolderAPI
	QA          *QAAPI
	Configs     *ConfigAPI
	Admin       *AdminAPI
	AuthService *service.AuthService
	Permissions *service.PermissionService
	Audit       *service.AuditService
}

// NewRouter 构建完整的 HTTP 路由。
func NewRouter(h *Handlers, cfg *config.AppConfig) *gin.Engine {
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	if cfg.RateLimiter.Enabled {
		limiter := ratelimiter.NewKeyedLimiter(cfg.RateLimiter.Rate, cfg.RateLimiter.Capacity)
		v1.Use(RateLimitMiddleware(limiter))
	}

	v1.POST("/auth/register", h.Auth.RegisterHandler)
	v1.POST("/auth/login", h.Auth.LoginHandler)

	authed := v1.Group("")
	authed.Use(AuthMiddleware(h.AuthService), AuditMiddleware(h.Audit))
	{
		authed.POST("/auth/password", h.Auth.ChangePasswordHandler)

		documents := authed.Group("/documents")
		{
			documents.POST("", RequirePermission(h.Permissions, service.PermDocUpload), h.Documents.UploadHandler)
			documents.POST("/check-duplicate", RequirePermission(h.Permissions, service.PermDocUpload), h.Documents.CheckDuplicateHandler)
			documents.GET("", RequirePermission(h.Permissions, service.PermDocRead), h.Documents.ListHandler)
			documents.GET("/trash", RequirePermission(h.Permissions, service.PermDocDelete), h.Documents.TrashHandler)
			documents.GET("/:id", RequirePermission(h.Permissions, service.PermDocRead), h.Documents.GetHandler)
			documents.GET("/:id/download", RequirePermission(h.Permissions, service.PermDocRead), h.Documents.DownloadHandler)
			documents.GET("/:id/markdown", RequirePermission(h.Permissions, service.PermDocRead), h.Documents.MarkdownHandler)
			documents.GET("/:id/versions", RequirePermission(h.Permissions, service.PermDocRead), h.Documents.VersionsHandler)
			documents.DELETE("/:id", RequirePermission(h.Permissions, service.PermDocDelete), h.Documents.DeleteHandler)
			documents.POST("/:id/restore", RequirePermission(h.Permissions, service.PermDocDelete), h.Documents.RestoreHandler)
			documents.DELETE("/:id/purge", RequirePermission(h.Permissions, service.PermDocDelete), h.Documents.PurgeHandler)
			documents.POST("/versions/:versionId/rollback", RequirePermission(h.Permissions, service.PermDocRollback), h.Documents.RollbackHandler)
		}

		folders := authed.Group("/folders")
		{
			folders.GET("", h.Folders.ListHandler)
			folders.GET("/tree", h.Folders.TreeHandler)
			folders.POST("", RequirePermission(h.Permissions, service.PermFolderWrite), h.Folders.CreateHandler)
			folders.PUT("/:id", RequirePermission(h.Permissions, service.PermFolderWrite), h.Folders.RenameHandler)
			folders.DELETE("/:id", RequirePermission(h.Permissions, service.PermFolderWrite), h.Folders.DeleteHandler)
		}

		qa := authed.Group("/qa")
		qa.Use(RequirePermission(h.Permissions, service.PermQAChat))
		{
			qa.POST("/ask", h.QA.AskHandler)
			qa.POST("/ask/stream", h.QA.AskStreamHandler)
		}

		conversations := authed.Group("/conversations")
		{
			conversations.POST("", h.QA.CreateConversationHandler)
			conversations.GET("", h.QA.ListConversationsHandler)
			conversations.GET("/:id", h.QA.GetConversationHandler)
			conversations.PUT("/:id", h.QA.UpdateConversationHandler)
			conversations.DELETE("/:id", h.QA.DeleteConversationHandler)
			conversations.GET("/:id/messages", h.QA.ListMessagesHandler)
		}

		configs := authed.Group("/configs")
		{
			configs.GET("/effective", RequirePermission(h.Permissions, service.PermConfigRead), h.Configs.EffectiveHandler)
			configs.GET("/user", RequirePermission(h.Permissions, service.PermConfigRead), h.Configs.UserConfigHandler)
			configs.PUT("/user", RequirePermission(h.Permissions, service.PermConfigWrite), h.Configs.UpdateUserConfigHandler)
			configs.GET("/tenant", RequireAdmin(), h.Configs.TenantConfigHandler)
			configs.PUT("/tenant", RequireAdmin(), h.Configs.UpdateTenantConfigHandler)
		}

		admin := authed.Group("/admin")
		admin.Use(RequireAdmin())
		{
			admin.POST("/users", h.Admin.CreateUserHandler)
			admin.GET("/users", h.Admin.ListUsersHandler)
			admin.GET("/users/:id", h.Admin.GetUserHandler)
			admin.PUT("/users/:id", h.Admin.UpdateUserHandler)
			admin.DELETE("/users/:id", h.Admin.DeleteUserHandler)
			admin.PUT("/users/:id/roles", h.Admin.AssignRolesHandler)

			admin.POST("/roles", h.Admin.CreateRoleHandler)
			admin.GET("/roles", h.Admin.ListRolesHandler)
			admin.PUT("/roles/:id", h.Admin.UpdateRoleHandler)
			admin.DELETE("/roles/:id", h.Admin.DeleteRoleHandler)

			admin.GET("/permissions", h.Admin.ListPermissionsHandler)
			admin.GET("/audit-logs", h.Admin.ListAuditLogsHandler)
			admin.GET("/tenant", h.Admin.GetTenantHandler)
			admin.PUT("/tenant", h.Admin.UpdateTenantHandler)
			admin.PUT("/tenant/status", h.Admin.SetTenantStatusHandler)
			admin.DELETE("/tenant", h.Admin.DeleteTenantHandler)
		}
	}

	return router
}
