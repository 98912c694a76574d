package api

import (
	"bytes"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"github.com/choudian/document-QA-system/internal/models"
	"github.com/choudian/document-QA-system/internal/service"
	"github.com/choudian/document-QA-system/pkg/ratelimiter"
)

// gin 上下文键。
const (
	ctxUserID   = "userID"
	ctxTenantID = "tenantID"
	ctxIsAdmin  = "isAdmin"
)

// AuthMiddleware 校验 Bearer JWT，并把身份信息写入请求上下文。
func AuthMiddleware(auth *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "请求未包含授权标头"})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "授权标头格式不正确"})
			c.Abort()
			return
		}

		claims, err := auth.ParseToken(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "无效的 token"})
			c.Abort()
			return
		}

		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxTenantID, claims.TenantID)
		c.Set(ctxIsAdmin, claims.IsAdmin)
		c.Next()
	}
}

// RequirePermission 校验当前用户是否拥有指定权限码。管理员直接放行。
func RequirePermission(perms *service.PermissionService, code string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetBool(ctxIsAdmin) {
			c.Next()
			return
		}
		ok, err := perms.HasPermission(c.Request.Context(), c.GetString(ctxUserID), code)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "权限校验失败"})
			c.Abort()
			return
		}
		if !ok {
			c.JSON(http.StatusForbidden, gin.H{"error": "没有执行该操作的权限"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAdmin 仅放行租户管理员。
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !c.GetBool(ctxIsAdmin) {
			c.JSON(http.StatusForbidden, gin.H{"error": "仅管理员可执行该操作"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// AuditMiddleware 为变更类请求（非 GET）记录审计轨迹。
// action 从 "方法 路径模板" 推导，例如 "POST /api/v1/documents"。
func AuditMiddleware(audit *service.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		entry := &models.AuditLog{
			Method:     c.Request.Method,
			Path:       c.Request.URL.Path,
			Action:     c.Request.Method + " " + c.FullPath(),
			StatusCode: c.Writer.Status(),
			ClientIP:   c.ClientIP(),
			LatencyMS:  time.Since(start).Milliseconds(),
		}
		if tenantID := c.GetString(ctxTenantID); tenantID != "" {
			entry.TenantID = &tenantID
		}
		if userID := c.GetString(ctxUserID); userID != "" {
			entry.UserID = &userID
		}
		if len(c.Errors) > 0 {
			var buf bytes.Buffer
			buf.WriteString(`{"errors":"`)
			buf.WriteString(strings.ReplaceAll(c.Errors.String(), `"`, `'`))
			buf.WriteString(`"}`)
			entry.Detail = datatypes.JSON(buf.Bytes())
		}

		audit.Record(c.Request.Context(), entry)
	}
}

// RateLimitMiddleware 按登录用户（未登录时按客户端 IP）限流。
func RateLimitMiddleware(limiter *ratelimiter.KeyedLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetString(ctxUserID)
		if key == "" {
			key = c.ClientIP()
		}
		if !limiter.Allow(key) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "请求过于频繁，请稍后再试"})
			c.Abort()
			return
		}
		c.Next()
	}
}
