package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/choudian/document-QA-system/internal/repository"
	"github.com/choudian/document-QA-system/internal/service"
)

// respondError 把业务错误映射到 HTTP 状态码。未识别的错误一律 500，
// 不向客户端泄露内部细节。
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)

	switch {
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrEmptyQuery),
		errors.Is(err, service.ErrUnsupportedFileType):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrFileTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrUnauthorized),
		errors.Is(err, service.ErrTenantDisabled),
		errors.Is(err, service.ErrUserDisabled):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "资源不存在"})
	case errors.Is(err, service.ErrFolderNameTaken),
		errors.Is(err, service.ErrFolderNotEmpty),
		errors.Is(err, service.ErrDocumentProcessing),
		errors.Is(err, service.ErrUsernameTaken),
		errors.Is(err, service.ErrTenantCodeTaken):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "服务器内部错误"})
	}
}

// pagination 读取 page/pageSize 查询参数。
func pagination(c *gin.Context) (int, int) {
	page := queryInt(c, "page", 1)
	pageSize := queryInt(c, "pageSize", 20)
	return page, pageSize
}
