package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/choudian/document-QA-system/internal/models"
	"github.com/choudian/document-QA-system/internal/repository"
	"github.com/choudian/document-QA-system/internal/service"
)

// DocumentAPI 提供文档上传、查询、版本与回收站接口。
type DocumentAPI struct {
	documents *service.DocumentService
}

func NewDocumentAPI(documents *service.DocumentService) *DocumentAPI {
	return &DocumentAPI{documents: documents}
}

// UploadHandler 处理 multipart 文件上传。切分参数通过表单字段传递。
func (a *DocumentAPI) UploadHandler(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少上传文件"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "读取上传文件失败"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "读取上传文件失败"})
		return
	}

	req := service.UploadRequest{
		Filename: fileHeader.Filename,
		Data:     data,
		Remark:   c.PostForm("remark"),
	}
	if folderID := c.PostForm("folder_id"); folderID != "" {
		req.FolderID = &folderID
	}
	if method := c.PostForm("split_method"); method != "" {
		size, _ := strconv.Atoi(c.PostForm("chunk_size"))
		overlap, _ := strconv.Atoi(c.PostForm("chunk_overlap"))
		req.Chunk = &service.ChunkOptions{
			ChunkSize:    size,
			ChunkOverlap: overlap,
			SplitMethod:  method,
			SplitKeyword: c.PostForm("split_keyword"),
		}
	}

	doc, err := a.documents.Upload(c.Request.Context(), c.GetString(ctxTenantID), c.GetString(ctxUserID), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}

// CheckDuplicateHandler 上传前预检：同名/同内容冲突情况。
func (a *DocumentAPI) CheckDuplicateHandler(c *gin.Context) {
	var payload struct {
		FolderID *string `json:"folder_id"`
		Filename string  `json:"filename" binding:"required"`
		FileHash string  `json:"file_hash"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数无效"})
		return
	}

	result, err := a.documents.CheckDuplicate(c.Request.Context(), c.GetString(ctxTenantID), c.GetString(ctxUserID), payload.FolderID, payload.Filename, payload.FileHash)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListHandler 分页列出文档。
func (a *DocumentAPI) ListHandler(c *gin.Context) {
	page, pageSize := pagination(c)
	filter := repository.DocumentFilter{
		Status:   models.DocumentStatus(c.Query("status")),
		Keyword:  c.Query("keyword"),
		Page:     page,
		PageSize: pageSize,
	}
	if folderID, ok := c.GetQuery("folder_id"); ok {
		filter.FolderID = &folderID
	}

	docs, total, err := a.documents.List(c.Request.Context(), c.GetString(ctxTenantID), c.GetString(ctxUserID), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": docs, "total": total})
}

// GetHandler 返回单个文档。
func (a *DocumentAPI) GetHandler(c *gin.Context) {
	doc, err := a.documents.Get(c.Request.Context(), c.GetString(ctxTenantID), c.GetString(ctxUserID), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// DownloadHandler 下载文档原始文件。
func (a *DocumentAPI) DownloadHandler(c *gin.Context) {
	doc, data, err := a.documents.Content(c.Request.Context(), c.GetString(ctxTenantID), c.GetString(ctxUserID), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+doc.OriginalName+`"`)
	c.Data(http.StatusOK, doc.MimeType, data)
}

// MarkdownHandler 返回文档解析后的 markdown 内容。
func (a *DocumentAPI) MarkdownHandler(c *gin.Context) {
	data, err := a.documents.Markdown(c.Request.Context(), c.GetString(ctxTenantID), c.GetString(ctxUserID), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", data)
}

// DeleteHandler 将文档移入回收站。
func (a *DocumentAPI) DeleteHandler(c *gin.Context) {
	err := a.documents.Delete(c.Request.Context(), c.GetString(ctxTenantID), c.GetString(ctxUserID), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "文档已移入回收站"})
}

// RestoreHandler 从回收站恢复文档。
func (a *DocumentAPI) RestoreHandler(c *gin.Context) {
	err := a.documents.Restore(c.Request.Context(), c.GetString(ctxTenantID), c.GetString(ctxUserID), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "文档已恢复"})
}

// PurgeHandler 从回收站彻底删除文档。
func (a *DocumentAPI) PurgeHandler(c *gin.Context) {
	err := a.documents.Purge(c.Request.Context(), c.GetString(ctxTenantID), c.GetString(ctxUserID), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "文档已彻底删除"})
}

// TrashHandler 分页列出回收站内容。
func (a *DocumentAPI) TrashHandler(c *gin.Context) {
	page, pageSize := pagination(c)
	docs, total, err := a.documents.ListTrashed(c.Request.Context(), c.GetString(ctxTenantID), c.GetString(ctxUserID), page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": docs, "total": total})
}

// VersionsHandler 返回文档版本链的全部历史版本。
func (a *DocumentAPI) VersionsHandler(c *gin.Context) {
	versions, err := a.documents.ListVersions(c.Request.Context(), c.GetString(ctxTenantID), c.GetString(ctxUserID), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": versions})
}

// RollbackHandler 将版本链切换回指定历史版本。
func (a *DocumentAPI) RollbackHandler(c *gin.Context) {
	doc, err := a.documents.Rollback(c.Request.Context(), c.GetString(ctxTenantID), c.GetString(ctxUserID), c.Param("versionId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}
