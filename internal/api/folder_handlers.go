package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/choudian/document-QA-system/internal/service"
)

// FolderAPI 提供文件夹树的管理接口。
type FolderAPI struct {
	folders *service.FolderService
}

func NewFolderAPI(folders *service.FolderService) *FolderAPI {
	return &FolderAPI{folders: folders}
}

// CreateHandler 创建文件夹。
func (a *FolderAPI) CreateHandler(c *gin.Context) {
	var payload struct {
		ParentID *string `json:"parent_id"`
		Name     string  `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数无效"})
		return
	}

	folder, err := a.folders.Create(c.Request.Context(), c.GetString(ctxTenantID), c.GetString(ctxUserID), payload.ParentID, payload.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, folder)
}

// ListHandler 列出某个层级下的子文件夹，未指定 parent_id 时列出顶层。
func (a *FolderAPI) ListHandler(c *gin.Context) {
	var parentID *string
	if v, ok := c.GetQuery("parent_id"); ok {
		parentID = &v
	}

	folders, err := a.folders.List(c.Request.Context(), c.GetString(ctxTenantID), c.GetString(ctxUserID), parentID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": folders})
}

// TreeHandler 返回用户的完整文件夹树（按路径排序的平铺列表）。
func (a *FolderAPI) TreeHandler(c *gin.Context) {
	folders, err := a.folders.Tree(c.Request.Context(), c.GetString(ctxTenantID), c.GetString(ctxUserID))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": folders})
}

// RenameHandler 重命名文件夹。
func (a *FolderAPI) RenameHandler(c *gin.Context) {
	var payload struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数无效"})
		return
	}

	folder, err := a.folders.Rename(c.Request.Context(), c.GetString(ctxTenantID), c.GetString(ctxUserID), c.Param("id"), payload.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, folder)
}

// DeleteHandler 删除一个空文件夹。
func (a *FolderAPI) DeleteHandler(c *gin.Context) {
	err := a.folders.Delete(c.Request.Context(), c.GetString(ctxTenantID), c.GetString(ctxUserID), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "文件夹已删除"})
}
