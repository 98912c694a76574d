package service

import "github.com/choudian/document-QA-system/internal/models"

// 系统内置的权限标识。
const (
	PermDocUpload   = "doc:file:upload"
	PermDocRead     = "doc:file:read"
	PermDocDelete   = "doc:file:delete"
	PermDocRollback = "doc:file:rollback"
	PermFolderWrite = "doc:folder:write"
	PermQAChat      = "qa:chat"
	PermConfigRead  = "config:read"
	PermConfigWrite = "config:write"
)

// DefaultPermissions 是启动时写入权限表的内置权限集合。
func DefaultPermissions() []*models.Permission {
	return []*models.Permission{
		{Code: PermDocUpload, Description: "上传文档"},
		{Code: PermDocRead, Description: "查看和下载文档"},
		{Code: PermDocDelete, Description: "删除和恢复文档"},
		{Code: PermDocRollback, Description: "回滚文档版本"},
		{Code: PermFolderWrite, Description: "创建、重命名和删除文件夹"},
		{Code: PermQAChat, Description: "发起文档问答"},
		{Code: PermConfigRead, Description: "查看模型配置"},
		{Code: PermConfigWrite, Description: "修改个人模型配置"},
	}
}
