package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/choudian/document-QA-system/internal/config"
)

// ErrNotFound is returned when the requested object does not exist.
var ErrNotFound = errors.New("file not found")

// Storage 是文件存储的抽象接口。所有路径均为相对路径，
// 形如 {tenant_id}/{user_id}/{folder_path}/{filename}。
type Storage interface {
	Save(ctx context.Context, path string, content []byte) error
	Read(ctx context.Context, path string) ([]byte, error)
	Delete(ctx context.Context, path string) error
	Exists(ctx context.Context, path string) (bool, error)
}

// GeneratePath 生成对象的相对存储路径。文件名只保留基础名，
// 防止路径穿越。
func GeneratePath(tenantID, userID, folderPath, filename string) string {
	filename = path.Base(filename)
	folderPath = strings.Trim(folderPath, "/")
	if folderPath == "" {
		return fmt.Sprintf("%s/%s/%s", tenantID, userID, filename)
	}
	return fmt.Sprintf("%s/%s/%s/%s", tenantID, userID, folderPath, filename)
}

// New 按配置创建存储后端。
func New(cfg *config.AppConfig) (Storage, error) {
	switch cfg.Storage.Backend {
	case "", "filesystem":
		return NewFilesystemStorage(cfg.Storage.BasePath)
	case "minio":
		return NewMinIOStorage(&cfg.Databases.MinIO)
	default:
		return nil, fmt.Errorf("不支持的存储类型: %s", cfg.Storage.Backend)
	}
}
