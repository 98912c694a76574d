package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	miniosdk "github.com/minio/minio-go/v7"

	"github.com/choudian/document-QA-system/internal/config"
	miniodb "github.com/choudian/document-QA-system/internal/database/minio"
	"github.com/choudian/document-QA-system/pkg/logger"
)

// MinIOStorage 把对象保存到 MinIO（或其他 S3 兼容）对象存储。
type MinIOStorage struct {
	client *miniosdk.Client
	bucket string
	log    *logger.Logger
}

// NewMinIOStorage 基于共享的 MinIO 客户端创建对象存储后端。
func NewMinIOStorage(cfg *config.MinIOConfig) (*MinIOStorage, error) {
	client, err := miniodb.GetClient(cfg)
	if err != nil {
		return nil, err
	}
	return &MinIOStorage{
		client: client,
		bucket: cfg.Bucket,
		log:    logger.New("storage.minio"),
	}, nil
}

func (s *MinIOStorage) Save(ctx context.Context, relPath string, content []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, relPath, bytes.NewReader(content), int64(len(content)), miniosdk.PutObjectOptions{})
	if err != nil {
		return fmt.Errorf("上传对象失败: %w", err)
	}
	s.log.WithField("path", relPath).Debug("对象已上传")
	return nil
}

func (s *MinIOStorage) Read(ctx context.Context, relPath string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, relPath, miniosdk.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("获取对象失败: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if isMinioNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, relPath)
		}
		return nil, fmt.Errorf("读取对象失败: %w", err)
	}
	return data, nil
}

func (s *MinIOStorage) Delete(ctx context.Context, relPath string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, relPath, miniosdk.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("删除对象失败: %w", err)
	}
	s.log.WithField("path", relPath).Debug("对象已删除")
	return nil
}

func (s *MinIOStorage) Exists(ctx context.Context, relPath string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, relPath, miniosdk.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if isMinioNotFound(err) {
		return false, nil
	}
	return false, err
}

func isMinioNotFound(err error) bool {
	var resp miniosdk.ErrorResponse
	if errors.As(err, &resp) {
		return resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket"
	}
	return false
}

// compile-time check to ensure MinIOStorage implements the Storage interface
var _ Storage = (*MinIOStorage)(nil)
