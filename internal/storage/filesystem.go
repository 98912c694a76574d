package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/choudian/document-QA-system/pkg/logger"
)

// FilesystemStorage 把对象保存在本地磁盘的一个基础目录下。
type FilesystemStorage struct {
	basePath string
	log      *logger.Logger
}

// NewFilesystemStorage 创建文件系统存储，基础目录不存在时自动创建。
func NewFilesystemStorage(basePath string) (*FilesystemStorage, error) {
	if basePath == "" {
		basePath = "./storage"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("创建存储目录失败: %w", err)
	}
	return &FilesystemStorage{
		basePath: basePath,
		log:      logger.New("storage.fs"),
	}, nil
}

// fullPath 把相对路径映射到基础目录内，拒绝越界路径。
func (s *FilesystemStorage) fullPath(relPath string) (string, error) {
	cleaned := filepath.Clean(filepath.Join(s.basePath, filepath.FromSlash(relPath)))
	base := filepath.Clean(s.basePath)
	if cleaned != base && !strings.HasPrefix(cleaned, base+string(filepath.Separator)) {
		return "", fmt.Errorf("非法的存储路径: %s", relPath)
	}
	return cleaned, nil
}

func (s *FilesystemStorage) Save(ctx context.Context, relPath string, content []byte) error {
	full, err := s.fullPath(relPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}
	if err := os.WriteFile(full, content, 0o644); err != nil {
		return fmt.Errorf("写入文件失败: %w", err)
	}
	s.log.WithField("path", relPath).Debug("文件已保存")
	return nil
}

func (s *FilesystemStorage) Read(ctx context.Context, relPath string) ([]byte, error) {
	full, err := s.fullPath(relPath)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, relPath)
		}
		return nil, fmt.Errorf("读取文件失败: %w", err)
	}
	return data, nil
}

func (s *FilesystemStorage) Delete(ctx context.Context, relPath string) error {
	full, err := s.fullPath(relPath)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, relPath)
		}
		return fmt.Errorf("删除文件失败: %w", err)
	}
	s.log.WithField("path", relPath).Debug("文件已删除")
	return nil
}

func (s *FilesystemStorage) Exists(ctx context.Context, relPath string) (bool, error) {
	full, err := s.fullPath(relPath)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(full)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// compile-time check to ensure FilesystemStorage implements the Storage interface
var _ Storage = (*FilesystemStorage)(nil)
