package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/choudian/document-QA-system/internal/models"
	"github.com/choudian/document-QA-system/internal/repository"
	"github.com/choudian/document-QA-system/pkg/logger"
)

var (
	ErrFolderNameTaken = errors.New("同级目录下已存在同名文件夹")
	ErrFolderNotEmpty  = errors.New("文件夹非空，无法删除")
)

// FolderService 管理文件夹树。文件夹同时也是问答检索的知识库范围。
type FolderService struct {
	folders   *repository.FolderRepository
	documents *repository.DocumentRepository
	log       *logger.Logger
}

func NewFolderService(folders *repository.FolderRepository, documents *repository.DocumentRepository) *FolderService {
	return &FolderService{
		folders:   folders,
		documents: documents,
		log:       logger.New("folder"),
	}
}

// Create 在 parentID 下创建一个文件夹，并维护物化路径。
func (s *FolderService) Create(ctx context.Context, tenantID, userID string, parentID *string, name string) (*models.Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: 文件夹名称不能为空", ErrValidation)
	}
	if strings.ContainsAny(name, "/\\") {
		return nil, fmt.Errorf("%w: 文件夹名称不能包含路径分隔符", ErrValidation)
	}

	parentPath := ""
	if parentID != nil && *parentID != "" {
		parent, err := s.folders.GetByID(ctx, tenantID, *parentID)
		if err != nil {
			return nil, fmt.Errorf("父文件夹不存在: %w", err)
		}
		if parent.UserID != userID {
			return nil, repository.ErrNotFound
		}
		parentPath = parent.Path
	} else {
		parentID = nil
	}

	if existing, err := s.folders.FindByName(ctx, tenantID, userID, parentID, name); err == nil && existing != nil {
		return nil, ErrFolderNameTaken
	}

	folder := &models.Folder{
		TenantID: tenantID,
		UserID:   userID,
		ParentID: parentID,
		Name:     name,
		Path:     joinFolderPath(parentPath, name),
	}
	if err := s.folders.Create(ctx, folder); err != nil {
		return nil, fmt.Errorf("创建文件夹失败: %w", err)
	}
	return folder, nil
}

// Rename 修改文件夹名称，并同步更新其子树的物化路径。
func (s *FolderService) Rename(ctx context.Context, tenantID, userID, folderID, newName string) (*models.Folder, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return nil, fmt.Errorf("%w: 文件夹名称不能为空", ErrValidation)
	}

	folder, err := s.folders.GetByID(ctx, tenantID, folderID)
	if err != nil {
		return nil, err
	}
	if folder.UserID != userID {
		return nil, repository.ErrNotFound
	}
	if folder.Name == newName {
		return folder, nil
	}

	if existing, err := s.folders.FindByName(ctx, tenantID, userID, folder.ParentID, newName); err == nil && existing != nil && existing.ID != folderID {
		return nil, ErrFolderNameTaken
	}

	oldPath := folder.Path
	parentPath := parentPathOf(folder.Path, folder.Name)
	folder.Name = newName
	folder.Path = joinFolderPath(parentPath, newName)
	if err := s.folders.Update(ctx, folder); err != nil {
		return nil, fmt.Errorf("重命名文件夹失败: %w", err)
	}

	// 子孙文件夹的物化路径以旧路径为前缀，逐个改写。
	all, err := s.folders.ListAll(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	prefix := oldPath + "/"
	for _, child := range all {
		if !strings.HasPrefix(child.Path, prefix) {
			continue
		}
		child.Path = folder.Path + "/" + strings.TrimPrefix(child.Path, prefix)
		if err := s.folders.Update(ctx, child); err != nil {
			return nil, fmt.Errorf("更新子文件夹路径失败: %w", err)
		}
	}
	return folder, nil
}

// List 列出 parentID 下的直接子文件夹，parentID 为 nil 时列出顶层。
func (s *FolderService) List(ctx context.Context, tenantID, userID string, parentID *string) ([]*models.Folder, error) {
	return s.folders.ListChildren(ctx, tenantID, userID, parentID)
}

// Tree 返回用户的全部文件夹，按路径排序，供前端构建目录树。
func (s *FolderService) Tree(ctx context.Context, tenantID, userID string) ([]*models.Folder, error) {
	return s.folders.ListAll(ctx, tenantID, userID)
}

// Get 返回单个文件夹。
func (s *FolderService) Get(ctx context.Context, tenantID, userID, folderID string) (*models.Folder, error) {
	folder, err := s.folders.GetByID(ctx, tenantID, folderID)
	if err != nil {
		return nil, err
	}
	if folder.UserID != userID {
		return nil, repository.ErrNotFound
	}
	return folder, nil
}

// Delete 删除一个空文件夹。包含子文件夹或文档时拒绝删除。
func (s *FolderService) Delete(ctx context.Context, tenantID, userID, folderID string) error {
	folder, err := s.folders.GetByID(ctx, tenantID, folderID)
	if err != nil {
		return err
	}
	if folder.UserID != userID {
		return repository.ErrNotFound
	}

	hasChildren, err := s.folders.HasChildren(ctx, folderID)
	if err != nil {
		return err
	}
	if hasChildren {
		return ErrFolderNotEmpty
	}

	count, err := s.documents.CountByFolder(ctx, tenantID, userID, folderID)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrFolderNotEmpty
	}

	s.log.WithField("folder_id", folderID).Info("删除文件夹")
	return s.folders.SoftDelete(ctx, tenantID, folderID)
}

func joinFolderPath(parentPath, name string) string {
	if parentPath == "" {
		return name
	}
	return parentPath + "/" + name
}

func parentPathOf(path, name string) string {
	trimmed := strings.TrimSuffix(path, name)
	return strings.TrimSuffix(trimmed, "/")
}
