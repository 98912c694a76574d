package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"

	"github.com/choudian/document-QA-system/internal/models"
	"github.com/choudian/document-QA-system/internal/rag/interfaces"
	"github.com/choudian/document-QA-system/internal/repository"
	"github.com/choudian/document-QA-system/internal/storage"
	"github.com/choudian/document-QA-system/pkg/logger"
)

var (
	ErrUnsupportedFileType = errors.New("不支持的文件类型")
	ErrFileTooLarge        = errors.New("文件大小超出限制")
	ErrDocumentProcessing  = errors.New("文档正在处理中，无法删除")
)

// TaskEnqueuer hands a persisted task row to the background runner.
// Implemented by the task package; the enqueue itself is durable because
// the row is written before the signal.
type TaskEnqueuer interface {
	Enqueue(ctx context.Context, task *models.DocumentTask) error
}

// ChunkOptions are explicit chunking overrides supplied at upload time.
type ChunkOptions struct {
	ChunkSize    int
	ChunkOverlap int
	SplitMethod  string
	SplitKeyword string
}

// UploadRequest carries everything the upload operation needs.
type UploadRequest struct {
	FolderID *string
	Filename string
	Data     []byte
	Chunk    *ChunkOptions // nil means fall back to recent/default config
	Remark   string
}

// DuplicateCheck is the answer to "what happens if I upload this file".
type DuplicateCheck struct {
	NameExists  bool   `json:"name_exists"`  // 同目录下已有同名文档，上传将生成新版本
	NextVersion string `json:"next_version"` // 若上传，新文档的版本号
	HashExists  bool   `json:"hash_exists"`  // 相同内容已存在于该用户空间
}

// keyedMutex serializes operations sharing the same key. The map only grows,
// which is acceptable: keys are (tenant,user,folder,name) tuples and the
// per-entry cost is one mutex.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// DocumentService 负责文档上传、版本链、回收站与版本回滚。
// 解析与向量化由后台任务异步完成。
type DocumentService struct {
	documents *repository.DocumentRepository
	versions  *repository.DocumentVersionRepository
	chunks    *repository.DocumentChunkRepository
	docConfig *repository.DocumentConfigRepository
	folders   *repository.FolderRepository
	configs   *ConfigService
	store     storage.Storage
	vectors   interfaces.VectorStore
	enqueuer  TaskEnqueuer
	chainMu   *keyedMutex
	log       *logger.Logger
}

func NewDocumentService(
	documents *repository.DocumentRepository,
	versions *repository.DocumentVersionRepository,
	chunks *repository.DocumentChunkRepository,
	docConfig *repository.DocumentConfigRepository,
	folders *repository.FolderRepository,
	configs *ConfigService,
	store storage.Storage,
	vectors interfaces.VectorStore,
	enqueuer TaskEnqueuer,
) *DocumentService {
	return &DocumentService{
		documents: documents,
		versions:  versions,
		chunks:    chunks,
		docConfig: docConfig,
		folders:   folders,
		configs:   configs,
		store:     store,
		vectors:   vectors,
		enqueuer:  enqueuer,
		chainMu:   newKeyedMutex(),
		log:       logger.New("document"),
	}
}

// fileTypeByExtension maps a filename extension onto the pipeline's
// coarse file types.
func fileTypeByExtension(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt":
		return "txt"
	case ".md", ".markdown":
		return "md"
	case ".pdf":
		return "pdf"
	case ".doc", ".docx":
		return "word"
	default:
		return ""
	}
}

// Upload 接收一个文件并启动入库流水线。
// 校验顺序：目录归属 → 上传策略 → 大小 → 类型 → 哈希去重 → 落盘 →
// 版本链 → 切分配置 → 任务入队。
func (s *DocumentService) Upload(ctx context.Context, tenantID, userID string, req UploadRequest) (*models.Document, error) {
	filename := strings.TrimSpace(req.Filename)
	if filename == "" || len(req.Data) == 0 {
		return nil, fmt.Errorf("%w: 文件名和内容不能为空", ErrValidation)
	}

	folderPath := ""
	if req.FolderID != nil && *req.FolderID != "" {
		folder, err := s.folders.GetByID(ctx, tenantID, *req.FolderID)
		if err != nil {
			return nil, fmt.Errorf("目标文件夹不存在: %w", err)
		}
		if folder.UserID != userID {
			return nil, repository.ErrNotFound
		}
		folderPath = folder.Path
	} else {
		req.FolderID = nil
	}

	allowedTypes, maxSizeMB := s.configs.UploadPolicy(ctx, tenantID)
	if float64(len(req.Data)) > maxSizeMB*1024*1024 {
		return nil, fmt.Errorf("%w: 最大允许 %.0fMB", ErrFileTooLarge, maxSizeMB)
	}

	fileType := fileTypeByExtension(filename)
	if fileType == "" || !contains(allowedTypes, fileType) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFileType, filepath.Ext(filename))
	}

	sum := sha256.Sum256(req.Data)
	fileHash := hex.EncodeToString(sum[:])

	// 同一版本链上的检测、归档和新版本创建必须串行，
	// 否则并发上传同名文件会产生两个 is_current 版本。
	unlock := s.chainMu.Lock(chainKey(tenantID, userID, req.FolderID, filename))
	defer unlock()

	// 内容去重：同一用户已有相同哈希的文件时复用其存储路径，不再写一份。
	storagePath := ""
	if existing, err := s.documents.FindByHash(ctx, tenantID, userID, fileHash); err == nil && existing != nil {
		storagePath = existing.StoragePath
	}
	if storagePath == "" {
		storagePath = storage.GeneratePath(tenantID, userID, folderPath, filename)
		if err := s.store.Save(ctx, storagePath, req.Data); err != nil {
			return nil, fmt.Errorf("保存文件失败: %w", err)
		}
	}

	doc := &models.Document{
		TenantID:     tenantID,
		UserID:       userID,
		FolderID:     req.FolderID,
		Name:         filename,
		OriginalName: filename,
		FileType:     fileType,
		MimeType:     mimetype.Detect(req.Data).String(),
		FileSize:     int64(len(req.Data)),
		FileHash:     fileHash,
		StoragePath:  storagePath,
		Version:      "V1",
		Status:       models.DocStatusUploaded,
	}

	chainID := ""
	priorDocumentID := ""
	if prior, err := s.documents.FindCurrentByName(ctx, tenantID, userID, req.FolderID, filename); err == nil && prior != nil {
		chainID, err = s.chainIDOf(ctx, prior)
		if err != nil {
			return nil, err
		}
		count, err := s.versions.CountByChain(ctx, chainID)
		if err != nil {
			return nil, err
		}
		doc.Version = "V" + strconv.FormatInt(count+1, 10)
		priorDocumentID = prior.ID
	}

	if err := s.documents.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("创建文档记录失败: %w", err)
	}
	if chainID == "" {
		chainID = doc.ID
	}

	version := &models.DocumentVersion{
		DocumentID:  doc.ID,
		ChainID:     chainID,
		Version:     doc.Version,
		FileHash:    fileHash,
		StoragePath: storagePath,
		OperatorID:  userID,
		Remark:      req.Remark,
	}
	if err := s.versions.AppendVersion(ctx, version); err != nil {
		return nil, fmt.Errorf("记录文档版本失败: %w", err)
	}

	// 旧版本从常规列表中隐藏，历史通过版本链访问。
	if priorDocumentID != "" {
		if err := s.documents.SoftDelete(ctx, tenantID, priorDocumentID); err != nil {
			s.log.WithError(err).WithField("document_id", priorDocumentID).Warn("归档旧版本失败")
		}
	}

	if err := s.persistChunkConfig(ctx, tenantID, userID, doc.ID, req.Chunk); err != nil {
		return nil, err
	}

	if err := s.enqueueProcess(ctx, doc, priorDocumentID); err != nil {
		return nil, err
	}

	s.log.WithFields(map[string]interface{}{
		"document_id": doc.ID, "name": doc.Name, "version": doc.Version,
	}).Info("文档上传成功")
	return doc, nil
}

// CheckDuplicate 预检上传：同名是否会触发版本升级，内容是否已存在。
func (s *DocumentService) CheckDuplicate(ctx context.Context, tenantID, userID string, folderID *string, filename, fileHash string) (*DuplicateCheck, error) {
	if folderID != nil && *folderID == "" {
		folderID = nil
	}
	result := &DuplicateCheck{NextVersion: "V1"}

	if prior, err := s.documents.FindCurrentByName(ctx, tenantID, userID, folderID, filename); err == nil && prior != nil {
		result.NameExists = true
		chainID, err := s.chainIDOf(ctx, prior)
		if err != nil {
			return nil, err
		}
		count, err := s.versions.CountByChain(ctx, chainID)
		if err != nil {
			return nil, err
		}
		result.NextVersion = "V" + strconv.FormatInt(count+1, 10)
	}

	if fileHash != "" {
		if existing, err := s.documents.FindByHash(ctx, tenantID, userID, fileHash); err == nil && existing != nil {
			result.HashExists = true
		}
	}
	return result, nil
}

// Get 返回单个文档。
func (s *DocumentService) Get(ctx context.Context, tenantID, userID, documentID string) (*models.Document, error) {
	doc, err := s.documents.GetByID(ctx, tenantID, documentID)
	if err != nil {
		return nil, err
	}
	if !doc.IsOwnedBy(userID) {
		return nil, repository.ErrNotFound
	}
	return doc, nil
}

// List 分页列出文档。
func (s *DocumentService) List(ctx context.Context, tenantID, userID string, filter repository.DocumentFilter) ([]*models.Document, int64, error) {
	return s.documents.List(ctx, tenantID, userID, filter)
}

// Content 返回文档的原始文件内容，用于下载。
func (s *DocumentService) Content(ctx context.Context, tenantID, userID, documentID string) (*models.Document, []byte, error) {
	doc, err := s.Get(ctx, tenantID, userID, documentID)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.store.Read(ctx, doc.StoragePath)
	if err != nil {
		return nil, nil, fmt.Errorf("读取文件失败: %w", err)
	}
	return doc, data, nil
}

// Markdown 返回解析产物 markdown，文档尚未解析时报错。
func (s *DocumentService) Markdown(ctx context.Context, tenantID, userID, documentID string) ([]byte, error) {
	doc, err := s.Get(ctx, tenantID, userID, documentID)
	if err != nil {
		return nil, err
	}
	if doc.MarkdownPath == nil {
		return nil, fmt.Errorf("%w: 文档尚未解析", ErrValidation)
	}
	return s.store.Read(ctx, *doc.MarkdownPath)
}

// Delete 将文档移入回收站，并尽力清理其向量、分块与配置。
// 处理中的文档拒绝删除，避免与流水线竞争。
func (s *DocumentService) Delete(ctx context.Context, tenantID, userID, documentID string) error {
	doc, err := s.Get(ctx, tenantID, userID, documentID)
	if err != nil {
		return err
	}
	if !doc.CanBeDeleted() {
		return ErrDocumentProcessing
	}

	// 清理是尽力而为：失败只记日志，软删除仍然进行。
	if s.vectors != nil {
		if ok := s.vectors.DeleteByDocumentID(ctx, doc.ID, tenantID, userID, doc.FolderID); !ok {
			s.log.WithField("document_id", doc.ID).Warn("清理文档向量失败")
		}
	}
	if err := s.chunks.DeleteByDocument(ctx, doc.ID); err != nil {
		s.log.WithError(err).WithField("document_id", doc.ID).Warn("清理文档分块失败")
	}
	if err := s.docConfig.DeleteByDocument(ctx, doc.ID); err != nil {
		s.log.WithError(err).WithField("document_id", doc.ID).Warn("清理文档配置失败")
	}

	return s.documents.SoftDelete(ctx, tenantID, documentID)
}

// Restore 从回收站恢复文档。只恢复记录本身，不会自动重新向量化。
func (s *DocumentService) Restore(ctx context.Context, tenantID, userID, documentID string) error {
	doc, err := s.documents.GetByIDIncludingDeleted(ctx, tenantID, documentID)
	if err != nil {
		return err
	}
	if !doc.IsOwnedBy(userID) {
		return repository.ErrNotFound
	}
	return s.documents.Restore(ctx, tenantID, documentID)
}

// Purge 从回收站彻底删除文档。存储文件仅在没有其他文档（含历史版本）
// 共享同一路径时才删除。
func (s *DocumentService) Purge(ctx context.Context, tenantID, userID, documentID string) error {
	doc, err := s.documents.GetByIDIncludingDeleted(ctx, tenantID, documentID)
	if err != nil {
		return err
	}
	if !doc.IsOwnedBy(userID) {
		return repository.ErrNotFound
	}

	shared, err := s.documents.StoragePathShared(ctx, doc.StoragePath, doc.ID)
	if err != nil {
		return err
	}
	if !shared {
		if err := s.store.Delete(ctx, doc.StoragePath); err != nil && !errors.Is(err, storage.ErrNotFound) {
			s.log.WithError(err).WithField("path", doc.StoragePath).Warn("删除存储文件失败")
		}
		if doc.MarkdownPath != nil {
			if err := s.store.Delete(ctx, *doc.MarkdownPath); err != nil && !errors.Is(err, storage.ErrNotFound) {
				s.log.WithError(err).WithField("path", *doc.MarkdownPath).Warn("删除解析产物失败")
			}
		}
	}

	return s.documents.HardDelete(ctx, tenantID, documentID)
}

// ListTrashed 列出回收站中的文档。
func (s *DocumentService) ListTrashed(ctx context.Context, tenantID, userID string, page, pageSize int) ([]*models.Document, int64, error) {
	return s.documents.ListTrashed(ctx, tenantID, userID, page, pageSize)
}

// ListVersions 返回文档所在版本链的全部历史版本。
func (s *DocumentService) ListVersions(ctx context.Context, tenantID, userID, documentID string) ([]*models.DocumentVersion, error) {
	doc, err := s.documents.GetByIDIncludingDeleted(ctx, tenantID, documentID)
	if err != nil {
		return nil, err
	}
	if !doc.IsOwnedBy(userID) {
		return nil, repository.ErrNotFound
	}
	chainID, err := s.chainIDOf(ctx, doc)
	if err != nil {
		return nil, err
	}
	return s.versions.ListByChain(ctx, chainID)
}

// Rollback 将版本链切换回指定的历史版本。历史版本对应的文档记录被恢复并
// 重新入队处理（旧版本的向量在升级时已被清理），当前版本被归档。
func (s *DocumentService) Rollback(ctx context.Context, tenantID, userID, versionID string) (*models.Document, error) {
	version, err := s.versions.GetByID(ctx, versionID)
	if err != nil {
		return nil, err
	}
	target, err := s.documents.GetByIDIncludingDeleted(ctx, tenantID, version.DocumentID)
	if err != nil {
		return nil, err
	}
	if !target.IsOwnedBy(userID) {
		return nil, repository.ErrNotFound
	}
	if version.IsCurrent {
		return target, nil
	}

	unlock := s.chainMu.Lock(chainKey(tenantID, userID, target.FolderID, target.Name))
	defer unlock()

	current, err := s.versions.GetCurrent(ctx, version.ChainID)
	if err == nil && current != nil {
		if err := s.documents.SoftDelete(ctx, tenantID, current.DocumentID); err != nil {
			s.log.WithError(err).WithField("document_id", current.DocumentID).Warn("归档当前版本失败")
		}
	}

	if err := s.versions.SetCurrent(ctx, version.ChainID, version.ID); err != nil {
		return nil, fmt.Errorf("切换版本失败: %w", err)
	}
	if err := s.documents.Restore(ctx, tenantID, target.ID); err != nil {
		return nil, fmt.Errorf("恢复版本记录失败: %w", err)
	}
	if err := s.documents.UpdateStatus(ctx, target.ID, models.DocStatusUploaded); err != nil {
		return nil, err
	}

	priorID := ""
	if current != nil {
		priorID = current.DocumentID
	}
	if err := s.enqueueProcess(ctx, target, priorID); err != nil {
		return nil, err
	}

	s.log.WithFields(map[string]interface{}{
		"chain_id": version.ChainID, "version": version.Version,
	}).Info("文档版本回滚")
	return target, nil
}

// chainIDOf resolves the version-chain id a document belongs to.
func (s *DocumentService) chainIDOf(ctx context.Context, doc *models.Document) (string, error) {
	versions, err := s.versions.ListByChain(ctx, doc.ID)
	if err == nil && len(versions) > 0 {
		return doc.ID, nil
	}
	// Not a chain head: locate the version row that points at this document.
	rows, err := s.versions.ListByDocument(ctx, doc.ID)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return doc.ID, nil
	}
	return rows[0].ChainID, nil
}

// persistChunkConfig 固化本次上传的切分配置。
// 优先级：显式参数 > 用户最近一次配置 > 租户/系统默认值。
func (s *DocumentService) persistChunkConfig(ctx context.Context, tenantID, userID, documentID string, opts *ChunkOptions) error {
	cfg := &models.DocumentConfig{DocumentID: documentID}

	switch {
	case opts != nil:
		if opts.ChunkOverlap >= opts.ChunkSize {
			return fmt.Errorf("%w: 分块重叠必须小于分块大小", ErrValidation)
		}
		cfg.ChunkSize = opts.ChunkSize
		cfg.ChunkOverlap = opts.ChunkOverlap
		cfg.SplitMethod = opts.SplitMethod
		if opts.SplitKeyword != "" {
			kw := opts.SplitKeyword
			cfg.SplitKeyword = &kw
		}
		// 记住用户的显式选择，作为下次上传的默认值。
		recent := &models.UserRecentConfig{
			UserID:       userID,
			ChunkSize:    cfg.ChunkSize,
			ChunkOverlap: cfg.ChunkOverlap,
			SplitMethod:  cfg.SplitMethod,
			SplitKeyword: cfg.SplitKeyword,
		}
		if err := s.docConfig.SaveUserRecent(ctx, recent); err != nil {
			s.log.WithError(err).Warn("保存用户最近配置失败")
		}
	default:
		if recent, err := s.docConfig.GetUserRecent(ctx, userID); err == nil && recent != nil {
			cfg.ChunkSize = recent.ChunkSize
			cfg.ChunkOverlap = recent.ChunkOverlap
			cfg.SplitMethod = recent.SplitMethod
			cfg.SplitKeyword = recent.SplitKeyword
		} else {
			size, overlap, strategy := s.configs.ChunkDefaults(ctx, tenantID)
			cfg.ChunkSize = size
			cfg.ChunkOverlap = overlap
			cfg.SplitMethod = strategy
		}
	}

	if err := s.docConfig.Upsert(ctx, cfg); err != nil {
		return fmt.Errorf("保存切分配置失败: %w", err)
	}
	return nil
}

func (s *DocumentService) enqueueProcess(ctx context.Context, doc *models.Document, priorDocumentID string) error {
	payload, err := json.Marshal(models.TaskPayload{
		StoragePath:     doc.StoragePath,
		FileType:        doc.FileType,
		PriorDocumentID: priorDocumentID,
	})
	if err != nil {
		return err
	}
	task := &models.DocumentTask{
		DocumentID: doc.ID,
		TenantID:   doc.TenantID,
		UserID:     doc.UserID,
		TaskType:   models.TaskTypeProcess,
		Payload:    payload,
		Status:     models.TaskPending,
	}
	if err := s.enqueuer.Enqueue(ctx, task); err != nil {
		return fmt.Errorf("任务入队失败: %w", err)
	}
	return nil
}

func chainKey(tenantID, userID string, folderID *string, name string) string {
	folder := "root"
	if folderID != nil && *folderID != "" {
		folder = *folderID
	}
	return tenantID + "/" + userID + "/" + folder + "/" + name
}
