package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/choudian/document-QA-system/internal/models"
	"github.com/choudian/document-QA-system/internal/rag/interfaces"
	"github.com/choudian/document-QA-system/internal/rag/parsers"
	"github.com/choudian/document-QA-system/internal/repository"
	"github.com/choudian/document-QA-system/internal/storage"
	"github.com/choudian/document-QA-system/pkg/logger"
)

var (
	ErrNoChunks       = errors.New("切分结果为空，无法向量化")
	ErrVectorStoreAdd = errors.New("向量写入失败")
)

// VectorizationService drives a document through the ingestion state machine:
// uploaded → parsing → (parse_failed | parsed) → vectorizing →
// (vectorize_failed | completed). Each stage re-reads Document.Status before
// acting, so re-delivered tasks are safe.
type VectorizationService struct {
	documents *repository.DocumentRepository
	chunks    *repository.DocumentChunkRepository
	docConfig *repository.DocumentConfigRepository
	store     storage.Storage
	splitter  interfaces.Splitter
	embedder  interfaces.EmbeddingProvider
	vectors   interfaces.VectorStore
	log       *logger.Logger
}

func NewVectorizationService(
	documents *repository.DocumentRepository,
	chunks *repository.DocumentChunkRepository,
	docConfig *repository.DocumentConfigRepository,
	store storage.Storage,
	splitter interfaces.Splitter,
	embedder interfaces.EmbeddingProvider,
	vectors interfaces.VectorStore,
) *VectorizationService {
	return &VectorizationService{
		documents: documents,
		chunks:    chunks,
		docConfig: docConfig,
		store:     store,
		splitter:  splitter,
		embedder:  embedder,
		vectors:   vectors,
		log:       logger.New("vectorization"),
	}
}

// Parse 读取原始文件，提取 markdown 正文与标题/摘要，写回文档记录。
// 文档已经解析过时直接返回，保证任务重投的幂等性。
func (s *VectorizationService) Parse(ctx context.Context, tenantID, documentID string) error {
	doc, err := s.documents.GetByID(ctx, tenantID, documentID)
	if err != nil {
		return err
	}
	if doc.Status != models.DocStatusUploaded && doc.Status != models.DocStatusParseFailed {
		s.log.WithFields(map[string]interface{}{
			"document_id": documentID, "status": doc.Status,
		}).Info("文档无需解析，跳过")
		return nil
	}

	if err := s.documents.UpdateStatus(ctx, documentID, models.DocStatusParsing); err != nil {
		return err
	}

	data, err := s.store.Read(ctx, doc.StoragePath)
	if err != nil {
		s.markParseFailed(ctx, documentID, err)
		return fmt.Errorf("读取原始文件失败: %w", err)
	}

	parser, err := parsers.ForType(doc.FileType)
	if err != nil {
		s.markParseFailed(ctx, documentID, err)
		return err
	}

	result, err := parser.Parse(ctx, data, doc.OriginalName)
	if err != nil {
		s.markParseFailed(ctx, documentID, err)
		return fmt.Errorf("解析文档失败: %w", err)
	}

	markdownPath := markdownPathFor(doc.StoragePath)
	if err := s.store.Save(ctx, markdownPath, []byte(result.Content)); err != nil {
		s.markParseFailed(ctx, documentID, err)
		return fmt.Errorf("保存解析结果失败: %w", err)
	}

	if err := s.documents.UpdateParseResult(ctx, documentID, markdownPath, result.Title, result.Summary, result.PageCount); err != nil {
		return err
	}

	s.log.WithFields(map[string]interface{}{
		"document_id": documentID, "pages": result.PageCount,
	}).Info("文档解析完成")
	return nil
}

// Vectorize 将已解析的文档切分、嵌入并写入向量库，随后持久化分块。
// 分块行只有在向量写入成功后才落库，保持两边一致。
func (s *VectorizationService) Vectorize(ctx context.Context, tenantID, documentID string) error {
	doc, err := s.documents.GetByID(ctx, tenantID, documentID)
	if err != nil {
		return err
	}
	switch doc.Status {
	case models.DocStatusCompleted:
		s.log.WithField("document_id", documentID).Info("文档已向量化，跳过")
		return nil
	case models.DocStatusParsed, models.DocStatusVectorizeFailed:
		// continue
	default:
		return fmt.Errorf("文档状态 %s 不允许向量化", doc.Status)
	}

	cfg, err := s.docConfig.GetByDocument(ctx, documentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.log.WithField("document_id", documentID).Warn("文档没有切分配置，跳过向量化")
			return nil
		}
		return err
	}

	if err := s.documents.UpdateStatus(ctx, documentID, models.DocStatusVectorizing); err != nil {
		return err
	}

	markdownPath := doc.StoragePath
	if doc.MarkdownPath != nil {
		markdownPath = *doc.MarkdownPath
	}
	data, err := s.store.Read(ctx, markdownPath)
	if err != nil {
		s.markVectorizeFailed(ctx, documentID, err)
		return fmt.Errorf("读取解析结果失败: %w", err)
	}

	texts, err := s.splitter.Split(string(data), cfg)
	if err != nil {
		s.markVectorizeFailed(ctx, documentID, err)
		return fmt.Errorf("切分文本失败: %w", err)
	}
	if len(texts) == 0 {
		s.markVectorizeFailed(ctx, documentID, ErrNoChunks)
		return ErrNoChunks
	}

	vectors, err := s.embedder.EmbedMany(ctx, texts, tenantID)
	if err != nil {
		s.markVectorizeFailed(ctx, documentID, err)
		return fmt.Errorf("嵌入失败: %w", err)
	}

	ids := make([]string, len(texts))
	metadatas := make([]map[string]interface{}, len(texts))
	for i := range texts {
		ids[i] = uuid.New().String()
		metadatas[i] = map[string]interface{}{
			"document_id": doc.ID,
			"chunk_index": i,
		}
	}

	if ok := s.vectors.AddVectors(ctx, vectors, texts, metadatas, ids, tenantID, doc.UserID, doc.FolderID); !ok {
		s.markVectorizeFailed(ctx, documentID, ErrVectorStoreAdd)
		return ErrVectorStoreAdd
	}

	rows := make([]*models.DocumentChunk, len(texts))
	for i, text := range texts {
		meta, _ := json.Marshal(map[string]interface{}{"length": len([]rune(text))})
		rows[i] = &models.DocumentChunk{
			DocumentID: doc.ID,
			ChunkIndex: i,
			TenantID:   tenantID,
			UserID:     doc.UserID,
			FolderID:   doc.FolderID,
			Content:    text,
			VectorID:   ids[i],
			Metadata:   datatypes.JSON(meta),
		}
	}
	if err := s.chunks.ReplaceForDocument(ctx, doc.ID, rows); err != nil {
		s.markVectorizeFailed(ctx, documentID, err)
		return fmt.Errorf("保存文档分块失败: %w", err)
	}

	if err := s.documents.UpdateStatus(ctx, documentID, models.DocStatusCompleted); err != nil {
		return err
	}

	s.log.WithFields(map[string]interface{}{
		"document_id": documentID, "chunks": len(texts),
	}).Info("文档向量化完成")
	return nil
}

// CleanupSuperseded 清理被新版本替代的旧文档的向量与分块。
// 在新版本向量化成功后调用，保证检索切换期间总有一份可用数据。
func (s *VectorizationService) CleanupSuperseded(ctx context.Context, tenantID, priorDocumentID string) {
	if priorDocumentID == "" {
		return
	}
	prior, err := s.documents.GetByIDIncludingDeleted(ctx, tenantID, priorDocumentID)
	if err != nil {
		s.log.WithError(err).WithField("document_id", priorDocumentID).Warn("加载旧版本文档失败")
		return
	}
	if ok := s.vectors.DeleteByDocumentID(ctx, prior.ID, tenantID, prior.UserID, prior.FolderID); !ok {
		s.log.WithField("document_id", prior.ID).Warn("清理旧版本向量失败")
	}
	if err := s.chunks.DeleteByDocument(ctx, prior.ID); err != nil {
		s.log.WithError(err).WithField("document_id", prior.ID).Warn("清理旧版本分块失败")
	}
}

func (s *VectorizationService) markParseFailed(ctx context.Context, documentID string, cause error) {
	s.log.WithError(cause).WithField("document_id", documentID).Error("文档解析失败")
	if err := s.documents.UpdateStatus(ctx, documentID, models.DocStatusParseFailed); err != nil {
		s.log.WithError(err).WithField("document_id", documentID).Error("更新解析失败状态出错")
	}
}

func (s *VectorizationService) markVectorizeFailed(ctx context.Context, documentID string, cause error) {
	s.log.WithError(cause).WithField("document_id", documentID).Error("文档向量化失败")
	if err := s.documents.UpdateStatus(ctx, documentID, models.DocStatusVectorizeFailed); err != nil {
		s.log.WithError(err).WithField("document_id", documentID).Error("更新向量化失败状态出错")
	}
}

// markdownPathFor derives the parse-artifact path from the original file path.
func markdownPathFor(storagePath string) string {
	if idx := strings.LastIndex(storagePath, "."); idx > strings.LastIndex(storagePath, "/") {
		return storagePath[:idx] + ".md"
	}
	return storagePath + ".md"
}
