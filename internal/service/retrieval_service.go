package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/choudian/document-QA-system/internal/rag/interfaces"
	"github.com/choudian/document-QA-system/internal/rag/schema"
	"github.com/choudian/document-QA-system/internal/repository"
	"github.com/choudian/document-QA-system/pkg/logger"
)

var ErrEmptyQuery = errors.New("检索问题不能为空")

// maxConcurrentSearches 限制同时进行的文件夹检索数。
const maxConcurrentSearches = 8

// RetrievalOptions 控制一次检索。零值字段回落到配置默认值。
type RetrievalOptions struct {
	FolderIDs           []string // 为空表示检索用户的全部文件夹及根目录
	TopK                int
	SimilarityThreshold float64
	UseRerank           bool
	RerankTopN          int
}

// RetrievalService 把一个问题变成一组带相似度的文档片段。
// 流程：向量化问题 → 逐文件夹检索 → 相似度过滤 → 关联分块内容 →
// 合并排序 → 可选重排 → 截断。
type RetrievalService struct {
	folders   *repository.FolderRepository
	documents *repository.DocumentRepository
	chunks    *repository.DocumentChunkRepository
	configs   *ConfigService
	embedder  interfaces.EmbeddingProvider
	vectors   interfaces.VectorStore
	reranker  interfaces.Reranker
	log       *logger.Logger
}

func NewRetrievalService(
	folders *repository.FolderRepository,
	documents *repository.DocumentRepository,
	chunks *repository.DocumentChunkRepository,
	configs *ConfigService,
	embedder interfaces.EmbeddingProvider,
	vectors interfaces.VectorStore,
	reranker interfaces.Reranker,
) *RetrievalService {
	return &RetrievalService{
		folders:   folders,
		documents: documents,
		chunks:    chunks,
		configs:   configs,
		embedder:  embedder,
		vectors:   vectors,
		reranker:  reranker,
		log:       logger.New("retrieval"),
	}
}

// Retrieve 返回与 query 最相关的至多 topK 个片段，按相似度降序。
func (s *RetrievalService) Retrieve(ctx context.Context, tenantID, userID, query string, opts RetrievalOptions) ([]schema.RetrievedChunk, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	topK := opts.TopK
	threshold := opts.SimilarityThreshold
	defaultTopK, defaultThreshold := s.configs.RetrievalSettings(ctx, tenantID, userID)
	if topK <= 0 {
		topK = defaultTopK
	}
	if threshold <= 0 {
		threshold = defaultThreshold
	}

	scopes, err := s.resolveScopes(ctx, tenantID, userID, opts.FolderIDs)
	if err != nil {
		return nil, err
	}

	queryVector, err := s.embedder.EmbedOne(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("问题向量化失败: %w", err)
	}

	// 每个文件夹取 2 倍 topK 候选，给阈值过滤和重排留出余量。
	// 各文件夹的检索相互独立，并发执行；单个文件夹失败只记日志。
	var (
		mu         sync.Mutex
		candidates []schema.RetrievedChunk
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(maxConcurrentSearches)
	for _, folderID := range scopes {
		folderID := folderID
		group.Go(func() error {
			results, err := s.vectors.Search(groupCtx, queryVector, topK*2, tenantID, userID, folderID)
			if err != nil {
				s.log.WithError(err).Warn("文件夹检索失败，跳过")
				return nil
			}
			for _, hit := range results {
				similarity := 1 - hit.Distance
				if similarity < threshold {
					continue
				}
				chunk, ok := s.resolveChunk(groupCtx, hit)
				if !ok {
					continue
				}
				chunk.Similarity = similarity
				mu.Lock()
				candidates = append(candidates, chunk)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = group.Wait()

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Similarity > candidates[j].Similarity
	})

	if opts.UseRerank && len(candidates) > 0 {
		candidates = s.rerank(ctx, tenantID, userID, query, candidates, opts.RerankTopN)
	}

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	s.enrichDocumentInfo(ctx, tenantID, candidates)
	return candidates, nil
}

// resolveScopes 把请求的文件夹范围展开为待检索的 folder id 列表。
// nil 元素代表根目录。未指定时检索全部文件夹加根目录；指定时校验归属并
// 递归展开子文件夹，去重。
func (s *RetrievalService) resolveScopes(ctx context.Context, tenantID, userID string, folderIDs []string) ([]*string, error) {
	if len(folderIDs) == 0 {
		all, err := s.folders.ListAll(ctx, tenantID, userID)
		if err != nil {
			return nil, err
		}
		scopes := make([]*string, 0, len(all)+1)
		scopes = append(scopes, nil) // 根目录
		for _, folder := range all {
			id := folder.ID
			scopes = append(scopes, &id)
		}
		return scopes, nil
	}

	all, err := s.folders.ListAll(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]string, len(all)) // id -> path
	for _, folder := range all {
		byID[folder.ID] = folder.Path
	}

	seen := make(map[string]bool)
	var scopes []*string
	for _, requested := range folderIDs {
		rootPath, ok := byID[requested]
		if !ok {
			return nil, fmt.Errorf("文件夹不存在或无权访问: %s", requested)
		}
		prefix := rootPath + "/"
		for _, folder := range all {
			if folder.ID != requested && !strings.HasPrefix(folder.Path, prefix) {
				continue
			}
			if seen[folder.ID] {
				continue
			}
			seen[folder.ID] = true
			id := folder.ID
			scopes = append(scopes, &id)
		}
	}
	return scopes, nil
}

// resolveChunk 把一个向量命中关联回分块内容。元数据缺失或分块不存在时丢弃。
func (s *RetrievalService) resolveChunk(ctx context.Context, hit schema.SearchResult) (schema.RetrievedChunk, bool) {
	documentID, _ := hit.Metadata[schema.MetadataKeyDocumentID].(string)
	if documentID == "" {
		return schema.RetrievedChunk{}, false
	}
	chunkIndex := 0
	switch v := hit.Metadata[schema.MetadataKeyChunkIndex].(type) {
	case int:
		chunkIndex = v
	case int64:
		chunkIndex = int(v)
	case float64:
		chunkIndex = int(v)
	default:
		return schema.RetrievedChunk{}, false
	}

	content := hit.Text
	if content == "" {
		row, err := s.chunks.GetByDocumentAndIndex(ctx, documentID, chunkIndex)
		if err != nil {
			return schema.RetrievedChunk{}, false
		}
		content = row.Content
	}

	return schema.RetrievedChunk{
		DocumentID: documentID,
		ChunkIndex: chunkIndex,
		Content:    content,
		VectorID:   hit.ID,
		Metadata:   map[string]interface{}{},
	}, true
}

// rerank 用重排模型重新排序候选。重排结果不足 rerankTopN 时用原序补齐；
// 重排调用失败时退回向量排序结果。
func (s *RetrievalService) rerank(ctx context.Context, tenantID, userID, query string, candidates []schema.RetrievedChunk, rerankTopN int) []schema.RetrievedChunk {
	if rerankTopN <= 0 || rerankTopN > len(candidates) {
		rerankTopN = len(candidates)
	}

	documents := make([]string, len(candidates))
	for i, c := range candidates {
		documents[i] = c.Content
	}

	results, err := s.reranker.Rerank(ctx, query, documents, tenantID, userID, rerankTopN)
	if err != nil {
		s.log.WithError(err).Warn("重排失败，使用向量排序结果")
		return candidates
	}

	reranked := make([]schema.RetrievedChunk, 0, rerankTopN)
	used := make(map[int]bool, len(results))
	for _, r := range results {
		if r.Index < 0 || r.Index >= len(candidates) {
			continue
		}
		chunk := candidates[r.Index]
		chunk.Similarity = r.RelevanceScore
		reranked = append(reranked, chunk)
		used[r.Index] = true
	}

	// 补齐到 rerankTopN，保持原有向量排序。
	for i := 0; i < len(candidates) && len(reranked) < rerankTopN; i++ {
		if used[i] {
			continue
		}
		reranked = append(reranked, candidates[i])
	}
	return reranked
}

// enrichDocumentInfo 尽力为每个片段补充文档名与标题，失败不影响结果。
func (s *RetrievalService) enrichDocumentInfo(ctx context.Context, tenantID string, chunks []schema.RetrievedChunk) {
	cache := make(map[string]map[string]interface{})
	for i := range chunks {
		docID := chunks[i].DocumentID
		info, ok := cache[docID]
		if !ok {
			doc, err := s.documents.GetByIDIncludingDeleted(ctx, tenantID, docID)
			if err != nil {
				cache[docID] = nil
				continue
			}
			info = map[string]interface{}{"document_name": doc.Name}
			if doc.Title != nil {
				info["document_title"] = *doc.Title
			}
			cache[docID] = info
		}
		if info == nil {
			continue
		}
		if chunks[i].Metadata == nil {
			chunks[i].Metadata = map[string]interface{}{}
		}
		for k, v := range info {
			chunks[i].Metadata[k] = v
		}
	}
}
