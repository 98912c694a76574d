package vectorstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/choudian/document-QA-system/internal/database/milvus"
	"github.com/choudian/document-QA-system/internal/rag/interfaces"
	"github.com/choudian/document-QA-system/internal/rag/schema"
	"github.com/choudian/document-QA-system/pkg/logger"
)

// rootFolderSegment names the collection segment for documents that live
// outside any folder.
const rootFolderSegment = "root"

// searchNProbe is the IVF_FLAT probe count used for every search.
const searchNProbe = 10

// MilvusStore is an adapter over the shared Milvus client that implements the
// VectorStore interface. Each (tenant, user, folder) triple maps to its own
// collection so searches never cross isolation boundaries.
type MilvusStore struct {
	log    *logger.Logger
	milvus *milvus.MilvusClient
	client client.Client
	prefix string
}

// NewMilvusStore creates a new MilvusStore adapter.
func NewMilvusStore(milvusClient *milvus.MilvusClient) (*MilvusStore, error) {
	if milvusClient == nil || milvusClient.Client == nil {
		return nil, fmt.Errorf("milvus client is not initialized")
	}
	return &MilvusStore{
		log:    logger.New("vectorstore"),
		milvus: milvusClient,
		client: milvusClient.Client,
		prefix: milvusClient.Config.CollectionPrefix,
	}, nil
}

// CollectionName derives the collection for a (tenant, user, folder) triple.
// UUID hyphens are rewritten because Milvus collection names only allow
// letters, digits and underscores.
func (s *MilvusStore) CollectionName(tenantID, userID string, folderID *string) string {
	folder := rootFolderSegment
	if folderID != nil && *folderID != "" {
		folder = *folderID
	}
	name := fmt.Sprintf("%s_%s_%s_%s", s.prefix, tenantID, userID, folder)
	return strings.ReplaceAll(name, "-", "_")
}

// AddVectors inserts one embedding per text into the owning collection. All
// slices must be the same length. It returns false instead of an error so
// the vectorization pipeline can mark the document failed and move on.
func (s *MilvusStore) AddVectors(ctx context.Context, vectors [][]float32, texts []string, metadatas []map[string]interface{}, ids []string, tenantID, userID string, folderID *string) bool {
	if len(vectors) == 0 {
		return true
	}
	if len(texts) != len(vectors) || len(metadatas) != len(vectors) || len(ids) != len(vectors) {
		s.log.WithFields(map[string]interface{}{
			"vectors": len(vectors), "texts": len(texts), "metadatas": len(metadatas), "ids": len(ids),
		}).Error("向量写入参数长度不一致")
		return false
	}

	collection := s.CollectionName(tenantID, userID, folderID)
	if err := s.milvus.EnsureCollection(ctx, collection); err != nil {
		s.log.WithError(err).WithField("collection", collection).Error("准备集合失败")
		return false
	}

	documentIDs := make([]string, len(ids))
	chunkIndexes := make([]int64, len(ids))
	tenantIDs := make([]string, len(ids))
	userIDs := make([]string, len(ids))
	folderIDs := make([]string, len(ids))

	folderValue := rootFolderSegment
	if folderID != nil && *folderID != "" {
		folderValue = *folderID
	}

	dim := s.milvus.Config.VectorDim
	for i, meta := range metadatas {
		if v, ok := meta[schema.MetadataKeyDocumentID].(string); ok {
			documentIDs[i] = v
		}
		switch v := meta[schema.MetadataKeyChunkIndex].(type) {
		case int:
			chunkIndexes[i] = int64(v)
		case int64:
			chunkIndexes[i] = v
		case float64:
			chunkIndexes[i] = int64(v)
		}
		tenantIDs[i] = tenantID
		userIDs[i] = userID
		folderIDs[i] = folderValue
	}

	columns := []entity.Column{
		entity.NewColumnVarChar(milvus.FieldID, ids),
		entity.NewColumnFloatVector(milvus.FieldEmbedding, dim, vectors),
		entity.NewColumnVarChar(milvus.FieldContent, texts),
		entity.NewColumnVarChar(milvus.FieldDocumentID, documentIDs),
		entity.NewColumnInt64(milvus.FieldChunkIndex, chunkIndexes),
		entity.NewColumnVarChar(milvus.FieldTenantID, tenantIDs),
		entity.NewColumnVarChar(milvus.FieldUserID, userIDs),
		entity.NewColumnVarChar(milvus.FieldFolderID, folderIDs),
	}

	if _, err := s.client.Insert(ctx, collection, "", columns...); err != nil {
		s.log.WithError(err).WithField("collection", collection).Error("写入向量失败")
		return false
	}
	if err := s.client.Flush(ctx, collection, false); err != nil {
		s.log.WithError(err).WithField("collection", collection).Warn("向量写入后刷新失败")
	}

	s.log.WithFields(map[string]interface{}{"collection": collection, "count": len(ids)}).Info("向量写入完成")
	return true
}

// Search runs an L2 nearest-neighbour search over one collection and returns
// raw hits with their distances. A missing collection yields no results.
func (s *MilvusStore) Search(ctx context.Context, queryVector []float32, topK int, tenantID, userID string, folderID *string) ([]schema.SearchResult, error) {
	collection := s.CollectionName(tenantID, userID, folderID)

	has, err := s.client.HasCollection(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("check collection %q: %w", collection, err)
	}
	if !has {
		return nil, nil
	}
	if err := s.milvus.EnsureCollection(ctx, collection); err != nil {
		return nil, fmt.Errorf("load collection %q: %w", collection, err)
	}

	searchParams, err := entity.NewIndexIvfFlatSearchParam(searchNProbe)
	if err != nil {
		return nil, fmt.Errorf("build search params: %w", err)
	}

	outputFields := []string{
		milvus.FieldContent, milvus.FieldDocumentID, milvus.FieldChunkIndex,
		milvus.FieldTenantID, milvus.FieldUserID, milvus.FieldFolderID,
	}

	searchResults, err := s.client.Search(
		ctx, collection, []string{}, "", outputFields,
		[]entity.Vector{entity.FloatVector(queryVector)},
		milvus.FieldEmbedding, entity.L2, topK, searchParams,
	)
	if err != nil {
		return nil, fmt.Errorf("search collection %q: %w", collection, err)
	}

	var results []schema.SearchResult
	for _, res := range searchResults {
		ids, ok := res.IDs.(*entity.ColumnVarChar)
		if !ok {
			continue
		}

		contents := varCharData(res.Fields, milvus.FieldContent)
		documentIDs := varCharData(res.Fields, milvus.FieldDocumentID)
		chunkIndexes := int64Data(res.Fields, milvus.FieldChunkIndex)
		tenantIDs := varCharData(res.Fields, milvus.FieldTenantID)
		userIDs := varCharData(res.Fields, milvus.FieldUserID)
		folderIDs := varCharData(res.Fields, milvus.FieldFolderID)

		for i := 0; i < res.ResultCount; i++ {
			hit := schema.SearchResult{
				ID:       ids.Data()[i],
				Distance: float64(res.Scores[i]),
				Metadata: map[string]interface{}{},
			}
			if i < len(contents) {
				hit.Text = contents[i]
			}
			if i < len(documentIDs) {
				hit.Metadata[schema.MetadataKeyDocumentID] = documentIDs[i]
			}
			if i < len(chunkIndexes) {
				hit.Metadata[schema.MetadataKeyChunkIndex] = chunkIndexes[i]
			}
			if i < len(tenantIDs) {
				hit.Metadata[schema.MetadataKeyTenantID] = tenantIDs[i]
			}
			if i < len(userIDs) {
				hit.Metadata[schema.MetadataKeyUserID] = userIDs[i]
			}
			if i < len(folderIDs) {
				hit.Metadata[schema.MetadataKeyFolderID] = folderIDs[i]
			}
			results = append(results, hit)
		}
	}

	return results, nil
}

// DeleteByDocumentID removes every vector belonging to one document from its
// collection. Deleting from a collection that does not exist is a no-op
// success.
func (s *MilvusStore) DeleteByDocumentID(ctx context.Context, documentID, tenantID, userID string, folderID *string) bool {
	collection := s.CollectionName(tenantID, userID, folderID)

	has, err := s.client.HasCollection(ctx, collection)
	if err != nil {
		s.log.WithError(err).WithField("collection", collection).Error("检查集合失败")
		return false
	}
	if !has {
		return true
	}

	expr := fmt.Sprintf(`%s == "%s"`, milvus.FieldDocumentID, documentID)
	if err := s.client.Delete(ctx, collection, "", expr); err != nil {
		s.log.WithError(err).WithFields(map[string]interface{}{
			"collection": collection, "document_id": documentID,
		}).Error("删除文档向量失败")
		return false
	}

	s.log.WithFields(map[string]interface{}{"collection": collection, "document_id": documentID}).Info("文档向量已删除")
	return true
}

func varCharData(fields []entity.Column, name string) []string {
	for _, f := range fields {
		if f.Name() == name {
			if col, ok := f.(*entity.ColumnVarChar); ok {
				return col.Data()
			}
		}
	}
	return nil
}

func int64Data(fields []entity.Column, name string) []int64 {
	for _, f := range fields {
		if f.Name() == name {
			if col, ok := f.(*entity.ColumnInt64); ok {
				return col.Data()
			}
		}
	}
	return nil
}

// compile-time check to ensure MilvusStore implements the VectorStore interface
var _ interfaces.VectorStore = (*MilvusStore)(nil)
