package interfaces

import (
	"context"

	"github.com/choudian/document-QA-system/internal/models"
	"github.com/choudian/document-QA-system/internal/rag/schema"
)

// Splitter is the interface for splitting raw text into chunks according to a
// per-document chunking policy. Implementations are purely functional and
// deterministic.
type Splitter interface {
	Split(text string, cfg *models.DocumentConfig) ([]string, error)
}

// EmbeddingProvider turns text into fixed-length float vectors via a
// configured remote provider. EmbedMany is order-preserving and returns
// exactly len(texts) vectors, transparently batching around the provider's
// batch-size limit.
type EmbeddingProvider interface {
	EmbedOne(ctx context.Context, text string, tenantID string) ([]float32, error)
	EmbedMany(ctx context.Context, texts []string, tenantID string) ([][]float32, error)
}

// VectorStore persists and searches per-(tenant, user, folder) vector
// collections. The collection name is derived internally; callers never
// construct it. AddVectors and DeleteByDocumentID report store-level failure
// as a boolean so the caller decides how to proceed.
type VectorStore interface {
	AddVectors(ctx context.Context, vectors [][]float32, texts []string, metadatas []map[string]interface{}, ids []string, tenantID, userID string, folderID *string) bool
	Search(ctx context.Context, queryVector []float32, topK int, tenantID, userID string, folderID *string) ([]schema.SearchResult, error)
	DeleteByDocumentID(ctx context.Context, documentID, tenantID, userID string, folderID *string) bool
}

// Reranker re-orders a candidate set against a query using a remote
// cross-encoder-style scorer.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string, tenantID, userID string, topN int) ([]schema.RerankResult, error)
}

// LLMClient performs chat-completion calls against a configured remote model
// endpoint. The streaming variant yields provider-format SSE "data:" chunks
// terminated by a "[DONE]" sentinel.
type LLMClient interface {
	ChatCompletion(ctx context.Context, messages []schema.ChatMessage, tenantID, userID string) (*schema.ChatResult, error)
	ChatCompletionStream(ctx context.Context, messages []schema.ChatMessage, tenantID, userID string) (<-chan string, error)
}

// DocumentParser extracts markdown content plus title/summary/page-count
// metadata from one uploaded file. One implementation exists per file type,
// selected by a factory keyed on the file extension.
type DocumentParser interface {
	Parse(ctx context.Context, data []byte, filename string) (*schema.ParseResult, error)
}
