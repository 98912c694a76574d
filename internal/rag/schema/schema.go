package schema

// Metadata keys attached to every stored vector. RetrievalService depends on
// these to resolve a vector hit back to document content; any alternate
// vector backend must preserve them.
const (
	MetadataKeyDocumentID = "document_id"
	MetadataKeyChunkIndex = "chunk_index"
	MetadataKeyTenantID   = "tenant_id"
	MetadataKeyUserID     = "user_id"
	MetadataKeyFolderID   = "folder_id"
)

// SearchResult is one raw hit from the vector store. Distance is
// smaller-is-more-similar; callers convert via similarity = 1 - distance.
type SearchResult struct {
	ID       string
	Text     string
	Metadata map[string]interface{}
	Distance float64
}

// RetrievedChunk is one ranked retrieval result after chunk resolution,
// filtering and (optional) reranking.
type RetrievedChunk struct {
	DocumentID string                 `json:"document_id"`
	ChunkIndex int                    `json:"chunk_index"`
	Content    string                 `json:"content"`
	Similarity float64                `json:"similarity"`
	VectorID   string                 `json:"vector_id,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// RerankResult is one scored entry returned by a Reranker. Index refers to
// the position in the candidate list passed to Rerank.
type RerankResult struct {
	Index          int
	Document       string
	RelevanceScore float64
}

// ParseResult is the outcome of parsing one uploaded file into markdown.
type ParseResult struct {
	Content   string // markdown text
	Title     string
	Summary   string
	PageCount int // 0 when the format has no page notion
}

// ChatMessage is one turn handed to the LLM.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TokenUsage mirrors the provider's token accounting.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResult is a blocking chat completion: the full answer plus usage.
type ChatResult struct {
	Content string
	Usage   TokenUsage
}
