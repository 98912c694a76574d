package embeddings

import (
	"context"
	"fmt"
	"sync"

	openai "github.com/meguminnnnnnnnn/go-openai"

	"github.com/choudian/document-QA-system/internal/rag/interfaces"
	"github.com/choudian/document-QA-system/pkg/logger"
)

// ModelSettings holds the resolved connection parameters for an
// embedding model. The API key is the decrypted plaintext value.
type ModelSettings struct {
	Provider string
	BaseURL  string
	APIKey   string
	Model    string
}

// SettingsResolver resolves the effective embedding model settings for a
// tenant, applying the system < tenant configuration precedence.
type SettingsResolver interface {
	EmbeddingSettings(ctx context.Context, tenantID string) (*ModelSettings, error)
}

// Provider-specific limits on how many inputs a single embeddings request
// may carry.
const (
	aliyunBatchLimit  = 10
	defaultBatchLimit = 2048
)

// OpenAIProvider generates embeddings through any OpenAI-compatible API.
// Model settings are resolved per tenant so different tenants can point at
// different providers or keys.
type OpenAIProvider struct {
	resolver SettingsResolver
	log      *logger.Logger

	mu      sync.Mutex
	clients map[string]*openai.Client
}

// NewOpenAIProvider creates a new OpenAIProvider.
func NewOpenAIProvider(resolver SettingsResolver) *OpenAIProvider {
	return &OpenAIProvider{
		resolver: resolver,
		log:      logger.New("embedding"),
		clients:  make(map[string]*openai.Client),
	}
}

// EmbedOne generates the embedding vector for a single text.
func (p *OpenAIProvider) EmbedOne(ctx context.Context, text string, tenantID string) ([]float32, error) {
	vectors, err := p.EmbedMany(ctx, []string{text}, tenantID)
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedMany generates embedding vectors for a batch of texts, splitting the
// input into provider-sized sub-batches. The result preserves input order
// and always has exactly one vector per input text.
func (p *OpenAIProvider) EmbedMany(ctx context.Context, texts []string, tenantID string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	settings, err := p.resolver.EmbeddingSettings(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("resolve embedding settings: %w", err)
	}
	client := p.clientFor(settings)

	limit := batchLimit(settings.Provider)
	vectors := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += limit {
		end := start + limit
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		resp, err := client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: batch,
			Model: openai.EmbeddingModel(settings.Model),
		})
		if err != nil {
			return nil, fmt.Errorf("create embeddings: %w", err)
		}
		if len(resp.Data) != len(batch) {
			return nil, fmt.Errorf("embedding count mismatch: sent %d texts, got %d vectors", len(batch), len(resp.Data))
		}
		for _, d := range resp.Data {
			vectors = append(vectors, d.Embedding)
		}
	}

	return vectors, nil
}

func (p *OpenAIProvider) clientFor(settings *ModelSettings) *openai.Client {
	key := settings.BaseURL + "|" + settings.APIKey
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[key]; ok {
		return c
	}
	cfg := openai.DefaultConfig(settings.APIKey)
	if settings.BaseURL != "" {
		cfg.BaseURL = settings.BaseURL
	}
	c := openai.NewClientWithConfig(cfg)
	p.clients[key] = c
	return c
}

func batchLimit(provider string) int {
	if provider == "aliyun" {
		return aliyunBatchLimit
	}
	return defaultBatchLimit
}

// compile-time check to ensure OpenAIProvider implements the EmbeddingProvider interface
var _ interfaces.EmbeddingProvider = (*OpenAIProvider)(nil)
