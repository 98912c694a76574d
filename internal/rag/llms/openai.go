package llms

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	openai "github.com/meguminnnnnnnnn/go-openai"

	"github.com/choudian/document-QA-system/internal/rag/interfaces"
	"github.com/choudian/document-QA-system/internal/rag/schema"
	"github.com/choudian/document-QA-system/pkg/logger"
)

// StreamDone is the terminal sentinel emitted on a streaming channel after
// the last content delta. Consumers persist the accumulated answer when they
// see it.
const StreamDone = "[DONE]"

// ModelSettings holds the resolved connection parameters for a chat model.
type ModelSettings struct {
	Provider    string
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
}

// SettingsResolver resolves the effective chat model settings for a tenant
// and user, applying the system < tenant < user configuration precedence.
type SettingsResolver interface {
	LLMSettings(ctx context.Context, tenantID, userID string) (*ModelSettings, error)
}

// OpenAIClient performs chat completions through any OpenAI-compatible API.
type OpenAIClient struct {
	resolver SettingsResolver
	log      *logger.Logger

	mu      sync.Mutex
	clients map[string]*openai.Client
}

// NewOpenAIClient creates a new OpenAIClient.
func NewOpenAIClient(resolver SettingsResolver) *OpenAIClient {
	return &OpenAIClient{
		resolver: resolver,
		log:      logger.New("llm"),
		clients:  make(map[string]*openai.Client),
	}
}

// ChatCompletion runs a blocking chat completion and returns the full answer
// together with the provider's token usage.
func (c *OpenAIClient) ChatCompletion(ctx context.Context, messages []schema.ChatMessage, tenantID, userID string) (*schema.ChatResult, error) {
	settings, err := c.resolver.LLMSettings(ctx, tenantID, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve llm settings: %w", err)
	}

	resp, err := c.clientFor(settings).CreateChatCompletion(ctx, c.buildRequest(settings, messages, false))
	if err != nil {
		return nil, fmt.Errorf("create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("chat completion returned no choices")
	}

	return &schema.ChatResult{
		Content: resp.Choices[0].Message.Content,
		Usage: schema.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// ChatCompletionStream runs a streaming chat completion. The returned channel
// yields content deltas in order, then the StreamDone sentinel, then closes.
// A mid-stream provider error closes the channel after StreamDone is sent so
// consumers still persist the partial answer.
func (c *OpenAIClient) ChatCompletionStream(ctx context.Context, messages []schema.ChatMessage, tenantID, userID string) (<-chan string, error) {
	settings, err := c.resolver.LLMSettings(ctx, tenantID, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve llm settings: %w", err)
	}

	stream, err := c.clientFor(settings).CreateChatCompletionStream(ctx, c.buildRequest(settings, messages, true))
	if err != nil {
		return nil, fmt.Errorf("create chat completion stream: %w", err)
	}

	out := make(chan string)

	go func() {
		defer close(out)
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if err != nil {
				if !errors.Is(err, io.EOF) {
					c.log.WithError(err).Warn("聊天流中断，返回已生成的部分内容")
				}
				select {
				case out <- StreamDone:
				case <-ctx.Done():
				}
				return
			}
			for _, choice := range resp.Choices {
				if choice.Delta.Content == "" {
					continue
				}
				select {
				case out <- choice.Delta.Content:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (c *OpenAIClient) buildRequest(settings *ModelSettings, messages []schema.ChatMessage, stream bool) openai.ChatCompletionRequest {
	reqMessages := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		reqMessages[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	return openai.ChatCompletionRequest{
		Model:       settings.Model,
		Messages:    reqMessages,
		Temperature: &settings.Temperature,
		MaxTokens:   settings.MaxTokens,
		Stream:      stream,
	}
}

func (c *OpenAIClient) clientFor(settings *ModelSettings) *openai.Client {
	key := settings.BaseURL + "|" + settings.APIKey
	c.mu.Lock()
	defer c.mu.Unlock()
	if client, ok := c.clients[key]; ok {
		return client
	}
	cfg := openai.DefaultConfig(settings.APIKey)
	if settings.BaseURL != "" {
		cfg.BaseURL = settings.BaseURL
	}
	client := openai.NewClientWithConfig(cfg)
	c.clients[key] = client
	return client
}

// compile-time check to ensure OpenAIClient implements the LLMClient interface
var _ interfaces.LLMClient = (*OpenAIClient)(nil)
