package llms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/choudian/document-QA-system/internal/rag/schema"
)

func chatMessages(system, user string) []schema.ChatMessage {
	return []schema.ChatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}
}

type staticLLMResolver struct {
	settings ModelSettings
}

func (r *staticLLMResolver) LLMSettings(ctx context.Context, tenantID, userID string) (*ModelSettings, error) {
	s := r.settings
	return &s, nil
}

func TestChatCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "qwen-plus" {
			t.Errorf("request model = %q, want %q", req.Model, "qwen-plus")
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  req.Model,
			"choices": []map[string]any{
				{"index": 0, "message": map[string]any{"role": "assistant", "content": "the answer"}, "finish_reason": "stop"},
			},
			"usage": map[string]any{"prompt_tokens": 12, "completion_tokens": 3, "total_tokens": 15},
		})
	}))
	defer server.Close()

	client := NewOpenAIClient(&staticLLMResolver{settings: ModelSettings{
		BaseURL: server.URL, APIKey: "sk-test", Model: "qwen-plus",
	}})

	result, err := client.ChatCompletion(context.Background(), chatMessages("you are helpful", "what is up"), "tenant-1", "user-1")
	if err != nil {
		t.Fatalf("ChatCompletion() error = %v", err)
	}
	if result.Content != "the answer" {
		t.Errorf("Content = %q, want %q", result.Content, "the answer")
	}
	if result.Usage.TotalTokens != 15 || result.Usage.PromptTokens != 12 || result.Usage.CompletionTokens != 3 {
		t.Errorf("Usage = %+v, want 12/3/15", result.Usage)
	}
}

func TestChatCompletionStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, delta := range []string{"Hel", "lo ", "world"} {
			chunk := map[string]any{
				"id":     "chatcmpl-1",
				"object": "chat.completion.chunk",
				"model":  "qwen-plus",
				"choices": []map[string]any{
					{"index": 0, "delta": map[string]any{"content": delta}},
				},
			}
			data, _ := json.Marshal(chunk)
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}))
	defer server.Close()

	client := NewOpenAIClient(&staticLLMResolver{settings: ModelSettings{
		BaseURL: server.URL, APIKey: "sk-test", Model: "qwen-plus",
	}})

	ch, err := client.ChatCompletionStream(context.Background(), chatMessages("sys", "q"), "tenant-1", "user-1")
	if err != nil {
		t.Fatalf("ChatCompletionStream() error = %v", err)
	}

	var parts []string
	sawDone := false
	for chunk := range ch {
		if chunk == StreamDone {
			sawDone = true
			continue
		}
		if sawDone {
			t.Errorf("received chunk %q after the done sentinel", chunk)
		}
		parts = append(parts, chunk)
	}

	if !sawDone {
		t.Error("stream closed without the done sentinel")
	}
	if got := strings.Join(parts, ""); got != "Hello world" {
		t.Errorf("streamed content = %q, want %q", got, "Hello world")
	}
}

func TestChatCompletion_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"id": "x", "object": "chat.completion", "choices": []any{}})
	}))
	defer server.Close()

	client := NewOpenAIClient(&staticLLMResolver{settings: ModelSettings{BaseURL: server.URL, APIKey: "k", Model: "m"}})

	if _, err := client.ChatCompletion(context.Background(), chatMessages("s", "q"), "t", "u"); err == nil {
		t.Error("ChatCompletion() expected error for empty choices, got nil")
	}
}
