package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

type staticResolver struct {
	settings ModelSettings
}

func (r *staticResolver) EmbeddingSettings(ctx context.Context, tenantID string) (*ModelSettings, error) {
	s := r.settings
	return &s, nil
}

// newEmbeddingServer returns a server that echoes one fixed-dimension vector
// per input text and counts the requests it received.
func newEmbeddingServer(t *testing.T, requests *int32, batchSizes *[]int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(requests, 1)

		var body struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		*batchSizes = append(*batchSizes, len(body.Input))

		type datum struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		data := make([]datum, len(body.Input))
		for i := range body.Input {
			data[i] = datum{Embedding: []float32{float32(i), 1, 2}, Index: i}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  body.Model,
		})
	}))
}

func TestEmbedMany_AliyunBatching(t *testing.T) {
	var requests int32
	var batchSizes []int
	server := newEmbeddingServer(t, &requests, &batchSizes)
	defer server.Close()

	provider := NewOpenAIProvider(&staticResolver{settings: ModelSettings{
		Provider: "aliyun",
		BaseURL:  server.URL,
		APIKey:   "test-key",
		Model:    "text-embedding-v3",
	}})

	texts := make([]string, 23)
	for i := range texts {
		texts[i] = "chunk"
	}

	vectors, err := provider.EmbedMany(context.Background(), texts, "tenant-1")
	if err != nil {
		t.Fatalf("EmbedMany() error = %v", err)
	}
	if len(vectors) != 23 {
		t.Errorf("EmbedMany() returned %d vectors, want 23", len(vectors))
	}
	// aliyun caps each request at 10 inputs: 10 + 10 + 3
	if got := atomic.LoadInt32(&requests); got != 3 {
		t.Errorf("request count = %d, want 3", got)
	}
	want := []int{10, 10, 3}
	for i, size := range batchSizes {
		if size != want[i] {
			t.Errorf("batch %d size = %d, want %d", i, size, want[i])
		}
	}
}

func TestEmbedMany_SingleRequestUnderLimit(t *testing.T) {
	var requests int32
	var batchSizes []int
	server := newEmbeddingServer(t, &requests, &batchSizes)
	defer server.Close()

	provider := NewOpenAIProvider(&staticResolver{settings: ModelSettings{
		Provider: "openai",
		BaseURL:  server.URL,
		APIKey:   "test-key",
		Model:    "text-embedding-3-small",
	}})

	vectors, err := provider.EmbedMany(context.Background(), []string{"a", "b", "c"}, "tenant-1")
	if err != nil {
		t.Fatalf("EmbedMany() error = %v", err)
	}
	if len(vectors) != 3 {
		t.Errorf("EmbedMany() returned %d vectors, want 3", len(vectors))
	}
	if got := atomic.LoadInt32(&requests); got != 1 {
		t.Errorf("request count = %d, want 1", got)
	}
}

func TestEmbedMany_CountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data": []map[string]any{
				{"embedding": []float32{1, 2, 3}, "index": 0},
			},
		})
	}))
	defer server.Close()

	provider := NewOpenAIProvider(&staticResolver{settings: ModelSettings{
		Provider: "openai",
		BaseURL:  server.URL,
		APIKey:   "test-key",
		Model:    "text-embedding-3-small",
	}})

	if _, err := provider.EmbedMany(context.Background(), []string{"a", "b"}, "tenant-1"); err == nil {
		t.Error("EmbedMany() expected count-mismatch error, got nil")
	}
}

func TestEmbedOne(t *testing.T) {
	var requests int32
	var batchSizes []int
	server := newEmbeddingServer(t, &requests, &batchSizes)
	defer server.Close()

	provider := NewOpenAIProvider(&staticResolver{settings: ModelSettings{
		Provider: "openai",
		BaseURL:  server.URL,
		APIKey:   "test-key",
		Model:    "text-embedding-3-small",
	}})

	vec, err := provider.EmbedOne(context.Background(), "hello", "tenant-1")
	if err != nil {
		t.Fatalf("EmbedOne() error = %v", err)
	}
	if len(vec) != 3 {
		t.Errorf("EmbedOne() vector length = %d, want 3", len(vec))
	}
}

func TestEmbedMany_EmptyInput(t *testing.T) {
	provider := NewOpenAIProvider(&staticResolver{})
	vectors, err := provider.EmbedMany(context.Background(), nil, "tenant-1")
	if err != nil {
		t.Fatalf("EmbedMany(nil) error = %v", err)
	}
	if vectors != nil {
		t.Errorf("EmbedMany(nil) = %v, want nil", vectors)
	}
}
