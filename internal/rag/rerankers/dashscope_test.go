package rerankers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type staticRerankResolver struct {
	settings ModelSettings
}

func (r *staticRerankResolver) RerankSettings(ctx context.Context, tenantID, userID string) (*ModelSettings, error) {
	s := r.settings
	return &s, nil
}

func TestRerank_OrdersByScore(t *testing.T) {
	var gotReq dashScopeRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("Authorization header = %q, want %q", auth, "Bearer sk-test")
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		// deliberately unsorted to exercise the client-side sort
		json.NewEncoder(w).Encode(map[string]any{
			"request_id": "req-1",
			"output": map[string]any{
				"results": []map[string]any{
					{"index": 2, "document": "third", "relevance_score": 0.41},
					{"index": 0, "document": "first", "relevance_score": 0.93},
					{"index": 1, "document": map[string]any{"text": "second"}, "relevance_score": 0.77},
				},
			},
		})
	}))
	defer server.Close()

	reranker := NewDashScopeReranker(&staticRerankResolver{settings: ModelSettings{
		Provider: "aliyun",
		BaseURL:  server.URL,
		APIKey:   "sk-test",
		Model:    "qwen3-rerank",
		Timeout:  5 * time.Second,
	}})

	docs := []string{"first", "second", "third"}
	results, err := reranker.Rerank(context.Background(), "which doc", docs, "tenant-1", "user-1", 3)
	if err != nil {
		t.Fatalf("Rerank() error = %v", err)
	}

	if gotReq.Model != "qwen3-rerank" {
		t.Errorf("request model = %q, want %q", gotReq.Model, "qwen3-rerank")
	}
	if gotReq.Parameters.TopN != 3 {
		t.Errorf("request top_n = %d, want 3", gotReq.Parameters.TopN)
	}
	if !gotReq.Parameters.ReturnDocuments {
		t.Error("request return_documents = false, want true")
	}

	if len(results) != 3 {
		t.Fatalf("Rerank() returned %d results, want 3", len(results))
	}
	wantOrder := []struct {
		index int
		doc   string
		score float64
	}{
		{0, "first", 0.93},
		{1, "second", 0.77},
		{2, "third", 0.41},
	}
	for i, want := range wantOrder {
		if results[i].Index != want.index || results[i].Document != want.doc || results[i].RelevanceScore != want.score {
			t.Errorf("result %d = {%d %q %v}, want {%d %q %v}",
				i, results[i].Index, results[i].Document, results[i].RelevanceScore,
				want.index, want.doc, want.score)
		}
	}
}

func TestRerank_TopNDefaultsToAllDocuments(t *testing.T) {
	var gotReq dashScopeRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotReq)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"output": map[string]any{"results": []any{}}})
	}))
	defer server.Close()

	reranker := NewDashScopeReranker(&staticRerankResolver{settings: ModelSettings{BaseURL: server.URL, APIKey: "k", Model: "m"}})

	if _, err := reranker.Rerank(context.Background(), "q", []string{"a", "b"}, "t", "u", 0); err != nil {
		t.Fatalf("Rerank() error = %v", err)
	}
	if gotReq.Parameters.TopN != 2 {
		t.Errorf("request top_n = %d, want 2", gotReq.Parameters.TopN)
	}
}

func TestRerank_DropsOutOfRangeIndexes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"output": map[string]any{
				"results": []map[string]any{
					{"index": 9, "document": "ghost", "relevance_score": 0.99},
					{"index": 0, "document": "real", "relevance_score": 0.5},
				},
			},
		})
	}))
	defer server.Close()

	reranker := NewDashScopeReranker(&staticRerankResolver{settings: ModelSettings{BaseURL: server.URL, APIKey: "k", Model: "m"}})

	results, err := reranker.Rerank(context.Background(), "q", []string{"real"}, "t", "u", 1)
	if err != nil {
		t.Fatalf("Rerank() error = %v", err)
	}
	if len(results) != 1 || results[0].Index != 0 {
		t.Errorf("Rerank() = %v, want only the in-range result", results)
	}
}

func TestRerank_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	reranker := NewDashScopeReranker(&staticRerankResolver{settings: ModelSettings{BaseURL: server.URL, APIKey: "k", Model: "m"}})

	if _, err := reranker.Rerank(context.Background(), "q", []string{"a"}, "t", "u", 1); err == nil {
		t.Error("Rerank() expected error for non-200 status, got nil")
	}
}

func TestRerank_EmptyDocuments(t *testing.T) {
	reranker := NewDashScopeReranker(&staticRerankResolver{})
	results, err := reranker.Rerank(context.Background(), "q", nil, "t", "u", 5)
	if err != nil {
		t.Fatalf("Rerank() error = %v", err)
	}
	if results != nil {
		t.Errorf("Rerank() = %v, want nil", results)
	}
}
