package rerankers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/choudian/document-QA-system/internal/rag/interfaces"
	"github.com/choudian/document-QA-system/internal/rag/schema"
)

const defaultRerankURL = "https://dashscope.aliyuncs.com/api/v1/services/rerank/text-rerank/text-rerank"

// ModelSettings holds the resolved connection parameters for a rerank model.
type ModelSettings struct {
	Provider string
	BaseURL  string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// SettingsResolver resolves the effective rerank model settings for a tenant
// and user, applying the system < tenant < user configuration precedence.
type SettingsResolver interface {
	RerankSettings(ctx context.Context, tenantID, userID string) (*ModelSettings, error)
}

// DashScopeReranker implements the Reranker interface against the DashScope
// text-rerank API. Any service exposing the same request and response shape
// works through a custom base URL.
type DashScopeReranker struct {
	resolver   SettingsResolver
	httpClient *http.Client
}

// dashScopeRequest defines the request body for the DashScope rerank API.
type dashScopeRequest struct {
	Model      string              `json:"model"`
	Input      dashScopeInput      `json:"input"`
	Parameters dashScopeParameters `json:"parameters"`
}

type dashScopeInput struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

type dashScopeParameters struct {
	ReturnDocuments bool `json:"return_documents"`
	TopN            int  `json:"top_n"`
}

// dashScopeResponse defines the response envelope. The document field is a
// plain string when return_documents is set, but some deployments wrap it in
// an object, so it is decoded leniently.
type dashScopeResponse struct {
	RequestID string `json:"request_id"`
	Output    struct {
		Results []dashScopeResult `json:"results"`
	} `json:"output"`
}

type dashScopeResult struct {
	Index          int             `json:"index"`
	Document       json.RawMessage `json:"document"`
	RelevanceScore float64         `json:"relevance_score"`
}

// NewDashScopeReranker creates a new DashScopeReranker.
func NewDashScopeReranker(resolver SettingsResolver) *DashScopeReranker {
	return &DashScopeReranker{
		resolver:   resolver,
		httpClient: &http.Client{},
	}
}

// Rerank scores documents against the query and returns them ordered by
// descending relevance, truncated to topN.
func (r *DashScopeReranker) Rerank(ctx context.Context, query string, documents []string, tenantID, userID string, topN int) ([]schema.RerankResult, error) {
	if len(documents) == 0 {
		return nil, nil
	}

	settings, err := r.resolver.RerankSettings(ctx, tenantID, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve rerank settings: %w", err)
	}

	baseURL := settings.BaseURL
	if baseURL == "" {
		baseURL = defaultRerankURL
	}
	if topN <= 0 || topN > len(documents) {
		topN = len(documents)
	}

	payload, err := json.Marshal(dashScopeRequest{
		Model: settings.Model,
		Input: dashScopeInput{Query: query, Documents: documents},
		Parameters: dashScopeParameters{
			ReturnDocuments: true,
			TopN:            topN,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	if settings.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, settings.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL, bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+settings.APIKey)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call rerank api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rerank api returned non-200 status: %s", resp.Status)
	}

	var apiResp dashScopeResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}

	results := make([]schema.RerankResult, 0, len(apiResp.Output.Results))
	for _, item := range apiResp.Output.Results {
		if item.Index < 0 || item.Index >= len(documents) {
			continue
		}
		results = append(results, schema.RerankResult{
			Index:          item.Index,
			Document:       decodeDocument(item.Document, documents[item.Index]),
			RelevanceScore: item.RelevanceScore,
		})
	}

	// The API already orders by score; keep the guarantee regardless.
	sort.Slice(results, func(i, j int) bool {
		return results[i].RelevanceScore > results[j].RelevanceScore
	})

	return results, nil
}

// decodeDocument accepts both the string and {"text": ...} document shapes,
// falling back to the original input text.
func decodeDocument(raw json.RawMessage, fallback string) string {
	if len(raw) == 0 {
		return fallback
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Text != "" {
		return obj.Text
	}
	return fallback
}

// compile-time check to ensure DashScopeReranker implements the Reranker interface
var _ interfaces.Reranker = (*DashScopeReranker)(nil)
