package service

import (
	"strings"
	"testing"

	"gorm.io/datatypes"

	"github.com/choudian/document-QA-system/internal/models"
	"github.com/choudian/document-QA-system/internal/rag/schema"
)

func TestBuildPrompt(t *testing.T) {
	references := []schema.RetrievedChunk{
		{Content: "第一段内容"},
		{Content: "第二段内容"},
	}
	history := []*models.Message{
		{Role: models.RoleUser, Content: "之前的问题"},
		{Role: models.RoleAssistant, Content: "之前的回答"},
		{Role: models.RoleSystem, Content: "should be dropped"},
	}

	messages := buildPrompt("现在的问题", references, history)

	if len(messages) != 4 {
		t.Fatalf("len(messages) = %d, want 4", len(messages))
	}
	if messages[0].Role != models.RoleSystem {
		t.Errorf("first role = %q, want system", messages[0].Role)
	}
	if !strings.Contains(messages[0].Content, "[参考片段1]") || !strings.Contains(messages[0].Content, "第一段内容") {
		t.Error("system prompt missing first reference")
	}
	if !strings.Contains(messages[0].Content, "[参考片段2]") {
		t.Error("system prompt missing second reference marker")
	}
	if messages[1].Content != "之前的问题" || messages[2].Content != "之前的回答" {
		t.Error("history not carried in order")
	}
	if messages[3].Role != models.RoleUser || messages[3].Content != "现在的问题" {
		t.Errorf("last message = %+v, want current question", messages[3])
	}
	for _, m := range messages[1:] {
		if m.Content == "should be dropped" {
			t.Error("system history message must be excluded")
		}
	}
}

func TestEffectiveOptionsPrecedence(t *testing.T) {
	svc := &QAService{conversations: NewConversationService(nil, nil)}

	conv := &models.Conversation{
		Config: datatypes.JSON(`{"knowledge_base_ids":["conv-folder"],"top_k":7,"similarity_threshold":0.5,"use_rerank":true,"rerank_top_n":3}`),
	}

	// 请求显式指定的字段覆盖会话配置。
	useRerank := false
	opts := svc.effectiveOptions(conv, AskRequest{
		FolderIDs: []string{"req-folder"},
		TopK:      9,
		UseRerank: &useRerank,
	})
	if len(opts.FolderIDs) != 1 || opts.FolderIDs[0] != "req-folder" {
		t.Errorf("FolderIDs = %v, want [req-folder]", opts.FolderIDs)
	}
	if opts.TopK != 9 {
		t.Errorf("TopK = %d, want 9", opts.TopK)
	}
	if opts.UseRerank {
		t.Error("UseRerank = true, request explicitly disabled it")
	}
	if opts.SimilarityThreshold != 0.5 {
		t.Errorf("SimilarityThreshold = %v, want conversation value 0.5", opts.SimilarityThreshold)
	}
	if opts.RerankTopN != 3 {
		t.Errorf("RerankTopN = %d, want conversation value 3", opts.RerankTopN)
	}

	// 请求未指定时全部取会话配置。
	opts = svc.effectiveOptions(conv, AskRequest{})
	if len(opts.FolderIDs) != 1 || opts.FolderIDs[0] != "conv-folder" {
		t.Errorf("FolderIDs = %v, want [conv-folder]", opts.FolderIDs)
	}
	if opts.TopK != 7 || !opts.UseRerank {
		t.Errorf("opts = %+v, want conversation values", opts)
	}

	// 没有会话配置时保持零值，由检索层回落默认。
	opts = svc.effectiveOptions(&models.Conversation{}, AskRequest{})
	if opts.TopK != 0 || opts.UseRerank || opts.SimilarityThreshold != 0 {
		t.Errorf("opts = %+v, want zero values", opts)
	}
}

func TestTruncateChars(t *testing.T) {
	if got := truncateChars("短标题", 50); got != "短标题" {
		t.Errorf("truncateChars short = %q", got)
	}
	long := strings.Repeat("问", 60)
	got := truncateChars(long, 50)
	if len([]rune(got)) != 50 {
		t.Errorf("truncated length = %d runes, want 50", len([]rune(got)))
	}
}
