package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"gorm.io/datatypes"

	"github.com/choudian/document-QA-system/internal/models"
	"github.com/choudian/document-QA-system/internal/rag/interfaces"
	"github.com/choudian/document-QA-system/internal/rag/llms"
	"github.com/choudian/document-QA-system/internal/rag/schema"
	"github.com/choudian/document-QA-system/internal/repository"
	"github.com/choudian/document-QA-system/pkg/logger"
)

// maxHistoryTurns 限制带入提示词的历史轮数（一轮 = 一问一答）。
const maxHistoryTurns = 5

// maxTitleChars 是从首个问题截取会话标题的长度。
const maxTitleChars = 50

// AskRequest 是一次问答请求。检索参数的优先级：
// 请求显式指定 > 会话配置 > 租户/系统默认。
type AskRequest struct {
	ConversationID      string
	Question            string
	FolderIDs           []string
	TopK                int
	SimilarityThreshold float64
	UseRerank           *bool
	RerankTopN          int
}

// AskResponse 是阻塞式问答的应答。
type AskResponse struct {
	ConversationID string                  `json:"conversation_id"`
	Answer         string                  `json:"answer"`
	References     []schema.RetrievedChunk `json:"references"`
	Usage          schema.TokenUsage       `json:"usage"`
}

// StreamEvent 是流式问答通道上的一个事件。
type StreamEvent struct {
	Type       string                  `json:"type"` // references/delta/done/error
	Content    string                  `json:"content,omitempty"`
	References []schema.RetrievedChunk `json:"references,omitempty"`
	Error      string                  `json:"error,omitempty"`
}

// QAService 编排一轮检索增强问答：检索 → 组装提示词 → 调用模型 →
// 持久化问答消息。
type QAService struct {
	conversations *ConversationService
	messages      *repository.MessageRepository
	convRepo      *repository.ConversationRepository
	retrieval     *RetrievalService
	llm           interfaces.LLMClient
	log           *logger.Logger
}

func NewQAService(
	conversations *ConversationService,
	messages *repository.MessageRepository,
	convRepo *repository.ConversationRepository,
	retrieval *RetrievalService,
	llm interfaces.LLMClient,
) *QAService {
	return &QAService{
		conversations: conversations,
		messages:      messages,
		convRepo:      convRepo,
		retrieval:     retrieval,
		llm:           llm,
		log:           logger.New("qa"),
	}
}

// Ask 执行一次阻塞式问答并持久化问答双方的消息。
func (s *QAService) Ask(ctx context.Context, tenantID, userID string, req AskRequest) (*AskResponse, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, ErrEmptyQuery
	}

	conv, err := s.conversations.Get(ctx, tenantID, userID, req.ConversationID)
	if err != nil {
		return nil, err
	}

	references, prompt, err := s.prepare(ctx, tenantID, userID, conv, req, question)
	if err != nil {
		return nil, err
	}

	result, err := s.llm.ChatCompletion(ctx, prompt, tenantID, userID)
	if err != nil {
		return nil, fmt.Errorf("模型调用失败: %w", err)
	}

	if err := s.persistTurn(ctx, conv, userID, question, result.Content, references, &result.Usage); err != nil {
		return nil, err
	}

	return &AskResponse{
		ConversationID: conv.ID,
		Answer:         result.Content,
		References:     references,
		Usage:          result.Usage,
	}, nil
}

// AskStream 执行一次流式问答。事件顺序：references → 若干 delta → done。
// 在收到模型的结束标记后，累积的完整回答被持久化；模型中途出错时，
// 已生成的部分回答同样会被保存。
func (s *QAService) AskStream(ctx context.Context, tenantID, userID string, req AskRequest) (<-chan StreamEvent, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, ErrEmptyQuery
	}

	conv, err := s.conversations.Get(ctx, tenantID, userID, req.ConversationID)
	if err != nil {
		return nil, err
	}

	references, prompt, err := s.prepare(ctx, tenantID, userID, conv, req, question)
	if err != nil {
		return nil, err
	}

	upstream, err := s.llm.ChatCompletionStream(ctx, prompt, tenantID, userID)
	if err != nil {
		return nil, fmt.Errorf("模型调用失败: %w", err)
	}

	events := make(chan StreamEvent)
	go func() {
		defer close(events)

		events <- StreamEvent{Type: "references", References: references}

		var answer strings.Builder
		for chunk := range upstream {
			if chunk == llms.StreamDone {
				break
			}
			answer.WriteString(chunk)
			select {
			case events <- StreamEvent{Type: "delta", Content: chunk}:
			case <-ctx.Done():
				return
			}
		}

		// 流式应答没有用量统计。
		if err := s.persistTurn(context.Background(), conv, userID, question, answer.String(), references, nil); err != nil {
			s.log.WithError(err).WithField("conversation_id", conv.ID).Error("持久化流式问答失败")
			events <- StreamEvent{Type: "error", Error: "保存应答失败"}
			return
		}
		events <- StreamEvent{Type: "done"}
	}()
	return events, nil
}

// prepare 完成问答前的公共步骤：确定检索参数、检索、组装提示词。
func (s *QAService) prepare(ctx context.Context, tenantID, userID string, conv *models.Conversation, req AskRequest, question string) ([]schema.RetrievedChunk, []schema.ChatMessage, error) {
	opts := s.effectiveOptions(conv, req)

	references, err := s.retrieval.Retrieve(ctx, tenantID, userID, question, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("检索失败: %w", err)
	}

	history, err := s.messages.ListRecent(ctx, conv.ID, maxHistoryTurns*2)
	if err != nil {
		s.log.WithError(err).Warn("加载会话历史失败")
		history = nil
	}

	prompt := buildPrompt(question, references, history)
	return references, prompt, nil
}

// effectiveOptions 合并请求参数与会话配置。
func (s *QAService) effectiveOptions(conv *models.Conversation, req AskRequest) RetrievalOptions {
	cfg := s.conversations.ParsedConfig(conv)

	opts := RetrievalOptions{
		FolderIDs:           req.FolderIDs,
		TopK:                req.TopK,
		SimilarityThreshold: req.SimilarityThreshold,
		RerankTopN:          req.RerankTopN,
	}
	if len(opts.FolderIDs) == 0 {
		opts.FolderIDs = cfg.KnowledgeBaseIDs
	}
	if opts.TopK <= 0 && cfg.TopK != nil {
		opts.TopK = *cfg.TopK
	}
	if opts.SimilarityThreshold <= 0 && cfg.SimilarityThreshold != nil {
		opts.SimilarityThreshold = *cfg.SimilarityThreshold
	}
	switch {
	case req.UseRerank != nil:
		opts.UseRerank = *req.UseRerank
	case cfg.UseRerank != nil:
		opts.UseRerank = *cfg.UseRerank
	}
	if opts.RerankTopN <= 0 && cfg.RerankTopN != nil {
		opts.RerankTopN = *cfg.RerankTopN
	}
	return opts
}

// persistTurn 依次写入用户问题与助手回答，并在会话没有标题时
// 用问题的前若干字符补一个。
func (s *QAService) persistTurn(ctx context.Context, conv *models.Conversation, userID, question, answer string, references []schema.RetrievedChunk, usage *schema.TokenUsage) error {
	seq, err := s.messages.NextSequence(ctx, conv.ID)
	if err != nil {
		return err
	}

	userMsg := &models.Message{
		ConversationID: conv.ID,
		TenantID:       conv.TenantID,
		UserID:         userID,
		Role:           models.RoleUser,
		Content:        question,
		Sequence:       seq,
	}
	if err := s.messages.Create(ctx, userMsg); err != nil {
		return fmt.Errorf("保存用户消息失败: %w", err)
	}

	assistantMsg := &models.Message{
		ConversationID: conv.ID,
		TenantID:       conv.TenantID,
		UserID:         userID,
		Role:           models.RoleAssistant,
		Content:        answer,
		Sequence:       seq + 1,
	}
	if len(references) > 0 {
		if raw, err := json.Marshal(references); err == nil {
			assistantMsg.References = datatypes.JSON(raw)
		}
	}
	if usage != nil {
		p, c, t := usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens
		assistantMsg.PromptTokens = &p
		assistantMsg.CompletionTokens = &c
		assistantMsg.TotalTokens = &t
	}
	if err := s.messages.Create(ctx, assistantMsg); err != nil {
		return fmt.Errorf("保存助手消息失败: %w", err)
	}

	if conv.Title == "" {
		if err := s.convRepo.UpdateTitle(ctx, conv.ID, truncateChars(question, maxTitleChars)); err != nil {
			s.log.WithError(err).Warn("更新会话标题失败")
		}
	}
	if err := s.convRepo.Touch(ctx, conv.ID); err != nil {
		s.log.WithError(err).Warn("更新会话活跃时间失败")
	}
	return nil
}

// buildPrompt 组装发给模型的消息序列：带引用标记的系统提示词、
// 最近的历史轮次、当前问题。
func buildPrompt(question string, references []schema.RetrievedChunk, history []*models.Message) []schema.ChatMessage {
	var sb strings.Builder
	sb.WriteString("你是一个文档问答助手。请根据下面提供的参考片段回答用户的问题。\n")
	sb.WriteString("回答时引用依据的片段，使用 [参考片段N] 的形式标注。\n")
	sb.WriteString("如果参考片段中没有足够的信息，请直接说明无法从文档中找到答案。\n\n")
	for i, ref := range references {
		sb.WriteString(fmt.Sprintf("[参考片段%d]\n%s\n\n", i+1, ref.Content))
	}

	messages := []schema.ChatMessage{{Role: models.RoleSystem, Content: sb.String()}}
	for _, msg := range history {
		if msg.Role != models.RoleUser && msg.Role != models.RoleAssistant {
			continue
		}
		messages = append(messages, schema.ChatMessage{Role: msg.Role, Content: msg.Content})
	}
	messages = append(messages, schema.ChatMessage{Role: models.RoleUser, Content: question})
	return messages
}

// truncateChars 按字符数截断字符串。
func truncateChars(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
