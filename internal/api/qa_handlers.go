package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/choudian/document-QA-system/internal/models"
	"github.com/choudian/document-QA-system/internal/service"
)

// QAAPI 提供会话管理与文档问答接口。
type QAAPI struct {
	qa            *service.QAService
	conversations *service.ConversationService
}

func NewQAAPI(qa *service.QAService, conversations *service.ConversationService) *QAAPI {
	return &QAAPI{qa: qa, conversations: conversations}
}

type askPayload struct {
	ConversationID      string   `json:"conversation_id" binding:"required"`
	Question            string   `json:"question" binding:"required"`
	FolderIDs           []string `json:"folder_ids"`
	TopK                int      `json:"top_k"`
	SimilarityThreshold float64  `json:"similarity_threshold"`
	UseRerank           *bool    `json:"use_rerank"`
	RerankTopN          int      `json:"rerank_top_n"`
}

func (p askPayload) toRequest() service.AskRequest {
	return service.AskRequest{
		ConversationID:      p.ConversationID,
		Question:            p.Question,
		FolderIDs:           p.FolderIDs,
		TopK:                p.TopK,
		SimilarityThreshold: p.SimilarityThreshold,
		UseRerank:           p.UseRerank,
		RerankTopN:          p.RerankTopN,
	}
}

// AskHandler 执行一次阻塞式问答。
func (a *QAAPI) AskHandler(c *gin.Context) {
	var payload askPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数无效"})
		return
	}

	resp, err := a.qa.Ask(c.Request.Context(), c.GetString(ctxTenantID), c.GetString(ctxUserID), payload.toRequest())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// AskStreamHandler 以 SSE 推送问答过程：references 事件、若干 delta
// 事件，最后一个 done 事件。
func (a *QAAPI) AskStreamHandler(c *gin.Context) {
	var payload askPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数无效"})
		return
	}

	events, err := a.qa.AskStream(c.Request.Context(), c.GetString(ctxTenantID), c.GetString(ctxUserID), payload.toRequest())
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		event, ok := <-events
		if !ok {
			return false
		}
		data, err := json.Marshal(event)
		if err != nil {
			return false
		}
		c.SSEvent(event.Type, string(data))
		return event.Type != "done" && event.Type != "error"
	})
}

// CreateConversationHandler 新建会话。
func (a *QAAPI) CreateConversationHandler(c *gin.Context) {
	var payload struct {
		Title  string                     `json:"title"`
		Config *models.ConversationConfig `json:"config"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数无效"})
		return
	}

	conv, err := a.conversations.Create(c.Request.Context(), c.GetString(ctxTenantID), c.GetString(ctxUserID), payload.Title, payload.Config)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, conv)
}

// ListConversationsHandler 分页列出会话。
func (a *QAAPI) ListConversationsHandler(c *gin.Context) {
	page, pageSize := pagination(c)
	items, total, err := a.conversations.List(c.Request.Context(), c.GetString(ctxTenantID), c.GetString(ctxUserID), page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total})
}

// GetConversationHandler 返回单个会话。
func (a *QAAPI) GetConversationHandler(c *gin.Context) {
	conv, err := a.conversations.Get(c.Request.Context(), c.GetString(ctxTenantID), c.GetString(ctxUserID), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

// UpdateConversationHandler 更新会话标题或检索配置。
func (a *QAAPI) UpdateConversationHandler(c *gin.Context) {
	var payload struct {
		Title  string                     `json:"title"`
		Config *models.ConversationConfig `json:"config"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数无效"})
		return
	}

	tenantID, userID := c.GetString(ctxTenantID), c.GetString(ctxUserID)
	if payload.Title != "" {
		if err := a.conversations.Rename(c.Request.Context(), tenantID, userID, c.Param("id"), payload.Title); err != nil {
			respondError(c, err)
			return
		}
	}
	if payload.Config != nil {
		if _, err := a.conversations.UpdateConfig(c.Request.Context(), tenantID, userID, c.Param("id"), payload.Config); err != nil {
			respondError(c, err)
			return
		}
	}
	conv, err := a.conversations.Get(c.Request.Context(), tenantID, userID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

// DeleteConversationHandler 删除会话。
func (a *QAAPI) DeleteConversationHandler(c *gin.Context) {
	err := a.conversations.Delete(c.Request.Context(), c.GetString(ctxTenantID), c.GetString(ctxUserID), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "会话已删除"})
}

// ListMessagesHandler 分页返回会话内的消息。
func (a *QAAPI) ListMessagesHandler(c *gin.Context) {
	page, pageSize := pagination(c)
	items, total, err := a.conversations.Messages(c.Request.Context(), c.GetString(ctxTenantID), c.GetString(ctxUserID), c.Param("id"), page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total})
}
