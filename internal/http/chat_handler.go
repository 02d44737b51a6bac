package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"nutricoach-api/internal/domain"
	"nutricoach-api/internal/service"
)

// ChatHandler mantiene dependencias para endpoints de chat y threads.
type ChatHandler struct {
	logger        *zap.Logger
	chat          *service.ChatService
	conversations *service.ConversationService
}

// NewChatHandler crea una instancia de ChatHandler con dependencias necesarias.
func NewChatHandler(logger *zap.Logger, chat *service.ChatService, conversations *service.ConversationService) *ChatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatHandler{
		logger:        logger,
		chat:          chat,
		conversations: conversations,
	}
}

type sendRequest struct {
	Message string `json:"message"`
}

type historyMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type historyResponse struct {
	ThreadID      string           `json:"thread_id"`
	Messages      []historyMessage `json:"messages"`
	TotalMessages int              `json:"total_messages"`
}

type threadResponse struct {
	ThreadID  string    `json:"thread_id"`
	CreatedAt time.Time `json:"created_at"`
	Current   bool      `json:"current"`
}

func toHistoryResponse(threadID string, messages []domain.Message) historyResponse {
	out := make([]historyMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, historyMessage{Role: m.Role, Content: m.Content, Timestamp: m.CreatedAt})
	}
	return historyResponse{ThreadID: threadID, Messages: out, TotalMessages: len(out)}
}

// Send maneja POST /chat/send.
func (h *ChatHandler) Send(c *gin.Context) {
	user, ok := GetAuthUser(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, codeUnauthorized, "missing session")
		return
	}
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid send request", zap.Error(err))
		writeError(c, http.StatusBadRequest, codeInvalidInput, "invalid request")
		return
	}

	res, err := h.chat.Send(c.Request.Context(), user.ID, req.Message)
	if err != nil {
		writeServiceError(c, h.logger, "send message", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"response":   res.AssistantMessage.Content,
		"message_id": res.AssistantMessage.ID,
		"thread_id":  res.Thread.ID,
	})
}

// History maneja GET /chat/history sobre el thread actual.
func (h *ChatHandler) History(c *gin.Context) {
	user, ok := GetAuthUser(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, codeUnauthorized, "missing session")
		return
	}
	ctx := c.Request.Context()
	thread, err := h.conversations.CurrentThread(ctx, user.ID)
	if err != nil {
		writeServiceError(c, h.logger, "current thread", err)
		return
	}
	messages, err := h.conversations.History(ctx, user.ID, thread.ID)
	if err != nil {
		writeServiceError(c, h.logger, "history", err)
		return
	}
	c.JSON(http.StatusOK, toHistoryResponse(thread.ID, messages))
}

// Clear maneja DELETE /chat/clear sobre el thread actual.
func (h *ChatHandler) Clear(c *gin.Context) {
	user, ok := GetAuthUser(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, codeUnauthorized, "missing session")
		return
	}
	ctx := c.Request.Context()
	thread, err := h.conversations.CurrentThread(ctx, user.ID)
	if err != nil {
		writeServiceError(c, h.logger, "current thread", err)
		return
	}
	if err := h.conversations.Clear(ctx, user.ID, thread.ID); err != nil {
		writeServiceError(c, h.logger, "clear", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "chat history cleared", "thread_id": thread.ID})
}

// CreateThread maneja POST /chat/thread/create.
func (h *ChatHandler) CreateThread(c *gin.Context) {
	user, ok := GetAuthUser(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, codeUnauthorized, "missing session")
		return
	}
	thread, err := h.conversations.CreateThread(c.Request.Context(), user.ID)
	if err != nil {
		writeServiceError(c, h.logger, "create thread", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"thread_id": thread.ID})
}

// CurrentThread maneja GET /chat/thread/current.
func (h *ChatHandler) CurrentThread(c *gin.Context) {
	user, ok := GetAuthUser(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, codeUnauthorized, "missing session")
		return
	}
	thread, err := h.conversations.CurrentThread(c.Request.Context(), user.ID)
	if err != nil {
		writeServiceError(c, h.logger, "current thread", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"thread_id": thread.ID})
}

// SwitchThread maneja POST /chat/thread/switch.
func (h *ChatHandler) SwitchThread(c *gin.Context) {
	user, ok := GetAuthUser(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, codeUnauthorized, "missing session")
		return
	}
	var req struct {
		ThreadID string `json:"thread_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid switch thread request", zap.Error(err))
		writeError(c, http.StatusBadRequest, codeInvalidInput, "invalid request")
		return
	}
	thread, err := h.conversations.SwitchThread(c.Request.Context(), user.ID, req.ThreadID)
	if err != nil {
		writeServiceError(c, h.logger, "switch thread", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"thread_id": thread.ID})
}

// ListThreads maneja GET /chat/threads.
func (h *ChatHandler) ListThreads(c *gin.Context) {
	user, ok := GetAuthUser(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, codeUnauthorized, "missing session")
		return
	}
	ctx := c.Request.Context()
	current, err := h.conversations.CurrentThread(ctx, user.ID)
	if err != nil {
		writeServiceError(c, h.logger, "current thread", err)
		return
	}
	threads, err := h.conversations.ListThreads(ctx, user.ID)
	if err != nil {
		writeServiceError(c, h.logger, "list threads", err)
		return
	}
	out := make([]threadResponse, 0, len(threads))
	for _, t := range threads {
		out = append(out, threadResponse{ThreadID: t.ID, CreatedAt: t.CreatedAt, Current: t.ID == current.ID})
	}
	c.JSON(http.StatusOK, gin.H{"threads": out, "current_thread_id": current.ID})
}

// ThreadHistory maneja GET /chat/threads/:id/history.
func (h *ChatHandler) ThreadHistory(c *gin.Context) {
	user, ok := GetAuthUser(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, codeUnauthorized, "missing session")
		return
	}
	threadID := c.Param("id")
	messages, err := h.conversations.ThreadHistory(c.Request.Context(), user.ID, threadID)
	if err != nil {
		writeServiceError(c, h.logger, "thread history", err)
		return
	}
	c.JSON(http.StatusOK, toHistoryResponse(threadID, messages))
}
