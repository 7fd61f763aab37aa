package handlers

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/unifiedui/multiagent-service/internal/api/dto"
	"github.com/unifiedui/multiagent-service/internal/api/middleware"
	"github.com/unifiedui/multiagent-service/internal/api/sse"
	"github.com/unifiedui/multiagent-service/internal/core/docdb"
	"github.com/unifiedui/multiagent-service/internal/domain/errors"
	"github.com/unifiedui/multiagent-service/internal/services/orchestrator"
)

const defaultListLimit = 50

// ChatsHandler handles 1:1 conversation endpoints.
type ChatsHandler struct {
	docDBClient  docdb.Client
	orchestrator *orchestrator.Orchestrator
}

// NewChatsHandler creates a new ChatsHandler.
func NewChatsHandler(docDBClient docdb.Client, orch *orchestrator.Orchestrator) *ChatsHandler {
	return &ChatsHandler{
		docDBClient:  docDBClient,
		orchestrator: orch,
	}
}

// ListConversations handles GET /chats
// @Summary List conversations
// @Description Lists conversations, most recently updated first
// @Tags Chats
// @Produce json
// @Param limit query int false "Maximum number of conversations" default(50) minimum(1) maximum(200)
// @Success 200 {object} dto.ListConversationsResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /api/v1/multiagent/chats [get]
func (h *ChatsHandler) ListConversations(c *gin.Context) {
	var query dto.ListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		middleware.HandleError(c, errors.NewValidationError("invalid query parameters", err.Error()))
		return
	}
	if query.Limit == 0 {
		query.Limit = defaultListLimit
	}

	convs, err := h.docDBClient.Conversations().List(c.Request.Context(), &docdb.ListOptions{
		Limit:   query.Limit,
		OrderBy: docdb.SortOrderDesc,
	})
	if err != nil {
		middleware.HandleError(c, errors.NewInternalError("failed to list conversations", err))
		return
	}
	c.JSON(http.StatusOK, dto.ListConversationsResponse{Conversations: convs})
}

// GetConversation handles GET /chats/{chatId}
// @Summary Get a conversation
// @Tags Chats
// @Produce json
// @Param chatId path string true "Conversation ID"
// @Success 200 {object} models.Conversation
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/v1/multiagent/chats/{chatId} [get]
func (h *ChatsHandler) GetConversation(c *gin.Context) {
	id := c.Param("chatId")
	conv, err := h.docDBClient.Conversations().Get(c.Request.Context(), id)
	if err != nil {
		middleware.HandleError(c, errors.NewInternalError("failed to load conversation", err))
		return
	}
	if conv == nil {
		middleware.HandleError(c, errors.NewNotFoundError("conversation", id))
		return
	}
	c.JSON(http.StatusOK, conv)
}

// DeleteConversation handles DELETE /chats/{chatId}
// @Summary Delete a conversation
// @Tags Chats
// @Param chatId path string true "Conversation ID"
// @Success 204
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/v1/multiagent/chats/{chatId} [delete]
func (h *ChatsHandler) DeleteConversation(c *gin.Context) {
	id := c.Param("chatId")
	if err := h.docDBClient.Conversations().Delete(c.Request.Context(), id); err != nil {
		if stderrors.Is(err, docdb.ErrNotFound) {
			middleware.HandleError(c, errors.NewNotFoundError("conversation", id))
			return
		}
		middleware.HandleError(c, errors.NewInternalError("failed to delete conversation", err))
		return
	}
	c.Status(http.StatusNoContent)
}

// Turn handles POST /chats/turn and POST /chats/{chatId}/turn
// @Summary Send a message
// @Description Runs one 1:1 turn. With stream (default) the response is an SSE stream of orchestration events; the conversation is created on first send.
// @Tags Chats
// @Accept json
// @Produce json
// @Produce text/event-stream
// @Param chatId path string false "Conversation ID"
// @Param request body dto.ChatTurnRequest true "User message"
// @Success 200 {object} dto.ChatTurnResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/v1/multiagent/chats/{chatId}/turn [post]
func (h *ChatsHandler) Turn(c *gin.Context) {
	var req dto.ChatTurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleError(c, errors.NewValidationError("invalid request body", err.Error()))
		return
	}
	turn := orchestrator.ChatTurnRequest{ChatID: c.Param("chatId"), Content: req.Content}

	if !req.WantsStream() {
		res, err := h.orchestrator.RunChatTurn(c.Request.Context(), turn, nil)
		if err != nil {
			middleware.HandleError(c, err)
			return
		}
		c.JSON(http.StatusOK, dto.NewChatTurnResponse(res))
		return
	}

	writer, err := sse.NewWriter(c.Writer)
	if err != nil {
		middleware.HandleError(c, errors.NewInternalError("streaming not supported", err))
		return
	}
	logger := middleware.GetRequestLogger(c)

	res, err := h.orchestrator.RunChatTurn(c.Request.Context(), turn, sse.NewSink(writer, logger))
	if err != nil {
		writeStreamError(writer, err)
		return
	}
	if res.Cancelled {
		logger.Info().Str("chat_id", res.ChatID).Str("turn_id", res.TurnID).Msg("chat turn cancelled by client")
		return
	}
	_ = writer.WriteJSON(sse.EventMessage, orchestrator.Event{Type: orchestrator.EventStreamEnd, TurnID: res.TurnID})
	_ = writer.WriteDone()
}

// SaveMessages handles PUT /chats/{chatId}/messages
// @Summary Replace a conversation's messages
// @Description Full-array replace. With version the write succeeds only at that version; a lost race returns 409 with the latest state.
// @Tags Chats
// @Accept json
// @Produce json
// @Param chatId path string true "Conversation ID"
// @Param request body dto.SaveMessagesRequest true "Messages"
// @Success 200 {object} dto.SaveMessagesResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ConflictResponse
// @Router /api/v1/multiagent/chats/{chatId}/messages [put]
func (h *ChatsHandler) SaveMessages(c *gin.Context) {
	var req dto.SaveMessagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleError(c, errors.NewValidationError("invalid request body", err.Error()))
		return
	}

	conv, err := h.orchestrator.SaveConversation(c.Request.Context(), c.Param("chatId"), req.Version, req.Messages)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.SaveMessagesResponse{UpdatedAt: conv.UpdatedAt, Version: conv.Version})
}

// writeStreamError reports a failure that happened before any event was sent.
func writeStreamError(w *sse.Writer, err error) {
	if domainErr, ok := errors.GetDomainError(err); ok {
		_ = w.WriteError(domainErr.Code, domainErr.Message, domainErr.Details)
	} else {
		_ = w.WriteError(errors.ErrCodeInternal, "internal server error", "")
	}
	_ = w.WriteDone()
}
