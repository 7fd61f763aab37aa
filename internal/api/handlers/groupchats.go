package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/unifiedui/multiagent-service/internal/api/dto"
	"github.com/unifiedui/multiagent-service/internal/api/middleware"
	"github.com/unifiedui/multiagent-service/internal/api/sse"
	"github.com/unifiedui/multiagent-service/internal/core/docdb"
	"github.com/unifiedui/multiagent-service/internal/core/events"
	"github.com/unifiedui/multiagent-service/internal/domain/errors"
	"github.com/unifiedui/multiagent-service/internal/domain/models"
	"github.com/unifiedui/multiagent-service/internal/services/directory"
	"github.com/unifiedui/multiagent-service/internal/services/orchestrator"
)

// GroupChatsHandler handles group chat and discussion start endpoints.
type GroupChatsHandler struct {
	docDBClient  docdb.Client
	directory    directory.Service
	orchestrator *orchestrator.Orchestrator
	bus          events.Bus
}

// GroupChatsHandlerConfig holds the dependencies of a GroupChatsHandler.
type GroupChatsHandlerConfig struct {
	DocDBClient  docdb.Client
	Directory    directory.Service
	Orchestrator *orchestrator.Orchestrator
	// Bus fans group events out to subscribers. Optional.
	Bus events.Bus
}

// NewGroupChatsHandler creates a new GroupChatsHandler.
func NewGroupChatsHandler(cfg *GroupChatsHandlerConfig) *GroupChatsHandler {
	return &GroupChatsHandler{
		docDBClient:  cfg.DocDBClient,
		directory:    cfg.Directory,
		orchestrator: cfg.Orchestrator,
		bus:          cfg.Bus,
	}
}

// Create handles POST /groupchats
// @Summary Create a group chat
// @Description Members may be given as ids or expanded agent objects; only ids are stored.
// @Tags GroupChats
// @Accept json
// @Produce json
// @Param request body dto.CreateGroupChatRequest true "Group chat"
// @Success 201 {object} dto.GroupChatResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /api/v1/multiagent/groupchats [post]
func (h *GroupChatsHandler) Create(c *gin.Context) {
	var req dto.CreateGroupChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleError(c, errors.NewValidationError("invalid request body", err.Error()))
		return
	}
	ctx := c.Request.Context()

	members, err := h.directory.ResolveRefs(ctx, req.AgentIDs)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	if len(members) == 0 {
		middleware.HandleError(c, errors.NewValidationError("group chat needs at least one known agent", ""))
		return
	}

	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = uuid.NewString()
	}
	refs := make([]models.AgentRef, 0, len(members))
	for _, m := range members {
		refs = append(refs, models.RefByID(m.ID))
	}
	group := &models.GroupChat{
		ID:          id,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Avatar:      req.Avatar,
		AgentIDs:    refs,
	}
	if err := h.docDBClient.GroupChats().Create(ctx, group); err != nil {
		middleware.HandleError(c, errors.NewConflictError("failed to create group chat", err.Error()))
		return
	}

	c.JSON(http.StatusCreated, &dto.GroupChatResponse{
		GroupChat: group,
		Members:   dto.NewAgentResponses(members),
	})
}

// List handles GET /groupchats
// @Summary List group chats
// @Tags GroupChats
// @Produce json
// @Success 200 {object} dto.ListGroupChatsResponse
// @Router /api/v1/multiagent/groupchats [get]
func (h *GroupChatsHandler) List(c *gin.Context) {
	groups, err := h.docDBClient.GroupChats().List(c.Request.Context())
	if err != nil {
		middleware.HandleError(c, errors.NewInternalError("failed to list group chats", err))
		return
	}
	c.JSON(http.StatusOK, dto.ListGroupChatsResponse{GroupChats: groups})
}

// Get handles GET /groupchats/{groupId}
// @Summary Get a group chat
// @Description Returns the group with its members resolved to agents.
// @Tags GroupChats
// @Produce json
// @Param groupId path string true "Group chat ID"
// @Success 200 {object} dto.GroupChatResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/v1/multiagent/groupchats/{groupId} [get]
func (h *GroupChatsHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	group, ok := h.loadGroup(c)
	if !ok {
		return
	}
	members, err := h.directory.ResolveRefs(ctx, group.AgentIDs)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, &dto.GroupChatResponse{
		GroupChat: group,
		Members:   dto.NewAgentResponses(members),
	})
}

// ListMessages handles GET /groupchats/{groupId}/messages
// @Summary List group messages
// @Description Returns stored messages in chronological order; limit keeps the most recent ones.
// @Tags GroupChats
// @Produce json
// @Param groupId path string true "Group chat ID"
// @Param limit query int false "Maximum number of messages" minimum(1) maximum(200)
// @Success 200 {object} dto.GroupMessagesResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/v1/multiagent/groupchats/{groupId}/messages [get]
func (h *GroupChatsHandler) ListMessages(c *gin.Context) {
	var query dto.ListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		middleware.HandleError(c, errors.NewValidationError("invalid query parameters", err.Error()))
		return
	}
	group, ok := h.loadGroup(c)
	if !ok {
		return
	}

	stored, err := h.docDBClient.GroupMessages().List(c.Request.Context(), group.ID, &docdb.ListOptions{
		Limit:   query.Limit,
		OrderBy: docdb.SortOrderDesc,
	})
	if err != nil {
		middleware.HandleError(c, errors.NewInternalError("failed to list group messages", err))
		return
	}
	messages := make([]models.Message, 0, len(stored))
	for _, m := range stored {
		messages = append(messages, m.ToMessage())
	}
	c.JSON(http.StatusOK, dto.GroupMessagesResponse{Messages: messages})
}

// AppendMessage handles POST /groupchats/{groupId}/messages
// @Summary Append a group message
// @Description Stores one finished message. Appending the same messageId twice is a no-op reported as alreadyExists.
// @Tags GroupChats
// @Accept json
// @Produce json
// @Param groupId path string true "Group chat ID"
// @Param request body dto.AppendGroupMessageRequest true "Message"
// @Success 201 {object} dto.AppendGroupMessageResponse
// @Success 200 {object} dto.AppendGroupMessageResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/v1/multiagent/groupchats/{groupId}/messages [post]
func (h *GroupChatsHandler) AppendMessage(c *gin.Context) {
	var req dto.AppendGroupMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleError(c, errors.NewValidationError("invalid request body", err.Error()))
		return
	}
	group, ok := h.loadGroup(c)
	if !ok {
		return
	}

	message := models.NewGroupMessage(group.ID, models.Message{
		ID:         req.MessageID,
		AgentName:  req.AgentName,
		AgentColor: req.AgentColor,
		Content:    req.Content,
		IsUser:     req.IsUser,
	})
	exists, err := h.docDBClient.GroupMessages().Append(c.Request.Context(), message)
	if err != nil {
		middleware.HandleError(c, errors.NewInternalError("failed to store group message", err))
		return
	}
	if exists {
		c.JSON(http.StatusOK, dto.AppendGroupMessageResponse{AlreadyExists: true})
		return
	}
	c.JSON(http.StatusCreated, dto.AppendGroupMessageResponse{Message: message})
}

// Chat handles POST /groupchats/{groupId}/chat
// @Summary Send a message to a group
// @Description Dispatches once and lets every chosen agent answer concurrently. With stream the response is an SSE stream; otherwise the turn continues in the background and its events are published on the group's event stream.
// @Tags GroupChats
// @Accept json
// @Produce json
// @Produce text/event-stream
// @Param groupId path string true "Group chat ID"
// @Param request body dto.GroupTurnRequest true "User message"
// @Success 202 {object} dto.GroupTurnResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/v1/multiagent/groupchats/{groupId}/chat [post]
func (h *GroupChatsHandler) Chat(c *gin.Context) {
	var req dto.GroupTurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleError(c, errors.NewValidationError("invalid request body", err.Error()))
		return
	}
	groupID := c.Param("groupId")
	logger := middleware.GetRequestLogger(c)
	published := newBusSink(h.bus, groupID, logger)
	turnReq := orchestrator.GroupTurnRequest{GroupID: groupID, Content: req.Content}

	if !req.Stream {
		turn, err := h.orchestrator.StartGroupTurn(context.WithoutCancel(c.Request.Context()), turnReq, published)
		if err != nil {
			middleware.HandleError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, dto.NewGroupTurnResponse(turn))
		return
	}

	writer, err := sse.NewWriter(c.Writer)
	if err != nil {
		middleware.HandleError(c, errors.NewInternalError("streaming not supported", err))
		return
	}
	turn, err := h.orchestrator.StartGroupTurn(c.Request.Context(), turnReq, tee(sse.NewSink(writer, logger), published))
	if err != nil {
		writeStreamError(writer, err)
		return
	}
	<-turn.Batch.Done()
	if turn.Batch.Cancelled() {
		logger.Info().Str("group_id", groupID).Str("turn_id", turn.ID()).Msg("group turn cancelled")
		return
	}
	_ = writer.WriteDone()
}

// CancelTurn handles DELETE /groupchats/{groupId}/turns/{turnId}
// @Summary Cancel a group turn
// @Description Stops every in-flight agent of the turn. Nothing further is emitted or stored for it.
// @Tags GroupChats
// @Param groupId path string true "Group chat ID"
// @Param turnId path string true "Turn ID"
// @Success 204
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/v1/multiagent/groupchats/{groupId}/turns/{turnId} [delete]
func (h *GroupChatsHandler) CancelTurn(c *gin.Context) {
	turnID := c.Param("turnId")
	if !h.orchestrator.CancelTurn(turnID) {
		middleware.HandleError(c, errors.NewNotFoundError("turn", turnID))
		return
	}
	c.Status(http.StatusNoContent)
}

// Events handles GET /groupchats/{groupId}/events
// @Summary Subscribe to group events
// @Description Streams every orchestration event of the group, from any replica, until the client disconnects.
// @Tags GroupChats
// @Produce text/event-stream
// @Param groupId path string true "Group chat ID"
// @Success 200
// @Failure 404 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /api/v1/multiagent/groupchats/{groupId}/events [get]
func (h *GroupChatsHandler) Events(c *gin.Context) {
	if h.bus == nil {
		middleware.HandleError(c, errors.NewNotConfiguredError("event bus", nil))
		return
	}
	group, ok := h.loadGroup(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	sub, err := h.bus.Subscribe(ctx, events.GroupTopic(group.ID))
	if err != nil {
		middleware.HandleError(c, errors.NewServiceUnavailableError("event bus", err))
		return
	}
	defer sub.Close()

	writer, err := sse.NewWriter(c.Writer)
	if err != nil {
		middleware.HandleError(c, errors.NewInternalError("streaming not supported", err))
		return
	}
	c.Status(http.StatusOK)
	c.Writer.Flush()

	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-sub.Messages():
			if !ok {
				_ = writer.WriteDone()
				return
			}
			if err := writer.WriteRaw(payload); err != nil {
				return
			}
		}
	}
}

// StartDiscussion handles POST /groupchats/{groupId}/discussions
// @Summary Start a discussion
// @Description Runs a fixed number of rounds in the background. In each round the dispatch center picks one speaker, who sees every earlier turn. Progress is published on the group's event stream.
// @Tags Discussions
// @Accept json
// @Produce json
// @Param groupId path string true "Group chat ID"
// @Param request body dto.StartDiscussionRequest true "Topic"
// @Success 202 {object} models.DiscussionState
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/v1/multiagent/groupchats/{groupId}/discussions [post]
func (h *GroupChatsHandler) StartDiscussion(c *gin.Context) {
	var req dto.StartDiscussionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleError(c, errors.NewValidationError("invalid request body", err.Error()))
		return
	}
	groupID := c.Param("groupId")
	logger := middleware.GetRequestLogger(c)

	d, err := h.orchestrator.StartDiscussion(context.WithoutCancel(c.Request.Context()), orchestrator.DiscussionRequest{
		GroupID: groupID,
		Topic:   req.Topic,
		Rounds:  req.Rounds,
	}, newBusSink(h.bus, groupID, logger))
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, d.State())
}

func (h *GroupChatsHandler) loadGroup(c *gin.Context) (*models.GroupChat, bool) {
	id := c.Param("groupId")
	group, err := h.docDBClient.GroupChats().Get(c.Request.Context(), id)
	if err != nil {
		middleware.HandleError(c, errors.NewInternalError("failed to load group chat", err))
		return nil, false
	}
	if group == nil {
		middleware.HandleError(c, errors.NewNotFoundError("group chat", id))
		return nil, false
	}
	return group, true
}
