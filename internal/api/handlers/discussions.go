package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/unifiedui/multiagent-service/internal/api/middleware"
	"github.com/unifiedui/multiagent-service/internal/domain/errors"
	"github.com/unifiedui/multiagent-service/internal/services/orchestrator"
)

// DiscussionsHandler controls running discussions.
type DiscussionsHandler struct {
	orchestrator *orchestrator.Orchestrator
}

// NewDiscussionsHandler creates a new DiscussionsHandler.
func NewDiscussionsHandler(orch *orchestrator.Orchestrator) *DiscussionsHandler {
	return &DiscussionsHandler{orchestrator: orch}
}

// Get handles GET /discussions/{discussionId}
// @Summary Get discussion progress
// @Tags Discussions
// @Produce json
// @Param discussionId path string true "Discussion ID"
// @Success 200 {object} models.DiscussionState
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/v1/multiagent/discussions/{discussionId} [get]
func (h *DiscussionsHandler) Get(c *gin.Context) {
	state, err := h.orchestrator.DiscussionState(c.Request.Context(), c.Param("discussionId"))
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// Pause handles POST /discussions/{discussionId}/pause
// @Summary Pause a discussion
// @Description The current speaker finishes; the next round waits until resumed.
// @Tags Discussions
// @Produce json
// @Param discussionId path string true "Discussion ID"
// @Success 200 {object} models.DiscussionState
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /api/v1/multiagent/discussions/{discussionId}/pause [post]
func (h *DiscussionsHandler) Pause(c *gin.Context) {
	h.control(c, (*orchestrator.Discussion).Pause)
}

// Resume handles POST /discussions/{discussionId}/resume
// @Summary Resume a paused discussion
// @Tags Discussions
// @Produce json
// @Param discussionId path string true "Discussion ID"
// @Success 200 {object} models.DiscussionState
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /api/v1/multiagent/discussions/{discussionId}/resume [post]
func (h *DiscussionsHandler) Resume(c *gin.Context) {
	h.control(c, (*orchestrator.Discussion).Resume)
}

// Abort handles POST /discussions/{discussionId}/abort
// @Summary Abort a discussion
// @Description Cancels the in-flight speaker. Nothing further is stored.
// @Tags Discussions
// @Produce json
// @Param discussionId path string true "Discussion ID"
// @Success 200 {object} models.DiscussionState
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/v1/multiagent/discussions/{discussionId}/abort [post]
func (h *DiscussionsHandler) Abort(c *gin.Context) {
	h.control(c, func(d *orchestrator.Discussion) error {
		d.Abort()
		return nil
	})
}

func (h *DiscussionsHandler) control(c *gin.Context, action func(*orchestrator.Discussion) error) {
	id := c.Param("discussionId")
	d, ok := h.orchestrator.Discussion(id)
	if !ok {
		middleware.HandleError(c, errors.NewNotFoundError("running discussion", id))
		return
	}
	if err := action(d); err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, d.State())
}
