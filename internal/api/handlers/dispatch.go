package handlers

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/unifiedui/multiagent-service/internal/api/dto"
	"github.com/unifiedui/multiagent-service/internal/api/middleware"
	"github.com/unifiedui/multiagent-service/internal/domain/errors"
	"github.com/unifiedui/multiagent-service/internal/services/dispatch"
	"github.com/unifiedui/multiagent-service/internal/services/gateway"
)

// DispatchHandler exposes the dispatch center.
type DispatchHandler struct {
	resolver *dispatch.Resolver
}

// NewDispatchHandler creates a new DispatchHandler.
func NewDispatchHandler(resolver *dispatch.Resolver) *DispatchHandler {
	return &DispatchHandler{resolver: resolver}
}

func (h *DispatchHandler) bind(c *gin.Context) (dispatch.Request, bool) {
	var req dto.DispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleError(c, errors.NewValidationError("invalid request body", err.Error()))
		return dispatch.Request{}, false
	}
	return dispatch.Request{
		ChatID:   req.ChatID,
		GroupID:  req.GroupID,
		Messages: req.Messages,
		Discuss:  req.Discuss,
	}, true
}

// Dispatch handles POST /dispatch
// @Summary Ask the dispatch center
// @Description Returns the raw completion; choices[0].message.content holds a JSON candidate list
// @Tags Dispatch
// @Accept json
// @Produce json
// @Param request body dto.DispatchRequest true "Dispatch question"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /api/v1/multiagent/dispatch [post]
func (h *DispatchHandler) Dispatch(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}
	resp, err := h.resolver.Complete(c.Request.Context(), req)
	if err != nil {
		middleware.HandleError(c, dispatchError(err))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Resolve handles POST /dispatch/resolve
// @Summary Resolve responders
// @Description Parses the dispatch output, falling back to the default agent
// @Tags Dispatch
// @Accept json
// @Produce json
// @Param request body dto.DispatchRequest true "Dispatch question"
// @Success 200 {object} dispatch.Decision
// @Failure 400 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /api/v1/multiagent/dispatch/resolve [post]
func (h *DispatchHandler) Resolve(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}
	decision, err := h.resolver.Resolve(c.Request.Context(), req)
	if err != nil {
		middleware.HandleError(c, dispatchError(err))
		return
	}
	c.JSON(http.StatusOK, decision)
}

// dispatchError maps dispatch failures to domain errors.
func dispatchError(err error) error {
	if _, ok := errors.GetDomainError(err); ok {
		return err
	}
	if stderrors.Is(err, dispatch.ErrDispatchNotConfigured) {
		return errors.NewNotConfiguredError("dispatch credential", err)
	}
	switch gateway.Classify(err) {
	case gateway.KindRateLimit:
		return errors.NewRateLimitedError("dispatch center", err)
	case gateway.KindTransient:
		return errors.NewServiceUnavailableError("dispatch center", err)
	default:
		return errors.NewBadGatewayError("dispatch center", err)
	}
}
