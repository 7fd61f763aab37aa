package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/unifiedui/multiagent-service/internal/api/dto"
	"github.com/unifiedui/multiagent-service/internal/api/middleware"
	"github.com/unifiedui/multiagent-service/internal/domain/errors"
	"github.com/unifiedui/multiagent-service/internal/domain/models"
	"github.com/unifiedui/multiagent-service/internal/services/directory"
)

// AgentsHandler handles agent directory endpoints.
type AgentsHandler struct {
	directory directory.Service
}

// NewAgentsHandler creates a new AgentsHandler.
func NewAgentsHandler(directory directory.Service) *AgentsHandler {
	return &AgentsHandler{directory: directory}
}

// ListAgents handles GET /agents
// @Summary List agents
// @Description Lists every registered agent. Credentials are never returned.
// @Tags Agents
// @Produce json
// @Success 200 {object} dto.ListAgentsResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /api/v1/multiagent/agents [get]
func (h *AgentsHandler) ListAgents(c *gin.Context) {
	agents, err := h.directory.List(c.Request.Context())
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ListAgentsResponse{Agents: dto.NewAgentResponses(agents)})
}

// GetAgent handles GET /agents/{agentId}
// @Summary Get an agent
// @Tags Agents
// @Produce json
// @Param agentId path string true "Agent ID"
// @Success 200 {object} dto.AgentResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/v1/multiagent/agents/{agentId} [get]
func (h *AgentsHandler) GetAgent(c *gin.Context) {
	agent, err := h.directory.Get(c.Request.Context(), c.Param("agentId"))
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewAgentResponse(agent))
}

// GetDefaultAgent handles GET /agents/default
// @Summary Get the default agent
// @Description Returns the agent used when dispatch output is unusable
// @Tags Agents
// @Produce json
// @Success 200 {object} dto.AgentResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/v1/multiagent/agents/default [get]
func (h *AgentsHandler) GetDefaultAgent(c *gin.Context) {
	agent, err := h.directory.Default(c.Request.Context())
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewAgentResponse(agent))
}

// CreateAgent handles POST /agents
// @Summary Register an agent
// @Tags Agents
// @Accept json
// @Produce json
// @Param request body dto.CreateAgentRequest true "Agent definition"
// @Success 201 {object} dto.AgentResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /api/v1/multiagent/agents [post]
func (h *AgentsHandler) CreateAgent(c *gin.Context) {
	var req dto.CreateAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleError(c, errors.NewValidationError("invalid request body", err.Error()))
		return
	}

	agent, err := h.directory.Create(c.Request.Context(), &models.Agent{
		ID:           req.ID,
		Name:         req.Name,
		Role:         req.Role,
		Introduction: req.Introduction,
		Color:        req.Color,
		Status:       req.Status,
		APIKey:       req.APIKey,
		BaseURL:      req.BaseURL,
	})
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.NewAgentResponse(agent))
}

// UpdateCredentials handles PUT /agents/{agentId}/credentials
// @Summary Replace an agent's API key
// @Description An empty apiKey clears the credential
// @Tags Agents
// @Accept json
// @Param agentId path string true "Agent ID"
// @Param request body dto.UpdateCredentialsRequest true "Credential"
// @Success 204
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/v1/multiagent/agents/{agentId}/credentials [put]
func (h *AgentsHandler) UpdateCredentials(c *gin.Context) {
	var req dto.UpdateCredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleError(c, errors.NewValidationError("invalid request body", err.Error()))
		return
	}
	if err := h.directory.UpdateCredentials(c.Request.Context(), c.Param("agentId"), req.APIKey, req.BaseURL); err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UpdateStatus handles PUT /agents/{agentId}/status
// @Summary Change an agent's status
// @Tags Agents
// @Accept json
// @Param agentId path string true "Agent ID"
// @Param request body dto.UpdateStatusRequest true "Status"
// @Success 204
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/v1/multiagent/agents/{agentId}/status [put]
func (h *AgentsHandler) UpdateStatus(c *gin.Context) {
	var req dto.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleError(c, errors.NewValidationError("invalid request body", err.Error()))
		return
	}
	if err := h.directory.UpdateStatus(c.Request.Context(), c.Param("agentId"), req.Status); err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
