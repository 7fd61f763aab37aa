package dto

import (
	"time"

	"github.com/unifiedui/multiagent-service/internal/domain/models"
	"github.com/unifiedui/multiagent-service/internal/services/orchestrator"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ConflictResponse is returned when a save loses a version race. Latest is
// the stored conversation the caller should merge into.
type ConflictResponse struct {
	Code    string               `json:"code"`
	Message string               `json:"message"`
	Latest  *models.Conversation `json:"latest,omitempty"`
}

// AgentResponse is an agent as shown to clients. The credential itself is
// never included.
type AgentResponse struct {
	*models.Agent
	HasAPIKey bool `json:"hasApiKey"`
}

// NewAgentResponse redacts agent for output.
func NewAgentResponse(agent *models.Agent) *AgentResponse {
	return &AgentResponse{
		Agent:     agent.Redacted(),
		HasAPIKey: agent.HasCredential(),
	}
}

// NewAgentResponses redacts a list of agents.
func NewAgentResponses(agents []*models.Agent) []*AgentResponse {
	out := make([]*AgentResponse, 0, len(agents))
	for _, a := range agents {
		out = append(out, NewAgentResponse(a))
	}
	return out
}

// ListAgentsResponse represents the response for listing agents.
type ListAgentsResponse struct {
	Agents []*AgentResponse `json:"agents"`
}

// ChatTurnResponse is the non-streaming result of a 1:1 turn.
type ChatTurnResponse struct {
	TurnID       string               `json:"turnId"`
	ChatID       string               `json:"chatId"`
	Messages     []models.Message     `json:"messages"`
	Conversation *models.Conversation `json:"conversation,omitempty"`
	Persisted    bool                 `json:"persisted"`
	SaveError    string               `json:"saveError,omitempty"`
}

// NewChatTurnResponse converts an orchestrator result.
func NewChatTurnResponse(res *orchestrator.TurnResult) *ChatTurnResponse {
	out := &ChatTurnResponse{
		TurnID:       res.TurnID,
		ChatID:       res.ChatID,
		Messages:     res.Messages,
		Conversation: res.Conversation,
		Persisted:    res.Persisted,
	}
	if res.SaveError != nil {
		out.SaveError = res.SaveError.Error()
	}
	return out
}

// SaveMessagesResponse acknowledges a conversation save.
type SaveMessagesResponse struct {
	UpdatedAt time.Time `json:"updatedAt"`
	Version   int64     `json:"version"`
}

// ListConversationsResponse represents the response for listing conversations.
type ListConversationsResponse struct {
	Conversations []*models.ConversationSummary `json:"conversations"`
}

// GroupChatResponse is a group chat with its members normalized to agents.
type GroupChatResponse struct {
	*models.GroupChat
	Members []*AgentResponse `json:"members"`
}

// ListGroupChatsResponse represents the response for listing group chats.
type ListGroupChatsResponse struct {
	GroupChats []*models.GroupChat `json:"groupChats"`
}

// GroupMessagesResponse lists stored group messages in chronological order.
type GroupMessagesResponse struct {
	Messages []models.Message `json:"messages"`
}

// AppendGroupMessageResponse reports an append. AlreadyExists is true when
// the message id was stored before.
type AppendGroupMessageResponse struct {
	Message       *models.GroupMessage `json:"message,omitempty"`
	AlreadyExists bool                 `json:"alreadyExists,omitempty"`
}

// GroupTurnResponse is returned when a group turn starts without streaming.
// Agent replies follow on the group's event stream.
type GroupTurnResponse struct {
	TurnID       string           `json:"turnId"`
	UserMessage  *models.Message  `json:"userMessage,omitempty"`
	Placeholders []models.Message `json:"placeholders"`
	Notice       *models.Message  `json:"notice,omitempty"`
}

// NewGroupTurnResponse converts a started group turn.
func NewGroupTurnResponse(turn *orchestrator.GroupTurn) *GroupTurnResponse {
	placeholders := turn.Placeholders
	if placeholders == nil {
		placeholders = []models.Message{}
	}
	return &GroupTurnResponse{
		TurnID:       turn.ID(),
		UserMessage:  turn.UserMessage,
		Placeholders: placeholders,
		Notice:       turn.Notice,
	}
}
