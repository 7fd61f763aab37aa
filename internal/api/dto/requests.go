// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	openai "github.com/sashabaranov/go-openai"

	"github.com/unifiedui/multiagent-service/internal/domain/models"
)

// CreateAgentRequest represents the request body for registering an agent.
type CreateAgentRequest struct {
	ID           string             `json:"id"`
	Name         string             `json:"name" binding:"required,max=64"`
	Role         string             `json:"role" binding:"max=64"`
	Introduction string             `json:"introduction" binding:"max=2000"`
	Color        string             `json:"color"`
	Status       models.AgentStatus `json:"status"`
	APIKey       string             `json:"apiKey"`
	BaseURL      string             `json:"baseUrl" binding:"omitempty,url"`
}

// UpdateCredentialsRequest replaces an agent's completion credential.
type UpdateCredentialsRequest struct {
	APIKey  string `json:"apiKey"`
	BaseURL string `json:"baseUrl" binding:"omitempty,url"`
}

// UpdateStatusRequest changes an agent's presence indicator.
type UpdateStatusRequest struct {
	Status models.AgentStatus `json:"status" binding:"required"`
}

// ChatTurnRequest represents one user message in a 1:1 conversation.
type ChatTurnRequest struct {
	Content string `json:"content" binding:"required,min=1,max=32000"`
	// Stream selects an SSE response. It defaults to true.
	Stream *bool `json:"stream"`
}

// WantsStream reports whether the caller asked for SSE.
func (r *ChatTurnRequest) WantsStream() bool {
	return r.Stream == nil || *r.Stream
}

// SaveMessagesRequest replaces a conversation's message list. Without
// Version the write retries on conflict.
type SaveMessagesRequest struct {
	Messages []models.Message `json:"messages" binding:"required"`
	Version  *int64           `json:"version"`
}

// ListQuery holds pagination query parameters.
type ListQuery struct {
	Limit int64 `form:"limit" binding:"omitempty,min=1,max=200"`
}

// CreateGroupChatRequest represents the request body for creating a group chat.
// Members may be bare ids or expanded agent objects.
type CreateGroupChatRequest struct {
	ID          string            `json:"id"`
	Name        string            `json:"name" binding:"required,max=64"`
	Description string            `json:"description" binding:"max=2000"`
	Avatar      string            `json:"avatar"`
	AgentIDs    []models.AgentRef `json:"agentIds" binding:"required,min=1"`
}

// AppendGroupMessageRequest stores one finished message in a group chat.
type AppendGroupMessageRequest struct {
	MessageID  string `json:"messageId" binding:"required"`
	AgentName  string `json:"agentName"`
	AgentColor string `json:"agentColor"`
	Content    string `json:"content"`
	IsUser     bool   `json:"isUser"`
}

// GroupTurnRequest represents one user message in a group chat.
type GroupTurnRequest struct {
	Content string `json:"content" binding:"required,min=1,max=32000"`
	Stream  bool   `json:"stream"`
}

// StartDiscussionRequest starts a multi-round discussion.
type StartDiscussionRequest struct {
	Topic  string `json:"topic" binding:"required,min=1,max=32000"`
	Rounds int    `json:"rounds" binding:"omitempty,min=1"`
}

// DispatchRequest asks the dispatch center for responders.
type DispatchRequest struct {
	ChatID   string                         `json:"chatId"`
	GroupID  string                         `json:"groupId"`
	Messages []openai.ChatCompletionMessage `json:"messages" binding:"required,min=1"`
	Discuss  bool                           `json:"discuss"`
}
