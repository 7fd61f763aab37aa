// Package models contains domain models for the multi-agent chat service.
package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	// ThinkingPlaceholder is shown in an agent bubble until its first chunk arrives.
	ThinkingPlaceholder = "思考中......"

	// UserDisplayName is the author name attached to user messages.
	UserDisplayName = "我"

	// SystemAgentName is the author name attached to service-generated notices.
	SystemAgentName = "系统"

	systemAgentColor = "#909399"
	userAgentColor   = "#409EFF"
)

// Message is a single chat bubble in a conversation or group chat.
type Message struct {
	ID         string    `json:"id" bson:"id"`
	AgentName  string    `json:"agentName" bson:"agentName"`
	AgentColor string    `json:"agentColor" bson:"agentColor"`
	Content    string    `json:"content" bson:"content"`
	Timestamp  time.Time `json:"timestamp" bson:"timestamp"`
	IsUser     bool      `json:"isUser" bson:"isUser"`
	IsThinking bool      `json:"isThinking,omitempty" bson:"isThinking,omitempty"`
	IsSystem   bool      `json:"isSystem,omitempty" bson:"isSystem,omitempty"`
}

// NewMessageID returns a fresh opaque message identifier.
func NewMessageID() string {
	return uuid.NewString()
}

// NewUserMessage creates a message authored by the user.
func NewUserMessage(content string) Message {
	return Message{
		ID:         NewMessageID(),
		AgentName:  UserDisplayName,
		AgentColor: userAgentColor,
		Content:    content,
		Timestamp:  time.Now().UTC(),
		IsUser:     true,
	}
}

// NewPlaceholder creates the thinking bubble shown while an agent response is pending.
func NewPlaceholder(agent *Agent) Message {
	return Message{
		ID:         NewMessageID(),
		AgentName:  agent.Name,
		AgentColor: agent.Color,
		Content:    ThinkingPlaceholder,
		Timestamp:  time.Now().UTC(),
		IsThinking: true,
	}
}

// NewSystemMessage creates a notice that no agent authored.
func NewSystemMessage(content string) Message {
	return Message{
		ID:         NewMessageID(),
		AgentName:  SystemAgentName,
		AgentColor: systemAgentColor,
		Content:    content,
		Timestamp:  time.Now().UTC(),
		IsSystem:   true,
	}
}

// IsAgentReply reports whether the message is a finished agent answer.
func (m Message) IsAgentReply() bool {
	return !m.IsUser && !m.IsSystem && !m.IsThinking
}

// CloneMessages returns a copy of msgs that shares no backing array.
func CloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return []Message{}
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}
