package models

import (
	"strings"
	"time"
)

const (
	// DefaultConversationTitle is used when no user message carries text.
	DefaultConversationTitle = "新对话"

	titleMaxRunes = 20
)

// Conversation is a persisted 1:1 chat transcript.
//
// Version increases by one on every successful save and acts as the
// precondition for optimistic concurrency.
type Conversation struct {
	ID        string    `json:"id" bson:"_id"`
	Title     string    `json:"title" bson:"title"`
	Messages  []Message `json:"messages" bson:"messages"`
	Version   int64     `json:"version" bson:"version"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// ConversationSummary is the list projection of a conversation.
type ConversationSummary struct {
	ID        string    `json:"id" bson:"_id"`
	Title     string    `json:"title" bson:"title"`
	Version   int64     `json:"version" bson:"version"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// DeriveTitle builds a title from the first user message.
func DeriveTitle(messages []Message) string {
	for _, m := range messages {
		if !m.IsUser {
			continue
		}
		text := strings.TrimSpace(m.Content)
		if text == "" {
			continue
		}
		runes := []rune(text)
		if len(runes) > titleMaxRunes {
			return string(runes[:titleMaxRunes]) + "..."
		}
		return text
	}
	return DefaultConversationTitle
}
