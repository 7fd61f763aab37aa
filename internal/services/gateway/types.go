package gateway

import (
	openai "github.com/sashabaranov/go-openai"

	"github.com/unifiedui/multiagent-service/internal/domain/models"
)

// Target is the credential and endpoint for one call. The client never
// picks a credential on its own.
type Target struct {
	APIKey string
	// BaseURL overrides the configured base URL when set.
	BaseURL string
}

// CompletionRequest is the FastGPT chat completion body.
type CompletionRequest struct {
	ChatID    string                         `json:"chatId,omitempty"`
	Stream    bool                           `json:"stream"`
	Detail    bool                           `json:"detail"`
	Variables map[string]any                 `json:"variables,omitempty"`
	Messages  []openai.ChatCompletionMessage `json:"messages"`
}

// ToChatMessages converts a transcript into completion history. Placeholders
// and service notices are not sent.
func ToChatMessages(messages []models.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		if m.IsThinking || m.IsSystem {
			continue
		}
		role := openai.ChatMessageRoleAssistant
		if m.IsUser {
			role = openai.ChatMessageRoleUser
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return out
}

// UserMessage builds a single user-role entry.
func UserMessage(content string) openai.ChatCompletionMessage {
	return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: content}
}

// FirstContent returns the first choice's message text.
func FirstContent(resp *openai.ChatCompletionResponse) string {
	if resp == nil || len(resp.Choices) == 0 {
		return ""
	}
	return resp.Choices[0].Message.Content
}
