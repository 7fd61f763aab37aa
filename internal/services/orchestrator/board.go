package orchestrator

import (
	"sync"

	"github.com/unifiedui/multiagent-service/internal/domain/models"
)

// Mutation is a pure function of the latest message list. It must not
// modify its input.
type Mutation func([]models.Message) []models.Message

// Board is the in-memory message list of one turn. Every change goes through
// Update so concurrent agents always compose over the latest state.
type Board struct {
	mu       sync.Mutex
	messages []models.Message
}

// NewBoard creates a board seeded with a copy of initial.
func NewBoard(initial []models.Message) *Board {
	return &Board{messages: models.CloneMessages(initial)}
}

// Update applies fn to the latest state and returns a copy of the result.
func (b *Board) Update(fn Mutation) []models.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = fn(b.messages)
	return models.CloneMessages(b.messages)
}

// Snapshot returns a copy of the current state.
func (b *Board) Snapshot() []models.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return models.CloneMessages(b.messages)
}

// Message returns the message with id.
func (b *Board) Message(id string) (models.Message, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return find(b.messages, id)
}

func find(messages []models.Message, id string) (models.Message, bool) {
	for _, m := range messages {
		if m.ID == id {
			return m, true
		}
	}
	return models.Message{}, false
}

// AppendMessage adds m at the end.
func AppendMessage(m models.Message) Mutation {
	return func(in []models.Message) []models.Message {
		out := make([]models.Message, len(in), len(in)+1)
		copy(out, in)
		return append(out, m)
	}
}

// AppendChunk appends streamed text to message id. The first chunk replaces
// the thinking placeholder.
func AppendChunk(id, chunk string) Mutation {
	return edit(id, func(m *models.Message) {
		if m.IsThinking {
			m.IsThinking = false
			m.Content = chunk
			return
		}
		m.Content += chunk
	})
}

// ReplaceContent sets the final content of message id.
func ReplaceContent(id, content string) Mutation {
	return edit(id, func(m *models.Message) {
		m.IsThinking = false
		m.Content = content
	})
}

// Finalize ends streaming for message id. A reply that never received a
// chunk ends empty rather than showing the placeholder text.
func Finalize(id string) Mutation {
	return edit(id, func(m *models.Message) {
		if m.IsThinking {
			m.IsThinking = false
			m.Content = ""
		}
	})
}

// RemoveMessage drops message id.
func RemoveMessage(id string) Mutation {
	return func(in []models.Message) []models.Message {
		out := make([]models.Message, 0, len(in))
		for _, m := range in {
			if m.ID != id {
				out = append(out, m)
			}
		}
		return out
	}
}

func edit(id string, fn func(*models.Message)) Mutation {
	return func(in []models.Message) []models.Message {
		out := models.CloneMessages(in)
		for i := range out {
			if out[i].ID == id {
				fn(&out[i])
				break
			}
		}
		return out
	}
}
