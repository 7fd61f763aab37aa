package docdb

import (
	"context"

	"github.com/unifiedui/multiagent-service/internal/domain/models"
)

// ConversationsCollection defines the interface for 1:1 transcript storage.
type ConversationsCollection interface {
	// Create inserts a new conversation at version 1.
	Create(ctx context.Context, conversation *models.Conversation) error

	// Get retrieves a conversation by ID, or nil if it does not exist.
	Get(ctx context.Context, id string) (*models.Conversation, error)

	// List returns conversation summaries ordered by updatedAt.
	List(ctx context.Context, opts *ListOptions) ([]*models.ConversationSummary, error)

	// ReplaceMessages overwrites the full message list if the stored version
	// equals expectedVersion. On mismatch it returns a *ConflictError; if the
	// conversation is missing it returns ErrNotFound.
	ReplaceMessages(ctx context.Context, id string, expectedVersion int64, messages []models.Message) (*models.Conversation, error)

	// Delete removes a conversation.
	Delete(ctx context.Context, id string) error

	// EnsureIndexes creates necessary indexes for the collection.
	EnsureIndexes(ctx context.Context) error
}
