package docdb

import (
	"context"

	"github.com/unifiedui/multiagent-service/internal/domain/models"
)

// GroupChatsCollection defines the interface for group chat definitions.
type GroupChatsCollection interface {
	// Create inserts a new group chat.
	Create(ctx context.Context, group *models.GroupChat) error

	// Get retrieves a group chat by ID, or nil if it does not exist.
	Get(ctx context.Context, id string) (*models.GroupChat, error)

	// List returns all group chats.
	List(ctx context.Context) ([]*models.GroupChat, error)

	// EnsureIndexes creates necessary indexes for the collection.
	EnsureIndexes(ctx context.Context) error
}

// GroupMessagesCollection defines the interface for per-message group storage.
type GroupMessagesCollection interface {
	// Append stores a message once per (groupId, messageId). A repeated call
	// reports alreadyExists and leaves the stored message untouched.
	Append(ctx context.Context, message *models.GroupMessage) (alreadyExists bool, err error)

	// List returns the messages of a group ordered by timestamp. With
	// SortOrderDesc and a limit it returns the most recent page, still in
	// chronological order.
	List(ctx context.Context, groupID string, opts *ListOptions) ([]*models.GroupMessage, error)

	// EnsureIndexes creates necessary indexes for the collection.
	EnsureIndexes(ctx context.Context) error
}
