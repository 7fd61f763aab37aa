// Package docdb defines the document database client interface.
package docdb

import (
	"context"
)

// Client defines the interface for a document database client.
type Client interface {
	// Agents returns the agent directory collection.
	Agents() AgentsCollection

	// Conversations returns the 1:1 conversation collection.
	Conversations() ConversationsCollection

	// GroupChats returns the group chat collection.
	GroupChats() GroupChatsCollection

	// GroupMessages returns the per-message group chat collection.
	GroupMessages() GroupMessagesCollection

	// EnsureIndexes creates necessary indexes for all collections.
	EnsureIndexes(ctx context.Context) error

	// Ping verifies the database connection.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close(ctx context.Context) error
}
