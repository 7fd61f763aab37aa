// Package mongodb provides MongoDB client implementation.
package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/unifiedui/multiagent-service/internal/core/docdb"
)

// Client implements the docdb.Client interface for MongoDB.
type Client struct {
	client        *mongo.Client
	agents        *AgentsCollection
	conversations *ConversationsCollection
	groupChats    *GroupChatsCollection
	groupMessages *GroupMessagesCollection
}

// ClientConfig holds MongoDB connection configuration.
type ClientConfig struct {
	URI          string
	DatabaseName string
}

// NewClient creates a new MongoDB client.
func NewClient(ctx context.Context, config *ClientConfig) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if config.URI == "" {
		return nil, fmt.Errorf("mongodb URI is required")
	}
	if config.DatabaseName == "" {
		return nil, fmt.Errorf("database name is required")
	}

	clientOpts := options.Client().ApplyURI(config.URI)
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	// Verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	db := client.Database(config.DatabaseName)

	return &Client{
		client:        client,
		agents:        NewAgentsCollection(db),
		conversations: NewConversationsCollection(db),
		groupChats:    NewGroupChatsCollection(db),
		groupMessages: NewGroupMessagesCollection(db),
	}, nil
}

// Agents returns the agent directory collection.
func (c *Client) Agents() docdb.AgentsCollection {
	return c.agents
}

// Conversations returns the conversation collection.
func (c *Client) Conversations() docdb.ConversationsCollection {
	return c.conversations
}

// GroupChats returns the group chat collection.
func (c *Client) GroupChats() docdb.GroupChatsCollection {
	return c.groupChats
}

// GroupMessages returns the group message collection.
func (c *Client) GroupMessages() docdb.GroupMessagesCollection {
	return c.groupMessages
}

// Ping verifies the connection to MongoDB.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("mongodb ping failed: %w", err)
	}
	return nil
}

// Close closes the MongoDB connection.
func (c *Client) Close(ctx context.Context) error {
	if err := c.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect from mongodb: %w", err)
	}
	return nil
}

// EnsureIndexes creates all necessary indexes for all collections.
func (c *Client) EnsureIndexes(ctx context.Context) error {
	if err := c.agents.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("failed to ensure agents indexes: %w", err)
	}
	if err := c.conversations.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("failed to ensure conversations indexes: %w", err)
	}
	if err := c.groupChats.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("failed to ensure group chats indexes: %w", err)
	}
	if err := c.groupMessages.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("failed to ensure group messages indexes: %w", err)
	}
	return nil
}

func sortDirection(order docdb.SortOrder) int {
	if order == docdb.SortOrderDesc {
		return -1
	}
	return 1
}
