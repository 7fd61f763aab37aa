package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/unifiedui/multiagent-service/internal/core/docdb"
	"github.com/unifiedui/multiagent-service/internal/domain/models"
)

const (
	// GroupChatsCollectionName is the name of the group chats collection.
	GroupChatsCollectionName = "group_chats"
	// GroupMessagesCollectionName is the name of the group messages collection.
	GroupMessagesCollectionName = "group_messages"
)

// GroupChatsCollection implements docdb.GroupChatsCollection for MongoDB.
type GroupChatsCollection struct {
	collection *mongo.Collection
}

// NewGroupChatsCollection creates a new group chats collection wrapper.
func NewGroupChatsCollection(db *mongo.Database) *GroupChatsCollection {
	return &GroupChatsCollection{collection: db.Collection(GroupChatsCollectionName)}
}

// Create inserts a new group chat.
func (c *GroupChatsCollection) Create(ctx context.Context, group *models.GroupChat) error {
	if group.ID == "" {
		return fmt.Errorf("group chat ID is required")
	}

	group.CreatedAt = time.Now().UTC()
	group.UpdatedAt = group.CreatedAt

	if _, err := c.collection.InsertOne(ctx, group); err != nil {
		return fmt.Errorf("failed to insert group chat: %w", err)
	}
	return nil
}

// Get retrieves a group chat by ID.
func (c *GroupChatsCollection) Get(ctx context.Context, id string) (*models.GroupChat, error) {
	var group models.GroupChat
	err := c.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&group)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get group chat: %w", err)
	}
	return &group, nil
}

// List returns all group chats ordered by creation time.
func (c *GroupChatsCollection) List(ctx context.Context) ([]*models.GroupChat, error) {
	cursor, err := c.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list group chats: %w", err)
	}
	defer cursor.Close(ctx)

	groups := []*models.GroupChat{}
	if err := cursor.All(ctx, &groups); err != nil {
		return nil, fmt.Errorf("failed to decode group chats: %w", err)
	}
	return groups, nil
}

// EnsureIndexes creates necessary indexes for the group chats collection.
func (c *GroupChatsCollection) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "createdAt", Value: 1}},
			Options: options.Index().SetName("idx_created_at"),
		},
	}

	if _, err := c.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create group chats indexes: %w", err)
	}
	return nil
}

// GroupMessagesCollection implements docdb.GroupMessagesCollection for MongoDB.
type GroupMessagesCollection struct {
	collection *mongo.Collection
}

// NewGroupMessagesCollection creates a new group messages collection wrapper.
func NewGroupMessagesCollection(db *mongo.Database) *GroupMessagesCollection {
	return &GroupMessagesCollection{collection: db.Collection(GroupMessagesCollectionName)}
}

// Append inserts the message unless (groupId, messageId) is already stored.
func (c *GroupMessagesCollection) Append(ctx context.Context, message *models.GroupMessage) (bool, error) {
	if message.GroupID == "" || message.MessageID == "" {
		return false, fmt.Errorf("group ID and message ID are required")
	}
	if message.ID == "" {
		message.ID = message.GroupID + ":" + message.MessageID
	}

	_, err := c.collection.InsertOne(ctx, message)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return true, nil
		}
		return false, fmt.Errorf("failed to insert group message: %w", err)
	}
	return false, nil
}

// List returns the messages of a group in chronological order.
func (c *GroupMessagesCollection) List(ctx context.Context, groupID string, opts *docdb.ListOptions) ([]*models.GroupMessage, error) {
	findOpts := options.Find()
	order := docdb.SortOrderAsc
	if opts != nil {
		if opts.Limit > 0 {
			findOpts.SetLimit(opts.Limit)
		}
		if opts.Skip > 0 {
			findOpts.SetSkip(opts.Skip)
		}
		if opts.OrderBy != "" {
			order = opts.OrderBy
		}
	}
	findOpts.SetSort(bson.D{{Key: "timestamp", Value: sortDirection(order)}})

	cursor, err := c.collection.Find(ctx, bson.M{"groupId": groupID}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to list group messages: %w", err)
	}
	defer cursor.Close(ctx)

	messages := []*models.GroupMessage{}
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode group messages: %w", err)
	}

	if order == docdb.SortOrderDesc {
		for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
			messages[i], messages[j] = messages[j], messages[i]
		}
	}
	return messages, nil
}

// EnsureIndexes creates necessary indexes for the group messages collection.
func (c *GroupMessagesCollection) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "groupId", Value: 1},
				{Key: "messageId", Value: 1},
			},
			Options: options.Index().SetName("idx_group_message").SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "groupId", Value: 1},
				{Key: "timestamp", Value: 1},
			},
			Options: options.Index().SetName("idx_group_timestamp"),
		},
	}

	if _, err := c.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create group messages indexes: %w", err)
	}
	return nil
}
