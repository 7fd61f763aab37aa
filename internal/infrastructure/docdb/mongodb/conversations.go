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

// ConversationsCollectionName is the name of the conversations collection.
const ConversationsCollectionName = "conversations"

// ConversationsCollection implements docdb.ConversationsCollection for MongoDB.
type ConversationsCollection struct {
	collection *mongo.Collection
}

// NewConversationsCollection creates a new conversations collection wrapper.
func NewConversationsCollection(db *mongo.Database) *ConversationsCollection {
	return &ConversationsCollection{collection: db.Collection(ConversationsCollectionName)}
}

// Create inserts a new conversation at version 1.
func (c *ConversationsCollection) Create(ctx context.Context, conversation *models.Conversation) error {
	if conversation.ID == "" {
		return fmt.Errorf("conversation ID is required")
	}

	now := time.Now().UTC()
	conversation.CreatedAt = now
	conversation.UpdatedAt = now
	conversation.Version = 1
	if conversation.Messages == nil {
		conversation.Messages = []models.Message{}
	}

	if _, err := c.collection.InsertOne(ctx, conversation); err != nil {
		return fmt.Errorf("failed to insert conversation: %w", err)
	}
	return nil
}

// Get retrieves a conversation by ID.
func (c *ConversationsCollection) Get(ctx context.Context, id string) (*models.Conversation, error) {
	var conversation models.Conversation
	err := c.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&conversation)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return &conversation, nil
}

// List returns conversation summaries ordered by updatedAt.
func (c *ConversationsCollection) List(ctx context.Context, opts *docdb.ListOptions) ([]*models.ConversationSummary, error) {
	findOpts := options.Find().SetProjection(bson.M{"messages": 0})
	order := docdb.SortOrderDesc
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
	findOpts.SetSort(bson.D{{Key: "updatedAt", Value: sortDirection(order)}})

	cursor, err := c.collection.Find(ctx, bson.M{}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer cursor.Close(ctx)

	summaries := []*models.ConversationSummary{}
	if err := cursor.All(ctx, &summaries); err != nil {
		return nil, fmt.Errorf("failed to decode conversations: %w", err)
	}
	return summaries, nil
}

// ReplaceMessages overwrites the message list when the version matches.
func (c *ConversationsCollection) ReplaceMessages(ctx context.Context, id string, expectedVersion int64, messages []models.Message) (*models.Conversation, error) {
	if messages == nil {
		messages = []models.Message{}
	}

	filter := bson.M{"_id": id, "version": expectedVersion}
	update := bson.M{
		"$set": bson.M{"messages": messages, "updatedAt": time.Now().UTC()},
		"$inc": bson.M{"version": 1},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.Conversation
	err := c.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated)
	if err == nil {
		return &updated, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to replace conversation messages: %w", err)
	}

	latest, getErr := c.Get(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	if latest == nil {
		return nil, fmt.Errorf("conversation %s: %w", id, docdb.ErrNotFound)
	}
	return nil, &docdb.ConflictError{
		ConversationID:  id,
		ExpectedVersion: expectedVersion,
		Latest:          latest,
	}
}

// Delete removes a conversation.
func (c *ConversationsCollection) Delete(ctx context.Context, id string) error {
	result, err := c.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("conversation %s: %w", id, docdb.ErrNotFound)
	}
	return nil
}

// EnsureIndexes creates necessary indexes for the conversations collection.
func (c *ConversationsCollection) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "updatedAt", Value: -1}},
			Options: options.Index().SetName("idx_updated_at"),
		},
	}

	if _, err := c.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create conversations indexes: %w", err)
	}
	return nil
}
