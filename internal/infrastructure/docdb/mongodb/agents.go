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

// AgentsCollectionName is the name of the agents collection.
const AgentsCollectionName = "agents"

// AgentsCollection implements docdb.AgentsCollection for MongoDB.
type AgentsCollection struct {
	collection *mongo.Collection
}

// NewAgentsCollection creates a new agents collection wrapper.
func NewAgentsCollection(db *mongo.Database) *AgentsCollection {
	return &AgentsCollection{collection: db.Collection(AgentsCollectionName)}
}

// Create inserts a new agent.
func (c *AgentsCollection) Create(ctx context.Context, agent *models.Agent) error {
	if agent.ID == "" {
		return fmt.Errorf("agent ID is required")
	}

	agent.CreatedAt = time.Now().UTC()
	agent.UpdatedAt = agent.CreatedAt

	if _, err := c.collection.InsertOne(ctx, agent); err != nil {
		return fmt.Errorf("failed to insert agent: %w", err)
	}
	return nil
}

// Get retrieves an agent by ID.
func (c *AgentsCollection) Get(ctx context.Context, id string) (*models.Agent, error) {
	return c.findOne(ctx, bson.M{"_id": id})
}

// GetByName retrieves an agent by exact name.
func (c *AgentsCollection) GetByName(ctx context.Context, name string) (*models.Agent, error) {
	return c.findOne(ctx, bson.M{"name": name})
}

func (c *AgentsCollection) findOne(ctx context.Context, filter bson.M) (*models.Agent, error) {
	var agent models.Agent
	err := c.collection.FindOne(ctx, filter).Decode(&agent)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}
	return &agent, nil
}

// List returns all agents ordered by name.
func (c *AgentsCollection) List(ctx context.Context) ([]*models.Agent, error) {
	cursor, err := c.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	defer cursor.Close(ctx)

	agents := []*models.Agent{}
	if err := cursor.All(ctx, &agents); err != nil {
		return nil, fmt.Errorf("failed to decode agents: %w", err)
	}
	return agents, nil
}

// UpdateCredentials replaces the stored API key and base URL.
func (c *AgentsCollection) UpdateCredentials(ctx context.Context, id, sealedAPIKey, baseURL string) error {
	return c.update(ctx, id, bson.M{"apiKey": sealedAPIKey, "baseUrl": baseURL})
}

// UpdateStatus overwrites the presence status.
func (c *AgentsCollection) UpdateStatus(ctx context.Context, id string, status models.AgentStatus) error {
	return c.update(ctx, id, bson.M{"status": status})
}

func (c *AgentsCollection) update(ctx context.Context, id string, fields bson.M) error {
	fields["updatedAt"] = time.Now().UTC()

	result, err := c.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		return fmt.Errorf("failed to update agent: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("agent %s: %w", id, docdb.ErrNotFound)
	}
	return nil
}

// EnsureIndexes creates necessary indexes for the agents collection.
func (c *AgentsCollection) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetName("idx_name").SetUnique(true),
		},
	}

	if _, err := c.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create agents indexes: %w", err)
	}
	return nil
}
