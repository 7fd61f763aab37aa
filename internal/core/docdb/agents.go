package docdb

import (
	"context"

	"github.com/unifiedui/multiagent-service/internal/domain/models"
)

// AgentsCollection defines the interface for agent directory operations.
// Get and GetByName return nil, nil when nothing matches.
type AgentsCollection interface {
	// Create inserts a new agent.
	Create(ctx context.Context, agent *models.Agent) error

	// Get retrieves an agent by ID.
	Get(ctx context.Context, id string) (*models.Agent, error)

	// GetByName retrieves an agent by its exact display name.
	GetByName(ctx context.Context, name string) (*models.Agent, error)

	// List returns all agents ordered by name.
	List(ctx context.Context) ([]*models.Agent, error)

	// UpdateCredentials replaces the stored (sealed) API key and base URL.
	UpdateCredentials(ctx context.Context, id, sealedAPIKey, baseURL string) error

	// UpdateStatus overwrites the presence status.
	UpdateStatus(ctx context.Context, id string, status models.AgentStatus) error

	// EnsureIndexes creates necessary indexes for the collection.
	EnsureIndexes(ctx context.Context) error
}
