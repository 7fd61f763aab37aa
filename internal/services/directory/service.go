// Package directory is the agent directory: lookup, default agent, member
// resolution and credential management. Credentials are sealed at rest and
// opened only when an agent is handed to a caller inside the service.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/unifiedui/multiagent-service/internal/core/cache"
	"github.com/unifiedui/multiagent-service/internal/core/docdb"
	domainerrors "github.com/unifiedui/multiagent-service/internal/domain/errors"
	"github.com/unifiedui/multiagent-service/internal/domain/models"
	"github.com/unifiedui/multiagent-service/internal/pkg/encryption"
)

const defaultAgentColor = "#67C23A"

// Service resolves agents.
//
// Agents returned by Get, GetByName, Default, Resolve and ResolveRefs carry
// the plaintext API key. Callers exposing agents to clients must use Redacted.
type Service interface {
	Get(ctx context.Context, id string) (*models.Agent, error)
	GetByName(ctx context.Context, name string) (*models.Agent, error)
	Default(ctx context.Context) (*models.Agent, error)

	// Resolve looks a candidate up by id, then by exact name, then falls
	// back to the default agent.
	Resolve(ctx context.Context, candidate models.Candidate) (*models.Agent, error)

	List(ctx context.Context) ([]*models.Agent, error)

	// ResolveRefs normalizes group members into agents. Unknown bare ids
	// are skipped; unknown expanded refs are kept without a credential.
	ResolveRefs(ctx context.Context, refs []models.AgentRef) ([]*models.Agent, error)

	Create(ctx context.Context, agent *models.Agent) (*models.Agent, error)
	UpdateCredentials(ctx context.Context, id, apiKey, baseURL string) error
	UpdateStatus(ctx context.Context, id string, status models.AgentStatus) error
}

// Config holds the configuration for the directory service.
type Config struct {
	Agents         docdb.AgentsCollection
	CacheClient    cache.Client
	Encryptor      encryption.Encryptor
	CacheTTL       time.Duration
	DefaultAgentID string
	Logger         zerolog.Logger
}

type service struct {
	agents         docdb.AgentsCollection
	cacheClient    cache.Client
	encryptor      encryption.Encryptor
	ttl            time.Duration
	defaultAgentID string
	logger         zerolog.Logger
}

// NewService creates a new directory service. CacheClient is optional.
func NewService(cfg *Config) (Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Agents == nil {
		return nil, fmt.Errorf("agents collection is required")
	}
	if cfg.Encryptor == nil {
		return nil, fmt.Errorf("encryptor is required")
	}
	if cfg.DefaultAgentID == "" {
		return nil, fmt.Errorf("default agent ID is required")
	}

	return &service{
		agents:         cfg.Agents,
		cacheClient:    cfg.CacheClient,
		encryptor:      cfg.Encryptor,
		ttl:            cfg.CacheTTL,
		defaultAgentID: cfg.DefaultAgentID,
		logger:         cfg.Logger.With().Str("component", "directory").Logger(),
	}, nil
}

// cachedAgent mirrors models.Agent with the sealed key kept in the payload.
type cachedAgent struct {
	Agent        *models.Agent `json:"agent"`
	SealedAPIKey string        `json:"sealedApiKey,omitempty"`
}

func (s *service) Get(ctx context.Context, id string) (*models.Agent, error) {
	agent, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if agent == nil {
		return nil, domainerrors.NewNotFoundError("agent", id)
	}
	return s.open(agent), nil
}

func (s *service) GetByName(ctx context.Context, name string) (*models.Agent, error) {
	agent, err := s.agents.GetByName(ctx, name)
	if err != nil {
		return nil, domainerrors.NewInternalError("failed to load agent", err)
	}
	if agent == nil {
		return nil, domainerrors.NewNotFoundError("agent", name)
	}
	return s.open(agent), nil
}

func (s *service) Default(ctx context.Context) (*models.Agent, error) {
	return s.Get(ctx, s.defaultAgentID)
}

func (s *service) Resolve(ctx context.Context, candidate models.Candidate) (*models.Agent, error) {
	if id := strings.TrimSpace(candidate.ID); id != "" {
		agent, err := s.Get(ctx, id)
		if err == nil {
			return agent, nil
		}
		if !domainerrors.IsNotFound(err) {
			return nil, err
		}
	}

	if name := strings.TrimSpace(candidate.Name); name != "" {
		agent, err := s.GetByName(ctx, name)
		if err == nil {
			return agent, nil
		}
		if !domainerrors.IsNotFound(err) {
			return nil, err
		}
	}

	s.logger.Debug().Str("candidate_id", candidate.ID).Str("candidate_name", candidate.Name).
		Msg("candidate not in directory, using default agent")
	return s.Default(ctx)
}

func (s *service) List(ctx context.Context) ([]*models.Agent, error) {
	agents, err := s.agents.List(ctx)
	if err != nil {
		return nil, domainerrors.NewInternalError("failed to list agents", err)
	}
	for i, a := range agents {
		agents[i] = s.open(a)
	}
	return agents, nil
}

func (s *service) ResolveRefs(ctx context.Context, refs []models.AgentRef) ([]*models.Agent, error) {
	out := make([]*models.Agent, 0, len(refs))
	seen := make(map[string]struct{}, len(refs))

	for _, ref := range refs {
		if _, dup := seen[ref.ID()]; dup {
			continue
		}
		seen[ref.ID()] = struct{}{}

		agent, err := s.Get(ctx, ref.ID())
		switch {
		case err == nil:
			out = append(out, agent)
		case domainerrors.IsNotFound(err) && ref.Expanded():
			out = append(out, ref.Agent().Redacted())
		case domainerrors.IsNotFound(err):
			s.logger.Warn().Str("agent_id", ref.ID()).Msg("group member not found, skipping")
		default:
			return nil, err
		}
	}
	return out, nil
}

func (s *service) Create(ctx context.Context, agent *models.Agent) (*models.Agent, error) {
	if agent == nil || strings.TrimSpace(agent.Name) == "" {
		return nil, domainerrors.NewValidationError("agent name is required", "")
	}
	agent.Name = strings.TrimSpace(agent.Name)

	if agent.Status == "" {
		agent.Status = models.AgentStatusOnline
	}
	if !agent.Status.Valid() {
		return nil, domainerrors.NewValidationError("invalid agent status", string(agent.Status))
	}
	if agent.Color == "" {
		agent.Color = defaultAgentColor
	}
	if agent.ID == "" {
		agent.ID = models.NewMessageID()
	}

	existing, err := s.agents.GetByName(ctx, agent.Name)
	if err != nil {
		return nil, domainerrors.NewInternalError("failed to check agent name", err)
	}
	if existing != nil {
		return nil, domainerrors.NewConflictError("agent name already exists", agent.Name)
	}

	stored := *agent
	stored.APIKey, err = encryption.Seal(s.encryptor, agent.APIKey)
	if err != nil {
		return nil, domainerrors.NewInternalError("failed to seal agent credential", err)
	}

	if err := s.agents.Create(ctx, &stored); err != nil {
		return nil, domainerrors.NewInternalError("failed to create agent", err)
	}

	s.logger.Info().Str("agent_id", stored.ID).Str("agent_name", stored.Name).
		Bool("has_credential", agent.HasCredential()).Msg("agent created")

	stored.APIKey = agent.APIKey
	return &stored, nil
}

func (s *service) UpdateCredentials(ctx context.Context, id, apiKey, baseURL string) error {
	sealed, err := encryption.Seal(s.encryptor, strings.TrimSpace(apiKey))
	if err != nil {
		return domainerrors.NewInternalError("failed to seal agent credential", err)
	}

	if err := s.agents.UpdateCredentials(ctx, id, sealed, strings.TrimSpace(baseURL)); err != nil {
		return s.writeError(id, err)
	}
	s.invalidate(ctx, id)

	s.logger.Info().Str("agent_id", id).Bool("has_credential", sealed != "").Msg("agent credentials updated")
	return nil
}

func (s *service) UpdateStatus(ctx context.Context, id string, status models.AgentStatus) error {
	if !status.Valid() {
		return domainerrors.NewValidationError("invalid agent status", string(status))
	}
	if err := s.agents.UpdateStatus(ctx, id, status); err != nil {
		return s.writeError(id, err)
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *service) writeError(id string, err error) error {
	if errors.Is(err, docdb.ErrNotFound) {
		return domainerrors.NewNotFoundError("agent", id)
	}
	return domainerrors.NewInternalError("failed to update agent", err)
}

// load returns the stored agent with its key still sealed.
func (s *service) load(ctx context.Context, id string) (*models.Agent, error) {
	if agent := s.fromCache(ctx, id); agent != nil {
		return agent, nil
	}

	agent, err := s.agents.Get(ctx, id)
	if err != nil {
		return nil, domainerrors.NewInternalError("failed to load agent", err)
	}
	if agent != nil {
		s.toCache(ctx, agent)
	}
	return agent, nil
}

// open replaces the sealed key with plaintext. An unreadable key leaves the
// agent without a credential.
func (s *service) open(agent *models.Agent) *models.Agent {
	cp := *agent
	key, err := encryption.Open(s.encryptor, agent.APIKey)
	if err != nil {
		s.logger.Warn().Err(err).Str("agent_id", agent.ID).Msg("agent credential could not be opened")
		key = ""
	}
	cp.APIKey = key
	return &cp
}

func (s *service) fromCache(ctx context.Context, id string) *models.Agent {
	if s.cacheClient == nil {
		return nil
	}
	key := cache.AgentKey(id)

	data, err := s.cacheClient.Get(ctx, key)
	if err != nil {
		s.logger.Warn().Err(err).Str("agent_id", id).Msg("agent cache read failed")
		return nil
	}
	if data == nil {
		return nil
	}

	plain, err := s.encryptor.Decrypt(string(data))
	if err != nil {
		_, _ = s.cacheClient.Delete(ctx, key)
		return nil
	}

	var entry cachedAgent
	if err := json.Unmarshal(plain, &entry); err != nil || entry.Agent == nil {
		_, _ = s.cacheClient.Delete(ctx, key)
		return nil
	}
	entry.Agent.APIKey = entry.SealedAPIKey
	return entry.Agent
}

func (s *service) toCache(ctx context.Context, agent *models.Agent) {
	if s.cacheClient == nil {
		return
	}

	data, err := json.Marshal(cachedAgent{Agent: agent, SealedAPIKey: agent.APIKey})
	if err != nil {
		return
	}
	encrypted, err := s.encryptor.Encrypt(data)
	if err != nil {
		s.logger.Warn().Err(err).Str("agent_id", agent.ID).Msg("agent cache encrypt failed")
		return
	}
	if err := s.cacheClient.Set(ctx, cache.AgentKey(agent.ID), []byte(encrypted), s.ttl); err != nil {
		s.logger.Warn().Err(err).Str("agent_id", agent.ID).Msg("agent cache write failed")
	}
}

func (s *service) invalidate(ctx context.Context, id string) {
	if s.cacheClient == nil {
		return
	}
	if _, err := s.cacheClient.Delete(ctx, cache.AgentKey(id)); err != nil {
		s.logger.Warn().Err(err).Str("agent_id", id).Msg("agent cache invalidation failed")
	}
}
