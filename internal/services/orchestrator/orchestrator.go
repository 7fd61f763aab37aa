// Package orchestrator sequences agent calls for a user turn: it decides who
// answers, streams every reply into a shared message board, isolates
// per-agent failures, and persists the result.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/unifiedui/multiagent-service/internal/core/docdb"
	domainerrors "github.com/unifiedui/multiagent-service/internal/domain/errors"
	"github.com/unifiedui/multiagent-service/internal/domain/models"
	"github.com/unifiedui/multiagent-service/internal/services/dispatch"
	"github.com/unifiedui/multiagent-service/internal/services/gateway"
	"github.com/unifiedui/multiagent-service/internal/services/session"
)

const (
	defaultSaveRetries  = 3
	defaultSaveDelay    = 200 * time.Millisecond
	defaultParallel     = 8
	defaultRounds       = 3
	defaultMaxRounds    = 20
	defaultHistoryLimit = 50
	stateWriteTimeout   = 5 * time.Second
	speakerSeparator    = "："
)

// Dispatcher picks the responders of a turn.
type Dispatcher interface {
	Resolve(ctx context.Context, req dispatch.Request) (*dispatch.Decision, error)
}

// Directory resolves agents.
type Directory interface {
	Resolve(ctx context.Context, candidate models.Candidate) (*models.Agent, error)
	List(ctx context.Context) ([]*models.Agent, error)
	ResolveRefs(ctx context.Context, refs []models.AgentRef) ([]*models.Agent, error)
}

// Gateway streams agent completions.
type Gateway interface {
	Stream(ctx context.Context, target gateway.Target, req *gateway.CompletionRequest) (gateway.StreamReader, error)
}

// Config holds the configuration for the orchestrator.
type Config struct {
	Store      docdb.Client
	Directory  Directory
	Dispatcher Dispatcher
	Gateway    Gateway

	// Sessions caches discussion state. Optional.
	Sessions session.Service
	// Callbacks is notified after 1:1 saves. Optional.
	Callbacks ConversationCallbacks

	SaveMaxRetries          int
	SaveRetryDelay          time.Duration
	MaxParallelAgents       int
	DiscussionDefaultRounds int
	DiscussionMaxRounds     int
	GroupHistoryLimit       int64

	Logger zerolog.Logger
}

// Orchestrator runs chat turns, group turns and discussions.
type Orchestrator struct {
	store      docdb.Client
	directory  Directory
	dispatcher Dispatcher
	gateway    Gateway
	sessions   session.Service
	callbacks  ConversationCallbacks
	persister  *persister

	maxParallel   int
	defaultRounds int
	maxRounds     int
	historyLimit  int64

	turns       *registry[*Batch]
	discussions *registry[*Discussion]

	logger zerolog.Logger
}

// New creates an orchestrator.
func New(cfg *Config) (*Orchestrator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Directory == nil {
		return nil, fmt.Errorf("directory is required")
	}
	if cfg.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if cfg.Gateway == nil {
		return nil, fmt.Errorf("gateway is required")
	}

	logger := cfg.Logger.With().Str("component", "orchestrator").Logger()

	o := &Orchestrator{
		store:         cfg.Store,
		directory:     cfg.Directory,
		dispatcher:    cfg.Dispatcher,
		gateway:       cfg.Gateway,
		sessions:      cfg.Sessions,
		callbacks:     cfg.Callbacks,
		maxParallel:   orDefault(cfg.MaxParallelAgents, defaultParallel),
		defaultRounds: orDefault(cfg.DiscussionDefaultRounds, defaultRounds),
		maxRounds:     orDefault(cfg.DiscussionMaxRounds, defaultMaxRounds),
		historyLimit:  cfg.GroupHistoryLimit,
		turns:         newRegistry[*Batch](),
		discussions:   newRegistry[*Discussion](),
		logger:        logger,
	}
	if o.callbacks == nil {
		o.callbacks = noopCallbacks{}
	}
	if o.historyLimit <= 0 {
		o.historyLimit = defaultHistoryLimit
	}

	saveRetries := cfg.SaveMaxRetries
	if saveRetries < 0 {
		saveRetries = defaultSaveRetries
	}
	saveDelay := cfg.SaveRetryDelay
	if saveDelay <= 0 {
		saveDelay = defaultSaveDelay
	}
	o.persister = newPersister(cfg.Store.Conversations(), saveRetries, saveDelay, logger)

	return o, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// SaveConversation replaces a conversation's messages. With expectedVersion
// set the write happens only at that version and a conflict is returned as
// *docdb.ConflictError; without it the write retries on conflict.
func (o *Orchestrator) SaveConversation(ctx context.Context, id string, expectedVersion *int64, messages []models.Message) (*models.Conversation, error) {
	if messages == nil {
		messages = []models.Message{}
	}

	var (
		conv *models.Conversation
		err  error
	)
	if expectedVersion != nil {
		conv, err = o.persister.saveExact(ctx, id, *expectedVersion, messages)
	} else {
		var current *models.Conversation
		current, err = o.store.Conversations().Get(ctx, id)
		if err != nil {
			return nil, domainerrors.NewInternalError("failed to load conversation", err)
		}
		if current == nil {
			return nil, domainerrors.NewNotFoundError("conversation", id)
		}
		conv, err = o.persister.save(ctx, id, current.Version, messages)
	}

	switch {
	case err == nil:
		o.callbacks.OnConversationUpdated(ctx, conv)
		return conv, nil
	case errors.Is(err, docdb.ErrNotFound):
		return nil, domainerrors.NewNotFoundError("conversation", id)
	default:
		if _, ok := docdb.AsConflict(err); ok {
			return nil, err
		}
		return nil, domainerrors.NewInternalError("failed to save conversation", err)
	}
}

// CancelTurn cancels a running group turn.
func (o *Orchestrator) CancelTurn(turnID string) bool {
	batch, ok := o.turns.get(turnID)
	if !ok {
		return false
	}
	batch.Cancel()
	return true
}

// matchCandidate prefers a group member by id, then by name, then asks the directory.
func (o *Orchestrator) matchCandidate(ctx context.Context, c models.Candidate, members []*models.Agent) (*models.Agent, error) {
	for _, m := range members {
		if c.ID != "" && m.ID == c.ID {
			return m, nil
		}
	}
	for _, m := range members {
		if c.Name != "" && m.Name == c.Name {
			return m, nil
		}
	}
	return o.directory.Resolve(ctx, c)
}

func (o *Orchestrator) resolveCandidates(ctx context.Context, candidates []models.Candidate, members []*models.Agent) ([]*models.Agent, error) {
	out := make([]*models.Agent, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		agent, err := o.matchCandidate(ctx, c, members)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[agent.ID]; dup {
			continue
		}
		seen[agent.ID] = struct{}{}
		out = append(out, agent)
	}
	return out, nil
}

// speakerHistory renders a transcript for multi-agent contexts, prefixing
// agent replies with the speaker name.
func speakerHistory(messages []models.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		switch {
		case m.IsThinking || m.IsSystem || strings.TrimSpace(m.Content) == "":
			continue
		case m.IsUser:
			out = append(out, gateway.UserMessage(m.Content))
		default:
			out = append(out, speakerMessage(m.AgentName, m.Content))
		}
	}
	return out
}

func speakerMessage(name, content string) openai.ChatCompletionMessage {
	return openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleAssistant,
		Content: name + speakerSeparator + content,
	}
}

// detached keeps ctx values but drops its cancellation, for writes that must
// finish after the request that triggered them.
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), stateWriteTimeout)
}
