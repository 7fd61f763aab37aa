// Package dispatch asks the dispatch center which agents should answer a turn.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/unifiedui/multiagent-service/internal/core/vault"
	"github.com/unifiedui/multiagent-service/internal/domain/models"
	"github.com/unifiedui/multiagent-service/internal/pkg/metrics"
	"github.com/unifiedui/multiagent-service/internal/pkg/observability"
	"github.com/unifiedui/multiagent-service/internal/pkg/retry"
	"github.com/unifiedui/multiagent-service/internal/services/gateway"
)

// ErrDispatchNotConfigured means the dispatch credential is unset. It is
// never retried.
var ErrDispatchNotConfigured = errors.New("dispatch credential is not configured")

// DefaultAgentSource provides the fallback responder.
type DefaultAgentSource interface {
	Default(ctx context.Context) (*models.Agent, error)
}

// Request is one dispatch question.
type Request struct {
	ChatID   string
	GroupID  string
	Messages []openai.ChatCompletionMessage
	Discuss  bool
}

// Decision is the ordered list of responders for a turn.
type Decision struct {
	Candidates   []models.Candidate `json:"candidates"`
	FallbackUsed bool               `json:"fallbackUsed"`
}

// Config holds the configuration for the resolver.
type Config struct {
	Gateway       gateway.Client
	Directory     DefaultAgentSource
	Vault         vault.Client
	CredentialURI string
	// BaseURL overrides the gateway base URL for dispatch calls.
	BaseURL    string
	MaxRetries int
	RetryDelay time.Duration
	Logger     zerolog.Logger
}

// Resolver calls the dispatch center.
type Resolver struct {
	gateway       gateway.Client
	directory     DefaultAgentSource
	vault         vault.Client
	credentialURI string
	baseURL       string
	policy        retry.Policy
	logger        zerolog.Logger
}

// NewResolver creates a resolver.
func NewResolver(cfg *Config) (*Resolver, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Gateway == nil {
		return nil, fmt.Errorf("gateway is required")
	}
	if cfg.Directory == nil {
		return nil, fmt.Errorf("directory is required")
	}
	if cfg.Vault == nil {
		return nil, fmt.Errorf("vault is required")
	}

	policy := retry.LinearPolicy(cfg.MaxRetries, cfg.RetryDelay)
	policy.RetryIf = gateway.IsRetryable

	return &Resolver{
		gateway:       cfg.Gateway,
		directory:     cfg.Directory,
		vault:         cfg.Vault,
		credentialURI: cfg.CredentialURI,
		baseURL:       cfg.BaseURL,
		policy:        policy,
		logger:        cfg.Logger.With().Str("component", "dispatch").Logger(),
	}, nil
}

// Complete calls the dispatch center and returns its raw completion.
// Transient failures are retried with linear backoff.
func (r *Resolver) Complete(ctx context.Context, req Request) (*openai.ChatCompletionResponse, error) {
	apiKey, err := r.credential(ctx)
	if err != nil {
		return nil, err
	}

	body := &gateway.CompletionRequest{
		ChatID:   req.ChatID,
		Messages: req.Messages,
		Variables: map[string]any{
			"discuss": req.Discuss,
		},
	}
	if req.GroupID != "" {
		body.Variables["groupId"] = req.GroupID
	}
	target := gateway.Target{APIKey: apiKey, BaseURL: r.baseURL}

	resp, err := retry.ExecuteWithResult(ctx, r.policy, func(ctx context.Context, attempt int) (*openai.ChatCompletionResponse, error) {
		if attempt > 0 {
			r.logger.Warn().Int("attempt", attempt).Str("chat_id", req.ChatID).Msg("retrying dispatch call")
		}
		return r.gateway.Complete(ctx, target, body)
	})
	if errors.Is(err, gateway.ErrMissingCredential) {
		return nil, ErrDispatchNotConfigured
	}
	return resp, err
}

// Resolve returns the responders for a turn. Unusable dispatch output falls
// back to the default agent; discuss mode keeps only the first candidate.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Decision, error) {
	ctx, span := observability.StartDispatchSpan(ctx, req.ChatID, req.Discuss)
	defer span.End()

	resp, err := r.Complete(ctx, req)
	if err != nil {
		metrics.RecordDispatch("error")
		observability.RecordError(span, err)
		return nil, err
	}

	content := gateway.FirstContent(resp)
	candidates, ok := ParseCandidates(content)
	if !ok {
		r.logger.Info().Str("chat_id", req.ChatID).Int("content_length", len(content)).
			Msg("dispatch output unusable, falling back to default agent")

		agent, err := r.directory.Default(ctx)
		if err != nil {
			metrics.RecordDispatch("error")
			observability.RecordError(span, err)
			return nil, fmt.Errorf("failed to load default agent: %w", err)
		}
		metrics.RecordDispatch("fallback")
		return &Decision{
			Candidates:   []models.Candidate{{ID: agent.ID, Name: agent.Name}},
			FallbackUsed: true,
		}, nil
	}

	if req.Discuss {
		candidates = candidates[:1]
	}
	metrics.RecordDispatch("dispatch")
	return &Decision{Candidates: candidates}, nil
}

func (r *Resolver) credential(ctx context.Context) (string, error) {
	if r.credentialURI == "" {
		return "", ErrDispatchNotConfigured
	}
	key, err := r.vault.GetSecret(ctx, r.credentialURI)
	if errors.Is(err, vault.ErrSecretNotFound) {
		return "", ErrDispatchNotConfigured
	}
	if err != nil {
		return "", fmt.Errorf("failed to read dispatch credential: %w", err)
	}
	if strings.TrimSpace(key) == "" {
		return "", ErrDispatchNotConfigured
	}
	return key, nil
}

// ParseCandidates decodes a JSON list of {id, name}. It reports false for
// malformed JSON, a non-array value, or a list with no usable entry.
func ParseCandidates(content string) ([]models.Candidate, bool) {
	text := stripFence(strings.TrimSpace(content))
	if !strings.HasPrefix(text, "[") {
		return nil, false
	}

	var raw []models.Candidate
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, false
	}

	out := make([]models.Candidate, 0, len(raw))
	for _, c := range raw {
		c.ID = strings.TrimSpace(c.ID)
		c.Name = strings.TrimSpace(c.Name)
		if c.ID == "" && c.Name == "" {
			continue
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

// stripFence removes a surrounding ``` or ```json block.
func stripFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), "```"))
}
