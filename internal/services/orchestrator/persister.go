package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/unifiedui/multiagent-service/internal/core/docdb"
	"github.com/unifiedui/multiagent-service/internal/domain/models"
	"github.com/unifiedui/multiagent-service/internal/pkg/metrics"
	"github.com/unifiedui/multiagent-service/internal/pkg/retry"
)

// persister writes 1:1 transcripts with a last-writer-wins replace guarded
// by the conversation version.
type persister struct {
	conversations docdb.ConversationsCollection
	policy        retry.Policy
	logger        zerolog.Logger
}

func newPersister(conversations docdb.ConversationsCollection, maxRetries int, delay time.Duration, logger zerolog.Logger) *persister {
	policy := retry.LinearPolicy(maxRetries, delay)
	policy.RetryIf = func(err error) bool {
		if errors.Is(err, docdb.ErrNotFound) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false
		}
		return true
	}
	return &persister{conversations: conversations, policy: policy, logger: logger}
}

// create stores a new conversation.
func (p *persister) create(ctx context.Context, id string, messages []models.Message) (*models.Conversation, error) {
	conv, err := retry.ExecuteWithResult(ctx, p.policy, func(ctx context.Context, attempt int) (*models.Conversation, error) {
		if attempt > 0 {
			existing, err := p.conversations.Get(ctx, id)
			if err != nil {
				return nil, err
			}
			if existing != nil {
				return p.replaceOnce(ctx, id, existing.Version, messages)
			}
		}
		conv := &models.Conversation{
			ID:       id,
			Title:    models.DeriveTitle(messages),
			Messages: models.CloneMessages(messages),
		}
		if err := p.conversations.Create(ctx, conv); err != nil {
			return nil, err
		}
		return conv, nil
	})
	p.record(err)
	return conv, err
}

// save replaces the message list. On a version conflict the latest stored
// version is adopted and the same list is written again.
func (p *persister) save(ctx context.Context, id string, version int64, messages []models.Message) (*models.Conversation, error) {
	expected := version
	conv, err := retry.ExecuteWithResult(ctx, p.policy, func(ctx context.Context, attempt int) (*models.Conversation, error) {
		conv, err := p.replaceOnce(ctx, id, expected, messages)
		if conflict, ok := docdb.AsConflict(err); ok && conflict.Latest != nil {
			p.logger.Debug().Str("conversation_id", id).Int64("expected", expected).
				Int64("stored", conflict.Latest.Version).Int("attempt", attempt).Msg("conversation version conflict")
			expected = conflict.Latest.Version
		}
		return conv, err
	})
	p.record(err)
	return conv, err
}

// saveExact writes only if the stored version still equals version.
func (p *persister) saveExact(ctx context.Context, id string, version int64, messages []models.Message) (*models.Conversation, error) {
	conv, err := p.replaceOnce(ctx, id, version, messages)
	p.record(err)
	return conv, err
}

func (p *persister) replaceOnce(ctx context.Context, id string, version int64, messages []models.Message) (*models.Conversation, error) {
	conv, err := p.conversations.ReplaceMessages(ctx, id, version, messages)
	if err != nil {
		return nil, err
	}
	return conv, nil
}

func (p *persister) record(err error) {
	switch {
	case err == nil:
		metrics.RecordConversationSave("ok")
	case errors.As(err, new(*docdb.ConflictError)):
		metrics.RecordConversationSave("conflict")
	default:
		metrics.RecordConversationSave("error")
	}
}

// SaveFailedError wraps the last persistence error of a turn.
type SaveFailedError struct {
	ConversationID string
	Err            error
}

func (e *SaveFailedError) Error() string {
	return fmt.Sprintf("failed to save conversation %s: %v", e.ConversationID, e.Err)
}

func (e *SaveFailedError) Unwrap() error { return e.Err }
