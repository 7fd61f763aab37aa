package handlers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/unifiedui/multiagent-service/internal/core/events"
	"github.com/unifiedui/multiagent-service/internal/domain/models"
	"github.com/unifiedui/multiagent-service/internal/services/orchestrator"
)

const publishTimeout = 5 * time.Second

// busSink publishes orchestration events on a group's topic so that every
// subscriber, on any replica, sees them.
type busSink struct {
	bus    events.Bus
	topic  string
	logger zerolog.Logger
}

func newBusSink(bus events.Bus, groupID string, logger zerolog.Logger) orchestrator.Sink {
	if bus == nil {
		return orchestrator.Discard
	}
	return &busSink{bus: bus, topic: events.GroupTopic(groupID), logger: logger}
}

func (s *busSink) Emit(e orchestrator.Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		s.logger.Error().Err(err).Str("type", string(e.Type)).Msg("failed to encode group event")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := s.bus.Publish(ctx, s.topic, payload); err != nil {
		s.logger.Warn().Err(err).Str("topic", s.topic).Str("type", string(e.Type)).Msg("failed to publish group event")
	}
}

// tee fans every event out to all sinks.
func tee(sinks ...orchestrator.Sink) orchestrator.Sink {
	return orchestrator.SinkFunc(func(e orchestrator.Event) {
		for _, s := range sinks {
			s.Emit(e)
		}
	})
}

// ConversationPublisher announces saved 1:1 conversations on the bus so that
// other open clients can refresh their lists.
type ConversationPublisher struct {
	bus    events.Bus
	logger zerolog.Logger
}

// NewConversationPublisher creates a publisher. A nil bus makes it a no-op.
func NewConversationPublisher(bus events.Bus, logger zerolog.Logger) *ConversationPublisher {
	return &ConversationPublisher{bus: bus, logger: logger}
}

// OnConversationCreated publishes a CONVERSATION event without messages.
func (p *ConversationPublisher) OnConversationCreated(ctx context.Context, conv *models.Conversation) {
	p.publish(ctx, conv)
}

// OnConversationUpdated publishes a CONVERSATION event without messages.
func (p *ConversationPublisher) OnConversationUpdated(ctx context.Context, conv *models.Conversation) {
	p.publish(ctx, conv)
}

func (p *ConversationPublisher) publish(ctx context.Context, conv *models.Conversation) {
	if p.bus == nil || conv == nil {
		return
	}
	summary := *conv
	summary.Messages = nil
	payload, err := json.Marshal(orchestrator.Event{Type: orchestrator.EventConversation, Conversation: &summary})
	if err != nil {
		p.logger.Error().Err(err).Str("chat_id", conv.ID).Msg("failed to encode conversation event")
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := p.bus.Publish(pctx, events.ConversationsTopic, payload); err != nil {
		p.logger.Warn().Err(err).Str("chat_id", conv.ID).Msg("failed to publish conversation event")
	}
}
