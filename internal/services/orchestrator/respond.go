package orchestrator

import (
	"errors"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/unifiedui/multiagent-service/internal/domain/models"
	"github.com/unifiedui/multiagent-service/internal/pkg/metrics"
	"github.com/unifiedui/multiagent-service/internal/pkg/observability"
	"github.com/unifiedui/multiagent-service/internal/services/gateway"
)

type outcome int

const (
	outcomeDone outcome = iota
	outcomeFailed
	outcomeCancelled
)

func (o outcome) String() string {
	switch o {
	case outcomeDone:
		return "ok"
	case outcomeFailed:
		return "failed"
	default:
		return "cancelled"
	}
}

// agentCall is one agent answering into a placeholder on the board.
type agentCall struct {
	batch     *Batch
	board     *Board
	sink      Sink
	agent     *models.Agent
	messageID string
	chatID    string
	history   []openai.ChatCompletionMessage
	mode      string

	// onFinish runs inside the batch guard with the final message, reply or
	// failure text, so it never runs after cancellation.
	onFinish func(msg models.Message)
}

// respond streams the agent's reply into its placeholder. Failures replace
// the placeholder text and never affect sibling calls.
func (o *Orchestrator) respond(call agentCall) (models.Message, outcome) {
	ctx, span := observability.StartAgentSpan(call.batch.Context(), call.agent.ID, call.agent.Name, call.messageID)
	defer span.End()

	logger := o.logger.With().Str("agent_id", call.agent.ID).Str("message_id", call.messageID).Logger()

	if !call.agent.HasCredential() {
		logger.Warn().Str("agent_name", call.agent.Name).Msg("agent has no API key")
		return o.fail(call, MsgMissingAPIKey, gateway.ErrMissingCredential)
	}

	reader, err := o.gateway.Stream(ctx, gateway.Target{APIKey: call.agent.APIKey, BaseURL: call.agent.BaseURL}, &gateway.CompletionRequest{
		ChatID:   call.chatID,
		Messages: call.history,
	})
	if err != nil {
		if isCancellation(err) || call.batch.Cancelled() {
			return o.cancelled(call)
		}
		observability.RecordError(span, err)
		logger.Warn().Err(err).Str("kind", gateway.Classify(err).String()).Msg("agent call failed")
		return o.fail(call, FailureMessage(err), err)
	}
	defer reader.Close()

	for {
		chunk, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if isCancellation(err) || call.batch.Cancelled() {
				return o.cancelled(call)
			}
			observability.RecordError(span, err)
			logger.Warn().Err(err).Msg("agent stream failed")
			return o.fail(call, FailureMessage(err), err)
		}

		applied := call.batch.Emit(func() {
			call.board.Update(AppendChunk(call.messageID, chunk))
			call.sink.Emit(Event{Type: EventTextStream, MessageID: call.messageID, Delta: chunk})
		})
		if !applied {
			return o.cancelled(call)
		}
	}

	var final models.Message
	applied := call.batch.Emit(func() {
		final, _ = find(call.board.Update(Finalize(call.messageID)), call.messageID)
		call.sink.Emit(messageEvent(EventMessageDone, final))
		if call.onFinish != nil {
			call.onFinish(final)
		}
	})
	if !applied {
		return o.cancelled(call)
	}
	metrics.RecordAgentResponse(call.mode, outcomeDone.String())
	return final, outcomeDone
}

func (o *Orchestrator) fail(call agentCall, text string, cause error) (models.Message, outcome) {
	var final models.Message
	applied := call.batch.Emit(func() {
		final, _ = find(call.board.Update(ReplaceContent(call.messageID, text)), call.messageID)
		ev := messageEvent(EventMessageFailed, final)
		ev.Error = text
		call.sink.Emit(ev)
		if call.onFinish != nil {
			call.onFinish(final)
		}
	})
	if !applied {
		return o.cancelled(call)
	}
	metrics.RecordAgentResponse(call.mode, gateway.Classify(cause).String())
	return final, outcomeFailed
}

func (o *Orchestrator) cancelled(call agentCall) (models.Message, outcome) {
	metrics.RecordAgentResponse(call.mode, outcomeCancelled.String())
	return models.Message{}, outcomeCancelled
}
