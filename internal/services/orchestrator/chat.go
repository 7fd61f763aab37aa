package orchestrator

import (
	"context"
	"strings"

	"github.com/google/uuid"

	domainerrors "github.com/unifiedui/multiagent-service/internal/domain/errors"
	"github.com/unifiedui/multiagent-service/internal/domain/models"
	"github.com/unifiedui/multiagent-service/internal/pkg/metrics"
	"github.com/unifiedui/multiagent-service/internal/services/dispatch"
	"github.com/unifiedui/multiagent-service/internal/services/gateway"
)

const modeChat = "chat"

// ChatTurnRequest is one user message in a 1:1 conversation. An empty
// ChatID starts a new conversation.
type ChatTurnRequest struct {
	ChatID  string
	Content string
}

// TurnResult describes a finished 1:1 turn.
type TurnResult struct {
	TurnID       string
	ChatID       string
	Messages     []models.Message
	Conversation *models.Conversation
	Persisted    bool
	Cancelled    bool
	SaveError    error
}

// RunChatTurn answers a 1:1 user message and persists the transcript.
//
// Candidates answer one after another, all from the same history snapshot.
// Cancelling ctx stops the turn without emitting further events or saving.
func (o *Orchestrator) RunChatTurn(ctx context.Context, req ChatTurnRequest, sink Sink) (*TurnResult, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, domainerrors.NewValidationError("message content is required", "")
	}
	if sink == nil {
		sink = Discard
	}

	var existing *models.Conversation
	chatID := req.ChatID
	if chatID != "" {
		conv, err := o.store.Conversations().Get(ctx, chatID)
		if err != nil {
			return nil, domainerrors.NewInternalError("failed to load conversation", err)
		}
		if conv == nil {
			return nil, domainerrors.NewNotFoundError("conversation", chatID)
		}
		existing = conv
	} else {
		chatID = uuid.NewString()
	}

	turnID := uuid.NewString()
	out := stamp{sink: sink, turnID: turnID}
	result := &TurnResult{TurnID: turnID, ChatID: chatID}
	batch := newBatch(ctx, 1)
	defer batch.finish()

	var initial []models.Message
	if existing != nil {
		initial = existing.Messages
	}
	board := NewBoard(initial)

	user := models.NewUserMessage(content)
	board.Update(AppendMessage(user))
	out.Emit(messageEvent(EventMessageCreated, user))
	history := gateway.ToChatMessages(board.Snapshot())

	agents, err := o.directory.List(ctx)
	if err != nil {
		return nil, err
	}

	var responders []*models.Agent
	if mention := FindMention(content, agents); mention != nil {
		if mention.Agent == nil {
			metrics.RecordDispatch("mention_unknown")
			return o.noticeOnly(batch, board, out, result, UnknownMentionMessage(mention.Name, models.AgentNames(agents))), nil
		}
		metrics.RecordDispatch("mention")
		responders = []*models.Agent{mention.Agent}
	} else {
		out.Emit(stateEvent(StateAwaitingDispatch))
		decision, err := o.dispatcher.Resolve(batch.Context(), dispatch.Request{ChatID: chatID, Messages: history})
		if err != nil {
			if batch.Cancelled() {
				result.Cancelled = true
				return result, nil
			}
			o.logger.Warn().Err(err).Str("chat_id", chatID).Msg("dispatch failed")
			return o.noticeOnly(batch, board, out, result, dispatchFailureMessage(err)), nil
		}
		responders, err = o.resolveCandidates(batch.Context(), decision.Candidates, agents)
		if err != nil {
			return nil, err
		}
	}

	out.Emit(stateEvent(StateRespondingSingle))
	for _, agent := range responders {
		placeholder := models.NewPlaceholder(agent)
		if !batch.Emit(func() {
			board.Update(AppendMessage(placeholder))
			out.Emit(messageEvent(EventMessageCreated, placeholder))
		}) {
			break
		}

		o.respond(agentCall{
			batch:     batch,
			board:     board,
			sink:      out,
			agent:     agent,
			messageID: placeholder.ID,
			chatID:    chatID,
			history:   history,
			mode:      modeChat,
		})
		if batch.Cancelled() {
			break
		}
	}

	result.Messages = board.Snapshot()
	if batch.Cancelled() {
		result.Cancelled = true
		return result, nil
	}

	out.Emit(stateEvent(StatePersisting))
	o.persistChat(ctx, batch, existing, chatID, result, out)
	out.Emit(stateEvent(StateIdle))
	return result, nil
}

// noticeOnly ends a turn with a single system message and saves nothing.
func (o *Orchestrator) noticeOnly(batch *Batch, board *Board, out Sink, result *TurnResult, text string) *TurnResult {
	notice := models.NewSystemMessage(text)
	batch.Emit(func() {
		board.Update(AppendMessage(notice))
		out.Emit(messageEvent(EventMessageCreated, notice))
		out.Emit(stateEvent(StateIdle))
	})
	result.Messages = board.Snapshot()
	return result
}

func (o *Orchestrator) persistChat(ctx context.Context, batch *Batch, existing *models.Conversation, chatID string, result *TurnResult, out Sink) {
	var (
		conv *models.Conversation
		err  error
	)
	if existing == nil {
		conv, err = o.persister.create(ctx, chatID, result.Messages)
	} else {
		conv, err = o.persister.save(ctx, chatID, existing.Version, result.Messages)
	}

	if err != nil {
		if batch.Cancelled() {
			result.Cancelled = true
			return
		}
		o.logger.Error().Err(err).Str("chat_id", chatID).Msg("conversation save failed")
		result.SaveError = &SaveFailedError{ConversationID: chatID, Err: err}
		batch.Emit(func() {
			out.Emit(Event{Type: EventSaveFailed, Error: result.SaveError.Error()})
		})
		return
	}

	batch.Emit(func() {
		result.Persisted = true
		result.Conversation = conv
		if existing == nil {
			o.callbacks.OnConversationCreated(ctx, conv)
		} else {
			o.callbacks.OnConversationUpdated(ctx, conv)
		}
		out.Emit(Event{Type: EventConversation, Conversation: conv})
	})
}
