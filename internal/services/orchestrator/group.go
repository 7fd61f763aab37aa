package orchestrator

import (
	"context"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/unifiedui/multiagent-service/internal/core/docdb"
	domainerrors "github.com/unifiedui/multiagent-service/internal/domain/errors"
	"github.com/unifiedui/multiagent-service/internal/domain/models"
	"github.com/unifiedui/multiagent-service/internal/pkg/metrics"
	"github.com/unifiedui/multiagent-service/internal/services/dispatch"
)

const modeGroup = "group"

// GroupTurnRequest is one user message in a group chat.
type GroupTurnRequest struct {
	GroupID string
	Content string
}

// GroupTurn is a started group turn. Batch is the cancellation handle;
// agent replies keep streaming into the sink after StartGroupTurn returns.
type GroupTurn struct {
	Batch        *Batch
	UserMessage  *models.Message
	Notice       *models.Message
	Placeholders []models.Message
	Members      []*models.Agent
}

// ID identifies the turn for cancellation.
func (t *GroupTurn) ID() string {
	return t.Batch.ID()
}

// StartGroupTurn dispatches once and calls every candidate concurrently.
// Each finished message, reply or failure text, is appended to the group's
// message store as soon as its own stream completes.
func (o *Orchestrator) StartGroupTurn(ctx context.Context, req GroupTurnRequest, sink Sink) (*GroupTurn, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, domainerrors.NewValidationError("message content is required", "")
	}
	if sink == nil {
		sink = Discard
	}

	group, members, err := o.loadGroup(ctx, req.GroupID)
	if err != nil {
		return nil, err
	}

	batch := newBatch(ctx, o.maxParallel)
	out := stamp{sink: sink, turnID: batch.ID(), groupID: group.ID}
	turn := &GroupTurn{Batch: batch, Members: members}

	mention := FindMention(content, members)
	if mention != nil && mention.Agent == nil {
		metrics.RecordDispatch("mention_unknown")
		notice := models.NewSystemMessage(UnknownMentionMessage(mention.Name, models.AgentNames(members)))
		turn.Notice = &notice
		out.Emit(messageEvent(EventMessageCreated, notice))
		batch.finish()
		return turn, nil
	}

	user := models.NewUserMessage(content)
	if _, err := o.store.GroupMessages().Append(ctx, models.NewGroupMessage(group.ID, user)); err != nil {
		batch.finish()
		return nil, domainerrors.NewInternalError("failed to store group message", err)
	}
	turn.UserMessage = &user
	out.Emit(messageEvent(EventMessageCreated, user))

	history, err := o.groupHistory(ctx, group.ID)
	if err != nil {
		batch.finish()
		return nil, err
	}

	var responders []*models.Agent
	if mention != nil {
		metrics.RecordDispatch("mention")
		responders = []*models.Agent{mention.Agent}
	} else {
		out.Emit(stateEvent(StateAwaitingDispatch))
		decision, err := o.dispatcher.Resolve(batch.Context(), dispatch.Request{
			ChatID:   group.ID,
			GroupID:  group.ID,
			Messages: history,
		})
		if err != nil {
			o.logger.Warn().Err(err).Str("group_id", group.ID).Msg("group dispatch failed")
			notice := models.NewSystemMessage(dispatchFailureMessage(err))
			turn.Notice = &notice
			batch.Emit(func() { out.Emit(messageEvent(EventMessageCreated, notice)) })
			batch.finish()
			return turn, nil
		}
		responders, err = o.resolveCandidates(batch.Context(), decision.Candidates, members)
		if err != nil {
			batch.finish()
			return nil, err
		}
	}

	board := NewBoard(nil)
	for _, agent := range responders {
		placeholder := models.NewPlaceholder(agent)
		board.Update(AppendMessage(placeholder))
		turn.Placeholders = append(turn.Placeholders, placeholder)
		out.Emit(messageEvent(EventMessageCreated, placeholder))
	}
	out.Emit(stateEvent(StateRespondingParallel))

	o.turns.put(batch.ID(), batch)
	tasks := make([]func(context.Context), 0, len(responders))
	for i, agent := range responders {
		agent, placeholder := agent, turn.Placeholders[i]
		tasks = append(tasks, func(context.Context) {
			o.respond(agentCall{
				batch:     batch,
				board:     board,
				sink:      out,
				agent:     agent,
				messageID: placeholder.ID,
				chatID:    group.ID,
				history:   history,
				mode:      modeGroup,
				onFinish: func(msg models.Message) {
					o.appendGroupReply(batch.Context(), group.ID, msg)
				},
			})
		})
	}
	batch.start(tasks, func() {
		o.turns.remove(batch.ID())
		batch.Emit(func() {
			out.Emit(stateEvent(StateIdle))
			out.Emit(Event{Type: EventStreamEnd})
		})
	})

	return turn, nil
}

func (o *Orchestrator) appendGroupReply(ctx context.Context, groupID string, msg models.Message) {
	exists, err := o.store.GroupMessages().Append(ctx, models.NewGroupMessage(groupID, msg))
	if err != nil {
		o.logger.Error().Err(err).Str("group_id", groupID).Str("message_id", msg.ID).Msg("failed to store agent reply")
		return
	}
	if exists {
		o.logger.Debug().Str("group_id", groupID).Str("message_id", msg.ID).Msg("agent reply already stored")
	}
}

func (o *Orchestrator) loadGroup(ctx context.Context, groupID string) (*models.GroupChat, []*models.Agent, error) {
	group, err := o.store.GroupChats().Get(ctx, groupID)
	if err != nil {
		return nil, nil, domainerrors.NewInternalError("failed to load group chat", err)
	}
	if group == nil {
		return nil, nil, domainerrors.NewNotFoundError("group chat", groupID)
	}
	members, err := o.directory.ResolveRefs(ctx, group.AgentIDs)
	if err != nil {
		return nil, nil, err
	}
	return group, members, nil
}

func (o *Orchestrator) groupHistory(ctx context.Context, groupID string) ([]openai.ChatCompletionMessage, error) {
	stored, err := o.store.GroupMessages().List(ctx, groupID, &docdb.ListOptions{
		Limit:   o.historyLimit,
		OrderBy: docdb.SortOrderDesc,
	})
	if err != nil {
		return nil, domainerrors.NewInternalError("failed to load group history", err)
	}
	messages := make([]models.Message, 0, len(stored))
	for _, m := range stored {
		messages = append(messages, m.ToMessage())
	}
	return speakerHistory(messages), nil
}
