package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	domainerrors "github.com/unifiedui/multiagent-service/internal/domain/errors"
	"github.com/unifiedui/multiagent-service/internal/domain/models"
	"github.com/unifiedui/multiagent-service/internal/pkg/metrics"
	"github.com/unifiedui/multiagent-service/internal/services/dispatch"
)

const modeDiscussion = "discussion"

// DiscussionRequest starts a discussion in a group. Zero Rounds uses the
// configured default.
type DiscussionRequest struct {
	GroupID string
	Topic   string
	Rounds  int
}

// Discussion is a running multi-round discussion. Exactly one agent speaks
// per round and the speaker is re-dispatched every round.
type Discussion struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	out    stamp

	mu      sync.Mutex
	state   models.DiscussionState
	current *Batch
	wake    chan struct{}
	done    chan struct{}
}

// ID identifies the discussion.
func (d *Discussion) ID() string {
	return d.id
}

// State returns a snapshot of the discussion.
func (d *Discussion) State() models.DiscussionState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshotLocked()
}

func (d *Discussion) snapshotLocked() models.DiscussionState {
	s := d.state
	s.History = models.CloneMessages(d.state.History)
	return s
}

// Pause stops new rounds from starting. A round in flight finishes.
func (d *Discussion) Pause() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch d.state.Status {
	case models.DiscussionPaused:
		return nil
	case models.DiscussionRunning:
		d.state.Status = models.DiscussionPaused
		d.state.UpdatedAt = time.Now().UTC()
		return nil
	default:
		return domainerrors.NewConflictError("discussion is not running", string(d.state.Status))
	}
}

// Resume continues with the round after the last completed one.
func (d *Discussion) Resume() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch d.state.Status {
	case models.DiscussionRunning:
		return nil
	case models.DiscussionPaused:
		d.state.Status = models.DiscussionRunning
		d.state.UpdatedAt = time.Now().UTC()
		select {
		case d.wake <- struct{}{}:
		default:
		}
		return nil
	default:
		return domainerrors.NewConflictError("discussion is not paused", string(d.state.Status))
	}
}

// Abort cancels the round in flight. Rounds already stored are kept.
func (d *Discussion) Abort() {
	d.mu.Lock()
	if !d.state.Status.Terminal() {
		d.state.Status = models.DiscussionAborted
		d.state.UpdatedAt = time.Now().UTC()
	}
	current := d.current
	d.mu.Unlock()

	d.cancel()
	if current != nil {
		current.Cancel()
	}
}

// Done is closed when the discussion loop has exited.
func (d *Discussion) Done() <-chan struct{} {
	return d.done
}

// Wait blocks until the discussion loop has exited.
func (d *Discussion) Wait() {
	<-d.done
}

// awaitTurn blocks while paused. It reports false once the discussion is
// aborted.
func (d *Discussion) awaitTurn() bool {
	for {
		d.mu.Lock()
		status := d.state.Status
		d.mu.Unlock()

		switch {
		case status == models.DiscussionRunning:
			return d.ctx.Err() == nil
		case status.Terminal():
			return false
		}

		select {
		case <-d.wake:
		case <-d.ctx.Done():
			return false
		}
	}
}

func (d *Discussion) beginRound() *Batch {
	batch := newBatch(d.ctx, 1)
	d.mu.Lock()
	d.current = batch
	d.mu.Unlock()
	return batch
}

func (d *Discussion) endRound(round int, reply *models.Message) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.current = nil
	d.state.CompletedRounds = round
	if reply != nil {
		d.state.History = append(d.state.History, *reply)
	}
	d.state.UpdatedAt = time.Now().UTC()
}

func (d *Discussion) settle(status models.DiscussionStatus, lastError string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.current = nil
	if !d.state.Status.Terminal() {
		d.state.Status = status
	}
	if lastError != "" {
		d.state.LastError = lastError
	}
	d.state.UpdatedAt = time.Now().UTC()
}

// StartDiscussion posts the topic to the group and runs the rounds in the
// background. ctx bounds the whole discussion.
func (o *Orchestrator) StartDiscussion(ctx context.Context, req DiscussionRequest, sink Sink) (*Discussion, error) {
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		return nil, domainerrors.NewValidationError("discussion topic is required", "")
	}
	rounds := req.Rounds
	if rounds == 0 {
		rounds = o.defaultRounds
	}
	if rounds < 0 || rounds > o.maxRounds {
		return nil, domainerrors.NewValidationError("invalid round count", fmt.Sprintf("rounds must be between 1 and %d", o.maxRounds))
	}
	if sink == nil {
		sink = Discard
	}

	group, members, err := o.loadGroup(ctx, req.GroupID)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, domainerrors.NewValidationError("group chat has no members", group.ID)
	}

	user := models.NewUserMessage(topic)
	if _, err := o.store.GroupMessages().Append(ctx, models.NewGroupMessage(group.ID, user)); err != nil {
		return nil, domainerrors.NewInternalError("failed to store discussion topic", err)
	}

	history, err := o.groupHistory(ctx, group.ID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	dctx, cancel := context.WithCancel(ctx)
	d := &Discussion{
		id:     uuid.NewString(),
		ctx:    dctx,
		cancel: cancel,
		state: models.DiscussionState{
			GroupID:     group.ID,
			Topic:       topic,
			TotalRounds: rounds,
			Status:      models.DiscussionRunning,
			History:     []models.Message{user},
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	d.state.ID = d.id
	d.out = stamp{sink: sink, groupID: group.ID, discussionID: d.id}

	o.discussions.put(d.id, d)
	metrics.ActiveDiscussions.Inc()
	o.storeDiscussion(ctx, d)

	d.out.Emit(messageEvent(EventMessageCreated, user))

	go o.runDiscussion(d, group.ID, members, history)
	return d, nil
}

func (o *Orchestrator) runDiscussion(d *Discussion, groupID string, members []*models.Agent, history []openai.ChatCompletionMessage) {
	logger := o.logger.With().Str("discussion_id", d.id).Str("group_id", groupID).Logger()
	defer func() {
		d.cancel()
		o.discussions.remove(d.id)
		metrics.ActiveDiscussions.Dec()
		o.storeDiscussion(d.ctx, d)
		d.out.Emit(stateEvent(StateIdle))
		d.out.Emit(Event{Type: EventStreamEnd})
		close(d.done)
	}()

	total := d.State().TotalRounds
	for round := d.State().CompletedRounds + 1; round <= total; round++ {
		if !d.awaitTurn() {
			d.settle(models.DiscussionAborted, "")
			return
		}

		reply, err := o.discussionRound(d, round, groupID, members, history)
		if err != nil {
			if d.ctx.Err() != nil {
				d.settle(models.DiscussionAborted, "")
				return
			}
			logger.Warn().Err(err).Int("round", round).Msg("discussion round failed")
			d.settle(models.DiscussionFailed, dispatchFailureMessage(err))
			return
		}
		if d.ctx.Err() != nil {
			d.settle(models.DiscussionAborted, "")
			return
		}

		d.endRound(round, reply)
		if reply != nil {
			history = append(history, speakerMessage(reply.AgentName, reply.Content))
		}
		o.storeDiscussion(d.ctx, d)
		logger.Debug().Int("round", round).Msg("discussion round completed")
	}
	d.settle(models.DiscussionCompleted, "")
}

// discussionRound dispatches one speaker and streams its reply. A failed
// reply is stored but returned as nil so it stays out of the prompt history.
func (o *Orchestrator) discussionRound(d *Discussion, round int, groupID string, members []*models.Agent, history []openai.ChatCompletionMessage) (*models.Message, error) {
	batch := d.beginRound()
	defer batch.finish()
	out := d.out
	out.round = round
	out.turnID = batch.ID()

	batch.Emit(func() { out.Emit(stateEvent(StateAwaitingDispatch)) })
	decision, err := o.dispatcher.Resolve(batch.Context(), dispatch.Request{
		ChatID:   groupID,
		GroupID:  groupID,
		Messages: history,
		Discuss:  true,
	})
	if err != nil {
		return nil, err
	}
	speakers, err := o.resolveCandidates(batch.Context(), decision.Candidates, members)
	if err != nil {
		return nil, err
	}
	if len(speakers) == 0 {
		return nil, fmt.Errorf("dispatch returned no speaker for round %d", round)
	}
	agent := speakers[0]

	board := NewBoard(nil)
	placeholder := models.NewPlaceholder(agent)
	if !batch.Emit(func() {
		board.Update(AppendMessage(placeholder))
		out.Emit(stateEvent(StateRespondingSequential))
		out.Emit(messageEvent(EventMessageCreated, placeholder))
	}) {
		return nil, nil
	}

	final, result := o.respond(agentCall{
		batch:     batch,
		board:     board,
		sink:      out,
		agent:     agent,
		messageID: placeholder.ID,
		chatID:    groupID,
		history:   history,
		mode:      modeDiscussion,
		onFinish: func(msg models.Message) {
			o.appendGroupReply(batch.Context(), groupID, msg)
		},
	})
	if result != outcomeDone {
		return nil, nil
	}
	return &final, nil
}

// Discussion returns a running discussion.
func (o *Orchestrator) Discussion(id string) (*Discussion, bool) {
	return o.discussions.get(id)
}

// DiscussionState reports a discussion's progress, from memory while it runs
// and from the session cache afterwards.
func (o *Orchestrator) DiscussionState(ctx context.Context, id string) (*models.DiscussionState, error) {
	if d, ok := o.discussions.get(id); ok {
		s := d.State()
		return &s, nil
	}
	if o.sessions != nil {
		state, err := o.sessions.GetSession(ctx, id)
		if err != nil {
			return nil, domainerrors.NewInternalError("failed to load discussion state", err)
		}
		if state != nil {
			return state, nil
		}
	}
	return nil, domainerrors.NewNotFoundError("discussion", id)
}

func (o *Orchestrator) storeDiscussion(ctx context.Context, d *Discussion) {
	if o.sessions == nil {
		return
	}
	wctx, cancel := detached(ctx)
	defer cancel()
	state := d.State()
	if err := o.sessions.SetSession(wctx, &state); err != nil {
		o.logger.Warn().Err(err).Str("discussion_id", d.id).Msg("failed to store discussion state")
	}
}
