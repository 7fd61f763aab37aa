package orchestrator

import (
	"context"

	"github.com/unifiedui/multiagent-service/internal/domain/models"
)

// EventType names an orchestration event.
type EventType string

const (
	EventTurnState      EventType = "TURN_STATE"
	EventMessageCreated EventType = "MESSAGE_CREATED"
	EventTextStream     EventType = "TEXT_STREAM"
	EventMessageDone    EventType = "MESSAGE_DONE"
	EventMessageFailed  EventType = "MESSAGE_FAILED"
	EventConversation   EventType = "CONVERSATION"
	EventSaveFailed     EventType = "SAVE_FAILED"
	EventStreamEnd      EventType = "STREAM_END"
	EventError          EventType = "ERROR"
)

// TurnState is the orchestration phase of a turn.
type TurnState string

const (
	StateIdle                 TurnState = "Idle"
	StateAwaitingDispatch     TurnState = "AwaitingDispatch"
	StateRespondingSingle     TurnState = "RespondingSingle"
	StateRespondingParallel   TurnState = "RespondingParallel"
	StateRespondingSequential TurnState = "RespondingSequential"
	StatePersisting           TurnState = "Persisting"
)

// Event is one orchestration update pushed to a Sink.
type Event struct {
	Type         EventType            `json:"type"`
	TurnID       string               `json:"turnId,omitempty"`
	GroupID      string               `json:"groupId,omitempty"`
	DiscussionID string               `json:"discussionId,omitempty"`
	Round        int                  `json:"round,omitempty"`
	State        TurnState            `json:"state,omitempty"`
	MessageID    string               `json:"messageId,omitempty"`
	Message      *models.Message      `json:"message,omitempty"`
	Delta        string               `json:"delta,omitempty"`
	Conversation *models.Conversation `json:"conversation,omitempty"`
	Error        string               `json:"error,omitempty"`
}

// Sink receives events. Implementations must be safe for concurrent use.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

// Emit calls f.
func (f SinkFunc) Emit(e Event) { f(e) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// ConversationCallbacks is notified after 1:1 conversations are persisted.
type ConversationCallbacks interface {
	OnConversationCreated(ctx context.Context, conv *models.Conversation)
	OnConversationUpdated(ctx context.Context, conv *models.Conversation)
}

type noopCallbacks struct{}

func (noopCallbacks) OnConversationCreated(context.Context, *models.Conversation) {}
func (noopCallbacks) OnConversationUpdated(context.Context, *models.Conversation) {}

// stamp fills the turn-scoped fields of events before they reach a sink.
type stamp struct {
	sink         Sink
	turnID       string
	groupID      string
	discussionID string
	round        int
}

func (s stamp) Emit(e Event) {
	if e.TurnID == "" {
		e.TurnID = s.turnID
	}
	if e.GroupID == "" {
		e.GroupID = s.groupID
	}
	if e.DiscussionID == "" {
		e.DiscussionID = s.discussionID
	}
	if e.Round == 0 {
		e.Round = s.round
	}
	s.sink.Emit(e)
}

func stateEvent(state TurnState) Event {
	return Event{Type: EventTurnState, State: state}
}

func messageEvent(t EventType, m models.Message) Event {
	return Event{Type: t, MessageID: m.ID, Message: &m}
}
