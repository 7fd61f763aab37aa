package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/unifiedui/multiagent-service/internal/domain/errors"
	"github.com/unifiedui/multiagent-service/internal/domain/models"
	"github.com/unifiedui/multiagent-service/internal/services/dispatch"
)

func waitBatch(t *testing.T, b *Batch) {
	t.Helper()
	select {
	case <-b.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("batch did not finish")
	}
}

func TestStartGroupTurn_ParallelRepliesPersistIndependently(t *testing.T) {
	// Arrange
	h := newHarness()
	h.addGroup("g1", travelAgent, doctorAgent, chefAgent)
	h.dispatcher.fn = pick(travelAgent, doctorAgent, chefAgent)
	h.gateway.on("key-travel", &script{chunks: []string{"去京都"}, delay: 30 * time.Millisecond})
	h.gateway.on("key-doctor", &script{chunks: []string{"带药"}, delay: 5 * time.Millisecond})
	h.gateway.on("key-chef", &script{chunks: []string{"吃拉面"}, delay: 15 * time.Millisecond})
	rec := &recorder{}

	// Act
	turn, err := h.orch.StartGroupTurn(context.Background(), GroupTurnRequest{GroupID: "g1", Content: "假期去哪"}, rec)
	require.NoError(t, err)
	waitBatch(t, turn.Batch)

	// Assert
	require.Len(t, turn.Placeholders, 3)
	for _, p := range turn.Placeholders {
		assert.True(t, p.IsThinking)
	}

	stored := h.groupMessages("g1")
	require.Len(t, stored, 4)
	assert.True(t, stored[0].IsUser)
	contents := []string{stored[1].Content, stored[2].Content, stored[3].Content}
	assert.ElementsMatch(t, []string{"去京都", "带药", "吃拉面"}, contents)

	done := rec.ofType(EventMessageDone)
	require.Len(t, done, 3)
	assert.Equal(t, "带药", done[0].Message.Content)

	events := rec.all()
	assert.Equal(t, EventStreamEnd, events[len(events)-1].Type)
	for _, e := range events {
		assert.Equal(t, "g1", e.GroupID)
	}
	assert.False(t, h.orch.CancelTurn(turn.ID()))
}

func TestStartGroupTurn_HistoryPrefixesSpeakers(t *testing.T) {
	// Arrange
	h := newHarness()
	h.addGroup("g1", travelAgent)
	earlier := models.Message{ID: "m-earlier", AgentName: "旅行管家", Content: "推荐京都", Timestamp: time.Now().Add(-time.Minute)}
	_, err := h.store.GroupMessages().Append(context.Background(), models.NewGroupMessage("g1", earlier))
	require.NoError(t, err)
	h.gateway.on("key-travel", &script{chunks: []string{"好"}})

	// Act
	turn, err := h.orch.StartGroupTurn(context.Background(), GroupTurnRequest{GroupID: "g1", Content: "还有呢"}, nil)
	require.NoError(t, err)
	waitBatch(t, turn.Batch)

	// Assert
	calls := h.gateway.streamCalls()
	require.Len(t, calls, 1)
	require.Len(t, calls[0].history, 2)
	assert.Equal(t, "旅行管家：推荐京都", calls[0].history[0].Content)
	assert.Equal(t, "还有呢", calls[0].history[1].Content)

	reqs := h.dispatcher.calls()
	require.Len(t, reqs, 1)
	assert.Equal(t, "g1", reqs[0].GroupID)
	assert.False(t, reqs[0].Discuss)
}

func TestStartGroupTurn_FailedAgentTextIsStored(t *testing.T) {
	// Arrange
	h := newHarness()
	h.addGroup("g1", mutedAgent, doctorAgent)
	h.dispatcher.fn = pick(mutedAgent, doctorAgent)
	h.gateway.on("key-doctor", &script{chunks: []string{"多休息"}})
	rec := &recorder{}

	// Act
	turn, err := h.orch.StartGroupTurn(context.Background(), GroupTurnRequest{GroupID: "g1", Content: "累了"}, rec)
	require.NoError(t, err)
	waitBatch(t, turn.Batch)

	// Assert
	failed := rec.ofType(EventMessageFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, MsgMissingAPIKey, failed[0].Message.Content)

	stored := h.groupMessages("g1")
	require.Len(t, stored, 3)
	contents := []string{stored[1].Content, stored[2].Content}
	assert.ElementsMatch(t, []string{MsgMissingAPIKey, "多休息"}, contents)
}

func TestStartGroupTurn_MentionSkipsDispatch(t *testing.T) {
	h := newHarness()
	h.addGroup("g1", travelAgent, doctorAgent)
	h.gateway.on("key-doctor", &script{chunks: []string{"嗯"}})

	turn, err := h.orch.StartGroupTurn(context.Background(), GroupTurnRequest{GroupID: "g1", Content: "@医生 头疼"}, nil)
	require.NoError(t, err)
	waitBatch(t, turn.Batch)

	assert.Empty(t, h.dispatcher.calls())
	require.Len(t, turn.Placeholders, 1)
	assert.Equal(t, "医生", turn.Placeholders[0].AgentName)
}

func TestStartGroupTurn_UnknownMemberMentionStoresNothing(t *testing.T) {
	// Arrange
	h := newHarness()
	h.addGroup("g1", travelAgent)

	// Act
	turn, err := h.orch.StartGroupTurn(context.Background(), GroupTurnRequest{GroupID: "g1", Content: "@医生 头疼"}, nil)

	// Assert
	require.NoError(t, err)
	require.NotNil(t, turn.Notice)
	assert.Equal(t, UnknownMentionMessage("医生", []string{"旅行管家"}), turn.Notice.Content)
	assert.Nil(t, turn.UserMessage)
	assert.Empty(t, h.groupMessages("g1"))
	assert.Empty(t, h.gateway.streamCalls())
	waitBatch(t, turn.Batch)
}

func TestStartGroupTurn_DispatchFailureNotice(t *testing.T) {
	h := newHarness()
	h.addGroup("g1", travelAgent)
	h.dispatcher.fn = func(int, dispatch.Request) (*dispatch.Decision, error) {
		return nil, dispatch.ErrDispatchNotConfigured
	}

	turn, err := h.orch.StartGroupTurn(context.Background(), GroupTurnRequest{GroupID: "g1", Content: "hi"}, nil)

	require.NoError(t, err)
	require.NotNil(t, turn.Notice)
	assert.Equal(t, MsgDispatchNotConfigured, turn.Notice.Content)
	assert.Len(t, h.groupMessages("g1"), 1)
}

func TestStartGroupTurn_CancelSuppressesCallbacks(t *testing.T) {
	// Arrange
	h := newHarness()
	h.addGroup("g1", travelAgent, doctorAgent)
	h.dispatcher.fn = pick(travelAgent, doctorAgent)
	started := make(chan struct{}, 2)
	never := make(chan struct{})
	h.gateway.on("key-travel", &script{chunks: []string{"x"}, started: started, release: never})
	h.gateway.on("key-doctor", &script{chunks: []string{"y"}, started: started, release: never})
	rec := &recorder{}

	turn, err := h.orch.StartGroupTurn(context.Background(), GroupTurnRequest{GroupID: "g1", Content: "hi"}, rec)
	require.NoError(t, err)
	<-started
	<-started

	// Act
	require.True(t, h.orch.CancelTurn(turn.ID()))
	seen := len(rec.all())
	waitBatch(t, turn.Batch)

	// Assert
	assert.Len(t, rec.all(), seen)
	assert.Empty(t, rec.ofType(EventMessageDone))
	assert.Empty(t, rec.ofType(EventMessageFailed))
	assert.Len(t, h.groupMessages("g1"), 1)
}

func TestAppendGroupReply_IsIdempotent(t *testing.T) {
	h := newHarness()
	h.addGroup("g1", travelAgent)
	reply := models.Message{ID: "m1", AgentName: "旅行管家", Content: "hi", Timestamp: time.Now()}

	h.orch.appendGroupReply(context.Background(), "g1", reply)
	h.orch.appendGroupReply(context.Background(), "g1", reply)

	exists, err := h.store.GroupMessages().Append(context.Background(), models.NewGroupMessage("g1", reply))
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Len(t, h.groupMessages("g1"), 1)
}

func TestStartGroupTurn_Errors(t *testing.T) {
	h := newHarness()

	_, err := h.orch.StartGroupTurn(context.Background(), GroupTurnRequest{GroupID: "missing", Content: "hi"}, nil)
	assert.True(t, domainerrors.IsNotFound(err))

	_, err = h.orch.StartGroupTurn(context.Background(), GroupTurnRequest{GroupID: "g1", Content: ""}, nil)
	assert.True(t, domainerrors.IsValidationError(err))
}
