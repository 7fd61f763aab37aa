package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unifiedui/multiagent-service/internal/api/dto"
	"github.com/unifiedui/multiagent-service/internal/domain/models"
	"github.com/unifiedui/multiagent-service/internal/services/orchestrator"
	"github.com/unifiedui/multiagent-service/internal/testutil"
)

func noStream() *bool {
	v := false
	return &v
}

func orchestratorEvents(t *testing.T, body string) []orchestrator.Event {
	t.Helper()
	var out []orchestrator.Event
	for _, ev := range testutil.ParseSSE(t, body) {
		if ev.Event != "message" {
			continue
		}
		var e orchestrator.Event
		require.NoError(t, json.Unmarshal([]byte(ev.Data), &e))
		out = append(out, e)
	}
	return out
}

func TestChatsHandler_Turn_JSONWithMention(t *testing.T) {
	// Arrange
	e := newEnv(t)
	body := dto.ChatTurnRequest{Content: "@" + travelName + " 推荐一个周末去处", Stream: noStream()}

	// Act
	w := testutil.PerformRequest(e.router, http.MethodPost, path("/chats/turn"), body, nil)

	// Assert
	testutil.AssertStatusCode(t, http.StatusOK, w)
	var resp dto.ChatTurnResponse
	testutil.ParseJSONResponse(t, w, &resp)

	assert.True(t, resp.Persisted)
	require.Len(t, resp.Messages, 2)
	assert.True(t, resp.Messages[0].IsUser)
	assert.Equal(t, travelName, resp.Messages[1].AgentName)
	assert.Equal(t, "你好，我是旅行管家", resp.Messages[1].Content)
	assert.False(t, resp.Messages[1].IsThinking)

	stored, err := e.store.Conversations().Get(context.Background(), resp.ChatID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, int64(1), stored.Version)
	assert.Len(t, stored.Messages, 2)
}

func TestChatsHandler_Turn_StreamsEvents(t *testing.T) {
	// Arrange
	e := newEnv(t)
	e.gateway.setDispatch(`[{"id":"doctor","name":"医生"}]`)

	// Act
	w := testutil.PerformRequest(e.router, http.MethodPost, path("/chats/turn"), dto.ChatTurnRequest{Content: "头疼怎么办"}, nil)

	// Assert
	testutil.AssertStatusCode(t, http.StatusOK, w)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	raw := testutil.ParseSSE(t, w.Body.String())
	require.NotEmpty(t, raw)
	assert.Equal(t, "done", raw[len(raw)-1].Event)

	events := orchestratorEvents(t, w.Body.String())
	var types []orchestrator.EventType
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	assert.Contains(t, types, orchestrator.EventTextStream)
	assert.Contains(t, types, orchestrator.EventMessageDone)
	assert.Contains(t, types, orchestrator.EventConversation)
	assert.Equal(t, orchestrator.EventStreamEnd, types[len(types)-1])

	for _, ev := range events {
		if ev.Type == orchestrator.EventMessageDone {
			assert.Equal(t, doctorName, ev.Message.AgentName)
			assert.Equal(t, "注意休息", ev.Message.Content)
		}
	}
}

func TestChatsHandler_Turn_UnknownMentionSavesNothing(t *testing.T) {
	// Arrange
	e := newEnv(t)

	// Act
	w := testutil.PerformRequest(e.router, http.MethodPost, path("/chats/turn"), dto.ChatTurnRequest{Content: "@厨师 做个菜", Stream: noStream()}, nil)

	// Assert
	testutil.AssertStatusCode(t, http.StatusOK, w)
	var resp dto.ChatTurnResponse
	testutil.ParseJSONResponse(t, w, &resp)
	assert.False(t, resp.Persisted)
	require.Len(t, resp.Messages, 2)
	assert.True(t, resp.Messages[1].IsSystem)
	assert.Contains(t, resp.Messages[1].Content, "厨师")

	list, err := e.store.Conversations().List(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestChatsHandler_Turn_UnknownConversation(t *testing.T) {
	e := newEnv(t)

	w := testutil.PerformRequest(e.router, http.MethodPost, path("/chats/missing/turn"), dto.ChatTurnRequest{Content: "hi", Stream: noStream()}, nil)

	testutil.AssertStatusCode(t, http.StatusNotFound, w)
}

func TestChatsHandler_Turn_EmptyContent(t *testing.T) {
	e := newEnv(t)

	w := testutil.PerformRequest(e.router, http.MethodPost, path("/chats/turn"), map[string]string{"content": ""}, nil)

	testutil.AssertStatusCode(t, http.StatusBadRequest, w)
}

func TestChatsHandler_SaveMessages_VersionConflict(t *testing.T) {
	// Arrange
	e := newEnv(t)
	e.store.PutConversation(&models.Conversation{
		ID:       "c1",
		Title:    "旧标题",
		Messages: []models.Message{models.NewUserMessage("first")},
		Version:  3,
	})
	stale := int64(2)
	body := dto.SaveMessagesRequest{Messages: []models.Message{models.NewUserMessage("edited")}, Version: &stale}

	// Act
	w := testutil.PerformRequest(e.router, http.MethodPut, path("/chats/c1/messages"), body, nil)

	// Assert
	testutil.AssertStatusCode(t, http.StatusConflict, w)
	var resp dto.ConflictResponse
	testutil.ParseJSONResponse(t, w, &resp)
	assert.Equal(t, "CONFLICT", resp.Code)
	require.NotNil(t, resp.Latest)
	assert.Equal(t, int64(3), resp.Latest.Version)
	assert.Equal(t, "first", resp.Latest.Messages[0].Content)
}

func TestChatsHandler_SaveMessages_MatchingVersion(t *testing.T) {
	// Arrange
	e := newEnv(t)
	e.store.PutConversation(&models.Conversation{ID: "c1", Messages: []models.Message{}, Version: 3})
	current := int64(3)
	body := dto.SaveMessagesRequest{Messages: []models.Message{models.NewUserMessage("edited")}, Version: &current}

	// Act
	w := testutil.PerformRequest(e.router, http.MethodPut, path("/chats/c1/messages"), body, nil)

	// Assert
	testutil.AssertStatusCode(t, http.StatusOK, w)
	var resp dto.SaveMessagesResponse
	testutil.ParseJSONResponse(t, w, &resp)
	assert.Equal(t, int64(4), resp.Version)
	assert.False(t, resp.UpdatedAt.IsZero())
}

func TestChatsHandler_SaveMessages_UnknownConversation(t *testing.T) {
	e := newEnv(t)

	w := testutil.PerformRequest(e.router, http.MethodPut, path("/chats/missing/messages"), dto.SaveMessagesRequest{Messages: []models.Message{}}, nil)

	testutil.AssertStatusCode(t, http.StatusNotFound, w)
}

func TestChatsHandler_ListGetDelete(t *testing.T) {
	// Arrange
	e := newEnv(t)
	e.store.PutConversation(&models.Conversation{ID: "c1", Title: "一", Version: 1})
	e.store.PutConversation(&models.Conversation{ID: "c2", Title: "二", Version: 1})

	// Act
	list := testutil.PerformRequest(e.router, http.MethodGet, path("/chats?limit=1"), nil, nil)
	get := testutil.PerformRequest(e.router, http.MethodGet, path("/chats/c2"), nil, nil)
	del := testutil.PerformRequest(e.router, http.MethodDelete, path("/chats/c2"), nil, nil)
	gone := testutil.PerformRequest(e.router, http.MethodGet, path("/chats/c2"), nil, nil)
	delAgain := testutil.PerformRequest(e.router, http.MethodDelete, path("/chats/c2"), nil, nil)

	// Assert
	testutil.AssertStatusCode(t, http.StatusOK, list)
	var listResp dto.ListConversationsResponse
	testutil.ParseJSONResponse(t, list, &listResp)
	assert.Len(t, listResp.Conversations, 1)

	testutil.AssertStatusCode(t, http.StatusOK, get)
	var conv models.Conversation
	testutil.ParseJSONResponse(t, get, &conv)
	assert.Equal(t, "二", conv.Title)

	testutil.AssertStatusCode(t, http.StatusNoContent, del)
	testutil.AssertStatusCode(t, http.StatusNotFound, gone)
	testutil.AssertStatusCode(t, http.StatusNotFound, delAgain)
}

func TestChatsHandler_List_InvalidLimit(t *testing.T) {
	e := newEnv(t)

	w := testutil.PerformRequest(e.router, http.MethodGet, path("/chats?limit=0"), nil, nil)

	testutil.AssertStatusCode(t, http.StatusOK, w)

	w = testutil.PerformRequest(e.router, http.MethodGet, path("/chats?limit=1000"), nil, nil)
	testutil.AssertStatusCode(t, http.StatusBadRequest, w)
}
