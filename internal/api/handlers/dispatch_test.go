package handlers_test

import (
	"net/http"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unifiedui/multiagent-service/internal/api/dto"
	"github.com/unifiedui/multiagent-service/internal/services/dispatch"
	"github.com/unifiedui/multiagent-service/internal/services/gateway"
	"github.com/unifiedui/multiagent-service/internal/testutil"
)

func dispatchBody() dto.DispatchRequest {
	return dto.DispatchRequest{
		ChatID:   "c1",
		Messages: []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: "周末去哪"}},
	}
}

func TestDispatchHandler_Dispatch_ReturnsRawCompletion(t *testing.T) {
	// Arrange
	e := newEnv(t)
	e.gateway.setDispatch(`[{"id":"travel","name":"旅行管家"}]`)

	// Act
	w := testutil.PerformRequest(e.router, http.MethodPost, path("/dispatch"), dispatchBody(), nil)

	// Assert
	testutil.AssertStatusCode(t, http.StatusOK, w)
	var resp openai.ChatCompletionResponse
	testutil.ParseJSONResponse(t, w, &resp)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, `[{"id":"travel","name":"旅行管家"}]`, resp.Choices[0].Message.Content)
}

func TestDispatchHandler_Resolve_FallsBackToDefault(t *testing.T) {
	// Arrange
	e := newEnv(t)
	e.gateway.setDispatch("我觉得旅行管家比较合适")

	// Act
	w := testutil.PerformRequest(e.router, http.MethodPost, path("/dispatch/resolve"), dispatchBody(), nil)

	// Assert
	testutil.AssertStatusCode(t, http.StatusOK, w)
	var decision dispatch.Decision
	testutil.ParseJSONResponse(t, w, &decision)
	assert.True(t, decision.FallbackUsed)
	require.Len(t, decision.Candidates, 1)
	assert.Equal(t, travelID, decision.Candidates[0].ID)
}

func TestDispatchHandler_Resolve_DiscussKeepsFirst(t *testing.T) {
	e := newEnv(t)
	e.gateway.setDispatch("```json\n[{\"id\":\"doctor\",\"name\":\"医生\"},{\"id\":\"travel\",\"name\":\"旅行管家\"}]\n```")
	body := dispatchBody()
	body.Discuss = true

	w := testutil.PerformRequest(e.router, http.MethodPost, path("/dispatch/resolve"), body, nil)

	testutil.AssertStatusCode(t, http.StatusOK, w)
	var decision dispatch.Decision
	testutil.ParseJSONResponse(t, w, &decision)
	require.Len(t, decision.Candidates, 1)
	assert.Equal(t, doctorID, decision.Candidates[0].ID)
}

func TestDispatchHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "rate limited", err: &gateway.StatusError{StatusCode: http.StatusTooManyRequests}, status: http.StatusTooManyRequests, code: "RATE_LIMITED"},
		{name: "upstream rejects key", err: &gateway.StatusError{StatusCode: http.StatusUnauthorized}, status: http.StatusBadGateway, code: "BAD_GATEWAY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			e := newEnv(t)
			e.gateway.setDispatchErr(tt.err)

			// Act
			w := testutil.PerformRequest(e.router, http.MethodPost, path("/dispatch/resolve"), dispatchBody(), nil)

			// Assert
			testutil.AssertStatusCode(t, tt.status, w)
			var resp dto.ErrorResponse
			testutil.ParseJSONResponse(t, w, &resp)
			assert.Equal(t, tt.code, resp.Code)
		})
	}
}

func TestDispatchHandler_RequiresMessages(t *testing.T) {
	e := newEnv(t)

	w := testutil.PerformRequest(e.router, http.MethodPost, path("/dispatch"), dto.DispatchRequest{ChatID: "c1"}, nil)

	testutil.AssertStatusCode(t, http.StatusBadRequest, w)
}
