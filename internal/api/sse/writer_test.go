package sse_test

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unifiedui/multiagent-service/internal/api/sse"
	"github.com/unifiedui/multiagent-service/internal/services/orchestrator"
	"github.com/unifiedui/multiagent-service/internal/testutil"
)

func TestWriter_SinkAndDone(t *testing.T) {
	// Arrange
	rec := httptest.NewRecorder()
	w, err := sse.NewWriter(rec)
	require.NoError(t, err)
	sink := sse.NewSink(w, zerolog.Nop())

	// Act
	sink.Emit(orchestrator.Event{Type: orchestrator.EventTextStream, MessageID: "m1", Delta: "你好"})
	require.NoError(t, w.WriteError("RATE_LIMITED", "slow down", ""))
	require.NoError(t, w.WriteDone())

	// Assert
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))

	events := testutil.ParseSSE(t, rec.Body.String())
	require.Len(t, events, 3)
	assert.Equal(t, "message", events[0].Event)
	assert.JSONEq(t, `{"type":"TEXT_STREAM","messageId":"m1","delta":"你好"}`, events[0].Data)
	assert.True(t, strings.Contains(events[1].Data, `"type":"ERROR"`))
	assert.True(t, strings.Contains(events[1].Data, `"code":"RATE_LIMITED"`))
	assert.Equal(t, "done", events[2].Event)
}

func TestWriter_WriteRaw(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := sse.NewWriter(rec)
	require.NoError(t, err)

	require.NoError(t, w.WriteRaw([]byte(`{"type":"STREAM_END"}`)))

	assert.Equal(t, "event: message\ndata: {\"type\":\"STREAM_END\"}\n\n", rec.Body.String())
}
