// Package testutil provides HTTP helpers shared by handler tests.
package testutil

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

// SetupTestRouter creates a new Gin router in test mode.
func SetupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

// PerformRequest performs an HTTP request against the router.
func PerformRequest(router http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// ParseJSONResponse parses the JSON response body into the given struct.
func ParseJSONResponse(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	err := json.Unmarshal(w.Body.Bytes(), v)
	require.NoError(t, err, "failed to parse JSON response")
}

// AssertStatusCode asserts the response status code.
func AssertStatusCode(t *testing.T, expected int, w *httptest.ResponseRecorder) {
	t.Helper()
	require.Equal(t, expected, w.Code, "unexpected status code: %s", w.Body.String())
}

// SSEEvent is one parsed Server-Sent Event.
type SSEEvent struct {
	Event string
	Data  string
}

// ParseSSE splits a recorded event stream into events.
func ParseSSE(t *testing.T, body string) []SSEEvent {
	t.Helper()
	var (
		events  []SSEEvent
		current SSEEvent
	)
	scanner := bufio.NewScanner(strings.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if current.Event != "" || current.Data != "" {
				events = append(events, current)
			}
			current = SSEEvent{}
		case strings.HasPrefix(line, "event: "):
			current.Event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			current.Data = strings.TrimPrefix(line, "data: ")
		}
	}
	require.NoError(t, scanner.Err())
	if current.Event != "" || current.Data != "" {
		events = append(events, current)
	}
	return events
}
