// Package sse provides Server-Sent Events support for streaming responses.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/zerolog"

	"github.com/unifiedui/multiagent-service/internal/services/orchestrator"
)

// EventType represents the type of SSE event.
type EventType string

const (
	// EventMessage carries an orchestration event.
	EventMessage EventType = "message"
	// EventError is an error event.
	EventError EventType = "error"
	// EventDone is a stream completion event.
	EventDone EventType = "done"
)

// Writer writes Server-Sent Events to an HTTP response. It is safe for
// concurrent use.
type Writer struct {
	mu      sync.Mutex
	writer  http.ResponseWriter
	flusher http.Flusher
}

// NewWriter creates a new SSE writer.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	return &Writer{
		writer:  w,
		flusher: flusher,
	}, nil
}

// WriteEvent writes an SSE event with the given type and data.
func (w *Writer) WriteEvent(eventType EventType, data string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := fmt.Fprintf(w.writer, "event: %s\ndata: %s\n\n", eventType, data)
	if err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	w.flusher.Flush()
	return nil
}

// WriteJSON writes an SSE event with JSON-encoded data.
func (w *Writer) WriteJSON(eventType EventType, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}
	return w.WriteEvent(eventType, string(jsonData))
}

// WriteRaw writes an already encoded event payload as a message event.
func (w *Writer) WriteRaw(payload []byte) error {
	return w.WriteEvent(EventMessage, string(payload))
}

// ErrorEvent represents an error event.
type ErrorEvent struct {
	Type    orchestrator.EventType `json:"type"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details string                 `json:"details,omitempty"`
}

// WriteError writes an ERROR message.
func (w *Writer) WriteError(code, message string, details string) error {
	return w.WriteJSON(EventMessage, &ErrorEvent{
		Type:    orchestrator.EventError,
		Code:    code,
		Message: message,
		Details: details,
	})
}

// WriteDone writes a done event to signal stream completion.
func (w *Writer) WriteDone() error {
	return w.WriteEvent(EventDone, "stream completed")
}

// Sink adapts a Writer to orchestrator.Sink. Write failures are logged once
// the client has gone away; the orchestrator notices through its context.
type Sink struct {
	writer *Writer
	logger zerolog.Logger
}

// NewSink creates a sink writing every event as a message event.
func NewSink(w *Writer, logger zerolog.Logger) *Sink {
	return &Sink{writer: w, logger: logger}
}

// Emit writes e.
func (s *Sink) Emit(e orchestrator.Event) {
	if err := s.writer.WriteJSON(EventMessage, e); err != nil {
		s.logger.Debug().Err(err).Str("type", string(e.Type)).Msg("failed to write sse event")
	}
}
