package gateway

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/unifiedui/multiagent-service/internal/pkg/observability"
)

const (
	dataPrefix   = "data:"
	doneSentinel = "[DONE]"

	initialScanBuffer = 12 * 1024
	maxScanBuffer     = 10 * 1024 * 1024
)

// StreamReader yields text fragments of a streamed completion.
//
// Read returns io.EOF once the end-of-stream sentinel arrives. The sequence
// is not restartable.
type StreamReader interface {
	Read() (string, error)
	Close() error
}

type sseStream struct {
	ctx         context.Context
	cancel      context.CancelCauseFunc
	idle        *time.Timer
	idleTimeout time.Duration
	body        io.ReadCloser
	scanner     *bufio.Scanner
	span        trace.Span
	logger      zerolog.Logger
	finished    bool
	sawStop     bool
	dropped     int
	chunks      int

	closeOnce sync.Once
}

// newSSEStream reads body until the sentinel. ctx must be the context the
// request was issued with so that cancel aborts the body read.
func newSSEStream(ctx context.Context, cancel context.CancelCauseFunc, idleTimeout time.Duration, body io.ReadCloser, span trace.Span, logger zerolog.Logger) *sseStream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, initialScanBuffer), maxScanBuffer)
	return &sseStream{
		ctx:         ctx,
		cancel:      cancel,
		idle:        time.AfterFunc(idleTimeout, func() { cancel(ErrStreamIdle) }),
		idleTimeout: idleTimeout,
		body:        body,
		scanner:     scanner,
		span:        span,
		logger:      logger,
	}
}

// ctxErr reports why the stream context ended, if it has.
func (s *sseStream) ctxErr() error {
	err := s.ctx.Err()
	if err == nil {
		return nil
	}
	if cause := context.Cause(s.ctx); errors.Is(cause, ErrStreamIdle) {
		return fmt.Errorf("no data for %s: %w", s.idleTimeout, ErrStreamIdle)
	}
	return err
}

// Read returns the next non-empty fragment. Malformed chunks are dropped.
func (s *sseStream) Read() (string, error) {
	if s.finished {
		return "", io.EOF
	}

	for s.scanner.Scan() {
		if err := s.ctxErr(); err != nil {
			return "", err
		}
		s.idle.Reset(s.idleTimeout)

		line := strings.TrimSpace(s.scanner.Text())
		if line == "" || strings.HasPrefix(line, ":") || !strings.HasPrefix(line, dataPrefix) {
			continue
		}

		data := strings.TrimSpace(strings.TrimPrefix(line, dataPrefix))
		if data == doneSentinel {
			s.finished = true
			return "", io.EOF
		}

		var chunk openai.ChatCompletionStreamResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			s.dropped++
			s.logger.Debug().Err(err).Msg("dropping malformed stream chunk")
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		choice := chunk.Choices[0]
		if choice.FinishReason != "" {
			s.sawStop = true
		}
		if choice.Delta.Content == "" {
			continue
		}
		s.chunks++
		return choice.Delta.Content, nil
	}

	if err := s.ctxErr(); err != nil {
		return "", err
	}
	if err := s.scanner.Err(); err != nil {
		return "", fmt.Errorf("read stream: %w", err)
	}
	if s.sawStop {
		s.finished = true
		return "", io.EOF
	}
	return "", fmt.Errorf("stream ended without terminal marker: %w", io.ErrUnexpectedEOF)
}

// Close releases the response body and ends the call span.
func (s *sseStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.idle.Stop()
		err = s.body.Close()
		s.span.SetAttributes(
			attribute.Int("gateway.chunks", s.chunks),
			attribute.Int("gateway.dropped_chunks", s.dropped),
		)
		if ctxErr := s.ctxErr(); ctxErr != nil && !errors.Is(ctxErr, context.Canceled) {
			observability.RecordError(s.span, ctxErr)
		}
		s.span.End()
		s.cancel(nil)
	})
	return err
}
