// Package gateway is the HTTP client for the FastGPT-compatible completion API.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/unifiedui/multiagent-service/internal/pkg/metrics"
	"github.com/unifiedui/multiagent-service/internal/pkg/observability"
)

const (
	completionsPath  = "/v1/chat/completions"
	maxErrorBodySize = 4 << 10

	modeComplete = "complete"
	modeStream   = "stream"
)

// Client issues completion calls.
type Client interface {
	// Complete issues a non-streaming call and returns the parsed body.
	Complete(ctx context.Context, target Target, req *CompletionRequest) (*openai.ChatCompletionResponse, error)

	// Stream issues a streaming call. The reader must be closed.
	Stream(ctx context.Context, target Target, req *CompletionRequest) (StreamReader, error)
}

// Config holds the configuration for the gateway client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// StreamIdleTimeout bounds the gap between two lines of a streamed body.
	StreamIdleTimeout time.Duration
	Logger            zerolog.Logger
}

type client struct {
	http        *resty.Client
	baseURL     string
	timeout     time.Duration
	idleTimeout time.Duration
	logger      zerolog.Logger
}

// NewClient creates a resty-backed gateway client.
func NewClient(cfg *Config) (Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("base URL is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	idleTimeout := cfg.StreamIdleTimeout
	if idleTimeout <= 0 {
		idleTimeout = 60 * time.Second
	}

	logger := cfg.Logger.With().Str("component", "gateway").Logger()

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
	}

	httpClient := resty.New().
		SetTransport(transport).
		SetHeader("Content-Type", "application/json").
		OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
			logger.Debug().Str("method", r.Method).Str("url", r.URL).Msg("gateway request")
			return nil
		}).
		OnAfterResponse(func(_ *resty.Client, r *resty.Response) error {
			logger.Debug().
				Int("status", r.StatusCode()).
				Dur("elapsed", r.Time()).
				Msg("gateway response")
			return nil
		})

	return &client{
		http:        httpClient,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		timeout:     timeout,
		idleTimeout: idleTimeout,
		logger:      logger,
	}, nil
}

func (c *client) endpoint(target Target) string {
	base := c.baseURL
	if b := strings.TrimSpace(target.BaseURL); b != "" {
		base = strings.TrimRight(b, "/")
	}
	return base + completionsPath
}

// Complete issues a non-streaming call bounded by the configured timeout.
func (c *client) Complete(ctx context.Context, target Target, req *CompletionRequest) (*openai.ChatCompletionResponse, error) {
	if strings.TrimSpace(target.APIKey) == "" {
		return nil, ErrMissingCredential
	}
	if req == nil {
		return nil, fmt.Errorf("completion request is required")
	}

	ctx, span := observability.StartGatewaySpan(ctx, modeComplete, req.ChatID)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body := *req
	body.Stream = false

	started := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(target.APIKey).
		SetBody(&body).
		Post(c.endpoint(target))
	if err != nil {
		c.observe(modeComplete, err, started)
		observability.RecordError(span, err)
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}

	if resp.IsError() {
		err := &StatusError{StatusCode: resp.StatusCode(), Body: truncate(resp.String())}
		c.observe(modeComplete, err, started)
		observability.RecordError(span, err)
		return nil, err
	}

	var completion openai.ChatCompletionResponse
	if err := json.Unmarshal(resp.Body(), &completion); err != nil {
		perr := &ParseError{Err: err}
		c.observe(modeComplete, perr, started)
		observability.RecordError(span, perr)
		return nil, perr
	}

	c.observe(modeComplete, nil, started)
	return &completion, nil
}

// Stream issues a streaming call. Cancel ctx to stop reading. A body that
// stays silent for the idle timeout is aborted with ErrStreamIdle.
func (c *client) Stream(ctx context.Context, target Target, req *CompletionRequest) (StreamReader, error) {
	if strings.TrimSpace(target.APIKey) == "" {
		return nil, ErrMissingCredential
	}
	if req == nil {
		return nil, fmt.Errorf("completion request is required")
	}

	streamCtx, cancel := context.WithCancelCause(ctx)
	spanCtx, span := observability.StartGatewaySpan(streamCtx, modeStream, req.ChatID)

	body := *req
	body.Stream = true

	started := time.Now()
	resp, err := c.http.R().
		SetContext(spanCtx).
		SetAuthToken(target.APIKey).
		SetHeader("Accept", "text/event-stream").
		SetBody(&body).
		SetDoNotParseResponse(true).
		Post(c.endpoint(target))
	if err != nil {
		if resp != nil && resp.RawBody() != nil {
			_ = resp.RawBody().Close()
		}
		c.observe(modeStream, err, started)
		observability.RecordError(span, err)
		span.End()
		cancel(nil)
		return nil, fmt.Errorf("gateway stream request failed: %w", err)
	}

	raw := resp.RawBody()
	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		data, _ := io.ReadAll(io.LimitReader(raw, maxErrorBodySize))
		_ = raw.Close()
		err := &StatusError{StatusCode: resp.StatusCode(), Body: strings.TrimSpace(string(data))}
		c.observe(modeStream, err, started)
		observability.RecordError(span, err)
		span.End()
		cancel(nil)
		return nil, err
	}

	c.observe(modeStream, nil, started)
	return newSSEStream(streamCtx, cancel, c.idleTimeout, raw, span, c.logger), nil
}

func (c *client) observe(mode string, err error, started time.Time) {
	outcome := "ok"
	if err != nil {
		outcome = Classify(err).String()
	}
	metrics.RecordGatewayCall(mode, outcome, time.Since(started))
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxErrorBodySize {
		return s[:maxErrorBodySize]
	}
	return s
}
