package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrMissingCredential is returned when a call is attempted without a bearer key.
var ErrMissingCredential = errors.New("gateway: missing credential")

// ErrStreamIdle is returned by StreamReader.Read when the upstream sends
// nothing for longer than the stream idle timeout.
var ErrStreamIdle = fmt.Errorf("gateway: stream idle: %w", context.DeadlineExceeded)

// StatusError is a non-2xx answer from the completion API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("gateway: status %d", e.StatusCode)
	}
	return fmt.Sprintf("gateway: status %d: %s", e.StatusCode, e.Body)
}

// ErrorKind groups gateway failures by how callers react to them.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindConfiguration
	KindAuthentication
	KindRateLimit
	KindServer
	KindTransient
	KindParse
	KindCancelled
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindAuthentication:
		return "authentication"
	case KindRateLimit:
		return "rate_limit"
	case KindServer:
		return "server"
	case KindTransient:
		return "transient"
	case KindParse:
		return "parse"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ParseError wraps a response body that could not be decoded.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return "gateway: malformed response: " + e.Err.Error() }

func (e *ParseError) Unwrap() error { return e.Err }

// Classify maps an error returned by the client to its kind.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	if errors.Is(err, ErrMissingCredential) {
		return KindConfiguration
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return KindAuthentication
		case http.StatusTooManyRequests:
			return KindRateLimit
		case http.StatusInternalServerError:
			return KindServer
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout, http.StatusRequestTimeout:
			return KindTransient
		default:
			return KindUnknown
		}
	}

	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return KindParse
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindTransient
	}
	return KindUnknown
}

// IsRetryable reports whether a repeated call may succeed.
func IsRetryable(err error) bool {
	switch Classify(err) {
	case KindTransient, KindServer:
		return true
	}
	return false
}
