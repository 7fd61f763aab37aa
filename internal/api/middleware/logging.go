package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// RequestIDHeader carries the request id in both directions.
	RequestIDHeader = "X-Request-ID"

	requestIDKey = "request_id"
	loggerKey    = "logger"
)

// LoggingMiddleware handles request logging.
type LoggingMiddleware struct {
	logger zerolog.Logger
}

// NewLoggingMiddleware creates a new LoggingMiddleware.
func NewLoggingMiddleware() *LoggingMiddleware {
	return &LoggingMiddleware{
		logger: log.Logger,
	}
}

// NewLoggingMiddlewareWithLogger creates a new LoggingMiddleware with a custom logger.
func NewLoggingMiddlewareWithLogger(logger zerolog.Logger) *LoggingMiddleware {
	return &LoggingMiddleware{
		logger: logger,
	}
}

// Logger returns a gin middleware that logs requests.
func (m *LoggingMiddleware) Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		// Process request
		c.Next()

		// Log after request
		latency := time.Since(start)
		status := c.Writer.Status()

		logger := GetRequestLogger(c)
		event := logger.Info()
		if status >= 400 && status < 500 {
			event = logger.Warn()
		} else if status >= 500 {
			event = logger.Error()
		}

		event.
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", query).
			Int("status", status).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent()).
			Int("body_size", c.Writer.Size()).
			Msg("request completed")
	}
}

// RequestLogger assigns a request id and a request-scoped logger.
func (m *LoggingMiddleware) RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		c.Set(requestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)

		requestLogger := m.logger.With().
			Str("request_id", requestID).
			Logger()
		c.Set(loggerKey, requestLogger)

		// Components that log through the context pick the id up too
		c.Request = c.Request.WithContext(requestLogger.WithContext(c.Request.Context()))

		c.Next()
	}
}

// GetRequestLogger retrieves the request-scoped logger from context.
func GetRequestLogger(c *gin.Context) zerolog.Logger {
	if logger, exists := c.Get(loggerKey); exists {
		if l, ok := logger.(zerolog.Logger); ok {
			return l
		}
	}
	return log.Logger
}

// GetRequestID retrieves the request ID from context.
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
