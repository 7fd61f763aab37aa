// Package middleware provides HTTP middleware for the API.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/unifiedui/multiagent-service/internal/api/dto"
	"github.com/unifiedui/multiagent-service/internal/core/docdb"
	domainerrors "github.com/unifiedui/multiagent-service/internal/domain/errors"
)

// ErrorMiddleware handles error recovery and formatting.
type ErrorMiddleware struct{}

// NewErrorMiddleware creates a new ErrorMiddleware.
func NewErrorMiddleware() *ErrorMiddleware {
	return &ErrorMiddleware{}
}

// Recovery returns a gin middleware that recovers from panics.
func (m *ErrorMiddleware) Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger := GetRequestLogger(c)
				logger.Error().
					Interface("error", err).
					Str("path", c.Request.URL.Path).
					Str("method", c.Request.Method).
					Msg("panic recovered")

				c.AbortWithStatusJSON(http.StatusInternalServerError, dto.ErrorResponse{
					Code:    domainerrors.ErrCodeInternal,
					Message: "internal server error",
				})
			}
		}()
		c.Next()
	}
}

// HandleError handles errors and sends appropriate HTTP responses.
func HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	// Version conflicts carry the latest stored state
	if conflict, ok := docdb.AsConflict(err); ok {
		c.AbortWithStatusJSON(http.StatusConflict, dto.ConflictResponse{
			Code:    domainerrors.ErrCodeConflict,
			Message: conflict.Error(),
			Latest:  conflict.Latest,
		})
		return
	}

	// Check for domain errors
	if domainErr, ok := domainerrors.GetDomainError(err); ok {
		if domainErr.HTTPStatus >= http.StatusInternalServerError {
			logger := GetRequestLogger(c)
			logger.Error().Err(err).Msg("request failed")
		}
		c.AbortWithStatusJSON(domainErr.HTTPStatus, dto.ErrorResponse{
			Code:    domainErr.Code,
			Message: domainErr.Message,
			Details: domainErr.Details,
		})
		return
	}

	// Default to internal server error
	logger := GetRequestLogger(c)
	logger.Error().Err(err).Msg("unhandled error")
	c.AbortWithStatusJSON(http.StatusInternalServerError, dto.ErrorResponse{
		Code:    domainerrors.ErrCodeInternal,
		Message: "internal server error",
	})
}

// NotFound returns a 404 handler.
func NotFound() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Code:    domainerrors.ErrCodeNotFound,
			Message: "resource not found",
			Details: c.Request.URL.Path,
		})
	}
}
