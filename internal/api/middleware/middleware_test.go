package middleware_test

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unifiedui/multiagent-service/internal/api/dto"
	"github.com/unifiedui/multiagent-service/internal/api/middleware"
	"github.com/unifiedui/multiagent-service/internal/core/docdb"
	"github.com/unifiedui/multiagent-service/internal/domain/models"
	"github.com/unifiedui/multiagent-service/internal/testutil"

	domainerrors "github.com/unifiedui/multiagent-service/internal/domain/errors"
)

func newRouter(handler gin.HandlerFunc) *gin.Engine {
	router := testutil.SetupTestRouter()
	logging := middleware.NewLoggingMiddlewareWithLogger(zerolog.Nop())
	router.Use(logging.RequestLogger(), middleware.NewErrorMiddleware().Recovery())
	router.GET("/x", handler)
	return router
}

func TestRequestLogger_EchoesRequestID(t *testing.T) {
	// Arrange
	var seen string
	router := newRouter(func(c *gin.Context) {
		seen = middleware.GetRequestID(c)
		c.Status(http.StatusNoContent)
	})
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-123")
	w := httptest.NewRecorder()

	// Act
	router.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, "req-123", seen)
	assert.Equal(t, "req-123", w.Header().Get(middleware.RequestIDHeader))
}

func TestRequestLogger_GeneratesRequestID(t *testing.T) {
	router := newRouter(func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := testutil.PerformRequest(router, http.MethodGet, "/x", nil, nil)

	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
}

func TestRecovery_ReturnsInternalError(t *testing.T) {
	router := newRouter(func(c *gin.Context) { panic("boom") })

	w := testutil.PerformRequest(router, http.MethodGet, "/x", nil, nil)

	var resp dto.ErrorResponse
	testutil.AssertStatusCode(t, http.StatusInternalServerError, w)
	testutil.ParseJSONResponse(t, w, &resp)
	assert.Equal(t, domainerrors.ErrCodeInternal, resp.Code)
}

func TestHandleError(t *testing.T) {
	latest := &models.Conversation{ID: "c1", Title: "旅行", Version: 4}

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "version conflict",
			err:        fmt.Errorf("save: %w", &docdb.ConflictError{ConversationID: "c1", ExpectedVersion: 3, Latest: latest}),
			wantStatus: http.StatusConflict,
			wantCode:   domainerrors.ErrCodeConflict,
		},
		{
			name:       "domain error",
			err:        domainerrors.NewNotFoundError("conversation", "c9"),
			wantStatus: http.StatusNotFound,
			wantCode:   domainerrors.ErrCodeNotFound,
		},
		{
			name:       "gateway error",
			err:        domainerrors.NewBadGatewayError("fastgpt", errors.New("eof")),
			wantStatus: http.StatusBadGateway,
			wantCode:   domainerrors.ErrCodeBadGateway,
		},
		{
			name:       "unknown error",
			err:        errors.New("disk on fire"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   domainerrors.ErrCodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			router := newRouter(func(c *gin.Context) { middleware.HandleError(c, tt.err) })

			// Act
			w := testutil.PerformRequest(router, http.MethodGet, "/x", nil, nil)

			// Assert
			testutil.AssertStatusCode(t, tt.wantStatus, w)
			var resp dto.ConflictResponse
			testutil.ParseJSONResponse(t, w, &resp)
			assert.Equal(t, tt.wantCode, resp.Code)
			if tt.wantStatus == http.StatusConflict {
				require.NotNil(t, resp.Latest)
				assert.Equal(t, int64(4), resp.Latest.Version)
			}
		})
	}
}

func TestCORS_PreflightShortCircuits(t *testing.T) {
	// Arrange
	router := testutil.SetupTestRouter()
	cfg := middleware.NewCORSConfig([]string{"https://chat.example.com"})
	router.Use(middleware.NewCORSMiddleware(cfg))
	middleware.SetupCORSRoutes(router, cfg)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/multiagent/chats", nil)
	req.Header.Set("Origin", "https://chat.example.com")
	w := httptest.NewRecorder()

	// Act
	router.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://chat.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Last-Event-ID")
}

func TestCORS_UnknownOriginGetsNoHeaders(t *testing.T) {
	router := testutil.SetupTestRouter()
	router.Use(middleware.NewCORSMiddleware(middleware.DefaultCORSConfig()))
	router.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
