package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/unifiedui/multiagent-service/internal/api/handlers"
	"github.com/unifiedui/multiagent-service/internal/testutil"
	"github.com/unifiedui/multiagent-service/internal/testutil/memdb"
	"github.com/unifiedui/multiagent-service/internal/testutil/mocks"
)

func TestHealthHandler_Health_AllHealthy(t *testing.T) {
	// Arrange
	mockCache := &mocks.MockCacheClient{}
	mockCache.On("Ping", mock.Anything).Return(nil)

	handler := handlers.NewHealthHandler(mockCache, memdb.New())
	router := testutil.SetupTestRouter()
	router.GET("/health", handler.Health)

	// Act
	w := testutil.PerformRequest(router, http.MethodGet, "/health", nil, nil)

	// Assert
	testutil.AssertStatusCode(t, http.StatusOK, w)

	var response handlers.HealthResponse
	testutil.ParseJSONResponse(t, w, &response)
	assert.Equal(t, "healthy", response.Status)
	assert.Equal(t, "healthy", response.Components["cache"])
	assert.Equal(t, "healthy", response.Components["docdb"])
	mockCache.AssertExpectations(t)
}

func TestHealthHandler_Health_DocDBUnhealthy(t *testing.T) {
	// Arrange
	mockCache := &mocks.MockCacheClient{}
	mockCache.On("Ping", mock.Anything).Return(nil)
	store := memdb.New()
	store.PingErr = assert.AnError

	handler := handlers.NewHealthHandler(mockCache, store)
	router := testutil.SetupTestRouter()
	router.GET("/health", handler.Health)

	// Act
	w := testutil.PerformRequest(router, http.MethodGet, "/health", nil, nil)

	// Assert
	testutil.AssertStatusCode(t, http.StatusServiceUnavailable, w)

	var response handlers.HealthResponse
	testutil.ParseJSONResponse(t, w, &response)
	assert.Equal(t, "unhealthy", response.Status)
	assert.Equal(t, "healthy", response.Components["cache"])
	assert.Equal(t, "unhealthy", response.Components["docdb"])
}

func TestHealthHandler_Ready_NotReady(t *testing.T) {
	mockCache := &mocks.MockCacheClient{}
	mockCache.On("Ping", mock.Anything).Return(assert.AnError)

	handler := handlers.NewHealthHandler(mockCache, memdb.New())
	router := testutil.SetupTestRouter()
	router.GET("/ready", handler.Ready)

	w := testutil.PerformRequest(router, http.MethodGet, "/ready", nil, nil)

	testutil.AssertStatusCode(t, http.StatusServiceUnavailable, w)
}

func TestHealthHandler_Live(t *testing.T) {
	handler := handlers.NewHealthHandler(&mocks.MockCacheClient{}, memdb.New())
	router := testutil.SetupTestRouter()
	router.GET("/live", handler.Live)

	w := testutil.PerformRequest(router, http.MethodGet, "/live", nil, nil)

	testutil.AssertStatusCode(t, http.StatusOK, w)
}

func TestRoutes_UnknownPath(t *testing.T) {
	e := newEnv(t)

	w := testutil.PerformRequest(e.router, http.MethodGet, "/api/v1/multiagent/nothing-here", nil, nil)

	testutil.AssertStatusCode(t, http.StatusNotFound, w)
}
