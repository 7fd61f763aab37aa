package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// CORSConfig contains the configuration for CORS middleware.
type CORSConfig struct {
	AllowOrigins     []string
	AllowMethods     []string
	AllowHeaders     []string
	ExposeHeaders    []string
	AllowCredentials bool
	MaxAge           int
}

// NewCORSConfig returns the default configuration restricted to origins.
// An empty list keeps the local development origins.
func NewCORSConfig(origins []string) CORSConfig {
	cfg := DefaultCORSConfig()
	if len(origins) > 0 {
		cfg.AllowOrigins = origins
	}
	return cfg
}

// DefaultCORSConfig returns a default CORS configuration.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins: []string{
			"http://localhost:5173",
			"http://localhost:5174",
			"http://localhost:3000",
		},
		AllowMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
			http.MethodHead,
		},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Content-Length",
			"Accept",
			"Accept-Encoding",
			"Accept-Language",
			"Authorization",
			"X-Requested-With",
			"X-Request-ID",
			"X-Correlation-ID",
			"Cache-Control",
			"Last-Event-ID",
		},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
			"X-Correlation-ID",
		},
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}
}

// NewCORSMiddleware creates a new CORS middleware with the given configuration.
func NewCORSMiddleware(cfg CORSConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		// Check if origin is allowed
		allowedOrigin := ""
		for _, o := range cfg.AllowOrigins {
			if o == "*" || o == origin {
				allowedOrigin = origin
				break
			}
		}

		// Always set CORS headers if origin is allowed
		if allowedOrigin != "" {
			c.Header("Access-Control-Allow-Origin", allowedOrigin)
			if cfg.AllowCredentials {
				c.Header("Access-Control-Allow-Credentials", "true")
			}
			c.Header("Access-Control-Allow-Headers", strings.Join(cfg.AllowHeaders, ", "))
			c.Header("Access-Control-Allow-Methods", strings.Join(cfg.AllowMethods, ", "))
			c.Header("Access-Control-Expose-Headers", strings.Join(cfg.ExposeHeaders, ", "))
			c.Header("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
			c.Header("Vary", "Origin")
		}

		// Handle preflight request - must abort with 204 before reaching route handlers
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// SetupCORSRoutes adds explicit OPTIONS handlers for all routes to ensure CORS preflight works.
// This is necessary because Gin's middleware doesn't run for 404 routes.
func SetupCORSRoutes(router *gin.Engine, cfg CORSConfig) {
	handler := NewCORSMiddleware(cfg)

	// Handle OPTIONS for any route
	router.OPTIONS("/*path", handler)
}
