// Package routes defines the HTTP routes for the multi-agent service.
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/unifiedui/multiagent-service/internal/api/handlers"
	"github.com/unifiedui/multiagent-service/internal/api/middleware"
)

// BasePath prefixes every API route.
const BasePath = "/api/v1/multiagent"

// Config holds the dependencies for setting up routes.
type Config struct {
	HealthHandler      *handlers.HealthHandler
	AgentsHandler      *handlers.AgentsHandler
	ChatsHandler       *handlers.ChatsHandler
	GroupChatsHandler  *handlers.GroupChatsHandler
	DiscussionsHandler *handlers.DiscussionsHandler
	DispatchHandler    *handlers.DispatchHandler

	// EnableDocs serves the OpenAPI UI under /docs.
	EnableDocs bool
}

// Setup configures all routes on the Gin engine.
func Setup(r *gin.Engine, cfg *Config) {
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if cfg.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	v1 := r.Group(BasePath)
	{
		v1.GET("/health", cfg.HealthHandler.Health)
		v1.GET("/ready", cfg.HealthHandler.Ready)
		v1.GET("/live", cfg.HealthHandler.Live)

		agents := v1.Group("/agents")
		{
			agents.GET("", cfg.AgentsHandler.ListAgents)
			agents.POST("", cfg.AgentsHandler.CreateAgent)
			agents.GET("/default", cfg.AgentsHandler.GetDefaultAgent)
			agents.GET("/:agentId", cfg.AgentsHandler.GetAgent)
			agents.PUT("/:agentId/credentials", cfg.AgentsHandler.UpdateCredentials)
			agents.PUT("/:agentId/status", cfg.AgentsHandler.UpdateStatus)
		}

		// 1:1 conversations
		chats := v1.Group("/chats")
		{
			chats.GET("", cfg.ChatsHandler.ListConversations)
			chats.POST("/turn", cfg.ChatsHandler.Turn)
			chats.GET("/:chatId", cfg.ChatsHandler.GetConversation)
			chats.DELETE("/:chatId", cfg.ChatsHandler.DeleteConversation)
			chats.POST("/:chatId/turn", cfg.ChatsHandler.Turn)
			chats.PUT("/:chatId/messages", cfg.ChatsHandler.SaveMessages)
		}

		groups := v1.Group("/groupchats")
		{
			groups.GET("", cfg.GroupChatsHandler.List)
			groups.POST("", cfg.GroupChatsHandler.Create)
			groups.GET("/:groupId", cfg.GroupChatsHandler.Get)
			groups.GET("/:groupId/messages", cfg.GroupChatsHandler.ListMessages)
			groups.POST("/:groupId/messages", cfg.GroupChatsHandler.AppendMessage)
			groups.POST("/:groupId/chat", cfg.GroupChatsHandler.Chat)
			groups.DELETE("/:groupId/turns/:turnId", cfg.GroupChatsHandler.CancelTurn)
			groups.GET("/:groupId/events", cfg.GroupChatsHandler.Events)
			groups.POST("/:groupId/discussions", cfg.GroupChatsHandler.StartDiscussion)
		}

		discussions := v1.Group("/discussions/:discussionId")
		{
			discussions.GET("", cfg.DiscussionsHandler.Get)
			discussions.POST("/pause", cfg.DiscussionsHandler.Pause)
			discussions.POST("/resume", cfg.DiscussionsHandler.Resume)
			discussions.POST("/abort", cfg.DiscussionsHandler.Abort)
		}

		v1.POST("/dispatch", cfg.DispatchHandler.Dispatch)
		v1.POST("/dispatch/resolve", cfg.DispatchHandler.Resolve)
	}

	r.NoRoute(middleware.NotFound())
}

// SetupWithMiddleware sets up routes with common middleware.
func SetupWithMiddleware(r *gin.Engine, cfg *Config, corsCfg middleware.CORSConfig, loggingMw *middleware.LoggingMiddleware, errorMw *middleware.ErrorMiddleware) {
	// Apply global middleware
	r.Use(loggingMw.RequestLogger())
	r.Use(loggingMw.Logger())
	r.Use(middleware.Metrics())
	r.Use(errorMw.Recovery())
	r.Use(middleware.NewCORSMiddleware(corsCfg))
	middleware.SetupCORSRoutes(r, corsCfg)

	Setup(r, cfg)
}
