// Package main is the entry point for the multi-agent chat service.
// @title Multi-Agent Chat Service API
// @version 1.0
// @description Orchestrates conversations between a user and a roster of FastGPT agents: 1:1 chats, group chats and multi-round discussions.

// @contact.name API Support
// @contact.url https://github.com/unifiedui/multiagent-service
// @contact.email support@unifiedui.io

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8085
// @BasePath /
// @schemes http https
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	_ "github.com/unifiedui/multiagent-service/docs"
	"github.com/unifiedui/multiagent-service/internal/api/handlers"
	"github.com/unifiedui/multiagent-service/internal/api/middleware"
	"github.com/unifiedui/multiagent-service/internal/api/routes"
	"github.com/unifiedui/multiagent-service/internal/config"
	"github.com/unifiedui/multiagent-service/internal/core/cache"
	"github.com/unifiedui/multiagent-service/internal/core/docdb"
	"github.com/unifiedui/multiagent-service/internal/core/events"
	"github.com/unifiedui/multiagent-service/internal/core/vault"
	rediscache "github.com/unifiedui/multiagent-service/internal/infrastructure/cache/redis"
	"github.com/unifiedui/multiagent-service/internal/infrastructure/docdb/mongodb"
	dotenvvault "github.com/unifiedui/multiagent-service/internal/infrastructure/vault/dotenv"
	"github.com/unifiedui/multiagent-service/internal/pkg/encryption"
	"github.com/unifiedui/multiagent-service/internal/pkg/logger"
	"github.com/unifiedui/multiagent-service/internal/pkg/observability"
	"github.com/unifiedui/multiagent-service/internal/pkg/retry"
	"github.com/unifiedui/multiagent-service/internal/services/directory"
	"github.com/unifiedui/multiagent-service/internal/services/dispatch"
	"github.com/unifiedui/multiagent-service/internal/services/gateway"
	"github.com/unifiedui/multiagent-service/internal/services/orchestrator"
	"github.com/unifiedui/multiagent-service/internal/services/session"
)

const shutdownTimeout = 10 * time.Second

// indexRetryPolicy covers a database that starts alongside the service.
var indexRetryPolicy = retry.Policy{
	MaxRetries:      5,
	InitialDelay:    500 * time.Millisecond,
	MaxDelay:        5 * time.Second,
	BackoffStrategy: retry.BackoffExponential,
	JitterFactor:    0.1,
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log)
	ctx := context.Background()

	shutdownTracing, err := observability.Setup(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tracing")
	}

	// Initialize vault client using factory pattern
	vaultClient, err := createVaultClient(cfg.Vault)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize vault client")
	}
	defer vaultClient.Close()

	// Initialize cache client using factory pattern
	cacheClient, bus, err := createCacheClient(cfg.Cache)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize cache client")
	}
	defer cacheClient.Close()

	// Initialize document db client using factory pattern
	docDBClient, err := createDocDBClient(ctx, cfg.DocDB)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize document db client")
	}
	defer docDBClient.Close(ctx)

	// Ensure database indexes
	if err := docdb.EnsureIndexes(ctx, docDBClient, indexRetryPolicy); err != nil {
		log.Warn().Err(err).Msg("failed to ensure indexes")
	}

	// Initialize encryptor
	encryptor, err := createEncryptor(ctx, cfg.Vault, vaultClient, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize encryptor")
	}

	directoryService, err := directory.NewService(&directory.Config{
		Agents:         docDBClient.Agents(),
		CacheClient:    cacheClient,
		Encryptor:      encryptor,
		CacheTTL:       cfg.Cache.TTL,
		DefaultAgentID: cfg.Orchestrator.DefaultAgentID,
		Logger:         log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize agent directory")
	}

	gatewayClient, err := gateway.NewClient(&gateway.Config{
		BaseURL:           cfg.Gateway.BaseURL,
		Timeout:           cfg.Gateway.Timeout,
		StreamIdleTimeout: cfg.Gateway.StreamIdleTimeout,
		Logger:            log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize completion gateway")
	}

	resolver, err := dispatch.NewResolver(&dispatch.Config{
		Gateway:       gatewayClient,
		Directory:     directoryService,
		Vault:         vaultClient,
		CredentialURI: cfg.Gateway.DispatchCredentialURI,
		MaxRetries:    cfg.Orchestrator.DispatchMaxRetries,
		RetryDelay:    cfg.Orchestrator.DispatchRetryDelay,
		Logger:        log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize dispatch resolver")
	}

	// Initialize session service
	sessionService, err := session.NewService(&session.Config{
		CacheClient: cacheClient,
		Encryptor:   encryptor,
		TTL:         cfg.Orchestrator.DiscussionStateTTL,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize session service")
	}

	orch, err := orchestrator.New(&orchestrator.Config{
		Store:                   docDBClient,
		Directory:               directoryService,
		Dispatcher:              resolver,
		Gateway:                 gatewayClient,
		Sessions:                sessionService,
		Callbacks:               handlers.NewConversationPublisher(bus, log),
		SaveMaxRetries:          cfg.Orchestrator.SaveMaxRetries,
		SaveRetryDelay:          cfg.Orchestrator.SaveRetryDelay,
		MaxParallelAgents:       cfg.Orchestrator.MaxParallelAgents,
		DiscussionDefaultRounds: cfg.Orchestrator.DiscussionDefaultRound,
		DiscussionMaxRounds:     cfg.Orchestrator.DiscussionMaxRounds,
		GroupHistoryLimit:       cfg.Orchestrator.GroupHistoryLimit,
		Logger:                  log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize orchestrator")
	}

	// Set Gin mode
	gin.SetMode(cfg.Server.GinMode)

	router := gin.New()
	routes.SetupWithMiddleware(router, &routes.Config{
		HealthHandler:     handlers.NewHealthHandler(cacheClient, docDBClient),
		AgentsHandler:     handlers.NewAgentsHandler(directoryService),
		ChatsHandler:      handlers.NewChatsHandler(docDBClient, orch),
		GroupChatsHandler: handlers.NewGroupChatsHandler(&handlers.GroupChatsHandlerConfig{
			DocDBClient:  docDBClient,
			Directory:    directoryService,
			Orchestrator: orch,
			Bus:          bus,
		}),
		DiscussionsHandler: handlers.NewDiscussionsHandler(orch),
		DispatchHandler:    handlers.NewDispatchHandler(resolver),
		EnableDocs:         cfg.Server.GinMode != gin.ReleaseMode,
	},
		middleware.NewCORSConfig(cfg.Server.AllowedOrigins),
		middleware.NewLoggingMiddlewareWithLogger(log),
		middleware.NewErrorMiddleware(),
	)

	// Create HTTP server
	srv := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", cfg.Server.Address()).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("failed to flush traces")
	}

	log.Info().Msg("server exited")
}

// createVaultClient creates a vault client based on the configuration.
func createVaultClient(cfg config.VaultConfig) (vault.Client, error) {
	switch vault.Type(cfg.Type) {
	case vault.TypeDotEnv:
		return dotenvvault.NewClient()
	default:
		return nil, fmt.Errorf("unsupported vault type: %s", cfg.Type)
	}
}

// createCacheClient creates a cache client and the event bus sharing its
// connection.
func createCacheClient(cfg config.CacheConfig) (cache.Client, events.Bus, error) {
	switch cache.Type(cfg.Type) {
	case cache.TypeRedis:
		client, err := rediscache.NewClient(rediscache.Config{
			Host:       cfg.Host,
			Port:       cfg.Port,
			Password:   cfg.Password,
			DB:         cfg.DB,
			DefaultTTL: cfg.TTL,
		})
		if err != nil {
			return nil, nil, err
		}
		return client, client.Bus(), nil
	default:
		return nil, nil, fmt.Errorf("unsupported cache type: %s", cfg.Type)
	}
}

// createDocDBClient creates a document database client based on the configuration.
func createDocDBClient(ctx context.Context, cfg config.DocDBConfig) (docdb.Client, error) {
	switch docdb.Type(cfg.Type) {
	case docdb.TypeMongoDB, docdb.TypeCosmosDB:
		// CosmosDB speaks the MongoDB protocol
		return mongodb.NewClient(ctx, &mongodb.ClientConfig{
			URI:          cfg.URI,
			DatabaseName: cfg.Database,
		})
	default:
		return nil, fmt.Errorf("unsupported docdb type: %s", cfg.Type)
	}
}

// createEncryptor creates an encryptor based on the configuration.
func createEncryptor(ctx context.Context, cfg config.VaultConfig, vaultClient vault.Client, log zerolog.Logger) (encryption.Encryptor, error) {
	encryptionKey := cfg.EncryptionKey
	if encryptionKey == "" {
		key, err := vaultClient.GetSecret(ctx, dotenvvault.URI("SECRETS_ENCRYPTION_KEY"))
		if err == nil && key != "" {
			encryptionKey = key
		}
	}

	if encryptionKey == "" {
		log.Warn().Msg("SECRETS_ENCRYPTION_KEY not set, api keys and cached sessions are only base64-encoded")
	}

	return encryption.New(encryptionKey)
}
