// Package config handles application configuration loading and management.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Server       ServerConfig
	Cache        CacheConfig
	DocDB        DocDBConfig
	Vault        VaultConfig
	Gateway      GatewayConfig
	Orchestrator OrchestratorConfig
	Log          LogConfig
	Telemetry    TelemetryConfig
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Host           string   `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Port           int      `env:"SERVER_PORT" envDefault:"8085"`
	GinMode        string   `env:"GIN_MODE" envDefault:"debug"`
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
}

// Address returns the server address in host:port format.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// CacheConfig holds cache-related configuration.
type CacheConfig struct {
	Type     string        `env:"CACHE_TYPE" envDefault:"redis"`
	Host     string        `env:"REDIS_HOST" envDefault:"localhost"`
	Port     string        `env:"REDIS_PORT" envDefault:"6379"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB" envDefault:"0"`
	TTL      time.Duration `env:"CACHE_TTL" envDefault:"3m"`
}

// DocDBConfig holds document database configuration.
type DocDBConfig struct {
	Type     string `env:"DOCDB_TYPE" envDefault:"mongodb"`
	URI      string `env:"MONGODB_URI" envDefault:"mongodb://localhost:27017"`
	Database string `env:"MONGODB_DATABASE" envDefault:"multiagent"`
}

// VaultConfig holds vault configuration.
type VaultConfig struct {
	Type          string `env:"VAULT_TYPE" envDefault:"dotenv"`
	EncryptionKey string `env:"SECRETS_ENCRYPTION_KEY"`
}

// GatewayConfig holds the completion gateway configuration.
type GatewayConfig struct {
	BaseURL               string        `env:"FASTGPT_BASE_URL" envDefault:"https://api.fastgpt.in/api"`
	Timeout               time.Duration `env:"GATEWAY_TIMEOUT" envDefault:"120s"`
	StreamIdleTimeout     time.Duration `env:"GATEWAY_STREAM_IDLE_TIMEOUT" envDefault:"60s"`
	DispatchCredentialURI string        `env:"DISPATCH_CREDENTIAL_URI" envDefault:"dotenv://FASTGPT_DISPATCH_API_KEY"`
}

// OrchestratorConfig holds turn orchestration settings.
type OrchestratorConfig struct {
	DefaultAgentID         string        `env:"DEFAULT_AGENT_ID" envDefault:"default"`
	DispatchMaxRetries     int           `env:"DISPATCH_MAX_RETRIES" envDefault:"2"`
	DispatchRetryDelay     time.Duration `env:"DISPATCH_RETRY_DELAY" envDefault:"500ms"`
	SaveMaxRetries         int           `env:"SAVE_MAX_RETRIES" envDefault:"3"`
	SaveRetryDelay         time.Duration `env:"SAVE_RETRY_DELAY" envDefault:"200ms"`
	MaxParallelAgents      int           `env:"MAX_PARALLEL_AGENTS" envDefault:"8"`
	DiscussionDefaultRound int           `env:"DISCUSSION_DEFAULT_ROUNDS" envDefault:"3"`
	DiscussionMaxRounds    int           `env:"DISCUSSION_MAX_ROUNDS" envDefault:"20"`
	GroupHistoryLimit      int64         `env:"GROUP_HISTORY_LIMIT" envDefault:"50"`
	DiscussionStateTTL     time.Duration `env:"DISCUSSION_STATE_TTL" envDefault:"24h"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// TelemetryConfig holds tracing configuration.
type TelemetryConfig struct {
	ServiceName  string `env:"SERVICE_NAME" envDefault:"multiagent-service"`
	Environment  string `env:"ENVIRONMENT" envDefault:"development"`
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks cross-field constraints that struct tags cannot express.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid SERVER_PORT: %d", c.Server.Port)
	}
	if c.Orchestrator.DefaultAgentID == "" {
		return fmt.Errorf("DEFAULT_AGENT_ID is required")
	}
	if c.Orchestrator.DispatchMaxRetries < 0 || c.Orchestrator.SaveMaxRetries < 0 {
		return fmt.Errorf("retry counts must not be negative")
	}
	if c.Orchestrator.MaxParallelAgents <= 0 {
		return fmt.Errorf("MAX_PARALLEL_AGENTS must be positive")
	}
	if c.Orchestrator.DiscussionDefaultRound <= 0 || c.Orchestrator.DiscussionDefaultRound > c.Orchestrator.DiscussionMaxRounds {
		return fmt.Errorf("DISCUSSION_DEFAULT_ROUNDS must be between 1 and DISCUSSION_MAX_ROUNDS")
	}
	return nil
}
