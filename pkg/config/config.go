package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/humanmade/blockindex/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Storage       StorageConfig
	Index         IndexConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// StorageConfig holds database and cache configuration
type StorageConfig struct {
	// Type selects the backing store: "sqlite" or "postgres"
	Type string

	SQLitePath string

	PostgresURL      string
	PostgresMaxConns int
	PostgresMinConns int
	PostgresTimeout  time.Duration

	RedisURL      string
	RedisPassword string
	RedisDB       int

	CacheEnabled bool
	L1CacheSize  int
}

// IndexConfig holds relationship index and search behavior
type IndexConfig struct {
	// EmbeddableTypes are the document types whose content is scanned
	// for block references
	EmbeddableTypes []string

	// EditURLTemplate renders the edit link for a document; %d is the
	// document ID
	EditURLTemplate string

	ReconcilerEnabled  bool
	ReconcilerSchedule string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel observability.LogLevel

	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Storage:       loadStorageConfig(),
		Index:         loadIndexConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("BLOCKINDEX_HOST", "0.0.0.0"),
		Port:            getEnv("BLOCKINDEX_PORT", "8080"),
		ReadTimeout:     getEnvDuration("BLOCKINDEX_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("BLOCKINDEX_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("BLOCKINDEX_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("BLOCKINDEX_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("BLOCKINDEX_HEALTH_PORT", "9090"),
	}
}

func loadStorageConfig() StorageConfig {
	return StorageConfig{
		Type:             getEnv("BLOCKINDEX_STORAGE_TYPE", "sqlite"),
		SQLitePath:       getEnv("BLOCKINDEX_SQLITE_PATH", "blockindex.db"),
		PostgresURL:      getEnv("BLOCKINDEX_POSTGRES_URL", ""),
		PostgresMaxConns: getEnvInt("BLOCKINDEX_POSTGRES_MAX_CONNS", 25),
		PostgresMinConns: getEnvInt("BLOCKINDEX_POSTGRES_MIN_CONNS", 5),
		PostgresTimeout:  getEnvDuration("BLOCKINDEX_POSTGRES_TIMEOUT", 30*time.Second),
		RedisURL:         getEnv("BLOCKINDEX_REDIS_URL", ""),
		RedisPassword:    getEnv("BLOCKINDEX_REDIS_PASSWORD", ""),
		RedisDB:          getEnvInt("BLOCKINDEX_REDIS_DB", 0),
		CacheEnabled:     getEnvBool("BLOCKINDEX_CACHE_ENABLED", false),
		L1CacheSize:      getEnvInt("BLOCKINDEX_L1_CACHE_SIZE", 1024),
	}
}

func loadIndexConfig() IndexConfig {
	types := strings.Split(getEnv("BLOCKINDEX_EMBEDDABLE_TYPES", "post,page"), ",")
	for i := range types {
		types[i] = strings.TrimSpace(types[i])
	}

	return IndexConfig{
		EmbeddableTypes:    types,
		EditURLTemplate:    getEnv("BLOCKINDEX_EDIT_URL_TEMPLATE", "/edit/%d"),
		ReconcilerEnabled:  getEnvBool("BLOCKINDEX_RECONCILER_ENABLED", true),
		ReconcilerSchedule: getEnv("BLOCKINDEX_RECONCILER_SCHEDULE", "@every 15m"),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           parseLogLevel(getEnv("BLOCKINDEX_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("BLOCKINDEX_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("BLOCKINDEX_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("BLOCKINDEX_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("BLOCKINDEX_OTEL_SERVICE_NAME", "blockindex"),
		OTelServiceVersion: getEnv("BLOCKINDEX_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("BLOCKINDEX_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	switch c.Storage.Type {
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required for sqlite storage")
		}
	case "postgres":
		if c.Storage.PostgresURL == "" {
			return fmt.Errorf("postgres URL is required for postgres storage")
		}
	default:
		return fmt.Errorf("invalid storage type: %s (must be sqlite or postgres)", c.Storage.Type)
	}

	if c.Storage.CacheEnabled && c.Storage.RedisURL == "" {
		return fmt.Errorf("redis URL is required when cache is enabled")
	}

	if len(c.Index.EmbeddableTypes) == 0 {
		return fmt.Errorf("at least one embeddable document type is required")
	}
	if !strings.Contains(c.Index.EditURLTemplate, "%d") {
		return fmt.Errorf("edit URL template must contain a %%d placeholder")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
