package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/biostack-engine/internal/domain"
)

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	config *domain.Config
}

// NewManager creates a new configuration manager
func NewManager() (*Manager, error) {
	m := &Manager{}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	// Set configuration file name and paths
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/biostack-engine/")

	// Set environment variable prefix and enable automatic env binding
	viper.SetEnvPrefix("BIOSTACK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Set default values
	m.setDefaults()

	// Read configuration file (optional - will use defaults and env vars if not found)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; using defaults and environment variables
	}

	// Unmarshal configuration into struct
	config := &domain.Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values
func (m *Manager) setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.database", "biostack")
	viper.SetDefault("database.username", "postgres")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")

	// Catalog defaults
	viper.SetDefault("catalog.source", "static")
	viper.SetDefault("catalog.sqlite_path", "./data/catalog.db")
	viper.SetDefault("catalog.reload_interval", "0s")

	// Audit defaults
	viper.SetDefault("audit.driver", "sqlite")
	viper.SetDefault("audit.sqlite_path", "./data/audit.db")
	viper.SetDefault("audit.queue_size", 256)

	// Cache defaults; an empty redis_url disables the result cache
	viper.SetDefault("cache.redis_url", "")
	viper.SetDefault("cache.default_ttl", "15m")
	viper.SetDefault("cache.pool_size", 10)

	// Pipeline defaults
	viper.SetDefault("pipeline.default_deadline", "5s")
	viper.SetDefault("pipeline.max_deadline", "30s")
	viper.SetDefault("pipeline.translator_memo", 512)

	// Feedback defaults
	viper.SetDefault("feedback.driver", "sqlite")
	viper.SetDefault("feedback.sqlite_path", "./data/feedback.db")

	// Labs defaults; an empty base_url disables the provider integration
	viper.SetDefault("labs.base_url", "")
	viper.SetDefault("labs.api_key", "")
	viper.SetDefault("labs.timeout", "30s")
	viper.SetDefault("labs.rate_limit", 5)
	viper.SetDefault("labs.provider", "questlike")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetDatabaseConfig returns database configuration
func (m *Manager) GetDatabaseConfig() *domain.DatabaseConfig {
	return &m.config.Database
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	// Validate server configuration
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	// Validate catalog configuration
	switch config.Catalog.Source {
	case "postgres", "sqlite", "static":
	default:
		return fmt.Errorf("invalid catalog source: %s", config.Catalog.Source)
	}
	if config.Catalog.Source == "sqlite" && config.Catalog.SQLitePath == "" {
		return fmt.Errorf("catalog sqlite_path is required for sqlite source")
	}

	// Validate audit configuration
	switch config.Audit.Driver {
	case "postgres", "sqlite", "none":
	default:
		return fmt.Errorf("invalid audit driver: %s", config.Audit.Driver)
	}
	if config.Audit.Driver == "sqlite" && config.Audit.SQLitePath == "" {
		return fmt.Errorf("audit sqlite_path is required for sqlite driver")
	}

	// Validate feedback configuration
	switch config.Feedback.Driver {
	case "postgres", "sqlite", "none":
	default:
		return fmt.Errorf("invalid feedback driver: %s", config.Feedback.Driver)
	}
	if config.Feedback.Driver == "sqlite" && config.Feedback.SQLitePath == "" {
		return fmt.Errorf("feedback sqlite_path is required for sqlite driver")
	}

	// Validate database configuration when anything uses Postgres
	if config.Catalog.Source == "postgres" || config.Audit.Driver == "postgres" || config.Feedback.Driver == "postgres" {
		if config.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if config.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if config.Database.Username == "" {
			return fmt.Errorf("database username is required")
		}
	}

	// Validate pipeline bounds
	if config.Pipeline.MaxDeadline > 0 && config.Pipeline.DefaultDeadline > config.Pipeline.MaxDeadline {
		return fmt.Errorf("pipeline default_deadline must not exceed max_deadline")
	}

	// Validate logging configuration
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

// GetDatabaseConnectionString returns a formatted database connection string
func (m *Manager) GetDatabaseConnectionString() string {
	db := m.config.Database
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		db.Host, db.Port, db.Username, db.Password, db.Database, db.SSLMode)
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(viper.GetString("environment")) == "production"
}

// IsDevelopment returns true if running in development mode
func (m *Manager) IsDevelopment() bool {
	env := strings.ToLower(viper.GetString("environment"))
	return env == "development" || env == "dev" || env == ""
}
