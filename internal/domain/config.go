package domain

import (
	"fmt"
	"time"
)

// Config represents the main application configuration.
type Config struct {
	Server      ServerConfig   `mapstructure:"server"`
	Database    DatabaseConfig `mapstructure:"database"`
	Catalog     CatalogConfig  `mapstructure:"catalog"`
	Audit       AuditConfig    `mapstructure:"audit"`
	Cache       CacheConfig    `mapstructure:"cache"`
	Pipeline    PipelineConfig `mapstructure:"pipeline"`
	Feedback    FeedbackConfig `mapstructure:"feedback"`
	Labs        LabsConfig     `mapstructure:"labs"`
	Logging     LoggingConfig  `mapstructure:"logging"`
	Environment string         `mapstructure:"environment"`
}

// ServerConfig represents HTTP server configuration.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DatabaseConfig represents the Postgres connection configuration used by
// the catalog source and the audit store.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// URL renders the configuration as a connection string.
func (d *DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.Username, d.Password, d.Host, d.Port, d.Database, d.SSLMode)
}

// CatalogConfig selects where catalog snapshots are loaded from.
// Source is one of "postgres", "sqlite", "static".
type CatalogConfig struct {
	Source         string        `mapstructure:"source"`
	SQLitePath     string        `mapstructure:"sqlite_path"`
	ReloadInterval time.Duration `mapstructure:"reload_interval"`
}

// AuditConfig selects the append-only audit store.
// Driver is one of "postgres", "sqlite", "none".
type AuditConfig struct {
	Driver     string `mapstructure:"driver"`
	SQLitePath string `mapstructure:"sqlite_path"`
	QueueSize  int    `mapstructure:"queue_size"`
}

// CacheConfig represents the optional Redis result cache. An empty
// RedisURL disables caching entirely.
type CacheConfig struct {
	RedisURL   string        `mapstructure:"redis_url"`
	DefaultTTL time.Duration `mapstructure:"default_ttl"`
	PoolSize   int           `mapstructure:"pool_size"`
}

// PipelineConfig bounds request execution.
type PipelineConfig struct {
	DefaultDeadline time.Duration `mapstructure:"default_deadline"`
	MaxDeadline     time.Duration `mapstructure:"max_deadline"`
	TranslatorMemo  int           `mapstructure:"translator_memo"`
}

// FeedbackConfig selects the outcome-report store.
// Driver is one of "postgres", "sqlite", "none".
type FeedbackConfig struct {
	Driver     string `mapstructure:"driver"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

// LabsConfig represents the lab-provider integration used to pull raw
// panels by accession id.
type LabsConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	APIKey    string        `mapstructure:"api_key"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit int           `mapstructure:"rate_limit"`
	Provider  string        `mapstructure:"provider"`
}

// LoggingConfig represents logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// IsProduction checks if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// IsDevelopment checks if running in development environment.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
