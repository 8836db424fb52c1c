// Package config provides configuration management for the protocol engine.
// This file contains the lightweight configuration for standalone operation.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// LiteConfig is a simplified configuration for standalone operation.
// It requires no external databases and uses sensible defaults: the
// catalog and audit trail live in local SQLite files.
type LiteConfig struct {
	// Data storage
	DataDir string // Base directory for data files

	// Pipeline settings
	DefaultDeadline time.Duration // Per-request deadline when unset
	TranslatorMemo  int           // Translator memo cache size

	// Transport settings
	Transport string // Transport type: stdio, http
	HTTPPort  int    // HTTP port (if transport is http)

	// Logging
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: json, text
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".biostack-engine")

	return &LiteConfig{
		DataDir:         dataDir,
		DefaultDeadline: 5 * time.Second,
		TranslatorMemo:  512,
		Transport:       "stdio",
		HTTPPort:        8080,
		LogLevel:        "info",
		LogFormat:       "json",
	}
}

// LoadLiteConfig loads configuration from environment variables.
// Falls back to defaults if not set.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	// Data directory
	if v := os.Getenv("BIOSTACK_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	// Pipeline settings
	if v := os.Getenv("BIOSTACK_DEFAULT_DEADLINE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.DefaultDeadline = d
		}
	}
	if v := os.Getenv("BIOSTACK_TRANSLATOR_MEMO"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.TranslatorMemo = n
		}
	}

	// Transport
	if v := os.Getenv("BIOSTACK_TRANSPORT"); v != "" {
		cfg.Transport = v
	}
	if v := os.Getenv("BIOSTACK_HTTP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HTTPPort = n
		}
	}

	// Logging
	if v := os.Getenv("BIOSTACK_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("BIOSTACK_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}

// CatalogDBPath returns the path to the catalog SQLite database.
func (c *LiteConfig) CatalogDBPath() string {
	return filepath.Join(c.DataDir, "catalog.db")
}

// AuditDBPath returns the path to the audit SQLite database.
func (c *LiteConfig) AuditDBPath() string {
	return filepath.Join(c.DataDir, "audit.db")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *LiteConfig) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0755)
}
