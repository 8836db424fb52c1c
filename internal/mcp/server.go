// Package mcp exposes the protocol engine over the Model Context
// Protocol so agent clients can generate and inspect protocols without
// the HTTP surface. The server is standalone: SQLite-backed catalog and
// audit stores, stdio transport by default.
package mcp

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/biostack-engine/internal/audit"
	"github.com/biostack-engine/internal/bloodwork"
	"github.com/biostack-engine/internal/catalog"
	litecfg "github.com/biostack-engine/internal/config"
	"github.com/biostack-engine/internal/domain"
	"github.com/biostack-engine/internal/pipeline"
	"github.com/biostack-engine/internal/ruleset"
	"github.com/biostack-engine/internal/translator"
)

// Server wires the decision pipeline into an MCP tool surface. The
// normalizer and translator are also held directly for the inspection
// tools that run a single stage.
type Server struct {
	config     *litecfg.LiteConfig
	mcpServer  *mcp.Server
	pipeline   *pipeline.Pipeline
	store      *catalog.Store
	governor   domain.Governor
	normalizer domain.Normalizer
	translator domain.Translator
	writer     *audit.Writer
	logger     *logrus.Logger
}

// ServerOption is a functional option for Server.
type ServerOption func(*Server) error

// WithLogger sets a custom logger.
func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.logger = logger
		return nil
	}
}

// NewServer creates a standalone MCP server instance. It requires no
// external databases: catalog and audit live in SQLite files under the
// configured data directory, and the catalog is seeded on first run.
func NewServer(cfg *litecfg.LiteConfig, opts ...ServerOption) (*Server, error) {
	server := &Server{
		config: cfg,
		logger: logrus.New(),
	}

	if cfg.LogFormat == "text" {
		server.logger.SetFormatter(&logrus.TextFormatter{})
	} else {
		server.logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, _ := logrus.ParseLevel(cfg.LogLevel)
	server.logger.SetLevel(level)

	for _, opt := range opts {
		if err := opt(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	source, err := catalog.NewSQLiteSource(cfg.CatalogDBPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog store: %w", err)
	}
	if err := source.SeedIfEmpty(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to seed catalog: %w", err)
	}

	server.store = catalog.NewStore(source, server.logger)
	if err := server.store.Reload(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to load catalog snapshot: %w", err)
	}
	server.governor = catalog.NewGovernor(server.logger)

	auditStore, err := audit.NewSQLiteStore(cfg.AuditDBPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open audit store: %w", err)
	}
	server.writer = audit.NewWriter(auditStore, 256, server.logger)

	rules := ruleset.Default()
	server.pipeline, err = pipeline.New(rules, server.store, server.writer, pipeline.Options{
		DefaultDeadline: cfg.DefaultDeadline,
		TranslatorMemo:  cfg.TranslatorMemo,
	}, server.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}

	server.normalizer = bloodwork.NewNormalizer(rules, server.logger)
	server.translator, err = translator.NewTranslator(rules, cfg.TranslatorMemo, server.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build translator: %w", err)
	}

	serverInfo := &mcp.Implementation{
		Name:    "biostack-protocol-engine",
		Version: "v0.1.0",
	}
	server.mcpServer = mcp.NewServer(serverInfo, nil)

	server.registerTools()

	server.logger.Info("MCP server initialized successfully")
	return server, nil
}

// registerTools registers the protocol tools with the MCP SDK.
func (s *Server) registerTools() {
	tools := []struct {
		name        string
		description string
		handler     mcp.ToolHandler
	}{
		{
			name:        "generate_protocol",
			description: "Run the full decision pipeline: normalize a biomarker panel, evaluate safety gates, translate constraints, route the catalog, and match a supplement protocol. Bloodwork blocks are absolute.",
			handler:     s.handleGenerateProtocol,
		},
		{
			name:        "normalize_panel",
			description: "Normalize a raw biomarker panel against the versioned reference ranges: canonical codes, unit conversion, range classification. No protocol is generated.",
			handler:     s.handleNormalizePanel,
		},
		{
			name:        "explain_constraints",
			description: "Translate constraint codes into their enforcement sets: blocked ingredients, blocked categories, caution flags, and recommended ingredients.",
			handler:     s.handleExplainConstraints,
		},
		{
			name:        "catalog_governance_report",
			description: "Validate the current catalog snapshot and report coverage: active rows, auto-blocked SKUs, and the reasons governance rejected them.",
			handler:     s.handleGovernanceReport,
		},
	}

	for _, tool := range tools {
		s.mcpServer.AddTool(&mcp.Tool{
			Name:        tool.name,
			Description: tool.description,
			InputSchema: &jsonschema.Schema{Type: "object"},
		}, tool.handler)
		s.logger.WithField("tool_name", tool.name).Debug("Registered MCP tool")
	}

	s.logger.WithField("tool_count", len(tools)).Info("Successfully registered all tools")
}

// Start runs the MCP server over stdio until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting BioStack Protocol Engine (MCP)...")

	if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// Close cleans up server resources.
func (s *Server) Close() error {
	if s.writer != nil {
		if err := s.writer.Close(); err != nil {
			s.logger.WithError(err).Error("Failed to close audit writer")
		}
	}
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}
