package domain

import (
	"context"
)

// Normalizer canonicalizes raw panel entries and classifies them against
// versioned reference ranges.
type Normalizer interface {
	Normalize(ctx context.Context, panel []PanelEntry, user *UserContext) (*NormalizeResult, error)
}

// GateEngine evaluates the safety-gate registry over normalized markers.
type GateEngine interface {
	Evaluate(ctx context.Context, markers []NormalizedMarker, user *UserContext) (*GateResult, error)
}

// Translator expands constraint codes into enforcement sets. Translate is
// pure: no I/O, no clock reads, no randomness.
type Translator interface {
	Translate(codes []ConstraintCode, sex Sex) (*TranslatedConstraints, error)
	Merge(bloodwork, other *TranslatedConstraints) (*TranslatedConstraints, error)
}

// Governor validates catalog snapshots before routing.
type Governor interface {
	Validate(snapshot *CatalogSnapshot) (*GovernanceResult, error)
}

// Router eliminates SKUs that violate translated constraints.
type Router interface {
	Route(valid []ValidatedSKU, constraints *TranslatedConstraints, requirements []string) (*RoutingResult, error)
	Coverage(allowed []AllowedSKU, requirements []string) []RequirementCoverage
}

// Matcher assembles the protocol from allowed SKUs, intents and
// requirements.
type Matcher interface {
	Match(allowed []AllowedSKU, intents []Intent, user *UserContext, requirements []string) (*MatchingResult, error)
}

// CatalogProvider hands out the current immutable snapshot. Implementations
// must never return a half-built snapshot; a load failure surfaces as
// CATALOG_UNAVAILABLE.
type CatalogProvider interface {
	Snapshot() (*CatalogSnapshot, error)
	Reload(ctx context.Context) error
}

// CatalogSource fetches catalog rows from a backing store.
type CatalogSource interface {
	Fetch(ctx context.Context) ([]CatalogSKU, string, error)
	Close() error
}

// AuditStore persists run records append-only. Implementations must not
// expose update or delete paths.
type AuditStore interface {
	SaveRun(ctx context.Context, record *RunRecord) error
	GetRun(ctx context.Context, runID string) (*RunRecord, error)
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
	Close() error
}

// ConfigManager defines the interface for configuration management.
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	GetDatabaseConfig() *DatabaseConfig
	GetDatabaseConnectionString() string
	Reload() error
	Validate() error
	IsProduction() bool
	IsDevelopment() bool
}
