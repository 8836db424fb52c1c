package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/biostack-engine/internal/domain"
	"github.com/biostack-engine/pkg/canonhash"
)

// Store holds the process-wide catalog snapshot behind an atomic swap.
// Requests take whichever snapshot is current when they start and keep it
// for their whole lifetime; Reload builds the replacement fully before
// swapping, so readers never observe a half-built snapshot.
type Store struct {
	source domain.CatalogSource
	logger *logrus.Logger

	mu       sync.RWMutex
	snapshot *domain.CatalogSnapshot
}

// NewStore creates a snapshot store over the given source. No snapshot is
// loaded yet; call Reload before serving traffic.
func NewStore(source domain.CatalogSource, logger *logrus.Logger) *Store {
	return &Store{
		source: source,
		logger: logger,
	}
}

// Snapshot returns the current immutable snapshot. Serving without a
// loaded snapshot is never allowed; there is no fallback catalog.
func (s *Store) Snapshot() (*domain.CatalogSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil {
		return nil, domain.NewCatalogUnavailable("catalog snapshot not loaded")
	}
	return s.snapshot, nil
}

// Reload fetches rows from the source, validates them structurally, and
// swaps the snapshot in. A failed reload leaves the previous snapshot in
// place untouched.
func (s *Store) Reload(ctx context.Context) error {
	skus, version, err := s.source.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("catalog fetch failed: %w", err)
	}

	snapshot, err := BuildSnapshot(skus, version)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.snapshot = snapshot
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"skus":     len(snapshot.SKUs),
		"version":  snapshot.Version,
		"revision": snapshot.Revision,
	}).Info("Catalog snapshot loaded")
	return nil
}

// Close releases the underlying source.
func (s *Store) Close() error {
	return s.source.Close()
}

// BuildSnapshot constructs an immutable snapshot from raw rows: rows are
// structurally validated, sorted by SKU id, and covered by a revision
// hash. A structurally invalid row fails the whole load; a bad catalog is
// a deployment fault, not a per-request condition.
func BuildSnapshot(skus []domain.CatalogSKU, version string) (*domain.CatalogSnapshot, error) {
	sorted := make([]domain.CatalogSKU, len(skus))
	copy(sorted, skus)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].SKUID < sorted[j].SKUID })

	seen := make(map[string]bool, len(sorted))
	for i := range sorted {
		if err := sorted[i].Validate(); err != nil {
			return nil, fmt.Errorf("catalog row %q: %w", sorted[i].SKUID, err)
		}
		if seen[sorted[i].SKUID] {
			return nil, fmt.Errorf("%w: duplicate sku_id %q in catalog", domain.ErrInvalidInput, sorted[i].SKUID)
		}
		seen[sorted[i].SKUID] = true
	}

	revision, err := canonhash.Hash(sorted)
	if err != nil {
		return nil, fmt.Errorf("failed to hash catalog snapshot: %w", err)
	}

	return &domain.CatalogSnapshot{
		SKUs:     sorted,
		Version:  version,
		Revision: revision,
		LoadedAt: time.Now().UTC(),
	}, nil
}
