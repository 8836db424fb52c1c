// Package audit persists the append-only run records the pipeline emits.
// Stores expose no update or delete path: a run record is written once
// after its response is formed, and history accretes forever. Persistence
// failures are logged and never alter the returned result.
package audit

import (
	"context"

	"github.com/biostack-engine/internal/domain"
)

// NopStore discards every record. Used when auditing is disabled by
// configuration.
type NopStore struct{}

// NewNopStore creates a store that discards all writes.
func NewNopStore() *NopStore {
	return &NopStore{}
}

// SaveRun discards the record.
func (s *NopStore) SaveRun(ctx context.Context, record *domain.RunRecord) error {
	return nil
}

// GetRun always reports not found.
func (s *NopStore) GetRun(ctx context.Context, runID string) (*domain.RunRecord, error) {
	return nil, domain.ErrNotFound
}

// ListRuns returns no records.
func (s *NopStore) ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	return nil, nil
}

// Close is a no-op.
func (s *NopStore) Close() error {
	return nil
}
