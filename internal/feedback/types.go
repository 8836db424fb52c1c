// Package feedback provides outcome storage for delivered protocols.
// It stores per-SKU outcome reports so routing weights and evidence
// tiers can be revisited against real-world results.
package feedback

import (
	"context"
	"fmt"
	"io"
	"time"
)

// Outcome represents the reported result of taking one protocol item.
type Outcome string

const (
	OutcomeImproved     Outcome = "IMPROVED"
	OutcomeNoEffect     Outcome = "NO_EFFECT"
	OutcomeAdverse      Outcome = "ADVERSE"
	OutcomeDiscontinued Outcome = "DISCONTINUED"
)

// IsValid reports whether the outcome is one of the known values.
func (o Outcome) IsValid() bool {
	switch o {
	case OutcomeImproved, OutcomeNoEffect, OutcomeAdverse, OutcomeDiscontinued:
		return true
	}
	return false
}

// Report represents one outcome report for a SKU in a delivered run.
type Report struct {
	ID          int64     `json:"id,omitempty"`
	RunID       string    `json:"run_id"`
	SKUID       string    `json:"sku_id"`
	Outcome     Outcome   `json:"outcome"`
	WouldRepeat bool      `json:"would_repeat"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Validate checks required fields before persistence.
func (r *Report) Validate() error {
	if r.RunID == "" {
		return fmt.Errorf("run_id is required")
	}
	if r.SKUID == "" {
		return fmt.Errorf("sku_id is required")
	}
	if !r.Outcome.IsValid() {
		return fmt.Errorf("outcome %q is not recognized", r.Outcome)
	}
	return nil
}

// Store defines the interface for outcome report storage.
type Store interface {
	// Save stores or updates a report. A report for the same
	// run_id+sku_id pair replaces the previous one.
	Save(ctx context.Context, report *Report) error

	// Get retrieves the report for one run/SKU pair, or nil.
	Get(ctx context.Context, runID, skuID string) (*Report, error)

	// ListByRun returns all reports filed against a run.
	ListByRun(ctx context.Context, runID string) ([]*Report, error)

	// List returns reports with pagination, newest first.
	List(ctx context.Context, limit, offset int) ([]*Report, error)

	// Count returns the total number of reports.
	Count(ctx context.Context) (int64, error)

	// Delete removes a report by ID.
	Delete(ctx context.Context, id int64) error

	// ExportJSON exports all reports to a JSON writer.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// ImportJSON imports reports from a JSON reader. Existing
	// run/SKU pairs are skipped, not overwritten.
	ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error)

	// Close closes the store and releases resources.
	Close() error
}

// ReportExport represents the JSON export format.
type ReportExport struct {
	Version    string    `json:"version"`
	ExportedAt time.Time `json:"exported_at"`
	Count      int       `json:"count"`
	Reports    []*Report `json:"reports"`
}
