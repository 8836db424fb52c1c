package feedback

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore implements the Store interface using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL outcome store.
// It expects the schema to already exist (created via migrations).
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL creates a new PostgreSQL outcome store from a connection URL.
func NewPostgresStoreFromURL(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// Save stores or updates an outcome report.
func (s *PostgresStore) Save(ctx context.Context, report *Report) error {
	if err := report.Validate(); err != nil {
		return err
	}
	now := time.Now()

	// Use upsert (INSERT ... ON CONFLICT)
	query := `
		INSERT INTO outcome_reports (
			run_id, sku_id, outcome, would_repeat, notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (run_id, sku_id) DO UPDATE SET
			outcome = EXCLUDED.outcome,
			would_repeat = EXCLUDED.would_repeat,
			notes = EXCLUDED.notes,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`

	err := s.db.QueryRowContext(ctx, query,
		report.RunID,
		report.SKUID,
		string(report.Outcome),
		report.WouldRepeat,
		report.Notes,
		now,
		now,
	).Scan(&report.ID, &report.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}

	report.UpdatedAt = now
	return nil
}

// Get retrieves the report for one run/SKU pair.
func (s *PostgresStore) Get(ctx context.Context, runID, skuID string) (*Report, error) {
	query := `
		SELECT id, run_id, sku_id, outcome, would_repeat, notes, created_at, updated_at
		FROM outcome_reports
		WHERE run_id = $1 AND sku_id = $2
		LIMIT 1
	`

	report := &Report{}
	var outcome string

	err := s.db.QueryRowContext(ctx, query, runID, skuID).Scan(
		&report.ID, &report.RunID, &report.SKUID,
		&outcome, &report.WouldRepeat, &report.Notes,
		&report.CreatedAt, &report.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	report.Outcome = Outcome(outcome)
	return report, nil
}

// ListByRun returns all reports filed against a run.
func (s *PostgresStore) ListByRun(ctx context.Context, runID string) ([]*Report, error) {
	query := `
		SELECT id, run_id, sku_id, outcome, would_repeat, notes, created_at, updated_at
		FROM outcome_reports
		WHERE run_id = $1
		ORDER BY sku_id
	`

	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	return collectReports(rows)
}

// List returns reports with pagination, newest first.
func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]*Report, error) {
	query := `
		SELECT id, run_id, sku_id, outcome, would_repeat, notes, created_at, updated_at
		FROM outcome_reports
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	return collectReports(rows)
}

func collectReports(rows *sql.Rows) ([]*Report, error) {
	var result []*Report
	for rows.Next() {
		report := &Report{}
		var outcome string

		err := rows.Scan(
			&report.ID, &report.RunID, &report.SKUID,
			&outcome, &report.WouldRepeat, &report.Notes,
			&report.CreatedAt, &report.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		report.Outcome = Outcome(outcome)
		result = append(result, report)
	}
	return result, rows.Err()
}

// Count returns the total number of reports.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM outcome_reports").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count reports: %w", err)
	}
	return count, nil
}

// Delete removes a report by ID.
func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM outcome_reports WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}
	return nil
}

// pgMaxExportLimit is the maximum number of entries to export at once.
const pgMaxExportLimit = 1000000

// ExportJSON exports all reports to a JSON writer.
func (s *PostgresStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	all, err := s.List(ctx, pgMaxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list reports: %w", err)
	}

	export := &ReportExport{
		Version:    "1.0",
		ExportedAt: time.Now(),
		Count:      len(all),
		Reports:    all,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

// ImportJSON imports reports from a JSON reader.
func (s *PostgresStore) ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error) {
	var export ReportExport
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return 0, 0, fmt.Errorf("failed to decode JSON: %w", err)
	}

	for _, report := range export.Reports {
		existing, err := s.Get(ctx, report.RunID, report.SKUID)
		if err != nil {
			return imported, skipped, fmt.Errorf("failed to check existing: %w", err)
		}

		if existing != nil {
			skipped++
			continue
		}

		if err := s.Save(ctx, report); err != nil {
			return imported, skipped, fmt.Errorf("failed to save: %w", err)
		}
		imported++
	}

	return imported, skipped, nil
}

// Close closes the store and releases resources.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
