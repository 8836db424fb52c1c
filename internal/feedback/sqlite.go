package feedback

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite outcome store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanReport scans a row into a Report struct.
func scanReport(s scanner) (*Report, error) {
	report := &Report{}
	var outcome string

	err := s.Scan(
		&report.ID, &report.RunID, &report.SKUID,
		&outcome, &report.WouldRepeat, &report.Notes,
		&report.CreatedAt, &report.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	report.Outcome = Outcome(outcome)
	return report, nil
}

// createSchema creates the database tables and indexes.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS outcome_reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		sku_id TEXT NOT NULL,
		outcome TEXT NOT NULL,
		would_repeat INTEGER NOT NULL DEFAULT 0,
		notes TEXT DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(run_id, sku_id)
	);

	CREATE INDEX IF NOT EXISTS idx_outcome_run_id ON outcome_reports(run_id);
	CREATE INDEX IF NOT EXISTS idx_outcome_sku_id ON outcome_reports(sku_id);
	CREATE INDEX IF NOT EXISTS idx_outcome_created_at ON outcome_reports(created_at);
	`

	_, err := db.Exec(schema)
	return err
}

// Save stores or updates an outcome report.
func (s *SQLiteStore) Save(ctx context.Context, report *Report) error {
	if err := report.Validate(); err != nil {
		return err
	}
	now := time.Now()

	// Check if exists
	var existingID int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM outcome_reports WHERE run_id = ? AND sku_id = ?",
		report.RunID, report.SKUID,
	).Scan(&existingID)

	if err == nil {
		// Update existing
		report.ID = existingID
		report.UpdatedAt = now

		_, err = s.db.ExecContext(ctx, `
			UPDATE outcome_reports SET
				outcome = ?,
				would_repeat = ?,
				notes = ?,
				updated_at = ?
			WHERE id = ?
		`,
			string(report.Outcome),
			report.WouldRepeat,
			report.Notes,
			now,
			existingID,
		)
		return err
	}

	if err != sql.ErrNoRows {
		return fmt.Errorf("failed to check existing: %w", err)
	}

	// Insert new
	report.CreatedAt = now
	report.UpdatedAt = now

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO outcome_reports (
			run_id, sku_id, outcome, would_repeat, notes, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		report.RunID,
		report.SKUID,
		string(report.Outcome),
		report.WouldRepeat,
		report.Notes,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get insert ID: %w", err)
	}
	report.ID = id

	return nil
}

// Get retrieves the report for one run/SKU pair.
func (s *SQLiteStore) Get(ctx context.Context, runID, skuID string) (*Report, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, run_id, sku_id, outcome, would_repeat, notes, created_at, updated_at
		FROM outcome_reports
		WHERE run_id = ? AND sku_id = ?
		LIMIT 1
	`, runID, skuID)

	report, err := scanReport(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan: %w", err)
	}
	return report, nil
}

// ListByRun returns all reports filed against a run.
func (s *SQLiteStore) ListByRun(ctx context.Context, runID string) ([]*Report, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, sku_id, outcome, would_repeat, notes, created_at, updated_at
		FROM outcome_reports
		WHERE run_id = ?
		ORDER BY sku_id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	var result []*Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, report)
	}
	return result, rows.Err()
}

// List returns reports with pagination, newest first.
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]*Report, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, sku_id, outcome, would_repeat, notes, created_at, updated_at
		FROM outcome_reports
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	var result []*Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, report)
	}
	return result, rows.Err()
}

// Count returns the total number of reports.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM outcome_reports").Scan(&count)
	return count, err
}

// Delete removes a report by ID.
func (s *SQLiteStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM outcome_reports WHERE id = ?", id)
	return err
}

// maxExportLimit is the maximum number of entries to export at once.
const maxExportLimit = 1000000

// ExportJSON exports all reports to a JSON writer.
func (s *SQLiteStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	all, err := s.List(ctx, maxExportLimit, 0)
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
func (s *SQLiteStore) ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error) {
	var export ReportExport
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return 0, 0, fmt.Errorf("failed to decode JSON: %w", err)
	}

	for _, report := range export.Reports {
		// Check if exists
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
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
