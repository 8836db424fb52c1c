package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/biostack-engine/internal/domain"
)

// SQLiteStore persists run records in SQLite for the lite deployment
// mode. Semantics match the PostgreSQL store: insert-only, no updates.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates an SQLite audit store, creating the database
// file and schema if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createAuditSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

func createAuditSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS audit_runs (
		run_id TEXT PRIMARY KEY,
		pipeline_hash TEXT NOT NULL,
		versions TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		completed_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS audit_stages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		stage TEXT NOT NULL,
		counts TEXT NOT NULL,
		input_hash TEXT NOT NULL,
		output_hash TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		completed_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_stages_run ON audit_stages(run_id);
	CREATE INDEX IF NOT EXISTS idx_audit_runs_started ON audit_runs(started_at);
	`
	_, err := db.Exec(schema)
	return err
}

// SaveRun appends the run record and its stage rows in one transaction.
func (s *SQLiteStore) SaveRun(ctx context.Context, record *domain.RunRecord) error {
	versions, err := json.Marshal(record.Versions)
	if err != nil {
		return fmt.Errorf("failed to marshal versions: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO audit_runs (run_id, pipeline_hash, versions, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?)
	`, record.RunID, record.PipelineHash, string(versions), record.StartedAt, record.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for i := range record.Stages {
		stage := &record.Stages[i]
		counts, err := json.Marshal(stage.Counts)
		if err != nil {
			return fmt.Errorf("failed to marshal stage counts: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO audit_stages (run_id, stage, counts, input_hash, output_hash, started_at, completed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, stage.RunID, string(stage.Stage), string(counts), stage.InputHash, stage.OutputHash, stage.StartedAt, stage.CompletedAt)
		if err != nil {
			return fmt.Errorf("failed to insert stage %s: %w", stage.Stage, err)
		}
	}

	return tx.Commit()
}

// GetRun retrieves a run record with its stages.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*domain.RunRecord, error) {
	record := &domain.RunRecord{}
	var versions string
	err := s.db.QueryRowContext(ctx, `
		SELECT run_id, pipeline_hash, versions, started_at, completed_at
		FROM audit_runs WHERE run_id = ?
	`, runID).Scan(&record.RunID, &record.PipelineHash, &versions, &record.StartedAt, &record.CompletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	if err := json.Unmarshal([]byte(versions), &record.Versions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal versions: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, stage, counts, input_hash, output_hash, started_at, completed_at
		FROM audit_stages WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query stages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var stage domain.StageAudit
		var name, counts string
		err := rows.Scan(&stage.RunID, &name, &counts, &stage.InputHash, &stage.OutputHash, &stage.StartedAt, &stage.CompletedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stage: %w", err)
		}
		stage.Stage = domain.Stage(name)
		if err := json.Unmarshal([]byte(counts), &stage.Counts); err != nil {
			return nil, fmt.Errorf("failed to unmarshal counts: %w", err)
		}
		record.Stages = append(record.Stages, stage)
	}
	return record, rows.Err()
}

// ListRuns returns the most recent run records without their stage rows.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, pipeline_hash, versions, started_at, completed_at
		FROM audit_runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var records []domain.RunRecord
	for rows.Next() {
		var record domain.RunRecord
		var versions string
		err := rows.Scan(&record.RunID, &record.PipelineHash, &versions, &record.StartedAt, &record.CompletedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if err := json.Unmarshal([]byte(versions), &record.Versions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal versions: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
