package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/biostack-engine/internal/domain"
)

// PostgresStore persists run records in PostgreSQL. The schema is created
// via migrations; per-stage records live in audit_stages keyed by run_id.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL audit store over an existing
// connection. It expects the schema to already exist.
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL creates a PostgreSQL audit store from a
// connection URL.
func NewPostgresStoreFromURL(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

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

// SaveRun appends the run record and its stage rows in one transaction.
// There is no conflict handling: run ids are unique per run and a replay
// of the same id is a caller bug surfaced as a constraint violation.
func (s *PostgresStore) SaveRun(ctx context.Context, record *domain.RunRecord) error {
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
		VALUES ($1, $2, $3, $4, $5)
	`, record.RunID, record.PipelineHash, versions, record.StartedAt, record.CompletedAt)
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
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, stage.RunID, string(stage.Stage), counts, stage.InputHash, stage.OutputHash, stage.StartedAt, stage.CompletedAt)
		if err != nil {
			return fmt.Errorf("failed to insert stage %s: %w", stage.Stage, err)
		}
	}

	return tx.Commit()
}

// GetRun retrieves a run record with its stages.
func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*domain.RunRecord, error) {
	record := &domain.RunRecord{}
	var versions []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT run_id, pipeline_hash, versions, started_at, completed_at
		FROM audit_runs WHERE run_id = $1
	`, runID).Scan(&record.RunID, &record.PipelineHash, &versions, &record.StartedAt, &record.CompletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	if err := json.Unmarshal(versions, &record.Versions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal versions: %w", err)
	}

	stages, err := s.loadStages(ctx, runID)
	if err != nil {
		return nil, err
	}
	record.Stages = stages
	return record, nil
}

func (s *PostgresStore) loadStages(ctx context.Context, runID string) ([]domain.StageAudit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, stage, counts, input_hash, output_hash, started_at, completed_at
		FROM audit_stages WHERE run_id = $1 ORDER BY started_at
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query stages: %w", err)
	}
	defer rows.Close()

	var stages []domain.StageAudit
	for rows.Next() {
		var stage domain.StageAudit
		var name string
		var counts []byte
		err := rows.Scan(&stage.RunID, &name, &counts, &stage.InputHash, &stage.OutputHash, &stage.StartedAt, &stage.CompletedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stage: %w", err)
		}
		stage.Stage = domain.Stage(name)
		if err := json.Unmarshal(counts, &stage.Counts); err != nil {
			return nil, fmt.Errorf("failed to unmarshal counts: %w", err)
		}
		stages = append(stages, stage)
	}
	return stages, rows.Err()
}

// ListRuns returns the most recent run records without their stage rows.
func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, pipeline_hash, versions, started_at, completed_at
		FROM audit_runs ORDER BY started_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var records []domain.RunRecord
	for rows.Next() {
		var record domain.RunRecord
		var versions []byte
		err := rows.Scan(&record.RunID, &record.PipelineHash, &versions, &record.StartedAt, &record.CompletedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if err := json.Unmarshal(versions, &record.Versions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal versions: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// Close closes the store and releases resources.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
