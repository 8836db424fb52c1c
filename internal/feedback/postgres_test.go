package feedback

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// getTestDB returns a database connection for testing.
// Skip test if TEST_DATABASE_URL is not set.
func getTestDB(t *testing.T) *sql.DB {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping PostgreSQL tests")
	}

	db, err := sql.Open("postgres", dbURL)
	require.NoError(t, err)

	// Create outcome table for testing
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS outcome_reports (
			id BIGSERIAL PRIMARY KEY,
			run_id TEXT NOT NULL,
			sku_id TEXT NOT NULL,
			outcome TEXT NOT NULL,
			would_repeat BOOLEAN NOT NULL DEFAULT FALSE,
			notes TEXT DEFAULT '',
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			CONSTRAINT outcome_reports_run_sku_unique UNIQUE (run_id, sku_id)
		)
	`)
	require.NoError(t, err)

	// Clean up before test
	_, err = db.Exec("DELETE FROM outcome_reports")
	require.NoError(t, err)

	return db
}

func TestPostgresStore_Save(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()

	store, err := NewPostgresStore(db)
	require.NoError(t, err)

	ctx := context.Background()
	report := &Report{
		RunID:       "run-001",
		SKUID:       "BSK-MAG-01",
		Outcome:     OutcomeImproved,
		WouldRepeat: true,
		Notes:       "restocked",
	}

	require.NoError(t, store.Save(ctx, report))
	assert.NotZero(t, report.ID)
	assert.False(t, report.CreatedAt.IsZero())
}

func TestPostgresStore_Save_Upsert(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()

	store, err := NewPostgresStore(db)
	require.NoError(t, err)

	ctx := context.Background()

	first := &Report{RunID: "run-001", SKUID: "BSK-MAG-01", Outcome: OutcomeNoEffect}
	require.NoError(t, store.Save(ctx, first))

	second := &Report{RunID: "run-001", SKUID: "BSK-MAG-01", Outcome: OutcomeAdverse, Notes: "stopped"}
	require.NoError(t, store.Save(ctx, second))
	assert.Equal(t, first.ID, second.ID, "Upsert should keep the original row")

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	got, err := store.Get(ctx, "run-001", "BSK-MAG-01")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, OutcomeAdverse, got.Outcome)
}

func TestPostgresStore_Get_NotFound(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()

	store, err := NewPostgresStore(db)
	require.NoError(t, err)

	got, err := store.Get(context.Background(), "run-missing", "BSK-MAG-01")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPostgresStore_ListByRun(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()

	store, err := NewPostgresStore(db)
	require.NoError(t, err)

	ctx := context.Background()
	for _, report := range []*Report{
		{RunID: "run-001", SKUID: "BSK-MAG-01", Outcome: OutcomeImproved},
		{RunID: "run-001", SKUID: "BSK-D3K2-01", Outcome: OutcomeNoEffect},
		{RunID: "run-002", SKUID: "BSK-MAG-01", Outcome: OutcomeDiscontinued},
	} {
		require.NoError(t, store.Save(ctx, report))
	}

	got, err := store.ListByRun(ctx, "run-001")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestNewPostgresStore_NilConnection(t *testing.T) {
	_, err := NewPostgresStore(nil)
	assert.Error(t, err)
}
