package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biostack-engine/internal/audit"
	"github.com/biostack-engine/internal/catalog"
	"github.com/biostack-engine/internal/domain"
	"github.com/biostack-engine/internal/feedback"
	"github.com/biostack-engine/internal/pipeline"
	"github.com/biostack-engine/internal/ruleset"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// testConfig satisfies ConfigManager without touching the filesystem.
type testConfig struct {
	config domain.Config
}

func newTestConfig() *testConfig {
	return &testConfig{config: domain.Config{
		Server:  domain.ServerConfig{Host: "127.0.0.1", Port: 0},
		Logging: domain.LoggingConfig{Level: "info"},
	}}
}

func (t *testConfig) GetConfig() *domain.Config                 { return &t.config }
func (t *testConfig) GetServerConfig() *domain.ServerConfig     { return &t.config.Server }
func (t *testConfig) GetDatabaseConfig() *domain.DatabaseConfig { return &t.config.Database }
func (t *testConfig) GetDatabaseConnectionString() string       { return "" }
func (t *testConfig) Reload() error                             { return nil }
func (t *testConfig) Validate() error                           { return nil }
func (t *testConfig) IsProduction() bool                        { return false }
func (t *testConfig) IsDevelopment() bool                       { return true }

type serverFixture struct {
	server *Server
	store  *catalog.Store
	source *catalog.SQLiteSource
	audits domain.AuditStore
}

func newFixture(t *testing.T) *serverFixture {
	t.Helper()
	logger := testLogger()

	source, err := catalog.NewSQLiteSource(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	require.NoError(t, source.SeedIfEmpty(context.Background()))

	store := catalog.NewStore(source, logger)
	require.NoError(t, store.Reload(context.Background()))

	audits, err := audit.NewSQLiteStore(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)

	outcomes, err := feedback.NewSQLiteStore(filepath.Join(t.TempDir(), "feedback.db"))
	require.NoError(t, err)

	p, err := pipeline.New(ruleset.Default(), store, nil, pipeline.Options{}, logger)
	require.NoError(t, err)

	server := NewServer(newTestConfig(), Deps{
		Pipeline: p,
		Store:    store,
		Statuses: source,
		Audits:   audits,
		Feedback: outcomes,
		Logger:   logger,
	})
	t.Cleanup(func() {
		outcomes.Close()
		audits.Close()
		store.Close()
	})

	return &serverFixture{server: server, store: store, source: source, audits: audits}
}

func (f *serverFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestProtocolEndpoint(t *testing.T) {
	f := newFixture(t)

	body := `{
		"panel": [
			{"code": "ferritin", "value": 420, "unit": "ng/mL"},
			{"code": "crp", "value": 0.8, "unit": "mg/L"}
		],
		"user": {"sex": "male", "age": 40}
	}`

	rec := f.do(t, http.MethodPost, "/api/v1/protocol", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeBody(t, rec)
	assert.NotEmpty(t, resp["run_id"])
	assert.NotEmpty(t, resp["pipeline_hash"])
	assert.Contains(t, resp["constraint_codes"], "BLOCK_IRON")
}

func TestProtocolRejectsUnknownFields(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/protocol",
		`{"user": {"sex": "male"}, "surprise": true}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_INPUT")
}

func TestProtocolInvalidUser(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/protocol", `{"user": {"sex": "unknown"}}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_INPUT")
}

func TestProtocolCatalogUnavailable(t *testing.T) {
	logger := testLogger()
	store := catalog.NewStore(catalog.NewStaticSource(nil, "empty"), logger)
	p, err := pipeline.New(ruleset.Default(), store, nil, pipeline.Options{}, logger)
	require.NoError(t, err)

	server := NewServer(newTestConfig(), Deps{Pipeline: p, Store: store, Logger: logger})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/protocol",
		bytes.NewBufferString(`{"user": {"sex": "male"}}`))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "CATALOG_UNAVAILABLE")
}

func TestVersionsEndpoint(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/versions", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody(t, rec)
	assert.NotEmpty(t, resp["reference_ranges"])
	assert.NotEmpty(t, resp["gate_registry"])
	assert.NotEmpty(t, resp["catalog"])
}

func TestHealthEndpoint(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody(t, rec)
	assert.Equal(t, "healthy", resp["status"])
}

func TestHealthDegradedWithoutCatalog(t *testing.T) {
	logger := testLogger()
	store := catalog.NewStore(catalog.NewStaticSource(nil, "empty"), logger)
	p, err := pipeline.New(ruleset.Default(), store, nil, pipeline.Options{}, logger)
	require.NoError(t, err)

	server := NewServer(newTestConfig(), Deps{Pipeline: p, Store: store, Logger: logger})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "degraded")
}

func TestAdminReloadCatalog(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/admin/commands", `{"command": "reload_catalog"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody(t, rec)
	assert.Equal(t, "reloaded", resp["status"])
	assert.NotEmpty(t, resp["revision"])
}

func TestAdminSuspendAndActivateSKU(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/admin/commands",
		`{"command": "suspend_sku", "sku_id": "BSK-MAG-01"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	snapshot, err := f.store.Snapshot()
	require.NoError(t, err)
	for _, sku := range snapshot.SKUs {
		if sku.SKUID == "BSK-MAG-01" {
			assert.Equal(t, domain.StatusSuspended, sku.Status)
		}
	}

	rec = f.do(t, http.MethodPost, "/api/v1/admin/commands",
		`{"command": "activate_sku", "sku_id": "BSK-MAG-01"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	snapshot, err = f.store.Snapshot()
	require.NoError(t, err)
	for _, sku := range snapshot.SKUs {
		if sku.SKUID == "BSK-MAG-01" {
			assert.Equal(t, domain.StatusActive, sku.Status)
		}
	}
}

func TestAdminSuspendUnknownSKU(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/admin/commands",
		`{"command": "suspend_sku", "sku_id": "BSK-NOPE-99"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminUnknownCommand(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/admin/commands", `{"command": "drop_tables"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminGovernanceReport(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/admin/commands", `{"command": "governance_report"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody(t, rec)
	assert.NotEmpty(t, resp["coverage_report"])
	// The metadata-free seed SKU shows up as auto-blocked.
	assert.Contains(t, rec.Body.String(), "BSK-MYSTERY-01")
}

func TestRunEndpoints(t *testing.T) {
	f := newFixture(t)

	record := &domain.RunRecord{
		RunID:        "run-api-1",
		PipelineHash: "abc123",
		Versions:     domain.Versions{ReferenceRanges: "ranges-2025.2"},
		Stages: []domain.StageAudit{{
			RunID:       "run-api-1",
			Stage:       domain.StageNormalize,
			Counts:      map[string]int{"normalized": 2},
			InputHash:   "in",
			OutputHash:  "out",
			StartedAt:   time.Now().UTC(),
			CompletedAt: time.Now().UTC(),
		}},
		StartedAt:   time.Now().UTC(),
		CompletedAt: time.Now().UTC(),
	}
	require.NoError(t, f.audits.SaveRun(context.Background(), record))

	rec := f.do(t, http.MethodGet, "/api/v1/runs/run-api-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "abc123")

	rec = f.do(t, http.MethodGet, "/api/v1/runs/run-missing", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/runs?limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody(t, rec)
	assert.Equal(t, float64(1), resp["count"])

	rec = f.do(t, http.MethodGet, "/api/v1/runs?limit=0", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWatchStreamsRunSummaries(t *testing.T) {
	f := newFixture(t)

	ts := httptest.NewServer(f.server.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/admin/watch"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return f.server.Hub().ClientCount() == 1
	}, time.Second, 10*time.Millisecond)

	f.server.Hub().Emit(&domain.RunRecord{
		RunID:        "run-watch-1",
		PipelineHash: "hash-1",
		CompletedAt:  time.Now().UTC(),
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var event map[string]any
	require.NoError(t, json.Unmarshal(payload, &event))
	assert.Equal(t, "run-watch-1", event["run_id"])
	assert.Equal(t, "hash-1", event["pipeline_hash"])
}

func TestWatchEmitNeverBlocksOnStalledClient(t *testing.T) {
	f := newFixture(t)

	ts := httptest.NewServer(f.server.Handler())
	defer ts.Close()

	// Connect a client that never reads, so its socket buffer fills.
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/admin/watch"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return f.server.Hub().ClientCount() == 1
	}, time.Second, 10*time.Millisecond)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 20000; i++ {
			f.server.Hub().Emit(&domain.RunRecord{
				RunID:        fmt.Sprintf("run-flood-%05d", i),
				PipelineHash: "hash-flood",
				CompletedAt:  time.Now().UTC(),
			})
		}
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("emit stalled behind an unread watch client")
	}
}

func TestProtocolResponseIsCached(t *testing.T) {
	f := newFixture(t)

	fake := &fakeCache{entries: map[string]*domain.ProtocolResponse{}}
	f.server.cache = fake

	body := `{"panel": [{"code": "crp", "value": 0.8, "unit": "mg/L"}], "user": {"sex": "male"}}`

	rec := f.do(t, http.MethodPost, "/api/v1/protocol", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "", rec.Header().Get("X-Cache"))
	assert.Len(t, fake.entries, 1)

	rec = f.do(t, http.MethodPost, "/api/v1/protocol", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hit", rec.Header().Get("X-Cache"))
}

// fakeCache is an in-memory ResultCache for handler tests.
type fakeCache struct {
	entries map[string]*domain.ProtocolResponse
}

func (f *fakeCache) Key(req *domain.ProtocolRequest, versions domain.Versions) (string, error) {
	data, err := json.Marshal(map[string]any{"req": req, "versions": versions})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (f *fakeCache) Get(_ context.Context, key string) (*domain.ProtocolResponse, bool, error) {
	resp, ok := f.entries[key]
	return resp, ok, nil
}

func (f *fakeCache) Set(_ context.Context, key string, resp *domain.ProtocolResponse, _ time.Duration) error {
	f.entries[key] = resp
	return nil
}

func (f *fakeCache) InvalidateAll(context.Context) error {
	f.entries = map[string]*domain.ProtocolResponse{}
	return nil
}

func TestRunFeedbackRoundTrip(t *testing.T) {
	f := newFixture(t)

	// Reports must reference an audited run.
	require.NoError(t, f.audits.SaveRun(context.Background(), &domain.RunRecord{
		RunID:        "run-feedback-1",
		PipelineHash: "abc",
		StartedAt:    time.Now().UTC(),
		CompletedAt:  time.Now().UTC(),
	}))

	rec := f.do(t, http.MethodPost, "/api/v1/runs/run-feedback-1/feedback",
		`{"sku_id": "BSK-MAG-01", "outcome": "IMPROVED", "would_repeat": true, "notes": "sleeping better"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	saved := decodeBody(t, rec)
	assert.Equal(t, "run-feedback-1", saved["run_id"])
	assert.Equal(t, "IMPROVED", saved["outcome"])

	rec = f.do(t, http.MethodGet, "/api/v1/runs/run-feedback-1/feedback", "")
	require.Equal(t, http.StatusOK, rec.Code)

	listed := decodeBody(t, rec)
	assert.Equal(t, float64(1), listed["count"])
}

func TestRunFeedbackUnknownRun(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/runs/run-missing/feedback",
		`{"sku_id": "BSK-MAG-01", "outcome": "IMPROVED"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunFeedbackRejectsUnknownOutcome(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.audits.SaveRun(context.Background(), &domain.RunRecord{
		RunID:        "run-feedback-2",
		PipelineHash: "abc",
		StartedAt:    time.Now().UTC(),
		CompletedAt:  time.Now().UTC(),
	}))

	rec := f.do(t, http.MethodPost, "/api/v1/runs/run-feedback-2/feedback",
		`{"sku_id": "BSK-MAG-01", "outcome": "MAYBE"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// fakeLabs is an in-memory PanelFetcher for handler tests.
type fakeLabs struct {
	panels map[string][]domain.PanelEntry
}

func (f *fakeLabs) Panel(_ context.Context, accessionID string) ([]domain.PanelEntry, error) {
	panel, ok := f.panels[accessionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return panel, nil
}

func TestProtocolFromAccessionUnconfigured(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/protocol/from-accession",
		`{"accession_id": "ACC-1", "user": {"sex": "male", "age": 40}}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestProtocolFromAccession(t *testing.T) {
	f := newFixture(t)
	f.server.labs = &fakeLabs{panels: map[string][]domain.PanelEntry{
		"ACC-1": {
			{Code: "ferritin", Value: "420", Unit: "ng/mL"},
			{Code: "crp", Value: "0.8", Unit: "mg/L"},
		},
	}}

	rec := f.do(t, http.MethodPost, "/api/v1/protocol/from-accession",
		`{"accession_id": "ACC-1", "user": {"sex": "male", "age": 40}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeBody(t, rec)
	assert.Contains(t, resp["constraint_codes"], "BLOCK_IRON")

	rec = f.do(t, http.MethodPost, "/api/v1/protocol/from-accession",
		`{"accession_id": "ACC-MISSING", "user": {"sex": "male", "age": 40}}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/protocol/from-accession",
		`{"user": {"sex": "male", "age": 40}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
