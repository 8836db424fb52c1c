package catalog

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

// SQLiteSource loads catalog rows from a local SQLite database. It backs
// the lite deployment mode where no Postgres is available; tag lists are
// stored as JSON arrays.
type SQLiteSource struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteSource opens (or creates) the catalog database at dbPath.
func NewSQLiteSource(dbPath string) (*SQLiteSource, error) {
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

	if err := createCatalogSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteSource{db: db, dbPath: dbPath}, nil
}

func createCatalogSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS catalog_skus (
		sku_id TEXT PRIMARY KEY,
		product_name TEXT NOT NULL,
		product_url TEXT DEFAULT '',
		ingredient_tags TEXT NOT NULL DEFAULT '[]',
		category_tags TEXT NOT NULL DEFAULT '[]',
		risk_tags TEXT NOT NULL DEFAULT '[]',
		product_line TEXT DEFAULT '',
		evidence_tier TEXT NOT NULL,
		governance_status TEXT NOT NULL,
		base_price REAL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS catalog_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_catalog_status ON catalog_skus(governance_status);
	`
	_, err := db.Exec(schema)
	return err
}

// Fetch reads every catalog row plus the catalog version.
func (s *SQLiteSource) Fetch(ctx context.Context) ([]domain.CatalogSKU, string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sku_id, product_name, product_url,
			ingredient_tags, category_tags, risk_tags,
			product_line, evidence_tier, governance_status, base_price
		FROM catalog_skus
		ORDER BY sku_id
	`)
	if err != nil {
		return nil, "", fmt.Errorf("querying catalog rows: %w", err)
	}
	defer rows.Close()

	var skus []domain.CatalogSKU
	for rows.Next() {
		var sku domain.CatalogSKU
		var ingredients, categories, riskTags, line, tier, status string
		err := rows.Scan(
			&sku.SKUID, &sku.ProductName, &sku.ProductURL,
			&ingredients, &categories, &riskTags,
			&line, &tier, &status, &sku.BasePrice,
		)
		if err != nil {
			return nil, "", fmt.Errorf("scanning catalog row: %w", err)
		}
		if err := decodeTags(ingredients, &sku.Ingredients); err != nil {
			return nil, "", fmt.Errorf("row %s ingredient_tags: %w", sku.SKUID, err)
		}
		if err := decodeTags(categories, &sku.Categories); err != nil {
			return nil, "", fmt.Errorf("row %s category_tags: %w", sku.SKUID, err)
		}
		if err := decodeTags(riskTags, &sku.RiskTags); err != nil {
			return nil, "", fmt.Errorf("row %s risk_tags: %w", sku.SKUID, err)
		}
		sku.ProductLine = domain.ProductLine(line)
		sku.EvidenceTier = domain.EvidenceTier(tier)
		sku.Status = domain.GovernanceStatus(status)
		skus = append(skus, sku)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("reading catalog rows: %w", err)
	}

	var version string
	err = s.db.QueryRowContext(ctx,
		`SELECT value FROM catalog_meta WHERE key = 'version'`,
	).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		version = "catalog-unversioned"
	} else if err != nil {
		return nil, "", fmt.Errorf("reading catalog version: %w", err)
	}

	return skus, version, nil
}

// SeedIfEmpty inserts the embedded seed catalog when the table has no
// rows. The lite binary calls this on first start so it is usable out of
// the box.
func (s *SQLiteSource) SeedIfEmpty(ctx context.Context) error {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM catalog_skus").Scan(&count); err != nil {
		return fmt.Errorf("counting catalog rows: %w", err)
	}
	if count > 0 {
		return nil
	}

	for _, sku := range Seed() {
		if err := s.insert(ctx, &sku); err != nil {
			return err
		}
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO catalog_meta (key, value) VALUES ('version', ?)",
		SeedVersion,
	)
	return err
}

func (s *SQLiteSource) insert(ctx context.Context, sku *domain.CatalogSKU) error {
	ingredients, err := json.Marshal(sku.Ingredients)
	if err != nil {
		return err
	}
	categories, err := json.Marshal(sku.Categories)
	if err != nil {
		return err
	}
	riskTags, err := json.Marshal(sku.RiskTags)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO catalog_skus (
			sku_id, product_name, product_url,
			ingredient_tags, category_tags, risk_tags,
			product_line, evidence_tier, governance_status, base_price
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		sku.SKUID, sku.ProductName, sku.ProductURL,
		string(ingredients), string(categories), string(riskTags),
		string(sku.ProductLine), string(sku.EvidenceTier), string(sku.Status), sku.BasePrice,
	)
	if err != nil {
		return fmt.Errorf("failed to insert sku %s: %w", sku.SKUID, err)
	}
	return nil
}

// SetStatus records a governance lifecycle transition. Rows are never
// deleted; suspension and reactivation are the only mutations.
func (s *SQLiteSource) SetStatus(ctx context.Context, skuID string, status domain.GovernanceStatus) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE catalog_skus SET governance_status = ? WHERE sku_id = ?",
		string(status), skuID,
	)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: sku %s", domain.ErrNotFound, skuID)
	}
	return nil
}

func decodeTags(raw string, out *[]string) error {
	if raw == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), out)
}

// Close closes the underlying database.
func (s *SQLiteSource) Close() error {
	return s.db.Close()
}
