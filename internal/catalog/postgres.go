package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/biostack-engine/internal/domain"
)

// PostgresSource loads catalog rows from Postgres. Rows are append-only;
// lifecycle is expressed through governance_status transitions, never
// deletes, so a snapshot is a plain full-table read.
type PostgresSource struct {
	pool   *pgxpool.Pool
	logger *logrus.Logger
}

// NewPostgresSource creates a catalog source over an existing pool. The
// pool is shared with the rest of the service and not closed here.
func NewPostgresSource(pool *pgxpool.Pool, logger *logrus.Logger) *PostgresSource {
	return &PostgresSource{pool: pool, logger: logger}
}

// Fetch reads every catalog row plus the catalog version from the meta
// table.
func (s *PostgresSource) Fetch(ctx context.Context) ([]domain.CatalogSKU, string, error) {
	rows, err := s.pool.Query(ctx, `
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
		var line, tier, status string
		err := rows.Scan(
			&sku.SKUID, &sku.ProductName, &sku.ProductURL,
			&sku.Ingredients, &sku.Categories, &sku.RiskTags,
			&line, &tier, &status, &sku.BasePrice,
		)
		if err != nil {
			return nil, "", fmt.Errorf("scanning catalog row: %w", err)
		}
		sku.ProductLine = domain.ProductLine(line)
		sku.EvidenceTier = domain.EvidenceTier(tier)
		sku.Status = domain.GovernanceStatus(status)
		skus = append(skus, sku)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("reading catalog rows: %w", err)
	}

	version, err := s.fetchVersion(ctx)
	if err != nil {
		return nil, "", err
	}

	s.logger.WithFields(logrus.Fields{
		"rows":    len(skus),
		"version": version,
	}).Debug("Fetched catalog rows from Postgres")
	return skus, version, nil
}

func (s *PostgresSource) fetchVersion(ctx context.Context) (string, error) {
	var version string
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM catalog_meta WHERE key = 'version'`,
	).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return "catalog-unversioned", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading catalog version: %w", err)
	}
	return version, nil
}

// SetStatus records a governance lifecycle transition. Rows are never
// deleted; suspension and reactivation are the only mutations.
func (s *PostgresSource) SetStatus(ctx context.Context, skuID string, status domain.GovernanceStatus) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE catalog_skus SET governance_status = $1 WHERE sku_id = $2",
		string(status), skuID,
	)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: sku %s", domain.ErrNotFound, skuID)
	}
	return nil
}

// Close is a no-op; the shared pool is owned by the caller.
func (s *PostgresSource) Close() error {
	return nil
}
