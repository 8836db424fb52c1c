package catalog

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biostack-engine/internal/domain"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func snapshotOf(t *testing.T, skus ...domain.CatalogSKU) *domain.CatalogSnapshot {
	t.Helper()
	snapshot, err := BuildSnapshot(skus, "catalog-test")
	require.NoError(t, err)
	return snapshot
}

func activeSKU(id string) domain.CatalogSKU {
	return domain.CatalogSKU{
		SKUID:        id,
		ProductName:  "Product " + id,
		Ingredients:  []string{"magnesium"},
		Categories:   []string{"minerals"},
		EvidenceTier: domain.EvidenceTier1,
		Status:       domain.StatusActive,
	}
}

func findAutoBlocked(result *domain.GovernanceResult, id string) *domain.AutoBlockedSKU {
	for i := range result.AutoBlocked {
		if result.AutoBlocked[i].SKUID == id {
			return &result.AutoBlocked[i]
		}
	}
	return nil
}

func TestGovernanceValidSKU(t *testing.T) {
	g := NewGovernor(testLogger())

	result, err := g.Validate(snapshotOf(t, activeSKU("SKU-OK")))
	require.NoError(t, err)

	require.Len(t, result.Valid, 1)
	assert.Empty(t, result.AutoBlocked)
	assert.Equal(t, 1, result.Coverage.Valid)
	assert.NotEmpty(t, result.ResultHash)
}

func TestGovernanceAutoBlockReasons(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.CatalogSKU)
		reason string
	}{
		{
			name:   "empty ingredient tags",
			mutate: func(s *domain.CatalogSKU) { s.Ingredients = nil },
			reason: ReasonEmptyIngredientTags,
		},
		{
			name:   "empty category tags",
			mutate: func(s *domain.CatalogSKU) { s.Categories = nil },
			reason: ReasonEmptyCategoryTags,
		},
		{
			name:   "blocked evidence tier",
			mutate: func(s *domain.CatalogSKU) { s.EvidenceTier = domain.EvidenceBlocked },
			reason: ReasonBlockedByEvidence,
		},
		{
			name:   "curation risk tag",
			mutate: func(s *domain.CatalogSKU) { s.RiskTags = []string{domain.RiskTagBlockedIngredient} },
			reason: ReasonHepatotoxicityRisk,
		},
		{
			name:   "missing product name",
			mutate: func(s *domain.CatalogSKU) { s.ProductName = "" },
			reason: ReasonInsufficientMetadata,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGovernor(testLogger())
			sku := activeSKU("SKU-BAD")
			tt.mutate(&sku)

			result, err := g.Validate(snapshotOf(t, sku))
			require.NoError(t, err)

			blocked := findAutoBlocked(result, "SKU-BAD")
			require.NotNil(t, blocked)
			assert.Contains(t, blocked.ReasonCodes, tt.reason)
			assert.Equal(t, result.Coverage.ByReason[tt.reason], 1)
		})
	}
}

func TestGovernanceSkipsInactiveRows(t *testing.T) {
	g := NewGovernor(testLogger())

	suspended := activeSKU("SKU-SUSP")
	suspended.Status = domain.StatusSuspended

	result, err := g.Validate(snapshotOf(t, activeSKU("SKU-OK"), suspended))
	require.NoError(t, err)

	assert.Len(t, result.Valid, 1)
	assert.Equal(t, 1, result.Coverage.Inactive)
}

func TestGovernanceDeterministicHash(t *testing.T) {
	g := NewGovernor(testLogger())

	first, err := g.Validate(snapshotOf(t, activeSKU("SKU-A"), activeSKU("SKU-B")))
	require.NoError(t, err)
	second, err := g.Validate(snapshotOf(t, activeSKU("SKU-B"), activeSKU("SKU-A")))
	require.NoError(t, err)

	assert.Equal(t, first.ResultHash, second.ResultHash)
}

func TestGovernanceNilSnapshot(t *testing.T) {
	g := NewGovernor(testLogger())

	_, err := g.Validate(nil)
	require.Error(t, err)
	assert.Equal(t, domain.KindCatalogUnavailable, domain.KindOf(err))
}

func TestStoreRequiresLoad(t *testing.T) {
	store := NewStore(NewStaticSource(Seed(), SeedVersion), testLogger())

	_, err := store.Snapshot()
	require.Error(t, err)
	assert.Equal(t, domain.KindCatalogUnavailable, domain.KindOf(err))

	require.NoError(t, store.Reload(context.Background()))

	snapshot, err := store.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, SeedVersion, snapshot.Version)
	assert.NotEmpty(t, snapshot.Revision)
	assert.Len(t, snapshot.SKUs, len(Seed()))
}

func TestBuildSnapshotRejectsDuplicates(t *testing.T) {
	_, err := BuildSnapshot([]domain.CatalogSKU{activeSKU("SKU-DUP"), activeSKU("SKU-DUP")}, "v")
	require.Error(t, err)
}

func TestBuildSnapshotRejectsInvalidRow(t *testing.T) {
	bad := activeSKU("SKU-BAD")
	bad.EvidenceTier = "TIER_9"
	_, err := BuildSnapshot([]domain.CatalogSKU{bad}, "v")
	require.Error(t, err)
}
