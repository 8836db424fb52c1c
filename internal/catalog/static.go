package catalog

import (
	"context"

	"github.com/biostack-engine/internal/domain"
)

// StaticSource serves a fixed in-memory catalog. It backs the lite MCP
// binary and test fixtures; production deployments use the SQL sources.
type StaticSource struct {
	skus    []domain.CatalogSKU
	version string
}

// NewStaticSource creates a source over the given rows.
func NewStaticSource(skus []domain.CatalogSKU, version string) *StaticSource {
	return &StaticSource{skus: skus, version: version}
}

// Fetch returns the fixed rows.
func (s *StaticSource) Fetch(ctx context.Context) ([]domain.CatalogSKU, string, error) {
	out := make([]domain.CatalogSKU, len(s.skus))
	copy(out, s.skus)
	return out, s.version, nil
}

// Close is a no-op for the static source.
func (s *StaticSource) Close() error {
	return nil
}

// SeedVersion identifies the embedded seed catalog.
const SeedVersion = "catalog-seed-2025.2"

// Seed returns the embedded starter catalog used by the lite binary and
// the end-to-end tests. Tag sets are lowercase by construction.
func Seed() []domain.CatalogSKU {
	return []domain.CatalogSKU{
		{
			SKUID:        "BSK-IRON-01",
			ProductName:  "Iron Restore",
			ProductURL:   "https://shop.biostack.example/iron-restore",
			Ingredients:  []string{"iron_bisglycinate", "vitamin_c"},
			Categories:   []string{"iron_support", "minerals"},
			ProductLine:  domain.LineUniversal,
			EvidenceTier: domain.EvidenceTier1,
			Status:       domain.StatusActive,
			BasePrice:    24.0,
		},
		{
			SKUID:        "BSK-MFOLATE-01",
			ProductName:  "Methylfolate Complete",
			ProductURL:   "https://shop.biostack.example/methylfolate-complete",
			Ingredients:  []string{"methylfolate", "methylcobalamin", "b_complex"},
			Categories:   []string{"b_vitamins", "methylation"},
			ProductLine:  domain.LineUniversal,
			EvidenceTier: domain.EvidenceTier1,
			Status:       domain.StatusActive,
			BasePrice:    29.0,
		},
		{
			SKUID:        "BSK-FOLIC-01",
			ProductName:  "Folic Acid Essential",
			Ingredients:  []string{"folic_acid"},
			Categories:   []string{"b_vitamins"},
			ProductLine:  domain.LineUniversal,
			EvidenceTier: domain.EvidenceTier2,
			Status:       domain.StatusActive,
			BasePrice:    12.0,
		},
		{
			SKUID:        "BSK-ADAPT-01",
			ProductName:  "Adaptogen Stack",
			Ingredients:  []string{"ashwagandha", "rhodiola"},
			Categories:   []string{"adaptogens", "stress_support"},
			ProductLine:  domain.LineMale,
			EvidenceTier: domain.EvidenceTier1,
			Status:       domain.StatusActive,
			BasePrice:    34.0,
		},
		{
			SKUID:        "BSK-RHOD-01",
			ProductName:  "Rhodiola Focus",
			Ingredients:  []string{"rhodiola"},
			Categories:   []string{"adaptogens"},
			RiskTags:     []string{"hepatic_sensitive"},
			ProductLine:  domain.LineMale,
			EvidenceTier: domain.EvidenceTier1,
			Status:       domain.StatusActive,
			BasePrice:    22.0,
		},
		{
			SKUID:        "BSK-MAG-01",
			ProductName:  "Magnesium Glycinate",
			Ingredients:  []string{"magnesium", "magnesium_glycinate"},
			Categories:   []string{"minerals", "sleep_support"},
			ProductLine:  domain.LineUniversal,
			EvidenceTier: domain.EvidenceTier1,
			Status:       domain.StatusActive,
			BasePrice:    19.0,
		},
		{
			SKUID:        "BSK-OMEGA-01",
			ProductName:  "Omega-3 Concentrate",
			Ingredients:  []string{"omega_3"},
			Categories:   []string{"essential_fats", "cardio_support"},
			ProductLine:  domain.LineUniversal,
			EvidenceTier: domain.EvidenceTier1,
			Status:       domain.StatusActive,
			BasePrice:    27.0,
		},
		{
			SKUID:        "BSK-D3K2-01",
			ProductName:  "Vitamin D3 + K2",
			Ingredients:  []string{"vitamin_d3", "vitamin_k2"},
			Categories:   []string{"vitamin_d_support"},
			ProductLine:  domain.LineUniversal,
			EvidenceTier: domain.EvidenceTier1,
			Status:       domain.StatusActive,
			BasePrice:    18.0,
		},
		{
			SKUID:        "BSK-ZINC-01",
			ProductName:  "Zinc Picolinate",
			Ingredients:  []string{"zinc", "zinc_picolinate"},
			Categories:   []string{"minerals", "immune_support"},
			ProductLine:  domain.LineMale,
			EvidenceTier: domain.EvidenceTier1,
			Status:       domain.StatusActive,
			BasePrice:    14.0,
		},
		{
			SKUID:        "BSK-FEM-IRON-01",
			ProductName:  "Her Iron Support",
			Ingredients:  []string{"iron_bisglycinate", "vitamin_c", "lactoferrin"},
			Categories:   []string{"iron_support"},
			ProductLine:  domain.LineFemale,
			EvidenceTier: domain.EvidenceTier1,
			Status:       domain.StatusActive,
			BasePrice:    26.0,
		},
		{
			// Incomplete metadata: governance auto-blocks this row.
			SKUID:        "BSK-MYSTERY-01",
			ProductName:  "Proprietary Blend",
			Ingredients:  []string{},
			Categories:   []string{},
			ProductLine:  domain.LineUniversal,
			EvidenceTier: domain.EvidenceTier2,
			Status:       domain.StatusActive,
			BasePrice:    39.0,
		},
		{
			SKUID:        "BSK-RETIRED-01",
			ProductName:  "Legacy Formula",
			Ingredients:  []string{"niacin"},
			Categories:   []string{"legacy"},
			ProductLine:  domain.LineUniversal,
			EvidenceTier: domain.EvidenceTier2,
			Status:       domain.StatusSuspended,
			BasePrice:    15.0,
		},
	}
}
