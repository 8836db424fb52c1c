// Package catalog owns the SKU snapshot lifecycle and governance. A
// snapshot is loaded from a source (postgres, sqlite or the static seed),
// validated, and swapped in atomically; requests read whichever snapshot
// was current when they started. Governance screens every active SKU's
// metadata before routing may consider it.
package catalog

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/biostack-engine/internal/domain"
	"github.com/biostack-engine/pkg/canonhash"
)

// Governance reason codes.
const (
	ReasonInsufficientMetadata = "INSUFFICIENT_METADATA"
	ReasonEmptyIngredientTags  = "EMPTY_INGREDIENT_TAGS"
	ReasonEmptyCategoryTags    = "EMPTY_CATEGORY_TAGS"
	ReasonBlockedByEvidence    = "BLOCKED_BY_EVIDENCE"
	ReasonHepatotoxicityRisk   = "HEPATOTOXICITY_RISK"
)

// Governor screens catalog SKUs before routing. Only rows with ACTIVE
// governance status are candidates; the rest are counted but never
// validated or auto-blocked.
type Governor struct {
	logger *logrus.Logger
}

// NewGovernor creates a catalog governor.
func NewGovernor(logger *logrus.Logger) *Governor {
	return &Governor{logger: logger}
}

// Validate splits the snapshot's active SKUs into valid and auto-blocked
// sets. Both lists are sorted by SKU id and the result hash covers them
// for change detection.
func (g *Governor) Validate(snapshot *domain.CatalogSnapshot) (*domain.GovernanceResult, error) {
	if snapshot == nil {
		return nil, domain.NewCatalogUnavailable("no catalog snapshot loaded")
	}

	result := &domain.GovernanceResult{
		Valid:       []domain.ValidatedSKU{},
		AutoBlocked: []domain.AutoBlockedSKU{},
		Coverage: domain.CoverageReport{
			Total:    len(snapshot.SKUs),
			ByReason: map[string]int{},
		},
	}

	for i := range snapshot.SKUs {
		sku := snapshot.SKUs[i]
		if sku.Status != domain.StatusActive {
			result.Coverage.Inactive++
			continue
		}
		result.Coverage.Active++

		reasons := governanceReasons(&sku)
		if len(reasons) == 0 {
			result.Valid = append(result.Valid, domain.ValidatedSKU{SKU: sku})
			continue
		}

		for _, r := range reasons {
			result.Coverage.ByReason[r]++
		}
		result.AutoBlocked = append(result.AutoBlocked, domain.AutoBlockedSKU{
			SKUID:       sku.SKUID,
			ProductName: sku.ProductName,
			ReasonCodes: reasons,
		})
	}

	sort.Slice(result.Valid, func(i, j int) bool {
		return result.Valid[i].SKU.SKUID < result.Valid[j].SKU.SKUID
	})
	sort.Slice(result.AutoBlocked, func(i, j int) bool {
		return result.AutoBlocked[i].SKUID < result.AutoBlocked[j].SKUID
	})

	result.Coverage.Valid = len(result.Valid)
	result.Coverage.AutoBlocked = len(result.AutoBlocked)

	validIDs := make([]string, len(result.Valid))
	for i := range result.Valid {
		validIDs[i] = result.Valid[i].SKU.SKUID
	}
	blockedIDs := make([]string, len(result.AutoBlocked))
	for i := range result.AutoBlocked {
		blockedIDs[i] = result.AutoBlocked[i].SKUID
	}
	hash, err := canonhash.Hash([2][]string{validIDs, blockedIDs})
	if err != nil {
		return nil, domain.NewInternalInvariant(domain.StageRoute, "failed to hash governance result")
	}
	result.ResultHash = hash

	g.logger.WithFields(logrus.Fields{
		"total":        result.Coverage.Total,
		"active":       result.Coverage.Active,
		"valid":        result.Coverage.Valid,
		"auto_blocked": result.Coverage.AutoBlocked,
		"result_hash":  result.ResultHash,
	}).Debug("Catalog governance complete")

	return result, nil
}

// governanceReasons returns the sorted reason codes that disqualify the
// SKU, or nil when it is valid.
func governanceReasons(sku *domain.CatalogSKU) []string {
	var reasons []string
	if sku.ProductName == "" {
		reasons = append(reasons, ReasonInsufficientMetadata)
	}
	if len(sku.Ingredients) == 0 {
		reasons = append(reasons, ReasonEmptyIngredientTags)
	}
	if len(sku.Categories) == 0 {
		reasons = append(reasons, ReasonEmptyCategoryTags)
	}
	if sku.EvidenceTier == domain.EvidenceBlocked {
		reasons = append(reasons, ReasonBlockedByEvidence)
	}
	if sku.HasRiskTag(domain.RiskTagBlockedIngredient) {
		reasons = append(reasons, ReasonHepatotoxicityRisk)
	}
	sort.Strings(reasons)
	return reasons
}
