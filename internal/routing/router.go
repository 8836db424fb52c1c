// Package routing eliminates catalog SKUs that violate translated
// constraints. Routing is pure safety elimination: it never ranks, never
// weighs preference, and never lets a later stage resurrect a blocked SKU.
package routing

import (
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/biostack-engine/internal/catalog"
	"github.com/biostack-engine/internal/domain"
	"github.com/biostack-engine/pkg/canonhash"
)

// Version identifies the routing algorithm in responses and audit records.
const Version = "routing-2025.2"

// Router screens governed SKUs against the enforcement sets.
type Router struct {
	logger *logrus.Logger
}

// NewRouter creates a constraint router.
func NewRouter(logger *logrus.Logger) *Router {
	return &Router{logger: logger}
}

// Route checks every valid SKU against the translated constraints and
// splits the set into allowed and blocked. Requirements must already be
// lowercase; fulfilled requirement tags ride along on allowed SKUs.
//
// Block precedence when a SKU trips more than one check: metadata over
// blood over category. The full reason list is recorded either way.
func (r *Router) Route(valid []domain.ValidatedSKU, constraints *domain.TranslatedConstraints, requirements []string) (*domain.RoutingResult, error) {
	if constraints == nil {
		return nil, domain.NewInternalInvariant(domain.StageRoute, "routing invoked without translated constraints")
	}
	if err := constraints.CheckDominance(); err != nil {
		return nil, err
	}

	result := &domain.RoutingResult{
		Allowed: []domain.AllowedSKU{},
		Blocked: []domain.BlockedSKU{},
		Audit:   domain.RoutingAudit{Evaluated: len(valid)},
	}

	for i := range valid {
		sku := valid[i].SKU
		ingredients := lowerSet(sku.Ingredients)
		categories := lowerSet(sku.Categories)
		riskTags := lowerSet(sku.RiskTags)

		metadataReasons := metadataBlocks(&sku, riskTags)
		bloodTags := intersect(constraints.BlockedIngredients, ingredients)
		categoryTags := intersect(constraints.BlockedCategories, categories)

		if len(metadataReasons) > 0 || len(bloodTags) > 0 || len(categoryTags) > 0 {
			blocked := domain.BlockedSKU{
				SKUID:       sku.SKUID,
				ProductName: sku.ProductName,
			}
			blocked.ReasonCodes = append(blocked.ReasonCodes, metadataReasons...)
			for _, tag := range bloodTags {
				blocked.ReasonCodes = append(blocked.ReasonCodes, "BLOCK_INGREDIENT_"+strings.ToUpper(tag))
				blocked.TriggeredBy = append(blocked.TriggeredBy, tag)
			}
			for _, tag := range categoryTags {
				blocked.ReasonCodes = append(blocked.ReasonCodes, "BLOCK_CATEGORY_"+strings.ToUpper(tag))
				blocked.TriggeredBy = append(blocked.TriggeredBy, tag)
			}
			switch {
			case len(metadataReasons) > 0:
				blocked.BlockedBy = domain.BlockedByMetadata
				result.Audit.BlockedByMetadata++
			case len(bloodTags) > 0:
				blocked.BlockedBy = domain.BlockedByBlood
				result.Audit.BlockedByBlood++
			default:
				blocked.BlockedBy = domain.BlockedByCategory
				result.Audit.BlockedByCategory++
			}
			sort.Strings(blocked.ReasonCodes)
			sort.Strings(blocked.TriggeredBy)
			result.Blocked = append(result.Blocked, blocked)
			continue
		}

		// Caution flags attach to allowed SKUs via both ingredient and
		// risk tags: a catalog-declared sensitivity (hepatic_sensitive on
		// an otherwise safe product) must carry through to the protocol.
		allowed := domain.AllowedSKU{SKU: sku}
		cautionTags := union(ingredients, riskTags)
		for _, flag := range intersect(constraints.CautionFlags, cautionTags) {
			allowed.CautionFlags = append(allowed.CautionFlags, flag)
			allowed.CautionReasons = append(allowed.CautionReasons, "CAUTION_"+strings.ToUpper(flag))
		}
		allowed.Fulfills = intersect(requirements, ingredients)
		result.Allowed = append(result.Allowed, allowed)
	}

	sort.Slice(result.Allowed, func(i, j int) bool {
		return result.Allowed[i].SKU.SKUID < result.Allowed[j].SKU.SKUID
	})
	sort.Slice(result.Blocked, func(i, j int) bool {
		return result.Blocked[i].SKUID < result.Blocked[j].SKUID
	})
	result.Audit.Allowed = len(result.Allowed)
	result.Audit.Blocked = len(result.Blocked)

	parts := []string{"allowed"}
	parts = append(parts, result.AllowedIDs()...)
	parts = append(parts, "blocked")
	for i := range result.Blocked {
		parts = append(parts, result.Blocked[i].SKUID)
	}
	result.RoutingHash = canonhash.HashStrings(parts...)

	r.logger.WithFields(logrus.Fields{
		"evaluated":    result.Audit.Evaluated,
		"allowed":      result.Audit.Allowed,
		"blocked":      result.Audit.Blocked,
		"routing_hash": result.RoutingHash,
	}).Debug("Routing complete")

	return result, nil
}

// Coverage reports which requirement tags have at least one allowed SKU.
// Requirements must already be lowercase and sorted.
func (r *Router) Coverage(allowed []domain.AllowedSKU, requirements []string) []domain.RequirementCoverage {
	coverage := make([]domain.RequirementCoverage, 0, len(requirements))
	for _, req := range requirements {
		entry := domain.RequirementCoverage{Requirement: req}
		for i := range allowed {
			if containsLower(allowed[i].SKU.Ingredients, req) {
				entry.Covered = true
				entry.SKUIDs = append(entry.SKUIDs, allowed[i].SKU.SKUID)
			}
		}
		sort.Strings(entry.SKUIDs)
		coverage = append(coverage, entry)
	}
	return coverage
}

// metadataBlocks re-checks the governance conditions routing must never
// trust to have run. A curation-blocked or evidence-blocked SKU reaching
// this point is still eliminated here, with the governance reason codes.
func metadataBlocks(sku *domain.CatalogSKU, riskTags map[string]bool) []string {
	var reasons []string
	if riskTags[domain.RiskTagBlockedIngredient] {
		reasons = append(reasons, catalog.ReasonHepatotoxicityRisk)
	}
	if sku.EvidenceTier == domain.EvidenceBlocked {
		reasons = append(reasons, catalog.ReasonBlockedByEvidence)
	}
	sort.Strings(reasons)
	return reasons
}

func lowerSet(tags []string) map[string]bool {
	set := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			set[t] = true
		}
	}
	return set
}

// intersect returns the sorted elements of the (sorted or unsorted) list
// present in the set.
func intersect(list []string, set map[string]bool) []string {
	var out []string
	for _, v := range list {
		if set[v] {
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

func union(a, b map[string]bool) map[string]bool {
	out := make(map[string]bool, len(a)+len(b))
	for v := range a {
		out[v] = true
	}
	for v := range b {
		out[v] = true
	}
	return out
}

func containsLower(tags []string, v string) bool {
	for _, t := range tags {
		if strings.ToLower(t) == v {
			return true
		}
	}
	return false
}
