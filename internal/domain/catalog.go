package domain

import (
	"fmt"
	"strings"
	"time"
)

// RiskTagBlockedIngredient is the curation sentinel placed in a SKU's risk
// tags when the metadata review process bans a product outright. Governance
// maps it to the HEPATOTOXICITY_RISK reason; the curation process uses it
// exclusively for hepatotoxic ingredient bans.
const RiskTagBlockedIngredient = "blocked_ingredient"

// CatalogSKU is one purchasable product in the catalog snapshot. Tag sets
// are stored lowercase. Rows are append-only in storage; a modification
// produces a new revision rather than an update.
type CatalogSKU struct {
	SKUID        string           `json:"sku_id"`
	ProductName  string           `json:"product_name"`
	ProductURL   string           `json:"product_url,omitempty"`
	Ingredients  []string         `json:"ingredient_tags"`
	Categories   []string         `json:"category_tags"`
	RiskTags     []string         `json:"risk_tags,omitempty"`
	ProductLine  ProductLine      `json:"product_line,omitempty"`
	EvidenceTier EvidenceTier     `json:"evidence_tier"`
	Status       GovernanceStatus `json:"governance_status"`
	BasePrice    float64          `json:"base_price,omitempty"`
}

// Validate checks structural fields only; emptiness of tag sets is a
// governance concern, not a validation error.
func (s *CatalogSKU) Validate() error {
	if strings.TrimSpace(s.SKUID) == "" {
		return fmt.Errorf("%w: sku_id is required", ErrInvalidInput)
	}
	if !s.EvidenceTier.IsValid() {
		return fmt.Errorf("%w: sku %s has invalid evidence tier %q", ErrInvalidInput, s.SKUID, s.EvidenceTier)
	}
	if !s.Status.IsValid() {
		return fmt.Errorf("%w: sku %s has invalid governance status %q", ErrInvalidInput, s.SKUID, s.Status)
	}
	if !s.ProductLine.IsValid() {
		return fmt.Errorf("%w: sku %s has invalid product line %q", ErrInvalidInput, s.SKUID, s.ProductLine)
	}
	return nil
}

// HasRiskTag reports whether the SKU carries the given risk tag.
func (s *CatalogSKU) HasRiskTag(tag string) bool {
	for _, t := range s.RiskTags {
		if t == tag {
			return true
		}
	}
	return false
}

// CatalogSnapshot is an immutable view of the catalog taken at load time.
// Requests hold the snapshot they started with; reloads swap the pointer.
type CatalogSnapshot struct {
	SKUs     []CatalogSKU `json:"skus"`
	Version  string       `json:"version"`
	Revision string       `json:"revision"`
	LoadedAt time.Time    `json:"loaded_at"`
}

// ValidatedSKU is a catalog SKU that passed governance.
type ValidatedSKU struct {
	SKU CatalogSKU `json:"sku"`
}

// AutoBlockedSKU is a catalog SKU rejected by governance before routing.
type AutoBlockedSKU struct {
	SKUID       string   `json:"sku_id"`
	ProductName string   `json:"product_name"`
	ReasonCodes []string `json:"reason_codes"`
}

// CoverageReport aggregates governance results for diagnostics.
type CoverageReport struct {
	Total       int            `json:"total"`
	Active      int            `json:"active"`
	Inactive    int            `json:"inactive"`
	Valid       int            `json:"valid"`
	AutoBlocked int            `json:"auto_blocked"`
	ByReason    map[string]int `json:"by_reason"`
}

// GovernanceResult is the output of catalog validation. Both lists are
// sorted by SKU id; ResultHash covers the sorted results for cache and
// change detection.
type GovernanceResult struct {
	Valid       []ValidatedSKU   `json:"valid"`
	AutoBlocked []AutoBlockedSKU `json:"auto_blocked"`
	Coverage    CoverageReport   `json:"coverage_report"`
	ResultHash  string           `json:"result_hash"`
}

// AllowedSKU is a SKU that survived routing. Cautions and fulfilled
// requirement tags ride along into matching.
type AllowedSKU struct {
	SKU            CatalogSKU `json:"sku"`
	CautionFlags   []string   `json:"caution_flags,omitempty"`
	CautionReasons []string   `json:"caution_reasons,omitempty"`
	Fulfills       []string   `json:"fulfills,omitempty"`
}

// BlockedSKU records why routing eliminated a SKU. TriggeredBy lists the
// specific tags that tripped the block.
type BlockedSKU struct {
	SKUID       string      `json:"sku_id"`
	ProductName string      `json:"product_name"`
	BlockedBy   BlockSource `json:"blocked_by"`
	ReasonCodes []string    `json:"reason_codes"`
	TriggeredBy []string    `json:"triggered_by"`
}

// RoutingAudit carries the stage counts exposed in the response body.
type RoutingAudit struct {
	Evaluated         int `json:"evaluated"`
	Allowed           int `json:"allowed"`
	Blocked           int `json:"blocked"`
	BlockedByMetadata int `json:"blocked_by_metadata"`
	BlockedByBlood    int `json:"blocked_by_blood"`
	BlockedByCategory int `json:"blocked_by_category"`
}

// RoutingResult is the output of constraint routing. Allowed and Blocked
// are sorted by SKU id.
type RoutingResult struct {
	Allowed     []AllowedSKU          `json:"allowed"`
	Blocked     []BlockedSKU          `json:"blocked"`
	Audit       RoutingAudit          `json:"audit"`
	Coverage    []RequirementCoverage `json:"requirement_coverage,omitempty"`
	RoutingHash string                `json:"routing_hash"`
}

// AllowedIDs returns the sorted SKU ids of the allowed set.
func (r *RoutingResult) AllowedIDs() []string {
	ids := make([]string, len(r.Allowed))
	for i := range r.Allowed {
		ids[i] = r.Allowed[i].SKU.SKUID
	}
	return ids
}

// RequirementCoverage reports, per requirement tag, whether at least one
// allowed SKU fulfills it. Exposed for diagnostics and reused by matching.
type RequirementCoverage struct {
	Requirement string   `json:"requirement"`
	Covered     bool     `json:"covered"`
	SKUIDs      []string `json:"sku_ids,omitempty"`
}
