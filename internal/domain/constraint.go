package domain

import "fmt"

// TranslatedConstraints is the enforcement set derived from constraint
// codes. Every slice is a lexicographically sorted set so the struct is
// byte-stable under serialization.
//
// The dominance invariant "blood does not negotiate" holds at all times:
// an ingredient present in BlockedIngredients never appears in
// RecommendedIngredients, and no downstream operation may remove an
// element from a blocked set.
type TranslatedConstraints struct {
	BlockedIngredients     []string `json:"blocked_ingredients"`
	BlockedCategories      []string `json:"blocked_categories"`
	BlockedTargets         []string `json:"blocked_targets"`
	CautionFlags           []string `json:"caution_flags"`
	ReasonCodes            []string `json:"reason_codes"`
	RecommendedIngredients []string `json:"recommended_ingredients"`
	UnknownCodes           []string `json:"unknown_codes,omitempty"`
	InputHash              string   `json:"input_hash"`
	OutputHash             string   `json:"output_hash"`
	MappingVersion         string   `json:"mapping_version"`
}

// BlocksIngredient reports whether the ingredient tag is blood-blocked.
// The tag must already be lowercase; translated sets are stored lowercase.
func (t *TranslatedConstraints) BlocksIngredient(tag string) bool {
	return containsSorted(t.BlockedIngredients, tag)
}

// BlocksCategory reports whether the category tag is blocked.
func (t *TranslatedConstraints) BlocksCategory(tag string) bool {
	return containsSorted(t.BlockedCategories, tag)
}

// CheckDominance verifies the block-wins invariant. A violation means the
// translator or a merge produced an unsafe output and the request must fail
// rather than serve it.
func (t *TranslatedConstraints) CheckDominance() error {
	for _, rec := range t.RecommendedIngredients {
		if containsSorted(t.BlockedIngredients, rec) {
			return fmt.Errorf("%w: ingredient %q is both blocked and recommended", ErrInternalInvariant, rec)
		}
	}
	return nil
}

// LogFields returns structured logging fields for audit trails.
func (t *TranslatedConstraints) LogFields() map[string]any {
	return map[string]any{
		"blocked_ingredients": len(t.BlockedIngredients),
		"blocked_categories":  len(t.BlockedCategories),
		"caution_flags":       len(t.CautionFlags),
		"recommended":         len(t.RecommendedIngredients),
		"unknown_codes":       len(t.UnknownCodes),
		"mapping_version":     t.MappingVersion,
		"output_hash":         t.OutputHash,
	}
}

// containsSorted is a binary membership test over a sorted string set.
func containsSorted(set []string, v string) bool {
	lo, hi := 0, len(set)
	for lo < hi {
		mid := (lo + hi) / 2
		if set[mid] < v {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo < len(set) && set[lo] == v
}
