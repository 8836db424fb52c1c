// Package translator expands gate constraint codes into concrete
// enforcement sets using the versioned mapping registry. Translation is
// pure and memoizable: no I/O, no clock reads, no randomness.
package translator

import (
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/biostack-engine/internal/domain"
	"github.com/biostack-engine/internal/ruleset"
	"github.com/biostack-engine/pkg/canonhash"
)

// DefaultMemoSize bounds the translation memo when no size is configured.
const DefaultMemoSize = 512

// Translator implements constraint translation over the active mapping
// registry.
type Translator struct {
	rules  *ruleset.Ruleset
	logger *logrus.Logger
	memo   *memoCache
}

// NewTranslator creates a translator bound to a validated ruleset.
func NewTranslator(rules *ruleset.Ruleset, memoSize int, logger *logrus.Logger) (*Translator, error) {
	if memoSize <= 0 {
		memoSize = DefaultMemoSize
	}
	memo, err := newMemoCache(memoSize)
	if err != nil {
		return nil, err
	}
	return &Translator{
		rules:  rules,
		logger: logger,
		memo:   memo,
	}, nil
}

// Translate expands constraint codes into sorted enforcement sets. Codes
// are folded to uppercase and deduplicated before lookup; codes absent from
// the mapping registry are reported in unknown_codes and leave a synthetic
// reason code, never a silent drop.
func (t *Translator) Translate(codes []domain.ConstraintCode, sex domain.Sex) (*domain.TranslatedConstraints, error) {
	sorted := sanitizeCodes(codes)

	parts := make([]string, 0, len(sorted)+1)
	for _, c := range sorted {
		parts = append(parts, string(c))
	}
	parts = append(parts, string(sex))
	inputHash := canonhash.HashStrings(parts...)

	if cached, ok := t.memo.get(inputHash); ok {
		t.logger.WithField("input_hash", inputHash).Debug("Translation memo hit")
		return cached, nil
	}

	blockedIngredients := map[string]bool{}
	blockedCategories := map[string]bool{}
	blockedTargets := map[string]bool{}
	cautionFlags := map[string]bool{}
	reasonCodes := map[string]bool{}
	recommended := map[string]bool{}
	var unknown []string

	for _, code := range sorted {
		row, ok := t.rules.MappingFor(code)
		if !ok {
			unknown = append(unknown, string(code))
			reasonCodes["UNKNOWN_CONSTRAINT_"+string(code)] = true
			continue
		}
		addAll(blockedIngredients, row.BlockedIngredients)
		addAll(blockedCategories, row.BlockedCategories)
		addAll(blockedTargets, row.BlockedTargets)
		addAll(cautionFlags, row.CautionFlags)
		addAll(reasonCodes, row.ReasonCodes)
		addAll(recommended, row.RecommendedIngredients)
	}

	// Block dominates recommend: a code may suggest an ingredient another
	// code blocks, and the block always wins.
	for ing := range recommended {
		if blockedIngredients[ing] {
			delete(recommended, ing)
		}
	}

	out := &domain.TranslatedConstraints{
		BlockedIngredients:     sortedSlice(blockedIngredients),
		BlockedCategories:      sortedSlice(blockedCategories),
		BlockedTargets:         sortedSlice(blockedTargets),
		CautionFlags:           sortedSlice(cautionFlags),
		ReasonCodes:            sortedSlice(reasonCodes),
		RecommendedIngredients: sortedSlice(recommended),
		UnknownCodes:           sortStrings(unknown),
		InputHash:              inputHash,
		MappingVersion:         t.rules.MappingVersion,
	}
	if err := t.finalize(out); err != nil {
		return nil, err
	}

	t.memo.add(inputHash, out)

	t.logger.WithFields(logrus.Fields(out.LogFields())).Debug("Translated constraint codes")
	return out, nil
}

// Merge layers another constraint set on top of the bloodwork-derived one.
// Merging only ever adds to the blocked, caution and reason sets; nothing
// may remove a bloodwork block. Recommendations that the merged blocks now
// cover are dropped to preserve dominance.
func (t *Translator) Merge(bloodwork, other *domain.TranslatedConstraints) (*domain.TranslatedConstraints, error) {
	if other == nil {
		return bloodwork, nil
	}

	merged := &domain.TranslatedConstraints{
		BlockedIngredients: unionSorted(bloodwork.BlockedIngredients, other.BlockedIngredients),
		BlockedCategories:  unionSorted(bloodwork.BlockedCategories, other.BlockedCategories),
		BlockedTargets:     unionSorted(bloodwork.BlockedTargets, other.BlockedTargets),
		CautionFlags:       unionSorted(bloodwork.CautionFlags, other.CautionFlags),
		ReasonCodes:        unionSorted(bloodwork.ReasonCodes, other.ReasonCodes),
		UnknownCodes:       unionSorted(bloodwork.UnknownCodes, other.UnknownCodes),
		InputHash:          bloodwork.InputHash,
		MappingVersion:     bloodwork.MappingVersion,
	}

	rec := make([]string, 0, len(bloodwork.RecommendedIngredients))
	for _, ing := range bloodwork.RecommendedIngredients {
		if !containsString(merged.BlockedIngredients, ing) {
			rec = append(rec, ing)
		}
	}
	merged.RecommendedIngredients = rec

	if err := t.finalize(merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// Stats reports memo cache effectiveness.
func (t *Translator) Stats() MemoStats {
	return t.memo.stats()
}

// finalize computes the output hash and verifies dominance. A dominance
// failure here means registry validation was bypassed or a merge went
// wrong; the request must fail rather than serve the output.
func (t *Translator) finalize(c *domain.TranslatedConstraints) error {
	if err := c.CheckDominance(); err != nil {
		return err
	}
	hash, err := canonhash.Hash(map[string]any{
		"blocked_ingredients":     c.BlockedIngredients,
		"blocked_categories":      c.BlockedCategories,
		"blocked_targets":         c.BlockedTargets,
		"caution_flags":           c.CautionFlags,
		"reason_codes":            c.ReasonCodes,
		"recommended_ingredients": c.RecommendedIngredients,
		"unknown_codes":           c.UnknownCodes,
		"mapping_version":         c.MappingVersion,
	})
	if err != nil {
		return domain.NewInternalInvariant(domain.StageTranslate, "failed to hash translated constraints")
	}
	c.OutputHash = hash
	return nil
}

func sanitizeCodes(codes []domain.ConstraintCode) []domain.ConstraintCode {
	seen := make(map[domain.ConstraintCode]bool, len(codes))
	out := make([]domain.ConstraintCode, 0, len(codes))
	for _, c := range codes {
		s := domain.ConstraintCode(strings.ToUpper(strings.TrimSpace(string(c))))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func addAll(set map[string]bool, values []string) {
	for _, v := range values {
		set[v] = true
	}
}

func sortedSlice(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func sortStrings(values []string) []string {
	if values == nil {
		return nil
	}
	sort.Strings(values)
	return values
}

func unionSorted(a, b []string) []string {
	set := make(map[string]bool, len(a)+len(b))
	addAll(set, a)
	addAll(set, b)
	return sortedSlice(set)
}

func containsString(sorted []string, v string) bool {
	i := sort.SearchStrings(sorted, v)
	return i < len(sorted) && sorted[i] == v
}
