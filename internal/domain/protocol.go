package domain

import (
	"fmt"
	"strings"
)

// Intent is one prioritized user goal expressed as ingredient targets.
// Lower priority rank means higher priority.
type Intent struct {
	Code              string       `json:"code"`
	Priority          int          `json:"priority"`
	IngredientTargets []string     `json:"ingredient_targets"`
	Source            IntentSource `json:"source"`
}

// Validate checks the intent is well-formed.
func (i *Intent) Validate() error {
	if strings.TrimSpace(i.Code) == "" {
		return fmt.Errorf("%w: intent code is required", ErrInvalidInput)
	}
	if i.Priority < 1 {
		return fmt.Errorf("%w: intent %s priority must be >= 1, got %d", ErrInvalidInput, i.Code, i.Priority)
	}
	if !i.Source.IsValid() {
		return fmt.Errorf("%w: intent %s has invalid source %q", ErrInvalidInput, i.Code, i.Source)
	}
	return nil
}

// UserContext carries the demographics that select reference ranges and
// the product line. ProductLine defaults from Sex when unset.
type UserContext struct {
	Sex         Sex         `json:"sex"`
	Age         int         `json:"age,omitempty"`
	ProductLine ProductLine `json:"product_line,omitempty"`
	CyclePhase  string      `json:"cycle_phase,omitempty"`
}

// Validate checks required demographics.
func (u *UserContext) Validate() error {
	if !u.Sex.IsValid() {
		return fmt.Errorf("%w: user.sex must be %q or %q", ErrInvalidInput, SexMale, SexFemale)
	}
	if u.Age < 0 {
		return fmt.Errorf("%w: user.age must not be negative", ErrInvalidInput)
	}
	if !u.ProductLine.IsValid() {
		return fmt.Errorf("%w: user.product_line %q is not supported", ErrInvalidInput, u.ProductLine)
	}
	return nil
}

// Line returns the explicit product line or the default for the user's sex.
func (u *UserContext) Line() ProductLine {
	if u.ProductLine != LineUniversal {
		return u.ProductLine
	}
	return LineForSex(u.Sex)
}

// ProtocolItem is one chosen SKU with its selection rationale.
type ProtocolItem struct {
	SKUID              string      `json:"sku_id"`
	ProductName        string      `json:"product_name"`
	MatchedIntents     []string    `json:"matched_intents"`
	MatchedIngredients []string    `json:"matched_ingredients"`
	MatchScore         float64     `json:"match_score"`
	Reason             MatchReason `json:"reason"`
	Warnings           []string    `json:"warnings"`
	PriorityRank       int         `json:"priority_rank"`
}

// UnmatchedIntent reports an intent no allowed SKU could serve. Unmatched
// intents are normal output, not errors.
type UnmatchedIntent struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// MatchingResult is the output of protocol assembly. Protocol items are
// sorted by (priority_rank asc, match_score desc, sku_id asc).
type MatchingResult struct {
	Protocol                []ProtocolItem    `json:"protocol"`
	Unmatched               []UnmatchedIntent `json:"unmatched_intents"`
	RequirementsUnfulfilled []string          `json:"requirements_unfulfilled"`
	MatchHash               string            `json:"match_hash"`
}

// LogFields returns structured logging fields for audit trails.
func (m *MatchingResult) LogFields() map[string]any {
	return map[string]any{
		"protocol_items":           len(m.Protocol),
		"unmatched_intents":        len(m.Unmatched),
		"requirements_unfulfilled": len(m.RequirementsUnfulfilled),
		"match_hash":               m.MatchHash,
	}
}
