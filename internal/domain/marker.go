package domain

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// MarkerValue is a raw panel value as received from a lab. Labs report
// numbers ("92"), qualified numbers ("<1.5", ">250", "1,234"), and small
// categoricals for genetic markers ("TT"). The wire form accepts a JSON
// number or string and preserves the original text for audit.
type MarkerValue string

// UnmarshalJSON accepts either a JSON number or a JSON string.
func (v *MarkerValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = MarkerValue(strings.TrimSpace(s))
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*v = MarkerValue(n.String())
		return nil
	}

	return fmt.Errorf("marker value must be a number or string, got %s", string(data))
}

// MarshalJSON always emits the string form so round-trips are byte-stable.
func (v MarkerValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(v))
}

// String returns the raw text of the value.
func (v MarkerValue) String() string {
	return string(v)
}

// PanelEntry is one raw biomarker observation. The panel is immutable once
// received; normalization never mutates entries in place.
type PanelEntry struct {
	Code       string      `json:"code"`
	Value      MarkerValue `json:"value"`
	Unit       string      `json:"unit"`
	ObservedAt string      `json:"observed_at,omitempty"`
}

// valuePattern admits numeric lab values with optional comparison
// qualifiers and thousands separators ("<1.5", "1,234", "-3") plus short
// alphabetic tokens for genotype results ("TT", "AC").
var valuePattern = regexp.MustCompile(`^\s*(?:[<>]\s*)?-?[0-9][0-9,]*(?:\.[0-9]+)?\s*$|^\s*[A-Za-z]{1,4}\s*$`)

// Validate checks the entry carries the fields normalization needs.
// Values that match neither a numeric nor a genotype shape are rejected
// before the pipeline runs.
func (e *PanelEntry) Validate() error {
	if strings.TrimSpace(e.Code) == "" {
		return fmt.Errorf("%w: panel entry code is required", ErrInvalidInput)
	}
	if strings.TrimSpace(string(e.Value)) == "" {
		return fmt.Errorf("%w: panel entry %q has no value", ErrInvalidInput, e.Code)
	}
	if !valuePattern.MatchString(string(e.Value)) {
		return fmt.Errorf("%w: panel entry %q has unparseable value", ErrInvalidInput, e.Code)
	}
	return nil
}

// NormalizedMarker is the canonical form of one accepted panel entry.
// Numeric markers carry Value; categorical markers (genotypes) carry Text
// and leave Value zero. Original fields preserve the lab's input verbatim.
type NormalizedMarker struct {
	CanonicalCode     string      `json:"canonical_code"`
	Value             float64     `json:"canonical_value"`
	Text              string      `json:"canonical_text,omitempty"`
	Unit              string      `json:"canonical_unit"`
	Status            RangeStatus `json:"range_status"`
	ConversionApplied bool        `json:"conversion_applied"`
	ReducedConfidence bool        `json:"reduced_confidence,omitempty"`
	Computed          bool        `json:"computed,omitempty"`
	OriginalCode      string      `json:"original_code"`
	OriginalValue     string      `json:"original_value"`
	OriginalUnit      string      `json:"original_unit"`
}

// IsCategorical reports whether the marker is a categorical (genotype).
func (m *NormalizedMarker) IsCategorical() bool {
	return m.Text != ""
}

// LogFields returns structured logging fields for audit trails. Values are
// intentionally omitted; error and audit text never carries raw biomarker
// readings.
func (m *NormalizedMarker) LogFields() map[string]any {
	return map[string]any{
		"canonical_code":     m.CanonicalCode,
		"range_status":       string(m.Status),
		"conversion_applied": m.ConversionApplied,
		"reduced_confidence": m.ReducedConfidence,
		"computed":           m.Computed,
	}
}

// UnknownMarker reports a panel entry whose code is not in the canonical
// allow-list. Unknown entries never participate in gate evaluation.
type UnknownMarker struct {
	Code   string `json:"code"`
	Unit   string `json:"unit,omitempty"`
	Reason string `json:"reason"`
}

// NormalizeResult is the full output of the normalization stage.
type NormalizeResult struct {
	Normalized []NormalizedMarker `json:"normalized_markers"`
	Unknown    []UnknownMarker    `json:"unknown_markers"`
	Computed   []NormalizedMarker `json:"computed_markers"`
	// RangesVersion identifies the reference-range table the statuses were
	// derived from; it participates in every downstream hash.
	RangesVersion string `json:"ranges_version"`
}

// ActiveGate describes one gate that triggered during evaluation, either
// firing its constraint codes or suppressed by its exception.
type ActiveGate struct {
	GateID    string           `json:"gate_id"`
	Tier      GateTier         `json:"tier"`
	Outcome   GateOutcome      `json:"outcome"`
	Emitted   []ConstraintCode `json:"emitted"`
	Reason    string           `json:"reason,omitempty"`
	Triggered []string         `json:"triggered_by,omitempty"`
}

// MissingData records a Tier 1 gate that could not be fully evaluated
// because required markers were absent while every present condition held.
type MissingData struct {
	GateID  string   `json:"gate_id"`
	Missing []string `json:"missing_markers"`
}

// GateResult is the full output of the safety-gate stage. ConstraintCodes
// is a sorted set.
type GateResult struct {
	ActiveGates     []ActiveGate     `json:"active_gates"`
	ConstraintCodes []ConstraintCode `json:"constraint_codes"`
	ReviewRequired  bool             `json:"review_required"`
	DataMissing     []MissingData    `json:"data_missing,omitempty"`
	RegistryVersion string           `json:"gate_registry_version"`
}
