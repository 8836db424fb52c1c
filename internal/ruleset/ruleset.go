// Package ruleset holds the versioned, process-wide read-only registries
// the pipeline evaluates against: the canonical marker allow-list with
// aliases and unit conversions, reference ranges, the safety-gate registry
// and the constraint mapping.
//
// Registries are code-defined tables. Deploying a new ruleset version is a
// code change; the version strings below surface in every response and
// audit record. Validate runs at startup and any cross-reference failure
// is fatal: a malformed registry must never be consulted at request time.
package ruleset

import (
	"fmt"
	"sort"
	"strings"

	"github.com/biostack-engine/internal/domain"
)

// Registry version identifiers carried end-to-end into outputs.
const (
	RangesVersion  = "ranges-2025.2"
	GatesVersion   = "gates-2025.2"
	MappingVersion = "mapping-2025.2"
)

// MarkerKind separates numeric markers from categorical (genotype) ones.
type MarkerKind int

const (
	KindNumeric MarkerKind = iota
	KindCategorical
)

// Conversion converts a value reported in FromUnit to the marker's
// canonical unit by multiplication.
type Conversion struct {
	FromUnit string
	Factor   float64
}

// MarkerDef describes one canonical marker: its identity, unit, accepted
// lab aliases and unit conversions. Categorical markers list their allowed
// values and the range status each maps to.
type MarkerDef struct {
	Code        string
	Unit        string
	Kind        MarkerKind
	Aliases     []string
	Conversions []Conversion
	Allowed     []string
	StatusFor   map[string]domain.RangeStatus
}

// Band is one reference-range row. Sex and the age bracket narrow the row;
// empty Sex and a zero MaxAge leave it open. Optional bounds are nil when
// the marker has no optimal window or critical cutoffs.
type Band struct {
	Code         string
	Sex          domain.Sex
	MinAge       int
	MaxAge       int
	Low          float64
	High         float64
	OptimalLow   *float64
	OptimalHigh  *float64
	CriticalLow  *float64
	CriticalHigh *float64
}

// matches reports whether the band applies to the given demographics.
// Age 0 means unknown and matches any bracket.
func (b *Band) matches(sex domain.Sex, age int) bool {
	if b.Sex != "" && b.Sex != sex {
		return false
	}
	if age == 0 {
		return true
	}
	if age < b.MinAge {
		return false
	}
	if b.MaxAge != 0 && age >= b.MaxAge {
		return false
	}
	return true
}

// Op is a comparison operator inside a gate condition.
type Op string

const (
	OpGT  Op = "gt"
	OpGTE Op = "gte"
	OpLT  Op = "lt"
	OpLTE Op = "lte"
	OpEQ  Op = "eq"
	OpNEQ Op = "neq"
)

// Condition compares one normalized marker against a threshold. Numeric
// operators use Value; eq/neq compare categorical Text.
type Condition struct {
	Marker string
	Op     Op
	Value  float64
	Text   string
}

// Exception suppresses a triggered gate when all its conditions hold,
// optionally emitting alternate constraint codes instead of the gate's own.
type Exception struct {
	When   []Condition
	Emits  []domain.ConstraintCode
	Reason string
}

// Gate is one safety rule. Trigger semantics: every condition in All must
// hold, and at least one condition in Any (when Any is non-empty). A
// condition over a missing marker cannot hold.
type Gate struct {
	ID          string
	Tier        domain.GateTier
	Sex         domain.Sex
	All         []Condition
	Any         []Condition
	Emits       []domain.ConstraintCode
	Exception   *Exception
	Description string
}

// Markers returns the set of marker codes the gate's trigger reads.
func (g *Gate) Markers() []string {
	seen := map[string]bool{}
	for _, c := range g.All {
		seen[c.Marker] = true
	}
	for _, c := range g.Any {
		seen[c.Marker] = true
	}
	out := make([]string, 0, len(seen))
	for m := range seen {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// MappingRow expands one constraint code into enforcement sets. All slices
// are lowercase and sorted; buildMapping normalizes them on construction.
type MappingRow struct {
	Code                   domain.ConstraintCode
	BlockedIngredients     []string
	BlockedCategories      []string
	BlockedTargets         []string
	CautionFlags           []string
	ReasonCodes            []string
	RecommendedIngredients []string
}

// DerivedDef computes a marker from other canonical markers after base
// normalization (e.g. HOMA-IR from glucose and insulin).
type DerivedDef struct {
	Code    string
	Unit    string
	Inputs  []string
	Compute func(values map[string]float64) float64
}

// Ruleset bundles every registry with its version identifiers.
type Ruleset struct {
	Markers map[string]*MarkerDef
	Ranges  map[string][]Band
	Derived []DerivedDef
	Gates   []Gate
	Mapping map[domain.ConstraintCode]*MappingRow

	RangesVersion  string
	GatesVersion   string
	MappingVersion string

	aliases map[string]string
}

// Default returns the active ruleset. Callers must run Validate once at
// startup before serving traffic.
func Default() *Ruleset {
	r := &Ruleset{
		Markers:        buildMarkers(),
		Derived:        buildDerived(),
		Gates:          buildGates(),
		Mapping:        buildMapping(),
		RangesVersion:  RangesVersion,
		GatesVersion:   GatesVersion,
		MappingVersion: MappingVersion,
	}
	r.Ranges = buildRanges()
	r.buildAliasIndex()
	return r
}

func (r *Ruleset) buildAliasIndex() {
	r.aliases = make(map[string]string, len(r.Markers)*3)
	for code, def := range r.Markers {
		r.aliases[code] = code
		for _, a := range def.Aliases {
			r.aliases[NormalizeCode(a)] = code
		}
	}
}

// NormalizeCode lowers and underscores a lab marker code for alias lookup.
func NormalizeCode(code string) string {
	s := strings.ToLower(strings.TrimSpace(code))
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}

// NormalizeUnit folds unit spellings labs commonly use into one form.
func NormalizeUnit(unit string) string {
	s := strings.ToLower(strings.TrimSpace(unit))
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "µ", "u")
	s = strings.ReplaceAll(s, "μ", "u")
	return s
}

// ResolveAlias maps a lab code to its canonical marker code.
func (r *Ruleset) ResolveAlias(code string) (string, bool) {
	canonical, ok := r.aliases[NormalizeCode(code)]
	return canonical, ok
}

// Marker returns the definition of a canonical marker code.
func (r *Ruleset) Marker(code string) (*MarkerDef, bool) {
	def, ok := r.Markers[code]
	return def, ok
}

// IsDerived reports whether the code belongs to a derived marker.
func (r *Ruleset) IsDerived(code string) bool {
	for i := range r.Derived {
		if r.Derived[i].Code == code {
			return true
		}
	}
	return false
}

// Convert translates value from the reported unit into the marker's
// canonical unit. The second return reports whether a conversion factor was
// applied, the third whether the unit was recognized at all.
func (r *Ruleset) Convert(code, unit string, value float64) (float64, bool, bool) {
	def, ok := r.Markers[code]
	if !ok {
		return value, false, false
	}
	u := NormalizeUnit(unit)
	if u == NormalizeUnit(def.Unit) || u == "" {
		return value, false, true
	}
	for _, c := range def.Conversions {
		if u == NormalizeUnit(c.FromUnit) {
			return value * c.Factor, true, true
		}
	}
	return value, false, false
}

// Classify derives the range status of a numeric canonical value.
func (r *Ruleset) Classify(code string, value float64, sex domain.Sex, age int) domain.RangeStatus {
	bands, ok := r.Ranges[code]
	if !ok {
		return domain.RangeUnknown
	}
	for i := range bands {
		b := &bands[i]
		if !b.matches(sex, age) {
			continue
		}
		return classifyAgainst(b, value)
	}
	return domain.RangeUnknown
}

func classifyAgainst(b *Band, value float64) domain.RangeStatus {
	switch {
	case b.CriticalLow != nil && value < *b.CriticalLow:
		return domain.RangeCriticalLow
	case b.CriticalHigh != nil && value > *b.CriticalHigh:
		return domain.RangeCriticalHigh
	case value < b.Low:
		return domain.RangeLow
	case value > b.High:
		return domain.RangeHigh
	case b.OptimalLow != nil && b.OptimalHigh != nil &&
		value >= *b.OptimalLow && value <= *b.OptimalHigh:
		return domain.RangeOptimal
	default:
		return domain.RangeNormal
	}
}

// ClassifyText derives the range status of a categorical value.
func (r *Ruleset) ClassifyText(code, text string) (domain.RangeStatus, bool) {
	def, ok := r.Markers[code]
	if !ok || def.Kind != KindCategorical {
		return domain.RangeUnknown, false
	}
	status, ok := def.StatusFor[strings.ToUpper(strings.TrimSpace(text))]
	if !ok {
		return domain.RangeUnknown, false
	}
	return status, true
}

// MappingFor returns the mapping row for a constraint code.
func (r *Ruleset) MappingFor(code domain.ConstraintCode) (*MappingRow, bool) {
	row, ok := r.Mapping[code]
	return row, ok
}

// Validate cross-checks every registry. It is called once at startup and
// any error refuses traffic; request-time code may assume the ruleset is
// coherent.
func (r *Ruleset) Validate() error {
	if err := r.validateMarkers(); err != nil {
		return err
	}
	if err := r.validateRanges(); err != nil {
		return err
	}
	if err := r.validateDerived(); err != nil {
		return err
	}
	if err := r.validateMapping(); err != nil {
		return err
	}
	return r.validateGates()
}

func (r *Ruleset) validateMarkers() error {
	for code, def := range r.Markers {
		if code != NormalizeCode(code) {
			return fmt.Errorf("ruleset: marker code %q is not in canonical form", code)
		}
		if def.Kind == KindNumeric && def.Unit == "" {
			return fmt.Errorf("ruleset: numeric marker %q has no canonical unit", code)
		}
		for _, c := range def.Conversions {
			if c.Factor <= 0 {
				return fmt.Errorf("ruleset: marker %q conversion from %q has non-positive factor", code, c.FromUnit)
			}
		}
		if def.Kind == KindCategorical {
			if len(def.Allowed) == 0 {
				return fmt.Errorf("ruleset: categorical marker %q allows no values", code)
			}
			for v := range def.StatusFor {
				if !containsString(def.Allowed, v) {
					return fmt.Errorf("ruleset: categorical marker %q maps status for unlisted value %q", code, v)
				}
			}
		}
	}
	return nil
}

func (r *Ruleset) validateRanges() error {
	for code, bands := range r.Ranges {
		def, ok := r.Markers[code]
		if !ok && !r.IsDerived(code) {
			return fmt.Errorf("ruleset: reference range for unknown marker %q", code)
		}
		if ok && def.Kind == KindCategorical {
			return fmt.Errorf("ruleset: categorical marker %q must not have numeric ranges", code)
		}
		for i := range bands {
			b := &bands[i]
			if b.Low > b.High {
				return fmt.Errorf("ruleset: range %q band %d has low > high", code, i)
			}
			if b.OptimalLow != nil && b.OptimalHigh != nil && *b.OptimalLow > *b.OptimalHigh {
				return fmt.Errorf("ruleset: range %q band %d has inverted optimal bounds", code, i)
			}
			if b.MaxAge != 0 && b.MinAge >= b.MaxAge {
				return fmt.Errorf("ruleset: range %q band %d has empty age bracket", code, i)
			}
		}
	}
	for code, def := range r.Markers {
		if def.Kind == KindNumeric {
			if _, ok := r.Ranges[code]; !ok {
				return fmt.Errorf("ruleset: numeric marker %q has no reference range", code)
			}
		}
	}
	return nil
}

func (r *Ruleset) validateDerived() error {
	for i := range r.Derived {
		d := &r.Derived[i]
		if d.Compute == nil {
			return fmt.Errorf("ruleset: derived marker %q has no compute function", d.Code)
		}
		if _, clash := r.Markers[d.Code]; clash {
			return fmt.Errorf("ruleset: derived marker %q collides with a base marker", d.Code)
		}
		if len(d.Inputs) == 0 {
			return fmt.Errorf("ruleset: derived marker %q declares no inputs", d.Code)
		}
		for _, in := range d.Inputs {
			def, ok := r.Markers[in]
			if !ok {
				return fmt.Errorf("ruleset: derived marker %q reads unknown marker %q", d.Code, in)
			}
			if def.Kind != KindNumeric {
				return fmt.Errorf("ruleset: derived marker %q reads non-numeric marker %q", d.Code, in)
			}
		}
		if _, ok := r.Ranges[d.Code]; !ok {
			return fmt.Errorf("ruleset: derived marker %q has no reference range", d.Code)
		}
	}
	return nil
}

func (r *Ruleset) validateMapping() error {
	for code, row := range r.Mapping {
		if code != row.Code {
			return fmt.Errorf("ruleset: mapping key %q does not match row code %q", code, row.Code)
		}
		for _, set := range [][]string{
			row.BlockedIngredients, row.BlockedCategories, row.BlockedTargets,
			row.CautionFlags, row.ReasonCodes, row.RecommendedIngredients,
		} {
			if !sort.StringsAreSorted(set) {
				return fmt.Errorf("ruleset: mapping row %q has an unsorted set", code)
			}
		}
		for _, rec := range row.RecommendedIngredients {
			if containsString(row.BlockedIngredients, rec) {
				return fmt.Errorf("ruleset: mapping row %q both blocks and recommends %q", code, rec)
			}
		}
	}
	return nil
}

func (r *Ruleset) validateGates() error {
	seen := map[string]bool{}
	for i := range r.Gates {
		g := &r.Gates[i]
		if g.ID == "" {
			return fmt.Errorf("ruleset: gate %d has no id", i)
		}
		if seen[g.ID] {
			return fmt.Errorf("ruleset: duplicate gate id %q", g.ID)
		}
		seen[g.ID] = true
		if !g.Tier.IsValid() {
			return fmt.Errorf("ruleset: gate %q has invalid tier %d", g.ID, g.Tier)
		}
		if g.Sex != "" && !g.Sex.IsValid() {
			return fmt.Errorf("ruleset: gate %q has invalid sex %q", g.ID, g.Sex)
		}
		if len(g.All) == 0 && len(g.Any) == 0 {
			return fmt.Errorf("ruleset: gate %q has no trigger conditions", g.ID)
		}
		if len(g.Emits) == 0 {
			return fmt.Errorf("ruleset: gate %q emits nothing", g.ID)
		}
		for _, c := range append(append([]Condition{}, g.All...), g.Any...) {
			if err := r.validateCondition(g.ID, c); err != nil {
				return err
			}
		}
		for _, code := range g.Emits {
			if _, ok := r.Mapping[code]; !ok {
				return fmt.Errorf("ruleset: gate %q emits unmapped constraint code %q", g.ID, code)
			}
		}
		if g.Exception != nil {
			if len(g.Exception.When) == 0 {
				return fmt.Errorf("ruleset: gate %q exception has no conditions", g.ID)
			}
			for _, c := range g.Exception.When {
				if err := r.validateCondition(g.ID, c); err != nil {
					return err
				}
			}
			for _, code := range g.Exception.Emits {
				if _, ok := r.Mapping[code]; !ok {
					return fmt.Errorf("ruleset: gate %q exception emits unmapped constraint code %q", g.ID, code)
				}
			}
		}
	}
	return nil
}

func (r *Ruleset) validateCondition(gateID string, c Condition) error {
	def, isMarker := r.Markers[c.Marker]
	if !isMarker && !r.IsDerived(c.Marker) {
		return fmt.Errorf("ruleset: gate %q references unknown canonical code %q", gateID, c.Marker)
	}
	switch c.Op {
	case OpGT, OpGTE, OpLT, OpLTE:
		if isMarker && def.Kind != KindNumeric {
			return fmt.Errorf("ruleset: gate %q applies numeric op to categorical marker %q", gateID, c.Marker)
		}
	case OpEQ, OpNEQ:
		if !isMarker || def.Kind != KindCategorical {
			return fmt.Errorf("ruleset: gate %q applies categorical op to numeric marker %q", gateID, c.Marker)
		}
		if !containsString(def.Allowed, c.Text) {
			return fmt.Errorf("ruleset: gate %q compares marker %q against unlisted value %q", gateID, c.Marker, c.Text)
		}
	default:
		return fmt.Errorf("ruleset: gate %q uses unknown operator %q", gateID, c.Op)
	}
	return nil
}

func containsString(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// fp returns a pointer to the given float, for optional band bounds.
func fp(v float64) *float64 {
	return &v
}
