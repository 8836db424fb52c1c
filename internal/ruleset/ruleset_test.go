package ruleset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biostack-engine/internal/domain"
)

func TestDefaultRulesetValidates(t *testing.T) {
	r := Default()
	require.NoError(t, r.Validate())

	assert.Equal(t, RangesVersion, r.RangesVersion)
	assert.Equal(t, GatesVersion, r.GatesVersion)
	assert.Equal(t, MappingVersion, r.MappingVersion)
	assert.NotEmpty(t, r.Gates)
	assert.NotEmpty(t, r.Mapping)
}

func TestResolveAlias(t *testing.T) {
	r := Default()

	tests := []struct {
		in    string
		want  string
		found bool
	}{
		{"ferritin", "ferritin", true},
		{"hs-CRP", "crp", true},
		{"Vit D", "vitamin_d", true},
		{"25_oh_d", "vitamin_d", true},
		{"SGPT", "alt", true},
		{"TIBC", "total_iron_binding_capacity", true},
		{"mystery_marker", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := r.ResolveAlias(tt.in)
			assert.Equal(t, tt.found, ok)
			if tt.found {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestConvert(t *testing.T) {
	r := Default()

	tests := []struct {
		name      string
		code      string
		unit      string
		value     float64
		want      float64
		converted bool
		known     bool
	}{
		{"vitamin d nmol/L", "vitamin_d", "nmol/L", 100, 40, true, true},
		{"glucose mmol/L", "glucose", "mmol/L", 5.5, 99, true, true},
		{"creatinine umol/L", "creatinine", "µmol/L", 100, 1.13, true, true},
		{"already canonical", "ferritin", "ng/mL", 420, 420, false, true},
		{"case folded", "glucose", "MG/DL", 92, 92, false, true},
		{"unknown unit", "glucose", "furlongs", 92, 92, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, converted, known := r.Convert(tt.code, tt.unit, tt.value)
			assert.InDelta(t, tt.want, got, 0.0001)
			assert.Equal(t, tt.converted, converted)
			assert.Equal(t, tt.known, known)
		})
	}
}

func TestClassify(t *testing.T) {
	r := Default()

	tests := []struct {
		name  string
		code  string
		value float64
		sex   domain.Sex
		age   int
		want  domain.RangeStatus
	}{
		{"ferritin male high", "ferritin", 420, domain.SexMale, 40, domain.RangeHigh},
		{"ferritin male optimal", "ferritin", 90, domain.SexMale, 40, domain.RangeOptimal},
		{"ferritin menstruating female high", "ferritin", 220, domain.SexFemale, 30, domain.RangeHigh},
		{"ferritin older female normal", "ferritin", 220, domain.SexFemale, 60, domain.RangeNormal},
		{"ferritin critical", "ferritin", 1400, domain.SexMale, 40, domain.RangeCriticalHigh},
		{"crp optimal", "crp", 0.5, domain.SexMale, 40, domain.RangeOptimal},
		{"vitamin d critical low", "vitamin_d", 8, domain.SexFemale, 30, domain.RangeCriticalLow},
		{"glucose low", "glucose", 62, domain.SexMale, 40, domain.RangeLow},
		{"alt female high male normal", "alt", 40, domain.SexFemale, 30, domain.RangeHigh},
		{"alt male normal", "alt", 40, domain.SexMale, 30, domain.RangeNormal},
		{"unknown code", "unobtainium", 1, domain.SexMale, 40, domain.RangeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Classify(tt.code, tt.value, tt.sex, tt.age)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifyText(t *testing.T) {
	r := Default()

	status, ok := r.ClassifyText("mthfr_c677t", "TT")
	require.True(t, ok)
	assert.Equal(t, domain.RangeHigh, status)

	status, ok = r.ClassifyText("mthfr_c677t", "cc")
	require.True(t, ok)
	assert.Equal(t, domain.RangeOptimal, status)

	_, ok = r.ClassifyText("mthfr_c677t", "XY")
	assert.False(t, ok)

	_, ok = r.ClassifyText("ferritin", "TT")
	assert.False(t, ok)
}

func TestValidateRejectsUnknownGateMarker(t *testing.T) {
	r := Default()
	r.Gates = append(r.Gates, Gate{
		ID:    "GATE_BROKEN",
		Tier:  domain.TierBlock,
		All:   []Condition{{Marker: "not_a_marker", Op: OpGT, Value: 1}},
		Emits: []domain.ConstraintCode{"BLOCK_IRON"},
	})

	err := r.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown canonical code")
}

func TestValidateRejectsUnmappedEmit(t *testing.T) {
	r := Default()
	r.Gates = append(r.Gates, Gate{
		ID:    "GATE_UNMAPPED",
		Tier:  domain.TierFlag,
		All:   []Condition{{Marker: "ferritin", Op: OpGT, Value: 1}},
		Emits: []domain.ConstraintCode{"FLAG_NOT_IN_REGISTRY"},
	})

	err := r.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmapped constraint code")
}

func TestValidateRejectsBlockRecommendConflict(t *testing.T) {
	r := Default()
	r.Mapping["BLOCK_CONFLICTED"] = &MappingRow{
		Code:                   "BLOCK_CONFLICTED",
		BlockedIngredients:     []string{"iron"},
		RecommendedIngredients: []string{"iron"},
	}

	err := r.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocks and recommends")
}

func TestValidateRejectsDuplicateGateID(t *testing.T) {
	r := Default()
	r.Gates = append(r.Gates, r.Gates[0])

	err := r.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate gate id")
}

func TestEveryGateEmitIsMapped(t *testing.T) {
	r := Default()
	for _, g := range r.Gates {
		for _, code := range g.Emits {
			_, ok := r.MappingFor(code)
			assert.True(t, ok, "gate %s emits unmapped code %s", g.ID, code)
		}
		if g.Exception != nil {
			for _, code := range g.Exception.Emits {
				_, ok := r.MappingFor(code)
				assert.True(t, ok, "gate %s exception emits unmapped code %s", g.ID, code)
			}
		}
	}
}
