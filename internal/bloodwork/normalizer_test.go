package bloodwork

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biostack-engine/internal/domain"
	"github.com/biostack-engine/internal/ruleset"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func testNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	rules := ruleset.Default()
	require.NoError(t, rules.Validate())
	return NewNormalizer(rules, testLogger())
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    float64
		reduced bool
		wantErr bool
	}{
		{name: "plain integer", raw: "420", want: 420},
		{name: "plain decimal", raw: "0.8", want: 0.8},
		{name: "thousands separator", raw: "1,234", want: 1234},
		{name: "below detection limit", raw: "<1.5", want: 0.75, reduced: true},
		{name: "below limit with space", raw: "< 10", want: 5, reduced: true},
		{name: "above reporting ceiling", raw: ">250", want: 275, reduced: true},
		{name: "negative passes parsing", raw: "-3", want: -3},
		{name: "not a number", raw: "positive", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pv, err := parseValue(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, pv.Value, 1e-9)
			assert.Equal(t, tt.reduced, pv.Reduced)
		})
	}
}

func TestNormalizeAliasAndConversion(t *testing.T) {
	n := testNormalizer(t)
	user := domain.UserContext{Sex: domain.SexMale, Age: 40}

	panel := []domain.PanelEntry{
		{Code: "Ferritin", Value: "420", Unit: "ng/mL"},
		{Code: "hs-CRP", Value: "0.8", Unit: "mg/L"},
		{Code: "Vit D", Value: "100", Unit: "nmol/L"},
	}

	result, err := n.Normalize(context.Background(), panel, &user)
	require.NoError(t, err)
	require.Len(t, result.Normalized, 3)
	assert.Empty(t, result.Unknown)

	byCode := map[string]domain.NormalizedMarker{}
	for _, m := range result.Normalized {
		byCode[m.CanonicalCode] = m
	}

	ferritin := byCode["ferritin"]
	assert.Equal(t, 420.0, ferritin.Value)
	assert.False(t, ferritin.ConversionApplied)
	assert.Equal(t, domain.RangeHigh, ferritin.Status)
	assert.Equal(t, "Ferritin", ferritin.OriginalCode)

	crp := byCode["crp"]
	assert.Equal(t, domain.RangeOptimal, crp.Status)

	vitD := byCode["vitamin_d"]
	assert.InDelta(t, 40.0, vitD.Value, 1e-9)
	assert.True(t, vitD.ConversionApplied)
	assert.Equal(t, "ng/mL", vitD.Unit)
	assert.Equal(t, "nmol/L", vitD.OriginalUnit)
}

func TestNormalizeUnknownCode(t *testing.T) {
	n := testNormalizer(t)

	result, err := n.Normalize(context.Background(), []domain.PanelEntry{
		{Code: "mystery_marker", Value: "12", Unit: "ng/mL"},
	}, &domain.UserContext{Sex: domain.SexFemale})
	require.NoError(t, err)

	assert.Empty(t, result.Normalized)
	require.Len(t, result.Unknown, 1)
	assert.Equal(t, "mystery_marker", result.Unknown[0].Code)
	assert.Contains(t, result.Unknown[0].Reason, "allow-list")
}

func TestNormalizeDuplicateCode(t *testing.T) {
	n := testNormalizer(t)

	result, err := n.Normalize(context.Background(), []domain.PanelEntry{
		{Code: "ferritin", Value: "100", Unit: "ng/mL"},
		{Code: "Ferritin", Value: "200", Unit: "ng/mL"},
	}, &domain.UserContext{Sex: domain.SexMale, Age: 40})
	require.NoError(t, err)

	require.Len(t, result.Normalized, 1)
	assert.Equal(t, 100.0, result.Normalized[0].Value)
	require.Len(t, result.Unknown, 1)
	assert.Contains(t, result.Unknown[0].Reason, "duplicate")
}

func TestNormalizeQualifiedValue(t *testing.T) {
	n := testNormalizer(t)

	result, err := n.Normalize(context.Background(), []domain.PanelEntry{
		{Code: "crp", Value: "<1.5", Unit: "mg/L"},
	}, &domain.UserContext{Sex: domain.SexMale, Age: 40})
	require.NoError(t, err)

	require.Len(t, result.Normalized, 1)
	m := result.Normalized[0]
	assert.InDelta(t, 0.75, m.Value, 1e-9)
	assert.True(t, m.ReducedConfidence)
	assert.Equal(t, domain.RangeOptimal, m.Status)
	assert.Equal(t, "<1.5", m.OriginalValue)
}

func TestNormalizeNegativeValue(t *testing.T) {
	n := testNormalizer(t)

	result, err := n.Normalize(context.Background(), []domain.PanelEntry{
		{Code: "glucose", Value: "-3", Unit: "mg/dL"},
	}, &domain.UserContext{Sex: domain.SexMale, Age: 40})
	require.NoError(t, err)

	require.Len(t, result.Normalized, 1)
	assert.Equal(t, domain.RangeUnknown, result.Normalized[0].Status)
}

func TestNormalizeUnknownUnit(t *testing.T) {
	n := testNormalizer(t)

	result, err := n.Normalize(context.Background(), []domain.PanelEntry{
		{Code: "ferritin", Value: "420", Unit: "furlongs"},
	}, &domain.UserContext{Sex: domain.SexMale, Age: 40})
	require.NoError(t, err)

	require.Len(t, result.Normalized, 1)
	m := result.Normalized[0]
	assert.False(t, m.ConversionApplied)
	assert.Equal(t, domain.RangeUnknown, m.Status)
}

func TestNormalizeCategorical(t *testing.T) {
	n := testNormalizer(t)

	tests := []struct {
		name   string
		value  string
		status domain.RangeStatus
	}{
		{name: "homozygous variant", value: "TT", status: domain.RangeHigh},
		{name: "heterozygous", value: "ct", status: domain.RangeNormal},
		{name: "wild type", value: "CC", status: domain.RangeOptimal},
		{name: "unlisted genotype", value: "XY", status: domain.RangeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := n.Normalize(context.Background(), []domain.PanelEntry{
				{Code: "MTHFR C677T", Value: domain.MarkerValue(tt.value)},
			}, &domain.UserContext{Sex: domain.SexFemale, Age: 30})
			require.NoError(t, err)

			require.Len(t, result.Normalized, 1)
			m := result.Normalized[0]
			assert.Equal(t, "mthfr_c677t", m.CanonicalCode)
			assert.Equal(t, tt.status, m.Status)
			assert.True(t, m.IsCategorical())
		})
	}
}

func TestNormalizeDerivedMarkers(t *testing.T) {
	n := testNormalizer(t)

	result, err := n.Normalize(context.Background(), []domain.PanelEntry{
		{Code: "glucose", Value: "90", Unit: "mg/dL"},
		{Code: "insulin", Value: "9", Unit: "uIU/mL"},
	}, &domain.UserContext{Sex: domain.SexMale, Age: 40})
	require.NoError(t, err)

	require.Len(t, result.Computed, 1)
	homaIR := result.Computed[0]
	assert.Equal(t, "homa_ir", homaIR.CanonicalCode)
	assert.InDelta(t, 2.0, homaIR.Value, 1e-9)
	assert.True(t, homaIR.Computed)
	assert.Equal(t, domain.RangeNormal, homaIR.Status)
}

func TestNormalizeDerivedSkipsOnMissingInput(t *testing.T) {
	n := testNormalizer(t)

	result, err := n.Normalize(context.Background(), []domain.PanelEntry{
		{Code: "glucose", Value: "90", Unit: "mg/dL"},
	}, &domain.UserContext{Sex: domain.SexMale, Age: 40})
	require.NoError(t, err)
	assert.Empty(t, result.Computed)
}

func TestNormalizeDerivedSkipsNonFinite(t *testing.T) {
	n := testNormalizer(t)

	// hdl_cholesterol of zero classifies as CRITICAL_LOW but stays usable;
	// the ratio formula would divide by zero and must be skipped.
	result, err := n.Normalize(context.Background(), []domain.PanelEntry{
		{Code: "triglycerides", Value: "150", Unit: "mg/dL"},
		{Code: "hdl_cholesterol", Value: "0", Unit: "mg/dL"},
	}, &domain.UserContext{Sex: domain.SexMale, Age: 40})
	require.NoError(t, err)

	for _, c := range result.Computed {
		assert.NotEqual(t, "tg_hdl_ratio", c.CanonicalCode)
	}
}

func TestNormalizeOutputSorted(t *testing.T) {
	n := testNormalizer(t)

	result, err := n.Normalize(context.Background(), []domain.PanelEntry{
		{Code: "zinc", Value: "90", Unit: "ug/dL"},
		{Code: "alt", Value: "30", Unit: "U/L"},
		{Code: "ferritin", Value: "100", Unit: "ng/mL"},
	}, &domain.UserContext{Sex: domain.SexMale, Age: 40})
	require.NoError(t, err)

	require.Len(t, result.Normalized, 3)
	assert.Equal(t, "alt", result.Normalized[0].CanonicalCode)
	assert.Equal(t, "ferritin", result.Normalized[1].CanonicalCode)
	assert.Equal(t, "zinc", result.Normalized[2].CanonicalCode)
}

func TestNormalizeEmptyPanel(t *testing.T) {
	n := testNormalizer(t)

	result, err := n.Normalize(context.Background(), nil, &domain.UserContext{Sex: domain.SexFemale})
	require.NoError(t, err)
	assert.Empty(t, result.Normalized)
	assert.Empty(t, result.Unknown)
	assert.Empty(t, result.Computed)
	assert.NotEmpty(t, result.RangesVersion)
}

func TestNormalizeDeadline(t *testing.T) {
	n := testNormalizer(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := n.Normalize(ctx, []domain.PanelEntry{
		{Code: "ferritin", Value: "100", Unit: "ng/mL"},
	}, &domain.UserContext{Sex: domain.SexMale})
	require.Error(t, err)
	assert.Equal(t, domain.KindDeadlineExceeded, domain.KindOf(err))
}
