package translator

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biostack-engine/internal/domain"
	"github.com/biostack-engine/internal/ruleset"
)

func testTranslator(t *testing.T) *Translator {
	t.Helper()
	rules := ruleset.Default()
	require.NoError(t, rules.Validate())

	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)

	tr, err := NewTranslator(rules, 0, logger)
	require.NoError(t, err)
	return tr
}

func TestTranslateBlockIron(t *testing.T) {
	tr := testTranslator(t)

	out, err := tr.Translate([]domain.ConstraintCode{"BLOCK_IRON"}, domain.SexMale)
	require.NoError(t, err)

	assert.Contains(t, out.BlockedIngredients, "iron")
	assert.Contains(t, out.BlockedIngredients, "iron_bisglycinate")
	assert.Contains(t, out.BlockedIngredients, "ferrous_sulfate")
	assert.Contains(t, out.BlockedIngredients, "heme_iron")
	assert.Equal(t, []string{"iron_support"}, out.BlockedCategories)
	assert.Equal(t, []string{"iron_repletion"}, out.BlockedTargets)
	assert.Equal(t, []string{"RC_IRON_OVERLOAD"}, out.ReasonCodes)
	assert.Empty(t, out.UnknownCodes)
	assert.NotEmpty(t, out.InputHash)
	assert.NotEmpty(t, out.OutputHash)
	assert.Equal(t, ruleset.MappingVersion, out.MappingVersion)
}

func TestTranslateUnknownCode(t *testing.T) {
	tr := testTranslator(t)

	out, err := tr.Translate([]domain.ConstraintCode{"BLOCK_UNICORN_DUST"}, domain.SexFemale)
	require.NoError(t, err)

	assert.Equal(t, []string{"BLOCK_UNICORN_DUST"}, out.UnknownCodes)
	assert.Equal(t, []string{"UNKNOWN_CONSTRAINT_BLOCK_UNICORN_DUST"}, out.ReasonCodes)
	assert.Empty(t, out.BlockedIngredients)
	assert.Empty(t, out.CautionFlags)
}

func TestTranslateNormalizesAndDeduplicates(t *testing.T) {
	tr := testTranslator(t)

	single, err := tr.Translate([]domain.ConstraintCode{"BLOCK_IRON"}, domain.SexMale)
	require.NoError(t, err)

	messy, err := tr.Translate([]domain.ConstraintCode{" block_iron ", "BLOCK_IRON", "Block_Iron"}, domain.SexMale)
	require.NoError(t, err)

	assert.Equal(t, single.InputHash, messy.InputHash)
	assert.Equal(t, single.OutputHash, messy.OutputHash)
	assert.Equal(t, single.BlockedIngredients, messy.BlockedIngredients)
}

func TestTranslateOrderIndependent(t *testing.T) {
	tr := testTranslator(t)

	a, err := tr.Translate([]domain.ConstraintCode{"BLOCK_IRON", "CAUTION_HEPATOTOXIC"}, domain.SexMale)
	require.NoError(t, err)
	b, err := tr.Translate([]domain.ConstraintCode{"CAUTION_HEPATOTOXIC", "BLOCK_IRON"}, domain.SexMale)
	require.NoError(t, err)

	assert.Equal(t, a.InputHash, b.InputHash)
	assert.Equal(t, a.OutputHash, b.OutputHash)
}

func TestTranslateInputHashVariesBySex(t *testing.T) {
	tr := testTranslator(t)

	male, err := tr.Translate([]domain.ConstraintCode{"BLOCK_IRON"}, domain.SexMale)
	require.NoError(t, err)
	female, err := tr.Translate([]domain.ConstraintCode{"BLOCK_IRON"}, domain.SexFemale)
	require.NoError(t, err)

	assert.NotEqual(t, male.InputHash, female.InputHash)
}

func TestTranslateBlockDominatesRecommend(t *testing.T) {
	tr := testTranslator(t)

	// FLAG_IRON_SUPPORT recommends iron_bisglycinate, BLOCK_IRON blocks it.
	out, err := tr.Translate([]domain.ConstraintCode{"BLOCK_IRON", "FLAG_IRON_SUPPORT"}, domain.SexFemale)
	require.NoError(t, err)

	assert.Contains(t, out.BlockedIngredients, "iron_bisglycinate")
	assert.NotContains(t, out.RecommendedIngredients, "iron_bisglycinate")
	assert.Contains(t, out.RecommendedIngredients, "vitamin_c")
	assert.Contains(t, out.RecommendedIngredients, "lactoferrin")
	require.NoError(t, out.CheckDominance())
}

func TestTranslateMemo(t *testing.T) {
	tr := testTranslator(t)

	first, err := tr.Translate([]domain.ConstraintCode{"BLOCK_IRON"}, domain.SexMale)
	require.NoError(t, err)
	second, err := tr.Translate([]domain.ConstraintCode{"BLOCK_IRON"}, domain.SexMale)
	require.NoError(t, err)

	assert.Same(t, first, second)
	stats := tr.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestTranslateEmptyCodes(t *testing.T) {
	tr := testTranslator(t)

	out, err := tr.Translate(nil, domain.SexMale)
	require.NoError(t, err)

	assert.Empty(t, out.BlockedIngredients)
	assert.Empty(t, out.BlockedCategories)
	assert.Empty(t, out.CautionFlags)
	assert.Empty(t, out.RecommendedIngredients)
	assert.NotEmpty(t, out.InputHash)
	assert.NotEmpty(t, out.OutputHash)
}

func TestMergeAddsBlocks(t *testing.T) {
	tr := testTranslator(t)

	bloodwork, err := tr.Translate([]domain.ConstraintCode{"FLAG_IRON_SUPPORT"}, domain.SexFemale)
	require.NoError(t, err)
	assert.Contains(t, bloodwork.RecommendedIngredients, "iron_bisglycinate")

	other := &domain.TranslatedConstraints{
		BlockedIngredients: []string{"iron_bisglycinate"},
		CautionFlags:       []string{"preference_vegan"},
		ReasonCodes:        []string{"RC_USER_PREFERENCE"},
	}

	merged, err := tr.Merge(bloodwork, other)
	require.NoError(t, err)

	assert.Contains(t, merged.BlockedIngredients, "iron_bisglycinate")
	assert.Contains(t, merged.CautionFlags, "preference_vegan")
	assert.Contains(t, merged.ReasonCodes, "RC_USER_PREFERENCE")
	assert.Contains(t, merged.ReasonCodes, "RC_IRON_LOW")

	// The recommendation the new block covers is gone; the rest survive.
	assert.NotContains(t, merged.RecommendedIngredients, "iron_bisglycinate")
	assert.Contains(t, merged.RecommendedIngredients, "vitamin_c")
	require.NoError(t, merged.CheckDominance())
}

func TestMergeNeverRemovesBloodworkBlocks(t *testing.T) {
	tr := testTranslator(t)

	bloodwork, err := tr.Translate([]domain.ConstraintCode{"BLOCK_IRON", "CAUTION_HEPATOTOXIC"}, domain.SexMale)
	require.NoError(t, err)

	merged, err := tr.Merge(bloodwork, &domain.TranslatedConstraints{})
	require.NoError(t, err)

	for _, ing := range bloodwork.BlockedIngredients {
		assert.Contains(t, merged.BlockedIngredients, ing)
	}
	for _, flag := range bloodwork.CautionFlags {
		assert.Contains(t, merged.CautionFlags, flag)
	}
}

func TestMergeNilOther(t *testing.T) {
	tr := testTranslator(t)

	bloodwork, err := tr.Translate([]domain.ConstraintCode{"BLOCK_IRON"}, domain.SexMale)
	require.NoError(t, err)

	merged, err := tr.Merge(bloodwork, nil)
	require.NoError(t, err)
	assert.Same(t, bloodwork, merged)
}
