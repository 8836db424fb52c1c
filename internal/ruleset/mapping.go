package ruleset

import (
	"sort"

	"github.com/biostack-engine/internal/domain"
)

// buildMapping assembles the constraint mapping: one row per code in the
// closed registry. Rows are normalized to lowercase sorted sets on
// construction so the translator can union them without re-sorting inputs.
//
// Reason codes are the stable identifiers surfaced to callers; curation
// documentation is keyed by them.
func buildMapping() map[domain.ConstraintCode]*MappingRow {
	mapping := make(map[domain.ConstraintCode]*MappingRow)

	add := func(row *MappingRow) {
		sortRow(row)
		mapping[row.Code] = row
	}

	// Hard blocks.
	add(&MappingRow{
		Code:               "BLOCK_IRON",
		BlockedIngredients: []string{"iron", "iron_bisglycinate", "ferrous_sulfate", "ferrous_fumarate", "heme_iron"},
		BlockedCategories:  []string{"iron_support"},
		BlockedTargets:     []string{"iron_repletion"},
		ReasonCodes:        []string{"RC_IRON_OVERLOAD"},
	})
	add(&MappingRow{
		Code:               "BLOCK_VITAMIN_D",
		BlockedIngredients: []string{"vitamin_d", "vitamin_d3", "cholecalciferol"},
		BlockedCategories:  []string{"vitamin_d_support"},
		ReasonCodes:        []string{"RC_VITAMIN_D_EXCESS"},
	})
	add(&MappingRow{
		Code:               "BLOCK_CALCIUM",
		BlockedIngredients: []string{"calcium", "calcium_carbonate", "calcium_citrate"},
		BlockedCategories:  []string{"bone_support"},
		ReasonCodes:        []string{"RC_HYPERCALCEMIA"},
	})
	add(&MappingRow{
		Code:               "BLOCK_POTASSIUM",
		BlockedIngredients: []string{"potassium", "potassium_chloride", "potassium_citrate"},
		ReasonCodes:        []string{"RC_HYPERKALEMIA"},
	})
	add(&MappingRow{
		Code:               "BLOCK_HEPATOTOXIC",
		BlockedIngredients: []string{"ashwagandha", "kava", "red_yeast_rice", "green_tea_extract", "niacin"},
		BlockedCategories:  []string{"herbal_blend"},
		CautionFlags:       []string{"hepatic_sensitive"},
		ReasonCodes:        []string{"RC_HEPATIC_CRITICAL"},
	})
	add(&MappingRow{
		Code:               "BLOCK_RENAL_LOAD",
		BlockedIngredients: []string{"creatine", "creatine_monohydrate"},
		CautionFlags:       []string{"renal_sensitive"},
		ReasonCodes:        []string{"RC_RENAL_CRITICAL"},
	})
	add(&MappingRow{
		Code:               "BLOCK_GLUCOSE_LOWERING",
		BlockedIngredients: []string{"berberine", "chromium"},
		CautionFlags:       []string{"hypoglycemia_risk"},
		ReasonCodes:        []string{"RC_HYPOGLYCEMIA"},
	})

	// Cautions.
	add(&MappingRow{
		Code:                   "CAUTION_HEPATOTOXIC",
		BlockedIngredients:     []string{"ashwagandha", "kava", "red_yeast_rice", "green_tea_extract"},
		CautionFlags:           []string{"hepatic_sensitive"},
		ReasonCodes:            []string{"RC_HEPATIC_STRESS"},
		RecommendedIngredients: []string{"milk_thistle", "nac"},
	})
	add(&MappingRow{
		Code:               "CAUTION_RENAL",
		BlockedIngredients: []string{"creatine", "creatine_monohydrate"},
		CautionFlags:       []string{"renal_sensitive"},
		ReasonCodes:        []string{"RC_RENAL_STRESS"},
	})
	add(&MappingRow{
		Code:               "CAUTION_THYROID",
		BlockedIngredients: []string{"iodine", "kelp"},
		CautionFlags:       []string{"thyroid_sensitive"},
		ReasonCodes:        []string{"RC_THYROID_SUPPRESSED"},
	})
	add(&MappingRow{
		Code:               "CAUTION_URIC_ACID",
		BlockedIngredients: []string{"niacin"},
		CautionFlags:       []string{"purine_sensitive"},
		ReasonCodes:        []string{"RC_URIC_ACID_HIGH"},
	})
	add(&MappingRow{
		Code:               "CAUTION_ANDROGENIC",
		BlockedIngredients: []string{"dhea", "tribulus"},
		CautionFlags:       []string{"androgen_sensitive"},
		ReasonCodes:        []string{"RC_ANDROGEN_EXCESS"},
	})
	add(&MappingRow{
		Code:                   "CAUTION_INFLAMMATION",
		CautionFlags:           []string{"inflammation_sensitive"},
		ReasonCodes:            []string{"RC_INFLAMMATION"},
		RecommendedIngredients: []string{"omega_3", "curcumin"},
	})

	// Informational flags.
	add(&MappingRow{
		Code:         "FLAG_ACUTE_INFLAMMATION",
		CautionFlags: []string{"acute_inflammation"},
		ReasonCodes:  []string{"RC_ACUTE_INFLAMMATION"},
	})
	add(&MappingRow{
		Code:                   "FLAG_METHYLFOLATE_REQUIRED",
		BlockedIngredients:     []string{"folic_acid"},
		ReasonCodes:            []string{"RC_METHYLATION_IMPAIRED"},
		RecommendedIngredients: []string{"methylfolate", "methylcobalamin"},
	})
	add(&MappingRow{
		Code:                   "FLAG_METHYLATION_SUPPORT",
		ReasonCodes:            []string{"RC_METHYLATION_VARIANT"},
		RecommendedIngredients: []string{"methylfolate", "b_complex", "betaine"},
	})
	add(&MappingRow{
		Code:                   "FLAG_IRON_SUPPORT",
		ReasonCodes:            []string{"RC_IRON_LOW"},
		RecommendedIngredients: []string{"iron_bisglycinate", "vitamin_c", "lactoferrin"},
	})
	add(&MappingRow{
		Code:                   "FLAG_VITAMIN_D_SUPPORT",
		ReasonCodes:            []string{"RC_VITAMIN_D_LOW"},
		RecommendedIngredients: []string{"vitamin_d3", "vitamin_k2"},
	})
	add(&MappingRow{
		Code:                   "FLAG_THYROID_SUPPORT",
		ReasonCodes:            []string{"RC_THYROID_SLUGGISH"},
		RecommendedIngredients: []string{"selenium", "zinc", "tyrosine"},
	})
	add(&MappingRow{
		Code:                   "FLAG_GLYCEMIC_SUPPORT",
		ReasonCodes:            []string{"RC_GLYCEMIC"},
		RecommendedIngredients: []string{"berberine", "chromium", "alpha_lipoic_acid", "inositol", "magnesium"},
	})
	add(&MappingRow{
		Code:                   "FLAG_LIPID_SUPPORT",
		ReasonCodes:            []string{"RC_LIPID"},
		RecommendedIngredients: []string{"omega_3", "plant_sterols", "bergamot"},
	})
	add(&MappingRow{
		Code:                   "FLAG_MAGNESIUM_SUPPORT",
		ReasonCodes:            []string{"RC_MAGNESIUM_LOW"},
		RecommendedIngredients: []string{"magnesium", "magnesium_glycinate"},
	})
	add(&MappingRow{
		Code:                   "FLAG_ZINC_SUPPORT",
		ReasonCodes:            []string{"RC_ZINC_LOW"},
		RecommendedIngredients: []string{"zinc", "zinc_picolinate"},
	})
	add(&MappingRow{
		Code:                   "FLAG_B12_SUPPORT",
		ReasonCodes:            []string{"RC_B12_LOW"},
		RecommendedIngredients: []string{"methylcobalamin", "b_complex"},
	})
	add(&MappingRow{
		Code:                   "FLAG_ANDROGEN_SUPPORT",
		ReasonCodes:            []string{"RC_ANDROGEN_LOW"},
		RecommendedIngredients: []string{"zinc", "magnesium", "tongkat_ali", "boron"},
	})

	return mapping
}

func sortRow(row *MappingRow) {
	sort.Strings(row.BlockedIngredients)
	sort.Strings(row.BlockedCategories)
	sort.Strings(row.BlockedTargets)
	sort.Strings(row.CautionFlags)
	sort.Strings(row.ReasonCodes)
	sort.Strings(row.RecommendedIngredients)
}
