package ruleset

import "github.com/biostack-engine/internal/domain"

// buildGates assembles the safety-gate registry. Tier 1 gates emit hard
// blocks, Tier 2 cautions, Tier 3 informational flags. Gate order never
// affects the result; emitted codes are unioned.
func buildGates() []Gate {
	var gates []Gate

	add := func(g Gate) {
		gates = append(gates, g)
	}

	// Iron overload. Ferritin is an acute-phase reactant, so an elevated
	// CRP reading downgrades the block to an inflammation flag.
	ironException := &Exception{
		When:   []Condition{{Marker: "crp", Op: OpGTE, Value: 5}},
		Emits:  []domain.ConstraintCode{"FLAG_ACUTE_INFLAMMATION"},
		Reason: "ferritin elevation confounded by acute inflammation",
	}
	add(Gate{
		ID: "GATE_IRON_OVERLOAD_MALE", Tier: domain.TierBlock, Sex: domain.SexMale,
		All:         []Condition{{Marker: "ferritin", Op: OpGT, Value: 300}},
		Emits:       []domain.ConstraintCode{"BLOCK_IRON"},
		Exception:   ironException,
		Description: "ferritin above male upper bound",
	})
	add(Gate{
		ID: "GATE_IRON_OVERLOAD_FEMALE", Tier: domain.TierBlock, Sex: domain.SexFemale,
		All:         []Condition{{Marker: "ferritin", Op: OpGT, Value: 200}},
		Emits:       []domain.ConstraintCode{"BLOCK_IRON"},
		Exception:   ironException,
		Description: "ferritin above female upper bound",
	})
	add(Gate{
		ID: "GATE_TRANSFERRIN_OVERLOAD", Tier: domain.TierBlock,
		All:         []Condition{{Marker: "transferrin_saturation", Op: OpGT, Value: 50}},
		Emits:       []domain.ConstraintCode{"BLOCK_IRON"},
		Description: "transferrin saturation above 50%",
	})
	add(Gate{
		ID: "GATE_IRON_DEFICIENCY", Tier: domain.TierFlag,
		All:         []Condition{{Marker: "ferritin", Op: OpLT, Value: 30}},
		Emits:       []domain.ConstraintCode{"FLAG_IRON_SUPPORT"},
		Description: "ferritin below repletion threshold",
	})
	add(Gate{
		ID: "GATE_ANEMIA_RISK", Tier: domain.TierFlag,
		All:         []Condition{{Marker: "hemoglobin", Op: OpLT, Value: 12}},
		Emits:       []domain.ConstraintCode{"FLAG_IRON_SUPPORT"},
		Description: "hemoglobin below anemia threshold",
	})

	// Liver.
	add(Gate{
		ID: "GATE_HEPATIC_STRESS", Tier: domain.TierCaution,
		Any: []Condition{
			{Marker: "alt", Op: OpGT, Value: 50},
			{Marker: "ast", Op: OpGT, Value: 45},
			{Marker: "ggt", Op: OpGT, Value: 70},
		},
		Emits:       []domain.ConstraintCode{"CAUTION_HEPATOTOXIC"},
		Description: "transaminases above caution threshold",
	})
	add(Gate{
		ID: "GATE_HEPATIC_CRITICAL", Tier: domain.TierBlock,
		Any: []Condition{
			{Marker: "alt", Op: OpGT, Value: 200},
			{Marker: "ast", Op: OpGT, Value: 200},
		},
		Emits:       []domain.ConstraintCode{"BLOCK_HEPATOTOXIC"},
		Description: "transaminases at critical elevation",
	})

	// Kidney.
	add(Gate{
		ID: "GATE_RENAL_STRESS", Tier: domain.TierCaution,
		Any: []Condition{
			{Marker: "creatinine", Op: OpGT, Value: 1.35},
			{Marker: "egfr", Op: OpLT, Value: 60},
		},
		Emits:       []domain.ConstraintCode{"CAUTION_RENAL"},
		Description: "reduced renal clearance",
	})
	add(Gate{
		ID: "GATE_RENAL_CRITICAL", Tier: domain.TierBlock,
		Any: []Condition{
			{Marker: "egfr", Op: OpLT, Value: 30},
			{Marker: "creatinine", Op: OpGT, Value: 3},
		},
		Emits:       []domain.ConstraintCode{"BLOCK_RENAL_LOAD"},
		Description: "severely reduced renal clearance",
	})

	// Calcium and vitamin D.
	add(Gate{
		ID: "GATE_HYPERCALCEMIA", Tier: domain.TierBlock,
		All:         []Condition{{Marker: "calcium", Op: OpGT, Value: 10.2}},
		Emits:       []domain.ConstraintCode{"BLOCK_CALCIUM", "BLOCK_VITAMIN_D"},
		Description: "serum calcium above upper bound",
	})
	add(Gate{
		ID: "GATE_VITAMIN_D_TOXICITY", Tier: domain.TierBlock,
		All:         []Condition{{Marker: "vitamin_d", Op: OpGT, Value: 100}},
		Emits:       []domain.ConstraintCode{"BLOCK_VITAMIN_D"},
		Description: "25-OH vitamin D above safe ceiling",
	})
	add(Gate{
		ID: "GATE_VITAMIN_D_DEFICIENT", Tier: domain.TierFlag,
		All:         []Condition{{Marker: "vitamin_d", Op: OpLT, Value: 30}},
		Emits:       []domain.ConstraintCode{"FLAG_VITAMIN_D_SUPPORT"},
		Description: "25-OH vitamin D below sufficiency",
	})

	// Electrolytes.
	add(Gate{
		ID: "GATE_HYPERKALEMIA", Tier: domain.TierBlock,
		All:         []Condition{{Marker: "potassium", Op: OpGT, Value: 5.1}},
		Emits:       []domain.ConstraintCode{"BLOCK_POTASSIUM"},
		Description: "serum potassium above upper bound",
	})
	add(Gate{
		ID: "GATE_MAGNESIUM_LOW", Tier: domain.TierFlag,
		All:         []Condition{{Marker: "magnesium", Op: OpLT, Value: 1.7}},
		Emits:       []domain.ConstraintCode{"FLAG_MAGNESIUM_SUPPORT"},
		Description: "serum magnesium below lower bound",
	})

	// Methylation. Homozygous C677T with elevated homocysteine makes
	// synthetic folic acid contraindicated; methylated forms only.
	add(Gate{
		ID: "GATE_METHYLATION_IMPAIRED", Tier: domain.TierBlock,
		All: []Condition{
			{Marker: "mthfr_c677t", Op: OpEQ, Text: "TT"},
			{Marker: "homocysteine", Op: OpGT, Value: 10.4},
		},
		Emits:       []domain.ConstraintCode{"FLAG_METHYLFOLATE_REQUIRED"},
		Description: "homozygous C677T with elevated homocysteine",
	})
	add(Gate{
		ID: "GATE_MTHFR_VARIANT", Tier: domain.TierFlag,
		Any: []Condition{
			{Marker: "mthfr_c677t", Op: OpEQ, Text: "TT"},
			{Marker: "mthfr_c677t", Op: OpEQ, Text: "CT"},
			{Marker: "mthfr_a1298c", Op: OpEQ, Text: "CC"},
		},
		Emits:       []domain.ConstraintCode{"FLAG_METHYLATION_SUPPORT"},
		Description: "reduced-activity MTHFR variant",
	})
	add(Gate{
		ID: "GATE_HYPERHOMOCYSTEINEMIA", Tier: domain.TierFlag,
		All:         []Condition{{Marker: "homocysteine", Op: OpGT, Value: 10.4}},
		Emits:       []domain.ConstraintCode{"FLAG_METHYLATION_SUPPORT"},
		Description: "homocysteine above upper bound",
	})

	// Thyroid.
	add(Gate{
		ID: "GATE_THYROID_SUPPRESSED", Tier: domain.TierCaution,
		All:         []Condition{{Marker: "tsh", Op: OpLT, Value: 0.4}},
		Emits:       []domain.ConstraintCode{"CAUTION_THYROID"},
		Description: "TSH below lower bound",
	})
	add(Gate{
		ID: "GATE_HYPOTHYROID", Tier: domain.TierFlag,
		All:         []Condition{{Marker: "tsh", Op: OpGT, Value: 4.5}},
		Emits:       []domain.ConstraintCode{"FLAG_THYROID_SUPPORT"},
		Description: "TSH above upper bound",
	})

	// Glycemic control.
	add(Gate{
		ID: "GATE_GLYCEMIC", Tier: domain.TierFlag,
		Any: []Condition{
			{Marker: "glucose", Op: OpGT, Value: 99},
			{Marker: "hba1c", Op: OpGT, Value: 5.6},
			{Marker: "homa_ir", Op: OpGT, Value: 2.5},
		},
		Emits:       []domain.ConstraintCode{"FLAG_GLYCEMIC_SUPPORT"},
		Description: "impaired glycemic control",
	})
	add(Gate{
		ID: "GATE_HYPOGLYCEMIA", Tier: domain.TierBlock,
		All:         []Condition{{Marker: "glucose", Op: OpLT, Value: 55}},
		Emits:       []domain.ConstraintCode{"BLOCK_GLUCOSE_LOWERING"},
		Description: "fasting glucose at hypoglycemic level",
	})

	// Inflammation.
	add(Gate{
		ID: "GATE_SYSTEMIC_INFLAMMATION", Tier: domain.TierCaution,
		All:         []Condition{{Marker: "crp", Op: OpGT, Value: 3}},
		Emits:       []domain.ConstraintCode{"CAUTION_INFLAMMATION"},
		Description: "CRP above chronic-inflammation threshold",
	})

	// Uric acid.
	add(Gate{
		ID: "GATE_HYPERURICEMIA", Tier: domain.TierCaution,
		All:         []Condition{{Marker: "uric_acid", Op: OpGT, Value: 7.2}},
		Emits:       []domain.ConstraintCode{"CAUTION_URIC_ACID"},
		Description: "uric acid above upper bound",
	})

	// Hormones.
	add(Gate{
		ID: "GATE_ANDROGEN_EXCESS_FEMALE", Tier: domain.TierCaution, Sex: domain.SexFemale,
		All:         []Condition{{Marker: "total_testosterone", Op: OpGT, Value: 70}},
		Emits:       []domain.ConstraintCode{"CAUTION_ANDROGENIC"},
		Description: "total testosterone above female upper bound",
	})
	add(Gate{
		ID: "GATE_LOW_TESTOSTERONE_MALE", Tier: domain.TierFlag, Sex: domain.SexMale,
		All:         []Condition{{Marker: "total_testosterone", Op: OpLT, Value: 300}},
		Emits:       []domain.ConstraintCode{"FLAG_ANDROGEN_SUPPORT"},
		Description: "total testosterone below male lower bound",
	})

	// Lipids.
	add(Gate{
		ID: "GATE_DYSLIPIDEMIA", Tier: domain.TierFlag,
		Any: []Condition{
			{Marker: "tg_hdl_ratio", Op: OpGT, Value: 3},
			{Marker: "ldl_cholesterol", Op: OpGT, Value: 130},
			{Marker: "apob", Op: OpGT, Value: 90},
		},
		Emits:       []domain.ConstraintCode{"FLAG_LIPID_SUPPORT"},
		Description: "atherogenic lipid profile",
	})

	// Micronutrients.
	add(Gate{
		ID: "GATE_ZINC_LOW", Tier: domain.TierFlag,
		All:         []Condition{{Marker: "zinc", Op: OpLT, Value: 70}},
		Emits:       []domain.ConstraintCode{"FLAG_ZINC_SUPPORT"},
		Description: "serum zinc below lower bound",
	})
	add(Gate{
		ID: "GATE_B12_LOW", Tier: domain.TierFlag,
		All:         []Condition{{Marker: "vitamin_b12", Op: OpLT, Value: 300}},
		Emits:       []domain.ConstraintCode{"FLAG_B12_SUPPORT"},
		Description: "B12 below lower bound",
	})

	return gates
}
