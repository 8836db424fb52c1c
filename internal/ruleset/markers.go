package ruleset

import "github.com/biostack-engine/internal/domain"

// buildMarkers assembles the canonical marker allow-list. Entries whose lab
// code does not resolve here are reported as unknown and never reach gates.
func buildMarkers() map[string]*MarkerDef {
	markers := make(map[string]*MarkerDef)

	add := func(def *MarkerDef) {
		markers[def.Code] = def
	}

	// Iron panel.
	add(&MarkerDef{
		Code: "ferritin", Unit: "ng/mL",
		Aliases:     []string{"ferr", "serum_ferritin"},
		Conversions: []Conversion{{FromUnit: "ug/L", Factor: 1}},
	})
	add(&MarkerDef{
		Code: "iron", Unit: "ug/dL",
		Aliases:     []string{"serum_iron", "fe"},
		Conversions: []Conversion{{FromUnit: "umol/L", Factor: 5.587}},
	})
	add(&MarkerDef{
		Code: "total_iron_binding_capacity", Unit: "ug/dL",
		Aliases:     []string{"tibc"},
		Conversions: []Conversion{{FromUnit: "umol/L", Factor: 5.587}},
	})
	add(&MarkerDef{
		Code: "transferrin_saturation", Unit: "%",
		Aliases: []string{"tsat", "iron_saturation", "transferrin_sat"},
	})

	// Inflammation.
	add(&MarkerDef{
		Code: "crp", Unit: "mg/L",
		Aliases:     []string{"c_reactive_protein", "hs_crp", "hscrp"},
		Conversions: []Conversion{{FromUnit: "mg/dL", Factor: 10}},
	})
	add(&MarkerDef{
		Code: "homocysteine", Unit: "umol/L",
		Aliases: []string{"hcy"},
	})

	// Vitamins and methylation.
	add(&MarkerDef{
		Code: "vitamin_d", Unit: "ng/mL",
		Aliases:     []string{"25_oh_d", "vitamin_d_25_oh", "25_hydroxyvitamin_d", "vit_d"},
		Conversions: []Conversion{{FromUnit: "nmol/L", Factor: 0.4}},
	})
	add(&MarkerDef{
		Code: "vitamin_b12", Unit: "pg/mL",
		Aliases:     []string{"b12", "cobalamin"},
		Conversions: []Conversion{{FromUnit: "pmol/L", Factor: 1.355}},
	})
	add(&MarkerDef{
		Code: "folate", Unit: "ng/mL",
		Aliases:     []string{"serum_folate", "rbc_folate"},
		Conversions: []Conversion{{FromUnit: "nmol/L", Factor: 0.441}},
	})

	// Glycemic control.
	add(&MarkerDef{
		Code: "glucose", Unit: "mg/dL",
		Aliases:     []string{"fasting_glucose", "blood_glucose", "glu"},
		Conversions: []Conversion{{FromUnit: "mmol/L", Factor: 18}},
	})
	add(&MarkerDef{
		Code: "insulin", Unit: "uIU/mL",
		Aliases:     []string{"fasting_insulin"},
		Conversions: []Conversion{{FromUnit: "pmol/L", Factor: 0.144}},
	})
	add(&MarkerDef{
		Code: "hba1c", Unit: "%",
		Aliases: []string{"a1c", "glycated_hemoglobin", "hemoglobin_a1c"},
	})

	// Liver.
	add(&MarkerDef{
		Code: "alt", Unit: "U/L",
		Aliases: []string{"sgpt", "alanine_aminotransferase"},
	})
	add(&MarkerDef{
		Code: "ast", Unit: "U/L",
		Aliases: []string{"sgot", "aspartate_aminotransferase"},
	})
	add(&MarkerDef{
		Code: "ggt", Unit: "U/L",
		Aliases: []string{"gamma_gt", "gamma_glutamyl_transferase"},
	})
	add(&MarkerDef{
		Code: "alkaline_phosphatase", Unit: "U/L",
		Aliases: []string{"alp"},
	})
	add(&MarkerDef{
		Code: "total_bilirubin", Unit: "mg/dL",
		Aliases:     []string{"bilirubin", "tbili"},
		Conversions: []Conversion{{FromUnit: "umol/L", Factor: 0.0585}},
	})

	// Kidney.
	add(&MarkerDef{
		Code: "creatinine", Unit: "mg/dL",
		Aliases:     []string{"serum_creatinine", "creat"},
		Conversions: []Conversion{{FromUnit: "umol/L", Factor: 0.0113}},
	})
	add(&MarkerDef{
		Code: "egfr", Unit: "mL/min/1.73m2",
		Aliases: []string{"gfr", "estimated_gfr"},
	})
	add(&MarkerDef{
		Code: "bun", Unit: "mg/dL",
		Aliases:     []string{"blood_urea_nitrogen", "urea_nitrogen"},
		Conversions: []Conversion{{FromUnit: "mmol/L", Factor: 2.8}},
	})

	// Electrolytes and minerals.
	add(&MarkerDef{
		Code: "sodium", Unit: "mmol/L",
		Aliases:     []string{"na"},
		Conversions: []Conversion{{FromUnit: "mEq/L", Factor: 1}},
	})
	add(&MarkerDef{
		Code: "potassium", Unit: "mmol/L",
		Aliases:     []string{"k"},
		Conversions: []Conversion{{FromUnit: "mEq/L", Factor: 1}},
	})
	add(&MarkerDef{
		Code: "magnesium", Unit: "mg/dL",
		Aliases:     []string{"mg", "serum_magnesium"},
		Conversions: []Conversion{{FromUnit: "mmol/L", Factor: 2.43}},
	})
	add(&MarkerDef{
		Code: "calcium", Unit: "mg/dL",
		Aliases:     []string{"ca", "serum_calcium"},
		Conversions: []Conversion{{FromUnit: "mmol/L", Factor: 4.008}},
	})
	add(&MarkerDef{
		Code: "zinc", Unit: "ug/dL",
		Aliases:     []string{"zn", "serum_zinc"},
		Conversions: []Conversion{{FromUnit: "umol/L", Factor: 6.54}},
	})
	add(&MarkerDef{
		Code: "copper", Unit: "ug/dL",
		Aliases:     []string{"cu", "serum_copper"},
		Conversions: []Conversion{{FromUnit: "umol/L", Factor: 6.35}},
	})
	add(&MarkerDef{
		Code: "selenium", Unit: "ug/L",
		Aliases: []string{"se", "serum_selenium"},
	})

	// Thyroid.
	add(&MarkerDef{
		Code: "tsh", Unit: "mIU/L",
		Aliases:     []string{"thyroid_stimulating_hormone"},
		Conversions: []Conversion{{FromUnit: "uIU/mL", Factor: 1}},
	})
	add(&MarkerDef{
		Code: "free_t3", Unit: "pg/mL",
		Aliases:     []string{"ft3"},
		Conversions: []Conversion{{FromUnit: "pmol/L", Factor: 0.651}},
	})
	add(&MarkerDef{
		Code: "free_t4", Unit: "ng/dL",
		Aliases:     []string{"ft4"},
		Conversions: []Conversion{{FromUnit: "pmol/L", Factor: 0.0777}},
	})

	// Hormones.
	add(&MarkerDef{
		Code: "total_testosterone", Unit: "ng/dL",
		Aliases:     []string{"testosterone", "testosterone_total"},
		Conversions: []Conversion{{FromUnit: "nmol/L", Factor: 28.84}},
	})
	add(&MarkerDef{
		Code: "free_testosterone", Unit: "pg/mL",
		Aliases: []string{"testosterone_free"},
	})
	add(&MarkerDef{
		Code: "estradiol", Unit: "pg/mL",
		Aliases:     []string{"e2"},
		Conversions: []Conversion{{FromUnit: "pmol/L", Factor: 0.2724}},
	})
	add(&MarkerDef{
		Code: "progesterone", Unit: "ng/mL",
		Conversions: []Conversion{{FromUnit: "nmol/L", Factor: 0.3145}},
	})
	add(&MarkerDef{
		Code: "shbg", Unit: "nmol/L",
		Aliases: []string{"sex_hormone_binding_globulin"},
	})
	add(&MarkerDef{
		Code: "dhea_s", Unit: "ug/dL",
		Aliases:     []string{"dheas", "dhea_sulfate"},
		Conversions: []Conversion{{FromUnit: "umol/L", Factor: 36.85}},
	})
	add(&MarkerDef{
		Code: "cortisol", Unit: "ug/dL",
		Aliases:     []string{"morning_cortisol", "am_cortisol"},
		Conversions: []Conversion{{FromUnit: "nmol/L", Factor: 0.0363}},
	})

	// Lipids.
	add(&MarkerDef{
		Code: "ldl_cholesterol", Unit: "mg/dL",
		Aliases:     []string{"ldl", "ldl_c"},
		Conversions: []Conversion{{FromUnit: "mmol/L", Factor: 38.67}},
	})
	add(&MarkerDef{
		Code: "hdl_cholesterol", Unit: "mg/dL",
		Aliases:     []string{"hdl", "hdl_c"},
		Conversions: []Conversion{{FromUnit: "mmol/L", Factor: 38.67}},
	})
	add(&MarkerDef{
		Code: "triglycerides", Unit: "mg/dL",
		Aliases:     []string{"tg", "trigs"},
		Conversions: []Conversion{{FromUnit: "mmol/L", Factor: 88.57}},
	})
	add(&MarkerDef{
		Code: "total_cholesterol", Unit: "mg/dL",
		Aliases:     []string{"cholesterol"},
		Conversions: []Conversion{{FromUnit: "mmol/L", Factor: 38.67}},
	})
	add(&MarkerDef{
		Code: "apob", Unit: "mg/dL",
		Aliases:     []string{"apolipoprotein_b"},
		Conversions: []Conversion{{FromUnit: "g/L", Factor: 100}},
	})
	add(&MarkerDef{
		Code: "lipoprotein_a", Unit: "nmol/L",
		Aliases: []string{"lp_a", "lpa"},
	})

	// Metabolic and hematology.
	add(&MarkerDef{
		Code: "uric_acid", Unit: "mg/dL",
		Aliases:     []string{"urate"},
		Conversions: []Conversion{{FromUnit: "umol/L", Factor: 0.0168}},
	})
	add(&MarkerDef{
		Code: "hemoglobin", Unit: "g/dL",
		Aliases:     []string{"hgb", "hb"},
		Conversions: []Conversion{{FromUnit: "g/L", Factor: 0.1}},
	})

	// Genotypes.
	add(&MarkerDef{
		Code: "mthfr_c677t", Kind: KindCategorical,
		Aliases: []string{"mthfr_677", "mthfr"},
		Allowed: []string{"CC", "CT", "TT"},
		StatusFor: map[string]domain.RangeStatus{
			"CC": domain.RangeOptimal,
			"CT": domain.RangeNormal,
			"TT": domain.RangeHigh,
		},
	})
	add(&MarkerDef{
		Code: "mthfr_a1298c", Kind: KindCategorical,
		Aliases: []string{"mthfr_1298"},
		Allowed: []string{"AA", "AC", "CC"},
		StatusFor: map[string]domain.RangeStatus{
			"AA": domain.RangeOptimal,
			"AC": domain.RangeNormal,
			"CC": domain.RangeHigh,
		},
	})

	return markers
}
