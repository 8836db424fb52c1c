package ruleset

// buildDerived assembles the computed markers. Each is evaluated after base
// normalization when all inputs are present, and enters the normalized set
// flagged computed.
func buildDerived() []DerivedDef {
	return []DerivedDef{
		{
			Code:   "homa_ir",
			Unit:   "index",
			Inputs: []string{"glucose", "insulin"},
			Compute: func(v map[string]float64) float64 {
				return v["glucose"] * v["insulin"] / 405
			},
		},
		{
			Code:   "tg_hdl_ratio",
			Unit:   "ratio",
			Inputs: []string{"triglycerides", "hdl_cholesterol"},
			Compute: func(v map[string]float64) float64 {
				return v["triglycerides"] / v["hdl_cholesterol"]
			},
		},
		{
			Code:   "na_k_ratio",
			Unit:   "ratio",
			Inputs: []string{"sodium", "potassium"},
			Compute: func(v map[string]float64) float64 {
				return v["sodium"] / v["potassium"]
			},
		},
	}
}
