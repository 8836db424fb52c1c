package ruleset

import "github.com/biostack-engine/internal/domain"

// buildRanges assembles the reference-range table. Bands are consulted in
// declaration order, so sex- and age-specific rows come before general
// ones. Units are the marker's canonical unit.
func buildRanges() map[string][]Band {
	ranges := make(map[string][]Band)

	add := func(b Band) {
		ranges[b.Code] = append(ranges[b.Code], b)
	}

	// Iron panel. Ferritin ranges differ by sex, and for females by
	// menstruation status approximated with an age bracket. The bracketed
	// band comes first so an unknown age falls into the stricter range.
	add(Band{Code: "ferritin", Sex: domain.SexMale, Low: 30, High: 300,
		OptimalLow: fp(50), OptimalHigh: fp(150), CriticalHigh: fp(1000)})
	add(Band{Code: "ferritin", Sex: domain.SexFemale, MaxAge: 50, Low: 15, High: 200,
		OptimalLow: fp(40), OptimalHigh: fp(120), CriticalHigh: fp(1000)})
	add(Band{Code: "ferritin", Sex: domain.SexFemale, Low: 30, High: 300,
		OptimalLow: fp(50), OptimalHigh: fp(150), CriticalHigh: fp(1000)})
	add(Band{Code: "iron", Low: 60, High: 170})
	add(Band{Code: "total_iron_binding_capacity", Low: 250, High: 450})
	add(Band{Code: "transferrin_saturation", Low: 20, High: 50, OptimalLow: fp(25), OptimalHigh: fp(40)})

	// Inflammation.
	add(Band{Code: "crp", Low: 0, High: 3, OptimalLow: fp(0), OptimalHigh: fp(1), CriticalHigh: fp(50)})
	add(Band{Code: "homocysteine", Low: 4, High: 10.4, OptimalLow: fp(5), OptimalHigh: fp(8), CriticalHigh: fp(30)})

	// Vitamins.
	add(Band{Code: "vitamin_d", Low: 30, High: 100,
		OptimalLow: fp(50), OptimalHigh: fp(80), CriticalLow: fp(12), CriticalHigh: fp(150)})
	add(Band{Code: "vitamin_b12", Low: 300, High: 900,
		OptimalLow: fp(500), OptimalHigh: fp(800), CriticalLow: fp(150)})
	add(Band{Code: "folate", Low: 3, High: 20, OptimalLow: fp(8), OptimalHigh: fp(20)})

	// Glycemic control.
	add(Band{Code: "glucose", Low: 70, High: 99,
		OptimalLow: fp(75), OptimalHigh: fp(90), CriticalLow: fp(55), CriticalHigh: fp(250)})
	add(Band{Code: "insulin", Low: 2, High: 19.6, OptimalLow: fp(3), OptimalHigh: fp(8)})
	add(Band{Code: "hba1c", Low: 4, High: 5.6,
		OptimalLow: fp(4.8), OptimalHigh: fp(5.2), CriticalHigh: fp(9)})

	// Liver.
	add(Band{Code: "alt", Sex: domain.SexMale, Low: 7, High: 44,
		OptimalLow: fp(10), OptimalHigh: fp(30), CriticalHigh: fp(200)})
	add(Band{Code: "alt", Sex: domain.SexFemale, Low: 7, High: 32,
		OptimalLow: fp(10), OptimalHigh: fp(25), CriticalHigh: fp(200)})
	add(Band{Code: "ast", Sex: domain.SexMale, Low: 8, High: 40, CriticalHigh: fp(200)})
	add(Band{Code: "ast", Sex: domain.SexFemale, Low: 8, High: 32, CriticalHigh: fp(200)})
	add(Band{Code: "ggt", Sex: domain.SexMale, Low: 8, High: 61})
	add(Band{Code: "ggt", Sex: domain.SexFemale, Low: 5, High: 36})
	add(Band{Code: "alkaline_phosphatase", Low: 44, High: 121})
	add(Band{Code: "total_bilirubin", Low: 0.2, High: 1.2, CriticalHigh: fp(5)})

	// Kidney.
	add(Band{Code: "creatinine", Sex: domain.SexMale, Low: 0.74, High: 1.35, CriticalHigh: fp(4)})
	add(Band{Code: "creatinine", Sex: domain.SexFemale, Low: 0.59, High: 1.04, CriticalHigh: fp(4)})
	add(Band{Code: "egfr", Low: 60, High: 150, OptimalLow: fp(90), OptimalHigh: fp(150), CriticalLow: fp(15)})
	add(Band{Code: "bun", Low: 7, High: 20})

	// Electrolytes and minerals.
	add(Band{Code: "sodium", Low: 135, High: 145, CriticalLow: fp(125), CriticalHigh: fp(155)})
	add(Band{Code: "potassium", Low: 3.5, High: 5.1, CriticalLow: fp(2.8), CriticalHigh: fp(6.2)})
	add(Band{Code: "magnesium", Low: 1.7, High: 2.2, OptimalLow: fp(2), OptimalHigh: fp(2.2), CriticalLow: fp(1)})
	add(Band{Code: "calcium", Low: 8.6, High: 10.2,
		OptimalLow: fp(9.2), OptimalHigh: fp(10), CriticalLow: fp(7), CriticalHigh: fp(12)})
	add(Band{Code: "zinc", Low: 70, High: 120, OptimalLow: fp(90), OptimalHigh: fp(120)})
	add(Band{Code: "copper", Low: 70, High: 140})
	add(Band{Code: "selenium", Low: 70, High: 150})

	// Thyroid.
	add(Band{Code: "tsh", Low: 0.4, High: 4.5,
		OptimalLow: fp(1), OptimalHigh: fp(2.5), CriticalLow: fp(0.05), CriticalHigh: fp(20)})
	add(Band{Code: "free_t3", Low: 2.3, High: 4.2})
	add(Band{Code: "free_t4", Low: 0.8, High: 1.8})

	// Hormones. DHEA-S declines with age; brackets follow lab practice.
	add(Band{Code: "total_testosterone", Sex: domain.SexMale, Low: 300, High: 1000,
		OptimalLow: fp(500), OptimalHigh: fp(900)})
	add(Band{Code: "total_testosterone", Sex: domain.SexFemale, Low: 15, High: 70})
	add(Band{Code: "free_testosterone", Sex: domain.SexMale, Low: 50, High: 210})
	add(Band{Code: "free_testosterone", Sex: domain.SexFemale, Low: 1, High: 8.5})
	add(Band{Code: "estradiol", Sex: domain.SexMale, Low: 10, High: 40})
	add(Band{Code: "estradiol", Sex: domain.SexFemale, Low: 30, High: 400})
	add(Band{Code: "progesterone", Sex: domain.SexMale, Low: 0.1, High: 1})
	add(Band{Code: "progesterone", Sex: domain.SexFemale, Low: 0.1, High: 25})
	add(Band{Code: "shbg", Sex: domain.SexMale, Low: 16.5, High: 55.9})
	add(Band{Code: "shbg", Sex: domain.SexFemale, Low: 24.6, High: 122})
	add(Band{Code: "dhea_s", Sex: domain.SexMale, MaxAge: 40, Low: 89, High: 457})
	add(Band{Code: "dhea_s", Sex: domain.SexMale, Low: 57, High: 385})
	add(Band{Code: "dhea_s", Sex: domain.SexFemale, MaxAge: 40, Low: 63, High: 373})
	add(Band{Code: "dhea_s", Sex: domain.SexFemale, Low: 37, High: 307})
	add(Band{Code: "cortisol", Low: 6.2, High: 19.4, OptimalLow: fp(10), OptimalHigh: fp(18)})

	// Lipids.
	add(Band{Code: "ldl_cholesterol", Low: 40, High: 100, OptimalLow: fp(40), OptimalHigh: fp(80), CriticalHigh: fp(190)})
	add(Band{Code: "hdl_cholesterol", Sex: domain.SexMale, Low: 40, High: 90, OptimalLow: fp(55), OptimalHigh: fp(90)})
	add(Band{Code: "hdl_cholesterol", Sex: domain.SexFemale, Low: 50, High: 90, OptimalLow: fp(60), OptimalHigh: fp(90)})
	add(Band{Code: "triglycerides", Low: 35, High: 150, OptimalLow: fp(35), OptimalHigh: fp(90), CriticalHigh: fp(500)})
	add(Band{Code: "total_cholesterol", Low: 125, High: 200})
	add(Band{Code: "apob", Low: 40, High: 90, OptimalLow: fp(40), OptimalHigh: fp(70)})
	add(Band{Code: "lipoprotein_a", Low: 0, High: 75, CriticalHigh: fp(125)})

	// Metabolic and hematology.
	add(Band{Code: "uric_acid", Sex: domain.SexMale, Low: 3.5, High: 7.2,
		OptimalLow: fp(4), OptimalHigh: fp(5.5), CriticalHigh: fp(10)})
	add(Band{Code: "uric_acid", Sex: domain.SexFemale, Low: 2.6, High: 6,
		OptimalLow: fp(3), OptimalHigh: fp(5), CriticalHigh: fp(10)})
	add(Band{Code: "hemoglobin", Sex: domain.SexMale, Low: 13.5, High: 17.5, CriticalLow: fp(8)})
	add(Band{Code: "hemoglobin", Sex: domain.SexFemale, Low: 12, High: 15.5, CriticalLow: fp(7)})

	// Derived markers.
	add(Band{Code: "homa_ir", Low: 0, High: 2.5, OptimalLow: fp(0), OptimalHigh: fp(1.5)})
	add(Band{Code: "tg_hdl_ratio", Low: 0, High: 3, OptimalLow: fp(0), OptimalHigh: fp(1.5)})
	add(Band{Code: "na_k_ratio", Low: 26, High: 40, OptimalLow: fp(28), OptimalHigh: fp(36)})

	return ranges
}
