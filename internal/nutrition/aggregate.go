package nutrition

import "github.com/shopspring/decimal"

// LoggedFood is one food-log entry joined with its food item's per-serving values.
type LoggedFood struct {
	Servings     decimal.Decimal
	CaloriesKcal int
	ProteinG     float64
	CarbsG       float64
	FatG         float64
}

// DayTotals is the derived sum of a day's food log.
type DayTotals struct {
	Calories int     `json:"calories"`
	ProteinG float64 `json:"protein_g"`
	CarbsG   float64 `json:"carbs_g"`
	FatG     float64 `json:"fat_g"`
}

// SumDay multiplies each entry's per-serving values by its servings and sums
// them. Calories round to whole kcal, macros to one decimal.
func SumDay(entries []LoggedFood) DayTotals {
	var cal, protein, carbs, fat decimal.Decimal
	for _, e := range entries {
		cal = cal.Add(decimal.NewFromInt(int64(e.CaloriesKcal)).Mul(e.Servings))
		protein = protein.Add(decimal.NewFromFloat(e.ProteinG).Mul(e.Servings))
		carbs = carbs.Add(decimal.NewFromFloat(e.CarbsG).Mul(e.Servings))
		fat = fat.Add(decimal.NewFromFloat(e.FatG).Mul(e.Servings))
	}
	return DayTotals{
		Calories: int(cal.RoundBank(0).IntPart()),
		ProteinG: protein.RoundBank(1).InexactFloat64(),
		CarbsG:   carbs.RoundBank(1).InexactFloat64(),
		FatG:     fat.RoundBank(1).InexactFloat64(),
	}
}
