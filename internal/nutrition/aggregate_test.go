package nutrition

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestSumDay(t *testing.T) {
	cases := []struct {
		name    string
		entries []LoggedFood
		want    DayTotals
	}{
		{"empty log", nil, DayTotals{}},
		{
			"two servings",
			[]LoggedFood{{Servings: decimal.NewFromInt(2), CaloriesKcal: 200, ProteinG: 10, CarbsG: 20, FatG: 5}},
			DayTotals{Calories: 400, ProteinG: 20, CarbsG: 40, FatG: 10},
		},
		{
			"fractional servings round",
			[]LoggedFood{
				{Servings: decimal.RequireFromString("1.5"), CaloriesKcal: 95, ProteinG: 0.5, CarbsG: 25.1, FatG: 0.3},
				{Servings: decimal.RequireFromString("0.25"), CaloriesKcal: 610, ProteinG: 20.2, CarbsG: 21.6, FatG: 52.5},
			},
			// 142.5+152.5=295; 0.75+5.05=5.8; 37.65+5.4=43.05; 0.45+13.125=13.575
			DayTotals{Calories: 295, ProteinG: 5.8, CarbsG: 43.0, FatG: 13.6},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SumDay(tc.entries); got != tc.want {
				t.Errorf("SumDay() = %+v, want %+v", got, tc.want)
			}
		})
	}
}
