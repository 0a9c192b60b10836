package nutrition

import (
	"errors"
	"testing"
)

// series builds check-ins from (day offset, kg) pairs relative to a fixed start.
func series(points ...[2]float64) []CheckIn {
	start := today.AddDate(0, 0, -20)
	out := make([]CheckIn, 0, len(points))
	for _, pt := range points {
		out = append(out, CheckIn{Date: start.AddDate(0, 0, int(pt[0])), WeightKG: pt[1]})
	}
	return out
}

func TestRecommend_InsufficientData(t *testing.T) {
	cases := []struct {
		name     string
		checkIns []CheckIn
	}{
		{"none", nil},
		{"single check-in", series([2]float64{0, 80})},
		{"span under ten days", series([2]float64{0, 80}, [2]float64{9, 79})},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Recommend(tc.checkIns, Goal{Type: FatLoss})
			if !errors.Is(err, ErrInsufficientData) {
				t.Errorf("expected ErrInsufficientData, got %v", err)
			}
		})
	}
}

// TestRecommend_FatLossNotLosing is the flat 13-day case: no loss means the
// deficit grows by five points from the -20% default.
func TestRecommend_FatLossNotLosing(t *testing.T) {
	adj, err := Recommend(series([2]float64{0, 80}, [2]float64{13, 80}), Goal{Type: FatLoss})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if adj.RecommendedDeltaPercent != -5 {
		t.Errorf("delta = %v, want -5", adj.RecommendedDeltaPercent)
	}
	if adj.PreviousPercent != -20 || adj.NewPercent != -25 {
		t.Errorf("percent %v -> %v, want -20 -> -25", adj.PreviousPercent, adj.NewPercent)
	}
	if adj.Trend.DaysSpan != 13 || adj.Trend.CheckIns != 2 {
		t.Errorf("trend = %+v", adj.Trend)
	}
	if adj.Reason == "" {
		t.Error("expected a reason")
	}
}

func TestRecommend_ByGoalType(t *testing.T) {
	cases := []struct {
		name  string
		goal  GoalType
		delta float64 // kg change over 14 days
		want  float64
	}{
		{"fat loss on track", FatLoss, -1.0, 0},
		{"fat loss too fast", FatLoss, -2.0, 3},
		{"recomp not losing", Recomp, 0.2, -5},
		{"lean bulk not gaining", LeanBulk, 0, 5},
		{"lean bulk on track", LeanBulk, 0.6, 0},
		{"bulk too fast", Bulk, 1.6, -3},
		{"maintenance stable", Maintenance, 0.4, 0},
		{"maintenance gaining", Maintenance, 1.2, -3},
		{"maintenance losing", Maintenance, -1.2, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			checkIns := series([2]float64{0, 80}, [2]float64{7, 80 + tc.delta/2}, [2]float64{14, 80 + tc.delta})
			adj, err := Recommend(checkIns, Goal{Type: tc.goal})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if adj.RecommendedDeltaPercent != tc.want {
				t.Errorf("delta = %v (rate %v), want %v", adj.RecommendedDeltaPercent, adj.Trend.WeeklyRateKG, tc.want)
			}
		})
	}
}

func TestRecommend_ClampsToRange(t *testing.T) {
	g := Goal{Type: FatLoss, CalorieAdjustmentPercent: -38, AdjustmentCustomized: true}
	adj, err := Recommend(series([2]float64{0, 80}, [2]float64{14, 80.5}), g)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if adj.NewPercent != -40 {
		t.Errorf("new percent = %v, want clamp at -40", adj.NewPercent)
	}
}

func TestRecommend_UnorderedInput(t *testing.T) {
	checkIns := series([2]float64{14, 78}, [2]float64{0, 80}, [2]float64{7, 79})
	adj, err := Recommend(checkIns, Goal{Type: FatLoss})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if adj.Trend.DeltaKG != -2 || adj.Trend.WeeklyRateKG != -1 {
		t.Errorf("trend = %+v, want delta -2 and rate -1", adj.Trend)
	}
}
