package nutrition

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

// ErrInsufficientData is returned when the check-in history is too short to
// estimate a weight trend.
var ErrInsufficientData = errors.New("insufficient check-in data")

const (
	// AdjustWindowDays is the trailing window callers load check-ins from.
	AdjustWindowDays = 21
	minCheckIns      = 2
	minSpanDays      = 10

	minAdjustmentPercent = -40
	maxAdjustmentPercent = 40
)

// CheckIn is one dated bodyweight observation.
type CheckIn struct {
	Date     time.Time
	WeightKG float64
}

// Trend summarizes the check-ins the recommendation was based on.
type Trend struct {
	CheckIns     int     `json:"checkins"`
	DaysSpan     int     `json:"days_span"`
	DeltaKG      float64 `json:"delta_kg"`
	WeeklyRateKG float64 `json:"weekly_rate_kg"`
}

// Adjustment is the adjuster's recommendation for a goal.
type Adjustment struct {
	Trend                   Trend   `json:"trend"`
	PreviousPercent         float64 `json:"previous_percent"`
	RecommendedDeltaPercent float64 `json:"recommended_delta_percent"`
	NewPercent              float64 `json:"new_percent"`
	Reason                  string  `json:"reason"`
}

// Changed reports whether applying the adjustment moves the stored percent.
func (a Adjustment) Changed() bool {
	return a.NewPercent != a.PreviousPercent
}

// WeightTrend computes the span and weekly rate between the oldest and newest
// check-in. It needs at least two check-ins spanning 10 or more days.
func WeightTrend(checkIns []CheckIn) (Trend, error) {
	if len(checkIns) < minCheckIns {
		return Trend{}, fmt.Errorf("%w: need at least %d check-ins, have %d", ErrInsufficientData, minCheckIns, len(checkIns))
	}
	sorted := make([]CheckIn, len(checkIns))
	copy(sorted, checkIns)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	first, last := sorted[0], sorted[len(sorted)-1]
	span := int(math.Round(last.Date.Sub(first.Date).Hours() / 24))
	if span < minSpanDays {
		return Trend{}, fmt.Errorf("%w: check-ins span %d days, need %d", ErrInsufficientData, span, minSpanDays)
	}
	delta := last.WeightKG - first.WeightKG
	return Trend{
		CheckIns:     len(sorted),
		DaysSpan:     span,
		DeltaKG:      delta,
		WeeklyRateKG: delta / (float64(span) / 7),
	}, nil
}

// recommend picks a percent delta and a reason for the goal type given the
// weekly rate of change.
func recommend(goal GoalType, rate float64) (float64, string) {
	switch goal {
	case FatLoss, Recomp:
		switch {
		case rate > -0.05:
			return -5, "Weight is not trending down; increasing the deficit"
		case rate < -0.9:
			return 3, "Losing weight faster than recommended; easing the deficit"
		}
		return 0, "Weight loss is on track; no change"
	case LeanBulk, Bulk:
		switch {
		case rate < 0.05:
			return 5, "Weight is not trending up; increasing the surplus"
		case rate > 0.7:
			return -3, "Gaining weight faster than recommended; reducing the surplus"
		}
		return 0, "Weight gain is on track; no change"
	case Maintenance:
		if math.Abs(rate) > 0.5 {
			if rate > 0 {
				return -3, "Weight is drifting up; trimming calories"
			}
			return 3, "Weight is drifting down; adding calories"
		}
		return 0, "Weight is stable; no change"
	}
	return 0, "Unknown goal type; no change"
}

func clampPercent(v float64) float64 {
	return math.Max(minAdjustmentPercent, math.Min(maxAdjustmentPercent, v))
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// Recommend nudges the goal's effective adjustment percent from the weight
// trend in checkIns. It never mutates the goal; callers decide whether to
// persist NewPercent.
func Recommend(checkIns []CheckIn, g Goal) (Adjustment, error) {
	trend, err := WeightTrend(checkIns)
	if err != nil {
		return Adjustment{}, err
	}
	delta, reason := recommend(g.Type, trend.WeeklyRateKG)
	current := EffectiveAdjustmentPercent(g)

	trend.DeltaKG = round3(trend.DeltaKG)
	trend.WeeklyRateKG = round3(trend.WeeklyRateKG)
	return Adjustment{
		Trend:                   trend,
		PreviousPercent:         current,
		RecommendedDeltaPercent: delta,
		NewPercent:              clampPercent(current + delta),
		Reason:                  reason,
	}, nil
}
