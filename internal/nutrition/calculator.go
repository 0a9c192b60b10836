// Package nutrition computes daily energy and macro targets from a body profile
// and goal, tunes the goal's calorie offset from weight check-in trends, and
// totals logged food for a day. Everything here is pure; callers own storage.
package nutrition

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// AlgorithmVersion tags every computed snapshot so stored targets can be
// recomputed when the formula changes.
const AlgorithmVersion = "msj-v1"

// ErrInvalidProfile is returned when the profile can't produce a target
// (age out of range, non-positive height or weight).
var ErrInvalidProfile = errors.New("invalid nutrition profile")

type Sex string

const (
	Male   Sex = "male"
	Female Sex = "female"
)

type ActivityLevel string

const (
	Sedentary ActivityLevel = "sedentary"
	Light     ActivityLevel = "light"
	Moderate  ActivityLevel = "moderate"
	Active    ActivityLevel = "active"
	Athlete   ActivityLevel = "athlete"
	Custom    ActivityLevel = "custom"
)

type GoalType string

const (
	FatLoss     GoalType = "fat_loss"
	Maintenance GoalType = "maintenance"
	Recomp      GoalType = "recomp"
	LeanBulk    GoalType = "lean_bulk"
	Bulk        GoalType = "bulk"
)

// activityMultipliers maps the fixed activity levels to their TDEE multiplier.
// Custom is resolved from the profile's stored multiplier.
var activityMultipliers = map[ActivityLevel]float64{
	Sedentary: 1.2,
	Light:     1.375,
	Moderate:  1.55,
	Active:    1.725,
	Athlete:   1.9,
}

const fallbackMultiplier = 1.55

var defaultAdjustmentPercent = map[GoalType]float64{
	FatLoss:     -20,
	Maintenance: 0,
	Recomp:      -10,
	LeanBulk:    10,
	Bulk:        15,
}

var defaultProteinPerKG = map[GoalType]float64{
	FatLoss:     2.2,
	Maintenance: 1.8,
	Recomp:      2.0,
	LeanBulk:    1.8,
	Bulk:        1.6,
}

const (
	defaultFatPerKG = 0.8
	minFatPerKG     = 0.3

	minAge = 10
	maxAge = 120

	minCaloriesMale   = 1500
	minCaloriesFemale = 1200

	// sentinelEpsilon is how close to zero a stored adjustment must be to count
	// as "never set" when the goal isn't flagged as customized.
	sentinelEpsilon = 0.0001
)

// ValidActivityLevel reports whether level is one of the known levels, custom included.
func ValidActivityLevel(level ActivityLevel) bool {
	if level == Custom {
		return true
	}
	_, ok := activityMultipliers[level]
	return ok
}

// ValidGoalType reports whether g has defaults defined.
func ValidGoalType(g GoalType) bool {
	_, ok := defaultAdjustmentPercent[g]
	return ok
}

// Profile is the body data a target is computed from. BirthDate wins over
// AgeYears when both are set.
type Profile struct {
	Sex                Sex
	BirthDate          *time.Time
	AgeYears           *int
	HeightCM           float64
	WeightKG           float64
	ActivityLevel      ActivityLevel
	ActivityMultiplier *float64
}

// Goal shapes how TDEE turns into a calorie target and macro split.
type Goal struct {
	Type                     GoalType
	CalorieAdjustmentPercent float64
	// AdjustmentCustomized marks CalorieAdjustmentPercent as an explicit user
	// (or adjuster) choice, so a stored 0 means 0 rather than "use the default".
	AdjustmentCustomized bool
	ProteinGPerKG        float64
	FatGPerKG            float64
}

// Targets is one day's computed energy and macro targets.
type Targets struct {
	BMR                        int     `json:"bmr"`
	TDEE                       int     `json:"tdee"`
	Calories                   int     `json:"calories"`
	ProteinG                   int     `json:"protein_g"`
	CarbsG                     int     `json:"carbs_g"`
	FatG                       int     `json:"fat_g"`
	ActivityMultiplier         float64 `json:"activity_multiplier"`
	EffectiveAdjustmentPercent float64 `json:"calorie_adjustment_percent"`
	AlgorithmVersion           string  `json:"algorithm_version"`
}

// ageOn returns whole years between birth and today.
func ageOn(birth, today time.Time) int {
	age := today.Year() - birth.Year()
	if today.Month() < birth.Month() || (today.Month() == birth.Month() && today.Day() < birth.Day()) {
		age--
	}
	return age
}

// ResolveAge picks the age used for BMR: birth date first, then the stored
// age in years. Either source must land in [10, 120].
func ResolveAge(p Profile, today time.Time) (int, error) {
	if p.BirthDate != nil && !p.BirthDate.IsZero() {
		if age := ageOn(*p.BirthDate, today); age >= minAge && age <= maxAge {
			return age, nil
		}
	}
	if p.AgeYears != nil && *p.AgeYears >= minAge && *p.AgeYears <= maxAge {
		return *p.AgeYears, nil
	}
	return 0, fmt.Errorf("%w: age must be between %d and %d", ErrInvalidProfile, minAge, maxAge)
}

// Multiplier returns the TDEE multiplier for the profile's activity level.
// Unknown levels, and custom without a stored value, fall back to moderate.
func Multiplier(p Profile) float64 {
	if p.ActivityLevel == Custom {
		if p.ActivityMultiplier != nil && *p.ActivityMultiplier > 0 {
			return *p.ActivityMultiplier
		}
		return fallbackMultiplier
	}
	if m, ok := activityMultipliers[p.ActivityLevel]; ok {
		return m
	}
	return fallbackMultiplier
}

// EffectiveAdjustmentPercent returns the signed percent of TDEE applied to the
// calorie target. A non-customized goal whose stored percent is (near) zero
// gets its goal type's default.
func EffectiveAdjustmentPercent(g Goal) float64 {
	if g.AdjustmentCustomized {
		return g.CalorieAdjustmentPercent
	}
	if math.Abs(g.CalorieAdjustmentPercent) < sentinelEpsilon {
		return defaultAdjustmentPercent[g.Type]
	}
	return g.CalorieAdjustmentPercent
}

func proteinPerKG(g Goal) float64 {
	if g.ProteinGPerKG > 0 {
		return g.ProteinGPerKG
	}
	if v, ok := defaultProteinPerKG[g.Type]; ok {
		return v
	}
	return defaultProteinPerKG[Maintenance]
}

func fatPerKG(g Goal) float64 {
	if g.FatGPerKG > 0 {
		return g.FatGPerKG
	}
	return defaultFatPerKG
}

// round rounds half to even, so 402.5 g of carbs reports as 402.
func round(v float64) int {
	return int(math.RoundToEven(v))
}

// ComputeTargets runs Mifflin-St Jeor BMR, the activity multiplier, the goal's
// calorie offset with a per-sex safety floor, and the protein/fat/carb split.
//
// When protein and fat alone exceed the calorie target, fat drops to 0.3 g/kg
// and carbs are recomputed once; if that still isn't enough carbs stay at 0.
func ComputeTargets(p Profile, g Goal, today time.Time) (Targets, error) {
	age, err := ResolveAge(p, today)
	if err != nil {
		return Targets{}, err
	}
	if p.HeightCM <= 0 || p.WeightKG <= 0 {
		return Targets{}, fmt.Errorf("%w: height and weight must be positive", ErrInvalidProfile)
	}

	bmr := 10*p.WeightKG + 6.25*p.HeightCM - 5*float64(age)
	if p.Sex == Male {
		bmr += 5
	} else {
		bmr -= 161
	}

	mult := Multiplier(p)
	tdee := bmr * mult

	adjust := EffectiveAdjustmentPercent(g)
	calories := round(tdee * (1 + adjust/100))
	floor := minCaloriesFemale
	if p.Sex == Male {
		floor = minCaloriesMale
	}
	if calories < floor {
		calories = floor
	}

	protein := round(proteinPerKG(g) * p.WeightKG)
	fat := round(fatPerKG(g) * p.WeightKG)

	remaining := float64(calories - protein*4 - fat*9)
	if remaining < 0 {
		fat = round(minFatPerKG * p.WeightKG)
		remaining = float64(calories - protein*4 - fat*9)
	}
	carbs := 0
	if remaining > 0 {
		carbs = round(remaining / 4)
	}

	return Targets{
		BMR:                        round(bmr),
		TDEE:                       round(tdee),
		Calories:                   calories,
		ProteinG:                   protein,
		CarbsG:                     carbs,
		FatG:                       fat,
		ActivityMultiplier:         mult,
		EffectiveAdjustmentPercent: adjust,
		AlgorithmVersion:           AlgorithmVersion,
	}, nil
}
