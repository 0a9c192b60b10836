package main

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// DateOnly wraps time.Time to serialize as "YYYY-MM-DD" in JSON.
type DateOnly struct{ time.Time }

func (d DateOnly) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Time.Format("2006-01-02") + `"`), nil
}

func (d *DateOnly) UnmarshalJSON(b []byte) error {
	t, err := time.Parse(`"2006-01-02"`, string(b))
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// ScanDate implements pgtype.DateScanner so pgx can scan PostgreSQL date
// columns (OID 1082) into DateOnly. NULL values zero the time and return nil
// so that *DateOnly pointer fields can be set to nil by pgx's NULL handling.
func (d *DateOnly) ScanDate(v pgtype.Date) error {
	if !v.Valid {
		d.Time = time.Time{}
		return nil
	}
	d.Time = v.Time
	return nil
}

func (d DateOnly) String() string { return d.Time.Format("2006-01-02") }

// ClockTime is a time-of-day in "HH:MM:SS" form. It implements
// pgtype.TimeScanner for PostgreSQL time columns (OID 1083).
type ClockTime string

func (t *ClockTime) ScanTime(v pgtype.Time) error {
	if !v.Valid {
		*t = ""
		return nil
	}
	secs := v.Microseconds / 1_000_000
	*t = ClockTime(fmt.Sprintf("%02d:%02d:%02d", secs/3600, secs/60%60, secs%60))
	return nil
}

/* ─── Identity ───────────────────────────────────────────────────────── */

// user maps to the users table. AuthToken and Password are hidden from JSON responses.
type user struct {
	ID        int       `json:"id" db:"id"`
	Username  string    `json:"username" db:"username"`
	Email     string    `json:"email" db:"email"`
	FirstName string    `json:"first_name" db:"first_name"`
	LastName  string    `json:"last_name" db:"last_name"`
	Password  string    `json:"-" db:"password"`
	AuthToken *string   `json:"-" db:"auth_token"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

/* ─── Lakawon ────────────────────────────────────────────────────────── */

// lakawonClass maps to lakawon_classes. Amount is derived from class_type.
type lakawonClass struct {
	ID        int             `json:"id" db:"id"`
	UserID    int             `json:"user_id" db:"user_id"`
	Date      DateOnly        `json:"date" db:"date"`
	Time      ClockTime       `json:"time" db:"time"`
	ClassType string          `json:"class_type" db:"class_type"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	Cancelled bool            `json:"cancelled" db:"cancelled"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// lakawonDeduction maps to lakawon_deductions. ClassID is set when the
// deduction was created by cancelling a class.
type lakawonDeduction struct {
	ID          int             `json:"id" db:"id"`
	UserID      int             `json:"user_id" db:"user_id"`
	ClassID     *int            `json:"class_id" db:"class_id"`
	Date        DateOnly        `json:"date" db:"date"`
	Time        ClockTime       `json:"time" db:"time"`
	StudentName string          `json:"student_name" db:"student_name"`
	Reason      string          `json:"reason" db:"reason"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

/* ─── Salary bookkeeping ─────────────────────────────────────────────── */

// moneyEntry maps to the incomes and expenses tables, which share a shape.
type moneyEntry struct {
	ID          int             `json:"id" db:"id"`
	UserID      int             `json:"user_id" db:"user_id"`
	Description string          `json:"description" db:"description"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	Currency    string          `json:"currency" db:"currency"`
	Date        DateOnly        `json:"date" db:"date"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// obligation maps to the debts and loans tables.
type obligation struct {
	ID           int             `json:"id" db:"id"`
	UserID       int             `json:"user_id" db:"user_id"`
	Person       string          `json:"person" db:"person"`
	Description  string          `json:"description" db:"description"`
	Amount       decimal.Decimal `json:"amount" db:"amount"`
	Currency     string          `json:"currency" db:"currency"`
	Date         DateOnly        `json:"date" db:"date"`
	Returned     bool            `json:"returned" db:"returned"`
	ReturnedDate *DateOnly       `json:"returned_date" db:"returned_date"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}

// savings maps to the single-row-per-user savings table.
type savings struct {
	UserID    int             `json:"user_id" db:"user_id"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	Currency  string          `json:"currency" db:"currency"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

/* ─── Productivity ───────────────────────────────────────────────────── */

// taskRow maps to the tasks table (templates and instances).
type taskRow struct {
	ID            int        `db:"id"`
	UserID        int        `db:"user_id"`
	Title         string     `db:"title"`
	ScheduledTime *ClockTime `db:"scheduled_time"`
	Date          DateOnly   `db:"date"`
	Completed     bool       `db:"completed"`
	CompletedAt   *time.Time `db:"completed_at"`
	Priority      string     `db:"priority"`
	Recurrence    string     `db:"recurrence"`
	IsTemplate    bool       `db:"is_template"`
	TemplateID    *int       `db:"template_id"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
}

// taskResponse is the JSON shape of a task instance.
type taskResponse struct {
	ID            int        `json:"id"`
	Title         string     `json:"title"`
	ScheduledTime *string    `json:"scheduled_time"`
	Date          DateOnly   `json:"date"`
	Completed     bool       `json:"completed"`
	CompletedAt   *time.Time `json:"completed_at"`
	Priority      string     `json:"priority"`
	Recurrence    string     `json:"recurrence"`
	TemplateID    *int       `json:"template_id"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// plan is a yearly or monthly plan item. Month is nil for yearly plans.
type plan struct {
	ID        int       `json:"id" db:"id"`
	UserID    int       `json:"user_id" db:"user_id"`
	Title     string    `json:"title" db:"title"`
	Year      int       `json:"year" db:"year"`
	Month     *int      `json:"month,omitempty" db:"month"`
	Completed bool      `json:"completed" db:"completed"`
	Order     int       `json:"order" db:"sort_order"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

/* ─── Nutrition ──────────────────────────────────────────────────────── */

// nutritionProfile maps to nutrition_profiles (one row per user). The
// validate tags apply to the merged row before it is written.
type nutritionProfile struct {
	UserID             int       `json:"-" db:"user_id"`
	Sex                string    `json:"sex" db:"sex" validate:"required,oneof=male female"`
	BirthDate          *DateOnly `json:"birth_date" db:"birth_date" validate:"required_without=AgeYears"`
	AgeYears           *int      `json:"age_years" db:"age_years" validate:"omitempty,gte=10,lte=120"`
	HeightCM           float64   `json:"height_cm" db:"height_cm" validate:"gt=0,lte=300"`
	WeightKG           float64   `json:"weight_kg" db:"weight_kg" validate:"gt=0,lte=500"`
	ActivityLevel      string    `json:"activity_level" db:"activity_level" validate:"required,oneof=sedentary light moderate active athlete custom"`
	ActivityMultiplier *float64  `json:"activity_multiplier" db:"activity_multiplier" validate:"required_if=ActivityLevel custom,omitempty,gte=1.1,lte=2.5"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}

// nutritionGoal maps to nutrition_goals (one row per user). Nil per-kg
// values fall back to the goal type's defaults.
type nutritionGoal struct {
	UserID                   int       `json:"-" db:"user_id"`
	GoalType                 string    `json:"goal_type" db:"goal_type" validate:"oneof=fat_loss maintenance recomp lean_bulk bulk"`
	CalorieAdjustmentPercent float64   `json:"calorie_adjustment_percent" db:"calorie_adjustment_percent" validate:"gte=-40,lte=40"`
	AdjustmentCustomized     bool      `json:"adjustment_customized" db:"adjustment_customized"`
	ProteinGPerKG            *float64  `json:"protein_g_per_kg" db:"protein_g_per_kg" validate:"omitempty,gte=0.8,lte=3"`
	FatGPerKG                *float64  `json:"fat_g_per_kg" db:"fat_g_per_kg" validate:"omitempty,gte=0.3,lte=2"`
	UpdatedAt                time.Time `json:"updated_at" db:"updated_at"`
}

// dailyMacroTarget maps to daily_macro_targets, one snapshot per user per day.
type dailyMacroTarget struct {
	ID                       int       `db:"id"`
	UserID                   int       `db:"user_id"`
	Date                     DateOnly  `db:"date"`
	Calories                 int       `db:"calories"`
	ProteinG                 int       `db:"protein_g"`
	CarbsG                   int       `db:"carbs_g"`
	FatG                     int       `db:"fat_g"`
	BMR                      int       `db:"bmr"`
	TDEE                     int       `db:"tdee"`
	ActivityMultiplier       float64   `db:"activity_multiplier"`
	CalorieAdjustmentPercent float64   `db:"calorie_adjustment_percent"`
	AlgorithmVersion         string    `db:"algorithm_version"`
	CreatedAt                time.Time `db:"created_at"`
	UpdatedAt                time.Time `db:"updated_at"`
}

// targetsResponse is the JSON shape of a daily target snapshot.
type targetsResponse struct {
	Date    DateOnly `json:"date"`
	Targets struct {
		Calories int `json:"calories"`
		ProteinG int `json:"protein_g"`
		CarbsG   int `json:"carbs_g"`
		FatG     int `json:"fat_g"`
	} `json:"targets"`
	Calculation struct {
		BMR                      int     `json:"bmr"`
		TDEE                     int     `json:"tdee"`
		ActivityMultiplier       float64 `json:"activity_multiplier"`
		CalorieAdjustmentPercent float64 `json:"calorie_adjustment_percent"`
		AlgorithmVersion         string  `json:"algorithm_version"`
	} `json:"calculation"`
}

// foodItem maps to food_items. Macros are per single serving.
type foodItem struct {
	ID           int       `json:"id" db:"id"`
	UserID       int       `json:"user_id" db:"user_id"`
	Name         string    `json:"name" db:"name"`
	CaloriesKcal int       `json:"calories_kcal" db:"calories_kcal"`
	ProteinG     float64   `json:"protein_g" db:"protein_g"`
	CarbsG       float64   `json:"carbs_g" db:"carbs_g"`
	FatG         float64   `json:"fat_g" db:"fat_g"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// foodLogRow is one food_log_entries row joined with its food item.
// Used only for scanning; the response nests the food.
type foodLogRow struct {
	ID           int             `db:"id"`
	Date         DateOnly        `db:"date"`
	Servings     decimal.Decimal `db:"servings"`
	CreatedAt    time.Time       `db:"created_at"`
	FoodID       int             `db:"food_id"`
	Name         string          `db:"name"`
	CaloriesKcal int             `db:"calories_kcal"`
	ProteinG     float64         `db:"protein_g"`
	CarbsG       float64         `db:"carbs_g"`
	FatG         float64         `db:"fat_g"`
}

type foodLogFood struct {
	ID           int     `json:"id"`
	Name         string  `json:"name"`
	CaloriesKcal int     `json:"calories_kcal"`
	ProteinG     float64 `json:"protein_g"`
	CarbsG       float64 `json:"carbs_g"`
	FatG         float64 `json:"fat_g"`
}

type foodLogEntry struct {
	ID        int             `json:"id"`
	Date      DateOnly        `json:"date"`
	Servings  decimal.Decimal `json:"servings"`
	Food      foodLogFood     `json:"food"`
	CreatedAt time.Time       `json:"created_at"`
}

// weekDaySummary is one day's entry in the GET /nutrition/log/week-summary
// response. CalorieTarget is nil when no snapshot exists for the day.
type weekDaySummary struct {
	Date          DateOnly `json:"date"`
	Calories      int      `json:"calories"`
	ProteinG      float64  `json:"protein_g"`
	CarbsG        float64  `json:"carbs_g"`
	FatG          float64  `json:"fat_g"`
	CalorieTarget *int     `json:"calorie_target"`
	HasData       bool     `json:"has_data"`
}

// weightCheckIn maps to weight_checkins (one row per user per date).
type weightCheckIn struct {
	ID        int       `json:"id" db:"id"`
	UserID    int       `json:"user_id" db:"user_id"`
	Date      DateOnly  `json:"date" db:"date"`
	WeightKG  float64   `json:"weight_kg" db:"weight_kg"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
