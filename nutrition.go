package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"

	"lg/life-dashboard-api/internal/nutrition"
)

var errNoProfile = errors.New("nutrition profile not set")

/* ─── Profile ────────────────────────────────────────────────────────── */

// GET /api/nutrition/profile
func (h *Handler) getProfile(c *gin.Context) {
	userID := c.GetInt("user_id")
	p, err := queryOne[nutritionProfile](h.db, c,
		"SELECT * FROM nutrition_profiles WHERE user_id = @userID",
		pgx.NamedArgs{"userID": userID})
	if errors.Is(err, pgx.ErrNoRows) {
		apiError(c, http.StatusNotFound, "profile not found")
		return
	}
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to fetch profile")
		return
	}
	c.JSON(http.StatusOK, p)
}

// profilePatch uses pointer fields to distinguish "not provided" from zero.
type profilePatch struct {
	Sex                *string  `json:"sex"`
	BirthDate          *string  `json:"birth_date" validate:"omitempty,isodate"`
	AgeYears           *int     `json:"age_years"`
	HeightCM           *float64 `json:"height_cm"`
	WeightKG           *float64 `json:"weight_kg"`
	ActivityLevel      *string  `json:"activity_level"`
	ActivityMultiplier *float64 `json:"activity_multiplier"`
}

// patchProfile merges the provided fields into the stored profile (creating
// it on first use), validates the result, and saves it. The multiplier is only
// kept for the custom activity level.
// PATCH /api/nutrition/profile
func (h *Handler) patchProfile(c *gin.Context) {
	userID := c.GetInt("user_id")
	var body profilePatch
	if !bindJSON(c, &body) {
		return
	}

	p, err := queryOne[nutritionProfile](h.db, c,
		"SELECT * FROM nutrition_profiles WHERE user_id = @userID",
		pgx.NamedArgs{"userID": userID})
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		apiError(c, http.StatusInternalServerError, "failed to fetch profile")
		return
	}
	p.UserID = userID

	if body.Sex != nil {
		p.Sex = *body.Sex
	}
	if body.BirthDate != nil {
		d, _ := time.Parse("2006-01-02", *body.BirthDate)
		p.BirthDate = &DateOnly{d}
	}
	if body.AgeYears != nil {
		p.AgeYears = body.AgeYears
	}
	if body.HeightCM != nil {
		p.HeightCM = *body.HeightCM
	}
	if body.WeightKG != nil {
		p.WeightKG = *body.WeightKG
	}
	if body.ActivityLevel != nil {
		p.ActivityLevel = *body.ActivityLevel
	}
	if body.ActivityMultiplier != nil {
		p.ActivityMultiplier = body.ActivityMultiplier
	}
	if p.ActivityLevel != string(nutrition.Custom) {
		p.ActivityMultiplier = nil
	}
	if !validateStruct(c, &p) {
		return
	}

	var birth *string
	if p.BirthDate != nil {
		s := p.BirthDate.String()
		birth = &s
	}
	saved, err := queryOne[nutritionProfile](h.db, c,
		`INSERT INTO nutrition_profiles
			(user_id, sex, birth_date, age_years, height_cm, weight_kg, activity_level, activity_multiplier, updated_at)
		 VALUES (@userID, @sex, @birthDate::date, @ageYears, @heightCM, @weightKG, @activityLevel, @activityMultiplier, now())
		 ON CONFLICT (user_id) DO UPDATE SET
			sex                 = EXCLUDED.sex,
			birth_date          = EXCLUDED.birth_date,
			age_years           = EXCLUDED.age_years,
			height_cm           = EXCLUDED.height_cm,
			weight_kg           = EXCLUDED.weight_kg,
			activity_level      = EXCLUDED.activity_level,
			activity_multiplier = EXCLUDED.activity_multiplier,
			updated_at          = now()
		 RETURNING *`,
		pgx.NamedArgs{
			"userID": userID, "sex": p.Sex, "birthDate": birth, "ageYears": p.AgeYears,
			"heightCM": p.HeightCM, "weightKG": p.WeightKG,
			"activityLevel": p.ActivityLevel, "activityMultiplier": p.ActivityMultiplier,
		})
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to save profile")
		return
	}
	c.JSON(http.StatusOK, saved)
}

/* ─── Goal ───────────────────────────────────────────────────────────── */

// loadGoal returns the stored goal, or the maintenance default when unset.
func (h *Handler) loadGoal(ctx context.Context, userID int) (nutritionGoal, error) {
	g, err := queryOne[nutritionGoal](h.db, ctx,
		"SELECT * FROM nutrition_goals WHERE user_id = @userID",
		pgx.NamedArgs{"userID": userID})
	if errors.Is(err, pgx.ErrNoRows) {
		return nutritionGoal{UserID: userID, GoalType: string(nutrition.Maintenance)}, nil
	}
	return g, err
}

// GET /api/nutrition/goal
func (h *Handler) getGoal(c *gin.Context) {
	g, err := h.loadGoal(c, c.GetInt("user_id"))
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to fetch goal")
		return
	}
	c.JSON(http.StatusOK, g)
}

// patchGoal merges and saves the goal. Setting calorie_adjustment_percent
// marks it customized; adjustment_customized=false hands the percent back to
// the goal type's default.
// PATCH /api/nutrition/goal
func (h *Handler) patchGoal(c *gin.Context) {
	userID := c.GetInt("user_id")
	var body struct {
		GoalType                 *string  `json:"goal_type"`
		CalorieAdjustmentPercent *float64 `json:"calorie_adjustment_percent"`
		AdjustmentCustomized     *bool    `json:"adjustment_customized"`
		ProteinGPerKG            *float64 `json:"protein_g_per_kg"`
		FatGPerKG                *float64 `json:"fat_g_per_kg"`
	}
	if !bindJSON(c, &body) {
		return
	}

	g, err := h.loadGoal(c, userID)
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to fetch goal")
		return
	}
	if body.GoalType != nil {
		g.GoalType = *body.GoalType
	}
	if body.CalorieAdjustmentPercent != nil {
		g.CalorieAdjustmentPercent = *body.CalorieAdjustmentPercent
		g.AdjustmentCustomized = true
	}
	if body.AdjustmentCustomized != nil {
		g.AdjustmentCustomized = *body.AdjustmentCustomized
	}
	if body.ProteinGPerKG != nil {
		g.ProteinGPerKG = body.ProteinGPerKG
	}
	if body.FatGPerKG != nil {
		g.FatGPerKG = body.FatGPerKG
	}
	if !validateStruct(c, &g) {
		return
	}

	saved, err := h.saveGoal(c, h.db, g)
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to save goal")
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (h *Handler) saveGoal(ctx context.Context, q querier, g nutritionGoal) (nutritionGoal, error) {
	return queryOne[nutritionGoal](q, ctx,
		`INSERT INTO nutrition_goals
			(user_id, goal_type, calorie_adjustment_percent, adjustment_customized, protein_g_per_kg, fat_g_per_kg, updated_at)
		 VALUES (@userID, @goalType, @percent, @customized, @protein, @fat, now())
		 ON CONFLICT (user_id) DO UPDATE SET
			goal_type                  = EXCLUDED.goal_type,
			calorie_adjustment_percent = EXCLUDED.calorie_adjustment_percent,
			adjustment_customized      = EXCLUDED.adjustment_customized,
			protein_g_per_kg           = EXCLUDED.protein_g_per_kg,
			fat_g_per_kg               = EXCLUDED.fat_g_per_kg,
			updated_at                 = now()
		 RETURNING *`,
		pgx.NamedArgs{
			"userID": g.UserID, "goalType": g.GoalType, "percent": g.CalorieAdjustmentPercent,
			"customized": g.AdjustmentCustomized, "protein": g.ProteinGPerKG, "fat": g.FatGPerKG,
		})
}

/* ─── Targets ────────────────────────────────────────────────────────── */

func (p nutritionProfile) toProfile() nutrition.Profile {
	out := nutrition.Profile{
		Sex:                nutrition.Sex(p.Sex),
		AgeYears:           p.AgeYears,
		HeightCM:           p.HeightCM,
		WeightKG:           p.WeightKG,
		ActivityLevel:      nutrition.ActivityLevel(p.ActivityLevel),
		ActivityMultiplier: p.ActivityMultiplier,
	}
	if p.BirthDate != nil {
		t := p.BirthDate.Time
		out.BirthDate = &t
	}
	return out
}

func (g nutritionGoal) toGoal() nutrition.Goal {
	out := nutrition.Goal{
		Type:                     nutrition.GoalType(g.GoalType),
		CalorieAdjustmentPercent: g.CalorieAdjustmentPercent,
		AdjustmentCustomized:     g.AdjustmentCustomized,
	}
	if g.ProteinGPerKG != nil {
		out.ProteinGPerKG = *g.ProteinGPerKG
	}
	if g.FatGPerKG != nil {
		out.FatGPerKG = *g.FatGPerKG
	}
	return out
}

func (t dailyMacroTarget) response() targetsResponse {
	var r targetsResponse
	r.Date = t.Date
	r.Targets.Calories = t.Calories
	r.Targets.ProteinG = t.ProteinG
	r.Targets.CarbsG = t.CarbsG
	r.Targets.FatG = t.FatG
	r.Calculation.BMR = t.BMR
	r.Calculation.TDEE = t.TDEE
	r.Calculation.ActivityMultiplier = t.ActivityMultiplier
	r.Calculation.CalorieAdjustmentPercent = t.CalorieAdjustmentPercent
	r.Calculation.AlgorithmVersion = t.AlgorithmVersion
	return r
}

// computeTargets computes date's targets from the current profile and goal
// and stores them as that date's snapshot.
func (h *Handler) computeTargets(ctx context.Context, userID int, date time.Time) (dailyMacroTarget, error) {
	p, err := queryOne[nutritionProfile](h.db, ctx,
		"SELECT * FROM nutrition_profiles WHERE user_id = @userID",
		pgx.NamedArgs{"userID": userID})
	if errors.Is(err, pgx.ErrNoRows) {
		return dailyMacroTarget{}, errNoProfile
	}
	if err != nil {
		return dailyMacroTarget{}, err
	}
	g, err := h.loadGoal(ctx, userID)
	if err != nil {
		return dailyMacroTarget{}, err
	}

	t, err := nutrition.ComputeTargets(p.toProfile(), g.toGoal(), date)
	if err != nil {
		return dailyMacroTarget{}, err
	}
	return queryOne[dailyMacroTarget](h.db, ctx,
		`INSERT INTO daily_macro_targets
			(user_id, date, calories, protein_g, carbs_g, fat_g, bmr, tdee,
			 activity_multiplier, calorie_adjustment_percent, algorithm_version)
		 VALUES (@userID, @date, @calories, @protein, @carbs, @fat, @bmr, @tdee,
			 @multiplier, @percent, @version)
		 ON CONFLICT (user_id, date) DO UPDATE SET
			calories                   = EXCLUDED.calories,
			protein_g                  = EXCLUDED.protein_g,
			carbs_g                    = EXCLUDED.carbs_g,
			fat_g                      = EXCLUDED.fat_g,
			bmr                        = EXCLUDED.bmr,
			tdee                       = EXCLUDED.tdee,
			activity_multiplier        = EXCLUDED.activity_multiplier,
			calorie_adjustment_percent = EXCLUDED.calorie_adjustment_percent,
			algorithm_version          = EXCLUDED.algorithm_version,
			updated_at                 = now()
		 RETURNING *`,
		pgx.NamedArgs{
			"userID": userID, "date": date.Format("2006-01-02"),
			"calories": t.Calories, "protein": t.ProteinG, "carbs": t.CarbsG, "fat": t.FatG,
			"bmr": t.BMR, "tdee": t.TDEE, "multiplier": t.ActivityMultiplier,
			"percent": t.EffectiveAdjustmentPercent, "version": t.AlgorithmVersion,
		})
}

// targetsError writes the response for a computeTargets failure.
func targetsError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errNoProfile):
		apiError(c, http.StatusUnprocessableEntity, "nutrition profile is not set")
	case errors.Is(err, nutrition.ErrInvalidProfile):
		apiError(c, http.StatusUnprocessableEntity, err.Error())
	default:
		log.Printf("[targets] %v", err)
		apiError(c, http.StatusInternalServerError, "failed to compute targets")
	}
}

// getTargets returns the day's targets. Today and future dates are computed
// and snapshotted; past dates return the stored snapshot, which never changes.
// GET /api/nutrition/targets?date=YYYY-MM-DD (defaults to today).
func (h *Handler) getTargets(c *gin.Context) {
	userID := c.GetInt("user_id")
	today := h.today()
	date, ok := parseDateParam(c, "date", today)
	if !ok {
		return
	}

	if date.Before(today) {
		t, err := queryOne[dailyMacroTarget](h.db, c,
			"SELECT * FROM daily_macro_targets WHERE user_id = @userID AND date = @date",
			pgx.NamedArgs{"userID": userID, "date": date.Format("2006-01-02")})
		if errors.Is(err, pgx.ErrNoRows) {
			apiError(c, http.StatusNotFound, "no targets recorded for that date")
			return
		}
		if err != nil {
			apiError(c, http.StatusInternalServerError, "failed to fetch targets")
			return
		}
		c.JSON(http.StatusOK, t.response())
		return
	}

	t, err := h.computeTargets(c, userID, date)
	if err != nil {
		targetsError(c, err)
		return
	}
	c.JSON(http.StatusOK, t.response())
}

// recomputeTargets recomputes and overwrites the snapshot for any date.
// POST /api/nutrition/targets/recompute {date?}
func (h *Handler) recomputeTargets(c *gin.Context) {
	userID := c.GetInt("user_id")
	var body struct {
		Date string `json:"date" validate:"omitempty,isodate"`
	}
	if !bindOptionalJSON(c, &body) {
		return
	}
	date := h.today()
	if body.Date != "" {
		date, _ = time.Parse("2006-01-02", body.Date)
	}

	t, err := h.computeTargets(c, userID, date)
	if err != nil {
		targetsError(c, err)
		return
	}
	c.JSON(http.StatusOK, t.response())
}

/* ─── Auto-adjust ────────────────────────────────────────────────────── */

// autoAdjust recommends a new calorie adjustment from the trailing weight
// trend and, unless apply is false, saves it and refreshes today's targets.
// POST /api/nutrition/auto-adjust {apply?}
func (h *Handler) autoAdjust(c *gin.Context) {
	userID := c.GetInt("user_id")
	var body struct {
		Apply *bool `json:"apply"`
	}
	if !bindOptionalJSON(c, &body) {
		return
	}
	apply := body.Apply == nil || *body.Apply

	today := h.today()
	rows, err := queryMany[weightCheckIn](h.db, c,
		`SELECT * FROM weight_checkins
		 WHERE user_id = @userID AND date BETWEEN @start AND @end
		 ORDER BY date`,
		pgx.NamedArgs{
			"userID": userID,
			"start":  today.AddDate(0, 0, -(nutrition.AdjustWindowDays - 1)).Format("2006-01-02"),
			"end":    today.Format("2006-01-02"),
		})
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to load check-ins")
		return
	}
	checkIns := make([]nutrition.CheckIn, len(rows))
	for i, r := range rows {
		checkIns[i] = nutrition.CheckIn{Date: r.Date.Time, WeightKG: r.WeightKG}
	}

	g, err := h.loadGoal(c, userID)
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to fetch goal")
		return
	}
	adj, err := nutrition.Recommend(checkIns, g.toGoal())
	if errors.Is(err, nutrition.ErrInsufficientData) {
		apiError(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to compute adjustment")
		return
	}

	resp := gin.H{
		"applied":                   false,
		"previous_percent":          adj.PreviousPercent,
		"recommended_delta_percent": adj.RecommendedDeltaPercent,
		"new_percent":               adj.NewPercent,
		"reason":                    adj.Reason,
		"trend":                     adj.Trend,
	}
	if !apply {
		c.JSON(http.StatusOK, resp)
		return
	}

	g.CalorieAdjustmentPercent = adj.NewPercent
	g.AdjustmentCustomized = true
	if _, err := h.saveGoal(c, h.db, g); err != nil {
		apiError(c, http.StatusInternalServerError, "failed to save goal")
		return
	}
	resp["applied"] = true

	t, err := h.computeTargets(c, userID, today)
	switch {
	case err == nil:
		resp["targets"] = t.response()
	case errors.Is(err, errNoProfile), errors.Is(err, nutrition.ErrInvalidProfile):
		// The goal is saved; targets follow once the profile is complete.
	default:
		log.Printf("[autoAdjust] refresh targets for user %d: %v", userID, err)
	}
	c.JSON(http.StatusOK, resp)
}

// bindOptionalJSON is bindJSON for endpoints whose body may be omitted.
func bindOptionalJSON(c *gin.Context, dst any) bool {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return validateStruct(c, dst)
	}
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return false
	}
	return validateStruct(c, dst)
}
