package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"lg/life-dashboard-api/internal/nutrition"
)

/* ─── Foods ──────────────────────────────────────────────────────────── */

// listFoods returns the user's foods by name.
// GET /api/nutrition/foods?q= (optional case-insensitive name filter).
func (h *Handler) listFoods(c *gin.Context) {
	userID := c.GetInt("user_id")
	foods, err := queryMany[foodItem](h.db, c,
		`SELECT * FROM food_items
		 WHERE user_id = @userID AND (@q = '' OR name ILIKE '%' || @q || '%')
		 ORDER BY lower(name), id`,
		pgx.NamedArgs{"userID": userID, "q": c.Query("q")})
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to fetch foods")
		return
	}
	c.JSON(http.StatusOK, foods)
}

type foodRequest struct {
	Name         string  `json:"name" validate:"required,max=200"`
	CaloriesKcal int     `json:"calories_kcal" validate:"gte=1,lte=10000"`
	ProteinG     float64 `json:"protein_g" validate:"gte=0,lte=500"`
	CarbsG       float64 `json:"carbs_g" validate:"gte=0,lte=500"`
	FatG         float64 `json:"fat_g" validate:"gte=0,lte=500"`
}

// POST /api/nutrition/foods
func (h *Handler) createFood(c *gin.Context) {
	userID := c.GetInt("user_id")
	var body foodRequest
	if !bindJSON(c, &body) {
		return
	}
	f, err := queryOne[foodItem](h.db, c,
		`INSERT INTO food_items (user_id, name, calories_kcal, protein_g, carbs_g, fat_g)
		 VALUES (@userID, @name, @calories, @protein, @carbs, @fat)
		 RETURNING *`,
		pgx.NamedArgs{
			"userID": userID, "name": body.Name, "calories": body.CaloriesKcal,
			"protein": body.ProteinG, "carbs": body.CarbsG, "fat": body.FatG,
		})
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to create food")
		return
	}
	c.JSON(http.StatusCreated, f)
}

// updateFood replaces a food's name and per-serving values. Past log entries
// reference the food, so their derived totals follow the new values.
// PUT /api/nutrition/foods/:id
func (h *Handler) updateFood(c *gin.Context) {
	userID := c.GetInt("user_id")
	id, ok := paramID(c)
	if !ok {
		return
	}
	var body foodRequest
	if !bindJSON(c, &body) {
		return
	}
	f, err := queryOne[foodItem](h.db, c,
		`UPDATE food_items SET
			name = @name, calories_kcal = @calories, protein_g = @protein,
			carbs_g = @carbs, fat_g = @fat, updated_at = now()
		 WHERE id = @id AND user_id = @userID
		 RETURNING *`,
		pgx.NamedArgs{
			"id": id, "userID": userID, "name": body.Name, "calories": body.CaloriesKcal,
			"protein": body.ProteinG, "carbs": body.CarbsG, "fat": body.FatG,
		})
	if errors.Is(err, pgx.ErrNoRows) {
		apiError(c, http.StatusNotFound, "food not found")
		return
	}
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to update food")
		return
	}
	c.JSON(http.StatusOK, f)
}

/* ─── Food log ───────────────────────────────────────────────────────── */

const foodLogSelect = `SELECT e.id, e.date, e.servings, e.created_at,
		f.id AS food_id, f.name, f.calories_kcal, f.protein_g, f.carbs_g, f.fat_g
	 FROM food_log_entries e
	 JOIN food_items f ON f.id = e.food_item_id`

func (r foodLogRow) entry() foodLogEntry {
	return foodLogEntry{
		ID:       r.ID,
		Date:     r.Date,
		Servings: r.Servings,
		Food: foodLogFood{
			ID:           r.FoodID,
			Name:         r.Name,
			CaloriesKcal: r.CaloriesKcal,
			ProteinG:     r.ProteinG,
			CarbsG:       r.CarbsG,
			FatG:         r.FatG,
		},
		CreatedAt: r.CreatedAt,
	}
}

func (r foodLogRow) logged() nutrition.LoggedFood {
	return nutrition.LoggedFood{
		Servings:     r.Servings,
		CaloriesKcal: r.CaloriesKcal,
		ProteinG:     r.ProteinG,
		CarbsG:       r.CarbsG,
		FatG:         r.FatG,
	}
}

// getFoodLog returns a day's entries with their foods and the derived totals.
// GET /api/nutrition/log?date=YYYY-MM-DD (defaults to today).
func (h *Handler) getFoodLog(c *gin.Context) {
	userID := c.GetInt("user_id")
	date, ok := parseDateParam(c, "date", h.today())
	if !ok {
		return
	}

	rows, err := queryMany[foodLogRow](h.db, c,
		foodLogSelect+` WHERE e.user_id = @userID AND e.date = @date ORDER BY e.created_at, e.id`,
		pgx.NamedArgs{"userID": userID, "date": date.Format("2006-01-02")})
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to fetch food log")
		return
	}

	entries := make([]foodLogEntry, len(rows))
	logged := make([]nutrition.LoggedFood, len(rows))
	for i, r := range rows {
		entries[i] = r.entry()
		logged[i] = r.logged()
	}
	c.JSON(http.StatusOK, gin.H{
		"date":    DateOnly{date},
		"entries": entries,
		"totals":  nutrition.SumDay(logged),
	})
}

// createFoodLogEntry logs servings of one of the user's foods.
// POST /api/nutrition/log {date?, food_id, servings}
func (h *Handler) createFoodLogEntry(c *gin.Context) {
	userID := c.GetInt("user_id")
	var body struct {
		Date     string  `json:"date" validate:"omitempty,isodate"`
		FoodID   int     `json:"food_id" validate:"required,gt=0"`
		Servings float64 `json:"servings" validate:"gt=0,lte=100"`
	}
	if !bindJSON(c, &body) {
		return
	}
	if body.Date == "" {
		body.Date = h.today().Format("2006-01-02")
	}

	var id int
	err := h.db.QueryRow(c,
		`INSERT INTO food_log_entries (user_id, food_item_id, date, servings)
		 SELECT @userID, f.id, @date, @servings
		 FROM food_items f WHERE f.id = @foodID AND f.user_id = @userID
		 RETURNING id`,
		pgx.NamedArgs{
			"userID": userID, "foodID": body.FoodID, "date": body.Date,
			"servings": decimal.NewFromFloat(body.Servings).Round(2),
		}).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		apiError(c, http.StatusNotFound, "food not found")
		return
	}
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to log food")
		return
	}

	row, err := queryOne[foodLogRow](h.db, c, foodLogSelect+" WHERE e.id = @id", pgx.NamedArgs{"id": id})
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to fetch logged food")
		return
	}
	c.JSON(http.StatusCreated, row.entry())
}

// getWeekSummary returns per-day totals for the Mon–Sun week starting at
// week_start, with each day's snapshot calorie target when one exists.
// Days with nothing logged are included with has_data=false.
// GET /api/nutrition/log/week-summary?week_start=YYYY-MM-DD (defaults to the current week).
func (h *Handler) getWeekSummary(c *gin.Context) {
	userID := c.GetInt("user_id")
	weekStart, ok := parseDateParam(c, "week_start", mondayOf(h.today()))
	if !ok {
		return
	}
	days, err := h.weekSummary(c, userID, weekStart)
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to fetch week summary")
		return
	}
	c.JSON(http.StatusOK, gin.H{"week_start": DateOnly{weekStart}, "days": days})
}

func (h *Handler) weekSummary(ctx context.Context, userID int, weekStart time.Time) ([]weekDaySummary, error) {
	args := pgx.NamedArgs{
		"userID": userID,
		"start":  weekStart.Format("2006-01-02"),
		"end":    weekStart.AddDate(0, 0, 6).Format("2006-01-02"),
	}
	rows, err := queryMany[foodLogRow](h.db, ctx,
		foodLogSelect+` WHERE e.user_id = @userID AND e.date BETWEEN @start AND @end`, args)
	if err != nil {
		return nil, err
	}
	targets, err := queryMany[dailyMacroTarget](h.db, ctx,
		"SELECT * FROM daily_macro_targets WHERE user_id = @userID AND date BETWEEN @start AND @end", args)
	if err != nil {
		return nil, err
	}

	logged := make(map[string][]nutrition.LoggedFood)
	for _, r := range rows {
		key := r.Date.String()
		logged[key] = append(logged[key], r.logged())
	}
	calTargets := make(map[string]int, len(targets))
	for _, t := range targets {
		calTargets[t.Date.String()] = t.Calories
	}

	days := make([]weekDaySummary, 7)
	for i := range days {
		d := weekStart.AddDate(0, 0, i)
		key := d.Format("2006-01-02")
		totals := nutrition.SumDay(logged[key])
		days[i] = weekDaySummary{
			Date:     DateOnly{d},
			Calories: totals.Calories,
			ProteinG: totals.ProteinG,
			CarbsG:   totals.CarbsG,
			FatG:     totals.FatG,
			HasData:  len(logged[key]) > 0,
		}
		if cal, ok := calTargets[key]; ok {
			days[i].CalorieTarget = &cal
		}
	}
	return days, nil
}
