package main

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
)

// planKind describes one of the two plan tables.
type planKind struct {
	path     string // route segment under /api/productivity
	table    string
	hasMonth bool
}

var (
	yearlyPlans  = planKind{path: "yearly-plans", table: "yearly_plans"}
	monthlyPlans = planKind{path: "monthly-plans", table: "monthly_plans", hasMonth: true}
)

// selectSQL selects plan rows; yearly plans report a NULL month.
func (k planKind) selectSQL() string {
	if k.hasMonth {
		return "SELECT id, user_id, title, year, month, completed, sort_order, created_at, updated_at FROM " + k.table
	}
	return "SELECT id, user_id, title, year, NULL::int AS month, completed, sort_order, created_at, updated_at FROM " + k.table
}

func (k planKind) returning() string {
	if k.hasMonth {
		return " RETURNING id, user_id, title, year, month, completed, sort_order, created_at, updated_at"
	}
	return " RETURNING id, user_id, title, year, NULL::int AS month, completed, sort_order, created_at, updated_at"
}

// listPlans returns plans ordered by their position.
// GET /api/productivity/{yearly,monthly}-plans?year=&month= (filters optional).
func (h *Handler) listPlans(k planKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetInt("user_id")
		year, err := optionalInt(c, "year", 1900, 9999)
		if err != nil {
			apiError(c, http.StatusBadRequest, "invalid year")
			return
		}
		where := " WHERE user_id = @userID AND (@year::int IS NULL OR year = @year::int)"
		args := pgx.NamedArgs{"userID": userID, "year": year}
		if k.hasMonth {
			month, err := optionalInt(c, "month", 1, 12)
			if err != nil {
				apiError(c, http.StatusBadRequest, "invalid month, expected 1-12")
				return
			}
			where += " AND (@month::int IS NULL OR month = @month::int)"
			args["month"] = month
		}

		plans, err := queryMany[plan](h.db, c, k.selectSQL()+where+" ORDER BY sort_order, id", args)
		if err != nil {
			apiError(c, http.StatusInternalServerError, "failed to fetch plans")
			return
		}
		c.JSON(http.StatusOK, plans)
	}
}

// optionalInt parses an optional integer query parameter within [lo, hi].
func optionalInt(c *gin.Context, name string, lo, hi int) (*int, error) {
	s := c.Query(name)
	if s == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, err
	}
	if n < lo || n > hi {
		return nil, errors.New(name + " out of range")
	}
	return &n, nil
}

type planRequest struct {
	Title     string `json:"title" validate:"required,max=255"`
	Year      int    `json:"year" validate:"gte=1900,lte=9999"`
	Month     *int   `json:"month" validate:"omitempty,gte=1,lte=12"`
	Completed bool   `json:"completed"`
	Order     *int   `json:"order" validate:"omitempty,gte=0"`
}

// createPlan appends a plan. Without an explicit order it goes last.
// POST /api/productivity/{yearly,monthly}-plans
func (h *Handler) createPlan(k planKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetInt("user_id")
		var body planRequest
		if !bindJSON(c, &body) {
			return
		}
		if k.hasMonth && body.Month == nil {
			fieldErrors(c, map[string]string{"month": "this field is required"})
			return
		}

		cols, vals := "user_id, title, year, completed, sort_order", "@userID, @title, @year, @completed, "
		scope := "user_id = @userID AND year = @year"
		if k.hasMonth {
			cols += ", month"
			scope += " AND month = @month"
		}
		vals += "COALESCE(@order::int, (SELECT COALESCE(MAX(sort_order) + 1, 0) FROM " + k.table + " WHERE " + scope + "))"
		if k.hasMonth {
			vals += ", @month"
		}

		p, err := queryOne[plan](h.db, c,
			"INSERT INTO "+k.table+" ("+cols+") VALUES ("+vals+")"+k.returning(),
			pgx.NamedArgs{
				"userID": userID, "title": body.Title, "year": body.Year, "month": body.Month,
				"completed": body.Completed, "order": body.Order,
			})
		if err != nil {
			apiError(c, http.StatusInternalServerError, "failed to create plan")
			return
		}
		c.JSON(http.StatusCreated, p)
	}
}

// PUT /api/productivity/{yearly,monthly}-plans/:id
func (h *Handler) updatePlan(k planKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetInt("user_id")
		id, ok := paramID(c)
		if !ok {
			return
		}
		var body struct {
			Title     *string `json:"title" validate:"omitempty,min=1,max=255"`
			Year      *int    `json:"year" validate:"omitempty,gte=1900,lte=9999"`
			Month     *int    `json:"month" validate:"omitempty,gte=1,lte=12"`
			Completed *bool   `json:"completed"`
			Order     *int    `json:"order" validate:"omitempty,gte=0"`
		}
		if !bindJSON(c, &body) {
			return
		}

		set := `title = COALESCE(@title, title),
			year = COALESCE(@year::int, year),
			completed = COALESCE(@completed::boolean, completed),
			sort_order = COALESCE(@order::int, sort_order),
			updated_at = now()`
		if k.hasMonth {
			set += ", month = COALESCE(@month::int, month)"
		}

		p, err := queryOne[plan](h.db, c,
			"UPDATE "+k.table+" SET "+set+" WHERE id = @id AND user_id = @userID"+k.returning(),
			pgx.NamedArgs{
				"id": id, "userID": userID, "title": body.Title, "year": body.Year, "month": body.Month,
				"completed": body.Completed, "order": body.Order,
			})
		if errors.Is(err, pgx.ErrNoRows) {
			apiError(c, http.StatusNotFound, "plan not found")
			return
		}
		if err != nil {
			apiError(c, http.StatusInternalServerError, "failed to update plan")
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

/* ─── Stats ──────────────────────────────────────────────────────────── */

// mondayOf returns the Monday on or before d.
func mondayOf(d time.Time) time.Time {
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

func percent(done, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(done) * 100 / float64(total)))
}

// getProductivityStats returns completion rates for the current week's tasks
// and for each month's monthly plans in year.
// GET /api/productivity/stats?year= (defaults to the current year).
func (h *Handler) getProductivityStats(c *gin.Context) {
	userID := c.GetInt("user_id")
	today := h.today()
	year := today.Year()
	if y, err := optionalInt(c, "year", 1900, 9999); err != nil {
		apiError(c, http.StatusBadRequest, "invalid year")
		return
	} else if y != nil {
		year = *y
	}

	monday := mondayOf(today)
	sunday := monday.AddDate(0, 0, 6)
	type dayCount struct {
		Date  DateOnly `db:"date"`
		Total int      `db:"total"`
		Done  int      `db:"done"`
	}
	days, err := queryMany[dayCount](h.db, c,
		`SELECT date, count(*)::int AS total, count(*) FILTER (WHERE completed)::int AS done
		 FROM tasks
		 WHERE user_id = @userID AND NOT is_template AND date BETWEEN @start AND @end
		 GROUP BY date`,
		pgx.NamedArgs{"userID": userID, "start": monday.Format("2006-01-02"), "end": sunday.Format("2006-01-02")})
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to compute stats")
		return
	}
	byDate := make(map[string]dayCount, len(days))
	for _, d := range days {
		byDate[d.Date.String()] = d
	}

	weeklyDates := make([]string, 7)
	weeklyData := make([]int, 7)
	for i := range 7 {
		key := monday.AddDate(0, 0, i).Format("2006-01-02")
		weeklyDates[i] = key
		d := byDate[key]
		weeklyData[i] = percent(d.Done, d.Total)
	}

	type monthCount struct {
		Month int `db:"month"`
		Total int `db:"total"`
		Done  int `db:"done"`
	}
	months, err := queryMany[monthCount](h.db, c,
		`SELECT month, count(*)::int AS total, count(*) FILTER (WHERE completed)::int AS done
		 FROM monthly_plans
		 WHERE user_id = @userID AND year = @year
		 GROUP BY month`,
		pgx.NamedArgs{"userID": userID, "year": year})
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to compute stats")
		return
	}
	monthlyLabels := make([]string, 12)
	monthlyData := make([]int, 12)
	for i := range 12 {
		monthlyLabels[i] = time.Month(i + 1).String()[:3]
	}
	for _, m := range months {
		if m.Month >= 1 && m.Month <= 12 {
			monthlyData[m.Month-1] = percent(m.Done, m.Total)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"year":           year,
		"weekly_dates":   weeklyDates,
		"weekly_data":    weeklyData,
		"monthly_labels": monthlyLabels,
		"monthly_data":   monthlyData,
	})
}
