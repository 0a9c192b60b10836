package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
)

const defaultCheckInLimit = 20

// listCheckIns returns the most recent weight check-ins, newest first.
// GET /api/nutrition/checkins?limit=N (default 20, max 365).
func (h *Handler) listCheckIns(c *gin.Context) {
	userID := c.GetInt("user_id")
	limit := defaultCheckInLimit
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 365 {
			apiError(c, http.StatusBadRequest, "invalid limit, expected 1-365")
			return
		}
		limit = n
	}

	entries, err := queryMany[weightCheckIn](h.db, c,
		`SELECT * FROM weight_checkins
		 WHERE user_id = @userID
		 ORDER BY date DESC
		 LIMIT @limit`,
		pgx.NamedArgs{"userID": userID, "limit": limit})
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to fetch check-ins")
		return
	}
	c.JSON(http.StatusOK, entries)
}

// upsertCheckIn records the weight for a date.
// POST /api/nutrition/checkins {date?, weight_kg}. The UNIQUE(user_id, date)
// constraint means posting the same date updates in place.
func (h *Handler) upsertCheckIn(c *gin.Context) {
	userID := c.GetInt("user_id")
	var body struct {
		Date     string  `json:"date" validate:"omitempty,isodate"`
		WeightKG float64 `json:"weight_kg" validate:"gte=20,lte=300"`
	}
	if !bindJSON(c, &body) {
		return
	}
	if body.Date == "" {
		body.Date = h.today().Format("2006-01-02")
	}

	entry, err := queryOne[weightCheckIn](h.db, c,
		`INSERT INTO weight_checkins (user_id, date, weight_kg)
		 VALUES (@userID, @date, @weightKG)
		 ON CONFLICT (user_id, date) DO UPDATE
		   SET weight_kg = EXCLUDED.weight_kg, updated_at = now()
		 RETURNING *`,
		pgx.NamedArgs{"userID": userID, "date": body.Date, "weightKG": body.WeightKG})
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to save check-in")
		return
	}
	c.JSON(http.StatusOK, entry)
}

// updateCheckIn changes a check-in's date or weight. Moving it onto a date
// that already has a check-in is a conflict.
// PUT /api/nutrition/checkins/:id
func (h *Handler) updateCheckIn(c *gin.Context) {
	userID := c.GetInt("user_id")
	id, ok := paramID(c)
	if !ok {
		return
	}
	var body struct {
		Date     *string  `json:"date" validate:"omitempty,isodate"`
		WeightKG *float64 `json:"weight_kg" validate:"omitempty,gte=20,lte=300"`
	}
	if !bindJSON(c, &body) {
		return
	}

	entry, err := queryOne[weightCheckIn](h.db, c,
		`UPDATE weight_checkins SET
			date       = COALESCE(@date::date, date),
			weight_kg  = COALESCE(@weightKG::numeric, weight_kg),
			updated_at = now()
		 WHERE id = @id AND user_id = @userID
		 RETURNING *`,
		pgx.NamedArgs{"id": id, "userID": userID, "date": body.Date, "weightKG": body.WeightKG})
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		apiError(c, http.StatusNotFound, "check-in not found")
		return
	case isUniqueViolation(err):
		apiError(c, http.StatusConflict, "a check-in already exists for that date")
		return
	case err != nil:
		apiError(c, http.StatusInternalServerError, "failed to update check-in")
		return
	}
	c.JSON(http.StatusOK, entry)
}
