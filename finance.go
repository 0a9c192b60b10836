package main

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"lg/life-dashboard-api/internal/ledger"
)

// Handlers in this file are shared by tables with the same shape; table is
// always one of the fixed names registered in registerRoutes.

/* ─── Incomes and expenses ───────────────────────────────────────────── */

// GET /api/salary/{incomes,expenses}?month=YYYY-MM (month optional).
func (h *Handler) listEntries(table string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetInt("user_id")
		start, end, ok := parseMonthFilter(c)
		if !ok {
			return
		}
		entries, err := queryMany[moneyEntry](h.db, c,
			`SELECT * FROM `+table+`
			 WHERE user_id = @userID
			   AND (@start = '' OR date >= NULLIF(@start, '')::date)
			   AND (@end = '' OR date <= NULLIF(@end, '')::date)
			 ORDER BY date DESC, id DESC`,
			pgx.NamedArgs{"userID": userID, "start": start, "end": end})
		if err != nil {
			apiError(c, http.StatusInternalServerError, "failed to fetch "+table)
			return
		}
		c.JSON(http.StatusOK, entries)
	}
}

type entryRequest struct {
	Description string          `json:"description" validate:"required,max=255"`
	Amount      decimal.Decimal `json:"amount" validate:"gt=0"`
	Date        string          `json:"date" validate:"required,isodate"`
}

// POST /api/salary/{incomes,expenses}
func (h *Handler) createEntry(table string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetInt("user_id")
		var body entryRequest
		if !bindJSON(c, &body) {
			return
		}
		e, err := queryOne[moneyEntry](h.db, c,
			`INSERT INTO `+table+` (user_id, description, amount, currency, date)
			 VALUES (@userID, @description, @amount, @currency, @date)
			 RETURNING *`,
			pgx.NamedArgs{
				"userID": userID, "description": body.Description,
				"amount": body.Amount.Round(2), "currency": ledger.Currency, "date": body.Date,
			})
		if err != nil {
			apiError(c, http.StatusInternalServerError, "failed to create entry")
			return
		}
		c.JSON(http.StatusCreated, e)
	}
}

// PUT /api/salary/{incomes,expenses}/:id
func (h *Handler) updateEntry(table string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetInt("user_id")
		id, ok := paramID(c)
		if !ok {
			return
		}
		var body struct {
			Description *string          `json:"description" validate:"omitempty,min=1,max=255"`
			Amount      *decimal.Decimal `json:"amount" validate:"omitempty,gt=0"`
			Date        *string          `json:"date" validate:"omitempty,isodate"`
		}
		if !bindJSON(c, &body) {
			return
		}
		var amount *decimal.Decimal
		if body.Amount != nil {
			a := body.Amount.Round(2)
			amount = &a
		}
		e, err := queryOne[moneyEntry](h.db, c,
			`UPDATE `+table+` SET
				description = COALESCE(@description, description),
				amount      = COALESCE(@amount::numeric, amount),
				date        = COALESCE(@date::date, date),
				updated_at  = now()
			 WHERE id = @id AND user_id = @userID
			 RETURNING *`,
			pgx.NamedArgs{"id": id, "userID": userID, "description": body.Description, "amount": amount, "date": body.Date})
		if errors.Is(err, pgx.ErrNoRows) {
			apiError(c, http.StatusNotFound, "entry not found")
			return
		}
		if err != nil {
			apiError(c, http.StatusInternalServerError, "failed to update entry")
			return
		}
		c.JSON(http.StatusOK, e)
	}
}

/* ─── Debts and loans ────────────────────────────────────────────────── */

// GET /api/salary/{debts,loans}?returned=true|false (filter optional).
func (h *Handler) listObligations(table string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetInt("user_id")
		returned := c.Query("returned")
		if returned != "" && returned != "true" && returned != "false" {
			apiError(c, http.StatusBadRequest, "invalid returned, expected true or false")
			return
		}
		obs, err := queryMany[obligation](h.db, c,
			`SELECT * FROM `+table+`
			 WHERE user_id = @userID AND (@returned = '' OR returned = (NULLIF(@returned, ''))::boolean)
			 ORDER BY returned, date DESC, id DESC`,
			pgx.NamedArgs{"userID": userID, "returned": returned})
		if err != nil {
			apiError(c, http.StatusInternalServerError, "failed to fetch "+table)
			return
		}
		c.JSON(http.StatusOK, obs)
	}
}

type obligationRequest struct {
	Person       string          `json:"person" validate:"required,max=200"`
	Description  string          `json:"description" validate:"max=255"`
	Amount       decimal.Decimal `json:"amount" validate:"gt=0"`
	Date         string          `json:"date" validate:"required,isodate"`
	Returned     bool            `json:"returned"`
	ReturnedDate string          `json:"returned_date" validate:"omitempty,isodate"`
}

// returnedDate is the stored returned_date: nil while outstanding, the given
// date (or today) once returned.
func (h *Handler) returnedDate(returned bool, given string) *string {
	if !returned {
		return nil
	}
	if given == "" {
		given = h.today().Format("2006-01-02")
	}
	return &given
}

// POST /api/salary/{debts,loans}
func (h *Handler) createObligation(table string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetInt("user_id")
		var body obligationRequest
		if !bindJSON(c, &body) {
			return
		}
		o, err := queryOne[obligation](h.db, c,
			`INSERT INTO `+table+` (user_id, person, description, amount, currency, date, returned, returned_date)
			 VALUES (@userID, @person, @description, @amount, @currency, @date, @returned, @returnedDate::date)
			 RETURNING *`,
			pgx.NamedArgs{
				"userID": userID, "person": body.Person, "description": body.Description,
				"amount": body.Amount.Round(2), "currency": ledger.Currency, "date": body.Date,
				"returned": body.Returned, "returnedDate": h.returnedDate(body.Returned, body.ReturnedDate),
			})
		if err != nil {
			apiError(c, http.StatusInternalServerError, "failed to create entry")
			return
		}
		c.JSON(http.StatusCreated, o)
	}
}

// updateObligation partially updates a debt or loan. Toggling returned sets
// or clears returned_date.
// PUT /api/salary/{debts,loans}/:id
func (h *Handler) updateObligation(table string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetInt("user_id")
		id, ok := paramID(c)
		if !ok {
			return
		}
		var body struct {
			Person       *string          `json:"person" validate:"omitempty,min=1,max=200"`
			Description  *string          `json:"description" validate:"omitempty,max=255"`
			Amount       *decimal.Decimal `json:"amount" validate:"omitempty,gt=0"`
			Date         *string          `json:"date" validate:"omitempty,isodate"`
			Returned     *bool            `json:"returned"`
			ReturnedDate string           `json:"returned_date" validate:"omitempty,isodate"`
		}
		if !bindJSON(c, &body) {
			return
		}
		var amount *decimal.Decimal
		if body.Amount != nil {
			a := body.Amount.Round(2)
			amount = &a
		}
		var returnedDate *string
		if body.Returned != nil {
			returnedDate = h.returnedDate(*body.Returned, body.ReturnedDate)
		}

		o, err := queryOne[obligation](h.db, c,
			`UPDATE `+table+` SET
				person        = COALESCE(@person, person),
				description   = COALESCE(@description, description),
				amount        = COALESCE(@amount::numeric, amount),
				date          = COALESCE(@date::date, date),
				returned      = COALESCE(@returned::boolean, returned),
				returned_date = CASE
					WHEN @returned::boolean IS NULL THEN returned_date
					WHEN @returned::boolean AND returned THEN COALESCE(@returnedDate::date, returned_date)
					ELSE @returnedDate::date
				END,
				updated_at    = now()
			 WHERE id = @id AND user_id = @userID
			 RETURNING *`,
			pgx.NamedArgs{
				"id": id, "userID": userID, "person": body.Person, "description": body.Description,
				"amount": amount, "date": body.Date, "returned": body.Returned, "returnedDate": returnedDate,
			})
		if errors.Is(err, pgx.ErrNoRows) {
			apiError(c, http.StatusNotFound, "entry not found")
			return
		}
		if err != nil {
			apiError(c, http.StatusInternalServerError, "failed to update entry")
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

/* ─── Savings ────────────────────────────────────────────────────────── */

// getSavings returns the user's savings balance, zero if never set.
// GET /api/salary/savings
func (h *Handler) getSavings(c *gin.Context) {
	userID := c.GetInt("user_id")
	s, err := queryOne[savings](h.db, c,
		"SELECT * FROM savings WHERE user_id = @userID",
		pgx.NamedArgs{"userID": userID})
	if errors.Is(err, pgx.ErrNoRows) {
		c.JSON(http.StatusOK, savings{UserID: userID, Amount: decimal.Zero, Currency: ledger.Currency})
		return
	}
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to fetch savings")
		return
	}
	c.JSON(http.StatusOK, s)
}

// PUT /api/salary/savings
func (h *Handler) putSavings(c *gin.Context) {
	userID := c.GetInt("user_id")
	var body struct {
		Amount decimal.Decimal `json:"amount" validate:"gte=0"`
	}
	if !bindJSON(c, &body) {
		return
	}
	s, err := queryOne[savings](h.db, c,
		`INSERT INTO savings (user_id, amount, currency, updated_at)
		 VALUES (@userID, @amount, @currency, now())
		 ON CONFLICT (user_id) DO UPDATE SET amount = EXCLUDED.amount, updated_at = now()
		 RETURNING *`,
		pgx.NamedArgs{"userID": userID, "amount": body.Amount.Round(2), "currency": ledger.Currency})
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to save savings")
		return
	}
	c.JSON(http.StatusOK, s)
}

/* ─── Summary ────────────────────────────────────────────────────────── */

// getFinanceSummary returns the monthly overview.
// GET /api/salary/summary?year=&month= (defaults to the current month).
func (h *Handler) getFinanceSummary(c *gin.Context) {
	userID := c.GetInt("user_id")
	year, month, ok := h.parseYearMonth(c)
	if !ok {
		return
	}
	args := pgx.NamedArgs{"userID": userID, "year": year}

	incomes, err := queryMany[moneyEntry](h.db, c,
		"SELECT * FROM incomes WHERE user_id = @userID AND EXTRACT(YEAR FROM date) = @year", args)
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to compute summary")
		return
	}
	expenses, err := queryMany[moneyEntry](h.db, c,
		"SELECT * FROM expenses WHERE user_id = @userID AND EXTRACT(YEAR FROM date) = @year", args)
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to compute summary")
		return
	}
	debts, err := queryMany[obligation](h.db, c, "SELECT * FROM debts WHERE user_id = @userID", args)
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to compute summary")
		return
	}
	loans, err := queryMany[obligation](h.db, c, "SELECT * FROM loans WHERE user_id = @userID", args)
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to compute summary")
		return
	}

	balance := decimal.Zero
	var amount decimal.Decimal
	err = h.db.QueryRow(c, "SELECT amount FROM savings WHERE user_id = @userID", args).Scan(&amount)
	switch {
	case err == nil:
		balance = amount
	case !errors.Is(err, pgx.ErrNoRows):
		log.Printf("[getFinanceSummary] savings: %v", err)
		apiError(c, http.StatusInternalServerError, "failed to compute summary")
		return
	}

	c.JSON(http.StatusOK, ledger.SummarizeFinance(year, month,
		toEntries(incomes), toEntries(expenses), toObligations(debts), toObligations(loans), balance))
}

func toEntries(rows []moneyEntry) []ledger.Entry {
	out := make([]ledger.Entry, len(rows))
	for i, r := range rows {
		out[i] = ledger.Entry{Date: r.Date.Time, Amount: r.Amount}
	}
	return out
}

func toObligations(rows []obligation) []ledger.Obligation {
	out := make([]ledger.Obligation, len(rows))
	for i, r := range rows {
		out[i] = ledger.Obligation{Amount: r.Amount, Returned: r.Returned}
	}
	return out
}
