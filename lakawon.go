package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"lg/life-dashboard-api/internal/ledger"
)

/* ─── Classes ────────────────────────────────────────────────────────── */

// listClasses returns the user's classes, newest first.
// GET /api/lakawon/classes?month=YYYY-MM (month optional).
func (h *Handler) listClasses(c *gin.Context) {
	userID := c.GetInt("user_id")
	start, end, ok := parseMonthFilter(c)
	if !ok {
		return
	}

	classes, err := queryMany[lakawonClass](h.db, c,
		`SELECT * FROM lakawon_classes
		 WHERE user_id = @userID
		   AND (@start = '' OR date >= NULLIF(@start, '')::date)
		   AND (@end = '' OR date <= NULLIF(@end, '')::date)
		 ORDER BY date DESC, time DESC`,
		pgx.NamedArgs{"userID": userID, "start": start, "end": end})
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to fetch classes")
		return
	}
	c.JSON(http.StatusOK, classes)
}

type classRequest struct {
	Date      string `json:"date" validate:"required,isodate"`
	Time      string `json:"time" validate:"required,clock"`
	ClassType string `json:"class_type" validate:"omitempty,oneof=regular demo"`
}

// createClass records a class. The amount always follows from class_type.
// POST /api/lakawon/classes. A second class at the same date and time is a 409.
func (h *Handler) createClass(c *gin.Context) {
	userID := c.GetInt("user_id")
	var body classRequest
	if !bindJSON(c, &body) {
		return
	}
	if body.ClassType == "" {
		body.ClassType = string(ledger.Regular)
	}
	clock, _ := parseClock(body.Time)

	class, err := queryOne[lakawonClass](h.db, c,
		`INSERT INTO lakawon_classes (user_id, date, time, class_type, amount)
		 VALUES (@userID, @date, @time, @classType, @amount)
		 RETURNING *`,
		pgx.NamedArgs{
			"userID": userID, "date": body.Date, "time": clock,
			"classType": body.ClassType, "amount": ledger.ClassAmount(ledger.ClassType(body.ClassType)),
		})
	if isUniqueViolation(err) {
		apiError(c, http.StatusConflict, "a class already exists at this date and time")
		return
	}
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to create class")
		return
	}
	c.JSON(http.StatusCreated, class)
}

// updateClass partially updates a class; the amount is re-derived from the
// resulting class_type. PUT /api/lakawon/classes/:id.
func (h *Handler) updateClass(c *gin.Context) {
	userID := c.GetInt("user_id")
	id, ok := paramID(c)
	if !ok {
		return
	}
	var body struct {
		Date      *string `json:"date" validate:"omitempty,isodate"`
		Time      *string `json:"time" validate:"omitempty,clock"`
		ClassType *string `json:"class_type" validate:"omitempty,oneof=regular demo"`
	}
	if !bindJSON(c, &body) {
		return
	}
	var clock *string
	if body.Time != nil {
		t, _ := parseClock(*body.Time)
		clock = &t
	}

	class, err := queryOne[lakawonClass](h.db, c,
		`UPDATE lakawon_classes SET
			date       = COALESCE(@date::date, date),
			time       = COALESCE(@time::time, time),
			class_type = COALESCE(@classType, class_type),
			amount     = CASE WHEN COALESCE(@classType, class_type) = 'demo' THEN @demoAmount ELSE @regularAmount END,
			updated_at = now()
		 WHERE id = @id AND user_id = @userID
		 RETURNING *`,
		pgx.NamedArgs{
			"id": id, "userID": userID, "date": body.Date, "time": clock, "classType": body.ClassType,
			"demoAmount": ledger.ClassAmount(ledger.Demo), "regularAmount": ledger.ClassAmount(ledger.Regular),
		})
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		apiError(c, http.StatusNotFound, "class not found")
		return
	case isUniqueViolation(err):
		apiError(c, http.StatusConflict, "a class already exists at this date and time")
		return
	case err != nil:
		apiError(c, http.StatusInternalServerError, "failed to update class")
		return
	}
	c.JSON(http.StatusOK, class)
}

var errAlreadyCancelled = errors.New("class already cancelled")

// cancelClass marks a class cancelled and records the matching deduction in
// one transaction. POST /api/lakawon/classes/:id/cancel.
func (h *Handler) cancelClass(c *gin.Context) {
	userID := c.GetInt("user_id")
	id, ok := paramID(c)
	if !ok {
		return
	}
	var body struct {
		StudentName string `json:"student_name" validate:"required,max=200"`
		Reason      string `json:"reason"`
	}
	if !bindJSON(c, &body) {
		return
	}
	if body.Reason == "" {
		body.Reason = "Class cancelled"
	}

	var class lakawonClass
	var deduction lakawonDeduction
	err := pgx.BeginFunc(c, h.db, func(tx pgx.Tx) error {
		var err error
		class, err = queryOne[lakawonClass](tx, c,
			"SELECT * FROM lakawon_classes WHERE id = @id AND user_id = @userID FOR UPDATE",
			pgx.NamedArgs{"id": id, "userID": userID})
		if err != nil {
			return err
		}
		if class.Cancelled {
			return errAlreadyCancelled
		}
		class, err = queryOne[lakawonClass](tx, c,
			`UPDATE lakawon_classes SET cancelled = true, updated_at = now()
			 WHERE id = @id RETURNING *`,
			pgx.NamedArgs{"id": id})
		if err != nil {
			return err
		}
		deduction, err = queryOne[lakawonDeduction](tx, c,
			`INSERT INTO lakawon_deductions (user_id, class_id, date, time, student_name, reason, amount)
			 VALUES (@userID, @classID, @date, @time, @studentName, @reason, @amount)
			 RETURNING *`,
			pgx.NamedArgs{
				"userID": userID, "classID": id, "date": class.Date.String(), "time": string(class.Time),
				"studentName": body.StudentName, "reason": body.Reason, "amount": ledger.DeductionAmount,
			})
		return err
	})
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		apiError(c, http.StatusNotFound, "class not found")
		return
	case errors.Is(err, errAlreadyCancelled):
		apiError(c, http.StatusConflict, "class is already cancelled")
		return
	case err != nil:
		log.Printf("[cancelClass] class %d: %v", id, err)
		apiError(c, http.StatusInternalServerError, "failed to cancel class")
		return
	}
	c.JSON(http.StatusOK, gin.H{"class": class, "deduction": deduction})
}

/* ─── Deductions ─────────────────────────────────────────────────────── */

// GET /api/lakawon/deductions?month=YYYY-MM (month optional).
func (h *Handler) listDeductions(c *gin.Context) {
	userID := c.GetInt("user_id")
	start, end, ok := parseMonthFilter(c)
	if !ok {
		return
	}

	deductions, err := queryMany[lakawonDeduction](h.db, c,
		`SELECT * FROM lakawon_deductions
		 WHERE user_id = @userID
		   AND (@start = '' OR date >= NULLIF(@start, '')::date)
		   AND (@end = '' OR date <= NULLIF(@end, '')::date)
		 ORDER BY date DESC, time DESC`,
		pgx.NamedArgs{"userID": userID, "start": start, "end": end})
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to fetch deductions")
		return
	}
	c.JSON(http.StatusOK, deductions)
}

type deductionRequest struct {
	Date        string           `json:"date" validate:"required,isodate"`
	Time        string           `json:"time" validate:"required,clock"`
	StudentName string           `json:"student_name" validate:"required,max=200"`
	Reason      string           `json:"reason" validate:"required"`
	Amount      *decimal.Decimal `json:"amount" validate:"omitempty,gt=0"`
}

// POST /api/lakawon/deductions. Amount defaults to the standard deduction.
func (h *Handler) createDeduction(c *gin.Context) {
	userID := c.GetInt("user_id")
	var body deductionRequest
	if !bindJSON(c, &body) {
		return
	}
	amount := ledger.DeductionAmount
	if body.Amount != nil {
		amount = body.Amount.Round(2)
	}
	clock, _ := parseClock(body.Time)

	d, err := queryOne[lakawonDeduction](h.db, c,
		`INSERT INTO lakawon_deductions (user_id, date, time, student_name, reason, amount)
		 VALUES (@userID, @date, @time, @studentName, @reason, @amount)
		 RETURNING *`,
		pgx.NamedArgs{
			"userID": userID, "date": body.Date, "time": clock,
			"studentName": body.StudentName, "reason": body.Reason, "amount": amount,
		})
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to create deduction")
		return
	}
	c.JSON(http.StatusCreated, d)
}

// PUT /api/lakawon/deductions/:id. Omitted fields keep their current values.
func (h *Handler) updateDeduction(c *gin.Context) {
	userID := c.GetInt("user_id")
	id, ok := paramID(c)
	if !ok {
		return
	}
	var body struct {
		Date        *string          `json:"date" validate:"omitempty,isodate"`
		Time        *string          `json:"time" validate:"omitempty,clock"`
		StudentName *string          `json:"student_name" validate:"omitempty,min=1,max=200"`
		Reason      *string          `json:"reason"`
		Amount      *decimal.Decimal `json:"amount" validate:"omitempty,gt=0"`
	}
	if !bindJSON(c, &body) {
		return
	}
	var clock *string
	if body.Time != nil {
		t, _ := parseClock(*body.Time)
		clock = &t
	}

	d, err := queryOne[lakawonDeduction](h.db, c,
		`UPDATE lakawon_deductions SET
			date         = COALESCE(@date::date, date),
			time         = COALESCE(@time::time, time),
			student_name = COALESCE(@studentName, student_name),
			reason       = COALESCE(@reason, reason),
			amount       = COALESCE(@amount::numeric, amount),
			updated_at   = now()
		 WHERE id = @id AND user_id = @userID
		 RETURNING *`,
		pgx.NamedArgs{
			"id": id, "userID": userID, "date": body.Date, "time": clock,
			"studentName": body.StudentName, "reason": body.Reason, "amount": body.Amount,
		})
	if errors.Is(err, pgx.ErrNoRows) {
		apiError(c, http.StatusNotFound, "deduction not found")
		return
	}
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to update deduction")
		return
	}
	c.JSON(http.StatusOK, d)
}

// deleteDeduction removes a deduction and, when it came from cancelling a
// class, that class too. DELETE /api/lakawon/deductions/:id.
func (h *Handler) deleteDeduction(c *gin.Context) {
	userID := c.GetInt("user_id")
	id, ok := paramID(c)
	if !ok {
		return
	}

	err := pgx.BeginFunc(c, h.db, func(tx pgx.Tx) error {
		var classID *int
		err := tx.QueryRow(c,
			"DELETE FROM lakawon_deductions WHERE id = @id AND user_id = @userID RETURNING class_id",
			pgx.NamedArgs{"id": id, "userID": userID}).Scan(&classID)
		if err != nil {
			return err
		}
		if classID == nil {
			return nil
		}
		_, err = tx.Exec(c,
			"DELETE FROM lakawon_classes WHERE id = @classID AND user_id = @userID",
			pgx.NamedArgs{"classID": *classID, "userID": userID})
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		apiError(c, http.StatusNotFound, "deduction not found")
		return
	}
	if err != nil {
		log.Printf("[deleteDeduction] %d: %v", id, err)
		apiError(c, http.StatusInternalServerError, "failed to delete deduction")
		return
	}
	c.Status(http.StatusNoContent)
}

/* ─── Salary summary ─────────────────────────────────────────────────── */

// getSalarySummary totals the month's classes and deductions per pay period.
// GET /api/lakawon/salary-summary?year=&month= (defaults to the current month).
func (h *Handler) getSalarySummary(c *gin.Context) {
	userID := c.GetInt("user_id")
	year, month, ok := h.parseYearMonth(c)
	if !ok {
		return
	}
	summary, err := h.salarySummary(c, userID, year, month)
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to compute salary summary")
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) salarySummary(ctx context.Context, userID, year int, month time.Month) (ledger.SalarySummary, error) {
	first, last := ledger.MonthRange(year, month)
	args := pgx.NamedArgs{"userID": userID, "start": first.Format("2006-01-02"), "end": last.Format("2006-01-02")}

	classes, err := queryMany[lakawonClass](h.db, ctx,
		"SELECT * FROM lakawon_classes WHERE user_id = @userID AND date BETWEEN @start AND @end", args)
	if err != nil {
		return ledger.SalarySummary{}, err
	}
	deductions, err := queryMany[lakawonDeduction](h.db, ctx,
		"SELECT * FROM lakawon_deductions WHERE user_id = @userID AND date BETWEEN @start AND @end", args)
	if err != nil {
		return ledger.SalarySummary{}, err
	}

	lc := make([]ledger.Class, len(classes))
	for i, cl := range classes {
		lc[i] = ledger.Class{Date: cl.Date.Time, Type: ledger.ClassType(cl.ClassType), Amount: cl.Amount, Cancelled: cl.Cancelled}
	}
	ld := make([]ledger.Deduction, len(deductions))
	for i, d := range deductions {
		ld[i] = ledger.Deduction{Date: d.Date.Time, Amount: d.Amount}
	}
	return ledger.SummarizeSalary(year, month, lc, ld), nil
}
