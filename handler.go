package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"lg/life-dashboard-api/internal/cache"
	"lg/life-dashboard-api/internal/identity"
	"lg/life-dashboard-api/internal/mailer"
)

// Handler holds shared dependencies (db pool, config, collaborators) for all
// route handlers.
type Handler struct {
	db            *pgxpool.Pool
	loc           *time.Location   // calendar "today" is taken in this zone
	now           func() time.Time // overridable for tests
	codes         *cache.TTL       // email verification codes
	mail          mailer.Sender
	google        *identity.GoogleClient
	openAIBaseURL string // Base URL for OpenAI API (overridable for tests)
	openAIKey     string
}

func newHandler(pool *pgxpool.Pool, cfg config) *Handler {
	var sender mailer.Sender = mailer.Log{}
	if cfg.SMTP.Host != "" {
		sender = cfg.SMTP
	}
	return &Handler{
		db:            pool,
		loc:           cfg.Location,
		now:           time.Now,
		codes:         cache.New(nil),
		mail:          sender,
		google:        identity.NewGoogleClient(cfg.GoogleUserinfoURL),
		openAIBaseURL: cfg.OpenAIBaseURL,
		openAIKey:     cfg.OpenAIKey,
	}
}

// today returns the current calendar date in the app's timezone, as midnight UTC.
func (h *Handler) today() time.Time {
	now := time.Now
	if h.now != nil {
		now = h.now
	}
	loc := h.loc
	if loc == nil {
		loc = time.UTC
	}
	n := now().In(loc)
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
}

/* ─── Database helpers ────────────────────────────────────────────────── */

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, so the same helpers
// run inside and outside a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// queryOne runs a query and scans the first row into T using RowToStructByName.
// Logs query and scan errors for debugging (e.g. struct/column mismatches).
// pgx.ErrNoRows is returned as-is and not logged.
func queryOne[T any](q querier, ctx context.Context, sql string, args pgx.NamedArgs) (T, error) {
	rows, err := q.Query(ctx, sql, args)
	if err != nil {
		log.Printf("[queryOne] Query error: %v", err)
		var zero T
		return zero, err
	}
	result, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[T])
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		log.Printf("[queryOne] Scan error: %v", err)
	}
	return result, err
}

// queryMany runs a query and scans all rows into []T using RowToStructByName.
// Never returns a nil slice on success so JSON renders [] rather than null.
func queryMany[T any](q querier, ctx context.Context, sql string, args pgx.NamedArgs) ([]T, error) {
	rows, err := q.Query(ctx, sql, args)
	if err != nil {
		log.Printf("[queryMany] Query error: %v", err)
		return nil, err
	}
	results, err := pgx.CollectRows(rows, pgx.RowToStructByName[T])
	if err != nil {
		log.Printf("[queryMany] Scan error: %v", err)
		return nil, err
	}
	if results == nil {
		results = []T{}
	}
	return results, nil
}

// isUniqueViolation reports whether err is a Postgres unique_violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

/* ─── Request helpers ─────────────────────────────────────────────────── */

// paramID parses the :id path parameter, writing a 400 when it isn't a
// positive integer.
func paramID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		apiError(c, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

// parseDateParam reads a YYYY-MM-DD query parameter, falling back to def
// when absent.
func parseDateParam(c *gin.Context, name string, def time.Time) (time.Time, bool) {
	s := c.Query(name)
	if s == "" {
		return def, true
	}
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		apiError(c, http.StatusBadRequest, fmt.Sprintf("invalid %s, expected YYYY-MM-DD", name))
		return time.Time{}, false
	}
	return d, true
}

// parseYearMonth reads ?year=&month= (defaulting to the current month).
func (h *Handler) parseYearMonth(c *gin.Context) (int, time.Month, bool) {
	today := h.today()
	year, month := today.Year(), int(today.Month())
	if s := c.Query("year"); s != "" {
		y, err := strconv.Atoi(s)
		if err != nil || y < 1900 || y > 9999 {
			apiError(c, http.StatusBadRequest, "invalid year")
			return 0, 0, false
		}
		year = y
	}
	if s := c.Query("month"); s != "" {
		m, err := strconv.Atoi(s)
		if err != nil || m < 1 || m > 12 {
			apiError(c, http.StatusBadRequest, "invalid month, expected 1-12")
			return 0, 0, false
		}
		month = m
	}
	return year, time.Month(month), true
}

// parseMonthFilter reads an optional ?month=YYYY-MM filter and returns the
// month's first and last day.
func parseMonthFilter(c *gin.Context) (start, end string, ok bool) {
	s := c.Query("month")
	if s == "" {
		return "", "", true
	}
	m, err := time.Parse("2006-01", s)
	if err != nil {
		apiError(c, http.StatusBadRequest, "invalid month, expected YYYY-MM")
		return "", "", false
	}
	return m.Format("2006-01-02"), m.AddDate(0, 1, -1).Format("2006-01-02"), true
}

/* ─── Server setup ────────────────────────────────────────────────────── */

// getDBPool creates a connection pool. We use a pool (not a single conn) because
// hosted Postgres closes idle connections after a few minutes.
func getDBPool(ctx context.Context, dbURL string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("parse DB URL: %w", err)
	}
	// Use simple query protocol to avoid "cached plan must not change result type"
	// errors from server-side prepared statement caches after schema changes.
	poolCfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return pool, nil
}

// registerRoutes registers all API routes on the router.
func (h *Handler) registerRoutes(router *gin.Engine) {
	// Public routes
	router.GET("/api/health", h.health)
	router.GET("/api/info", h.info)
	auth := router.Group("/api/auth")
	auth.POST("/signup", h.signup)
	auth.POST("/verify-email", h.verifyEmail)
	auth.POST("/resend-code", h.resendCode)
	auth.POST("/login", h.login)
	auth.POST("/google", h.googleAuth)

	// Authenticated routes
	api := router.Group("/api", h.authMiddleware(), ownerGuard())
	api.POST("/auth/logout", h.logout)

	api.GET("/lakawon/classes", h.listClasses)
	api.POST("/lakawon/classes", h.createClass)
	api.PUT("/lakawon/classes/:id", h.updateClass)
	api.DELETE("/lakawon/classes/:id", h.deleteRow("lakawon_classes"))
	api.POST("/lakawon/classes/:id/cancel", h.cancelClass)
	api.GET("/lakawon/deductions", h.listDeductions)
	api.POST("/lakawon/deductions", h.createDeduction)
	api.PUT("/lakawon/deductions/:id", h.updateDeduction)
	api.DELETE("/lakawon/deductions/:id", h.deleteDeduction)
	api.GET("/lakawon/salary-summary", h.getSalarySummary)

	for _, t := range []string{"incomes", "expenses"} {
		api.GET("/salary/"+t, h.listEntries(t))
		api.POST("/salary/"+t, h.createEntry(t))
		api.PUT("/salary/"+t+"/:id", h.updateEntry(t))
		api.DELETE("/salary/"+t+"/:id", h.deleteRow(t))
	}
	for _, t := range []string{"debts", "loans"} {
		api.GET("/salary/"+t, h.listObligations(t))
		api.POST("/salary/"+t, h.createObligation(t))
		api.PUT("/salary/"+t+"/:id", h.updateObligation(t))
		api.DELETE("/salary/"+t+"/:id", h.deleteRow(t))
	}
	api.GET("/salary/savings", h.getSavings)
	api.PUT("/salary/savings", h.putSavings)
	api.GET("/salary/summary", h.getFinanceSummary)

	api.GET("/productivity/tasks", h.listTasks)
	api.POST("/productivity/tasks", h.createTask)
	api.PATCH("/productivity/tasks/:id", h.updateTask)
	api.DELETE("/productivity/tasks/:id", h.deleteTask)
	for _, k := range []planKind{yearlyPlans, monthlyPlans} {
		api.GET("/productivity/"+k.path, h.listPlans(k))
		api.POST("/productivity/"+k.path, h.createPlan(k))
		api.PUT("/productivity/"+k.path+"/:id", h.updatePlan(k))
		api.DELETE("/productivity/"+k.path+"/:id", h.deleteRow(k.table))
	}
	api.GET("/productivity/stats", h.getProductivityStats)

	api.GET("/nutrition/profile", h.getProfile)
	api.PATCH("/nutrition/profile", h.patchProfile)
	api.GET("/nutrition/goal", h.getGoal)
	api.PATCH("/nutrition/goal", h.patchGoal)
	api.GET("/nutrition/targets", h.getTargets)
	api.POST("/nutrition/targets/recompute", h.recomputeTargets)
	api.POST("/nutrition/auto-adjust", h.autoAdjust)
	api.GET("/nutrition/foods", h.listFoods)
	api.POST("/nutrition/foods", h.createFood)
	api.POST("/nutrition/foods/suggest", h.suggestFood)
	api.PUT("/nutrition/foods/:id", h.updateFood)
	api.DELETE("/nutrition/foods/:id", h.deleteRow("food_items"))
	api.GET("/nutrition/log", h.getFoodLog)
	api.POST("/nutrition/log", h.createFoodLogEntry)
	api.DELETE("/nutrition/log/:id", h.deleteRow("food_log_entries"))
	api.GET("/nutrition/log/week-summary", h.getWeekSummary)
	api.GET("/nutrition/checkins", h.listCheckIns)
	api.POST("/nutrition/checkins", h.upsertCheckIn)
	api.PUT("/nutrition/checkins/:id", h.updateCheckIn)
	api.DELETE("/nutrition/checkins/:id", h.deleteRow("weight_checkins"))
}

// deleteRow returns a handler that removes one owned row from table by :id.
// Returns 204 on success, 404 if not found. Ownership is enforced by
// requiring both id and user_id to match.
func (h *Handler) deleteRow(table string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetInt("user_id")
		id, ok := paramID(c)
		if !ok {
			return
		}
		result, err := h.db.Exec(c,
			"DELETE FROM "+table+" WHERE id = @id AND user_id = @userID",
			pgx.NamedArgs{"id": id, "userID": userID})
		if err != nil {
			log.Printf("[deleteRow] %s: %v", table, err)
			apiError(c, http.StatusInternalServerError, "failed to delete")
			return
		}
		if result.RowsAffected() == 0 {
			apiError(c, http.StatusNotFound, "not found")
			return
		}
		c.Status(http.StatusNoContent)
	}
}
