package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"

	"lg/life-dashboard-api/internal/recurrence"
)

// withTasks runs fn against a task engine bound to a single transaction.
func (h *Handler) withTasks(ctx context.Context, fn func(e *recurrence.Engine) error) error {
	return pgx.BeginFunc(ctx, h.db, func(tx pgx.Tx) error {
		return fn(recurrence.NewEngine(pgTaskStore{q: tx}, h.now))
	})
}

func taskJSON(t recurrence.Task) taskResponse {
	r := taskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Date:        DateOnly{t.Date},
		Completed:   t.Completed,
		CompletedAt: t.CompletedAt,
		Priority:    string(t.Priority),
		Recurrence:  string(t.Recurrence),
		TemplateID:  t.TemplateID,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if t.ScheduledTime != "" {
		s := t.ScheduledTime
		r.ScheduledTime = &s
	}
	return r
}

// taskError writes the response for an engine error.
func taskError(c *gin.Context, fn string, err error) {
	switch {
	case errors.Is(err, recurrence.ErrNotFound):
		apiError(c, http.StatusNotFound, "task not found")
	case isUniqueViolation(err):
		apiError(c, http.StatusConflict, "this recurring task already exists on that date")
	default:
		log.Printf("[%s] %v", fn, err)
		apiError(c, http.StatusInternalServerError, "failed to "+fn)
	}
}

// listTasks syncs recurring templates into the requested day, clears stale
// one-time tasks, and returns that day's tasks.
// GET /api/productivity/tasks?date=YYYY-MM-DD (defaults to today).
func (h *Handler) listTasks(c *gin.Context) {
	userID := c.GetInt("user_id")
	today := h.today()
	date, ok := parseDateParam(c, "date", today)
	if !ok {
		return
	}

	var tasks []recurrence.Task
	err := h.withTasks(c, func(e *recurrence.Engine) error {
		var err error
		tasks, err = e.SyncAndList(c, userID, date, today)
		return err
	})
	if err != nil {
		taskError(c, "list tasks", err)
		return
	}
	out := make([]taskResponse, len(tasks))
	for i, t := range tasks {
		out[i] = taskJSON(t)
	}
	c.JSON(http.StatusOK, out)
}

type taskRequest struct {
	Title         string `json:"title" validate:"required,max=255"`
	ScheduledTime string `json:"scheduled_time" validate:"omitempty,clock"`
	Date          string `json:"date" validate:"required,isodate"`
	Priority      string `json:"priority" validate:"omitempty,oneof=low medium high"`
	Recurrence    string `json:"recurrence" validate:"omitempty,oneof=once daily weekdays"`
	Completed     bool   `json:"completed"`
}

// POST /api/productivity/tasks
func (h *Handler) createTask(c *gin.Context) {
	userID := c.GetInt("user_id")
	var body taskRequest
	if !bindJSON(c, &body) {
		return
	}
	date, _ := time.Parse("2006-01-02", body.Date)
	draft := recurrence.Draft{
		Title:      body.Title,
		Date:       date,
		Priority:   recurrence.Priority(body.Priority),
		Recurrence: recurrence.Rule(body.Recurrence),
		Completed:  body.Completed,
	}
	if body.ScheduledTime != "" {
		draft.ScheduledTime, _ = parseClock(body.ScheduledTime)
	}

	var task recurrence.Task
	err := h.withTasks(c, func(e *recurrence.Engine) error {
		var err error
		task, err = e.Create(c, userID, draft)
		return err
	})
	if err != nil {
		taskError(c, "create task", err)
		return
	}
	c.JSON(http.StatusCreated, taskJSON(task))
}

// updateTask edits a task instance. An empty scheduled_time clears it.
// PATCH /api/productivity/tasks/:id
func (h *Handler) updateTask(c *gin.Context) {
	userID := c.GetInt("user_id")
	id, ok := paramID(c)
	if !ok {
		return
	}
	var body struct {
		Title         *string `json:"title" validate:"omitempty,min=1,max=255"`
		ScheduledTime *string `json:"scheduled_time" validate:"omitempty,clock|len=0"`
		Date          *string `json:"date" validate:"omitempty,isodate"`
		Priority      *string `json:"priority" validate:"omitempty,oneof=low medium high"`
		Recurrence    *string `json:"recurrence" validate:"omitempty,oneof=once daily weekdays"`
		Completed     *bool   `json:"completed"`
	}
	if !bindJSON(c, &body) {
		return
	}

	patch := recurrence.Patch{Title: body.Title, Completed: body.Completed}
	if body.ScheduledTime != nil {
		s := ""
		if *body.ScheduledTime != "" {
			s, _ = parseClock(*body.ScheduledTime)
		}
		patch.ScheduledTime = &s
	}
	if body.Date != nil {
		d, _ := time.Parse("2006-01-02", *body.Date)
		patch.Date = &d
	}
	if body.Priority != nil {
		p := recurrence.Priority(*body.Priority)
		patch.Priority = &p
	}
	if body.Recurrence != nil {
		r := recurrence.Rule(*body.Recurrence)
		patch.Recurrence = &r
	}

	var task recurrence.Task
	err := h.withTasks(c, func(e *recurrence.Engine) error {
		var err error
		task, err = e.Update(c, userID, id, patch)
		return err
	})
	if err != nil {
		taskError(c, "update task", err)
		return
	}
	c.JSON(http.StatusOK, taskJSON(task))
}

// deleteTask removes a task; for a recurring task its template goes too.
// DELETE /api/productivity/tasks/:id
func (h *Handler) deleteTask(c *gin.Context) {
	userID := c.GetInt("user_id")
	id, ok := paramID(c)
	if !ok {
		return
	}
	err := h.withTasks(c, func(e *recurrence.Engine) error {
		return e.Delete(c, userID, id)
	})
	if err != nil {
		taskError(c, "delete task", err)
		return
	}
	c.Status(http.StatusNoContent)
}
