// Package recurrence keeps recurring task templates and materializes their
// concrete daily instances. Storage is behind Store; the engine only decides
// what to create, update and delete.
package recurrence

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a task does not exist for the user. Templates
// are not addressable through the instance operations and also report it.
var ErrNotFound = errors.New("task not found")

// Rule is a task's recurrence rule.
type Rule string

const (
	Once     Rule = "once"
	Daily    Rule = "daily"
	Weekdays Rule = "weekdays"
)

// Valid reports whether r is a known rule.
func (r Rule) Valid() bool {
	return r == Once || r == Daily || r == Weekdays
}

// Recurring reports whether r generates instances from a template.
func (r Rule) Recurring() bool {
	return r == Daily || r == Weekdays
}

// OccursOn reports whether a template with this rule materializes on d.
func (r Rule) OccursOn(d time.Time) bool {
	switch r {
	case Daily:
		return true
	case Weekdays:
		wd := d.Weekday()
		return wd != time.Saturday && wd != time.Sunday
	}
	return false
}

type Priority string

const (
	Low    Priority = "low"
	Medium Priority = "medium"
	High   Priority = "high"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	return p == Low || p == Medium || p == High
}

// Task is either a template (IsTemplate, carries the rule, Date is a
// placeholder) or a dated instance. Instances generated from a template keep
// its ID in TemplateID.
type Task struct {
	ID            int
	UserID        int
	Title         string
	ScheduledTime string // HH:MM:SS, empty when unscheduled
	Date          time.Time
	Completed     bool
	CompletedAt   *time.Time
	Priority      Priority
	Recurrence    Rule
	IsTemplate    bool
	TemplateID    *int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Store persists tasks. Every method is scoped to one user; dates are
// calendar dates at midnight UTC.
type Store interface {
	// DeleteIncompleteOnce removes unfinished one-time instances dated before before.
	DeleteIncompleteOnce(ctx context.Context, userID int, before time.Time) (int64, error)
	// DeleteOnce removes one-time instances dated before before, completed or not.
	DeleteOnce(ctx context.Context, userID int, before time.Time) (int64, error)
	Templates(ctx context.Context, userID int) ([]Task, error)
	// FindTemplate matches a template by value. Returns ErrNotFound when none exists.
	FindTemplate(ctx context.Context, userID int, title, scheduledTime string, rule Rule) (Task, error)
	// HasInstance reports whether date already has an instance generated from
	// tpl, or any instance with tpl's title and scheduled time.
	HasInstance(ctx context.Context, tpl Task, date time.Time) (bool, error)
	// InstanceFor returns the instance generated from templateID on date, or ErrNotFound.
	InstanceFor(ctx context.Context, userID, templateID int, date time.Time) (Task, error)
	InstancesOn(ctx context.Context, userID int, date time.Time) ([]Task, error)
	// Get returns a task of either kind, or ErrNotFound.
	Get(ctx context.Context, userID, id int) (Task, error)
	Insert(ctx context.Context, t Task) (Task, error)
	Update(ctx context.Context, t Task) (Task, error)
	// Delete returns ErrNotFound when nothing was removed.
	Delete(ctx context.Context, userID, id int) error
}
