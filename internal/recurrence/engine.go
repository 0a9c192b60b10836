package recurrence

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RetentionDays caps how long one-time instances are kept, completed or not.
const RetentionDays = 30

// Engine applies the template/instance rules on top of a Store.
type Engine struct {
	store Store
	now   func() time.Time
}

// NewEngine returns an engine that stamps completion times with now.
func NewEngine(store Store, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{store: store, now: now}
}

// Draft is the payload for a new task.
type Draft struct {
	Title         string
	ScheduledTime string
	Date          time.Time
	Priority      Priority
	Recurrence    Rule
	Completed     bool
}

// Patch holds the fields an edit changes; nil fields are left alone.
type Patch struct {
	Title         *string
	ScheduledTime *string
	Date          *time.Time
	Priority      *Priority
	Recurrence    *Rule
	Completed     *bool
}

// SyncAndList is a sync-then-query operation and is NOT pure: it garbage
// collects stale one-time instances relative to today, materializes every
// template that occurs on date and has no instance there yet, then returns the
// instances for date. Calling it repeatedly for the same date creates nothing new.
func (e *Engine) SyncAndList(ctx context.Context, userID int, date, today time.Time) ([]Task, error) {
	if _, err := e.store.DeleteIncompleteOnce(ctx, userID, today); err != nil {
		return nil, fmt.Errorf("delete stale one-time tasks: %w", err)
	}
	if _, err := e.store.DeleteOnce(ctx, userID, today.AddDate(0, 0, -RetentionDays)); err != nil {
		return nil, fmt.Errorf("delete expired one-time tasks: %w", err)
	}

	templates, err := e.store.Templates(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	for _, tpl := range templates {
		if !tpl.Recurrence.OccursOn(date) {
			continue
		}
		exists, err := e.store.HasInstance(ctx, tpl, date)
		if err != nil {
			return nil, fmt.Errorf("check instance of template %d: %w", tpl.ID, err)
		}
		if exists {
			continue
		}
		if _, err := e.store.Insert(ctx, instanceOf(tpl, date)); err != nil {
			return nil, fmt.Errorf("materialize template %d: %w", tpl.ID, err)
		}
	}

	tasks, err := e.store.InstancesOn(ctx, userID, date)
	if err != nil {
		return nil, fmt.Errorf("list tasks for %s: %w", date.Format("2006-01-02"), err)
	}
	return tasks, nil
}

func instanceOf(tpl Task, date time.Time) Task {
	id := tpl.ID
	return Task{
		UserID:        tpl.UserID,
		Title:         tpl.Title,
		ScheduledTime: tpl.ScheduledTime,
		Date:          date,
		Priority:      tpl.Priority,
		Recurrence:    tpl.Recurrence,
		TemplateID:    &id,
	}
}

// ensureTemplate returns the user's template for (title, time, rule),
// creating it when none exists.
func (e *Engine) ensureTemplate(ctx context.Context, userID int, title, scheduledTime string, rule Rule, priority Priority, date time.Time) (Task, error) {
	tpl, err := e.store.FindTemplate(ctx, userID, title, scheduledTime, rule)
	if err == nil {
		return tpl, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Task{}, fmt.Errorf("find template: %w", err)
	}
	tpl, err = e.store.Insert(ctx, Task{
		UserID:        userID,
		Title:         title,
		ScheduledTime: scheduledTime,
		Date:          date,
		Priority:      priority,
		Recurrence:    rule,
		IsTemplate:    true,
	})
	if err != nil {
		return Task{}, fmt.Errorf("create template: %w", err)
	}
	return tpl, nil
}

// Create adds a task dated d.Date. A recurring draft also gets a template
// (reusing an equivalent one), and the returned instance is linked to it; if
// that template already produced an instance on the date, that one is returned.
func (e *Engine) Create(ctx context.Context, userID int, d Draft) (Task, error) {
	if d.Priority == "" {
		d.Priority = Medium
	}
	if d.Recurrence == "" {
		d.Recurrence = Once
	}
	t := Task{
		UserID:        userID,
		Title:         d.Title,
		ScheduledTime: d.ScheduledTime,
		Date:          d.Date,
		Priority:      d.Priority,
		Recurrence:    d.Recurrence,
		Completed:     d.Completed,
	}
	if d.Completed {
		now := e.now()
		t.CompletedAt = &now
	}

	if d.Recurrence.Recurring() {
		tpl, err := e.ensureTemplate(ctx, userID, d.Title, d.ScheduledTime, d.Recurrence, d.Priority, d.Date)
		if err != nil {
			return Task{}, err
		}
		existing, err := e.store.InstanceFor(ctx, userID, tpl.ID, d.Date)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return Task{}, fmt.Errorf("find instance of template %d: %w", tpl.ID, err)
		}
		t.TemplateID = &tpl.ID
	}

	created, err := e.store.Insert(ctx, t)
	if err != nil {
		return Task{}, fmt.Errorf("create task: %w", err)
	}
	return created, nil
}

// instance loads a non-template task.
func (e *Engine) instance(ctx context.Context, userID, id int) (Task, error) {
	t, err := e.store.Get(ctx, userID, id)
	if err != nil {
		return Task{}, err
	}
	if t.IsTemplate {
		return Task{}, ErrNotFound
	}
	return t, nil
}

// templateOf finds the template an instance was generated from: by its
// reference first, then by the instance's (title, time, rule) for rows that
// predate the reference.
func (e *Engine) templateOf(ctx context.Context, t Task) (Task, bool, error) {
	if t.TemplateID != nil {
		tpl, err := e.store.Get(ctx, t.UserID, *t.TemplateID)
		switch {
		case err == nil && tpl.IsTemplate:
			return tpl, true, nil
		case err != nil && !errors.Is(err, ErrNotFound):
			return Task{}, false, err
		}
	}
	tpl, err := e.store.FindTemplate(ctx, t.UserID, t.Title, t.ScheduledTime, t.Recurrence)
	if errors.Is(err, ErrNotFound) {
		return Task{}, false, nil
	}
	if err != nil {
		return Task{}, false, err
	}
	return tpl, true, nil
}

// Update edits an instance and keeps its template in step:
//   - recurring before and after: the template takes the new title, time,
//     rule and priority;
//   - recurring before, once after: the template is deleted so nothing more
//     is generated;
//   - recurring before but its template is gone: only the instance changes;
//   - once before, recurring after: the instance is linked to an equivalent
//     template, created if needed.
func (e *Engine) Update(ctx context.Context, userID, id int, p Patch) (Task, error) {
	old, err := e.instance(ctx, userID, id)
	if err != nil {
		return Task{}, err
	}
	t := old
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.ScheduledTime != nil {
		t.ScheduledTime = *p.ScheduledTime
	}
	if p.Date != nil {
		t.Date = *p.Date
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Recurrence != nil {
		t.Recurrence = *p.Recurrence
	}
	if p.Completed != nil {
		switch {
		case *p.Completed && !old.Completed:
			now := e.now()
			t.CompletedAt = &now
		case !*p.Completed:
			t.CompletedAt = nil
		}
		t.Completed = *p.Completed
	}

	switch {
	case old.Recurrence.Recurring():
		tpl, found, err := e.templateOf(ctx, old)
		if err != nil {
			return Task{}, fmt.Errorf("find template of task %d: %w", id, err)
		}
		switch {
		case found && !t.Recurrence.Recurring():
			t.TemplateID = nil
			if err := e.store.Delete(ctx, userID, tpl.ID); err != nil && !errors.Is(err, ErrNotFound) {
				return Task{}, fmt.Errorf("delete template %d: %w", tpl.ID, err)
			}
		case found:
			tpl.Title = t.Title
			tpl.ScheduledTime = t.ScheduledTime
			tpl.Recurrence = t.Recurrence
			tpl.Priority = t.Priority
			if _, err := e.store.Update(ctx, tpl); err != nil {
				return Task{}, fmt.Errorf("update template %d: %w", tpl.ID, err)
			}
			t.TemplateID = &tpl.ID
		default:
			// The template was deleted; editing a leftover instance must not
			// restart the recurrence.
			t.TemplateID = nil
		}
	case t.Recurrence.Recurring():
		tpl, err := e.ensureTemplate(ctx, userID, t.Title, t.ScheduledTime, t.Recurrence, t.Priority, t.Date)
		if err != nil {
			return Task{}, err
		}
		t.TemplateID = &tpl.ID
	}

	updated, err := e.store.Update(ctx, t)
	if err != nil {
		return Task{}, fmt.Errorf("update task %d: %w", id, err)
	}
	return updated, nil
}

// Delete removes an instance. Deleting an instance of a recurring task also
// deletes its template, which stops future generation.
func (e *Engine) Delete(ctx context.Context, userID, id int) error {
	t, err := e.instance(ctx, userID, id)
	if err != nil {
		return err
	}
	if t.Recurrence.Recurring() {
		tpl, found, err := e.templateOf(ctx, t)
		if err != nil {
			return fmt.Errorf("find template of task %d: %w", id, err)
		}
		if found {
			if err := e.store.Delete(ctx, userID, tpl.ID); err != nil && !errors.Is(err, ErrNotFound) {
				return fmt.Errorf("delete template %d: %w", tpl.ID, err)
			}
		}
	}
	return e.store.Delete(ctx, userID, id)
}
