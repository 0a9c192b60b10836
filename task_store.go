package main

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"lg/life-dashboard-api/internal/recurrence"
)

// pgTaskStore implements recurrence.Store on the tasks table. It runs on
// whatever querier it is given, normally the request's transaction.
type pgTaskStore struct {
	q querier
}

var _ recurrence.Store = pgTaskStore{}

func (r taskRow) toTask() recurrence.Task {
	t := recurrence.Task{
		ID:          r.ID,
		UserID:      r.UserID,
		Title:       r.Title,
		Date:        r.Date.Time,
		Completed:   r.Completed,
		CompletedAt: r.CompletedAt,
		Priority:    recurrence.Priority(r.Priority),
		Recurrence:  recurrence.Rule(r.Recurrence),
		IsTemplate:  r.IsTemplate,
		TemplateID:  r.TemplateID,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.ScheduledTime != nil {
		t.ScheduledTime = string(*r.ScheduledTime)
	}
	return t
}

func toTasks(rows []taskRow) []recurrence.Task {
	out := make([]recurrence.Task, len(rows))
	for i, r := range rows {
		out[i] = r.toTask()
	}
	return out
}

// taskArgs binds the writable columns of t. An empty scheduled time is NULL.
func taskArgs(t recurrence.Task) pgx.NamedArgs {
	var scheduled *string
	if t.ScheduledTime != "" {
		scheduled = &t.ScheduledTime
	}
	return pgx.NamedArgs{
		"id":            t.ID,
		"userID":        t.UserID,
		"title":         t.Title,
		"scheduledTime": scheduled,
		"date":          t.Date.Format("2006-01-02"),
		"completed":     t.Completed,
		"completedAt":   t.CompletedAt,
		"priority":      string(t.Priority),
		"recurrence":    string(t.Recurrence),
		"isTemplate":    t.IsTemplate,
		"templateID":    t.TemplateID,
	}
}

func dateArg(d time.Time) string { return d.Format("2006-01-02") }

// one maps pgx.ErrNoRows to recurrence.ErrNotFound.
func one(r taskRow, err error) (recurrence.Task, error) {
	if errors.Is(err, pgx.ErrNoRows) {
		return recurrence.Task{}, recurrence.ErrNotFound
	}
	if err != nil {
		return recurrence.Task{}, err
	}
	return r.toTask(), nil
}

func (s pgTaskStore) DeleteIncompleteOnce(ctx context.Context, userID int, before time.Time) (int64, error) {
	tag, err := s.q.Exec(ctx,
		`DELETE FROM tasks
		 WHERE user_id = @userID AND NOT is_template AND recurrence = 'once'
		   AND NOT completed AND date < @before`,
		pgx.NamedArgs{"userID": userID, "before": dateArg(before)})
	return tag.RowsAffected(), err
}

func (s pgTaskStore) DeleteOnce(ctx context.Context, userID int, before time.Time) (int64, error) {
	tag, err := s.q.Exec(ctx,
		`DELETE FROM tasks
		 WHERE user_id = @userID AND NOT is_template AND recurrence = 'once' AND date < @before`,
		pgx.NamedArgs{"userID": userID, "before": dateArg(before)})
	return tag.RowsAffected(), err
}

func (s pgTaskStore) Templates(ctx context.Context, userID int) ([]recurrence.Task, error) {
	rows, err := queryMany[taskRow](s.q, ctx,
		"SELECT * FROM tasks WHERE user_id = @userID AND is_template ORDER BY id",
		pgx.NamedArgs{"userID": userID})
	if err != nil {
		return nil, err
	}
	return toTasks(rows), nil
}

func (s pgTaskStore) FindTemplate(ctx context.Context, userID int, title, scheduledTime string, rule recurrence.Rule) (recurrence.Task, error) {
	var scheduled *string
	if scheduledTime != "" {
		scheduled = &scheduledTime
	}
	return one(queryOne[taskRow](s.q, ctx,
		`SELECT * FROM tasks
		 WHERE user_id = @userID AND is_template AND title = @title AND recurrence = @rule
		   AND scheduled_time IS NOT DISTINCT FROM @scheduledTime::time
		 ORDER BY id LIMIT 1`,
		pgx.NamedArgs{"userID": userID, "title": title, "rule": string(rule), "scheduledTime": scheduled}))
}

func (s pgTaskStore) HasInstance(ctx context.Context, tpl recurrence.Task, date time.Time) (bool, error) {
	var scheduled *string
	if tpl.ScheduledTime != "" {
		scheduled = &tpl.ScheduledTime
	}
	var exists bool
	err := s.q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM tasks
		 WHERE user_id = @userID AND NOT is_template AND date = @date
		   AND (template_id = @templateID
		        OR (title = @title AND scheduled_time IS NOT DISTINCT FROM @scheduledTime::time)))`,
		pgx.NamedArgs{
			"userID": tpl.UserID, "templateID": tpl.ID, "date": dateArg(date),
			"title": tpl.Title, "scheduledTime": scheduled,
		}).Scan(&exists)
	return exists, err
}

func (s pgTaskStore) InstanceFor(ctx context.Context, userID, templateID int, date time.Time) (recurrence.Task, error) {
	return one(queryOne[taskRow](s.q, ctx,
		`SELECT * FROM tasks
		 WHERE user_id = @userID AND template_id = @templateID AND date = @date AND NOT is_template`,
		pgx.NamedArgs{"userID": userID, "templateID": templateID, "date": dateArg(date)}))
}

func (s pgTaskStore) InstancesOn(ctx context.Context, userID int, date time.Time) ([]recurrence.Task, error) {
	rows, err := queryMany[taskRow](s.q, ctx,
		`SELECT * FROM tasks
		 WHERE user_id = @userID AND NOT is_template AND date = @date
		 ORDER BY scheduled_time NULLS LAST, created_at, id`,
		pgx.NamedArgs{"userID": userID, "date": dateArg(date)})
	if err != nil {
		return nil, err
	}
	return toTasks(rows), nil
}

func (s pgTaskStore) Get(ctx context.Context, userID, id int) (recurrence.Task, error) {
	return one(queryOne[taskRow](s.q, ctx,
		"SELECT * FROM tasks WHERE id = @id AND user_id = @userID",
		pgx.NamedArgs{"id": id, "userID": userID}))
}

func (s pgTaskStore) Insert(ctx context.Context, t recurrence.Task) (recurrence.Task, error) {
	return one(queryOne[taskRow](s.q, ctx,
		`INSERT INTO tasks (user_id, title, scheduled_time, date, completed, completed_at,
		                    priority, recurrence, is_template, template_id)
		 VALUES (@userID, @title, @scheduledTime::time, @date, @completed, @completedAt,
		         @priority, @recurrence, @isTemplate, @templateID)
		 RETURNING *`,
		taskArgs(t)))
}

func (s pgTaskStore) Update(ctx context.Context, t recurrence.Task) (recurrence.Task, error) {
	return one(queryOne[taskRow](s.q, ctx,
		`UPDATE tasks SET
			title          = @title,
			scheduled_time = @scheduledTime::time,
			date           = @date,
			completed      = @completed,
			completed_at   = @completedAt,
			priority       = @priority,
			recurrence     = @recurrence,
			template_id    = @templateID,
			updated_at     = now()
		 WHERE id = @id AND user_id = @userID
		 RETURNING *`,
		taskArgs(t)))
}

func (s pgTaskStore) Delete(ctx context.Context, userID, id int) error {
	tag, err := s.q.Exec(ctx,
		"DELETE FROM tasks WHERE id = @id AND user_id = @userID",
		pgx.NamedArgs{"id": id, "userID": userID})
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return recurrence.ErrNotFound
	}
	return nil
}
