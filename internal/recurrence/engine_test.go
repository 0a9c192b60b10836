package recurrence

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"
)

// memStore is an in-memory Store. Deleting a template clears the reference on
// its instances, like the foreign key does in Postgres.
type memStore struct {
	nextID int
	tasks  map[int]Task
}

func newMemStore() *memStore {
	return &memStore{nextID: 1, tasks: map[int]Task{}}
}

func (m *memStore) DeleteIncompleteOnce(_ context.Context, userID int, before time.Time) (int64, error) {
	return m.deleteWhere(func(t Task) bool {
		return t.UserID == userID && !t.IsTemplate && t.Recurrence == Once && !t.Completed && t.Date.Before(before)
	}), nil
}

func (m *memStore) DeleteOnce(_ context.Context, userID int, before time.Time) (int64, error) {
	return m.deleteWhere(func(t Task) bool {
		return t.UserID == userID && !t.IsTemplate && t.Recurrence == Once && t.Date.Before(before)
	}), nil
}

func (m *memStore) deleteWhere(match func(Task) bool) int64 {
	var n int64
	for id, t := range m.tasks {
		if match(t) {
			delete(m.tasks, id)
			n++
		}
	}
	return n
}

func (m *memStore) Templates(_ context.Context, userID int) ([]Task, error) {
	var out []Task
	for _, t := range m.tasks {
		if t.UserID == userID && t.IsTemplate {
			out = append(out, t)
		}
	}
	sortByID(out)
	return out, nil
}

func (m *memStore) FindTemplate(_ context.Context, userID int, title, scheduledTime string, rule Rule) (Task, error) {
	for _, t := range m.sorted() {
		if t.UserID == userID && t.IsTemplate && t.Title == title && t.ScheduledTime == scheduledTime && t.Recurrence == rule {
			return t, nil
		}
	}
	return Task{}, ErrNotFound
}

func (m *memStore) HasInstance(ctx context.Context, tpl Task, date time.Time) (bool, error) {
	if _, err := m.InstanceFor(ctx, tpl.UserID, tpl.ID, date); err == nil {
		return true, nil
	}
	for _, t := range m.tasks {
		if t.UserID == tpl.UserID && !t.IsTemplate && t.Date.Equal(date) && t.Title == tpl.Title && t.ScheduledTime == tpl.ScheduledTime {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) InstanceFor(_ context.Context, userID, templateID int, date time.Time) (Task, error) {
	for _, t := range m.sorted() {
		if t.UserID == userID && !t.IsTemplate && t.TemplateID != nil && *t.TemplateID == templateID && t.Date.Equal(date) {
			return t, nil
		}
	}
	return Task{}, ErrNotFound
}

func (m *memStore) InstancesOn(_ context.Context, userID int, date time.Time) ([]Task, error) {
	var out []Task
	for _, t := range m.sorted() {
		if t.UserID == userID && !t.IsTemplate && t.Date.Equal(date) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memStore) Get(_ context.Context, userID, id int) (Task, error) {
	t, ok := m.tasks[id]
	if !ok || t.UserID != userID {
		return Task{}, ErrNotFound
	}
	return t, nil
}

func (m *memStore) Insert(_ context.Context, t Task) (Task, error) {
	t.ID = m.nextID
	m.nextID++
	m.tasks[t.ID] = t
	return t, nil
}

func (m *memStore) Update(_ context.Context, t Task) (Task, error) {
	if _, ok := m.tasks[t.ID]; !ok {
		return Task{}, ErrNotFound
	}
	m.tasks[t.ID] = t
	return t, nil
}

func (m *memStore) Delete(_ context.Context, userID, id int) error {
	t, ok := m.tasks[id]
	if !ok || t.UserID != userID {
		return ErrNotFound
	}
	delete(m.tasks, id)
	for oid, o := range m.tasks {
		if o.TemplateID != nil && *o.TemplateID == id {
			o.TemplateID = nil
			m.tasks[oid] = o
		}
	}
	return nil
}

func (m *memStore) sorted() []Task {
	out := make([]Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, t)
	}
	sortByID(out)
	return out
}

func sortByID(ts []Task) {
	sort.Slice(ts, func(i, j int) bool { return ts[i].ID < ts[j].ID })
}

func (m *memStore) count(match func(Task) bool) int {
	n := 0
	for _, t := range m.tasks {
		if match(t) {
			n++
		}
	}
	return n
}

/* ─── Helpers ────────────────────────────────────────────────────────── */

const user = 7

var (
	ctx      = context.Background()
	fixedNow = time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)
	friday   = time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)
	saturday = friday.AddDate(0, 0, 1)
	monday   = friday.AddDate(0, 0, 3)
)

func newEngine() (*Engine, *memStore) {
	s := newMemStore()
	return NewEngine(s, func() time.Time { return fixedNow }), s
}

func ptr[T any](v T) *T { return &v }

func isTemplate(t Task) bool { return t.IsTemplate }

/* ─── Materialization ────────────────────────────────────────────────── */

func TestSyncAndList_Idempotent(t *testing.T) {
	e, s := newEngine()
	if _, err := e.Create(ctx, user, Draft{Title: "Stretch", ScheduledTime: "07:00:00", Date: friday, Recurrence: Daily}); err != nil {
		t.Fatalf("create: %v", err)
	}

	for i := 0; i < 3; i++ {
		tasks, err := e.SyncAndList(ctx, user, monday, friday)
		if err != nil {
			t.Fatalf("sync %d: %v", i, err)
		}
		if len(tasks) != 1 {
			t.Fatalf("sync %d: got %d tasks, want 1", i, len(tasks))
		}
	}
	n := s.count(func(t Task) bool { return !t.IsTemplate && t.Date.Equal(monday) })
	if n != 1 {
		t.Errorf("instances on monday = %d, want 1", n)
	}
}

func TestSyncAndList_WeekdaysSkipWeekend(t *testing.T) {
	e, _ := newEngine()
	if _, err := e.Create(ctx, user, Draft{Title: "Standup", ScheduledTime: "10:00:00", Date: friday, Recurrence: Weekdays}); err != nil {
		t.Fatalf("create: %v", err)
	}

	sat, err := e.SyncAndList(ctx, user, saturday, friday)
	if err != nil {
		t.Fatalf("sync saturday: %v", err)
	}
	if len(sat) != 0 {
		t.Errorf("saturday tasks = %d, want 0", len(sat))
	}
	sun, _ := e.SyncAndList(ctx, user, saturday.AddDate(0, 0, 1), friday)
	if len(sun) != 0 {
		t.Errorf("sunday tasks = %d, want 0", len(sun))
	}
	mon, _ := e.SyncAndList(ctx, user, monday, friday)
	if len(mon) != 1 || mon[0].Title != "Standup" {
		t.Errorf("monday tasks = %+v, want one Standup", mon)
	}
}

func TestSyncAndList_MaterializedInstanceCopiesTemplate(t *testing.T) {
	e, _ := newEngine()
	created, err := e.Create(ctx, user, Draft{Title: "Read", ScheduledTime: "21:00:00", Date: friday, Priority: High, Recurrence: Daily})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	tasks, err := e.SyncAndList(ctx, user, monday, friday)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	got := tasks[0]
	if got.Title != "Read" || got.ScheduledTime != "21:00:00" || got.Priority != High || got.Recurrence != Daily {
		t.Errorf("instance = %+v", got)
	}
	if got.Completed || got.IsTemplate {
		t.Errorf("instance should be an incomplete non-template: %+v", got)
	}
	if got.TemplateID == nil || created.TemplateID == nil || *got.TemplateID != *created.TemplateID {
		t.Errorf("instance template %v, want %v", got.TemplateID, created.TemplateID)
	}
}

func TestSyncAndList_SkipsDateWithMatchingTask(t *testing.T) {
	e, s := newEngine()
	if _, err := e.Create(ctx, user, Draft{Title: "Walk", ScheduledTime: "07:00:00", Date: friday, Recurrence: Daily}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := e.Create(ctx, user, Draft{Title: "Walk", ScheduledTime: "07:00:00", Date: monday}); err != nil {
		t.Fatalf("create: %v", err)
	}

	tasks, err := e.SyncAndList(ctx, user, monday, friday)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Recurrence != Once {
		t.Errorf("monday tasks = %+v, want only the one-time walk", tasks)
	}
	onMonday := s.count(func(t Task) bool { return !t.IsTemplate && t.Date.Equal(monday) })
	if onMonday != 1 {
		t.Errorf("monday rows = %d, want 1", onMonday)
	}
}

/* ─── Garbage collection ─────────────────────────────────────────────── */

func TestSyncAndList_GarbageCollectsOneTimeTasks(t *testing.T) {
	e, s := newEngine()
	yesterday := friday.AddDate(0, 0, -1)
	old := friday.AddDate(0, 0, -31)

	stale, _ := e.Create(ctx, user, Draft{Title: "Call bank", Date: yesterday})
	doneRecent, _ := e.Create(ctx, user, Draft{Title: "Pay rent", Date: yesterday, Completed: true})
	doneOld, _ := e.Create(ctx, user, Draft{Title: "Old chore", Date: old, Completed: true})
	future, _ := e.Create(ctx, user, Draft{Title: "Dentist", Date: monday})
	recurring, _ := e.Create(ctx, user, Draft{Title: "Walk", Date: yesterday, Recurrence: Daily})

	if _, err := e.SyncAndList(ctx, user, friday, friday); err != nil {
		t.Fatalf("sync: %v", err)
	}

	gone := []Task{stale, doneOld}
	kept := []Task{doneRecent, future, recurring}
	for _, task := range gone {
		if _, ok := s.tasks[task.ID]; ok {
			t.Errorf("%q should have been removed", task.Title)
		}
	}
	for _, task := range kept {
		if _, ok := s.tasks[task.ID]; !ok {
			t.Errorf("%q should have been kept", task.Title)
		}
	}
}

/* ─── Create ─────────────────────────────────────────────────────────── */

func TestCreate_Defaults(t *testing.T) {
	e, s := newEngine()
	got, err := e.Create(ctx, user, Draft{Title: "Groceries", Date: friday})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got.Priority != Medium || got.Recurrence != Once || got.TemplateID != nil {
		t.Errorf("task = %+v", got)
	}
	if n := s.count(isTemplate); n != 0 {
		t.Errorf("templates = %d, want 0 for a one-time task", n)
	}
}

func TestCreate_RecurringReusesTemplate(t *testing.T) {
	e, s := newEngine()
	d := Draft{Title: "Stretch", ScheduledTime: "07:00:00", Date: friday, Recurrence: Daily}
	first, err := e.Create(ctx, user, d)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := e.Create(ctx, user, d)
	if err != nil {
		t.Fatalf("create again: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("second create returned task %d, want existing %d", second.ID, first.ID)
	}
	if n := s.count(isTemplate); n != 1 {
		t.Errorf("templates = %d, want 1", n)
	}

	d.Date = monday
	other, _ := e.Create(ctx, user, d)
	if *other.TemplateID != *first.TemplateID {
		t.Errorf("monday instance uses template %d, want %d", *other.TemplateID, *first.TemplateID)
	}
}

func TestCreate_CompletedStampsTime(t *testing.T) {
	e, _ := newEngine()
	got, _ := e.Create(ctx, user, Draft{Title: "Done already", Date: friday, Completed: true})
	if got.CompletedAt == nil || !got.CompletedAt.Equal(fixedNow) {
		t.Errorf("completed_at = %v, want %v", got.CompletedAt, fixedNow)
	}
}

/* ─── Update ─────────────────────────────────────────────────────────── */

func TestUpdate_CompletionToggle(t *testing.T) {
	e, _ := newEngine()
	task, _ := e.Create(ctx, user, Draft{Title: "Laundry", Date: friday})

	done, err := e.Update(ctx, user, task.ID, Patch{Completed: ptr(true)})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !done.Completed || done.CompletedAt == nil || !done.CompletedAt.Equal(fixedNow) {
		t.Errorf("after complete: %+v", done)
	}

	undone, err := e.Update(ctx, user, task.ID, Patch{Completed: ptr(false)})
	if err != nil {
		t.Fatalf("uncomplete: %v", err)
	}
	if undone.Completed || undone.CompletedAt != nil {
		t.Errorf("after uncomplete: %+v", undone)
	}
}

func TestUpdate_PropagatesToTemplate(t *testing.T) {
	e, s := newEngine()
	task, _ := e.Create(ctx, user, Draft{Title: "Stretch", ScheduledTime: "07:00:00", Date: friday, Recurrence: Daily})

	if _, err := e.Update(ctx, user, task.ID, Patch{Title: ptr("Yoga"), ScheduledTime: ptr("06:30:00")}); err != nil {
		t.Fatalf("update: %v", err)
	}
	tpl := s.tasks[*task.TemplateID]
	if tpl.Title != "Yoga" || tpl.ScheduledTime != "06:30:00" {
		t.Errorf("template = %+v, want Yoga at 06:30", tpl)
	}

	tasks, _ := e.SyncAndList(ctx, user, monday, friday)
	if len(tasks) != 1 || tasks[0].Title != "Yoga" {
		t.Errorf("future instance = %+v, want Yoga", tasks)
	}
}

func TestUpdate_PropagatesByValueWithoutReference(t *testing.T) {
	e, s := newEngine()
	task, _ := e.Create(ctx, user, Draft{Title: "Stretch", ScheduledTime: "07:00:00", Date: friday, Recurrence: Daily})
	tplID := *task.TemplateID

	legacy := s.tasks[task.ID]
	legacy.TemplateID = nil
	s.tasks[task.ID] = legacy

	if _, err := e.Update(ctx, user, task.ID, Patch{Priority: ptr(High)}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if s.tasks[tplID].Priority != High {
		t.Errorf("template priority = %s, want high", s.tasks[tplID].Priority)
	}
	if got := s.tasks[task.ID].TemplateID; got == nil || *got != tplID {
		t.Errorf("instance should be relinked to template %d, got %v", tplID, got)
	}
}

func TestUpdate_RecurringToOnceStopsGeneration(t *testing.T) {
	e, s := newEngine()
	task, _ := e.Create(ctx, user, Draft{Title: "Stretch", Date: friday, Recurrence: Daily})

	updated, err := e.Update(ctx, user, task.ID, Patch{Recurrence: ptr(Once)})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.TemplateID != nil || updated.Recurrence != Once {
		t.Errorf("task = %+v", updated)
	}
	if n := s.count(isTemplate); n != 0 {
		t.Errorf("templates = %d, want 0", n)
	}
	tasks, _ := e.SyncAndList(ctx, user, monday, friday)
	if len(tasks) != 0 {
		t.Errorf("monday tasks = %d, want 0", len(tasks))
	}
}

func TestUpdate_LeftoverInstanceDoesNotRestartRecurrence(t *testing.T) {
	e, s := newEngine()
	yesterday := friday.AddDate(0, 0, -1)
	old, _ := e.Create(ctx, user, Draft{Title: "Walk", Date: yesterday, Recurrence: Daily})
	today, _ := e.Create(ctx, user, Draft{Title: "Walk", Date: friday, Recurrence: Daily})
	if err := e.Delete(ctx, user, today.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n := s.count(isTemplate); n != 0 {
		t.Fatalf("templates after delete = %d, want 0", n)
	}

	updated, err := e.Update(ctx, user, old.ID, Patch{Completed: ptr(true)})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.Completed || updated.TemplateID != nil {
		t.Errorf("task = %+v", updated)
	}
	if n := s.count(isTemplate); n != 0 {
		t.Errorf("templates after completing = %d, want 0", n)
	}
	if tasks, _ := e.SyncAndList(ctx, user, monday, friday); len(tasks) != 0 {
		t.Errorf("monday tasks = %d, want 0", len(tasks))
	}
}

func TestUpdate_OnceToRecurringCreatesTemplate(t *testing.T) {
	e, s := newEngine()
	task, _ := e.Create(ctx, user, Draft{Title: "Journal", ScheduledTime: "22:00:00", Date: friday})

	updated, err := e.Update(ctx, user, task.ID, Patch{Recurrence: ptr(Weekdays)})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.TemplateID == nil {
		t.Fatal("expected instance to be linked to a template")
	}
	tpl := s.tasks[*updated.TemplateID]
	if !tpl.IsTemplate || tpl.Recurrence != Weekdays || tpl.Title != "Journal" {
		t.Errorf("template = %+v", tpl)
	}
	if tasks, _ := e.SyncAndList(ctx, user, monday, friday); len(tasks) != 1 {
		t.Errorf("monday tasks = %d, want 1", len(tasks))
	}
}

func TestUpdate_TemplateNotAddressable(t *testing.T) {
	e, _ := newEngine()
	task, _ := e.Create(ctx, user, Draft{Title: "Stretch", Date: friday, Recurrence: Daily})
	_, err := e.Update(ctx, user, *task.TemplateID, Patch{Title: ptr("x")})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdate_OtherUsersTask(t *testing.T) {
	e, _ := newEngine()
	task, _ := e.Create(ctx, user, Draft{Title: "Private", Date: friday})
	if _, err := e.Update(ctx, user+1, task.ID, Patch{Completed: ptr(true)}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

/* ─── Delete ─────────────────────────────────────────────────────────── */

func TestDelete_RecurringRemovesTemplate(t *testing.T) {
	e, s := newEngine()
	task, _ := e.Create(ctx, user, Draft{Title: "Stretch", Date: friday, Recurrence: Daily})
	if err := e.Delete(ctx, user, task.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(s.tasks) != 0 {
		t.Errorf("remaining tasks = %+v, want none", s.tasks)
	}
	if tasks, _ := e.SyncAndList(ctx, user, monday, friday); len(tasks) != 0 {
		t.Errorf("monday tasks = %d, want 0", len(tasks))
	}
}

func TestDelete_KeepsOtherInstances(t *testing.T) {
	e, s := newEngine()
	fri, _ := e.Create(ctx, user, Draft{Title: "Stretch", Date: friday, Recurrence: Daily})
	tasks, _ := e.SyncAndList(ctx, user, monday, friday)
	mon := tasks[0]

	if err := e.Delete(ctx, user, mon.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	kept, ok := s.tasks[fri.ID]
	if !ok {
		t.Fatal("friday instance should survive")
	}
	if kept.TemplateID != nil {
		t.Errorf("friday instance still references deleted template %d", *kept.TemplateID)
	}
}

func TestDelete_Missing(t *testing.T) {
	e, _ := newEngine()
	if err := e.Delete(ctx, user, 99); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

/* ─── Rules ──────────────────────────────────────────────────────────── */

func TestRule_OccursOn(t *testing.T) {
	cases := []struct {
		rule Rule
		day  time.Time
		want bool
	}{
		{Daily, saturday, true},
		{Weekdays, saturday, false},
		{Weekdays, monday, true},
		{Weekdays, friday, true},
		{Once, friday, false},
	}
	for _, tc := range cases {
		if got := tc.rule.OccursOn(tc.day); got != tc.want {
			t.Errorf("%s.OccursOn(%s) = %v, want %v", tc.rule, tc.day.Weekday(), got, tc.want)
		}
	}
}
