package service

import (
	"context"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/julianstephens/habitrun/internal/catalog"
	"github.com/julianstephens/habitrun/internal/constants"
	apperrors "github.com/julianstephens/habitrun/internal/errors"
	"github.com/julianstephens/habitrun/internal/models"
	"github.com/julianstephens/habitrun/internal/storage/sqlite"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	store   *sqlite.Store
	clock   *fakeClock
	svc     *Service
	kicks   atomic.Int32
	catalog *catalog.Client
}

var habitDefs = []models.HabitDefinition{
	{
		Habit: models.Habit{ID: "H", Title: "Three tasks", Category: "health", Difficulty: constants.DifficultyBeginner},
		Tasks: []models.CatalogTask{
			{ID: "t1", Title: "Task one", Days: []int{1}},
			{ID: "t2", Title: "Task two", Days: []int{2}},
			{ID: "t3", Title: "Task three", Days: []int{3}},
		},
	},
	{
		Habit: models.Habit{ID: "read", Title: "Reading", Category: "mind", Difficulty: constants.DifficultyAdvanced},
		Tasks: []models.CatalogTask{
			{ID: "chapter", Title: "Read a chapter", Days: []int{1, 2, 3, 4, 5, 6, 7}},
			{ID: "review", Title: "Write a review", Days: []int{7}},
		},
	},
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := sqlite.NewStore(filepath.Join(t.TempDir(), "habitrun.db"))
	if err := store.Init(); err != nil {
		t.Fatalf("failed to init store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	if _, err := catalog.Import(ctx, store, habitDefs, catalog.ImportOptions{}); err != nil {
		t.Fatalf("failed to import catalog: %v", err)
	}

	f := &fixture{
		store:   store,
		clock:   &fakeClock{now: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)},
		catalog: catalog.NewClient(store),
	}
	f.svc = f.newService()
	return f
}

func (f *fixture) newService() *Service {
	return New(f.store, f.catalog,
		WithClock(f.clock.Now),
		WithLocation(time.UTC),
		WithCompletionHook(func() { f.kicks.Add(1) }),
	)
}

func (f *fixture) complete(t *testing.T, userID, habitID string, day int, taskID string) (models.Enrollment, bool) {
	t.Helper()
	e, completed, err := f.svc.CompleteTask(context.Background(), CompleteTaskInput{
		UserID:  userID,
		HabitID: habitID,
		Day:     day,
		TaskID:  taskID,
	})
	if err != nil {
		t.Fatalf("CompleteTask(%d, %s) error = %v", day, taskID, err)
	}
	return e, completed
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func TestScenarioThreeTasksToCompletion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	e, err := f.svc.StartEnrollment(ctx, "u1", "H")
	if err != nil {
		t.Fatalf("StartEnrollment() error = %v", err)
	}
	if e.CurrentDay != 1 || !e.IsActive {
		t.Fatalf("new enrollment = day %d active %v, want day 1 active", e.CurrentDay, e.IsActive)
	}

	steps := []struct {
		day       int
		task      string
		total     int
		pct       int
		completed bool
	}{
		{1, "t1", 1, 33, false},
		{2, "t2", 2, 67, false},
		{3, "t3", 3, 100, true},
	}
	for i, step := range steps {
		if i > 0 {
			f.clock.Advance(constants.Day)
		}
		e, completed := f.complete(t, "u1", "H", step.day, step.task)
		if e.TotalCompletedTasks != step.total {
			t.Errorf("day %d: TotalCompletedTasks = %d, want %d", step.day, e.TotalCompletedTasks, step.total)
		}
		if e.ProgressPercentage != step.pct {
			t.Errorf("day %d: ProgressPercentage = %d, want %d", step.day, e.ProgressPercentage, step.pct)
		}
		if completed != step.completed || e.IsCompleted != step.completed {
			t.Errorf("day %d: completed = %v/%v, want %v", step.day, completed, e.IsCompleted, step.completed)
		}
	}

	final, err := f.svc.GetEnrollment(ctx, "u1", e.ID)
	if err != nil {
		t.Fatalf("GetEnrollment() error = %v", err)
	}
	if final.IsActive || !final.IsCompleted || final.CompletedAt == nil {
		t.Errorf("final state active=%v completed=%v completedAt=%v", final.IsActive, final.IsCompleted, final.CompletedAt)
	}
	if final.Streak != 3 || final.LongestStreak != 3 {
		t.Errorf("streak = %d/%d, want 3/3", final.Streak, final.LongestStreak)
	}

	events, err := f.store.PendingEvents(ctx, 10, constants.DefaultDispatchMaxAttempts)
	if err != nil {
		t.Fatalf("PendingEvents() error = %v", err)
	}
	if len(events) != 1 || events[0].EnrollmentID != e.ID {
		t.Fatalf("pending events = %+v, want one for %s", events, e.ID)
	}
	if f.kicks.Load() != 1 {
		t.Errorf("completion hook called %d times, want 1", f.kicks.Load())
	}

	// The enrollment is terminal: further calls see no active enrollment.
	_, _, err = f.svc.CompleteTask(ctx, CompleteTaskInput{UserID: "u1", HabitID: "H", Day: 3, TaskID: "t3"})
	if !apperrors.IsNotFound(err) {
		t.Errorf("CompleteTask() on completed enrollment error = %v, want not found", err)
	}
	if _, err := f.svc.UncompleteTask(ctx, "u1", "H", 3, "t3"); !apperrors.IsNotFound(err) {
		t.Errorf("UncompleteTask() on completed enrollment error = %v, want not found", err)
	}
	events, _ = f.store.PendingEvents(ctx, 10, constants.DefaultDispatchMaxAttempts)
	if len(events) != 1 || f.kicks.Load() != 1 {
		t.Errorf("terminal enrollment produced more events: %d pending, %d kicks", len(events), f.kicks.Load())
	}
}

func TestProgressFollowsReimportedCatalog(t *testing.T) {
	shrunk := []models.HabitDefinition{{
		Habit: habitDefs[0].Habit,
		Tasks: []models.CatalogTask{
			{ID: "t2", Title: "Task two", Days: []int{2}},
			{ID: "t3", Title: "Task three", Days: []int{3}},
		},
	}}

	tests := []struct {
		name      string
		before    []string
		after     []string
		wantPcts  []int
		completes bool
	}{
		{
			name:      "dropped task does not finish the habit early",
			before:    []string{"t1"},
			after:     []string{"t2", "t3"},
			wantPcts:  []int{50, 100},
			completes: true,
		},
		{
			name:      "dropped task does not block completion",
			before:    []string{"t1", "t2"},
			after:     []string{"t3"},
			wantPcts:  []int{100},
			completes: true,
		},
		{
			name:     "only the dropped task done",
			before:   []string{"t1"},
			after:    []string{"t2"},
			wantPcts: []int{50},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			e, err := f.svc.StartEnrollment(ctx, "u1", "H")
			if err != nil {
				t.Fatalf("StartEnrollment() error = %v", err)
			}
			for _, task := range tt.before {
				if _, completed := f.complete(t, "u1", "H", 1, task); completed {
					t.Fatalf("CompleteTask(%s) finished the habit before the re-import", task)
				}
			}

			if _, err := catalog.Import(ctx, f.store, shrunk, catalog.ImportOptions{}); err != nil {
				t.Fatalf("failed to re-import catalog: %v", err)
			}

			var completed bool
			for i, task := range tt.after {
				var got models.Enrollment
				got, completed = f.complete(t, "u1", "H", 1, task)
				if got.ProgressPercentage != tt.wantPcts[i] {
					t.Errorf("after %s: ProgressPercentage = %d, want %d", task, got.ProgressPercentage, tt.wantPcts[i])
				}
				if last := i == len(tt.after)-1; completed != (last && tt.completes) {
					t.Errorf("after %s: completed = %v, want %v", task, completed, last && tt.completes)
				}
			}

			final, err := f.svc.GetEnrollment(ctx, "u1", e.ID)
			if err != nil {
				t.Fatalf("GetEnrollment() error = %v", err)
			}
			if final.IsCompleted != tt.completes || final.IsActive == tt.completes {
				t.Errorf("final state active=%v completed=%v, want completed=%v", final.IsActive, final.IsCompleted, tt.completes)
			}
			events, err := f.store.PendingEvents(ctx, 10, constants.DefaultDispatchMaxAttempts)
			if err != nil {
				t.Fatalf("PendingEvents() error = %v", err)
			}
			wantEvents := 0
			if tt.completes {
				wantEvents = 1
			}
			if len(events) != wantEvents || int(f.kicks.Load()) != wantEvents {
				t.Errorf("got %d events and %d kicks, want %d", len(events), f.kicks.Load(), wantEvents)
			}
		})
	}
}

func TestStartEnrollment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.StartEnrollment(ctx, "u1", "H"); err != nil {
		t.Fatalf("first StartEnrollment() error = %v", err)
	}
	if _, err := f.svc.StartEnrollment(ctx, "u1", "H"); !apperrors.IsConflict(err) {
		t.Errorf("second StartEnrollment() error = %v, want conflict", err)
	}
	if _, err := f.svc.StartEnrollment(ctx, "u1", "missing"); !apperrors.IsNotFound(err) {
		t.Errorf("StartEnrollment(missing) error = %v, want not found", err)
	}
	if _, err := f.svc.StartEnrollment(ctx, " ", "H"); !apperrors.IsInvalidInput(err) {
		t.Errorf("StartEnrollment(blank user) error = %v, want invalid input", err)
	}
	if _, err := f.svc.StartEnrollment(ctx, "u2", "H"); err != nil {
		t.Errorf("StartEnrollment() for another user error = %v", err)
	}
}

func TestStopEnrollmentKeepsProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.StartEnrollment(ctx, "u1", "H"); err != nil {
		t.Fatalf("StartEnrollment() error = %v", err)
	}
	f.complete(t, "u1", "H", 1, "t1")

	stopped, err := f.svc.StopEnrollment(ctx, "u1", "H")
	if err != nil {
		t.Fatalf("StopEnrollment() error = %v", err)
	}
	if stopped.IsActive || stopped.IsCompleted {
		t.Errorf("stopped enrollment active=%v completed=%v", stopped.IsActive, stopped.IsCompleted)
	}
	if stopped.TotalCompletedTasks != 1 || stopped.ProgressPercentage != 33 || len(stopped.CompletedDays) != 1 {
		t.Errorf("stop lost progress: %+v", stopped)
	}
	if stopped.Status() != constants.StatusAbandoned {
		t.Errorf("Status() = %q, want %q", stopped.Status(), constants.StatusAbandoned)
	}

	if _, err := f.svc.StopEnrollment(ctx, "u1", "H"); !apperrors.IsNotFound(err) {
		t.Errorf("second StopEnrollment() error = %v, want not found", err)
	}

	restarted, err := f.svc.StartEnrollment(ctx, "u1", "H")
	if err != nil {
		t.Fatalf("StartEnrollment() after stop error = %v", err)
	}
	if restarted.ID == stopped.ID || restarted.TotalCompletedTasks != 0 {
		t.Errorf("restart reused the abandoned enrollment: %+v", restarted)
	}

	all, err := f.svc.ListEnrollments(ctx, "u1", models.EnrollmentFilter{HabitID: "H"})
	if err != nil {
		t.Fatalf("ListEnrollments() error = %v", err)
	}
	if len(all) != 2 {
		t.Errorf("ListEnrollments() returned %d, want abandoned and new", len(all))
	}
	active, err := f.svc.ListActiveEnrollments(ctx, "u1")
	if err != nil {
		t.Fatalf("ListActiveEnrollments() error = %v", err)
	}
	if len(active) != 1 || active[0].ID != restarted.ID {
		t.Errorf("ListActiveEnrollments() = %+v, want only %s", active, restarted.ID)
	}
}

func TestResetEnrollment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	started, err := f.svc.StartEnrollment(ctx, "u1", "H")
	if err != nil {
		t.Fatalf("StartEnrollment() error = %v", err)
	}
	f.complete(t, "u1", "H", 1, "t1")
	f.clock.Advance(constants.Day)
	f.complete(t, "u1", "H", 2, "t2")
	f.clock.Advance(constants.Day + time.Hour)

	reset, err := f.svc.ResetEnrollment(ctx, "u1", "H")
	if err != nil {
		t.Fatalf("ResetEnrollment() error = %v", err)
	}
	if len(reset.CompletedDays) != 0 || reset.Streak != 0 || reset.LongestStreak != 0 ||
		reset.TotalCompletedTasks != 0 || reset.ProgressPercentage != 0 || reset.LastCompletedDate != nil {
		t.Errorf("reset left progress behind: %+v", reset)
	}
	if reset.CurrentDay != 1 {
		t.Errorf("CurrentDay = %d, want 1", reset.CurrentDay)
	}
	if !reset.StartDate.After(started.StartDate) || reset.ID != started.ID {
		t.Errorf("reset start date %v not after %v", reset.StartDate, started.StartDate)
	}

	if _, err := f.svc.ResetEnrollment(ctx, "u1", "read"); !apperrors.IsNotFound(err) {
		t.Errorf("ResetEnrollment() without enrollment error = %v, want not found", err)
	}
}

func TestCompleteTaskIsIdempotentOnCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.StartEnrollment(ctx, "u1", "read"); err != nil {
		t.Fatalf("StartEnrollment() error = %v", err)
	}
	first, _, err := f.svc.CompleteTask(ctx, CompleteTaskInput{
		UserID: "u1", HabitID: "read", Day: 1, TaskID: "chapter",
		Notes: strPtr("slow start"), Rating: intPtr(3),
	})
	if err != nil {
		t.Fatalf("CompleteTask() error = %v", err)
	}

	f.clock.Advance(time.Hour)
	second, _, err := f.svc.CompleteTask(ctx, CompleteTaskInput{
		UserID: "u1", HabitID: "read", Day: 1, TaskID: "chapter",
		Rating: intPtr(5), CompletionTime: intPtr(25),
	})
	if err != nil {
		t.Fatalf("second CompleteTask() error = %v", err)
	}

	if second.TotalCompletedTasks != first.TotalCompletedTasks || len(second.CompletedDays) != 1 {
		t.Fatalf("repeat completion changed count: %d -> %d (%d records)", first.TotalCompletedTasks, second.TotalCompletedTasks, len(second.CompletedDays))
	}
	r := second.CompletedDays[0]
	if r.Notes != "slow start" {
		t.Errorf("Notes = %q, want untouched", r.Notes)
	}
	if r.Rating == nil || *r.Rating != 5 || r.CompletionTime == nil || *r.CompletionTime != 25 {
		t.Errorf("supplied fields not refreshed: rating=%v time=%v", r.Rating, r.CompletionTime)
	}
	if !r.CompletedAt.After(first.CompletedDays[0].CompletedAt) {
		t.Errorf("CompletedAt not refreshed")
	}
}

func TestCompleteUncompleteRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.StartEnrollment(ctx, "u1", "H"); err != nil {
		t.Fatalf("StartEnrollment() error = %v", err)
	}
	before, _ := f.complete(t, "u1", "H", 1, "t1")

	f.complete(t, "u1", "H", 2, "t2")
	after, err := f.svc.UncompleteTask(ctx, "u1", "H", 2, "t2")
	if err != nil {
		t.Fatalf("UncompleteTask() error = %v", err)
	}
	if after.TotalCompletedTasks != before.TotalCompletedTasks || after.ProgressPercentage != before.ProgressPercentage {
		t.Errorf("round trip = %d/%d%%, want %d/%d%%", after.TotalCompletedTasks, after.ProgressPercentage,
			before.TotalCompletedTasks, before.ProgressPercentage)
	}

	// Nothing logged on day 3: no-op, no write.
	noop, err := f.svc.UncompleteTask(ctx, "u1", "H", 3, "")
	if err != nil {
		t.Fatalf("UncompleteTask() no-op error = %v", err)
	}
	if noop.Revision != after.Revision || noop.TotalCompletedTasks != after.TotalCompletedTasks {
		t.Errorf("no-op uncomplete wrote: revision %d -> %d", after.Revision, noop.Revision)
	}

	// Day-only removal takes the first record for the day.
	cleared, err := f.svc.UncompleteTask(ctx, "u1", "H", 1, "")
	if err != nil {
		t.Fatalf("UncompleteTask(day only) error = %v", err)
	}
	if cleared.TotalCompletedTasks != 0 || cleared.ProgressPercentage != 0 || len(cleared.CompletedDays) != 0 {
		t.Errorf("day-only uncomplete = %+v", cleared)
	}
	again, err := f.svc.UncompleteTask(ctx, "u1", "H", 1, "")
	if err != nil || again.TotalCompletedTasks != 0 {
		t.Errorf("uncomplete past zero = %d, %v", again.TotalCompletedTasks, err)
	}
}

func TestCompleteTaskValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.svc.StartEnrollment(ctx, "u1", "H"); err != nil {
		t.Fatalf("StartEnrollment() error = %v", err)
	}

	tests := []struct {
		name  string
		input CompleteTaskInput
		check func(error) bool
	}{
		{"day zero", CompleteTaskInput{UserID: "u1", HabitID: "H", Day: 0, TaskID: "t1"}, apperrors.IsInvalidInput},
		{"day past end", CompleteTaskInput{UserID: "u1", HabitID: "H", Day: 366, TaskID: "t1"}, apperrors.IsInvalidInput},
		{"rating too high", CompleteTaskInput{UserID: "u1", HabitID: "H", Day: 1, TaskID: "t1", Rating: intPtr(6)}, apperrors.IsInvalidInput},
		{"negative time", CompleteTaskInput{UserID: "u1", HabitID: "H", Day: 1, TaskID: "t1", CompletionTime: intPtr(-1)}, apperrors.IsInvalidInput},
		{"long notes", CompleteTaskInput{UserID: "u1", HabitID: "H", Day: 1, TaskID: "t1", Notes: strPtr(strings.Repeat("x", 501))}, apperrors.IsInvalidInput},
		{"missing habit id", CompleteTaskInput{UserID: "u1", Day: 1, TaskID: "t1"}, apperrors.IsInvalidInput},
		{"unknown task", CompleteTaskInput{UserID: "u1", HabitID: "H", Day: 1, TaskID: "nope"}, apperrors.IsNotFound},
		{"not enrolled", CompleteTaskInput{UserID: "u1", HabitID: "read", Day: 1, TaskID: "chapter"}, apperrors.IsNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := f.svc.CompleteTask(ctx, tt.input)
			if !tt.check(err) {
				t.Errorf("CompleteTask() error = %v (code %q)", err, apperrors.CodeOf(err))
			}
		})
	}

	if _, err := f.svc.UncompleteTask(ctx, "u1", "H", 0, ""); !apperrors.IsInvalidInput(err) {
		t.Errorf("UncompleteTask(day 0) error = %v, want invalid input", err)
	}
}

func TestDayOnlyCompletionDoesNotCountTowardsProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.svc.StartEnrollment(ctx, "u1", "H"); err != nil {
		t.Fatalf("StartEnrollment() error = %v", err)
	}

	e, completed := f.complete(t, "u1", "H", 1, "")
	if completed || e.ProgressPercentage != 0 || e.TotalCompletedTasks != 1 || e.Streak != 1 {
		t.Errorf("day-only completion = pct %d total %d streak %d completed %v", e.ProgressPercentage, e.TotalCompletedTasks, e.Streak, completed)
	}
	e, _ = f.complete(t, "u1", "H", 1, "")
	if e.TotalCompletedTasks != 1 {
		t.Errorf("repeat day-only completion TotalCompletedTasks = %d, want 1", e.TotalCompletedTasks)
	}
}

func TestConcurrentCompletionsAreNotLost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.svc.StartEnrollment(ctx, "u1", "H"); err != nil {
		t.Fatalf("StartEnrollment() error = %v", err)
	}

	// Two services share the database but not their in-process locks, so
	// the writers also race through the revision check.
	other := f.newService()
	services := []*Service{f.svc, other, f.svc}
	tasks := []string{"t1", "t2", "t3"}

	var wg sync.WaitGroup
	var transitions atomic.Int32
	for i, task := range tasks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, completed, err := services[i].CompleteTask(ctx, CompleteTaskInput{UserID: "u1", HabitID: "H", Day: i + 1, TaskID: task})
			if err != nil {
				t.Errorf("CompleteTask(%s) error = %v", task, err)
				return
			}
			if completed {
				transitions.Add(1)
			}
		}()
	}
	wg.Wait()

	list, err := f.svc.ListEnrollments(ctx, "u1", models.EnrollmentFilter{HabitID: "H"})
	if err != nil || len(list) != 1 {
		t.Fatalf("ListEnrollments() = %d, %v", len(list), err)
	}
	e := list[0]
	if e.TotalCompletedTasks != 3 || len(e.CompletedDays) != 3 || !e.IsCompleted {
		t.Errorf("lost update: total=%d records=%d completed=%v", e.TotalCompletedTasks, len(e.CompletedDays), e.IsCompleted)
	}
	if transitions.Load() != 1 {
		t.Errorf("completion transition reported %d times, want 1", transitions.Load())
	}
	events, _ := f.store.PendingEvents(ctx, 10, constants.DefaultDispatchMaxAttempts)
	if len(events) != 1 {
		t.Errorf("pending events = %d, want 1", len(events))
	}
	if f.svc.locks.size() != 0 || other.locks.size() != 0 {
		t.Errorf("user locks leaked")
	}
}

type conflictingStore struct {
	*sqlite.Store
	saves atomic.Int32
}

func (s *conflictingStore) SaveEnrollment(ctx context.Context, e models.Enrollment, expected int64, events []models.CompletionEvent) (models.Enrollment, error) {
	s.saves.Add(1)
	return models.Enrollment{}, apperrors.ErrRevisionConflict
}

func TestCommitGivesUpAfterRepeatedConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.svc.StartEnrollment(ctx, "u1", "H"); err != nil {
		t.Fatalf("StartEnrollment() error = %v", err)
	}

	store := &conflictingStore{Store: f.store}
	svc := New(store, f.catalog, WithClock(f.clock.Now), WithLocation(time.UTC))
	_, _, err := svc.CompleteTask(ctx, CompleteTaskInput{UserID: "u1", HabitID: "H", Day: 1, TaskID: "t1"})
	if !apperrors.IsInternal(err) || !apperrors.Is(err, apperrors.ErrRevisionConflict) {
		t.Fatalf("CompleteTask() error = %v, want internal wrapping revision conflict", err)
	}
	if got := store.saves.Load(); got != constants.MaxCommitAttempts {
		t.Errorf("SaveEnrollment called %d times, want %d", got, constants.MaxCommitAttempts)
	}

	e, err := f.store.FindActiveEnrollment(ctx, "u1", "H")
	if err != nil || len(e.CompletedDays) != 0 {
		t.Errorf("failed commit left state behind: %+v, %v", e, err)
	}
}

func TestStreakSkipsAMissedDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.svc.StartEnrollment(ctx, "u1", "read"); err != nil {
		t.Fatalf("StartEnrollment() error = %v", err)
	}

	for day := 1; day <= 3; day++ {
		if day > 1 {
			f.clock.Advance(constants.Day)
		}
		f.complete(t, "u1", "read", day, "chapter")
	}
	f.clock.Advance(2 * constants.Day)
	e, _ := f.complete(t, "u1", "read", 5, "chapter")

	if e.Streak != 1 || e.LongestStreak != 3 {
		t.Errorf("streak = %d/%d, want 1/3", e.Streak, e.LongestStreak)
	}
	if e.CurrentDay != 5 {
		t.Errorf("CurrentDay = %d, want 5", e.CurrentDay)
	}
}

func TestGetTodayTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	today, err := f.svc.GetTodayTask(ctx, "u1", "H")
	if err != nil || today != nil {
		t.Fatalf("GetTodayTask() without enrollment = %v, %v; want nil, nil", today, err)
	}

	if _, err := f.svc.StartEnrollment(ctx, "u1", "H"); err != nil {
		t.Fatalf("StartEnrollment() error = %v", err)
	}
	f.clock.Advance(constants.Day + 3*time.Hour)
	f.complete(t, "u1", "H", 2, "t2")

	today, err = f.svc.GetTodayTask(ctx, "u1", "H")
	if err != nil || today == nil {
		t.Fatalf("GetTodayTask() = %v, %v", today, err)
	}
	if today.Day != 2 {
		t.Errorf("Day = %d, want 2", today.Day)
	}
	if len(today.Completions) != 1 || today.Completions[0].TaskID != "t2" {
		t.Errorf("Completions = %+v, want t2", today.Completions)
	}
	if len(today.Tasks) != 1 || today.Tasks[0].ID != "t2" {
		t.Errorf("Tasks = %+v, want t2", today.Tasks)
	}
}

func TestListTodayTasksAndProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, habit := range []string{"H", "read"} {
		if _, err := f.svc.StartEnrollment(ctx, "u1", habit); err != nil {
			t.Fatalf("StartEnrollment(%s) error = %v", habit, err)
		}
	}
	f.complete(t, "u1", "read", 1, "chapter")

	list, err := f.svc.ListTodayTasks(ctx, "u1")
	if err != nil {
		t.Fatalf("ListTodayTasks() error = %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("ListTodayTasks() returned %d, want 2", len(list))
	}
	for _, today := range list {
		if today.Day != 1 || len(today.Tasks) != 1 {
			t.Errorf("%s: day %d with %d tasks, want day 1 with 1", today.HabitID, today.Day, len(today.Tasks))
		}
	}

	hp, err := f.svc.GetHabitProgress(ctx, "u1", "read")
	if err != nil {
		t.Fatalf("GetHabitProgress() error = %v", err)
	}
	if hp.Habit.Title != "Reading" || len(hp.Tasks) != 2 {
		t.Fatalf("GetHabitProgress() = %+v", hp)
	}
	done := map[string]bool{}
	for _, tp := range hp.Tasks {
		done[tp.Task.ID] = tp.IsCompleted
	}
	if !done["chapter"] || done["review"] {
		t.Errorf("task completion flags = %v", done)
	}

	if _, err := f.svc.GetHabitProgress(ctx, "u2", "read"); !apperrors.IsNotFound(err) {
		t.Errorf("GetHabitProgress() without enrollment error = %v, want not found", err)
	}
}

func TestHabitParticipants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, user := range []string{"me", "busy", "idle"} {
		if _, err := f.svc.StartEnrollment(ctx, user, "read"); err != nil {
			t.Fatalf("StartEnrollment(%s) error = %v", user, err)
		}
	}
	f.complete(t, "busy", "read", 1, "chapter")

	p, err := f.svc.HabitParticipants(ctx, "me", "read")
	if err != nil {
		t.Fatalf("HabitParticipants() error = %v", err)
	}
	if p.Total() != 2 {
		t.Fatalf("Total() = %d, want 2 (caller excluded)", p.Total())
	}
	if len(p.CompletedToday) != 1 || p.CompletedToday[0].UserID != "busy" {
		t.Errorf("CompletedToday = %+v", p.CompletedToday)
	}
	if len(p.Pending) != 1 || p.Pending[0].UserID != "idle" {
		t.Errorf("Pending = %+v", p.Pending)
	}
}

func TestGetAggregateStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Completed H.
	if _, err := f.svc.StartEnrollment(ctx, "u1", "H"); err != nil {
		t.Fatalf("StartEnrollment() error = %v", err)
	}
	f.complete(t, "u1", "H", 1, "t1")
	f.complete(t, "u1", "H", 2, "t2")
	f.complete(t, "u1", "H", 3, "t3")

	// Given up on read, then restarted it.
	if _, err := f.svc.StartEnrollment(ctx, "u1", "read"); err != nil {
		t.Fatalf("StartEnrollment() error = %v", err)
	}
	if _, err := f.svc.StopEnrollment(ctx, "u1", "read"); err != nil {
		t.Fatalf("StopEnrollment() error = %v", err)
	}
	if _, err := f.svc.StartEnrollment(ctx, "u1", "read"); err != nil {
		t.Fatalf("StartEnrollment() error = %v", err)
	}
	f.complete(t, "u1", "read", 1, "chapter")

	f.clock.Advance(10 * constants.Day)
	stats, err := f.svc.GetAggregateStats(ctx, "u1")
	if err != nil {
		t.Fatalf("GetAggregateStats() error = %v", err)
	}

	want := models.AggregateStats{
		TotalHabits:          3,
		TotalActiveHabits:    1,
		TotalCompletedHabits: 1,
		TotalGivenUpHabits:   1,
		TotalCompletedTasks:  4,
		AverageProgress:      50,
		CompletionRate:       33,
		RecentCompletions:    0,
		MonthlyCompletions:   4,
	}
	got := stats
	got.Categories, got.Difficulties = nil, nil
	got.TotalStreak, got.LongestStreak = 0, 0
	if !reflect.DeepEqual(got, want) {
		t.Errorf("GetAggregateStats() = %+v, want %+v", got, want)
	}
	if stats.Categories["mind"].Total != 2 || stats.Categories["mind"].GivenUp != 1 || stats.Categories["health"].Completed != 1 {
		t.Errorf("Categories = %+v", stats.Categories)
	}
	if stats.Difficulties[string(constants.DifficultyAdvanced)].Active != 1 {
		t.Errorf("Difficulties = %+v", stats.Difficulties)
	}
}

func TestUserLocksReleaseEntries(t *testing.T) {
	l := newUserLocks()
	unlock := l.lock("u1")
	if l.size() != 1 {
		t.Fatalf("size() = %d, want 1", l.size())
	}

	acquired := make(chan struct{})
	go func() {
		release := l.lock("u1")
		close(acquired)
		release()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while the first was held")
	case <-time.After(20 * time.Millisecond):
	}
	unlock()
	<-acquired

	// The goroutine releases right after signalling.
	deadline := time.Now().Add(time.Second)
	for l.size() != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if l.size() != 0 {
		t.Errorf("size() = %d after release, want 0", l.size())
	}
}
