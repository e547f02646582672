// Package storagetest holds the behavioural checks every storage.Provider must pass.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/habitrun/internal/constants"
	apperrors "github.com/julianstephens/habitrun/internal/errors"
	"github.com/julianstephens/habitrun/internal/models"
	"github.com/julianstephens/habitrun/internal/storage"
)

// baseTime has microsecond precision so it survives every backend unchanged.
var baseTime = time.Date(2026, time.March, 2, 8, 30, 0, 0, time.UTC)

// Run exercises store, which must already be initialized. Ids are randomised so
// a shared database can be reused across runs.
func Run(t *testing.T, store storage.Provider) {
	t.Helper()
	tests := []struct {
		name string
		fn   func(t *testing.T, store storage.Provider)
	}{
		{"EnrollmentRoundTrip", testEnrollmentRoundTrip},
		{"OneActivePerHabit", testOneActivePerHabit},
		{"SaveEnrollmentRevision", testSaveEnrollmentRevision},
		{"ListEnrollments", testListEnrollments},
		{"OutboxAndLedger", testOutboxAndLedger},
		{"Catalog", testCatalog},
		{"Roster", testRoster},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, store)
		})
	}
}

func newID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

// NewEnrollment returns a fresh active enrollment for user in habit.
func NewEnrollment(userID, habitID string, start time.Time) models.Enrollment {
	return models.Enrollment{
		ID:            uuid.NewString(),
		UserID:        userID,
		HabitID:       habitID,
		StartDate:     start,
		CurrentDay:    1,
		IsActive:      true,
		CompletedDays: []models.CompletionRecord{},
		Revision:      1,
		CreatedAt:     start,
		UpdatedAt:     start,
	}
}

func intPtr(v int) *int { return &v }

func testEnrollmentRoundTrip(t *testing.T, store storage.Provider) {
	ctx := context.Background()
	user, habit := newID("user"), newID("habit")

	e := NewEnrollment(user, habit, baseTime)
	if err := store.InsertEnrollment(ctx, e); err != nil {
		t.Fatalf("InsertEnrollment() error = %v", err)
	}

	last := baseTime.Add(2 * time.Hour)
	e.CompletedDays = []models.CompletionRecord{
		{Day: 1, TaskID: "t1", CompletedAt: last, CompletionTime: intPtr(15), Notes: "felt good", Rating: intPtr(4)},
		{Day: 1, CompletedAt: last},
	}
	e.TotalCompletedTasks = 2
	e.Streak = 1
	e.LongestStreak = 1
	e.ProgressPercentage = 33
	e.LastCompletedDate = &last
	e.UpdatedAt = last

	saved, err := store.SaveEnrollment(ctx, e, e.Revision, nil)
	if err != nil {
		t.Fatalf("SaveEnrollment() error = %v", err)
	}
	if saved.Revision != 2 {
		t.Errorf("saved revision = %d, want 2", saved.Revision)
	}

	got, err := store.FindActiveEnrollment(ctx, user, habit)
	if err != nil {
		t.Fatalf("FindActiveEnrollment() error = %v", err)
	}
	if got.ID != e.ID || got.Revision != 2 {
		t.Errorf("FindActiveEnrollment() = %s rev %d, want %s rev 2", got.ID, got.Revision, e.ID)
	}
	if !got.StartDate.Equal(baseTime) {
		t.Errorf("StartDate = %v, want %v", got.StartDate, baseTime)
	}
	if got.LastCompletedDate == nil || !got.LastCompletedDate.Equal(last) {
		t.Errorf("LastCompletedDate = %v, want %v", got.LastCompletedDate, last)
	}
	if got.TotalCompletedTasks != 2 || got.ProgressPercentage != 33 || got.Streak != 1 {
		t.Errorf("metrics = %d/%d/%d, want 2/33/1", got.TotalCompletedTasks, got.ProgressPercentage, got.Streak)
	}
	if len(got.CompletedDays) != 2 {
		t.Fatalf("CompletedDays has %d records, want 2", len(got.CompletedDays))
	}
	r := got.CompletedDays[0]
	if r.TaskID != "t1" || r.Notes != "felt good" || r.Rating == nil || *r.Rating != 4 || r.CompletionTime == nil || *r.CompletionTime != 15 {
		t.Errorf("first record = %+v", r)
	}
	if got.CompletedDays[1].TaskID != "" || got.CompletedDays[1].Rating != nil {
		t.Errorf("day-only record = %+v", got.CompletedDays[1])
	}

	byID, err := store.GetEnrollment(ctx, user, e.ID)
	if err != nil {
		t.Fatalf("GetEnrollment() error = %v", err)
	}
	if byID.ID != e.ID {
		t.Errorf("GetEnrollment() id = %s, want %s", byID.ID, e.ID)
	}

	if _, err := store.GetEnrollment(ctx, newID("other"), e.ID); !errors.Is(err, apperrors.ErrNoRecord) {
		t.Errorf("GetEnrollment() for another user error = %v, want ErrNoRecord", err)
	}
	if _, err := store.FindActiveEnrollment(ctx, user, newID("habit")); !errors.Is(err, apperrors.ErrNoRecord) {
		t.Errorf("FindActiveEnrollment() for unknown habit error = %v, want ErrNoRecord", err)
	}
}

func testOneActivePerHabit(t *testing.T, store storage.Provider) {
	ctx := context.Background()
	user, habit := newID("user"), newID("habit")

	first := NewEnrollment(user, habit, baseTime)
	if err := store.InsertEnrollment(ctx, first); err != nil {
		t.Fatalf("InsertEnrollment() error = %v", err)
	}

	dup := NewEnrollment(user, habit, baseTime.Add(time.Minute))
	if err := store.InsertEnrollment(ctx, dup); !errors.Is(err, apperrors.ErrDuplicateActive) {
		t.Fatalf("duplicate InsertEnrollment() error = %v, want ErrDuplicateActive", err)
	}

	first.IsActive = false
	if _, err := store.SaveEnrollment(ctx, first, first.Revision, nil); err != nil {
		t.Fatalf("SaveEnrollment(stop) error = %v", err)
	}

	if err := store.InsertEnrollment(ctx, dup); err != nil {
		t.Fatalf("InsertEnrollment() after stop error = %v", err)
	}

	all, err := store.ListEnrollments(ctx, user, models.EnrollmentFilter{HabitID: habit})
	if err != nil {
		t.Fatalf("ListEnrollments() error = %v", err)
	}
	if len(all) != 2 {
		t.Errorf("ListEnrollments() returned %d, want abandoned and new to coexist", len(all))
	}
}

func testSaveEnrollmentRevision(t *testing.T, store storage.Provider) {
	ctx := context.Background()
	user, habit := newID("user"), newID("habit")

	e := NewEnrollment(user, habit, baseTime)
	if err := store.InsertEnrollment(ctx, e); err != nil {
		t.Fatalf("InsertEnrollment() error = %v", err)
	}

	e.Streak = 1
	if _, err := store.SaveEnrollment(ctx, e, 1, nil); err != nil {
		t.Fatalf("SaveEnrollment() error = %v", err)
	}

	e.Streak = 9
	if _, err := store.SaveEnrollment(ctx, e, 1, nil); !errors.Is(err, apperrors.ErrRevisionConflict) {
		t.Fatalf("stale SaveEnrollment() error = %v, want ErrRevisionConflict", err)
	}

	got, err := store.FindActiveEnrollment(ctx, user, habit)
	if err != nil {
		t.Fatalf("FindActiveEnrollment() error = %v", err)
	}
	if got.Streak != 1 {
		t.Errorf("stale write leaked: streak = %d, want 1", got.Streak)
	}

	missing := NewEnrollment(user, newID("habit"), baseTime)
	if _, err := store.SaveEnrollment(ctx, missing, 1, nil); !errors.Is(err, apperrors.ErrNoRecord) {
		t.Errorf("SaveEnrollment() for unknown id error = %v, want ErrNoRecord", err)
	}
}

func testListEnrollments(t *testing.T, store storage.Provider) {
	ctx := context.Background()
	user, other, habit := newID("user"), newID("other"), newID("habit")
	habitB := newID("habit")

	mine := NewEnrollment(user, habit, baseTime)
	mineB := NewEnrollment(user, habitB, baseTime.Add(time.Hour))
	theirs := NewEnrollment(other, habit, baseTime.Add(2*time.Hour))
	for _, e := range []models.Enrollment{mine, mineB, theirs} {
		if err := store.InsertEnrollment(ctx, e); err != nil {
			t.Fatalf("InsertEnrollment() error = %v", err)
		}
	}

	mineB.IsActive = false
	if _, err := store.SaveEnrollment(ctx, mineB, mineB.Revision, nil); err != nil {
		t.Fatalf("SaveEnrollment() error = %v", err)
	}

	all, err := store.ListEnrollments(ctx, user, models.EnrollmentFilter{})
	if err != nil {
		t.Fatalf("ListEnrollments() error = %v", err)
	}
	if len(all) != 2 {
		t.Errorf("ListEnrollments() returned %d, want 2", len(all))
	}

	active, err := store.ListEnrollments(ctx, user, models.EnrollmentFilter{ActiveOnly: true})
	if err != nil {
		t.Fatalf("ListEnrollments(active) error = %v", err)
	}
	if len(active) != 1 || active[0].ID != mine.ID {
		t.Errorf("ListEnrollments(active) = %v, want only %s", active, mine.ID)
	}

	peers, err := store.ListActiveEnrollmentsForHabit(ctx, habit, user, 10)
	if err != nil {
		t.Fatalf("ListActiveEnrollmentsForHabit() error = %v", err)
	}
	if len(peers) != 1 || peers[0].UserID != other {
		t.Errorf("ListActiveEnrollmentsForHabit() = %v, want only %s", peers, other)
	}

	none, err := store.ListActiveEnrollmentsForHabit(ctx, habit, user, 0)
	if err != nil {
		t.Fatalf("ListActiveEnrollmentsForHabit(limit 0) error = %v", err)
	}
	if len(none) != 0 {
		t.Errorf("ListActiveEnrollmentsForHabit(limit 0) returned %d", len(none))
	}
}

func testOutboxAndLedger(t *testing.T, store storage.Provider) {
	ctx := context.Background()
	user, habit := newID("user"), newID("habit")

	e := NewEnrollment(user, habit, baseTime)
	if err := store.InsertEnrollment(ctx, e); err != nil {
		t.Fatalf("InsertEnrollment() error = %v", err)
	}

	done := baseTime.Add(time.Hour)
	e.IsActive = false
	e.IsCompleted = true
	e.CompletedAt = &done
	ev := models.CompletionEvent{
		ID:           uuid.NewString(),
		EnrollmentID: e.ID,
		UserID:       user,
		HabitID:      habit,
		OccurredAt:   done,
	}
	saved, err := store.SaveEnrollment(ctx, e, e.Revision, []models.CompletionEvent{ev})
	if err != nil {
		t.Fatalf("SaveEnrollment() error = %v", err)
	}

	// A second event for the same enrollment is ignored.
	replay := ev
	replay.ID = uuid.NewString()
	if _, err := store.SaveEnrollment(ctx, saved, saved.Revision, []models.CompletionEvent{replay}); err != nil {
		t.Fatalf("SaveEnrollment(replay) error = %v", err)
	}

	pending := pendingFor(t, store, e.ID)
	if len(pending) != 1 || pending[0].ID != ev.ID {
		t.Fatalf("pending events = %v, want only %s", pending, ev.ID)
	}

	if err := store.MarkEventFailed(ctx, ev.ID, "roster offline"); err != nil {
		t.Fatalf("MarkEventFailed() error = %v", err)
	}
	pending = pendingFor(t, store, e.ID)
	if len(pending) != 1 || pending[0].Attempts != 1 || pending[0].LastError != "roster offline" {
		t.Fatalf("after failure pending = %+v", pending)
	}

	granted, err := store.GrantReward(ctx, ev.ID, user, constants.RewardUnitsPerCompletion, done)
	if err != nil || !granted {
		t.Fatalf("GrantReward() = %v, %v; want true, nil", granted, err)
	}
	granted, err = store.GrantReward(ctx, ev.ID, user, constants.RewardUnitsPerCompletion, done)
	if err != nil || granted {
		t.Fatalf("second GrantReward() = %v, %v; want false, nil", granted, err)
	}

	other := uuid.NewString()
	if _, err := store.GrantReward(ctx, other, user, constants.RewardUnitsPerCompletion, done); err != nil {
		t.Fatalf("GrantReward(other event) error = %v", err)
	}
	balance, err := store.RewardBalance(ctx, user)
	if err != nil {
		t.Fatalf("RewardBalance() error = %v", err)
	}
	if balance != 2 {
		t.Errorf("RewardBalance() = %d, want 2", balance)
	}
	if b, err := store.RewardBalance(ctx, newID("nobody")); err != nil || b != 0 {
		t.Errorf("RewardBalance(unknown) = %d, %v; want 0, nil", b, err)
	}

	if err := store.MarkEventDispatched(ctx, ev.ID, done.Add(time.Second)); err != nil {
		t.Fatalf("MarkEventDispatched() error = %v", err)
	}
	if pending := pendingFor(t, store, e.ID); len(pending) != 0 {
		t.Errorf("dispatched event still pending: %+v", pending)
	}
}

func pendingFor(t *testing.T, store storage.Provider, enrollmentID string) []models.CompletionEvent {
	t.Helper()
	events, err := store.PendingEvents(context.Background(), 1000, constants.DefaultDispatchMaxAttempts)
	if err != nil {
		t.Fatalf("PendingEvents() error = %v", err)
	}
	var out []models.CompletionEvent
	for _, ev := range events {
		if ev.EnrollmentID == enrollmentID {
			out = append(out, ev)
		}
	}
	return out
}

func testCatalog(t *testing.T, store storage.Provider) {
	ctx := context.Background()
	habitID := newID("habit")

	def := models.HabitDefinition{
		Habit: models.Habit{
			ID:           habitID,
			Title:        "Morning Pages",
			Category:     "mindfulness",
			Difficulty:   constants.DifficultyBeginner,
			DurationDays: 21,
			CreatedAt:    baseTime,
		},
		Tasks: []models.CatalogTask{
			{ID: "write", Title: "Write three pages", Days: []int{1, 2, 3}, Week: 1, SortOrder: 2, Active: true},
			{ID: "breathe", Title: "Breathe", Days: []int{1}, Week: 1, SortOrder: 1, Active: true},
			{ID: "reflect", Title: "Reflect", Days: []int{8}, Week: 2, SortOrder: 0, Active: true},
		},
	}
	if err := store.ImportHabitDefinition(ctx, def); err != nil {
		t.Fatalf("ImportHabitDefinition() error = %v", err)
	}

	h, err := store.GetHabit(ctx, habitID)
	if err != nil {
		t.Fatalf("GetHabit() error = %v", err)
	}
	if h.Title != "Morning Pages" || h.Difficulty != constants.DifficultyBeginner || h.DurationDays != 21 {
		t.Errorf("GetHabit() = %+v", h)
	}

	tasks, err := store.TasksFor(ctx, habitID)
	if err != nil {
		t.Fatalf("TasksFor() error = %v", err)
	}
	gotIDs := make([]string, len(tasks))
	for i, task := range tasks {
		gotIDs[i] = task.ID
	}
	wantIDs := []string{"breathe", "write", "reflect"}
	if len(gotIDs) != len(wantIDs) {
		t.Fatalf("TasksFor() = %v, want %v", gotIDs, wantIDs)
	}
	for i := range wantIDs {
		if gotIDs[i] != wantIDs[i] {
			t.Fatalf("TasksFor() order = %v, want %v", gotIDs, wantIDs)
		}
	}
	if len(tasks[1].Days) != 3 || tasks[1].HabitID != habitID {
		t.Errorf("write task = %+v", tasks[1])
	}

	// Re-import without "reflect" deactivates it.
	def.Habit.Title = "Morning Pages v2"
	def.Tasks = def.Tasks[:2]
	if err := store.ImportHabitDefinition(ctx, def); err != nil {
		t.Fatalf("re-import error = %v", err)
	}
	tasks, err = store.TasksFor(ctx, habitID)
	if err != nil {
		t.Fatalf("TasksFor() error = %v", err)
	}
	if len(tasks) != 2 {
		t.Errorf("TasksFor() after re-import returned %d tasks, want 2", len(tasks))
	}
	if h, _ := store.GetHabit(ctx, habitID); h.Title != "Morning Pages v2" {
		t.Errorf("re-import title = %q", h.Title)
	}

	habits, err := store.ListHabits(ctx)
	if err != nil {
		t.Fatalf("ListHabits() error = %v", err)
	}
	found := false
	for _, h := range habits {
		if h.ID == habitID {
			found = true
		}
	}
	if !found {
		t.Error("ListHabits() is missing the imported habit")
	}

	if _, err := store.GetHabit(ctx, newID("habit")); !errors.Is(err, apperrors.ErrNoRecord) {
		t.Errorf("GetHabit(unknown) error = %v, want ErrNoRecord", err)
	}
	if tasks, err := store.TasksFor(ctx, newID("habit")); err != nil || len(tasks) != 0 {
		t.Errorf("TasksFor(unknown) = %v, %v; want empty", tasks, err)
	}
}

func testRoster(t *testing.T, store storage.Provider) {
	ctx := context.Background()
	habit, alice, bob := newID("habit"), newID("alice"), newID("bob")

	updated, err := store.SetRosterProgress(ctx, habit, alice, 50, baseTime)
	if err != nil {
		t.Fatalf("SetRosterProgress() error = %v", err)
	}
	if updated {
		t.Error("SetRosterProgress() updated a user who never joined")
	}

	for i, user := range []string{alice, bob} {
		at := baseTime.Add(time.Duration(i) * time.Minute)
		entry := models.RosterEntry{HabitID: habit, UserID: user, JoinedAt: at, UpdatedAt: at}
		if err := store.JoinRoster(ctx, entry); err != nil {
			t.Fatalf("JoinRoster(%s) error = %v", user, err)
		}
	}

	updated, err = store.SetRosterProgress(ctx, habit, bob, 100, baseTime.Add(time.Hour))
	if err != nil || !updated {
		t.Fatalf("SetRosterProgress(bob) = %v, %v; want true, nil", updated, err)
	}

	entries, err := store.Roster(ctx, habit)
	if err != nil {
		t.Fatalf("Roster() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Roster() returned %d entries, want 2", len(entries))
	}
	if entries[0].UserID != bob || entries[0].Progress != 100 {
		t.Errorf("Roster()[0] = %+v, want bob at 100", entries[0])
	}

	if err := store.LeaveRoster(ctx, habit, alice); err != nil {
		t.Fatalf("LeaveRoster() error = %v", err)
	}
	entries, err = store.Roster(ctx, habit)
	if err != nil {
		t.Fatalf("Roster() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Roster() after leave returned %d entries, want 1", len(entries))
	}
}
