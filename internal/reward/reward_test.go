package reward

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/habitrun/internal/constants"
	"github.com/julianstephens/habitrun/internal/models"
	"github.com/julianstephens/habitrun/internal/storage/sqlite"
	"github.com/julianstephens/habitrun/internal/storage/storagetest"
)

var (
	baseTime = time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC)
	eventSeq atomic.Int32
)

func setupStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store := sqlite.NewStore(filepath.Join(t.TempDir(), "habitrun.db"))
	if err := store.Init(); err != nil {
		t.Fatalf("failed to init store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// completeEnrollment commits a finished enrollment with its outbox event.
func completeEnrollment(t *testing.T, store *sqlite.Store, userID, habitID string) models.CompletionEvent {
	t.Helper()
	ctx := context.Background()
	e := storagetest.NewEnrollment(userID, habitID, baseTime)
	if err := store.InsertEnrollment(ctx, e); err != nil {
		t.Fatalf("InsertEnrollment() error = %v", err)
	}

	// Distinct timestamps keep outbox order deterministic.
	done := baseTime.Add(time.Hour + time.Duration(eventSeq.Add(1))*time.Minute)
	e.IsActive = false
	e.IsCompleted = true
	e.CompletedAt = &done
	e.ProgressPercentage = 100
	ev := models.CompletionEvent{
		ID:           uuid.NewString(),
		EnrollmentID: e.ID,
		UserID:       userID,
		HabitID:      habitID,
		OccurredAt:   done,
	}
	if _, err := store.SaveEnrollment(ctx, e, e.Revision, []models.CompletionEvent{ev}); err != nil {
		t.Fatalf("SaveEnrollment() error = %v", err)
	}
	return ev
}

type fakeRoster struct {
	mu    sync.Mutex
	err   error
	calls []string
}

func (r *fakeRoster) SetProgress(ctx context.Context, habitID, userID string, progress int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, habitID+"/"+userID)
	if r.err != nil {
		return false, r.err
	}
	if progress != constants.MaxProgress {
		return false, errors.New("unexpected progress")
	}
	return true, nil
}

type fakeAlerter struct {
	messages []string
	err      error
}

func (a *fakeAlerter) Notify(ctx context.Context, text string) error {
	a.messages = append(a.messages, text)
	return a.err
}

type flakyHandler struct {
	next     Handler
	failures int
}

func (h *flakyHandler) OnHabitCompleted(ctx context.Context, ev models.CompletionEvent) error {
	if h.failures > 0 {
		h.failures--
		return errors.New("ledger unavailable")
	}
	return h.next.OnHabitCompleted(ctx, ev)
}

func TestOnHabitCompletedGrantsOnce(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	ev := completeEnrollment(t, store, "u1", "H")

	roster := &fakeRoster{}
	alerts := &fakeAlerter{}
	n := NewNotifier(store, WithRoster(roster), WithAlerter(alerts, nil), WithNotifierClock(func() time.Time { return baseTime }))

	for i := 0; i < 3; i++ {
		if err := n.OnHabitCompleted(ctx, ev); err != nil {
			t.Fatalf("OnHabitCompleted() call %d error = %v", i+1, err)
		}
	}

	units, err := store.RewardBalance(ctx, "u1")
	if err != nil {
		t.Fatalf("RewardBalance() error = %v", err)
	}
	if units != constants.RewardUnitsPerCompletion {
		t.Errorf("RewardBalance() = %d, want %d", units, constants.RewardUnitsPerCompletion)
	}
	if len(roster.calls) != 3 {
		t.Errorf("roster synced %d times, want every delivery", len(roster.calls))
	}
	if len(alerts.messages) != 1 || !strings.Contains(alerts.messages[0], "H") {
		t.Errorf("alerts = %v, want one for the first grant", alerts.messages)
	}
}

func TestOnHabitCompletedSwallowsSecondaryFailures(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	ev := completeEnrollment(t, store, "u1", "H")

	roster := &fakeRoster{err: errors.New("roster down")}
	alerts := &fakeAlerter{err: errors.New("tray not running")}
	n := NewNotifier(store, WithRoster(roster), WithAlerter(alerts, nil))

	if err := n.OnHabitCompleted(ctx, ev); err != nil {
		t.Fatalf("OnHabitCompleted() error = %v, want secondary failures swallowed", err)
	}
	if units, _ := store.RewardBalance(ctx, "u1"); units != 1 {
		t.Errorf("RewardBalance() = %d, want 1", units)
	}
	e, err := store.GetEnrollment(ctx, "u1", ev.EnrollmentID)
	if err != nil || !e.IsCompleted {
		t.Errorf("enrollment after failed sync = %+v, %v; want still completed", e, err)
	}
}

func TestDispatchPendingRetriesWithoutDoubleGrant(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	ev1 := completeEnrollment(t, store, "u1", "H")
	completeEnrollment(t, store, "u2", "H")

	handler := &flakyHandler{next: NewNotifier(store), failures: 1}
	d := NewDispatcher(store, handler, DispatcherConfig{BatchSize: 10, MaxAttempts: 3})

	delivered, err := d.DispatchPending(ctx)
	if err != nil {
		t.Fatalf("DispatchPending() error = %v", err)
	}
	if delivered != 1 {
		t.Fatalf("first pass delivered %d, want 1", delivered)
	}

	pending, err := store.PendingEvents(ctx, 10, 3)
	if err != nil {
		t.Fatalf("PendingEvents() error = %v", err)
	}
	if len(pending) != 1 || pending[0].ID != ev1.ID || pending[0].Attempts != 1 || pending[0].LastError == "" {
		t.Fatalf("pending after failure = %+v", pending)
	}

	delivered, err = d.DispatchPending(ctx)
	if err != nil || delivered != 1 {
		t.Fatalf("second pass = %d, %v; want 1, nil", delivered, err)
	}
	// Redelivering an already credited event changes nothing.
	if err := handler.OnHabitCompleted(ctx, ev1); err != nil {
		t.Fatalf("redelivery error = %v", err)
	}

	for _, user := range []string{"u1", "u2"} {
		if units, _ := store.RewardBalance(ctx, user); units != 1 {
			t.Errorf("RewardBalance(%s) = %d, want 1", user, units)
		}
	}
	if pending, _ := store.PendingEvents(ctx, 10, 3); len(pending) != 0 {
		t.Errorf("outbox not drained: %+v", pending)
	}
}

func TestDispatchPendingGivesUpAfterMaxAttempts(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	completeEnrollment(t, store, "u1", "H")

	handler := &flakyHandler{next: NewNotifier(store), failures: 100}
	d := NewDispatcher(store, handler, DispatcherConfig{BatchSize: 10, MaxAttempts: 2})

	for i := 0; i < 4; i++ {
		if _, err := d.DispatchPending(ctx); err != nil {
			t.Fatalf("DispatchPending() error = %v", err)
		}
	}
	if handler.failures != 98 {
		t.Errorf("handler called %d times, want 2", 100-handler.failures)
	}
	if units, _ := store.RewardBalance(ctx, "u1"); units != 0 {
		t.Errorf("RewardBalance() = %d, want 0", units)
	}
}

func TestDispatcherRunDrainsOnKick(t *testing.T) {
	store := setupStore(t)
	d := NewDispatcher(store, NewNotifier(store), DispatcherConfig{Interval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	completeEnrollment(t, store, "u1", "H")
	d.Kick()
	d.Kick() // never blocks

	deadline := time.Now().Add(2 * time.Second)
	for {
		units, err := store.RewardBalance(context.Background(), "u1")
		if err == nil && units == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("kick did not drain the outbox (units=%d, err=%v)", units, err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}
