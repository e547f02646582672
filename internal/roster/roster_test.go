package roster

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/julianstephens/habitrun/internal/constants"
	apperrors "github.com/julianstephens/habitrun/internal/errors"
	"github.com/julianstephens/habitrun/internal/storage/sqlite"
)

func newStoreRoster(t *testing.T) Roster {
	t.Helper()
	store := sqlite.NewStore(filepath.Join(t.TempDir(), "habitrun.db"))
	if err := store.Init(); err != nil {
		t.Fatalf("failed to init store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	r, err := Open(context.Background(), store, "")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, ok := r.(*Store); !ok {
		t.Fatalf("Open() without redis returned %T, want *Store", r)
	}
	return r
}

func newRedisRoster(t *testing.T) Roster {
	t.Helper()
	addr := os.Getenv(constants.EnvRedis)
	if addr == "" {
		t.Skipf("%s not set", constants.EnvRedis)
	}
	r, err := NewRedis(context.Background(), addr)
	if err != nil {
		t.Fatalf("NewRedis() error = %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestStoreRoster(t *testing.T) {
	testRoster(t, newStoreRoster(t))
}

func TestRedisRoster(t *testing.T) {
	testRoster(t, newRedisRoster(t))
}

func testRoster(t *testing.T, r Roster) {
	ctx := context.Background()
	habit := "habit-" + uuid.NewString()
	t.Cleanup(func() {
		for _, u := range []string{"alice", "bob", "carol"} {
			_ = r.Leave(context.Background(), habit, u)
		}
	})

	ok, err := r.SetProgress(ctx, habit, "alice", 100)
	if err != nil || ok {
		t.Fatalf("SetProgress() before join = %v, %v; want false, nil", ok, err)
	}
	list, err := r.List(ctx, habit)
	if err != nil || len(list) != 0 {
		t.Fatalf("SetProgress() before join created an entry: %+v, %v", list, err)
	}

	for user, progress := range map[string]int{"alice": 10, "bob": 40, "carol": 0} {
		if err := r.Join(ctx, habit, user, progress); err != nil {
			t.Fatalf("Join(%s) error = %v", user, err)
		}
	}

	ok, err = r.SetProgress(ctx, habit, "alice", 100)
	if err != nil || !ok {
		t.Fatalf("SetProgress() after join = %v, %v; want true, nil", ok, err)
	}

	list, err = r.List(ctx, habit)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []struct {
		user     string
		progress int
	}{{"alice", 100}, {"bob", 40}, {"carol", 0}}
	if len(list) != len(want) {
		t.Fatalf("List() returned %d entries, want %d", len(list), len(want))
	}
	for i, w := range want {
		if list[i].UserID != w.user || list[i].Progress != w.progress {
			t.Errorf("List()[%d] = %s/%d, want %s/%d", i, list[i].UserID, list[i].Progress, w.user, w.progress)
		}
		if list[i].HabitID != habit {
			t.Errorf("List()[%d].HabitID = %q, want %q", i, list[i].HabitID, habit)
		}
	}

	if err := r.Leave(ctx, habit, "bob"); err != nil {
		t.Fatalf("Leave() error = %v", err)
	}
	list, _ = r.List(ctx, habit)
	if len(list) != 2 {
		t.Errorf("List() after leave returned %d entries, want 2", len(list))
	}

	if _, err := r.SetProgress(ctx, habit, "alice", 101); !apperrors.IsInvalidInput(err) {
		t.Errorf("SetProgress(101) error = %v, want invalid input", err)
	}
	if err := r.Join(ctx, habit, "", 0); !apperrors.IsInvalidInput(err) {
		t.Errorf("Join(blank user) error = %v, want invalid input", err)
	}
}
