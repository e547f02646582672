package tui

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/julianstephens/habitrun/internal/catalog"
	"github.com/julianstephens/habitrun/internal/models"
	"github.com/julianstephens/habitrun/internal/service"
	"github.com/julianstephens/habitrun/internal/storage/sqlite"
	"github.com/julianstephens/habitrun/internal/tui/components/habits"
	"github.com/julianstephens/habitrun/internal/tui/components/today"
)

const testCatalog = `[
  {
    "habit": {"id": "stretch", "title": "Stretch"},
    "tasks": [
      {"id": "neck", "title": "Neck rolls", "days": [1]},
      {"id": "hips", "title": "Hip openers", "days": [1]}
    ]
  }
]`

func setupTestModel(t *testing.T) (Model, *service.Service) {
	t.Helper()
	store := sqlite.NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err := store.Init(); err != nil {
		t.Fatalf("failed to init store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	defs, err := catalog.Decode(strings.NewReader(testCatalog))
	if err != nil {
		t.Fatalf("failed to decode catalog: %v", err)
	}
	if _, err := catalog.Import(context.Background(), store, defs, catalog.ImportOptions{}); err != nil {
		t.Fatalf("failed to import catalog: %v", err)
	}

	cat := catalog.NewClient(store)
	svc := service.New(store, cat, service.WithLocation(time.UTC))
	if _, err := svc.StartEnrollment(context.Background(), "ana", "stretch"); err != nil {
		t.Fatalf("failed to start enrollment: %v", err)
	}

	m := NewModel(svc, cat, "ana", time.UTC)
	m = send(t, m, tea.WindowSizeMsg{Width: 80, Height: 40})
	return run(t, m, m.Init()), svc
}

// send delivers msg and returns the updated model.
func send(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	updated, _ := m.Update(msg)
	return updated.(Model)
}

// run executes cmd and feeds its messages back until no command remains.
func run(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	for i := 0; cmd != nil; i++ {
		if i > 10 {
			t.Fatal("command chain did not settle")
		}
		msg := cmd()
		var updated tea.Model
		updated, cmd = m.Update(msg)
		m = updated.(Model)
	}
	return m
}

func press(t *testing.T, m Model, k string) Model {
	t.Helper()
	var msg tea.KeyMsg
	switch k {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		msg = tea.KeyMsg{Type: tea.KeyTab}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	}
	updated, cmd := m.Update(msg)
	return run(t, updated.(Model), cmd)
}

func TestItems(t *testing.T) {
	tasks := []models.CatalogTask{{ID: "neck", Title: "Neck rolls"}, {ID: "hips", Title: "Hip openers"}}

	tests := []struct {
		name  string
		today []models.TodayTask
		want  []today.Item
	}{
		{
			name: "tasks with one done",
			today: []models.TodayTask{{
				HabitID:     "stretch",
				Day:         2,
				Tasks:       tasks,
				Completions: []models.CompletionRecord{{Day: 2, TaskID: "hips"}},
			}},
			want: []today.Item{
				{HabitID: "stretch", HabitTitle: "Stretch", Day: 2, TaskID: "neck", TaskTitle: "Neck rolls"},
				{HabitID: "stretch", HabitTitle: "Stretch", Day: 2, TaskID: "hips", TaskTitle: "Hip openers", Done: true},
			},
		},
		{
			name:  "day without catalog tasks",
			today: []models.TodayTask{{HabitID: "walk", Day: 5}},
			want:  []today.Item{{HabitID: "walk", HabitTitle: "walk", Day: 5}},
		},
		{
			name: "day logged",
			today: []models.TodayTask{{
				HabitID:     "walk",
				Day:         5,
				Completions: []models.CompletionRecord{{Day: 5}},
			}},
			want: []today.Item{{HabitID: "walk", HabitTitle: "walk", Day: 5, Done: true}},
		},
	}

	titles := map[string]string{"stretch": "Stretch"}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := today.Items(tt.today, titles)
			if len(got) != len(tt.want) {
				t.Fatalf("Items() returned %d items, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("item %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestModelCompleteAndUndo(t *testing.T) {
	m, svc := setupTestModel(t)

	item, ok := m.todayModel.Selected()
	if !ok {
		t.Fatal("expected a selected task after loading")
	}
	if item.TaskID != "neck" || item.Done {
		t.Fatalf("selected = %+v, want pending neck task", item)
	}

	m = press(t, m, "enter")
	if m.err != nil {
		t.Fatalf("complete failed: %v", m.err)
	}
	if item, _ = m.todayModel.Selected(); !item.Done {
		t.Errorf("neck should be done after enter, got %+v", item)
	}
	if !strings.Contains(m.status, "50%") {
		t.Errorf("status = %q, want progress 50%%", m.status)
	}

	p, err := svc.GetHabitProgress(context.Background(), "ana", "stretch")
	if err != nil {
		t.Fatalf("GetHabitProgress() error = %v", err)
	}
	if p.Enrollment.ProgressPercentage != 50 {
		t.Errorf("progress = %d, want 50", p.Enrollment.ProgressPercentage)
	}

	m = press(t, m, "u")
	if item, _ = m.todayModel.Selected(); item.Done {
		t.Errorf("neck should be pending after undo, got %+v", item)
	}
	if !strings.Contains(m.View(), "Today") {
		t.Error("view should render the tab bar")
	}
}

func TestModelStopConfirmation(t *testing.T) {
	m, svc := setupTestModel(t)

	m = press(t, m, "tab")
	if m.state != StateHabits {
		t.Fatalf("state = %v, want StateHabits", m.state)
	}

	m = press(t, m, "x")
	if m.state != StateConfirmStop || m.pendingHabit != "stretch" {
		t.Fatalf("state = %v pending = %q, want stop confirmation for stretch", m.state, m.pendingHabit)
	}
	m = press(t, m, "n")
	if m.state != StateHabits {
		t.Fatalf("state = %v after cancel, want StateHabits", m.state)
	}

	active, err := svc.ListActiveEnrollments(context.Background(), "ana")
	if err != nil {
		t.Fatalf("ListActiveEnrollments() error = %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("cancel should keep the enrollment, got %d active", len(active))
	}

	m = press(t, m, "x")
	m = press(t, m, "y")
	if m.err != nil {
		t.Fatalf("stop failed: %v", m.err)
	}
	active, err = svc.ListActiveEnrollments(context.Background(), "ana")
	if err != nil {
		t.Fatalf("ListActiveEnrollments() error = %v", err)
	}
	if len(active) != 0 {
		t.Errorf("got %d active enrollments after stop, want 0", len(active))
	}
	if _, ok := m.todayModel.Selected(); ok {
		t.Error("today view should be empty after stopping the only habit")
	}
}

func TestModelHabitMessages(t *testing.T) {
	m, _ := setupTestModel(t)

	m = send(t, m, habits.ResetHabitMsg{HabitID: "stretch"})
	if m.state != StateConfirmReset {
		t.Fatalf("state = %v, want StateConfirmReset", m.state)
	}
	m = press(t, m, "y")
	if m.err != nil {
		t.Fatalf("reset failed: %v", m.err)
	}
	if !strings.Contains(m.status, "Restarted") {
		t.Errorf("status = %q, want restart message", m.status)
	}
}

func TestModelQuit(t *testing.T) {
	m, _ := setupTestModel(t)

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	m = updated.(Model)
	if !m.quitting {
		t.Error("expected quitting after q")
	}
	if cmd == nil {
		t.Fatal("expected a quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
	if m.View() != "" {
		t.Error("view should be empty while quitting")
	}
}
