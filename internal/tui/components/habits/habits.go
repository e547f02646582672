package habits

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/julianstephens/habitrun/internal/constants"
	"github.com/julianstephens/habitrun/internal/models"
)

type StopHabitMsg struct {
	HabitID string
}

type ResetHabitMsg struct {
	HabitID string
}

type Item struct {
	Enrollment models.Enrollment
	HabitTitle string
}

func (i Item) Title() string {
	title := i.HabitTitle
	if title == "" {
		title = i.Enrollment.HabitID
	}
	switch i.Enrollment.Status() {
	case constants.StatusCompleted:
		return "✓ " + title
	case constants.StatusAbandoned:
		return "[GIVEN UP] " + title
	default:
		return "▶ " + title
	}
}

func (i Item) Description() string {
	e := i.Enrollment
	return fmt.Sprintf("day %d  %s %d%%  streak %d (best %d)",
		e.CurrentDay, bar(e.ProgressPercentage, 10), e.ProgressPercentage, e.Streak, e.LongestStreak)
}

func (i Item) FilterValue() string { return i.HabitTitle }

func bar(pct, width int) string {
	pct = max(constants.MinProgress, min(pct, constants.MaxProgress))
	filled := pct * width / constants.MaxProgress
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

type KeyMap struct {
	Stop  key.Binding
	Reset key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Stop: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "give up"),
		),
		Reset: key.NewBinding(
			key.WithKeys("R"),
			key.WithHelp("R", "restart"),
		),
	}
}

type Model struct {
	list list.Model
	keys KeyMap
}

func New(width, height int) Model {
	l := list.New(nil, list.NewDefaultDelegate(), width, height)
	l.Title = "Habits"
	l.SetShowTitle(false)
	l.SetShowHelp(false)

	keys := DefaultKeyMap()
	l.AdditionalShortHelpKeys = func() []key.Binding {
		return []key.Binding{keys.Stop, keys.Reset}
	}
	l.AdditionalFullHelpKeys = func() []key.Binding {
		return []key.Binding{keys.Stop, keys.Reset}
	}

	return Model{list: l, keys: keys}
}

// SetEnrollments shows active enrollments first, then finished ones.
func (m *Model) SetEnrollments(enrollments []models.Enrollment, titles map[string]string) {
	var active, rest []list.Item
	for _, e := range enrollments {
		it := Item{Enrollment: e, HabitTitle: titles[e.HabitID]}
		if e.IsActive {
			active = append(active, it)
		} else {
			rest = append(rest, it)
		}
	}
	m.list.SetItems(append(active, rest...))
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd

	if msg, ok := msg.(tea.KeyMsg); ok && m.list.FilterState() != list.Filtering {
		switch {
		case key.Matches(msg, m.keys.Stop):
			if i, ok := m.list.SelectedItem().(Item); ok && i.Enrollment.IsActive {
				return m, func() tea.Msg { return StopHabitMsg{HabitID: i.Enrollment.HabitID} }
			}
			return m, nil
		case key.Matches(msg, m.keys.Reset):
			if i, ok := m.list.SelectedItem().(Item); ok && i.Enrollment.IsActive {
				return m, func() tea.Msg { return ResetHabitMsg{HabitID: i.Enrollment.HabitID} }
			}
			return m, nil
		}
	}

	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if len(m.list.Items()) == 0 && m.list.FilterState() != list.Filtering {
		return "\n  No enrollments yet.\n  Start one with 'habitrun enroll start'."
	}
	return m.list.View()
}

func (m *Model) SetSize(width, height int) {
	m.list.SetSize(width, height)
}

// Filtering reports whether the list is capturing keystrokes for its filter.
func (m Model) Filtering() bool {
	return m.list.FilterState() == list.Filtering
}
