package today

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/julianstephens/habitrun/internal/models"
)

type CompleteMsg struct {
	HabitID string
	Day     int
	TaskID  string
}

type UncompleteMsg struct {
	HabitID string
	Day     int
	TaskID  string
}

// Item is one loggable row. An empty TaskID stands for the day itself.
type Item struct {
	HabitID    string
	HabitTitle string
	Day        int
	TaskID     string
	TaskTitle  string
	Done       bool
}

func (i Item) Title() string {
	name := i.TaskTitle
	if i.TaskID == "" {
		name = fmt.Sprintf("Day %d", i.Day)
	}
	if i.Done {
		return "✓ " + name
	}
	return "○ " + name
}

func (i Item) Description() string {
	return fmt.Sprintf("%s · day %d", i.HabitTitle, i.Day)
}

func (i Item) FilterValue() string { return i.HabitTitle + " " + i.TaskTitle }

type KeyMap struct {
	Complete   key.Binding
	Uncomplete key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Complete: key.NewBinding(
			key.WithKeys("enter", " "),
			key.WithHelp("enter", "log done"),
		),
		Uncomplete: key.NewBinding(
			key.WithKeys("u"),
			key.WithHelp("u", "undo"),
		),
	}
}

type Model struct {
	list list.Model
	keys KeyMap
}

func New(width, height int) Model {
	l := list.New(nil, list.NewDefaultDelegate(), width, height)
	l.Title = "Today"
	l.SetShowTitle(false)
	l.SetShowHelp(false)

	keys := DefaultKeyMap()
	l.AdditionalShortHelpKeys = func() []key.Binding {
		return []key.Binding{keys.Complete, keys.Uncomplete}
	}
	l.AdditionalFullHelpKeys = func() []key.Binding {
		return []key.Binding{keys.Complete, keys.Uncomplete}
	}

	return Model{list: l, keys: keys}
}

// Items flattens today's work into rows. titles maps habit ids to display names.
func Items(today []models.TodayTask, titles map[string]string) []Item {
	var items []Item
	for _, t := range today {
		title := titles[t.HabitID]
		if title == "" {
			title = t.HabitID
		}
		done := make(map[string]bool, len(t.Completions))
		for _, r := range t.Completions {
			done[r.TaskID] = true
		}

		if len(t.Tasks) == 0 {
			items = append(items, Item{
				HabitID:    t.HabitID,
				HabitTitle: title,
				Day:        t.Day,
				Done:       len(t.Completions) > 0,
			})
			continue
		}
		for _, task := range t.Tasks {
			items = append(items, Item{
				HabitID:    t.HabitID,
				HabitTitle: title,
				Day:        t.Day,
				TaskID:     task.ID,
				TaskTitle:  task.Title,
				Done:       done[task.ID],
			})
		}
	}
	return items
}

func (m *Model) SetItems(items []Item) {
	listItems := make([]list.Item, len(items))
	for i, it := range items {
		listItems[i] = it
	}
	m.list.SetItems(listItems)
}

func (m Model) Selected() (Item, bool) {
	i, ok := m.list.SelectedItem().(Item)
	return i, ok
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd

	if msg, ok := msg.(tea.KeyMsg); ok && m.list.FilterState() != list.Filtering {
		switch {
		case key.Matches(msg, m.keys.Complete):
			if i, ok := m.Selected(); ok && !i.Done {
				return m, func() tea.Msg { return CompleteMsg{HabitID: i.HabitID, Day: i.Day, TaskID: i.TaskID} }
			}
			return m, nil
		case key.Matches(msg, m.keys.Uncomplete):
			if i, ok := m.Selected(); ok && i.Done {
				return m, func() tea.Msg { return UncompleteMsg{HabitID: i.HabitID, Day: i.Day, TaskID: i.TaskID} }
			}
			return m, nil
		}
	}

	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if len(m.list.Items()) == 0 && m.list.FilterState() != list.Filtering {
		return "\n  Nothing due today.\n  Start a habit with 'habitrun enroll start'."
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
