package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/julianstephens/habitrun/internal/catalog"
	"github.com/julianstephens/habitrun/internal/models"
	"github.com/julianstephens/habitrun/internal/service"
	"github.com/julianstephens/habitrun/internal/tui/components/habits"
	"github.com/julianstephens/habitrun/internal/tui/components/today"
)

type SessionState int

const (
	StateToday SessionState = iota
	StateHabits
	StateConfirmStop
	StateConfirmReset
)

var tabTitles = []string{"Today", "Habits"}

// dataMsg carries a full snapshot of the user's enrollments.
type dataMsg struct {
	today       []models.TodayTask
	enrollments []models.Enrollment
	titles      map[string]string
	balance     int
}

type errMsg struct{ err error }

type statusMsg struct{ text string }

type Model struct {
	svc  *service.Service
	cat  *catalog.Client
	user string
	loc  *time.Location

	state       SessionState
	keys        KeyMap
	help        help.Model
	todayModel  today.Model
	habitsModel habits.Model

	balance      int
	status       string
	err          error
	pendingHabit string
	quitting     bool
	width        int
	height       int
}

func NewModel(svc *service.Service, cat *catalog.Client, user string, loc *time.Location) Model {
	if loc == nil {
		loc = time.Local
	}
	return Model{
		svc:         svc,
		cat:         cat,
		user:        user,
		loc:         loc,
		state:       StateToday,
		keys:        DefaultKeyMap(),
		help:        help.New(),
		todayModel:  today.New(0, 0),
		habitsModel: habits.New(0, 0),
	}
}

func (m Model) ShortHelp() []key.Binding {
	return []key.Binding{m.keys.Tab, m.keys.Refresh, m.keys.Quit, m.keys.Help}
}

func (m Model) FullHelp() [][]key.Binding {
	global := []key.Binding{m.keys.Tab, m.keys.ShiftTab, m.keys.Refresh, m.keys.Quit, m.keys.Help}
	navigation := []key.Binding{m.keys.Up, m.keys.Down}

	var actions []key.Binding
	switch m.state {
	case StateToday:
		k := today.DefaultKeyMap()
		actions = []key.Binding{k.Complete, k.Uncomplete}
	case StateHabits:
		k := habits.DefaultKeyMap()
		actions = []key.Binding{k.Stop, k.Reset}
	}

	return [][]key.Binding{global, navigation, actions}
}

func (m Model) Init() tea.Cmd {
	return m.load()
}

// load reads today's work, every enrollment and the reward balance.
func (m Model) load() tea.Cmd {
	svc, user, cat := m.svc, m.user, m.cat
	return func() tea.Msg {
		ctx := context.Background()

		todayTasks, err := svc.ListTodayTasks(ctx, user)
		if err != nil {
			return errMsg{err}
		}
		enrollments, err := svc.ListEnrollments(ctx, user, models.EnrollmentFilter{})
		if err != nil {
			return errMsg{err}
		}
		balance, err := svc.RewardBalance(ctx, user)
		if err != nil {
			return errMsg{err}
		}

		titles := make(map[string]string)
		for _, e := range enrollments {
			if _, ok := titles[e.HabitID]; ok {
				continue
			}
			titles[e.HabitID] = e.HabitID
			if h, err := cat.GetHabit(ctx, e.HabitID); err == nil && h.Title != "" {
				titles[e.HabitID] = h.Title
			}
		}

		return dataMsg{today: todayTasks, enrollments: enrollments, titles: titles, balance: balance}
	}
}
