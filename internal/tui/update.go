package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/julianstephens/habitrun/internal/service"
	"github.com/julianstephens/habitrun/internal/tui/components/habits"
	"github.com/julianstephens/habitrun/internal/tui/components/today"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		h, v := docStyle.GetFrameSize()
		// tabs, summary and help take four lines
		m.todayModel.SetSize(msg.Width-h, msg.Height-v-4)
		m.habitsModel.SetSize(msg.Width-h, msg.Height-v-4)
		m.help.Width = msg.Width
		return m, nil

	case dataMsg:
		m.err = nil
		m.balance = msg.balance
		m.todayModel.SetItems(today.Items(msg.today, msg.titles))
		m.habitsModel.SetEnrollments(msg.enrollments, msg.titles)
		return m, nil

	case errMsg:
		m.err = msg.err
		m.status = ""
		return m, nil

	case statusMsg:
		m.err = nil
		m.status = msg.text
		return m, m.load()

	case today.CompleteMsg:
		return m, m.complete(msg)
	case today.UncompleteMsg:
		return m, m.uncomplete(msg)
	case habits.StopHabitMsg:
		m.pendingHabit = msg.HabitID
		m.state = StateConfirmStop
		return m, nil
	case habits.ResetHabitMsg:
		m.pendingHabit = msg.HabitID
		m.state = StateConfirmReset
		return m, nil

	case tea.KeyMsg:
		if m.state == StateConfirmStop || m.state == StateConfirmReset {
			return m.updateConfirm(msg)
		}
		if !m.filtering() {
			if handled, cmd := m.handleGlobalKeys(msg); handled {
				return m, cmd
			}
		}
	}

	var cmd tea.Cmd
	switch m.state {
	case StateToday:
		m.todayModel, cmd = m.todayModel.Update(msg)
	case StateHabits:
		m.habitsModel, cmd = m.habitsModel.Update(msg)
	}
	return m, cmd
}

func (m Model) filtering() bool {
	switch m.state {
	case StateToday:
		return m.todayModel.Filtering()
	case StateHabits:
		return m.habitsModel.Filtering()
	}
	return false
}

func (m *Model) handleGlobalKeys(msg tea.KeyMsg) (bool, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return true, tea.Quit
	case key.Matches(msg, m.keys.Tab):
		m.state = (m.state + 1) % SessionState(len(tabTitles))
		return true, nil
	case key.Matches(msg, m.keys.ShiftTab):
		m.state = (m.state + SessionState(len(tabTitles)) - 1) % SessionState(len(tabTitles))
		return true, nil
	case key.Matches(msg, m.keys.Refresh):
		m.status = ""
		return true, m.load()
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return true, nil
	}
	return false, nil
}

func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	action := m.state
	habitID := m.pendingHabit

	switch {
	case key.Matches(msg, m.keys.Yes):
		m.state = StateHabits
		m.pendingHabit = ""
		if action == StateConfirmStop {
			return m, m.stop(habitID)
		}
		return m, m.reset(habitID)
	case key.Matches(msg, m.keys.No):
		m.state = StateHabits
		m.pendingHabit = ""
	}
	return m, nil
}

func (m Model) complete(msg today.CompleteMsg) tea.Cmd {
	svc, user := m.svc, m.user
	return func() tea.Msg {
		e, completed, err := svc.CompleteTask(context.Background(), service.CompleteTaskInput{
			UserID:  user,
			HabitID: msg.HabitID,
			Day:     msg.Day,
			TaskID:  msg.TaskID,
		})
		if err != nil {
			return errMsg{err}
		}
		if completed {
			return statusMsg{fmt.Sprintf("🎉 Finished %s!", msg.HabitID)}
		}
		return statusMsg{fmt.Sprintf("✓ Logged day %d, %d%% done", msg.Day, e.ProgressPercentage)}
	}
}

func (m Model) uncomplete(msg today.UncompleteMsg) tea.Cmd {
	svc, user := m.svc, m.user
	return func() tea.Msg {
		e, err := svc.UncompleteTask(context.Background(), user, msg.HabitID, msg.Day, msg.TaskID)
		if err != nil {
			return errMsg{err}
		}
		return statusMsg{fmt.Sprintf("Removed record for day %d, %d%% done", msg.Day, e.ProgressPercentage)}
	}
}

func (m Model) stop(habitID string) tea.Cmd {
	svc, user := m.svc, m.user
	return func() tea.Msg {
		e, err := svc.StopEnrollment(context.Background(), user, habitID)
		if err != nil {
			return errMsg{err}
		}
		return statusMsg{fmt.Sprintf("Stopped %s at %d%%", habitID, e.ProgressPercentage)}
	}
}

func (m Model) reset(habitID string) tea.Cmd {
	svc, user := m.svc, m.user
	return func() tea.Msg {
		if _, err := svc.ResetEnrollment(context.Background(), user, habitID); err != nil {
			return errMsg{err}
		}
		return statusMsg{fmt.Sprintf("Restarted %s from day 1", habitID)}
	}
}
