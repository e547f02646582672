package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/habitrun/internal/constants"
	apperrors "github.com/julianstephens/habitrun/internal/errors"
)

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.state {
	case StateToday:
		content = docStyle.Render(m.todayModel.View())
	case StateHabits:
		content = docStyle.Render(m.habitsModel.View())
	case StateConfirmStop:
		content = m.viewConfirm("Give up this habit? Progress is kept.")
	case StateConfirmReset:
		content = m.viewConfirm("Erase all progress and restart from day 1?")
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.viewTabs(),
		m.viewSummary(),
		content,
		m.help.View(m),
	)
}

func (m Model) viewTabs() string {
	var tabs []string
	for i, title := range tabTitles {
		if m.state == SessionState(i) {
			tabs = append(tabs, activeTabStyle.Render(title))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(title))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) viewSummary() string {
	if m.err != nil {
		return dangerStyle.Render("❌ " + apperrors.Format(m.err))
	}
	line := summaryStyle.Render(fmt.Sprintf("%s · %s · %d %s(s)",
		time.Now().In(m.loc).Format(constants.DateFormat), m.user, m.balance, constants.RewardUnitName))
	if m.status != "" {
		line = lipgloss.JoinHorizontal(lipgloss.Top, line, statusStyle.Render(m.status))
	}
	return line
}

func (m Model) viewConfirm(question string) string {
	return lipgloss.Place(m.width, max(m.height-4, 0),
		lipgloss.Center, lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Center,
			dangerStyle.Render(question),
			warningStyle.Render(m.pendingHabit),
			"",
			"[y] Yes",
			"[n] No",
		),
	)
}
