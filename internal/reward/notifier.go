// Package reward turns committed completion events into reward grants and
// roster updates.
package reward

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/julianstephens/habitrun/internal/constants"
	"github.com/julianstephens/habitrun/internal/logger"
	"github.com/julianstephens/habitrun/internal/models"
	"github.com/julianstephens/habitrun/internal/notifier"
)

// Ledger credits reward units once per event id.
type Ledger interface {
	GrantReward(ctx context.Context, eventID, userID string, units int, at time.Time) (bool, error)
}

// ProgressSyncer receives the final progress value. roster.Roster satisfies it.
type ProgressSyncer interface {
	SetProgress(ctx context.Context, habitID, userID string, progress int) (bool, error)
}

// Alerter shows a desktop message. *notifier.Notifier satisfies it.
type Alerter interface {
	Notify(ctx context.Context, text string) error
}

// HabitLookup resolves a habit title for the alert text.
type HabitLookup interface {
	GetHabit(ctx context.Context, habitID string) (models.Habit, error)
}

type Notifier struct {
	ledger  Ledger
	roster  ProgressSyncer
	alerter Alerter
	habits  HabitLookup
	now     func() time.Time
	log     *log.Logger
}

type NotifierOption func(*Notifier)

func WithRoster(r ProgressSyncer) NotifierOption {
	return func(n *Notifier) { n.roster = r }
}

// WithAlerter enables desktop alerts; habits supplies the title shown.
func WithAlerter(a Alerter, habits HabitLookup) NotifierOption {
	return func(n *Notifier) {
		n.alerter = a
		n.habits = habits
	}
}

func WithNotifierClock(now func() time.Time) NotifierOption {
	return func(n *Notifier) { n.now = now }
}

func NewNotifier(ledger Ledger, opts ...NotifierOption) *Notifier {
	n := &Notifier{
		ledger: ledger,
		now:    time.Now,
		log:    logger.Component("reward"),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// OnHabitCompleted grants the reward for ev and then syncs the roster.
// Only the grant can fail the call; it is keyed by ev.ID so a redelivered
// event is credited once. Roster and alert failures are logged and dropped.
func (n *Notifier) OnHabitCompleted(ctx context.Context, ev models.CompletionEvent) error {
	granted, err := n.ledger.GrantReward(ctx, ev.ID, ev.UserID, constants.RewardUnitsPerCompletion, n.now())
	if err != nil {
		return fmt.Errorf("failed to grant reward for event %s: %w", ev.ID, err)
	}
	if granted {
		n.log.Info("Granted reward", "user", ev.UserID, "habit", ev.HabitID, "event", ev.ID, "units", constants.RewardUnitsPerCompletion)
	} else {
		n.log.Debug("Reward already granted", "event", ev.ID)
	}

	if n.roster != nil {
		ok, err := n.roster.SetProgress(ctx, ev.HabitID, ev.UserID, constants.MaxProgress)
		switch {
		case err != nil:
			n.log.Warn("Roster sync failed", "user", ev.UserID, "habit", ev.HabitID, "error", err)
		case !ok:
			n.log.Debug("User not on roster, skipping sync", "user", ev.UserID, "habit", ev.HabitID)
		}
	}

	if granted && n.alerter != nil {
		n.alert(ctx, ev)
	}
	return nil
}

func (n *Notifier) alert(ctx context.Context, ev models.CompletionEvent) {
	title := ev.HabitID
	if n.habits != nil {
		if h, err := n.habits.GetHabit(ctx, ev.HabitID); err == nil {
			title = h.Title
		}
	}
	if err := n.alerter.Notify(ctx, notifier.HabitCompletedMessage(title, constants.RewardUnitsPerCompletion)); err != nil {
		n.log.Warn("Desktop alert failed", "event", ev.ID, "error", err)
	}
}
