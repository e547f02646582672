package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/huh"

	"github.com/julianstephens/habitrun/internal/catalog"
	"github.com/julianstephens/habitrun/internal/config"
	"github.com/julianstephens/habitrun/internal/constants"
	"github.com/julianstephens/habitrun/internal/logger"
	"github.com/julianstephens/habitrun/internal/models"
	"github.com/julianstephens/habitrun/internal/notifier"
	"github.com/julianstephens/habitrun/internal/reward"
	"github.com/julianstephens/habitrun/internal/roster"
	"github.com/julianstephens/habitrun/internal/service"
	"github.com/julianstephens/habitrun/internal/storage"
)

type Context struct {
	Config     *config.Config
	ConfigPath string
	Store      storage.Provider
	Location   *time.Location

	// Populated by Open.
	Catalog    *catalog.Client
	Service    *service.Service
	Roster     roster.Roster
	Dispatcher *reward.Dispatcher
}

func NewContext(cfg *config.Config, store storage.Provider) (*Context, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return &Context{Config: cfg, Store: store, Location: loc}, nil
}

// User is the acting user id. Authentication happens outside habitrun.
func (c *Context) User() string {
	return c.Config.User
}

// Open loads the store and wires the enrollment service, the roster and the
// reward dispatcher. Calling it again is a no-op.
func (c *Context) Open(ctx context.Context) error {
	if c.Service != nil {
		return nil
	}
	if err := c.Store.Load(); err != nil {
		return err
	}

	r, err := roster.Open(ctx, c.Store, c.Config.Redis.Addr)
	if err != nil {
		return fmt.Errorf("failed to open roster: %w", err)
	}
	c.Roster = r
	c.Catalog = catalog.NewClient(c.Store)

	opts := []reward.NotifierOption{reward.WithRoster(r)}
	if c.Config.Alerts.Desktop {
		opts = append(opts, reward.WithAlerter(notifier.New(), c.Catalog))
	}
	c.Dispatcher = reward.NewDispatcher(c.Store, reward.NewNotifier(c.Store, opts...), reward.DispatcherConfig{
		Interval:    c.Config.Dispatch.Interval,
		BatchSize:   c.Config.Dispatch.BatchSize,
		MaxAttempts: c.Config.Dispatch.MaxAttempts,
	})
	c.Service = service.New(c.Store, c.Catalog,
		service.WithLocation(c.Location),
		service.WithCompletionHook(c.Dispatcher.Kick),
	)
	return nil
}

// Close releases the roster connection and the store.
func (c *Context) Close() error {
	if closer, ok := c.Roster.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			logger.Warn("Failed to close roster", "error", err)
		}
	}
	return c.Store.Close()
}

// Flush delivers pending completion events before a short-lived command exits.
func (c *Context) Flush(ctx context.Context) {
	if c.Dispatcher == nil {
		return
	}
	if n, err := c.Dispatcher.DispatchPending(ctx); err != nil {
		logger.Warn("Reward dispatch failed", "error", err)
	} else if n > 0 {
		logger.Debug("Dispatched completion events", "count", n)
	}
}

// Confirm asks a yes/no question. assumeYes skips the prompt.
func Confirm(title string, assumeYes bool) (bool, error) {
	if assumeYes {
		return true, nil
	}
	var ok bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Affirmative("Yes").
				Negative("No").
				Value(&ok),
		),
	)
	if err := form.Run(); err != nil {
		return false, fmt.Errorf("interactive form error: %w", err)
	}
	return ok, nil
}

// PickHabit lets the user choose a habit from the catalog.
func PickHabit(habits []models.Habit) (string, error) {
	if len(habits) == 0 {
		return "", fmt.Errorf("catalog is empty, run '%s catalog import' first", constants.AppName)
	}
	options := make([]huh.Option[string], 0, len(habits))
	for _, h := range habits {
		options = append(options, huh.NewOption(HabitLabel(h), h.ID))
	}

	var choice string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Which habit do you want to start?").
				Options(options...).
				Value(&choice),
		),
	)
	if err := form.Run(); err != nil {
		return "", fmt.Errorf("interactive form error: %w", err)
	}
	return choice, nil
}

// HabitLabel renders a habit as "Title (category, difficulty, N days)".
func HabitLabel(h models.Habit) string {
	var meta []string
	if h.Category != "" {
		meta = append(meta, h.Category)
	}
	if h.Difficulty != "" {
		meta = append(meta, string(h.Difficulty))
	}
	if h.DurationDays > 0 {
		meta = append(meta, fmt.Sprintf("%d days", h.DurationDays))
	}
	title := h.Title
	if title == "" {
		title = h.ID
	}
	if len(meta) == 0 {
		return title
	}
	return fmt.Sprintf("%s (%s)", title, strings.Join(meta, ", "))
}

// ProgressBar draws pct (0..100) as a fixed-width bar.
func ProgressBar(pct, width int) string {
	if width <= 0 {
		return ""
	}
	if pct < constants.MinProgress {
		pct = constants.MinProgress
	}
	if pct > constants.MaxProgress {
		pct = constants.MaxProgress
	}
	filled := pct * width / constants.MaxProgress
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + "]"
}

// FormatDate prints t as a calendar date in loc.
func FormatDate(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(constants.DateFormat)
}

// StatusIcon maps an enrollment status to the marker used in listings.
func StatusIcon(status constants.EnrollmentStatus) string {
	switch status {
	case constants.StatusCompleted:
		return "✓"
	case constants.StatusActive:
		return "▶"
	case constants.StatusAbandoned:
		return "✗"
	default:
		return "·"
	}
}

// PrintJSON writes v as indented JSON for scripting.
func PrintJSON(v any) error {
	jsonBytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Println(string(jsonBytes))
	return nil
}
