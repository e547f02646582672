package system

import (
	"context"
	"fmt"
	"math"

	"github.com/julianstephens/habitrun/internal/cli"
	apperrors "github.com/julianstephens/habitrun/internal/errors"
)

type DebugCmd struct {
	DBPath         *DebugDBPathCmd         `cmd:"" help:"Show database path."`
	DumpEnrollment *DebugDumpEnrollmentCmd `cmd:"" help:"Dump an enrollment as JSON."`
	DumpHabit      *DebugDumpHabitCmd      `cmd:"" help:"Dump a catalog habit and its tasks as JSON."`
	DumpOutbox     *DebugDumpOutboxCmd     `cmd:"" help:"Dump undelivered completion events as JSON."`
}

type DebugDBPathCmd struct{}

func (cmd *DebugDBPathCmd) Run(ctx *cli.Context) error {
	return cli.PrintJSON(map[string]string{
		"path": ctx.Store.GetConfigPath(),
	})
}

type DebugDumpEnrollmentCmd struct {
	ID string `arg:"" help:"Enrollment ID."`
}

func (cmd *DebugDumpEnrollmentCmd) Run(ctx *cli.Context) error {
	if err := ctx.Store.Load(); err != nil {
		return fmt.Errorf("failed to load database: %w", err)
	}

	e, err := ctx.Store.GetEnrollment(context.Background(), ctx.User(), cmd.ID)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNoRecord) {
			return fmt.Errorf("no enrollment found with id: %s", cmd.ID)
		}
		return fmt.Errorf("failed to get enrollment: %w", err)
	}
	return cli.PrintJSON(e)
}

type DebugDumpHabitCmd struct {
	ID string `arg:"" help:"Habit ID."`
}

func (cmd *DebugDumpHabitCmd) Run(ctx *cli.Context) error {
	if err := ctx.Store.Load(); err != nil {
		return fmt.Errorf("failed to load database: %w", err)
	}

	bg := context.Background()
	habit, err := ctx.Store.GetHabit(bg, cmd.ID)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNoRecord) {
			return fmt.Errorf("no habit found with id: %s", cmd.ID)
		}
		return fmt.Errorf("failed to get habit: %w", err)
	}
	tasks, err := ctx.Store.TasksFor(bg, cmd.ID)
	if err != nil {
		return fmt.Errorf("failed to get tasks: %w", err)
	}
	return cli.PrintJSON(struct {
		Habit any `json:"habit"`
		Tasks any `json:"tasks"`
	}{habit, tasks})
}

type DebugDumpOutboxCmd struct {
	Limit int `help:"Maximum number of events to show." default:"50"`
}

func (cmd *DebugDumpOutboxCmd) Run(ctx *cli.Context) error {
	if err := ctx.Store.Load(); err != nil {
		return fmt.Errorf("failed to load database: %w", err)
	}

	// Include events that exhausted their retries so stuck grants are visible
	events, err := ctx.Store.PendingEvents(context.Background(), cmd.Limit, math.MaxInt32)
	if err != nil {
		return fmt.Errorf("failed to read outbox: %w", err)
	}
	return cli.PrintJSON(events)
}
