package rosters

import (
	"context"
	"fmt"

	"github.com/julianstephens/habitrun/internal/cli"
	"github.com/julianstephens/habitrun/internal/models"
)

type RosterCmd struct {
	Join  JoinCmd  `cmd:"" help:"Join a habit's roster with your current progress."`
	Leave LeaveCmd `cmd:"" help:"Leave a habit's roster."`
	Show  ShowCmd  `cmd:"" help:"Show a habit's roster." default:"1"`
}

type JoinCmd struct {
	Habit string `arg:"" help:"Habit ID."`
}

func (c *JoinCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	if err := ctx.Open(bg); err != nil {
		return err
	}

	if _, err := ctx.Catalog.GetHabit(bg, c.Habit); err != nil {
		return err
	}

	// Members join with the progress of their active enrollment, if any
	progress := 0
	active, err := ctx.Service.ListEnrollments(bg, ctx.User(), models.EnrollmentFilter{HabitID: c.Habit, ActiveOnly: true})
	if err != nil {
		return err
	}
	if len(active) > 0 {
		progress = active[0].ProgressPercentage
	}

	if err := ctx.Roster.Join(bg, c.Habit, ctx.User(), progress); err != nil {
		return err
	}
	fmt.Printf("✓ Joined the %s roster at %d%%\n", c.Habit, progress)
	return nil
}

type LeaveCmd struct {
	Habit string `arg:"" help:"Habit ID."`
}

func (c *LeaveCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	if err := ctx.Open(bg); err != nil {
		return err
	}

	if err := ctx.Roster.Leave(bg, c.Habit, ctx.User()); err != nil {
		return err
	}
	fmt.Printf("✓ Left the %s roster\n", c.Habit)
	return nil
}

type ShowCmd struct {
	Habit string `arg:"" help:"Habit ID."`
	JSON  bool   `help:"Print machine-readable JSON."`
}

func (c *ShowCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	if err := ctx.Open(bg); err != nil {
		return err
	}

	entries, err := ctx.Roster.List(bg, c.Habit)
	if err != nil {
		return err
	}
	if c.JSON {
		return cli.PrintJSON(entries)
	}

	if len(entries) == 0 {
		fmt.Printf("Nobody has joined the %s roster yet.\n", c.Habit)
		return nil
	}
	for i, e := range entries {
		marker := " "
		if e.UserID == ctx.User() {
			marker = "*"
		}
		fmt.Printf("%s%2d. %-20s %s %3d%%\n", marker, i+1, e.UserID, cli.ProgressBar(e.Progress, 10), e.Progress)
	}
	return nil
}
