package enroll

import (
	"context"
	"fmt"

	"github.com/julianstephens/habitrun/internal/cli"
	"github.com/julianstephens/habitrun/internal/constants"
	"github.com/julianstephens/habitrun/internal/models"
	"github.com/julianstephens/habitrun/internal/service"
)

type EnrollCmd struct {
	Start        StartCmd        `cmd:"" help:"Start a habit program."`
	Stop         StopCmd         `cmd:"" help:"Give up an active habit program (progress is kept)."`
	Reset        ResetCmd        `cmd:"" help:"Restart an active habit program from day 1."`
	Complete     CompleteCmd     `cmd:"" help:"Log a task as done."`
	Uncomplete   UncompleteCmd   `cmd:"" help:"Remove a logged task."`
	Today        TodayCmd        `cmd:"" help:"Show what is due today." default:"1"`
	Show         ShowCmd         `cmd:"" help:"Show detailed progress for a habit."`
	List         ListCmd         `cmd:"" help:"List enrollments."`
	Stats        StatsCmd        `cmd:"" help:"Show aggregate statistics."`
	Participants ParticipantsCmd `cmd:"" help:"Show other users working on a habit."`
}

type StartCmd struct {
	Habit string `arg:"" optional:"" help:"Habit ID (pick interactively when omitted)."`
}

func (c *StartCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	if err := ctx.Open(bg); err != nil {
		return err
	}

	habitID := c.Habit
	if habitID == "" {
		habits, err := ctx.Store.ListHabits(bg)
		if err != nil {
			return err
		}
		if habitID, err = cli.PickHabit(habits); err != nil {
			return err
		}
	}

	e, err := ctx.Service.StartEnrollment(bg, ctx.User(), habitID)
	if err != nil {
		return err
	}

	fmt.Printf("✓ Started %s on %s\n", habitTitle(bg, ctx, habitID), cli.FormatDate(e.StartDate, ctx.Location))
	fmt.Printf("  Enrollment: %s\n", e.ID)
	return nil
}

type StopCmd struct {
	Habit string `arg:"" help:"Habit ID."`
	Yes   bool   `short:"y" help:"Skip the confirmation prompt."`
}

func (c *StopCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	if err := ctx.Open(bg); err != nil {
		return err
	}

	title := habitTitle(bg, ctx, c.Habit)
	ok, err := cli.Confirm(fmt.Sprintf("Give up %s?", title), c.Yes)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("Cancelled.")
		return nil
	}

	e, err := ctx.Service.StopEnrollment(bg, ctx.User(), c.Habit)
	if err != nil {
		return err
	}
	fmt.Printf("✓ Stopped %s at %d%% (%d tasks logged)\n", title, e.ProgressPercentage, e.TotalCompletedTasks)
	return nil
}

type ResetCmd struct {
	Habit string `arg:"" help:"Habit ID."`
	Yes   bool   `short:"y" help:"Skip the confirmation prompt."`
}

func (c *ResetCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	if err := ctx.Open(bg); err != nil {
		return err
	}

	title := habitTitle(bg, ctx, c.Habit)
	ok, err := cli.Confirm(fmt.Sprintf("Erase all progress in %s and restart from day 1?", title), c.Yes)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("Cancelled.")
		return nil
	}

	e, err := ctx.Service.ResetEnrollment(bg, ctx.User(), c.Habit)
	if err != nil {
		return err
	}
	fmt.Printf("✓ Restarted %s on %s\n", title, cli.FormatDate(e.StartDate, ctx.Location))
	return nil
}

type CompleteCmd struct {
	Habit   string  `arg:"" help:"Habit ID."`
	Task    string  `short:"t" help:"Catalog task ID (omit to log the day itself)."`
	Day     int     `short:"d" help:"Program day (defaults to today's day)."`
	Minutes *int    `short:"m" help:"Minutes spent."`
	Notes   *string `short:"n" help:"Free-form notes."`
	Rating  *int    `short:"r" help:"How it went, 1-5."`
}

func (c *CompleteCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	if err := ctx.Open(bg); err != nil {
		return err
	}

	day, err := resolveDay(bg, ctx, c.Habit, c.Day)
	if err != nil {
		return err
	}

	e, completed, err := ctx.Service.CompleteTask(bg, service.CompleteTaskInput{
		UserID:         ctx.User(),
		HabitID:        c.Habit,
		Day:            day,
		TaskID:         c.Task,
		CompletionTime: c.Minutes,
		Notes:          c.Notes,
		Rating:         c.Rating,
	})
	if err != nil {
		return err
	}

	label := fmt.Sprintf("day %d", day)
	if c.Task != "" {
		label = fmt.Sprintf("%s on day %d", c.Task, day)
	}
	fmt.Printf("✓ Logged %s\n", label)
	printProgressLine(e)

	if completed {
		// Grant the reward now instead of waiting for the next dashboard session
		ctx.Flush(bg)
		fmt.Println()
		fmt.Printf("🎉 You finished %s!\n", habitTitle(bg, ctx, c.Habit))
		if balance, err := ctx.Service.RewardBalance(bg, ctx.User()); err == nil {
			fmt.Printf("   Balance: %d %s(s)\n", balance, constants.RewardUnitName)
		}
	}
	return nil
}

type UncompleteCmd struct {
	Habit string `arg:"" help:"Habit ID."`
	Task  string `short:"t" help:"Catalog task ID (omit to remove the first record for the day)."`
	Day   int    `short:"d" help:"Program day (defaults to today's day)."`
}

func (c *UncompleteCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	if err := ctx.Open(bg); err != nil {
		return err
	}

	day, err := resolveDay(bg, ctx, c.Habit, c.Day)
	if err != nil {
		return err
	}

	prevRevision := currentRevision(bg, ctx, c.Habit)
	e, err := ctx.Service.UncompleteTask(bg, ctx.User(), c.Habit, day, c.Task)
	if err != nil {
		return err
	}

	if e.Revision == prevRevision {
		fmt.Printf("Nothing logged for day %d, no change.\n", day)
	} else {
		fmt.Printf("✓ Removed record for day %d\n", day)
	}
	printProgressLine(e)
	return nil
}

// currentRevision is the active enrollment's revision, or -1 if unknown.
func currentRevision(bg context.Context, ctx *cli.Context, habitID string) int64 {
	today, err := ctx.Service.GetTodayTask(bg, ctx.User(), habitID)
	if err != nil || today == nil {
		return -1
	}
	e, err := ctx.Service.GetEnrollment(bg, ctx.User(), today.EnrollmentID)
	if err != nil {
		return -1
	}
	return e.Revision
}

// resolveDay returns day, or today's program day when day is zero.
func resolveDay(bg context.Context, ctx *cli.Context, habitID string, day int) (int, error) {
	if day != 0 {
		return day, nil
	}
	today, err := ctx.Service.GetTodayTask(bg, ctx.User(), habitID)
	if err != nil {
		return 0, err
	}
	if today == nil {
		return 0, fmt.Errorf("no active enrollment in %s, start one with '%s enroll start %s'", habitID, constants.AppName, habitID)
	}
	return today.Day, nil
}

func habitTitle(bg context.Context, ctx *cli.Context, habitID string) string {
	h, err := ctx.Catalog.GetHabit(bg, habitID)
	if err != nil || h.Title == "" {
		return habitID
	}
	return h.Title
}

func printProgressLine(e models.Enrollment) {
	fmt.Printf("  %s %3d%%  streak %d (best %d)  tasks %d\n",
		cli.ProgressBar(e.ProgressPercentage, 20), e.ProgressPercentage, e.Streak, e.LongestStreak, e.TotalCompletedTasks)
}
