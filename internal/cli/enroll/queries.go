package enroll

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/julianstephens/habitrun/internal/cli"
	"github.com/julianstephens/habitrun/internal/constants"
	"github.com/julianstephens/habitrun/internal/models"
)

type TodayCmd struct {
	JSON bool `help:"Print machine-readable JSON."`
}

func (c *TodayCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	if err := ctx.Open(bg); err != nil {
		return err
	}

	today, err := ctx.Service.ListTodayTasks(bg, ctx.User())
	if err != nil {
		return err
	}
	if c.JSON {
		return cli.PrintJSON(today)
	}

	if len(today) == 0 {
		fmt.Printf("No active habits. Start one with '%s enroll start'.\n", constants.AppName)
		return nil
	}

	for i, t := range today {
		if i > 0 {
			fmt.Println()
		}
		fmt.Printf("%s  day %d\n", habitTitle(bg, ctx, t.HabitID), t.Day)
		printTodayTasks(t)
	}
	return nil
}

func printTodayTasks(t models.TodayTask) {
	done := map[string]bool{}
	dayLogged := false
	for _, r := range t.Completions {
		if r.TaskID == "" {
			dayLogged = true
		}
		done[r.TaskID] = true
	}

	if len(t.Tasks) == 0 {
		mark := " "
		if dayLogged || len(t.Completions) > 0 {
			mark = "x"
		}
		fmt.Printf("  [%s] (no catalog tasks today)\n", mark)
		return
	}
	for _, task := range t.Tasks {
		mark := " "
		if done[task.ID] {
			mark = "x"
		}
		fmt.Printf("  [%s] %-20s %s\n", mark, task.ID, task.Title)
	}
	if dayLogged {
		fmt.Println("  [x] day logged")
	}
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

	p, err := ctx.Service.GetHabitProgress(bg, ctx.User(), c.Habit)
	if err != nil {
		return err
	}
	if c.JSON {
		return cli.PrintJSON(p)
	}

	e := p.Enrollment
	fmt.Println(cli.HabitLabel(p.Habit))
	fmt.Printf("  Started:  %s (day %d)\n", cli.FormatDate(e.StartDate, ctx.Location), e.CurrentDay)
	if e.LastCompletedDate != nil {
		fmt.Printf("  Last log: %s\n", cli.FormatDate(*e.LastCompletedDate, ctx.Location))
	}
	printProgressLine(e)
	fmt.Println()

	fmt.Println("Today:")
	printTodayTasks(p.Today)
	fmt.Println()

	fmt.Println("Program:")
	for _, tp := range p.Tasks {
		mark := " "
		if tp.IsCompleted {
			mark = "x"
		}
		fmt.Printf("  [%s] wk %-2d %-20s days %s\n", mark, tp.Task.Week, tp.Task.ID, formatDays(tp.Task.Days))
	}
	return nil
}

func formatDays(days []int) string {
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = fmt.Sprint(d)
	}
	return strings.Join(parts, ",")
}

type ListCmd struct {
	All   bool   `short:"a" help:"Include completed and abandoned enrollments."`
	Habit string `help:"Only show enrollments in this habit."`
	JSON  bool   `help:"Print machine-readable JSON."`
}

func (c *ListCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	if err := ctx.Open(bg); err != nil {
		return err
	}

	list, err := ctx.Service.ListEnrollments(bg, ctx.User(), models.EnrollmentFilter{
		HabitID:    c.Habit,
		ActiveOnly: !c.All,
	})
	if err != nil {
		return err
	}
	if c.JSON {
		return cli.PrintJSON(list)
	}

	if len(list) == 0 {
		fmt.Println("No enrollments found.")
		return nil
	}
	for _, e := range list {
		fmt.Printf("%s %-24s day %-3d %s %3d%%  started %s\n",
			cli.StatusIcon(e.Status()), habitTitle(bg, ctx, e.HabitID), e.CurrentDay,
			cli.ProgressBar(e.ProgressPercentage, 10), e.ProgressPercentage,
			cli.FormatDate(e.StartDate, ctx.Location))
	}
	return nil
}

type StatsCmd struct {
	JSON bool `help:"Print machine-readable JSON."`
}

func (c *StatsCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	if err := ctx.Open(bg); err != nil {
		return err
	}

	s, err := ctx.Service.GetAggregateStats(bg, ctx.User())
	if err != nil {
		return err
	}
	if c.JSON {
		return cli.PrintJSON(s)
	}

	fmt.Printf("Habits:       %d total, %d active, %d completed, %d given up\n",
		s.TotalHabits, s.TotalActiveHabits, s.TotalCompletedHabits, s.TotalGivenUpHabits)
	fmt.Printf("Tasks logged: %d (%d this week, %d this month)\n",
		s.TotalCompletedTasks, s.RecentCompletions, s.MonthlyCompletions)
	fmt.Printf("Streaks:      %d combined, %d best\n", s.TotalStreak, s.LongestStreak)
	fmt.Printf("Progress:     %d%% average, %d%% completion rate\n", s.AverageProgress, s.CompletionRate)
	fmt.Printf("Rewards:      %d %s(s)\n", s.RewardUnits, constants.RewardUnitName)

	printBreakdown("By category", s.Categories)
	printBreakdown("By difficulty", s.Difficulties)
	return nil
}

func printBreakdown(title string, counts map[string]models.BreakdownCounts) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Println()
	fmt.Println(title + ":")
	for _, k := range keys {
		b := counts[k]
		fmt.Printf("  %-14s %d total, %d active, %d completed, %d given up\n", k, b.Total, b.Active, b.Completed, b.GivenUp)
	}
}

type ParticipantsCmd struct {
	Habit string `arg:"" help:"Habit ID."`
	JSON  bool   `help:"Print machine-readable JSON."`
}

func (c *ParticipantsCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	if err := ctx.Open(bg); err != nil {
		return err
	}

	p, err := ctx.Service.HabitParticipants(bg, ctx.User(), c.Habit)
	if err != nil {
		return err
	}
	if c.JSON {
		return cli.PrintJSON(p)
	}

	if p.Total() == 0 {
		fmt.Println("Nobody else is working on this habit right now.")
		return nil
	}
	printParticipants("Done today", p.CompletedToday)
	printParticipants("Still to go", p.Pending)
	return nil
}

func printParticipants(title string, list []models.Participant) {
	if len(list) == 0 {
		return
	}
	fmt.Printf("%s (%d):\n", title, len(list))
	for _, p := range list {
		fmt.Printf("  %-20s %3d%%  streak %d\n", p.UserID, p.Progress, p.Streak)
	}
}
