package habits

import (
	"context"
	"fmt"
	"time"

	"github.com/julianstephens/habitrun/internal/catalog"
	"github.com/julianstephens/habitrun/internal/cli"
	"github.com/julianstephens/habitrun/internal/models"
)

type CatalogCmd struct {
	Import ImportCmd `cmd:"" help:"Import habit definitions from a JSON file."`
	List   ListCmd   `cmd:"" help:"List catalog habits." default:"1"`
}

type ImportCmd struct {
	File   string `arg:"" help:"Catalog JSON file (one definition or an array)." type:"existingfile"`
	Fix    bool   `help:"Drop duplicate task ids instead of rejecting the file."`
	DryRun bool   `help:"Validate the file without writing anything."`
}

// discard accepts definitions without storing them, for dry runs.
type discard struct{}

func (discard) ImportHabitDefinition(context.Context, models.HabitDefinition) error { return nil }

func (c *ImportCmd) Run(ctx *cli.Context) error {
	defs, err := catalog.LoadFile(c.File)
	if err != nil {
		return err
	}

	var w catalog.Writer = discard{}
	if !c.DryRun {
		if err := ctx.Store.Load(); err != nil {
			return err
		}
		w = ctx.Store
	}

	report, err := catalog.Import(context.Background(), w, defs, catalog.ImportOptions{
		Fix: c.Fix,
		Now: time.Now(),
	})
	for _, fix := range report.Fixes {
		fmt.Printf("  🔧 %s\n", fix.Action)
	}
	if err != nil {
		fmt.Println("❌ Catalog rejected")
		if report.Conflicts != "" {
			fmt.Print(report.Conflicts)
		}
		return err
	}

	verb := "Imported"
	if c.DryRun {
		verb = "Validated"
	}
	fmt.Printf("✓ %s %d habit(s) with %d task(s)\n", verb, report.Habits, report.Tasks)
	return nil
}

type ListCmd struct {
	Tasks bool `short:"t" help:"Also list each habit's tasks."`
	JSON  bool `help:"Print machine-readable JSON."`
}

func (c *ListCmd) Run(ctx *cli.Context) error {
	if err := ctx.Store.Load(); err != nil {
		return err
	}
	bg := context.Background()

	habits, err := ctx.Store.ListHabits(bg)
	if err != nil {
		return err
	}

	if c.JSON && !c.Tasks {
		return cli.PrintJSON(habits)
	}

	var defs []models.HabitDefinition
	for _, h := range habits {
		def := models.HabitDefinition{Habit: h}
		if c.Tasks {
			if def.Tasks, err = ctx.Store.TasksFor(bg, h.ID); err != nil {
				return err
			}
		}
		defs = append(defs, def)
	}
	if c.JSON {
		return cli.PrintJSON(defs)
	}

	if len(defs) == 0 {
		fmt.Println("No habits in the catalog.")
		return nil
	}
	for _, def := range defs {
		fmt.Printf("%-20s %s\n", def.Habit.ID, cli.HabitLabel(def.Habit))
		for _, t := range catalog.FilterActive(def.Tasks) {
			fmt.Printf("    %-18s wk %-2d %s\n", t.ID, t.Week, t.Title)
		}
	}
	return nil
}
