package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/julianstephens/habitrun/internal/constants"
	"github.com/julianstephens/habitrun/internal/logger"
	"github.com/julianstephens/habitrun/internal/models"
	"github.com/julianstephens/habitrun/internal/validation"
)

// Writer persists habit definitions.
type Writer interface {
	ImportHabitDefinition(ctx context.Context, def models.HabitDefinition) error
}

// ImportOptions tunes Import.
type ImportOptions struct {
	// Fix drops duplicate task ids instead of rejecting the file.
	Fix bool
	Now time.Time
}

// ImportReport summarizes an import.
type ImportReport struct {
	Habits  int
	Tasks   int
	Fixes   []validation.FixAction
	Skipped []string

	// Conflicts is the validation report when the batch was rejected.
	Conflicts string
}

// Decode reads a JSON catalog: either a single definition or an array of them.
func Decode(r io.Reader) ([]models.HabitDefinition, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var defs []models.HabitDefinition
	if err := json.Unmarshal(data, &defs); err == nil {
		return defs, nil
	}

	var single models.HabitDefinition
	if err := json.Unmarshal(data, &single); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	return []models.HabitDefinition{single}, nil
}

// LoadFile decodes the catalog at path.
func LoadFile(path string) ([]models.HabitDefinition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog %s: %w", path, err)
	}
	defer f.Close()
	return Decode(f)
}

// Import normalizes, validates and writes every definition. Validation runs on
// the whole batch first so a bad file writes nothing.
func Import(ctx context.Context, w Writer, defs []models.HabitDefinition, opts ImportOptions) (ImportReport, error) {
	report := ImportReport{}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	v := validation.New()
	prepared := make([]models.HabitDefinition, 0, len(defs))
	for _, def := range defs {
		if opts.Fix {
			result := v.ValidateDefinition(def)
			var actions []validation.FixAction
			def, actions = validation.AutoFixDuplicateTasks(result.Conflicts, def)
			report.Fixes = append(report.Fixes, actions...)
		}
		prepared = append(prepared, normalize(def, now))
	}

	result := v.ValidateDefinitions(prepared)
	if err := result.Err("catalog.import"); err != nil {
		report.Conflicts = result.FormatReport()
		return report, err
	}

	for _, def := range prepared {
		if err := w.ImportHabitDefinition(ctx, def); err != nil {
			return report, fmt.Errorf("failed to import habit %s: %w", def.Habit.ID, err)
		}
		report.Habits++
		report.Tasks += len(def.Tasks)
		logger.Debug("Imported habit", "habit", def.Habit.ID, "tasks", len(def.Tasks))
	}
	return report, nil
}

// normalize fills defaults a hand-written catalog may leave out.
func normalize(def models.HabitDefinition, now time.Time) models.HabitDefinition {
	if def.Habit.CreatedAt.IsZero() {
		def.Habit.CreatedAt = now
	}
	if def.Habit.Category == "" {
		def.Habit.Category = constants.UnknownCategory
	}
	if def.Habit.Difficulty == "" {
		def.Habit.Difficulty = constants.UnknownDifficulty
	}

	tasks := make([]models.CatalogTask, len(def.Tasks))
	maxDay := 0
	for i, t := range def.Tasks {
		if t.HabitID == "" {
			t.HabitID = def.Habit.ID
		}
		if t.Week == 0 {
			t.Week = weekOf(t.Days)
		}
		if t.SortOrder == 0 {
			t.SortOrder = i
		}
		t.Active = true
		for _, d := range t.Days {
			if d > maxDay {
				maxDay = d
			}
		}
		tasks[i] = t
	}
	def.Tasks = tasks

	if def.Habit.DurationDays == 0 {
		def.Habit.DurationDays = maxDay
	}
	return def
}

func weekOf(days []int) int {
	if len(days) == 0 {
		return constants.MinProgramWeek
	}
	first := days[0]
	for _, d := range days {
		if d < first {
			first = d
		}
	}
	if first < constants.MinProgramDay {
		return constants.MinProgramWeek
	}
	return (first-1)/7 + 1
}
