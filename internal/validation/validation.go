package validation

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/julianstephens/habitrun/internal/constants"
	apperrors "github.com/julianstephens/habitrun/internal/errors"
	"github.com/julianstephens/habitrun/internal/models"
)

// ConflictType represents the type of validation conflict
type ConflictType string

const (
	ConflictMissingHabitID   ConflictType = "missing_habit_id"
	ConflictDuplicateHabitID ConflictType = "duplicate_habit_id"
	ConflictMissingTitle     ConflictType = "missing_title"
	ConflictMissingTaskID    ConflictType = "missing_task_id"
	ConflictDuplicateTaskID  ConflictType = "duplicate_task_id"
	ConflictInvalidDay       ConflictType = "invalid_day"
	ConflictInvalidWeek      ConflictType = "invalid_week"
	ConflictHabitMismatch    ConflictType = "habit_mismatch"
	ConflictNoDays           ConflictType = "no_days"
)

// Conflict represents a problem detected in a catalog definition
type Conflict struct {
	Type        ConflictType
	Description string
	HabitID     string
	Items       []string // Task titles involved
	TaskIDs     []string // IDs of tasks involved (for auto-fixing)
}

// ValidationResult contains all detected conflicts
type ValidationResult struct {
	Conflicts []Conflict
}

// FixAction represents an action taken during auto-fix
type FixAction struct {
	Action         string   // Human-readable description of the action
	SourceConflict Conflict // The conflict that triggered this fix action
}

// HasConflicts returns true if there are any conflicts
func (vr *ValidationResult) HasConflicts() bool {
	return len(vr.Conflicts) > 0
}

// FormatReport returns a human-readable report of all conflicts
func (vr *ValidationResult) FormatReport() string {
	if !vr.HasConflicts() {
		return "No conflicts detected."
	}

	var b strings.Builder
	b.WriteString("Conflicts detected:\n")
	for _, conflict := range vr.Conflicts {
		fmt.Fprintf(&b, "- %s\n", conflict.Description)
	}
	return b.String()
}

// Err converts the result into an InvalidInput error, or nil when clean.
func (vr *ValidationResult) Err(op string) error {
	if !vr.HasConflicts() {
		return nil
	}
	return apperrors.InvalidInput(op, "%d catalog conflict(s): %s", len(vr.Conflicts), vr.Conflicts[0].Description)
}

// Validator validates catalog definitions
type Validator struct{}

// New creates a new Validator
func New() *Validator {
	return &Validator{}
}

// ValidateDefinitions checks every definition and flags habit ids used twice.
func (v *Validator) ValidateDefinitions(defs []models.HabitDefinition) ValidationResult {
	result := ValidationResult{Conflicts: []Conflict{}}

	seen := make(map[string]int)
	for _, def := range defs {
		if def.Habit.ID != "" {
			seen[def.Habit.ID]++
		}
		r := v.ValidateDefinition(def)
		result.Conflicts = append(result.Conflicts, r.Conflicts...)
	}

	ids := make([]string, 0, len(seen))
	for id, n := range seen {
		if n > 1 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		result.Conflicts = append(result.Conflicts, Conflict{
			Type:        ConflictDuplicateHabitID,
			Description: fmt.Sprintf("Habit id %q is defined %d times", id, seen[id]),
			HabitID:     id,
		})
	}
	return result
}

// ValidateDefinition checks one habit and its tasks.
func (v *Validator) ValidateDefinition(def models.HabitDefinition) ValidationResult {
	result := ValidationResult{Conflicts: []Conflict{}}
	h := def.Habit

	if strings.TrimSpace(h.ID) == "" {
		result.Conflicts = append(result.Conflicts, Conflict{
			Type:        ConflictMissingHabitID,
			Description: fmt.Sprintf("Habit %q has no id", h.Title),
		})
	}
	if strings.TrimSpace(h.Title) == "" || utf8.RuneCountInString(h.Title) > constants.MaxTitleLength {
		result.Conflicts = append(result.Conflicts, Conflict{
			Type:        ConflictMissingTitle,
			Description: fmt.Sprintf("Habit %q needs a title of 1-%d characters", h.ID, constants.MaxTitleLength),
			HabitID:     h.ID,
		})
	}

	idCount := make(map[string][]string)
	var order []string
	for _, task := range def.Tasks {
		if task.HabitID != "" && task.HabitID != h.ID {
			result.Conflicts = append(result.Conflicts, Conflict{
				Type:        ConflictHabitMismatch,
				Description: fmt.Sprintf("Task %q belongs to habit %q, not %q", task.ID, task.HabitID, h.ID),
				HabitID:     h.ID,
				Items:       []string{task.Title},
				TaskIDs:     []string{task.ID},
			})
		}

		if strings.TrimSpace(task.ID) == "" {
			result.Conflicts = append(result.Conflicts, Conflict{
				Type:        ConflictMissingTaskID,
				Description: fmt.Sprintf("Task %q in habit %q has no id", task.Title, h.ID),
				HabitID:     h.ID,
				Items:       []string{task.Title},
			})
		} else {
			if _, ok := idCount[task.ID]; !ok {
				order = append(order, task.ID)
			}
			idCount[task.ID] = append(idCount[task.ID], task.Title)
		}

		if strings.TrimSpace(task.Title) == "" || utf8.RuneCountInString(task.Title) > constants.MaxTitleLength {
			result.Conflicts = append(result.Conflicts, Conflict{
				Type:        ConflictMissingTitle,
				Description: fmt.Sprintf("Task %q in habit %q needs a title of 1-%d characters", task.ID, h.ID, constants.MaxTitleLength),
				HabitID:     h.ID,
				TaskIDs:     []string{task.ID},
			})
		}

		if len(task.Days) == 0 {
			result.Conflicts = append(result.Conflicts, Conflict{
				Type:        ConflictNoDays,
				Description: fmt.Sprintf("Task %q in habit %q is not scheduled on any day", task.ID, h.ID),
				HabitID:     h.ID,
				Items:       []string{task.Title},
				TaskIDs:     []string{task.ID},
			})
		}
		for _, day := range task.Days {
			if day < constants.MinProgramDay || day > constants.MaxProgramDay {
				result.Conflicts = append(result.Conflicts, Conflict{
					Type:        ConflictInvalidDay,
					Description: fmt.Sprintf("Task %q in habit %q has day %d outside %d-%d", task.ID, h.ID, day, constants.MinProgramDay, constants.MaxProgramDay),
					HabitID:     h.ID,
					Items:       []string{task.Title},
					TaskIDs:     []string{task.ID},
				})
			}
		}

		if task.Week < constants.MinProgramWeek || task.Week > constants.MaxProgramWeek {
			result.Conflicts = append(result.Conflicts, Conflict{
				Type:        ConflictInvalidWeek,
				Description: fmt.Sprintf("Task %q in habit %q has week %d outside %d-%d", task.ID, h.ID, task.Week, constants.MinProgramWeek, constants.MaxProgramWeek),
				HabitID:     h.ID,
				Items:       []string{task.Title},
				TaskIDs:     []string{task.ID},
			})
		}
	}

	for _, id := range order {
		titles := idCount[id]
		if len(titles) > 1 {
			result.Conflicts = append(result.Conflicts, Conflict{
				Type:        ConflictDuplicateTaskID,
				Description: fmt.Sprintf("Duplicate task id %q in habit %q (titles: %v)", id, h.ID, titles),
				HabitID:     h.ID,
				Items:       titles,
				TaskIDs:     []string{id},
			})
		}
	}

	return result
}

// AutoFixDuplicateTasks keeps the first task for every duplicated id and drops
// the rest. It returns the cleaned definition and what was changed.
func AutoFixDuplicateTasks(conflicts []Conflict, def models.HabitDefinition) (models.HabitDefinition, []FixAction) {
	actions := []FixAction{}

	dupes := make(map[string]Conflict)
	for _, conflict := range conflicts {
		if conflict.Type != ConflictDuplicateTaskID || conflict.HabitID != def.Habit.ID {
			continue
		}
		for _, id := range conflict.TaskIDs {
			dupes[id] = conflict
		}
	}
	if len(dupes) == 0 {
		return def, actions
	}

	fixed := def
	fixed.Tasks = make([]models.CatalogTask, 0, len(def.Tasks))
	kept := make(map[string]bool)
	removed := make(map[string]int)
	for _, task := range def.Tasks {
		if _, dup := dupes[task.ID]; dup && kept[task.ID] {
			removed[task.ID]++
			continue
		}
		kept[task.ID] = true
		fixed.Tasks = append(fixed.Tasks, task)
	}

	ids := make([]string, 0, len(removed))
	for id := range removed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		actions = append(actions, FixAction{
			Action:         fmt.Sprintf("Removed %d duplicate task(s) with id %q from habit %q (kept the first)", removed[id], id, def.Habit.ID),
			SourceConflict: dupes[id],
		})
	}
	return fixed, actions
}
