package models

import (
	"time"

	"github.com/julianstephens/habitrun/internal/constants"
)

// Habit is a program entry in the read-only content catalog.
type Habit struct {
	ID           string               `json:"id"`
	Title        string               `json:"title"`
	Category     string               `json:"category,omitempty"`
	Difficulty   constants.Difficulty `json:"difficulty,omitempty"`
	DurationDays int                  `json:"duration_days,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
}

// CatalogTask is a task inside a habit program and the logical days it belongs to.
type CatalogTask struct {
	ID        string `json:"id"`
	HabitID   string `json:"habit_id"`
	Title     string `json:"title"`
	Days      []int  `json:"days"`
	Week      int    `json:"week"`
	SortOrder int    `json:"sort_order"`
	Active    bool   `json:"active"`
}

// OnDay reports whether the task is scheduled on the given logical day.
func (t CatalogTask) OnDay(day int) bool {
	for _, d := range t.Days {
		if d == day {
			return true
		}
	}
	return false
}

// HabitDefinition is a habit together with its tasks, the unit of catalog import.
type HabitDefinition struct {
	Habit Habit         `json:"habit"`
	Tasks []CatalogTask `json:"tasks"`
}
