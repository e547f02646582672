package models

import (
	"time"

	"github.com/julianstephens/habitrun/internal/constants"
)

// CompletionRecord is one logged instance of a task being done on a logical program day.
// An empty TaskID means the record was logged against the day only.
type CompletionRecord struct {
	Day            int       `json:"day"`
	TaskID         string    `json:"task_id,omitempty"`
	CompletedAt    time.Time `json:"completed_at"`
	CompletionTime *int      `json:"completion_time,omitempty"` // minutes
	Notes          string    `json:"notes,omitempty"`
	Rating         *int      `json:"rating,omitempty"` // 1..5
}

// Matches reports whether the record is keyed by (day, taskID).
func (r CompletionRecord) Matches(day int, taskID string) bool {
	return r.Day == day && r.TaskID == taskID
}

// Enrollment is a user's single attempt at a habit program.
type Enrollment struct {
	ID                  string             `json:"id"`
	UserID              string             `json:"user_id"`
	HabitID             string             `json:"habit_id"`
	StartDate           time.Time          `json:"start_date"`
	CurrentDay          int                `json:"current_day"`
	IsActive            bool               `json:"is_active"`
	IsCompleted         bool               `json:"is_completed"`
	CompletedAt         *time.Time         `json:"completed_at,omitempty"`
	CompletedDays       []CompletionRecord `json:"completed_days"`
	Streak              int                `json:"streak"`
	LongestStreak       int                `json:"longest_streak"`
	TotalCompletedTasks int                `json:"total_completed_tasks"`
	LastCompletedDate   *time.Time         `json:"last_completed_date,omitempty"`
	ProgressPercentage  int                `json:"progress_percentage"`
	Revision            int64              `json:"revision"`
	CreatedAt           time.Time          `json:"created_at"`
	UpdatedAt           time.Time          `json:"updated_at"`
}

// Status derives the lifecycle state from the active/completed flags.
func (e Enrollment) Status() constants.EnrollmentStatus {
	switch {
	case e.IsCompleted:
		return constants.StatusCompleted
	case e.IsActive:
		return constants.StatusActive
	case e.ID == "":
		return constants.StatusNotStarted
	default:
		return constants.StatusAbandoned
	}
}

// FindRecord returns the index of the record keyed by (day, taskID), or -1.
func (e Enrollment) FindRecord(day int, taskID string) int {
	for i, r := range e.CompletedDays {
		if r.Matches(day, taskID) {
			return i
		}
	}
	return -1
}

// RecordsForDay returns the completion records logged for a logical day.
func (e Enrollment) RecordsForDay(day int) []CompletionRecord {
	records := []CompletionRecord{}
	for _, r := range e.CompletedDays {
		if r.Day == day {
			records = append(records, r)
		}
	}
	return records
}

// Clone returns a deep copy so callers can mutate without touching shared state.
func (e Enrollment) Clone() Enrollment {
	c := e
	if e.CompletedDays != nil {
		c.CompletedDays = make([]CompletionRecord, len(e.CompletedDays))
		for i, r := range e.CompletedDays {
			c.CompletedDays[i] = r.clone()
		}
	}
	if e.CompletedAt != nil {
		t := *e.CompletedAt
		c.CompletedAt = &t
	}
	if e.LastCompletedDate != nil {
		t := *e.LastCompletedDate
		c.LastCompletedDate = &t
	}
	return c
}

func (r CompletionRecord) clone() CompletionRecord {
	c := r
	if r.CompletionTime != nil {
		v := *r.CompletionTime
		c.CompletionTime = &v
	}
	if r.Rating != nil {
		v := *r.Rating
		c.Rating = &v
	}
	return c
}

// EnrollmentFilter narrows enrollment listings.
type EnrollmentFilter struct {
	HabitID    string
	ActiveOnly bool
}

// TodayTask is the caller-facing projection of "what is due today" for one enrollment.
type TodayTask struct {
	EnrollmentID string             `json:"enrollment_id"`
	HabitID      string             `json:"habit_id"`
	Day          int                `json:"day"`
	Completions  []CompletionRecord `json:"completions"`
	Tasks        []CatalogTask      `json:"tasks,omitempty"`
}

// TaskProgress annotates a catalog task with the records logged against it.
type TaskProgress struct {
	Task        CatalogTask        `json:"task"`
	IsCompleted bool               `json:"is_completed"`
	Completions []CompletionRecord `json:"completions"`
}

// HabitProgress is the detailed view of one active enrollment.
type HabitProgress struct {
	Enrollment Enrollment     `json:"enrollment"`
	Habit      Habit          `json:"habit"`
	Today      TodayTask      `json:"today"`
	Tasks      []TaskProgress `json:"tasks"`
}
