package models

import "time"

// CompletionEvent is the outbox entry emitted when an enrollment reaches completion.
// Its ID is the idempotency key for the reward grant.
type CompletionEvent struct {
	ID           string     `json:"id"`
	EnrollmentID string     `json:"enrollment_id"`
	UserID       string     `json:"user_id"`
	HabitID      string     `json:"habit_id"`
	OccurredAt   time.Time  `json:"occurred_at"`
	DispatchedAt *time.Time `json:"dispatched_at,omitempty"`
	Attempts     int        `json:"attempts"`
	LastError    string     `json:"last_error,omitempty"`
}

// RosterEntry is one participant's cached progress in a habit's engagement roster.
type RosterEntry struct {
	HabitID   string    `json:"habit_id"`
	UserID    string    `json:"user_id"`
	Progress  int       `json:"progress"`
	JoinedAt  time.Time `json:"joined_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Participant is another user working on the same habit.
type Participant struct {
	UserID           string    `json:"user_id"`
	Progress         int       `json:"progress"`
	Streak           int       `json:"streak"`
	StartDate        time.Time `json:"start_date"`
	IsTodayCompleted bool      `json:"is_today_completed"`
}

// Participants splits a habit's other participants by today's status.
type Participants struct {
	Pending        []Participant `json:"pending"`
	CompletedToday []Participant `json:"completed_today"`
}

// Total returns the number of participants in both groups.
func (p Participants) Total() int {
	return len(p.Pending) + len(p.CompletedToday)
}
