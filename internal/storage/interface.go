package storage

import (
	"context"
	"time"

	"github.com/julianstephens/habitrun/internal/models"
)

// EnrollmentStore keeps enrollments keyed by id with a secondary index on
// (user, habit, active). Lookups that match nothing return errors.ErrNoRecord.
type EnrollmentStore interface {
	GetEnrollment(ctx context.Context, userID, enrollmentID string) (models.Enrollment, error)
	FindActiveEnrollment(ctx context.Context, userID, habitID string) (models.Enrollment, error)
	ListEnrollments(ctx context.Context, userID string, filter models.EnrollmentFilter) ([]models.Enrollment, error)
	// ListActiveEnrollmentsForHabit returns up to limit active enrollments in the
	// habit owned by users other than excludeUserID, most recently started first.
	ListActiveEnrollmentsForHabit(ctx context.Context, habitID, excludeUserID string, limit int) ([]models.Enrollment, error)

	// InsertEnrollment returns errors.ErrDuplicateActive when the user already
	// has an active enrollment in the habit.
	InsertEnrollment(ctx context.Context, e models.Enrollment) error
	// SaveEnrollment writes e only if the stored revision still equals
	// expectedRevision, and appends events to the outbox in the same transaction.
	// A lost race returns errors.ErrRevisionConflict. The returned enrollment
	// carries the new revision.
	SaveEnrollment(ctx context.Context, e models.Enrollment, expectedRevision int64, events []models.CompletionEvent) (models.Enrollment, error)
}

// CatalogStore is the read-mostly habit catalog.
type CatalogStore interface {
	// ImportHabitDefinition upserts a habit and its tasks atomically.
	ImportHabitDefinition(ctx context.Context, def models.HabitDefinition) error
	GetHabit(ctx context.Context, id string) (models.Habit, error)
	ListHabits(ctx context.Context) ([]models.Habit, error)
	TasksFor(ctx context.Context, habitID string) ([]models.CatalogTask, error)
}

// RewardLedger records reward grants keyed by completion event.
type RewardLedger interface {
	// GrantReward credits units to userID once per eventID. granted is false when
	// the event was already credited.
	GrantReward(ctx context.Context, eventID, userID string, units int, at time.Time) (granted bool, err error)
	RewardBalance(ctx context.Context, userID string) (int, error)
}

// Outbox exposes completion events awaiting dispatch.
type Outbox interface {
	PendingEvents(ctx context.Context, limit, maxAttempts int) ([]models.CompletionEvent, error)
	MarkEventDispatched(ctx context.Context, eventID string, at time.Time) error
	MarkEventFailed(ctx context.Context, eventID, reason string) error
}

// RosterStore is the SQL-backed engagement roster.
type RosterStore interface {
	JoinRoster(ctx context.Context, entry models.RosterEntry) error
	LeaveRoster(ctx context.Context, habitID, userID string) error
	// SetRosterProgress updates an existing entry and reports whether one existed.
	SetRosterProgress(ctx context.Context, habitID, userID string, progress int, at time.Time) (bool, error)
	Roster(ctx context.Context, habitID string) ([]models.RosterEntry, error)
}

// Provider is a complete storage backend.
type Provider interface {
	// Lifecycle
	Init() error
	Load() error
	Close() error
	Migrate(ctx context.Context, logFn func(string)) (int, error)
	SchemaVersion(ctx context.Context) (current, latest int, err error)

	EnrollmentStore
	CatalogStore
	RewardLedger
	Outbox
	RosterStore

	// Utils
	GetConfigPath() string
}
