// Package service implements the enrollment operations: start, stop, reset,
// complete and uncomplete, plus the read projections built on top of them.
//
// Mutations for one user are serialized in-process by a per-user lock and
// across processes by the store's revision compare-and-set. A lost race is
// retried from a fresh read.
package service

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/julianstephens/habitrun/internal/constants"
	apperrors "github.com/julianstephens/habitrun/internal/errors"
	"github.com/julianstephens/habitrun/internal/logger"
	"github.com/julianstephens/habitrun/internal/models"
	"github.com/julianstephens/habitrun/internal/progress"
	"github.com/julianstephens/habitrun/internal/storage"
)

// Store is the persistence the service needs.
type Store interface {
	storage.EnrollmentStore
	RewardBalance(ctx context.Context, userID string) (int, error)
}

// Catalog resolves habits and their tasks. *catalog.Client satisfies it.
type Catalog interface {
	GetHabit(ctx context.Context, habitID string) (models.Habit, error)
	TasksFor(ctx context.Context, habitID string) ([]models.CatalogTask, error)
	TasksForDay(ctx context.Context, habitID string, day int) ([]models.CatalogTask, error)
	TaskIDs(ctx context.Context, habitID string) (progress.TaskSet, error)
	HasTask(ctx context.Context, habitID, taskID string) (bool, error)
}

type Service struct {
	store       Store
	catalog     Catalog
	locks       *userLocks
	now         func() time.Time
	loc         *time.Location
	newID       func() string
	onCompleted func()
	log         *log.Logger
}

type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation sets the calendar used for "today" and "yesterday".
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithIDGenerator replaces the uuid generator for enrollment and event ids.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

// WithCompletionHook registers fn to run after a completion event has been
// committed, outside the user's lock. The reward dispatcher's Kick fits here.
func WithCompletionHook(fn func()) Option {
	return func(s *Service) { s.onCompleted = fn }
}

func New(store Store, catalog Catalog, opts ...Option) *Service {
	s := &Service{
		store:   store,
		catalog: catalog,
		locks:   newUserLocks(),
		now:     time.Now,
		loc:     time.Local,
		newID:   uuid.NewString,
		log:     logger.Component("service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) clock() time.Time {
	return s.now().In(s.loc)
}

// mutation edits the enrollment in place and returns any outbox events to
// commit with it. Returning changed=false skips the write.
type mutation func(e *models.Enrollment, now time.Time) (events []models.CompletionEvent, changed bool, err error)

// mutateActive runs fn against the user's active enrollment in habitID under
// the user's lock, retrying on revision conflicts. Only active enrollments are
// loaded, so fn never sees a completed one.
func (s *Service) mutateActive(ctx context.Context, op, userID, habitID string, fn mutation) (models.Enrollment, []models.CompletionEvent, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	for attempt := 1; attempt <= constants.MaxCommitAttempts; attempt++ {
		current, err := s.store.FindActiveEnrollment(ctx, userID, habitID)
		if err != nil {
			if apperrors.Is(err, apperrors.ErrNoRecord) {
				return models.Enrollment{}, nil, apperrors.NotFound(op, "no active enrollment in habit %s", habitID)
			}
			return models.Enrollment{}, nil, apperrors.Internal(op, err)
		}

		now := s.clock()
		next := current.Clone()
		events, changed, err := fn(&next, now)
		if err != nil {
			return models.Enrollment{}, nil, err
		}
		if !changed {
			return s.withCurrentDay(current, now), nil, nil
		}
		next.UpdatedAt = now

		saved, err := s.store.SaveEnrollment(ctx, next, current.Revision, events)
		switch {
		case err == nil:
			s.log.Debug("Committed enrollment", "op", op, "user", userID, "habit", habitID, "enrollment", saved.ID, "revision", saved.Revision)
			return s.withCurrentDay(saved, now), events, nil
		case apperrors.Is(err, apperrors.ErrRevisionConflict):
			s.log.Debug("Revision conflict, retrying", "op", op, "user", userID, "enrollment", current.ID, "attempt", attempt)
			continue
		case apperrors.Is(err, apperrors.ErrNoRecord):
			return models.Enrollment{}, nil, apperrors.NotFound(op, "no active enrollment in habit %s", habitID)
		default:
			return models.Enrollment{}, nil, apperrors.Internal(op, err)
		}
	}
	return models.Enrollment{}, nil, apperrors.New(apperrors.CodeInternal, op,
		"enrollment kept changing under concurrent writers, giving up", apperrors.ErrRevisionConflict)
}

// withCurrentDay fills the derived day index. Inactive enrollments stop
// counting at their last update.
func (s *Service) withCurrentDay(e models.Enrollment, now time.Time) models.Enrollment {
	asOf := now
	if !e.IsActive && !e.UpdatedAt.IsZero() {
		asOf = e.UpdatedAt
	}
	e.CurrentDay = progress.CurrentDay(e.StartDate, asOf)
	return e
}

func (s *Service) notifyCompleted() {
	if s.onCompleted != nil {
		s.onCompleted()
	}
}
