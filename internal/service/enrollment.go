package service

import (
	"context"
	"time"

	apperrors "github.com/julianstephens/habitrun/internal/errors"
	"github.com/julianstephens/habitrun/internal/models"
	"github.com/julianstephens/habitrun/internal/progress"
	"github.com/julianstephens/habitrun/internal/validation"
)

// StartEnrollment begins a new attempt at habitID. It fails with Conflict
// when the user already has an active enrollment there.
func (s *Service) StartEnrollment(ctx context.Context, userID, habitID string) (models.Enrollment, error) {
	const op = "enrollment.start"
	if err := validation.ValidateIDs(op, userID, habitID); err != nil {
		return models.Enrollment{}, err
	}
	if _, err := s.catalog.GetHabit(ctx, habitID); err != nil {
		return models.Enrollment{}, apperrors.Internal(op, err)
	}

	unlock := s.locks.lock(userID)
	defer unlock()

	_, err := s.store.FindActiveEnrollment(ctx, userID, habitID)
	switch {
	case err == nil:
		return models.Enrollment{}, apperrors.Conflict(op, "already enrolled in habit %s", habitID)
	case !apperrors.Is(err, apperrors.ErrNoRecord):
		return models.Enrollment{}, apperrors.Internal(op, err)
	}

	now := s.clock()
	e := models.Enrollment{
		ID:            s.newID(),
		UserID:        userID,
		HabitID:       habitID,
		StartDate:     now,
		CurrentDay:    1,
		IsActive:      true,
		CompletedDays: []models.CompletionRecord{},
		Revision:      1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.InsertEnrollment(ctx, e); err != nil {
		if apperrors.Is(err, apperrors.ErrDuplicateActive) {
			return models.Enrollment{}, apperrors.Conflict(op, "already enrolled in habit %s", habitID)
		}
		return models.Enrollment{}, apperrors.Internal(op, err)
	}

	s.log.Info("Started enrollment", "user", userID, "habit", habitID, "enrollment", e.ID)
	return e, nil
}

// StopEnrollment abandons the active enrollment and keeps its progress.
func (s *Service) StopEnrollment(ctx context.Context, userID, habitID string) (models.Enrollment, error) {
	const op = "enrollment.stop"
	if err := validation.ValidateIDs(op, userID, habitID); err != nil {
		return models.Enrollment{}, err
	}

	e, _, err := s.mutateActive(ctx, op, userID, habitID, func(e *models.Enrollment, now time.Time) ([]models.CompletionEvent, bool, error) {
		e.IsActive = false
		return nil, true, nil
	})
	if err != nil {
		return models.Enrollment{}, err
	}
	s.log.Info("Stopped enrollment", "user", userID, "habit", habitID, "enrollment", e.ID)
	return e, nil
}

// ResetEnrollment wipes the active enrollment's progress and restarts it today.
func (s *Service) ResetEnrollment(ctx context.Context, userID, habitID string) (models.Enrollment, error) {
	const op = "enrollment.reset"
	if err := validation.ValidateIDs(op, userID, habitID); err != nil {
		return models.Enrollment{}, err
	}

	e, _, err := s.mutateActive(ctx, op, userID, habitID, func(e *models.Enrollment, now time.Time) ([]models.CompletionEvent, bool, error) {
		e.CompletedDays = []models.CompletionRecord{}
		e.Streak = 0
		e.LongestStreak = 0
		e.TotalCompletedTasks = 0
		e.ProgressPercentage = 0
		e.LastCompletedDate = nil
		e.StartDate = now
		e.CurrentDay = 1
		return nil, true, nil
	})
	return e, err
}

// CompleteTaskInput identifies the task being completed and carries optional
// metadata. Nil fields leave an existing record's values untouched.
type CompleteTaskInput struct {
	UserID         string
	HabitID        string
	Day            int
	TaskID         string
	CompletionTime *int
	Notes          *string
	Rating         *int
}

// CompleteTask records (day, task) on the active enrollment. completed is true
// only on the call that moves the enrollment into its terminal state.
func (s *Service) CompleteTask(ctx context.Context, in CompleteTaskInput) (e models.Enrollment, completed bool, err error) {
	const op = "enrollment.complete_task"
	if err := validation.ValidateIDs(op, in.UserID, in.HabitID); err != nil {
		return models.Enrollment{}, false, err
	}
	if err := validation.ValidateCompletion(op, validation.Completion{
		Day:            in.Day,
		TaskID:         in.TaskID,
		CompletionTime: in.CompletionTime,
		Notes:          in.Notes,
		Rating:         in.Rating,
	}); err != nil {
		return models.Enrollment{}, false, err
	}

	if in.TaskID != "" {
		ok, err := s.catalog.HasTask(ctx, in.HabitID, in.TaskID)
		if err != nil {
			return models.Enrollment{}, false, apperrors.Internal(op, err)
		}
		if !ok {
			return models.Enrollment{}, false, apperrors.NotFound(op, "task %s is not part of habit %s", in.TaskID, in.HabitID)
		}
	}
	tasks, err := s.catalog.TaskIDs(ctx, in.HabitID)
	if err != nil {
		return models.Enrollment{}, false, apperrors.Internal(op, err)
	}

	e, events, err := s.mutateActive(ctx, op, in.UserID, in.HabitID, func(e *models.Enrollment, now time.Time) ([]models.CompletionEvent, bool, error) {
		upsertRecord(e, in, now)

		result := progress.Recompute(*e, tasks, now, s.loc)
		result.Apply(e)
		if !result.Completed {
			return nil, true, nil
		}

		completedAt := now
		e.IsCompleted = true
		e.IsActive = false
		e.CompletedAt = &completedAt
		return []models.CompletionEvent{{
			ID:           s.newID(),
			EnrollmentID: e.ID,
			UserID:       e.UserID,
			HabitID:      e.HabitID,
			OccurredAt:   now,
		}}, true, nil
	})
	if err != nil {
		return models.Enrollment{}, false, err
	}

	if len(events) > 0 {
		s.log.Info("Habit completed", "user", in.UserID, "habit", in.HabitID, "enrollment", e.ID, "event", events[0].ID)
		s.notifyCompleted()
		return e, true, nil
	}
	return e, false, nil
}

func upsertRecord(e *models.Enrollment, in CompleteTaskInput, now time.Time) {
	if i := e.FindRecord(in.Day, in.TaskID); i >= 0 {
		r := &e.CompletedDays[i]
		r.CompletedAt = now
		if in.CompletionTime != nil {
			v := *in.CompletionTime
			r.CompletionTime = &v
		}
		if in.Notes != nil {
			r.Notes = *in.Notes
		}
		if in.Rating != nil {
			v := *in.Rating
			r.Rating = &v
		}
		return
	}

	r := models.CompletionRecord{
		Day:         in.Day,
		TaskID:      in.TaskID,
		CompletedAt: now,
	}
	if in.CompletionTime != nil {
		v := *in.CompletionTime
		r.CompletionTime = &v
	}
	if in.Notes != nil {
		r.Notes = *in.Notes
	}
	if in.Rating != nil {
		v := *in.Rating
		r.Rating = &v
	}
	e.CompletedDays = append(e.CompletedDays, r)
	e.TotalCompletedTasks++
	last := now
	e.LastCompletedDate = &last
}

// UncompleteTask removes the first record logged for day (and taskID, when
// given). Nothing matching is not an error; the enrollment comes back as is.
func (s *Service) UncompleteTask(ctx context.Context, userID, habitID string, day int, taskID string) (models.Enrollment, error) {
	const op = "enrollment.uncomplete_task"
	if err := validation.ValidateIDs(op, userID, habitID); err != nil {
		return models.Enrollment{}, err
	}
	if err := validation.ValidateDay(op, day); err != nil {
		return models.Enrollment{}, err
	}

	tasks, err := s.catalog.TaskIDs(ctx, habitID)
	if err != nil {
		return models.Enrollment{}, apperrors.Internal(op, err)
	}

	e, _, err := s.mutateActive(ctx, op, userID, habitID, func(e *models.Enrollment, now time.Time) ([]models.CompletionEvent, bool, error) {
		idx := -1
		for i, r := range e.CompletedDays {
			if r.Day == day && (taskID == "" || r.TaskID == taskID) {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, false, nil
		}

		e.CompletedDays = append(e.CompletedDays[:idx], e.CompletedDays[idx+1:]...)
		if e.TotalCompletedTasks > 0 {
			e.TotalCompletedTasks--
		}
		progress.Recompute(*e, tasks, now, s.loc).Apply(e)
		return nil, true, nil
	})
	return e, err
}
