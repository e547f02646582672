package service

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/julianstephens/habitrun/internal/constants"
	apperrors "github.com/julianstephens/habitrun/internal/errors"
	"github.com/julianstephens/habitrun/internal/models"
	"github.com/julianstephens/habitrun/internal/progress"
)

// GetEnrollment returns one of the user's enrollments by id.
func (s *Service) GetEnrollment(ctx context.Context, userID, enrollmentID string) (models.Enrollment, error) {
	const op = "enrollment.get"
	e, err := s.store.GetEnrollment(ctx, userID, enrollmentID)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNoRecord) {
			return models.Enrollment{}, apperrors.NotFound(op, "enrollment %s not found", enrollmentID)
		}
		return models.Enrollment{}, apperrors.Internal(op, err)
	}
	return s.withCurrentDay(e, s.clock()), nil
}

// ListActiveEnrollments returns the user's active enrollments.
func (s *Service) ListActiveEnrollments(ctx context.Context, userID string) ([]models.Enrollment, error) {
	return s.listEnrollments(ctx, "enrollment.list_active", userID, models.EnrollmentFilter{ActiveOnly: true})
}

// ListEnrollments returns every enrollment the user has had, including
// completed and abandoned ones.
func (s *Service) ListEnrollments(ctx context.Context, userID string, filter models.EnrollmentFilter) ([]models.Enrollment, error) {
	return s.listEnrollments(ctx, "enrollment.list", userID, filter)
}

func (s *Service) listEnrollments(ctx context.Context, op, userID string, filter models.EnrollmentFilter) ([]models.Enrollment, error) {
	list, err := s.store.ListEnrollments(ctx, userID, filter)
	if err != nil {
		return nil, apperrors.Internal(op, err)
	}
	now := s.clock()
	for i := range list {
		list[i] = s.withCurrentDay(list[i], now)
	}
	return list, nil
}

// GetTodayTask returns today's day index and the records already logged for
// it, or nil when the user has no active enrollment in the habit.
func (s *Service) GetTodayTask(ctx context.Context, userID, habitID string) (*models.TodayTask, error) {
	const op = "enrollment.today"
	e, err := s.store.FindActiveEnrollment(ctx, userID, habitID)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNoRecord) {
			return nil, nil
		}
		return nil, apperrors.Internal(op, err)
	}
	today, err := s.todayFor(ctx, s.withCurrentDay(e, s.clock()))
	if err != nil {
		return nil, apperrors.Internal(op, err)
	}
	return &today, nil
}

func (s *Service) todayFor(ctx context.Context, e models.Enrollment) (models.TodayTask, error) {
	tasks, err := s.catalog.TasksForDay(ctx, e.HabitID, e.CurrentDay)
	if err != nil {
		return models.TodayTask{}, err
	}
	return models.TodayTask{
		EnrollmentID: e.ID,
		HabitID:      e.HabitID,
		Day:          e.CurrentDay,
		Completions:  e.RecordsForDay(e.CurrentDay),
		Tasks:        tasks,
	}, nil
}

// ListTodayTasks returns today's view for every active enrollment, in the
// order the store lists them.
func (s *Service) ListTodayTasks(ctx context.Context, userID string) ([]models.TodayTask, error) {
	const op = "enrollment.list_today"
	active, err := s.ListActiveEnrollments(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]models.TodayTask, len(active))
	g, gctx := errgroup.WithContext(ctx)
	for i, e := range active {
		g.Go(func() error {
			today, err := s.todayFor(gctx, e)
			if err != nil {
				return err
			}
			out[i] = today
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, apperrors.Internal(op, err)
	}
	return out, nil
}

// GetHabitProgress returns the active enrollment with every catalog task
// annotated by the records logged against it.
func (s *Service) GetHabitProgress(ctx context.Context, userID, habitID string) (models.HabitProgress, error) {
	const op = "enrollment.progress"
	e, err := s.store.FindActiveEnrollment(ctx, userID, habitID)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNoRecord) {
			return models.HabitProgress{}, apperrors.NotFound(op, "no active enrollment in habit %s", habitID)
		}
		return models.HabitProgress{}, apperrors.Internal(op, err)
	}
	e = s.withCurrentDay(e, s.clock())

	habit, err := s.catalog.GetHabit(ctx, habitID)
	if err != nil {
		return models.HabitProgress{}, apperrors.Internal(op, err)
	}
	tasks, err := s.catalog.TasksFor(ctx, habitID)
	if err != nil {
		return models.HabitProgress{}, apperrors.Internal(op, err)
	}
	today, err := s.todayFor(ctx, e)
	if err != nil {
		return models.HabitProgress{}, apperrors.Internal(op, err)
	}

	byTask := make(map[string][]models.CompletionRecord)
	for _, r := range e.CompletedDays {
		if r.TaskID != "" {
			byTask[r.TaskID] = append(byTask[r.TaskID], r)
		}
	}
	annotated := make([]models.TaskProgress, 0, len(tasks))
	for _, t := range tasks {
		records := byTask[t.ID]
		if records == nil {
			records = []models.CompletionRecord{}
		}
		annotated = append(annotated, models.TaskProgress{
			Task:        t,
			IsCompleted: len(records) > 0,
			Completions: records,
		})
	}

	return models.HabitProgress{
		Enrollment: e,
		Habit:      habit,
		Today:      today,
		Tasks:      annotated,
	}, nil
}

// HabitParticipants lists up to MaxParticipants other users working on the
// habit, split by whether they logged anything for their current day.
func (s *Service) HabitParticipants(ctx context.Context, userID, habitID string) (models.Participants, error) {
	const op = "enrollment.participants"
	others, err := s.store.ListActiveEnrollmentsForHabit(ctx, habitID, userID, constants.MaxParticipants)
	if err != nil {
		return models.Participants{}, apperrors.Internal(op, err)
	}

	now := s.clock()
	result := models.Participants{
		Pending:        []models.Participant{},
		CompletedToday: []models.Participant{},
	}
	for _, e := range others {
		day := progress.CurrentDay(e.StartDate, now)
		p := models.Participant{
			UserID:           e.UserID,
			Progress:         e.ProgressPercentage,
			Streak:           e.Streak,
			StartDate:        e.StartDate,
			IsTodayCompleted: len(e.RecordsForDay(day)) > 0,
		}
		if p.IsTodayCompleted {
			result.CompletedToday = append(result.CompletedToday, p)
		} else {
			result.Pending = append(result.Pending, p)
		}
	}
	return result, nil
}

// RewardBalance returns the user's reward units.
func (s *Service) RewardBalance(ctx context.Context, userID string) (int, error) {
	units, err := s.store.RewardBalance(ctx, userID)
	if err != nil {
		return 0, apperrors.Internal("rewards.balance", err)
	}
	return units, nil
}

// GetAggregateStats summarizes every enrollment the user has had.
func (s *Service) GetAggregateStats(ctx context.Context, userID string) (models.AggregateStats, error) {
	const op = "enrollment.stats"
	all, err := s.store.ListEnrollments(ctx, userID, models.EnrollmentFilter{})
	if err != nil {
		return models.AggregateStats{}, apperrors.Internal(op, err)
	}
	units, err := s.store.RewardBalance(ctx, userID)
	if err != nil {
		return models.AggregateStats{}, apperrors.Internal(op, err)
	}

	habits, err := s.habitsFor(ctx, all)
	if err != nil {
		return models.AggregateStats{}, apperrors.Internal(op, err)
	}

	now := s.clock()
	recentSince := now.Add(-constants.RecentCompletionsWindow)
	monthlySince := now.Add(-constants.MonthlyCompletionsWindow)

	stats := models.AggregateStats{
		TotalHabits:  len(all),
		RewardUnits:  units,
		Categories:   map[string]models.BreakdownCounts{},
		Difficulties: map[string]models.BreakdownCounts{},
	}
	progressSum := 0
	for _, e := range all {
		switch {
		case e.IsCompleted:
			stats.TotalCompletedHabits++
		case e.IsActive:
			stats.TotalActiveHabits++
			stats.TotalStreak += e.Streak
			progressSum += e.ProgressPercentage
		default:
			stats.TotalGivenUpHabits++
		}
		stats.TotalCompletedTasks += e.TotalCompletedTasks
		if e.LongestStreak > stats.LongestStreak {
			stats.LongestStreak = e.LongestStreak
		}
		for _, r := range e.CompletedDays {
			if !r.CompletedAt.Before(recentSince) {
				stats.RecentCompletions++
			}
			if !r.CompletedAt.Before(monthlySince) {
				stats.MonthlyCompletions++
			}
		}

		h := habits[e.HabitID]
		category := h.Category
		if category == "" {
			category = constants.UnknownCategory
		}
		difficulty := string(h.Difficulty)
		if difficulty == "" {
			difficulty = string(constants.UnknownDifficulty)
		}
		stats.Categories[category] = tally(stats.Categories[category], e)
		stats.Difficulties[difficulty] = tally(stats.Difficulties[difficulty], e)
	}

	if stats.TotalActiveHabits > 0 {
		stats.AverageProgress = roundDiv(progressSum, stats.TotalActiveHabits)
	}
	if stats.TotalHabits > 0 {
		stats.CompletionRate = roundDiv(100*stats.TotalCompletedHabits, stats.TotalHabits)
	}
	return stats, nil
}

// habitsFor looks up each distinct habit once. Habits no longer in the
// catalog are left out of the map.
func (s *Service) habitsFor(ctx context.Context, list []models.Enrollment) (map[string]models.Habit, error) {
	ids := make([]string, 0)
	seen := make(map[string]bool)
	for _, e := range list {
		if !seen[e.HabitID] {
			seen[e.HabitID] = true
			ids = append(ids, e.HabitID)
		}
	}
	sort.Strings(ids)

	habits := make(map[string]models.Habit, len(ids))
	for _, id := range ids {
		h, err := s.catalog.GetHabit(ctx, id)
		if err != nil {
			if apperrors.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		habits[id] = h
	}
	return habits, nil
}

func tally(c models.BreakdownCounts, e models.Enrollment) models.BreakdownCounts {
	c.Total++
	switch {
	case e.IsCompleted:
		c.Completed++
	case e.IsActive:
		c.Active++
	default:
		c.GivenUp++
	}
	return c
}

// roundDiv returns num/den rounded half up, for non-negative operands.
func roundDiv(num, den int) int {
	return (2*num + den) / (2 * den)
}
