package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	apperrors "github.com/julianstephens/habitrun/internal/errors"
	"github.com/julianstephens/habitrun/internal/models"
)

const enrollmentColumns = `id, user_id, habit_id, start_date, is_active, is_completed, completed_at,
	completed_days, streak, longest_streak, total_completed_tasks, last_completed_date,
	progress_percentage, revision, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanEnrollment(row scanner) (models.Enrollment, error) {
	var e models.Enrollment
	var completedDays []byte
	var completedAt, lastCompleted sql.NullTime

	err := row.Scan(
		&e.ID, &e.UserID, &e.HabitID, &e.StartDate, &e.IsActive, &e.IsCompleted, &completedAt,
		&completedDays, &e.Streak, &e.LongestStreak, &e.TotalCompletedTasks, &lastCompleted,
		&e.ProgressPercentage, &e.Revision, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return models.Enrollment{}, err
	}
	e.CompletedAt = timePtr(completedAt)
	e.LastCompletedDate = timePtr(lastCompleted)

	e.CompletedDays = []models.CompletionRecord{}
	if len(completedDays) > 0 {
		if err := json.Unmarshal(completedDays, &e.CompletedDays); err != nil {
			return models.Enrollment{}, fmt.Errorf("failed to decode completed_days for enrollment %s: %w", e.ID, err)
		}
	}
	return e, nil
}

func encodeCompletedDays(records []models.CompletionRecord) (string, error) {
	if records == nil {
		records = []models.CompletionRecord{}
	}
	b, err := json.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("failed to encode completed_days: %w", err)
	}
	return string(b), nil
}

func (s *Store) queryEnrollments(ctx context.Context, query string, args ...any) ([]models.Enrollment, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	enrollments := []models.Enrollment{}
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, err
		}
		enrollments = append(enrollments, e)
	}
	return enrollments, rows.Err()
}

func (s *Store) GetEnrollment(ctx context.Context, userID, enrollmentID string) (models.Enrollment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+enrollmentColumns+` FROM enrollments WHERE id = $1 AND user_id = $2`,
		enrollmentID, userID)
	e, err := scanEnrollment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Enrollment{}, fmt.Errorf("enrollment %s: %w", enrollmentID, apperrors.ErrNoRecord)
	}
	return e, err
}

func (s *Store) FindActiveEnrollment(ctx context.Context, userID, habitID string) (models.Enrollment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+enrollmentColumns+` FROM enrollments WHERE user_id = $1 AND habit_id = $2 AND is_active`,
		userID, habitID)
	e, err := scanEnrollment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Enrollment{}, fmt.Errorf("active enrollment for habit %s: %w", habitID, apperrors.ErrNoRecord)
	}
	return e, err
}

func (s *Store) ListEnrollments(ctx context.Context, userID string, filter models.EnrollmentFilter) ([]models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE user_id = $1`
	args := []any{userID}
	if filter.HabitID != "" {
		args = append(args, filter.HabitID)
		query += " AND habit_id = $" + strconv.Itoa(len(args))
	}
	if filter.ActiveOnly {
		query += " AND is_active"
	}
	query += " ORDER BY start_date, id"
	return s.queryEnrollments(ctx, query, args...)
}

func (s *Store) ListActiveEnrollmentsForHabit(ctx context.Context, habitID, excludeUserID string, limit int) ([]models.Enrollment, error) {
	return s.queryEnrollments(ctx,
		`SELECT `+enrollmentColumns+` FROM enrollments
		WHERE habit_id = $1 AND is_active AND user_id <> $2
		ORDER BY start_date DESC, id LIMIT $3`,
		habitID, excludeUserID, limit)
}

func (s *Store) InsertEnrollment(ctx context.Context, e models.Enrollment) error {
	completedDays, err := encodeCompletedDays(e.CompletedDays)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO enrollments (`+enrollmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		e.ID, e.UserID, e.HabitID, e.StartDate.UTC(), e.IsActive, e.IsCompleted, nullTime(e.CompletedAt),
		completedDays, e.Streak, e.LongestStreak, e.TotalCompletedTasks, nullTime(e.LastCompletedDate),
		e.ProgressPercentage, e.Revision, e.CreatedAt.UTC(), e.UpdatedAt.UTC(),
	)
	if isUniqueViolation(err) {
		return apperrors.ErrDuplicateActive
	}
	return err
}

func (s *Store) SaveEnrollment(ctx context.Context, e models.Enrollment, expectedRevision int64, events []models.CompletionEvent) (models.Enrollment, error) {
	completedDays, err := encodeCompletedDays(e.CompletedDays)
	if err != nil {
		return models.Enrollment{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Enrollment{}, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE enrollments SET
			start_date = $1, is_active = $2, is_completed = $3, completed_at = $4, completed_days = $5,
			streak = $6, longest_streak = $7, total_completed_tasks = $8, last_completed_date = $9,
			progress_percentage = $10, revision = revision + 1, updated_at = $11
		WHERE id = $12 AND user_id = $13 AND revision = $14`,
		e.StartDate.UTC(), e.IsActive, e.IsCompleted, nullTime(e.CompletedAt), completedDays,
		e.Streak, e.LongestStreak, e.TotalCompletedTasks, nullTime(e.LastCompletedDate),
		e.ProgressPercentage, e.UpdatedAt.UTC(),
		e.ID, e.UserID, expectedRevision,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return models.Enrollment{}, apperrors.ErrDuplicateActive
		}
		return models.Enrollment{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return models.Enrollment{}, err
	}
	if affected == 0 {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM enrollments WHERE id = $1 AND user_id = $2`, e.ID, e.UserID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return models.Enrollment{}, fmt.Errorf("enrollment %s: %w", e.ID, apperrors.ErrNoRecord)
		}
		if err != nil {
			return models.Enrollment{}, err
		}
		return models.Enrollment{}, apperrors.ErrRevisionConflict
	}

	for _, ev := range events {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO completion_events (id, enrollment_id, user_id, habit_id, occurred_at, attempts, last_error)
			VALUES ($1, $2, $3, $4, $5, 0, '')
			ON CONFLICT (enrollment_id) DO NOTHING`,
			ev.ID, ev.EnrollmentID, ev.UserID, ev.HabitID, ev.OccurredAt.UTC(),
		)
		if err != nil {
			return models.Enrollment{}, fmt.Errorf("failed to record completion event for enrollment %s: %w", ev.EnrollmentID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return models.Enrollment{}, err
	}

	saved := e.Clone()
	saved.Revision = expectedRevision + 1
	return saved, nil
}
