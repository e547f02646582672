package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

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
	var startDate, completedDays, createdAt, updatedAt string
	var completedAt, lastCompleted sql.NullString

	err := row.Scan(
		&e.ID, &e.UserID, &e.HabitID, &startDate, &e.IsActive, &e.IsCompleted, &completedAt,
		&completedDays, &e.Streak, &e.LongestStreak, &e.TotalCompletedTasks, &lastCompleted,
		&e.ProgressPercentage, &e.Revision, &createdAt, &updatedAt,
	)
	if err != nil {
		return models.Enrollment{}, err
	}

	if e.StartDate, err = parseTime("start_date", startDate); err != nil {
		return models.Enrollment{}, err
	}
	if e.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return models.Enrollment{}, err
	}
	if e.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return models.Enrollment{}, err
	}
	if e.CompletedAt, err = parseNullTime("completed_at", completedAt); err != nil {
		return models.Enrollment{}, err
	}
	if e.LastCompletedDate, err = parseNullTime("last_completed_date", lastCompleted); err != nil {
		return models.Enrollment{}, err
	}

	e.CompletedDays = []models.CompletionRecord{}
	if completedDays != "" {
		if err := json.Unmarshal([]byte(completedDays), &e.CompletedDays); err != nil {
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
		`SELECT `+enrollmentColumns+` FROM enrollments WHERE id = ? AND user_id = ?`,
		enrollmentID, userID)
	e, err := scanEnrollment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Enrollment{}, fmt.Errorf("enrollment %s: %w", enrollmentID, apperrors.ErrNoRecord)
	}
	return e, err
}

func (s *Store) FindActiveEnrollment(ctx context.Context, userID, habitID string) (models.Enrollment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+enrollmentColumns+` FROM enrollments WHERE user_id = ? AND habit_id = ? AND is_active = 1`,
		userID, habitID)
	e, err := scanEnrollment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Enrollment{}, fmt.Errorf("active enrollment for habit %s: %w", habitID, apperrors.ErrNoRecord)
	}
	return e, err
}

func (s *Store) ListEnrollments(ctx context.Context, userID string, filter models.EnrollmentFilter) ([]models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE user_id = ?`
	args := []any{userID}
	if filter.HabitID != "" {
		query += " AND habit_id = ?"
		args = append(args, filter.HabitID)
	}
	if filter.ActiveOnly {
		query += " AND is_active = 1"
	}
	query += " ORDER BY start_date, id"
	return s.queryEnrollments(ctx, query, args...)
}

func (s *Store) ListActiveEnrollmentsForHabit(ctx context.Context, habitID, excludeUserID string, limit int) ([]models.Enrollment, error) {
	return s.queryEnrollments(ctx,
		`SELECT `+enrollmentColumns+` FROM enrollments
		WHERE habit_id = ? AND is_active = 1 AND user_id <> ?
		ORDER BY start_date DESC, id LIMIT ?`,
		habitID, excludeUserID, limit)
}

func (s *Store) InsertEnrollment(ctx context.Context, e models.Enrollment) error {
	completedDays, err := encodeCompletedDays(e.CompletedDays)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO enrollments (`+enrollmentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.HabitID, formatTime(e.StartDate), e.IsActive, e.IsCompleted, formatNullTime(e.CompletedAt),
		completedDays, e.Streak, e.LongestStreak, e.TotalCompletedTasks, formatNullTime(e.LastCompletedDate),
		e.ProgressPercentage, e.Revision, formatTime(e.CreatedAt), formatTime(e.UpdatedAt),
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
			start_date = ?, is_active = ?, is_completed = ?, completed_at = ?, completed_days = ?,
			streak = ?, longest_streak = ?, total_completed_tasks = ?, last_completed_date = ?,
			progress_percentage = ?, revision = revision + 1, updated_at = ?
		WHERE id = ? AND user_id = ? AND revision = ?`,
		formatTime(e.StartDate), e.IsActive, e.IsCompleted, formatNullTime(e.CompletedAt), completedDays,
		e.Streak, e.LongestStreak, e.TotalCompletedTasks, formatNullTime(e.LastCompletedDate),
		e.ProgressPercentage, formatTime(e.UpdatedAt),
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
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM enrollments WHERE id = ? AND user_id = ?`, e.ID, e.UserID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return models.Enrollment{}, fmt.Errorf("enrollment %s: %w", e.ID, apperrors.ErrNoRecord)
		}
		if err != nil {
			return models.Enrollment{}, err
		}
		return models.Enrollment{}, apperrors.ErrRevisionConflict
	}

	for _, ev := range events {
		if err := insertCompletionEvent(ctx, tx, ev); err != nil {
			return models.Enrollment{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return models.Enrollment{}, err
	}

	saved := e.Clone()
	saved.Revision = expectedRevision + 1
	return saved, nil
}

func insertCompletionEvent(ctx context.Context, tx *sql.Tx, ev models.CompletionEvent) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO completion_events (id, enrollment_id, user_id, habit_id, occurred_at, attempts, last_error)
		VALUES (?, ?, ?, ?, ?, 0, '')
		ON CONFLICT(enrollment_id) DO NOTHING`,
		ev.ID, ev.EnrollmentID, ev.UserID, ev.HabitID, formatTime(ev.OccurredAt),
	)
	if err != nil {
		return fmt.Errorf("failed to record completion event for enrollment %s: %w", ev.EnrollmentID, err)
	}
	return nil
}
