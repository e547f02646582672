package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/julianstephens/habitrun/internal/models"
)

// GrantReward inserts the grant keyed by eventID and bumps the balance only when
// the insert took effect, so a replayed event credits nothing.
func (s *Store) GrantReward(ctx context.Context, eventID, userID string, units int, at time.Time) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO reward_grants (event_id, user_id, units, granted_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(event_id) DO NOTHING`,
		eventID, userID, units, formatTime(at),
	)
	if err != nil {
		return false, fmt.Errorf("failed to record reward grant: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 0 {
		return false, nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO reward_balances (user_id, units, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			units = reward_balances.units + excluded.units,
			updated_at = excluded.updated_at`,
		userID, units, formatTime(at),
	)
	if err != nil {
		return false, fmt.Errorf("failed to update reward balance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) RewardBalance(ctx context.Context, userID string) (int, error) {
	var units int
	err := s.db.QueryRowContext(ctx, `SELECT units FROM reward_balances WHERE user_id = ?`, userID).Scan(&units)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return units, err
}

func (s *Store) PendingEvents(ctx context.Context, limit, maxAttempts int) ([]models.CompletionEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, enrollment_id, user_id, habit_id, occurred_at, dispatched_at, attempts, last_error
		FROM completion_events
		WHERE dispatched_at IS NULL AND attempts < ?
		ORDER BY occurred_at, id LIMIT ?`, maxAttempts, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []models.CompletionEvent{}
	for rows.Next() {
		var ev models.CompletionEvent
		var occurredAt string
		var dispatchedAt sql.NullString
		if err := rows.Scan(&ev.ID, &ev.EnrollmentID, &ev.UserID, &ev.HabitID, &occurredAt, &dispatchedAt, &ev.Attempts, &ev.LastError); err != nil {
			return nil, err
		}
		if ev.OccurredAt, err = parseTime("occurred_at", occurredAt); err != nil {
			return nil, err
		}
		if ev.DispatchedAt, err = parseNullTime("dispatched_at", dispatchedAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (s *Store) MarkEventDispatched(ctx context.Context, eventID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE completion_events SET dispatched_at = ?, attempts = attempts + 1, last_error = ''
		WHERE id = ?`, formatTime(at), eventID)
	return err
}

func (s *Store) MarkEventFailed(ctx context.Context, eventID, reason string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE completion_events SET attempts = attempts + 1, last_error = ?
		WHERE id = ?`, reason, eventID)
	return err
}
