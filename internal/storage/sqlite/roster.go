package sqlite

import (
	"context"
	"time"

	"github.com/julianstephens/habitrun/internal/models"
)

// JoinRoster adds the user to the habit's roster; joining twice refreshes progress.
func (s *Store) JoinRoster(ctx context.Context, entry models.RosterEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO roster_entries (habit_id, user_id, progress, joined_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(habit_id, user_id) DO UPDATE SET
			progress = excluded.progress,
			updated_at = excluded.updated_at`,
		entry.HabitID, entry.UserID, entry.Progress, formatTime(entry.JoinedAt), formatTime(entry.UpdatedAt),
	)
	return err
}

func (s *Store) LeaveRoster(ctx context.Context, habitID, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM roster_entries WHERE habit_id = ? AND user_id = ?`, habitID, userID)
	return err
}

func (s *Store) SetRosterProgress(ctx context.Context, habitID, userID string, progress int, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE roster_entries SET progress = ?, updated_at = ?
		WHERE habit_id = ? AND user_id = ?`,
		progress, formatTime(at), habitID, userID)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *Store) Roster(ctx context.Context, habitID string) ([]models.RosterEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT habit_id, user_id, progress, joined_at, updated_at
		FROM roster_entries WHERE habit_id = ?
		ORDER BY progress DESC, joined_at, user_id`, habitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []models.RosterEntry{}
	for rows.Next() {
		var e models.RosterEntry
		var joinedAt, updatedAt string
		if err := rows.Scan(&e.HabitID, &e.UserID, &e.Progress, &joinedAt, &updatedAt); err != nil {
			return nil, err
		}
		if e.JoinedAt, err = parseTime("joined_at", joinedAt); err != nil {
			return nil, err
		}
		if e.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
