package postgres

import (
	"context"
	"time"

	"github.com/julianstephens/habitrun/internal/models"
)

func (s *Store) JoinRoster(ctx context.Context, entry models.RosterEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO roster_entries (habit_id, user_id, progress, joined_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (habit_id, user_id) DO UPDATE SET
			progress = EXCLUDED.progress,
			updated_at = EXCLUDED.updated_at`,
		entry.HabitID, entry.UserID, entry.Progress, entry.JoinedAt.UTC(), entry.UpdatedAt.UTC(),
	)
	return err
}

func (s *Store) LeaveRoster(ctx context.Context, habitID, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM roster_entries WHERE habit_id = $1 AND user_id = $2`, habitID, userID)
	return err
}

func (s *Store) SetRosterProgress(ctx context.Context, habitID, userID string, progress int, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE roster_entries SET progress = $1, updated_at = $2
		WHERE habit_id = $3 AND user_id = $4`,
		progress, at.UTC(), habitID, userID)
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
		FROM roster_entries WHERE habit_id = $1
		ORDER BY progress DESC, joined_at, user_id`, habitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []models.RosterEntry{}
	for rows.Next() {
		var e models.RosterEntry
		if err := rows.Scan(&e.HabitID, &e.UserID, &e.Progress, &e.JoinedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
