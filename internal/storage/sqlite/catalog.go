package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/julianstephens/habitrun/internal/constants"
	apperrors "github.com/julianstephens/habitrun/internal/errors"
	"github.com/julianstephens/habitrun/internal/models"
)

// ImportHabitDefinition upserts the habit and its tasks. Stored tasks missing
// from the definition are deactivated rather than deleted.
func (s *Store) ImportHabitDefinition(ctx context.Context, def models.HabitDefinition) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	h := def.Habit
	_, err = tx.ExecContext(ctx, `
		INSERT INTO habits (id, title, category, difficulty, duration_days, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			category = excluded.category,
			difficulty = excluded.difficulty,
			duration_days = excluded.duration_days`,
		h.ID, h.Title, h.Category, string(h.Difficulty), h.DurationDays, formatTime(h.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert habit %s: %w", h.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE catalog_tasks SET active = 0 WHERE habit_id = ?`, h.ID); err != nil {
		return fmt.Errorf("failed to deactivate tasks for habit %s: %w", h.ID, err)
	}

	for _, t := range def.Tasks {
		days, err := json.Marshal(t.Days)
		if err != nil {
			return fmt.Errorf("failed to encode days for task %s: %w", t.ID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO catalog_tasks (habit_id, id, title, days, week, sort_order, active)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(habit_id, id) DO UPDATE SET
				title = excluded.title,
				days = excluded.days,
				week = excluded.week,
				sort_order = excluded.sort_order,
				active = excluded.active`,
			h.ID, t.ID, t.Title, string(days), t.Week, t.SortOrder, t.Active,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert task %s: %w", t.ID, err)
		}
	}

	return tx.Commit()
}

func scanHabit(row scanner) (models.Habit, error) {
	var h models.Habit
	var difficulty, createdAt string
	if err := row.Scan(&h.ID, &h.Title, &h.Category, &difficulty, &h.DurationDays, &createdAt); err != nil {
		return models.Habit{}, err
	}
	h.Difficulty = constants.Difficulty(difficulty)

	var err error
	if h.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return models.Habit{}, err
	}
	return h, nil
}

func (s *Store) GetHabit(ctx context.Context, id string) (models.Habit, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, category, difficulty, duration_days, created_at
		FROM habits WHERE id = ?`, id)
	h, err := scanHabit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Habit{}, fmt.Errorf("habit %s: %w", id, apperrors.ErrNoRecord)
	}
	return h, err
}

func (s *Store) ListHabits(ctx context.Context) ([]models.Habit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, category, difficulty, duration_days, created_at
		FROM habits ORDER BY title, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	habits := []models.Habit{}
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			return nil, err
		}
		habits = append(habits, h)
	}
	return habits, rows.Err()
}

// TasksFor returns the habit's active tasks ordered by week and sort order.
func (s *Store) TasksFor(ctx context.Context, habitID string) ([]models.CatalogTask, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT habit_id, id, title, days, week, sort_order, active
		FROM catalog_tasks WHERE habit_id = ? AND active = 1
		ORDER BY week, sort_order, id`, habitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []models.CatalogTask{}
	for rows.Next() {
		var t models.CatalogTask
		var days string
		if err := rows.Scan(&t.HabitID, &t.ID, &t.Title, &days, &t.Week, &t.SortOrder, &t.Active); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(days), &t.Days); err != nil {
			return nil, fmt.Errorf("failed to decode days for task %s: %w", t.ID, err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}
