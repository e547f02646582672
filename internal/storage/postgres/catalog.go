package postgres

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

func (s *Store) ImportHabitDefinition(ctx context.Context, def models.HabitDefinition) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	h := def.Habit
	_, err = tx.ExecContext(ctx, `
		INSERT INTO habits (id, title, category, difficulty, duration_days, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			category = EXCLUDED.category,
			difficulty = EXCLUDED.difficulty,
			duration_days = EXCLUDED.duration_days`,
		h.ID, h.Title, h.Category, string(h.Difficulty), h.DurationDays, h.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert habit %s: %w", h.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE catalog_tasks SET active = FALSE WHERE habit_id = $1`, h.ID); err != nil {
		return fmt.Errorf("failed to deactivate tasks for habit %s: %w", h.ID, err)
	}

	for _, t := range def.Tasks {
		days, err := json.Marshal(t.Days)
		if err != nil {
			return fmt.Errorf("failed to encode days for task %s: %w", t.ID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO catalog_tasks (habit_id, id, title, days, week, sort_order, active)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (habit_id, id) DO UPDATE SET
				title = EXCLUDED.title,
				days = EXCLUDED.days,
				week = EXCLUDED.week,
				sort_order = EXCLUDED.sort_order,
				active = EXCLUDED.active`,
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
	var difficulty string
	if err := row.Scan(&h.ID, &h.Title, &h.Category, &difficulty, &h.DurationDays, &h.CreatedAt); err != nil {
		return models.Habit{}, err
	}
	h.Difficulty = constants.Difficulty(difficulty)
	return h, nil
}

func (s *Store) GetHabit(ctx context.Context, id string) (models.Habit, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, category, difficulty, duration_days, created_at
		FROM habits WHERE id = $1`, id)
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

func (s *Store) TasksFor(ctx context.Context, habitID string) ([]models.CatalogTask, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT habit_id, id, title, days, week, sort_order, active
		FROM catalog_tasks WHERE habit_id = $1 AND active
		ORDER BY week, sort_order, id`, habitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []models.CatalogTask{}
	for rows.Next() {
		var t models.CatalogTask
		var days []byte
		if err := rows.Scan(&t.HabitID, &t.ID, &t.Title, &days, &t.Week, &t.SortOrder, &t.Active); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(days, &t.Days); err != nil {
			return nil, fmt.Errorf("failed to decode days for task %s: %w", t.ID, err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}
