// Package catalog resolves habit programs and their tasks for the enrollment engine.
package catalog

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/singleflight"

	apperrors "github.com/julianstephens/habitrun/internal/errors"
	"github.com/julianstephens/habitrun/internal/models"
	"github.com/julianstephens/habitrun/internal/progress"
)

// Source is the read side of the catalog store.
type Source interface {
	GetHabit(ctx context.Context, id string) (models.Habit, error)
	TasksFor(ctx context.Context, habitID string) ([]models.CatalogTask, error)
}

// Client collapses concurrent identical lookups into a single store read. The
// shared read runs detached from the first caller's cancellation so one caller
// giving up does not fail the others waiting on the same key.
type Client struct {
	src   Source
	group singleflight.Group
}

func NewClient(src Source) *Client {
	return &Client{src: src}
}

// TasksFor returns the habit's tasks. The slice is owned by the caller.
func (c *Client) TasksFor(ctx context.Context, habitID string) ([]models.CatalogTask, error) {
	v, err, _ := c.group.Do("tasks:"+habitID, func() (any, error) {
		return c.src.TasksFor(context.WithoutCancel(ctx), habitID)
	})
	if err != nil {
		return nil, fmt.Errorf("catalog tasks for %s: %w", habitID, err)
	}
	shared := v.([]models.CatalogTask)
	tasks := make([]models.CatalogTask, len(shared))
	for i, t := range shared {
		tasks[i] = t
		tasks[i].Days = append([]int(nil), t.Days...)
	}
	return tasks, nil
}

// GetHabit returns the habit, or a NotFound error when it is not in the catalog.
func (c *Client) GetHabit(ctx context.Context, habitID string) (models.Habit, error) {
	v, err, _ := c.group.Do("habit:"+habitID, func() (any, error) {
		return c.src.GetHabit(context.WithoutCancel(ctx), habitID)
	})
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNoRecord) {
			return models.Habit{}, apperrors.NotFound("catalog.habit", "habit %s not found", habitID)
		}
		return models.Habit{}, fmt.Errorf("catalog habit %s: %w", habitID, err)
	}
	return v.(models.Habit), nil
}

// TaskIDs returns the ids of the habit's active tasks, the set progress and
// completion are measured against.
func (c *Client) TaskIDs(ctx context.Context, habitID string) (progress.TaskSet, error) {
	tasks, err := c.TasksFor(ctx, habitID)
	if err != nil {
		return nil, err
	}
	return progress.TaskSet(distinctIDs(FilterActive(tasks))), nil
}

// HasTask reports whether taskID belongs to the habit.
func (c *Client) HasTask(ctx context.Context, habitID, taskID string) (bool, error) {
	tasks, err := c.TasksFor(ctx, habitID)
	if err != nil {
		return false, err
	}
	_, ok := distinctIDs(FilterActive(tasks))[taskID]
	return ok, nil
}

// TasksForDay returns the tasks scheduled on a logical day, in display order.
func (c *Client) TasksForDay(ctx context.Context, habitID string, day int) ([]models.CatalogTask, error) {
	tasks, err := c.TasksFor(ctx, habitID)
	if err != nil {
		return nil, err
	}
	return FilterDay(tasks, day), nil
}

// FilterDay keeps the active tasks scheduled on day, sorted by sort order then id.
func FilterDay(tasks []models.CatalogTask, day int) []models.CatalogTask {
	out := []models.CatalogTask{}
	for _, t := range tasks {
		if t.Active && t.OnDay(day) {
			out = append(out, t)
		}
	}
	sortTasks(out)
	return out
}

// FilterActive keeps the active tasks, sorted by sort order then id.
func FilterActive(tasks []models.CatalogTask) []models.CatalogTask {
	out := []models.CatalogTask{}
	for _, t := range tasks {
		if t.Active {
			out = append(out, t)
		}
	}
	sortTasks(out)
	return out
}

func sortTasks(tasks []models.CatalogTask) {
	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].SortOrder != tasks[j].SortOrder {
			return tasks[i].SortOrder < tasks[j].SortOrder
		}
		return tasks[i].ID < tasks[j].ID
	})
}

func distinctIDs(tasks []models.CatalogTask) map[string]struct{} {
	ids := make(map[string]struct{}, len(tasks))
	for _, t := range tasks {
		if t.ID != "" {
			ids[t.ID] = struct{}{}
		}
	}
	return ids
}
