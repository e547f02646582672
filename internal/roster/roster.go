// Package roster keeps each habit's engagement roster: who joined it and
// their last synced progress.
package roster

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/julianstephens/habitrun/internal/models"
	"github.com/julianstephens/habitrun/internal/storage"
	"github.com/julianstephens/habitrun/internal/validation"
)

// Roster is implemented by the SQL-backed Store and by Redis.
type Roster interface {
	// Join adds the user, or refreshes their progress if already a member.
	Join(ctx context.Context, habitID, userID string, progress int) error
	Leave(ctx context.Context, habitID, userID string) error
	// SetProgress only updates existing members. ok is false when the user
	// never joined.
	SetProgress(ctx context.Context, habitID, userID string, progress int) (ok bool, err error)
	// List returns members by progress, highest first.
	List(ctx context.Context, habitID string) ([]models.RosterEntry, error)
}

var (
	_ Roster = (*Store)(nil)
	_ Roster = (*Redis)(nil)
)

// Open returns a Redis roster when redisAddr is set, otherwise one backed by store.
func Open(ctx context.Context, store storage.RosterStore, redisAddr string) (Roster, error) {
	if addr := strings.TrimSpace(redisAddr); addr != "" {
		return NewRedis(ctx, addr)
	}
	return NewStore(store), nil
}

// Store is the roster kept in the habitrun database.
type Store struct {
	store storage.RosterStore
	now   func() time.Time
}

func NewStore(store storage.RosterStore) *Store {
	return &Store{store: store, now: time.Now}
}

func (r *Store) Join(ctx context.Context, habitID, userID string, progress int) error {
	const op = "roster.join"
	if err := validation.ValidateIDs(op, userID, habitID); err != nil {
		return err
	}
	if err := validation.ValidateProgress(op, progress); err != nil {
		return err
	}
	now := r.now()
	return r.store.JoinRoster(ctx, models.RosterEntry{
		HabitID:   habitID,
		UserID:    userID,
		Progress:  progress,
		JoinedAt:  now,
		UpdatedAt: now,
	})
}

func (r *Store) Leave(ctx context.Context, habitID, userID string) error {
	return r.store.LeaveRoster(ctx, habitID, userID)
}

func (r *Store) SetProgress(ctx context.Context, habitID, userID string, progress int) (bool, error) {
	if err := validation.ValidateProgress("roster.set_progress", progress); err != nil {
		return false, err
	}
	return r.store.SetRosterProgress(ctx, habitID, userID, progress, r.now())
}

func (r *Store) List(ctx context.Context, habitID string) ([]models.RosterEntry, error) {
	return r.store.Roster(ctx, habitID)
}

func sortEntries(entries []models.RosterEntry) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Progress != b.Progress {
			return a.Progress > b.Progress
		}
		if !a.JoinedAt.Equal(b.JoinedAt) {
			return a.JoinedAt.Before(b.JoinedAt)
		}
		return a.UserID < b.UserID
	})
}
