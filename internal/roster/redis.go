package roster

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/julianstephens/habitrun/internal/constants"
	"github.com/julianstephens/habitrun/internal/models"
	"github.com/julianstephens/habitrun/internal/validation"
)

// Each habit is one hash, habitrun:roster:<habitID>, mapping user id to a
// JSON-encoded RosterEntry. The scripts keep join and update atomic.
var (
	joinScript = goredis.NewScript(`
local raw = redis.call('HGET', KEYS[1], ARGV[1])
local entry
if raw then
  entry = cjson.decode(raw)
  entry.progress = tonumber(ARGV[2])
  entry.updated_at = ARGV[3]
else
  entry = {habit_id = ARGV[4], user_id = ARGV[1], progress = tonumber(ARGV[2]), joined_at = ARGV[3], updated_at = ARGV[3]}
end
redis.call('HSET', KEYS[1], ARGV[1], cjson.encode(entry))
return 1
`)

	setProgressScript = goredis.NewScript(`
local raw = redis.call('HGET', KEYS[1], ARGV[1])
if not raw then
  return 0
end
local entry = cjson.decode(raw)
entry.progress = tonumber(ARGV[2])
entry.updated_at = ARGV[3]
redis.call('HSET', KEYS[1], ARGV[1], cjson.encode(entry))
return 1
`)
)

type Redis struct {
	rdb *goredis.Client
	now func() time.Time
}

// NewRedis connects to addr and pings it before returning.
func NewRedis(ctx context.Context, addr string) (*Redis, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &Redis{rdb: rdb, now: time.Now}, nil
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}

func key(habitID string) string {
	return constants.RosterKeyPrefix + habitID
}

func stamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func (r *Redis) Join(ctx context.Context, habitID, userID string, progress int) error {
	const op = "roster.join"
	if err := validation.ValidateIDs(op, userID, habitID); err != nil {
		return err
	}
	if err := validation.ValidateProgress(op, progress); err != nil {
		return err
	}
	return joinScript.Run(ctx, r.rdb, []string{key(habitID)}, userID, progress, stamp(r.now()), habitID).Err()
}

func (r *Redis) Leave(ctx context.Context, habitID, userID string) error {
	return r.rdb.HDel(ctx, key(habitID), userID).Err()
}

func (r *Redis) SetProgress(ctx context.Context, habitID, userID string, progress int) (bool, error) {
	if err := validation.ValidateProgress("roster.set_progress", progress); err != nil {
		return false, err
	}
	n, err := setProgressScript.Run(ctx, r.rdb, []string{key(habitID)}, userID, progress, stamp(r.now())).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *Redis) List(ctx context.Context, habitID string) ([]models.RosterEntry, error) {
	raw, err := r.rdb.HGetAll(ctx, key(habitID)).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]models.RosterEntry, 0, len(raw))
	for userID, value := range raw {
		var entry models.RosterEntry
		if err := json.Unmarshal([]byte(value), &entry); err != nil {
			return nil, fmt.Errorf("corrupt roster entry for %s in %s: %w", userID, habitID, err)
		}
		entries = append(entries, entry)
	}
	sortEntries(entries)
	return entries, nil
}
