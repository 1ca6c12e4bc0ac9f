// Package slotlock holds short-lived Redis locks on a slot while a booking is
// validated and written, so replicas do not race on the same slot. The database
// exclusion constraint remains the final arbiter.
package slotlock

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisLocker struct {
	rdb    redis.UniversalClient
	prefix string
}

func NewRedisLocker(rdb redis.UniversalClient, prefix string) *RedisLocker {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "slot"
	}
	return &RedisLocker{rdb: rdb, prefix: prefix}
}

// Acquire returns ok=false when another holder owns key. release only deletes
// the lock if it is still ours.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error) {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	fullKey := l.prefix + ":" + key
	token := uuid.NewString()

	ok, err = l.rdb.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil || !ok {
		return func() {}, ok, err
	}
	return func() {
		// Release on a fresh context so a canceled request still frees the slot.
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(rctx, l.rdb, []string{fullKey}, token).Err()
	}, true, nil
}

// Key identifies a slot for locking.
func Key(professionalID, teamMemberID, date, start string) string {
	if teamMemberID == "" {
		teamMemberID = "-"
	}
	return professionalID + ":" + teamMemberID + ":" + date + ":" + start
}

// Noop always grants the lock. Used when Redis is not configured.
type Noop struct{}

func (Noop) Acquire(context.Context, string, time.Duration) (func(), bool, error) {
	return func() {}, true, nil
}
