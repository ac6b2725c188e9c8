package dedup

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisPendingValue   = "pending"
	redisCommittedValue = "done"
)

// releaseScript deletes a key only while it still holds a pending reservation.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStore shares seen event ids across service replicas.
type RedisStore struct {
	client     redis.UniversalClient
	prefix     string
	ttl        time.Duration
	pendingTTL time.Duration
}

// NewRedisStore creates a RedisStore. Keys are "<prefix>:<eventId>".
func NewRedisStore(client redis.UniversalClient, prefix string, ttl, pendingTTL time.Duration) *RedisStore {
	trimmedPrefix := strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if trimmedPrefix == "" {
		trimmedPrefix = "ats:webhook:event"
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if pendingTTL <= 0 || pendingTTL > ttl {
		pendingTTL = ttl
	}
	return &RedisStore{client: client, prefix: trimmedPrefix, ttl: ttl, pendingTTL: pendingTTL}
}

func (s *RedisStore) key(eventID string) string {
	return fmt.Sprintf("%s:%s", s.prefix, normalizeEventID(eventID))
}

func (s *RedisStore) Reserve(ctx context.Context, eventID string) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.key(eventID), redisPendingValue, s.pendingTTL).Result()
	if err != nil {
		return false, fmt.Errorf("reserve event %s: %w", eventID, err)
	}
	return ok, nil
}

func (s *RedisStore) Commit(ctx context.Context, eventID string) error {
	if err := s.client.Set(ctx, s.key(eventID), redisCommittedValue, s.ttl).Err(); err != nil {
		return fmt.Errorf("commit event %s: %w", eventID, err)
	}
	return nil
}

func (s *RedisStore) Release(ctx context.Context, eventID string) error {
	if err := releaseScript.Run(ctx, s.client, []string{s.key(eventID)}, redisPendingValue).Err(); err != nil {
		return fmt.Errorf("release event %s: %w", eventID, err)
	}
	return nil
}
