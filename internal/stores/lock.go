package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockRedisUnavailable wraps Redis transport failures in lock operations.
var ErrLockRedisUnavailable = errors.New("refresh lock redis unavailable")

const releaseLockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

var releaseLockLua = redis.NewScript(releaseLockScript)

// RefreshLockStore implements the per-user exclusive refresh lock on top of
// atomic SETNX with TTL. The stored value is a per-episode owner token so a
// slow holder cannot release a lock that already expired and was re-acquired
// by someone else.
type RefreshLockStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRefreshLockStore creates a lock store. prefix defaults to "rtl".
func NewRefreshLockStore(redisClient redis.UniversalClient, prefix string) *RefreshLockStore {
	if prefix == "" {
		prefix = "rtl"
	}
	return &RefreshLockStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *RefreshLockStore) key(userID string) string {
	return s.prefix + ":" + userID
}

// Acquire attempts to take the user's refresh lock for at most ttl.
// It returns the owner token on success and acquired=false when another
// episode already holds the lock.
func (s *RefreshLockStore) Acquire(ctx context.Context, userID string, ttl time.Duration) (owner string, acquired bool, err error) {
	owner = uuid.NewString()

	ok, err := s.redis.SetNX(ctx, s.key(userID), owner, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrLockRedisUnavailable, err)
	}
	if !ok {
		return "", false, nil
	}

	return owner, true, nil
}

// Release deletes the lock iff it is still held by owner. Releasing a lock
// that expired or changed hands is a no-op.
func (s *RefreshLockStore) Release(ctx context.Context, userID, owner string) error {
	if err := releaseLockLua.Run(ctx, s.redis, []string{s.key(userID)}, owner).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrLockRedisUnavailable, err)
	}
	return nil
}

// Held reports whether any episode currently holds the user's lock.
// Used by tests and operational tooling, not by the refresh path itself.
func (s *RefreshLockStore) Held(ctx context.Context, userID string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.key(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrLockRedisUnavailable, err)
	}
	return n == 1, nil
}
