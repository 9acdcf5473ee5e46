package stores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheRedisUnavailable wraps Redis transport failures in cache operations.
var ErrCacheRedisUnavailable = errors.New("result cache redis unavailable")

// ErrCacheCorrupt is returned when a cached payload cannot be decoded.
var ErrCacheCorrupt = errors.New("result cache payload corrupt")

// CachedPair is the canonical shared-result payload: the token pair the
// winning episode produced, readable by every follower. One JSON encoding
// from day one; no legacy plain-string formats.
type CachedPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// ResultCacheStore holds the most recently produced token pair per user.
// Its TTL must outlive the worst-case follower wait; Config.Validate
// enforces that.
type ResultCacheStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewResultCacheStore creates a result cache store. prefix defaults to "rtc".
func NewResultCacheStore(redisClient redis.UniversalClient, prefix string) *ResultCacheStore {
	if prefix == "" {
		prefix = "rtc"
	}
	return &ResultCacheStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *ResultCacheStore) key(userID string) string {
	return s.prefix + ":" + userID
}

// Publish stores the winner's pair for followers to pick up.
func (s *ResultCacheStore) Publish(ctx context.Context, userID string, pair CachedPair, ttl time.Duration) error {
	data, err := json.Marshal(pair)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(userID), data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheRedisUnavailable, err)
	}

	return nil
}

// Lookup returns the cached pair, or found=false when none is published.
func (s *ResultCacheStore) Lookup(ctx context.Context, userID string) (pair CachedPair, found bool, err error) {
	data, err := s.redis.Get(ctx, s.key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return CachedPair{}, false, nil
		}
		return CachedPair{}, false, fmt.Errorf("%w: %v", ErrCacheRedisUnavailable, err)
	}

	if err := json.Unmarshal(data, &pair); err != nil {
		return CachedPair{}, false, fmt.Errorf("%w: %v", ErrCacheCorrupt, err)
	}

	return pair, true, nil
}
