package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps every transport-level Redis failure surfaced by
// the store. Callers map it to their store-unavailable error kind.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrRecordNotFound is returned when the requested record does not exist.
var ErrRecordNotFound = errors.New("refresh record not found")

// ErrRecordUnusable is returned when a record exists but is revoked, past
// its absolute lifetime, or rotated and past its grace window.
var ErrRecordUnusable = errors.New("refresh record unusable")

// ErrRecordCorrupt is returned when a stored record blob cannot be decoded.
var ErrRecordCorrupt = errors.New("refresh record corrupt")

const casMaxRetries = 4

const deleteRecordScript = `
local existed = redis.call("EXISTS", KEYS[1])
redis.call("SREM", KEYS[2], ARGV[1])
if existed == 1 then
  redis.call("DEL", KEYS[1])
end
return existed
`

var deleteRecordLua = redis.NewScript(deleteRecordScript)

// Store is the Redis-backed credential store for refresh-token records and
// the per-user token index.
//
//	Key layout: <prefix>:<token> record, <prefix>u:<userID> index,
//	<prefix>a:<token>:<kind> anomaly throttle.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a record [Store] backed by the given Redis client.
// prefix sets the Redis key namespace; it defaults to "rt".
func NewStore(redisClient redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "rt"
	}
	return &Store{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *Store) key(token string) string {
	return s.prefix + ":" + token
}

func (s *Store) userKey(userID string) string {
	return s.prefix + "u:" + userID
}

func (s *Store) anomalyKey(token, kind string) string {
	return s.prefix + "a:" + token + ":" + kind
}

// Save persists a [Record] with the given TTL and adds it to the owning
// user's index. The index expiry is pushed out alongside every member so its
// lifetime tracks the longest-lived token.
//
//	Performance: 3 Redis commands in one transaction.
func (s *Store) Save(ctx context.Context, rec *Record, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	recordKey := s.key(rec.Token)
	userKey := s.userKey(rec.UserID)

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, recordKey, data, ttl)
		pipe.SAdd(ctx, userKey, rec.Token)
		pipe.Expire(ctx, userKey, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// Get retrieves a record by token. Missing records return an error matching
// both [redis.Nil] and [ErrRecordNotFound]; no Redis state is mutated.
//
//	Performance: 1 Redis GET.
func (s *Store) Get(ctx context.Context, token string) (*Record, error) {
	data, err := s.redis.Get(ctx, s.key(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errors.Join(redis.Nil, ErrRecordNotFound)
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	rec, err := decodeRecord(data)
	if err != nil {
		return nil, err
	}
	rec.Token = token

	return rec, nil
}

// MarkRotated atomically transitions a record into the rotated state using an
// optimistic WATCH transaction. On success the record carries
// rotated/rotatedAt/graceExpiresAt/replacedBy and its TTL is extended to at
// least the grace window so the grace check stays queryable.
//
// If the record is already rotated but still within grace, MarkRotated is
// idempotent: it returns the stored record (whose ReplacedBy names the
// existing successor) with created=false and writes nothing.
//
//	Security: CAS prevents double rotation under concurrent retries.
func (s *Store) MarkRotated(
	ctx context.Context,
	oldToken, successor string,
	graceWindow time.Duration,
	now time.Time,
) (rec *Record, created bool, err error) {
	key := s.key(oldToken)

	for i := 0; i < casMaxRetries; i++ {
		var (
			result  *Record
			rotated bool
		)

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			current, err := decodeRecord(data)
			if err != nil {
				return err
			}
			current.Token = oldToken

			if !current.UsableAt(now) {
				return ErrRecordUnusable
			}

			if current.Rotated {
				result = current
				rotated = false
				return nil
			}

			remaining, err := tx.PTTL(ctx, key).Result()
			if err != nil {
				return err
			}
			if remaining < graceWindow {
				remaining = graceWindow
			}

			current.Rotated = true
			current.RotatedAt = now.UnixMilli()
			current.GraceExpiresAt = now.Add(graceWindow).UnixMilli()
			current.ReplacedBy = successor

			updated, err := json.Marshal(current)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, remaining)
				return nil
			})
			if err != nil {
				return err
			}

			result = current
			rotated = true
			return nil
		}, key)

		switch {
		case err == nil:
			return result, rotated, nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, redis.Nil):
			return nil, false, errors.Join(redis.Nil, ErrRecordNotFound)
		case errors.Is(err, ErrRecordUnusable), errors.Is(err, ErrRecordCorrupt):
			return nil, false, err
		default:
			return nil, false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return nil, false, fmt.Errorf("%w: rotate contention not resolved", ErrRedisUnavailable)
}

// Delete removes a record and its index membership. No-op if absent.
//
//	Performance: 1 GET + 1 Lua EVALSHA.
func (s *Store) Delete(ctx context.Context, token string) error {
	data, err := s.redis.Get(ctx, s.key(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	rec, err := decodeRecord(data)
	if err != nil {
		return err
	}

	return s.deleteRecordAndIndex(ctx, rec.UserID, token)
}

// DeleteAllForUser removes every record tracked in the user's index, then
// the index itself.
//
// ATOMICITY NOTE: the member read (SMembers) and the delete run as two
// steps. A record issued between them is not captured by this call; it will
// expire on its own TTL or be caught by the next DeleteAllForUser.
func (s *Store) DeleteAllForUser(ctx context.Context, userID string) error {
	userKey := s.userKey(userID)

	tokens, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	recordKeys := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		recordKeys = append(recordKeys, s.key(tok))
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(recordKeys) > 0 {
			pipe.Del(ctx, recordKeys...)
		}
		pipe.Del(ctx, userKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// UserTokens returns the token strings tracked for a user.
func (s *Store) UserTokens(ctx context.Context, userID string) ([]string, error) {
	tokens, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return tokens, nil
}

// ShouldEmitDeviceAnomaly returns true only for the first anomaly in the
// window per token/kind, throttling advisory mismatch warnings.
func (s *Store) ShouldEmitDeviceAnomaly(ctx context.Context, token, kind string, window time.Duration) (bool, error) {
	if window <= 0 {
		window = time.Minute
	}
	key := s.anomalyKey(token, kind)

	count, err := s.redis.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count == 1 {
		if err := s.redis.Expire(ctx, key, window).Err(); err != nil {
			return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		return true, nil
	}

	return false, nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

func (s *Store) deleteRecordAndIndex(ctx context.Context, userID, token string) error {
	_, err := deleteRecordLua.Run(
		ctx,
		s.redis,
		[]string{s.key(token), s.userKey(userID)},
		token,
	).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

func decodeRecord(data []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecordCorrupt, err)
	}
	if rec.UserID == "" {
		return nil, fmt.Errorf("%w: missing user id", ErrRecordCorrupt)
	}
	return &rec, nil
}
