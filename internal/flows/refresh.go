package flows

import (
	"context"
	"errors"
	"time"

	"github.com/arkadian7/goRefresh/internal/stores"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureDecode
	RefreshFailureCacheRead
	RefreshFailureLockAcquire
	RefreshFailureRotateInvalid
	RefreshFailureRotate
	RefreshFailureOwnerMismatch
	RefreshFailureAccountLookup
	RefreshFailureAccountStatus
	RefreshFailureIssueAccess
	RefreshFailureTimeout
	RefreshFailureCanceled
)

// RefreshResult carries either the issued token pair or failure metadata.
type RefreshResult struct {
	Failure      RefreshFailureKind
	Err          error
	UserID       string
	AccessToken  string
	RefreshToken string

	// FromCache marks a result observed through the shared cache rather
	// than produced by this episode.
	FromCache bool
	// Rotated marks the episode that actually performed the rotation.
	Rotated bool
	// Waited marks a follower episode that entered the poll loop.
	Waited bool
}

// RefreshLock is the per-user mutual-exclusion primitive.
type RefreshLock interface {
	Acquire(ctx context.Context, userID string, ttl time.Duration) (owner string, acquired bool, err error)
	Release(ctx context.Context, userID, owner string) error
}

// ResultCache is the shared fan-out channel between winner and followers.
type ResultCache interface {
	Lookup(ctx context.Context, userID string) (stores.CachedPair, bool, error)
	Publish(ctx context.Context, userID string, pair stores.CachedPair, ttl time.Duration) error
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	ValidateTokenShape func(string) error
	Rotate             func(ctx context.Context, oldToken string) (userID, newToken string, err error)
	CheckAccount       func(ctx context.Context, userID string) error
	MintAccess         func(userID string) (string, error)
	Lock               RefreshLock
	Cache              ResultCache

	LockTTL      time.Duration
	CacheTTL     time.Duration
	WaitInterval time.Duration
	WaitAttempts int

	// Sentinels used to classify collaborator errors.
	RotateInvalid    error
	StoreUnavailable error

	Warn func(string, ...any)
}

// RunRefresh executes one refresh episode: fast-path cache read, lock
// attempt, then either the winner's rotate-and-publish critical section or
// the follower's bounded poll. The lock is released on every winner exit
// path; followers never touch the lock.
func RunRefresh(ctx context.Context, userID, oldToken string, deps RefreshDeps) RefreshResult {
	if deps.ValidateTokenShape != nil {
		if err := deps.ValidateTokenShape(oldToken); err != nil {
			return RefreshResult{
				Failure: RefreshFailureDecode,
				Err:     err,
				UserID:  userID,
			}
		}
	}

	// Fast path: a winner may have already published and released.
	pair, found, err := deps.Cache.Lookup(ctx, userID)
	if err != nil {
		return RefreshResult{
			Failure: RefreshFailureCacheRead,
			Err:     err,
			UserID:  userID,
		}
	}
	if found {
		return cachedResult(userID, pair)
	}

	owner, acquired, err := deps.Lock.Acquire(ctx, userID, deps.LockTTL)
	if err != nil {
		return RefreshResult{
			Failure: RefreshFailureLockAcquire,
			Err:     err,
			UserID:  userID,
		}
	}

	if acquired {
		return runWinner(ctx, userID, oldToken, owner, deps)
	}

	return runFollower(ctx, userID, deps)
}

func runWinner(ctx context.Context, userID, oldToken, owner string, deps RefreshDeps) RefreshResult {
	defer func() {
		if err := deps.Lock.Release(context.WithoutCancel(ctx), userID, owner); err != nil && deps.Warn != nil {
			deps.Warn("goRefresh: refresh lock release failed")
		}
	}()

	// Double check: the cache may have been populated between the fast
	// path read and the lock acquisition.
	pair, found, err := deps.Cache.Lookup(ctx, userID)
	if err != nil {
		return RefreshResult{
			Failure: RefreshFailureCacheRead,
			Err:     err,
			UserID:  userID,
		}
	}
	if found {
		return cachedResult(userID, pair)
	}

	rotatedUser, newToken, err := deps.Rotate(ctx, oldToken)
	if err != nil {
		kind := RefreshFailureRotate
		if deps.RotateInvalid != nil && errors.Is(err, deps.RotateInvalid) {
			kind = RefreshFailureRotateInvalid
		}
		return RefreshResult{
			Failure: kind,
			Err:     err,
			UserID:  userID,
		}
	}
	if rotatedUser != userID {
		return RefreshResult{
			Failure: RefreshFailureOwnerMismatch,
			Err:     errors.New("refresh token does not belong to user"),
			UserID:  userID,
		}
	}

	// The rotation already happened and is not undone if the account check
	// fails; the caller must re-authenticate.
	if err := deps.CheckAccount(ctx, userID); err != nil {
		kind := RefreshFailureAccountStatus
		if deps.StoreUnavailable != nil && errors.Is(err, deps.StoreUnavailable) {
			kind = RefreshFailureAccountLookup
		}
		return RefreshResult{
			Failure: kind,
			Err:     err,
			UserID:  userID,
		}
	}

	access, err := deps.MintAccess(userID)
	if err != nil {
		return RefreshResult{
			Failure: RefreshFailureIssueAccess,
			Err:     err,
			UserID:  userID,
		}
	}

	result := stores.CachedPair{
		AccessToken:  access,
		RefreshToken: newToken,
	}
	if err := deps.Cache.Publish(ctx, userID, result, deps.CacheTTL); err != nil && deps.Warn != nil {
		// Followers fall back to their timeout; the winner's pair is valid.
		deps.Warn("goRefresh: shared result publish failed")
	}

	return RefreshResult{
		Failure:      RefreshFailureNone,
		UserID:       userID,
		AccessToken:  access,
		RefreshToken: newToken,
		Rotated:      true,
	}
}

func runFollower(ctx context.Context, userID string, deps RefreshDeps) RefreshResult {
	timer := time.NewTimer(deps.WaitInterval)
	defer timer.Stop()

	for i := 0; i < deps.WaitAttempts; i++ {
		select {
		case <-ctx.Done():
			return RefreshResult{
				Failure: RefreshFailureCanceled,
				Err:     ctx.Err(),
				UserID:  userID,
				Waited:  true,
			}
		case <-timer.C:
		}

		pair, found, err := deps.Cache.Lookup(ctx, userID)
		if err != nil {
			return RefreshResult{
				Failure: RefreshFailureCacheRead,
				Err:     err,
				UserID:  userID,
				Waited:  true,
			}
		}
		if found {
			result := cachedResult(userID, pair)
			result.Waited = true
			return result
		}

		timer.Reset(deps.WaitInterval)
	}

	return RefreshResult{
		Failure: RefreshFailureTimeout,
		Err:     errors.New("no shared refresh result observed"),
		UserID:  userID,
		Waited:  true,
	}
}

func cachedResult(userID string, pair stores.CachedPair) RefreshResult {
	return RefreshResult{
		Failure:      RefreshFailureNone,
		UserID:       userID,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		FromCache:    true,
	}
}
