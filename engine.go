package gorefresh

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/arkadian7/goRefresh/internal"
	"github.com/arkadian7/goRefresh/internal/flows"
	"github.com/arkadian7/goRefresh/internal/stores"
	"github.com/arkadian7/goRefresh/token"
)

/* ==== ENGINE ==== */

// Engine is the façade over refresh-token rotation and concurrent-refresh
// coordination. Construct it through [Builder]; the zero value is not usable.
//
// All methods are safe for concurrent use.
type Engine struct {
	cfg Config

	recordStore *token.Store
	lockStore   *stores.RefreshLockStore
	cacheStore  *stores.ResultCacheStore
	rotator     *Rotator

	issuer   AccessIssuer
	accounts AccountProvider

	audit   *auditDispatcher
	metrics *Metrics
}

// Issue mints an access token and a fresh refresh-token record for the user.
// Used at login; it does not touch the refresh lock or the result cache.
func (e *Engine) Issue(ctx context.Context, userID string, meta DeviceMeta) (TokenPair, error) {
	if !e.ready() {
		return TokenPair{}, ErrEngineNotReady
	}
	if userID == "" {
		return TokenPair{}, fmt.Errorf("%w: empty user id", ErrRefreshInvalid)
	}

	access, err := e.issuer.Mint(userID)
	if err != nil {
		return TokenPair{}, err
	}

	refresh, err := e.rotator.Issue(ctx, userID, e.deviceMeta(ctx, meta))
	if err != nil {
		return TokenPair{}, err
	}

	e.metrics.Inc(MetricIssueSuccess)
	e.emitAudit(ctx, AuditRefreshTokenIssued, userID, refresh, true, "", nil)

	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}

// Refresh exchanges oldToken for a new token pair. Concurrent calls for the
// same user collapse onto a single rotation: one caller wins the per-user
// lock and rotates, the rest observe the winner's pair through the shared
// result cache. Followers that never observe a result fail with
// [ErrRefreshTimeout] without consuming the token.
func (e *Engine) Refresh(ctx context.Context, userID, oldToken string, meta DeviceMeta) (TokenPair, error) {
	if !e.ready() {
		return TokenPair{}, ErrEngineNotReady
	}

	start := time.Now()

	var reused bool
	deps := flows.RefreshDeps{
		ValidateTokenShape: internal.ValidateRefreshToken,
		Rotate: func(ctx context.Context, old string) (string, string, error) {
			uid, newTok, idempotent, err := e.rotator.Rotate(ctx, old, e.deviceMeta(ctx, meta))
			reused = idempotent
			return uid, newTok, err
		},
		CheckAccount: e.checkAccount,
		MintAccess:   e.issuer.Mint,
		Lock:         e.lockStore,
		Cache:        e.cacheStore,

		LockTTL:      e.cfg.Coordinator.LockTTL,
		CacheTTL:     e.cfg.Coordinator.ResultCacheTTL,
		WaitInterval: e.cfg.Coordinator.WaitInterval,
		WaitAttempts: e.cfg.Coordinator.WaitAttempts,

		RotateInvalid:    ErrRefreshInvalid,
		StoreUnavailable: ErrStoreUnavailable,

		Warn: log.Printf,
	}

	result := flows.RunRefresh(ctx, userID, oldToken, deps)
	e.noteRefresh(ctx, oldToken, result, reused, time.Since(start))

	if result.Failure != flows.RefreshFailureNone {
		return TokenPair{}, e.mapRefreshFailure(result)
	}

	return TokenPair{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
	}, nil
}

// Validate checks a refresh token read-only and returns the owning user ID.
// It never rotates, locks, or consumes the token.
func (e *Engine) Validate(ctx context.Context, tok string, meta DeviceMeta) (string, error) {
	if !e.ready() {
		return "", ErrEngineNotReady
	}
	if err := internal.ValidateRefreshToken(tok); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRefreshInvalid, err)
	}
	return e.rotator.Validate(ctx, tok, e.deviceMeta(ctx, meta))
}

// Revoke invalidates one refresh token immediately, grace window included.
func (e *Engine) Revoke(ctx context.Context, tok string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if err := e.rotator.Revoke(ctx, tok); err != nil {
		return err
	}
	e.metrics.Inc(MetricRevoke)
	e.emitAudit(ctx, AuditRefreshTokenRevoked, "", tok, true, "", nil)
	return nil
}

// RevokeAll invalidates every refresh token tracked for the user.
func (e *Engine) RevokeAll(ctx context.Context, userID string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if err := e.rotator.RevokeAll(ctx, userID); err != nil {
		return err
	}
	e.metrics.Inc(MetricRevokeAll)
	e.emitAudit(ctx, AuditRevokedAll, userID, "", true, "", nil)
	return nil
}

// Ping reports store round-trip latency. Useful for readiness probes.
func (e *Engine) Ping(ctx context.Context) (time.Duration, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	return e.recordStore.Ping(ctx)
}

// Close flushes and stops the audit dispatcher. The engine must not be used
// after Close returns.
func (e *Engine) Close() {
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the engine's counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	return e.metrics.Snapshot()
}

// Metrics exposes the live counter set, for exporter wiring.
func (e *Engine) Metrics() *Metrics {
	return e.metrics
}

/* ==== INTERNAL ==== */

func (e *Engine) ready() bool {
	return e != nil && e.recordStore != nil && e.rotator != nil && e.issuer != nil
}

// deviceMeta fills unset meta fields from the request context helpers.
func (e *Engine) deviceMeta(ctx context.Context, meta DeviceMeta) DeviceMeta {
	if meta.IP == "" {
		meta.IP = clientIPFromContext(ctx)
	}
	if meta.UserAgent == "" {
		meta.UserAgent = userAgentFromContext(ctx)
	}
	return meta
}

func (e *Engine) checkAccount(ctx context.Context, userID string) error {
	acct, found, err := e.accounts.GetAccount(ctx, userID)
	if err != nil {
		return fmt.Errorf("%w: account lookup: %v", ErrStoreUnavailable, err)
	}
	if !found {
		return fmt.Errorf("%w: account not found", ErrAccountDisabled)
	}
	if acct.Status != AccountActive {
		return fmt.Errorf("%w: account status %s", ErrAccountDisabled, acct.Status)
	}
	return nil
}

func (e *Engine) noteRefresh(ctx context.Context, oldToken string, result flows.RefreshResult, reused bool, elapsed time.Duration) {
	e.metrics.Observe(MetricRefreshLatency, elapsed)

	if result.Waited {
		e.metrics.Inc(MetricLockContended)
	}

	switch result.Failure {
	case flows.RefreshFailureNone:
		e.metrics.Inc(MetricRefreshSuccess)
		if result.Rotated {
			e.metrics.Inc(MetricLockAcquired)
			if reused {
				e.metrics.Inc(MetricRotateIdempotent)
			}
		}
		if result.FromCache {
			e.metrics.Inc(MetricRefreshFanout)
			e.emitAudit(ctx, AuditRefreshFanout, result.UserID, oldToken, true, "", nil)
			return
		}
		e.emitAudit(ctx, AuditRefreshSuccess, result.UserID, oldToken, true, "", nil)

	case flows.RefreshFailureDecode, flows.RefreshFailureRotateInvalid, flows.RefreshFailureOwnerMismatch:
		e.metrics.Inc(MetricRefreshInvalid)
		e.emitAudit(ctx, AuditRefreshInvalid, result.UserID, oldToken, false, result.Err.Error(), nil)

	case flows.RefreshFailureAccountStatus:
		e.metrics.Inc(MetricAccountRejected)
		e.emitAudit(ctx, AuditAccountRejected, result.UserID, oldToken, false, result.Err.Error(), nil)

	case flows.RefreshFailureTimeout:
		e.metrics.Inc(MetricRefreshTimeout)
		e.emitAudit(ctx, AuditRefreshTimeout, result.UserID, oldToken, false, result.Err.Error(), nil)

	case flows.RefreshFailureCacheRead, flows.RefreshFailureLockAcquire,
		flows.RefreshFailureRotate, flows.RefreshFailureAccountLookup,
		flows.RefreshFailureIssueAccess:
		e.metrics.Inc(MetricRefreshStoreFailure)
	}
}

func (e *Engine) mapRefreshFailure(result flows.RefreshResult) error {
	switch result.Failure {
	case flows.RefreshFailureDecode:
		return fmt.Errorf("%w: %v", ErrRefreshInvalid, result.Err)
	case flows.RefreshFailureOwnerMismatch:
		return fmt.Errorf("%w: %v", ErrRefreshInvalid, result.Err)
	case flows.RefreshFailureRotateInvalid:
		// Already wrapped by the rotator.
		return result.Err
	case flows.RefreshFailureAccountStatus:
		return result.Err
	case flows.RefreshFailureTimeout:
		return fmt.Errorf("%w: no shared result after %d attempts",
			ErrRefreshTimeout, e.cfg.Coordinator.WaitAttempts)
	case flows.RefreshFailureCanceled:
		return result.Err
	case flows.RefreshFailureCacheRead, flows.RefreshFailureLockAcquire:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, result.Err)
	case flows.RefreshFailureRotate, flows.RefreshFailureAccountLookup:
		if errors.Is(result.Err, ErrStoreUnavailable) {
			return result.Err
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, result.Err)
	default:
		return result.Err
	}
}
