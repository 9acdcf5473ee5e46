package gorefresh

import "errors"

var (
	// ErrRefreshInvalid is returned when a refresh token is absent, revoked,
	// expired, or rotated past its grace window.
	ErrRefreshInvalid = errors.New("invalid refresh token")
	// ErrAccountDisabled is returned when the account is missing or disabled
	// at refresh time. The preceding rotation is not rolled back.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrRefreshTimeout is returned when a follower exhausts its wait bound
	// without observing the winner's result. It implies no destructive state
	// change occurred for this caller and may be retried after a short delay.
	ErrRefreshTimeout = errors.New("refresh wait timed out")
	// ErrStoreUnavailable is returned when the underlying TTL store fails.
	// Operations are never retried internally.
	ErrStoreUnavailable = errors.New("token store unavailable")
	// ErrEngineNotReady is returned when an Engine method is called before
	// the engine was built.
	ErrEngineNotReady = errors.New("engine not initialized")
)
