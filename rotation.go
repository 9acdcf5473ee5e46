package gorefresh

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/arkadian7/goRefresh/internal"
	"github.com/arkadian7/goRefresh/token"
)

// Rotator owns the refresh-token record lifecycle: issuance, validation,
// rotation, and revocation. It depends only on the credential store and
// never touches the refresh lock or the shared result cache.
//
// All operations surface store failures as [ErrStoreUnavailable] without
// internal retries; retry policy belongs to the caller.
type Rotator struct {
	store       *token.Store
	tokenTTL    time.Duration
	graceWindow time.Duration
	deviceCheck DeviceCheckConfig

	// onAnomaly is invoked for advisory device mismatches after the
	// per-token throttle admits them. Never affects the returned result.
	onAnomaly func(ctx context.Context, kind string, rec *token.Record)
}

// NewRotator creates a [Rotator] over the given record store.
func NewRotator(store *token.Store, refresh RefreshConfig, deviceCheck DeviceCheckConfig) *Rotator {
	return &Rotator{
		store:       store,
		tokenTTL:    refresh.TokenTTL,
		graceWindow: refresh.GraceWindow,
		deviceCheck: deviceCheck,
	}
}

// Issue creates a fresh record with the full refresh lifetime and adds it to
// the user's index. The returned token string is the record's identity.
func (r *Rotator) Issue(ctx context.Context, userID string, meta DeviceMeta) (string, error) {
	tok, err := internal.NewRefreshToken()
	if err != nil {
		return "", err
	}

	now := time.Now()
	rec := &token.Record{
		Token:     tok,
		UserID:    userID,
		Device:    meta,
		CreatedAt: now.UnixMilli(),
		ExpiresAt: now.Add(r.tokenTTL).UnixMilli(),
	}

	if err := r.store.Save(ctx, rec, r.tokenTTL); err != nil {
		return "", r.mapStoreErr(err)
	}

	return tok, nil
}

// Validate checks a token read-only and returns the owning user ID.
// It returns [ErrRefreshInvalid] for absent, revoked, expired, or
// rotated-past-grace records. A device mismatch is logged and reported
// through the anomaly hook but never denies access.
func (r *Rotator) Validate(ctx context.Context, tok string, meta DeviceMeta) (string, error) {
	rec, err := r.store.Get(ctx, tok)
	if err != nil {
		return "", r.mapStoreErr(err)
	}

	if !rec.UsableAt(time.Now()) {
		return "", fmt.Errorf("%w: record unusable", ErrRefreshInvalid)
	}

	r.checkDevice(ctx, rec, meta)

	return rec.UserID, nil
}

// Rotate re-validates oldToken and replaces it with a successor. The old
// record is atomically marked rotated with a grace deadline and keeps
// pointing at its successor; re-rotating within grace is idempotent and
// returns the existing successor with reused=true instead of creating a
// second one.
func (r *Rotator) Rotate(ctx context.Context, oldToken string, meta DeviceMeta) (userID, newToken string, reused bool, err error) {
	rec, err := r.store.Get(ctx, oldToken)
	if err != nil {
		return "", "", false, r.mapStoreErr(err)
	}

	now := time.Now()
	if !rec.RotatableAt(now) {
		return "", "", false, fmt.Errorf("%w: record unusable", ErrRefreshInvalid)
	}

	r.checkDevice(ctx, rec, meta)

	if rec.Rotated {
		// Within grace: re-derive the successor created by the first
		// rotation of this record.
		return rec.UserID, rec.ReplacedBy, true, nil
	}

	// The successor must exist before the old record points at it.
	successor, err := r.Issue(ctx, rec.UserID, meta)
	if err != nil {
		return "", "", false, err
	}

	marked, created, err := r.store.MarkRotated(ctx, oldToken, successor, r.graceWindow, now)
	if err != nil {
		// The freshly issued successor is unreachable; drop it.
		if delErr := r.store.Delete(context.WithoutCancel(ctx), successor); delErr != nil {
			log.Print("goRefresh: orphaned successor cleanup failed")
		}
		return "", "", false, r.mapStoreErr(err)
	}
	if !created {
		// Lost the race to a concurrent rotation of the same record.
		if delErr := r.store.Delete(context.WithoutCancel(ctx), successor); delErr != nil {
			log.Print("goRefresh: orphaned successor cleanup failed")
		}
		return marked.UserID, marked.ReplacedBy, true, nil
	}

	return marked.UserID, successor, false, nil
}

// Revoke deletes a record and its index membership. No-op if absent.
func (r *Rotator) Revoke(ctx context.Context, tok string) error {
	if err := r.store.Delete(ctx, tok); err != nil {
		return r.mapStoreErr(err)
	}
	return nil
}

// RevokeAll deletes every record tracked for the user, then the index
// itself. Used for logout-everywhere and security incidents.
func (r *Rotator) RevokeAll(ctx context.Context, userID string) error {
	if err := r.store.DeleteAllForUser(ctx, userID); err != nil {
		return r.mapStoreErr(err)
	}
	return nil
}

func (r *Rotator) checkDevice(ctx context.Context, rec *token.Record, meta DeviceMeta) {
	if r.deviceCheck.DetectIPChange && meta.IP != "" && rec.Device.IP != "" && meta.IP != rec.Device.IP {
		r.emitAnomaly(ctx, "ip", rec)
	}
	if r.deviceCheck.DetectUserAgentChange && meta.UserAgent != "" && rec.Device.UserAgent != "" && meta.UserAgent != rec.Device.UserAgent {
		r.emitAnomaly(ctx, "ua", rec)
	}
}

func (r *Rotator) emitAnomaly(ctx context.Context, kind string, rec *token.Record) {
	emit, err := r.store.ShouldEmitDeviceAnomaly(ctx, rec.Token, kind, r.deviceCheck.AnomalyWindow)
	if err != nil {
		log.Print("goRefresh: device anomaly tracking failed")
		return
	}
	if !emit {
		return
	}

	log.Printf("goRefresh: device %s mismatch for user %s", kind, rec.UserID)
	if r.onAnomaly != nil {
		r.onAnomaly(ctx, kind, rec)
	}
}

func (r *Rotator) mapStoreErr(err error) error {
	switch {
	case errors.Is(err, token.ErrRecordNotFound):
		return fmt.Errorf("%w: %v", ErrRefreshInvalid, err)
	case errors.Is(err, token.ErrRecordUnusable):
		return fmt.Errorf("%w: %v", ErrRefreshInvalid, err)
	case errors.Is(err, token.ErrRecordCorrupt):
		return fmt.Errorf("%w: %v", ErrRefreshInvalid, err)
	case errors.Is(err, token.ErrRedisUnavailable):
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	default:
		return err
	}
}
