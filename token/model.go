package token

import "time"

// DeviceMeta is the client fingerprint captured when a record is issued.
// It is advisory only: mismatches are logged and counted, never enforced.
type DeviceMeta struct {
	IP        string `json:"ip,omitempty"`
	UserAgent string `json:"ua,omitempty"`
}

// Record is one issued refresh credential. The token string itself is the
// record identity and is treated as a capability: opaque, unguessable, and
// never reused.
type Record struct {
	Token  string     `json:"token"`
	UserID string     `json:"user_id"`
	Device DeviceMeta `json:"device,omitempty"`

	// Timestamps are Unix milliseconds.
	CreatedAt      int64  `json:"created_at"`
	ExpiresAt      int64  `json:"expires_at"`
	Rotated        bool   `json:"rotated,omitempty"`
	RotatedAt      int64  `json:"rotated_at,omitempty"`
	ReplacedBy     string `json:"replaced_by,omitempty"`
	GraceExpiresAt int64  `json:"grace_expires_at,omitempty"`
	Revoked        bool   `json:"revoked,omitempty"`
	RevokedAt      int64  `json:"revoked_at,omitempty"`
}

// UsableAt reports whether the record is acceptable for authentication at
// the given instant: not revoked, not past its absolute lifetime, and if
// rotated still within the grace window.
func (r *Record) UsableAt(now time.Time) bool {
	if r.Revoked {
		return false
	}
	if now.UnixMilli() > r.ExpiresAt {
		return false
	}
	if r.Rotated && now.UnixMilli() > r.GraceExpiresAt {
		return false
	}
	return true
}

// RotatableAt reports whether the record may enter rotation at the given
// instant. A rotated record within grace is still rotatable; the store's
// compare-and-swap re-derives the existing successor instead of creating a
// second one.
func (r *Record) RotatableAt(now time.Time) bool {
	return r.UsableAt(now)
}
