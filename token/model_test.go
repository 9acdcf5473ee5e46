package token

import (
	"testing"
	"time"
)

func TestUsableAtLifecycle(t *testing.T) {
	now := time.Now()
	rec := &Record{
		Token:     "tok",
		UserID:    "u-1",
		CreatedAt: now.UnixMilli(),
		ExpiresAt: now.Add(time.Hour).UnixMilli(),
	}

	if !rec.UsableAt(now) {
		t.Fatal("fresh record must be usable")
	}

	rec.Revoked = true
	if rec.UsableAt(now) {
		t.Fatal("revoked record must not be usable")
	}
	rec.Revoked = false

	if rec.UsableAt(now.Add(2 * time.Hour)) {
		t.Fatal("expired record must not be usable")
	}
}

func TestUsableAtGraceBoundary(t *testing.T) {
	now := time.Now()
	grace := now.Add(30 * time.Second)
	rec := &Record{
		Token:          "tok",
		UserID:         "u-1",
		CreatedAt:      now.UnixMilli(),
		ExpiresAt:      now.Add(time.Hour).UnixMilli(),
		Rotated:        true,
		RotatedAt:      now.UnixMilli(),
		GraceExpiresAt: grace.UnixMilli(),
		ReplacedBy:     "tok-next",
	}

	if !rec.UsableAt(now) {
		t.Fatal("rotated record must be usable within grace")
	}
	// The grace deadline itself is inclusive.
	if !rec.UsableAt(grace) {
		t.Fatal("rotated record must be usable at the grace deadline")
	}
	if rec.UsableAt(grace.Add(time.Millisecond)) {
		t.Fatal("rotated record must not be usable past grace")
	}
}
