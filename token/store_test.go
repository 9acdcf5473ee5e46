package token

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newStoreTest(t *testing.T) (*Store, *redis.Client, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewStore(rdb, "rt")
	return store, rdb, func() {
		rdb.Close()
		mr.Close()
	}
}

func testRecord(tok, userID string) *Record {
	now := time.Now()
	return &Record{
		Token:     tok,
		UserID:    userID,
		Device:    DeviceMeta{IP: "10.0.0.1", UserAgent: "cli/1.0"},
		CreatedAt: now.UnixMilli(),
		ExpiresAt: now.Add(time.Hour).UnixMilli(),
	}
}

func TestSaveGetRoundTrip(t *testing.T) {
	store, _, done := newStoreTest(t)
	defer done()
	ctx := context.Background()

	rec := testRecord("tok-1", "u-1")
	if err := store.Save(ctx, rec, time.Hour); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.Get(ctx, "tok-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.UserID != "u-1" || got.Token != "tok-1" {
		t.Fatalf("unexpected record: %+v", got)
	}
	if got.Device.IP != "10.0.0.1" {
		t.Fatalf("device metadata lost: %+v", got.Device)
	}

	tokens, err := store.UserTokens(ctx, "u-1")
	if err != nil {
		t.Fatalf("user tokens: %v", err)
	}
	if len(tokens) != 1 || tokens[0] != "tok-1" {
		t.Fatalf("unexpected index: %v", tokens)
	}
}

func TestGetMissingRecord(t *testing.T) {
	store, _, done := newStoreTest(t)
	defer done()

	_, err := store.Get(context.Background(), "absent")
	if !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
	if !errors.Is(err, redis.Nil) {
		t.Fatalf("expected redis.Nil compatibility, got %v", err)
	}
}

func TestGetCorruptRecord(t *testing.T) {
	store, rdb, done := newStoreTest(t)
	defer done()
	ctx := context.Background()

	if err := rdb.Set(ctx, "rt:bad", "{not json", time.Hour).Err(); err != nil {
		t.Fatalf("seed: %v", err)
	}

	_, err := store.Get(ctx, "bad")
	if !errors.Is(err, ErrRecordCorrupt) {
		t.Fatalf("expected ErrRecordCorrupt, got %v", err)
	}
}

func TestMarkRotatedSetsGraceState(t *testing.T) {
	store, _, done := newStoreTest(t)
	defer done()
	ctx := context.Background()

	if err := store.Save(ctx, testRecord("tok-rot", "u-1"), time.Hour); err != nil {
		t.Fatalf("save: %v", err)
	}

	now := time.Now()
	rec, created, err := store.MarkRotated(ctx, "tok-rot", "tok-next", 30*time.Second, now)
	if err != nil {
		t.Fatalf("mark rotated: %v", err)
	}
	if !created {
		t.Fatal("expected created=true on first rotation")
	}
	if !rec.Rotated || rec.ReplacedBy != "tok-next" {
		t.Fatalf("rotation state not set: %+v", rec)
	}
	if rec.GraceExpiresAt != now.Add(30*time.Second).UnixMilli() {
		t.Fatalf("unexpected grace deadline: %d", rec.GraceExpiresAt)
	}

	got, err := store.Get(ctx, "tok-rot")
	if err != nil {
		t.Fatalf("get after rotate: %v", err)
	}
	if !got.Rotated || got.ReplacedBy != "tok-next" {
		t.Fatalf("rotation state not persisted: %+v", got)
	}
}

func TestMarkRotatedIdempotentWithinGrace(t *testing.T) {
	store, _, done := newStoreTest(t)
	defer done()
	ctx := context.Background()

	if err := store.Save(ctx, testRecord("tok-idem", "u-1"), time.Hour); err != nil {
		t.Fatalf("save: %v", err)
	}

	now := time.Now()
	if _, _, err := store.MarkRotated(ctx, "tok-idem", "tok-first", time.Minute, now); err != nil {
		t.Fatalf("first rotate: %v", err)
	}

	rec, created, err := store.MarkRotated(ctx, "tok-idem", "tok-second", time.Minute, now)
	if err != nil {
		t.Fatalf("second rotate: %v", err)
	}
	if created {
		t.Fatal("expected created=false within grace")
	}
	if rec.ReplacedBy != "tok-first" {
		t.Fatalf("expected existing successor tok-first, got %q", rec.ReplacedBy)
	}
}

func TestMarkRotatedPastGraceUnusable(t *testing.T) {
	store, _, done := newStoreTest(t)
	defer done()
	ctx := context.Background()

	if err := store.Save(ctx, testRecord("tok-grace", "u-1"), time.Hour); err != nil {
		t.Fatalf("save: %v", err)
	}

	now := time.Now()
	if _, _, err := store.MarkRotated(ctx, "tok-grace", "tok-next", 50*time.Millisecond, now); err != nil {
		t.Fatalf("rotate: %v", err)
	}

	afterGrace := now.Add(100 * time.Millisecond)
	_, _, err := store.MarkRotated(ctx, "tok-grace", "tok-late", 50*time.Millisecond, afterGrace)
	if !errors.Is(err, ErrRecordUnusable) {
		t.Fatalf("expected ErrRecordUnusable past grace, got %v", err)
	}
}

func TestMarkRotatedExpiredRecord(t *testing.T) {
	store, _, done := newStoreTest(t)
	defer done()
	ctx := context.Background()

	rec := testRecord("tok-exp", "u-1")
	rec.ExpiresAt = time.Now().Add(-time.Minute).UnixMilli()
	if err := store.Save(ctx, rec, time.Hour); err != nil {
		t.Fatalf("save: %v", err)
	}

	_, _, err := store.MarkRotated(ctx, "tok-exp", "tok-next", time.Minute, time.Now())
	if !errors.Is(err, ErrRecordUnusable) {
		t.Fatalf("expected ErrRecordUnusable for expired record, got %v", err)
	}
}

func TestMarkRotatedMissingRecord(t *testing.T) {
	store, _, done := newStoreTest(t)
	defer done()

	_, _, err := store.MarkRotated(context.Background(), "absent", "tok-next", time.Minute, time.Now())
	if !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestDeleteRemovesRecordAndIndex(t *testing.T) {
	store, _, done := newStoreTest(t)
	defer done()
	ctx := context.Background()

	if err := store.Save(ctx, testRecord("tok-del", "u-1"), time.Hour); err != nil {
		t.Fatalf("save: %v", err)
	}

	if err := store.Delete(ctx, "tok-del"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "tok-del"); !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("record still readable: %v", err)
	}

	tokens, err := store.UserTokens(ctx, "u-1")
	if err != nil {
		t.Fatalf("user tokens: %v", err)
	}
	if len(tokens) != 0 {
		t.Fatalf("index not cleaned: %v", tokens)
	}

	// Second delete is a no-op.
	if err := store.Delete(ctx, "tok-del"); err != nil {
		t.Fatalf("idempotent delete: %v", err)
	}
}

func TestDeleteAllForUser(t *testing.T) {
	store, _, done := newStoreTest(t)
	defer done()
	ctx := context.Background()

	for _, tok := range []string{"tok-a", "tok-b", "tok-c"} {
		if err := store.Save(ctx, testRecord(tok, "u-multi"), time.Hour); err != nil {
			t.Fatalf("save %s: %v", tok, err)
		}
	}
	if err := store.Save(ctx, testRecord("tok-other", "u-other"), time.Hour); err != nil {
		t.Fatalf("save other: %v", err)
	}

	if err := store.DeleteAllForUser(ctx, "u-multi"); err != nil {
		t.Fatalf("delete all: %v", err)
	}

	for _, tok := range []string{"tok-a", "tok-b", "tok-c"} {
		if _, err := store.Get(ctx, tok); !errors.Is(err, ErrRecordNotFound) {
			t.Fatalf("%s survived revoke-all: %v", tok, err)
		}
	}
	tokens, err := store.UserTokens(ctx, "u-multi")
	if err != nil {
		t.Fatalf("user tokens: %v", err)
	}
	if len(tokens) != 0 {
		t.Fatalf("index survived revoke-all: %v", tokens)
	}

	// Other users are untouched.
	if _, err := store.Get(ctx, "tok-other"); err != nil {
		t.Fatalf("unrelated record removed: %v", err)
	}
}

func TestShouldEmitDeviceAnomalyThrottles(t *testing.T) {
	store, _, done := newStoreTest(t)
	defer done()
	ctx := context.Background()

	first, err := store.ShouldEmitDeviceAnomaly(ctx, "tok-1", "ip", time.Minute)
	if err != nil {
		t.Fatalf("first check: %v", err)
	}
	if !first {
		t.Fatal("expected first anomaly to emit")
	}

	second, err := store.ShouldEmitDeviceAnomaly(ctx, "tok-1", "ip", time.Minute)
	if err != nil {
		t.Fatalf("second check: %v", err)
	}
	if second {
		t.Fatal("expected second anomaly within window to be throttled")
	}

	// A different kind has its own window.
	ua, err := store.ShouldEmitDeviceAnomaly(ctx, "tok-1", "ua", time.Minute)
	if err != nil {
		t.Fatalf("ua check: %v", err)
	}
	if !ua {
		t.Fatal("expected independent window per kind")
	}
}
