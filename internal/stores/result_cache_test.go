package stores

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newCacheTest(t *testing.T) (*ResultCacheStore, *miniredis.Miniredis, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewResultCacheStore(rdb, "rtc")
	return store, mr, func() {
		rdb.Close()
		mr.Close()
	}
}

func TestPublishLookupRoundTrip(t *testing.T) {
	store, _, done := newCacheTest(t)
	defer done()
	ctx := context.Background()

	pair := CachedPair{AccessToken: "at-1", RefreshToken: "rt-1"}
	if err := store.Publish(ctx, "u-1", pair, time.Minute); err != nil {
		t.Fatalf("publish: %v", err)
	}

	got, found, err := store.Lookup(ctx, "u-1")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !found {
		t.Fatal("expected published pair to be found")
	}
	if got != pair {
		t.Fatalf("unexpected pair: %+v", got)
	}
}

func TestLookupMissIsNotAnError(t *testing.T) {
	store, _, done := newCacheTest(t)
	defer done()

	_, found, err := store.Lookup(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if found {
		t.Fatal("expected miss for unpublished user")
	}
}

func TestLookupExpiresByTTL(t *testing.T) {
	store, mr, done := newCacheTest(t)
	defer done()
	ctx := context.Background()

	pair := CachedPair{AccessToken: "at-1", RefreshToken: "rt-1"}
	if err := store.Publish(ctx, "u-1", pair, time.Second); err != nil {
		t.Fatalf("publish: %v", err)
	}

	mr.FastForward(2 * time.Second)

	_, found, err := store.Lookup(ctx, "u-1")
	if err != nil {
		t.Fatalf("lookup after ttl: %v", err)
	}
	if found {
		t.Fatal("expected pair to expire with its TTL")
	}
}

func TestLookupCorruptPayload(t *testing.T) {
	store, mr, done := newCacheTest(t)
	defer done()

	if err := mr.Set("rtc:u-1", "{broken"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	_, _, err := store.Lookup(context.Background(), "u-1")
	if !errors.Is(err, ErrCacheCorrupt) {
		t.Fatalf("expected ErrCacheCorrupt, got %v", err)
	}
}
