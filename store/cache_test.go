package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
)

func newTestCache(t *testing.T, ttl time.Duration) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewRedisCache(context.Background(), mr.Addr(), ttl)
	if err != nil {
		t.Fatalf("connect to test redis: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func cachedTask(owner uuid.UUID, id int) Task {
	due := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	hours := 3
	return Task{
		ID:            id,
		OwnerID:       owner,
		Title:         "Write report",
		IsDone:        true,
		DueDate:       &due,
		Category:      "Work",
		EstimateHours: &hours,
	}
}

func TestRedisCacheMissAndHit(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)
	ctx := context.Background()
	owner := uuid.New()

	if _, ok, err := c.Get(ctx, owner, 1); err != nil || ok {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}

	want := cachedTask(owner, 1)
	if err := c.Set(ctx, want, 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok, err := c.Get(ctx, owner, 1)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if got.ID != want.ID || got.OwnerID != want.OwnerID || got.Title != want.Title || got.IsDone != want.IsDone || got.Category != want.Category {
		t.Errorf("cached task changed: got %+v, want %+v", got, want)
	}
	if got.DueDate == nil || !got.DueDate.Equal(*want.DueDate) {
		t.Errorf("expected due date %v, got %v", want.DueDate, got.DueDate)
	}
	if got.EstimateHours == nil || *got.EstimateHours != 3 {
		t.Errorf("expected estimate 3, got %v", got.EstimateHours)
	}

	bare := Task{ID: 2, OwnerID: owner, Title: "No extras", Category: "Home"}
	if err := c.Set(ctx, bare, 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok, err = c.Get(ctx, owner, 2)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if got.DueDate != nil || got.EstimateHours != nil {
		t.Errorf("expected nil due date and estimate, got %v %v", got.DueDate, got.EstimateHours)
	}
}

func TestRedisCacheTTL(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	ctx := context.Background()
	owner := uuid.New()

	if err := c.Set(ctx, cachedTask(owner, 1), 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	if ttl := mr.TTL(CacheKey(owner, 1)); ttl != time.Minute {
		t.Errorf("expected ttl 1m, got %v", ttl)
	}

	mr.FastForward(time.Minute + time.Second)
	if _, ok, err := c.Get(ctx, owner, 1); err != nil || ok {
		t.Errorf("expected expired entry to miss, got ok=%v err=%v", ok, err)
	}
}

func TestRedisCacheRefusesMismatchedPayload(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()

	data, err := json.Marshal(cachedTask(alice, 1))
	if err != nil {
		t.Fatal(err)
	}
	testCases := []struct {
		name  string
		owner uuid.UUID
		id    int
	}{
		{name: "other owner", owner: bob, id: 1},
		{name: "other id", owner: alice, id: 2},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mr.Set(CacheKey(tc.owner, tc.id), string(data))
			if got, ok, err := c.Get(ctx, tc.owner, tc.id); err != nil || ok {
				t.Errorf("expected payload for another key to be refused, got %+v ok=%v err=%v", got, ok, err)
			}
		})
	}

	mr.Set(CacheKey(alice, 3), "not json")
	if _, _, err := c.Get(ctx, alice, 3); err == nil {
		t.Error("expected decode error for corrupt entry")
	}
}

func TestRedisCacheDeleteBumpsVersion(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	ctx := context.Background()
	owner := uuid.New()

	before, err := c.Version(ctx, owner, 1)
	if err != nil || before != 0 {
		t.Fatalf("expected version 0 for a fresh key, got %d err=%v", before, err)
	}
	if err := c.Set(ctx, cachedTask(owner, 1), before); err != nil {
		t.Fatalf("set: %v", err)
	}

	if err := c.Delete(ctx, owner, 1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := c.Get(ctx, owner, 1); ok {
		t.Error("expected entry gone after delete")
	}
	after, err := c.Version(ctx, owner, 1)
	if err != nil || after != before+1 {
		t.Fatalf("expected version %d after delete, got %d err=%v", before+1, after, err)
	}
	if ttl := mr.TTL(versionKey(owner, 1)); ttl != versionTTL {
		t.Errorf("expected version ttl %v, got %v", versionTTL, ttl)
	}

	// A read that took its version before the delete must not write.
	if err := c.Set(ctx, cachedTask(owner, 1), before); err != nil {
		t.Fatalf("stale set: %v", err)
	}
	if _, ok, _ := c.Get(ctx, owner, 1); ok {
		t.Error("stale write repopulated the cache")
	}

	if err := c.Set(ctx, cachedTask(owner, 1), after); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, ok, _ := c.Get(ctx, owner, 1); !ok {
		t.Error("expected write with current version to be cached")
	}

	// Deleting an absent key is not an error.
	if err := c.Delete(ctx, owner, 42); err != nil {
		t.Errorf("delete of missing key: %v", err)
	}
}

func TestNewRedisCacheUnreachable(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	addr := mr.Addr()
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := NewRedisCache(ctx, addr, time.Minute); err == nil {
		t.Error("expected error connecting to a stopped server")
	}
}
