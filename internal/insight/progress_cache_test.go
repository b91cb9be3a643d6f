package insight

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestProgressCache(t *testing.T) *ProgressCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewProgressCache(client)
}

func TestProgressCacheRoundTrip(t *testing.T) {
	cache := newTestProgressCache(t)
	ctx := context.Background()

	if err := cache.Set(ctx, "job-1", StageExtracting, 42); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	snap, err := cache.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if snap == nil {
		t.Fatal("expected a snapshot")
	}
	if snap.Stage != StageExtracting || snap.Percent != 42 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.JobID != "job-1" {
		t.Fatalf("JobID = %q, want job-1", snap.JobID)
	}
}

func TestProgressCacheMissIsNil(t *testing.T) {
	cache := newTestProgressCache(t)

	snap, err := cache.Get(context.Background(), "unknown")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap != nil {
		t.Fatalf("expected nil snapshot for unknown job, got %+v", snap)
	}
}

func TestProgressCacheClear(t *testing.T) {
	cache := newTestProgressCache(t)
	ctx := context.Background()

	if err := cache.Set(ctx, "job-2", StageSynthesizing, 95); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := cache.Clear(ctx, "job-2"); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	snap, err := cache.Get(ctx, "job-2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap != nil {
		t.Fatal("snapshot should be gone after Clear")
	}
}
