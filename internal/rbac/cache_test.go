package rbac_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rising-bsm/rising/internal/rbac"
	_ "github.com/rising-bsm/rising/testing"
)

func countingResolve(calls *int, set rbac.PermissionSet) func(context.Context) (rbac.PermissionSet, error) {
	return func(context.Context) (rbac.PermissionSet, error) {
		*calls++
		return set, nil
	}
}

func TestCacheMemoizesWithinTTL(t *testing.T) {
	cache := rbac.NewPermissionCache(time.Minute)
	set := rbac.PermissionSet{rbac.PermDashboardView: {}}
	calls := 0
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := cache.GetOrResolve(ctx, 7, countingResolve(&calls, set))
		if err != nil {
			t.Fatalf("lookup %d: %v", i, err)
		}
		if !got.Has(rbac.PermDashboardView) {
			t.Fatalf("lookup %d returned wrong set", i)
		}
	}
	if calls != 1 {
		t.Fatalf("expected a single resolver call, got %d", calls)
	}
}

func TestCacheExpiresAfterTTL(t *testing.T) {
	now := time.Now()
	cache := rbac.NewPermissionCache(time.Minute, rbac.WithCacheClock(func() time.Time { return now }))
	calls := 0
	ctx := context.Background()

	if _, err := cache.GetOrResolve(ctx, 7, countingResolve(&calls, rbac.PermissionSet{})); err != nil {
		t.Fatalf("first lookup: %v", err)
	}
	now = now.Add(time.Minute + time.Second)
	if _, err := cache.GetOrResolve(ctx, 7, countingResolve(&calls, rbac.PermissionSet{})); err != nil {
		t.Fatalf("second lookup: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected a re-resolve after expiry, got %d calls", calls)
	}
}

func TestCacheInvalidateForcesResolve(t *testing.T) {
	cache := rbac.NewPermissionCache(time.Hour)
	calls := 0
	ctx := context.Background()

	if _, err := cache.GetOrResolve(ctx, 7, countingResolve(&calls, rbac.PermissionSet{})); err != nil {
		t.Fatalf("first lookup: %v", err)
	}
	cache.Invalidate(7)
	if _, err := cache.GetOrResolve(ctx, 7, countingResolve(&calls, rbac.PermissionSet{})); err != nil {
		t.Fatalf("second lookup: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected a re-resolve after invalidation, got %d calls", calls)
	}
}

func TestCacheInvalidateAll(t *testing.T) {
	cache := rbac.NewPermissionCache(time.Hour)
	calls := 0
	ctx := context.Background()

	for _, id := range []int64{1, 2, 3} {
		if _, err := cache.GetOrResolve(ctx, id, countingResolve(&calls, rbac.PermissionSet{})); err != nil {
			t.Fatalf("seed user %d: %v", id, err)
		}
	}
	if cache.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", cache.Len())
	}
	cache.InvalidateAll()
	if cache.Len() != 0 {
		t.Fatalf("expected an empty cache, got %d entries", cache.Len())
	}
}

func TestCacheDoesNotStoreFailures(t *testing.T) {
	cache := rbac.NewPermissionCache(time.Hour)
	ctx := context.Background()
	boom := errors.New("store down")

	if _, err := cache.GetOrResolve(ctx, 7, func(context.Context) (rbac.PermissionSet, error) {
		return nil, boom
	}); !errors.Is(err, boom) {
		t.Fatalf("expected the resolver error, got %v", err)
	}

	calls := 0
	if _, err := cache.GetOrResolve(ctx, 7, countingResolve(&calls, rbac.PermissionSet{})); err != nil {
		t.Fatalf("lookup after failure: %v", err)
	}
	if calls != 1 {
		t.Fatalf("a failed resolve must not be cached")
	}
}

func TestCacheReportsHitsAndMisses(t *testing.T) {
	var hits, misses int
	cache := rbac.NewPermissionCache(time.Hour, rbac.WithLookupObserver(func(hit bool) {
		if hit {
			hits++
		} else {
			misses++
		}
	}))
	calls := 0
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := cache.GetOrResolve(ctx, 7, countingResolve(&calls, rbac.PermissionSet{})); err != nil {
			t.Fatalf("lookup %d: %v", i, err)
		}
	}
	if misses != 1 || hits != 2 {
		t.Fatalf("expected 1 miss and 2 hits, got %d/%d", misses, hits)
	}
}

func TestCacheInvalidateDuringResolveDiscardsResult(t *testing.T) {
	cache := rbac.NewPermissionCache(time.Hour)
	ctx := context.Background()
	calls := 0

	stale := rbac.PermissionSet{rbac.PermRequestsView: {}}
	got, err := cache.GetOrResolve(ctx, 7, func(context.Context) (rbac.PermissionSet, error) {
		calls++
		// A grant lands while this resolve is still running.
		cache.Invalidate(7)
		return stale, nil
	})
	if err != nil {
		t.Fatalf("first lookup: %v", err)
	}
	if !got.Has(rbac.PermRequestsView) {
		t.Fatal("in-flight caller should still get the resolved set")
	}

	fresh := rbac.PermissionSet{rbac.PermRequestsView: {}, rbac.PermRequestsManage: {}}
	got, err = cache.GetOrResolve(ctx, 7, countingResolve(&calls, fresh))
	if err != nil {
		t.Fatalf("second lookup: %v", err)
	}
	if calls != 2 {
		t.Fatalf("a set resolved before the invalidation must not be cached, got %d calls", calls)
	}
	if !got.Has(rbac.PermRequestsManage) {
		t.Fatal("post-invalidation lookup should see the fresh set")
	}
}
