package challenge

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/playskrafl/backend/internal/models"
)

func newCounterEnv(retries int) (*MemoryStore, *MemoryCounterStore, *CounterCache) {
	store := NewMemoryStore()
	cstore := NewMemoryCounterStore()
	return store, cstore, NewCounterCache(cstore, store, retries)
}

func TestGetSeedsFromStoreOnMiss(t *testing.T) {
	ctx := context.Background()
	store, _, counters := newCounterEnv(10)

	store.Add(ctx, models.OpenChallenge{PlayerID: "u1", TypeKey: "d0:std:open", Rating: 1000})
	store.Add(ctx, models.OpenChallenge{PlayerID: "u2", TypeKey: "d0:std:open", Rating: 1100})
	store.Add(ctx, models.OpenChallenge{PlayerID: "u3", TypeKey: "d15:new:fair", Rating: 1200})

	counts, err := counters.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if counts["d0:std:open"] != 2 || counts["d15:new:fair"] != 1 {
		t.Errorf("seeded counts wrong: %v", counts)
	}
}

func TestAdjustFloorsAtZero(t *testing.T) {
	ctx := context.Background()
	_, cstore, counters := newCounterEnv(10)

	counters.Adjust(ctx, "d0:std:open", -3)

	counts, _, _ := cstore.Load(ctx)
	if counts["d0:std:open"] != 0 {
		t.Errorf("count went negative: %d", counts["d0:std:open"])
	}
}

func TestAdjustRetriesThroughConflicts(t *testing.T) {
	ctx := context.Background()
	_, cstore, counters := newCounterEnv(10)

	cstore.FailNextUpdates(3)
	counters.Adjust(ctx, "d0:std:open", 1)

	counts, _, _ := cstore.Load(ctx)
	if counts["d0:std:open"] != 1 {
		t.Errorf("adjust lost through retryable conflicts: %v", counts)
	}
}

func TestAdjustGivesUpAfterBoundedRetries(t *testing.T) {
	ctx := context.Background()
	_, cstore, counters := newCounterEnv(5)

	cstore.Seed(ctx, map[string]int{"d0:std:open": 7})
	cstore.FailNextUpdates(100)

	// Must return (skewed, not stuck) without touching the count.
	counters.Adjust(ctx, "d0:std:open", 1)

	counts, _, _ := cstore.Load(ctx)
	if counts["d0:std:open"] != 7 {
		t.Errorf("exhausted adjust should leave count untouched: %v", counts)
	}
}

func TestRecomputeConvergesAfterConcurrentAdjusts(t *testing.T) {
	ctx := context.Background()
	store, cstore, counters := newCounterEnv(10)

	// True state: 4 rows of one type, 1 of another.
	for _, ch := range []models.OpenChallenge{
		{PlayerID: "a", TypeKey: "d0:std:open"},
		{PlayerID: "b", TypeKey: "d0:std:open"},
		{PlayerID: "c", TypeKey: "d0:std:open"},
		{PlayerID: "d", TypeKey: "d0:std:open"},
		{PlayerID: "e", TypeKey: "d15:new:fair"},
	} {
		if err := store.Add(ctx, ch); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	// Hammer the advisory counts from many goroutines.
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		delta := 1
		if i%2 == 0 {
			delta = -1
		}
		go func(d int) {
			defer wg.Done()
			counters.Adjust(ctx, "d0:std:open", d)
		}(delta)
	}
	wg.Wait()

	// One recompute restores the authoritative counts regardless of skew.
	if _, err := counters.Recompute(ctx); err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	counts, _, _ := cstore.Load(ctx)
	if counts["d0:std:open"] != 4 || counts["d15:new:fair"] != 1 {
		t.Errorf("recomputed counts diverge from store: %v", counts)
	}
}

func TestMemoryRequestCacheTTL(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryRequestCache(10 * time.Millisecond)

	cache.Set(ctx, "u1")
	if has, _ := cache.Has(ctx, "u1"); !has {
		t.Fatal("marker missing right after Set")
	}

	time.Sleep(20 * time.Millisecond)
	if has, _ := cache.Has(ctx, "u1"); has {
		t.Error("marker survived past its TTL")
	}
}
