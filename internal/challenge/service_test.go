package challenge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/playskrafl/backend/internal/models"
)

const testMaxAge = 180 * time.Second

func newServiceEnv() (*MemoryStore, *MemoryRequestCache, *MemoryCounterStore, *Service) {
	store := NewMemoryStore()
	cache := NewMemoryRequestCache(testMaxAge)
	cstore := NewMemoryCounterStore()
	counters := NewCounterCache(cstore, store, 10)
	return store, cache, cstore, NewService(store, cache, counters)
}

func TestDoubleRequestIsRejected(t *testing.T) {
	ctx := context.Background()
	_, _, _, svc := newServiceEnv()

	if err := svc.Request(ctx, "u1", 1000, models.ChallengePrefs{}); err != nil {
		t.Fatalf("first request: %v", err)
	}
	err := svc.Request(ctx, "u1", 1000, models.ChallengePrefs{})
	if !errors.Is(err, ErrChallengeExists) {
		t.Errorf("second request: got %v, want ErrChallengeExists", err)
	}
}

func TestRequestAfterCacheExpiryStillRejected(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	cache := NewMemoryRequestCache(time.Millisecond) // markers expire immediately
	counters := NewCounterCache(NewMemoryCounterStore(), store, 10)
	svc := NewService(store, cache, counters)

	if err := svc.Request(ctx, "u1", 1000, models.ChallengePrefs{}); err != nil {
		t.Fatalf("first request: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	// The marker is gone but the row survives; the store is authoritative.
	err := svc.Request(ctx, "u1", 1000, models.ChallengePrefs{})
	if !errors.Is(err, ErrChallengeExists) {
		t.Fatalf("got %v, want ErrChallengeExists", err)
	}

	// The denial should have re-seeded the marker.
	if has, _ := cache.Has(ctx, "u1"); !has {
		t.Error("marker not re-seeded after store-level denial")
	}
}

func TestConcurrentRequestsCreateOneRow(t *testing.T) {
	ctx := context.Background()
	store, _, _, svc := newServiceEnv()

	var wg sync.WaitGroup
	var mu sync.Mutex
	okCount := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := svc.Request(ctx, "u1", 1000, models.ChallengePrefs{}); err == nil {
				mu.Lock()
				okCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if okCount != 1 {
		t.Errorf("%d requests succeeded, want exactly 1", okCount)
	}
	counts, _ := store.RecomputeCounts(ctx)
	if counts[DeriveTypeKey(models.ChallengePrefs{})] != 1 {
		t.Errorf("store holds %v, want one row", counts)
	}
}

func TestWithdrawIsIdempotent(t *testing.T) {
	ctx := context.Background()
	_, _, _, svc := newServiceEnv()

	if err := svc.Withdraw(ctx, "nobody"); err != nil {
		t.Errorf("withdraw with no row errored: %v", err)
	}
}

func TestWithdrawRemovesRowAndDecrementsCounter(t *testing.T) {
	ctx := context.Background()
	store, cache, cstore, svc := newServiceEnv()

	if err := svc.Request(ctx, "u1", 1000, models.ChallengePrefs{}); err != nil {
		t.Fatalf("request: %v", err)
	}
	typeKey := DeriveTypeKey(models.ChallengePrefs{})

	if err := svc.Withdraw(ctx, "u1"); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	if has, _ := store.Has(ctx, "u1"); has {
		t.Error("row survived withdrawal")
	}
	if has, _ := cache.Has(ctx, "u1"); has {
		t.Error("cache marker survived withdrawal")
	}
	counts, _, _ := cstore.Load(ctx)
	if counts[typeKey] != 0 {
		t.Errorf("counter after withdraw = %d, want 0", counts[typeKey])
	}

	// A fresh request is now allowed again.
	if err := svc.Request(ctx, "u1", 1000, models.ChallengePrefs{}); err != nil {
		t.Errorf("request after withdraw: %v", err)
	}
}

func TestActiveRequestReseedsMarkerFromStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	cache := NewMemoryRequestCache(testMaxAge)
	counters := NewCounterCache(NewMemoryCounterStore(), store, 10)
	svc := NewService(store, cache, counters)

	// Row exists but no cache marker (e.g. expired).
	store.Add(ctx, models.OpenChallenge{PlayerID: "u1", TypeKey: "d0:std:open", Rating: 1000})

	active, err := svc.ActiveRequest(ctx, "u1")
	if err != nil {
		t.Fatalf("ActiveRequest: %v", err)
	}
	if !active {
		t.Fatal("ActiveRequest = false with a live row in the store")
	}
	if has, _ := cache.Has(ctx, "u1"); !has {
		t.Error("marker not re-seeded on store hit")
	}

	if active, _ := svc.ActiveRequest(ctx, "ghost"); active {
		t.Error("ActiveRequest = true for a player with no row")
	}
}
