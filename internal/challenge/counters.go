package challenge

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const countsKey = "challenge:counts"

// ErrCounterConflict is returned by CounterStore.Update when the snapshot
// changed between the read and the conditional write.
var ErrCounterConflict = errors.New("counter snapshot changed")

// CounterStore is the versioned snapshot storage the CAS loop runs against.
type CounterStore interface {
	// Load returns the last-known counts and whether a snapshot exists.
	Load(ctx context.Context) (map[string]int, bool, error)
	// Seed unconditionally replaces the snapshot.
	Seed(ctx context.Context, counts map[string]int) error
	// Update applies fn to the current snapshot and writes the result only
	// if the snapshot is unchanged since the read. A lost race returns
	// ErrCounterConflict; the caller decides whether to retry.
	Update(ctx context.Context, fn func(counts map[string]int)) error
}

// CountSource recomputes the authoritative per-type counts. The challenge
// Store satisfies this.
type CountSource interface {
	RecomputeCounts(ctx context.Context) (map[string]int, error)
}

// CounterCache keeps an approximate count of waiting challenges per type
// key. The counts are advisory: the matcher uses them only to pick
// candidate types and always re-reads the store before pairing. Concurrent
// request/withdraw/match paths all adjust the same snapshot, so updates go
// through a bounded compare-and-swap loop; on exhaustion the count is left
// skewed and corrected by the next recomputation instead of failing the
// caller.
type CounterCache struct {
	store   CounterStore
	source  CountSource
	retries int
}

func NewCounterCache(store CounterStore, source CountSource, retries int) *CounterCache {
	if retries <= 0 {
		retries = 10
	}
	return &CounterCache{store: store, source: source, retries: retries}
}

// Get returns the last-known counts, seeding the cache from the
// authoritative store when no snapshot exists yet.
func (c *CounterCache) Get(ctx context.Context) (map[string]int, error) {
	counts, ok, err := c.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		return counts, nil
	}
	return c.Recompute(ctx)
}

// Adjust applies delta to one type's count, flooring at zero. Errors are
// logged, never returned: counter accuracy degrades until the next
// recomputation rather than failing the request/withdraw path.
func (c *CounterCache) Adjust(ctx context.Context, typeKey string, delta int) {
	for attempt := 0; attempt < c.retries; attempt++ {
		err := c.store.Update(ctx, func(counts map[string]int) {
			n := counts[typeKey] + delta
			if n < 0 {
				n = 0
			}
			counts[typeKey] = n
		})
		if err == nil {
			return
		}
		if !errors.Is(err, ErrCounterConflict) {
			log.Printf("[COUNTER] Adjust %s by %d failed: %v", typeKey, delta, err)
			return
		}
	}
	log.Printf("[COUNTER] CAS retries exhausted for %s (delta %d); count stays skewed until recompute", typeKey, delta)
}

// Recompute replaces the snapshot with authoritative counts from the store.
func (c *CounterCache) Recompute(ctx context.Context) (map[string]int, error) {
	counts, err := c.source.RecomputeCounts(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.store.Seed(ctx, counts); err != nil {
		return nil, err
	}
	return counts, nil
}

// RedisCounterStore keeps the whole snapshot as one JSON value and uses
// WATCH/MULTI/EXEC for the conditional write.
type RedisCounterStore struct {
	rdb *redis.Client
}

func NewRedisCounterStore(rdb *redis.Client) *RedisCounterStore {
	return &RedisCounterStore{rdb: rdb}
}

func (s *RedisCounterStore) Load(ctx context.Context) (map[string]int, bool, error) {
	val, err := s.rdb.Get(ctx, countsKey).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	counts := make(map[string]int)
	if err := json.Unmarshal([]byte(val), &counts); err != nil {
		return nil, false, err
	}
	return counts, true, nil
}

func (s *RedisCounterStore) Seed(ctx context.Context, counts map[string]int) error {
	b, err := json.Marshal(counts)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, countsKey, b, 0).Err()
}

func (s *RedisCounterStore) Update(ctx context.Context, fn func(counts map[string]int)) error {
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		counts := make(map[string]int)
		val, err := tx.Get(ctx, countsKey).Result()
		if err != nil && err != redis.Nil {
			return err
		}
		if err == nil {
			if uerr := json.Unmarshal([]byte(val), &counts); uerr != nil {
				return uerr
			}
		}

		fn(counts)

		b, err := json.Marshal(counts)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, countsKey, b, 0)
			return nil
		})
		return err
	}, countsKey)

	if err == redis.TxFailedErr {
		return ErrCounterConflict
	}
	return err
}

// StartCounterWorker periodically recomputes the counter snapshot from the
// authoritative store so skew from lost CAS races heals on its own.
func StartCounterWorker(ctx context.Context, counters *CounterCache, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("[COUNTER] Recompute worker started (every %v)", interval)

	for {
		select {
		case <-ctx.Done():
			log.Printf("[COUNTER] Recompute worker stopped")
			return
		case <-ticker.C:
			if _, err := counters.Recompute(ctx); err != nil {
				log.Printf("[COUNTER] Scheduled recompute failed: %v", err)
			}
		}
	}
}
