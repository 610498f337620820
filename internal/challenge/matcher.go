package challenge

import (
	"context"
	"log"
	"math/rand"
	"sort"
	"time"

	"github.com/playskrafl/backend/internal/game"
)

// Matcher runs the periodic pairing pass. Exactly one instance may be
// active system-wide at a time; that guarantee comes from the deployment
// (one worker goroutine in one process, or one external cron hitting the
// trigger endpoint), not from locking in here.
type Matcher struct {
	store    Store
	cache    RequestCache
	counters *CounterCache
	launcher game.Launcher

	maxAge     time.Duration
	batchLimit int

	// pickDescending chooses the cycle's rating sort direction; swapped
	// out in tests for a fixed direction.
	pickDescending func() bool
}

func NewMatcher(store Store, cache RequestCache, counters *CounterCache, launcher game.Launcher, maxAge time.Duration, batchLimit int) *Matcher {
	if batchLimit <= 0 {
		batchLimit = 100
	}
	return &Matcher{
		store:          store,
		cache:          cache,
		counters:       counters,
		launcher:       launcher,
		maxAge:         maxAge,
		batchLimit:     batchLimit,
		pickDescending: func() bool { return rand.Intn(2) == 1 },
	}
}

// RunMatchCycle executes one match cycle: pick candidate types from the
// advisory counters, pair each type's rows inside its own transaction and
// launch a game per pair.
func (m *Matcher) RunMatchCycle(ctx context.Context) error {
	counts, err := m.counters.Get(ctx)
	if err != nil {
		return err
	}

	// One sort direction for the whole cycle. Re-choosing per type would
	// leave the same end of the rating range unmatched whenever a type has
	// an odd count.
	descending := m.pickDescending()

	for typeKey, n := range counts {
		if n < 2 {
			continue
		}
		pairs := m.pairType(ctx, typeKey, descending)
		if pairs > 0 {
			m.counters.Adjust(ctx, typeKey, -2*pairs)
		}
	}
	return nil
}

// pairType pairs one candidate type inside its own transactional scope and
// returns the number of pairs committed. Every failure mode here is a
// "try again next cycle", never an error for the cycle.
func (m *Matcher) pairType(ctx context.Context, typeKey string, descending bool) int {
	tx, err := m.store.BeginPairing(ctx, typeKey)
	if err != nil {
		log.Printf("[MATCHER] Failed to begin pairing for type %s: %v", typeKey, err)
		return 0
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	// Re-read under the transaction: the advisory counter may have been
	// stale, or a withdrawal may have raced us.
	rows, err := tx.Rows(ctx, m.maxAge, m.batchLimit)
	if err != nil {
		log.Printf("[MATCHER] Failed to query type %s: %v", typeKey, err)
		return 0
	}
	if len(rows) < 2 {
		return 0
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if descending {
			return rows[i].Rating > rows[j].Rating
		}
		return rows[i].Rating < rows[j].Rating
	})

	// Pair consecutive rows; an odd count leaves the trailing row for the
	// next cycle.
	var matched []string
	pairs := 0
	for i := 0; i+1 < len(rows); i += 2 {
		a, b := rows[i], rows[i+1]

		gameID, err := m.launcher.Create(ctx, a.PlayerID, b.PlayerID, a.Prefs)
		if err != nil {
			// This pair stays queued and is retried next cycle; other
			// pairs of the same type are unaffected.
			log.Printf("[MATCHER] Game creation failed for %s vs %s (type=%s): %v", a.PlayerID, b.PlayerID, typeKey, err)
			continue
		}
		if err := tx.Delete(ctx, a.PlayerID, b.PlayerID); err != nil {
			log.Printf("[MATCHER] Row deletion failed for type %s, aborting pass: %v", typeKey, err)
			return 0
		}

		pairs++
		matched = append(matched, a.PlayerID, b.PlayerID)
		log.Printf("[MATCHER] ✓ Matched %s (%d) vs %s (%d) type=%s game=%s", a.PlayerID, a.Rating, b.PlayerID, b.Rating, typeKey, gameID)
	}
	if pairs == 0 {
		return 0
	}

	if err := tx.Commit(); err != nil {
		// Concurrent mutation of this type's rows; the whole pass is
		// discarded and retried next cycle.
		log.Printf("[MATCHER] Commit failed for type %s, discarding pass: %v", typeKey, err)
		return 0
	}
	committed = true

	// The markers are advisory, so clearing them after the commit is safe;
	// a leftover marker only delays the player's next request until the
	// store says otherwise.
	for _, playerID := range matched {
		if err := m.cache.Delete(ctx, playerID); err != nil {
			log.Printf("[MATCHER] Failed to clear cache marker for %s: %v", playerID, err)
		}
	}
	return pairs
}

// StartMatchWorker runs match cycles on a fixed interval until ctx is
// cancelled. Run at most one of these per deployment; the interval should
// exceed the expected cycle duration.
func StartMatchWorker(ctx context.Context, m *Matcher, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("[MATCHER] Match worker started (every %v)", interval)

	for {
		select {
		case <-ctx.Done():
			log.Printf("[MATCHER] Match worker stopped")
			return
		case <-ticker.C:
			if err := m.RunMatchCycle(ctx); err != nil {
				log.Printf("[MATCHER] Match cycle failed: %v", err)
			}
		}
	}
}
