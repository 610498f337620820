package challenge

import (
	"context"
	"errors"
	"log"

	"github.com/playskrafl/backend/internal/models"
)

// Service implements the request/withdraw side of open-challenge
// matchmaking. The store is authoritative; the request cache only
// short-circuits the common "already queued" case, and the counter cache
// is advisory input for the matcher.
type Service struct {
	store    Store
	cache    RequestCache
	counters *CounterCache
}

func NewService(store Store, cache RequestCache, counters *CounterCache) *Service {
	return &Service{store: store, cache: cache, counters: counters}
}

// Request creates an open challenge for the player. Returns
// ErrChallengeExists if the player already has one queued.
func (s *Service) Request(ctx context.Context, playerID string, rating int, prefs models.ChallengePrefs) error {
	prefs = NormalizePrefs(prefs)
	typeKey := DeriveTypeKey(prefs)

	// Fast path: a live cache marker means a request is already queued.
	// A cache error or miss is not proof of absence, so fall through to
	// the store either way.
	hit, err := s.cache.Has(ctx, playerID)
	if err != nil {
		log.Printf("[CHALLENGE] Request cache lookup failed for %s: %v", playerID, err)
	} else if hit {
		return ErrChallengeExists
	}

	ch := models.OpenChallenge{
		PlayerID: playerID,
		TypeKey:  typeKey,
		Rating:   rating,
		Prefs:    prefs,
	}
	if err := s.store.Add(ctx, ch); err != nil {
		if errors.Is(err, ErrChallengeExists) {
			// The row outlived its cache marker; re-seed the marker so
			// the next duplicate request is answered from the cache.
			if cerr := s.cache.Set(ctx, playerID); cerr != nil {
				log.Printf("[CHALLENGE] Failed to re-seed cache marker for %s: %v", playerID, cerr)
			}
		}
		return err
	}

	if err := s.cache.Set(ctx, playerID); err != nil {
		log.Printf("[CHALLENGE] Failed to set cache marker for %s: %v", playerID, err)
	}
	s.counters.Adjust(ctx, typeKey, +1)

	log.Printf("[CHALLENGE] Player %s queued (type=%s rating=%d)", playerID, typeKey, rating)
	return nil
}

// Withdraw removes the player's open challenge. Withdrawing with no
// challenge queued is a no-op, not an error.
func (s *Service) Withdraw(ctx context.Context, playerID string) error {
	typeKey, existed, err := s.store.Remove(ctx, playerID)
	if err != nil {
		return err
	}

	if cerr := s.cache.Delete(ctx, playerID); cerr != nil {
		log.Printf("[CHALLENGE] Failed to clear cache marker for %s: %v", playerID, cerr)
	}
	if existed {
		s.counters.Adjust(ctx, typeKey, -1)
		log.Printf("[CHALLENGE] Player %s withdrew (type=%s)", playerID, typeKey)
	}
	return nil
}

// ActiveRequest reports whether the player has an open challenge. A cache
// hit is trusted; a miss is re-checked against the store and the marker is
// re-seeded when the row is still there.
func (s *Service) ActiveRequest(ctx context.Context, playerID string) (bool, error) {
	hit, err := s.cache.Has(ctx, playerID)
	if err != nil {
		log.Printf("[CHALLENGE] Request cache lookup failed for %s: %v", playerID, err)
	} else if hit {
		return true, nil
	}

	has, err := s.store.Has(ctx, playerID)
	if err != nil {
		return false, err
	}
	if has {
		if cerr := s.cache.Set(ctx, playerID); cerr != nil {
			log.Printf("[CHALLENGE] Failed to re-seed cache marker for %s: %v", playerID, cerr)
		}
	}
	return has, nil
}
