package challenge

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/playskrafl/backend/internal/models"
)

// In-memory implementations of Store, RequestCache and CounterStore.
// They back the unit tests and let the service run without Postgres/Redis
// in local development.

// MemoryStore keeps open challenges in a map and tracks a version per type
// key so pairing transactions can detect concurrent mutations at commit.
type MemoryStore struct {
	mu       sync.Mutex
	rows     map[string]models.OpenChallenge
	versions map[string]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rows:     make(map[string]models.OpenChallenge),
		versions: make(map[string]int),
	}
}

func (s *MemoryStore) Add(ctx context.Context, ch models.OpenChallenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rows[ch.PlayerID]; ok {
		return ErrChallengeExists
	}
	if ch.CreatedAt.IsZero() {
		ch.CreatedAt = time.Now()
	}
	s.rows[ch.PlayerID] = ch
	s.versions[ch.TypeKey]++
	return nil
}

func (s *MemoryStore) Remove(ctx context.Context, playerID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.rows[playerID]
	if !ok {
		return "", false, nil
	}
	delete(s.rows, playerID)
	s.versions[ch.TypeKey]++
	return ch.TypeKey, true, nil
}

func (s *MemoryStore) Has(ctx context.Context, playerID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.rows[playerID]
	return ok, nil
}

func (s *MemoryStore) QueryByType(ctx context.Context, typeKey string, maxAge time.Duration, limit int) ([]models.OpenChallenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryLocked(typeKey, maxAge, limit), nil
}

func (s *MemoryStore) queryLocked(typeKey string, maxAge time.Duration, limit int) []models.OpenChallenge {
	cutoff := time.Now().Add(-maxAge)
	var out []models.OpenChallenge
	for _, ch := range s.rows {
		if ch.TypeKey == typeKey && ch.CreatedAt.After(cutoff) {
			out = append(out, ch)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *MemoryStore) RecomputeCounts(ctx context.Context) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[string]int)
	for _, ch := range s.rows {
		counts[ch.TypeKey]++
	}
	return counts, nil
}

func (s *MemoryStore) BeginPairing(ctx context.Context, typeKey string) (PairingTx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return &memoryPairingTx{
		store:   s,
		typeKey: typeKey,
		version: s.versions[typeKey],
	}, nil
}

type memoryPairingTx struct {
	store   *MemoryStore
	typeKey string
	version int
	deletes []string
	done    bool
}

func (t *memoryPairingTx) Rows(ctx context.Context, maxAge time.Duration, limit int) ([]models.OpenChallenge, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	return t.store.queryLocked(t.typeKey, maxAge, limit), nil
}

func (t *memoryPairingTx) Delete(ctx context.Context, player1ID, player2ID string) error {
	t.deletes = append(t.deletes, player1ID, player2ID)
	return nil
}

func (t *memoryPairingTx) Commit() error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	if t.done {
		return nil
	}
	t.done = true

	// Any mutation of this type since BeginPairing invalidates the pass.
	if t.store.versions[t.typeKey] != t.version {
		return ErrTxConflict
	}
	for _, id := range t.deletes {
		delete(t.store.rows, id)
	}
	if len(t.deletes) > 0 {
		t.store.versions[t.typeKey]++
	}
	return nil
}

func (t *memoryPairingTx) Rollback() error {
	t.done = true
	return nil
}

// MemoryRequestCache is the in-memory RequestCache double with real TTL
// expiry semantics.
type MemoryRequestCache struct {
	mu     sync.Mutex
	expiry map[string]time.Time
	ttl    time.Duration
}

func NewMemoryRequestCache(maxAge time.Duration) *MemoryRequestCache {
	return &MemoryRequestCache{expiry: make(map[string]time.Time), ttl: maxAge}
}

func (c *MemoryRequestCache) Set(ctx context.Context, playerID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expiry[playerID] = time.Now().Add(c.ttl)
	return nil
}

func (c *MemoryRequestCache) Has(ctx context.Context, playerID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	exp, ok := c.expiry[playerID]
	if !ok {
		return false, nil
	}
	if time.Now().After(exp) {
		delete(c.expiry, playerID)
		return false, nil
	}
	return true, nil
}

func (c *MemoryRequestCache) Delete(ctx context.Context, playerID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.expiry, playerID)
	return nil
}

// MemoryCounterStore is the in-memory CounterStore double. Conflicts can
// be injected with FailNextUpdates to exercise the bounded CAS loop.
type MemoryCounterStore struct {
	mu        sync.Mutex
	counts    map[string]int
	seeded    bool
	conflicts int
}

func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{}
}

// FailNextUpdates makes the next n Update calls fail with
// ErrCounterConflict before applying anything.
func (s *MemoryCounterStore) FailNextUpdates(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conflicts = n
}

func (s *MemoryCounterStore) Load(ctx context.Context) (map[string]int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.seeded {
		return nil, false, nil
	}
	return copyCounts(s.counts), true, nil
}

func (s *MemoryCounterStore) Seed(ctx context.Context, counts map[string]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counts = copyCounts(counts)
	s.seeded = true
	return nil
}

func (s *MemoryCounterStore) Update(ctx context.Context, fn func(counts map[string]int)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conflicts > 0 {
		s.conflicts--
		return ErrCounterConflict
	}
	if s.counts == nil {
		s.counts = make(map[string]int)
	}
	fn(s.counts)
	s.seeded = true
	return nil
}

func copyCounts(src map[string]int) map[string]int {
	dst := make(map[string]int, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
