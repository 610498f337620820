package challenge

import (
	"context"
	"errors"
	"time"

	"github.com/playskrafl/backend/internal/models"
)

// ErrChallengeExists is returned by Store.Add (and surfaced by
// Service.Request) when the player already has an open challenge.
var ErrChallengeExists = errors.New("player already has an open challenge")

// ErrTxConflict is returned by PairingTx.Commit when the type's rows were
// mutated concurrently. The matcher discards the type's outcome for the
// cycle and retries on the next tick.
var ErrTxConflict = errors.New("pairing transaction conflict")

// Store is the authoritative home of open challenges. The request cache
// and the counter cache are both derived from it.
type Store interface {
	// Add creates the row for ch.PlayerID, failing with ErrChallengeExists
	// if the player already has one. The existence check and the insert are
	// a single atomic write.
	Add(ctx context.Context, ch models.OpenChallenge) error

	// Remove deletes the player's row if present. It reports whether a row
	// existed and, if so, its type key so the caller can decrement the
	// right counter.
	Remove(ctx context.Context, playerID string) (typeKey string, existed bool, err error)

	// Has reports whether the player has an open challenge row.
	Has(ctx context.Context, playerID string) (bool, error)

	// QueryByType returns rows of the given type no older than maxAge,
	// oldest first. Re-querying reflects current store state.
	QueryByType(ctx context.Context, typeKey string, maxAge time.Duration, limit int) ([]models.OpenChallenge, error)

	// RecomputeCounts scans the whole table grouped by type key. Expensive;
	// used to seed and correct the counter cache.
	RecomputeCounts(ctx context.Context) (map[string]int, error)

	// BeginPairing opens a unit of work scoped to one type's rows for a
	// matcher pairing pass.
	BeginPairing(ctx context.Context, typeKey string) (PairingTx, error)
}

// PairingTx is the transactional scope of one type's pairing pass: re-read
// the candidate rows, delete the matched ones, then commit or roll back as
// a unit. Commit may fail with ErrTxConflict.
type PairingTx interface {
	Rows(ctx context.Context, maxAge time.Duration, limit int) ([]models.OpenChallenge, error)
	Delete(ctx context.Context, player1ID, player2ID string) error
	Commit() error
	Rollback() error
}
