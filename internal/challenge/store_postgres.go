package challenge

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/playskrafl/backend/internal/models"
)

// PostgresStore is the durable Store backed by the open_challenges table.
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Add(ctx context.Context, ch models.OpenChallenge) error {
	// ON CONFLICT DO NOTHING makes the existence check part of the insert
	// itself, so two racing requests can never both create a row.
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO open_challenges (player_id, type_key, rating, prefs)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (player_id) DO NOTHING
	`, ch.PlayerID, ch.TypeKey, ch.Rating, ch.Prefs)
	if err != nil {
		return fmt.Errorf("insert open challenge: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrChallengeExists
	}
	return nil
}

func (s *PostgresStore) Remove(ctx context.Context, playerID string) (string, bool, error) {
	var typeKey string
	err := s.db.QueryRowContext(ctx, `
		DELETE FROM open_challenges WHERE player_id = $1 RETURNING type_key
	`, playerID).Scan(&typeKey)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("delete open challenge: %w", err)
	}
	return typeKey, true, nil
}

func (s *PostgresStore) Has(ctx context.Context, playerID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `
		SELECT EXISTS (SELECT 1 FROM open_challenges WHERE player_id = $1)
	`, playerID)
	return exists, err
}

func (s *PostgresStore) QueryByType(ctx context.Context, typeKey string, maxAge time.Duration, limit int) ([]models.OpenChallenge, error) {
	var rows []models.OpenChallenge
	err := s.db.SelectContext(ctx, &rows, `
		SELECT player_id, type_key, rating, prefs, created_at
		FROM open_challenges
		WHERE type_key = $1 AND created_at > $2
		ORDER BY created_at
		LIMIT $3
	`, typeKey, time.Now().Add(-maxAge), limit)
	return rows, err
}

func (s *PostgresStore) RecomputeCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT type_key, COUNT(*) FROM open_challenges GROUP BY type_key
	`)
	if err != nil {
		return nil, fmt.Errorf("recompute counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var typeKey string
		var n int
		if err := rows.Scan(&typeKey, &n); err != nil {
			return nil, err
		}
		counts[typeKey] = n
	}
	return counts, rows.Err()
}

func (s *PostgresStore) BeginPairing(ctx context.Context, typeKey string) (PairingTx, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin pairing tx: %w", err)
	}
	return &postgresPairingTx{tx: tx, typeKey: typeKey}, nil
}

type postgresPairingTx struct {
	tx      *sqlx.Tx
	typeKey string
}

func (t *postgresPairingTx) Rows(ctx context.Context, maxAge time.Duration, limit int) ([]models.OpenChallenge, error) {
	// FOR UPDATE SKIP LOCKED: rows claimed by a concurrent withdrawal (or
	// another runner, if the single-runner guarantee is ever violated)
	// simply drop out of the candidate set instead of blocking.
	var rows []models.OpenChallenge
	err := t.tx.SelectContext(ctx, &rows, `
		SELECT player_id, type_key, rating, prefs, created_at
		FROM open_challenges
		WHERE type_key = $1 AND created_at > $2
		ORDER BY created_at
		FOR UPDATE SKIP LOCKED
		LIMIT $3
	`, t.typeKey, time.Now().Add(-maxAge), limit)
	return rows, err
}

func (t *postgresPairingTx) Delete(ctx context.Context, player1ID, player2ID string) error {
	_, err := t.tx.ExecContext(ctx, `
		DELETE FROM open_challenges WHERE player_id IN ($1, $2)
	`, player1ID, player2ID)
	return err
}

func (t *postgresPairingTx) Commit() error {
	return t.tx.Commit()
}

func (t *postgresPairingTx) Rollback() error {
	return t.tx.Rollback()
}
