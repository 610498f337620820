package game

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/playskrafl/backend/internal/config"
	"github.com/playskrafl/backend/internal/models"
	"github.com/redis/go-redis/v9"
)

// Launcher creates a game for two matched players. The matcher treats it
// as an external collaborator: when Create fails, both challenges stay
// queued and the pair is retried next cycle.
type Launcher interface {
	Create(ctx context.Context, player1ID, player2ID string, prefs models.ChallengePrefs) (string, error)
}

// SessionLauncher creates game_sessions rows and announces the match on
// the match_events channel so the notify layer can push it to connected
// players. Sessions expire on their own if neither player shows up, which
// is what makes the matchmaking races acceptable.
type SessionLauncher struct {
	db     *sqlx.DB
	rdb    *redis.Client
	expiry time.Duration
}

func NewSessionLauncher(db *sqlx.DB, rdb *redis.Client, cfg *config.Config) *SessionLauncher {
	return &SessionLauncher{
		db:     db,
		rdb:    rdb,
		expiry: time.Duration(cfg.GameExpiryMinutes) * time.Minute,
	}
}

func (l *SessionLauncher) Create(ctx context.Context, player1ID, player2ID string, prefs models.ChallengePrefs) (string, error) {
	gameToken := generateGameToken()
	expiryTime := time.Now().Add(l.expiry)

	var sessionID int
	err := l.db.QueryRowContext(ctx, `
		INSERT INTO game_sessions (game_token, player1_id, player2_id, prefs, status, created_at, expiry_time)
		VALUES ($1, $2, $3, $4, 'WAITING', NOW(), $5)
		RETURNING id
	`, gameToken, player1ID, player2ID, prefs, expiryTime).Scan(&sessionID)
	if err != nil {
		return "", fmt.Errorf("create game session: %w", err)
	}

	log.Printf("[GAME] Session created: id=%d token=%s players=[%s,%s]", sessionID, gameToken, player1ID, player2ID)

	l.publishMatchEvent(ctx, gameToken, player1ID, player2ID)

	return gameToken, nil
}

// publishMatchEvent is best-effort: delivery is the notify layer's
// problem, and a missed notification is an accepted gap.
func (l *SessionLauncher) publishMatchEvent(ctx context.Context, gameToken, player1ID, player2ID string) {
	if l.rdb == nil {
		return
	}
	payload, err := json.Marshal(map[string]interface{}{
		"type":       "match_found",
		"game_token": gameToken,
		"player1":    player1ID,
		"player2":    player2ID,
	})
	if err != nil {
		return
	}
	if err := l.rdb.Publish(ctx, "match_events", payload).Err(); err != nil {
		log.Printf("[GAME] Failed to publish match event for %s: %v", gameToken, err)
	}
}

// generateGameToken returns a short random hex token identifying the game session
func generateGameToken() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("g_%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}
