package models

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ChallengePrefs holds the game parameters attached to an open challenge.
// Duration is minutes per player (0 = untimed), clamped to 0..90 at the
// API boundary. The prefs are snapshotted on the challenge row and copied
// onto the game session when a match is made.
type ChallengePrefs struct {
	Duration int  `json:"duration"`
	Fairplay bool `json:"fairplay"`
	NewBag   bool `json:"newbag"`
	Manual   bool `json:"manual"`
}

// Value implements driver.Valuer so prefs can be stored in a jsonb column.
func (p ChallengePrefs) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Scan implements sql.Scanner for reading prefs back from jsonb.
func (p *ChallengePrefs) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	case nil:
		*p = ChallengePrefs{}
		return nil
	}
	return fmt.Errorf("cannot scan %T into ChallengePrefs", src)
}

// OpenChallenge is an "anyone will do" challenge waiting to be matched.
// At most one row exists per player (player_id is the primary key).
type OpenChallenge struct {
	PlayerID  string         `db:"player_id" json:"player_id"`
	TypeKey   string         `db:"type_key" json:"type_key"`
	Rating    int            `db:"rating" json:"rating"`
	Prefs     ChallengePrefs `db:"prefs" json:"prefs"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

// GameSession represents a game between two matched players
type GameSession struct {
	ID          int            `db:"id" json:"id"`
	GameToken   string         `db:"game_token" json:"game_token"`
	Player1ID   string         `db:"player1_id" json:"player1_id"`
	Player2ID   string         `db:"player2_id" json:"player2_id"`
	Prefs       ChallengePrefs `db:"prefs" json:"prefs"`
	Status      string         `db:"status" json:"status"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	StartedAt   sql.NullTime   `db:"started_at" json:"started_at,omitempty"`
	CompletedAt sql.NullTime   `db:"completed_at" json:"completed_at,omitempty"`
	ExpiryTime  time.Time      `db:"expiry_time" json:"expiry_time"`
}
