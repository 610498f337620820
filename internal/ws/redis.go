package ws

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"
)

var rdbClient *redis.Client

func SetRedisClient(r *redis.Client) {
	rdbClient = r
}

// StartMatchEventSubscriber subscribes to the match_events channel and
// pushes match_found messages to both matched players, if connected.
// The matchmaking core never depends on delivery; a player who misses the
// push sees the game on their next poll, or the session expires.
func StartMatchEventSubscriber(ctx context.Context) {
	if rdbClient == nil {
		log.Println("[WS] Redis client not set; match event subscriber not started")
		return
	}

	pubsub := rdbClient.Subscribe(ctx, "match_events")
	ch := pubsub.Channel()
	go func() {
		log.Println("[WS] match_events subscriber started")
		for msg := range ch {
			var payload struct {
				Type      string `json:"type"`
				GameToken string `json:"game_token"`
				Player1   string `json:"player1"`
				Player2   string `json:"player2"`
			}
			if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
				log.Printf("[WS] invalid match event payload: %v", err)
				continue
			}
			if payload.Type != "match_found" {
				continue
			}

			log.Printf("[WS] match event: game=%s players=[%s,%s]", payload.GameToken, payload.Player1, payload.Player2)

			MatchHub.SendToPlayer(payload.Player1, map[string]interface{}{
				"type":       "match_found",
				"game_token": payload.GameToken,
				"opponent":   payload.Player2,
			})
			MatchHub.SendToPlayer(payload.Player2, map[string]interface{}{
				"type":       "match_found",
				"game_token": payload.GameToken,
				"opponent":   payload.Player1,
			})
		}
	}()
}
