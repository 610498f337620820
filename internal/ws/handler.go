package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

// Client represents a connected WebSocket client waiting for match news
type Client struct {
	conn     *websocket.Conn
	playerID string
	send     chan []byte
}

// Hub maintains the set of connected clients, one per player
type Hub struct {
	clients map[string]*Client
	mu      sync.RWMutex
}

// MatchHub is the process-wide notification hub
var MatchHub = NewHub()

func NewHub() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// A new connection replaces any previous one for the same player
	if old, exists := h.clients[c.playerID]; exists {
		close(old.send)
	}
	h.clients[c.playerID] = c
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, exists := h.clients[c.playerID]; exists && current == c {
		delete(h.clients, c.playerID)
		close(c.send)
	}
}

// SendToPlayer sends a message to a specific player. Delivery is
// best-effort: an absent or slow client just misses the message.
func (h *Hub) SendToPlayer(playerID string, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("[WS] Error marshaling message: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if client, exists := h.clients[playerID]; exists {
		select {
		case client.send <- data:
			// sent
		default:
			log.Printf("[WS] SendToPlayer dropped message for player %s (buffer full)", playerID)
		}
	} else {
		log.Printf("[WS] SendToPlayer no client for player %s", playerID)
	}
}

// HandleChallengeWS upgrades the connection and parks it until a match
// event arrives for the player. Requires the auth middleware to have set
// player_id.
func HandleChallengeWS() gin.HandlerFunc {
	return func(c *gin.Context) {
		playerID := c.GetString("player_id")
		if playerID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing player identity"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("[WS] Upgrade failed for player %s: %v", playerID, err)
			return
		}

		client := &Client{conn: conn, playerID: playerID, send: make(chan []byte, 16)}
		MatchHub.register(client)
		log.Printf("[WS] Player %s connected for match notifications", playerID)

		go client.writePump()
		client.readPump()
	}
}

// readPump drains the connection until it closes; clients send nothing we
// act on, the socket exists for server pushes.
func (c *Client) readPump() {
	defer func() {
		MatchHub.unregister(c)
		c.conn.Close()
		log.Printf("[WS] Player %s disconnected", c.playerID)
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump writes messages to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// Channel closed — connection is being replaced or cleaned up.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("[WS] Write error for player %s: %v", c.playerID, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
