// Package gateway fans live alerts out to WebSocket subscribers
// (dashboards, auto-trading connectors). Every broadcast carries a
// monotonic sequence number; a replay buffer lets clients that notice a
// gap backfill missed envelopes over the same connection.
package gateway

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"bondscan/internal/markethours"
	"bondscan/internal/model"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Dashboard origins are deployment-specific; access control sits in
	// front of this service.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub manages WebSocket clients and alert fan-out.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	latest  map[string]json.RawMessage // newest envelope per symbol
	seq     int64
	replay  *ReplayBuffer
}

// NewHub creates a hub with the given replay capacity.
func NewHub(replayCapacity int) *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		latest:  make(map[string]json.RawMessage),
		replay:  NewReplayBuffer(replayCapacity),
	}
}

// envelope is the wire format pushed to subscribers.
type envelope struct {
	Type  string       `json:"type"` // "alert", "replay", "status"
	Seq   int64        `json:"seq"`
	TS    string       `json:"ts"`
	Alert *model.Alert `json:"alert,omitempty"`
}

// Broadcast pushes one alert to every connected client. Slow clients are
// skipped, not waited on; they can recover via replay.
func (h *Hub) Broadcast(alert model.Alert) {
	h.mu.Lock()
	h.seq++
	env := envelope{
		Type:  "alert",
		Seq:   h.seq,
		TS:    time.Now().UTC().Format(time.RFC3339Nano),
		Alert: &alert,
	}
	data, err := json.Marshal(env)
	if err != nil {
		h.mu.Unlock()
		log.Printf("[gateway] marshal alert: %v", err)
		return
	}
	h.latest[alert.Symbol] = data
	h.replay.Push(h.seq, alert.Symbol, data)

	for client := range h.clients {
		select {
		case client.send <- data:
		default:
		}
	}
	h.mu.Unlock()
}

// Replay returns buffered envelopes with seq in [fromSeq, toSeq], for one
// symbol when symbol is non-empty.
func (h *Hub) Replay(fromSeq, toSeq int64, symbol string) [][]byte {
	entries := h.replay.Range(fromSeq, toSeq, symbol)
	out := make([][]byte, len(entries))
	for i, e := range entries {
		out[i] = e.Data
	}
	return out
}

// Seq returns the last broadcast sequence number.
func (h *Hub) Seq() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.seq
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWS upgrades an HTTP request and registers the client.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[gateway] ws upgrade: %v", err)
		return
	}

	client := &Client{
		conn: conn,
		send: make(chan []byte, 256),
		hub:  h,
	}

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	log.Printf("[gateway] ws client connected (%d total)", count)

	go client.sendLatest()
	go client.writePump()
	go client.readPump()
}

// RemoveClient removes a client from the hub.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// StartStatusBroadcast sends market status to all clients every interval.
// Blocks until ctx is cancelled; callers run it on its own goroutine.
func (h *Hub) StartStatusBroadcast(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			data, _ := json.Marshal(map[string]interface{}{
				"type":         "status",
				"ts":           now.UTC().Format(time.RFC3339Nano),
				"marketOpen":   markethours.IsMarketOpen(now),
				"marketStatus": markethours.StatusString(now),
			})
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- data:
				default:
				}
			}
			h.mu.RUnlock()
		}
	}
}
