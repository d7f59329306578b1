package gateway

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

// Client represents a single WebSocket peer.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
}

// sendLatest pushes the newest envelope per symbol so a fresh client sees
// current state without waiting for the next alert.
func (c *Client) sendLatest() {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()

	for _, data := range c.hub.latest {
		select {
		case c.send <- data:
		default:
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))

			// Write coalescing: batch queued messages into one frame with
			// newline separators
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(msg)

			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
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

func (c *Client) readPump() {
	defer func() {
		c.hub.RemoveClient(c)
		c.conn.Close()
		log.Println("[gateway] ws client disconnected")
	}()

	c.conn.SetReadLimit(1024)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			break
		}

		// The only inbound message is a replay request after a detected
		// sequence gap, optionally narrowed to one symbol.
		var req struct {
			Type    string `json:"type"`
			FromSeq int64  `json:"from_seq"`
			ToSeq   int64  `json:"to_seq"`
			Symbol  string `json:"symbol"`
		}
		if json.Unmarshal(msg, &req) != nil || req.Type != "REPLAY" {
			continue
		}

		for _, data := range c.hub.Replay(req.FromSeq, req.ToSeq, req.Symbol) {
			select {
			case c.send <- data:
			default:
			}
		}
	}
}
