// Package feed pushes each new Reading to live subscribers.
package feed

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"envlogger/bus"
	"envlogger/types"
)

const (
	writeWait  = 5 * time.Second
	sendBuffer = 4
)

// Hub broadcasts the temperature text of every Reading to all connected
// WebSocket clients. A client that cannot keep up is dropped.
type Hub struct {
	log      *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	ws   *websocket.Conn
	send chan []byte
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		log:      log,
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		clients:  make(map[*client]struct{}),
	}
}

// Start subscribes to Readings and forwards them until ctx is done.
func (h *Hub) Start(ctx context.Context, conn *bus.Connection) {
	sub := conn.Subscribe(types.TopicReading)
	// The retained replay is history, not news.
	drain(sub)
	go h.loop(ctx, conn, sub)
}

func (h *Hub) loop(ctx context.Context, conn *bus.Connection, sub *bus.Subscription) {
	defer conn.Unsubscribe(sub)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case msg, ok := <-sub.Channel():
			if !ok {
				return
			}
			r, ok := msg.Payload.(types.Reading)
			if !ok {
				continue
			}
			h.Broadcast(types.FormatTemperature(r.TemperatureC))
		}
	}
}

func drain(sub *bus.Subscription) {
	for {
		select {
		case <-sub.Channel():
		default:
			return
		}
	}
}

// Broadcast queues text for every client.
func (h *Hub) Broadcast(text string) {
	b := []byte(text)
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- b:
		default:
			h.log.Debug("dropping slow websocket client", zap.String("remote", c.ws.RemoteAddr().String()))
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// Clients is the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	c := &client{ws: ws, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.log.Debug("websocket client connected", zap.String("remote", ws.RemoteAddr().String()))

	go h.writeLoop(c)
	go h.readLoop(c)
}

func (h *Hub) writeLoop(c *client) {
	defer c.ws.Close()
	for b := range c.send {
		_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.ws.WriteMessage(websocket.TextMessage, b); err != nil {
			h.remove(c)
			return
		}
	}
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}

// readLoop discards client frames and notices disconnects.
func (h *Hub) readLoop(c *client) {
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			h.remove(c)
			return
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
