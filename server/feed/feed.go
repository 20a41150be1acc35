package feed

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"downpour/server/internal/events"
	"downpour/server/internal/job"
)

const writeWait = time.Second * 10

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Message is one event pushed to connected clients.
type Message struct {
	Type string       `json:"type"` // "state" or "progress"
	Job  job.Snapshot `json:"job"`
}

// Hub pushes job events to every connected websocket client.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan Message
}

func NewHub(bus *events.Bus) (*Hub, error) {
	h := &Hub{clients: make(map[*client]struct{})}

	if err := bus.SubscribeState(func(s job.Snapshot) {
		h.broadcast(Message{Type: "state", Job: s})
	}); err != nil {
		return nil, err
	}

	if err := bus.SubscribeProgress(func(s job.Snapshot) {
		h.broadcast(Message{Type: "progress", Job: s})
	}); err != nil {
		return nil, err
	}

	return h, nil
}

func (h *Hub) broadcast(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			// slow consumer, drop it
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// Handler upgrades the request and streams events until the client
// goes away.
func (h *Hub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Error("websocket upgrade failed", slog.Any("err", err))
			return
		}

		c := &client{conn: conn, send: make(chan Message, 32)}

		h.mu.Lock()
		h.clients[c] = struct{}{}
		h.mu.Unlock()

		go c.writeLoop()
		c.readLoop(h)
	}
}

func (c *client) writeLoop() {
	defer c.conn.Close()

	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// readLoop only exists to detect disconnects.
func (c *client) readLoop(h *Hub) {
	defer func() {
		h.mu.Lock()
		if _, ok := h.clients[c]; ok {
			delete(h.clients, c)
			close(c.send)
		}
		h.mu.Unlock()
		c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
