package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/connectedhumber/arena-locator/internal/arena"
	"github.com/connectedhumber/arena-locator/internal/observability"
	"github.com/connectedhumber/arena-locator/pkg/dto"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// client is a connected dashboard WebSocket.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub broadcasts robot-position updates to connected dashboard
// clients, adapted from a collections-API event hub down to its
// register/unregister/broadcast core — there is no per-client filter
// here since every dashboard wants the whole arena.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
	}
}

// Run starts the hub's event loop; call it in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			observability.WSConnections.Inc()

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				observability.WSConnections.Dec()
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					go func(c *client) { h.unregister <- c }(c)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// BroadcastRobots sends the current robot map to every connected
// client.
func (h *Hub) BroadcastRobots(robots map[string][3]int) {
	data, err := json.Marshal(dto.WSUpdate{Robots: robots})
	if err != nil {
		slog.Error("marshal ws update", "error", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
	}
}

// PublishLocations implements core.Publisher so the render loop can
// drive the dashboard broadcast the same way it drives the bus.
func (h *Hub) PublishLocations(robots map[int]arena.RobotPosition) {
	wire := make(map[string][3]int, len(robots))
	for id, pos := range robots {
		wire[strconv.Itoa(id)] = [3]int{pos.XMM, pos.YMM, pos.Heading}
	}
	h.BroadcastRobots(wire)
}

// HandleWS upgrades the request and registers the new client.
func (h *Hub) HandleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "error", err)
		return
	}

	cl := &client{conn: conn, send: make(chan []byte, 16)}
	h.register <- cl

	go cl.writePump()
	go cl.readPump(h)
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *client) readPump(h *Hub) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
