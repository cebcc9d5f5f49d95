package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// Hub fans run events out to websocket clients. Each client subscribes to a
// single run ID.
type Hub struct {
	register   chan *wsClient
	unregister chan *wsClient
	clients    map[*wsClient]bool
	broadcast  chan RunEvent
	done       chan struct{}
	stopOnce   sync.Once
}

type wsClient struct {
	hub   *Hub
	conn  *websocket.Conn
	runID string
	send  chan []byte
}

// NewHub creates a websocket hub; Run must be started on its own goroutine.
func NewHub() *Hub {
	return &Hub{
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		clients:    make(map[*wsClient]bool),
		broadcast:  make(chan RunEvent, 256),
		done:       make(chan struct{}),
	}
}

// Run dispatches registrations and events until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			return
		case c := <-h.register:
			h.clients[c] = true
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
		case event := <-h.broadcast:
			data, err := json.Marshal(event)
			if err != nil {
				slog.Error("Failed to marshal ws event", "error", err)
				continue
			}
			for c := range h.clients {
				if c.runID != event.RunID {
					continue
				}
				select {
				case c.send <- data:
				default:
					// slow client, drop it rather than stall the run
					delete(h.clients, c)
					close(c.send)
				}
			}
		}
	}
}

// Stop terminates the Run loop and disconnects every client. Safe to call
// more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// BroadcastEvent queues an event for websocket delivery; drops when the hub
// is saturated so the run never blocks on slow consumers.
func (h *Hub) BroadcastEvent(event RunEvent) {
	select {
	case h.broadcast <- event:
	default:
		slog.Warn("Websocket hub saturated, dropping event", "runID", event.RunID, "type", event.Type)
	}
}

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// handleRunWS upgrades the connection and streams one run's events.
func (s *Server) handleRunWS(w http.ResponseWriter, r *http.Request, runID string) {
	if _, exists := s.runManager.GetRun(runID); !exists {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Websocket upgrade failed", "error", err)
		return
	}

	client := &wsClient{hub: s.hub, conn: conn, runID: runID, send: make(chan []byte, 256)}
	select {
	case s.hub.register <- client:
	case <-s.hub.done:
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (c *wsClient) writePump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// readPump discards client messages and notices disconnects.
func (c *wsClient) readPump() {
	defer c.conn.Close()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
