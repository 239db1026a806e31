package web

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dbehnke/wwvb-sync/pkg/clock"
	"github.com/dbehnke/wwvb-sync/pkg/logger"
)

const writeWait = 5 * time.Second

// Event represents a WebSocket event to be broadcast to clients
type Event struct {
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Marshal converts an event to JSON bytes
func (e *Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Client represents a WebSocket client connection
type Client struct {
	ID       string
	conn     *websocket.Conn
	messages chan []byte
}

// WebSocketHub manages WebSocket client connections and broadcasts
type WebSocketHub struct {
	clients    map[*Client]bool
	broadcast  chan Event
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	greeting   func() Event
	logger     *logger.Logger
	mu         sync.RWMutex
}

// NewWebSocketHub creates a new WebSocket hub
func NewWebSocketHub(log *logger.Logger) *WebSocketHub {
	return &WebSocketHub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     log,
	}
}

// SetGreeting sets the event sent to every client right after it connects
func (h *WebSocketHub) SetGreeting(fn func() Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.greeting = fn
}

// Run starts the WebSocket hub event loop
func (h *WebSocketHub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug("WebSocket client registered",
				logger.String("client_id", client.ID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.messages)
			}
			h.mu.Unlock()
			h.logger.Debug("WebSocket client unregistered",
				logger.String("client_id", client.ID))

		case event := <-h.broadcast:
			data, err := event.Marshal()
			if err != nil {
				h.logger.Error("Failed to marshal event",
					logger.Error(err))
				continue
			}

			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.messages <- data:
				default:
					h.logger.Warn("Client message buffer full, skipping",
						logger.String("client_id", client.ID))
				}
			}
			h.mu.RUnlock()

		case <-ctx.Done():
			h.logger.Info("WebSocket hub shutting down")
			h.mu.Lock()
			for client := range h.clients {
				close(client.messages)
			}
			h.clients = make(map[*Client]bool)
			h.mu.Unlock()
			return
		}
	}
}

// Broadcast sends an event to all connected clients
func (h *WebSocketHub) Broadcast(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("Broadcast channel full, dropping event",
			logger.String("event_type", event.Type))
	}
}

// HandleEvent implements clock.Listener
func (h *WebSocketHub) HandleEvent(_ context.Context, ev clock.Event) error {
	h.Broadcast(EventFromClock(ev))
	return nil
}

// EventFromClock converts a pipeline event to its WebSocket form
func EventFromClock(ev clock.Event) Event {
	data := snapshotData(ev.Snapshot)
	if ev.Type == clock.EventFailed {
		data["reason"] = ev.Reason.String()
		data["bit_count"] = ev.BitCount
		if ev.Err != nil {
			data["error"] = ev.Err.Error()
		}
	}
	return Event{Type: string(ev.Type), Timestamp: ev.At, Data: data}
}

// StatusEvent describes the current clock state
func StatusEvent(snap clock.Snapshot) Event {
	return Event{Type: "status", Timestamp: time.Now(), Data: snapshotData(snap)}
}

func snapshotData(snap clock.Snapshot) map[string]interface{} {
	return map[string]interface{}{
		"synced":      snap.Synced,
		"local_time":  snap.Local.String(),
		"weekday":     snap.Local.Weekday.String(),
		"day_of_year": snap.Local.DayOfYear,
		"dst":         snap.Local.DST.String(),
		"offset":      snap.Offset,
		"utc_offset":  snap.Local.UTCOffsetHours(),
		"successes":   snap.Successes,
		"failures":    snap.Failures,
	}
}

// Handler returns an HTTP handler for WebSocket connections
func (h *WebSocketHub) Handler() http.Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already written the error response
			return
		}
		client := &Client{ID: uuid.NewString(), conn: conn, messages: make(chan []byte, 256)}

		h.mu.RLock()
		greeting := h.greeting
		h.mu.RUnlock()
		if greeting != nil {
			ev := greeting()
			if data, err := ev.Marshal(); err == nil {
				client.messages <- data
			}
		}

		select {
		case h.register <- client:
		case <-h.done:
			_ = conn.Close()
			return
		}

		// Reader goroutine: drain reads to detect close
		go func() {
			defer func() {
				select {
				case h.unregister <- client:
				case <-h.done:
				}
				_ = client.conn.Close()
			}()
			client.conn.SetReadLimit(1024)
			for {
				if _, _, err := client.conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		go func() {
			for msg := range client.messages {
				_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := client.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					_ = client.conn.Close()
				}
			}
			_ = client.conn.WriteMessage(websocket.CloseMessage, []byte{})
		}()
	})
}

// GetClientCount returns the number of connected clients
func (h *WebSocketHub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
