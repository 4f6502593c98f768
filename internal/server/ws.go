package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/ayusman/rtspwatch/internal/eventlog"
	"github.com/gorilla/websocket"
)

const (
	// clientBuffer is how many messages a slow client may lag behind
	// before messages to it are dropped.
	clientBuffer = 32
	writeWait    = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// eventMessage is the websocket payload for one recorded event.
type eventMessage struct {
	Type  string         `json:"type"`
	Event eventlog.Event `json:"event"`
}

// EventHub pushes recorded events to websocket clients.
type EventHub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]chan []byte
	closed  bool
}

// NewEventHub creates an empty hub.
func NewEventHub() *EventHub {
	return &EventHub{clients: make(map[*websocket.Conn]chan []byte)}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *EventHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	send := make(chan []byte, clientBuffer)
	if !h.add(conn, send) {
		return
	}
	defer h.remove(conn)

	// Reading notices when the client goes away; incoming messages are
	// ignored.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case msg, ok := <-send:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-gone:
			return
		}
	}
}

// Publish implements app.Publisher. It never blocks the caller.
func (h *EventHub) Publish(e eventlog.Event) {
	msg, err := json.Marshal(eventMessage{Type: "event", Event: e})
	if err != nil {
		log.Printf("websocket: encode event: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for conn, send := range h.clients {
		select {
		case send <- msg:
		default:
			log.Printf("websocket: client %s lagging, dropped event", conn.RemoteAddr())
		}
	}
}

// Clients returns the number of connected clients.
func (h *EventHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and rejects new ones.
func (h *EventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for conn, send := range h.clients {
		close(send)
		delete(h.clients, conn)
	}
}

func (h *EventHub) add(conn *websocket.Conn, send chan []byte) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[conn] = send
	return true
}

func (h *EventHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, conn)
}
