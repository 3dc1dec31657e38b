package dev

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// NotifyType represents the type of reload message.
type NotifyType string

const (
	NotifyReload NotifyType = "reload"
	NotifyError  NotifyType = "error"
	NotifyClear  NotifyType = "clear"
)

// NotifyMessage is sent to dev clients via WebSocket.
type NotifyMessage struct {
	Type  NotifyType `json:"type"`
	Error string     `json:"error,omitempty"`
}

// Notifier manages WebSocket connections for dev client refresh: it tells
// connected clients when the handler was swapped and shows reload errors.
type Notifier struct {
	mu       sync.RWMutex
	clients  map[*websocket.Conn]bool
	upgrader websocket.Upgrader
}

// NewNotifier creates a reload notifier.
func NewNotifier() *Notifier {
	return &Notifier{
		clients: make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // dev only
			},
		},
	}
}

// HandleWebSocket upgrades a dev client connection and parks it until the
// client disconnects.
func (n *Notifier) HandleWebSocket(w http.ResponseWriter, req *http.Request) {
	conn, err := n.upgrader.Upgrade(w, req, nil)
	if err != nil {
		return
	}

	n.mu.Lock()
	n.clients[conn] = true
	n.mu.Unlock()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	n.mu.Lock()
	delete(n.clients, conn)
	n.mu.Unlock()
	conn.Close()
}

// Reload tells all clients the handler was swapped.
func (n *Notifier) Reload() {
	n.broadcast(NotifyMessage{Type: NotifyReload})
}

// Error pushes a reload failure to all clients.
func (n *Notifier) Error(msg string) {
	n.broadcast(NotifyMessage{Type: NotifyError, Error: msg})
}

// Clear clears the error overlay on all clients.
func (n *Notifier) Clear() {
	n.broadcast(NotifyMessage{Type: NotifyClear})
}

// ClientCount returns the number of connected clients.
func (n *Notifier) ClientCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.clients)
}

// Close disconnects all clients.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for conn := range n.clients {
		conn.Close()
		delete(n.clients, conn)
	}
}

// broadcast sends a message to every connected client, dropping clients
// whose writes fail.
func (n *Notifier) broadcast(msg NotifyMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	n.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(n.clients))
	for conn := range n.clients {
		conns = append(conns, conn)
	}
	n.mu.RUnlock()

	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			n.mu.Lock()
			delete(n.clients, conn)
			n.mu.Unlock()
			conn.Close()
		}
	}
}
