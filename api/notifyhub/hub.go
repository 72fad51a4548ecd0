package notifyhub

import (
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"github.com/moyoez/fleet-notify/present"
	"github.com/moyoez/fleet-notify/tool"
	"github.com/moyoez/fleet-notify/types"
)

// Frame types pushed to gateway clients.
const (
	FrameSnapshot   = "snapshot"
	FrameConnection = "connection"
)

const writeTimeout = 2 * time.Second

// Frame is what gateway clients receive.
type Frame struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type client struct {
	mu   sync.Mutex // gorilla allows one concurrent writer
	conn *websocket.Conn
}

func (c *client) write(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Hub holds WebSocket connections and broadcasts store and connection changes
// to all of them. It implements store.Listener and session.ConnectionListener.
type Hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]*client
}

// New creates a new notify hub.
func New() *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]*client),
	}
}

// Register adds a WebSocket connection to the hub.
func (h *Hub) Register(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = &client{conn: conn}
}

// Unregister removes a WebSocket connection from the hub.
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, conn)
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// OnStoreChanged pushes the decorated snapshot to every client.
func (h *Hub) OnStoreChanged(snapshot types.Snapshot) {
	h.Broadcast(FrameSnapshot, present.NewSnapshotView(snapshot, time.Now()))
}

// OnConnectionChanged pushes the connection status to every client.
func (h *Hub) OnConnectionChanged(status types.ConnectionStatus) {
	h.Broadcast(FrameConnection, status)
}

// Broadcast sends one frame to all registered connections.
func (h *Hub) Broadcast(frameType string, data any) {
	payload, err := sonic.Marshal(Frame{Type: frameType, Data: data})
	if err != nil {
		tool.DefaultLogger.Errorf("[NotifyHub] Failed to marshal %s frame: %v", frameType, err)
		return
	}

	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if err := c.write(payload); err != nil {
			tool.DefaultLogger.Debugf("[NotifyHub] Failed to push %s frame: %v", frameType, err)
		}
	}
}

// Send writes one frame to a single registered connection.
func (h *Hub) Send(conn *websocket.Conn, frameType string, data any) error {
	h.mu.RLock()
	c, ok := h.clients[conn]
	h.mu.RUnlock()
	if !ok {
		return nil
	}
	payload, err := sonic.Marshal(Frame{Type: frameType, Data: data})
	if err != nil {
		return err
	}
	return c.write(payload)
}
