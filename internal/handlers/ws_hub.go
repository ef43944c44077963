package handlers

import (
	"sync"

	"github.com/goccy/go-json"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/mroshb/debate_hub/internal/session"
	"github.com/mroshb/debate_hub/pkg/logger"
)

const clientSendBuffer = 64

// Frame is the envelope of every websocket message in both directions.
type Frame struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type wsClient struct {
	id            uuid.UUID
	sessionID     string
	participantID string
	conn          *websocket.Conn
	send          chan []byte
	closeOnce     sync.Once
}

func newClient(sessionID, participantID string, conn *websocket.Conn) *wsClient {
	return &wsClient{
		id:            uuid.New(),
		sessionID:     sessionID,
		participantID: participantID,
		conn:          conn,
		send:          make(chan []byte, clientSendBuffer),
	}
}

// enqueue never blocks. A client too slow to drain its buffer loses frames.
func (c *wsClient) enqueue(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *wsClient) close() {
	c.closeOnce.Do(func() { close(c.send) })
}

// writePump is the only writer of the connection.
func (c *wsClient) writePump() {
	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			logger.Debug("Websocket write failed", "session_id", c.sessionID, "participant_id", c.participantID, "error", err)
			for range c.send {
			}
			return
		}
	}
}

// Hub fans session notifications out to connected sockets.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]map[uuid.UUID]*wsClient
}

func NewHub() *Hub {
	return &Hub{sessions: make(map[string]map[uuid.UUID]*wsClient)}
}

// Notify implements session.Notifier.
func (h *Hub) Notify(n session.Notification) {
	data, err := json.Marshal(Frame{Event: n.Event, Data: n.Data})
	if err != nil {
		logger.Error("Failed to encode notification", "event", n.Event, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.sessions[n.SessionID] {
		if n.ParticipantID != "" && c.participantID != n.ParticipantID {
			continue
		}
		if !c.enqueue(data) {
			logger.Warn("Dropping frame for slow client", "session_id", n.SessionID, "participant_id", c.participantID, "event", n.Event)
		}
	}
}

// SessionClients counts sockets attached to a session.
func (h *Hub) SessionClients(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

// Close disconnects every client. Their read loops fail and unregister on their own.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, clients := range h.sessions {
		for _, c := range clients {
			c.close()
			if c.conn != nil {
				_ = c.conn.Close()
			}
		}
		delete(h.sessions, id)
	}
}

// deliver enqueues data for one client while it is still registered.
// The send channel is only closed under the write lock, so this never races a close.
func (h *Hub) deliver(c *wsClient, data []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.sessions[c.sessionID][c.id] != c {
		return false
	}
	return c.enqueue(data)
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.sessions[c.sessionID]
	if !ok {
		clients = make(map[uuid.UUID]*wsClient)
		h.sessions[c.sessionID] = clients
	}
	clients[c.id] = c
}

// unregister reports how many sockets the participant still has in the session.
func (h *Hub) unregister(c *wsClient) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	c.close()
	clients := h.sessions[c.sessionID]
	delete(clients, c.id)
	if len(clients) == 0 {
		delete(h.sessions, c.sessionID)
	}

	remaining := 0
	for _, other := range clients {
		if other.participantID == c.participantID {
			remaining++
		}
	}
	return remaining
}
