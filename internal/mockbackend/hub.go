package mockbackend

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/eyes-gesture/eyes-client/internal/models"
	"github.com/eyes-gesture/eyes-client/pkg/debug"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Maximum command size accepted from a client
	maxMessageSize = 64 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 64 * 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsClient is one push-channel subscriber
type wsClient struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// hub tracks connected push-channel clients
type hub struct {
	mu      sync.RWMutex
	clients map[string]*wsClient
}

func newHub() *hub {
	return &hub{clients: make(map[string]*wsClient)}
}

func (h *hub) add(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
}

func (h *hub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[id]; ok {
		c.conn.Close()
		delete(h.clients, id)
	}
}

func (h *hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *hub) snapshot() []*wsClient {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*wsClient, 0, len(h.clients))
	for _, c := range h.clients {
		out = append(out, c)
	}
	return out
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		debug.Error("Failed to upgrade connection: %v", err)
		return
	}

	client := &wsClient{id: uuid.New().String(), conn: conn}
	s.hub.add(client)
	debug.Info("Push client %s connected (%d total)", client.id, s.hub.count())

	go s.readCommands(client)
}

// readCommands drains client commands until the connection drops
func (s *Server) readCommands(c *wsClient) {
	defer func() {
		s.hub.remove(c.id)
		debug.Info("Push client %s disconnected", c.id)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				debug.Warning("Push client %s read error: %v", c.id, err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var cmd models.Command
		if err := json.Unmarshal(message, &cmd); err != nil {
			debug.Warning("Failed to parse command from %s: %v", c.id, err)
			continue
		}
		debug.Debug("Command %q from %s", cmd.Type, c.id)
		s.applyCommand(cmd)
	}
}

// Broadcast encodes v as JSON and sends it to every client
func (s *Server) Broadcast(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.BroadcastRaw(data)
	return nil
}

// BroadcastRaw sends data verbatim to every client. Clients that fail the
// write are dropped.
func (s *Server) BroadcastRaw(data []byte) {
	for _, c := range s.hub.snapshot() {
		if err := c.write(data); err != nil {
			debug.Warning("Failed to broadcast to %s: %v", c.id, err)
			s.hub.remove(c.id)
		}
	}
}

// ClientCount returns the number of connected push clients
func (s *Server) ClientCount() int {
	return s.hub.count()
}

// DisconnectAll closes every push connection, as a backend restart would
func (s *Server) DisconnectAll() {
	for _, c := range s.hub.snapshot() {
		s.hub.remove(c.id)
	}
}
