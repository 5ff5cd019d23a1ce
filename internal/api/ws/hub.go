package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/launcher/internal/domain/orchestrator"
	"github.com/GriffinCanCode/launcher/internal/infrastructure/monitoring"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// origins are enforced by the CORS middleware
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Source publishes state snapshots
type Source interface {
	Snapshot() orchestrator.State
	Subscribe(listener orchestrator.Listener) (unsubscribe func())
}

// Message is one server push
type Message struct {
	Type  string              `json:"type"`
	State *orchestrator.State `json:"state,omitempty"`
}

type inbound struct {
	Type string `json:"type"`
}

// Hub fans state changes out to connected views
type Hub struct {
	source      Source
	metrics     *monitoring.Metrics
	logger      *zap.Logger
	unsubscribe func()

	mu      sync.Mutex
	clients map[string]*client
	closed  bool
}

// client holds at most one pending snapshot
type client struct {
	conn    *websocket.Conn
	pending chan orchestrator.State
	pongs   chan struct{}
	done    chan struct{}
}

// NewHub subscribes to source and starts fanning out
func NewHub(source Source, metrics *monitoring.Metrics, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		source:  source,
		metrics: metrics,
		logger:  logger,
		clients: make(map[string]*client),
	}
	h.unsubscribe = source.Subscribe(h.broadcast)
	return h
}

// Clients returns the number of connected views
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// HandleConnection upgrades the request and streams state until the view
// disconnects.
func (h *Hub) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	id := uuid.NewString()
	cl := &client{
		conn:    conn,
		pending: make(chan orchestrator.State, 1),
		pongs:   make(chan struct{}, 1),
		done:    make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[id] = cl
	h.mu.Unlock()

	h.metrics.IncViewConnections()
	h.logger.Debug("View connected", zap.String("client", id))

	cl.offer(h.source.Snapshot())
	go h.writeLoop(id, cl)
	h.readLoop(cl)

	h.remove(id)
	h.metrics.DecViewConnections()
	h.logger.Debug("View disconnected", zap.String("client", id))
}

// broadcast queues state for every client, replacing any unsent snapshot
func (h *Hub) broadcast(state orchestrator.State) {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for _, cl := range h.clients {
		clients = append(clients, cl)
	}
	h.mu.Unlock()

	for _, cl := range clients {
		cl.offer(state)
	}
}

func (cl *client) offer(state orchestrator.State) {
	for {
		select {
		case cl.pending <- state:
			return
		default:
		}
		select {
		case <-cl.pending:
		default:
		}
	}
}

func (h *Hub) readLoop(cl *client) {
	cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := cl.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("WebSocket read error", zap.Error(err))
			}
			return
		}

		var msg inbound
		if err := sonic.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type == "ping" {
			select {
			case cl.pongs <- struct{}{}:
			default:
			}
		}
	}
}

func (h *Hub) writeLoop(id string, cl *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer cl.conn.Close()

	for {
		select {
		case <-cl.done:
			cl.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case state := <-cl.pending:
			if err := h.write(cl.conn, Message{Type: "state", State: &state}); err != nil {
				h.logger.Debug("WebSocket write failed", zap.String("client", id), zap.Error(err))
				return
			}
		case <-cl.pongs:
			if err := h.write(cl.conn, Message{Type: "pong"}); err != nil {
				h.logger.Debug("WebSocket write failed", zap.String("client", id), zap.Error(err))
				return
			}
		case <-ticker.C:
			cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) write(conn *websocket.Conn, msg Message) error {
	data, err := sonic.Marshal(msg)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	cl, ok := h.clients[id]
	delete(h.clients, id)
	h.mu.Unlock()
	if ok {
		close(cl.done)
	}
}

// Close disconnects every view and stops listening for changes
func (h *Hub) Close() {
	h.unsubscribe()

	h.mu.Lock()
	h.closed = true
	clients := h.clients
	h.clients = make(map[string]*client)
	h.mu.Unlock()

	for _, cl := range clients {
		close(cl.done)
	}
}
