package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/biostack-engine/internal/domain"
)

const (
	watchWriteTimeout = 5 * time.Second
	// watchSendBuffer bounds the per-client backlog. A client that falls
	// further behind loses events, not the request path.
	watchSendBuffer = 16
)

var watchUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// watchClient pairs a connection with its send queue. All socket writes
// happen on the client's own writer goroutine.
type watchClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub broadcasts completed run records to connected watch clients. It
// implements the pipeline Emitter interface, so emission must never stall
// a request: Emit only enqueues onto per-client buffers and returns; a
// full buffer drops the event, and a client whose socket write fails is
// disconnected by its writer goroutine.
type Hub struct {
	logger *logrus.Logger

	mu      sync.Mutex
	clients map[*watchClient]bool
	closed  bool
	dropped int64
}

// NewHub creates an empty watch hub.
func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[*watchClient]bool),
	}
}

// watchEvent is the wire shape pushed to watch clients: the run summary
// without per-stage detail, which stays in the audit store.
type watchEvent struct {
	RunID        string          `json:"run_id"`
	PipelineHash string          `json:"pipeline_hash"`
	Versions     domain.Versions `json:"versions"`
	Stages       int             `json:"stages"`
	CompletedAt  time.Time       `json:"completed_at"`
}

// Emit enqueues a run summary for every connected client. Never blocks:
// a client whose buffer is full misses this event.
func (h *Hub) Emit(record *domain.RunRecord) {
	event := watchEvent{
		RunID:        record.RunID,
		PipelineHash: record.PipelineHash,
		Versions:     record.Versions,
		Stages:       len(record.Stages),
		CompletedAt:  record.CompletedAt,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.WithError(err).Warn("Failed to marshal watch event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		select {
		case client.send <- payload:
		default:
			h.dropped++
			h.logger.WithFields(logrus.Fields{
				"run_id":        record.RunID,
				"total_dropped": h.dropped,
			}).Debug("Watch client buffer full, event dropped")
		}
	}
}

// ClientCount reports the number of connected watch clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Dropped reports how many events were discarded due to full client
// buffers.
func (h *Hub) Dropped() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
	}
}

func (h *Hub) add(conn *websocket.Conn) *watchClient {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	client := &watchClient{
		conn: conn,
		send: make(chan []byte, watchSendBuffer),
	}
	h.clients[client] = true
	go h.writeLoop(client)
	return client
}

// remove deregisters the client and closes its send channel. Emit sends
// under the same mutex, so no enqueue can race the close.
func (h *Hub) remove(client *watchClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[client] {
		delete(h.clients, client)
		close(client.send)
	}
}

// writeLoop drains one client's queue onto its socket. A failed or timed
// out write disconnects only this client.
func (h *Hub) writeLoop(client *watchClient) {
	defer client.conn.Close()
	for payload := range client.send {
		client.conn.SetWriteDeadline(time.Now().Add(watchWriteTimeout))
		if err := client.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.logger.WithError(err).Debug("Dropping watch client")
			h.remove(client)
			for range client.send {
			}
			return
		}
	}
}

// handleWatch upgrades the connection and streams run summaries until
// the client disconnects.
func (s *Server) handleWatch(c *gin.Context) {
	conn, err := watchUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		s.logger.WithError(err).Debug("Watch upgrade failed")
		return
	}

	client := s.hub.add(conn)
	if client == nil {
		conn.Close()
		return
	}

	// Read loop exists only to observe disconnects; inbound messages
	// are discarded.
	go func() {
		defer func() {
			s.hub.remove(client)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
