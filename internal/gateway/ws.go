package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"seriesrelay/internal/relay"
)

const wsWriteTimeout = 5 * time.Second

// progressHub fans relay status snapshots out to WebSocket clients.
type progressHub struct {
	logger *slog.Logger

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func newProgressHub(logger *slog.Logger) *progressHub {
	return &progressHub{
		logger: logger,
		conns:  make(map[*websocket.Conn]struct{}),
	}
}

// handleProgress upgrades the request and keeps the connection registered
// until the client goes away. Clients only receive; inbound frames are
// drained and discarded.
func (h *progressHub) handleProgress(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Error("websocket accept failed", "error", err)
		return
	}

	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.conns, conn)
		h.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}()

	// Read loop exists only to notice disconnects.
	for {
		if _, _, err := conn.Read(r.Context()); err != nil {
			return
		}
	}
}

// broadcast sends a status snapshot to every connected client. Connections
// that fail to accept the write are dropped.
func (h *progressHub) broadcast(s relay.Status) {
	data, err := json.Marshal(s)
	if err != nil {
		return
	}

	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		ctx, cancel := context.WithTimeout(context.Background(), wsWriteTimeout)
		err := c.Write(ctx, websocket.MessageText, data)
		cancel()
		if err != nil {
			h.mu.Lock()
			delete(h.conns, c)
			h.mu.Unlock()
			_ = c.Close(websocket.StatusPolicyViolation, "write timeout")
		}
	}
}

// closeAll disconnects every client, used during shutdown.
func (h *progressHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.conns {
		_ = c.Close(websocket.StatusGoingAway, "server shutting down")
		delete(h.conns, c)
	}
}
