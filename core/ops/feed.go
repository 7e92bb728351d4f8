package ops

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/spacenew/triggerflow/core/infra/logging"
	"github.com/spacenew/triggerflow/core/infra/metrics"
	"github.com/spacenew/triggerflow/core/workflow"
)

const (
	feedBacklog      = 256
	clientSendBuffer = 100
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// FeedHub broadcasts finished invocation records to WebSocket clients.
// Clients that stop draining their buffer are evicted so one stalled
// consumer cannot hold up the loop.
type FeedHub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]chan []byte
	events  chan []byte
	metrics metrics.FeedMetrics
}

// NewFeedHub builds a hub reporting client counts to fm.
func NewFeedHub(fm metrics.FeedMetrics) *FeedHub {
	if fm == nil {
		fm = metrics.NoopFeed{}
	}
	return &FeedHub{
		clients: make(map[*websocket.Conn]chan []byte),
		events:  make(chan []byte, feedBacklog),
		metrics: fm,
	}
}

// Broadcast queues one invocation record for delivery. It never blocks; a
// full backlog drops the record and counts the drop.
func (h *FeedHub) Broadcast(inv workflow.Invocation) {
	data, err := json.Marshal(inv)
	if err != nil {
		logging.Error("ops", "marshal invocation for feed failed", "invocation_id", inv.ID, "error", err)
		return
	}
	select {
	case h.events <- data:
	default:
		h.metrics.IncFeedDropped()
	}
}

// Run fans queued records out to connected clients until ctx is canceled.
func (h *FeedHub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case data := <-h.events:
			var slow []*websocket.Conn
			h.mu.RLock()
			for conn, ch := range h.clients {
				select {
				case ch <- data:
				default:
					slow = append(slow, conn)
				}
			}
			h.mu.RUnlock()

			if len(slow) > 0 {
				h.mu.Lock()
				for _, conn := range slow {
					delete(h.clients, conn)
				}
				h.mu.Unlock()
				for _, conn := range slow {
					h.metrics.IncFeedDropped()
					if err := conn.Close(); err != nil {
						logging.Error("ops", "evict slow feed client failed", "error", err)
					}
				}
			}
		}
	}
}

// ClientCount reports how many feed clients are connected.
func (h *FeedHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *FeedHub) closeAll() {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.clients = make(map[*websocket.Conn]chan []byte)
	h.mu.Unlock()
	for _, conn := range conns {
		_ = conn.Close()
	}
}

// handleFeed upgrades the request and streams broadcast records until the
// client goes away.
func (h *FeedHub) handleFeed(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error("ops", "feed upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer ws.Close()
	logging.Info("ops", "feed client connected", "remote", r.RemoteAddr)

	clientCh := make(chan []byte, clientSendBuffer)
	h.mu.Lock()
	h.clients[ws] = clientCh
	h.mu.Unlock()
	h.metrics.IncFeedClients()
	defer func() {
		h.mu.Lock()
		delete(h.clients, ws)
		h.mu.Unlock()
		close(clientCh)
		h.metrics.DecFeedClients()
		logging.Info("ops", "feed client disconnected", "remote", r.RemoteAddr)
	}()

	// read pump: unblocks the writer when the peer closes or is evicted
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case data, ok := <-clientCh:
			if !ok {
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-gone:
			return
		case <-r.Context().Done():
			return
		}
	}
}
