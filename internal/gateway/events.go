package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/wombat2006/techdev-sub003/internal/consult"
)

const (
	// subscriberBuffer frames queue per subscriber before broadcasts start
	// dropping for it.
	subscriberBuffer = 16

	eventWriteTimeout = 5 * time.Second
)

// Hub fans invocation events out to websocket subscribers. Broadcast never
// blocks: a subscriber that falls behind loses frames, not the
// orchestrator. It implements consult.Broadcaster.
type Hub struct {
	logger *slog.Logger

	mu     sync.Mutex
	subs   map[chan consult.Event]struct{}
	closed bool
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger: logger,
		subs:   make(map[chan consult.Event]struct{}),
	}
}

// Broadcast delivers the event to every subscriber whose buffer has room.
func (h *Hub) Broadcast(ev consult.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close drops all subscribers and closes their channels. Further
// subscriptions are refused.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subs {
		close(ch)
	}
	h.subs = nil
}

// subscribe registers a new event channel, or returns nil when the hub is
// closed.
func (h *Hub) subscribe() chan consult.Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	ch := make(chan consult.Event, subscriberBuffer)
	h.subs[ch] = struct{}{}
	return ch
}

func (h *Hub) unsubscribe(ch chan consult.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.subs, ch)
}

// handleEvents upgrades GET /v1/events to a websocket and streams
// invocation events until the client goes away or the hub closes.
func (g *Gateway) handleEvents() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hub := g.deps.Hub
		if hub == nil {
			http.Error(w, "events unavailable", http.StatusServiceUnavailable)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			g.deps.Logger.Error("websocket accept failed", "error", err)
			return
		}
		defer func() {
			_ = conn.Close(websocket.StatusInternalError, "unexpected close")
		}()

		ch := hub.subscribe()
		if ch == nil {
			_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		}
		defer hub.unsubscribe(ch)

		// The feed is write-only; CloseRead keeps control frames flowing
		// and cancels the context when the peer disconnects.
		ctx := conn.CloseRead(r.Context())

		g.deps.Logger.Debug("event subscriber connected", "remote", r.RemoteAddr)

		for {
			select {
			case <-ctx.Done():
				_ = conn.Close(websocket.StatusNormalClosure, "")
				return
			case ev, ok := <-ch:
				if !ok {
					_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
					return
				}
				if err := writeEvent(ctx, conn, ev); err != nil {
					return
				}
			}
		}
	}
}

// writeEvent marshals and writes one event frame with a bounded deadline.
func writeEvent(ctx context.Context, conn *websocket.Conn, ev consult.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	wctx, cancel := context.WithTimeout(ctx, eventWriteTimeout)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, data)
}
