package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"strollgo/pkg/tourstate"
)

// StreamHandler pushes tour state snapshots to the UI over a websocket, so
// the frontend does not have to poll GET /api/tour.
type StreamHandler struct {
	store    *tourstate.Store
	interval time.Duration
	upgrader websocket.Upgrader
}

// NewStreamHandler creates a StreamHandler pushing at the given interval.
func NewStreamHandler(store *tourstate.Store, interval time.Duration) *StreamHandler {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &StreamHandler{
		store:    store,
		interval: interval,
		upgrader: websocket.Upgrader{
			// Local control surface; the server only binds loopback.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// HandleStream upgrades the connection and streams snapshots until the client
// goes away.
func (h *StreamHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Stream: websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// Drain client frames so pings and close frames are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	// Snapshots are small, so pushing every tick is cheaper than tracking
	// deltas per connection.
	for {
		snap := h.store.Snapshot()
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(snap); err != nil {
			slog.Debug("Stream: client gone", "error", err)
			return
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
