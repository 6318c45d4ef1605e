package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
)

const writeTimeout = 5 * time.Second

// WebSocketHandler streams hub events as JSON text frames. The recent
// history is sent first.
type WebSocketHandler struct {
	hub            *Hub
	originPatterns []string
}

// NewWebSocketHandler creates a handler accepting the given origin patterns.
func NewWebSocketHandler(hub *Hub, originPatterns []string) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, originPatterns: originPatterns}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "ip", r.RemoteAddr)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "stream ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr)
		}
	}()

	// Clients only listen; CloseRead handles their close frames.
	ctx := ws.CloseRead(r.Context())

	events, cancel := h.hub.Subscribe()
	defer cancel()

	for _, ev := range h.hub.Recent() {
		if err := writeJSON(ctx, ws, ev); err != nil {
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := writeJSON(ctx, ws, ev); err != nil {
				if !errors.Is(err, context.Canceled) {
					slog.Debug("Event stream write failed", "error", err)
				}
				return
			}
		}
	}
}

func writeJSON(ctx context.Context, ws *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return ws.Write(ctx, websocket.MessageText, data)
}
