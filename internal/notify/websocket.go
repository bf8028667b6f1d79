package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

const writeTimeout = 5 * time.Second

// clientMessage is sent by foreground surfaces.
type clientMessage struct {
	Type string `json:"type"`
}

// WebSocketHandler streams hub notifications to a WebSocket client.
type WebSocketHandler struct {
	hub            *Hub
	originPatterns []string
	logger         *slog.Logger
}

// NewWebSocketHandler creates a handler. originPatterns are host patterns
// accepted for cross-origin upgrades; nil accepts same-origin only.
func NewWebSocketHandler(hub *Hub, originPatterns []string, logger *slog.Logger) *WebSocketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketHandler{hub: hub, originPatterns: originPatterns, logger: logger}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	subscriberID := r.URL.Query().Get("client")
	if subscriberID == "" {
		subscriberID = uuid.NewString()
	}
	h.logger.Info("Notification connection request", "subscriber_id", subscriberID, "ip", r.RemoteAddr)

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.logger.Warn("Failed to accept WebSocket", "error", err, "subscriber_id", subscriberID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "stream ended"); closeErr != nil {
			h.logger.Debug("Failed to close websocket", "error", closeErr, "subscriber_id", subscriberID)
		}
	}()

	ch := h.hub.Subscribe(subscriberID)
	defer h.hub.Unsubscribe(subscriberID, ch)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	pongs := make(chan struct{}, 1)
	go func() {
		defer cancel()
		h.readLoop(ctx, ws, subscriberID, pongs)
	}()

	h.writeLoop(ctx, ws, ch, pongs)
	h.logger.Info("Notification stream ended", "subscriber_id", subscriberID)
}

func (h *WebSocketHandler) readLoop(ctx context.Context, ws *websocket.Conn, subscriberID string, pongs chan<- struct{}) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				h.logger.Debug("WebSocket closed by client", "subscriber_id", subscriberID)
			} else if ctx.Err() == nil {
				h.logger.Warn("WebSocket read error", "error", err, "subscriber_id", subscriberID)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type == "ping" {
			select {
			case pongs <- struct{}{}:
			default:
			}
		}
	}
}

// writeLoop owns all writes to ws.
func (h *WebSocketHandler) writeLoop(ctx context.Context, ws *websocket.Conn, ch <-chan Notification, pongs <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-pongs:
			if err := writeJSON(ctx, ws, map[string]string{"type": "pong"}); err != nil {
				h.logger.Debug("Failed to send pong", "error", err)
				return
			}
		case n, ok := <-ch:
			if !ok {
				return
			}
			if err := writeJSON(ctx, ws, n); err != nil {
				h.logger.Debug("Failed to deliver notification", "error", err, "type", n.Type)
				return
			}
		}
	}
}

func writeJSON(ctx context.Context, ws *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return ws.Write(ctx, websocket.MessageText, data)
}
