// Package notify pushes engine events to connected foreground surfaces
// over WebSocket.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Notification types.
const (
	TypeGradeNotification = "showGradeNotification"
	TypeGrantExpired      = "grantExpired"
)

// subscriberBuffer is how many undelivered notifications a subscriber may
// hold before new ones are dropped for it.
const subscriberBuffer = 16

// Notification is one message sent to subscribers.
type Notification struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"` // epoch ms
}

// Hub fans notifications out to every registered subscriber.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]chan Notification
	logger *slog.Logger
	now    func() time.Time
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subs:   make(map[string]chan Notification),
		logger: logger,
		now:    time.Now,
	}
}

// Subscribe registers id and returns its delivery channel. Registering an
// id that is already present replaces the old subscription.
func (h *Hub) Subscribe(id string) <-chan Notification {
	h.mu.Lock()
	defer h.mu.Unlock()

	if old, exists := h.subs[id]; exists {
		close(old)
	}
	ch := make(chan Notification, subscriberBuffer)
	h.subs[id] = ch
	h.logger.Info("Notification subscriber registered", "subscriber_id", id)
	return ch
}

// Unsubscribe removes id if ch is still its current channel.
func (h *Hub) Unsubscribe(id string, ch <-chan Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, exists := h.subs[id]; exists && (<-chan Notification)(current) == ch {
		close(current)
		delete(h.subs, id)
		h.logger.Info("Notification subscriber unregistered", "subscriber_id", id)
	}
}

// Count returns the number of subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Publish sends a notification of the given type to every subscriber. It
// never blocks on a slow subscriber; a full buffer drops the message for
// that subscriber only.
func (h *Hub) Publish(_ context.Context, kind string, data any) error {
	n := Notification{Type: kind, Timestamp: h.now().UnixMilli()}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshal %s notification: %w", kind, err)
		}
		n.Data = raw
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.subs {
		select {
		case ch <- n:
		default:
			h.logger.Warn("Notification dropped for slow subscriber", "subscriber_id", id, "type", kind)
		}
	}
	h.logger.Debug("Notification published", "type", kind, "subscribers", len(h.subs))
	return nil
}

// PublishGrantExpired tells foreground surfaces that the grant has ended so
// open pages can be evaluated again.
func (h *Hub) PublishGrantExpired(ctx context.Context, expiredAt time.Time) {
	payload := map[string]int64{"expiredAt": expiredAt.UnixMilli()}
	if err := h.Publish(ctx, TypeGrantExpired, payload); err != nil {
		h.logger.Warn("Failed to publish grant expiry", "error", err)
	}
}

// Close drops every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		close(ch)
		delete(h.subs, id)
	}
}
