package ws

import (
	"context"
	"sync"
	"time"

	"github.com/fathima-sithara/pixshare-service/internal/metrics"
	"go.uber.org/zap"
)

// Sink is one live delivery target. Send must not block.
type Sink interface {
	Send(frame []byte) bool
	Close()
}

// PresenceStore shares online state across instances.
type PresenceStore interface {
	SetOnline(ctx context.Context, userID string) error
	SetOffline(ctx context.Context, userID string) error
	IsOnline(ctx context.Context, userID string) bool
}

// Bridge forwards frames for users that are not connected to this instance.
type Bridge interface {
	Publish(ctx context.Context, userID string, frame []byte) error
}

// Hub maps a user id to the single client that last joined as that user.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]Sink
	presence PresenceStore
	bridge   Bridge
	log      *zap.SugaredLogger
}

func NewHub(log *zap.SugaredLogger) *Hub {
	return &Hub{clients: make(map[string]Sink), log: log}
}

func (h *Hub) UsePresence(p PresenceStore) { h.presence = p }

func (h *Hub) UseBridge(b Bridge) { h.bridge = b }

// Register points userID at s, replacing any earlier client.
func (h *Hub) Register(ctx context.Context, userID string, s Sink) {
	h.mu.Lock()
	h.clients[userID] = s
	h.mu.Unlock()

	if h.presence != nil {
		if err := h.presence.SetOnline(ctx, userID); err != nil {
			h.log.Warnw("presence set online failed", "user_id", userID, "error", err)
		}
	}
	h.log.Debugw("client registered", "user_id", userID)
}

// Unregister removes the mapping only while it still points at s, so a stale
// connection closing late cannot evict a newer one.
func (h *Hub) Unregister(ctx context.Context, userID string, s Sink) bool {
	h.mu.Lock()
	cur, ok := h.clients[userID]
	removed := ok && cur == s
	if removed {
		delete(h.clients, userID)
	}
	h.mu.Unlock()

	if removed && h.presence != nil {
		if err := h.presence.SetOffline(ctx, userID); err != nil {
			h.log.Warnw("presence set offline failed", "user_id", userID, "error", err)
		}
	}
	return removed
}

// refresh extends the presence entry of a still registered client.
func (h *Hub) refresh(ctx context.Context, userID string, s Sink) {
	if h.presence == nil || h.lookup(userID) != s {
		return
	}
	_ = h.presence.SetOnline(ctx, userID)
}

func (h *Hub) lookup(userID string) Sink {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients[userID]
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// IsOnline answers from the shared presence store when there is one,
// otherwise from the local map.
func (h *Hub) IsOnline(ctx context.Context, userID string) bool {
	if h.lookup(userID) != nil {
		return true
	}
	return h.presence != nil && h.presence.IsOnline(ctx, userID)
}

// PushTo delivers one event to userID. It never blocks and never retries;
// false means nothing was handed off.
func (h *Hub) PushTo(ctx context.Context, userID, event string, payload interface{}) bool {
	frame, err := Encode(event, payload)
	if err != nil {
		h.log.Errorw("encode push failed", "event", event, "error", err)
		metrics.RelayPushes.WithLabelValues(event, "error").Inc()
		return false
	}
	if s := h.lookup(userID); s != nil {
		ok := s.Send(frame)
		metrics.RelayPushes.WithLabelValues(event, result(ok)).Inc()
		return ok
	}
	if h.bridge == nil {
		metrics.RelayPushes.WithLabelValues(event, "offline").Inc()
		return false
	}
	if err := h.bridge.Publish(ctx, userID, frame); err != nil {
		h.log.Warnw("bridge publish failed", "user_id", userID, "event", event, "error", err)
		metrics.RelayPushes.WithLabelValues(event, "error").Inc()
		return false
	}
	metrics.RelayPushes.WithLabelValues(event, "bridged").Inc()
	return true
}

// deliverLocal hands a pre-encoded frame to a local client only.
func (h *Hub) deliverLocal(userID string, frame []byte) bool {
	s := h.lookup(userID)
	if s == nil {
		return false
	}
	return s.Send(frame)
}

// Shutdown closes every client and clears presence for them.
func (h *Hub) Shutdown(ctx context.Context) {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]Sink)
	h.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	for uid, s := range clients {
		s.Close()
		if h.presence != nil {
			_ = h.presence.SetOffline(ctx, uid)
		}
	}
	h.log.Infow("hub stopped", "clients", len(clients))
}

func result(ok bool) string {
	if ok {
		return "delivered"
	}
	return "dropped"
}
