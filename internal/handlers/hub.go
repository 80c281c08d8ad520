package handlers

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/gateway"
	"github.com/jason-s-yu/uno/internal/uno"
)

// subscriberBuffer is how many snapshots a slow WebSocket may fall behind before updates are
// dropped for it.
const subscriberBuffer = 16

// Subscription receives the subscriber's view of every update to one session.
type Subscription struct {
	Session uuid.UUID
	Player  uno.PlayerID
	C       chan uno.Snapshot
}

// Hub is the in-process fan-out of gateway updates to WebSocket subscribers.
type Hub struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]map[*Subscription]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[uuid.UUID]map[*Subscription]struct{})}
}

// Subscribe registers player for updates of session.
func (h *Hub) Subscribe(session uuid.UUID, player uno.PlayerID) *Subscription {
	sub := &Subscription{Session: session, Player: player, C: make(chan uno.Snapshot, subscriberBuffer)}
	h.mu.Lock()
	if h.subs[session] == nil {
		h.subs[session] = make(map[*Subscription]struct{})
	}
	h.subs[session][sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

// Unsubscribe removes sub. Its channel is not closed; the owner stops reading it.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	delete(h.subs[sub.Session], sub)
	if len(h.subs[sub.Session]) == 0 {
		delete(h.subs, sub.Session)
	}
	h.mu.Unlock()
}

// Subscribers returns how many subscriptions session has.
func (h *Hub) Subscribers(session uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[session])
}

// Notify hands every subscriber its own view. A full subscriber misses the update; the next
// snapshot carries the whole state again.
func (h *Hub) Notify(_ context.Context, u gateway.Update) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[u.SessionID] {
		select {
		case sub.C <- u.View(sub.Player):
		default:
		}
	}
}
