// Package hub fans the full POS state out to every connected
// subscriber. Each delivery carries a complete snapshot, so a frame
// dropped for a slow consumer self-heals on the next mutation; the
// hub never blocks a publisher on a subscriber.
package hub

import (
	"sync"

	"github.com/google/uuid"

	"github.com/robertos-pos/bc-bridge/internal/model"
)

// subscriber channels are buffered so a briefly busy websocket writer
// does not force a drop on the first burst of mutations.
const subscriberBuffer = 8

// Hub is the subscriber registry. It implements store.Broadcaster.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]chan model.PosState
}

// New returns an empty hub.
func New() *Hub {
	return &Hub{subs: make(map[string]chan model.PosState)}
}

// Subscribe registers a new subscriber and returns its id together
// with the channel state snapshots arrive on. The channel is closed
// by Unsubscribe.
func (h *Hub) Subscribe() (string, <-chan model.PosState) {
	id := uuid.NewString()
	ch := make(chan model.PosState, subscriberBuffer)
	h.mu.Lock()
	h.subs[id] = ch
	h.mu.Unlock()
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel. Unknown
// ids are ignored so disconnect paths can call it unconditionally.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
	}
	h.mu.Unlock()
}

// Broadcast pushes the snapshot to every registered subscriber. The
// push is non-blocking: a subscriber whose buffer is full misses this
// frame and converges on the next one.
func (h *Hub) Broadcast(state model.PosState) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- state:
		default:
			// Slow consumer; the next full snapshot supersedes this one.
		}
	}
}

// Count reports the number of live subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
