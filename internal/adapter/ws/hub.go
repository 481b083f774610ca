package ws

import (
	"encoding/json"
	"sync"

	"sms-billing-gateway/internal/core/domain"

	"github.com/rs/zerolog"
)

// subscriberBuffer is the per-observer queue depth. An observer that
// falls this far behind is dropped rather than allowed to stall the hub.
const subscriberBuffer = 16

// Subscriber receives broadcast events as pre-encoded JSON frames.
// Messages stops when the subscriber is dropped or the hub closes.
type Subscriber struct {
	Messages chan []byte
}

// Hub fans out domain events to connected observers. Broadcast never
// blocks: a subscriber whose buffer is full is evicted on the spot.
type Hub struct {
	mu          sync.Mutex
	subscribers map[*Subscriber]struct{}
	closed      bool
	log         zerolog.Logger
}

// NewHub creates an empty hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		subscribers: make(map[*Subscriber]struct{}),
		log:         log,
	}
}

// Subscribe registers a new observer. Returns nil after Close.
func (h *Hub) Subscribe() *Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	sub := &Subscriber{Messages: make(chan []byte, subscriberBuffer)}
	h.subscribers[sub] = struct{}{}
	return sub
}

// Unsubscribe removes an observer and closes its channel.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(sub)
}

// Broadcast encodes the event once and offers it to every subscriber.
func (h *Hub) Broadcast(event domain.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.log.Error().Err(err).Str("event", event.EventType()).Msg("failed to encode broadcast event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subscribers {
		select {
		case sub.Messages <- payload:
		default:
			h.log.Warn().Str("event", event.EventType()).Msg("slow subscriber dropped")
			h.dropLocked(sub)
		}
	}
}

// Close drops all subscribers. Subsequent Broadcast calls are no-ops.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for sub := range h.subscribers {
		h.dropLocked(sub)
	}
}

// Count returns the number of connected subscribers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

func (h *Hub) dropLocked(sub *Subscriber) {
	if _, ok := h.subscribers[sub]; !ok {
		return
	}
	delete(h.subscribers, sub)
	close(sub.Messages)
}
