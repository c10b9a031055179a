package events

import "sync"

// listenerBuffer bounds how many pending events a slow subscriber can
// accumulate before new events are dropped for it, mirroring the
// teacher's fixed-size eventHubPushCh.
const listenerBuffer = 10

// Hub fans out published events to every active listener. Delivery is
// at-least-once to listeners that keep up, and may drop events for
// listeners that don't (spec.md §5: "delivery is at-least-once and
// unordered across topics").
type Hub struct {
	mu        sync.Mutex
	listeners map[int]chan Event
	nextID    int
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return &Hub{listeners: map[int]chan Event{}}
}

// Subscribe registers a new listener and returns its channel plus an
// unsubscribe function.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan Event, listenerBuffer)
	h.listeners[id] = ch

	unsubscribe := func() {
		h.mu.Lock()
		defer h.mu.Unlock()

		if c, ok := h.listeners[id]; ok {
			delete(h.listeners, id)
			close(c)
		}
	}

	return ch, unsubscribe
}

// Publish fans out ev to every current listener, dropping it for any
// listener whose buffer is full rather than blocking the publisher.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.listeners {
		select {
		case ch <- ev:
		default:
		}
	}
}

// ListenerCount reports the number of active subscribers, for tests and
// diagnostics.
func (h *Hub) ListenerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners)
}
