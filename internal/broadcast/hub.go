// Package broadcast fans accepted driver position reports out to every live
// observer. The hub owns no state beyond the set of attached subscriptions:
// there is no replay, and an observer only sees events published after it
// attached.
package broadcast

import (
	"log/slog"
	"sync"
)

// Event is a single accepted driver position report.
type Event struct {
	DriverID string
	Lat      float64
	Lng      float64
}

// Subscription receives events on C. C is closed when the subscription is
// detached, either explicitly or because its buffer overflowed.
type Subscription struct {
	C  <-chan Event
	ch chan Event
}

const defaultBuffer = 16

// Hub is the process-wide registry of live observers. It is created at
// service start, handed to whatever accepts connections, and torn down with
// Close at shutdown.
type Hub struct {
	logger *slog.Logger
	buffer int

	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

func NewHub(logger *slog.Logger, buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Hub{
		logger: logger.With(slog.String("component", "broadcast")),
		buffer: buffer,
		subs:   make(map[*Subscription]struct{}),
	}
}

// Subscribe attaches a new observer. On a closed hub the returned
// subscription's channel is already closed.
func (h *Hub) Subscribe() *Subscription {
	ch := make(chan Event, h.buffer)
	sub := &Subscription{C: ch, ch: ch}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return sub
	}
	h.subs[sub] = struct{}{}
	return sub
}

// Unsubscribe detaches sub and closes its channel. Detaching an already
// detached subscription is a no-op.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub]; ok {
		delete(h.subs, sub)
		close(sub.ch)
	}
}

// Publish delivers ev to every attached subscription. A subscription whose
// buffer is full is dropped on the spot: a slow observer must never
// back-pressure the publisher.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		select {
		case sub.ch <- ev:
		default:
			delete(h.subs, sub)
			close(sub.ch)
			h.logger.Warn("dropped slow subscriber", slog.String("driver_id", ev.DriverID))
		}
	}
}

// Subscribers reports the number of attached observers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close detaches every subscription. Later publishes are discarded and later
// subscriptions start closed.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	for sub := range h.subs {
		delete(h.subs, sub)
		close(sub.ch)
	}
	return nil
}
