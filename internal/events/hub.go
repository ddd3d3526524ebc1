// Package events fans session events out to any number of subscribers.
//
// Delivery is fire-and-forget. Each subscriber has a bounded buffer; when it
// is full the event is dropped for that subscriber and counted. Nothing is
// retained for subscribers that attach later.
package events

import (
	"sync"

	"github.com/peterje/ptyhost/internal/monitoring"
)

const subscriberBuffer = 256

// Event is one named notification with its payload.
type Event struct {
	Name    string `json:"event"`
	Payload any    `json:"payload"`
}

// Filter selects the events a subscriber receives. A nil Filter accepts all.
type Filter func(name string) bool

type subscriber struct {
	ch     chan Event
	filter Filter
}

// Hub implements pty.EventSink.
type Hub struct {
	metrics *monitoring.Metrics

	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	closed bool
}

func NewHub(metrics *monitoring.Metrics) *Hub {
	return &Hub{
		metrics: metrics,
		subs:    make(map[*subscriber]struct{}),
	}
}

// Emit delivers the event to every matching subscriber without blocking.
func (h *Hub) Emit(name string, payload any) {
	ev := Event{Name: name, Payload: payload}

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		if sub.filter != nil && !sub.filter(name) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			// Slow subscriber, drop event
			h.metrics.IncDropped()
		}
	}
}

// Subscribe returns a channel of events and an unsubscribe function. The
// channel is closed on unsubscribe or when the hub closes.
func (h *Hub) Subscribe(filter Filter) (<-chan Event, func()) {
	sub := &subscriber{
		ch:     make(chan Event, subscriberBuffer),
		filter: filter,
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}
	}
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	unsub := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[sub]; ok {
			delete(h.subs, sub)
			close(sub.ch)
		}
	}
	return sub.ch, unsub
}

// Len returns the number of subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close closes every subscriber channel. Later subscriptions receive an
// already closed channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for sub := range h.subs {
		close(sub.ch)
		delete(h.subs, sub)
	}
}

// Names returns a Filter that accepts exactly the given event names.
func Names(names ...string) Filter {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return func(name string) bool {
		_, ok := set[name]
		return ok
	}
}
