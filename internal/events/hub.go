package events

import (
	"context"
	"sync"
	"sync/atomic"
)

const defaultBuffer = 32

// Hub fans events out to local subscribers. Delivery is at most once: a
// subscriber whose buffer is full misses the event, there is no replay and
// no ordering guarantee across subscribers.
type Hub struct {
	mu      sync.RWMutex
	subs    map[uint64]*Subscription
	nextID  uint64
	dropped atomic.Int64
}

func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]*Subscription)}
}

// Subscription receives the events it asked for on C until Close.
type Subscription struct {
	C <-chan Event

	id    uint64
	hub   *Hub
	names map[string]struct{}
	ch    chan Event
	once  sync.Once
}

// Subscribe registers interest in names. An empty list receives every event.
func (h *Hub) Subscribe(names []string, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	ch := make(chan Event, buffer)
	sub := &Subscription{C: ch, hub: h, ch: ch}
	if len(names) > 0 {
		sub.names = make(map[string]struct{}, len(names))
		for _, n := range names {
			sub.names[n] = struct{}{}
		}
	}

	h.mu.Lock()
	h.nextID++
	sub.id = h.nextID
	h.subs[sub.id] = sub
	h.mu.Unlock()
	return sub
}

// Close unsubscribes and closes C. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s.id)
		close(s.ch)
		s.hub.mu.Unlock()
	})
}

func (s *Subscription) wants(name string) bool {
	if s.names == nil {
		return true
	}
	_, ok := s.names[name]
	return ok
}

// Publish delivers ev to every interested subscriber without blocking.
func (h *Hub) Publish(_ context.Context, ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		if !sub.wants(ev.Name) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			h.dropped.Add(1)
		}
	}
}

// Subscribers returns the number of open subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped counts deliveries skipped because a subscriber buffer was full.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}
