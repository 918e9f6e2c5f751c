// Package feed delivers live change notifications to in-process watchers.
//
// A Hub knows nothing about what changed. Publishers name topics, and each
// Subscription re-runs its callback, which reads the current state and hands
// the full result set to its consumer. Notifications are coalesced: a burst of
// publishes while a callback is running produces one more run, never a queue.
package feed

import (
	"context"
	"sync"
)

// Hub routes topic notifications to subscriptions.
type Hub struct {
	mu     sync.Mutex
	topics map[string]map[*Subscription]struct{}
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{topics: make(map[string]map[*Subscription]struct{})}
}

// Subscription is a standing registration created by Watch.
type Subscription struct {
	hub    *Hub
	topics []string
	notify chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Watch runs fn once right away and again after every Publish touching one
// of topics, until the subscription is closed. Runs of fn are serialized.
// The context passed to fn is cancelled when the subscription closes.
func (h *Hub) Watch(fn func(ctx context.Context), topics ...string) *Subscription {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Subscription{
		hub:    h,
		topics: topics,
		notify: make(chan struct{}, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.notify <- struct{}{}

	h.mu.Lock()
	for _, topic := range topics {
		subs, ok := h.topics[topic]
		if !ok {
			subs = make(map[*Subscription]struct{})
			h.topics[topic] = subs
		}
		subs[s] = struct{}{}
	}
	h.mu.Unlock()

	go s.run(ctx, fn)
	return s
}

// Publish wakes every subscription watching any of topics.
func (h *Hub) Publish(topics ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, topic := range topics {
		for s := range h.topics[topic] {
			select {
			case s.notify <- struct{}{}:
			default:
			}
		}
	}
}

// Subscribers returns how many subscriptions watch topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.topics[topic])
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, topic := range s.topics {
		subs := h.topics[topic]
		delete(subs, s)
		if len(subs) == 0 {
			delete(h.topics, topic)
		}
	}
}

func (s *Subscription) run(ctx context.Context, fn func(ctx context.Context)) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.notify:
			if ctx.Err() != nil {
				return
			}
			fn(ctx)
		}
	}
}

// Close stops deliveries. It is safe to call more than once and returns only
// after any in-flight callback has finished, so no callback runs after Close
// returns. Close must not be called from inside the subscription's own callback.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s)
		s.cancel()
	})
	<-s.done
}

// Done is closed once the subscription has fully stopped.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}
