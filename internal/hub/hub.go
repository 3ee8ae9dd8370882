// ABOUTME: Bounded fan-out hub delivering dashboard events to subscribers
// ABOUTME: Evicts subscribers whose queues stay full past the publish timeout

package hub

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is one dashboard event. The only field the hub itself relies on is
// the event_type discriminator used by the SSE transport.
type Event map[string]any

// Envelope is what subscribers receive: either a domain event or a
// keepalive marker, never both.
type Envelope struct {
	Event     Event
	Heartbeat bool
}

// Options tunes a hub. Zero values fall back to defaults.
type Options struct {
	QueueCapacity     int
	HeartbeatInterval time.Duration
	PublishTimeout    time.Duration
}

type subscriber struct {
	id     string
	ch     chan Envelope
	cancel context.CancelFunc
}

// Hub fans events out to any number of subscribers. Each subscriber gets a
// bounded queue; a subscriber that stays full past the publish timeout is
// evicted so one stalled client never wedges the hub. A per-subscription
// keepalive marker is enqueued on the heartbeat interval.
type Hub struct {
	capacity  int
	heartbeat time.Duration
	timeout   time.Duration
	logger    *slog.Logger

	mu          sync.RWMutex
	subscribers map[string]*subscriber
	closed      bool
}

// New creates a hub. Pass nil logger for default.
func New(opts Options, logger *slog.Logger) *Hub {
	if opts.QueueCapacity <= 0 {
		opts.QueueCapacity = 50
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = 30 * time.Second
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		capacity:    opts.QueueCapacity,
		heartbeat:   opts.HeartbeatInterval,
		timeout:     opts.PublishTimeout,
		logger:      logger.With("component", "hub"),
		subscribers: make(map[string]*subscriber),
	}
}

// Subscribe registers a new subscriber and returns its event channel and
// id. The channel is closed when the subscriber is evicted, unsubscribed,
// or the hub shuts down. Subscribing to a closed hub returns an already
// closed channel.
func (h *Hub) Subscribe() (<-chan Envelope, string) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		ch := make(chan Envelope)
		close(ch)
		return ch, ""
	}

	id := uuid.New().String()
	hbCtx, cancel := context.WithCancel(context.Background())
	sub := &subscriber{
		id:     id,
		ch:     make(chan Envelope, h.capacity),
		cancel: cancel,
	}
	h.subscribers[id] = sub
	count := len(h.subscribers)
	h.mu.Unlock()

	go h.keepalive(hbCtx, sub)

	h.logger.Debug("subscriber added", "subscriber_id", id, "subscribers", count)
	return sub.ch, id
}

// Unsubscribe removes a subscriber and closes its channel. Unsubscribing an
// unknown or already removed id is a no-op.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	sub, ok := h.subscribers[id]
	if ok {
		delete(h.subscribers, id)
		sub.cancel()
		close(sub.ch)
	}
	count := len(h.subscribers)
	h.mu.Unlock()

	if ok {
		h.logger.Debug("subscriber removed", "subscriber_id", id, "subscribers", count)
	}
}

// Publish delivers an event to every current subscriber and returns how
// many received it. A subscriber whose queue stays full for the publish
// timeout is evicted; delivery to the others is unaffected.
func (h *Hub) Publish(event Event) int {
	// Sends happen under the read lock: channels are only closed under the
	// write lock, so no send can race a close.
	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return 0
	}

	delivered := 0
	var evicted []string
	for id, sub := range h.subscribers {
		select {
		case sub.ch <- Envelope{Event: event}:
			delivered++
		case <-time.After(h.timeout):
			evicted = append(evicted, id)
		}
	}
	h.mu.RUnlock()

	for _, id := range evicted {
		h.logger.Warn("subscriber evicted: queue full", "subscriber_id", id)
		h.Unsubscribe(id)
	}
	return delivered
}

// Close shuts the hub down: every subscriber is removed and its channel
// closed, and later Publish calls deliver to nobody.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subscribers {
		sub.cancel()
		close(sub.ch)
		delete(h.subscribers, id)
	}
	h.logger.Info("hub closed")
}

// SubscriberCount returns the number of active subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// keepalive enqueues a heartbeat marker on the interval until the
// subscriber is removed. A full queue skips the marker; the next publish
// decides the subscriber's fate.
func (h *Hub) keepalive(ctx context.Context, sub *subscriber) {
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.mu.RLock()
			if _, ok := h.subscribers[sub.id]; ok {
				select {
				case sub.ch <- Envelope{Heartbeat: true}:
				default:
				}
			}
			h.mu.RUnlock()
		}
	}
}
