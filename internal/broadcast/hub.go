package broadcast

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/tableside/internal/config"
	"github.com/Additional-Code/tableside/internal/entity"
	"github.com/Additional-Code/tableside/internal/observability"
)

var meter = otel.Meter("github.com/Additional-Code/tableside/broadcast")

// EventKind names a broadcast event.
type EventKind string

const (
	OrderCreated EventKind = "order.created"
	OrderUpdated EventKind = "order.updated"
)

// Event carries a full order snapshot to listeners.
type Event struct {
	Kind  EventKind
	Order entity.Order
	At    time.Time
}

// Subscription is the handle of one listener. Events arrive on C until the listener is
// unsubscribed or the hub is closed, at which point C is closed.
type Subscription struct {
	id      uint64
	ch      chan Event
	dropped atomic.Uint64
}

// ID identifies the subscription in logs.
func (s *Subscription) ID() uint64 { return s.id }

// C returns the receive side of the subscription.
func (s *Subscription) C() <-chan Event { return s.ch }

// Dropped counts events discarded because the listener's buffer was full.
func (s *Subscription) Dropped() uint64 { return s.dropped.Load() }

// Hub fans order events out to every current subscriber.
type Hub struct {
	mu     sync.RWMutex
	subs   []*Subscription
	nextID uint64
	closed bool

	buffer int
	logger *zap.Logger
	now    func() time.Time

	delivered metric.Int64Counter
	dropped   metric.Int64Counter
	listeners metric.Int64UpDownCounter
}

// Module provides the hub and closes it on shutdown.
var Module = fx.Provide(NewHub)

// NewHub builds the application hub from configuration.
func NewHub(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) *Hub {
	hub := New(cfg.Broadcast.BufferSize, logger)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			hub.Close()
			return nil
		},
	})
	return hub
}

// New creates a hub whose subscriptions buffer up to bufferSize events.
func New(bufferSize int, logger *zap.Logger) *Hub {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		buffer:    bufferSize,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		delivered: observability.Int64Counter(meter, "tableside.broadcast.delivered", "Order events handed to listeners"),
		dropped:   observability.Int64Counter(meter, "tableside.broadcast.dropped", "Order events dropped for slow listeners"),
		listeners: observability.Int64UpDownCounter(meter, "tableside.broadcast.listeners", "Currently subscribed listeners"),
	}
}

// Subscribe registers a new listener. Subscribing to a closed hub yields an already
// closed subscription.
func (h *Hub) Subscribe() *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := &Subscription{id: h.nextID, ch: make(chan Event, h.buffer)}
	if h.closed {
		close(sub.ch)
		return sub
	}
	h.subs = append(h.subs, sub)
	h.listeners.Add(context.Background(), 1)
	h.logger.Debug("listener subscribed", zap.Uint64("subscription", sub.id), zap.Int("listeners", len(h.subs)))
	return sub
}

// Unsubscribe removes the listener and closes its channel. Repeated calls are no-ops.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, s := range h.subs {
		if s != sub {
			continue
		}
		h.subs = append(h.subs[:i:i], h.subs[i+1:]...)
		close(sub.ch)
		h.listeners.Add(context.Background(), -1)
		h.logger.Debug("listener unsubscribed", zap.Uint64("subscription", sub.id), zap.Int("listeners", len(h.subs)))
		return
	}
}

// Publish hands order to every subscriber in subscription order. A subscriber whose
// buffer is full misses the event; the others are unaffected.
func (h *Hub) Publish(ctx context.Context, kind EventKind, order entity.Order) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return
	}

	at := h.now()
	kindAttr := metric.WithAttributes(attribute.String("event.kind", string(kind)))
	for _, sub := range h.subs {
		event := Event{Kind: kind, Order: order.Clone(), At: at}
		select {
		case sub.ch <- event:
			h.delivered.Add(ctx, 1, kindAttr)
		default:
			sub.dropped.Add(1)
			h.dropped.Add(ctx, 1, kindAttr)
			h.logger.Warn("listener buffer full; event dropped",
				zap.Uint64("subscription", sub.id),
				zap.String("kind", string(kind)),
				zap.String("order_id", order.ID),
			)
		}
	}
}

// Listeners returns the number of current subscribers.
func (h *Hub) Listeners() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close unsubscribes everyone and rejects further publishes.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for _, sub := range h.subs {
		close(sub.ch)
	}
	h.listeners.Add(context.Background(), -int64(len(h.subs)))
	h.subs = nil
}
