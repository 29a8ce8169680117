// Package relay forwards broadcast order events onto the message bus so the
// kitchen worker can consume them out of process.
package relay

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/tableside/internal/broadcast"
	"github.com/Additional-Code/tableside/internal/dto"
	"github.com/Additional-Code/tableside/internal/messaging"
	"github.com/Additional-Code/tableside/internal/observability"
)

// HeaderEvent carries the event kind on relayed messages.
const HeaderEvent = "event"

const publishTimeout = 5 * time.Second

var (
	relayTracer = otel.Tracer("github.com/Additional-Code/tableside/relay")
	relayMeter  = otel.Meter("github.com/Additional-Code/tableside/relay")
)

// Module starts the relay alongside the HTTP API.
var Module = fx.Options(
	fx.Provide(New),
	fx.Invoke(func(lc fx.Lifecycle, r *Relay) {
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				r.Start()
				return nil
			},
			OnStop: r.Stop,
		})
	}),
)

// Relay is a hub listener that republishes every event to the message bus.
type Relay struct {
	hub    *broadcast.Hub
	client messaging.Client
	logger *zap.Logger

	mu     sync.Mutex
	sub    *broadcast.Subscription
	done   chan struct{}
	failed metric.Int64Counter
}

// New constructs a Relay.
func New(hub *broadcast.Hub, client messaging.Client, logger *zap.Logger) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{
		hub:    hub,
		client: client,
		logger: logger.Named("relay"),
		failed: observability.Int64Counter(relayMeter, "tableside.relay.failures", "Order events the relay could not publish"),
	}
}

// Start subscribes to the hub. It does nothing when messaging is disabled or the
// relay is already running.
func (r *Relay) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.client.Enabled() {
		r.logger.Info("messaging disabled; order relay idle")
		return
	}
	if r.sub != nil {
		return
	}

	r.sub = r.hub.Subscribe()
	r.done = make(chan struct{})
	go r.run(r.sub, r.done)
	r.logger.Info("order relay started", zap.String("topic", r.client.Topic()))
}

// Stop unsubscribes and waits for in-flight publishes to finish.
func (r *Relay) Stop(ctx context.Context) error {
	r.mu.Lock()
	sub, done := r.sub, r.done
	r.sub, r.done = nil, nil
	r.mu.Unlock()

	if sub == nil {
		return nil
	}
	r.hub.Unsubscribe(sub)

	select {
	case <-done:
		r.logger.Info("order relay stopped", zap.Uint64("dropped", sub.Dropped()))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Relay) run(sub *broadcast.Subscription, done chan<- struct{}) {
	defer close(done)
	for ev := range sub.C() {
		r.forward(ev)
	}
}

func (r *Relay) forward(ev broadcast.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	ctx, span := relayTracer.Start(ctx, "relay.forward", trace.WithAttributes(
		attribute.String("order.id", ev.Order.ID),
		attribute.String("event", string(ev.Kind)),
	))
	defer span.End()

	payload, err := json.Marshal(dto.OrderEvent{Event: string(ev.Kind), Order: dto.FromOrder(ev.Order), At: ev.At})
	if err != nil {
		r.fail(ctx, span, ev, err)
		return
	}

	err = r.client.Publish(ctx, messaging.Message{
		Key:     []byte(ev.Order.ID),
		Value:   payload,
		Headers: map[string]string{HeaderEvent: string(ev.Kind)},
	})
	if err != nil {
		r.fail(ctx, span, ev, err)
		return
	}
	r.logger.Debug("order event relayed", zap.String("order_id", ev.Order.ID), zap.String("event", string(ev.Kind)))
}

func (r *Relay) fail(ctx context.Context, span trace.Span, ev broadcast.Event, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, "publish failed")
	r.failed.Add(ctx, 1)
	r.logger.Warn("order event relay failed",
		zap.String("order_id", ev.Order.ID),
		zap.String("event", string(ev.Kind)),
		zap.Error(err),
	)
}
