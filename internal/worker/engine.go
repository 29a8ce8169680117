package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/tableside/internal/config"
	"github.com/Additional-Code/tableside/internal/messaging"
	"github.com/Additional-Code/tableside/internal/observability"
)

const maxBackoff = 30 * time.Second

var engineMeter = otel.Meter("github.com/Additional-Code/tableside/worker")

// HandlerRegistration binds a topic to the handler that processes it.
type HandlerRegistration struct {
	Topic   string
	Handler messaging.Handler
}

// Params collects dependencies via Fx.
type Params struct {
	fx.In

	Client        messaging.Client
	Logger        *zap.Logger
	Config        config.Config
	Registrations []HandlerRegistration `group:"worker.handlers"`
}

// Engine runs consumer loops that dispatch messages to registered handlers.
type Engine struct {
	client        messaging.Client
	logger        *zap.Logger
	workers       config.Worker
	registrations map[string]messaging.Handler

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup

	processed metric.Int64Counter
	failed    metric.Int64Counter

	after func(time.Duration) <-chan time.Time
}

// NewEngine constructs the worker Engine.
func NewEngine(p Params) *Engine {
	return New(p.Client, p.Config.Messaging.Workers, p.Logger, p.Registrations...)
}

// New builds an Engine. Registrations without a topic or handler are ignored.
func New(client messaging.Client, workers config.Worker, logger *zap.Logger, registrations ...HandlerRegistration) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := make(map[string]messaging.Handler, len(registrations))
	for _, r := range registrations {
		if r.Topic == "" || r.Handler == nil {
			continue
		}
		reg[r.Topic] = r.Handler
	}
	return &Engine{
		client:        client,
		logger:        logger.Named("worker"),
		workers:       workers,
		registrations: reg,
		processed:     observability.Int64Counter(engineMeter, "tableside.worker.processed", "Messages handled by the worker"),
		failed:        observability.Int64Counter(engineMeter, "tableside.worker.failed", "Messages whose handler returned an error"),
		after:         time.After,
	}
}

// Module wires the engine into Fx lifecycle.
var Module = fx.Options(
	fx.Provide(NewEngine),
	fx.Invoke(func(lc fx.Lifecycle, engine *Engine) {
		lc.Append(fx.Hook{
			OnStart: engine.Start,
			OnStop:  engine.Stop,
		})
	}),
)

// Start launches the configured number of consumer loops. It is a no-op when
// messaging or the worker is disabled, or nothing is registered.
func (e *Engine) Start(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch {
	case e.cancel != nil:
		return nil
	case !e.client.Enabled() || !e.workers.Enabled:
		e.logger.Info("worker engine disabled")
		return nil
	case len(e.registrations) == 0:
		e.logger.Info("worker engine has no handlers; skipping")
		return nil
	}

	concurrency := e.workers.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	runCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	for i := 0; i < concurrency; i++ {
		e.wg.Add(1)
		go func(id int) {
			defer e.wg.Done()
			e.consumeLoop(runCtx, id)
		}(i)
	}

	e.logger.Info("worker engine started", zap.Int("workers", concurrency), zap.String("topic", e.client.Topic()))
	return nil
}

// Stop cancels the loops and waits for in-flight handlers.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	cancel := e.cancel
	e.cancel = nil
	e.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		e.logger.Info("worker engine stopped")
		return nil
	}
}

// consumeLoop restarts Consume after failures. The delay doubles while cycles fail
// without handling anything and starts over from the poll interval otherwise.
func (e *Engine) consumeLoop(ctx context.Context, workerID int) {
	base := e.workers.PollInterval
	if base <= 0 {
		base = time.Second
	}
	backoff := base

	for {
		if ctx.Err() != nil {
			return
		}

		handled := false
		err := e.client.Consume(ctx, func(msgCtx context.Context, msg messaging.Message) error {
			handled = true
			return e.dispatch(msgCtx, workerID, msg)
		})
		if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		if handled {
			backoff = base
		}

		e.logger.Error("consume loop error", zap.Int("worker", workerID), zap.Error(err), zap.Duration("backoff", backoff))
		select {
		case <-e.after(backoff):
		case <-ctx.Done():
			return
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

func (e *Engine) dispatch(ctx context.Context, workerID int, msg messaging.Message) (err error) {
	handler, ok := e.registrations[msg.Topic]
	if !ok {
		e.logger.Warn("no handler for topic", zap.String("topic", msg.Topic))
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
		topic := metric.WithAttributes(attribute.String("messaging.topic", msg.Topic))
		if err != nil {
			e.failed.Add(ctx, 1, topic)
			return
		}
		e.processed.Add(ctx, 1, topic)
	}()

	e.logger.Debug("processing message", zap.String("topic", msg.Topic), zap.Int64("offset", msg.Offset), zap.Int("worker", workerID))
	return handler(ctx, msg)
}
