package order

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/tableside/internal/broadcast"
	"github.com/Additional-Code/tableside/internal/config"
	"github.com/Additional-Code/tableside/internal/dto"
	"github.com/Additional-Code/tableside/internal/entity"
	"github.com/Additional-Code/tableside/internal/messaging"
	"github.com/Additional-Code/tableside/internal/repository/journal"
	"github.com/Additional-Code/tableside/internal/worker"
)

var workerTracer = otel.Tracer("github.com/Additional-Code/tableside/worker/order")

// Recorder stores processed events.
type Recorder interface {
	Record(ctx context.Context, event *entity.OrderEvent) error
}

// Module registers the kitchen event handler with the worker engine.
var Module = fx.Module("worker_order",
	fx.Provide(
		fx.Annotate(
			func(repo *journal.Repository, logger *zap.Logger, cfg config.Config) worker.HandlerRegistration {
				return NewEventHandler(repo, logger, cfg)
			},
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// NewEventHandler prints kitchen tickets for new orders and journals every event.
// Undecodable messages are logged and skipped; journal failures are returned so
// the client retries the message before committing it.
func NewEventHandler(recorder Recorder, logger *zap.Logger, cfg config.Config) worker.HandlerRegistration {
	log := logger.Named("kitchen")

	handler := func(ctx context.Context, msg messaging.Message) error {
		ctx, span := workerTracer.Start(ctx, "worker.orders.process", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
			attribute.Int64("messaging.offset", msg.Offset),
		))
		defer span.End()

		var event dto.OrderEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			log.Error("failed to decode order event", zap.Error(err), zap.Int64("offset", msg.Offset))
			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return nil
		}
		span.SetAttributes(attribute.String("order.id", event.Order.ID), attribute.String("event", event.Event))

		switch broadcast.EventKind(event.Event) {
		case broadcast.OrderCreated:
			printTicket(log, event.Order)
		case broadcast.OrderUpdated:
			log.Info("order status changed",
				zap.Int64("order_number", event.Order.OrderNumber),
				zap.String("status", event.Order.Status),
			)
		default:
			log.Warn("unknown order event", zap.String("event", event.Event))
		}

		record := &entity.OrderEvent{
			Kind:        event.Event,
			OrderID:     event.Order.ID,
			OrderNumber: event.Order.OrderNumber,
			Status:      event.Order.Status,
			Total:       event.Order.Total.StringFixed(2),
			Payload:     string(msg.Value),
			OccurredAt:  event.At.UTC(),
		}
		if err := recorder.Record(ctx, record); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "journal error")
			return fmt.Errorf("journal %s for order %s: %w", event.Event, event.Order.ID, err)
		}
		return nil
	}

	return worker.HandlerRegistration{
		Topic:   cfg.Messaging.Kafka.Topic,
		Handler: handler,
	}
}

func printTicket(log *zap.Logger, order dto.OrderResponse) {
	lines := make([]string, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, fmt.Sprintf("%dx %s", item.Quantity, item.Name))
	}
	log.Info("kitchen ticket",
		zap.Int64("order_number", order.OrderNumber),
		zap.String("customer", order.CustomerName),
		zap.Strings("items", lines),
		zap.String("total", order.Total.StringFixed(2)),
	)
}
