package journal

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"

	"github.com/Additional-Code/tableside/internal/database"
	"github.com/Additional-Code/tableside/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/tableside/repository/journal")

// Module provides the order event journal.
var Module = fx.Provide(NewRepository)

// Repository persists the audit trail of order events.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository builds a Repository over the shared connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{writer: conns.Writer, reader: conns.Reader}
}

// Record appends one event and fills in its id.
func (r *Repository) Record(ctx context.Context, event *entity.OrderEvent) error {
	ctx, span := repoTracer.Start(ctx, "JournalRepository.Record", trace.WithAttributes(
		attribute.String("order.id", event.OrderID),
		attribute.String("event", event.Kind),
	))
	defer span.End()

	if _, err := r.writer.NewInsert().Model(event).Exec(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("record order event: %w", err)
	}
	return nil
}

// ListByOrder returns the events of one order, oldest first.
func (r *Repository) ListByOrder(ctx context.Context, orderID string) ([]entity.OrderEvent, error) {
	ctx, span := repoTracer.Start(ctx, "JournalRepository.ListByOrder", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	var events []entity.OrderEvent
	err := r.reader.NewSelect().
		Model(&events).
		Where("order_id = ?", orderID).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list order events: %w", err)
	}
	return events, nil
}

// Recent returns the latest events across all orders, newest first.
func (r *Repository) Recent(ctx context.Context, limit int) ([]entity.OrderEvent, error) {
	ctx, span := repoTracer.Start(ctx, "JournalRepository.Recent")
	defer span.End()

	if limit <= 0 {
		limit = 50
	}
	var events []entity.OrderEvent
	err := r.reader.NewSelect().
		Model(&events).
		Order("id DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list recent order events: %w", err)
	}
	return events, nil
}
