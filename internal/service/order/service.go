package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/tableside/internal/broadcast"
	"github.com/Additional-Code/tableside/internal/entity"
	"github.com/Additional-Code/tableside/internal/observability"
	repo "github.com/Additional-Code/tableside/internal/repository/order"
	"github.com/Additional-Code/tableside/pkg/errorbank"
)

var (
	serviceTracer = otel.Tracer("github.com/Additional-Code/tableside/service/order")
	serviceMeter  = otel.Meter("github.com/Additional-Code/tableside/service/order")
)

// Publisher fans order events out to listeners.
type Publisher interface {
	Publish(ctx context.Context, kind broadcast.EventKind, order entity.Order)
}

// Service owns the order lifecycle: checkout, lookups and status changes.
type Service struct {
	// mu serializes mutations together with their broadcast so listeners see events
	// in the order the store applied them.
	mu        sync.Mutex
	repo      *repo.Repository
	publisher Publisher
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string

	created     metric.Int64Counter
	transitions metric.Int64Counter
}

// Option customises a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides order id generation.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) { s.newID = gen }
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository  *repo.Repository
	Broadcaster *broadcast.Hub
	Logger      *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return New(p.Repository, p.Broadcaster, p.Logger)
}

// New builds a Service over repository that announces changes on publisher.
func New(repository *repo.Repository, publisher Publisher, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		repo:        repository,
		publisher:   publisher,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
		created:     observability.Int64Counter(serviceMeter, "tableside.orders.created", "Orders accepted at checkout"),
		transitions: observability.Int64Counter(serviceMeter, "tableside.orders.status_changes", "Order status transitions"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates a checkout, stores the order with the next display number and
// announces it with an order.created event.
func (s *Service) Create(ctx context.Context, items []entity.LineItem, customerName, customerPhone string) (entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Create", trace.WithAttributes(attribute.Int("order.lines", len(items))))
	defer span.End()

	name := strings.TrimSpace(customerName)
	phone := strings.TrimSpace(customerPhone)
	if err := validateCheckout(items, name, phone); err != nil {
		span.SetStatus(codes.Error, "validation failed")
		return entity.Order{}, err
	}

	lines := make([]entity.LineItem, len(items))
	copy(lines, items)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	order := entity.Order{
		ID:            s.newID(),
		Items:         lines,
		CustomerName:  name,
		CustomerPhone: phone,
		Total:         entity.SumLineItems(lines),
		Status:        entity.StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.Append(ctx, &order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return entity.Order{}, errorbank.Internal("failed to store order", errorbank.WithCause(err))
	}

	span.SetAttributes(attribute.String("order.id", order.ID), attribute.Int64("order.number", order.Number))
	s.created.Add(ctx, 1)
	s.logger.Info("order created",
		zap.String("order_id", order.ID),
		zap.Int64("order_number", order.Number),
		zap.String("total", order.Total.StringFixed(2)),
		zap.Int("lines", len(order.Items)),
	)

	s.publish(ctx, broadcast.OrderCreated, order)
	return order.Clone(), nil
}

// Get retrieves an order by identity.
func (s *Service) Get(ctx context.Context, id string) (entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Get", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return entity.Order{}, mapRepoError(err)
	}
	return order, nil
}

// GetByNumber retrieves an order by its customer-facing display number.
func (s *Service) GetByNumber(ctx context.Context, number int64) (entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.GetByNumber", trace.WithAttributes(attribute.Int64("order.number", number)))
	defer span.End()

	order, err := s.repo.GetByNumber(ctx, number)
	if err != nil {
		return entity.Order{}, mapRepoError(err)
	}
	return order, nil
}

// List returns every order, newest first.
func (s *Service) List(ctx context.Context) []entity.Order {
	ctx, span := serviceTracer.Start(ctx, "OrderService.List")
	defer span.End()

	return s.repo.List(ctx)
}

// NextNumber reports the display number the next order will receive.
func (s *Service) NextNumber() int64 {
	return s.repo.NextNumber()
}

// UpdateStatus moves an order one step forward in its lifecycle and announces the
// change with an order.updated event.
func (s *Service) UpdateStatus(ctx context.Context, id string, status string) (entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.UpdateStatus", trace.WithAttributes(
		attribute.String("order.id", id),
		attribute.String("order.status.requested", status),
	))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	var from entity.Status
	updated, err := s.repo.Update(ctx, id, func(o *entity.Order) error {
		from = o.Status
		to, err := entity.ParseStatus(status)
		if err != nil {
			return err
		}
		next, err := o.Status.Transition(to)
		if err != nil {
			return err
		}
		o.Status = next
		o.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		span.SetStatus(codes.Error, "update rejected")
		switch {
		case errors.Is(err, repo.ErrNotFound):
			return entity.Order{}, mapRepoError(err)
		case errors.Is(err, entity.ErrUnknownStatus), errors.Is(err, entity.ErrInvalidTransition):
			return entity.Order{}, errorbank.InvalidTransition(
				fmt.Sprintf("cannot move order from %s to %s", from, status),
				errorbank.WithCause(err),
				errorbank.WithDetail("from", string(from)),
				errorbank.WithDetail("to", status),
			)
		default:
			span.RecordError(err)
			return entity.Order{}, errorbank.Internal("failed to update order", errorbank.WithCause(err))
		}
	}

	s.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("order.status", string(updated.Status))))
	s.logger.Info("order status updated",
		zap.String("order_id", updated.ID),
		zap.Int64("order_number", updated.Number),
		zap.String("from", string(from)),
		zap.String("to", string(updated.Status)),
	)

	s.publish(ctx, broadcast.OrderUpdated, updated)
	return updated, nil
}

// publish never lets a listener failure reach the caller.
func (s *Service) publish(ctx context.Context, kind broadcast.EventKind, order entity.Order) {
	if s.publisher == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("order broadcast failed",
				zap.String("kind", string(kind)),
				zap.String("order_id", order.ID),
				zap.Any("panic", r),
			)
		}
	}()
	s.publisher.Publish(ctx, kind, order.Clone())
}

func validateCheckout(items []entity.LineItem, name, phone string) error {
	details := make(map[string]any)
	if len(items) == 0 {
		details["items"] = "at least one item is required"
	}
	for i, item := range items {
		switch {
		case item.Quantity <= 0:
			details[fmt.Sprintf("items[%d].quantity", i)] = "must be positive"
		case item.Quantity > entity.MaxLineQuantity:
			details[fmt.Sprintf("items[%d].quantity", i)] = fmt.Sprintf("must not exceed %d", entity.MaxLineQuantity)
		}
		if item.Price.Sign() <= 0 {
			details[fmt.Sprintf("items[%d].price", i)] = "must be positive"
		}
	}
	if name == "" {
		details["customerName"] = "is required"
	}
	if phone == "" {
		details["customerPhone"] = "is required"
	}
	if len(details) == 0 {
		return nil
	}
	return errorbank.Validation("invalid order", errorbank.WithDetails(details))
}

func mapRepoError(err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return errorbank.NotFound("order not found", errorbank.WithCause(err))
	}
	return errorbank.Internal("failed to load order", errorbank.WithCause(err))
}
