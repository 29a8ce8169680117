package order

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/tableside/internal/config"
	"github.com/Additional-Code/tableside/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/tableside/repository/order")

var (
	// ErrNotFound is returned when an order is missing.
	ErrNotFound = errors.New("order not found")
	// ErrDuplicateID is returned when an order id is already stored.
	ErrDuplicateID = errors.New("order id already exists")
)

// Repository keeps orders in memory together with the display number counter.
// Orders are never removed.
type Repository struct {
	mu       sync.RWMutex
	orders   []*entity.Order
	byID     map[string]*entity.Order
	byNumber map[int64]*entity.Order
	next     int64
}

// NewRepository wires a repository whose counter starts at the configured number.
func NewRepository(cfg config.Config) *Repository {
	return New(cfg.Orders.StartingNumber)
}

// New creates an empty repository whose first order gets number start.
func New(start int64) *Repository {
	return &Repository{
		byID:     make(map[string]*entity.Order),
		byNumber: make(map[int64]*entity.Order),
		next:     start,
	}
}

// NextNumber reports the number the next stored order will receive.
func (r *Repository) NextNumber() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.next
}

// Append assigns the next display number to order and stores a copy of it.
func (r *Repository) Append(ctx context.Context, order *entity.Order) error {
	if order == nil {
		return errors.New("nil order")
	}
	_, span := repoTracer.Start(ctx, "OrderRepository.Append", trace.WithAttributes(attribute.String("order.id", order.ID)))
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[order.ID]; exists {
		span.SetStatus(codes.Error, "duplicate id")
		return ErrDuplicateID
	}

	order.Number = r.next
	r.next++

	stored := order.Clone()
	r.orders = append(r.orders, &stored)
	r.byID[stored.ID] = &stored
	r.byNumber[stored.Number] = &stored

	span.SetAttributes(attribute.Int64("order.number", stored.Number))
	return nil
}

// GetByID fetches an order by identity.
func (r *Repository) GetByID(ctx context.Context, id string) (entity.Order, error) {
	_, span := repoTracer.Start(ctx, "OrderRepository.GetByID", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.byID[id]
	if !ok {
		span.SetStatus(codes.Error, "not found")
		return entity.Order{}, ErrNotFound
	}
	return order.Clone(), nil
}

// GetByNumber fetches an order by display number.
func (r *Repository) GetByNumber(ctx context.Context, number int64) (entity.Order, error) {
	_, span := repoTracer.Start(ctx, "OrderRepository.GetByNumber", trace.WithAttributes(attribute.Int64("order.number", number)))
	defer span.End()

	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.byNumber[number]
	if !ok {
		span.SetStatus(codes.Error, "not found")
		return entity.Order{}, ErrNotFound
	}
	return order.Clone(), nil
}

// List returns every order, newest first.
func (r *Repository) List(ctx context.Context) []entity.Order {
	_, span := repoTracer.Start(ctx, "OrderRepository.List")
	defer span.End()

	r.mu.RLock()
	out := make([]entity.Order, 0, len(r.orders))
	for _, order := range r.orders {
		out = append(out, order.Clone())
	}
	r.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b entity.Order) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.Number, a.Number)
	})

	span.SetAttributes(attribute.Int("orders.count", len(out)))
	return out
}

// Update applies mutate to the stored order under the write lock. When mutate fails
// the order is left untouched.
func (r *Repository) Update(ctx context.Context, id string, mutate func(*entity.Order) error) (entity.Order, error) {
	_, span := repoTracer.Start(ctx, "OrderRepository.Update", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.byID[id]
	if !ok {
		span.SetStatus(codes.Error, "not found")
		return entity.Order{}, ErrNotFound
	}

	draft := stored.Clone()
	if err := mutate(&draft); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "mutation rejected")
		return stored.Clone(), err
	}

	// identity fields are owned by the repository.
	draft.ID, draft.Number = stored.ID, stored.Number
	*stored = draft
	return stored.Clone(), nil
}
