package menu

import (
	"context"
	"errors"
	"slices"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/tableside/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/tableside/repository/menu")

var (
	// ErrNotFound is returned when a menu item is missing.
	ErrNotFound = errors.New("menu item not found")
	// ErrDuplicateID is returned when an item id is already stored.
	ErrDuplicateID = errors.New("menu item id already exists")
)

// Repository keeps menu items in memory in insertion order.
type Repository struct {
	mu    sync.RWMutex
	items []*entity.MenuItem
}

// New creates an empty menu repository.
func New() *Repository {
	return &Repository{}
}

// List returns every item in insertion order.
func (r *Repository) List(ctx context.Context) []entity.MenuItem {
	_, span := repoTracer.Start(ctx, "MenuRepository.List")
	defer span.End()

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]entity.MenuItem, 0, len(r.items))
	for _, item := range r.items {
		out = append(out, *item)
	}
	return out
}

// Get fetches an item by id.
func (r *Repository) Get(ctx context.Context, id string) (entity.MenuItem, error) {
	_, span := repoTracer.Start(ctx, "MenuRepository.Get", trace.WithAttributes(attribute.String("menu.id", id)))
	defer span.End()

	r.mu.RLock()
	defer r.mu.RUnlock()

	if i := r.indexOf(id); i >= 0 {
		return *r.items[i], nil
	}
	span.SetStatus(codes.Error, "not found")
	return entity.MenuItem{}, ErrNotFound
}

// Insert appends item.
func (r *Repository) Insert(ctx context.Context, item entity.MenuItem) error {
	_, span := repoTracer.Start(ctx, "MenuRepository.Insert", trace.WithAttributes(attribute.String("menu.id", item.ID)))
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexOf(item.ID) >= 0 {
		span.SetStatus(codes.Error, "duplicate id")
		return ErrDuplicateID
	}
	r.items = append(r.items, &item)
	return nil
}

// Update applies mutate to the stored item under the write lock.
func (r *Repository) Update(ctx context.Context, id string, mutate func(*entity.MenuItem) error) (entity.MenuItem, error) {
	_, span := repoTracer.Start(ctx, "MenuRepository.Update", trace.WithAttributes(attribute.String("menu.id", id)))
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		span.SetStatus(codes.Error, "not found")
		return entity.MenuItem{}, ErrNotFound
	}

	draft := *r.items[i]
	if err := mutate(&draft); err != nil {
		span.RecordError(err)
		return *r.items[i], err
	}
	draft.ID = id
	*r.items[i] = draft
	return draft, nil
}

// Delete removes the item with id.
func (r *Repository) Delete(ctx context.Context, id string) error {
	_, span := repoTracer.Start(ctx, "MenuRepository.Delete", trace.WithAttributes(attribute.String("menu.id", id)))
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		span.SetStatus(codes.Error, "not found")
		return ErrNotFound
	}
	r.items = slices.Delete(r.items, i, i+1)
	return nil
}

func (r *Repository) indexOf(id string) int {
	return slices.IndexFunc(r.items, func(item *entity.MenuItem) bool {
		return item.ID == id
	})
}
