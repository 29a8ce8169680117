package menu

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/tableside/internal/cache"
	"github.com/Additional-Code/tableside/internal/config"
	"github.com/Additional-Code/tableside/internal/entity"
	repo "github.com/Additional-Code/tableside/internal/repository/menu"
	"github.com/Additional-Code/tableside/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/tableside/service/menu")

const availableCacheKey = "menu:available"

// Draft carries the editable fields of a menu item.
type Draft struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Category    string
	// Available is left unchanged on update when nil; new items default to available.
	Available *bool
}

// ItemRequest is one requested cart line at checkout.
type ItemRequest struct {
	ID       string
	Quantity int
}

// Service manages the menu catalog.
type Service struct {
	repo     *repo.Repository
	cache    cache.Store
	cacheTTL time.Duration
	logger   *zap.Logger
	newID    func() string
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository *repo.Repository
	Cache      cache.Store
	Config     config.Config
	Logger     *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return New(p.Repository, p.Cache, p.Config.Cache.DefaultTTL, p.Logger)
}

// New builds a Service; store may be nil to disable caching.
func New(repository *repo.Repository, store cache.Store, ttl time.Duration, logger *zap.Logger) *Service {
	if store == nil {
		store = cache.Noop()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:     repository,
		cache:    store,
		cacheTTL: ttl,
		logger:   logger,
		newID:    uuid.NewString,
	}
}

// ListAvailable returns the public menu, consulting the cache first.
func (s *Service) ListAvailable(ctx context.Context) ([]entity.MenuItem, error) {
	ctx, span := serviceTracer.Start(ctx, "MenuService.ListAvailable")
	defer span.End()

	if items, err := cache.GetJSON[[]entity.MenuItem](ctx, s.cache, availableCacheKey); err == nil {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return items, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("menu cache read failed", zap.Error(err))
	}

	all := s.repo.List(ctx)
	available := make([]entity.MenuItem, 0, len(all))
	for _, item := range all {
		if item.Available {
			available = append(available, item)
		}
	}

	if err := cache.SetJSON(ctx, s.cache, availableCacheKey, available, s.cacheTTL); err != nil {
		s.logger.Warn("menu cache write failed", zap.Error(err))
	}
	return available, nil
}

// List returns every item, including unavailable ones.
func (s *Service) List(ctx context.Context) []entity.MenuItem {
	ctx, span := serviceTracer.Start(ctx, "MenuService.List")
	defer span.End()

	return s.repo.List(ctx)
}

// Get returns one item.
func (s *Service) Get(ctx context.Context, id string) (entity.MenuItem, error) {
	ctx, span := serviceTracer.Start(ctx, "MenuService.Get", trace.WithAttributes(attribute.String("menu.id", id)))
	defer span.End()

	item, err := s.repo.Get(ctx, id)
	if err != nil {
		return entity.MenuItem{}, mapRepoError(err)
	}
	return item, nil
}

// Add creates a new item from draft.
func (s *Service) Add(ctx context.Context, draft Draft) (entity.MenuItem, error) {
	ctx, span := serviceTracer.Start(ctx, "MenuService.Add")
	defer span.End()

	if err := validateDraft(draft); err != nil {
		return entity.MenuItem{}, err
	}

	item := entity.MenuItem{ID: s.newID(), Available: true}
	applyDraft(&item, draft)

	if err := s.repo.Insert(ctx, item); err != nil {
		return entity.MenuItem{}, errorbank.Internal("failed to add menu item", errorbank.WithCause(err))
	}
	s.invalidate(ctx)
	s.logger.Info("menu item added", zap.String("menu_id", item.ID), zap.String("name", item.Name))
	return item, nil
}

// Seed inserts items as they are, keeping their ids.
func (s *Service) Seed(ctx context.Context, items []entity.MenuItem) error {
	for _, item := range items {
		if err := s.repo.Insert(ctx, item); err != nil && !errors.Is(err, repo.ErrDuplicateID) {
			return fmt.Errorf("seed %s: %w", item.ID, err)
		}
	}
	s.invalidate(ctx)
	return nil
}

// Update replaces the editable fields of an item.
func (s *Service) Update(ctx context.Context, id string, draft Draft) (entity.MenuItem, error) {
	ctx, span := serviceTracer.Start(ctx, "MenuService.Update", trace.WithAttributes(attribute.String("menu.id", id)))
	defer span.End()

	if err := validateDraft(draft); err != nil {
		return entity.MenuItem{}, err
	}

	item, err := s.repo.Update(ctx, id, func(item *entity.MenuItem) error {
		applyDraft(item, draft)
		return nil
	})
	if err != nil {
		return entity.MenuItem{}, mapRepoError(err)
	}
	s.invalidate(ctx)
	return item, nil
}

// SetAvailability shows or hides an item on the public menu.
func (s *Service) SetAvailability(ctx context.Context, id string, available bool) (entity.MenuItem, error) {
	ctx, span := serviceTracer.Start(ctx, "MenuService.SetAvailability", trace.WithAttributes(
		attribute.String("menu.id", id),
		attribute.Bool("menu.available", available),
	))
	defer span.End()

	item, err := s.repo.Update(ctx, id, func(item *entity.MenuItem) error {
		item.Available = available
		return nil
	})
	if err != nil {
		return entity.MenuItem{}, mapRepoError(err)
	}
	s.invalidate(ctx)
	return item, nil
}

// Delete removes an item. Past orders keep their own copy of it.
func (s *Service) Delete(ctx context.Context, id string) error {
	ctx, span := serviceTracer.Start(ctx, "MenuService.Delete", trace.WithAttributes(attribute.String("menu.id", id)))
	defer span.End()

	if err := s.repo.Delete(ctx, id); err != nil {
		return mapRepoError(err)
	}
	s.invalidate(ctx)
	s.logger.Info("menu item deleted", zap.String("menu_id", id))
	return nil
}

var quantityLimit = fmt.Sprintf("must not exceed %d per item", entity.MaxLineQuantity)

// Snapshot resolves requested cart lines against the current menu, copying name and
// price. Repeated ids are merged into one line.
func (s *Service) Snapshot(ctx context.Context, requests []ItemRequest) ([]entity.LineItem, error) {
	ctx, span := serviceTracer.Start(ctx, "MenuService.Snapshot", trace.WithAttributes(attribute.Int("cart.lines", len(requests))))
	defer span.End()

	details := make(map[string]any)
	lines := make([]entity.LineItem, 0, len(requests))
	index := make(map[string]int, len(requests))

	for i, req := range requests {
		switch {
		case req.Quantity <= 0:
			details[fmt.Sprintf("items[%d].quantity", i)] = "must be positive"
			continue
		case req.Quantity > entity.MaxLineQuantity:
			details[fmt.Sprintf("items[%d].quantity", i)] = quantityLimit
			continue
		}
		if pos, ok := index[req.ID]; ok {
			if req.Quantity > entity.MaxLineQuantity-lines[pos].Quantity {
				details[fmt.Sprintf("items[%d].quantity", i)] = quantityLimit
				continue
			}
			lines[pos].Quantity += req.Quantity
			continue
		}
		item, err := s.repo.Get(ctx, req.ID)
		if err != nil {
			details[fmt.Sprintf("items[%d].id", i)] = "unknown menu item"
			continue
		}
		if !item.Available {
			details[fmt.Sprintf("items[%d].id", i)] = "item is not available"
			continue
		}
		index[req.ID] = len(lines)
		lines = append(lines, item.Snapshot(req.Quantity))
	}

	if len(details) > 0 {
		return nil, errorbank.Validation("invalid cart", errorbank.WithDetails(details))
	}
	return lines, nil
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.Delete(ctx, availableCacheKey); err != nil {
		s.logger.Warn("menu cache invalidation failed", zap.Error(err))
	}
}

func validateDraft(draft Draft) error {
	details := make(map[string]any)
	if strings.TrimSpace(draft.Name) == "" {
		details["name"] = "is required"
	}
	if draft.Price.IsNegative() {
		details["price"] = "must not be negative"
	}
	if len(details) == 0 {
		return nil
	}
	return errorbank.Validation("invalid menu item", errorbank.WithDetails(details))
}

func applyDraft(item *entity.MenuItem, draft Draft) {
	item.Name = strings.TrimSpace(draft.Name)
	item.Description = strings.TrimSpace(draft.Description)
	item.Price = draft.Price
	item.Category = strings.TrimSpace(draft.Category)
	if draft.Available != nil {
		item.Available = *draft.Available
	}
}

func mapRepoError(err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return errorbank.NotFound("menu item not found", errorbank.WithCause(err))
	}
	return errorbank.Internal("menu store failure", errorbank.WithCause(err))
}
