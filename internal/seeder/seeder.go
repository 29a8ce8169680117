package seeder

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/tableside/internal/config"
	"github.com/Additional-Code/tableside/internal/entity"
	menusvc "github.com/Additional-Code/tableside/internal/service/menu"
)

// Module seeds the default menu on startup when enabled.
var Module = fx.Options(
	fx.Provide(New),
	fx.Invoke(func(lc fx.Lifecycle, cfg config.Config, s *Seeder) {
		if !cfg.Menu.SeedDefaults {
			return
		}
		lc.Append(fx.Hook{OnStart: s.Menu})
	}),
)

// Seeder loads starter data into the in-memory stores.
type Seeder struct {
	menu   *menusvc.Service
	logger *zap.Logger
}

// New constructs a Seeder backed by the menu service.
func New(menu *menusvc.Service, logger *zap.Logger) *Seeder {
	return &Seeder{menu: menu, logger: logger}
}

// Menu seeds the default catalog; items already present are left alone.
func (s *Seeder) Menu(ctx context.Context) error {
	catalog := DefaultMenu()
	if err := s.menu.Seed(ctx, catalog); err != nil {
		return err
	}
	if s.logger != nil {
		s.logger.Info("seeded menu", zap.Int("count", len(catalog)))
	}
	return nil
}

// DefaultMenu returns the starter catalog.
func DefaultMenu() []entity.MenuItem {
	return []entity.MenuItem{
		{
			ID:          "1",
			Name:        "Grilled Salmon",
			Description: "Fresh Atlantic salmon with lemon herb butter",
			Price:       decimal.RequireFromString("28.99"),
			Category:    "Main Course",
			Available:   true,
		},
		{
			ID:          "2",
			Name:        "BBQ Ribs",
			Description: "Slow-cooked baby back ribs with house BBQ sauce",
			Price:       decimal.RequireFromString("24.99"),
			Category:    "Main Course",
			Available:   true,
		},
		{
			ID:          "3",
			Name:        "Grilled Vegetable Platter",
			Description: "Seasonal vegetables grilled to perfection",
			Price:       decimal.RequireFromString("18.99"),
			Category:    "Main Course",
			Available:   true,
		},
		{
			ID:          "4",
			Name:        "Craft Beer",
			Description: "Local craft beer selection",
			Price:       decimal.RequireFromString("6.99"),
			Category:    "Beverages",
			Available:   true,
		},
	}
}
