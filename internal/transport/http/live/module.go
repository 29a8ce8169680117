package live

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/tableside/internal/broadcast"
	"github.com/Additional-Code/tableside/internal/config"
	ordersvc "github.com/Additional-Code/tableside/internal/service/order"
)

// Module wires the live order feed.
var Module = fx.Options(
	fx.Provide(func(hub *broadcast.Hub, orders *ordersvc.Service, cfg config.Config, logger *zap.Logger) *Handler {
		return NewHandler(hub, orders, cfg, logger)
	}),
	fx.Invoke(func(e *echo.Echo, h *Handler) {
		Register(e, h)
	}),
)
