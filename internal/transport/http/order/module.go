package order

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// Module wires the checkout, lookup and admin order routes.
var Module = fx.Module("http_order",
	fx.Provide(NewHandler),
	fx.Invoke(func(e *echo.Echo, h *Handler) {
		Register(e, h)
	}),
)
