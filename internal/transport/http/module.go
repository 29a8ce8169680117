package http

import (
	"go.uber.org/fx"

	livetransport "github.com/Additional-Code/tableside/internal/transport/http/live"
	menutransport "github.com/Additional-Code/tableside/internal/transport/http/menu"
	ordertransport "github.com/Additional-Code/tableside/internal/transport/http/order"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	menutransport.Module,
	ordertransport.Module,
	livetransport.Module,
)
