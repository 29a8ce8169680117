package app

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/tableside/internal/broadcast"
	"github.com/Additional-Code/tableside/internal/cache"
	"github.com/Additional-Code/tableside/internal/config"
	"github.com/Additional-Code/tableside/internal/database"
	"github.com/Additional-Code/tableside/internal/logger"
	"github.com/Additional-Code/tableside/internal/messaging"
	"github.com/Additional-Code/tableside/internal/migration"
	"github.com/Additional-Code/tableside/internal/observability"
	"github.com/Additional-Code/tableside/internal/relay"
	repositoryjournal "github.com/Additional-Code/tableside/internal/repository/journal"
	repositorymenu "github.com/Additional-Code/tableside/internal/repository/menu"
	repositoryorder "github.com/Additional-Code/tableside/internal/repository/order"
	"github.com/Additional-Code/tableside/internal/seeder"
	grpcserver "github.com/Additional-Code/tableside/internal/server/grpc"
	httpserver "github.com/Additional-Code/tableside/internal/server/http"
	servicemenu "github.com/Additional-Code/tableside/internal/service/menu"
	serviceorder "github.com/Additional-Code/tableside/internal/service/order"
	transporthttp "github.com/Additional-Code/tableside/internal/transport/http"
	"github.com/Additional-Code/tableside/internal/worker"
	workerorder "github.com/Additional-Code/tableside/internal/worker/order"
)

// Base holds what every executable needs: configuration, logging, telemetry and
// the message bus client.
var Base = fx.Options(
	config.Module,
	logger.Module,
	logger.FxEvents,
	observability.Module,
	fx.Invoke(func(*observability.Manager) {}),
	messaging.Module,
)

// Core adds the in-memory order desk: menu, orders and the live broadcaster.
var Core = fx.Options(
	Base,
	cache.Module,
	broadcast.Module,
	repositorymenu.Module,
	repositoryorder.Module,
	servicemenu.Module,
	serviceorder.Module,
	seeder.Module,
)

// HTTP wires the HTTP and gRPC servers and the event relay on top of Core.
var HTTP = fx.Options(
	Core,
	httpserver.Module,
	grpcserver.Module,
	transporthttp.Module,
	relay.Module,
)

// Journal opens the order event journal.
var Journal = fx.Options(
	Base,
	database.Module,
	repositoryjournal.Module,
)

// Migrate applies the journal schema.
var Migrate = fx.Options(
	Base,
	database.Module,
	migration.Module,
)

// Worker runs the kitchen consumer that journals order events.
var Worker = fx.Options(
	Journal,
	worker.Module,
	workerorder.Module,
)

// Module is the default application wiring (HTTP only).
var Module = HTTP
