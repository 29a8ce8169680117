package order

import "go.uber.org/fx"

// Module provides the order service, the single writer of the order store.
var Module = fx.Module("order_service", fx.Provide(NewService))
