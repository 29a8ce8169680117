package menu

import "go.uber.org/fx"

// Module provides the in-memory menu repository to Fx.
var Module = fx.Provide(New)
