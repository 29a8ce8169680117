package menu

import "go.uber.org/fx"

// Module provides the menu service to Fx.
var Module = fx.Provide(NewService)
