package order

import "go.uber.org/fx"

// Module provides the in-memory order repository to Fx. One instance lives for the
// whole process.
var Module = fx.Provide(NewRepository)
