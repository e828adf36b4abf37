package runtime

import (
	"go.uber.org/fx"

	"github.com/lambda-feedback/isolate/internal/functions"
)

// Module provides the runtime running the functions of registry, and
// the handler translating requests into tasks.
func Module(config Config, registry *functions.Registry) fx.Option {
	return fx.Module(
		"runtime",

		// provide runtime config and the functions workers may run
		fx.Supply(config, registry),

		// provide runtime, started and stopped with the app
		fx.Provide(NewLifecycleRuntime),

		// provide runtime handler
		fx.Provide(NewRuntimeHandler),
	)
}
