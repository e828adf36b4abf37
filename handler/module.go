package handler

import "go.uber.org/fx"

func Module() fx.Option {
	return fx.Module("handler",
		fx.Provide(NewTaskHandler),
		fx.Provide(NewHealthHandler),
		fx.Provide(NewRootRoute),
		fx.Provide(NewFunctionRoute),
		fx.Provide(NewHealthRoute),
	)
}
