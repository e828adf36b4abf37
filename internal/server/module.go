package server

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/lambda-feedback/isolate/util/logging"
)

func Module(config HttpConfig) fx.Option {
	return fx.Module("server",
		// rename logger for module
		logging.DecorateLogger("server", zap.String("component", "http")),
		// provide config
		fx.Supply(config),
		// provide server
		fx.Provide(NewLifecycleServer),
		// invoke server
		fx.Invoke(func(*HttpServer) {}),
	)
}
