package standalone

import (
	"go.uber.org/fx"

	"github.com/lambda-feedback/isolate/handler"
	"github.com/lambda-feedback/isolate/internal/server"
	"github.com/lambda-feedback/isolate/util/logging"
)

type Config struct {
	// HttpConfig represents the configuration for the HTTP server.
	HttpConfig server.HttpConfig `conf:",squash"`
}

// Module serves the task and health handlers over http.
func Module(config Config) fx.Option {
	return fx.Module(
		"serve",
		// rename logger for module
		logging.DecorateLogger("serve"),
		// provide task and health handlers
		handler.Module(),
		// provide server, listening once the app starts
		server.Module(config.HttpConfig),
	)
}
