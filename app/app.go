package app

import (
	"github.com/urfave/cli/v2"
	"go.uber.org/fx"

	"github.com/lambda-feedback/isolate/config"
	"github.com/lambda-feedback/isolate/internal/functions"
	"github.com/lambda-feedback/isolate/internal/shell"
	"github.com/lambda-feedback/isolate/runtime"
	"github.com/lambda-feedback/isolate/util/conf"
	"github.com/lambda-feedback/isolate/util/logging"
)

// New creates the shell shared by all server commands. It provides the
// config, the function registry and the runtime.
func New(ctx *cli.Context, registry *functions.Registry) (*shell.Shell, error) {
	log, err := logging.LoggerFromContext(ctx.Context)
	if err != nil {
		return nil, err
	}

	config, err := conf.GetConfigFromContext[config.Config](ctx.Context)
	if err != nil {
		return nil, err
	}

	sharedModule := fx.Module(
		"shared",
		// provide global config
		fx.Supply(config),
		// provide runtime
		runtime.Module(config.Runtime, registry),
	)

	return shell.New(log, sharedModule), nil
}
