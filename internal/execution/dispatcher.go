package execution

import (
	"github.com/lambda-feedback/isolate/internal/execution/dispatcher"
	"github.com/lambda-feedback/isolate/internal/execution/supervisor"
	"go.uber.org/zap"
)

type Config struct {
	// MaxWorkers is the maximum number of concurrent workers. A value
	// of 1 runs all work on a single dedicated supervisor, 0 defaults
	// to the number of CPUs.
	MaxWorkers int `conf:"max_workers"`

	// Supervisor is the configuration to use for the supervisors
	Supervisor supervisor.Config `conf:"supervisor"`
}

type Params struct {
	// Config is the config for the dispatcher and the underlying supervisors
	Config Config

	// Log is the logger to use for the dispatcher
	Log *zap.Logger
}

func NewDispatcher[I, O any](
	params Params,
) (dispatcher.Dispatcher[I, O], error) {
	if params.Config.MaxWorkers == 1 {
		return dispatcher.NewDedicatedDispatcher(
			dispatcher.DedicatedDispatcherParams[I, O]{
				Config: dispatcher.DedicatedDispatcherConfig{
					Supervisor: params.Config.Supervisor,
				},
				Log: params.Log,
			},
		)
	}

	return dispatcher.NewPooledDispatcher(
		dispatcher.PooledDispatcherParams[I, O]{
			Config: dispatcher.PooledDispatcherConfig{
				Supervisor: params.Config.Supervisor,
				MaxWorkers: params.Config.MaxWorkers,
			},
			Log: params.Log,
		},
	)
}
