package dispatcher

import (
	"context"
	"fmt"
	"runtime"

	"github.com/jackc/puddle/v2"
	"go.uber.org/zap"

	"github.com/lambda-feedback/isolate/internal/execution/supervisor"
)

type PooledDispatcher[I, O any] struct {
	pool *puddle.Pool[Runner[I, O]]
	log  *zap.Logger
}

var _ Dispatcher[any, any] = (*PooledDispatcher[any, any])(nil)

type PooledDispatcherConfig struct {
	// MaxWorkers is the maximum number of concurrent workers.
	// Defaults to the number of CPUs.
	MaxWorkers int `conf:"max_workers"`

	// Supervisor is the configuration to use for the supervisors
	Supervisor supervisor.Config `conf:"supervisor"`
}

type PooledDispatcherParams[I, O any] struct {
	// Config is the config for the dispatcher and the underlying supervisors
	Config PooledDispatcherConfig

	// SupervisorFactory is the factory function to create a new supervisor
	SupervisorFactory SupervisorFactory[I, O]

	// Log is the logger to use for the dispatcher
	Log *zap.Logger
}

func NewPooledDispatcher[I, O any](
	params PooledDispatcherParams[I, O],
) (*PooledDispatcher[I, O], error) {
	if params.SupervisorFactory == nil {
		params.SupervisorFactory = defaultSupervisorFactory[I, O]
	}

	if params.Log == nil {
		params.Log = zap.NewNop()
	}

	pool, err := createPool(params)
	if err != nil {
		return nil, err
	}

	return &PooledDispatcher[I, O]{
		pool: pool,
		log:  params.Log.Named("dispatcher_pooled"),
	}, nil
}

func (m *PooledDispatcher[I, O]) Start(context.Context) error {
	// supervisors are created on demand
	return nil
}

func (m *PooledDispatcher[I, O]) Send(ctx context.Context, data I) (O, error) {
	var zero O

	resource, err := m.pool.Acquire(ctx)
	if err != nil {
		return zero, fmt.Errorf("error acquiring supervisor: %w", err)
	}

	res, err := resource.Value().Run(ctx, data)

	if reusable(err) {
		m.log.Debug("releasing supervisor back to pool")
		resource.Release()
	} else {
		m.log.Debug("destroying supervisor due to error", zap.Error(err))
		resource.Destroy()
	}

	if err != nil {
		return zero, err
	}

	return res, nil
}

// Shutdown closes the pool. It blocks until all acquired supervisors
// are released.
func (m *PooledDispatcher[I, O]) Shutdown(context.Context) error {
	m.log.Debug("shutting down dispatcher")
	m.pool.Close()
	return nil
}

func (m *PooledDispatcher[I, O]) Stats() Stats {
	stat := m.pool.Stat()

	return Stats{
		Busy: stat.AcquiredResources(),
		Idle: stat.IdleResources(),
		Max:  stat.MaxResources(),
	}
}

// MARK: - Pool

func createPool[I, O any](
	params PooledDispatcherParams[I, O],
) (*puddle.Pool[Runner[I, O]], error) {
	log := params.Log.Named("dispatcher_pool")

	maxWorkers := params.Config.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = runtime.NumCPU()
	}

	constructor := func(ctx context.Context) (Runner[I, O], error) {
		log.Debug("creating supervisor")

		return params.SupervisorFactory(supervisor.Params{
			Config: params.Config.Supervisor,
			Log:    params.Log,
		})
	}

	destructor := func(Runner[I, O]) {
		// supervisors own no process between runs
		log.Debug("destroyed supervisor")
	}

	return puddle.NewPool(&puddle.Config[Runner[I, O]]{
		Constructor: constructor,
		Destructor:  destructor,
		MaxSize:     int32(maxWorkers),
	})
}
