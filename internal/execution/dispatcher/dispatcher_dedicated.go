package dispatcher

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/lambda-feedback/isolate/internal/execution/supervisor"
)

// DedicatedDispatcher runs all work on a single supervisor, one run
// at a time.
type DedicatedDispatcher[I, O any] struct {
	sem        chan struct{}
	busy       atomic.Bool
	supervisor Runner[I, O]
	log        *zap.Logger
}

var _ Dispatcher[any, any] = (*DedicatedDispatcher[any, any])(nil)

type DedicatedDispatcherConfig struct {
	// Supervisor is the configuration to use for the supervisor
	Supervisor supervisor.Config `conf:"supervisor"`
}

type DedicatedDispatcherParams[I, O any] struct {
	// Config is the config for the dispatcher and the underlying supervisor
	Config DedicatedDispatcherConfig

	// SupervisorFactory is the factory function to create a new supervisor
	SupervisorFactory SupervisorFactory[I, O]

	// Log is the logger to use for the dispatcher
	Log *zap.Logger
}

func NewDedicatedDispatcher[I, O any](
	params DedicatedDispatcherParams[I, O],
) (*DedicatedDispatcher[I, O], error) {
	if params.SupervisorFactory == nil {
		params.SupervisorFactory = defaultSupervisorFactory[I, O]
	}

	if params.Log == nil {
		params.Log = zap.NewNop()
	}

	sv, err := params.SupervisorFactory(supervisor.Params{
		Config: params.Config.Supervisor,
		Log:    params.Log,
	})
	if err != nil {
		return nil, err
	}

	return &DedicatedDispatcher[I, O]{
		sem:        make(chan struct{}, 1),
		supervisor: sv,
		log:        params.Log.Named("dispatcher_dedicated"),
	}, nil
}

func (m *DedicatedDispatcher[I, O]) Start(context.Context) error {
	return nil
}

func (m *DedicatedDispatcher[I, O]) Send(
	ctx context.Context,
	data I,
) (O, error) {
	var zero O

	if err := m.lock(ctx); err != nil {
		return zero, err
	}
	defer m.unlock()

	m.log.Debug("sending message")

	res, err := m.supervisor.Run(ctx, data)
	if err != nil {
		m.log.Debug("run failed", zap.Error(err))
		return zero, err
	}

	m.log.Debug("message sent")

	return res, nil
}

// Shutdown waits for the in-flight run to finish.
func (m *DedicatedDispatcher[I, O]) Shutdown(ctx context.Context) error {
	m.log.Debug("shutting down")

	if err := m.lock(ctx); err != nil {
		return err
	}
	defer m.unlock()

	m.log.Debug("shut down")

	return nil
}

func (m *DedicatedDispatcher[I, O]) Stats() Stats {
	if m.busy.Load() {
		return Stats{Busy: 1, Max: 1}
	}

	return Stats{Idle: 1, Max: 1}
}

// lock acquires the supervisor, giving up once ctx is done.
func (m *DedicatedDispatcher[I, O]) lock(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case m.sem <- struct{}{}:
	}

	m.busy.Store(true)

	return nil
}

func (m *DedicatedDispatcher[I, O]) unlock() {
	m.busy.Store(false)
	<-m.sem
}
