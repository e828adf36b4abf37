package dispatcher_test

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lambda-feedback/isolate/internal/execution/dispatcher"
	"github.com/lambda-feedback/isolate/internal/execution/supervisor"
)

func TestPooledDispatcher_New_UsesCPUCoreFallback(t *testing.T) {
	m, err := dispatcher.NewPooledDispatcher(dispatcher.PooledDispatcherParams[string, string]{
		Config: dispatcher.PooledDispatcherConfig{
			MaxWorkers: 0,
		},
		Log: zap.NewNop(),
	})
	require.NoError(t, err)

	assert.Equal(t, int32(runtime.NumCPU()), m.Stats().Max)
}

func TestPooledDispatcher_Send(t *testing.T) {
	m, sv, _ := createPooledDispatcher(t)
	defer m.Shutdown(context.Background())

	sv.EXPECT().Run(mock.Anything, "in").Return("out", nil)

	res, err := m.Send(context.Background(), "in")
	assert.NoError(t, err)
	assert.Equal(t, "out", res)

	// the supervisor is released back to the pool
	assert.Equal(t, int32(1), m.Stats().Idle)
}

func TestPooledDispatcher_Send_ReusesSupervisor(t *testing.T) {
	var created int

	sv := NewMockRunner[string, string](t)
	sv.EXPECT().Run(mock.Anything, "in").Return("out", nil).Twice()

	m, err := createPooledDispatcherWithFactory(func(supervisor.Params) (dispatcher.Runner[string, string], error) {
		created++
		return sv, nil
	})
	require.NoError(t, err)
	defer m.Shutdown(context.Background())

	for i := 0; i < 2; i++ {
		_, err := m.Send(context.Background(), "in")
		require.NoError(t, err)
	}

	assert.Equal(t, 1, created)
}

func TestPooledDispatcher_Send_FailsToAcquireSupervisor(t *testing.T) {
	m, err := createPooledDispatcherWithFactory(func(supervisor.Params) (dispatcher.Runner[string, string], error) {
		return nil, assert.AnError
	})
	require.NoError(t, err)
	defer m.Shutdown(context.Background())

	_, err = m.Send(context.Background(), "in")
	assert.ErrorIs(t, err, assert.AnError)
}

func TestPooledDispatcher_Send_WorkerFailureKeepsSupervisor(t *testing.T) {
	m, sv, _ := createPooledDispatcher(t)
	defer m.Shutdown(context.Background())

	runErr := &supervisor.RunError{Kind: supervisor.KindWorker, Op: "execute", Err: assert.AnError}

	sv.EXPECT().Run(mock.Anything, "in").Return("", runErr)

	_, err := m.Send(context.Background(), "in")
	assert.ErrorIs(t, err, supervisor.ErrWorker)

	assert.Equal(t, int32(1), m.Stats().Idle)
}

func TestPooledDispatcher_Send_InfrastructureFailureDestroysSupervisor(t *testing.T) {
	for _, kind := range []supervisor.Kind{supervisor.KindInfrastructure, supervisor.KindTerminated} {
		t.Run(kind.String(), func(t *testing.T) {
			m, sv, _ := createPooledDispatcher(t)
			defer m.Shutdown(context.Background())

			sv.EXPECT().Run(mock.Anything, "in").Return("", &supervisor.RunError{Kind: kind, Op: "wait"})

			_, err := m.Send(context.Background(), "in")
			assert.Equal(t, kind, supervisor.KindOf(err))

			// the supervisor is destroyed in the background
			assert.Eventually(t, func() bool {
				stats := m.Stats()
				return stats.Idle == 0 && stats.Busy == 0
			}, time.Second, time.Millisecond)
		})
	}
}

func TestPooledDispatcher_Send_BoundsConcurrency(t *testing.T) {
	m, sv, _ := createPooledDispatcher(t)
	defer m.Shutdown(context.Background())

	release := make(chan struct{})

	sv.EXPECT().Run(mock.Anything, "slow").Run(func(mock.Arguments) {
		<-release
	}).Return("done", nil).Once()

	go m.Send(context.Background(), "slow")

	require.Eventually(t, func() bool {
		return m.Stats().Busy == 1
	}, time.Second, time.Millisecond)

	// the only supervisor is busy, acquiring a second one times out
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := m.Send(ctx, "fast")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)

	require.Eventually(t, func() bool {
		return m.Stats().Busy == 0
	}, time.Second, time.Millisecond)
}

// MARK: - helpers

func createPooledDispatcher(t *testing.T) (*dispatcher.PooledDispatcher[string, string], *MockRunner[string, string], error) {
	sv := NewMockRunner[string, string](t)

	factory := func(supervisor.Params) (dispatcher.Runner[string, string], error) {
		return sv, nil
	}

	m, err := createPooledDispatcherWithFactory(factory)
	if err != nil {
		return nil, nil, err
	}

	return m, sv, nil
}

func createPooledDispatcherWithFactory(
	factory dispatcher.SupervisorFactory[string, string],
) (*dispatcher.PooledDispatcher[string, string], error) {
	return dispatcher.NewPooledDispatcher(dispatcher.PooledDispatcherParams[string, string]{
		Config: dispatcher.PooledDispatcherConfig{
			MaxWorkers: 1,
		},
		SupervisorFactory: factory,
		Log:               zap.NewNop(),
	})
}
