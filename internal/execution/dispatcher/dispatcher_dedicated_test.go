package dispatcher_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lambda-feedback/isolate/internal/execution/dispatcher"
	"github.com/lambda-feedback/isolate/internal/execution/supervisor"
)

func createDedicatedDispatcher(t *testing.T) (*dispatcher.DedicatedDispatcher[string, string], *MockRunner[string, string]) {
	sv := NewMockRunner[string, string](t)

	m, err := dispatcher.NewDedicatedDispatcher(dispatcher.DedicatedDispatcherParams[string, string]{
		SupervisorFactory: func(supervisor.Params) (dispatcher.Runner[string, string], error) {
			return sv, nil
		},
		Log: zap.NewNop(),
	})
	require.NoError(t, err)

	return m, sv
}

func TestDedicatedDispatcher_New_FactoryFails(t *testing.T) {
	_, err := dispatcher.NewDedicatedDispatcher(dispatcher.DedicatedDispatcherParams[string, string]{
		SupervisorFactory: func(supervisor.Params) (dispatcher.Runner[string, string], error) {
			return nil, assert.AnError
		},
	})
	assert.ErrorIs(t, err, assert.AnError)
}

func TestDedicatedDispatcher_Send(t *testing.T) {
	m, sv := createDedicatedDispatcher(t)

	sv.EXPECT().Run(mock.Anything, "in").Return("out", nil)

	res, err := m.Send(context.Background(), "in")
	require.NoError(t, err)
	assert.Equal(t, "out", res)
	assert.Equal(t, dispatcher.Stats{Idle: 1, Max: 1}, m.Stats())
}

func TestDedicatedDispatcher_Send_Fails(t *testing.T) {
	m, sv := createDedicatedDispatcher(t)

	sv.EXPECT().Run(mock.Anything, "in").Return("", assert.AnError)

	_, err := m.Send(context.Background(), "in")
	assert.ErrorIs(t, err, assert.AnError)
}

func TestDedicatedDispatcher_Send_SerializesRuns(t *testing.T) {
	m, sv := createDedicatedDispatcher(t)

	release := make(chan struct{})

	sv.EXPECT().Run(mock.Anything, "slow").Run(func(mock.Arguments) {
		<-release
	}).Return("done", nil).Once()

	go m.Send(context.Background(), "slow")

	require.Eventually(t, func() bool {
		return m.Stats().Busy == 1
	}, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := m.Send(ctx, "fast")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)

	// shutdown waits for the in-flight run
	require.NoError(t, m.Shutdown(context.Background()))
	assert.Equal(t, int32(0), m.Stats().Busy)
}
