package execution_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lambda-feedback/isolate/internal/execution"
	"github.com/lambda-feedback/isolate/internal/execution/dispatcher"
)

func TestNewDispatcher_Dedicated(t *testing.T) {
	d, err := execution.NewDispatcher[string, string](execution.Params{
		Config: execution.Config{MaxWorkers: 1},
		Log:    zap.NewNop(),
	})
	require.NoError(t, err)

	assert.IsType(t, &dispatcher.DedicatedDispatcher[string, string]{}, d)
}

func TestNewDispatcher_Pooled(t *testing.T) {
	d, err := execution.NewDispatcher[string, string](execution.Params{
		Config: execution.Config{MaxWorkers: 4},
		Log:    zap.NewNop(),
	})
	require.NoError(t, err)

	assert.IsType(t, &dispatcher.PooledDispatcher[string, string]{}, d)
	assert.Equal(t, int32(4), d.Stats().Max)
}
