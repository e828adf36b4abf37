package supervisor_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/lambda-feedback/isolate/internal/execution/channel"
	"github.com/lambda-feedback/isolate/internal/execution/harness"
	"github.com/lambda-feedback/isolate/internal/execution/models"
	"github.com/lambda-feedback/isolate/internal/execution/supervisor"
	"github.com/lambda-feedback/isolate/internal/execution/worker"
	"github.com/lambda-feedback/isolate/internal/functions"
)

func newSupervisor[I, O any](t *testing.T, function string, grace time.Duration) *supervisor.Supervisor[I, O] {
	t.Helper()

	return supervisor.New[I, O](supervisor.Params{
		Config: supervisor.Config{
			Start: worker.StartConfig{
				Cmd: os.Args[0],
				Env: map[string]string{workerEnv: function},
			},
			GracePeriod: grace,
		},
		Log: zaptest.NewLogger(t),
	})
}

func TestSupervisor_Run_HappyPath(t *testing.T) {
	s := newSupervisor[string, string](t, "echo", 0)

	out, err := s.Run(context.Background(), "ok")
	require.NoError(t, err)

	assert.Equal(t, "ok", out)
	assert.Equal(t, models.StatusCompleted, s.Status())
	assert.NotZero(t, s.Pid())
	assert.NotEmpty(t, s.SessionID())
}

func TestSupervisor_Run_TypedInput(t *testing.T) {
	s := newSupervisor[functions.DivideInput, float64](t, "divide", 0)

	out, err := s.Run(context.Background(), functions.DivideInput{A: 9, B: 3})
	require.NoError(t, err)
	assert.Equal(t, 3.0, out)
}

func TestSupervisor_Run_WorkerException(t *testing.T) {
	s := newSupervisor[functions.DivideInput, float64](t, "divide", 0)

	_, err := s.Run(context.Background(), functions.DivideInput{A: 1, B: 0})
	require.Error(t, err)

	assert.Contains(t, err.Error(), "DivideByZeroException")
	assert.ErrorIs(t, err, supervisor.ErrWorker)
	assert.NotErrorIs(t, err, supervisor.ErrInfrastructure)
	assert.Equal(t, supervisor.KindWorker, supervisor.KindOf(err))

	var exc *models.Exception
	require.True(t, errors.As(err, &exc))
	assert.Equal(t, "DivideByZeroException", exc.Type)
	assert.Nil(t, exc.Inner)

	assert.Equal(t, models.StatusFailed, s.Status())
}

func TestSupervisor_Run_CancellationBeforeCompletion(t *testing.T) {
	s := newSupervisor[functions.SleepInput, string](t, "sleep", 30*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(200*time.Millisecond, cancel)

	start := time.Now()
	_, err := s.Run(ctx, functions.SleepInput{Duration: "1m"})
	require.Error(t, err)

	assert.Less(t, time.Since(start), 30*time.Second)
	assert.Equal(t, supervisor.KindWorker, supervisor.KindOf(err))

	var exc *models.Exception
	require.True(t, errors.As(err, &exc))
	assert.Equal(t, models.ExceptionTypeCanceled, exc.Type)

	assert.Equal(t, models.StatusCanceled, s.Status())
}

func TestSupervisor_Run_GracePeriodForceKill(t *testing.T) {
	grace := 500 * time.Millisecond

	s := newSupervisor[json.RawMessage, json.RawMessage](t, "hang", grace)

	ctx, cancel := context.WithCancel(context.Background())

	var cancelledAt time.Time
	time.AfterFunc(100*time.Millisecond, func() {
		cancelledAt = time.Now()
		cancel()
	})

	_, err := s.Run(ctx, json.RawMessage(`{}`))
	require.Error(t, err)

	assert.GreaterOrEqual(t, time.Since(cancelledAt), grace)
	assert.ErrorIs(t, err, supervisor.ErrTerminated)
	assert.NotErrorIs(t, err, supervisor.ErrWorker)
	assert.Equal(t, supervisor.KindTerminated, supervisor.KindOf(err))

	assert.Equal(t, models.StatusCanceled, s.Status())
}

func TestSupervisor_Run_EmptyResult(t *testing.T) {
	s := newSupervisor[string, string](t, "exit0", 0)

	_, err := s.Run(context.Background(), "ok")

	assert.ErrorIs(t, err, supervisor.ErrEmptyResult)
	assert.ErrorIs(t, err, supervisor.ErrInfrastructure)
	assert.Equal(t, models.StatusFailed, s.Status())
}

func TestSupervisor_Run_UnexpectedExit(t *testing.T) {
	s := newSupervisor[string, string](t, "crash", 0)

	_, err := s.Run(context.Background(), "ok")

	assert.ErrorIs(t, err, supervisor.ErrUnexpectedExit)
	assert.ErrorIs(t, err, supervisor.ErrInfrastructure)

	var runErr *supervisor.RunError
	require.True(t, errors.As(err, &runErr))
	require.NotNil(t, runErr.Exit)
	require.NotNil(t, runErr.Exit.Code)
	assert.Equal(t, 3, *runErr.Exit.Code)
	assert.Contains(t, runErr.Exit.Stderr, "crashed")
}

func TestSupervisor_Run_MalformedResult(t *testing.T) {
	s := newSupervisor[string, string](t, "garbage", 0)

	_, err := s.Run(context.Background(), "ok")

	assert.ErrorIs(t, err, channel.ErrFraming)
	assert.ErrorIs(t, err, supervisor.ErrInfrastructure)
}

func TestSupervisor_Run_UnknownFunction(t *testing.T) {
	s := newSupervisor[string, string](t, "missing", 0)

	_, err := s.Run(context.Background(), "ok")

	assert.ErrorIs(t, err, supervisor.ErrUnexpectedExit)
}

func TestSupervisor_Run_SpawnFailure(t *testing.T) {
	s := supervisor.New[string, string](supervisor.Params{
		Config: supervisor.Config{
			Start: worker.StartConfig{Cmd: "/does/not/exist"},
		},
	})

	_, err := s.Run(context.Background(), "ok")

	assert.ErrorIs(t, err, supervisor.ErrSpawn)
	assert.ErrorIs(t, err, supervisor.ErrInfrastructure)
	assert.Equal(t, models.StatusFailed, s.Status())
}

func TestSupervisor_Run_LargeInput(t *testing.T) {
	s := newSupervisor[string, string](t, "echo", 0)

	// larger than the pipe buffer
	input := strings.Repeat("x", 1<<20)

	out, err := s.Run(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, input, out)
}

func TestSupervisor_Run_SequentialReuse(t *testing.T) {
	s := newSupervisor[string, string](t, "echo", 0)

	for _, in := range []string{"first", "second"} {
		out, err := s.Run(context.Background(), in)
		require.NoError(t, err)
		assert.Equal(t, in, out)
	}
}

func TestSupervisor_Run_ConcurrentRunRejected(t *testing.T) {
	s := newSupervisor[functions.SleepInput, string](t, "sleep", 10*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := s.Run(ctx, functions.SleepInput{Duration: "1m"})
		done <- err
	}()

	require.Eventually(t, func() bool {
		return s.Status() == models.StatusWaitingForProcessToExit
	}, 5*time.Second, 10*time.Millisecond)

	_, err := s.Run(context.Background(), functions.SleepInput{Duration: "1ms"})
	assert.ErrorIs(t, err, supervisor.ErrRunInProgress)

	cancel()
	assert.Error(t, <-done)
}

func TestRun_PackageLevel(t *testing.T) {
	out, err := supervisor.Run[string, string](
		context.Background(),
		os.Args[0],
		"ok",
		supervisor.WithEnv(map[string]string{workerEnv: "echo"}),
		supervisor.WithGracePeriod(time.Second),
		supervisor.WithLogger(zaptest.NewLogger(t)),
	)
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestSupervisor_Run_NullOutput(t *testing.T) {
	s := newSupervisor[json.RawMessage, json.RawMessage](t, "echo", 0)

	out, err := s.Run(context.Background(), json.RawMessage("null"))
	require.NoError(t, err)

	assert.Empty(t, out)
	assert.Equal(t, models.StatusCompleted, s.Status())
}

func TestSupervisor_Run_NilPointerOutput(t *testing.T) {
	s := newSupervisor[*string, *string](t, "echo", 0)

	out, err := s.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestSupervisor_Run_CancellationAfterResult(t *testing.T) {
	s := supervisor.New[string, string](supervisor.Params{
		Config: supervisor.Config{
			Start: worker.StartConfig{
				Cmd: os.Args[0],
				Env: map[string]string{
					workerEnv: "echo",
					// the worker lingers after writing its result
					harness.EnvExitDelay: "2s",
				},
			},
			GracePeriod: 30 * time.Second,
		},
		Log: zaptest.NewLogger(t),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	time.AfterFunc(time.Second, cancel)

	start := time.Now()
	out, err := s.Run(ctx, "ok")
	require.NoError(t, err)

	assert.Equal(t, "ok", out)
	assert.Less(t, time.Since(start), 30*time.Second)
	assert.Equal(t, models.StatusCompleted, s.Status())
}

func TestSupervisor_Run_DescendantHoldsChannel(t *testing.T) {
	s := supervisor.New[string, string](supervisor.Params{
		Config: supervisor.Config{
			Start: worker.StartConfig{
				Cmd: os.Args[0],
				Env: map[string]string{workerEnv: "spawn-echo"},
			},
			DrainTimeout: 200 * time.Millisecond,
		},
		Log: zaptest.NewLogger(t),
	})

	start := time.Now()
	out, err := s.Run(context.Background(), "ok")
	require.NoError(t, err)

	assert.Equal(t, "ok", out)
	assert.Less(t, time.Since(start), 20*time.Second)
}
