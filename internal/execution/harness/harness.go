// Package harness implements the worker side of a supervised run: it reads
// the input from the parent, runs the work function under the cancellation
// and liveness watchdogs, writes the result and ends the process.
package harness

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lambda-feedback/isolate/internal/execution/channel"
	"github.com/lambda-feedback/isolate/internal/execution/codec"
	"github.com/lambda-feedback/isolate/internal/execution/models"
)

// Exit codes of the worker process.
const (
	// ExitOK is used for every deliberate exit. Failures of the work
	// function are reported through the result, not the exit code.
	ExitOK = 0

	// ExitUsage is used if the endpoint arguments are missing or invalid.
	ExitUsage = 64

	// ExitOrphaned is used if the liveness watchdog lost the parent.
	ExitOrphaned = 70

	// ExitWatchdogFailure is used if a watchdog itself failed.
	ExitWatchdogFailure = 71
)

// WorkFunc is the unit of work executed by a worker. It should return
// promptly once ctx is cancelled.
type WorkFunc[I, O any] func(ctx context.Context, input I) (O, error)

// RunEntry runs the harness and ends the process. args are the positional
// arguments of the worker: the parent->child endpoint, the child->parent
// endpoint and an optional session identifier.
func RunEntry[I, O any](args []string, fn WorkFunc[I, O], opts ...Option) {
	opts = append([]Option{WithLogger(defaultLogger())}, opts...)
	opts = append(opts, WithExit(os.Exit))

	os.Exit(Run(args, fn, opts...))
}

// Run runs the harness and returns the exit code. The exit function
// configured with WithExit is called before Run returns, and by the
// watchdogs on fatal conditions.
func Run[I, O any](args []string, fn WorkFunc[I, O], opts ...Option) int {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	log := o.log
	if log == nil {
		log = zap.NewNop()
	}

	h := &harness{
		options: o,
		fatal:   make(chan int, 1),
		log:     log.Named("harness"),
	}

	if len(args) < 2 {
		h.log.Error("missing channel endpoints", zap.Strings("args", args))
		return h.finish(ExitUsage)
	}

	if len(args) > 2 {
		h.log = h.log.With(zap.String("session", args[2]))
	}

	r, err := channel.OpenEndpoint(args[0], "parent-to-child")
	if err != nil {
		h.log.Error("failed to open parent to child endpoint", zap.Error(err))
		return h.finish(ExitUsage)
	}

	w, err := channel.OpenEndpoint(args[1], "child-to-parent")
	if err != nil {
		r.Close()
		h.log.Error("failed to open child to parent endpoint", zap.Error(err))
		return h.finish(ExitUsage)
	}

	return serve(h, r, w, fn)
}

type harness struct {
	options

	fatalOnce sync.Once
	fatal     chan int

	log *zap.Logger
}

func serve[I, O any](h *harness, r, w *os.File, fn WorkFunc[I, O]) int {
	closeEndpoints := func() {
		r.Close()
		w.Close()
	}

	input, err := channel.ReadMessage[I](context.Background(), r)
	if err != nil {
		h.log.Error("failed to read input", zap.Error(err))
		writeResult(h, w, models.NewExceptionEnvelope[O](fmt.Errorf("reading input: %w", err)))
		closeEndpoints()
		return h.finish(ExitOK)
	}

	// the watchdogs outlive a cancellation of the work, only a written
	// result or a fatal exit stops them
	lifetime, stopWatchdogs := context.WithCancel(context.Background())
	work, cancelWork := context.WithCancel(context.Background())

	stop := func() {
		cancelWork()
		stopWatchdogs()
	}

	h.supervise(lifetime, "cancellation", func(ctx context.Context) error {
		return listenCancel(ctx, r, cancelWork, h.log)
	})

	probe, err := newProbe(r)
	if err != nil {
		stop()
		h.log.Error("failed to create liveness probe", zap.Error(err))
		closeEndpoints()
		return h.terminate(ExitWatchdogFailure)
	}

	h.supervise(lifetime, "liveness", func(ctx context.Context) error {
		return h.watchLiveness(ctx, probe)
	})

	result := make(chan models.ResultEnvelope[O], 1)

	go func() {
		out, err := invoke(work, fn, input)
		if err != nil {
			result <- models.NewExceptionEnvelope[O](err)
			return
		}

		result <- models.NewOutputEnvelope(out)
	}()

	select {
	case env := <-result:
		writeResult(h, w, env)

		// closing the reader unblocks the cancellation listener
		stop()
		closeEndpoints()

		return h.finish(ExitOK)

	case code := <-h.fatal:
		stop()
		closeEndpoints()

		return code
	}
}

// invoke runs fn, converting a panic into an error.
func invoke[I, O any](ctx context.Context, fn WorkFunc[I, O], input I) (out O, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = models.Errorf(models.ExceptionTypePanic, "%v", r)
		}
	}()

	return fn(ctx, input)
}

func writeResult[O any](h *harness, w *os.File, env models.ResultEnvelope[O]) {
	err := channel.WriteMessage(context.Background(), w, env)
	if err == nil {
		return
	}

	if errors.Is(err, codec.ErrCodec) && !env.Failed() {
		// the output could not be encoded, report that instead
		h.log.Error("failed to encode output", zap.Error(err))
		err = channel.WriteMessage(context.Background(), w, models.NewExceptionEnvelope[O](err))
	}

	if err != nil {
		// nothing left to tell the parent, it is most likely gone
		h.log.Warn("failed to write result", zap.Error(err))
	}
}

// finish flushes diagnostics and exits with code.
func (h *harness) finish(code int) int {
	_ = h.log.Sync()

	if h.exitDelay > 0 {
		time.Sleep(h.exitDelay)
	}

	h.exit(code)

	return code
}

// terminate ends the process immediately. It is safe to call from
// any goroutine, only the first call has an effect.
func (h *harness) terminate(code int) int {
	h.fatalOnce.Do(func() {
		_ = h.log.Sync()
		h.exit(code)
		h.fatal <- code
	})

	return code
}

func defaultLogger() *zap.Logger {
	log, err := zap.NewProduction()
	if err != nil {
		return zap.NewNop()
	}

	return log
}
