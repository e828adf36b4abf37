package supervisor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lambda-feedback/isolate/internal/execution/channel"
	"github.com/lambda-feedback/isolate/internal/execution/codec"
	"github.com/lambda-feedback/isolate/internal/execution/models"
	"github.com/lambda-feedback/isolate/internal/execution/worker"
)

type Params struct {
	// Config is the config used to start and stop workers.
	Config Config

	// Log is the logger to use for the supervisor
	Log *zap.Logger
}

// Supervisor runs a single unit of work in a worker process. A
// supervisor runs at most one worker at a time, but may be reused
// for sequential runs.
type Supervisor[I, O any] struct {
	config Config

	running atomic.Bool
	status  atomic.Int32
	pid     atomic.Int64
	session atomic.Value

	log *zap.Logger
}

func New[I, O any](params Params) *Supervisor[I, O] {
	log := params.Log
	if log == nil {
		log = zap.NewNop()
	}

	s := &Supervisor[I, O]{
		config: params.Config,
		log:    log.Named("supervisor"),
	}

	s.session.Store("")

	return s
}

// Option configures a supervisor created by Run.
type Option func(*Params)

// WithGracePeriod sets the grace period after cancellation.
func WithGracePeriod(d time.Duration) Option {
	return func(p *Params) {
		p.Config.GracePeriod = d
	}
}

// WithArgs sets arguments passed to the worker before the endpoint ids.
func WithArgs(args ...string) Option {
	return func(p *Params) {
		p.Config.Start.Args = args
	}
}

// WithEnv sets additional environment variables of the worker.
func WithEnv(env map[string]string) Option {
	return func(p *Params) {
		p.Config.Start.Env = env
	}
}

// WithLogger sets the logger of the supervisor.
func WithLogger(log *zap.Logger) Option {
	return func(p *Params) {
		p.Log = log
	}
}

// Run executes input in a fresh worker process started from path. The
// run is cancelled cooperatively when ctx is done.
func Run[I, O any](ctx context.Context, path string, input I, opts ...Option) (O, error) {
	params := Params{
		Config: Config{
			Start: worker.StartConfig{Cmd: path},
		},
	}

	for _, opt := range opts {
		opt(&params)
	}

	return New[I, O](params).Run(ctx, input)
}

// Status returns the status of the current or last run.
func (s *Supervisor[I, O]) Status() models.Status {
	return models.Status(s.status.Load())
}

// Pid returns the process id of the current or last worker, or 0.
func (s *Supervisor[I, O]) Pid() int {
	return int(s.pid.Load())
}

// SessionID returns the session identifier of the current or last run.
func (s *Supervisor[I, O]) SessionID() string {
	return s.session.Load().(string)
}

func (s *Supervisor[I, O]) setStatus(status models.Status) {
	s.status.Store(int32(status))
}

// Run executes input in a new worker process and returns its output.
//
// Cancelling ctx asks the worker to stop. A worker that does not exit
// within the grace period is killed together with its process group.
// A worker that finishes before noticing the cancellation still
// delivers its result.
func (s *Supervisor[I, O]) Run(ctx context.Context, input I) (out O, err error) {
	if !s.running.CompareAndSwap(false, true) {
		return out, ErrRunInProgress
	}
	defer s.running.Store(false)

	s.setStatus(models.StatusInitializing)
	s.pid.Store(0)

	defer func() {
		switch {
		case err == nil:
			s.setStatus(models.StatusCompleted)
		case ctx.Err() != nil:
			s.setStatus(models.StatusCanceled)
		default:
			s.setStatus(models.StatusFailed)
		}
	}()

	session := uuid.NewString()
	s.session.Store(session)

	log := s.log.With(zap.String("session", session))

	pipes, err := channel.NewPipePair()
	if err != nil {
		return out, infraError("channel", err, nil)
	}
	defer pipes.Close()

	p2c, c2p := pipes.EndpointIDs()

	// cancellation is advisory, the process outlives ctx
	proc, err := worker.Start(context.WithoutCancel(ctx), worker.Params{
		Config:     s.config.Start,
		Args:       []string{p2c, c2p, session},
		ExtraFiles: pipes.ExtraFiles(),
		WaitDelay:  s.config.drainTimeout(),
		Log:        log,
	})
	if err != nil {
		return out, infraError("spawn", fmt.Errorf("%w: %w", ErrSpawn, err), nil)
	}

	// the parent must not hold the child ends, otherwise reading
	// child->parent never observes EOF
	if err := pipes.CloseChild(); err != nil {
		log.Warn("failed to close child pipe ends", zap.Error(err))
	}

	s.pid.Store(int64(proc.Pid()))
	log = log.With(zap.Int("pid", proc.Pid()))

	s.setStatus(models.StatusWaitingForProcessToExit)

	log.Debug("worker started")

	var wg sync.WaitGroup
	inputSent := make(chan struct{})

	// the input is written after spawning, pipe buffers are finite
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(inputSent)

		if err := channel.WriteMessage(context.Background(), pipes.Parent.Writer, input); err != nil {
			// the worker exited before reading its input, the exit
			// event tells why
			log.Debug("failed to write input", zap.Error(err))
		}
	}()

	var forceKilled atomic.Bool
	handlerDone := make(chan struct{})

	stop := context.AfterFunc(ctx, func() {
		defer close(handlerDone)

		if s.cancel(proc, pipes.Parent.Writer, inputSent, log) {
			forceKilled.Store(true)
		}
	})

	var (
		buf  []byte
		exit worker.ExitEvent
	)

	var (
		g        errgroup.Group
		readDone = make(chan struct{})
		drained  atomic.Bool
	)

	// the result read is not bound to ctx, it runs until the
	// child closes its end
	g.Go(func() error {
		defer close(readDone)

		var err error
		buf, err = io.ReadAll(pipes.Parent.Reader)
		if err != nil && drained.Load() {
			// closed below, keep what was read
			return nil
		}

		return err
	})

	g.Go(func() error {
		var err error
		exit, err = proc.Wait(context.Background())
		if err != nil {
			return err
		}

		timer := time.NewTimer(s.config.drainTimeout())
		defer timer.Stop()

		select {
		case <-readDone:
		case <-timer.C:
			// a descendant of the worker still holds the channel
			log.Warn("result channel open after worker exit, killing process group")

			drained.Store(true)

			if err := proc.KillGroup(); err != nil {
				log.Error("failed to kill process group", zap.Error(err))
			}

			pipes.Parent.Reader.Close()
		}

		return nil
	})

	waitErr := g.Wait()

	if !stop() {
		// the cancellation handler was started, join it
		<-handlerDone
	}

	// unblocks a pending input write if a grandchild still holds
	// the read end
	pipes.Parent.Writer.Close()
	wg.Wait()

	s.setStatus(models.StatusFinalizing)

	log.Debug("worker exited",
		zap.Stringer("exit", exit),
		zap.Int("result_bytes", len(buf)),
	)

	if forceKilled.Load() {
		return out, &RunError{
			Kind: KindTerminated,
			Op:   "wait",
			Err:  ErrTerminated,
			Exit: &exit,
		}
	}

	if waitErr != nil {
		return out, infraError("read", waitErr, &exit)
	}

	return decodeResult[O](buf, exit)
}

// cancel writes the cancellation sentinel and waits for the worker to
// exit within the grace period. It kills the worker otherwise, and
// reports whether it did so.
func (s *Supervisor[I, O]) cancel(
	proc *worker.Process,
	w io.Writer,
	inputSent <-chan struct{},
	log *zap.Logger,
) bool {
	grace := s.config.gracePeriod()

	log.Info("cancelling worker", zap.Duration("grace_period", grace))

	sentinelDone := make(chan struct{})

	go func() {
		defer close(sentinelDone)

		// the sentinel must not precede the input
		select {
		case <-inputSent:
		case <-proc.Done():
			return
		}

		if err := channel.WriteCancel(w); err != nil {
			log.Debug("failed to write cancellation sentinel", zap.Error(err))
		}
	}()

	timer := time.NewTimer(grace)
	defer timer.Stop()

	killed := false

	select {
	case <-proc.Done():
	case <-timer.C:
		if !proc.Exited() {
			log.Warn("worker did not exit within grace period, killing")

			if err := proc.Kill(); err != nil {
				log.Error("failed to kill worker", zap.Error(err))
			}

			killed = true
		}
	}

	// a blocked sentinel write returns once the worker is gone
	<-proc.Done()
	<-sentinelDone

	return killed
}

func decodeResult[O any](buf []byte, exit worker.ExitEvent) (O, error) {
	var out O

	if len(buf) == 0 {
		if exit.Success() {
			return out, infraError("decode", ErrEmptyResult, &exit)
		}

		return out, infraError("decode", ErrUnexpectedExit, &exit)
	}

	payload, err := channel.ReadFrame(bytes.NewReader(buf))
	if err != nil {
		return out, infraError("decode", err, &exit)
	}

	envelope, err := codec.Decode[models.ResultEnvelope[O]](payload)
	if err != nil {
		return out, infraError("decode", err, &exit)
	}

	if envelope.Exception != nil {
		return out, &RunError{
			Kind:      KindWorker,
			Op:        "execute",
			Err:       envelope.Exception,
			Exception: envelope.Exception,
			Exit:      &exit,
		}
	}

	// a null output is a valid result
	if envelope.Output != nil {
		out = *envelope.Output
	}

	return out, nil
}
