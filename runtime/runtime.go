package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/getsentry/sentry-go"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/lambda-feedback/isolate/internal/execution"
	"github.com/lambda-feedback/isolate/internal/execution/dispatcher"
	"github.com/lambda-feedback/isolate/internal/execution/supervisor"
	"github.com/lambda-feedback/isolate/internal/functions"
)

var (
	ErrFunctionNotFound = errors.New("function not found")
	ErrShutdown         = errors.New("runtime is shut down")
)

// WorkerCommand is the subcommand the default worker executable is
// invoked with, followed by the function name.
const WorkerCommand = "worker"

// Runtime runs tasks in isolated worker processes.
type Runtime interface {
	Handle(context.Context, TaskRequest) (TaskResponse, error)

	Start(context.Context) error

	Shutdown(context.Context) error

	// Stats returns the utilization of the dispatchers by function.
	Stats() map[string]dispatcher.Stats
}

// Dispatcher is the runtime-specific dispatcher type.
type Dispatcher = dispatcher.Dispatcher[json.RawMessage, json.RawMessage]

// DispatcherFactory creates the dispatcher for a single function.
type DispatcherFactory func(execution.Params) (Dispatcher, error)

type Config struct {
	// MaxWorkers is the maximum number of concurrent workers per function
	MaxWorkers int `conf:"max_workers"`

	// Supervisor is the configuration of the worker supervisors. If no
	// command is configured, the running executable is used.
	Supervisor supervisor.Config `conf:"supervisor"`
}

// TaskRuntime dispatches each function to its own pool of supervisors.
type TaskRuntime struct {
	config    Config
	functions *functions.Registry
	factory   DispatcherFactory

	mu          sync.Mutex
	closed      bool
	dispatchers map[string]Dispatcher

	log *zap.Logger
}

var _ Runtime = (*TaskRuntime)(nil)

// RuntimeParams defines the dependencies for the runtime.
type RuntimeParams struct {
	fx.In

	// Config is the config for the underlying dispatchers
	Config Config

	// Functions is the registry of functions that may be run
	Functions *functions.Registry

	// DispatcherFactory creates dispatchers, defaults to execution.NewDispatcher
	DispatcherFactory DispatcherFactory `optional:"true"`

	// Log is the logger to use for the runtime
	Log *zap.Logger
}

// NewRuntime creates a new runtime.
func NewRuntime(params RuntimeParams) (*TaskRuntime, error) {
	config := params.Config

	supervisorConfig, err := resolveWorker(config.Supervisor)
	if err != nil {
		return nil, err
	}

	config.Supervisor = supervisorConfig

	factory := params.DispatcherFactory
	if factory == nil {
		factory = execution.NewDispatcher[json.RawMessage, json.RawMessage]
	}

	log := params.Log
	if log == nil {
		log = zap.NewNop()
	}

	return &TaskRuntime{
		config:      config,
		functions:   params.Functions,
		factory:     factory,
		dispatchers: make(map[string]Dispatcher),
		log:         log.Named("runtime"),
	}, nil
}

func NewLifecycleRuntime(params RuntimeParams, lc fx.Lifecycle) (Runtime, error) {
	r, err := NewRuntime(params)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return r.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return r.Shutdown(ctx)
		},
	})

	return r, nil
}

func (r *TaskRuntime) Start(context.Context) error {
	// dispatchers are created on first use
	r.log.Debug("runtime started", zap.Strings("functions", r.functions.Names()))
	return nil
}

func (r *TaskRuntime) Handle(
	ctx context.Context,
	req TaskRequest,
) (TaskResponse, error) {
	log := r.log.With(zap.String("function", req.Function))

	if !r.functions.Has(req.Function) {
		return TaskResponse{}, fmt.Errorf("%w: %q", ErrFunctionNotFound, req.Function)
	}

	d, err := r.dispatcher(req.Function)
	if err != nil {
		return TaskResponse{}, err
	}

	input := req.Input
	if len(input) == 0 {
		input = json.RawMessage("null")
	}

	output, err := d.Send(ctx, input)
	if err != nil {
		log.Debug("task failed", zap.Error(err))
		r.report(ctx, req, err)
		return TaskResponse{}, err
	}

	return TaskResponse{Output: output}, nil
}

func (r *TaskRuntime) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	dispatchers := r.dispatchers
	r.dispatchers = make(map[string]Dispatcher)
	r.mu.Unlock()

	var errs []error
	for name, d := range dispatchers {
		if err := d.Shutdown(ctx); err != nil {
			r.log.Error("failed to shut down dispatcher", zap.String("function", name), zap.Error(err))
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (r *TaskRuntime) Stats() map[string]dispatcher.Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := make(map[string]dispatcher.Stats, len(r.dispatchers))
	for name, d := range r.dispatchers {
		stats[name] = d.Stats()
	}

	return stats
}

// dispatcher returns the dispatcher of a function, creating it if needed.
func (r *TaskRuntime) dispatcher(function string) (Dispatcher, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrShutdown
	}

	if d, ok := r.dispatchers[function]; ok {
		return d, nil
	}

	config := withFunction(r.config.Supervisor, function)

	d, err := r.factory(execution.Params{
		Config: execution.Config{
			MaxWorkers: r.config.MaxWorkers,
			Supervisor: config,
		},
		Log: r.log.With(zap.String("function", function)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}

	if err := d.Start(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to start dispatcher: %w", err)
	}

	r.dispatchers[function] = d

	return d, nil
}

// report sends failures of the execution machinery to sentry. Worker
// exceptions are task failures and are not reported.
func (r *TaskRuntime) report(ctx context.Context, req TaskRequest, err error) {
	switch supervisor.KindOf(err) {
	case supervisor.KindInfrastructure, supervisor.KindTerminated:
	default:
		return
	}

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}

	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("function", req.Function)
		scope.SetTag("kind", supervisor.KindOf(err).String())
		hub.CaptureException(err)
	})
}

// WorkerConfig returns the supervisor config of workers running
// function. If no command is configured, the running executable is
// used with the worker subcommand.
func WorkerConfig(config supervisor.Config, function string) (supervisor.Config, error) {
	config, err := resolveWorker(config)
	if err != nil {
		return config, err
	}

	return withFunction(config, function), nil
}

func resolveWorker(config supervisor.Config) (supervisor.Config, error) {
	if config.Start.Cmd != "" {
		return config, nil
	}

	exe, err := os.Executable()
	if err != nil {
		return config, fmt.Errorf("failed to resolve worker executable: %w", err)
	}

	config.Start.Cmd = exe
	config.Start.Args = []string{WorkerCommand}

	return config, nil
}

// withFunction appends the function name to the worker arguments.
func withFunction(config supervisor.Config, function string) supervisor.Config {
	args := make([]string, 0, len(config.Start.Args)+1)
	args = append(args, config.Start.Args...)
	config.Start.Args = append(args, function)

	return config
}
