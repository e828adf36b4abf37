package supervisor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lambda-feedback/isolate/internal/execution/models"
	"github.com/lambda-feedback/isolate/internal/execution/worker"
)

var (
	// ErrRunInProgress is returned if Run is called while another run
	// of the same supervisor is still in progress.
	ErrRunInProgress = errors.New("run already in progress")

	// ErrWorker matches failures reported by the work function.
	ErrWorker = errors.New("worker exception")

	// ErrInfrastructure matches failures of the execution machinery.
	ErrInfrastructure = errors.New("infrastructure failure")

	// ErrTerminated is returned if the worker did not exit within the
	// grace period after cancellation and was killed.
	ErrTerminated = errors.New("terminated by supervisor")

	// ErrSpawn is returned if the worker process could not be started.
	ErrSpawn = errors.New("failed to spawn worker")

	// ErrEmptyResult is returned if the worker exited cleanly without
	// writing a result.
	ErrEmptyResult = errors.New("empty result")

	// ErrUnexpectedExit is returned if the worker exited abnormally
	// without writing a result.
	ErrUnexpectedExit = errors.New("worker exited unexpectedly")
)

// Kind classifies a failed run.
type Kind int

const (
	KindWorker Kind = iota + 1
	KindInfrastructure
	KindTerminated
)

func (k Kind) String() string {
	switch k {
	case KindWorker:
		return "worker"
	case KindInfrastructure:
		return "infrastructure"
	case KindTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// RunError is the error returned by a failed run.
type RunError struct {
	// Kind is the category of the failure.
	Kind Kind

	// Op is the step of the run that failed.
	Op string

	// Err is the underlying error. For worker failures, this is
	// the marshalled exception.
	Err error

	// Exception is the exception reported by the worker, if any.
	Exception *models.Exception

	// Exit describes how the worker process ended, if it was started.
	Exit *worker.ExitEvent
}

func (e *RunError) Error() string {
	var sb strings.Builder

	if e.Kind == KindWorker && e.Exception != nil {
		fmt.Fprintf(&sb, "%s: %s", ErrWorker, e.Exception.Error())
		return sb.String()
	}

	fmt.Fprintf(&sb, "%s: %s", e.Kind, e.Op)

	if e.Err != nil {
		fmt.Fprintf(&sb, ": %v", e.Err)
	}

	if e.Exit != nil {
		fmt.Fprintf(&sb, " (%s)", e.Exit)
	}

	return sb.String()
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels ErrWorker, ErrInfrastructure and ErrTerminated.
func (e *RunError) Is(target error) bool {
	switch target {
	case ErrWorker:
		return e.Kind == KindWorker
	case ErrInfrastructure:
		return e.Kind == KindInfrastructure
	case ErrTerminated:
		return e.Kind == KindTerminated
	default:
		return false
	}
}

// KindOf returns the kind of a run error, or 0 if err is not a RunError.
func KindOf(err error) Kind {
	var runErr *RunError
	if errors.As(err, &runErr) {
		return runErr.Kind
	}

	return 0
}

func infraError(op string, err error, exit *worker.ExitEvent) *RunError {
	return &RunError{
		Kind: KindInfrastructure,
		Op:   op,
		Err:  err,
		Exit: exit,
	}
}
