package dispatcher

import (
	"context"

	"github.com/lambda-feedback/isolate/internal/execution/supervisor"
)

type Dispatcher[I, O any] interface {
	// Send runs data on a supervisor and returns the result
	Send(context.Context, I) (O, error)

	// Start starts the dispatcher
	Start(context.Context) error

	// Shutdown stops the dispatcher and waits for in-flight runs to finish.
	Shutdown(context.Context) error

	// Stats returns the current utilization of the dispatcher.
	Stats() Stats
}

// Runner executes a single run. It is implemented by supervisor.Supervisor.
type Runner[I, O any] interface {
	Run(context.Context, I) (O, error)
}

type Stats struct {
	// Busy is the number of supervisors running a worker.
	Busy int32 `json:"busy"`

	// Idle is the number of supervisors waiting for work.
	Idle int32 `json:"idle"`

	// Max is the maximum number of concurrent workers.
	Max int32 `json:"max"`
}

type SupervisorFactory[I, O any] func(supervisor.Params) (Runner[I, O], error)

func defaultSupervisorFactory[I, O any](
	params supervisor.Params,
) (Runner[I, O], error) {
	return supervisor.New[I, O](params), nil
}

// reusable reports whether a supervisor can be reused after a run that
// ended with err. Supervisors whose run broke down are discarded.
func reusable(err error) bool {
	switch supervisor.KindOf(err) {
	case supervisor.KindInfrastructure, supervisor.KindTerminated:
		return false
	default:
		return true
	}
}
