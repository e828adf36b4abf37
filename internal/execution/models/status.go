package models

// Status is the lifecycle state of a supervised run.
type Status int32

const (
	StatusNone Status = iota
	StatusInitializing
	StatusWaitingForProcessToExit
	StatusFinalizing
	StatusCompleted
	StatusFailed
	StatusCanceled
)

func (s Status) String() string {
	switch s {
	case StatusNone:
		return "none"
	case StatusInitializing:
		return "initializing"
	case StatusWaitingForProcessToExit:
		return "waiting_for_process_to_exit"
	case StatusFinalizing:
		return "finalizing"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether s is one of the final states of a run.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCanceled
}
