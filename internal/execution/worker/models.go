package worker

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrWaitTimeout      = errors.New("wait timeout")
	ErrEmptyCommand     = errors.New("empty command")
	ErrProcessNotExited = errors.New("process not exited")
)

type StartConfig struct {
	// Cmd is the path or name of the worker binary to execute
	Cmd string `conf:"cmd"`

	// Cwd is the working directory in which
	// the binary should be executed
	Cwd string `conf:"cwd"`

	// Args is the list of arguments to pass to the command, before
	// the channel endpoint identifiers
	Args []string `conf:"args"`

	// Env is a map of environment variables
	// to set when running the command
	Env map[string]string `conf:"env"`
}

// ExitEvent describes how a worker process ended.
type ExitEvent struct {
	// Code is the exit code of the process
	Code *int

	// Signal is the signal that caused the process to exit
	Signal *int

	// Stderr is the tail of the stderr output of the process
	Stderr string
}

// Success reports whether the process exited with code 0.
func (e ExitEvent) Success() bool {
	return e.Code != nil && *e.Code == 0
}

func (e ExitEvent) String() string {
	var sb strings.Builder

	switch {
	case e.Signal != nil:
		fmt.Fprintf(&sb, "killed by signal %d", *e.Signal)
	case e.Code != nil:
		fmt.Fprintf(&sb, "exit code %d", *e.Code)
	default:
		sb.WriteString("unknown exit status")
	}

	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		fmt.Fprintf(&sb, ": %s", stderr)
	}

	return sb.String()
}
