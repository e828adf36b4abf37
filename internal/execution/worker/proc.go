package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Params describes a worker process to start.
type Params struct {
	// Config is the command configuration of the worker.
	Config StartConfig

	// Args are appended to the configured arguments, e.g. the
	// identifiers of the channel endpoints.
	Args []string

	// ExtraFiles are inherited by the worker, starting at descriptor 3.
	ExtraFiles []*os.File

	// WaitDelay bounds the time spent draining the output of an exited
	// process whose descendants still hold its stdout or stderr.
	// Defaults to DefaultWaitDelay.
	WaitDelay time.Duration

	// Log is the logger worker output is forwarded to.
	Log *zap.Logger
}

// DefaultWaitDelay is the default of Params.WaitDelay.
const DefaultWaitDelay = time.Second

// Process owns a started worker process.
type Process struct {
	pid  int
	cmd  *exec.Cmd
	done chan struct{}
	exit ExitEvent

	stdout *outputSink
	stderr *outputSink

	log *zap.Logger
}

// Start starts the worker process. The context is only checked before
// the process is started, cancelling it later does not affect the process.
func Start(ctx context.Context, params Params) (*Process, error) {
	config := params.Config

	if config.Cmd == "" {
		return nil, ErrEmptyCommand
	}

	// exit early if the context is already cancelled
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("failed to start process: %w", err)
	}

	args := make([]string, 0, len(config.Args)+len(params.Args))
	args = append(args, config.Args...)
	args = append(args, params.Args...)

	cmd := exec.Command(config.Cmd, args...)

	if config.Env != nil {
		env := os.Environ()
		for k, v := range config.Env {
			env = append(env, fmt.Sprintf("%s=%s", k, v))
		}
		cmd.Env = env
	}

	if config.Cwd != "" {
		cmd.Dir = config.Cwd
	}

	log := params.Log
	if log == nil {
		log = zap.NewNop()
	}

	stdout := newOutputSink("stdout", log)
	stderr := newOutputSink("stderr", log)

	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.ExtraFiles = params.ExtraFiles

	cmd.WaitDelay = params.WaitDelay
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = DefaultWaitDelay
	}

	initCmd(cmd)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start process: %w", err)
	}

	p := &Process{
		pid:    cmd.Process.Pid,
		cmd:    cmd,
		done:   make(chan struct{}),
		stdout: stdout,
		stderr: stderr,
		log:    log.Named("proc").With(zap.Int("pid", cmd.Process.Pid)),
	}

	go func() {
		// block until the process exits and its output is drained
		err := cmd.Wait()
		if errors.Is(err, exec.ErrWaitDelay) {
			// exited cleanly, but a descendant kept the output open
			err = nil
		}

		stdout.Flush()
		stderr.Flush()

		p.exit = getExitEvent(err, stderr.Tail())

		p.log.Debug("process exited", zap.Stringer("exit", p.exit))

		close(p.done)
	}()

	return p, nil
}

// Pid returns the OS process identifier.
func (p *Process) Pid() int {
	return p.pid
}

// Done is closed once the process has exited.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Exited reports whether the process has exited.
func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// ExitEvent returns the exit event of the process, or
// ErrProcessNotExited if it is still running.
func (p *Process) ExitEvent() (ExitEvent, error) {
	if !p.Exited() {
		return ExitEvent{}, ErrProcessNotExited
	}

	return p.exit, nil
}

// Wait blocks until the process exits or the context is done.
func (p *Process) Wait(ctx context.Context) (ExitEvent, error) {
	select {
	case <-ctx.Done():
		return ExitEvent{}, ctx.Err()
	case <-p.done:
		return p.exit, nil
	}
}

// WaitFor blocks until the process exits, the context is done or the
// timeout is reached. A timeout <= 0 waits without a deadline.
func (p *Process) WaitFor(ctx context.Context, timeout time.Duration) (ExitEvent, error) {
	if timeout <= 0 {
		return p.Wait(ctx)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ExitEvent{}, ctx.Err()
	case <-p.done:
		return p.exit, nil
	case <-timer.C:
		return ExitEvent{}, ErrWaitTimeout
	}
}

// Terminate asks the process group to stop. It returns immediately.
func (p *Process) Terminate() error {
	return p.signal(false)
}

// Kill forcibly terminates the process group. It returns immediately.
func (p *Process) Kill() error {
	return p.signal(true)
}

// KillGroup forcibly terminates every process left in the group of the
// worker, including after the worker itself has exited.
func (p *Process) KillGroup() error {
	return killGroup(p.cmd)
}

func (p *Process) signal(force bool) error {
	// report success if the process terminated by the time
	// the signal is requested
	if p.Exited() {
		p.log.Debug("process already terminated")
		return nil
	}

	p.log.Info("sending signal", zap.Bool("force", force))

	if err := killProcess(p.cmd, force); err != nil {
		if errors.Is(err, os.ErrProcessDone) || p.Exited() {
			return nil
		}

		p.log.Error("signal failed", zap.Error(err))
		return err
	}

	return nil
}

// MARK: - Helpers

func getExitEvent(err error, stderr string) ExitEvent {
	var cell int
	var exitStatus *int
	var signo *int

	if err == nil {
		// the process exited successfully, set the exit code to 0
		exitStatus = &cell
	} else if exitError, ok := err.(*exec.ExitError); ok {
		// the process exited with an error
		if status, ok := exitError.Sys().(syscall.WaitStatus); ok {
			if status.Signaled() {
				// the process was terminated by a signal
				cell = int(status.Signal())
				signo = &cell
			} else {
				cell = status.ExitStatus()
				exitStatus = &cell
			}
		}
	}

	if signo == nil && exitStatus == nil {
		// could not determine the exit status or signal,
		// set exit status to 1
		cell = 1
		exitStatus = &cell
	}

	return ExitEvent{
		Code:   exitStatus,
		Signal: signo,
		Stderr: stderr,
	}
}
