//go:build unix

package worker

import (
	"errors"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

func killProcess(cmd *exec.Cmd, force bool) error {
	signal := unix.SIGTERM
	if force {
		signal = unix.SIGKILL
	}

	pid := cmd.Process.Pid

	if pgid, err := unix.Getpgid(pid); err == nil && pgid == pid {
		// Negative pid sends signal to all in process group
		return unix.Kill(-pgid, signal)
	}

	return unix.Kill(pid, signal)
}

func killGroup(cmd *exec.Cmd) error {
	// the worker leads its own group, see initCmd
	err := unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
	if errors.Is(err, unix.ESRCH) {
		return nil
	}

	return err
}

func initCmd(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}
