//go:build !unix

package worker

import (
	"errors"
	"os"
	"os/exec"
)

func killProcess(cmd *exec.Cmd, _ bool) error {
	return cmd.Process.Kill()
}

func killGroup(cmd *exec.Cmd) error {
	err := cmd.Process.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}

	return err
}

func initCmd(cmd *exec.Cmd) {
	// No-op on non-unix platforms.
}
