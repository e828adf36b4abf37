//go:build !unix

package util

import (
	"os/exec"
	"strconv"
)

// IsProcessAlive reports whether a process with the given pid exists.
func IsProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}

	cmd := exec.Command("ps", "-p", strconv.Itoa(pid))

	err := cmd.Run()
	if err, ok := err.(*exec.ExitError); ok {
		// if the process is found ps returns with exit status 0,
		// otherwise it returns with another exit status
		return err.ProcessState.ExitCode() == 0
	}
	if err != nil {
		return false
	}

	return true
}
