//go:build unix

package util

import (
	"errors"

	"golang.org/x/sys/unix"
)

// IsProcessAlive reports whether a process with the given pid exists.
// Exited children that were not reaped yet are reported as alive.
func IsProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}

	err := unix.Kill(pid, 0)

	// the process exists, but belongs to another user
	return err == nil || errors.Is(err, unix.EPERM)
}
