//go:build unix

package harness

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// newProbe reports the parent as disconnected once every writer of
// the parent->child pipe is closed, or the parent has exited.
func newProbe(f *os.File) (probe, error) {
	raw, err := f.SyscallConn()
	if err != nil {
		return nil, err
	}

	alive := parentCheck(os.Getppid())

	return func() (bool, error) {
		var revents int16
		var pollErr error

		err := raw.Control(func(fd uintptr) {
			fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
			_, pollErr = unix.Poll(fds, 0)
			revents = fds[0].Revents
		})
		if err != nil {
			return false, err
		}

		if errors.Is(pollErr, unix.EINTR) {
			return true, nil
		}

		if pollErr != nil {
			return false, pollErr
		}

		if revents&(unix.POLLHUP|unix.POLLERR|unix.POLLNVAL) != 0 {
			return false, nil
		}

		return alive(), nil
	}, nil
}
