package harness

import (
	"os"

	"github.com/lambda-feedback/isolate/util"
)

// parentCheck reports false once the process has been reparented or the
// process that started it is gone.
func parentCheck(ppid int) func() bool {
	return func() bool {
		return os.Getppid() == ppid && util.IsProcessAlive(ppid)
	}
}
