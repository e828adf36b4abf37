package supervisor

import (
	"time"

	"github.com/lambda-feedback/isolate/internal/execution/worker"
)

// DefaultGracePeriod is the time a cancelled worker is given to exit
// on its own before it is forcibly terminated.
const DefaultGracePeriod = 4 * time.Minute

// DefaultDrainTimeout is the time the result channel may stay open
// after the worker exited.
const DefaultDrainTimeout = time.Second

type Config struct {
	// Start describes the worker executable and how to invoke it.
	Start worker.StartConfig `conf:"start,squash"`

	// GracePeriod is the time to wait for a cancelled worker to exit
	// before killing its process group. Defaults to DefaultGracePeriod.
	GracePeriod time.Duration `conf:"grace_period"`

	// DrainTimeout bounds reading the result after the worker exited,
	// while descendants of the worker still hold the channel. The
	// remaining process group is killed afterwards. Defaults to
	// DefaultDrainTimeout.
	DrainTimeout time.Duration `conf:"drain_timeout"`
}

func (c Config) gracePeriod() time.Duration {
	if c.GracePeriod <= 0 {
		return DefaultGracePeriod
	}

	return c.GracePeriod
}

func (c Config) drainTimeout() time.Duration {
	if c.DrainTimeout <= 0 {
		return DefaultDrainTimeout
	}

	return c.DrainTimeout
}
