package harness

import (
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultPollInterval is the interval of the liveness watchdog.
	DefaultPollInterval = 100 * time.Millisecond

	// DefaultDisconnectThreshold is the number of consecutive failed
	// liveness checks after which the parent is considered gone.
	DefaultDisconnectThreshold = 20
)

const (
	EnvPollInterval        = "ISOLATE_HARNESS_POLL_INTERVAL"
	EnvDisconnectThreshold = "ISOLATE_HARNESS_DISCONNECT_THRESHOLD"
	EnvExitDelay           = "ISOLATE_HARNESS_EXIT_DELAY"
)

type options struct {
	pollInterval        time.Duration
	disconnectThreshold int
	exitDelay           time.Duration
	exit                func(code int)
	log                 *zap.Logger
}

func defaultOptions() options {
	return options{
		pollInterval:        DefaultPollInterval,
		disconnectThreshold: DefaultDisconnectThreshold,
		exit:                func(int) {},
	}
}

type Option func(*options)

// WithPollInterval sets the interval of the liveness watchdog.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithDisconnectThreshold sets the number of consecutive failed
// liveness checks after which the worker exits.
func WithDisconnectThreshold(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.disconnectThreshold = n
		}
	}
}

// WithExitDelay sets a pause between flushing the logger and exiting.
func WithExitDelay(d time.Duration) Option {
	return func(o *options) {
		o.exitDelay = d
	}
}

// WithExit sets the function used to end the process. It is called with
// the exit code of a deliberate exit, and by the watchdogs on fatal
// conditions, possibly from another goroutine.
func WithExit(exit func(code int)) Option {
	return func(o *options) {
		o.exit = exit
	}
}

// WithLogger sets the logger of the harness.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

// OptionsFromEnv reads the watchdog tuning and the exit delay from
// the environment. Invalid values are ignored.
func OptionsFromEnv() []Option {
	var opts []Option

	if v, ok := os.LookupEnv(EnvPollInterval); ok {
		if d, err := time.ParseDuration(v); err == nil {
			opts = append(opts, WithPollInterval(d))
		}
	}

	if v, ok := os.LookupEnv(EnvDisconnectThreshold); ok {
		if n, err := strconv.Atoi(v); err == nil {
			opts = append(opts, WithDisconnectThreshold(n))
		}
	}

	if v, ok := os.LookupEnv(EnvExitDelay); ok {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			opts = append(opts, WithExitDelay(d))
		}
	}

	return opts
}
