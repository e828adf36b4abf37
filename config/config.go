package config

import (
	"github.com/lambda-feedback/isolate/internal/execution/supervisor"
	"github.com/lambda-feedback/isolate/runtime"
	"github.com/lambda-feedback/isolate/util/conf"
)

type AuthConfig struct {
	// Key is the api key clients must present. Requests are not
	// authorized if it is empty.
	Key string `conf:"key"`
}

type Config struct {
	// LogLevel is the log level for the application
	LogLevel string `conf:"log_level"`

	// LogFormat is the log format for the application
	LogFormat string `conf:"log_format"`

	// Auth is the authorization configuration of the http surface
	Auth AuthConfig `conf:"auth"`

	// Runtime is the runtime configuration
	Runtime runtime.Config `conf:"runtime"`
}

var runtimeDefaults = conf.DefaultConfig{
	"max_workers":             0,
	"supervisor.grace_period": supervisor.DefaultGracePeriod.String(),
}

// DefaultConfig holds the defaults of the application config.
var DefaultConfig = defaults()

func defaults() conf.DefaultConfig {
	d := conf.MergeDefaults("runtime", runtimeDefaults)

	d["log_level"] = "info"
	d["log_format"] = "production"

	return d
}
