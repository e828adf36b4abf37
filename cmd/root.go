package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/lambda-feedback/isolate/config"
	"github.com/lambda-feedback/isolate/internal/functions"
	"github.com/lambda-feedback/isolate/internal/shell"
	"github.com/lambda-feedback/isolate/util/conf"
	"github.com/lambda-feedback/isolate/util/logging"
)

var (
	appName  = "isolate"
	appUsage = `Run units of work in isolated, supervised worker processes,
with cooperative cancellation and forced termination.`

	// registry holds the functions workers can run.
	registry = functions.Builtin()

	// cliMap maps flag names to nested config keys.
	cliMap = map[string]string{
		"api-key":      "auth.key",
		"max-workers":  "runtime.max_workers",
		"grace-period": "runtime.supervisor.grace_period",
		"worker-cmd":   "runtime.supervisor.cmd",
		"worker-arg":   "runtime.supervisor.args",
		"worker-cwd":   "runtime.supervisor.cwd",
	}

	rootApp = &cli.App{
		Name:            appName,
		Usage:           appUsage,
		HideHelpCommand: true,
		Args:            true,
		Flags: []cli.Flag{
			// general flags
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "set the log level. Options: debug, info, warn, error, panic, fatal.",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "set the log format. Options: production, development.",
				EnvVars: []string{"LOG_FORMAT"},
			},
			&cli.PathFlag{
				Name:    "config",
				Usage:   "load the configuration from a .json or .env file.",
				EnvVars: []string{"ISOLATE_CONFIG"},
			},
			// runtime flags
			&cli.IntFlag{
				Name:     "max-workers",
				Usage:    "the maximum number of concurrent workers per function. Defaults to the number of CPUs.",
				Aliases:  []string{"n"},
				Category: "runtime",
				EnvVars:  []string{"ISOLATE_MAX_WORKERS"},
			},
			&cli.DurationFlag{
				Name:     "grace-period",
				Usage:    "the time a cancelled worker is given to exit before it is killed.",
				Category: "runtime",
				EnvVars:  []string{"ISOLATE_GRACE_PERIOD"},
			},
			&cli.StringFlag{
				Name:     "worker-cmd",
				Usage:    "the worker executable. Defaults to this binary.",
				Category: "runtime",
				EnvVars:  []string{"ISOLATE_WORKER_CMD"},
			},
			&cli.StringSliceFlag{
				Name:     "worker-arg",
				Usage:    "arguments passed to the worker executable, before the function name.",
				Category: "runtime",
				EnvVars:  []string{"ISOLATE_WORKER_ARGS"},
			},
			&cli.StringFlag{
				Name:     "worker-cwd",
				Usage:    "the working directory of the workers.",
				Category: "runtime",
				EnvVars:  []string{"ISOLATE_WORKER_CWD"},
			},
			// http flags
			&cli.StringFlag{
				Name:     "api-key",
				Usage:    "require clients to present this key in the api-key header.",
				Category: "auth",
				EnvVars:  []string{"ISOLATE_API_KEY"},
			},
		},
		Before: func(ctx *cli.Context) error {
			// create the logger
			log, err := createLogger(ctx)
			if err != nil {
				return err
			}

			// inject logger into cli context
			ctx.Context = logging.ContextWithLogger(ctx.Context, log)

			// parse config using defaults, file, env and flags
			cfg, err := conf.Parse[config.Config](conf.ParseOptions{
				Cli:       ctx,
				CliMap:    cliMap,
				Defaults:  config.DefaultConfig,
				EnvPrefix: "ISOLATE_",
				FileName:  ctx.Path("config"),
				Log:       log,
			})
			if err != nil {
				return err
			}

			// inject the config into the cli context
			ctx.Context = conf.ContextWithConfig(ctx.Context, cfg)

			return nil
		},
		After: func(ctx *cli.Context) error {
			log, err := logging.LoggerFromContext(ctx.Context)
			if err != nil {
				return err
			}

			_ = log.Sync()

			return nil
		},
	}
)

func init() {
	cli.VersionFlag = &cli.BoolFlag{
		Name:               "version",
		Usage:              "print the version",
		DisableDefaultText: true,
	}
}

type ExecuteParams struct {
	Version  string
	Compiled time.Time
}

// Execute runs the command line and returns the exit code.
func Execute(params ExecuteParams) int {
	rootApp.Version = params.Version
	rootApp.Compiled = params.Compiled

	return run(context.Background(), os.Args)
}

func run(ctx context.Context, args []string) int {
	err := rootApp.RunContext(ctx, args)

	// if app exited without error, return
	if err == nil {
		return 0
	}

	// commands request specific exit codes with an ExitError
	code := shell.ExitCode(err)

	if !shell.IsExitError(err) {
		fmt.Fprintf(os.Stderr, "exit error: %s\n", err.Error())
	}

	return code
}

func createLogger(ctx *cli.Context) (*zap.Logger, error) {
	return logging.NewLogger(appName, ctx.String("log-level"), ctx.String("log-format"))
}
