package cmd

import (
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/lambda-feedback/isolate/internal/execution/harness"
	"github.com/lambda-feedback/isolate/internal/shell"
	"github.com/lambda-feedback/isolate/runtime"
	"github.com/lambda-feedback/isolate/util/logging"
)

var (
	workerCmd = &cli.Command{
		Name:      runtime.WorkerCommand,
		Usage:     "Run a function in the worker harness.",
		ArgsUsage: "<function> <parent-to-child> <child-to-parent> [session]",
		Hidden:    true,
		Action:    workerAction,
	}
)

func workerAction(ctx *cli.Context) error {
	log, err := logging.LoggerFromContext(ctx.Context)
	if err != nil {
		return err
	}

	log = log.Named("worker")

	args := ctx.Args().Slice()
	if len(args) < 1 {
		log.Error("missing function")
		return shell.NewExitError(harness.ExitUsage)
	}

	entry, err := registry.Lookup(args[0])
	if err != nil {
		log.Error("failed to look up function", zap.String("function", args[0]), zap.Error(err))
		return shell.NewExitError(harness.ExitUsage)
	}

	opts := append(
		harness.OptionsFromEnv(),
		harness.WithLogger(log.With(zap.String("function", args[0]))),
	)

	// ends the process
	entry.Main(args[1:], opts...)

	return nil
}

func init() {
	rootApp.Commands = append(rootApp.Commands, workerCmd)
}
