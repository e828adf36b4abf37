package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/lambda-feedback/isolate/config"
	"github.com/lambda-feedback/isolate/internal/execution/models"
	"github.com/lambda-feedback/isolate/internal/execution/supervisor"
	"github.com/lambda-feedback/isolate/internal/shell"
	"github.com/lambda-feedback/isolate/runtime"
	"github.com/lambda-feedback/isolate/util/conf"
	"github.com/lambda-feedback/isolate/util/logging"
)

// Exit codes of the run command.
const (
	runExitWorker         = 1
	runExitInfrastructure = 2
	runExitTerminated     = 3
	runExitCancelled      = 130
)

var (
	runCmdDescription = `The run command runs a single task in an isolated worker
process and prints its output as JSON to stdout.

Interrupting the command asks the worker to stop. A worker
that does not exit within the grace period is killed.

Failures are printed as JSON to stderr, and reported by the
exit code: 1 if the function failed, 2 if the worker could
not run it, 3 if the worker was killed.`
	runCmd = &cli.Command{
		Name:        "run",
		Usage:       "Run a single task in a worker process.",
		Description: runCmdDescription,
		Action:      runAction,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "function",
				Aliases:  []string{"f"},
				Usage:    "the function to run. Options: " + fmt.Sprint(registry.Names()),
				Required: true,
			},
			&cli.StringFlag{
				Name:    "input",
				Aliases: []string{"i"},
				Usage:   "the JSON input of the function, or - to read it from stdin.",
				Value:   "null",
			},
			&cli.DurationFlag{
				Name:  "grace-period",
				Usage: "the time the worker is given to exit once interrupted.",
			},
		},
	}
)

// runError is the structured error printed by the run command.
type runError struct {
	Kind    string `json:"kind"`
	Type    string `json:"type,omitempty"`
	Message string `json:"message"`
}

func runAction(ctx *cli.Context) error {
	log, err := logging.LoggerFromContext(ctx.Context)
	if err != nil {
		return err
	}

	cfg, err := conf.GetConfigFromContext[config.Config](ctx.Context)
	if err != nil {
		return err
	}

	function := ctx.String("function")
	if !registry.Has(function) {
		return fmt.Errorf("%w: %q", runtime.ErrFunctionNotFound, function)
	}

	input, err := readInput(ctx)
	if err != nil {
		return err
	}

	workerConfig, err := runtime.WorkerConfig(cfg.Runtime.Supervisor, function)
	if err != nil {
		return err
	}

	if ctx.IsSet("grace-period") {
		workerConfig.GracePeriod = ctx.Duration("grace-period")
	}

	runCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := supervisor.New[json.RawMessage, json.RawMessage](supervisor.Params{
		Config: workerConfig,
		Log:    log,
	})

	output, err := s.Run(runCtx, input)
	if err != nil {
		log.Debug("task failed", zap.Error(err))
		return printRunError(ctx.App.ErrWriter, err, runCtx.Err() != nil)
	}

	if len(output) == 0 {
		output = json.RawMessage("null")
	}

	_, err = fmt.Fprintln(ctx.App.Writer, string(output))
	return err
}

func readInput(ctx *cli.Context) (json.RawMessage, error) {
	input := []byte(ctx.String("input"))

	if string(input) == "-" {
		var err error
		if input, err = io.ReadAll(ctx.App.Reader); err != nil {
			return nil, fmt.Errorf("failed to read input: %w", err)
		}
	}

	if !json.Valid(input) {
		return nil, errors.New("input is not valid JSON")
	}

	return json.RawMessage(input), nil
}

func printRunError(w io.Writer, err error, cancelled bool) error {
	body := runError{Message: err.Error()}
	code := runExitInfrastructure

	var exc *models.Exception

	switch kind := supervisor.KindOf(err); {
	case kind == supervisor.KindWorker && errors.As(err, &exc):
		body = runError{Kind: kind.String(), Type: exc.Type, Message: exc.Message}
		code = runExitWorker
	case kind == supervisor.KindTerminated:
		body.Kind = kind.String()
		code = runExitTerminated
	default:
		body.Kind = supervisor.KindInfrastructure.String()
	}

	// a worker that stopped on request reports the cancellation
	// as its exception
	if cancelled && code != runExitTerminated {
		code = runExitCancelled
	}

	if err := json.NewEncoder(w).Encode(map[string]runError{"error": body}); err != nil {
		return err
	}

	return shell.NewExitError(code)
}

func init() {
	rootApp.Commands = append(rootApp.Commands, runCmd)
}
