package cmd

import (
	"os"

	"github.com/urfave/cli/v2"

	"github.com/lambda-feedback/isolate/util/logging"
)

var (
	startCmdDescription = `The start command detects the execution environment from the
environment variables and starts the matching server. This
allows isolate to be executed on arbitrary platforms, without
having to define the server configuration at buildtime.

If the AWS_LAMBDA_RUNTIME_API environment variable is set,
isolate will start the AWS Lambda runtime handler, matching
the behaviour of the lambda command.

Otherwise, isolate will start the standalone http server.`
	startCmd = &cli.Command{
		Name:        "start",
		Usage:       "Detect execution environment and start the server.",
		Description: startCmdDescription,
		Action:      startAction,
		Flags:       []cli.Flag{},
	}
)

func startAction(ctx *cli.Context) error {
	log, err := logging.LoggerFromContext(ctx.Context)
	if err != nil {
		return err
	}

	if isAWSLambda() {
		log.Info("detected AWS Lambda environment")
		return lambdaAction(ctx)
	}

	log.Info("detected standalone environment")
	return serveAction(ctx)
}

func isAWSLambda() bool {
	env, ok := os.LookupEnv("AWS_LAMBDA_RUNTIME_API")
	return ok && env != ""
}

func init() {
	startCmd.Flags = append(startCmd.Flags, serveCmd.Flags...)
	startCmd.Flags = append(startCmd.Flags, lambdaCmd.Flags...)

	rootApp.Commands = append(rootApp.Commands, startCmd)
}
