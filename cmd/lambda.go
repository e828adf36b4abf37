package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/lambda-feedback/isolate/app"
	"github.com/lambda-feedback/isolate/app/lambda"
	"github.com/lambda-feedback/isolate/util/logging"
)

var (
	lambdaCmdDescription = `The lambda command starts an AWS Lambda runtime interface
client, which allows tasks to be directly invoked by the AWS
Lambda runtime without any additional dependencies.

Each invocation is run in an isolated worker process. The run
is cancelled at the invocation deadline.

The command will start the AWS runtime interface client and
blocks indefinitely, processing incoming AWS Lambda events.`
	lambdaCmd = &cli.Command{
		Name:        "lambda",
		Usage:       "Run the AWS Lambda handler",
		Description: lambdaCmdDescription,
		Action:      lambdaAction,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "lambda-proxy-source",
				Usage:    "the source of the AWS Lambda event. Options: API_GW_V1, API_GW_V2, ALB.",
				Value:    "API_GW_V2",
				EnvVars:  []string{"LAMBDA_PROXY_SOURCE"},
				Category: "lambda",
			},
		},
	}
)

func lambdaAction(ctx *cli.Context) error {
	log, err := logging.LoggerFromContext(ctx.Context)
	if err != nil {
		return err
	}

	source, err := lambda.ParseProxySource(ctx.String("lambda-proxy-source"))
	if err != nil {
		return err
	}

	app, err := app.New(ctx, registry)
	if err != nil {
		return err
	}

	log.Info("starting AWS Lambda handler")

	return app.Run(ctx.Context, lambda.Module(lambda.Config{ProxySource: source}))
}

func init() {
	rootApp.Commands = append(rootApp.Commands, lambdaCmd)
}
