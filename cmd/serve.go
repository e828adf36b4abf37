package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/lambda-feedback/isolate/app"
	"github.com/lambda-feedback/isolate/app/standalone"
	"github.com/lambda-feedback/isolate/internal/server"
	"github.com/lambda-feedback/isolate/util/logging"
)

var (
	serveCmdDescription = `The serve command starts a http server and waits for tasks
to run. Each request is run in an isolated worker process,
spawned from this binary.

A task is posted to /{function} or to /, with the function
named in the body or the function header. The run is cancel-
led when the client disconnects.

The command will launch the http server and blocks indefin-
itely, processing incoming http requests.`
	serveCmd = &cli.Command{
		Name:        "serve",
		Usage:       "Start a http server and listen for tasks.",
		Description: serveCmdDescription,
		Action:      serveAction,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "host",
				Aliases:  []string{"H"},
				Usage:    "The host to listen on.",
				Value:    "localhost",
				Category: "http",
				EnvVars:  []string{"HTTP_HOST"},
			},
			&cli.IntFlag{
				Name:     "port",
				Aliases:  []string{"P"},
				Usage:    "The port to listen on.",
				Value:    8080,
				Category: "http",
				EnvVars:  []string{"HTTP_PORT"},
			},
			&cli.BoolFlag{
				Name:     "h2c",
				Usage:    "Enable HTTP/2 cleartext upgrade.",
				Value:    false,
				Category: "http",
				EnvVars:  []string{"HTTP_H2C"},
			},
			&cli.DurationFlag{
				Name:     "read-header-timeout",
				Usage:    "The time allowed to read request headers.",
				Value:    server.DefaultReadHeaderTimeout,
				Category: "http",
				EnvVars:  []string{"HTTP_READ_HEADER_TIMEOUT"},
			},
		},
	}
)

func serveAction(ctx *cli.Context) error {
	log, err := logging.LoggerFromContext(ctx.Context)
	if err != nil {
		return err
	}

	app, err := app.New(ctx, registry)
	if err != nil {
		return err
	}

	cfg := standalone.Config{
		HttpConfig: server.HttpConfig{
			Host:              ctx.String("host"),
			Port:              ctx.Int("port"),
			H2c:               ctx.Bool("h2c"),
			ReadHeaderTimeout: ctx.Duration("read-header-timeout"),
		},
	}

	log.Info("starting http server")

	return app.Run(ctx.Context, standalone.Module(cfg))
}

func init() {
	rootApp.Commands = append(rootApp.Commands, serveCmd)
}
