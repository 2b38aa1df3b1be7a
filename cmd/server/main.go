// @title StaySmart AI API
// @version 1.0
// @description Employee attrition-risk scoring for HR datasets.
// @BasePath /
package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/24bbnb21-oss/StaySmartAI/internal/config"
	"github.com/24bbnb21-oss/StaySmartAI/internal/monitoring"
	"github.com/24bbnb21-oss/StaySmartAI/internal/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout).RunContext(ctx, os.Args); err != nil {
		slog.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
}

func newApp(logOut io.Writer) *cli.App {
	return &cli.App{
		Name:    "staysmart-server",
		Usage:   "serve the StaySmart scoring API",
		Version: server.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML config file",
				EnvVars: []string{"CONFIG_PATH"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "debug, info, warn or error",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Action: func(c *cli.Context) error {
			logger := monitoring.NewLoggerWithWriter(logOut, monitoring.ParseLevel(c.String("log-level")))
			slog.SetDefault(logger.Logger)

			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return err
			}

			app, err := server.NewApp(cfg, logger)
			if err != nil {
				return err
			}
			defer app.Close()

			return app.Run(c.Context)
		},
	}
}
