package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v3"

	"github.com/allisson/nostr-signer/cmd/app/commands"
	"github.com/allisson/nostr-signer/internal/app"
)

func getRotationCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "rotate",
			Usage: "Run one rotation batch towards the active key version",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:    "limit",
					Aliases: []string{"l"},
					Usage:   "Users per batch (defaults to ROTATION_BATCH_SIZE)",
				},
				&cli.BoolFlag{
					Name:  "reset",
					Usage: "Restart the rotation instead of running a batch",
				},
				&cli.IntFlag{
					Name:  "target",
					Usage: "Target key version for --reset (defaults to the active version)",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				rotationUseCase, err := container.RotationUseCase()
				if err != nil {
					return err
				}

				limit := int(cmd.Int("limit"))
				if limit == 0 {
					limit = cfg.RotationBatchSize
				}

				return commands.RunRotate(
					ctx,
					rotationUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					limit,
					cmd.Bool("reset"),
					int(cmd.Int("target")),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "rotation-status",
			Usage: "Show rotation progress and the key versions of stored values",
			Flags: []cli.Flag{
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				rotationUseCase, err := container.RotationUseCase()
				if err != nil {
					return err
				}

				return commands.RunRotationStatus(
					ctx,
					rotationUseCase,
					commands.DefaultIO().Writer,
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "rotation-worker",
			Usage: "Run rotation batches on ROTATION_INTERVAL_SECONDS with the health and metrics server",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				gin.SetMode(cfg.GetGinMode())

				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(context.Background()) }()

				rotationUseCase, err := container.RotationUseCase()
				if err != nil {
					return err
				}
				rotationMetrics, err := container.RotationMetrics()
				if err != nil {
					return err
				}

				var server commands.Server
				if cfg.MetricsEnabled {
					metricsServer, err := container.MetricsServer()
					if err != nil {
						return fmt.Errorf("failed to initialize metrics server: %w", err)
					}
					server = metricsServer
				}

				ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
				defer cancel()

				return commands.RunRotationWorker(
					ctx,
					rotationUseCase,
					rotationMetrics,
					server,
					container.Logger(),
					commands.RotationWorkerConfig{
						BatchSize:       cfg.RotationBatchSize,
						Interval:        cfg.RotationInterval,
						StatusInterval:  cfg.RotationStatusInterval,
						ShutdownTimeout: cfg.DBConnMaxLifetime,
					},
				)
			},
		},
		{
			Name:  "recrypt",
			Usage: "Re-encrypt every stored value from an old secret to a new one",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "old-key",
					Required: true,
					Usage:    "Secret the stored values are currently protected with",
				},
				&cli.StringFlag{
					Name:     "new-key",
					Required: true,
					Usage:    "Secret to protect the stored values with",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				rotationUseCase, err := container.RotationUseCase()
				if err != nil {
					return err
				}

				return commands.RunRecrypt(
					ctx,
					rotationUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("old-key"),
					cmd.String("new-key"),
					cmd.String("format"),
				)
			},
		},
	}
}
