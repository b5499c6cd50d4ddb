package main

import (
	"context"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/allisson/nostr-signer/cmd/app/commands"
	"github.com/allisson/nostr-signer/internal/app"
)

func getSystemCommands(version string) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "migrate",
			Usage: "Run database migrations",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				container.Logger().Info("nostr-signer", slog.String("version", version))
				return commands.RunMigrations(container.Logger(), cfg.DBDriver, cfg.DBConnectionString)
			},
		},
		{
			Name:  "keygen",
			Usage: "Generate key encryption key material for a key version",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:     "version",
					Aliases:  []string{"v"},
					Required: true,
					Usage:    "Key version the material is generated for",
				},
				&cli.StringFlag{
					Name:  "kms-key-uri",
					Usage: "Encrypt the material with this KMS key (defaults to KMS_KEY_URI)",
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

				kmsKeyURI := cmd.String("kms-key-uri")
				if kmsKeyURI == "" {
					kmsKeyURI = cfg.KMSKeyURI
				}

				return commands.RunKeygen(
					ctx,
					container.KMSService(),
					commands.DefaultIO().Writer,
					int(cmd.Int("version")),
					kmsKeyURI,
					cmd.String("format"),
				)
			},
		},
	}
}
