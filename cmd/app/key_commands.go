package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/nostr-signer/cmd/app/commands"
	"github.com/allisson/nostr-signer/internal/app"
	keysDomain "github.com/allisson/nostr-signer/internal/keys/domain"
)

func getKeyCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "provision-user",
			Usage: "Create a Nostr keypair for a user unless one exists",
			Flags: []cli.Flag{
				&cli.Int64Flag{
					Name:     "user-id",
					Aliases:  []string{"u"},
					Required: true,
					Usage:    "User ID",
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

				keyUseCase, err := container.KeyUseCase()
				if err != nil {
					return err
				}

				return commands.RunProvisionUser(
					ctx,
					keyUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.Int64("user-id"),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "provision-blog",
			Usage: "Create the blog Nostr keypair unless one exists",
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

				keyUseCase, err := container.KeyUseCase()
				if err != nil {
					return err
				}

				return commands.RunProvisionBlog(
					ctx,
					keyUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "import-key",
			Usage: "Import an existing nsec (read from stdin unless --encrypted-nsec is given)",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "target",
					Value: string(keysDomain.KeyTypeUser),
					Usage: "Identity to import into: 'user' or 'blog'",
				},
				&cli.Int64Flag{
					Name:    "user-id",
					Aliases: []string{"u"},
					Usage:   "User ID (required for target user)",
				},
				&cli.StringFlag{
					Name:     "npub",
					Required: true,
					Usage:    "Public key the imported nsec must match",
				},
				&cli.StringFlag{
					Name:  "encrypted-nsec",
					Usage: "Legacy ciphertext of the nsec under the session key",
				},
				&cli.StringFlag{
					Name:  "session-token",
					Usage: "Session token the encrypted nsec was sealed with",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				keyUseCase, err := container.KeyUseCase()
				if err != nil {
					return err
				}

				return commands.RunImportKey(
					ctx,
					keyUseCase,
					container.Logger(),
					commands.DefaultIO(),
					&keysDomain.ImportKeyInput{
						Target:        keysDomain.KeyType(cmd.String("target")),
						UserID:        cmd.Int64("user-id"),
						Npub:          cmd.String("npub"),
						EncryptedNsec: cmd.String("encrypted-nsec"),
						SessionToken:  cmd.String("session-token"),
					},
				)
			},
		},
		{
			Name:  "sign-event",
			Usage: "Sign a Nostr event with a user or the blog key",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "key-type",
					Value: string(keysDomain.KeyTypeUser),
					Usage: "Key to sign with: 'user' or 'blog'",
				},
				&cli.Int64Flag{
					Name:    "user-id",
					Aliases: []string{"u"},
					Usage:   "User ID (required for key type user)",
				},
				&cli.IntFlag{
					Name:  "kind",
					Value: -1,
					Usage: "Event kind (defaults to 1)",
				},
				&cli.Int64Flag{
					Name:  "created-at",
					Usage: "Unix timestamp (defaults to now)",
				},
				&cli.StringFlag{
					Name:  "tags",
					Usage: `JSON array of tags, e.g. [["t","nostr"]]`,
				},
				&cli.StringFlag{
					Name:    "content",
					Aliases: []string{"c"},
					Usage:   "Event content",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				keyUseCase, err := container.KeyUseCase()
				if err != nil {
					return err
				}

				input := &keysDomain.SignEventInput{
					KeyType: keysDomain.KeyType(cmd.String("key-type")),
					UserID:  cmd.Int64("user-id"),
					Content: cmd.String("content"),
				}
				if kind := int(cmd.Int("kind")); kind >= 0 {
					input.Kind = &kind
				}
				if cmd.IsSet("created-at") {
					createdAt := cmd.Int64("created-at")
					input.CreatedAt = &createdAt
				}

				return commands.RunSignEvent(ctx, keyUseCase, commands.DefaultIO().Writer, input, cmd.String("tags"))
			},
		},
		{
			Name:  "backup",
			Usage: "Export every encrypted nsec to a JSON file",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "file",
					Required: true,
					Usage:    "Backup file path, or '-' for stdout",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				keyUseCase, err := container.KeyUseCase()
				if err != nil {
					return err
				}

				return commands.RunBackup(
					ctx,
					keyUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("file"),
				)
			},
		},
		{
			Name:  "restore",
			Usage: "Restore encrypted nsec values from a JSON backup",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "file",
					Required: true,
					Usage:    "Backup file path, or '-' for stdin",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				keyUseCase, err := container.KeyUseCase()
				if err != nil {
					return err
				}

				return commands.RunRestore(
					ctx,
					keyUseCase,
					container.Logger(),
					commands.DefaultIO(),
					cmd.String("file"),
				)
			},
		},
	}
}
