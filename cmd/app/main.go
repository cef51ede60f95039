package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/obridge/internal"
	"github.com/starford/obridge/internal/bridge"
	"github.com/starford/obridge/internal/models"
	pkgconfig "github.com/starford/obridge/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if _, err := pkgconfig.LoadOptional(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	// The flag wins over the file.
	if v := cmd.String("vault"); v != "" {
		cfg.Vault.Path = v
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
		internal.WithVersion(version),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func serveMCP(_ context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.ServeMCP(internal.WithConfig(cfg), internal.WithVersion(version))
}

// withService opens a runtime logging to stderr, runs fn and prints its
// result as JSON on stdout.
func withService(fn func(context.Context, *cli.Command, *bridge.Service) (any, error)) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		rt, err := internal.Open(nil, internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
		if err != nil {
			return err
		}
		defer rt.Close()

		out, err := fn(ctx, cmd, rt.Service)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
}

func requirePath(cmd *cli.Command) (string, error) {
	p := cmd.Args().First()
	if p == "" {
		return "", fmt.Errorf("%s: a vault-relative path is required", cmd.Name)
	}
	return p, nil
}

func main() {
	cmd := &cli.Command{
		Name:    "obridge",
		Usage:   "Turns plain mentions of note names and aliases into wikilinks across a Markdown vault",
		Version: version,
		Action:  serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "vault",
				Usage:   "Vault directory, overrides vault.path",
				Sources: cli.EnvVars("OBRIDGE_VAULT"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API with the event stream",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Run the MCP server on stdio",
				Action: serveMCP,
			},
			{
				Name:  "bridge",
				Usage: "Scan the vault, then link every permitted document",
				Action: withService(func(ctx context.Context, _ *cli.Command, svc *bridge.Service) (any, error) {
					return svc.Bridge(ctx)
				}),
			},
			{
				Name:  "scan",
				Usage: "Rebuild the alias snapshot",
				Action: withService(func(ctx context.Context, _ *cli.Command, svc *bridge.Service) (any, error) {
					return svc.Scan(ctx)
				}),
			},
			{
				Name:  "link",
				Usage: "Link documents from the stored snapshot",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "dry-run", Usage: "Count links without writing"},
				},
				Action: withService(func(ctx context.Context, cmd *cli.Command, svc *bridge.Service) (any, error) {
					return svc.Link(ctx, bridge.LinkOptions{DryRun: cmd.Bool("dry-run")})
				}),
			},
			{
				Name:      "exclude",
				Usage:     "Exclude a document or directory",
				ArgsUsage: "<path>",
				Action: withService(func(ctx context.Context, cmd *cli.Command, svc *bridge.Service) (any, error) {
					p, err := requirePath(cmd)
					if err != nil {
						return nil, err
					}
					return svc.Exclude(ctx, p)
				}),
			},
			{
				Name:      "unexclude",
				Usage:     "Remove the exclusion of a document or directory",
				ArgsUsage: "<path>",
				Action: withService(func(ctx context.Context, cmd *cli.Command, svc *bridge.Service) (any, error) {
					p, err := requirePath(cmd)
					if err != nil {
						return nil, err
					}
					return svc.Unexclude(ctx, p)
				}),
			},
			{
				Name:      "flags",
				Usage:     "Set the link-direction flags of an exclusion rule",
				ArgsUsage: "<file|directory> <name>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "can-link-from-outside", Usage: "Other documents may link to it"},
					&cli.BoolFlag{Name: "can-be-linked", Usage: "Its body may be rewritten"},
				},
				Action: withService(func(ctx context.Context, cmd *cli.Command, svc *bridge.Service) (any, error) {
					if cmd.Args().Len() != 2 {
						return nil, fmt.Errorf("flags: expected <file|directory> <name>")
					}
					kind, err := models.ParseKind(cmd.Args().Get(0))
					if err != nil {
						return nil, err
					}
					name := cmd.Args().Get(1)
					if err := svc.SetFlags(ctx, kind, name, cmd.Bool("can-link-from-outside"), cmd.Bool("can-be-linked")); err != nil {
						return nil, fmt.Errorf("flags %s: %w", name, err)
					}
					return svc.Settings(), nil
				}),
			},
			{
				Name:  "settings",
				Usage: "Print the settings, optionally toggling self links",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "add-alias-to-self", Usage: "Allow a document to link to itself"},
				},
				Action: withService(func(ctx context.Context, cmd *cli.Command, svc *bridge.Service) (any, error) {
					if cmd.IsSet("add-alias-to-self") {
						if err := svc.SetAddAliasToSelf(ctx, cmd.Bool("add-alias-to-self")); err != nil {
							return nil, err
						}
					}
					return svc.Settings(), nil
				}),
			},
			{
				Name:  "snapshot",
				Usage: "Print the stored alias snapshot",
				Action: withService(func(ctx context.Context, _ *cli.Command, svc *bridge.Service) (any, error) {
					return svc.Snapshot(ctx)
				}),
			},
			{
				Name:  "runs",
				Usage: "Print recent runs",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Value: 20, Usage: "Max runs"},
				},
				Action: withService(func(ctx context.Context, cmd *cli.Command, svc *bridge.Service) (any, error) {
					return svc.Runs(ctx, int(cmd.Int("limit")))
				}),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
