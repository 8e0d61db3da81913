package main

import (
	"context"
	"fmt"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/linkshelf/internal"
	"github.com/starford/linkshelf/internal/logger"
	pkgconfig "github.com/starford/linkshelf/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
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

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if email := cmd.String("email"); email != "" {
		cfg.MCP.OwnerEmail = email
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg), internal.WithVersion(version))
}

func main() {
	cmd := &cli.Command{
		Name:    "linkshelf",
		Usage:   "Personal bookmark manager with live multi-tab sync",
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
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP service (default)",
				Action: serve,
			},
			{
				Name:  "mcp",
				Usage: "Serve bookmark tools over MCP stdio",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Usage: "Account to act for (overrides mcp.owner_email)"},
				},
				Action: serveMCP,
			},
			bookmarksCommand(),
			loginCommand(),
			watchCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log, _ := logger.New("error", false)
		if log == nil {
			log = logger.Nop()
		}
		log.Error("application error", logger.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}
