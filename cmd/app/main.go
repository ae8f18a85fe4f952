package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/sitesmith/internal"
	pkgconfig "github.com/starford/sitesmith/pkg/config"
)

type runFunc func(ctx context.Context, opts ...internal.Option) error

// action loads the config and runs fn with the options given on the
// command line.
func action(fn runFunc) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		configPath := cmd.String("config")

		cfg := internal.NewDefaultConfig()
		loaded, err := pkgconfig.LoadOptional(configPath, cfg)
		if err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
		if !loaded {
			slog.Debug("config file not found, using defaults", slog.String("path", configPath))
		}

		opts := []internal.Option{
			internal.WithConfig(cfg),
			internal.WithInterval(time.Duration(cmd.Int("interval")) * time.Second),
			internal.WithOnce(cmd.Bool("once")),
			internal.WithOutputDir(cmd.String("output")),
			internal.WithDemo(cmd.Bool("demo")),
		}

		if err := fn(ctx, opts...); err != nil {
			return fmt.Errorf("%s: %w", cmd.Name, err)
		}

		return nil
	}
}

func main() {
	cmd := &cli.Command{
		Name:   "sitesmith",
		Usage:  "Build and publish static sites from Notion content, rebuilding when the content changes",
		Action: action(internal.Run),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.IntFlag{
				Name:    "interval",
				Usage:   "Polling interval in seconds (overrides agent.interval)",
				Sources: cli.EnvVars("SITESMITH_INTERVAL"),
			},
			&cli.BoolFlag{
				Name:  "once",
				Usage: "Run a single detection cycle and exit",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Build output directory (overrides build.output_dir)",
			},
			&cli.BoolFlag{
				Name:  "demo",
				Usage: "Use the bundled demo site instead of pulling from Notion",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API with the change-detection agent",
				Action: action(internal.Run),
			},
			{
				Name:   "agent",
				Usage:  "Poll for content changes and rebuild the site",
				Action: action(internal.RunAgent),
			},
			{
				Name:   "detect-only",
				Usage:  "Run one detection cycle and print the changes",
				Action: action(internal.RunDetect),
			},
			{
				Name:   "pull-only",
				Usage:  "Extract the site and cache it to the data file",
				Action: action(internal.RunPull),
			},
			{
				Name:   "push-only",
				Usage:  "Publish the existing output and write the status back",
				Action: action(internal.RunPush),
			},
			{
				Name:   "full",
				Usage:  "Pull, build, publish and write the status back",
				Action: action(internal.RunFull),
			},
			{
				Name:   "build",
				Usage:  "Render the site locally from the data file or the demo",
				Action: action(internal.RunBuild),
			},
			{
				Name:   "mcp",
				Usage:  "Serve component selection and change detection tools over MCP stdio",
				Action: action(internal.RunMCP),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
