package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/yourview/yourview/internal"
	"github.com/yourview/yourview/internal/canopy"
	pkgconfig "github.com/yourview/yourview/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.Load(cmd.String("config"), cfg); err != nil {
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

func lookup(ctx context.Context, cmd *cli.Command) error {
	raw := cmd.Args().First()
	if raw == "" {
		return fmt.Errorf("usage: %s lookup <suburb>", cmd.Root().Name)
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	res, err := internal.Lookup(ctx, raw,
		internal.WithConfig(cfg),
		internal.WithLogOutput(os.Stderr))
	if err != nil {
		return err
	}

	switch res.Status {
	case canopy.StatusFound:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"suburb": res.Suburb,
			"key":    res.Key,
			"record": res.Record,
		})
	case canopy.StatusNotFound:
		return fmt.Errorf("no canopy data for %q", res.Key)
	default:
		return fmt.Errorf("canopy lookup for %q failed: %w", res.Key, res.Err)
	}
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.ServeMCP(ctx,
		internal.WithConfig(cfg),
		internal.WithLogOutput(os.Stderr),
		internal.WithVersion(version))
}

func listRoutes(_ context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	table, err := internal.RouteTable(
		internal.WithConfig(cfg),
		internal.WithLogOutput(os.Stderr))
	if err != nil {
		return err
	}
	for _, r := range table.Routes() {
		fmt.Fprintf(os.Stdout, "%-14s %-12s %s\n", r.Path, r.Name, r.Title)
	}
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:    "yourview",
		Usage:   "Urban tree canopy viewer with suburb lookups and photo uploads",
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
				Usage:  "Run the HTTP server",
				Action: serve,
			},
			{
				Name:      "lookup",
				Usage:     "Look up canopy cover for a suburb and print it as JSON",
				ArgsUsage: "<suburb>",
				Action:    lookup,
			},
			{
				Name:   "mcp",
				Usage:  "Serve canopy tools over MCP on stdio",
				Action: mcp,
			},
			{
				Name:   "routes",
				Usage:  "Print the validated page route table",
				Action: listRoutes,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
