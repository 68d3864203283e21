package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/internal/ads/backend"
	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/internal/ads/budget"
	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/internal/ads/ingest"
	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/internal/ads/query"
	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/internal/ads/source"
	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/pkg/postgres"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "adsctl: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "adsctl",
		Usage: "administer the ad search stores",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "configs/development.yaml",
				Usage:   "path to config file",
				EnvVars: []string{config.EnvPrefix + "CONFIG"},
			},
		},
		Before: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return err
			}
			logger.SetupWriter(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
			c.App.Metadata = map[string]any{"config": cfg}
			return nil
		},
		Commands: []*cli.Command{
			ingestCommand(),
			queryCommand(),
			migrateCommand(),
			budgetCommand(),
		},
	}
}

func loadedConfig(c *cli.Context) *config.Config {
	return c.App.Metadata["config"].(*config.Config)
}

func ingestCommand() *cli.Command {
	return &cli.Command{
		Name:  "ingest",
		Usage: "load an ads file into the configured index and catalog",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "ads file (defaults to ingest.adsPath)"},
		},
		Action: func(c *cli.Context) error {
			cfg := loadedConfig(c)
			path := c.String("file")
			if path == "" {
				path = cfg.Ingest.AdsPath
			}

			stores, err := backend.Open(c.Context, cfg)
			if err != nil {
				return err
			}
			defer stores.Close()

			src, err := source.OpenFile(path)
			if err != nil {
				return err
			}
			defer src.Close()

			report, err := ingest.New(stores.Index, stores.Catalog).Run(c.Context, src)
			if report != nil {
				if werr := writeJSON(c, report); werr != nil {
					return werr
				}
			}
			return err
		},
	}
}

func queryCommand() *cli.Command {
	return &cli.Command{
		Name:      "query",
		Usage:     "select ads for a free-text query against already-ingested stores",
		ArgsUsage: "<text>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "dedupe", Usage: "collapse repeated ad ids"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("query takes exactly one argument", 2)
			}
			cfg := loadedConfig(c)
			stores, err := backend.Open(c.Context, cfg)
			if err != nil {
				return err
			}
			defer stores.Close()

			engine := query.New(stores.Index, stores.Catalog,
				query.WithDedupe(c.Bool("dedupe") || cfg.Search.DedupeResults),
			)
			return writeJSON(c, engine.SelectAds(c.Context, c.Args().First()))
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "apply the postgres catalog schema",
		Action: func(c *cli.Context) error {
			cfg := loadedConfig(c)
			if err := postgres.Migrate(cfg.Postgres.URL()); err != nil {
				return err
			}
			slog.Info("catalog schema up to date", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
			return nil
		},
	}
}

func budgetCommand() *cli.Command {
	return &cli.Command{
		Name:  "budget",
		Usage: "run the budget loader",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "source", Usage: "budget source (defaults to ingest.budgetPath)"},
		},
		Action: func(c *cli.Context) error {
			src := c.String("source")
			if src == "" {
				src = loadedConfig(c).Ingest.BudgetPath
			}
			report, err := budget.NopLoader{}.Load(c.Context, src)
			if err != nil {
				return err
			}
			return writeJSON(c, report)
		},
	}
}

func writeJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
