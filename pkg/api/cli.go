package api

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/morningstar-transit/morningstar/pkg/api/routes"
	"github.com/morningstar-transit/morningstar/pkg/config"
	"github.com/morningstar-transit/morningstar/pkg/realtime"
	"github.com/morningstar-transit/morningstar/pkg/realtime/provider"
	"github.com/morningstar-transit/morningstar/pkg/refresh"
	"github.com/morningstar-transit/morningstar/pkg/timetable"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "web-api",
		Usage: "Provides the timetable and live arrivals web API",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run web api server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "YAML configuration file",
						EnvVars: []string{"MORNINGSTAR_CONFIG"},
					},
					&cli.StringFlag{
						Name:  "listen",
						Usage: "listen target for the web server, overrides the configuration",
					},
					&cli.StringFlag{
						Name:  "file",
						Usage: "timetable snapshot file, overrides the configuration",
					},
				},
				Action: func(c *cli.Context) error {
					cfg, err := config.Load(c.String("config"))
					if err != nil {
						return err
					}
					if c.String("listen") != "" {
						cfg.Listen = c.String("listen")
					}
					if c.String("file") != "" {
						cfg.Timetable.File = c.String("file")
					}

					return run(c.Context, cfg)
				},
			},
		},
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	importer, err := newImporter(cfg)
	if err != nil {
		return err
	}

	snapshot, err := coldStart(ctx, cfg, importer)
	if err != nil {
		return err
	}

	source, err := provider.FromConfig(ctx, cfg)
	if err != nil {
		return err
	}
	merger := realtime.NewMerger(source)
	if cfg.Realtime.MaxConcurrentFetches > 0 {
		merger.MaxConcurrentFetches = cfg.Realtime.MaxConcurrentFetches
	}

	coordinator := refresh.NewCoordinator(snapshot, importer, refresh.Options{
		TTL:                  cfg.Timetable.TTL.Duration,
		InitialRetryInterval: cfg.Timetable.InitialRetryInterval.Duration,
		MaxRetryInterval:     cfg.Timetable.MaxRetryInterval.Duration,
		RandomizationFactor:  0.1,
	})

	state := &routes.State{
		Timetables: coordinator,
		Merger:     merger,
	}

	p := pool.New().WithContext(ctx).WithCancelOnError()

	if importer != nil {
		p.Go(func(ctx context.Context) error {
			if err := coordinator.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	} else {
		log.Warn().Msg("No timetable source or route configured, the timetable will never be refreshed")
	}

	p.Go(func(ctx context.Context) error {
		return SetupServer(ctx, cfg.Listen, state)
	})

	return p.Wait()
}

func newImporter(cfg *config.Config) (*refresh.SubprocessImporter, error) {
	if !cfg.Refreshable() {
		return nil, nil
	}

	command := cfg.Timetable.ImportCommand
	if len(command) == 0 {
		executable, err := os.Executable()
		if err != nil {
			return nil, err
		}
		command = []string{executable, "timetable", "import"}
	}

	return &refresh.SubprocessImporter{
		Command:     command[0],
		Args:        command[1:],
		Source:      cfg.Timetable.Source,
		Route:       cfg.Timetable.Route,
		Destination: cfg.Timetable.File,
	}, nil
}

// coldStart loads the snapshot file. A missing file is imported once when a
// source is configured, a file that fails to decode is fatal.
func coldStart(ctx context.Context, cfg *config.Config, importer *refresh.SubprocessImporter) (*timetable.TimeTable, error) {
	snapshot, err := timetable.LoadFile(cfg.Timetable.File)
	if err == nil {
		log.Info().
			Str("file", cfg.Timetable.File).
			Str("line", snapshot.ExtractedLineID).
			Time("extracted_on", snapshot.ExtractedOn).
			Msg("Loaded timetable")
		return snapshot, nil
	}

	if !errors.Is(err, os.ErrNotExist) || importer == nil {
		return nil, fmt.Errorf("loading timetable %s: %w", cfg.Timetable.File, err)
	}

	log.Info().Str("file", cfg.Timetable.File).Msg("No timetable yet, importing one")

	return importer.Import(ctx)
}
