package main

import (
	"os"
	"time"

	"github.com/morningstar-transit/morningstar/pkg/api"
	"github.com/morningstar-transit/morningstar/pkg/departures"
	"github.com/morningstar-transit/morningstar/pkg/importer"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	_ "time/tzdata"
)

func main() {
	if os.Getenv("MORNINGSTAR_LOG_FORMAT") != "JSON" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	if os.Getenv("MORNINGSTAR_DEBUG") == "YES" {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	} else {
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}

	app := &cli.App{
		Name:        "morningstar",
		Description: "Timetable and live arrivals for a single transit line",

		Commands: []*cli.Command{
			api.RegisterCLI(),
			importer.RegisterCLI(),
			departures.RegisterCLI(),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal().Err(err).Send()
	}
}
