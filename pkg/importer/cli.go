package importer

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/kr/pretty"
	"github.com/morningstar-transit/morningstar/pkg/timetable"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "timetable",
		Usage: "Build and inspect timetable snapshots",
		Subcommands: []*cli.Command{
			{
				Name:      "import",
				Usage:     "extract one route of a GTFS archive into a snapshot file",
				ArgsUsage: "<gtfs path or url> <route id>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Value:   "timetable.json",
						Usage:   "snapshot file to write",
					},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() != 2 {
						return cli.Exit("expected a GTFS source and a route id", 2)
					}
					source := c.Args().Get(0)
					routeID := c.Args().Get(1)

					log.Info().Str("source", source).Str("route", routeID).Msg("Importing timetable")

					snapshot, err := Import(c.Context, source, routeID, time.Now())
					if err != nil {
						return err
					}

					if err := timetable.SaveFile(c.String("output"), snapshot); err != nil {
						return err
					}

					log.Info().
						Str("output", c.String("output")).
						Int("journeys", len(snapshot.Journeys)).
						Int("services", len(snapshot.ServicePatterns)).
						Msg("Timetable written")

					return nil
				},
			},
			{
				Name:      "inspect",
				Usage:     "print what a snapshot file contains",
				ArgsUsage: "<snapshot file>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "date",
						Usage: "day to list served stops for, defaults to today in the snapshot timezone",
					},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return cli.Exit("expected a snapshot file", 2)
					}

					snapshot, err := timetable.LoadFile(c.Args().First())
					if err != nil {
						return err
					}

					date := timetable.DateOf(time.Now().In(snapshot.Location()))
					if c.String("date") != "" {
						if date, err = timetable.ParseDate(c.String("date")); err != nil {
							return err
						}
					}

					fmt.Fprintf(c.App.Writer, "Line %s extracted from %s on %s (%s)\n",
						snapshot.ExtractedLineID, snapshot.ExtractedFrom, snapshot.ExtractedOn.Format(time.RFC3339), snapshot.Timezone)

					for _, serviceID := range slices.Sorted(maps.Keys(snapshot.ServicePatterns)) {
						pattern := snapshot.ServicePatterns[serviceID]
						fmt.Fprintf(c.App.Writer, "\n%s from %s to %s\n%s\n", serviceID, pattern.StartDate, pattern.EndDate, pattern.Weekdays)
					}

					journeys := 0
					for range snapshot.JourneysForDay(date) {
						journeys++
					}
					fmt.Fprintf(c.App.Writer, "\n%d journeys run on %s, serving:\n", journeys, date)
					pretty.Fprintf(c.App.Writer, "%# v\n", snapshot.SortedStopsServedOnDay(date))

					return nil
				},
			},
		},
	}
}
