package departures

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/morningstar-transit/morningstar/pkg/config"
	"github.com/morningstar-transit/morningstar/pkg/realtime"
	"github.com/morningstar-transit/morningstar/pkg/realtime/provider"
	"github.com/morningstar-transit/morningstar/pkg/timetable"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:      "departures",
		Usage:     "print the next departures from a stop",
		ArgsUsage: "<stop name>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Value:   "timetable.json",
				Usage:   "timetable snapshot file",
			},
			&cli.IntFlag{
				Name:    "count",
				Aliases: []string{"n"},
				Value:   3,
				Usage:   "number of upcoming departures to show",
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "YAML configuration, enables live times from its feed",
			},
			&cli.TimestampFlag{
				Name:   "at",
				Layout: time.RFC3339,
				Usage:  "show the board as of this time instead of now",
			},
		},
		Action: func(c *cli.Context) error {
			snapshot, err := timetable.LoadFile(c.String("file"))
			if err != nil {
				return err
			}

			loc := snapshot.Location()
			now := time.Now().In(loc)
			if at := c.Timestamp("at"); at != nil {
				now = at.In(loc)
			}
			today := timetable.DateOf(now)

			served := snapshot.SortedStopsServedOnDay(today)
			if len(served) == 0 {
				return cli.Exit(fmt.Sprintf("No stops served on %s", today), 1)
			}

			if c.NArg() == 0 {
				fmt.Fprintf(c.App.Writer, "Stops served on %s:\n  %s\n", today, strings.Join(served, "\n  "))
				return nil
			}

			query := strings.Join(c.Args().Slice(), " ")
			stop, found := MatchStop(query, served)
			if !found {
				return cli.Exit(fmt.Sprintf("No stop served on %s matches %q", today, query), 1)
			}
			log.Debug().Str("query", query).Str("stop", stop).Msg("Matched stop")

			var source realtime.Source
			if c.String("config") != "" {
				cfg, err := config.Load(c.String("config"))
				if err != nil {
					return err
				}
				if source, err = provider.FromConfig(c.Context, cfg); err != nil {
					return err
				}
			}

			theoretical := slices.Collect(snapshot.StoptimesWithDestinationForStop(today, stop))
			records := realtime.NewMerger(source).Arrivals(c.Context, loc, today, theoretical)

			return NewBoard(stop, now, records, c.Int("count")).Render(c.App.Writer)
		},
	}
}
