package departures

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/morningstar-transit/morningstar/pkg/realtime"
	"github.com/morningstar-transit/morningstar/pkg/util"
)

// RecentWindow is how long a departure keeps being listed once it is due
const RecentWindow = 10 * time.Minute

const unknownDestination = "Unknown"

type Board struct {
	Stop string
	Now  time.Time

	Recent   []realtime.ArrivalRecord
	Upcoming []realtime.ArrivalRecord
}

// Best is the expected time when known, the aimed one otherwise
func Best(record realtime.ArrivalRecord) time.Time {
	if record.ExpectedArrival != nil {
		return *record.ExpectedArrival
	}
	return record.AimedArrival
}

// NewBoard splits records into the ones due within RecentWindow before now
// and the next count ones. Minutes are truncated so a departure due 30
// seconds ago is still upcoming.
func NewBoard(stop string, now time.Time, records []realtime.ArrivalRecord, count int) *Board {
	board := &Board{Stop: stop, Now: now}

	for _, record := range records {
		minutes := Best(record).Sub(now) / time.Minute

		switch {
		case minutes < -RecentWindow/time.Minute:
			continue
		case minutes < 0:
			board.Recent = append(board.Recent, record)
		case len(board.Upcoming) < count:
			board.Upcoming = append(board.Upcoming, record)
		}
	}

	return board
}

func destination(record realtime.ArrivalRecord) string {
	if record.Destination == "" {
		return unknownDestination
	}
	return record.Destination
}

func (b *Board) Render(w io.Writer) error {
	loc := b.Now.Location()

	fmt.Fprintf(w, "Departures from %s at %s\n", b.Stop, b.Now.Format("15:04"))

	if len(b.Recent) > 0 {
		due := make([]string, 0, len(b.Recent))
		for _, record := range b.Recent {
			due = append(due, fmt.Sprintf("%s (due %s)", Best(record).In(loc).Format("15:04"), util.FormatMinutesUntil(b.Now, Best(record))))
		}
		fmt.Fprintf(w, "Just left: %s\n", strings.Join(due, ", "))
	}

	if len(b.Upcoming) == 0 {
		_, err := fmt.Fprintln(w, "No more departures today")
		return err
	}

	table := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(table, "TIME\tDESTINATION\tIN\tSTATUS")
	for _, record := range b.Upcoming {
		status := "scheduled"
		if record.Status != nil {
			status = record.Status.String()
		}

		fmt.Fprintf(table, "%s\t%s\t%s\t%s\n",
			Best(record).In(loc).Format("15:04"),
			destination(record),
			util.FormatMinutesUntil(b.Now, Best(record)),
			status,
		)
	}

	return table.Flush()
}
