package realtime

import (
	"context"
	"errors"
	"time"

	"github.com/morningstar-transit/morningstar/pkg/timetable"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/exp/slices"
)

type ArrivalRecord struct {
	StopName string `json:"stop_name" groups:"basic,detailed"`
	StopID   string `json:"stop_id,omitempty" groups:"detailed"`

	AimedArrival    time.Time  `json:"aimed_arrival" groups:"basic,detailed"`
	ExpectedArrival *time.Time `json:"expected_arrival,omitempty" groups:"basic,detailed"`

	Destination        string  `json:"destination,omitempty" groups:"basic,detailed"`
	StopsToDestination *int    `json:"stops_to_destination,omitempty" groups:"detailed"`
	Status             *Status `json:"status,omitempty" groups:"basic,detailed"`
}

// Absolutize places a time of day on date in loc. It fails when the wall
// clock time is skipped by a transition on that date. Wall clock times
// repeated by a transition resolve to the earliest instant.
func Absolutize(loc *time.Location, date timetable.Date, timeOfDay timetable.TimeOfDay) (time.Time, bool) {
	hour, minute, second := timeOfDay.Hour(), timeOfDay.Minute(), timeOfDay.Second()

	sameWallClock := func(t time.Time) bool {
		return t.Hour() == hour && t.Minute() == minute && t.Second() == second && timetable.DateOf(t) == date
	}

	instant := time.Date(date.Year, date.Month, date.Day, hour, minute, second, 0, loc)
	if !sameWallClock(instant) {
		return time.Time{}, false
	}

	_, offset := instant.Zone()
	for _, probe := range []time.Time{instant.Add(-24 * time.Hour), instant.Add(24 * time.Hour)} {
		_, otherOffset := probe.Zone()
		if otherOffset == offset {
			continue
		}

		candidate := instant.Add(time.Duration(offset-otherOffset) * time.Second).In(loc)
		if candidate.Before(instant) && sameWallClock(candidate) {
			instant = candidate
		}
	}

	return instant, true
}

// Merge pairs every theoretical stop time of today with the first live call
// aimed at the same instant. Input order is kept. Entries whose local time
// does not exist today are dropped.
func Merge(loc *time.Location, today timetable.Date, theoretical []timetable.StopTimeWithDestination, live []RealtimeStop) []ArrivalRecord {
	records := make([]ArrivalRecord, 0, len(theoretical))

	for _, entry := range theoretical {
		if record, ok := mergeEntry(loc, today, entry, live); ok {
			records = append(records, record)
		}
	}

	return records
}

func mergeEntry(loc *time.Location, today timetable.Date, entry timetable.StopTimeWithDestination, live []RealtimeStop) (ArrivalRecord, bool) {
	aimed, ok := Absolutize(loc, today, entry.Time)
	if !ok {
		log.Warn().
			Str("stop", entry.StopName).
			Str("date", today.String()).
			Str("time", entry.Time.String()).
			Str("timezone", loc.String()).
			Msg("Local time does not exist, dropping stop time")
		return ArrivalRecord{}, false
	}

	stopsToDestination := entry.StopsToDestination
	record := ArrivalRecord{
		StopName:           entry.StopName,
		StopID:             entry.StopID,
		AimedArrival:       aimed,
		Destination:        entry.Destination,
		StopsToDestination: &stopsToDestination,
	}

	index := slices.IndexFunc(live, func(call RealtimeStop) bool {
		return !call.AimedArrival.IsZero() && call.AimedArrival.Equal(aimed)
	})
	if index < 0 {
		return record, true
	}

	call := live[index]
	if !call.ExpectedArrival.IsZero() {
		expected := call.ExpectedArrival
		record.ExpectedArrival = &expected
	}
	if call.Destination != "" {
		record.Destination = call.Destination
	}
	status := call.Status()
	record.Status = &status

	return record, true
}

type Merger struct {
	Source Source

	MaxConcurrentFetches int
}

func NewMerger(source Source) *Merger {
	return &Merger{
		Source:               source,
		MaxConcurrentFetches: 4,
	}
}

type stopCalls struct {
	stopID string
	calls  []RealtimeStop
}

// Arrivals merges theoretical stop times with the live calls of their own
// stop. Stops whose live feed fails keep theoretical only records.
func (m *Merger) Arrivals(ctx context.Context, loc *time.Location, today timetable.Date, theoretical []timetable.StopTimeWithDestination) []ArrivalRecord {
	liveByStop := m.fetch(ctx, theoretical)

	records := make([]ArrivalRecord, 0, len(theoretical))
	for _, entry := range theoretical {
		if record, ok := mergeEntry(loc, today, entry, liveByStop[entry.StopID]); ok {
			records = append(records, record)
		}
	}

	return records
}

func (m *Merger) fetch(ctx context.Context, theoretical []timetable.StopTimeWithDestination) map[string][]RealtimeStop {
	liveByStop := map[string][]RealtimeStop{}
	if m.Source == nil {
		return liveByStop
	}

	var stopIDs []string
	for _, entry := range theoretical {
		if entry.StopID != "" && !slices.Contains(stopIDs, entry.StopID) {
			stopIDs = append(stopIDs, entry.StopID)
		}
	}

	maxGoroutines := m.MaxConcurrentFetches
	if maxGoroutines < 1 {
		maxGoroutines = 1
	}

	p := pool.NewWithResults[stopCalls]().WithMaxGoroutines(maxGoroutines)
	for _, stopID := range stopIDs {
		p.Go(func() stopCalls {
			calls, err := m.Source.NextCalls(ctx, stopID)
			if err != nil {
				event := log.Warn()
				if errors.Is(err, context.Canceled) {
					event = log.Debug()
				}
				event.Err(err).Str("stop", stopID).Msg("Live feed failed, serving theoretical times")
				return stopCalls{stopID: stopID}
			}

			return stopCalls{stopID: stopID, calls: calls}
		})
	}

	for _, result := range p.Wait() {
		liveByStop[result.stopID] = result.calls
	}

	return liveByStop
}
