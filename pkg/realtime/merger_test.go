package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/morningstar-transit/morningstar/pkg/timetable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paris(t *testing.T) *time.Location {
	location, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)
	return location
}

func entry(stopID, stopName string, at timetable.TimeOfDay, destination string, remaining int) timetable.StopTimeWithDestination {
	return timetable.StopTimeWithDestination{
		StopTime:           timetable.StopTime{Time: at, StopName: stopName, StopID: stopID},
		Destination:        destination,
		StopsToDestination: remaining,
	}
}

func TestStatusClassification(t *testing.T) {
	aimed := time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		stop     RealtimeStop
		expected Status
	}{
		{"late", RealtimeStop{AimedArrival: aimed, ExpectedArrival: aimed.Add(2 * time.Minute)}, Late(2)},
		{"early", RealtimeStop{AimedArrival: aimed, ExpectedArrival: aimed.Add(-time.Minute)}, Early(1)},
		{"on time", RealtimeStop{AimedArrival: aimed, ExpectedArrival: aimed}, OnTime()},
		{"under a minute late", RealtimeStop{AimedArrival: aimed, ExpectedArrival: aimed.Add(59 * time.Second)}, OnTime()},
		{"under a minute early", RealtimeStop{AimedArrival: aimed, ExpectedArrival: aimed.Add(-59 * time.Second)}, OnTime()},
		{"truncated late", RealtimeStop{AimedArrival: aimed, ExpectedArrival: aimed.Add(3*time.Minute + 50*time.Second)}, Late(3)},
		{"truncated early", RealtimeStop{AimedArrival: aimed, ExpectedArrival: aimed.Add(-(5*time.Minute + 10*time.Second))}, Early(5)},
		{"textual", RealtimeStop{AimedArrival: aimed, ArrivalStatus: "cancelled"}, Other("cancelled")},
		{"timing wins over text", RealtimeStop{AimedArrival: aimed, ExpectedArrival: aimed, ArrivalStatus: "onTime"}, OnTime()},
		{"nothing", RealtimeStop{AimedArrival: aimed}, Unknown()},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, test.stop.Status())
		})
	}
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "early by 3'", Early(3).String())
	assert.Equal(t, "late by 12'", Late(12).String())
	assert.Equal(t, "on time", OnTime().String())
	assert.Equal(t, "delayed", Other("delayed").String())
	assert.Equal(t, "unknown", Unknown().String())

	text, err := Late(2).MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "late by 2'", string(text))
}

func TestMergeClassifiesMatchedCalls(t *testing.T) {
	loc := paris(t)
	today := timetable.NewDate(2024, 5, 6)
	at := func(hour, minute int) time.Time { return time.Date(2024, 5, 6, hour, minute, 0, 0, loc) }

	theoretical := []timetable.StopTimeWithDestination{
		entry("IDFM:1", "Marché", timetable.NewTimeOfDay(10, 0, 0), "Gare", 2),
		entry("IDFM:1", "Marché", timetable.NewTimeOfDay(10, 30, 0), "Gare", 2),
		entry("IDFM:1", "Marché", timetable.NewTimeOfDay(11, 0, 0), "Gare", 2),
		entry("IDFM:1", "Marché", timetable.NewTimeOfDay(11, 30, 0), "Gare", 2),
	}
	live := []RealtimeStop{
		{AimedArrival: at(11, 0), ExpectedArrival: at(11, 0), Destination: "Gare"},
		{AimedArrival: at(10, 0), ExpectedArrival: at(10, 2), Destination: "Gare RER"},
		{AimedArrival: at(10, 30), ExpectedArrival: at(10, 29)},
	}

	records := Merge(loc, today, theoretical, live)
	require.Len(t, records, 4)

	assert.Equal(t, at(10, 0), records[0].AimedArrival)
	require.NotNil(t, records[0].Status)
	assert.Equal(t, Late(2), *records[0].Status)
	assert.Equal(t, at(10, 2), *records[0].ExpectedArrival)
	assert.Equal(t, "Gare RER", records[0].Destination)

	assert.Equal(t, Early(1), *records[1].Status)
	assert.Equal(t, "Gare", records[1].Destination, "empty live destination keeps the theoretical one")

	assert.Equal(t, OnTime(), *records[2].Status)

	assert.Nil(t, records[3].Status)
	assert.Nil(t, records[3].ExpectedArrival)
	assert.Equal(t, "Gare", records[3].Destination)
	require.NotNil(t, records[3].StopsToDestination)
	assert.Equal(t, 2, *records[3].StopsToDestination)
}

func TestMergeUsesFirstMatchingCall(t *testing.T) {
	loc := paris(t)
	aimed := time.Date(2024, 5, 6, 10, 0, 0, 0, loc)

	records := Merge(loc, timetable.NewDate(2024, 5, 6),
		[]timetable.StopTimeWithDestination{entry("", "Marché", timetable.NewTimeOfDay(10, 0, 0), "Gare", 1)},
		[]RealtimeStop{
			{AimedArrival: aimed, ExpectedArrival: aimed.Add(4 * time.Minute)},
			{AimedArrival: aimed, ExpectedArrival: aimed},
		})

	require.Len(t, records, 1)
	assert.Equal(t, Late(4), *records[0].Status)
}

func TestMergeMatchesInstantsAcrossLocations(t *testing.T) {
	loc := paris(t)
	utcAimed := time.Date(2024, 5, 6, 8, 0, 0, 0, time.UTC)

	records := Merge(loc, timetable.NewDate(2024, 5, 6),
		[]timetable.StopTimeWithDestination{entry("", "Marché", timetable.NewTimeOfDay(10, 0, 0), "Gare", 1)},
		[]RealtimeStop{{AimedArrival: utcAimed, ArrivalStatus: "noReport"}})

	require.Len(t, records, 1)
	assert.Equal(t, Other("noReport"), *records[0].Status)
}

func TestMergeDropsNonexistentLocalTimes(t *testing.T) {
	loc := paris(t)
	springForward := timetable.NewDate(2024, 3, 31)

	records := Merge(loc, springForward, []timetable.StopTimeWithDestination{
		entry("", "Église", timetable.NewTimeOfDay(1, 45, 0), "Gare", 3),
		entry("", "Marché", timetable.NewTimeOfDay(2, 30, 0), "Gare", 2),
		entry("", "Gare", timetable.NewTimeOfDay(3, 15, 0), "Gare", 0),
	}, nil)

	require.Len(t, records, 2)
	assert.Equal(t, "Église", records[0].StopName)
	assert.Equal(t, "Gare", records[1].StopName)
	assert.Equal(t, time.Date(2024, 3, 31, 1, 15, 0, 0, time.UTC), records[1].AimedArrival.UTC())
}

func TestAbsolutizeRepeatedWallClockPicksEarliest(t *testing.T) {
	loc := paris(t)
	fallBack := timetable.NewDate(2024, 10, 27)

	instant, ok := Absolutize(loc, fallBack, timetable.NewTimeOfDay(2, 30, 0))
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 10, 27, 0, 30, 0, 0, time.UTC), instant.UTC())

	instant, ok = Absolutize(loc, fallBack, timetable.NewTimeOfDay(3, 30, 0))
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 10, 27, 2, 30, 0, 0, time.UTC), instant.UTC())

	_, ok = Absolutize(loc, timetable.NewDate(2024, 3, 31), timetable.NewTimeOfDay(2, 0, 0))
	assert.False(t, ok)

	instant, ok = Absolutize(time.UTC, timetable.NewDate(2024, 3, 31), timetable.NewTimeOfDay(2, 0, 0))
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 3, 31, 2, 0, 0, 0, time.UTC), instant)
}

type fakeSource struct {
	calls map[string][]RealtimeStop
	fail  map[string]bool

	requests atomic.Int32
}

func (f *fakeSource) NextCalls(ctx context.Context, stopID string) ([]RealtimeStop, error) {
	f.requests.Add(1)
	if f.fail[stopID] {
		return nil, fmt.Errorf("stop %s: %w", stopID, ErrFeedUnavailable)
	}
	return f.calls[stopID], nil
}

func TestArrivalsMatchesCallsOfTheSameStop(t *testing.T) {
	loc := paris(t)
	at := func(hour, minute int) time.Time { return time.Date(2024, 5, 6, hour, minute, 0, 0, loc) }

	source := &fakeSource{calls: map[string][]RealtimeStop{
		"IDFM:1": {{AimedArrival: at(10, 0), ExpectedArrival: at(10, 3)}},
		"IDFM:2": {{AimedArrival: at(10, 0), ExpectedArrival: at(9, 58)}},
	}}
	merger := NewMerger(source)

	records := merger.Arrivals(context.Background(), loc, timetable.NewDate(2024, 5, 6), []timetable.StopTimeWithDestination{
		entry("IDFM:2", "Marché", timetable.NewTimeOfDay(10, 0, 0), "Église", 3),
		entry("IDFM:1", "Marché", timetable.NewTimeOfDay(10, 0, 0), "Gare", 1),
		entry("IDFM:1", "Marché", timetable.NewTimeOfDay(10, 20, 0), "Gare", 1),
	})

	require.Len(t, records, 3)
	assert.Equal(t, Early(2), *records[0].Status)
	assert.Equal(t, Late(3), *records[1].Status)
	assert.Nil(t, records[2].Status)
	assert.Equal(t, int32(2), source.requests.Load(), "one fetch per distinct stop")
}

func TestArrivalsDegradesWhenTheFeedFails(t *testing.T) {
	loc := paris(t)
	at := func(hour, minute int) time.Time { return time.Date(2024, 5, 6, hour, minute, 0, 0, loc) }

	source := &fakeSource{
		calls: map[string][]RealtimeStop{"IDFM:1": {{AimedArrival: at(10, 0), ExpectedArrival: at(10, 0)}}},
		fail:  map[string]bool{"IDFM:2": true},
	}

	records := NewMerger(source).Arrivals(context.Background(), loc, timetable.NewDate(2024, 5, 6), []timetable.StopTimeWithDestination{
		entry("IDFM:1", "Marché", timetable.NewTimeOfDay(10, 0, 0), "Gare", 1),
		entry("IDFM:2", "Marché", timetable.NewTimeOfDay(10, 5, 0), "Église", 3),
	})

	require.Len(t, records, 2)
	assert.Equal(t, OnTime(), *records[0].Status)
	assert.Nil(t, records[1].Status)
	assert.Equal(t, at(10, 5), records[1].AimedArrival)
	assert.Equal(t, "Église", records[1].Destination)
}

func TestArrivalsWithoutSource(t *testing.T) {
	loc := paris(t)

	records := NewMerger(nil).Arrivals(context.Background(), loc, timetable.NewDate(2024, 5, 6), []timetable.StopTimeWithDestination{
		entry("IDFM:1", "Marché", timetable.NewTimeOfDay(10, 0, 0), "Gare", 1),
	})

	require.Len(t, records, 1)
	assert.Nil(t, records[0].Status)
}

func TestSourceFunc(t *testing.T) {
	var source Source = SourceFunc(func(ctx context.Context, stopID string) ([]RealtimeStop, error) {
		return nil, ErrFeedUnavailable
	})

	_, err := source.NextCalls(context.Background(), "IDFM:1")
	assert.True(t, errors.Is(err, ErrFeedUnavailable))
}
