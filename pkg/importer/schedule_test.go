package importer

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/morningstar-transit/morningstar/pkg/timetable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gtfsArchive(t *testing.T, files map[string][]string) []byte {
	buf := &bytes.Buffer{}
	w := zip.NewWriter(buf)
	for filename, content := range files {
		f, err := w.Create(filename)
		require.NoError(t, err)
		_, err = f.Write([]byte(strings.Join(content, "\n")))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	return buf.Bytes()
}

func sampleArchive(t *testing.T) []byte {
	return gtfsArchive(t, map[string][]string{
		"agency.txt": {
			"agency_id,agency_name,agency_url,agency_timezone",
			"IDFM:1046,Transdev,https://example.com,Europe/Paris",
		},
		"routes.txt": {
			"route_id,agency_id,route_short_name,route_long_name,route_type",
			"IDFM:C01742,IDFM:1046,42,Église - Gare,3",
			"IDFM:C99999,IDFM:1046,99,Other line,3",
		},
		"stops.txt": {
			"stop_id,stop_code,stop_name,location_type,parent_station",
			"IDFM:1,,Église,0,",
			"IDFM:2,,Marché,0,",
			"IDFM:3,,Gare,0,",
			"IDFM:4,,,0,",
		},
		"trips.txt": {
			"route_id,service_id,trip_id,trip_headsign",
			"IDFM:C01742,wd1,late-trip,Gare",
			"IDFM:C01742,wd1,early-trip,Gare",
			"IDFM:C01742,holiday,night-trip,Gare",
			"IDFM:C99999,other,other-trip,Elsewhere",
		},
		"stop_times.txt": {
			"trip_id,arrival_time,departure_time,stop_id,stop_sequence",
			"late-trip,15:15:00,15:15:00,IDFM:3,3",
			"late-trip,15:00:00,15:00:00,IDFM:1,1",
			"late-trip,15:06:00,,IDFM:2,2",
			"early-trip,14:00:00,14:00:30,IDFM:1,1",
			"early-trip,14:06:00,14:06:00,IDFM:4,2",
			"early-trip,14:15:00,14:15:00,IDFM:3,3",
			"night-trip,25:10:00,25:10:00,IDFM:1,1",
			"night-trip,25:20:00,25:20:00,IDFM:3,2",
			"other-trip,09:00:00,09:00:00,IDFM:1,1",
		},
		"calendar.txt": {
			"service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date",
			"wd1,1,1,1,1,1,0,0,20240101,20240315",
			"other,1,1,1,1,1,1,1,20240101,20241231",
		},
		"calendar_dates.txt": {
			"service_id,date,exception_type",
			"wd1,20240101,2",
			"wd1,20240106,1",
			"other,20240102,2",
		},
		"shapes.txt": {"shape_id,shape_pt_lat,shape_pt_lon,shape_pt_sequence"},
	})
}

func TestScheduleExtract(t *testing.T) {
	var schedule Schedule
	require.NoError(t, schedule.ParseFile(sampleArchive(t)))

	extracted, err := schedule.Extract("IDFM:C01742")
	require.NoError(t, err)

	snapshot, err := timetable.New(extracted)
	require.NoError(t, err)

	assert.Equal(t, "Europe/Paris", snapshot.Timezone)
	assert.Equal(t, "IDFM:C01742", snapshot.ExtractedLineID)

	require.Len(t, snapshot.Journeys, 2, "the trip running after midnight has no usable stop")

	early := snapshot.Journeys[0]
	assert.Equal(t, []timetable.StopTime{
		{Time: timetable.NewTimeOfDay(14, 0, 30), StopName: "Église", StopID: "IDFM:1"},
		{Time: timetable.NewTimeOfDay(14, 15, 0), StopName: "Gare", StopID: "IDFM:3"},
	}, early.Stops)

	late := snapshot.Journeys[1]
	require.Len(t, late.Stops, 3)
	assert.Equal(t, "Marché", late.Stops[1].StopName)
	assert.Equal(t, timetable.NewTimeOfDay(15, 6, 0), late.Stops[1].Time, "arrival time is used without a departure time")

	assert.Equal(t, map[string]timetable.ServicePattern{
		"wd1": {Weekdays: timetable.Workdays, StartDate: timetable.NewDate(2024, 1, 1), EndDate: timetable.NewDate(2024, 3, 15)},
	}, snapshot.ServicePatterns)
	assert.Len(t, snapshot.Exceptions["wd1"], 2)
	assert.NotContains(t, snapshot.Exceptions, "other")

	assert.False(t, snapshot.RunsOn("wd1", timetable.NewDate(2024, 1, 1)))
	assert.True(t, snapshot.RunsOn("wd1", timetable.NewDate(2024, 1, 2)))
	assert.True(t, snapshot.RunsOn("wd1", timetable.NewDate(2024, 1, 6)))
	assert.False(t, snapshot.RunsOn("wd1", timetable.NewDate(2024, 1, 7)))

	pairs := 0
	for range snapshot.StoptimesBetween(timetable.NewDate(2024, 1, 2), "Église", "Gare") {
		pairs++
	}
	assert.Equal(t, 2, pairs)
}

func TestScheduleExtractUnknownRoute(t *testing.T) {
	var schedule Schedule
	require.NoError(t, schedule.ParseFile(sampleArchive(t)))

	_, err := schedule.Extract("IDFM:C00000")
	assert.ErrorIs(t, err, ErrNoTrips)
}

func TestScheduleExtractRouteWithoutUsableTrips(t *testing.T) {
	var schedule Schedule
	require.NoError(t, schedule.ParseFile(gtfsArchive(t, map[string][]string{
		"agency.txt":     {"agency_id,agency_name,agency_url,agency_timezone", "A,Agency,https://example.com,UTC"},
		"routes.txt":     {"route_id,agency_id", "R,A"},
		"stops.txt":      {"stop_id,stop_name", "S,Stop"},
		"trips.txt":      {"route_id,service_id,trip_id", "R,s,T"},
		"stop_times.txt": {"trip_id,arrival_time,departure_time,stop_id,stop_sequence", "T,24:30:00,24:30:00,S,1"},
	})))

	_, err := schedule.Extract("R")
	assert.ErrorIs(t, err, ErrNoTrips)
}

func TestParseFileRejectsNonZip(t *testing.T) {
	var schedule Schedule
	assert.Error(t, schedule.ParseFile([]byte("agency_id,agency_name")))
}

func TestParseGTFSTime(t *testing.T) {
	seconds, ok := parseGTFSTime("07:05:09")
	assert.True(t, ok)
	assert.Equal(t, 7*3600+5*60+9, seconds)

	seconds, ok = parseGTFSTime(" 25:10:00")
	assert.True(t, ok)
	assert.Equal(t, 25*3600+10*60, seconds)

	for _, invalid := range []string{"", "7:05", "07:65:00", "aa:bb:cc", "-1:00:00"} {
		_, ok := parseGTFSTime(invalid)
		assert.False(t, ok, invalid)
	}
}

func TestImportFromFileAndURL(t *testing.T) {
	archive := sampleArchive(t)
	now := time.Date(2024, 1, 5, 6, 0, 0, 0, time.UTC)

	path := filepath.Join(t.TempDir(), "gtfs.zip")
	require.NoError(t, os.WriteFile(path, archive, 0o644))

	snapshot, err := Import(context.Background(), path, "IDFM:C01742", now)
	require.NoError(t, err)
	assert.Equal(t, path, snapshot.ExtractedFrom)
	assert.Equal(t, now, snapshot.ExtractedOn)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/gtfs.zip" {
			http.NotFound(w, r)
			return
		}
		w.Write(archive)
	}))
	defer server.Close()

	fromURL, err := Import(context.Background(), server.URL+"/gtfs.zip", "IDFM:C01742", now)
	require.NoError(t, err)
	assert.Equal(t, snapshot.Journeys, fromURL.Journeys)
	assert.True(t, slices.Equal(
		snapshot.SortedStopsServedOnDay(timetable.NewDate(2024, 1, 2)),
		fromURL.SortedStopsServedOnDay(timetable.NewDate(2024, 1, 2)),
	))

	_, err = Import(context.Background(), server.URL+"/missing.zip", "IDFM:C01742", now)
	assert.Error(t, err)
}
