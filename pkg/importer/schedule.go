package importer

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/morningstar-transit/morningstar/pkg/timetable"
	"github.com/rs/zerolog/log"
	"golang.org/x/exp/slices"
)

var ErrNoTrips = errors.New("no trip was available for route")

const gtfsDateLayout = "20060102"

type Schedule struct {
	Agencies      []Agency
	Stops         []Stop
	Routes        []Route
	Trips         []Trip
	StopTimes     []StopTime
	Calendars     []Calendar
	CalendarDates []CalendarDate
}

// Fetch reads a GTFS archive from a local path or an http(s) URL
func Fetch(ctx context.Context, source string) ([]byte, error) {
	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		return os.ReadFile(source)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("downloading %s: status %d", source, resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

func (gtfs *Schedule) ParseFile(body []byte) error {
	// Allow us to ignore those naughty records that have missing columns
	gocsv.SetCSVReader(func(in io.Reader) gocsv.CSVReader {
		r := csv.NewReader(in)
		r.FieldsPerRecord = -1
		return r
	})

	fileMap := map[string]interface{}{
		"agency.txt":         &gtfs.Agencies,
		"stops.txt":          &gtfs.Stops,
		"routes.txt":         &gtfs.Routes,
		"trips.txt":          &gtfs.Trips,
		"stop_times.txt":     &gtfs.StopTimes,
		"calendar.txt":       &gtfs.Calendars,
		"calendar_dates.txt": &gtfs.CalendarDates,
	}

	archive, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return err
	}

	for _, zipFile := range archive.File {
		destination, exists := fileMap[zipFile.Name]
		if !exists {
			log.Debug().Str("file", zipFile.Name).Msg("Skipping unused gtfs file")
			continue
		}

		log.Info().Str("file", zipFile.Name).Msg("Loading file")

		if err := unmarshalZipFile(zipFile, destination); err != nil {
			log.Error().Str("file", zipFile.Name).Err(err).Msg("Failed to parse csv file")
			return err
		}
	}

	return nil
}

func unmarshalZipFile(zipFile *zip.File, destination interface{}) error {
	fileReader, err := zipFile.Open()
	if err != nil {
		return err
	}
	defer fileReader.Close()

	return gocsv.Unmarshal(fileReader, destination)
}

// Extract builds the timetable of a single route. Stop times past midnight
// of their service day can't be represented and are left out.
func (gtfs *Schedule) Extract(routeID string) (timetable.TimeTable, error) {
	var route *Route
	for i := range gtfs.Routes {
		if gtfs.Routes[i].ID == routeID {
			route = &gtfs.Routes[i]
			break
		}
	}
	if route == nil {
		return timetable.TimeTable{}, fmt.Errorf("%w %s: route not found", ErrNoTrips, routeID)
	}

	stopNames := map[string]string{}
	for _, stop := range gtfs.Stops {
		stopNames[stop.ID] = stop.Name
	}

	trips := map[string]struct{}{}
	for _, trip := range gtfs.Trips {
		if trip.RouteID == routeID {
			trips[trip.ID] = struct{}{}
		}
	}

	tripStopTimes := map[string][]StopTime{}
	for _, stopTime := range gtfs.StopTimes {
		if _, exists := trips[stopTime.TripID]; exists {
			tripStopTimes[stopTime.TripID] = append(tripStopTimes[stopTime.TripID], stopTime)
		}
	}

	skippedStopTimes := 0
	journeys := make([]timetable.Journey, 0, len(trips))
	services := map[string]struct{}{}

	for i := range gtfs.Trips {
		trip := &gtfs.Trips[i]
		if trip.RouteID != routeID {
			continue
		}

		stopTimes := tripStopTimes[trip.ID]
		slices.SortFunc(stopTimes, func(a, b StopTime) int {
			return a.StopSequence - b.StopSequence
		})

		journey := timetable.Journey{ServiceID: trip.ServiceID}
		for _, stopTime := range stopTimes {
			converted, ok := convertStopTime(stopTime, stopNames)
			if !ok {
				skippedStopTimes++
				continue
			}
			journey.Stops = append(journey.Stops, converted)
		}

		if len(journey.Stops) == 0 {
			continue
		}

		journeys = append(journeys, journey)
		services[trip.ServiceID] = struct{}{}
	}

	if len(journeys) == 0 {
		return timetable.TimeTable{}, fmt.Errorf("%w %s", ErrNoTrips, routeID)
	}

	if skippedStopTimes > 0 {
		log.Warn().Int("count", skippedStopTimes).Msg("Skipped stop times without a usable time or stop name")
	}

	servicePatterns, err := gtfs.servicePatterns(services)
	if err != nil {
		return timetable.TimeTable{}, err
	}
	exceptions, err := gtfs.serviceExceptions(services)
	if err != nil {
		return timetable.TimeTable{}, err
	}

	return timetable.TimeTable{
		Journeys:        journeys,
		Exceptions:      exceptions,
		ServicePatterns: servicePatterns,
		ExtractedLineID: routeID,
		Timezone:        gtfs.timezone(route),
	}, nil
}

func (gtfs *Schedule) timezone(route *Route) string {
	for _, agency := range gtfs.Agencies {
		if agency.ID == route.AgencyID && agency.Timezone != "" {
			return agency.Timezone
		}
	}

	// Single agency feeds may leave agency_id out
	if len(gtfs.Agencies) > 0 && gtfs.Agencies[0].Timezone != "" {
		return gtfs.Agencies[0].Timezone
	}

	return "UTC"
}

func (gtfs *Schedule) servicePatterns(services map[string]struct{}) (map[string]timetable.ServicePattern, error) {
	patterns := map[string]timetable.ServicePattern{}

	for _, calendar := range gtfs.Calendars {
		if _, used := services[calendar.ServiceID]; !used {
			continue
		}

		start, err := parseGTFSDate(calendar.Start)
		if err != nil {
			return nil, fmt.Errorf("calendar %s start date: %w", calendar.ServiceID, err)
		}
		end, err := parseGTFSDate(calendar.End)
		if err != nil {
			return nil, fmt.Errorf("calendar %s end date: %w", calendar.ServiceID, err)
		}

		patterns[calendar.ServiceID] = timetable.ServicePattern{
			Weekdays:  calendar.Weekdays(),
			StartDate: start,
			EndDate:   end,
		}
	}

	return patterns, nil
}

func (gtfs *Schedule) serviceExceptions(services map[string]struct{}) (map[string][]timetable.ServiceException, error) {
	exceptions := map[string][]timetable.ServiceException{}

	for _, calendarDate := range gtfs.CalendarDates {
		if _, used := services[calendarDate.ServiceID]; !used {
			continue
		}

		date, err := parseGTFSDate(calendarDate.Date)
		if err != nil {
			return nil, fmt.Errorf("calendar date for %s: %w", calendarDate.ServiceID, err)
		}

		var exceptionType timetable.ExceptionType
		switch calendarDate.ExceptionType {
		case 1:
			exceptionType = timetable.ExceptionAdded
		case 2:
			exceptionType = timetable.ExceptionDeleted
		default:
			log.Warn().
				Str("service", calendarDate.ServiceID).
				Int("type", calendarDate.ExceptionType).
				Msg("Unknown calendar date exception type")
			continue
		}

		exceptions[calendarDate.ServiceID] = append(exceptions[calendarDate.ServiceID], timetable.ServiceException{
			Date: date,
			Type: exceptionType,
		})
	}

	return exceptions, nil
}

func convertStopTime(stopTime StopTime, stopNames map[string]string) (timetable.StopTime, bool) {
	name := stopNames[stopTime.StopID]
	if name == "" {
		return timetable.StopTime{}, false
	}

	value := stopTime.DepartureTime
	if value == "" {
		value = stopTime.ArrivalTime
	}

	seconds, ok := parseGTFSTime(value)
	if !ok || seconds >= 24*60*60 {
		return timetable.StopTime{}, false
	}

	return timetable.StopTime{
		Time:     timetable.TimeOfDay(seconds),
		StopName: name,
		StopID:   stopTime.StopID,
	}, true
}

// parseGTFSTime reads H:MM:SS where hours may exceed 23
func parseGTFSTime(value string) (int, bool) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 3 {
		return 0, false
	}

	var fields [3]int
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return 0, false
		}
		fields[i] = n
	}
	if fields[1] > 59 || fields[2] > 59 {
		return 0, false
	}

	return fields[0]*3600 + fields[1]*60 + fields[2], true
}

func parseGTFSDate(value string) (timetable.Date, error) {
	t, err := time.Parse(gtfsDateLayout, strings.TrimSpace(value))
	if err != nil {
		return timetable.Date{}, err
	}
	return timetable.DateOf(t), nil
}

// Import fetches source and extracts routeID out of it as a snapshot
func Import(ctx context.Context, source string, routeID string, now time.Time) (*timetable.TimeTable, error) {
	body, err := Fetch(ctx, source)
	if err != nil {
		return nil, err
	}

	var schedule Schedule
	if err := schedule.ParseFile(body); err != nil {
		return nil, err
	}

	extracted, err := schedule.Extract(routeID)
	if err != nil {
		return nil, err
	}
	extracted.ExtractedFrom = source
	extracted.ExtractedOn = now

	return timetable.New(extracted)
}
