package timetable

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/exp/slices"
)

var ErrDecode = errors.New("timetable snapshot could not be decoded")

type ExceptionType string

const (
	ExceptionAdded   ExceptionType = "Added"
	ExceptionDeleted ExceptionType = "Deleted"
)

type ServiceException struct {
	Date Date          `json:"date"`
	Type ExceptionType `json:"exception_type"`
}

// ServicePattern is a weekly recurrence valid between StartDate and EndDate, both inclusive
type ServicePattern struct {
	Weekdays  WeekdayFlags `json:"weekdays"`
	StartDate Date         `json:"start_date"`
	EndDate   Date         `json:"end_date"`
}

func (p ServicePattern) Matches(date Date) bool {
	if date.Before(p.StartDate) || date.After(p.EndDate) {
		return false
	}

	return p.Weekdays.RunsOn(date)
}

type StopTime struct {
	Time     TimeOfDay `json:"time"`
	StopName string    `json:"stop_name"`
	StopID   string    `json:"stop_id,omitempty"`
}

type StopTimeWithDestination struct {
	StopTime

	Destination        string `json:"destination"`
	StopsToDestination int    `json:"stops_to_destination"`
}

type Journey struct {
	ServiceID string     `json:"service_id"`
	Stops     []StopTime `json:"stops"`
}

func (j *Journey) firstStop(stopName string) (int, bool) {
	for i, stop := range j.Stops {
		if stop.StopName == stopName {
			return i, true
		}
	}

	return 0, false
}

// TimeTable is a schedule snapshot for one line. Values returned by New,
// Decode and LoadFile are sorted and must not be modified afterwards.
type TimeTable struct {
	Journeys        []Journey                     `json:"journeys"`
	Exceptions      map[string][]ServiceException `json:"exceptions"`
	ServicePatterns map[string]ServicePattern     `json:"service_patterns"`

	ExtractedFrom   string    `json:"extracted_from"`
	ExtractedOn     time.Time `json:"extracted_on"`
	ExtractedLineID string    `json:"extracted_line_id"`
	Timezone        string    `json:"timezone"`

	location *time.Location
}

// New validates and sorts a timetable into a snapshot. Journeys without any
// stop are dropped.
func New(source TimeTable) (*TimeTable, error) {
	timezone := source.Timezone
	if timezone == "" {
		timezone = "UTC"
	}
	location, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", source.Timezone, err)
	}

	for serviceID, exceptions := range source.Exceptions {
		for _, exception := range exceptions {
			if exception.Type != ExceptionAdded && exception.Type != ExceptionDeleted {
				return nil, fmt.Errorf("service %s has unknown exception type %q", serviceID, exception.Type)
			}
		}
	}

	journeys := make([]Journey, 0, len(source.Journeys))
	for _, journey := range source.Journeys {
		if len(journey.Stops) == 0 {
			continue
		}

		for _, stop := range journey.Stops {
			if !stop.Time.Valid() {
				return nil, fmt.Errorf("service %s stop %s has invalid time %d", journey.ServiceID, stop.StopName, stop.Time)
			}
		}

		stops := slices.Clone(journey.Stops)
		slices.SortStableFunc(stops, func(a, b StopTime) int {
			return int(a.Time) - int(b.Time)
		})

		journeys = append(journeys, Journey{ServiceID: journey.ServiceID, Stops: stops})
	}

	slices.SortStableFunc(journeys, func(a, b Journey) int {
		return int(a.Stops[0].Time) - int(b.Stops[0].Time)
	})

	snapshot := &TimeTable{
		Journeys:        journeys,
		Exceptions:      source.Exceptions,
		ServicePatterns: source.ServicePatterns,
		ExtractedFrom:   source.ExtractedFrom,
		ExtractedOn:     source.ExtractedOn,
		ExtractedLineID: source.ExtractedLineID,
		Timezone:        timezone,
		location:        location,
	}
	if snapshot.Exceptions == nil {
		snapshot.Exceptions = map[string][]ServiceException{}
	}
	if snapshot.ServicePatterns == nil {
		snapshot.ServicePatterns = map[string]ServicePattern{}
	}

	return snapshot, nil
}

// Location is the timezone all times of day in the snapshot are expressed in
func (t *TimeTable) Location() *time.Location {
	if t.location == nil {
		return time.UTC
	}
	return t.location
}

func Decode(reader io.Reader) (*TimeTable, error) {
	var raw TimeTable
	if err := json.NewDecoder(reader).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	snapshot, err := New(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	return snapshot, nil
}

func (t *TimeTable) Encode(writer io.Writer) error {
	return json.NewEncoder(writer).Encode(t)
}

func LoadFile(path string) (*TimeTable, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Decode(file)
}

// SaveFile writes the snapshot next to path and renames it into place so
// readers never observe a partial file
func SaveFile(path string, t *TimeTable) error {
	temporary, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(temporary.Name())

	if err := t.Encode(temporary); err != nil {
		temporary.Close()
		return err
	}
	if err := temporary.Close(); err != nil {
		return err
	}

	return os.Rename(temporary.Name(), path)
}
