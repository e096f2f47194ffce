package importer

import "github.com/morningstar-transit/morningstar/pkg/timetable"

type Agency struct {
	ID       string `csv:"agency_id"`
	Name     string `csv:"agency_name"`
	URL      string `csv:"agency_url"`
	Timezone string `csv:"agency_timezone"`
}

type Stop struct {
	ID     string `csv:"stop_id"`
	Code   string `csv:"stop_code"`
	Name   string `csv:"stop_name"`
	Type   string `csv:"location_type"`
	Parent string `csv:"parent_station"`
}

type Route struct {
	ID        string `csv:"route_id"`
	AgencyID  string `csv:"agency_id"`
	ShortName string `csv:"route_short_name"`
	LongName  string `csv:"route_long_name"`
	Type      int    `csv:"route_type"`
}

type Trip struct {
	RouteID   string `csv:"route_id"`
	ServiceID string `csv:"service_id"`
	ID        string `csv:"trip_id"`
	Headsign  string `csv:"trip_headsign"`
}

type StopTime struct {
	TripID        string `csv:"trip_id"`
	ArrivalTime   string `csv:"arrival_time"`
	DepartureTime string `csv:"departure_time"`
	StopID        string `csv:"stop_id"`
	StopSequence  int    `csv:"stop_sequence"`
}

type Calendar struct {
	ServiceID string `csv:"service_id"`
	Monday    int    `csv:"monday"`
	Tuesday   int    `csv:"tuesday"`
	Wednesday int    `csv:"wednesday"`
	Thursday  int    `csv:"thursday"`
	Friday    int    `csv:"friday"`
	Saturday  int    `csv:"saturday"`
	Sunday    int    `csv:"sunday"`
	Start     string `csv:"start_date"`
	End       string `csv:"end_date"`
}

func (c *Calendar) Weekdays() timetable.WeekdayFlags {
	var days timetable.WeekdayFlags

	for i, runs := range []int{c.Monday, c.Tuesday, c.Wednesday, c.Thursday, c.Friday, c.Saturday, c.Sunday} {
		if runs == 1 {
			days |= 1 << i
		}
	}

	return days
}

type CalendarDate struct {
	ServiceID     string `csv:"service_id"`
	Date          string `csv:"date"`
	ExceptionType int    `csv:"exception_type"`
}
