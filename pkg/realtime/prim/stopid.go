package prim

import "strings"

const (
	primStopIDPrefix = "STIF:StopPoint:Q:"
	primStopIDSuffix = ":"
	gtfsStopIDPrefix = "IDFM:"
)

// StopID is a stop identifier stripped of any PRIM or GTFS decoration
type StopID string

// ParseStopID accepts the bare, GTFS (IDFM:1234) and PRIM
// (STIF:StopPoint:Q:1234:) forms of a stop identifier
func ParseStopID(value string) StopID {
	for strings.HasPrefix(value, primStopIDPrefix) {
		value = strings.TrimPrefix(value, primStopIDPrefix)
	}
	for strings.HasPrefix(value, gtfsStopIDPrefix) {
		value = strings.TrimPrefix(value, gtfsStopIDPrefix)
	}
	value = strings.TrimRight(value, primStopIDSuffix)

	return StopID(value)
}

func (s StopID) Bare() string {
	return string(s)
}

func (s StopID) GTFS() string {
	return gtfsStopIDPrefix + string(s)
}

func (s StopID) PRIM() string {
	return primStopIDPrefix + string(s) + primStopIDSuffix
}

func (s StopID) String() string {
	return string(s)
}
