package realtime

import (
	"fmt"
	"time"
)

type StatusKind int

const (
	StatusUnknown StatusKind = iota
	StatusEarly
	StatusOnTime
	StatusLate
	StatusOther
)

// Status is how a vehicle is doing against its timetable. Minutes is only
// set for StatusEarly and StatusLate, Text only for StatusOther.
type Status struct {
	Kind    StatusKind
	Minutes int
	Text    string
}

func Early(minutes int) Status { return Status{Kind: StatusEarly, Minutes: minutes} }
func Late(minutes int) Status  { return Status{Kind: StatusLate, Minutes: minutes} }
func OnTime() Status           { return Status{Kind: StatusOnTime} }
func Other(text string) Status { return Status{Kind: StatusOther, Text: text} }
func Unknown() Status          { return Status{Kind: StatusUnknown} }

// StatusFromDelay classifies expected - aimed in whole minutes, truncated towards zero
func StatusFromDelay(delay time.Duration) Status {
	minutes := int(delay / time.Minute)

	switch {
	case minutes > 0:
		return Late(minutes)
	case minutes < 0:
		return Early(-minutes)
	default:
		return OnTime()
	}
}

func (s Status) String() string {
	switch s.Kind {
	case StatusEarly:
		return fmt.Sprintf("early by %d'", s.Minutes)
	case StatusOnTime:
		return "on time"
	case StatusLate:
		return fmt.Sprintf("late by %d'", s.Minutes)
	case StatusOther:
		return s.Text
	default:
		return "unknown"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// RealtimeStop is one vehicle call reported by a live feed. Zero instants
// mean the feed did not provide them.
type RealtimeStop struct {
	ExpectedArrival time.Time
	AimedArrival    time.Time
	Destination     string
	ArrivalStatus   string
}

func (r RealtimeStop) Status() Status {
	if !r.ExpectedArrival.IsZero() && !r.AimedArrival.IsZero() {
		return StatusFromDelay(r.ExpectedArrival.Sub(r.AimedArrival))
	}

	if r.ArrivalStatus != "" {
		return Other(r.ArrivalStatus)
	}

	return Unknown()
}
