package util

import (
	"time"
)

// StartOfDay returns midnight of t's calendar day in loc
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)

	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// FormatMinutesUntil renders how far ahead of now t is, rounded down to the minute
func FormatMinutesUntil(now time.Time, t time.Time) string {
	minutes := int(t.Sub(now) / time.Minute)

	switch {
	case minutes == 0:
		return "now"
	case minutes < 0:
		return time.Duration(-minutes*int(time.Minute)).String() + " ago"
	default:
		return "in " + time.Duration(minutes*int(time.Minute)).String()
	}
}
