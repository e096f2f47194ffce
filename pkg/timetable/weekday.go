package timetable

import (
	"strings"
	"time"
)

// WeekdayFlags is a 7 bit recurrence mask, Monday is bit 0 and Sunday bit 6
type WeekdayFlags uint8

const (
	Monday WeekdayFlags = 1 << iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday

	Never    WeekdayFlags = 0
	Workdays              = Monday | Tuesday | Wednesday | Thursday | Friday
	Weekends              = Saturday | Sunday
	EveryDay              = Workdays | Weekends
)

// WeekdayFlag maps a Go weekday (Sunday first) onto its bit
func WeekdayFlag(weekday time.Weekday) WeekdayFlags {
	return 1 << ((int(weekday) + 6) % 7)
}

func (w WeekdayFlags) Has(weekday time.Weekday) bool {
	return w&WeekdayFlag(weekday) != 0
}

func (w WeekdayFlags) RunsOn(date Date) bool {
	return w.Has(date.Weekday())
}

func (w WeekdayFlags) String() string {
	if w&EveryDay == Never {
		return "Never runs."
	}

	var builder strings.Builder
	builder.WriteString("MTWTFSS\n")
	for bit := 0; bit < 7; bit++ {
		if w&(1<<bit) != 0 {
			builder.WriteByte('x')
		} else {
			builder.WriteByte(' ')
		}
	}

	return builder.String()
}
