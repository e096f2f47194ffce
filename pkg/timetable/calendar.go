package timetable

import (
	"github.com/rs/zerolog/log"
)

// ExceptionKindOn returns the exception deciding whether serviceID runs on
// date. Dates with both an Added and a Deleted exception are contradictory
// and reported as having no exception at all.
func (t *TimeTable) ExceptionKindOn(serviceID string, date Date) (ExceptionType, bool) {
	var added, deleted bool

	for _, exception := range t.Exceptions[serviceID] {
		if exception.Date != date {
			continue
		}

		switch exception.Type {
		case ExceptionAdded:
			added = true
		case ExceptionDeleted:
			deleted = true
		}
	}

	switch {
	case added && deleted:
		log.Warn().
			Str("service", serviceID).
			Str("date", date.String()).
			Msg("Service has both added and deleted exceptions, ignoring them")
		return "", false
	case added:
		return ExceptionAdded, true
	case deleted:
		return ExceptionDeleted, true
	default:
		return "", false
	}
}

// RunsOn reports whether trips of serviceID run on date
func (t *TimeTable) RunsOn(serviceID string, date Date) bool {
	if kind, ok := t.ExceptionKindOn(serviceID, date); ok {
		return kind == ExceptionAdded
	}

	pattern, exists := t.ServicePatterns[serviceID]
	if !exists {
		return false
	}

	return pattern.Matches(date)
}

// dayResolver memoises RunsOn for a single date. It must not outlive the
// evaluation of that date.
type dayResolver struct {
	timetable *TimeTable
	date      Date
	known     map[string]bool
}

func (t *TimeTable) resolverFor(date Date) *dayResolver {
	return &dayResolver{
		timetable: t,
		date:      date,
		known:     map[string]bool{},
	}
}

func (r *dayResolver) runs(serviceID string) bool {
	if runs, exists := r.known[serviceID]; exists {
		return runs
	}

	runs := r.timetable.RunsOn(serviceID, r.date)
	r.known[serviceID] = runs

	return runs
}
