package timetable

import (
	"iter"
	"maps"
	"slices"
)

// JourneysForDay yields the journeys running on date in snapshot order.
// The sequence can be ranged over any number of times.
func (t *TimeTable) JourneysForDay(date Date) iter.Seq[*Journey] {
	return func(yield func(*Journey) bool) {
		resolver := t.resolverFor(date)

		for i := range t.Journeys {
			journey := &t.Journeys[i]
			if !resolver.runs(journey.ServiceID) {
				continue
			}
			if !yield(journey) {
				return
			}
		}
	}
}

func (t *TimeTable) StopsServedOnDay(date Date) map[string]struct{} {
	stops := map[string]struct{}{}

	for journey := range t.JourneysForDay(date) {
		for _, stop := range journey.Stops {
			stops[stop.StopName] = struct{}{}
		}
	}

	return stops
}

func (t *TimeTable) SortedStopsServedOnDay(date Date) []string {
	return slices.Sorted(maps.Keys(t.StopsServedOnDay(date)))
}

// StoptimesFromStop yields, for every journey running on date, the first
// stop time named stopName. Later visits of the same stop are never returned.
func (t *TimeTable) StoptimesFromStop(date Date, stopName string) iter.Seq[StopTime] {
	return func(yield func(StopTime) bool) {
		for journey := range t.JourneysForDay(date) {
			i, found := journey.firstStop(stopName)
			if !found {
				continue
			}
			if !yield(journey.Stops[i]) {
				return
			}
		}
	}
}

// StoptimesBetween yields (a, b) pairs of journeys going from stop a to stop b
func (t *TimeTable) StoptimesBetween(date Date, a, b string) iter.Seq2[StopTime, StopTime] {
	return func(yield func(StopTime, StopTime) bool) {
		for journey := range t.JourneysForDay(date) {
			i, foundA := journey.firstStop(a)
			j, foundB := journey.firstStop(b)
			if !foundA || !foundB {
				continue
			}

			from, to := journey.Stops[i], journey.Stops[j]
			if from.Time >= to.Time {
				continue
			}
			if !yield(from, to) {
				return
			}
		}
	}
}

// StoptimesWithDestinationForStop is StoptimesFromStop with the journey's
// terminus and the number of stops left before reaching it
func (t *TimeTable) StoptimesWithDestinationForStop(date Date, stopName string) iter.Seq[StopTimeWithDestination] {
	return func(yield func(StopTimeWithDestination) bool) {
		for journey := range t.JourneysForDay(date) {
			i, found := journey.firstStop(stopName)
			if !found {
				continue
			}

			last := len(journey.Stops) - 1
			stop := StopTimeWithDestination{
				StopTime:           journey.Stops[i],
				Destination:        journey.Stops[last].StopName,
				StopsToDestination: last - i,
			}
			if !yield(stop) {
				return
			}
		}
	}
}
