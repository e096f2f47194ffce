package routes

import (
	"time"

	"github.com/morningstar-transit/morningstar/pkg/realtime"
	"github.com/morningstar-transit/morningstar/pkg/refresh"
	"github.com/morningstar-transit/morningstar/pkg/timetable"
)

type Timetables interface {
	Snapshot() *timetable.TimeTable
	Status() refresh.Status
}

// State is shared by every route. Each request reads the current snapshot
// once and answers from it even if a newer one gets installed meanwhile.
type State struct {
	Timetables Timetables
	Merger     *realtime.Merger
	Now        func() time.Time
}

func (s *State) today(snapshot *timetable.TimeTable) timetable.Date {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}

	return timetable.DateOf(now().In(snapshot.Location()))
}
