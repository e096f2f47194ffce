package routes

import (
	"slices"

	"github.com/gofiber/fiber/v2"
	"github.com/liip/sheriff"
	"github.com/morningstar-transit/morningstar/pkg/realtime"
	"github.com/morningstar-transit/morningstar/pkg/timetable"
)

func (s *State) ServedToday(c *fiber.Ctx) error {
	snapshot := s.Timetables.Snapshot()

	return c.JSON(snapshot.SortedStopsServedOnDay(s.today(snapshot)))
}

func (s *State) StopArrivals(c *fiber.Ctx) error {
	stopName := c.Params("name")

	snapshot := s.Timetables.Snapshot()
	today := s.today(snapshot)

	theoretical := slices.Collect(snapshot.StoptimesWithDestinationForStop(today, stopName))

	merger := s.Merger
	if merger == nil {
		merger = realtime.NewMerger(nil)
	}
	arrivals := merger.Arrivals(c.UserContext(), snapshot.Location(), today, theoretical)

	groups := []string{"basic"}
	if c.QueryBool("detailed") {
		groups = []string{"detailed"}
	}

	arrivalsReduced, err := sheriff.Marshal(&sheriff.Options{
		Groups: groups,
	}, arrivals)
	if err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": "Sheriff could not reduce arrivals",
		})
	}

	return c.JSON(arrivalsReduced)
}

type stopTimePair struct {
	From timetable.StopTime `json:"from"`
	To   timetable.StopTime `json:"to"`
}

func (s *State) StoptimesBetween(c *fiber.Ctx) error {
	from := c.Params("from")
	to := c.Params("to")

	if from == to {
		c.SendStatus(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"error": "Origin and destination stops must differ",
		})
	}

	snapshot := s.Timetables.Snapshot()

	pairs := []stopTimePair{}
	for fromStop, toStop := range snapshot.StoptimesBetween(s.today(snapshot), from, to) {
		pairs = append(pairs, stopTimePair{From: fromStop, To: toStop})
	}

	return c.JSON(pairs)
}
