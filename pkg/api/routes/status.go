package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jinzhu/copier"
	"github.com/morningstar-transit/morningstar/pkg/refresh"
)

type statusResponse struct {
	State               refresh.State `json:"state"`
	Deadline            time.Time     `json:"deadline"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	LastError           string        `json:"last_error,omitempty"`
	LastSuccess         time.Time     `json:"last_success"`

	ExtractedFrom   string    `json:"extracted_from"`
	ExtractedOn     time.Time `json:"extracted_on"`
	ExtractedLineID string    `json:"extracted_line_id"`
	Timezone        string    `json:"timezone"`

	Journeys int `json:"journeys"`
	Services int `json:"services"`
}

func (s *State) Status(c *fiber.Ctx) error {
	status := s.Timetables.Status()

	var response statusResponse
	if err := copier.Copy(&response, &status); err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": "Could not build status",
		})
	}

	snapshot := s.Timetables.Snapshot()
	response.Journeys = len(snapshot.Journeys)
	response.Services = len(snapshot.ServicePatterns)

	return c.JSON(response)
}
