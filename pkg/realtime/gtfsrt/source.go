package gtfsrt

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/morningstar-transit/morningstar/pkg/realtime"
	"github.com/rs/zerolog/log"
	"google.golang.org/protobuf/proto"
)

const skippedStatus = "skipped"

// Source reads vehicle calls out of a GTFS-Realtime TripUpdates feed
type Source struct {
	FeedURL    string
	Headers    map[string]string
	HTTPClient *http.Client
}

func NewSource(feedURL string, headers map[string]string) *Source {
	return &Source{
		FeedURL: feedURL,
		Headers: headers,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (s *Source) NextCalls(ctx context.Context, stopID string) ([]realtime.RealtimeStop, error) {
	feed, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}

	return CallsAtStop(feed, stopID), nil
}

func (s *Source) fetch(ctx context.Context) (*gtfs.FeedMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.FeedURL, nil)
	if err != nil {
		return nil, err
	}
	for key, value := range s.Headers {
		req.Header.Set(key, value)
	}

	client := s.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", realtime.ErrFeedUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: request status %d", realtime.ErrFeedUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", realtime.ErrFeedUnavailable, err)
	}

	feed := gtfs.FeedMessage{}
	if err := proto.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("%w: failed parsing GTFS-RT protobuf: %w", realtime.ErrFeedUnavailable, err)
	}

	return &feed, nil
}

// CallsAtStop extracts the stop time updates of stopID. The aimed arrival is
// rebuilt from the predicted time and its delay, updates carrying no delay
// can't be matched against the timetable and are left out.
func CallsAtStop(feed *gtfs.FeedMessage, stopID string) []realtime.RealtimeStop {
	var calls []realtime.RealtimeStop

	for _, entity := range feed.GetEntity() {
		tripUpdate := entity.GetTripUpdate()
		if tripUpdate == nil {
			continue
		}

		for _, update := range tripUpdate.GetStopTimeUpdate() {
			if update.GetStopId() != stopID {
				continue
			}

			event := update.GetArrival()
			if event == nil {
				event = update.GetDeparture()
			}
			if event == nil || event.Time == nil || event.Delay == nil {
				log.Debug().
					Str("trip", tripUpdate.GetTrip().GetTripId()).
					Str("stop", stopID).
					Msg("Stop time update has no predicted time and delay")
				continue
			}

			expected := time.Unix(event.GetTime(), 0)
			call := realtime.RealtimeStop{
				AimedArrival:    expected.Add(-time.Duration(event.GetDelay()) * time.Second),
				ExpectedArrival: expected,
			}

			if update.GetScheduleRelationship() == gtfs.TripUpdate_StopTimeUpdate_SKIPPED {
				call.ExpectedArrival = time.Time{}
				call.ArrivalStatus = skippedStatus
			}

			calls = append(calls, call)
		}
	}

	return calls
}
