package prim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/morningstar-transit/morningstar/pkg/realtime"
	"github.com/rs/zerolog/log"
)

const DefaultBaseURL = "https://prim.iledefrance-mobilites.fr/marketplace"

// Client queries the Île-de-France Mobilités PRIM stop monitoring API, an
// account is needed to get an API key
type Client struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

func NewClient(apiKey string) *Client {
	return &Client{
		APIKey:  apiKey,
		BaseURL: DefaultBaseURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) NextCalls(ctx context.Context, stopID string) ([]realtime.RealtimeStop, error) {
	requestURL := fmt.Sprintf("%s/stop-monitoring?MonitoringRef=%s", c.BaseURL, url.QueryEscape(ParseStopID(stopID).PRIM()))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apiKey", c.APIKey)
	req.Header.Set("Accept", "application/json")

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", realtime.ErrFeedUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", realtime.ErrFeedUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: request status %d and content %s", realtime.ErrFeedUnavailable, resp.StatusCode, body)
	}

	return ParseStopMonitoring(body)
}

type stopMonitoringResponse struct {
	Siri struct {
		ServiceDelivery struct {
			StopMonitoringDelivery []struct {
				MonitoredStopVisit []MonitoredStopVisit
			}
		}
	}
}

type MonitoredStopVisit struct {
	MonitoringRef struct {
		Value string `json:"value"`
	}

	MonitoredVehicleJourney struct {
		LineRef struct {
			Value string `json:"value"`
		}
		DestinationName []struct {
			Value string `json:"value"`
		}

		MonitoredCall MonitoredCall
	}
}

type MonitoredCall struct {
	AimedArrivalTime    string
	ExpectedArrivalTime string
	ArrivalStatus       string
}

// ParseStopMonitoring turns a SIRI lite stop monitoring document into vehicle
// calls. Visits without an aimed arrival are skipped.
func ParseStopMonitoring(body []byte) ([]realtime.RealtimeStop, error) {
	var response stopMonitoringResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("%w: %w", realtime.ErrFeedUnavailable, err)
	}

	var calls []realtime.RealtimeStop
	for _, delivery := range response.Siri.ServiceDelivery.StopMonitoringDelivery {
		for _, visit := range delivery.MonitoredStopVisit {
			journey := visit.MonitoredVehicleJourney

			aimed, err := time.Parse(time.RFC3339, journey.MonitoredCall.AimedArrivalTime)
			if err != nil {
				log.Debug().
					Str("stop", visit.MonitoringRef.Value).
					Str("aimed", journey.MonitoredCall.AimedArrivalTime).
					Msg("Skipping stop visit without aimed arrival")
				continue
			}

			call := realtime.RealtimeStop{
				AimedArrival:  aimed,
				ArrivalStatus: journey.MonitoredCall.ArrivalStatus,
			}

			if expected, err := time.Parse(time.RFC3339, journey.MonitoredCall.ExpectedArrivalTime); err == nil {
				call.ExpectedArrival = expected
			}

			if len(journey.DestinationName) > 0 && journey.DestinationName[0].Value != "" {
				call.Destination = journey.DestinationName[0].Value
			}

			calls = append(calls, call)
		}
	}

	return calls, nil
}
