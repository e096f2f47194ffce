package realtime

import (
	"context"
	"errors"
)

var ErrFeedUnavailable = errors.New("live feed unavailable")

// Source fetches the next vehicle calls at a stop. stopID is the GTFS stop
// identifier carried by the timetable.
type Source interface {
	NextCalls(ctx context.Context, stopID string) ([]RealtimeStop, error)
}

type SourceFunc func(ctx context.Context, stopID string) ([]RealtimeStop, error)

func (f SourceFunc) NextCalls(ctx context.Context, stopID string) ([]RealtimeStop, error) {
	return f(ctx, stopID)
}
