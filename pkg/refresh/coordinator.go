package refresh

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/morningstar-transit/morningstar/pkg/timetable"
	"github.com/rs/zerolog/log"
)

const (
	DefaultTTL                  = 20 * time.Minute
	DefaultInitialRetryInterval = 30 * time.Second
	DefaultMaxRetryInterval     = 10 * time.Minute
)

type State int

const (
	StateWaiting State = iota
	StateReimporting
)

func (s State) String() string {
	switch s {
	case StateReimporting:
		return "reimporting"
	default:
		return "waiting"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Importer produces a fresh snapshot
type Importer interface {
	Import(ctx context.Context) (*timetable.TimeTable, error)
}

type ImporterFunc func(ctx context.Context) (*timetable.TimeTable, error)

func (f ImporterFunc) Import(ctx context.Context) (*timetable.TimeTable, error) {
	return f(ctx)
}

type Options struct {
	TTL                  time.Duration
	InitialRetryInterval time.Duration
	MaxRetryInterval     time.Duration
	RandomizationFactor  float64

	Clock Clock
}

type Status struct {
	State               State
	Deadline            time.Time
	ConsecutiveFailures int
	LastError           string
	LastSuccess         time.Time

	ExtractedFrom   string
	ExtractedOn     time.Time
	ExtractedLineID string
	Timezone        string
}

// Coordinator owns the live timetable snapshot. Readers share it under a read
// lock while a single Run loop replaces it once it gets older than TTL.
type Coordinator struct {
	importer Importer
	ttl      time.Duration
	clock    Clock
	backoff  *backoff.ExponentialBackOff

	snapshotMutex sync.RWMutex
	snapshot      *timetable.TimeTable

	statusMutex sync.Mutex
	status      Status
}

func NewCoordinator(initial *timetable.TimeTable, importer Importer, options Options) *Coordinator {
	if options.TTL <= 0 {
		options.TTL = DefaultTTL
	}
	if options.InitialRetryInterval <= 0 {
		options.InitialRetryInterval = DefaultInitialRetryInterval
	}
	if options.MaxRetryInterval <= 0 {
		options.MaxRetryInterval = DefaultMaxRetryInterval
	}
	if options.Clock == nil {
		options.Clock = systemClock{}
	}

	b := &backoff.ExponentialBackOff{
		InitialInterval:     options.InitialRetryInterval,
		RandomizationFactor: options.RandomizationFactor,
		Multiplier:          2,
		MaxInterval:         options.MaxRetryInterval,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               options.Clock,
	}
	b.Reset()

	c := &Coordinator{
		importer: importer,
		ttl:      options.TTL,
		clock:    options.Clock,
		backoff:  b,
		snapshot: initial,
	}
	c.status.State = StateWaiting
	c.status.Deadline = c.expiry(initial)
	c.describe(initial)

	return c
}

// Snapshot returns the current timetable. It is never modified, callers can
// keep querying it after a newer one has been installed.
func (c *Coordinator) Snapshot() *timetable.TimeTable {
	c.snapshotMutex.RLock()
	defer c.snapshotMutex.RUnlock()

	return c.snapshot
}

func (c *Coordinator) Status() Status {
	c.statusMutex.Lock()
	defer c.statusMutex.Unlock()

	return c.status
}

func (c *Coordinator) expiry(snapshot *timetable.TimeTable) time.Time {
	deadline := snapshot.ExtractedOn.Add(c.ttl)
	now := c.clock.Now()

	if !deadline.After(now) {
		log.Warn().
			Time("extracted_on", snapshot.ExtractedOn).
			Msg("Timetable is already older than its TTL, scheduling next import from now")
		deadline = now.Add(c.ttl)
	}

	return deadline
}

// describe must be called with statusMutex held or before the coordinator is shared
func (c *Coordinator) describe(snapshot *timetable.TimeTable) {
	c.status.ExtractedFrom = snapshot.ExtractedFrom
	c.status.ExtractedOn = snapshot.ExtractedOn
	c.status.ExtractedLineID = snapshot.ExtractedLineID
	c.status.Timezone = snapshot.Timezone
}

func (c *Coordinator) setState(state State) {
	c.statusMutex.Lock()
	defer c.statusMutex.Unlock()

	c.status.State = state
}

// Step runs one import and schedules the next one. A failed import keeps the
// current snapshot and retries after an exponentially growing interval.
func (c *Coordinator) Step(ctx context.Context) error {
	c.setState(StateReimporting)

	log.Info().Msg("Reimporting timetable")
	startTime := c.clock.Now()

	snapshot, err := c.importer.Import(ctx)

	if err != nil {
		retryIn := c.backoff.NextBackOff()

		c.statusMutex.Lock()
		c.status.State = StateWaiting
		c.status.ConsecutiveFailures++
		c.status.LastError = err.Error()
		c.status.Deadline = c.clock.Now().Add(retryIn)
		failures := c.status.ConsecutiveFailures
		c.statusMutex.Unlock()

		log.Error().
			Err(err).
			Int("failures", failures).
			Str("retry_in", retryIn.String()).
			Msg("Failed to reimport timetable, keeping current one")

		return err
	}

	c.snapshotMutex.Lock()
	c.snapshot = snapshot
	c.snapshotMutex.Unlock()

	c.backoff.Reset()

	deadline := c.expiry(snapshot)

	c.statusMutex.Lock()
	c.status.State = StateWaiting
	c.status.ConsecutiveFailures = 0
	c.status.LastError = ""
	c.status.LastSuccess = c.clock.Now()
	c.status.Deadline = deadline
	c.describe(snapshot)
	c.statusMutex.Unlock()

	log.Info().
		Int("journeys", len(snapshot.Journeys)).
		Str("duration", c.clock.Now().Sub(startTime).String()).
		Time("next", deadline).
		Msg("Installed new timetable")

	return nil
}

// Run reimports the timetable every time its deadline passes, until ctx is done
func (c *Coordinator) Run(ctx context.Context) error {
	for {
		wait := c.Status().Deadline.Sub(c.clock.Now())

		if wait > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.clock.After(wait):
			}
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		c.Step(ctx)
	}
}
