package provider

import (
	"context"
	"fmt"

	"github.com/morningstar-transit/morningstar/pkg/config"
	"github.com/morningstar-transit/morningstar/pkg/realtime"
	"github.com/morningstar-transit/morningstar/pkg/realtime/cachedsource"
	"github.com/morningstar-transit/morningstar/pkg/realtime/gtfsrt"
	"github.com/morningstar-transit/morningstar/pkg/realtime/prim"
	"github.com/morningstar-transit/morningstar/pkg/redis_client"
	"github.com/rs/zerolog/log"
)

// FromConfig builds the live feed source described by cfg. A nil source
// means live data is disabled and only theoretical times are served.
func FromConfig(ctx context.Context, cfg *config.Config) (realtime.Source, error) {
	var source realtime.Source

	switch cfg.Realtime.Provider {
	case config.ProviderNone:
		log.Info().Msg("Live feed disabled")
		return nil, nil
	case config.ProviderPRIM:
		if cfg.Realtime.PRIMAPIKey == "" {
			log.Warn().Msg("No PRIM API key configured, live feed requests will be refused")
		}

		client := prim.NewClient(cfg.Realtime.PRIMAPIKey)
		if cfg.Realtime.PRIMBaseURL != "" {
			client.BaseURL = cfg.Realtime.PRIMBaseURL
		}
		if cfg.Realtime.Timeout.Duration > 0 {
			client.HTTPClient.Timeout = cfg.Realtime.Timeout.Duration
		}
		source = client
	case config.ProviderGTFSRT:
		feed := gtfsrt.NewSource(cfg.Realtime.GTFSRTURL, cfg.Realtime.GTFSRTHeaders)
		if cfg.Realtime.Timeout.Duration > 0 {
			feed.HTTPClient.Timeout = cfg.Realtime.Timeout.Duration
		}
		source = feed
	default:
		return nil, fmt.Errorf("unknown live feed provider %q", cfg.Realtime.Provider)
	}

	log.Info().Str("provider", cfg.Realtime.Provider).Msg("Live feed configured")

	if cfg.Realtime.CacheTTL.Duration <= 0 {
		return source, nil
	}

	err := redis_client.Connect(ctx, redis_client.Options{
		Address:  cfg.Redis.Address,
		Password: cfg.Redis.Password,
		Database: cfg.Redis.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to redis for the live feed cache: %w", err)
	}

	log.Info().Str("ttl", cfg.Realtime.CacheTTL.String()).Msg("Caching live feed responses in redis")

	return cachedsource.New(redis_client.Client, source, cfg.Realtime.CacheTTL.Duration), nil
}
