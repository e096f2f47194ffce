package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/morningstar-transit/morningstar/pkg/util"
	"gopkg.in/yaml.v3"
)

const (
	ProviderPRIM   = "prim"
	ProviderGTFSRT = "gtfsrt"
	ProviderNone   = "none"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type TimetableConfig struct {
	File   string `yaml:"file" validate:"required"`
	Source string `yaml:"source"`
	Route  string `yaml:"route"`

	TTL                  Duration `yaml:"ttl"`
	InitialRetryInterval Duration `yaml:"initial_retry_interval"`
	MaxRetryInterval     Duration `yaml:"max_retry_interval"`

	// Defaults to this binary's `timetable import`
	ImportCommand []string `yaml:"import_command"`
}

type RealtimeConfig struct {
	Provider string `yaml:"provider" validate:"oneof=prim gtfsrt none"`

	PRIMAPIKey  string `yaml:"prim_api_key"`
	PRIMBaseURL string `yaml:"prim_base_url" validate:"omitempty,url"`

	GTFSRTURL     string            `yaml:"gtfsrt_url" validate:"omitempty,url"`
	GTFSRTHeaders map[string]string `yaml:"gtfsrt_headers"`

	Timeout              Duration `yaml:"timeout"`
	MaxConcurrentFetches int      `yaml:"max_concurrent_fetches" validate:"gte=0"`

	// Zero disables the Redis response cache
	CacheTTL Duration `yaml:"cache_ttl"`
}

type RedisConfig struct {
	Address  string `yaml:"address" validate:"omitempty,hostname_port"`
	Password string `yaml:"password"`
	Database int    `yaml:"database" validate:"gte=0"`
}

type Config struct {
	Listen    string          `yaml:"listen" validate:"required"`
	Timetable TimetableConfig `yaml:"timetable" validate:"required"`
	Realtime  RealtimeConfig  `yaml:"realtime"`
	Redis     RedisConfig     `yaml:"redis"`
}

func Default() Config {
	return Config{
		Listen: ":3000",
		Timetable: TimetableConfig{
			File:                 "timetable.json",
			TTL:                  Duration{20 * time.Minute},
			InitialRetryInterval: Duration{30 * time.Second},
			MaxRetryInterval:     Duration{10 * time.Minute},
		},
		Realtime: RealtimeConfig{
			Provider:             ProviderPRIM,
			PRIMBaseURL:          "https://prim.iledefrance-mobilites.fr/marketplace",
			Timeout:              Duration{10 * time.Second},
			MaxConcurrentFetches: 4,
		},
	}
}

// Load reads path on top of the defaults, applies environment overrides and
// validates the result. An empty path only uses defaults and environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}

	cfg.applyEnvironment(util.GetEnvironmentVariables())

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (cfg *Config) applyEnvironment(env map[string]string) {
	if env["MORNINGSTAR_PRIM_API_KEY"] != "" {
		cfg.Realtime.PRIMAPIKey = env["MORNINGSTAR_PRIM_API_KEY"]
	}
	if env["MORNINGSTAR_REDIS_ADDRESS"] != "" {
		cfg.Redis.Address = env["MORNINGSTAR_REDIS_ADDRESS"]
	}
}

func (cfg *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if cfg.Realtime.Provider == ProviderGTFSRT && cfg.Realtime.GTFSRTURL == "" {
		return fmt.Errorf("%w: gtfsrt provider needs gtfsrt_url", ErrInvalidConfig)
	}
	if cfg.Realtime.CacheTTL.Duration > 0 && cfg.Redis.Address == "" {
		return fmt.Errorf("%w: cache_ttl needs a redis address", ErrInvalidConfig)
	}
	if cfg.Timetable.TTL.Duration <= 0 {
		return fmt.Errorf("%w: timetable ttl must be positive", ErrInvalidConfig)
	}

	return nil
}

// Refreshable reports whether a GTFS source and route are known to reimport from
func (cfg *Config) Refreshable() bool {
	return cfg.Timetable.Source != "" && cfg.Timetable.Route != ""
}
