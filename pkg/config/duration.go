package config

import (
	"fmt"
	"time"

	iso8601 "github.com/senseyeio/duration"
	"gopkg.in/yaml.v3"
)

var durationReference = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// Duration is written in configuration files as an ISO-8601 duration, PT20M
type Duration struct {
	time.Duration
}

func ParseDuration(value string) (Duration, error) {
	parsed, err := iso8601.ParseISO8601(value)
	if err != nil {
		return Duration{}, fmt.Errorf("invalid duration %q: %w", value, err)
	}

	return Duration{parsed.Shift(durationReference).Sub(durationReference)}, nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var value string
	if err := node.Decode(&value); err != nil {
		return err
	}

	parsed, err := ParseDuration(value)
	if err != nil {
		return err
	}
	*d = parsed

	return nil
}
