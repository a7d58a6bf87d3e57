package cam

import (
	"fmt"
	"math"
	"time"
)

// Generation interval bounds, in seconds.
const (
	MinIntervalSeconds     = 0.1
	MaxIntervalSeconds     = 10.0
	DefaultIntervalSeconds = 1.0
)

// GenerationConfig holds a station's identity and beacon cadence.
type GenerationConfig struct {
	StationID       StationID `yaml:"station_id"`
	IntervalSeconds float64   `yaml:"interval_seconds"`
}

// DefaultGenerationConfig returns an unassigned station beaconing once per second.
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{IntervalSeconds: DefaultIntervalSeconds}
}

// Validate rejects intervals outside [MinIntervalSeconds, MaxIntervalSeconds].
// Out-of-range values are never clamped.
func (c GenerationConfig) Validate() error {
	iv := c.IntervalSeconds
	if math.IsNaN(iv) || iv < MinIntervalSeconds || iv > MaxIntervalSeconds {
		return &ConfigurationError{
			Field:  "interval_seconds",
			Value:  iv,
			Reason: fmt.Sprintf("must be within [%g, %g]", MinIntervalSeconds, MaxIntervalSeconds),
		}
	}
	return nil
}

// Interval returns the generation interval as a Duration.
func (c GenerationConfig) Interval() time.Duration {
	return time.Duration(math.Round(c.IntervalSeconds * float64(time.Second)))
}
