package cam

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestGenerationConfig_Validate(t *testing.T) {
	cases := []struct {
		interval float64
		ok       bool
	}{
		{0.1, true},
		{1.0, true},
		{10.0, true},
		{0.099, false},
		{10.001, false},
		{0, false},
		{-1, false},
		{math.NaN(), false},
		{math.Inf(1), false},
	}
	for _, tc := range cases {
		err := GenerationConfig{StationID: 1, IntervalSeconds: tc.interval}.Validate()
		if tc.ok && err != nil {
			t.Fatalf("interval %v rejected: %v", tc.interval, err)
		}
		if !tc.ok {
			if !errors.Is(err, ErrConfiguration) {
				t.Fatalf("interval %v: err = %v, want ErrConfiguration", tc.interval, err)
			}
			var ce *ConfigurationError
			if !errors.As(err, &ce) || ce.Field != "interval_seconds" {
				t.Fatalf("interval %v: err = %#v", tc.interval, err)
			}
		}
	}
}

func TestDefaultGenerationConfig(t *testing.T) {
	cfg := DefaultGenerationConfig()
	if cfg.StationID != 0 || cfg.IntervalSeconds != 1.0 {
		t.Fatalf("defaults = %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	if cfg.Interval() != time.Second {
		t.Fatalf("Interval() = %v", cfg.Interval())
	}
}

func TestGenerationConfig_IntervalRounds(t *testing.T) {
	if got := (GenerationConfig{IntervalSeconds: 0.2}).Interval(); got != 200*time.Millisecond {
		t.Fatalf("Interval() = %v, want 200ms", got)
	}
}
