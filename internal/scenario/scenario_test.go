package scenario

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/signalsfoundry/cam-beaconing/internal/cam"
	"github.com/signalsfoundry/cam-beaconing/timectrl"
)

func TestDefault(t *testing.T) {
	s := Default()
	if err := s.Validate(); err != nil {
		t.Fatalf("default scenario invalid: %v", err)
	}
	if s.Vehicles != 10 || s.SimTime() != 100*time.Second || s.IntervalSeconds != 0.2 {
		t.Fatalf("defaults = %+v", s)
	}
	if s.Tick() != 10*time.Millisecond || s.Delay() != 0 {
		t.Fatalf("tick = %v delay = %v", s.Tick(), s.Delay())
	}
	if mode, err := s.Mode(); err != nil || mode != timectrl.Accelerated {
		t.Fatalf("mode = %v, %v", mode, err)
	}
}

func TestLoadAppliesDefaultsAndOverrides(t *testing.T) {
	const doc = `
vehicles: 4
sim_time_seconds: 5
interval_seconds: 0.5
road:
  length_meters: 400
medium:
  delay_seconds: 0.001
  range_meters: 250
capture_path: out.pcap
`
	s, err := Load(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if s.Vehicles != 4 || s.SimTime() != 5*time.Second || s.IntervalSeconds != 0.5 {
		t.Fatalf("scenario = %+v", s)
	}
	if s.Road.LengthMeters != 400 || s.Road.BaseSpeed != DefaultBaseSpeed {
		t.Fatalf("road = %+v", s.Road)
	}
	if s.Delay() != time.Millisecond || s.Medium.RangeMeters != 250 || s.CapturePath != "out.pcap" {
		t.Fatalf("medium = %+v capture = %q", s.Medium, s.CapturePath)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	if _, err := Load(strings.NewReader("vehicle: 3\n")); err == nil {
		t.Fatalf("expected error for unknown key")
	}
}

func TestLoadEmptyDocument(t *testing.T) {
	s, err := Load(strings.NewReader(""))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(Default(), s); diff != "" {
		t.Fatalf("empty document differs from defaults (-want +got):\n%s", diff)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "road.yaml")
	if err := os.WriteFile(path, []byte("vehicles: 2\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	s, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if s.Vehicles != 2 {
		t.Fatalf("vehicles = %d", s.Vehicles)
	}
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestValidateCollectsErrors(t *testing.T) {
	s := Default()
	s.Vehicles = -1
	s.IntervalSeconds = 20
	s.Clock.Mode = "warp"
	s.Medium.RangeMeters = -5

	err := s.Validate()
	if err == nil {
		t.Fatalf("expected validation errors")
	}
	if !errors.Is(err, cam.ErrConfiguration) {
		t.Fatalf("interval error not wrapped: %v", err)
	}
	for _, want := range []string{"vehicles", "clock.mode", "medium.range_meters"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}
}

func TestValidateUDP(t *testing.T) {
	s := Default()
	s.UDP.Destination = "239.255.0.1:4790"
	if err := s.Validate(); err == nil {
		t.Fatalf("expected error for udp with 10 vehicles in accelerated mode")
	}

	s.Vehicles = 1
	s.Clock.Mode = "realtime"
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLayout(t *testing.T) {
	s := Default()
	vs := s.Layout()
	if len(vs) != 10 {
		t.Fatalf("len = %d", len(vs))
	}
	for i, v := range vs {
		if v.Index != i || v.StationID != cam.StationID(i+1) {
			t.Fatalf("vehicle %d id = %d", i, v.StationID)
		}
		if want := float64(i) * 100; math.Abs(v.X-want) > 1e-9 || v.Y != 0 {
			t.Fatalf("vehicle %d at (%v, %v), want (%v, 0)", i, v.X, v.Y, want)
		}
		if want := 10 + 20*float64(i)/10; math.Abs(v.VX-want) > 1e-9 || v.VY != 0 {
			t.Fatalf("vehicle %d velocity = %v, want %v", i, v.VX, want)
		}
	}
	if got := vs[9].MAC.String(); got != "00:00:00:00:00:0a" {
		t.Fatalf("vehicle 9 MAC = %s", got)
	}
}
