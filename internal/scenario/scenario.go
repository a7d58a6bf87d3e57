// Package scenario describes a beaconing run: how many vehicles, where they
// drive, how often they beacon and what the run records.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/cam-beaconing/internal/cam"
	"github.com/signalsfoundry/cam-beaconing/internal/link"
	"github.com/signalsfoundry/cam-beaconing/timectrl"
)

// Defaults follow the reference road scenario: ten vehicles on a 1 km road
// beaconing every 200 ms for 100 s.
const (
	DefaultVehicles        = 10
	DefaultSimTimeSeconds  = 100.0
	DefaultRoadLength      = 1000.0
	DefaultBaseSpeed       = 10.0
	DefaultSpeedSpread     = 20.0
	DefaultIntervalSeconds = 0.2
	DefaultTickSeconds     = 0.01
	DefaultFirstStationID  = 1
	DefaultMode            = "accelerated"
)

// UDPConfig selects the socket transport instead of the in-process medium.
type UDPConfig struct {
	Listen      string `yaml:"listen"`
	Destination string `yaml:"destination"`
	Interface   string `yaml:"interface"`
	Loopback    bool   `yaml:"loopback"`
}

// Enabled reports whether a destination is configured.
func (u UDPConfig) Enabled() bool { return u.Destination != "" }

// Scenario is the top-level structure of a scenario YAML file.
type Scenario struct {
	Vehicles       int     `yaml:"vehicles"`
	FirstStationID uint32  `yaml:"first_station_id"`
	SimTimeSeconds float64 `yaml:"sim_time_seconds"`

	Road struct {
		LengthMeters float64 `yaml:"length_meters"`
		BaseSpeed    float64 `yaml:"base_speed"`
		SpeedSpread  float64 `yaml:"speed_spread"`
	} `yaml:"road"`

	IntervalSeconds  float64 `yaml:"interval_seconds"`
	IgnoreOwnBeacons bool    `yaml:"ignore_own_beacons"`

	Clock struct {
		Mode        string  `yaml:"mode"`
		TickSeconds float64 `yaml:"tick_seconds"`
	} `yaml:"clock"`

	Medium struct {
		DelaySeconds float64 `yaml:"delay_seconds"`
		RangeMeters  float64 `yaml:"range_meters"`
		MTU          int     `yaml:"mtu"`
	} `yaml:"medium"`

	UDP UDPConfig `yaml:"udp"`

	CapturePath string `yaml:"capture_path"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// Default returns the reference scenario.
func Default() Scenario {
	var s Scenario
	s.ApplyDefaults()
	return s
}

// ApplyDefaults fills every zero-valued field that has a default.
func (s *Scenario) ApplyDefaults() {
	if s.Vehicles == 0 {
		s.Vehicles = DefaultVehicles
	}
	if s.FirstStationID == 0 {
		s.FirstStationID = DefaultFirstStationID
	}
	if s.SimTimeSeconds == 0 {
		s.SimTimeSeconds = DefaultSimTimeSeconds
	}
	if s.Road.LengthMeters == 0 {
		s.Road.LengthMeters = DefaultRoadLength
	}
	if s.Road.BaseSpeed == 0 {
		s.Road.BaseSpeed = DefaultBaseSpeed
	}
	if s.Road.SpeedSpread == 0 {
		s.Road.SpeedSpread = DefaultSpeedSpread
	}
	if s.IntervalSeconds == 0 {
		s.IntervalSeconds = DefaultIntervalSeconds
	}
	if s.Clock.Mode == "" {
		s.Clock.Mode = DefaultMode
	}
	if s.Clock.TickSeconds == 0 {
		s.Clock.TickSeconds = DefaultTickSeconds
	}
	if s.Medium.MTU == 0 {
		s.Medium.MTU = link.DefaultMTU
	}
}

// Validate reports every invalid field at once.
func (s Scenario) Validate() error {
	var errs []error
	if s.Vehicles < 1 {
		errs = append(errs, fmt.Errorf("vehicles must be at least 1, got %d", s.Vehicles))
	}
	if last := uint64(s.FirstStationID) + uint64(s.Vehicles) - 1; s.Vehicles > 0 && last > math.MaxUint32 {
		errs = append(errs, fmt.Errorf("station ids %d..%d overflow uint32", s.FirstStationID, last))
	}
	if s.SimTimeSeconds < 0 || math.IsNaN(s.SimTimeSeconds) {
		errs = append(errs, fmt.Errorf("sim_time_seconds must be >= 0, got %v", s.SimTimeSeconds))
	}
	if !(s.Road.LengthMeters > 0) {
		errs = append(errs, fmt.Errorf("road.length_meters must be > 0, got %v", s.Road.LengthMeters))
	}
	if err := (cam.GenerationConfig{StationID: cam.StationID(s.FirstStationID), IntervalSeconds: s.IntervalSeconds}).Validate(); err != nil {
		errs = append(errs, err)
	}
	if _, err := s.Mode(); err != nil {
		errs = append(errs, err)
	}
	if !(s.Clock.TickSeconds > 0) {
		errs = append(errs, fmt.Errorf("clock.tick_seconds must be > 0, got %v", s.Clock.TickSeconds))
	}
	if s.Medium.DelaySeconds < 0 {
		errs = append(errs, fmt.Errorf("medium.delay_seconds must be >= 0, got %v", s.Medium.DelaySeconds))
	}
	if s.Medium.RangeMeters < 0 {
		errs = append(errs, fmt.Errorf("medium.range_meters must be >= 0, got %v", s.Medium.RangeMeters))
	}
	if s.Medium.MTU < cam.BeaconSize {
		errs = append(errs, fmt.Errorf("medium.mtu must be at least %d, got %d", cam.BeaconSize, s.Medium.MTU))
	}
	if s.UDP.Enabled() {
		if s.Vehicles != 1 {
			errs = append(errs, fmt.Errorf("udp transport runs exactly one local vehicle, got %d", s.Vehicles))
		}
		if mode, err := s.Mode(); err == nil && mode != timectrl.RealTime {
			errs = append(errs, errors.New("udp transport requires clock.mode realtime"))
		}
		if _, _, err := net.SplitHostPort(s.UDP.Destination); err != nil {
			errs = append(errs, fmt.Errorf("udp.destination: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Mode parses Clock.Mode.
func (s Scenario) Mode() (timectrl.Mode, error) {
	switch strings.ToLower(s.Clock.Mode) {
	case "accelerated", "":
		return timectrl.Accelerated, nil
	case "realtime", "real-time":
		return timectrl.RealTime, nil
	default:
		return 0, fmt.Errorf("clock.mode must be accelerated or realtime, got %q", s.Clock.Mode)
	}
}

// SimTime is the run length. Zero means run until cancelled.
func (s Scenario) SimTime() time.Duration { return seconds(s.SimTimeSeconds) }

// Tick is the clock step.
func (s Scenario) Tick() time.Duration { return seconds(s.Clock.TickSeconds) }

// Delay is the medium propagation delay.
func (s Scenario) Delay() time.Duration { return seconds(s.Medium.DelaySeconds) }

func seconds(v float64) time.Duration {
	return time.Duration(math.Round(v * float64(time.Second)))
}

// Load decodes a scenario from r and applies defaults. Unknown keys are an
// error. The result is not validated.
func Load(r io.Reader) (Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return Scenario{}, fmt.Errorf("parse scenario: %w", err)
	}
	s.ApplyDefaults()
	return s, nil
}

// LoadFile reads the scenario at path. See Load.
func LoadFile(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("read scenario %s: %w", path, err)
	}
	s, err := Load(bytes.NewReader(data))
	if err != nil {
		return Scenario{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}
