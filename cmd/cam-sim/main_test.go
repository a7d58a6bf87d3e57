package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/signalsfoundry/cam-beaconing/internal/capture"
	"github.com/signalsfoundry/cam-beaconing/internal/logging"
)

func TestParseFlagsDefaults(t *testing.T) {
	cfg, err := parseFlags(nil, io.Discard)
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	sc := cfg.Scenario
	if sc.Vehicles != 10 || sc.SimTimeSeconds != 100 || sc.IntervalSeconds != 0.2 {
		t.Fatalf("scenario = %+v", sc)
	}
}

func TestParseFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "road.yaml")
	doc := "vehicles: 4\nsim_time_seconds: 30\nmedium:\n  range_meters: 150\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := parseFlags([]string{"-scenario", path, "-vehicles", "6", "-interval", "500ms"}, io.Discard)
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	sc := cfg.Scenario
	if sc.Vehicles != 6 || sc.IntervalSeconds != 0.5 {
		t.Fatalf("flags did not override: %+v", sc)
	}
	if sc.SimTimeSeconds != 30 || sc.Medium.RangeMeters != 150 {
		t.Fatalf("file values lost: %+v", sc)
	}
}

func TestParseFlagsRejectsInvalidInterval(t *testing.T) {
	if _, err := parseFlags([]string{"-interval", "50ms"}, io.Discard); err == nil {
		t.Fatalf("expected error for 50ms interval")
	}
}

func TestParseFlagsHelp(t *testing.T) {
	var out bytes.Buffer
	_, err := parseFlags([]string{"-h"}, &out)
	if !errors.Is(err, flag.ErrHelp) {
		t.Fatalf("err = %v, want flag.ErrHelp", err)
	}
	if !strings.Contains(out.String(), "-udp-dest") {
		t.Fatalf("usage missing flags:\n%s", out.String())
	}
}

func TestRunSmallScenario(t *testing.T) {
	pcap := filepath.Join(t.TempDir(), "run.pcap")
	cfg, err := parseFlags([]string{"-vehicles", "2", "-sim-time", "1s", "-capture", pcap}, io.Discard)
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}

	var logs bytes.Buffer
	log := logging.NewWithWriter(&logs, logging.Config{Level: "info", Format: "json"})
	if err := run(context.Background(), cfg, log); err != nil {
		t.Fatalf("run: %v", err)
	}

	f, err := capture.ReadFile(pcap)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(f.Records) != 10 {
		t.Fatalf("captured %d frames, want 10", len(f.Records))
	}
	for _, want := range []string{"simulation finished", "run_id", "station summary"} {
		if !strings.Contains(logs.String(), want) {
			t.Fatalf("logs missing %q:\n%s", want, logs.String())
		}
	}
}
