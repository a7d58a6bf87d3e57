// Command cam-sim runs a CAM beaconing scenario: vehicles on a straight road
// broadcasting position beacons over a shared medium, or one vehicle over UDP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/signalsfoundry/cam-beaconing/internal/logging"
	"github.com/signalsfoundry/cam-beaconing/internal/observability"
	"github.com/signalsfoundry/cam-beaconing/internal/scenario"
	"github.com/signalsfoundry/cam-beaconing/internal/sim"
)

// Config is the parsed command line.
type Config struct {
	Scenario scenario.Scenario
	// HoldMetrics keeps the metrics server up after the run until interrupted.
	HoldMetrics bool
}

func main() {
	cfg, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log := logging.NewFromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "cam-sim failed", logging.Err(err))
		os.Exit(1)
	}
}

func parseFlags(args []string, out io.Writer) (Config, error) {
	fs := flag.NewFlagSet("cam-sim", flag.ContinueOnError)
	fs.SetOutput(out)

	scenarioPath := fs.String("scenario", "", "path to a scenario YAML file; flags override its values")
	vehicles := fs.Int("vehicles", scenario.DefaultVehicles, "number of vehicles")
	firstID := fs.Uint("first-station-id", scenario.DefaultFirstStationID, "station id of the first vehicle")
	simTime := fs.Duration("sim-time", time.Duration(scenario.DefaultSimTimeSeconds*float64(time.Second)), "simulated run length; 0 runs until interrupted")
	interval := fs.Duration("interval", time.Duration(scenario.DefaultIntervalSeconds*float64(time.Second)), "CAM generation interval (100ms..10s)")
	tick := fs.Duration("tick", time.Duration(scenario.DefaultTickSeconds*float64(time.Second)), "simulation clock step")
	mode := fs.String("mode", scenario.DefaultMode, "clock mode: accelerated or realtime")
	road := fs.Float64("road-length", scenario.DefaultRoadLength, "road length in metres")
	rangeM := fs.Float64("range", 0, "radio range in metres; 0 is unlimited")
	delay := fs.Duration("delay", 0, "medium propagation delay")
	ignoreOwn := fs.Bool("ignore-own", false, "drop received beacons carrying the station's own id")
	capturePath := fs.String("capture", "", "write every frame to this pcap file")
	metricsAddr := fs.String("metrics-addr", "", "HTTP address for Prometheus /metrics; empty disables")
	hold := fs.Bool("hold-metrics", false, "keep serving metrics after the run until interrupted")
	udpDest := fs.String("udp-dest", "", "beacon over UDP to this host:port (unicast or multicast) instead of the medium")
	udpListen := fs.String("udp-listen", "", "local UDP address")
	udpIface := fs.String("udp-iface", "", "multicast interface name")
	udpLoop := fs.Bool("udp-loopback", false, "receive our own multicast frames")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if fs.NArg() > 0 {
		return Config{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	sc := scenario.Default()
	if *scenarioPath != "" {
		loaded, err := scenario.LoadFile(*scenarioPath)
		if err != nil {
			return Config{}, err
		}
		sc = loaded
	}

	// Only flags given explicitly override the file.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "vehicles":
			sc.Vehicles = *vehicles
		case "first-station-id":
			sc.FirstStationID = uint32(*firstID)
		case "sim-time":
			sc.SimTimeSeconds = simTime.Seconds()
		case "interval":
			sc.IntervalSeconds = interval.Seconds()
		case "tick":
			sc.Clock.TickSeconds = tick.Seconds()
		case "mode":
			sc.Clock.Mode = *mode
		case "road-length":
			sc.Road.LengthMeters = *road
		case "range":
			sc.Medium.RangeMeters = *rangeM
		case "delay":
			sc.Medium.DelaySeconds = delay.Seconds()
		case "ignore-own":
			sc.IgnoreOwnBeacons = *ignoreOwn
		case "capture":
			sc.CapturePath = *capturePath
		case "metrics-addr":
			sc.MetricsAddr = *metricsAddr
		case "udp-dest":
			sc.UDP.Destination = *udpDest
		case "udp-listen":
			sc.UDP.Listen = *udpListen
		case "udp-iface":
			sc.UDP.Interface = *udpIface
		case "udp-loopback":
			sc.UDP.Loopback = *udpLoop
		}
	})

	if err := sc.Validate(); err != nil {
		return Config{}, err
	}
	return Config{Scenario: sc, HoldMetrics: *hold}, nil
}

func run(ctx context.Context, cfg Config, base logging.Logger) error {
	ctx, log := logging.WithRunLogger(ctx, base)
	runID := logging.RunIDFromContext(ctx)

	tracingCfg := observability.TracingConfigFromEnv()
	tracingCfg.RunID = runID
	shutdownTracing, err := observability.InitTracing(ctx, tracingCfg, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	reg := prometheus.NewRegistry()
	camMetrics, err := observability.NewCAMCollector(reg)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	simMetrics, err := observability.NewSimCollector(reg)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	metricsSrv := serveMetrics(cfg.Scenario.MetricsAddr, camMetrics, log)
	defer func() {
		if metricsSrv == nil {
			return
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}()

	runner, err := sim.New(cfg.Scenario,
		sim.WithLogger(log),
		sim.WithRecorder(camMetrics),
		sim.WithSimCollector(simMetrics),
	)
	if err != nil {
		return err
	}

	summary, err := runner.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if cfg.Scenario.CapturePath != "" {
		log.Info(ctx, "capture written",
			logging.String("path", cfg.Scenario.CapturePath),
			logging.Int("frames", summary.Captured),
		)
	}

	if cfg.HoldMetrics && metricsSrv != nil && ctx.Err() == nil {
		log.Info(ctx, "run complete; serving metrics until interrupted")
		<-ctx.Done()
	}
	return nil
}

func serveMetrics(addr string, collector *observability.CAMCollector, log logging.Logger) *http.Server {
	if addr == "" || collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
