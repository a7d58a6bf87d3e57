// Package sim runs a scenario: vehicles on a road beaconing over a shared
// medium or a UDP socket, driven by the simulation clock.
package sim

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/signalsfoundry/cam-beaconing/internal/cam"
	"github.com/signalsfoundry/cam-beaconing/internal/capture"
	"github.com/signalsfoundry/cam-beaconing/internal/link"
	"github.com/signalsfoundry/cam-beaconing/internal/logging"
	"github.com/signalsfoundry/cam-beaconing/internal/mobility"
	"github.com/signalsfoundry/cam-beaconing/internal/observability"
	"github.com/signalsfoundry/cam-beaconing/internal/scenario"
	"github.com/signalsfoundry/cam-beaconing/internal/sched"
	"github.com/signalsfoundry/cam-beaconing/timectrl"
)

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the run logger.
func WithLogger(l logging.Logger) Option {
	return func(r *Runner) { r.log = logging.OrNoop(l) }
}

// WithRecorder adds a recorder shared by every station, e.g. a CAMCollector.
func WithRecorder(rec cam.Recorder) Option {
	return func(r *Runner) { r.rec = rec }
}

// WithSimCollector publishes loop and medium metrics.
func WithSimCollector(c *observability.SimCollector) Option {
	return func(r *Runner) { r.simMetrics = c }
}

// WithStartTime sets the simulation start time. It defaults to the wall clock
// at construction, truncated to the second.
func WithStartTime(t time.Time) Option {
	return func(r *Runner) { r.start = t }
}

// StationSummary is one station's end-of-run state.
type StationSummary struct {
	ID       cam.StationID
	Counters cam.CountersSnapshot
	// Observed counts beacons the run's observer saw at this station.
	Observed int
}

// Summary describes a finished run.
type Summary struct {
	Elapsed  time.Duration
	Stations []StationSummary
	Medium   link.MediumStats
	Captured int
}

// Runner owns every component of one scenario run.
type Runner struct {
	sc         scenario.Scenario
	log        logging.Logger
	rec        cam.Recorder
	simMetrics *observability.SimCollector
	start      time.Time

	tc       *timectrl.TimeController
	sched    sched.EventScheduler
	medium   *link.Medium
	udp      *link.UDPLink
	capture  *capture.Writer
	vehicles []*mobility.ConstantVelocity
	stations []*cam.Station

	mu         sync.Mutex
	observed   []int
	lastMedium link.MediumStats
	nextReport time.Time
}

// New validates sc and builds every component. Nothing runs until Run.
func New(sc scenario.Scenario, opts ...Option) (*Runner, error) {
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	r := &Runner{
		sc:    sc,
		log:   logging.Noop(),
		start: time.Now().UTC().Truncate(time.Second),
	}
	for _, opt := range opts {
		opt(r)
	}

	mode, _ := sc.Mode()
	r.tc = timectrl.NewTimeController(r.start, sc.Tick(), mode)
	r.sched = sched.NewEventScheduler(r.tc)

	if sc.CapturePath != "" {
		w, err := capture.Create(sc.CapturePath, r.log)
		if err != nil {
			return nil, err
		}
		r.capture = w
	}

	if err := r.buildStations(); err != nil {
		r.close()
		return nil, err
	}
	return r, nil
}

func (r *Runner) buildStations() error {
	layout := r.sc.Layout()
	r.observed = make([]int, len(layout))
	byMAC := make(map[string]*mobility.ConstantVelocity, len(layout))

	if !r.sc.UDP.Enabled() {
		opts := []link.MediumOption{
			link.WithDelay(r.sc.Delay()),
			link.WithMTU(r.sc.Medium.MTU),
			link.WithLogger(r.log),
		}
		if r.sc.Medium.RangeMeters > 0 {
			opts = append(opts, link.WithRange(r.sc.Medium.RangeMeters, func(addr net.HardwareAddr, now time.Time) (float64, float64, bool) {
				v, ok := byMAC[addr.String()]
				if !ok {
					return 0, 0, false
				}
				x, y := v.Position(now)
				return x, y, true
			}))
		}
		r.medium = link.NewMedium(r.sched, opts...)
		if r.capture != nil {
			r.medium.AddTap(r.capture.Capture)
		}
	}

	for _, v := range layout {
		kin := mobility.NewConstantVelocity(v.X, v.Y, v.VX, v.VY, r.start)
		r.vehicles = append(r.vehicles, kin)
		byMAC[v.MAC.String()] = kin

		l, err := r.attach(v)
		if err != nil {
			return err
		}

		st, err := cam.NewStation(cam.GenerationConfig{StationID: v.StationID, IntervalSeconds: r.sc.IntervalSeconds}, cam.Options{
			Scheduler:        r.sched,
			Kinematics:       kin,
			Link:             l,
			Epoch:            r.start,
			IgnoreOwnBeacons: r.sc.IgnoreOwnBeacons,
			Logger:           r.log,
			Recorder:         r.rec,
		})
		if err != nil {
			return err
		}
		st.AddObserver(r.observer(v.Index))
		r.stations = append(r.stations, st)
	}
	return nil
}

func (r *Runner) attach(v scenario.Vehicle) (cam.Link, error) {
	if r.medium != nil {
		port, err := r.medium.Attach(v.MAC)
		if err != nil {
			return nil, err
		}
		return port, nil
	}
	u, err := link.ListenUDP(link.UDPConfig{
		ListenAddr:        r.sc.UDP.Listen,
		Destination:       r.sc.UDP.Destination,
		Interface:         r.sc.UDP.Interface,
		MulticastLoopback: r.sc.UDP.Loopback,
	}, r.sched, r.log)
	if err != nil {
		return nil, err
	}
	r.udp = u
	if r.capture == nil {
		return u, nil
	}
	return &capturingLink{Link: u, mac: v.MAC, clock: r.sched.Now, tap: r.capture.Capture}, nil
}

// observer counts and logs every beacon a vehicle hears.
func (r *Runner) observer(index int) cam.Observer {
	return func(b cam.Beacon) error {
		r.mu.Lock()
		r.observed[index]++
		r.mu.Unlock()
		r.log.Debug(context.Background(), "vehicle received CAM",
			logging.Int("vehicle", index),
			logging.Uint32("from", uint32(b.StationID)),
			logging.Float64("sim_seconds", r.tc.Elapsed().Seconds()),
		)
		return nil
	}
}

// Stations returns the stations in vehicle order.
func (r *Runner) Stations() []*cam.Station { return r.stations }

// Run starts every station, advances the clock for the scenario's sim time
// (or until ctx is cancelled when it is zero) and stops them again. A
// cancelled ctx still yields a summary alongside ctx's error.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	defer r.close()

	ctx = logging.ContextWithLogger(ctx, r.log)
	r.nextReport = r.start.Add(time.Second)
	r.tc.AddListener(r.onTick)

	for _, st := range r.stations {
		if err := st.Start(); err != nil {
			return Summary{}, err
		}
	}
	r.log.Info(ctx, "simulation started",
		logging.Int("vehicles", len(r.stations)),
		logging.Float64("sim_time_seconds", r.sc.SimTimeSeconds),
		logging.Float64("interval_seconds", r.sc.IntervalSeconds),
		logging.String("mode", r.tc.Mode.String()),
	)

	err := r.tc.Run(ctx, r.sc.SimTime())

	for _, st := range r.stations {
		st.Stop()
	}
	summary := r.summary()
	r.logSummary(ctx, summary)

	return summary, err
}

func (r *Runner) onTick(now time.Time) {
	began := time.Now()
	r.sched.RunDue()
	r.simMetrics.ObserveTick(time.Since(began))
	r.simMetrics.SetPending(r.sched.Pending())
	r.simMetrics.SetElapsed(now.Sub(r.start))

	if r.medium != nil {
		stats := r.medium.Stats()
		r.simMetrics.AddMediumStats(
			stats.Frames-r.lastMedium.Frames,
			stats.Deliveries-r.lastMedium.Deliveries,
			stats.OutOfRange-r.lastMedium.OutOfRange,
		)
		r.lastMedium = stats
	}

	for !now.Before(r.nextReport) {
		r.log.Info(context.Background(), "simulation progress",
			logging.Float64("sim_seconds", r.nextReport.Sub(r.start).Seconds()),
		)
		r.nextReport = r.nextReport.Add(time.Second)
	}
}

func (r *Runner) summary() Summary {
	s := Summary{Elapsed: r.tc.Elapsed()}
	r.mu.Lock()
	for i, st := range r.stations {
		s.Stations = append(s.Stations, StationSummary{
			ID:       st.ID(),
			Counters: st.Counters(),
			Observed: r.observed[i],
		})
	}
	r.mu.Unlock()
	if r.medium != nil {
		s.Medium = r.medium.Stats()
	}
	if r.capture != nil {
		s.Captured = r.capture.Frames()
	}
	return s
}

func (r *Runner) logSummary(ctx context.Context, s Summary) {
	for _, st := range s.Stations {
		r.log.Info(ctx, "station summary",
			logging.Uint32("station_id", uint32(st.ID)),
			logging.Uint64("sent", st.Counters.NumSent),
			logging.Uint64("skipped", st.Counters.NumSkipped),
			logging.Uint64("send_failures", st.Counters.NumSendFailures),
			logging.Uint64("received", st.Counters.NumReceived),
			logging.Uint64("rejected", st.Counters.NumRejected),
		)
	}
	r.log.Info(ctx, "simulation finished",
		logging.Float64("sim_seconds", s.Elapsed.Seconds()),
		logging.Uint64("frames", s.Medium.Frames),
		logging.Uint64("deliveries", s.Medium.Deliveries),
		logging.Uint64("out_of_range", s.Medium.OutOfRange),
		logging.Int("captured", s.Captured),
	)
}

func (r *Runner) close() {
	if r.udp != nil {
		if err := r.udp.Close(); err != nil {
			r.log.Warn(context.Background(), "closing udp link", logging.Err(err))
		}
	}
	if r.capture != nil {
		if err := r.capture.Close(); err != nil {
			r.log.Warn(context.Background(), "closing capture", logging.Err(err))
		}
	}
}

// capturingLink records every accepted frame before handing it on.
type capturingLink struct {
	cam.Link
	mac   net.HardwareAddr
	clock func() time.Time
	tap   link.Tap
}

func (c *capturingLink) Send(frame []byte) bool {
	if !c.Link.Send(frame) {
		return false
	}
	c.tap(c.mac, frame, c.clock())
	return true
}
