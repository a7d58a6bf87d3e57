package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SimCollector exposes metrics about the simulation loop and the shared medium.
type SimCollector struct {
	gatherer prometheus.Gatherer

	TickDuration     prometheus.Histogram
	EventsPending    prometheus.Gauge
	MediumFrames     prometheus.Counter
	MediumDeliveries prometheus.Counter
	MediumOutOfRange prometheus.Counter
	SimulatedSeconds prometheus.Gauge
}

// NewSimCollector registers simulation metrics against the provided registerer.
func NewSimCollector(reg prometheus.Registerer) (*SimCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	tickHistogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cam_sim_tick_duration_seconds",
		Help:    "Wall-clock time spent running the events due in one simulation tick.",
		Buckets: []float64{0.00001, 0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	})
	tickHistogram, err := registerHistogram(reg, tickHistogram, "cam_sim_tick_duration_seconds")
	if err != nil {
		return nil, err
	}

	pending, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cam_sim_events_pending",
		Help: "Events outstanding on the simulation event scheduler.",
	}), "cam_sim_events_pending")
	if err != nil {
		return nil, err
	}

	simSeconds, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cam_sim_elapsed_seconds",
		Help: "Simulated time elapsed since the start of the run.",
	}), "cam_sim_elapsed_seconds")
	if err != nil {
		return nil, err
	}

	frames, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cam_medium_frames_total",
		Help: "Frames transmitted on the shared medium.",
	}), "cam_medium_frames_total")
	if err != nil {
		return nil, err
	}
	deliveries, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cam_medium_deliveries_total",
		Help: "Frame deliveries to receiving ports.",
	}), "cam_medium_deliveries_total")
	if err != nil {
		return nil, err
	}
	outOfRange, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cam_medium_out_of_range_total",
		Help: "Deliveries dropped because the receiver was out of range.",
	}), "cam_medium_out_of_range_total")
	if err != nil {
		return nil, err
	}

	return &SimCollector{
		gatherer:         gatherer,
		TickDuration:     tickHistogram,
		EventsPending:    pending,
		MediumFrames:     frames,
		MediumDeliveries: deliveries,
		MediumOutOfRange: outOfRange,
		SimulatedSeconds: simSeconds,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *SimCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveTick records the wall time one tick took.
func (c *SimCollector) ObserveTick(d time.Duration) {
	if c == nil || c.TickDuration == nil {
		return
	}
	c.TickDuration.Observe(d.Seconds())
}

// SetPending updates the pending events gauge.
func (c *SimCollector) SetPending(n int) {
	if c == nil || c.EventsPending == nil {
		return
	}
	c.EventsPending.Set(float64(n))
}

// SetElapsed updates the simulated time gauge.
func (c *SimCollector) SetElapsed(d time.Duration) {
	if c == nil || c.SimulatedSeconds == nil {
		return
	}
	c.SimulatedSeconds.Set(d.Seconds())
}

// AddMediumStats adds counter deltas taken from successive medium snapshots.
func (c *SimCollector) AddMediumStats(frames, deliveries, outOfRange uint64) {
	if c == nil {
		return
	}
	if c.MediumFrames != nil && frames > 0 {
		c.MediumFrames.Add(float64(frames))
	}
	if c.MediumDeliveries != nil && deliveries > 0 {
		c.MediumDeliveries.Add(float64(deliveries))
	}
	if c.MediumOutOfRange != nil && outOfRange > 0 {
		c.MediumOutOfRange.Add(float64(outOfRange))
	}
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}
