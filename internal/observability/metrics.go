package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/signalsfoundry/cam-beaconing/internal/cam"
)

const stationLabel = "station_id"

// CAMCollector bundles per-station Prometheus metrics for beacon generation
// and reception. It implements cam.Recorder.
type CAMCollector struct {
	gatherer prometheus.Gatherer

	Generated      *prometheus.CounterVec
	Skipped        *prometheus.CounterVec
	SendFailures   *prometheus.CounterVec
	Received       *prometheus.CounterVec
	Rejected       *prometheus.CounterVec
	ObserverErrors *prometheus.CounterVec
	Running        *prometheus.GaugeVec
}

var _ cam.Recorder = (*CAMCollector)(nil)

// NewCAMCollector registers CAM metrics against the provided registerer,
// defaulting to the global Prometheus registry when nil. Metrics that are
// already registered with a compatible type are reused.
func NewCAMCollector(reg prometheus.Registerer) (*CAMCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &CAMCollector{gatherer: gatherer}
	counters := []struct {
		dst  **prometheus.CounterVec
		name string
		help string
	}{
		{&c.Generated, "cam_beacons_generated_total", "Beacons handed to the link and accepted."},
		{&c.Skipped, "cam_cycles_skipped_total", "Generation cycles skipped for lack of kinematic state or link."},
		{&c.SendFailures, "cam_send_failures_total", "Beacons the link refused."},
		{&c.Received, "cam_beacons_received_total", "Beacons decoded and delivered to observers."},
		{&c.Rejected, "cam_frames_rejected_total", "Received frames that failed to decode."},
		{&c.ObserverErrors, "cam_observer_errors_total", "Observer invocations that returned an error or panicked."},
	}
	for _, spec := range counters {
		vec := prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: spec.name,
			Help: spec.help,
		}, []string{stationLabel})
		vec, err := registerCounterVec(reg, vec, spec.name)
		if err != nil {
			return nil, err
		}
		*spec.dst = vec
	}

	running := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "cam_stations_running",
		Help: "1 while the station's generator is running, 0 otherwise.",
	}, []string{stationLabel})
	running, err := registerGaugeVec(reg, running, "cam_stations_running")
	if err != nil {
		return nil, err
	}
	c.Running = running

	return c, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *CAMCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *CAMCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

func (c *CAMCollector) BeaconSent(id cam.StationID)     { c.inc(c.Generated, id) }
func (c *CAMCollector) CycleSkipped(id cam.StationID)   { c.inc(c.Skipped, id) }
func (c *CAMCollector) SendFailed(id cam.StationID)     { c.inc(c.SendFailures, id) }
func (c *CAMCollector) BeaconReceived(id cam.StationID) { c.inc(c.Received, id) }
func (c *CAMCollector) FrameRejected(id cam.StationID)  { c.inc(c.Rejected, id) }
func (c *CAMCollector) ObserverFailed(id cam.StationID) { c.inc(c.ObserverErrors, id) }

// StationRunning sets the running gauge for id.
func (c *CAMCollector) StationRunning(id cam.StationID, running bool) {
	if c == nil || c.Running == nil {
		return
	}
	v := 0.0
	if running {
		v = 1
	}
	c.Running.WithLabelValues(id.String()).Set(v)
}

func (c *CAMCollector) inc(vec *prometheus.CounterVec, id cam.StationID) {
	if c == nil || vec == nil {
		return
	}
	vec.WithLabelValues(id.String()).Inc()
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
