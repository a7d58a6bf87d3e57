package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"

	"github.com/signalsfoundry/cam-beaconing/internal/cam"
	"github.com/signalsfoundry/cam-beaconing/internal/link"
	"github.com/signalsfoundry/cam-beaconing/internal/sched"
)

func TestCAMCollectorCountsPerStation(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewCAMCollector(reg)
	if err != nil {
		t.Fatalf("NewCAMCollector: %v", err)
	}

	collector.BeaconSent(1)
	collector.BeaconSent(1)
	collector.BeaconSent(2)
	collector.CycleSkipped(2)
	collector.SendFailed(3)
	collector.BeaconReceived(1)
	collector.FrameRejected(1)
	collector.ObserverFailed(1)

	if got := testutil.ToFloat64(collector.Generated.WithLabelValues("1")); got != 2 {
		t.Fatalf("cam_beacons_generated_total{station_id=1} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.Generated.WithLabelValues("2")); got != 1 {
		t.Fatalf("cam_beacons_generated_total{station_id=2} = %v, want 1", got)
	}
	for name, vec := range map[string]*prometheus.CounterVec{
		"skipped":  collector.Skipped,
		"failures": collector.SendFailures,
		"received": collector.Received,
		"rejected": collector.Rejected,
		"observer": collector.ObserverErrors,
	} {
		if got := testutil.CollectAndCount(vec); got != 1 {
			t.Fatalf("%s series = %d, want 1", name, got)
		}
	}
}

func TestCAMCollectorRunningGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewCAMCollector(reg)
	if err != nil {
		t.Fatalf("NewCAMCollector: %v", err)
	}

	s := sched.NewFakeEventScheduler(time.Unix(0, 0))
	a, _ := link.NewLoopbackPair()
	st, err := cam.NewStation(cam.GenerationConfig{StationID: 9, IntervalSeconds: 1}, cam.Options{
		Scheduler: s,
		Link:      a,
		Recorder:  collector,
		Kinematics: cam.KinematicFunc(func(time.Time) (cam.KinematicSample, bool) {
			return cam.KinematicSample{}, true
		}),
	})
	if err != nil {
		t.Fatalf("NewStation: %v", err)
	}

	st.Start()
	if got := gaugeValue(t, reg, "cam_stations_running", map[string]string{"station_id": "9"}); got != 1 {
		t.Fatalf("cam_stations_running = %v, want 1", got)
	}
	s.Advance(3 * time.Second)
	st.Stop()

	if got := gaugeValue(t, reg, "cam_stations_running", map[string]string{"station_id": "9"}); got != 0 {
		t.Fatalf("cam_stations_running after stop = %v, want 0", got)
	}
	if got := testutil.ToFloat64(collector.Generated.WithLabelValues("9")); got != 3 {
		t.Fatalf("cam_beacons_generated_total = %v, want 3", got)
	}
}

func TestCAMCollectorReusesRegisteredMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewCAMCollector(reg)
	if err != nil {
		t.Fatalf("NewCAMCollector: %v", err)
	}
	second, err := NewCAMCollector(reg)
	if err != nil {
		t.Fatalf("second NewCAMCollector: %v", err)
	}
	first.BeaconSent(4)
	second.BeaconSent(4)

	if got := testutil.ToFloat64(first.Generated.WithLabelValues("4")); got != 2 {
		t.Fatalf("shared counter = %v, want 2", got)
	}
}

func TestCAMCollectorIncompatibleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "cam_beacons_generated_total",
		Help: "Beacons handed to the link and accepted.",
	}, []string{"station_id"}))

	if _, err := NewCAMCollector(reg); err == nil {
		t.Fatalf("expected error for incompatible collector")
	}
}

func TestMetricsHandlerExposesCAMMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewCAMCollector(reg)
	if err != nil {
		t.Fatalf("NewCAMCollector: %v", err)
	}
	collector.BeaconSent(1)
	collector.CycleSkipped(1)
	collector.SendFailed(1)
	collector.BeaconReceived(1)
	collector.FrameRejected(1)
	collector.ObserverFailed(1)
	collector.StationRunning(1, true)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"cam_beacons_generated_total",
		"cam_cycles_skipped_total",
		"cam_send_failures_total",
		"cam_beacons_received_total",
		"cam_frames_rejected_total",
		"cam_observer_errors_total",
		"cam_stations_running",
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output", metric)
		}
	}
	if !strings.Contains(body, `station_id="1"`) {
		t.Fatalf("/metrics output missing station label: %s", body)
	}
}

func TestSimCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("NewSimCollector: %v", err)
	}

	collector.ObserveTick(2 * time.Millisecond)
	collector.ObserveTick(3 * time.Millisecond)
	collector.SetPending(7)
	collector.SetElapsed(1500 * time.Millisecond)
	collector.AddMediumStats(3, 6, 0)
	collector.AddMediumStats(1, 0, 2)

	if count := histogramSampleCount(t, reg, "cam_sim_tick_duration_seconds", nil); count != 2 {
		t.Fatalf("tick sample_count = %d, want 2", count)
	}
	if got := testutil.ToFloat64(collector.EventsPending); got != 7 {
		t.Fatalf("pending = %v, want 7", got)
	}
	if got := testutil.ToFloat64(collector.SimulatedSeconds); got != 1.5 {
		t.Fatalf("elapsed = %v, want 1.5", got)
	}
	if got := testutil.ToFloat64(collector.MediumFrames); got != 4 {
		t.Fatalf("frames = %v, want 4", got)
	}
	if got := testutil.ToFloat64(collector.MediumDeliveries); got != 6 {
		t.Fatalf("deliveries = %v, want 6", got)
	}
	if got := testutil.ToFloat64(collector.MediumOutOfRange); got != 2 {
		t.Fatalf("out of range = %v, want 2", got)
	}

	var nilCollector *SimCollector
	nilCollector.ObserveTick(time.Second)
	nilCollector.AddMediumStats(1, 1, 1)
}

func gaugeValue(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) float64 {
	t.Helper()
	m := findMetric(t, gatherer, name, labels)
	if m == nil || m.GetGauge() == nil {
		t.Fatalf("gauge %s%v not found", name, labels)
	}
	return m.GetGauge().GetValue()
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()
	m := findMetric(t, gatherer, name, labels)
	if m == nil || m.GetHistogram() == nil {
		return 0
	}
	return m.GetHistogram().GetSampleCount()
}

func findMetric(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) *dto.Metric {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) {
				return m
			}
		}
	}
	return nil
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
