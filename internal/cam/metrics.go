package cam

import (
	"fmt"
	"sync"
)

// Recorder receives beaconing events for metrics. Implementations must be
// safe for concurrent use when shared between stations.
type Recorder interface {
	BeaconSent(id StationID)
	CycleSkipped(id StationID)
	SendFailed(id StationID)
	BeaconReceived(id StationID)
	FrameRejected(id StationID)
	ObserverFailed(id StationID)
	StationRunning(id StationID, running bool)
}

// Counters tracks in-memory beaconing counters for one or more stations.
// All counters are concurrency-safe.
type Counters struct {
	mu sync.Mutex

	// Generation
	NumSent         uint64
	NumSkipped      uint64
	NumSendFailures uint64

	// Reception
	NumReceived       uint64
	NumRejected       uint64
	NumObserverErrors uint64
}

// NewCounters creates a Counters instance with all counters at zero.
func NewCounters() *Counters {
	return &Counters{}
}

func (c *Counters) BeaconSent(StationID)     { c.inc(&c.NumSent) }
func (c *Counters) CycleSkipped(StationID)   { c.inc(&c.NumSkipped) }
func (c *Counters) SendFailed(StationID)     { c.inc(&c.NumSendFailures) }
func (c *Counters) BeaconReceived(StationID) { c.inc(&c.NumReceived) }
func (c *Counters) FrameRejected(StationID)  { c.inc(&c.NumRejected) }
func (c *Counters) ObserverFailed(StationID) { c.inc(&c.NumObserverErrors) }

// StationRunning is a no-op; Counters only tracks totals.
func (c *Counters) StationRunning(StationID, bool) {}

func (c *Counters) inc(v *uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	*v++
}

// CountersSnapshot is a point-in-time copy of Counters.
type CountersSnapshot struct {
	NumSent           uint64
	NumSkipped        uint64
	NumSendFailures   uint64
	NumReceived       uint64
	NumRejected       uint64
	NumObserverErrors uint64
}

// Snapshot returns the current counter values.
func (c *Counters) Snapshot() CountersSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CountersSnapshot{
		NumSent:           c.NumSent,
		NumSkipped:        c.NumSkipped,
		NumSendFailures:   c.NumSendFailures,
		NumReceived:       c.NumReceived,
		NumRejected:       c.NumRejected,
		NumObserverErrors: c.NumObserverErrors,
	}
}

func (c *Counters) String() string {
	snap := c.Snapshot()
	return fmt.Sprintf("CAM counters: sent=%d skipped=%d send_failures=%d received=%d rejected=%d observer_errors=%d",
		snap.NumSent,
		snap.NumSkipped,
		snap.NumSendFailures,
		snap.NumReceived,
		snap.NumRejected,
		snap.NumObserverErrors,
	)
}

type multiRecorder []Recorder

func (m multiRecorder) BeaconSent(id StationID) {
	for _, r := range m {
		r.BeaconSent(id)
	}
}

func (m multiRecorder) CycleSkipped(id StationID) {
	for _, r := range m {
		r.CycleSkipped(id)
	}
}

func (m multiRecorder) SendFailed(id StationID) {
	for _, r := range m {
		r.SendFailed(id)
	}
}

func (m multiRecorder) BeaconReceived(id StationID) {
	for _, r := range m {
		r.BeaconReceived(id)
	}
}

func (m multiRecorder) FrameRejected(id StationID) {
	for _, r := range m {
		r.FrameRejected(id)
	}
}

func (m multiRecorder) ObserverFailed(id StationID) {
	for _, r := range m {
		r.ObserverFailed(id)
	}
}

func (m multiRecorder) StationRunning(id StationID, running bool) {
	for _, r := range m {
		r.StationRunning(id, running)
	}
}

// MultiRecorder fans events out to every non-nil recorder.
func MultiRecorder(recs ...Recorder) Recorder {
	out := make(multiRecorder, 0, len(recs))
	for _, r := range recs {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}
