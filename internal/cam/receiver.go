package cam

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/cam-beaconing/internal/logging"
)

// Observer is notified of every accepted beacon. A returned error is logged
// and does not stop later observers.
type Observer func(b Beacon) error

// Receiver validates and decodes inbound frames and fans beacons out to its
// observers, synchronously and in registration order. Nothing escapes Handle:
// decode failures, observer errors and observer panics are logged.
type Receiver struct {
	self      StationID
	ignoreOwn bool
	log       logging.Logger
	rec       Recorder
	tracer    trace.Tracer

	mu        sync.Mutex
	observers []Observer
}

// NewReceiver builds a Receiver for the station with id self. With ignoreOwn
// set, beacons carrying self are dropped before observers run.
func NewReceiver(self StationID, ignoreOwn bool, log logging.Logger, rec Recorder) *Receiver {
	if rec == nil {
		rec = MultiRecorder()
	}
	return &Receiver{
		self:      self,
		ignoreOwn: ignoreOwn,
		log:       logging.OrNoop(log),
		rec:       rec,
		tracer:    otel.Tracer(tracerName),
	}
}

// AddObserver appends o to the observer list. Nil observers are ignored.
func (r *Receiver) AddObserver(o Observer) {
	if o == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, o)
}

// Observers returns how many observers are registered.
func (r *Receiver) Observers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.observers)
}

// Handle processes one raw frame. It is the ReceiveHandler registered on the link.
func (r *Receiver) Handle(frame []byte) {
	ctx, span := r.tracer.Start(context.Background(), "cam.receive",
		trace.WithAttributes(
			attribute.Int64("cam.station_id", int64(r.self)),
			attribute.Int("cam.frame_size", len(frame)),
		),
	)
	defer span.End()

	defer func() {
		if p := recover(); p != nil {
			err := fmt.Errorf("CAM reception panicked: %v", p)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			r.log.Error(ctx, "CAM reception failed", logging.Err(err))
		}
	}()

	b, err := Decode(frame)
	if err != nil {
		span.RecordError(err)
		r.rec.FrameRejected(r.self)
		r.log.Warn(ctx, "discarding CAM frame", logging.Int("size", len(frame)), logging.Err(err))
		return
	}
	if r.ignoreOwn && b.StationID == r.self {
		return
	}

	span.SetAttributes(attribute.Int64("cam.sender_id", int64(b.StationID)))
	r.rec.BeaconReceived(r.self)
	r.log.Debug(ctx, "CAM received",
		logging.Uint32("from", uint32(b.StationID)),
		logging.Uint32("timestamp", b.TimestampSeconds),
		logging.Float64("x", float64(b.PositionX)),
		logging.Float64("y", float64(b.PositionY)),
		logging.Float64("speed", float64(b.Speed)),
		logging.Float64("heading", float64(b.HeadingDegrees)),
	)

	r.mu.Lock()
	observers := append([]Observer(nil), r.observers...)
	r.mu.Unlock()

	for i, o := range observers {
		if err := r.notify(o, b); err != nil {
			span.RecordError(err)
			r.rec.ObserverFailed(r.self)
			r.log.Warn(ctx, "CAM observer failed", logging.Int("observer", i), logging.Err(err))
		}
	}
}

func (r *Receiver) notify(o Observer, b Beacon) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("observer panicked: %v", p)
		}
	}()
	return o(b)
}
