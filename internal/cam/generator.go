package cam

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/cam-beaconing/internal/logging"
	"github.com/signalsfoundry/cam-beaconing/internal/sched"
)

const tracerName = "github.com/signalsfoundry/cam-beaconing/internal/cam"

// State is the lifecycle state of a Generator.
type State int

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Running:
		return "running"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Generator emits one beacon per interval while Running.
//
// Each fire is rescheduled interval after the time it actually ran, not after
// its nominal time, so any lateness of the host loop accumulates.
type Generator struct {
	cfg    GenerationConfig
	sched  sched.EventScheduler
	kin    KinematicProvider
	epoch  time.Time
	log    logging.Logger
	rec    Recorder
	tracer trace.Tracer

	mu      sync.Mutex
	state   State
	link    Link
	pending string // scheduler event id of the next fire, "" when none
}

// NewGenerator builds a stopped generator. cfg must already be valid; see
// NewStation for the validating constructor.
func NewGenerator(cfg GenerationConfig, scheduler sched.EventScheduler, kin KinematicProvider, link Link, epoch time.Time, log logging.Logger, rec Recorder) *Generator {
	if rec == nil {
		rec = MultiRecorder()
	}
	return &Generator{
		cfg:    cfg,
		sched:  scheduler,
		kin:    kin,
		link:   link,
		epoch:  epoch,
		log:    logging.OrNoop(log),
		rec:    rec,
		tracer: otel.Tracer(tracerName),
	}
}

// State returns the current lifecycle state.
func (g *Generator) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Pending reports whether a generation event is outstanding.
func (g *Generator) Pending() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pending != ""
}

// SetLink replaces the link. A running generator uses it from the next fire.
func (g *Generator) SetLink(l Link) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.link = l
}

// Start moves Stopped to Running and schedules the first fire one interval
// from now. Without a link it logs, stays Stopped and returns
// ErrMissingCollaborator. Starting a running generator does nothing.
func (g *Generator) Start() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == Running {
		return nil
	}
	if g.link == nil {
		err := fmt.Errorf("start station %s: no link: %w", g.cfg.StationID, ErrMissingCollaborator)
		g.log.Error(context.Background(), "cannot start CAM generation", logging.Err(err))
		return err
	}

	g.state = Running
	g.scheduleLocked(g.sched.Now())
	g.rec.StationRunning(g.cfg.StationID, true)
	g.log.Info(context.Background(), "CAM generation started",
		logging.Float64("interval_seconds", g.cfg.IntervalSeconds),
	)
	return nil
}

// Stop cancels the pending fire and moves to Stopped. Once Stop returns no
// further Send happens. Stopping a stopped generator does nothing.
func (g *Generator) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == Stopped {
		return
	}
	g.state = Stopped
	if g.pending != "" {
		g.sched.Cancel(g.pending)
		g.pending = ""
	}
	g.rec.StationRunning(g.cfg.StationID, false)
	g.log.Info(context.Background(), "CAM generation stopped")
}

func (g *Generator) scheduleLocked(from time.Time) {
	g.pending = g.sched.Schedule(from.Add(g.cfg.Interval()), g.fire)
}

func (g *Generator) fire() {
	g.mu.Lock()
	if g.state != Running {
		g.mu.Unlock()
		return
	}
	g.pending = ""
	link := g.link
	g.mu.Unlock()

	firedAt := g.sched.Now()
	g.generate(firedAt, link)

	g.mu.Lock()
	defer g.mu.Unlock()
	// A Stop/Start inside generate may already have rescheduled.
	if g.state == Running && g.pending == "" {
		g.scheduleLocked(firedAt)
	}
}

// generate runs one cycle. Failures are logged and counted, never returned,
// so the caller always reschedules.
func (g *Generator) generate(now time.Time, link Link) {
	ctx, span := g.tracer.Start(context.Background(), "cam.generate",
		trace.WithAttributes(attribute.Int64("cam.station_id", int64(g.cfg.StationID))),
	)
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("CAM generation panicked: %v", r)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			g.log.Error(ctx, "CAM generation failed", logging.Err(err))
		}
	}()

	if g.kin == nil {
		g.skip(ctx, span, fmt.Errorf("no kinematic provider: %w", ErrMissingCollaborator))
		return
	}
	sample, ok := g.kin.Sample(now)
	if !ok {
		g.skip(ctx, span, fmt.Errorf("kinematic state unavailable: %w", ErrMissingCollaborator))
		return
	}
	if link == nil {
		g.skip(ctx, span, fmt.Errorf("no link: %w", ErrMissingCollaborator))
		return
	}

	b := NewBeacon(g.cfg.StationID, g.timestamp(now), sample)
	frame := Encode(b)
	if !link.Send(frame[:]) {
		err := fmt.Errorf("send CAM from station %s: %w", g.cfg.StationID, ErrSendFailure)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.rec.SendFailed(g.cfg.StationID)
		g.log.Warn(ctx, "CAM send failed", logging.Err(err))
		return
	}

	g.rec.BeaconSent(g.cfg.StationID)
	g.log.Debug(ctx, "CAM sent",
		logging.Uint32("timestamp", b.TimestampSeconds),
		logging.Float64("x", float64(b.PositionX)),
		logging.Float64("y", float64(b.PositionY)),
		logging.Float64("speed", float64(b.Speed)),
		logging.Float64("heading", float64(b.HeadingDegrees)),
	)
}

func (g *Generator) skip(ctx context.Context, span trace.Span, err error) {
	span.AddEvent("cycle skipped", trace.WithAttributes(attribute.String("reason", err.Error())))
	g.rec.CycleSkipped(g.cfg.StationID)
	g.log.Warn(ctx, "CAM generation skipped", logging.Err(err))
}

// timestamp returns whole seconds since the epoch, clamped to the uint32 range.
func (g *Generator) timestamp(now time.Time) uint32 {
	elapsed := now.Sub(g.epoch)
	if elapsed <= 0 {
		return 0
	}
	secs := uint64(elapsed / time.Second)
	if secs > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(secs)
}
