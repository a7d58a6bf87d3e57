package cam

import (
	"fmt"
	"sync"
	"time"

	"github.com/signalsfoundry/cam-beaconing/internal/logging"
	"github.com/signalsfoundry/cam-beaconing/internal/sched"
)

// Options carries a Station's collaborators.
type Options struct {
	// Scheduler drives generation. Required.
	Scheduler sched.EventScheduler
	// Kinematics supplies position and velocity. A nil provider makes every
	// cycle skip with a warning.
	Kinematics KinematicProvider
	// Link may be nil at construction and attached later with SetLink.
	Link Link
	// Epoch is the zero point of beacon timestamps. Defaults to the
	// scheduler's Now() at construction.
	Epoch time.Time
	// IgnoreOwnBeacons drops received beacons carrying this station's id.
	IgnoreOwnBeacons bool

	Logger   logging.Logger
	Recorder Recorder
}

// Station is one beaconing entity: a Generator and a Receiver sharing a Link.
type Station struct {
	cfg      GenerationConfig
	gen      *Generator
	rx       *Receiver
	counters *Counters

	mu   sync.Mutex
	link Link
}

// NewStation validates cfg and builds a stopped Station. An invalid interval
// yields a *ConfigurationError; a nil scheduler yields ErrMissingCollaborator.
func NewStation(cfg GenerationConfig, opts Options) (*Station, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Scheduler == nil {
		return nil, fmt.Errorf("new station %s: no event scheduler: %w", cfg.StationID, ErrMissingCollaborator)
	}

	epoch := opts.Epoch
	if epoch.IsZero() {
		epoch = opts.Scheduler.Now()
	}

	log := logging.OrNoop(opts.Logger).With(logging.Uint32("station_id", uint32(cfg.StationID)))
	counters := NewCounters()
	rec := MultiRecorder(counters, opts.Recorder)

	s := &Station{
		cfg:      cfg,
		counters: counters,
		gen:      NewGenerator(cfg, opts.Scheduler, opts.Kinematics, nil, epoch, log, rec),
		rx:       NewReceiver(cfg.StationID, opts.IgnoreOwnBeacons, log, rec),
	}
	if opts.Link != nil {
		s.SetLink(opts.Link)
	}
	return s, nil
}

// ID returns the station id.
func (s *Station) ID() StationID { return s.cfg.StationID }

// Config returns the validated configuration.
func (s *Station) Config() GenerationConfig { return s.cfg }

// Start begins periodic generation. See Generator.Start.
func (s *Station) Start() error { return s.gen.Start() }

// Stop ends periodic generation. See Generator.Stop.
func (s *Station) Stop() { s.gen.Stop() }

// State returns the generator state.
func (s *Station) State() State { return s.gen.State() }

// Pending reports whether a generation event is outstanding.
func (s *Station) Pending() bool { return s.gen.Pending() }

// Link returns the attached link, or nil.
func (s *Station) Link() Link {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.link
}

// SetLink attaches l for both directions. The receive side is registered
// immediately; a running generator sends on l from its next cycle. The link
// capability set has no deregistration, so a replaced link keeps delivering
// to this station's receiver until it is torn down.
func (s *Station) SetLink(l Link) {
	s.mu.Lock()
	s.link = l
	s.mu.Unlock()

	if l != nil {
		l.RegisterReceiveHandler(s.rx.Handle)
	}
	s.gen.SetLink(l)
}

// AddObserver registers o for beacons received by this station.
func (s *Station) AddObserver(o Observer) { s.rx.AddObserver(o) }

// Receiver exposes the reception pipeline, e.g. to feed it frames directly.
func (s *Station) Receiver() *Receiver { return s.rx }

// Counters returns the station's own counters.
func (s *Station) Counters() CountersSnapshot { return s.counters.Snapshot() }
