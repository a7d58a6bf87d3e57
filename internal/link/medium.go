package link

import (
	"context"
	"fmt"
	"math"
	"net"
	"sync"
	"time"

	"github.com/signalsfoundry/cam-beaconing/internal/cam"
	"github.com/signalsfoundry/cam-beaconing/internal/logging"
	"github.com/signalsfoundry/cam-beaconing/internal/sched"
)

// DefaultMTU is the largest frame a Medium accepts unless WithMTU is used.
const DefaultMTU = 1500

// Tap observes every frame accepted by a Medium, at transmission time.
type Tap func(src net.HardwareAddr, frame []byte, at time.Time)

// Locator returns the planar position of the station behind addr.
type Locator func(addr net.HardwareAddr, now time.Time) (x, y float64, ok bool)

// MediumOption configures a Medium.
type MediumOption func(*Medium)

// WithDelay delays every delivery by d of simulation time.
func WithDelay(d time.Duration) MediumOption {
	return func(m *Medium) { m.delay = d }
}

// WithMTU sets the largest frame Send accepts.
func WithMTU(n int) MediumOption {
	return func(m *Medium) { m.mtu = n }
}

// WithRange drops deliveries between stations more than meters apart.
// Stations the locator cannot place are treated as out of range.
func WithRange(meters float64, locate Locator) MediumOption {
	return func(m *Medium) {
		m.rangeM = meters
		m.locate = locate
	}
}

// WithLogger sets the medium's logger.
func WithLogger(l logging.Logger) MediumOption {
	return func(m *Medium) { m.log = logging.OrNoop(l) }
}

// MediumStats counts medium activity.
type MediumStats struct {
	Frames     uint64 // accepted by Send
	Deliveries uint64 // handed to a receive handler
	OutOfRange uint64 // dropped by WithRange
}

// Medium is a shared broadcast channel: every frame sent by one port is
// delivered to every other attached port. Deliveries are scheduled on the
// event scheduler so they interleave with generation in time order.
type Medium struct {
	sched  sched.EventScheduler
	delay  time.Duration
	mtu    int
	rangeM float64
	locate Locator
	log    logging.Logger

	mu    sync.Mutex
	ports []*Port
	taps  []Tap
	stats MediumStats
}

// NewMedium builds an empty medium on s.
func NewMedium(s sched.EventScheduler, opts ...MediumOption) *Medium {
	m := &Medium{
		sched: s,
		mtu:   DefaultMTU,
		log:   logging.Noop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Attach connects a new port with the given address.
func (m *Medium) Attach(addr net.HardwareAddr) (*Port, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.ports {
		if p.addr.String() == addr.String() {
			return nil, fmt.Errorf("link: address %s already attached", addr)
		}
	}
	p := &Port{m: m, addr: append(net.HardwareAddr(nil), addr...)}
	m.ports = append(m.ports, p)
	return p, nil
}

// AddTap registers a frame observer.
func (m *Medium) AddTap(t Tap) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.taps = append(m.taps, t)
}

// Ports returns the number of attached ports.
func (m *Medium) Ports() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ports)
}

// Stats returns a copy of the medium counters.
func (m *Medium) Stats() MediumStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

func (m *Medium) detach(p *Port) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, q := range m.ports {
		if q == p {
			m.ports = append(m.ports[:i], m.ports[i+1:]...)
			return
		}
	}
}

func (m *Medium) transmit(src *Port, frame []byte) bool {
	if len(frame) > m.mtu {
		m.log.Warn(context.Background(), "frame exceeds MTU",
			logging.String("src", src.addr.String()),
			logging.Int("size", len(frame)),
			logging.Int("mtu", m.mtu),
		)
		return false
	}

	now := m.sched.Now()

	m.mu.Lock()
	m.stats.Frames++
	taps := append([]Tap(nil), m.taps...)
	peers := make([]*Port, 0, len(m.ports))
	for _, p := range m.ports {
		if p != src {
			peers = append(peers, p)
		}
	}
	m.mu.Unlock()

	for _, tap := range taps {
		tap(src.addr, frame, now)
	}

	for _, dst := range peers {
		if !m.inRange(src, dst, now) {
			m.mu.Lock()
			m.stats.OutOfRange++
			m.mu.Unlock()
			continue
		}
		dst := dst
		copyFrame := append([]byte(nil), frame...)
		m.sched.Schedule(now.Add(m.delay), func() {
			if dst.deliver(copyFrame) {
				m.mu.Lock()
				m.stats.Deliveries++
				m.mu.Unlock()
			}
		})
	}
	return true
}

func (m *Medium) inRange(src, dst *Port, now time.Time) bool {
	if m.locate == nil || m.rangeM <= 0 {
		return true
	}
	sx, sy, ok := m.locate(src.addr, now)
	if !ok {
		return false
	}
	dx, dy, ok := m.locate(dst.addr, now)
	if !ok {
		return false
	}
	return math.Hypot(dx-sx, dy-sy) <= m.rangeM
}

// Port is one station's attachment to a Medium. It satisfies cam.Link.
type Port struct {
	m    *Medium
	addr net.HardwareAddr

	mu       sync.Mutex
	handler  cam.ReceiveHandler
	detached bool
}

var _ cam.Link = (*Port)(nil)

// Send broadcasts frame to every other port. It returns false for a
// detached port or an oversize frame.
func (p *Port) Send(frame []byte) bool {
	p.mu.Lock()
	detached := p.detached
	p.mu.Unlock()
	if detached {
		return false
	}
	return p.m.transmit(p, append([]byte(nil), frame...))
}

// RegisterReceiveHandler installs h for frames from other ports.
func (p *Port) RegisterReceiveHandler(h cam.ReceiveHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handler = h
}

// LocalAddress returns the port's MAC address.
func (p *Port) LocalAddress() net.Addr { return MACAddr(p.addr) }

// HardwareAddr returns the port's MAC address.
func (p *Port) HardwareAddr() net.HardwareAddr { return p.addr }

// Detach removes the port from the medium. Frames already scheduled for it
// are dropped.
func (p *Port) Detach() {
	p.mu.Lock()
	if p.detached {
		p.mu.Unlock()
		return
	}
	p.detached = true
	p.mu.Unlock()
	p.m.detach(p)
}

func (p *Port) deliver(frame []byte) bool {
	p.mu.Lock()
	h := p.handler
	detached := p.detached
	p.mu.Unlock()
	if detached || h == nil {
		return false
	}
	h(frame)
	return true
}
