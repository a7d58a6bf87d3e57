package link

import (
	"net"
	"sync"

	"github.com/signalsfoundry/cam-beaconing/internal/cam"
)

// Loopback is one end of a synchronous point-to-point link: Send calls the
// peer's receive handler before returning. It is meant for tests.
type Loopback struct {
	addr net.HardwareAddr
	peer *Loopback

	mu      sync.Mutex
	handler cam.ReceiveHandler
	down    bool
	sent    int
}

var _ cam.Link = (*Loopback)(nil)

// NewLoopbackPair returns two connected ends addressed as stations 1 and 2.
func NewLoopbackPair() (*Loopback, *Loopback) {
	a := &Loopback{addr: StationMAC(1)}
	b := &Loopback{addr: StationMAC(2)}
	a.peer, b.peer = b, a
	return a, b
}

// Send delivers a copy of frame to the peer. It returns false while the
// link is down.
func (l *Loopback) Send(frame []byte) bool {
	l.mu.Lock()
	if l.down {
		l.mu.Unlock()
		return false
	}
	l.sent++
	l.mu.Unlock()

	l.peer.mu.Lock()
	h := l.peer.handler
	l.peer.mu.Unlock()
	if h != nil {
		h(append([]byte(nil), frame...))
	}
	return true
}

// RegisterReceiveHandler installs h for frames sent by the peer.
func (l *Loopback) RegisterReceiveHandler(h cam.ReceiveHandler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handler = h
}

// LocalAddress returns this end's MAC address.
func (l *Loopback) LocalAddress() net.Addr { return MACAddr(l.addr) }

// SetDown makes Send fail while down is true.
func (l *Loopback) SetDown(down bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.down = down
}

// Sent returns how many frames Send accepted.
func (l *Loopback) Sent() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sent
}
