package cam

import (
	"net"
	"time"
)

// ReceiveHandler consumes one raw frame delivered by a Link.
type ReceiveHandler func(frame []byte)

// Link is the raw-frame transport a Station beacons over. Implementations
// decide delivery semantics (broadcast, unicast) and addressing.
type Link interface {
	// Send transmits frame and reports whether the link accepted it.
	// Implementations must not retain frame after returning.
	Send(frame []byte) bool
	// RegisterReceiveHandler installs the handler for inbound frames,
	// replacing any previous one.
	RegisterReceiveHandler(h ReceiveHandler)
	// LocalAddress returns the link-layer address of this endpoint.
	LocalAddress() net.Addr
}

// KinematicProvider reports a station's motion at simulation time now.
// ok is false when no sample is available.
type KinematicProvider interface {
	Sample(now time.Time) (sample KinematicSample, ok bool)
}

// KinematicFunc adapts a function to KinematicProvider.
type KinematicFunc func(now time.Time) (KinematicSample, bool)

// Sample calls f.
func (f KinematicFunc) Sample(now time.Time) (KinematicSample, bool) { return f(now) }
