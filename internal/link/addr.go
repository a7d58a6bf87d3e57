// Package link provides transports satisfying cam.Link: a simulated shared
// broadcast medium, a synchronous loopback pair for tests, and UDP sockets.
package link

import (
	"encoding/binary"
	"net"
)

// MACAddr is a link-layer address usable as a net.Addr.
type MACAddr net.HardwareAddr

// Network returns "mac".
func (a MACAddr) Network() string { return "mac" }

func (a MACAddr) String() string { return net.HardwareAddr(a).String() }

// BroadcastMAC is the all-stations destination address.
var BroadcastMAC = net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// StationMAC derives the address 00:00:xx:xx:xx:xx from a station id, so
// station 1 is 00:00:00:00:00:01.
func StationMAC(id uint32) net.HardwareAddr {
	mac := make(net.HardwareAddr, 6)
	binary.BigEndian.PutUint32(mac[2:], id)
	return mac
}
