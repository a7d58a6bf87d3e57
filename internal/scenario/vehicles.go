package scenario

import (
	"net"

	"github.com/signalsfoundry/cam-beaconing/internal/cam"
	"github.com/signalsfoundry/cam-beaconing/internal/link"
)

// Vehicle is the starting state of one vehicle on the road.
type Vehicle struct {
	Index     int
	StationID cam.StationID
	MAC       net.HardwareAddr
	X, Y      float64
	VX, VY    float64
}

// Layout places the vehicles evenly along the road, all driving in +x.
// Vehicle i starts at i*length/n with speed base + spread*i/n and station id
// FirstStationID+i.
func (s Scenario) Layout() []Vehicle {
	n := s.Vehicles
	if n <= 0 {
		return nil
	}
	out := make([]Vehicle, n)
	for i := range out {
		id := s.FirstStationID + uint32(i)
		frac := float64(i) / float64(n)
		out[i] = Vehicle{
			Index:     i,
			StationID: cam.StationID(id),
			MAC:       link.StationMAC(id),
			X:         frac * s.Road.LengthMeters,
			VX:        s.Road.BaseSpeed + s.Road.SpeedSpread*frac,
		}
	}
	return out
}
