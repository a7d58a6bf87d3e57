package cam

import (
	"math"
	"strconv"
)

// BeaconSize is the exact size of an encoded beacon.
const BeaconSize = 24

// StationID identifies a beaconing participant. Zero means "unassigned" by
// convention; it is accepted but callers should not rely on it.
type StationID uint32

// IsAssigned reports whether the id is non-zero.
func (id StationID) IsAssigned() bool { return id != 0 }

func (id StationID) String() string { return strconv.FormatUint(uint64(id), 10) }

// KinematicSample is a point-in-time snapshot of a station's planar motion.
type KinematicSample struct {
	PositionX float64
	PositionY float64
	VelocityX float64
	VelocityY float64
}

// Speed returns the magnitude of the velocity vector in m/s.
func (k KinematicSample) Speed() float64 {
	return math.Hypot(k.VelocityX, k.VelocityY)
}

// HeadingDegrees returns the direction of travel in degrees, in (-180, 180].
// A stationary sample has heading 0.
func (k KinematicSample) HeadingDegrees() float64 {
	h := math.Atan2(k.VelocityY, k.VelocityX) * 180 / math.Pi
	if h <= -180 {
		// atan2(-0, x<0) is -pi.
		h = 180
	}
	return h
}

// Beacon is the decoded form of a CAM.
type Beacon struct {
	StationID        StationID
	TimestampSeconds uint32
	PositionX        float32
	PositionY        float32
	Speed            float32
	HeadingDegrees   float32
}

// NewBeacon builds the beacon a station with the given id emits for sample.
func NewBeacon(id StationID, timestampSeconds uint32, sample KinematicSample) Beacon {
	heading := float32(sample.HeadingDegrees())
	if heading <= -180 {
		// Rounding to float32 can land on the excluded bound.
		heading = 180
	}
	return Beacon{
		StationID:        id,
		TimestampSeconds: timestampSeconds,
		PositionX:        float32(sample.PositionX),
		PositionY:        float32(sample.PositionY),
		Speed:            float32(sample.Speed()),
		HeadingDegrees:   heading,
	}
}
