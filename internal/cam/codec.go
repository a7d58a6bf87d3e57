package cam

import (
	"encoding/binary"
	"math"
)

// Encode packs b into its 24-byte wire form.
func Encode(b Beacon) [BeaconSize]byte {
	var buf [BeaconSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], uint32(b.StationID))
	binary.LittleEndian.PutUint32(buf[4:8], b.TimestampSeconds)
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(b.PositionX))
	binary.LittleEndian.PutUint32(buf[12:16], math.Float32bits(b.PositionY))
	binary.LittleEndian.PutUint32(buf[16:20], math.Float32bits(b.Speed))
	binary.LittleEndian.PutUint32(buf[20:24], math.Float32bits(b.HeadingDegrees))
	return buf
}

// AppendBeacon appends the wire form of b to dst.
func AppendBeacon(dst []byte, b Beacon) []byte {
	buf := Encode(b)
	return append(dst, buf[:]...)
}

// Decode unpacks the first BeaconSize bytes of buf. Trailing bytes are
// ignored. Field values are not range checked.
func Decode(buf []byte) (Beacon, error) {
	if len(buf) < BeaconSize {
		return Beacon{}, &DecodeError{Kind: TooSmall, Size: len(buf)}
	}
	return Beacon{
		StationID:        StationID(binary.LittleEndian.Uint32(buf[0:4])),
		TimestampSeconds: binary.LittleEndian.Uint32(buf[4:8]),
		PositionX:        math.Float32frombits(binary.LittleEndian.Uint32(buf[8:12])),
		PositionY:        math.Float32frombits(binary.LittleEndian.Uint32(buf[12:16])),
		Speed:            math.Float32frombits(binary.LittleEndian.Uint32(buf[16:20])),
		HeadingDegrees:   math.Float32frombits(binary.LittleEndian.Uint32(buf[20:24])),
	}, nil
}
