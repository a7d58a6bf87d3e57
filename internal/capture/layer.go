// Package capture records CAM traffic to pcap files and reads it back.
//
// Frames are stored as Ethernet II with the GeoNetworking EtherType and the
// 24-byte beacon as payload, padded to the Ethernet minimum.
package capture

import (
	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"

	"github.com/signalsfoundry/cam-beaconing/internal/cam"
)

// EtherTypeGeoNetworking is the EtherType CAM frames are captured under.
const EtherTypeGeoNetworking layers.EthernetType = 0x8947

// LayerTypeCAM identifies CAMLayer in gopacket.
var LayerTypeCAM = gopacket.RegisterLayerType(
	1847,
	gopacket.LayerTypeMetadata{
		Name:    "CAM",
		Decoder: gopacket.DecodeFunc(decodeCAM),
	},
)

// CAMLayer is a decoded beacon as a gopacket layer. Bytes after the beacon
// (Ethernet padding) end up in Payload.
type CAMLayer struct {
	layers.BaseLayer
	cam.Beacon
}

var (
	_ gopacket.DecodingLayer     = (*CAMLayer)(nil)
	_ gopacket.SerializableLayer = (*CAMLayer)(nil)
)

func (c *CAMLayer) LayerType() gopacket.LayerType { return LayerTypeCAM }

func (c *CAMLayer) CanDecode() gopacket.LayerClass { return LayerTypeCAM }

// NextLayerType treats trailing padding as an opaque payload.
func (c *CAMLayer) NextLayerType() gopacket.LayerType { return gopacket.LayerTypePayload }

func (c *CAMLayer) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	b, err := cam.Decode(data)
	if err != nil {
		df.SetTruncated()
		return err
	}
	c.Beacon = b
	c.BaseLayer = layers.BaseLayer{Contents: data[:cam.BeaconSize], Payload: data[cam.BeaconSize:]}
	return nil
}

func (c *CAMLayer) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	buf, err := b.PrependBytes(cam.BeaconSize)
	if err != nil {
		return err
	}
	frame := cam.Encode(c.Beacon)
	copy(buf, frame[:])
	return nil
}

func decodeCAM(data []byte, p gopacket.PacketBuilder) error {
	c := &CAMLayer{}
	if err := c.DecodeFromBytes(data, p); err != nil {
		return err
	}
	p.AddLayer(c)
	return p.NextDecoder(c.NextLayerType())
}
