package capture

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/gopacket/gopacket/pcapgo"

	"github.com/signalsfoundry/cam-beaconing/internal/cam"
)

// Record is one CAM found in a capture.
type Record struct {
	Time   time.Time
	Src    net.HardwareAddr
	Dst    net.HardwareAddr
	Length int
	Beacon cam.Beacon
}

// File is the result of reading a capture.
type File struct {
	Records []Record
	// Skipped counts packets that were not Ethernet CAM frames or did not decode.
	Skipped int
}

// ReadFile reads every CAM from the pcap file at path.
func ReadFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("capture: open %s: %w", path, err)
	}
	defer f.Close()
	return Read(f)
}

// Read reads every CAM from a pcap stream.
func Read(r io.Reader) (*File, error) {
	pr, err := pcapgo.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("capture: read pcap header: %w", err)
	}
	if lt := pr.LinkType(); lt != layers.LinkTypeEthernet {
		return nil, fmt.Errorf("capture: unsupported link type %s", lt)
	}

	out := &File{}
	var eth layers.Ethernet
	var c CAMLayer
	for {
		data, ci, err := pr.ReadPacketData()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, fmt.Errorf("capture: read packet %d: %w", len(out.Records)+out.Skipped+1, err)
		}
		if err := eth.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil || eth.EthernetType != EtherTypeGeoNetworking {
			out.Skipped++
			continue
		}
		if err := c.DecodeFromBytes(eth.Payload, gopacket.NilDecodeFeedback); err != nil {
			out.Skipped++
			continue
		}
		out.Records = append(out.Records, Record{
			Time:   ci.Timestamp,
			Src:    append(net.HardwareAddr(nil), eth.SrcMAC...),
			Dst:    append(net.HardwareAddr(nil), eth.DstMAC...),
			Length: ci.Length,
			Beacon: c.Beacon,
		})
	}
}
