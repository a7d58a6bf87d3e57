package capture

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/gopacket/gopacket/pcapgo"

	"github.com/signalsfoundry/cam-beaconing/internal/logging"
)

const snapLen = 65535

var broadcastMAC = net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// Writer appends link frames to a pcap stream. Capture has the link.Tap
// signature, so a Writer can be attached to a medium directly.
type Writer struct {
	mu     sync.Mutex
	w      *pcapgo.Writer
	closer io.Closer
	log    logging.Logger
	frames int
	errs   int
}

// NewWriter writes the pcap file header to w.
func NewWriter(w io.Writer, log logging.Logger) (*Writer, error) {
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(snapLen, layers.LinkTypeEthernet); err != nil {
		return nil, fmt.Errorf("capture: write pcap header: %w", err)
	}
	return &Writer{w: pw, log: logging.OrNoop(log)}, nil
}

// Create truncates path and returns a Writer that owns the file.
func Create(path string, log logging.Logger) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("capture: create %s: %w", path, err)
	}
	w, err := NewWriter(f, log)
	if err != nil {
		f.Close()
		return nil, err
	}
	w.closer = f
	return w, nil
}

// Capture records frame as sent by src at simulation time at.
func (w *Writer) Capture(src net.HardwareAddr, frame []byte, at time.Time) {
	if err := w.WriteFrame(src, frame, at); err != nil {
		w.log.Warn(context.Background(), "capture failed",
			logging.String("src", src.String()),
			logging.Err(err),
		)
	}
}

// WriteFrame wraps frame in an Ethernet header and appends it.
func (w *Writer) WriteFrame(src net.HardwareAddr, frame []byte, at time.Time) error {
	eth := &layers.Ethernet{
		SrcMAC:       src,
		DstMAC:       broadcastMAC,
		EthernetType: EtherTypeGeoNetworking,
	}
	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{}, eth, gopacket.Payload(frame)); err != nil {
		w.mu.Lock()
		w.errs++
		w.mu.Unlock()
		return fmt.Errorf("capture: serialize frame: %w", err)
	}
	data := buf.Bytes()
	ci := gopacket.CaptureInfo{
		Timestamp:     at,
		CaptureLength: len(data),
		Length:        len(data),
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.w.WritePacket(ci, data); err != nil {
		w.errs++
		return fmt.Errorf("capture: write packet: %w", err)
	}
	w.frames++
	return nil
}

// Frames returns how many frames were written.
func (w *Writer) Frames() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.frames
}

// Errors returns how many frames could not be written.
func (w *Writer) Errors() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.errs
}

// Close closes the underlying file when the Writer was made by Create.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closer == nil {
		return nil
	}
	err := w.closer.Close()
	w.closer = nil
	return err
}
