package link

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"golang.org/x/net/ipv4"

	"github.com/signalsfoundry/cam-beaconing/internal/cam"
	"github.com/signalsfoundry/cam-beaconing/internal/logging"
	"github.com/signalsfoundry/cam-beaconing/internal/sched"
)

const maxDatagram = 2048

// UDPConfig configures a UDPLink.
type UDPConfig struct {
	// ListenAddr is the local address, e.g. "127.0.0.1:0". For a multicast
	// Destination it defaults to ":<group port>".
	ListenAddr string
	// Destination is where frames are sent: a unicast peer or an IPv4
	// multicast group such as "239.255.0.1:4790".
	Destination string
	// Interface names the multicast interface. Empty lets the kernel choose.
	Interface string
	// MulticastLoopback delivers our own multicast frames back to this host,
	// which is needed when several stations share one machine.
	MulticastLoopback bool
}

// UDPLink is a cam.Link over a UDP socket. Received datagrams are posted to
// the event scheduler at Now(), so handlers run on the scheduler loop rather
// than on the socket reader goroutine.
type UDPLink struct {
	conn  *net.UDPConn
	pc    *ipv4.PacketConn
	dst   *net.UDPAddr
	sched sched.EventScheduler
	log   logging.Logger

	mu      sync.Mutex
	handler cam.ReceiveHandler

	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

var _ cam.Link = (*UDPLink)(nil)

// ListenUDP opens the socket described by cfg and starts the reader.
func ListenUDP(cfg UDPConfig, s sched.EventScheduler, log logging.Logger) (*UDPLink, error) {
	if s == nil {
		return nil, fmt.Errorf("link: udp: no event scheduler: %w", cam.ErrMissingCollaborator)
	}
	dst, err := net.ResolveUDPAddr("udp4", cfg.Destination)
	if err != nil {
		return nil, fmt.Errorf("link: resolve destination %q: %w", cfg.Destination, err)
	}

	listen := cfg.ListenAddr
	multicast := dst.IP.IsMulticast()
	if listen == "" && multicast {
		listen = fmt.Sprintf(":%d", dst.Port)
	}
	laddr, err := net.ResolveUDPAddr("udp4", listen)
	if err != nil {
		return nil, fmt.Errorf("link: resolve listen address %q: %w", listen, err)
	}
	conn, err := net.ListenUDP("udp4", laddr)
	if err != nil {
		return nil, fmt.Errorf("link: listen %s: %w", laddr, err)
	}

	l := &UDPLink{
		conn:  conn,
		pc:    ipv4.NewPacketConn(conn),
		dst:   dst,
		sched: s,
		log:   logging.OrNoop(log).With(logging.String("local", conn.LocalAddr().String())),
		done:  make(chan struct{}),
	}

	if multicast {
		if err := l.joinGroup(cfg); err != nil {
			conn.Close()
			return nil, err
		}
	}

	l.wg.Add(1)
	go l.readLoop()
	return l, nil
}

func (l *UDPLink) joinGroup(cfg UDPConfig) error {
	var ifi *net.Interface
	if cfg.Interface != "" {
		var err error
		if ifi, err = net.InterfaceByName(cfg.Interface); err != nil {
			return fmt.Errorf("link: multicast interface %q: %w", cfg.Interface, err)
		}
		if err := l.pc.SetMulticastInterface(ifi); err != nil {
			return fmt.Errorf("link: set multicast interface: %w", err)
		}
	}
	if err := l.pc.JoinGroup(ifi, &net.UDPAddr{IP: l.dst.IP}); err != nil {
		return fmt.Errorf("link: join group %s: %w", l.dst.IP, err)
	}
	// Beacons are one-hop broadcasts.
	if err := l.pc.SetMulticastTTL(1); err != nil {
		return fmt.Errorf("link: set multicast ttl: %w", err)
	}
	if err := l.pc.SetMulticastLoopback(cfg.MulticastLoopback); err != nil {
		return fmt.Errorf("link: set multicast loopback: %w", err)
	}
	return nil
}

// Send writes frame as one datagram to the destination.
func (l *UDPLink) Send(frame []byte) bool {
	if _, err := l.conn.WriteToUDP(frame, l.dst); err != nil {
		l.log.Warn(context.Background(), "udp send failed",
			logging.String("dst", l.dst.String()),
			logging.Err(err),
		)
		return false
	}
	return true
}

// RegisterReceiveHandler installs h for inbound datagrams.
func (l *UDPLink) RegisterReceiveHandler(h cam.ReceiveHandler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handler = h
}

// LocalAddress returns the bound UDP address.
func (l *UDPLink) LocalAddress() net.Addr { return l.conn.LocalAddr() }

// Close stops the reader and closes the socket.
func (l *UDPLink) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.done)
		err = l.conn.Close()
		l.wg.Wait()
	})
	return err
}

func (l *UDPLink) readLoop() {
	defer l.wg.Done()
	buf := make([]byte, maxDatagram)
	for {
		n, src, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-l.done:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			l.log.Warn(context.Background(), "udp read failed", logging.Err(err))
			continue
		}

		frame := append([]byte(nil), buf[:n]...)
		from := src.String()
		l.sched.Schedule(l.sched.Now(), func() {
			l.deliver(frame, from)
		})
	}
}

func (l *UDPLink) deliver(frame []byte, from string) {
	l.mu.Lock()
	h := l.handler
	l.mu.Unlock()
	if h == nil {
		l.log.Debug(context.Background(), "dropping datagram without handler", logging.String("src", from))
		return
	}
	h(frame)
}
