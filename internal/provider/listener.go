package provider

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/bitsmakerde/planemirror/internal/timeutil"
)

// maxDatagramSize bounds one bridge datagram. Boundary meshes are capped on
// the bridge side well below this.
const maxDatagramSize = 64 * 1024

// UDPListenerConfig configures the bridge datagram listener.
type UDPListenerConfig struct {
	// Address is the bind address; empty means all interfaces.
	Address string
	// Port is the UDP port the bridge sends to.
	Port int
	// RcvBuf is the socket receive buffer size in bytes; 0 keeps the OS
	// default.
	RcvBuf int
	// LogInterval is how often traffic stats are logged; 0 means one
	// minute.
	LogInterval time.Duration
	// Stats receives traffic counters; nil disables counting.
	Stats *Stats
	// Handler consumes parsed events. Required.
	Handler Handler
	// Recorder, when non-nil, receives every parsed event before the
	// handler runs.
	Recorder *Recorder
	// Clock drives the stats ticker; nil means the wall clock.
	Clock timeutil.Clock
}

// UDPListener receives plane events from the platform bridge. One goroutine
// reads, parses, and hands events to the handler in arrival order; there is
// no buffering or backpressure beyond the socket itself.
type UDPListener struct {
	cfg   UDPListenerConfig
	stats *Stats

	mu   sync.Mutex
	addr net.Addr
}

// NewUDPListener creates a listener. The handler must be set.
func NewUDPListener(cfg UDPListenerConfig) (*UDPListener, error) {
	if cfg.Handler == nil {
		return nil, fmt.Errorf("udp listener needs a handler")
	}
	stats := cfg.Stats
	if stats == nil {
		stats = NewStats()
	}
	if cfg.LogInterval == 0 {
		cfg.LogInterval = time.Minute
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	return &UDPListener{cfg: cfg, stats: stats}, nil
}

// Run binds the socket and consumes datagrams until ctx is cancelled.
// Malformed datagrams are counted and skipped, never fatal.
func (l *UDPListener) Run(ctx context.Context) error {
	addr := &net.UDPAddr{Port: l.cfg.Port}
	if l.cfg.Address != "" {
		addr.IP = net.ParseIP(l.cfg.Address)
		if addr.IP == nil {
			return fmt.Errorf("invalid bind address %q", l.cfg.Address)
		}
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("bind udp %d: %w", l.cfg.Port, err)
	}
	if l.cfg.RcvBuf > 0 {
		if err := conn.SetReadBuffer(l.cfg.RcvBuf); err != nil {
			log.Printf("[provider] could not set receive buffer to %d: %v", l.cfg.RcvBuf, err)
		}
	}
	l.mu.Lock()
	l.addr = conn.LocalAddr()
	l.mu.Unlock()
	log.Printf("[provider] listening for plane events on %s", conn.LocalAddr())

	// Close the socket when the context ends so the read loop unblocks.
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	ticker := l.cfg.Clock.NewTicker(l.cfg.LogInterval)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C():
				l.stats.LogStats()
			}
		}
	}()

	buf := make([]byte, maxDatagramSize)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				log.Printf("[provider] listener stopped")
				return ctx.Err()
			}
			return fmt.Errorf("read udp: %w", err)
		}
		l.stats.AddDatagram(n)
		l.handlePayload(buf[:n])
	}
}

// LocalAddr returns the bound address once Run has opened the socket, or
// nil before that. Lets callers (and tests) bind port 0.
func (l *UDPListener) LocalAddr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.addr
}

func (l *UDPListener) handlePayload(payload []byte) {
	ev, err := ParseEvent(payload)
	if err != nil {
		l.stats.AddMalformed()
		log.Printf("[provider] dropping malformed datagram: %v", err)
		return
	}
	if ev.UnixNanos == 0 {
		ev.UnixNanos = time.Now().UnixNano()
	}
	l.stats.AddEvent(ev.Kind)
	if l.cfg.Recorder != nil {
		if err := l.cfg.Recorder.Record(ev); err != nil {
			log.Printf("[provider] record event: %v", err)
		}
	}
	l.cfg.Handler(ev)
}
