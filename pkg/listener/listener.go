// Package listener receives exchange datagrams from a multicast group.
package listener

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/net/ipv4"
)

// DefaultReadBuffer is the receive buffer size; one datagram never exceeds it.
const DefaultReadBuffer = 64 * 1024

// hexPreview is how many leading bytes a hex dump shows.
const hexPreview = 256

var ErrInvalidGroup = errors.New("listener: invalid multicast group")

// Handler is called once per datagram. pkt is only valid during the call.
type Handler func(pkt []byte)

// Config holds configuration for a Listener.
type Config struct {
	Group      string // multicast IPv4 address
	Port       int    // 0 binds an ephemeral port
	Interface  string // empty = system default
	ReadBuffer int

	// DumpPath and DumpHex capture the first datagram and stop.
	DumpPath string
	DumpHex  bool
	HexOut   io.Writer

	Logger *zerolog.Logger
}

func (c Config) dumping() bool {
	return c.DumpPath != "" || c.DumpHex
}

// Stats is a snapshot of listener counters.
type Stats struct {
	Packets uint64
	Bytes   uint64
}

// Listener owns the UDP socket joined to the group.
type Listener struct {
	config Config
	conn   net.PacketConn
	log    zerolog.Logger

	packets atomic.Uint64
	bytes   atomic.Uint64
}

// Open binds 0.0.0.0:port with SO_REUSEADDR and joins the group. A failed
// join is logged and the socket is kept, since unicast replays still reach it.
func Open(ctx context.Context, config Config) (*Listener, error) {
	group := net.ParseIP(config.Group)
	if group == nil || group.To4() == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidGroup, config.Group)
	}
	if config.ReadBuffer <= 0 {
		config.ReadBuffer = DefaultReadBuffer
	}
	if config.HexOut == nil {
		config.HexOut = os.Stdout
	}

	l := &Listener{config: config, log: zerolog.Nop()}
	if config.Logger != nil {
		l.log = config.Logger.With().Str("component", "listener").Logger()
	}

	lc := net.ListenConfig{Control: reuseAddr}
	conn, err := lc.ListenPacket(ctx, "udp4", net.JoinHostPort("0.0.0.0", strconv.Itoa(config.Port)))
	if err != nil {
		return nil, fmt.Errorf("failed to bind udp port %d: %w", config.Port, err)
	}
	l.conn = conn

	var ifi *net.Interface
	if config.Interface != "" {
		if ifi, err = net.InterfaceByName(config.Interface); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to find interface %q: %w", config.Interface, err)
		}
	}
	if err := ipv4.NewPacketConn(conn).JoinGroup(ifi, &net.UDPAddr{IP: group}); err != nil {
		l.log.Warn().Err(err).Str("group", config.Group).Msg("multicast join failed")
	}

	l.log.Info().
		Str("group", config.Group).
		Str("addr", conn.LocalAddr().String()).
		Msg("listening")
	return l, nil
}

// Addr returns the bound local address.
func (l *Listener) Addr() net.Addr {
	return l.conn.LocalAddr()
}

func (l *Listener) Stats() Stats {
	return Stats{Packets: l.packets.Load(), Bytes: l.bytes.Load()}
}

// Close releases the socket.
func (l *Listener) Close() error {
	return l.conn.Close()
}

// Run reads datagrams and passes them to h until ctx is cancelled. In dump
// mode it captures the first datagram and returns without calling h.
func (l *Listener) Run(ctx context.Context, h Handler) error {
	stop := context.AfterFunc(ctx, func() { l.conn.Close() })
	defer stop()

	buf := make([]byte, l.config.ReadBuffer)
	for {
		n, _, err := l.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to read datagram: %w", err)
		}
		if n == 0 {
			continue
		}
		l.packets.Add(1)
		l.bytes.Add(uint64(n))

		if l.config.dumping() {
			return l.dump(buf[:n])
		}
		h(buf[:n])
	}
}

func (l *Listener) dump(pkt []byte) error {
	if l.config.DumpPath != "" {
		if err := os.WriteFile(l.config.DumpPath, pkt, 0600); err != nil {
			return fmt.Errorf("failed to write packet dump: %w", err)
		}
		l.log.Info().Str("path", l.config.DumpPath).Int("bytes", len(pkt)).Msg("packet dumped")
	}
	if l.config.DumpHex {
		if err := HexDump(l.config.HexOut, pkt); err != nil {
			return err
		}
	}
	return nil
}

// HexDump writes the first 256 bytes of b as space separated hex, 16 bytes
// per line.
func HexDump(w io.Writer, b []byte) error {
	b = b[:min(len(b), hexPreview)]
	const digits = "0123456789abcdef"

	line := make([]byte, 0, 16*3)
	for i := 0; i < len(b); i += 16 {
		line = line[:0]
		for j, c := range b[i:min(i+16, len(b))] {
			if j > 0 {
				line = append(line, ' ')
			}
			line = append(line, digits[c>>4], digits[c&0x0f])
		}
		line = append(line, '\n')
		if _, err := w.Write(line); err != nil {
			return err
		}
	}
	return nil
}
