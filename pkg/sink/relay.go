package sink

import (
	"bufio"
	"crypto/subtle"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultRelayQueue      = 4096
	DefaultRelayBatchBytes = 16 * 1024

	handshakeTimeout = 3 * time.Second
	sendTimeout      = 5 * time.Second
	maxAuthLine      = 64 * 1024
)

var ErrNoToken = errors.New("relay: auth token is required")

// RelayConfig holds configuration for a Relay.
type RelayConfig struct {
	Addr       string // host:port; port 0 picks a free one
	Token      string
	MaxQueue   int  // 0 = DefaultRelayQueue
	BatchBytes int  // 0 = DefaultRelayBatchBytes
	RejectBusy bool // answer ERR busy instead of replacing the current client
	Logger     *zerolog.Logger
}

// Relay streams lines to one authenticated TCP client.
//
// A client connects, sends "AUTH <token>\n" and receives "OK\n" or
// "ERR auth\n". Lines are queued only while a client is connected and are
// written in newline-terminated batches. A failed write drops the batch
// and disconnects the client.
type Relay struct {
	cfg   RelayConfig
	ln    net.Listener
	queue *ringQueue[string]
	log   zerolog.Logger

	mu        sync.Mutex
	client    net.Conn
	connected atomic.Bool

	sent    atomic.Uint64
	dropped atomic.Uint64

	closeOnce sync.Once
	stop      chan struct{}
	wg        sync.WaitGroup
}

// NewRelay binds the listener and starts serving.
func NewRelay(config RelayConfig) (*Relay, error) {
	if config.Token == "" {
		return nil, ErrNoToken
	}
	if config.MaxQueue <= 0 {
		config.MaxQueue = DefaultRelayQueue
	}
	if config.BatchBytes <= 0 {
		config.BatchBytes = DefaultRelayBatchBytes
	}
	ln, err := net.Listen("tcp", config.Addr)
	if err != nil {
		return nil, fmt.Errorf("relay: listen %s: %w", config.Addr, err)
	}

	r := &Relay{
		cfg:   config,
		ln:    ln,
		queue: newRingQueue[string](config.MaxQueue),
		log:   zerolog.Nop(),
		stop:  make(chan struct{}),
	}
	if config.Logger != nil {
		r.log = config.Logger.With().Str("component", "relay").Logger()
	}

	r.wg.Add(2)
	go r.acceptLoop()
	go r.sendLoop()
	r.log.Info().Str("addr", ln.Addr().String()).Msg("relay listening")
	return r, nil
}

// Addr returns the bound address.
func (r *Relay) Addr() net.Addr {
	return r.ln.Addr()
}

// Connected reports whether a client is attached.
func (r *Relay) Connected() bool {
	return r.connected.Load()
}

// Sent returns the number of lines written to clients.
func (r *Relay) Sent() uint64 {
	return r.sent.Load()
}

// Dropped returns lines lost to a full queue or a failed send.
func (r *Relay) Dropped() uint64 {
	return r.dropped.Load() + r.queue.droppedCount()
}

// Emit queues line when a client is connected and discards it otherwise.
func (r *Relay) Emit(line string) {
	if !r.connected.Load() {
		return
	}
	r.queue.push(line)
}

// Close stops accepting, disconnects the client and waits for the loops.
func (r *Relay) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.stop)
		err = r.ln.Close()
		r.mu.Lock()
		r.dropClientLocked()
		r.mu.Unlock()
		r.wg.Wait()
	})
	return err
}

func (r *Relay) acceptLoop() {
	defer r.wg.Done()
	for {
		conn, err := r.ln.Accept()
		if err != nil {
			select {
			case <-r.stop:
				return
			default:
			}
			r.log.Debug().Err(err).Msg("accept")
			time.Sleep(10 * time.Millisecond)
			continue
		}
		r.handshake(conn)
	}
}

func (r *Relay) handshake(conn net.Conn) {
	peer := conn.RemoteAddr().String()
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	line, err := readLine(bufio.NewReader(conn))
	if err != nil {
		r.log.Debug().Err(err).Str("peer", peer).Msg("auth read failed")
		_ = conn.Close()
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	token, ok := strings.CutPrefix(line, "AUTH ")
	if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(r.cfg.Token)) != 1 {
		r.reply(conn, "ERR auth\n")
		_ = conn.Close()
		r.log.Warn().Str("peer", peer).Msg("relay auth failed")
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client != nil {
		if r.cfg.RejectBusy {
			r.reply(conn, "ERR busy\n")
			_ = conn.Close()
			return
		}
		r.log.Info().Str("peer", peer).Msg("replacing relay client")
		r.dropClientLocked()
	}
	r.client = conn
	r.connected.Store(true)
	r.reply(conn, "OK\n")
	r.log.Info().Str("peer", peer).Msg("relay client accepted")
}

func (r *Relay) reply(conn net.Conn, msg string) {
	_ = conn.SetWriteDeadline(time.Now().Add(handshakeTimeout))
	_, _ = conn.Write([]byte(msg))
	_ = conn.SetWriteDeadline(time.Time{})
}

// readLine reads one line without its terminator, tolerating CR.
func readLine(br *bufio.Reader) (string, error) {
	var sb strings.Builder
	for {
		c, err := br.ReadByte()
		if err != nil {
			return "", err
		}
		switch c {
		case '\n':
			return sb.String(), nil
		case '\r':
			continue
		}
		if sb.Len() >= maxAuthLine {
			return "", errors.New("auth line too long")
		}
		sb.WriteByte(c)
	}
}

// dropClientLocked closes the client and discards anything queued for it.
func (r *Relay) dropClientLocked() {
	if r.client == nil {
		return
	}
	_ = r.client.Close()
	r.client = nil
	r.connected.Store(false)
	r.queue.reset()
}

func (r *Relay) sendLoop() {
	defer r.wg.Done()
	var batch []string
	var buf []byte
	for {
		select {
		case <-r.stop:
			return
		case <-r.queue.ready:
		}

		for {
			batch = r.nextBatch(batch[:0])
			if len(batch) == 0 {
				break
			}
			buf = buf[:0]
			for _, l := range batch {
				buf = append(buf, l...)
				if !strings.HasSuffix(l, "\n") {
					buf = append(buf, '\n')
				}
			}
			r.send(buf, len(batch))

			select {
			case <-r.stop:
				return
			default:
			}
		}
	}
}

// nextBatch takes lines until batch_bytes is reached; the first line is
// always taken.
func (r *Relay) nextBatch(dst []string) []string {
	total := 0
	limit := r.cfg.BatchBytes
	return r.queue.popWhile(dst, func(l string) bool {
		if total > 0 && total >= limit {
			return false
		}
		total += len(l) + 1
		return true
	})
}

func (r *Relay) send(buf []byte, lines int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client == nil {
		r.dropped.Add(uint64(lines))
		return
	}
	_ = r.client.SetWriteDeadline(time.Now().Add(sendTimeout))
	if _, err := r.client.Write(buf); err != nil {
		r.log.Warn().Err(err).Int("bytes", len(buf)).Msg("relay send failed, dropping client")
		r.dropped.Add(uint64(lines))
		r.dropClientLocked()
		return
	}
	r.sent.Add(uint64(lines))
}
