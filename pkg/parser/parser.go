package parser

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/ssargent/hermesportal/pkg/codec"
	"github.com/ssargent/hermesportal/pkg/market"
)

// Stage names where in the pipeline a packet was dropped.
type Stage string

const (
	StageFrame      Stage = "frame"
	StageDecompress Stage = "decompress"
	StageRecord     Stage = "record"
	StagePanic      Stage = "panic"
)

// Failure describes input the parser had to drop.
type Failure struct {
	Feed    market.Feed
	Stage   Stage
	Reason  string
	Payload []byte // owned by the receiver
}

// Diagnostics receives dropped input. Report must not block.
type Diagnostics interface {
	Report(f Failure)
}

// Observer receives per-packet counters. Implementations must be cheap.
type Observer interface {
	PacketDecoded(feed market.Feed, elapsed time.Duration)
	RecordsEmitted(code uint16, n int)
	DecodeFailed(feed market.Feed, stage Stage)
	ChecksumMismatch(feed market.Feed)
}

var (
	ErrNoRegistry = errors.New("parser: registry is required")
	ErrNoSink     = errors.New("parser: sink is required")
)

// Config holds configuration for a Parser.
type Config struct {
	Feed        market.Feed
	Registry    *market.Registry
	Filter      market.Filter // nil accepts every token
	Sink        market.Sink
	Codec       *codec.Codec // nil creates a private codec
	Diagnostics Diagnostics
	Observer    Observer
	Logger      *zerolog.Logger
}

// Stats is a snapshot of parser counters.
type Stats struct {
	Packets            uint64
	Records            uint64
	Failures           uint64
	UnknownCodes       uint64
	ChecksumMismatches uint64
	ShortPackets       uint64
}

// Parser decodes packets of one feed family.
type Parser struct {
	feed     market.Feed
	registry *market.Registry
	filter   market.Filter
	sink     market.Sink
	codec    *codec.Codec
	diag     Diagnostics
	observer Observer
	log      zerolog.Logger

	scratch []byte // FO sub-message output
	acc     []byte // CM chunk accumulator

	packets   atomic.Uint64
	records   atomic.Uint64
	failures  atomic.Uint64
	unknown   atomic.Uint64
	checksums atomic.Uint64
	short     atomic.Uint64
}

// New creates a parser from config.
func New(config Config) (*Parser, error) {
	if config.Registry == nil {
		return nil, ErrNoRegistry
	}
	if config.Sink == nil {
		return nil, ErrNoSink
	}
	p := &Parser{
		feed:     config.Feed,
		registry: config.Registry,
		filter:   config.Filter,
		sink:     config.Sink,
		codec:    config.Codec,
		diag:     config.Diagnostics,
		observer: config.Observer,
		log:      zerolog.Nop(),
	}
	if p.filter == nil {
		p.filter = market.StrikeList{}
	}
	if p.codec == nil {
		p.codec = codec.New(codec.Config{Logger: config.Logger})
	}
	if config.Logger != nil {
		p.log = config.Logger.With().Str("component", "parser").Str("feed", p.feed.String()).Logger()
	}
	p.scratch = make([]byte, 0, p.codec.MaxOutput())
	return p, nil
}

func (p *Parser) Feed() market.Feed          { return p.feed }
func (p *Parser) Codec() *codec.Codec        { return p.codec }
func (p *Parser) Registry() *market.Registry { return p.registry }

// Stats returns a snapshot of the parser counters.
func (p *Parser) Stats() Stats {
	return Stats{
		Packets:            p.packets.Load(),
		Records:            p.records.Load(),
		Failures:           p.failures.Load(),
		UnknownCodes:       p.unknown.Load(),
		ChecksumMismatches: p.checksums.Load(),
		ShortPackets:       p.short.Load(),
	}
}

// Parse decodes one packet and returns the number of lines emitted.
func (p *Parser) Parse(pkt []byte) (emitted int) {
	start := time.Now()
	p.packets.Add(1)
	defer func() {
		if r := recover(); r != nil {
			p.fail(StagePanic, fmt.Sprintf("recovered: %v", r), pkt)
			emitted = 0
		}
		if p.observer != nil {
			p.observer.PacketDecoded(p.feed, time.Since(start))
		}
	}()

	if p.feed == market.FeedCM {
		return p.parseCM(pkt)
	}
	return p.parseFO(pkt)
}

func (p *Parser) dispatch(dec market.Decoder, view market.MessageView) int {
	n := dec.Decode(view, p.filter, p.sink)
	if n > 0 {
		p.records.Add(uint64(n))
		if p.observer != nil {
			p.observer.RecordsEmitted(view.Code, n)
		}
	}
	return n
}

func (p *Parser) unknownCode(code uint16) {
	p.unknown.Add(1)
	p.log.Debug().Str("code", market.CodeString(code)).Msg("no decoder for code")
}

func (p *Parser) checksumMismatch(code uint16, want, got uint16, end byte) {
	p.checksums.Add(1)
	if p.observer != nil {
		p.observer.ChecksumMismatch(p.feed)
	}
	p.log.Debug().
		Str("code", market.CodeString(code)).
		Uint16("want", want).
		Uint16("got", got).
		Uint8("end", end).
		Msg("record checksum mismatch")
}

// fail counts and reports dropped input. The payload is copied since it
// usually aliases the receive buffer.
func (p *Parser) fail(stage Stage, reason string, payload []byte) {
	p.failures.Add(1)
	if p.observer != nil {
		p.observer.DecodeFailed(p.feed, stage)
	}
	p.log.Debug().Str("stage", string(stage)).Int("len", len(payload)).Msg(reason)
	if p.diag != nil {
		p.diag.Report(Failure{
			Feed:    p.feed,
			Stage:   stage,
			Reason:  reason,
			Payload: append([]byte(nil), payload...),
		})
	}
}
