package codec

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/rs/zerolog"
)

const (
	// DefaultMaxOutput bounds the output of one chunk.
	DefaultMaxOutput = 64 * 1024

	markerWindow = 256
	probeWindow  = 128
	minStreamLen = 3
)

// Step names the discovery stage that resolved a call.
type Step uint8

const (
	StepNone Step = iota
	StepCached
	StepOffsetZero
	StepMarker
	StepProbe
	StepLengthPrefix
)

func (s Step) String() string {
	switch s {
	case StepCached:
		return "cached"
	case StepOffsetZero:
		return "offset-zero"
	case StepMarker:
		return "marker"
	case StepProbe:
		return "probe"
	case StepLengthPrefix:
		return "length-prefix"
	default:
		return "none"
	}
}

// Config holds configuration for a Codec.
type Config struct {
	MaxOutput int             // per-chunk output cap (0 = DefaultMaxOutput)
	Cache     *LocusCache     // shared locus cache (nil = private cache)
	OnFailure func(in []byte) // called with the input when discovery fails
	Logger    *zerolog.Logger
}

// Stats is a snapshot of codec counters.
type Stats struct {
	Calls       uint64
	Attempts    uint64
	CacheHits   uint64
	CacheMisses uint64
	Failures    uint64
	LastStep    Step
	Locus       Locus
}

// Codec decompresses chunks of unknown variant and start offset.
type Codec struct {
	maxOutput int
	cache     *LocusCache
	onFailure func([]byte)
	log       zerolog.Logger

	calls    atomic.Uint64
	attempts atomic.Uint64
	hits     atomic.Uint64
	misses   atomic.Uint64
	failures atomic.Uint64
	lastStep atomic.Uint32
}

// New creates a codec from config.
func New(config Config) *Codec {
	c := &Codec{
		maxOutput: config.MaxOutput,
		cache:     config.Cache,
		onFailure: config.OnFailure,
		log:       zerolog.Nop(),
	}
	if c.maxOutput <= 0 {
		c.maxOutput = DefaultMaxOutput
	}
	if c.cache == nil {
		c.cache = NewLocusCache()
	}
	if config.Logger != nil {
		c.log = config.Logger.With().Str("component", "codec").Logger()
	}
	return c
}

// Cache returns the locus cache used by c.
func (c *Codec) Cache() *LocusCache {
	return c.cache
}

// MaxOutput returns the per-chunk output cap.
func (c *Codec) MaxOutput() int {
	return c.maxOutput
}

// Stats returns a snapshot of the codec counters.
func (c *Codec) Stats() Stats {
	return Stats{
		Calls:       c.calls.Load(),
		Attempts:    c.attempts.Load(),
		CacheHits:   c.hits.Load(),
		CacheMisses: c.misses.Load(),
		Failures:    c.failures.Load(),
		LastStep:    Step(c.lastStep.Load()),
		Locus:       c.cache.Load(),
	}
}

// Decompress appends the decompressed form of src to dst, discovering the
// stream offset and variant as described in the package documentation. On
// failure dst is returned unchanged together with ErrUndecodable.
func (c *Codec) Decompress(dst, src []byte) ([]byte, error) {
	c.calls.Add(1)

	if locus := c.cache.Load(); locus.Usable() {
		if out, ok := c.tryLocus(dst, src, locus); ok {
			c.hits.Add(1)
			c.lastStep.Store(uint32(StepCached))
			return out, nil
		}
	}
	c.misses.Add(1)

	if len(src) >= minStreamLen {
		var tried [markerWindow + 2]bool

		tried[0] = true
		if out, v, ok := c.tryOffset(dst, src, 0); ok {
			return c.resolved(out, Locus{Offset: 0, Variant: v}, StepOffsetZero), nil
		}

		window := min(markerWindow, len(src))
		for m := 0; m+1 < window; m++ {
			if !IsMarker(src[m:]) {
				continue
			}
			for off := m - 2; off <= m+1; off++ {
				if off < 0 || off >= len(src) || tried[off] {
					continue
				}
				tried[off] = true
				if out, v, ok := c.tryOffset(dst, src, off); ok {
					return c.resolved(out, Locus{Offset: off, Variant: v}, StepMarker), nil
				}
			}
		}

		last := min(probeWindow, len(src)-minStreamLen)
		for off := 1; off <= last; off++ {
			if tried[off] {
				continue
			}
			tried[off] = true
			if out, v, ok := c.tryOffset(dst, src, off); ok {
				return c.resolved(out, Locus{Offset: off, Variant: v}, StepProbe), nil
			}
		}

		for _, width := range [...]int{2, 4} {
			if out, ok := c.tryPrefixed(dst, src, width); ok {
				return c.resolved(out, Locus{Offset: width, Variant: VariantLengthPrefixed}, StepLengthPrefix), nil
			}
		}
	}

	c.failures.Add(1)
	c.lastStep.Store(uint32(StepNone))
	c.cache.MarkFailed()
	c.log.Debug().Int("len", len(src)).Msg("discovery failed")
	if c.onFailure != nil {
		c.onFailure(src)
	}
	return dst, ErrUndecodable
}

// DecompressStream tries src as a stream starting at byte 0, cached variant
// first, without scanning for other offsets. Bytes after the end of the
// stream are ignored. It is used where the caller has already located the
// stream start but not its end.
func (c *Codec) DecompressStream(dst, src []byte) ([]byte, error) {
	c.calls.Add(1)

	first := VariantZlib
	if locus := c.cache.Load(); locus.Usable() && locus.Variant != VariantLengthPrefixed {
		first = locus.Variant
	}
	order := [2]Variant{first, VariantLZO1Z}
	if first == VariantLZO1Z {
		order[1] = VariantZlib
	}

	for i, v := range order {
		c.attempts.Add(1)
		if out, _, err := inflate(v, dst, src, c.maxOutput); err == nil {
			if i == 0 {
				c.hits.Add(1)
			} else {
				c.misses.Add(1)
			}
			return c.resolved(out, Locus{Offset: 0, Variant: v}, StepOffsetZero), nil
		}
	}
	c.misses.Add(1)
	return dst, ErrUndecodable
}

func (c *Codec) resolved(out []byte, locus Locus, step Step) []byte {
	c.cache.Store(locus)
	c.lastStep.Store(uint32(step))
	return out
}

func (c *Codec) tryLocus(dst, src []byte, locus Locus) ([]byte, bool) {
	if locus.Variant == VariantLengthPrefixed {
		for _, width := range [...]int{2, 4} {
			if out, ok := c.tryPrefixed(dst, src, width); ok {
				return out, true
			}
		}
		return dst, false
	}
	if locus.Offset < 0 || locus.Offset >= len(src) {
		return dst, false
	}
	out, err := c.attempt(locus.Variant, dst, src[locus.Offset:])
	return out, err == nil
}

func (c *Codec) tryOffset(dst, src []byte, off int) ([]byte, Variant, bool) {
	for _, v := range streamVariants {
		if out, err := c.attempt(v, dst, src[off:]); err == nil {
			return out, v, true
		}
	}
	return dst, VariantUnknown, false
}

// tryPrefixed reads a big-endian length of the given width and decompresses
// the bytes after it, clamped to what the input actually holds.
func (c *Codec) tryPrefixed(dst, src []byte, width int) ([]byte, bool) {
	if len(src) <= width {
		return dst, false
	}
	var n uint64
	if width == 2 {
		n = uint64(binary.BigEndian.Uint16(src))
	} else {
		n = uint64(binary.BigEndian.Uint32(src))
	}
	body := src[width:]
	if n == 0 {
		return dst, false
	}
	if n < uint64(len(body)) {
		body = body[:n]
	}
	out, _, ok := c.tryOffset(dst, body, 0)
	return out, ok
}

// attempt succeeds only when the stream spans all of src.
func (c *Codec) attempt(v Variant, dst, src []byte) ([]byte, error) {
	c.attempts.Add(1)
	out, used, err := inflate(v, dst, src, c.maxOutput)
	if err != nil {
		return dst, err
	}
	if used != len(src) {
		return dst, ErrTrailingData
	}
	return out, nil
}
