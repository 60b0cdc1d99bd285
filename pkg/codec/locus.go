package codec

import (
	"fmt"
	"sync/atomic"
)

// Locus is the (offset, variant) pair that made a chunk decompress.
type Locus struct {
	Offset  int
	Variant Variant
	Failed  bool // last discovery found nothing
}

// Usable reports whether the locus can be tried directly.
func (l Locus) Usable() bool {
	return !l.Failed && l.Variant != VariantUnknown
}

func (l Locus) String() string {
	switch {
	case l.Failed:
		return "failed"
	case l.Variant == VariantUnknown:
		return "empty"
	default:
		return fmt.Sprintf("%s@%d", l.Variant, l.Offset)
	}
}

const (
	locusSet    = 1 << 40
	locusFailed = 1 << 41
)

// LocusCache holds a single cached Locus. The zero value is empty and ready
// to use.
type LocusCache struct {
	v atomic.Uint64
}

// NewLocusCache returns an empty cache.
func NewLocusCache() *LocusCache {
	return &LocusCache{}
}

func (c *LocusCache) Load() Locus {
	raw := c.v.Load()
	if raw&locusSet == 0 {
		return Locus{}
	}
	return Locus{
		Offset:  int(int32(uint32(raw))),
		Variant: Variant(raw >> 32),
		Failed:  raw&locusFailed != 0,
	}
}

func (c *LocusCache) Store(l Locus) {
	raw := uint64(uint32(int32(l.Offset))) | uint64(l.Variant)<<32 | locusSet
	if l.Failed {
		raw |= locusFailed
	}
	if c.v.Load() != raw {
		c.v.Store(raw)
	}
}

// MarkFailed records that the last discovery resolved nothing.
func (c *LocusCache) MarkFailed() {
	c.Store(Locus{Failed: true})
}

// Reset empties the cache.
func (c *LocusCache) Reset() {
	c.v.Store(0)
}
