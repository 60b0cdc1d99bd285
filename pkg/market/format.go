package market

import (
	"encoding/binary"
	"math"
	"strconv"
)

func be16(b []byte) uint16 { return binary.BigEndian.Uint16(b) }
func be32(b []byte) uint32 { return binary.BigEndian.Uint32(b) }

func beFloat64(b []byte) float64 {
	return math.Float64frombits(binary.BigEndian.Uint64(b))
}

// FormatScaled renders raw/scale truncated to two decimal places.
func FormatScaled(raw, scale int64) string {
	return string(appendScaled(nil, raw, scale))
}

func appendScaled(b []byte, raw, scale int64) []byte {
	if raw < 0 {
		b = append(b, '-')
		raw = -raw
	}
	whole := raw / scale
	frac := raw % scale * 100 / scale
	b = strconv.AppendInt(b, whole, 10)
	b = append(b, '.')
	if frac < 10 {
		b = append(b, '0')
	}
	return strconv.AppendInt(b, frac, 10)
}

// roundQuantity rounds a wire double half-up to an integer quantity.
func roundQuantity(v float64) int64 {
	if math.IsNaN(v) || v <= -9.2e18 || v >= 9.2e18 {
		return 0
	}
	return int64(v + 0.5)
}

type lineBuilder struct {
	b []byte
}

func newLine(token uint32, code uint16) *lineBuilder {
	l := &lineBuilder{b: make([]byte, 0, 192)}
	l.b = strconv.AppendUint(l.b, uint64(token), 10)
	l.b = append(l.b, ',')
	l.b = append(l.b, CodeString(code)...)
	return l
}

func (l *lineBuilder) uint(v uint64) *lineBuilder {
	l.b = append(l.b, ',')
	l.b = strconv.AppendUint(l.b, v, 10)
	return l
}

func (l *lineBuilder) int(v int64) *lineBuilder {
	l.b = append(l.b, ',')
	l.b = strconv.AppendInt(l.b, v, 10)
	return l
}

func (l *lineBuilder) price(raw, scale int64) *lineBuilder {
	l.b = append(l.b, ',')
	l.b = appendScaled(l.b, raw, scale)
	return l
}

func (l *lineBuilder) String() string {
	return string(l.b)
}
