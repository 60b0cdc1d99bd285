package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// Variant identifies how a compressed chunk is laid out.
type Variant uint8

const (
	VariantUnknown Variant = iota
	VariantZlib
	VariantLZO1Z
	VariantLengthPrefixed
)

// streamVariants is the order concrete formats are tried at a given offset.
var streamVariants = [...]Variant{VariantZlib, VariantLZO1Z}

var (
	ErrUndecodable    = errors.New("codec: no offset/variant decompresses input")
	ErrOutputOverrun  = errors.New("codec: output exceeds capacity")
	ErrEmptyOutput    = errors.New("codec: stream decompressed to zero bytes")
	ErrUnknownVariant = errors.New("codec: unknown variant")
	ErrCorruptStream  = errors.New("codec: corrupt stream")
	ErrTrailingData   = errors.New("codec: stream ends before the end of input")
)

func (v Variant) String() string {
	switch v {
	case VariantZlib:
		return "zlib"
	case VariantLZO1Z:
		return "lzo1z"
	case VariantLengthPrefixed:
		return "length-prefixed"
	default:
		return "unknown"
	}
}

// ParseVariant parses the names produced by Variant.String.
func ParseVariant(s string) (Variant, error) {
	switch s {
	case "zlib":
		return VariantZlib, nil
	case "lzo1z", "lzo":
		return VariantLZO1Z, nil
	default:
		return VariantUnknown, fmt.Errorf("%w: %q", ErrUnknownVariant, s)
	}
}

// IsMarker reports whether b starts with a zlib stream header.
func IsMarker(b []byte) bool {
	if len(b) < 2 || b[0] != 0x78 {
		return false
	}
	switch b[1] {
	case 0x01, 0x5E, 0x9C, 0xDA:
		return true
	}
	return false
}

// MarkerPositions returns every offset in b where a zlib stream header starts.
func MarkerPositions(b []byte) []int {
	var out []int
	for i := 0; i+1 < len(b); i++ {
		if IsMarker(b[i:]) {
			out = append(out, i)
		}
	}
	return out
}

// Compress encodes p with the given stream variant.
func Compress(v Variant, p []byte) ([]byte, error) {
	switch v {
	case VariantZlib:
		var buf bytes.Buffer
		w := zlib.NewWriter(&buf)
		if _, err := w.Write(p); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case VariantLZO1Z:
		return encodeLZO1Z(p), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownVariant, v)
	}
}

// inflate appends the decompressed form of the stream at the start of src
// to dst and reports how many input bytes the stream used. On failure dst
// is returned unchanged.
func inflate(v Variant, dst, src []byte, max int) (out []byte, used int, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, used, err = dst, 0, fmt.Errorf("%w: %s: %v", ErrCorruptStream, v, r)
		}
	}()

	switch v {
	case VariantZlib:
		return inflateZlib(dst, src, max)
	case VariantLZO1Z:
		return decodeLZO1Z(dst, src, max)
	default:
		return dst, 0, fmt.Errorf("%w: %s", ErrUnknownVariant, v)
	}
}

// inflateZlib relies on the flate reader taking bytes one at a time from
// an io.ByteReader, so whatever is left in br follows the stream.
func inflateZlib(dst, src []byte, max int) ([]byte, int, error) {
	br := bytes.NewReader(src)
	r, err := zlib.NewReader(br)
	if err != nil {
		return dst, 0, err
	}
	defer r.Close()

	start := len(dst)
	for {
		if len(dst) == cap(dst) {
			dst = append(dst, 0)[:len(dst)]
		}
		room := cap(dst) - len(dst)
		if limit := start + max + 1 - len(dst); room > limit {
			room = limit
		}
		n, err := r.Read(dst[len(dst) : len(dst)+room])
		dst = dst[:len(dst)+n]
		if len(dst)-start > max {
			return dst[:start], 0, ErrOutputOverrun
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return dst[:start], 0, err
		}
	}
	if len(dst) == start {
		return dst, 0, ErrEmptyOutput
	}
	return dst, len(src) - br.Len(), nil
}
