//go:build fuzz
// +build fuzz

package codec

import (
	"bytes"
	"testing"
)

// FuzzCodec_Decompress feeds arbitrary chunks through discovery. It must
// never panic and never exceed the output cap.
func FuzzCodec_Decompress(f *testing.F) {
	zl, _ := Compress(VariantZlib, []byte("token,7208,100.50"))
	lz, _ := Compress(VariantLZO1Z, []byte("token,7202,1,42"))

	f.Add([]byte{})
	f.Add(zl)
	f.Add(lz)
	f.Add(append([]byte{0x00, 0x10}, zl...))
	f.Add(bytes.Repeat([]byte{0x78, 0x9C}, 64))

	f.Fuzz(func(t *testing.T, in []byte) {
		c := New(Config{MaxOutput: 4096})
		out, err := c.Decompress(nil, in)
		if err != nil && len(out) != 0 {
			t.Fatalf("failed call appended %d bytes", len(out))
		}
		if len(out) > 4096 {
			t.Fatalf("output %d exceeds cap", len(out))
		}
	})
}

// FuzzCodec_RoundTrip checks both variants reproduce their input.
func FuzzCodec_RoundTrip(f *testing.F) {
	f.Add([]byte("a"))
	f.Add(bytes.Repeat([]byte("ltp,atp,"), 100))

	f.Fuzz(func(t *testing.T, payload []byte) {
		if len(payload) == 0 || len(payload) > DefaultMaxOutput {
			t.Skip("outside codec range")
		}
		for _, v := range streamVariants {
			stream, err := Compress(v, payload)
			if err != nil {
				t.Fatalf("compress %s: %v", v, err)
			}
			out, err := New(Config{}).Decompress(nil, stream)
			if err != nil {
				t.Fatalf("decompress %s: %v", v, err)
			}
			if !bytes.Equal(out, payload) {
				t.Fatalf("%s round trip mismatch", v)
			}
		}
	})
}
