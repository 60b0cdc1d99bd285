package codec

import "fmt"

// LZO1Z distance limits.
const (
	lzoM2MaxOffset = 0x0700
	lzoM3MaxOffset = 0x4000
	lzoM4Base      = 0x4000

	lzoHashBits = 14
	lzoMinMatch = 3
)

var (
	errLZOInput      = fmt.Errorf("%w: lzo1z: input overrun", ErrCorruptStream)
	errLZOLookbehind = fmt.Errorf("%w: lzo1z: lookbehind overrun", ErrCorruptStream)
)

// lzoEOF is the M4 instruction with a zero distance that ends every stream.
var lzoEOF = [...]byte{0x11, 0x00, 0x00}

type lzoState uint8

const (
	lzoOpcode   lzoState = iota // literal run or match
	lzoAfterRun                 // after a literal run of 4 or more
	lzoMatch                    // t holds a match opcode
	lzoTrailing                 // t holds 1-3 trailing literals
)

type lzoDecoder struct {
	src     []byte
	ip      int
	out     []byte
	base    int
	limit   int
	lastOff int
}

// decodeLZO1Z appends the LZO1Z stream at the start of src to dst and
// returns the number of input bytes up to and including the end-of-stream
// instruction. An instruction that would take the output past max fails
// before anything is copied.
func decodeLZO1Z(dst, src []byte, max int) ([]byte, int, error) {
	d := lzoDecoder{src: src, out: dst, base: len(dst), limit: len(dst) + max}
	if err := d.run(); err != nil {
		return dst, 0, err
	}
	if len(d.out) == d.base {
		return dst, 0, ErrEmptyOutput
	}
	return d.out, d.ip, nil
}

func (d *lzoDecoder) run() error {
	var (
		t   int
		err error
	)
	state := lzoOpcode

	if len(d.src) > 0 && d.src[0] > 17 {
		d.ip = 1
		t = int(d.src[0]) - 17
		if t < 4 {
			state = lzoTrailing
		} else {
			if err := d.literals(t); err != nil {
				return err
			}
			state = lzoAfterRun
		}
	}

	for {
		switch state {
		case lzoOpcode:
			if t, err = d.next(); err != nil {
				return err
			}
			if t >= 16 {
				state = lzoMatch
				continue
			}
			if t == 0 {
				if t, err = d.extend(15); err != nil {
					return err
				}
			}
			if err := d.literals(t + 3); err != nil {
				return err
			}
			state = lzoAfterRun

		case lzoAfterRun:
			if t, err = d.next(); err != nil {
				return err
			}
			if t >= 16 {
				state = lzoMatch
				continue
			}
			b, err := d.next()
			if err != nil {
				return err
			}
			off := 1 + lzoM2MaxOffset + t<<6 + b>>2
			d.lastOff = off
			if err := d.copy(off, 3); err != nil {
				return err
			}
			state, t = d.matchDone()

		case lzoMatch:
			eof, err := d.match(t)
			if err != nil || eof {
				return err
			}
			state, t = d.matchDone()

		case lzoTrailing:
			if err := d.literals(t); err != nil {
				return err
			}
			if t, err = d.next(); err != nil {
				return err
			}
			state = lzoMatch
		}
	}
}

// match executes one match instruction. M1 (t < 16) is only reachable
// after trailing literals.
func (d *lzoDecoder) match(t int) (eof bool, err error) {
	var off, n int
	switch {
	case t >= 64: // M2
		if low := t & 0x1f; low >= 0x1c {
			if d.lastOff == 0 {
				return false, errLZOLookbehind
			}
			off = d.lastOff
		} else {
			b, err := d.next()
			if err != nil {
				return false, err
			}
			off = 1 + low<<6 + b>>2
			d.lastOff = off
		}
		n = t>>5 + 1

	case t >= 32: // M3
		if n = t & 31; n == 0 {
			if n, err = d.extend(31); err != nil {
				return false, err
			}
		}
		b0, b1, err := d.pair()
		if err != nil {
			return false, err
		}
		off = 1 + b0<<6 + b1>>2
		d.lastOff = off
		n += 2

	case t >= 16: // M4
		hi := (t & 8) << 11
		if n = t & 7; n == 0 {
			if n, err = d.extend(7); err != nil {
				return false, err
			}
		}
		b0, b1, err := d.pair()
		if err != nil {
			return false, err
		}
		off = hi + b0<<6 + b1>>2
		if off == 0 {
			return true, nil
		}
		off += lzoM4Base
		d.lastOff = off
		n += 2

	default: // M1
		b, err := d.next()
		if err != nil {
			return false, err
		}
		off = 1 + t<<6 + b>>2
		d.lastOff = off
		n = 2
	}
	return false, d.copy(off, n)
}

// matchDone reads the trailing literal count from the low bits of the last
// instruction byte.
func (d *lzoDecoder) matchDone() (lzoState, int) {
	t := int(d.src[d.ip-1]) & 3
	if t == 0 {
		return lzoOpcode, 0
	}
	return lzoTrailing, t
}

func (d *lzoDecoder) next() (int, error) {
	if d.ip >= len(d.src) {
		return 0, errLZOInput
	}
	b := d.src[d.ip]
	d.ip++
	return int(b), nil
}

func (d *lzoDecoder) pair() (int, int, error) {
	if d.ip+2 > len(d.src) {
		return 0, 0, errLZOInput
	}
	b0, b1 := d.src[d.ip], d.src[d.ip+1]
	d.ip += 2
	return int(b0), int(b1), nil
}

// extend reads a run-length extension: each zero byte adds 255 and the
// first non-zero byte ends the run.
func (d *lzoDecoder) extend(bias int) (int, error) {
	t := 0
	for {
		b, err := d.next()
		if err != nil {
			return 0, err
		}
		if b != 0 {
			return t + bias + b, nil
		}
		t += 255
		if t > d.limit-d.base {
			return 0, ErrOutputOverrun
		}
	}
}

func (d *lzoDecoder) literals(n int) error {
	if d.ip+n > len(d.src) {
		return errLZOInput
	}
	if len(d.out)+n > d.limit {
		return ErrOutputOverrun
	}
	d.out = append(d.out, d.src[d.ip:d.ip+n]...)
	d.ip += n
	return nil
}

func (d *lzoDecoder) copy(off, n int) error {
	pos := len(d.out) - off
	if off <= 0 || pos < d.base {
		return errLZOLookbehind
	}
	if len(d.out)+n > d.limit {
		return ErrOutputOverrun
	}
	if off >= n {
		d.out = append(d.out, d.out[pos:pos+n]...)
		return nil
	}
	for i := 0; i < n; i++ {
		d.out = append(d.out, d.out[pos+i])
	}
	return nil
}

// encodeLZO1Z compresses p as an LZO1Z stream. It emits literal runs and
// M3 matches within a 16 KiB window, which every LZO1Z decoder accepts.
func encodeLZO1Z(p []byte) []byte {
	out := make([]byte, 0, len(p)+len(p)/16+64+len(lzoEOF))
	var table [1 << lzoHashBits]int32 // position + 1

	lit, last := 0, -1
	for i := 0; i+lzoMinMatch <= len(p); {
		h := lzoHash(p[i:])
		cand := int(table[h]) - 1
		table[h] = int32(i + 1)
		if cand < 0 || i-cand > lzoM3MaxOffset ||
			p[cand] != p[i] || p[cand+1] != p[i+1] || p[cand+2] != p[i+2] {
			i++
			continue
		}

		n := lzoMinMatch
		for i+n < len(p) && p[cand+n] == p[i+n] {
			n++
		}
		out = appendLZOLiterals(out, p[lit:i], last)
		out = appendLZOMatch(out, i-cand, n)
		last = len(out) - 1
		i += n
		lit = i
	}
	out = appendLZOLiterals(out, p[lit:], last)
	return append(out, lzoEOF[:]...)
}

func lzoHash(b []byte) uint32 {
	v := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
	return (v * 2654435761) >> (32 - lzoHashBits)
}

// appendLZOLiterals encodes a literal run. Runs of 1-3 after a match live in
// the low bits of the match's last byte at index last.
func appendLZOLiterals(out, lits []byte, last int) []byte {
	t := len(lits)
	switch {
	case t == 0:
		return out
	case len(out) == 0 && t <= 238:
		out = append(out, byte(17+t))
	case t <= 3:
		out[last] |= byte(t)
	case t <= 18:
		out = append(out, byte(t-3))
	default:
		out = append(out, 0)
		t -= 18
		for ; t > 255; t -= 255 {
			out = append(out, 0)
		}
		out = append(out, byte(t))
	}
	return append(out, lits...)
}

// appendLZOMatch encodes an M3 match; dist must not exceed lzoM3MaxOffset.
func appendLZOMatch(out []byte, dist, n int) []byte {
	t := n - 2
	if t <= 31 {
		out = append(out, byte(32|t))
	} else {
		out = append(out, 32)
		t -= 31
		for ; t > 255; t -= 255 {
			out = append(out, 0)
		}
		out = append(out, byte(t))
	}
	dist--
	return append(out, byte(dist>>6), byte(dist&0x3f)<<2)
}
