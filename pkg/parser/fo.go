package parser

import (
	"encoding/binary"

	"github.com/ssargent/hermesportal/pkg/market"
)

const (
	foPacketHeader = 4
	foCodeOffset   = 10
	foMinHeader    = 20
	foCountOffset  = 40
	foRecordsStart = 42
)

// foHeaderBases are the candidate header starts; some gateways prepend an
// 8-byte preamble.
var foHeaderBases = [...]int{0, 8}

func (p *Parser) parseFO(pkt []byte) int {
	if len(pkt) < foPacketHeader {
		p.short.Add(1)
		return 0
	}

	count := int(binary.BigEndian.Uint16(pkt[2:]))
	off := foPacketHeader
	emitted := 0
	for i := 0; i < count; i++ {
		if off+2 > len(pkt) {
			break
		}
		size := int(binary.BigEndian.Uint16(pkt[off:]))
		off += 2
		if size == 0 || off+size > len(pkt) {
			off += size
			continue
		}
		chunk := pkt[off : off+size]
		off += size

		out, err := p.codec.Decompress(p.scratch[:0], chunk)
		if err != nil {
			p.fail(StageDecompress, err.Error(), chunk)
			continue
		}
		p.scratch = out[:0]
		emitted += p.dispatchFO(out)
	}
	return emitted
}

// dispatchFO locates the header in one decompressed sub-message and walks
// its record array.
func (p *Parser) dispatchFO(buf []byte) int {
	base := -1
	var code uint16
	for _, b := range foHeaderBases {
		if len(buf) < b+foMinHeader {
			continue
		}
		c := binary.BigEndian.Uint16(buf[b+foCodeOffset:])
		if p.registry.Has(c) {
			base, code = b, c
			break
		}
	}
	if base < 0 {
		if len(buf) >= foMinHeader {
			p.unknownCode(binary.BigEndian.Uint16(buf[foCodeOffset:]))
		}
		return 0
	}

	dec, _ := p.registry.Lookup(code)
	stride := dec.Stride()
	if stride <= 0 || len(buf) < base+foRecordsStart {
		return 0
	}

	n := int(binary.BigEndian.Uint16(buf[base+foCountOffset:]))
	emitted := 0
	for i := 0; i < n; i++ {
		rec := base + foRecordsStart + i*stride
		if rec+stride > len(buf) {
			break
		}
		emitted += p.dispatch(dec, market.MessageView{Data: buf[rec : rec+stride], Code: code})
	}
	return emitted
}
