package parser

import (
	"encoding/binary"

	"github.com/ssargent/hermesportal/pkg/codec"
	"github.com/ssargent/hermesportal/pkg/market"
)

const (
	cmBatchHeader = 5

	// A record is {code u16, len u16, seq u32} + payload + {checksum u16,
	// end u8}; len covers all of it.
	cmRecordHeader  = 8
	cmRecordTrailer = 3
	cmRecordMin     = cmRecordHeader + cmRecordTrailer
	cmEndMarker     = 0x03

	cmProbeWindow = 256
	cmMaxAccum    = 1 << 20
)

// uncompressed reports whether the batch flag marks a raw payload.
func uncompressed(flag byte) bool {
	return flag == 0 || flag == 'N' || flag == 'n'
}

func (p *Parser) parseCM(pkt []byte) int {
	if len(pkt) < cmBatchHeader {
		p.fail(StageFrame, "packet shorter than CM batch header", pkt)
		return 0
	}
	flag := pkt[0]
	size := int(binary.BigEndian.Uint16(pkt[1:]))
	count := int(binary.BigEndian.Uint16(pkt[3:]))

	payload := pkt[cmBatchHeader:]
	if size > 0 && size < len(payload) {
		payload = payload[:size]
	}

	if uncompressed(flag) {
		return p.parseRecords(payload, count)
	}

	buf := p.inflateCM(payload)
	if len(buf) == 0 {
		p.fail(StageDecompress, codec.ErrUndecodable.Error(), payload)
		return 0
	}
	return p.parseRecords(buf, count)
}

// inflateCM decompresses every chunk found in payload into the accumulator.
// Chunks are concatenated and parsed as one buffer; a record split across
// two chunks is not reassembled.
func (p *Parser) inflateCM(payload []byte) []byte {
	acc := p.acc[:0]
	defer func() { p.acc = acc[:0] }()

	markers := codec.MarkerPositions(payload)
	for _, m := range markers {
		if len(acc) >= cmMaxAccum {
			break
		}
		for _, off := range [...]int{m, m - 1, m + 1} {
			if off < 0 || off >= len(payload) {
				continue
			}
			if out, err := p.codec.DecompressStream(acc, payload[off:]); err == nil {
				acc = out
				break
			}
		}
	}

	if len(markers) == 0 {
		last := min(cmProbeWindow, len(payload)-3)
		for off := 0; off <= last && len(acc) < cmMaxAccum; off++ {
			if out, err := p.codec.DecompressStream(acc, payload[off:]); err == nil {
				acc = out
			}
		}
	}

	if len(acc) == 0 {
		if out, err := p.codec.Decompress(acc, payload); err == nil {
			acc = out
		}
	}
	return acc
}

// parseRecords walks self-describing CM records. count 0 means no limit.
func (p *Parser) parseRecords(buf []byte, count int) int {
	emitted := 0
	pos := 0
	// A zero count is read as undeclared rather than empty, matching the
	// zero size rule in the batch header; the record bounds still end the
	// walk.
	for i := 0; count == 0 || i < count; i++ {
		if pos+cmRecordMin > len(buf) {
			break
		}
		code := binary.BigEndian.Uint16(buf[pos:])
		size := int(binary.BigEndian.Uint16(buf[pos+2:]))
		if size < cmRecordMin || pos+size > len(buf) {
			p.fail(StageRecord, "record length out of bounds", buf[pos:])
			break
		}
		rec := buf[pos : pos+size]
		pos += size

		seq := binary.BigEndian.Uint32(rec[4:])
		body := rec[:size-cmRecordTrailer]
		want := binary.BigEndian.Uint16(rec[size-cmRecordTrailer:])
		end := rec[size-1]
		if got := checksum(body); got != want || end != cmEndMarker {
			p.checksumMismatch(code, want, got, end)
		}

		dec, ok := p.registry.Lookup(code)
		if !ok {
			p.unknownCode(code)
			continue
		}
		emitted += p.dispatch(dec, market.MessageView{
			Data: body[cmRecordHeader:],
			Code: code,
			Seq:  seq,
		})
	}
	return emitted
}

// checksum is the wrapping 16-bit sum of b.
func checksum(b []byte) uint16 {
	var sum uint16
	for _, c := range b {
		sum += uint16(c)
	}
	return sum
}
