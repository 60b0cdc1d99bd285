package market

// OpenInterestSize is the wire size of one 7202 record and of a full CM
// OI record including its frame.
const OpenInterestSize = 26

// OpenInterest decodes FO 7202 open-interest ticker records.
type OpenInterest struct{}

func (OpenInterest) Codes() []uint16 { return []uint16{CodeOpenInterest} }
func (OpenInterest) Stride() int     { return OpenInterestSize }

func (OpenInterest) Decode(view MessageView, f Filter, sink Sink) int {
	d := view.Data
	if len(d) < OpenInterestSize {
		return 0
	}
	token := be32(d)
	if !f.Contains(token) {
		return 0
	}
	sink.Emit(newLine(token, CodeOpenInterest).
		uint(uint64(be16(d[4:]))).
		uint(uint64(be32(d[14:]))).
		String())
	return 1
}

const cmOpenInterestMin = 10

// CMOpenInterest decodes CM OI record payloads.
type CMOpenInterest struct{}

func (CMOpenInterest) Codes() []uint16 { return []uint16{CodeCMOpenInt} }
func (CMOpenInterest) Stride() int     { return 0 }

func (CMOpenInterest) Decode(view MessageView, f Filter, sink Sink) int {
	d := view.Data
	if len(d) < cmOpenInterestMin {
		return 0
	}
	token := be32(d)
	if !f.Contains(token) {
		return 0
	}
	sink.Emit(newLine(token, CodeCMOpenInt).
		uint(uint64(be16(d[4:]))).
		uint(uint64(be32(d[6:]))).
		String())
	return 1
}
