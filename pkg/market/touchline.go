package market

const (
	touchlineMin   = 32
	quoteBlockSize = 16
)

// quote is a {bidQty, bidPrice, askQty, askPrice} block.
type quote struct {
	bidQty, bidPrice, askQty, askPrice uint32
}

func readQuote(b []byte) quote {
	return quote{
		bidQty:   be32(b),
		bidPrice: be32(b[4:]),
		askQty:   be32(b[8:]),
		askPrice: be32(b[12:]),
	}
}

// plausible reports whether q looks like a real top of book: bid not above
// ask, or one side empty.
func (q quote) plausible() bool {
	if q.bidPrice == 0 || q.askPrice == 0 {
		return true
	}
	return q.bidPrice <= q.askPrice
}

// Touchline decodes CM CT best bid/offer records. The quote block sits
// right after the volume field on most layouts; some gateways place it at
// the end of the payload instead.
type Touchline struct{}

func (Touchline) Codes() []uint16 { return []uint16{CodeTouchline} }
func (Touchline) Stride() int     { return 0 }

func (Touchline) Decode(view MessageView, f Filter, sink Sink) int {
	d := view.Data
	if len(d) < touchlineMin {
		return 0
	}
	token := be32(d)
	if !f.Contains(token) {
		return 0
	}

	q := readQuote(d[16:])
	if !q.plausible() && len(d) > touchlineMin {
		if tail := readQuote(d[len(d)-quoteBlockSize:]); tail.plausible() {
			q = tail
		}
	}

	scale := FeedCM.PriceScale()
	sink.Emit(newLine(token, CodeTouchline).
		price(int64(be32(d[4:])), scale).
		uint(uint64(be32(d[8:]))).
		uint(uint64(be32(d[12:]))).
		price(int64(q.bidPrice), scale).uint(uint64(q.bidQty)).
		price(int64(q.askPrice), scale).uint(uint64(q.askQty)).
		uint(uint64(view.Seq)).
		String())
	return 1
}
