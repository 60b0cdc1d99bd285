package market

const (
	depthHeader    = 10
	maxDepthLevels = 20
)

// Depth decodes CM PN market-depth records.
type Depth struct{}

func (Depth) Codes() []uint16 { return []uint16{CodeDepth} }
func (Depth) Stride() int     { return 0 }

func (Depth) Decode(view MessageView, f Filter, sink Sink) int {
	d := view.Data
	if len(d) < depthHeader {
		return 0
	}
	token := be32(d)
	if !f.Contains(token) {
		return 0
	}

	n := int(be16(d[8:]))
	n = min(n, maxDepthLevels, (len(d)-depthHeader)/quoteBlockSize)

	scale := FeedCM.PriceScale()
	l := newLine(token, CodeDepth).
		price(int64(be32(d[4:])), scale).
		int(int64(n))
	for i := 0; i < n; i++ {
		q := readQuote(d[depthHeader+i*quoteBlockSize:])
		l.price(int64(q.bidPrice), scale).uint(uint64(q.bidQty)).
			price(int64(q.askPrice), scale).uint(uint64(q.askQty))
	}
	sink.Emit(l.String())
	return 1
}
