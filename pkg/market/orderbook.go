package market

const (
	// OrderBookSize is the wire size of one 7208 record.
	OrderBookSize = 214

	// FO times count seconds from 1980-01-01 local exchange time.
	foEpochOffset = 315513000

	obToken     = 0
	obLTP       = 12
	obTime      = 26
	obATP       = 30
	obLevels    = 44
	obLevelSize = 12
	obDepth     = 5
	obTotalBuy  = 180
	obTotalSell = 188
)

// OrderBook decodes FO 7208 five-level market-by-price records.
type OrderBook struct{}

func (OrderBook) Codes() []uint16 { return []uint16{CodeOrderBook} }
func (OrderBook) Stride() int     { return OrderBookSize }

func (OrderBook) Decode(view MessageView, f Filter, sink Sink) int {
	d := view.Data
	if len(d) < OrderBookSize {
		return 0
	}
	token := be32(d[obToken:])
	if !f.Contains(token) {
		return 0
	}

	const scale = 100
	var qty, price [2 * obDepth]int64
	for k := range qty {
		e := d[obLevels+k*obLevelSize:]
		qty[k] = int64(int32(be32(e)))
		price[k] = int64(int32(be32(e[4:])))
	}

	l := newLine(token, CodeOrderBook).
		price(int64(be32(d[obLTP:])), scale).
		price(int64(be32(d[obATP:])), scale).
		price(price[0], scale).int(qty[0]).
		price(price[obDepth], scale).int(qty[obDepth]).
		int(roundQuantity(beFloat64(d[obTotalBuy:]))).
		int(roundQuantity(beFloat64(d[obTotalSell:]))).
		uint(uint64(be32(d[obTime:])) + foEpochOffset)
	for k := range qty {
		l.price(price[k], scale).int(qty[k])
	}
	sink.Emit(l.String())
	return 1
}
