package market

import (
	"errors"
	"fmt"
	"sort"
)

// Decoder turns one record into zero or more emitted lines.
type Decoder interface {
	// Codes lists the message codes the decoder handles.
	Codes() []uint16
	// Stride is the fixed FO record size, or 0 for self-describing CM
	// records.
	Stride() int
	// Decode checks the record token against f and emits to sink. It
	// returns the number of lines emitted.
	Decode(view MessageView, f Filter, sink Sink) int
}

var (
	ErrRegistryFrozen = errors.New("market: registry is frozen")
	ErrDuplicateCode  = errors.New("market: code already registered")
)

// Registry maps message codes to decoders.
type Registry struct {
	decoders map[uint16]Decoder
	frozen   bool
}

func NewRegistry() *Registry {
	return &Registry{decoders: make(map[uint16]Decoder)}
}

// Register adds d under every code it reports.
func (r *Registry) Register(d Decoder) error {
	if r.frozen {
		return ErrRegistryFrozen
	}
	for _, code := range d.Codes() {
		if _, ok := r.decoders[code]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateCode, CodeString(code))
		}
	}
	for _, code := range d.Codes() {
		r.decoders[code] = d
	}
	return nil
}

// Freeze makes the registry read-only.
func (r *Registry) Freeze() {
	r.frozen = true
}

func (r *Registry) Lookup(code uint16) (Decoder, bool) {
	d, ok := r.decoders[code]
	return d, ok
}

// Has reports whether code is registered.
func (r *Registry) Has(code uint16) bool {
	_, ok := r.decoders[code]
	return ok
}

// Codes returns the registered codes in ascending order.
func (r *Registry) Codes() []uint16 {
	out := make([]uint16, 0, len(r.decoders))
	for code := range r.decoders {
		out = append(out, code)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Selection chooses which FO codes are enabled.
type Selection struct {
	Enabled []uint16 // empty = 7202 and 7208
	All     bool     // every known code
}

func (s Selection) wants(code uint16) bool {
	if s.All {
		return true
	}
	if len(s.Enabled) == 0 {
		return code == CodeOpenInterest || code == CodeOrderBook
	}
	for _, c := range s.Enabled {
		if c == code {
			return true
		}
	}
	return false
}

// BuildRegistry registers the decoders for feed and freezes the registry.
// CM feeds always carry their touchline, depth and open-interest decoders.
func BuildRegistry(feed Feed, sel Selection) (*Registry, error) {
	r := NewRegistry()
	var decoders []Decoder
	if sel.wants(CodeOpenInterest) {
		decoders = append(decoders, OpenInterest{})
	}
	if sel.wants(CodeOrderBook) {
		decoders = append(decoders, OrderBook{})
	}
	if feed == FeedCM {
		decoders = append(decoders, Touchline{}, Depth{}, CMOpenInterest{})
	}
	for _, d := range decoders {
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	r.Freeze()
	return r, nil
}
