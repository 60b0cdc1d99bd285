package market

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// MessageView borrows exactly one record from a decode buffer. It is only
// valid for the duration of a Decode call.
type MessageView struct {
	Data []byte
	Code uint16
	Seq  uint32 // CM record sequence number; zero for FO
}

// Filter decides whether an instrument token is wanted.
type Filter interface {
	Contains(token uint32) bool
}

// Sink receives decoded lines. Emit must not block the caller for long and
// has no way to report failure.
type Sink interface {
	Emit(line string)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(line string)

func (f SinkFunc) Emit(line string) { f(line) }

// StrikeList is a set of accepted tokens. The empty list accepts all.
type StrikeList struct {
	tokens map[uint32]struct{}
}

// NewStrikeList builds a list from tokens.
func NewStrikeList(tokens ...uint32) StrikeList {
	s := StrikeList{tokens: make(map[uint32]struct{}, len(tokens))}
	for _, t := range tokens {
		s.tokens[t] = struct{}{}
	}
	return s
}

// ParseStrikeList reads a comma-separated token list. Items that are not
// valid tokens are skipped; an input that yields no token at all is an error
// unless it is empty.
func ParseStrikeList(csv string) (StrikeList, error) {
	var tokens []uint32
	for _, item := range strings.Split(csv, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		v, err := strconv.ParseUint(item, 10, 32)
		if err != nil {
			continue
		}
		tokens = append(tokens, uint32(v))
	}
	if len(tokens) == 0 && strings.TrimSpace(csv) != "" {
		return StrikeList{}, fmt.Errorf("no tokens parsed from %q", csv)
	}
	return NewStrikeList(tokens...), nil
}

func (s StrikeList) Contains(token uint32) bool {
	if len(s.tokens) == 0 {
		return true
	}
	_, ok := s.tokens[token]
	return ok
}

func (s StrikeList) Len() int {
	return len(s.tokens)
}

// Tokens returns the accepted tokens in ascending order.
func (s StrikeList) Tokens() []uint32 {
	out := make([]uint32, 0, len(s.tokens))
	for t := range s.tokens {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
