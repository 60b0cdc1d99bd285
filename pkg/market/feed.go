package market

import (
	"fmt"
	"strings"
)

// Feed selects the exchange protocol family.
type Feed uint8

const (
	FeedFO Feed = iota
	FeedCM
)

func (f Feed) String() string {
	switch f {
	case FeedFO:
		return "fo"
	case FeedCM:
		return "cm"
	default:
		return fmt.Sprintf("feed(%d)", uint8(f))
	}
}

// ParseFeed accepts "fo" or "cm" in any case. An empty string selects FO.
func ParseFeed(s string) (Feed, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fo":
		return FeedFO, nil
	case "cm":
		return FeedCM, nil
	default:
		return 0, fmt.Errorf("unknown feed %q (use fo or cm)", s)
	}
}

// PriceScale is the fixed-point divisor used by the feed's price fields.
func (f Feed) PriceScale() int64 {
	if f == FeedCM {
		return 10000
	}
	return 100
}
