package market

import (
	"fmt"
	"io"
	"strings"
)

// Schema returns the column list of lines emitted for code.
func Schema(code uint16) string {
	switch code {
	case CodeOpenInterest:
		return "Token,Type,MarketType,OI"
	case CodeOrderBook:
		cols := []string{"Token", "Type", "LTP", "ATP", "BDP", "BDQ", "ASP", "ASQ", "BQ", "SQ", "Time"}
		for _, side := range []string{"B", "A"} {
			for i := 1; i <= obDepth; i++ {
				cols = append(cols, fmt.Sprintf("%s%dP", side, i), fmt.Sprintf("%s%dQ", side, i))
			}
		}
		return strings.Join(cols, ",")
	case CodeTouchline:
		return "Token,Type,LTP,LTQ,Volume,BidP,BidQ,AskP,AskQ,Seq"
	case CodeDepth:
		return "Token,Type,LTP,Levels,B1P,B1Q,A1P,A1Q,..."
	case CodeCMOpenInt:
		return "Token,Type,MarketType,OI"
	default:
		return ""
	}
}

// PrintSchemas writes one "[SCHEMA]" line per registered code.
func PrintSchemas(w io.Writer, r *Registry) error {
	for _, code := range r.Codes() {
		if _, err := fmt.Fprintf(w, "[SCHEMA] %s: %s\n", CodeString(code), Schema(code)); err != nil {
			return err
		}
	}
	return nil
}
