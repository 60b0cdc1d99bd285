package market

import (
	"fmt"
	"strconv"
	"strings"
)

// PackCode forms the big-endian code used by CM two-character message types.
func PackCode(a, b byte) uint16 {
	return uint16(a)<<8 | uint16(b)
}

const (
	CodeOrderBook    uint16 = 7208
	CodeOpenInterest uint16 = 7202
	CodeTouchline    uint16 = 'C'<<8 | 'T'
	CodeDepth        uint16 = 'P'<<8 | 'N'
	CodeCMOpenInt    uint16 = 'O'<<8 | 'I'
)

// CodeString renders a code as two letters when both bytes are uppercase
// ASCII, otherwise as a decimal number.
func CodeString(code uint16) string {
	hi, lo := byte(code>>8), byte(code)
	if isUpper(hi) && isUpper(lo) {
		return string([]byte{hi, lo})
	}
	return strconv.Itoa(int(code))
}

// ParseCode is the inverse of CodeString.
func ParseCode(s string) (uint16, error) {
	s = strings.TrimSpace(s)
	if len(s) == 2 && isUpper(s[0]) && isUpper(s[1]) {
		return PackCode(s[0], s[1]), nil
	}
	v, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid message code %q", s)
	}
	return uint16(v), nil
}

func isUpper(b byte) bool {
	return b >= 'A' && b <= 'Z'
}
