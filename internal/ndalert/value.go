package ndalert

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseValue parses a dataref value in decimal or 0x-prefixed hex.
// Negative decimal values are taken as the two's complement of a 32-bit
// int, which is how the simulator exposes the dataref.
func ParseValue(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "-") {
		v, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("parse value %q: %w", s, err)
		}
		return uint32(int32(v)), nil
	}
	var v uint64
	var err error
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err = strconv.ParseUint(s[2:], 16, 32)
	} else {
		v, err = strconv.ParseUint(s, 10, 32)
	}
	if err != nil {
		return 0, fmt.Errorf("parse value %q: %w", s, err)
	}
	return uint32(v), nil
}

// FormatValue renders a bus value the way the sample table does.
func FormatValue(v uint32) string {
	return fmt.Sprintf("0x%08x", v)
}
