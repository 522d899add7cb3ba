package ot

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Fixed-point number handling. OpenType uses 16.16 values ("Fixed"),
// 2.14 values ("F2Dot14") and 16.16 values with a constrained integer
// part ("Version").

// FixedToFloat converts a fixed-point integer with the given number of
// fractional bits to a float64.
func FixedToFloat(value int32, precisionBits uint) float64 {
	return float64(value) / float64(int64(1)<<precisionBits)
}

// FloatToFixed converts a float64 to a fixed-point integer with the given
// number of fractional bits, rounding to nearest.
func FloatToFixed(value float64, precisionBits uint) int32 {
	return int32(math.Floor(value*float64(int64(1)<<precisionBits) + 0.5))
}

// EnsureVersionIsLong normalizes a table version to its 32-bit fixed form.
// Versions read from binary tables are already long (0x00010000); versions
// coming from a textual source may be short decimal forms like 1 or hex
// strings, which VersionFromString handles.
func EnsureVersionIsLong(value uint32) uint32 {
	if value < 0x10000 {
		return value << 16
	}
	return value
}

// VersionFromString parses a textual version value. Accepted forms are
// 0x-prefixed hex ("0x00010000"), plain integers ("1") and dotted decimal
// ("1.0"); all are normalized to the long 16.16 form.
func VersionFromString(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		n, err := strconv.ParseUint(s[2:], 16, 32)
		if err != nil {
			return 0, errFontFormat(fmt.Sprintf("illegal version value %q", s))
		}
		return uint32(n), nil
	}
	if strings.Contains(s, ".") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, errFontFormat(fmt.Sprintf("illegal version value %q", s))
		}
		return uint32(FloatToFixed(f, 16)), nil
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, errFontFormat(fmt.Sprintf("illegal version value %q", s))
	}
	return EnsureVersionIsLong(uint32(n)), nil
}
