//go:build !(rp2040 || rp2350)

package strconvx

import "strconv"

// Host builds delegate to strconv.

func FormatUint(u uint64, base int) string { return strconv.FormatUint(u, base) }

func ParseUint(s string, base, bitSize int) (uint64, error) {
	return strconv.ParseUint(s, base, bitSize)
}

func FormatFloat(f float64, fmt byte, prec, bitSize int) string {
	return strconv.FormatFloat(f, fmt, prec, bitSize)
}

func ParseFloat(s string, bitSize int) (float64, error) { return strconv.ParseFloat(s, bitSize) }
