//go:build rp2040 || rp2350

package strconvx

// Decimal-only stand-ins for the strconv calls the record codec makes. The
// base argument is ignored and always treated as 10.

func FormatUint(u uint64, _ int) string { return formatDecimal(u) }

func ParseUint(s string, _ int, bitSize int) (uint64, error) { return parseDecimal(s, bitSize) }

// FormatFloat only does fixed notation.
func FormatFloat(f float64, _ byte, prec, _ int) string { return formatFixed(f, prec) }

func ParseFloat(s string, _ int) (float64, error) { return parseFixed(s) }
