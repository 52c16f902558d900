package strconvx

// Decimal-only conversions backing the MCU build. They are untagged so host
// tests can check them against strconv.

type numError string

func (e numError) Error() string { return "strconvx: " + string(e) }

const (
	errSyntax numError = "invalid syntax"
	errRange  numError = "value out of range"
)

var pow10 = [...]uint64{1, 10, 100, 1000, 10000, 100000, 1000000, 10000000, 100000000}

func formatDecimal(u uint64) string {
	if u == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for u > 0 {
		i--
		buf[i] = byte('0' + u%10)
		u /= 10
	}
	return string(buf[i:])
}

func parseDecimal(s string, bitSize int) (uint64, error) {
	if len(s) == 0 {
		return 0, errSyntax
	}
	if bitSize <= 0 || bitSize > 64 {
		bitSize = 64
	}
	limit := ^uint64(0) >> uint(64-bitSize)
	var v uint64
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, errSyntax
		}
		d := uint64(c - '0')
		if v > (limit-d)/10 {
			return 0, errRange
		}
		v = v*10 + d
	}
	return v, nil
}

// formatFixed writes f with prec decimals. prec < 0 formats four decimals
// and trims trailing zeros, which is exact for DS18B20 steps (1/16 C).
// No NaN/Inf, no exponent.
func formatFixed(f float64, prec int) string {
	trim := prec < 0
	if trim {
		prec = 4
	}
	if prec >= len(pow10) {
		prec = len(pow10) - 1
	}
	neg := f < 0
	if neg {
		f = -f
	}
	pow := pow10[prec]
	// Round once on the scaled value so a carry reaches the integer part.
	scaled := uint64(f*float64(pow) + 0.5)
	if scaled == 0 {
		neg = false
	}
	out := formatDecimal(scaled / pow)
	if prec > 0 {
		frac := formatDecimal(scaled % pow)
		for len(frac) < prec {
			frac = "0" + frac
		}
		if trim {
			n := len(frac)
			for n > 0 && frac[n-1] == '0' {
				n--
			}
			frac = frac[:n]
		}
		if frac != "" {
			out += "." + frac
		}
	}
	if neg {
		return "-" + out
	}
	return out
}

// parseFixed reads [+-]digits[.digits]. The digits are gathered into one
// integer and divided once, so short decimals land on the nearest float64
// like strconv does.
func parseFixed(s string) (float64, error) {
	neg := false
	if len(s) > 0 && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}
	var mant uint64
	digits, fracDigits := 0, 0
	seenDot := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '.' && !seenDot:
			seenDot = true
		case c >= '0' && c <= '9':
			if digits == 19 {
				return 0, errRange
			}
			mant = mant*10 + uint64(c-'0')
			digits++
			if seenDot {
				fracDigits++
			}
		default:
			return 0, errSyntax
		}
	}
	if digits == 0 {
		return 0, errSyntax
	}
	v := float64(mant)
	for fracDigits > 0 {
		n := fracDigits
		if n >= len(pow10) {
			n = len(pow10) - 1
		}
		v /= float64(pow10[n])
		fracDigits -= n
	}
	if neg {
		v = -v
	}
	return v, nil
}
