package strconvx

import (
	"strconv"
	"testing"
)

func TestFormatDecimalMatchesStrconv(t *testing.T) {
	for _, u := range []uint64{0, 7, 10, 4294967295, 1<<64 - 1} {
		if got, want := formatDecimal(u), strconv.FormatUint(u, 10); got != want {
			t.Fatalf("formatDecimal(%d) = %q, want %q", u, got, want)
		}
	}
}

func TestParseDecimal(t *testing.T) {
	got, err := parseDecimal("4294967295", 32)
	if err != nil || got != 4294967295 {
		t.Fatalf("parseDecimal max uint32 = %d, %v", got, err)
	}
	if got, err := parseDecimal("18446744073709551615", 64); err != nil || got != 1<<64-1 {
		t.Fatalf("parseDecimal max uint64 = %d, %v", got, err)
	}
	for _, s := range []string{"", "-1", "+1", "12a", " 1"} {
		if _, err := parseDecimal(s, 32); err != errSyntax {
			t.Fatalf("parseDecimal(%q) err = %v, want syntax", s, err)
		}
	}
	for _, s := range []string{"4294967296", "99999999999"} {
		if _, err := parseDecimal(s, 32); err != errRange {
			t.Fatalf("parseDecimal(%q) err = %v, want range", s, err)
		}
	}
}

// Every value a DS18B20 can report formats and parses exactly like strconv.
func TestFixedMatchesStrconvOverSensorRange(t *testing.T) {
	for raw := -55 * 16; raw <= 125*16; raw++ {
		c := float64(raw) / 16
		want := strconv.FormatFloat(c, 'f', -1, 64)
		got := formatFixed(c, -1)
		if got != want {
			t.Fatalf("formatFixed(%v) = %q, want %q", c, got, want)
		}
		back, err := parseFixed(got)
		if err != nil || back != c {
			t.Fatalf("parseFixed(%q) = %v, %v; want %v", got, back, err, c)
		}
	}
}

func TestFormatFixedPrecision(t *testing.T) {
	for _, c := range []struct {
		in   float64
		prec int
		want string
	}{
		{0, 0, "0"},
		{12.375, 2, "12.38"},
		{-1.25, 2, "-1.25"},
		{9.999, 2, "10.00"},
		{-0.00001, 2, "0.00"},
	} {
		if got := formatFixed(c.in, c.prec); got != c.want {
			t.Fatalf("formatFixed(%v,%d) = %q, want %q", c.in, c.prec, got, c.want)
		}
	}
}

func TestParseFixed(t *testing.T) {
	for in, want := range map[string]float64{
		"21.5": 21.5, "-3.25": -3.25, "+20": 20, "0.0625": 0.0625, ".5": 0.5, "7.": 7, "0.1": 0.1,
	} {
		got, err := parseFixed(in)
		if err != nil || got != want {
			t.Fatalf("parseFixed(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	for _, s := range []string{"", "-", ".", "12.3.4", "abc", "1e3", "12345678901234567890"} {
		if _, err := parseFixed(s); err == nil {
			t.Fatalf("parseFixed(%q) expected error", s)
		}
	}
}
