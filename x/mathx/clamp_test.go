package mathx

import (
	"math"
	"testing"
	"time"
)

func TestClamp(t *testing.T) {
	if got := Clamp(150.0, -55, 125); got != 125 {
		t.Fatalf("Clamp high = %v", got)
	}
	if got := Clamp(-60.0, -55, 125); got != -55 {
		t.Fatalf("Clamp low = %v", got)
	}
	if got := Clamp(-5*time.Second, 0, time.Minute); got != 0 {
		t.Fatalf("Clamp duration = %v", got)
	}
}

func TestBetween(t *testing.T) {
	cases := []struct {
		v    float64
		want bool
	}{
		{-55, true},
		{125, true},
		{21.5, true},
		{125.5, false},
		{math.NaN(), false},
		{math.Inf(-1), false},
	}
	for _, c := range cases {
		if got := Between(c.v, -55, 125); got != c.want {
			t.Errorf("Between(%v) = %v, want %v", c.v, got, c.want)
		}
	}
}
