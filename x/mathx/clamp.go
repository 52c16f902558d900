// Package mathx holds small generic numeric helpers.
package mathx

import "golang.org/x/exp/constraints"

// Clamp limits v to [lo, hi].
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	return Max(lo, min(v, hi))
}

// Between reports lo <= v <= hi. NaN is never between.
func Between[T constraints.Ordered](v, lo, hi T) bool {
	return v >= lo && v <= hi
}

func Max[T constraints.Ordered](a, b T) T {
	if a > b {
		return a
	}
	return b
}
