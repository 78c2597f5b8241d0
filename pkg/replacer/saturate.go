package replacer

import "math"

// Saturate softly clamps x into the open interval (lo, hi).
//
// The midpoint maps to itself and values approach lo and hi asymptotically.
// When lo == hi the constraint is disabled and x is returned unchanged. A
// reversed interval (lo > hi) yields the same curve as (hi, lo) because the
// negative half range cancels inside and outside tanh.
func Saturate(x, lo, hi float64) float64 {
	if lo == hi {
		return x
	}
	s := (hi - lo) / 2
	m := (hi + lo) / 2
	return m + s*math.Tanh((x-m)/s)
}

// FastTanh is a rational approximation of tanh, within 3% for -4 < x < 4.
// It overshoots ±1 slightly outside that range.
func FastTanh(x float64) float64 {
	x2 := x * x
	return x * (27 + x2) / (27 + 9*x2)
}
