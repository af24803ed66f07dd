package models

import "math"

// ToCents converts a currency amount to integer cents, rounding half away
// from zero.
func ToCents(v float64) int64 {
	return int64(math.Round(v * 100))
}

func FromCents(c int64) float64 {
	return float64(c) / 100
}
