package profile

import (
	"math"

	"github.com/shopspring/decimal"
)

const (
	MinCapacity = 0.0
	MaxCapacity = 100.0
)

// Round rounds v half away from zero to the given decimal places.
func Round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// NextCapacity adds delta to the current capacity value, clamped to [0,100].
func NextCapacity(current, delta float64) float64 {
	return Clamp(current+delta, MinCapacity, MaxCapacity)
}
