package jpegr

import (
	"math"

	"golang.org/x/exp/constraints"
)

func log2f(v float32) float32 { return float32(math.Log2(float64(v))) }
func exp2f(v float32) float32 { return float32(math.Exp2(float64(v))) }

func clamp[T constraints.Integer | constraints.Float](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clamp01(v float32) float32 {
	return clamp(v, 0, 1)
}

func ceilDiv[T constraints.Integer](a, b T) T {
	return (a + b - 1) / b
}

func alignUp[T constraints.Integer](v, align T) T {
	return ceilDiv(v, align) * align
}

// quantize maps [0,1] to [0,maxV] with rounding.
func quantize(v float32, maxV float32) uint32 {
	return uint32(clamp01(v)*maxV + 0.5)
}
