package raster

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"

	"skwrap/internal/mathutil"
)

// HeatColor maps t in [0, 1] onto a blue (still) to red (moved) hue ramp.
func HeatColor(t float64) colorful.Color {
	if t < 0 || math.IsNaN(t) {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	return colorful.Hsv(240*(1-t), 0.8, 0.95)
}

// Magnitudes returns |key[i] - basis[i]| per vertex.
func Magnitudes(basis, key []mathutil.Vec3) []float64 {
	out := make([]float64, len(key))
	for i := range key {
		out[i] = key[i].Sub(basis[i]).Len()
	}
	return out
}
