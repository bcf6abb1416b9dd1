package raster

import (
	"math"

	"skwrap/internal/mathutil"
)

// LightConfig holds the preview lighting. Lambert terms use |n·l| so back
// faces are lit the same as front faces.
type LightConfig struct {
	LightDir mathutil.Vec3
	RimDir   mathutil.Vec3
	Ambient  float64
	Direct   float64
	Rim      float64
	Exposure float64
	InvGamma float64
}

// DefaultLightConfig returns a key light from the upper right and a weak
// rim light from behind.
func DefaultLightConfig() LightConfig {
	return LightConfig{
		LightDir: mathutil.Vec3{0.45, 0.65, 0.6}.Normalize(),
		RimDir:   mathutil.Vec3{-0.5, 0.4, -0.75}.Normalize(),
		Ambient:  0.35,
		Direct:   0.85,
		Rim:      0.25,
		Exposure: 1.1,
		InvGamma: 1.0 / 2.2,
	}
}

// Shade returns the lighting scalar for a unit face normal.
func (lc *LightConfig) Shade(n mathutil.Vec3) float64 {
	return lc.Ambient + math.Abs(n.Dot(lc.LightDir))*lc.Direct + math.Abs(n.Dot(lc.RimDir))*lc.Rim
}

// ACESTonemap applies ACES Filmic tone mapping to a linear value.
func ACESTonemap(x float64) float64 {
	return (x * (2.51*x + 0.03)) / (x*(2.43*x+0.59) + 0.14)
}
