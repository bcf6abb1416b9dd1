// Package raster renders small software previews of shape keys: an
// orthographic, flat-lit view of a mesh colored by per-vertex displacement.
package raster

import (
	"image"
	"math"

	"skwrap/internal/mathutil"
)

// Options configures a preview render.
type Options struct {
	Size        int // final edge length in pixels
	Supersample int // render at Size*Supersample; downsample afterwards
	// Yaw and Pitch rotate the model (degrees) before projecting along -Z.
	Yaw   float64
	Pitch float64
	// MaxDisplacement maps to the hottest color; <= 0 uses the largest
	// value in the displacement slice.
	MaxDisplacement float64
}

// DefaultOptions returns a front view at 256px with 2× supersampling.
func DefaultOptions() Options {
	return Options{Size: 256, Supersample: 2}
}

// ViewMatrix returns the model rotation for yaw (about Y) then pitch
// (about X).
func ViewMatrix(yaw, pitch float64) mathutil.Mat3 {
	cy, sy := math.Cos(yaw*math.Pi/180), math.Sin(yaw*math.Pi/180)
	cp, sp := math.Cos(pitch*math.Pi/180), math.Sin(pitch*math.Pi/180)
	ry := mathutil.Mat3Rows(
		mathutil.Vec3{cy, 0, sy},
		mathutil.Vec3{0, 1, 0},
		mathutil.Vec3{-sy, 0, cy},
	)
	rx := mathutil.Mat3Rows(
		mathutil.Vec3{1, 0, 0},
		mathutil.Vec3{0, cp, -sp},
		mathutil.Vec3{0, sp, cp},
	)
	return rx.Mul(ry)
}

// RenderDisplacement renders pos over tris colored by disp (one value per
// vertex). The returned image is Size*Supersample pixels square.
func RenderDisplacement(pos []mathutil.Vec3, tris [][3]int, disp []float64, opts Options) *image.NRGBA {
	ss := max(opts.Supersample, 1)
	renderSize := max(opts.Size, 1) * ss
	fb := NewFrameBuffer(renderSize, renderSize)
	if len(pos) == 0 || len(tris) == 0 {
		return fb.Image()
	}

	R := ViewMatrix(opts.Yaw, opts.Pitch)
	view := make([]mathutil.Vec3, len(pos))
	box := mathutil.EmptyBox()
	for i, p := range pos {
		view[i] = R.MulVec3(p)
		box = box.Extend(view[i])
	}

	center := box.Center()
	extent := box.Size()
	span := math.Max(math.Max(extent[0], extent[1]), 0.001)
	margin := renderSize / 16
	scale := float64(renderSize-2*margin) / span
	half := float64(renderSize) / 2

	px := make([]float64, len(view))
	py := make([]float64, len(view))
	pz := make([]float64, len(view))
	for i, v := range view {
		px[i] = (v[0]-center[0])*scale + half
		py[i] = half - (v[1]-center[1])*scale
		pz[i] = (v[2] - center[2]) * scale
	}

	maxD := opts.MaxDisplacement
	if maxD <= 0 {
		for _, d := range disp {
			maxD = math.Max(maxD, d)
		}
	}
	colors := make([]linearRGB, len(pos))
	for i := range colors {
		t := 0.0
		if i < len(disp) && maxD > 0 {
			t = disp[i] / maxD
		}
		colors[i] = toLinear(HeatColor(t))
	}

	lc := DefaultLightConfig()
	for _, t := range tris {
		RasterizeTriangle(fb, px, py, pz, t, [3]linearRGB{colors[t[0]], colors[t[1]], colors[t[2]]}, &lc)
	}
	return fb.Image()
}
