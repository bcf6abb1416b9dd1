package raster

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"

	"skwrap/internal/mathutil"
)

// linearRGB is a color in linear light, interpolated across triangles.
type linearRGB [3]float64

func toLinear(c colorful.Color) linearRGB {
	r, g, b := c.LinearRgb()
	return linearRGB{r, g, b}
}

// RasterizeTriangle fills one triangle with z-buffering, interpolating the
// per-vertex colors and applying flat lighting and ACES tone mapping.
// px, py are screen coordinates; larger pz is closer to the viewer.
func RasterizeTriangle(
	fb *FrameBuffer,
	px, py, pz []float64,
	vi [3]int,
	col [3]linearRGB,
	lc *LightConfig,
) {
	nv := len(px)
	for _, i := range vi {
		if i < 0 || i >= nv {
			return
		}
	}

	x0, y0, z0 := px[vi[0]], py[vi[0]], pz[vi[0]]
	x1, y1, z1 := px[vi[1]], py[vi[1]], pz[vi[1]]
	x2, y2, z2 := px[vi[2]], py[vi[2]], pz[vi[2]]

	n := mathutil.TriangleNormal(
		mathutil.Vec3{x0, y0, z0},
		mathutil.Vec3{x1, y1, z1},
		mathutil.Vec3{x2, y2, z2},
	)
	if n == (mathutil.Vec3{}) {
		return
	}
	// Screen y points down; flip back before lighting.
	n[1] = -n[1]
	shade := lc.Shade(n) * lc.Exposure

	// Bounding box
	minX := max(int(math.Min(math.Min(x0, x1), x2)), 0)
	maxX := min(int(math.Max(math.Max(x0, x1), x2))+1, fb.Width-1)
	minY := max(int(math.Min(math.Min(y0, y1), y2)), 0)
	maxY := min(int(math.Max(math.Max(y0, y1), y2))+1, fb.Height-1)
	if minX > maxX || minY > maxY {
		return
	}

	// Barycentric setup
	det := (y1-y2)*(x0-x2) + (x2-x1)*(y0-y2)
	if det > -1e-8 && det < 1e-8 {
		return
	}
	invDet := 1.0 / det

	dy12 := y1 - y2
	dx21 := x2 - x1
	dy20 := y2 - y0
	dx02 := x0 - x2

	for sy := minY; sy <= maxY; sy++ {
		dsy := float64(sy) - y2
		rowOff := sy * fb.Width
		for sx := minX; sx <= maxX; sx++ {
			dsx := float64(sx) - x2
			w0 := (dy12*dsx + dx21*dsy) * invDet
			w1 := (dy20*dsx + dx02*dsy) * invDet
			w2 := 1.0 - w0 - w1

			if w0 < -0.001 || w1 < -0.001 || w2 < -0.001 {
				continue
			}

			z := w0*z0 + w1*z1 + w2*z2
			zIdx := rowOff + sx
			if z <= fb.ZBuf[zIdx] {
				continue
			}
			fb.ZBuf[zIdx] = z

			var out [3]float64
			for c := 0; c < 3; c++ {
				lin := w0*col[0][c] + w1*col[1][c] + w2*col[2][c]
				out[c] = math.Pow(ACESTonemap(lin*shade), lc.InvGamma)
			}

			pxIdx := zIdx * 4
			fb.Color[pxIdx] = clamp255(out[0] * 255)
			fb.Color[pxIdx+1] = clamp255(out[1] * 255)
			fb.Color[pxIdx+2] = clamp255(out[2] * 255)
			fb.Color[pxIdx+3] = 255
		}
	}
}

func clamp255(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}
