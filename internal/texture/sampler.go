package texture

import "image"

// Sample returns the bilinearly filtered texel at (u, v). UVs are clamped
// to [0, 1] so that u = 1 addresses the last column rather than wrapping
// to the first; v = 0 is the top row.
func Sample(tex *image.NRGBA, u, v float64) (r, g, b, a uint8) {
	w := tex.Rect.Dx()
	h := tex.Rect.Dy()

	fx := clamp01(u) * float64(w-1)
	fy := clamp01(v) * float64(h-1)
	x0 := int(fx)
	y0 := int(fy)
	x1 := min(x0+1, w-1)
	y1 := min(y0+1, h-1)
	dx := fx - float64(x0)
	dy := fy - float64(y0)

	o := tex.Rect.Min
	i00 := tex.PixOffset(o.X+x0, o.Y+y0)
	i10 := tex.PixOffset(o.X+x1, o.Y+y0)
	i01 := tex.PixOffset(o.X+x0, o.Y+y1)
	i11 := tex.PixOffset(o.X+x1, o.Y+y1)

	w00 := (1 - dx) * (1 - dy)
	w10 := dx * (1 - dy)
	w01 := (1 - dx) * dy
	w11 := dx * dy

	pix := tex.Pix
	var out [4]uint8
	for c := 0; c < 4; c++ {
		f := float64(pix[i00+c])*w00 + float64(pix[i10+c])*w10 + float64(pix[i01+c])*w01 + float64(pix[i11+c])*w11
		out[c] = uint8(f + 0.5)
	}
	return out[0], out[1], out[2], out[3]
}

func clamp01(x float64) float64 {
	if x < 0 || x != x {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
