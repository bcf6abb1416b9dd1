// Package postprocess finishes rendered previews before they are encoded.
package postprocess

import (
	"image"

	"golang.org/x/image/draw"
)

// Downsample scales img so that its longer edge is size pixels, keeping the
// aspect ratio. Filtering happens on premultiplied color so transparent
// pixels do not bleed dark fringes into the silhouette. Images already
// within size are returned unchanged.
func Downsample(img *image.NRGBA, size int) *image.NRGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if size <= 0 || (w <= size && h <= size) {
		return img
	}
	dw, dh := size, size
	if w > h {
		dh = max(h*size/w, 1)
	} else if h > w {
		dw = max(w*size/h, 1)
	}

	// image.RGBA is alpha-premultiplied; drawing into it converts.
	premul := image.NewRGBA(b)
	draw.Draw(premul, b, img, b.Min, draw.Src)

	scaled := image.NewRGBA(image.Rect(0, 0, dw, dh))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), premul, b, draw.Src, nil)

	out := image.NewNRGBA(scaled.Bounds())
	draw.Draw(out, out.Bounds(), scaled, image.Point{}, draw.Src)
	return out
}
