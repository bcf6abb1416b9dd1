// Package texture loads grayscale weight masks and samples them at vertex
// UVs.
package texture

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "github.com/ftrvxmtrx/tga"
)

// LoadMask reads a PNG, JPEG or TGA image and returns it as NRGBA.
func LoadMask(path string) (*image.NRGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("texture: open %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("texture: decode %s: %w", path, err)
	}
	return toNRGBA(img), nil
}

// toNRGBA converts any image to NRGBA format.
func toNRGBA(src image.Image) *image.NRGBA {
	if n, ok := src.(*image.NRGBA); ok {
		return n
	}
	b := src.Bounds()
	dst := image.NewNRGBA(b)
	switch src.(type) {
	case *image.YCbCr, *image.Gray, *image.Gray16:
		// No alpha
		draw.Draw(dst, b, src, b.Min, draw.Src)
		for i := 3; i < len(dst.Pix); i += 4 {
			dst.Pix[i] = 255
		}
	default:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				c := color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA)
				i := dst.PixOffset(x, y)
				dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2], dst.Pix[i+3] = c.R, c.G, c.B, c.A
			}
		}
	}
	return dst
}

// VertexWeights samples mask at each UV and returns weights in [0, 1]:
// Rec. 601 luminance scaled by alpha. A nil mask yields all ones.
func VertexWeights(mask *image.NRGBA, uvs [][2]float64) []float64 {
	w := make([]float64, len(uvs))
	if mask == nil || mask.Rect.Empty() {
		for i := range w {
			w[i] = 1
		}
		return w
	}
	for i, uv := range uvs {
		r, g, b, a := Sample(mask, uv[0], uv[1])
		lum := 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
		w[i] = lum / 255 * float64(a) / 255
	}
	return w
}
