package postprocess

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownsampleKeepsSmallImages(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	assert.Same(t, img, Downsample(img, 32))
	assert.Same(t, img, Downsample(img, 16))
}

func TestDownsampleAspect(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 64, 32))
	out := Downsample(img, 16)
	assert.Equal(t, 16, out.Rect.Dx())
	assert.Equal(t, 8, out.Rect.Dy())
}

func TestDownsampleNoDarkFringe(t *testing.T) {
	// Left half opaque white, right half transparent black.
	img := image.NewNRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 16; x++ {
			img.SetNRGBA(x, y, color.NRGBA{255, 255, 255, 255})
		}
	}
	out := Downsample(img, 8)
	require.Equal(t, 8, out.Rect.Dx())
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			c := out.NRGBAAt(x, y)
			if c.A > 16 {
				assert.GreaterOrEqual(t, int(c.R), 240, "pixel %d,%d", x, y)
			}
		}
	}
	assert.Equal(t, uint8(255), out.NRGBAAt(0, 4).A)
}
