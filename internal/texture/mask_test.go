package texture

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// halfMask is white on the left half and black on the right.
func halfMask(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w/2; x++ {
			img.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	return img
}

func TestLoadMaskAndVertexWeights(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mask.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, halfMask(8, 4)))
	require.NoError(t, f.Close())

	mask, err := LoadMask(path)
	require.NoError(t, err)
	assert.Equal(t, 8, mask.Rect.Dx())

	w := VertexWeights(mask, [][2]float64{{0, 0}, {1, 1}, {0, 0.5}, {1.5, -2}})
	assert.InDelta(t, 1, w[0], 1e-9)
	assert.InDelta(t, 0, w[1], 1e-9)
	assert.InDelta(t, 1, w[2], 1e-9)
	assert.InDelta(t, 0, w[3], 1e-9, "clamped to the right edge")
}

func TestVertexWeightsWithoutMask(t *testing.T) {
	assert.Equal(t, []float64{1, 1}, VertexWeights(nil, make([][2]float64, 2)))
}

func TestLoadMaskErrors(t *testing.T) {
	_, err := LoadMask(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.png")
	require.NoError(t, os.WriteFile(bad, []byte("not an image"), 0o644))
	_, err = LoadMask(bad)
	assert.Error(t, err)
}
