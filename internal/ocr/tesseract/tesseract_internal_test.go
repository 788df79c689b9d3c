package tesseract

import (
	"bytes"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"
)

func TestDownscale(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4000, 2000))

	out, scale := downscale(img, 1000)
	assert.InDelta(t, 0.25, scale, 1e-9)
	assert.Equal(t, 1000, out.Bounds().Dx())
	assert.Equal(t, 500, out.Bounds().Dy())

	same, scale := downscale(img, 0)
	assert.Equal(t, 1.0, scale)
	assert.Same(t, img, same.(*image.RGBA))
}

func TestEncodeTIFF_RoundTripsBounds(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 40, 30))

	data, err := encodeTIFF(img)
	require.NoError(t, err)

	decoded, err := tiff.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), decoded.Bounds())
}
