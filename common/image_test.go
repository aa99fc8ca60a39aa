package common

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecodeImage(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 3))
	src.Set(1, 2, color.NRGBA{R: 255, G: 10, B: 20, A: 255})

	img, err := DecodeImageBytes(encodePNG(t, src))
	require.NoError(t, err)
	assert.Equal(t, 2, img.Width)
	assert.Equal(t, 3, img.Height)
	require.Len(t, img.Pixels, 2*3*4)
	offset := (2*2 + 1) * 4
	assert.Equal(t, []byte{255, 10, 20, 255}, img.Pixels[offset:offset+4])
}

func TestDecodeImageFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "line.png")
	require.NoError(t, os.WriteFile(path, encodePNG(t, image.NewRGBA(image.Rect(0, 0, 1, 128))), 0o644))

	img, err := DecodeImageFile(path)
	require.NoError(t, err)
	assert.Equal(t, 128, img.Height)

	_, err = DecodeImageFile(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}

func TestDecodeImageRejectsGarbage(t *testing.T) {
	_, err := DecodeImageBytes([]byte("not an image"))
	assert.ErrorContains(t, err, "failed to decode image")
}
