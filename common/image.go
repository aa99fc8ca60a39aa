package common

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// Image holds tightly packed RGBA8 pixels ready for a texture upload.
type Image struct {
	// Pixels is row-major RGBA data, 4 bytes per pixel.
	Pixels []byte
	// Width is the image width in pixels.
	Width int
	// Height is the image height in pixels.
	Height int
}

// DecodeImage decodes PNG, JPEG, BMP or WebP data into RGBA pixels.
//
// Parameters:
//   - r: the encoded image
//
// Returns:
//   - *Image: the decoded pixels
//   - error: error if the data is not a supported image
func DecodeImage(r io.Reader) (*Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != bounds.Dx()*4 || bounds.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	}

	return &Image{
		Pixels: rgba.Pix,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}

// DecodeImageBytes is DecodeImage over an in-memory buffer.
func DecodeImageBytes(data []byte) (*Image, error) {
	return DecodeImage(bytes.NewReader(data))
}

// DecodeImageFile opens and decodes the image at path.
//
// Parameters:
//   - path: the image file
//
// Returns:
//   - *Image: the decoded pixels
//   - error: error if the file cannot be opened or decoded
func DecodeImageFile(path string) (*Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image file %s: %w", path, err)
	}
	defer file.Close()

	img, err := DecodeImage(file)
	if err != nil {
		return nil, fmt.Errorf("image file %s: %w", path, err)
	}
	return img, nil
}
