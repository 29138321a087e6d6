package asset

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
)

const maxPlaceholderSide = 2000

var placeholderGrey = color.RGBA{R: 0xCB, G: 0xD5, B: 0xE0, A: 0xFF}

// Placeholder encodes a solid grey PNG of the given size.
func Placeholder(width, height int) ([]byte, error) {
	if width <= 0 || height <= 0 || width > maxPlaceholderSide || height > maxPlaceholderSide {
		return nil, fmt.Errorf("placeholder size %dx%d out of range", width, height)
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, placeholderGrey)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode placeholder: %w", err)
	}
	return buf.Bytes(), nil
}
