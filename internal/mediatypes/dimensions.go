package mediatypes

import (
	"bytes"
	"image"
	// Register decoders so DecodeConfig can read headers of every
	// collection format.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Dimensions reads width and height from an encoded image header without
// decoding pixels. ok is false when the format is unknown or the header is
// truncated.
func Dimensions(data []byte) (width, height int, ok bool) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, false
	}
	return cfg.Width, cfg.Height, true
}
