package assets

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
)

// ImageTransform rotates encoded image bytes.
type ImageTransform interface {
	RotateClockwise90(data []byte) ([]byte, error)
}

// DefaultJPEGQuality matches the 0.9 quality used by the dashboard.
const DefaultJPEGQuality = 90

// JPEGRotator decodes any supported raster format, rotates it and encodes
// the result as JPEG.
type JPEGRotator struct {
	Quality int
}

func (r JPEGRotator) RotateClockwise90(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("rotate: empty image")
	}
	if mt := mimetype.Detect(data); !mt.Is("image/jpeg") && !mt.Is("image/png") && !mt.Is("image/gif") && !mt.Is("image/bmp") && !mt.Is("image/tiff") {
		return nil, fmt.Errorf("rotate: unsupported content type %s", mt.String())
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("rotate: decode: %w", err)
	}
	// imaging rotates counter-clockwise.
	rotated := imaging.Rotate270(img)
	quality := r.Quality
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	buf := &bytes.Buffer{}
	if err := imaging.Encode(buf, rotated, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("rotate: encode: %w", err)
	}
	return buf.Bytes(), nil
}
