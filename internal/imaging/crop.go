package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
)

// MaxEncodeSide caps either side of an encoded image after scaling.
const MaxEncodeSide = 8192

// EncodedImage contains base64 PNG data ready to hand to a client.
type EncodedImage struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// EncodePNG encodes img as base64 PNG, optionally rescaled by scale.
// A scale of 0 or 1 leaves the image at its native size.
func EncodePNG(img image.Image, scale float64) (*EncodedImage, error) {
	if scale < 0 {
		return nil, fmt.Errorf("invalid scale %g: must not be negative", scale)
	}

	out := img
	if scale != 1.0 && scale > 0 {
		b := img.Bounds()
		newWidth := int(float64(b.Dx()) * scale)
		newHeight := int(float64(b.Dy()) * scale)
		if newWidth < 1 || newHeight < 1 {
			return nil, fmt.Errorf("scale %g reduces %dx%d image to nothing", scale, b.Dx(), b.Dy())
		}
		if newWidth > MaxEncodeSide || newHeight > MaxEncodeSide {
			return nil, fmt.Errorf("scaled size %dx%d exceeds limit %d", newWidth, newHeight, MaxEncodeSide)
		}
		out = imaging.Resize(img, newWidth, newHeight, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	return &EncodedImage{
		Width:       out.Bounds().Dx(),
		Height:      out.Bounds().Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}

// EncodeRegion wraps a packed RGB region and encodes it with EncodePNG.
func EncodeRegion(width, height int, pix []byte, scale float64) (*EncodedImage, error) {
	img, err := NewRGBImage(width, height, pix)
	if err != nil {
		return nil, err
	}
	return EncodePNG(img, scale)
}
