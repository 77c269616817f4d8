package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/anthonynsimon/bild/clone"
)

// RGBImage is a packed 8-bit RGB raster: Pix holds Height rows of Width*3
// bytes in R, G, B order with no padding. It implements image.Image.
type RGBImage struct {
	Width  int
	Height int
	Pix    []byte
}

// NewRGBImage wraps pix as an RGBImage. pix must hold exactly width*height*3
// bytes; it is used without copying.
func NewRGBImage(width, height int, pix []byte) (*RGBImage, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid RGB image size %dx%d", width, height)
	}
	if len(pix) != width*height*3 {
		return nil, fmt.Errorf("RGB buffer is %d bytes, want %d for %dx%d", len(pix), width*height*3, width, height)
	}
	return &RGBImage{Width: width, Height: height, Pix: pix}, nil
}

// FromImage converts any image to packed RGB. Translucent pixels are
// composited over white.
func FromImage(img image.Image) *RGBImage {
	if m, ok := img.(*RGBImage); ok {
		return m.Clone()
	}

	rgba := clone.AsRGBA(img)
	b := rgba.Bounds()
	w, h := b.Dx(), b.Dy()
	out := &RGBImage{Width: w, Height: h, Pix: make([]byte, w*h*3)}

	for y := 0; y < h; y++ {
		src := rgba.Pix[y*rgba.Stride : y*rgba.Stride+w*4]
		dst := out.Pix[y*w*3 : (y+1)*w*3]
		for x := 0; x < w; x++ {
			// RGBA is premultiplied, so adding the missing coverage gives white
			bg := 255 - src[x*4+3]
			dst[x*3] = src[x*4] + bg
			dst[x*3+1] = src[x*4+1] + bg
			dst[x*3+2] = src[x*4+2] + bg
		}
	}
	return out
}

// ColorModel implements image.Image.
func (m *RGBImage) ColorModel() color.Model { return color.RGBAModel }

// Bounds implements image.Image.
func (m *RGBImage) Bounds() image.Rectangle { return image.Rect(0, 0, m.Width, m.Height) }

// At implements image.Image. Pixels outside the bounds are transparent.
func (m *RGBImage) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return color.RGBA{}
	}
	i := (y*m.Width + x) * 3
	return color.RGBA{R: m.Pix[i], G: m.Pix[i+1], B: m.Pix[i+2], A: 255}
}

// SizeBytes returns the length of the pixel buffer.
func (m *RGBImage) SizeBytes() int64 { return int64(len(m.Pix)) }

// Clone returns a deep copy.
func (m *RGBImage) Clone() *RGBImage {
	pix := make([]byte, len(m.Pix))
	copy(pix, m.Pix)
	return &RGBImage{Width: m.Width, Height: m.Height, Pix: pix}
}

// Equal reports whether both images have the same size and pixels.
func (m *RGBImage) Equal(o *RGBImage) bool {
	if m == nil || o == nil {
		return m == o
	}
	return m.Width == o.Width && m.Height == o.Height && bytes.Equal(m.Pix, o.Pix)
}
