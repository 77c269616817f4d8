package slide

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ironsheep/slide-tools-mcp/internal/imaging"
	"github.com/ironsheep/slide-tools-mcp/internal/pyramid"
)

// fakeResource is a synthetic 3-level pyramid whose pixel values encode
// their level and position.
type fakeResource struct {
	geometry *pyramid.Geometry
	reads    atomic.Int64
	closes   atomic.Int64
	delay    time.Duration
	readErr  error
	closeErr error
	short    bool
}

func newFakeResource(t *testing.T) *fakeResource {
	t.Helper()
	g, err := pyramid.New(
		[]pyramid.Dimensions{{Width: 4096, Height: 2048}, {Width: 1024, Height: 512}, {Width: 256, Height: 128}},
		[]float64{1, 4, 16},
	)
	require.NoError(t, err)
	return &fakeResource{geometry: g}
}

func (f *fakeResource) Format() string              { return "fake" }
func (f *fakeResource) Geometry() *pyramid.Geometry { return f.geometry }
func (f *fakeResource) MPP() (float64, float64)     { return 0.25, 0.26 }

func (f *fakeResource) Properties() map[string]string {
	return map[string]string{"fake.vendor": "unit-test"}
}

func (f *fakeResource) ReadRegion(r pyramid.Region) ([]byte, error) {
	f.reads.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.readErr != nil {
		return nil, f.readErr
	}
	if f.short {
		return make([]byte, 3), nil
	}
	return fakePixels(r), nil
}

func (f *fakeResource) AssociatedNames() []string { return []string{"label", "thumbnail"} }

func (f *fakeResource) AssociatedDimensions(name string) (pyramid.Dimensions, bool) {
	switch name {
	case "label":
		return pyramid.Dimensions{Width: 2, Height: 2}, true
	case "thumbnail":
		return pyramid.Dimensions{Width: 4, Height: 2}, true
	}
	return pyramid.Dimensions{}, false
}

func (f *fakeResource) DecodeAssociated(name string) (*imaging.RGBImage, error) {
	d, ok := f.AssociatedDimensions(name)
	if !ok {
		return nil, errors.New("no such image")
	}
	return imaging.NewRGBImage(int(d.Width), int(d.Height), make([]byte, d.Width*d.Height*3))
}

func (f *fakeResource) Close() error {
	f.closes.Add(1)
	return f.closeErr
}

func fakePixels(r pyramid.Region) []byte {
	pix := make([]byte, r.RGBSize())
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			i := (y*r.Width + x) * 3
			pix[i] = byte(r.Level)
			pix[i+1] = byte(r.X + int64(x))
			pix[i+2] = byte(r.Y + int64(y))
		}
	}
	return pix
}

// fakeRegistry registers res under ".fake" and returns a registry plus a
// path that opens it.
func fakeRegistry(t *testing.T, res *fakeResource) (*Registry, string) {
	t.Helper()
	reg := NewRegistry()
	require.NoError(t, reg.Register(Format{
		Name:       "fake",
		Extensions: []string{"fake"},
		Open: func(path string, _ *Options) (Resource, error) {
			return res, nil
		},
	}))
	path := filepath.Join(t.TempDir(), "slide.fake")
	require.NoError(t, os.WriteFile(path, []byte("fake slide content"), 0o600))
	return reg, path
}

func openFake(t *testing.T, opts ...Option) (*Session, *fakeResource) {
	t.Helper()
	res := newFakeResource(t)
	reg, path := fakeRegistry(t, res)
	s, err := Open(path, append([]Option{WithRegistry(reg)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, res
}

// writePatternPNG writes a quadrant pattern image for end-to-end tests.
func writePatternPNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{255, 255, 255, 255}
			switch {
			case x < w/2 && y < h/2:
				c = color.RGBA{255, 0, 0, 255}
			case x >= w/2 && y < h/2:
				c = color.RGBA{0, 255, 0, 255}
			case x < w/2:
				c = color.RGBA{0, 0, 255, 255}
			}
			img.Set(x, y, c)
		}
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}
