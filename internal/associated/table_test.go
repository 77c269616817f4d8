package associated

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/slide-tools-mcp/internal/imaging"
	"github.com/ironsheep/slide-tools-mcp/internal/pyramid"
)

type fakeSource struct {
	dims    map[string]pyramid.Dimensions
	decodes atomic.Int64
	delay   time.Duration
	fail    map[string]error
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		dims: map[string]pyramid.Dimensions{
			"label":     {Width: 4, Height: 2},
			"macro":     {Width: 8, Height: 4},
			"thumbnail": {Width: 6, Height: 3},
		},
		fail: map[string]error{},
	}
}

func (f *fakeSource) AssociatedNames() []string {
	return []string{"label", "macro", "thumbnail"}
}

func (f *fakeSource) AssociatedDimensions(name string) (pyramid.Dimensions, bool) {
	d, ok := f.dims[name]
	return d, ok
}

func (f *fakeSource) DecodeAssociated(name string) (*imaging.RGBImage, error) {
	f.decodes.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if err := f.fail[name]; err != nil {
		return nil, err
	}
	d := f.dims[name]
	pix := make([]byte, d.Width*d.Height*3)
	for i := range pix {
		pix[i] = byte(len(name) + i)
	}
	return imaging.NewRGBImage(int(d.Width), int(d.Height), pix)
}

func TestTable_MetadataQueriesNeverDecode(t *testing.T) {
	src := newFakeSource()
	tbl := New(src)

	assert.Equal(t, []string{"label", "macro", "thumbnail"}, tbl.Keys())
	assert.Equal(t, 3, tbl.Len())
	assert.True(t, tbl.Contains("label"))
	assert.False(t, tbl.Contains("overview"))

	d, err := tbl.Dimensions("macro")
	require.NoError(t, err)
	assert.Equal(t, pyramid.Dimensions{Width: 8, Height: 4}, d)

	assert.Equal(t, Available, tbl.State("label"))
	assert.Equal(t, NotFound, tbl.State("overview"))

	assert.Equal(t, 0, tbl.CacheSize())
	assert.Zero(t, src.decodes.Load())
}

func TestTable_NotFound(t *testing.T) {
	tbl := New(newFakeSource())

	_, err := tbl.Get("overview")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = tbl.Dimensions("overview")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, 0, tbl.CacheSize())
}

func TestTable_DecodeOncePerName(t *testing.T) {
	src := newFakeSource()
	tbl := New(src)

	first, err := tbl.Fetch("label")
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, 1, tbl.CacheSize())
	assert.Equal(t, Decoded, tbl.State("label"))

	second, err := tbl.Fetch("label")
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, 1, tbl.CacheSize())
	assert.True(t, first.Image.Equal(second.Image))

	_, err = tbl.Get("macro")
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.CacheSize())
	assert.Equal(t, int64(2), src.decodes.Load())
}

func TestTable_ReturnedImagesAreCopies(t *testing.T) {
	tbl := New(newFakeSource())

	img, err := tbl.Get("label")
	require.NoError(t, err)
	original := img.Clone()
	img.Pix[0] ^= 0xff

	again, err := tbl.Get("label")
	require.NoError(t, err)
	assert.True(t, original.Equal(again))
}

func TestTable_ClearCache(t *testing.T) {
	src := newFakeSource()
	tbl := New(src)

	_, err := tbl.Get("label")
	require.NoError(t, err)
	_, err = tbl.Get("thumbnail")
	require.NoError(t, err)
	require.Equal(t, 2, tbl.CacheSize())

	tbl.ClearCache()
	assert.Equal(t, 0, tbl.CacheSize())
	assert.Equal(t, 3, tbl.Len())
	assert.Equal(t, Available, tbl.State("label"))

	_, err = tbl.Get("label")
	require.NoError(t, err)
	assert.Equal(t, int64(3), src.decodes.Load())
}

func TestTable_DecodeError(t *testing.T) {
	src := newFakeSource()
	boom := errors.New("corrupt strip")
	src.fail["macro"] = boom
	tbl := New(src)

	_, err := tbl.Get("macro")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, tbl.CacheSize())
	assert.Equal(t, Available, tbl.State("macro"))
}

func TestTable_ConcurrentFirstAccessDecodesOnce(t *testing.T) {
	src := newFakeSource()
	src.delay = 20 * time.Millisecond
	tbl := New(src)

	var wg sync.WaitGroup
	results := make([]*imaging.RGBImage, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			img, err := tbl.Get("thumbnail")
			assert.NoError(t, err)
			results[i] = img
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), src.decodes.Load())
	assert.Equal(t, 1, tbl.CacheSize())
	for _, img := range results[1:] {
		assert.True(t, results[0].Equal(img))
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "not_found", NotFound.String())
	assert.Equal(t, "available", Available.String())
	assert.Equal(t, "decoded", Decoded.String())
}
