package slide

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nopOpen(string, *Options) (Resource, error) { return nil, nil }

func TestNormalizeExtension(t *testing.T) {
	tests := map[string]string{
		"":      "",
		"png":   ".png",
		".PNG":  ".png",
		"TiFF":  ".tiff",
		".svs":  ".svs",
		".Ndpi": ".ndpi",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeExtension(in), in)
	}
}

func TestRegistry_Register(t *testing.T) {
	tests := []struct {
		name   string
		format Format
	}{
		{"empty name", Format{Extensions: []string{".a"}, Open: nopOpen}},
		{"nil open", Format{Name: "a", Extensions: []string{".a"}}},
		{"no extensions", Format{Name: "a", Open: nopOpen}},
		{"empty extension", Format{Name: "a", Extensions: []string{""}, Open: nopOpen}},
		{"bare dot", Format{Name: "a", Extensions: []string{"."}, Open: nopOpen}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, NewRegistry().Register(tt.format))
		})
	}
}

func TestRegistry_Lookup(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(Format{Name: "aperio", Extensions: []string{"svs"}, Open: nopOpen}))

	f, err := reg.Lookup("/slides/CASE-01.SVS")
	require.NoError(t, err)
	assert.Equal(t, "aperio", f.Name)

	_, err = reg.Lookup("/slides/case.ndpi")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = reg.Lookup("/slides/case")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	assert.True(t, reg.Supports("SVS"))
	assert.False(t, reg.Supports(".ndpi"))
}

func TestRegistry_LaterRegistrationWins(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(Format{Name: "generic-tiff", Extensions: []string{".tif", ".tiff"}, Open: nopOpen}))
	require.NoError(t, reg.Register(Format{Name: "pyramidal-tiff", Extensions: []string{".TIF"}, Open: nopOpen}))

	f, err := reg.Lookup("a.tif")
	require.NoError(t, err)
	assert.Equal(t, "pyramidal-tiff", f.Name)

	f, err = reg.Lookup("a.tiff")
	require.NoError(t, err)
	assert.Equal(t, "generic-tiff", f.Name)

	assert.Equal(t, []string{"generic-tiff", "pyramidal-tiff"}, reg.Formats())
	assert.Equal(t, []string{".tif", ".tiff"}, reg.Extensions())
}

func TestDefaultRegistry(t *testing.T) {
	reg := DefaultRegistry()
	assert.Same(t, reg, DefaultRegistry())
	assert.Equal(t, []string{"raster"}, reg.Formats())
	for _, ext := range []string{".png", ".jpg", ".jpeg", ".gif", ".tif", ".tiff", ".bmp"} {
		assert.True(t, reg.Supports(ext), ext)
	}
}

func TestQuickHash(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, data []byte) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, data, 0o600))
		return p
	}

	small := bytes.Repeat([]byte("abc"), 100)
	big := bytes.Repeat([]byte{0x42}, 300<<10)
	bigMiddle := bytes.Clone(big)
	bigMiddle[150<<10] = 0x00
	bigTail := bytes.Clone(big)
	bigTail[len(bigTail)-1] = 0x00

	h1, err := QuickHash(write("a.bin", small))
	require.NoError(t, err)
	h2, err := QuickHash(write("renamed.bin", small))
	require.NoError(t, err)
	assert.Equal(t, h1, h2, "hash depends on content only")
	assert.Len(t, h1, 64)

	hBig, err := QuickHash(write("big.bin", big))
	require.NoError(t, err)
	hMiddle, err := QuickHash(write("middle.bin", bigMiddle))
	require.NoError(t, err)
	hTail, err := QuickHash(write("tail.bin", bigTail))
	require.NoError(t, err)

	assert.Equal(t, hBig, hMiddle, "the middle of large files is not sampled")
	assert.NotEqual(t, hBig, hTail)

	hLonger, err := QuickHash(write("longer.bin", append(bytes.Clone(big), 0x42)))
	require.NoError(t, err)
	assert.NotEqual(t, hBig, hLonger, "size is part of the hash")

	_, err = QuickHash(filepath.Join(dir, "missing.bin"))
	assert.Error(t, err)
}

func TestSession_QuickHashMatchesFile(t *testing.T) {
	s, _ := openFake(t)
	want, err := QuickHash(s.SourcePath())
	require.NoError(t, err)
	got, err := s.QuickHash()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
