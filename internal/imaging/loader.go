package imaging

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/anthonynsimon/bild/transform"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder

	"github.com/ironsheep/slide-tools-mcp/internal/pyramid"
)

// RasterFormat is the format name reported by raster slides.
const RasterFormat = "raster"

// Associated image names exposed by raster slides.
const (
	AssociatedThumbnail = "thumbnail"
	AssociatedLabel     = "label"
)

// RasterExtensions lists the file extensions the raster format opens.
var RasterExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".tif", ".tiff", ".bmp"}

// ErrUnknownAssociated is returned when an associated image name is unknown.
var ErrUnknownAssociated = errors.New("unknown associated image")

// RasterOptions controls how a raster slide is turned into a pyramid.
type RasterOptions struct {
	// MinLevelSize stops level generation once halving would bring the
	// shorter side below this many pixels.
	MinLevelSize int

	// MPP is the physical pixel size in microns reported for both axes.
	// Zero means unknown.
	MPP float64

	// ThumbnailSize is the longest side of the thumbnail associated image.
	ThumbnailSize int
}

// DefaultRasterOptions returns the options used when none are configured.
func DefaultRasterOptions() RasterOptions {
	return RasterOptions{
		MinLevelSize:  256,
		ThumbnailSize: 256,
	}
}

// Raster is an ordinary image file served as a slide. The whole image is
// decoded at open and downsampled levels are built by repeated halving.
//
// A Raster is safe for concurrent reads; Close must not race with them.
type Raster struct {
	path     string
	codec    string
	size     int64
	opts     RasterOptions
	levels   []*image.NRGBA
	geometry *pyramid.Geometry

	thumbDims pyramid.Dimensions
	labelPath string
	labelDims pyramid.Dimensions
}

// OpenRaster decodes the image at path and builds its pyramid.
//
// # Errors
//
//   - Returns error if the file does not exist or cannot be read
//   - Returns error if the file is not a decodable PNG, JPEG, GIF, TIFF or BMP
func OpenRaster(path string, opts RasterOptions) (*Raster, error) {
	if opts.MinLevelSize <= 0 {
		opts.MinLevelSize = DefaultRasterOptions().MinLevelSize
	}
	if opts.ThumbnailSize <= 0 {
		opts.ThumbnailSize = DefaultRasterOptions().ThumbnailSize
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat image: %w", err)
	}

	codec, _, err := probe(path)
	if err != nil {
		return nil, err
	}

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	r := &Raster{
		path:   path,
		codec:  codec,
		size:   stat.Size(),
		opts:   opts,
		levels: buildLevels(imaging.Clone(img), opts.MinLevelSize),
	}

	dims := make([]pyramid.Dimensions, len(r.levels))
	for i, lvl := range r.levels {
		b := lvl.Bounds()
		dims[i] = pyramid.Dimensions{Width: int64(b.Dx()), Height: int64(b.Dy())}
	}
	r.geometry, err = pyramid.FromDimensions(dims)
	if err != nil {
		return nil, err
	}

	r.thumbDims = fitWithin(dims[0], opts.ThumbnailSize)

	if label := findLabel(path); label != "" {
		if _, cfg, err := probe(label); err == nil {
			r.labelPath = label
			r.labelDims = pyramid.Dimensions{Width: int64(cfg.Width), Height: int64(cfg.Height)}
		}
	}

	return r, nil
}

// buildLevels halves the base image until the shorter side would drop
// below minSize. The base level is always present.
func buildLevels(base *image.NRGBA, minSize int) []*image.NRGBA {
	levels := []*image.NRGBA{base}
	cur := base
	for {
		b := cur.Bounds()
		w, h := b.Dx()/2, b.Dy()/2
		if w < minSize || h < minSize {
			break
		}
		cur = imaging.Resize(cur, w, h, imaging.Box)
		levels = append(levels, cur)
	}
	return levels
}

// probe reads only the image header.
func probe(path string) (string, image.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", image.Config{}, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	cfg, codec, err := image.DecodeConfig(f)
	if err != nil {
		return "", image.Config{}, fmt.Errorf("failed to read image header: %w", err)
	}
	return codec, cfg, nil
}

// findLabel looks for a <name>.label.<ext> image beside path.
func findLabel(path string) string {
	dir := filepath.Dir(path)
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	for _, ext := range RasterExtensions {
		candidate := filepath.Join(dir, stem+".label"+ext)
		if candidate == path {
			continue
		}
		if st, err := os.Stat(candidate); err == nil && st.Mode().IsRegular() {
			return candidate
		}
	}
	return ""
}

// fitWithin scales d so its longest side is at most limit, never upscaling.
func fitWithin(d pyramid.Dimensions, limit int) pyramid.Dimensions {
	longest := d.Width
	if d.Height > longest {
		longest = d.Height
	}
	if longest <= int64(limit) {
		return d
	}
	scale := float64(limit) / float64(longest)
	out := pyramid.Dimensions{
		Width:  int64(float64(d.Width) * scale),
		Height: int64(float64(d.Height) * scale),
	}
	if out.Width < 1 {
		out.Width = 1
	}
	if out.Height < 1 {
		out.Height = 1
	}
	return out
}

// Format returns RasterFormat.
func (r *Raster) Format() string { return RasterFormat }

// Path returns the file the raster was opened from.
func (r *Raster) Path() string { return r.path }

// Geometry returns the pyramid layout.
func (r *Raster) Geometry() *pyramid.Geometry { return r.geometry }

// MPP returns the configured physical pixel size for both axes.
func (r *Raster) MPP() (float64, float64) { return r.opts.MPP, r.opts.MPP }

// Properties returns format metadata. Values are strings, as vendor
// metadata tables are.
func (r *Raster) Properties() map[string]string {
	return map[string]string{
		"raster.codec":           r.codec,
		"raster.file_size":       strconv.FormatInt(r.size, 10),
		"raster.min_level_size":  strconv.Itoa(r.opts.MinLevelSize),
		"raster.thumbnail_size":  strconv.Itoa(r.opts.ThumbnailSize),
		"raster.has_label_image": strconv.FormatBool(r.labelPath != ""),
	}
}

// ReadRegion returns the region as packed RGB bytes.
func (r *Raster) ReadRegion(region pyramid.Region) ([]byte, error) {
	if r.levels == nil {
		return nil, errors.New("raster is closed")
	}
	if err := r.geometry.ValidateRegion(region); err != nil {
		return nil, err
	}

	x, y := int(region.X), int(region.Y)
	rect := image.Rect(x, y, x+region.Width, y+region.Height)
	return FromImage(imaging.Crop(r.levels[region.Level], rect)).Pix, nil
}

// AssociatedNames lists the associated images, sorted.
func (r *Raster) AssociatedNames() []string {
	names := []string{AssociatedThumbnail}
	if r.labelPath != "" {
		names = append(names, AssociatedLabel)
	}
	sort.Strings(names)
	return names
}

// AssociatedDimensions returns the size of an associated image without
// decoding it.
func (r *Raster) AssociatedDimensions(name string) (pyramid.Dimensions, bool) {
	switch {
	case name == AssociatedThumbnail:
		return r.thumbDims, true
	case name == AssociatedLabel && r.labelPath != "":
		return r.labelDims, true
	}
	return pyramid.Dimensions{}, false
}

// DecodeAssociated decodes an associated image. Every call decodes anew;
// memoization is left to the caller.
func (r *Raster) DecodeAssociated(name string) (*RGBImage, error) {
	switch {
	case name == AssociatedThumbnail:
		if r.levels == nil {
			return nil, errors.New("raster is closed")
		}
		src := r.levels[len(r.levels)-1]
		thumb := transform.Resize(src, int(r.thumbDims.Width), int(r.thumbDims.Height), transform.Linear)
		return FromImage(thumb), nil
	case name == AssociatedLabel && r.labelPath != "":
		img, err := imaging.Open(r.labelPath, imaging.AutoOrientation(true))
		if err != nil {
			return nil, fmt.Errorf("failed to decode label image: %w", err)
		}
		return FromImage(img), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownAssociated, name)
}

// Close releases the decoded levels. It is safe to call more than once.
func (r *Raster) Close() error {
	r.levels = nil
	return nil
}
