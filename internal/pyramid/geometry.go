// Package pyramid describes the level layout of a multi-resolution slide and
// converts coordinates between its levels.
package pyramid

import (
	"errors"
	"fmt"
	"math"
)

// Sentinel errors. Use errors.Is() to check for these conditions.
var (
	ErrInvalidLevel    = errors.New("invalid level")
	ErrOutOfBounds     = errors.New("region out of bounds")
	ErrInvalidSize     = errors.New("region size must be positive")
	ErrInvalidGeometry = errors.New("invalid pyramid geometry")
)

// downsampleEpsilon absorbs float noise in inferred downsample factors.
const downsampleEpsilon = 1e-6

// Dimensions is a width/height pair in pixels.
type Dimensions struct {
	Width  int64 `json:"width"`
	Height int64 `json:"height"`
}

// Point is a pixel coordinate.
type Point struct {
	X int64 `json:"x"`
	Y int64 `json:"y"`
}

// Geometry is the read-only level layout of an opened slide. Level 0 is full
// resolution.
type Geometry struct {
	levels      []Dimensions
	downsamples []float64
}

// New validates and returns a geometry. levels and downsamples must be
// index-aligned and non-empty, dimensions positive and non-increasing,
// downsamples positive, non-decreasing and starting at 1.0.
func New(levels []Dimensions, downsamples []float64) (*Geometry, error) {
	if len(levels) == 0 {
		return nil, fmt.Errorf("%w: no levels", ErrInvalidGeometry)
	}
	if len(levels) != len(downsamples) {
		return nil, fmt.Errorf("%w: %d levels but %d downsamples", ErrInvalidGeometry, len(levels), len(downsamples))
	}

	for i, d := range levels {
		if d.Width <= 0 || d.Height <= 0 {
			return nil, fmt.Errorf("%w: level %d has size %dx%d", ErrInvalidGeometry, i, d.Width, d.Height)
		}
		if i > 0 && (d.Width > levels[i-1].Width || d.Height > levels[i-1].Height) {
			return nil, fmt.Errorf("%w: level %d is larger than level %d", ErrInvalidGeometry, i, i-1)
		}
	}

	if math.Abs(downsamples[0]-1.0) > downsampleEpsilon {
		return nil, fmt.Errorf("%w: level 0 downsample is %g, want 1", ErrInvalidGeometry, downsamples[0])
	}
	for i := 1; i < len(downsamples); i++ {
		ds := downsamples[i]
		if math.IsNaN(ds) || math.IsInf(ds, 0) || ds <= 0 {
			return nil, fmt.Errorf("%w: level %d downsample %g", ErrInvalidGeometry, i, ds)
		}
		if ds < downsamples[i-1] {
			return nil, fmt.Errorf("%w: downsample decreases at level %d", ErrInvalidGeometry, i)
		}
	}

	g := &Geometry{
		levels:      append([]Dimensions(nil), levels...),
		downsamples: append([]float64(nil), downsamples...),
	}
	g.downsamples[0] = 1.0
	return g, nil
}

// FromDimensions builds a geometry whose downsamples are inferred from the
// level sizes.
func FromDimensions(levels []Dimensions) (*Geometry, error) {
	ds, err := DownsamplesFromDimensions(levels)
	if err != nil {
		return nil, err
	}
	return New(levels, ds)
}

// DownsamplesFromDimensions infers each level's downsample as the mean of its
// width and height ratios to level 0.
func DownsamplesFromDimensions(levels []Dimensions) ([]float64, error) {
	if len(levels) == 0 {
		return nil, fmt.Errorf("%w: no levels", ErrInvalidGeometry)
	}
	base := levels[0]
	out := make([]float64, len(levels))
	for i, d := range levels {
		if d.Width <= 0 || d.Height <= 0 {
			return nil, fmt.Errorf("%w: level %d has size %dx%d", ErrInvalidGeometry, i, d.Width, d.Height)
		}
		out[i] = (float64(base.Width)/float64(d.Width) + float64(base.Height)/float64(d.Height)) / 2
	}
	out[0] = 1.0
	return out, nil
}

// LevelCount returns the number of levels, always at least 1.
func (g *Geometry) LevelCount() int { return len(g.levels) }

// Dimensions returns the level 0 size.
func (g *Geometry) Dimensions() Dimensions { return g.levels[0] }

// LevelDimensions returns a copy of the per-level sizes.
func (g *Geometry) LevelDimensions() []Dimensions {
	return append([]Dimensions(nil), g.levels...)
}

// LevelDownsamples returns a copy of the per-level downsample factors.
func (g *Geometry) LevelDownsamples() []float64 {
	return append([]float64(nil), g.downsamples...)
}

// Level returns the size and downsample of one level.
func (g *Geometry) Level(level int) (Dimensions, float64, error) {
	if err := g.CheckLevel(level); err != nil {
		return Dimensions{}, 0, err
	}
	return g.levels[level], g.downsamples[level], nil
}

// CheckLevel returns an error wrapping ErrInvalidLevel if level is outside
// [0, LevelCount).
func (g *Geometry) CheckLevel(level int) error {
	if level < 0 || level >= len(g.levels) {
		return fmt.Errorf("%w: %d (slide has %d levels)", ErrInvalidLevel, level, len(g.levels))
	}
	return nil
}

// BestLevelForDownsample returns the most detailed level whose downsample
// does not exceed target. Targets below every level map to level 0; targets
// beyond the coarsest level map to the coarsest level.
func (g *Geometry) BestLevelForDownsample(target float64) int {
	if math.IsNaN(target) || target <= 1.0 {
		return 0
	}
	best := 0
	for level, ds := range g.downsamples {
		if ds <= target+downsampleEpsilon {
			best = level
		}
	}
	return best
}

// ToLevelNative converts a level 0 coordinate into the pixel grid of level,
// rounding down. Negative coordinates fail with ErrOutOfBounds.
func (g *Geometry) ToLevelNative(p Point, level int) (Point, error) {
	return g.convert(p, level, func(v, ds float64) float64 { return math.Floor(v / ds) })
}

// ToLevel0 converts a level-native coordinate back to level 0, rounding to
// the nearest pixel. Negative coordinates, and results too large for int64,
// fail with ErrOutOfBounds.
func (g *Geometry) ToLevel0(p Point, level int) (Point, error) {
	return g.convert(p, level, func(v, ds float64) float64 { return math.Round(v * ds) })
}

func (g *Geometry) convert(p Point, level int, f func(v, ds float64) float64) (Point, error) {
	if err := g.CheckLevel(level); err != nil {
		return Point{}, err
	}
	if p.X < 0 || p.Y < 0 {
		return Point{}, fmt.Errorf("%w: negative coordinate (%d,%d)", ErrOutOfBounds, p.X, p.Y)
	}
	if level == 0 {
		return p, nil
	}
	ds := g.downsamples[level]
	x, okX := toCoordinate(f(float64(p.X), ds))
	y, okY := toCoordinate(f(float64(p.Y), ds))
	if !okX || !okY {
		return Point{}, fmt.Errorf("%w: (%d,%d) on level %d does not fit in int64", ErrOutOfBounds, p.X, p.Y, level)
	}
	return Point{X: x, Y: y}, nil
}

// toCoordinate converts v to int64, reporting false when v is not in
// [0, MaxInt64].
func toCoordinate(v float64) (int64, bool) {
	// 1<<63 is the first float64 past MaxInt64.
	if math.IsNaN(v) || v < 0 || v >= 1<<63 {
		return 0, false
	}
	return int64(v), true
}

// RoundTripTolerance is the largest per-axis error a level 0 -> native ->
// level 0 conversion may introduce at level.
func (g *Geometry) RoundTripTolerance(level int) (int64, error) {
	if err := g.CheckLevel(level); err != nil {
		return 0, err
	}
	tol := int64(math.Floor(g.downsamples[level]))
	if tol < 1 {
		tol = 1
	}
	return tol, nil
}
