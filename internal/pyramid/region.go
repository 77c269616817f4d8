package pyramid

import "fmt"

// Region is a rectangle in the pixel grid of one level.
type Region struct {
	Level  int   `json:"level"`
	X      int64 `json:"x"`
	Y      int64 `json:"y"`
	Width  int   `json:"width"`
	Height int   `json:"height"`
}

// RGBSize returns the byte length of the region decoded as packed RGB8.
func (r Region) RGBSize() int {
	return r.Width * r.Height * 3
}

// RegionError reports a region rejected by ValidateRegion.
// It wraps ErrInvalidSize or ErrOutOfBounds.
type RegionError struct {
	Region Region
	Level  Dimensions
	Err    error
}

func (e *RegionError) Error() string {
	r := e.Region
	return fmt.Sprintf("%v: %dx%d at (%d,%d) on level %d (%dx%d)",
		e.Err, r.Width, r.Height, r.X, r.Y, r.Level, e.Level.Width, e.Level.Height)
}

func (e *RegionError) Unwrap() error {
	return e.Err
}

// ValidateRegion checks r against the geometry in order: level, size, then
// bounds. Negative origins are out of bounds.
func (g *Geometry) ValidateRegion(r Region) error {
	if err := g.CheckLevel(r.Level); err != nil {
		return err
	}
	dims := g.levels[r.Level]
	if r.Width <= 0 || r.Height <= 0 {
		return &RegionError{Region: r, Level: dims, Err: ErrInvalidSize}
	}
	// Subtract from the extent so huge origins cannot wrap the sum.
	if r.X < 0 || r.Y < 0 ||
		r.X > dims.Width-int64(r.Width) ||
		r.Y > dims.Height-int64(r.Height) {
		return &RegionError{Region: r, Level: dims, Err: ErrOutOfBounds}
	}
	return nil
}
