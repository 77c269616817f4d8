package pyramid

import "math"

// Distance describes the segment between two level 0 points.
type Distance struct {
	DeltaX         int64   `json:"delta_x"`
	DeltaY         int64   `json:"delta_y"`
	DistancePixels float64 `json:"distance_pixels"`
	AngleDegrees   float64 `json:"angle_degrees"` // 0 = right, 90 = down

	// DistanceMicrons is set only when the pixel size is known.
	DistanceMicrons *float64 `json:"distance_microns,omitempty"`

	PercentWidth  float64 `json:"percent_width"`
	PercentHeight float64 `json:"percent_height"`
}

// Measure returns the distance from a to b. mppX and mppY are microns per
// level 0 pixel; zero means unknown.
func (g *Geometry) Measure(a, b Point, mppX, mppY float64) Distance {
	dx := b.X - a.X
	dy := b.Y - a.Y
	fx, fy := float64(dx), float64(dy)

	pixels := math.Hypot(fx, fy)
	angle := math.Atan2(fy, fx) * 180 / math.Pi
	dims := g.Dimensions()

	d := Distance{
		DeltaX:         dx,
		DeltaY:         dy,
		DistancePixels: math.Round(pixels*100) / 100,
		AngleDegrees:   math.Round(angle*10) / 10,
		PercentWidth:   math.Round(pixels/float64(dims.Width)*1000) / 10,
		PercentHeight:  math.Round(pixels/float64(dims.Height)*1000) / 10,
	}
	if mppX > 0 && mppY > 0 {
		um := math.Round(math.Hypot(fx*mppX, fy*mppY)*100) / 100
		d.DistanceMicrons = &um
	}
	return d
}
