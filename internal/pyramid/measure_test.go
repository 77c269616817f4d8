package pyramid

import (
	"math"
	"testing"
)

func TestMeasure(t *testing.T) {
	g, err := FromDimensions([]Dimensions{{Width: 1000, Height: 500}, {Width: 500, Height: 250}})
	if err != nil {
		t.Fatalf("FromDimensions failed: %v", err)
	}

	tests := []struct {
		name         string
		a, b         Point
		wantDistance float64
		wantDeltaX   int64
		wantDeltaY   int64
		wantAngle    float64
	}{
		{"horizontal right", Point{0, 50}, Point{100, 50}, 100, 100, 0, 0},
		{"horizontal left", Point{100, 50}, Point{0, 50}, 100, -100, 0, 180},
		{"vertical down", Point{50, 0}, Point{50, 100}, 100, 0, 100, 90},
		{"vertical up", Point{50, 100}, Point{50, 0}, 100, 0, -100, -90},
		{"diagonal", Point{0, 0}, Point{100, 100}, 141.42, 100, 100, 45},
		{"same point", Point{50, 50}, Point{50, 50}, 0, 0, 0, 0},
		{"3-4-5 triangle", Point{0, 0}, Point{3, 4}, 5, 3, 4, 53.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := g.Measure(tt.a, tt.b, 0, 0)

			if d.DeltaX != tt.wantDeltaX {
				t.Errorf("DeltaX: got %d, want %d", d.DeltaX, tt.wantDeltaX)
			}
			if d.DeltaY != tt.wantDeltaY {
				t.Errorf("DeltaY: got %d, want %d", d.DeltaY, tt.wantDeltaY)
			}
			if math.Abs(d.DistancePixels-tt.wantDistance) > 0.1 {
				t.Errorf("DistancePixels: got %.2f, want %.2f", d.DistancePixels, tt.wantDistance)
			}
			if math.Abs(d.AngleDegrees-tt.wantAngle) > 0.5 {
				t.Errorf("AngleDegrees: got %.1f, want %.1f", d.AngleDegrees, tt.wantAngle)
			}
			if d.DistanceMicrons != nil {
				t.Error("DistanceMicrons should be unset when the pixel size is unknown")
			}
		})
	}
}

func TestMeasure_PercentAndMicrons(t *testing.T) {
	g, err := FromDimensions([]Dimensions{{Width: 1000, Height: 500}})
	if err != nil {
		t.Fatalf("FromDimensions failed: %v", err)
	}

	d := g.Measure(Point{0, 0}, Point{300, 400}, 0.25, 0.5)

	if d.PercentWidth != 50 {
		t.Errorf("PercentWidth: got %.1f, want 50", d.PercentWidth)
	}
	if d.PercentHeight != 100 {
		t.Errorf("PercentHeight: got %.1f, want 100", d.PercentHeight)
	}
	if d.DistanceMicrons == nil {
		t.Fatal("DistanceMicrons should be set")
	}
	// hypot(300*0.25, 400*0.5) = hypot(75, 200)
	want := math.Round(math.Hypot(75, 200)*100) / 100
	if *d.DistanceMicrons != want {
		t.Errorf("DistanceMicrons: got %.2f, want %.2f", *d.DistanceMicrons, want)
	}
}
