package pyramid

import (
	"errors"
	"math"
	"testing"
)

// standardGeometry mirrors a typical 4-level slide halving at each level.
func standardGeometry(t *testing.T) *Geometry {
	t.Helper()
	g, err := New(
		[]Dimensions{{8000, 6000}, {4000, 3000}, {2000, 1500}, {1000, 750}},
		[]float64{1, 2, 4, 8},
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return g
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		levels      []Dimensions
		downsamples []float64
		wantErr     bool
	}{
		{"single level", []Dimensions{{100, 100}}, []float64{1}, false},
		{"two levels", []Dimensions{{100, 100}, {50, 50}}, []float64{1, 2}, false},
		{"no levels", nil, nil, true},
		{"length mismatch", []Dimensions{{100, 100}, {50, 50}}, []float64{1}, true},
		{"zero width", []Dimensions{{0, 100}}, []float64{1}, true},
		{"growing level", []Dimensions{{100, 100}, {200, 50}}, []float64{1, 2}, true},
		{"level 0 downsample", []Dimensions{{100, 100}}, []float64{2}, true},
		{"decreasing downsample", []Dimensions{{100, 100}, {50, 50}, {25, 25}}, []float64{1, 4, 2}, true},
		{"negative downsample", []Dimensions{{100, 100}, {50, 50}}, []float64{1, -2}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.levels, tt.downsamples)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidGeometry) {
				t.Errorf("expected ErrInvalidGeometry, got %v", err)
			}
		})
	}
}

func TestGeometry_Invariants(t *testing.T) {
	g := standardGeometry(t)

	dims := g.LevelDimensions()
	ds := g.LevelDownsamples()

	if len(dims) != g.LevelCount() || len(ds) != g.LevelCount() {
		t.Fatalf("sequences not aligned with level count %d: %d dims, %d downsamples",
			g.LevelCount(), len(dims), len(ds))
	}
	if dims[0] != g.Dimensions() {
		t.Errorf("level 0 dims = %v, want %v", dims[0], g.Dimensions())
	}
	if ds[0] != 1.0 {
		t.Errorf("level 0 downsample = %v, want 1.0", ds[0])
	}
	for i := 1; i < len(dims); i++ {
		if dims[i].Width > dims[i-1].Width || dims[i].Height > dims[i-1].Height {
			t.Errorf("level %d dims %v larger than level %d dims %v", i, dims[i], i-1, dims[i-1])
		}
		if ds[i] < ds[i-1] {
			t.Errorf("level %d downsample %v smaller than level %d downsample %v", i, ds[i], i-1, ds[i-1])
		}
	}
}

func TestGeometry_AccessorsReturnCopies(t *testing.T) {
	g := standardGeometry(t)

	dims := g.LevelDimensions()
	dims[0].Width = 1
	ds := g.LevelDownsamples()
	ds[1] = 99

	if g.Dimensions().Width != 8000 {
		t.Error("mutating LevelDimensions result changed the geometry")
	}
	if g.LevelDownsamples()[1] != 2 {
		t.Error("mutating LevelDownsamples result changed the geometry")
	}
}

func TestBestLevelForDownsample(t *testing.T) {
	g := standardGeometry(t)

	tests := []struct {
		target float64
		want   int
	}{
		{0.25, 0},
		{1.0, 0},
		{1.5, 0},
		{2.0, 1},
		{3.9, 1},
		{4.0, 2},
		{7.99, 2},
		{8.0, 3},
		{64.0, 3},
	}

	for _, tt := range tests {
		got := g.BestLevelForDownsample(tt.target)
		if got != tt.want {
			t.Errorf("BestLevelForDownsample(%v) = %d, want %d", tt.target, got, tt.want)
		}
		// Loose sanity bound for dense level spacing
		if tt.target >= 1 && g.LevelDownsamples()[got] > tt.target*2 {
			t.Errorf("BestLevelForDownsample(%v) picked downsample %v above 2x target",
				tt.target, g.LevelDownsamples()[got])
		}
	}
}

func TestBestLevelForDownsample_InferredNoise(t *testing.T) {
	// Odd sizes make the inferred downsample slightly off from 2.0
	g, err := FromDimensions([]Dimensions{{1001, 999}, {500, 499}})
	if err != nil {
		t.Fatalf("FromDimensions failed: %v", err)
	}
	ds := g.LevelDownsamples()[1]
	if got := g.BestLevelForDownsample(ds); got != 1 {
		t.Errorf("BestLevelForDownsample(%v) = %d, want 1", ds, got)
	}
}

func TestConversions_Level0Identity(t *testing.T) {
	g := standardGeometry(t)
	points := []Point{{0, 0}, {1, 1}, {7999, 5999}, {1234, 567}}

	for _, p := range points {
		native, err := g.ToLevelNative(p, 0)
		if err != nil {
			t.Fatalf("ToLevelNative failed: %v", err)
		}
		if native != p {
			t.Errorf("ToLevelNative(%v, 0) = %v, want identity", p, native)
		}
		back, err := g.ToLevel0(p, 0)
		if err != nil {
			t.Fatalf("ToLevel0 failed: %v", err)
		}
		if back != p {
			t.Errorf("ToLevel0(%v, 0) = %v, want identity", p, back)
		}
	}
}

func TestConversions_Values(t *testing.T) {
	g := standardGeometry(t)

	native, err := g.ToLevelNative(Point{X: 1001, Y: 15}, 2)
	if err != nil {
		t.Fatalf("ToLevelNative failed: %v", err)
	}
	if native != (Point{X: 250, Y: 3}) {
		t.Errorf("ToLevelNative = %v, want {250 3}", native)
	}

	level0, err := g.ToLevel0(Point{X: 250, Y: 3}, 2)
	if err != nil {
		t.Fatalf("ToLevel0 failed: %v", err)
	}
	if level0 != (Point{X: 1000, Y: 12}) {
		t.Errorf("ToLevel0 = %v, want {1000 12}", level0)
	}
}

func TestConversions_RoundTripTolerance(t *testing.T) {
	geometries := map[string]*Geometry{"standard": standardGeometry(t)}
	inferred, err := FromDimensions([]Dimensions{{10007, 7919}, {5003, 3959}, {1250, 989}})
	if err != nil {
		t.Fatalf("FromDimensions failed: %v", err)
	}
	geometries["inferred"] = inferred

	for name, g := range geometries {
		t.Run(name, func(t *testing.T) {
			for level := 0; level < g.LevelCount(); level++ {
				tol, err := g.RoundTripTolerance(level)
				if err != nil {
					t.Fatalf("RoundTripTolerance failed: %v", err)
				}
				for x := int64(0); x < 2000; x += 37 {
					p := Point{X: x, Y: x / 2}
					native, err := g.ToLevelNative(p, level)
					if err != nil {
						t.Fatalf("ToLevelNative failed: %v", err)
					}
					back, err := g.ToLevel0(native, level)
					if err != nil {
						t.Fatalf("ToLevel0 failed: %v", err)
					}
					if abs(back.X-p.X) > tol || abs(back.Y-p.Y) > tol {
						t.Errorf("level %d: %v -> %v -> %v exceeds tolerance %d", level, p, native, back, tol)
					}
				}
			}
		})
	}
}

func TestConversions_OutOfRange(t *testing.T) {
	g := standardGeometry(t)

	tests := []struct {
		name  string
		p     Point
		level int
		fn    func(Point, int) (Point, error)
	}{
		{"to level 0 overflows", Point{X: math.MaxInt64 / 2, Y: 1}, 2, g.ToLevel0},
		{"to level 0 overflows y", Point{X: 1, Y: math.MaxInt64 / 2}, 3, g.ToLevel0},
		{"to level 0 negative", Point{X: -1, Y: 0}, 1, g.ToLevel0},
		{"to native negative", Point{X: 0, Y: -8}, 2, g.ToLevelNative},
		{"negative on level 0", Point{X: -1, Y: -1}, 0, g.ToLevel0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := tt.fn(tt.p, tt.level)
			if !errors.Is(err, ErrOutOfBounds) {
				t.Fatalf("got %v (%v), want ErrOutOfBounds", p, err)
			}
		})
	}

	// The largest level 0 coordinate still maps into every level.
	for level := 0; level < g.LevelCount(); level++ {
		if _, err := g.ToLevelNative(Point{X: math.MaxInt64, Y: math.MaxInt64}, level); err != nil {
			t.Errorf("ToLevelNative(MaxInt64) level %d: %v", level, err)
		}
	}
}

func TestInvalidLevel(t *testing.T) {
	g := standardGeometry(t)

	for _, level := range []int{-1, 4, 100} {
		if _, err := g.ToLevelNative(Point{}, level); !errors.Is(err, ErrInvalidLevel) {
			t.Errorf("ToLevelNative level %d: expected ErrInvalidLevel, got %v", level, err)
		}
		if _, err := g.ToLevel0(Point{}, level); !errors.Is(err, ErrInvalidLevel) {
			t.Errorf("ToLevel0 level %d: expected ErrInvalidLevel, got %v", level, err)
		}
		if _, _, err := g.Level(level); !errors.Is(err, ErrInvalidLevel) {
			t.Errorf("Level %d: expected ErrInvalidLevel, got %v", level, err)
		}
		if _, err := g.RoundTripTolerance(level); !errors.Is(err, ErrInvalidLevel) {
			t.Errorf("RoundTripTolerance %d: expected ErrInvalidLevel, got %v", level, err)
		}
		if err := g.ValidateRegion(Region{Level: level, Width: 1, Height: 1}); !errors.Is(err, ErrInvalidLevel) {
			t.Errorf("ValidateRegion level %d: expected ErrInvalidLevel, got %v", level, err)
		}
	}
}

func TestDownsamplesFromDimensions(t *testing.T) {
	ds, err := DownsamplesFromDimensions([]Dimensions{{1000, 800}, {500, 400}, {250, 100}})
	if err != nil {
		t.Fatalf("DownsamplesFromDimensions failed: %v", err)
	}
	want := []float64{1, 2, 6}
	for i := range want {
		if ds[i] != want[i] {
			t.Errorf("downsample[%d] = %v, want %v", i, ds[i], want[i])
		}
	}

	if _, err := DownsamplesFromDimensions(nil); !errors.Is(err, ErrInvalidGeometry) {
		t.Errorf("expected ErrInvalidGeometry for no levels, got %v", err)
	}
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
