package imaging

import (
	"image"
	"image/color"
	"testing"
)

// createInMemoryImage creates an in-memory test image
func createInMemoryImage(width, height int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// createPatternImage creates an image with different colors in each quadrant
func createPatternImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var c color.Color
			if x < width/2 && y < height/2 {
				c = color.RGBA{255, 0, 0, 255} // Red top-left
			} else if x >= width/2 && y < height/2 {
				c = color.RGBA{0, 255, 0, 255} // Green top-right
			} else if x < width/2 && y >= height/2 {
				c = color.RGBA{0, 0, 255, 255} // Blue bottom-left
			} else {
				c = color.RGBA{255, 255, 255, 255} // White bottom-right
			}
			img.Set(x, y, c)
		}
	}
	return img
}

func TestSampleColor(t *testing.T) {
	img := createInMemoryImage(100, 100, color.RGBA{255, 128, 64, 255})

	result, err := SampleColor(img, 50, 50)
	if err != nil {
		t.Fatalf("SampleColor failed: %v", err)
	}

	if result.Hex != "#ff8040" {
		t.Errorf("Hex: got %s, want #ff8040", result.Hex)
	}
	if result.RGB.R != 255 || result.RGB.G != 128 || result.RGB.B != 64 {
		t.Errorf("RGB: got (%d,%d,%d), want (255,128,64)", result.RGB.R, result.RGB.G, result.RGB.B)
	}
}

func TestSampleColor_KnownColors(t *testing.T) {
	tests := []struct {
		name    string
		color   color.RGBA
		wantHex string
		wantHSL HSLColor
	}{
		{"pure red", color.RGBA{255, 0, 0, 255}, "#ff0000", HSLColor{0, 100, 50}},
		{"pure green", color.RGBA{0, 255, 0, 255}, "#00ff00", HSLColor{120, 100, 50}},
		{"pure blue", color.RGBA{0, 0, 255, 255}, "#0000ff", HSLColor{240, 100, 50}},
		{"white", color.RGBA{255, 255, 255, 255}, "#ffffff", HSLColor{0, 0, 100}},
		{"black", color.RGBA{0, 0, 0, 255}, "#000000", HSLColor{0, 0, 0}},
		{"gray", color.RGBA{128, 128, 128, 255}, "#808080", HSLColor{0, 0, 50}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := createInMemoryImage(10, 10, tt.color)
			result, err := SampleColor(img, 5, 5)
			if err != nil {
				t.Fatalf("SampleColor failed: %v", err)
			}

			if result.Hex != tt.wantHex {
				t.Errorf("Hex: got %s, want %s", result.Hex, tt.wantHex)
			}
			if abs(result.HSL.H-tt.wantHSL.H) > 1 || abs(result.HSL.S-tt.wantHSL.S) > 1 || abs(result.HSL.L-tt.wantHSL.L) > 1 {
				t.Errorf("HSL: got %+v, want %+v", result.HSL, tt.wantHSL)
			}
		})
	}
}

func TestSampleColor_TransparentOverWhite(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	img.SetNRGBA(0, 0, color.NRGBA{0, 0, 0, 0})

	result, err := SampleColor(img, 0, 0)
	if err != nil {
		t.Fatalf("SampleColor failed: %v", err)
	}
	if result.Hex != "#ffffff" {
		t.Errorf("transparent pixel: got %s, want #ffffff", result.Hex)
	}
}

func TestSampleColor_RGBImage(t *testing.T) {
	img := FromImage(createPatternImage(10, 10))

	result, err := SampleColor(img, 8, 2)
	if err != nil {
		t.Fatalf("SampleColor failed: %v", err)
	}
	if result.Hex != "#00ff00" {
		t.Errorf("Hex: got %s, want #00ff00", result.Hex)
	}
}

func TestSampleColor_OutOfBounds(t *testing.T) {
	img := createInMemoryImage(100, 100, color.RGBA{255, 0, 0, 255})

	tests := []struct {
		name string
		x, y int
	}{
		{"negative x", -1, 50},
		{"negative y", 50, -1},
		{"x too large", 100, 50},
		{"y too large", 50, 100},
		{"both too large", 100, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SampleColor(img, tt.x, tt.y)
			if err == nil {
				t.Error("SampleColor should fail for out-of-bounds coordinates")
			}
		})
	}
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		input   string
		want    RGBColor
		wantErr bool
	}{
		{"#ff8040", RGBColor{255, 128, 64}, false},
		{"#FFFFFF", RGBColor{255, 255, 255}, false},
		{"#f00", RGBColor{255, 0, 0}, false},
		{"ff8040", RGBColor{}, true},
		{"#zzzzzz", RGBColor{}, true},
		{"", RGBColor{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseHexColor(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseHexColor(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err == nil && got.RGB != tt.want {
				t.Errorf("ParseHexColor(%q) = %+v, want %+v", tt.input, got.RGB, tt.want)
			}
		})
	}
}

func TestDominantColors(t *testing.T) {
	img := createPatternImage(100, 100)

	result, err := DominantColors(img, 4)
	if err != nil {
		t.Fatalf("DominantColors failed: %v", err)
	}

	if len(result.Colors) != 4 {
		t.Fatalf("expected 4 colors, got %d", len(result.Colors))
	}
	for _, c := range result.Colors {
		if c.Percentage != 25 {
			t.Errorf("color %s: got %.2f%%, want 25%%", c.Hex, c.Percentage)
		}
	}
}

func TestDominantColors_Ordering(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			c := color.RGBA{255, 255, 255, 255}
			if x < 3 {
				c = color.RGBA{0, 0, 0, 255}
			}
			img.Set(x, y, c)
		}
	}

	result, err := DominantColors(img, 1)
	if err != nil {
		t.Fatalf("DominantColors failed: %v", err)
	}
	if len(result.Colors) != 1 {
		t.Fatalf("expected 1 color, got %d", len(result.Colors))
	}
	// 255 quantizes to 240
	if result.Colors[0].Hex != "#f0f0f0" || result.Colors[0].Percentage != 70 {
		t.Errorf("got %+v, want #f0f0f0 at 70%%", result.Colors[0])
	}
}

func TestDominantColors_InvalidCount(t *testing.T) {
	img := createInMemoryImage(4, 4, color.Black)
	if _, err := DominantColors(img, 0); err == nil {
		t.Error("DominantColors should fail for count 0")
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func TestColorDistance(t *testing.T) {
	red, _ := ParseHexColor("#ff0000")
	red2, _ := ParseHexColor("#fe0000")
	blue, _ := ParseHexColor("#0000ff")

	if d := ColorDistance(red, red); d != 0 {
		t.Errorf("identical colors: got %v, want 0", d)
	}
	if d := ColorDistance(red, red2); d > 2 {
		t.Errorf("near-identical colors: got %v, want < 2", d)
	}
	if d := ColorDistance(red, blue); d < 10 {
		t.Errorf("red vs blue: got %v, want a large difference", d)
	}
	if ColorDistance(red, blue) != ColorDistance(blue, red) {
		t.Error("distance should be symmetric")
	}
}
