package ocr

import (
	"errors"
	"image"
	"strings"
)

// DefaultLanguage is used when Options.Language is empty.
const DefaultLanguage = "eng"

// ErrUnavailable is returned when the binary was built without Tesseract.
var ErrUnavailable = errors.New("OCR is not available in this build")

// ErrEmptyRegion is returned when a requested region has no pixels after
// clamping to the image.
var ErrEmptyRegion = errors.New("OCR region is empty")

// Options configure recognition.
type Options struct {
	// Language is a Tesseract language code such as "eng" or "eng+deu".
	Language string

	// TessdataPrefix overrides the directory holding *.traineddata files.
	// Empty uses the Tesseract default.
	TessdataPrefix string
}

func (o Options) language() string {
	if l := strings.TrimSpace(o.Language); l != "" {
		return l
	}
	return DefaultLanguage
}

// Bounds represents a rectangular bounding box in pixel coordinates.
type Bounds struct {
	X1 int `json:"x1"` // Left edge
	Y1 int `json:"y1"` // Top edge
	X2 int `json:"x2"` // Right edge
	Y2 int `json:"y2"` // Bottom edge
}

// Word is one recognized word with its location and confidence.
type Word struct {
	Text string `json:"text"`

	// Confidence is between 0.0 and 1.0.
	Confidence float64 `json:"confidence"`

	Bounds Bounds `json:"bounds"`
}

// Result contains the recognized text of an image.
type Result struct {
	// Text is all recognized text with the engine's spacing and newlines.
	Text string `json:"text"`

	// Words may be empty even when Text is not, if the engine could not
	// report word boxes.
	Words []Word `json:"words"`

	Language string `json:"language"`
}

// Lines returns the non-empty trimmed lines of Text.
func (r *Result) Lines() []string {
	var lines []string
	for _, l := range strings.Split(r.Text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// EngineInfo describes the OCR backend compiled into the binary.
type EngineInfo struct {
	Available bool   `json:"available"`
	Backend   string `json:"backend"`
	Version   string `json:"version,omitempty"`
}

// clampRect intersects r with the image bounds.
func clampRect(img image.Image, r image.Rectangle) (image.Rectangle, error) {
	r = r.Canon().Intersect(img.Bounds())
	if r.Empty() {
		return r, ErrEmptyRegion
	}
	return r, nil
}

// offset shifts word boxes found in a crop back to image coordinates.
func offset(words []Word, origin image.Point) {
	for i := range words {
		words[i].Bounds.X1 += origin.X
		words[i].Bounds.Y1 += origin.Y
		words[i].Bounds.X2 += origin.X
		words[i].Bounds.Y2 += origin.Y
	}
}
