//go:build cgo && !notesseract

package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
)

// ReadText recognizes all text in img.
func ReadText(img image.Image, opts Options) (*Result, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image for OCR: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if opts.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(opts.TessdataPrefix); err != nil {
			return nil, fmt.Errorf("failed to set tessdata path: %w", err)
		}
	}
	lang := opts.language()
	if err := client.SetLanguage(lang); err != nil {
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return nil, fmt.Errorf("OCR failed: %w", err)
	}

	// Word boxes are best effort; the text alone is still useful.
	words := []Word{}
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err == nil {
		for _, box := range boxes {
			if box.Word == "" {
				continue
			}
			words = append(words, Word{
				Text:       box.Word,
				Confidence: float64(box.Confidence) / 100.0,
				Bounds: Bounds{
					X1: box.Box.Min.X,
					Y1: box.Box.Min.Y,
					X2: box.Box.Max.X,
					Y2: box.Box.Max.Y,
				},
			})
		}
	}

	return &Result{Text: text, Words: words, Language: lang}, nil
}

// ReadTextRegion recognizes text inside rect, which is clamped to the image.
// Word bounds are reported in img's coordinates.
func ReadTextRegion(img image.Image, rect image.Rectangle, opts Options) (*Result, error) {
	rect, err := clampRect(img, rect)
	if err != nil {
		return nil, err
	}

	result, err := ReadText(imaging.Crop(img, rect), opts)
	if err != nil {
		return nil, err
	}
	offset(result.Words, rect.Min)
	return result, nil
}

// Info reports the linked Tesseract version.
func Info() EngineInfo {
	client := gosseract.NewClient()
	defer client.Close()
	return EngineInfo{
		Available: true,
		Backend:   "gosseract",
		Version:   client.Version(),
	}
}
