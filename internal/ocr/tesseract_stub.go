//go:build !cgo || notesseract

package ocr

import "image"

// ReadText fails with ErrUnavailable in builds without Tesseract.
func ReadText(image.Image, Options) (*Result, error) {
	return nil, ErrUnavailable
}

// ReadTextRegion validates rect, then fails with ErrUnavailable.
func ReadTextRegion(img image.Image, rect image.Rectangle, _ Options) (*Result, error) {
	if _, err := clampRect(img, rect); err != nil {
		return nil, err
	}
	return nil, ErrUnavailable
}

// Info reports that no OCR backend is compiled in.
func Info() EngineInfo {
	return EngineInfo{Backend: "none"}
}
