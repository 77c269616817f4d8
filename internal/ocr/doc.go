// Package ocr reads printed text from slide label images using Tesseract.
//
// Slide labels usually carry a case number, a stain name and a barcode
// caption. ReadText recognizes the text of a whole image and ReadTextRegion
// restricts recognition to a rectangle, reporting word boxes in the
// coordinates of the original image.
//
// # Build Requirements
//
// With cgo enabled the package binds libtesseract through gosseract/v2, so
// the Tesseract headers and libraries must be installed:
//   - Ubuntu/Debian: apt-get install libtesseract-dev tesseract-ocr-eng
//   - macOS: brew install tesseract
//
// Builds without cgo, or with the notesseract build tag, compile a stub
// whose functions fail with ErrUnavailable. Info reports which one is in
// use.
//
// # Languages
//
// The default language is English ("eng"). Any installed Tesseract language
// code may be passed in Options.Language, and several can be combined with
// "+", e.g. "eng+deu".
package ocr
