package config

import (
	"github.com/ironsheep/slide-tools-mcp/internal/imaging"
	"github.com/ironsheep/slide-tools-mcp/internal/logging"
	"github.com/ironsheep/slide-tools-mcp/internal/ocr"
	"github.com/ironsheep/slide-tools-mcp/internal/slide"
)

// Logging returns the logging configuration. Output is left nil so the
// logger writes to stderr.
func (c *Config) Logging() logging.Config {
	return logging.Config{
		Level:  c.Log.Level,
		Format: c.Log.Format,
		Caller: c.Log.Caller,
	}
}

// RasterOptions returns the raster format options.
func (c *Config) RasterOptions() imaging.RasterOptions {
	return imaging.RasterOptions{
		MinLevelSize:  c.Slide.Raster.MinLevelSize,
		MPP:           c.Slide.Raster.MPP,
		ThumbnailSize: c.Slide.Raster.ThumbnailSize,
	}
}

// KeyScope returns the parsed cache key scope. Validate has already
// restricted the value, so parse errors fall back to session scope.
func (c *Config) KeyScope() slide.KeyScope {
	scope, _ := slide.ParseKeyScope(c.Slide.KeyScope)
	return scope
}

// OCROptions returns the label OCR options.
func (c *Config) OCROptions() ocr.Options {
	return ocr.Options{
		Language:       c.OCR.Language,
		TessdataPrefix: c.OCR.TessdataPrefix,
	}
}
