// Package imaging provides the pixel-level building blocks of the slide server.
//
// It contains the packed RGB raster type returned by region reads, the
// built-in raster slide format that serves ordinary image files as pyramids,
// PNG encoding of regions for transport, and color sampling.
//
// # Coordinate System
//
// All pixel coordinates in this package are 0-based with the origin at the
// top-left corner; X increases rightward and Y increases downward.
//
// # Raster Slides
//
// OpenRaster decodes the whole file once (PNG, JPEG, GIF, TIFF or BMP, with
// EXIF orientation applied) and builds lower-resolution levels by halving
// until the shorter side would drop below RasterOptions.MinLevelSize. Two
// associated images may be present: "thumbnail", generated on demand from
// the coarsest level, and "label", read from a <name>.label.<ext> file next
// to the slide.
//
// # Color Representation
//
// Colors are reported as lower-case hex "#rrggbb", 8-bit RGB and HSL with
// hue in degrees and saturation/lightness in percent. Alpha is composited
// over white everywhere, since slide backgrounds are white.
//
// # Thread Safety
//
// RGBImage values are not synchronized; callers that share one must not
// mutate it. A Raster serves concurrent reads, but Close must not overlap
// them; the slide package guarantees this.
package imaging
