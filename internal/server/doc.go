// Package server implements the MCP (Model Context Protocol) server for
// whole-slide image tools.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Session lifecycle:
//   - slide_open: Open a slide and get a session_id
//   - slide_close: Close a session
//   - slide_sessions: List open sessions
//   - slide_info: Properties, levels, fingerprint and cache status
//
// Pyramid navigation:
//   - slide_read_region: Read a level-native rectangle as PNG
//   - slide_best_level: Pick a level for a downsample factor
//   - slide_convert_coordinates: Level 0 <-> level-native conversion
//   - slide_measure_distance: Pixel and micron distance between two points
//
// Associated images:
//   - slide_associated_images: List names and sizes without decoding
//   - slide_associated_image: Decode one as PNG
//   - slide_label_text: OCR of the label image
//
// Color:
//   - slide_sample_color: Color at a pixel
//   - slide_dominant_colors: Palette of a region
//
// Region cache:
//   - cache_stats, cache_resize, cache_clear: Global or per-session cache
//
// # Sessions
//
// Each slide_open creates a slide.Session kept until slide_close or until
// stdin closes. Sessions attach the global region cache by default; a
// private cache or none can be requested per session.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: {"kind": ..., "message": ...} where kind names the error, e.g.
//     closed, invalid_level, out_of_bounds, invalid_capacity
//
// # Usage
//
//	srv := server.New(cfg, version)
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
