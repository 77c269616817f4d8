package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func prop(typ, description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        typ,
		"description": description,
	}
}

func objectSchema(properties map[string]interface{}, required ...string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

var sessionIDProp = prop("string", "Session ID returned by slide_open")

// regionProps describes a level-native rectangle.
func regionProps() map[string]interface{} {
	return map[string]interface{}{
		"session_id": sessionIDProp,
		"level":      prop("integer", "Pyramid level (0 is full resolution)"),
		"x":          prop("integer", "Left edge in level-native pixels"),
		"y":          prop("integer", "Top edge in level-native pixels"),
		"width":      prop("integer", "Region width in pixels (> 0)"),
		"height":     prop("integer", "Region height in pixels (> 0)"),
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	readRegion := regionProps()
	readRegion["scale"] = map[string]interface{}{
		"type":        "number",
		"description": "Optional output scale factor (e.g., 0.5 to halve). Default 1.0",
		"default":     1.0,
	}

	dominant := regionProps()
	dominant["count"] = map[string]interface{}{
		"type":        "integer",
		"description": "Number of colors to return. Default 5",
		"default":     5,
	}

	return []Tool{
		// Session lifecycle
		{
			Name:        "slide_open",
			Description: "Open a slide file and return its pyramid geometry, physical pixel size and associated image names. Returns a session_id used by every other slide tool.",
			InputSchema: objectSchema(map[string]interface{}{
				"path": prop("string", "Absolute path to the slide file"),
				"cache": map[string]interface{}{
					"type":        "string",
					"description": "Region cache to attach: global (shared by all sessions), private (owned by this session) or none",
					"enum":        []string{cacheGlobal, cachePrivate, cacheNone},
				},
				"cache_capacity": prop("integer", "Capacity of a private cache. Default 256"),
				"key_scope": map[string]interface{}{
					"type":        "string",
					"description": "Cache key scope: session (entries private to this session) or source (shared by sessions over the same file)",
					"enum":        []string{"session", "source"},
				},
			}, "path"),
		},
		{
			Name:        "slide_close",
			Description: "Close a slide session and release its resources.",
			InputSchema: objectSchema(map[string]interface{}{"session_id": sessionIDProp}, "session_id"),
		},
		{
			Name:        "slide_sessions",
			Description: "List open slide sessions.",
			InputSchema: objectSchema(map[string]interface{}{}),
		},
		{
			Name:        "slide_info",
			Description: "Get slide metadata: properties, pyramid levels, associated images, content fingerprint and cache status.",
			InputSchema: objectSchema(map[string]interface{}{"session_id": sessionIDProp}, "session_id"),
		},

		// Pyramid navigation
		{
			Name:        "slide_read_region",
			Description: "Read a rectangle from one pyramid level and return it as base64-encoded PNG. Coordinates are in the level's own pixel grid.",
			InputSchema: objectSchema(readRegion, "session_id", "level", "x", "y", "width", "height"),
		},
		{
			Name:        "slide_best_level",
			Description: "Find the most detailed pyramid level whose downsample factor does not exceed the requested one.",
			InputSchema: objectSchema(map[string]interface{}{
				"session_id": sessionIDProp,
				"downsample": prop("number", "Target downsample factor (1.0 is full resolution)"),
			}, "session_id", "downsample"),
		},
		{
			Name:        "slide_convert_coordinates",
			Description: "Convert a point between level 0 coordinates and a level's native coordinates.",
			InputSchema: objectSchema(map[string]interface{}{
				"session_id": sessionIDProp,
				"x":          prop("integer", "X coordinate"),
				"y":          prop("integer", "Y coordinate"),
				"level":      prop("integer", "Pyramid level"),
				"direction": map[string]interface{}{
					"type":        "string",
					"description": "to_level converts level 0 to level-native; to_level0 converts back",
					"enum":        []string{"to_level", "to_level0"},
				},
			}, "session_id", "x", "y", "level", "direction"),
		},

		{
			Name:        "slide_measure_distance",
			Description: "Measure the distance between two points in pixels and, when the pixel size is known, in microns. Returns deltas, angle, and the distance as a percentage of the slide's width and height.",
			InputSchema: objectSchema(map[string]interface{}{
				"session_id": sessionIDProp,
				"x1":         prop("integer", "Start X in level-native pixels"),
				"y1":         prop("integer", "Start Y in level-native pixels"),
				"x2":         prop("integer", "End X in level-native pixels"),
				"y2":         prop("integer", "End Y in level-native pixels"),
				"level":      prop("integer", "Level the points are given in (default 0)"),
			}, "session_id", "x1", "y1", "x2", "y2"),
		},

		// Associated images
		{
			Name:        "slide_associated_images",
			Description: "List the slide's associated images (label, thumbnail, ...) with their sizes, without decoding them.",
			InputSchema: objectSchema(map[string]interface{}{"session_id": sessionIDProp}, "session_id"),
		},
		{
			Name:        "slide_associated_image",
			Description: "Decode an associated image and return it as base64-encoded PNG. Decoded images are kept for the life of the session.",
			InputSchema: objectSchema(map[string]interface{}{
				"session_id": sessionIDProp,
				"name":       prop("string", "Associated image name, e.g. label or thumbnail"),
				"scale": map[string]interface{}{
					"type":        "number",
					"description": "Optional scale factor. Default 1.0",
					"default":     1.0,
				},
			}, "session_id", "name"),
		},
		{
			Name:        "slide_label_text",
			Description: "Read printed text (case number, stain, block) from the slide label using OCR.",
			InputSchema: objectSchema(map[string]interface{}{
				"session_id": sessionIDProp,
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Associated image to read. Default label",
					"default":     "label",
				},
				"language": prop("string", "Tesseract language code (e.g., eng, deu). Default from configuration"),
				"region": map[string]interface{}{
					"type":        "object",
					"description": "Optional rectangle of the image to read",
					"properties": map[string]interface{}{
						"x1": prop("integer", "Left edge"),
						"y1": prop("integer", "Top edge"),
						"x2": prop("integer", "Right edge (exclusive)"),
						"y2": prop("integer", "Bottom edge (exclusive)"),
					},
				},
			}, "session_id"),
		},

		// Color
		{
			Name:        "slide_sample_color",
			Description: "Get the color at one pixel of a pyramid level in hex, RGB and HSL, optionally compared against a reference color.",
			InputSchema: objectSchema(map[string]interface{}{
				"session_id": sessionIDProp,
				"level":      prop("integer", "Pyramid level"),
				"x":          prop("integer", "X coordinate in level-native pixels"),
				"y":          prop("integer", "Y coordinate in level-native pixels"),
				"reference":  prop("string", "Optional reference color (#rrggbb); adds its CIEDE2000 distance to the sample"),
			}, "session_id", "level", "x", "y"),
		},
		{
			Name:        "slide_dominant_colors",
			Description: "Extract the most common colors of a region, e.g. to tell stained tissue from background.",
			InputSchema: objectSchema(dominant, "session_id", "level", "x", "y", "width", "height"),
		},

		// Region cache
		{
			Name:        "cache_stats",
			Description: "Get hit/miss statistics of the global region cache, or of a session's attached cache.",
			InputSchema: objectSchema(map[string]interface{}{
				"session_id": prop("string", "Optional session whose attached cache to inspect"),
				"detailed":   prop("boolean", "Include memory usage, recent keys and per-key hit counts"),
			}),
		},
		{
			Name:        "cache_resize",
			Description: "Change the capacity of the global region cache, or of a session's attached cache. Shrinking evicts least recently used entries.",
			InputSchema: objectSchema(map[string]interface{}{
				"session_id": prop("string", "Optional session whose attached cache to resize"),
				"capacity":   prop("integer", "New capacity (> 0)"),
			}, "capacity"),
		},
		{
			Name:        "cache_clear",
			Description: "Drop every entry from the global region cache, or from a session's attached cache. Statistics are kept.",
			InputSchema: objectSchema(map[string]interface{}{
				"session_id": prop("string", "Optional session whose attached cache to clear"),
			}),
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
