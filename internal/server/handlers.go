package server

import (
	"errors"
	"fmt"
	"image"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/ironsheep/slide-tools-mcp/internal/cache"
	"github.com/ironsheep/slide-tools-mcp/internal/imaging"
	"github.com/ironsheep/slide-tools-mcp/internal/metrics"
	"github.com/ironsheep/slide-tools-mcp/internal/ocr"
	"github.com/ironsheep/slide-tools-mcp/internal/pyramid"
	"github.com/ironsheep/slide-tools-mcp/internal/slide"
)

// Cache modes accepted by slide_open.
const (
	cacheGlobal  = "global"
	cachePrivate = "private"
	cacheNone    = "none"
)

// defaultPrivateCapacity sizes a private cache when slide_open omits it.
const defaultPrivateCapacity = 256

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "slide_open", "slide_read_region").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// ToolError is the data attached to a failed tool call.
type ToolError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		s.log.Debug().Err(err).Str("tool", params.Name).Msg("tool failed")
		return s.errorResponse(req.ID, -32000, "Tool execution failed", ToolError{
			Kind:    errorKind(err),
			Message: err.Error(),
		})
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Session lifecycle
	case "slide_open":
		return s.handleSlideOpen(args)
	case "slide_close":
		return s.handleSlideClose(args)
	case "slide_sessions":
		return s.handleSlideSessions(args)
	case "slide_info":
		return s.handleSlideInfo(args)

	// Pyramid navigation
	case "slide_read_region":
		return s.handleReadRegion(args)
	case "slide_best_level":
		return s.handleBestLevel(args)
	case "slide_convert_coordinates":
		return s.handleConvertCoordinates(args)
	case "slide_measure_distance":
		return s.handleMeasureDistance(args)

	// Associated images
	case "slide_associated_images":
		return s.handleAssociatedImages(args)
	case "slide_associated_image":
		return s.handleAssociatedImage(args)
	case "slide_label_text":
		return s.handleLabelText(args)

	// Color
	case "slide_sample_color":
		return s.handleSampleColor(args)
	case "slide_dominant_colors":
		return s.handleDominantColors(args)

	// Region cache
	case "cache_stats":
		return s.handleCacheStats(args)
	case "cache_resize":
		return s.handleCacheResize(args)
	case "cache_clear":
		return s.handleCacheClear(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message string, data interface{}) *MCPResponse {
	if str, ok := data.(string); ok && str == "" {
		data = nil
	}
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// errorKind names the error for clients that branch on it.
func errorKind(err error) string {
	switch {
	case errors.Is(err, slide.ErrClosed):
		return "closed"
	case errors.Is(err, errRegionTooLarge):
		return "invalid_arguments"
	case errors.Is(err, cache.ErrInvalidArgumentType):
		return "invalid_argument_type"
	case errors.Is(err, cache.ErrInvalidCapacity):
		return "invalid_capacity"
	case errors.Is(err, slide.ErrInvalidLevel):
		return "invalid_level"
	case errors.Is(err, slide.ErrOutOfBounds):
		return "out_of_bounds"
	case errors.Is(err, slide.ErrInvalidSize):
		return "invalid_size"
	case errors.Is(err, slide.ErrNotFound):
		return "not_found"
	case errors.Is(err, slide.ErrUnimplemented):
		return "unimplemented"
	case errors.Is(err, slide.ErrUnsupportedFormat):
		return "unsupported_format"
	case errors.Is(err, slide.ErrOpen):
		return "open_failure"
	case errors.Is(err, slide.ErrRead):
		return "read_failure"
	case errors.Is(err, ocr.ErrUnavailable):
		return "ocr_unavailable"
	case errors.As(err, new(validator.ValidationErrors)):
		return "invalid_arguments"
	}
	return "error"
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// decodeArgs unmarshals tool arguments into dst and checks its validate
// tags. Missing arguments decode as an empty object.
func decodeArgs(args json.RawMessage, dst interface{}) error {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	if err := json.Unmarshal(args, dst); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return validate.Struct(dst)
}

// === Session Lifecycle Handlers ===

type slideOpenArgs struct {
	Path          string `json:"path" validate:"required"`
	Cache         string `json:"cache" validate:"omitempty,oneof=global private none"`
	CacheCapacity int    `json:"cache_capacity"`
	KeyScope      string `json:"key_scope" validate:"omitempty,oneof=session source"`
}

type levelInfo struct {
	Level      int     `json:"level"`
	Width      int64   `json:"width"`
	Height     int64   `json:"height"`
	Downsample float64 `json:"downsample"`
}

type associatedInfo struct {
	Name   string `json:"name"`
	Width  int64  `json:"width"`
	Height int64  `json:"height"`
	State  string `json:"state"`
}

type slideOpenResult struct {
	SessionID  string           `json:"session_id"`
	Format     string           `json:"format"`
	Width      int64            `json:"width"`
	Height     int64            `json:"height"`
	MPPX       float64          `json:"mpp_x"`
	MPPY       float64          `json:"mpp_y"`
	Levels     []levelInfo      `json:"levels"`
	Associated []associatedInfo `json:"associated_images"`
	Cache      string           `json:"cache"`
	KeyScope   string           `json:"key_scope"`
}

func (s *Server) handleSlideOpen(args json.RawMessage) (interface{}, error) {
	var a slideOpenArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}

	mode := a.Cache
	if mode == "" {
		mode = cacheNone
		if s.cfg.Slide.AttachGlobalCache {
			mode = cacheGlobal
		}
	}

	scope := s.cfg.KeyScope()
	if a.KeyScope != "" {
		var err error
		if scope, err = slide.ParseKeyScope(a.KeyScope); err != nil {
			return nil, err
		}
	}

	opts := []slide.Option{
		slide.WithRasterOptions(s.cfg.RasterOptions()),
		slide.WithKeyScope(scope),
	}
	switch mode {
	case cacheGlobal:
		opts = append(opts, slide.WithGlobalCache())
	case cachePrivate:
		capacity := a.CacheCapacity
		if capacity == 0 {
			capacity = defaultPrivateCapacity
		}
		c, err := cache.NewRegionCache(capacity,
			cache.WithRecentKeys(s.cfg.Cache.RecentKeys),
			cache.WithObserver(metrics.NewCacheObserver("private")),
		)
		if err != nil {
			return nil, err
		}
		opts = append(opts, slide.WithCache(c))
	}

	sess, err := slide.Open(a.Path, opts...)
	if err != nil {
		return nil, err
	}

	result, err := describeSession(sess)
	if err != nil {
		_ = sess.Close()
		return nil, err
	}
	result.Cache = mode
	result.KeyScope = scope.String()

	s.addSession(sess)
	return result, nil
}

func describeSession(sess *slide.Session) (*slideOpenResult, error) {
	format, err := sess.Format()
	if err != nil {
		return nil, err
	}
	dims, err := sess.LevelDimensions()
	if err != nil {
		return nil, err
	}
	ds, err := sess.LevelDownsamples()
	if err != nil {
		return nil, err
	}
	mx, my, err := sess.MPP()
	if err != nil {
		return nil, err
	}
	assoc, err := associatedList(sess)
	if err != nil {
		return nil, err
	}

	levels := make([]levelInfo, len(dims))
	for i, d := range dims {
		levels[i] = levelInfo{Level: i, Width: d.Width, Height: d.Height, Downsample: ds[i]}
	}
	return &slideOpenResult{
		SessionID:  sess.ID(),
		Format:     format,
		Width:      dims[0].Width,
		Height:     dims[0].Height,
		MPPX:       mx,
		MPPY:       my,
		Levels:     levels,
		Associated: assoc,
	}, nil
}

func associatedList(sess *slide.Session) ([]associatedInfo, error) {
	tbl, err := sess.AssociatedImages()
	if err != nil {
		return nil, err
	}
	out := make([]associatedInfo, 0, tbl.Len())
	for _, name := range tbl.Keys() {
		d, err := tbl.Dimensions(name)
		if err != nil {
			return nil, err
		}
		out = append(out, associatedInfo{
			Name:   name,
			Width:  d.Width,
			Height: d.Height,
			State:  tbl.State(name).String(),
		})
	}
	return out, nil
}

type sessionArgs struct {
	SessionID string `json:"session_id" validate:"required"`
}

func (s *Server) handleSlideClose(args json.RawMessage) (interface{}, error) {
	var a sessionArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	sess, err := s.removeSession(a.SessionID)
	if err != nil {
		return nil, err
	}
	if err := closeSession(sess); err != nil {
		return nil, err
	}
	return map[string]interface{}{"session_id": a.SessionID, "closed": true}, nil
}

func (s *Server) handleSlideSessions(json.RawMessage) (interface{}, error) {
	ids := s.sessionIDs()
	out := make([]map[string]interface{}, 0, len(ids))
	for _, id := range ids {
		sess, err := s.session(id)
		if err != nil {
			continue
		}
		out = append(out, map[string]interface{}{
			"session_id":    id,
			"path":          sess.SourcePath(),
			"cache_enabled": sess.CacheEnabled(),
		})
	}
	return map[string]interface{}{"sessions": out, "count": len(out)}, nil
}

func (s *Server) handleSlideInfo(args json.RawMessage) (interface{}, error) {
	var a sessionArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	sess, err := s.session(a.SessionID)
	if err != nil {
		return nil, err
	}

	desc, err := describeSession(sess)
	if err != nil {
		return nil, err
	}
	props, err := sess.Properties()
	if err != nil {
		return nil, err
	}
	hash, err := sess.QuickHash()
	if err != nil {
		return nil, err
	}

	info := map[string]interface{}{
		"session":       desc,
		"properties":    props,
		"quick_hash":    hash,
		"cache_enabled": sess.CacheEnabled(),
	}
	if c := sess.Cache(); c != nil {
		info["cache_stats"] = c.Stats()
	}
	return info, nil
}

// === Pyramid Navigation Handlers ===

type readRegionArgs struct {
	SessionID string  `json:"session_id" validate:"required"`
	Level     int     `json:"level"`
	X         int64   `json:"x"`
	Y         int64   `json:"y"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	Scale     float64 `json:"scale"`
}

func (a readRegionArgs) region() pyramid.Region {
	return pyramid.Region{Level: a.Level, X: a.X, Y: a.Y, Width: a.Width, Height: a.Height}
}

var errRegionTooLarge = errors.New("region exceeds the pixel limit")

// checkRegionSize rejects regions above the configured pixel budget before
// any buffer is allocated. Non-positive sizes are left to the session.
func (s *Server) checkRegionSize(r pyramid.Region) error {
	limit := s.cfg.Slide.MaxRegionPixels
	if r.Width <= 0 || r.Height <= 0 || limit <= 0 {
		return nil
	}
	if int64(r.Width) > limit/int64(r.Height) {
		return fmt.Errorf("%w: %dx%d is more than %d pixels", errRegionTooLarge, r.Width, r.Height, limit)
	}
	return nil
}

type readRegionResult struct {
	pyramid.Region
	Image *imaging.EncodedImage `json:"image"`
}

func (s *Server) handleReadRegion(args json.RawMessage) (interface{}, error) {
	var a readRegionArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	sess, err := s.session(a.SessionID)
	if err != nil {
		return nil, err
	}

	r := a.region()
	if err := s.checkRegionSize(r); err != nil {
		return nil, err
	}
	pix, err := sess.ReadRegion(r)
	if err != nil {
		return nil, err
	}
	enc, err := imaging.EncodeRegion(r.Width, r.Height, pix, a.Scale)
	if err != nil {
		return nil, err
	}
	return &readRegionResult{Region: r, Image: enc}, nil
}

type bestLevelArgs struct {
	SessionID  string  `json:"session_id" validate:"required"`
	Downsample float64 `json:"downsample"`
}

func (s *Server) handleBestLevel(args json.RawMessage) (interface{}, error) {
	var a bestLevelArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	sess, err := s.session(a.SessionID)
	if err != nil {
		return nil, err
	}

	level, err := sess.BestLevelForDownsample(a.Downsample)
	if err != nil {
		return nil, err
	}
	dims, err := sess.LevelDimensions()
	if err != nil {
		return nil, err
	}
	ds, err := sess.LevelDownsamples()
	if err != nil {
		return nil, err
	}
	return levelInfo{Level: level, Width: dims[level].Width, Height: dims[level].Height, Downsample: ds[level]}, nil
}

type convertArgs struct {
	SessionID string `json:"session_id" validate:"required"`
	X         int64  `json:"x"`
	Y         int64  `json:"y"`
	Level     int    `json:"level"`
	Direction string `json:"direction" validate:"required,oneof=to_level to_level0"`
}

func (s *Server) handleConvertCoordinates(args json.RawMessage) (interface{}, error) {
	var a convertArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	sess, err := s.session(a.SessionID)
	if err != nil {
		return nil, err
	}

	in := pyramid.Point{X: a.X, Y: a.Y}
	var out pyramid.Point
	if a.Direction == "to_level" {
		out, err = sess.ToLevelNative(in, a.Level)
	} else {
		out, err = sess.ToLevel0(in, a.Level)
	}
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"level":     a.Level,
		"direction": a.Direction,
		"input":     in,
		"output":    out,
	}, nil
}

type measureArgs struct {
	SessionID string `json:"session_id" validate:"required"`
	X1        int64  `json:"x1"`
	Y1        int64  `json:"y1"`
	X2        int64  `json:"x2"`
	Y2        int64  `json:"y2"`
	Level     int    `json:"level"`
}

func (s *Server) handleMeasureDistance(args json.RawMessage) (interface{}, error) {
	var a measureArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	sess, err := s.session(a.SessionID)
	if err != nil {
		return nil, err
	}
	return sess.MeasureDistance(pyramid.Point{X: a.X1, Y: a.Y1}, pyramid.Point{X: a.X2, Y: a.Y2}, a.Level)
}

// === Associated Image Handlers ===

func (s *Server) handleAssociatedImages(args json.RawMessage) (interface{}, error) {
	var a sessionArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	sess, err := s.session(a.SessionID)
	if err != nil {
		return nil, err
	}
	list, err := associatedList(sess)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"associated_images": list, "count": len(list)}, nil
}

type associatedImageArgs struct {
	SessionID string  `json:"session_id" validate:"required"`
	Name      string  `json:"name" validate:"required"`
	Scale     float64 `json:"scale"`
}

func (s *Server) handleAssociatedImage(args json.RawMessage) (interface{}, error) {
	var a associatedImageArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	sess, err := s.session(a.SessionID)
	if err != nil {
		return nil, err
	}
	tbl, err := sess.AssociatedImages()
	if err != nil {
		return nil, err
	}

	f, err := tbl.Fetch(a.Name)
	if err != nil {
		return nil, err
	}
	enc, err := imaging.EncodePNG(f.Image, a.Scale)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"name":   a.Name,
		"cached": f.Cached,
		"image":  enc,
	}, nil
}

type labelTextArgs struct {
	SessionID string `json:"session_id" validate:"required"`
	Name      string `json:"name"`
	Language  string `json:"language"`
	Region    *struct {
		X1 int `json:"x1"`
		Y1 int `json:"y1"`
		X2 int `json:"x2"`
		Y2 int `json:"y2"`
	} `json:"region,omitempty"`
}

func (s *Server) handleLabelText(args json.RawMessage) (interface{}, error) {
	var a labelTextArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Name == "" {
		a.Name = imaging.AssociatedLabel
	}
	sess, err := s.session(a.SessionID)
	if err != nil {
		return nil, err
	}
	tbl, err := sess.AssociatedImages()
	if err != nil {
		return nil, err
	}
	img, err := tbl.Get(a.Name)
	if err != nil {
		return nil, err
	}

	opts := s.cfg.OCROptions()
	if a.Language != "" {
		opts.Language = a.Language
	}
	if a.Region != nil {
		return ocr.ReadTextRegion(img, image.Rect(a.Region.X1, a.Region.Y1, a.Region.X2, a.Region.Y2), opts)
	}
	return ocr.ReadText(img, opts)
}

// === Color Handlers ===

type sampleColorArgs struct {
	SessionID string `json:"session_id" validate:"required"`
	Level     int    `json:"level"`
	X         int64  `json:"x"`
	Y         int64  `json:"y"`
	Reference string `json:"reference" validate:"omitempty,hexcolor"`
}

func (s *Server) handleSampleColor(args json.RawMessage) (interface{}, error) {
	var a sampleColorArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	sess, err := s.session(a.SessionID)
	if err != nil {
		return nil, err
	}

	img, err := sess.ReadRegionImage(pyramid.Region{Level: a.Level, X: a.X, Y: a.Y, Width: 1, Height: 1})
	if err != nil {
		return nil, err
	}
	c, err := imaging.SampleColor(img, 0, 0)
	if err != nil {
		return nil, err
	}
	out := map[string]interface{}{
		"level": a.Level,
		"x":     a.X,
		"y":     a.Y,
		"color": c,
	}
	if a.Reference != "" {
		ref, err := imaging.ParseHexColor(a.Reference)
		if err != nil {
			return nil, err
		}
		out["reference"] = ref
		out["distance"] = imaging.ColorDistance(c, ref)
	}
	return out, nil
}

type dominantColorsArgs struct {
	readRegionArgs
	Count int `json:"count"`
}

func (s *Server) handleDominantColors(args json.RawMessage) (interface{}, error) {
	var a dominantColorsArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Count == 0 {
		a.Count = 5
	}
	sess, err := s.session(a.SessionID)
	if err != nil {
		return nil, err
	}

	if err := s.checkRegionSize(a.region()); err != nil {
		return nil, err
	}
	img, err := sess.ReadRegionImage(a.region())
	if err != nil {
		return nil, err
	}
	return imaging.DominantColors(img, a.Count)
}

// === Region Cache Handlers ===

type cacheArgs struct {
	SessionID string `json:"session_id"`
	Detailed  bool   `json:"detailed"`
}

// targetCache returns the session's attached cache, or the global cache
// when no session is named.
func (s *Server) targetCache(sessionID string) (*cache.RegionCache, string, error) {
	if sessionID == "" {
		return cache.Global(), "global", nil
	}
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, "", err
	}
	if sess.Closed() {
		return nil, "", slide.ErrClosed
	}
	c := sess.Cache()
	if c == nil {
		return nil, "", fmt.Errorf("session %s has no region cache attached", sessionID)
	}
	if c == cache.Global() {
		return c, "global", nil
	}
	return c, "private", nil
}

func (s *Server) handleCacheStats(args json.RawMessage) (interface{}, error) {
	var a cacheArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	c, scope, err := s.targetCache(a.SessionID)
	if err != nil {
		return nil, err
	}
	if a.Detailed {
		return map[string]interface{}{"cache": scope, "stats": c.DetailedStats()}, nil
	}
	return map[string]interface{}{"cache": scope, "stats": c.Stats()}, nil
}

type cacheResizeArgs struct {
	SessionID string `json:"session_id"`
	Capacity  *int   `json:"capacity" validate:"required"`
}

func (s *Server) handleCacheResize(args json.RawMessage) (interface{}, error) {
	var a cacheResizeArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	c, scope, err := s.targetCache(a.SessionID)
	if err != nil {
		return nil, err
	}
	if err := c.Resize(*a.Capacity); err != nil {
		return nil, err
	}
	s.log.Info().Str("cache", scope).Int("capacity", *a.Capacity).Msg("region cache resized")
	return map[string]interface{}{"cache": scope, "stats": c.Stats()}, nil
}

func (s *Server) handleCacheClear(args json.RawMessage) (interface{}, error) {
	var a cacheArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	c, scope, err := s.targetCache(a.SessionID)
	if err != nil {
		return nil, err
	}
	c.Clear()
	s.log.Info().Str("cache", scope).Msg("region cache cleared")
	return map[string]interface{}{"cache": scope, "stats": c.Stats()}, nil
}
