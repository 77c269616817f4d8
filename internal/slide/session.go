package slide

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/ironsheep/slide-tools-mcp/internal/associated"
	"github.com/ironsheep/slide-tools-mcp/internal/cache"
	"github.com/ironsheep/slide-tools-mcp/internal/imaging"
	"github.com/ironsheep/slide-tools-mcp/internal/metrics"
	"github.com/ironsheep/slide-tools-mcp/internal/pyramid"
)

// Session is an open slide. Reads are safe for concurrent use; Close waits
// for reads in progress and is idempotent. Once closed, every data accessor
// returns ErrClosed. The exceptions are ID, SourcePath and Closed, and the
// Cache and CacheEnabled getters, which report no cache (nil, false) after
// Close detaches it.
type Session struct {
	id       string
	path     string
	format   string
	res      Resource
	geometry *pyramid.Geometry
	assoc    *associated.Table
	keyScope KeyScope
	log      zerolog.Logger

	mu     sync.RWMutex
	closed bool

	cache atomic.Pointer[cache.RegionCache]
	group singleflight.Group

	hashOnce sync.Once
	hash     string
	hashErr  error
}

// Open opens the slide at path using the format registered for its
// extension. Paths with a URI scheme fail with ErrUnimplemented.
func Open(path string, opts ...Option) (*Session, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.Registry == nil {
		o.Registry = DefaultRegistry()
	}

	if hasScheme(path) {
		o.Logger.Warn().Str("uri", path).Msg("rejected URI open")
		return nil, &OpenError{Path: path, Err: ErrUnimplemented}
	}

	format, err := o.Registry.Lookup(path)
	if err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}

	res, err := format.Open(path, o)
	if err != nil {
		o.Logger.Warn().Err(err).Str("path", path).Str("format", format.Name).Msg("open failed")
		return nil, &OpenError{Path: path, Err: err}
	}
	if res.Geometry() == nil {
		_ = res.Close()
		return nil, &OpenError{Path: path, Err: errors.New("format returned no geometry")}
	}

	s := &Session{
		id:       uuid.NewString(),
		path:     path,
		format:   res.Format(),
		res:      res,
		geometry: res.Geometry(),
		keyScope: o.KeyScope,
	}
	s.log = o.Logger.With().Str("session", s.id).Logger()
	s.assoc = associated.New(sessionSource{s})

	if o.KeyScope == KeyScopeSource {
		if _, err := s.QuickHash(); err != nil {
			_ = res.Close()
			return nil, &OpenError{Path: path, Err: err}
		}
	}
	if o.Cache != nil {
		s.cache.Store(o.Cache)
	}

	metrics.TrackSession(true)
	s.log.Info().
		Str("path", path).
		Str("format", s.format).
		Int("levels", s.geometry.LevelCount()).
		Str("key_scope", s.keyScope.String()).
		Msg("slide opened")
	return s, nil
}

// OpenURI always fails with ErrUnimplemented; no network access is made.
func OpenURI(uri string) (*Session, error) {
	return nil, &OpenError{Path: uri, Err: ErrUnimplemented}
}

// WithSession opens path, runs fn and closes the session on every exit
// path, including panics. A close error is joined to fn's error.
func WithSession(path string, fn func(*Session) error, opts ...Option) (err error) {
	s, err := Open(path, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()
	return fn(s)
}

func hasScheme(path string) bool {
	if !strings.Contains(path, "://") {
		return false
	}
	u, err := url.Parse(path)
	return err == nil && u.Scheme != ""
}

// Close releases the underlying resource and detaches any cache. Calling
// Close again does nothing.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.cache.Store(nil)
	metrics.TrackSession(false)

	if err := s.res.Close(); err != nil {
		s.log.Warn().Err(err).Msg("closing resource failed")
		return fmt.Errorf("close slide %s: %w", s.path, err)
	}
	s.log.Info().Msg("slide closed")
	return nil
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// SourcePath returns the path the session was opened from.
func (s *Session) SourcePath() string { return s.path }

// read runs fn under the read lock if the session is open.
func (s *Session) read(fn func() error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return fn()
}

// Format returns the format name, e.g. "raster".
func (s *Session) Format() (string, error) {
	var out string
	err := s.read(func() error {
		out = s.format
		return nil
	})
	return out, err
}

// Properties returns a copy of the slide metadata. Besides the format's own
// keys it always carries mpp_x, mpp_y, source_path, format and level_count.
func (s *Session) Properties() (map[string]any, error) {
	var out map[string]any
	err := s.read(func() error {
		props := s.res.Properties()
		out = make(map[string]any, len(props)+5)
		for k, v := range props {
			out[k] = v
		}
		mx, my := s.res.MPP()
		out["mpp_x"] = mx
		out["mpp_y"] = my
		out["source_path"] = s.path
		out["format"] = s.format
		out["level_count"] = s.geometry.LevelCount()
		return nil
	})
	return out, err
}

// MPP returns the physical pixel size in microns per pixel for both axes.
// Zero means unknown.
func (s *Session) MPP() (x, y float64, err error) {
	err = s.read(func() error {
		x, y = s.res.MPP()
		return nil
	})
	return x, y, err
}

// QuickHash returns the content fingerprint of the source file. It is
// computed once per session.
func (s *Session) QuickHash() (string, error) {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return "", ErrClosed
	}
	s.hashOnce.Do(func() {
		s.hash, s.hashErr = QuickHash(s.path)
	})
	return s.hash, s.hashErr
}

// Dimensions returns the level 0 size.
func (s *Session) Dimensions() (pyramid.Dimensions, error) {
	var out pyramid.Dimensions
	err := s.read(func() error {
		out = s.geometry.Dimensions()
		return nil
	})
	return out, err
}

// LevelCount returns the number of pyramid levels.
func (s *Session) LevelCount() (int, error) {
	var out int
	err := s.read(func() error {
		out = s.geometry.LevelCount()
		return nil
	})
	return out, err
}

// LevelDimensions returns the size of every level.
func (s *Session) LevelDimensions() ([]pyramid.Dimensions, error) {
	var out []pyramid.Dimensions
	err := s.read(func() error {
		out = s.geometry.LevelDimensions()
		return nil
	})
	return out, err
}

// LevelDownsamples returns the downsample factor of every level.
func (s *Session) LevelDownsamples() ([]float64, error) {
	var out []float64
	err := s.read(func() error {
		out = s.geometry.LevelDownsamples()
		return nil
	})
	return out, err
}

// BestLevelForDownsample returns the most detailed level whose downsample
// does not exceed target.
func (s *Session) BestLevelForDownsample(target float64) (int, error) {
	var out int
	err := s.read(func() error {
		out = s.geometry.BestLevelForDownsample(target)
		return nil
	})
	return out, err
}

// ToLevelNative converts a level 0 coordinate into level's pixel grid.
func (s *Session) ToLevelNative(p pyramid.Point, level int) (pyramid.Point, error) {
	var out pyramid.Point
	err := s.read(func() error {
		var err error
		out, err = s.geometry.ToLevelNative(p, level)
		return err
	})
	return out, err
}

// ToLevel0 converts a level-native coordinate to level 0.
func (s *Session) ToLevel0(p pyramid.Point, level int) (pyramid.Point, error) {
	var out pyramid.Point
	err := s.read(func() error {
		var err error
		out, err = s.geometry.ToLevel0(p, level)
		return err
	})
	return out, err
}

// MeasureDistance measures from a to b, both given in level's pixel grid.
// Points are mapped to level 0 before measuring.
func (s *Session) MeasureDistance(a, b pyramid.Point, level int) (pyramid.Distance, error) {
	var out pyramid.Distance
	err := s.read(func() error {
		a0, err := s.geometry.ToLevel0(a, level)
		if err != nil {
			return err
		}
		b0, err := s.geometry.ToLevel0(b, level)
		if err != nil {
			return err
		}
		mx, my := s.res.MPP()
		out = s.geometry.Measure(a0, b0, mx, my)
		return nil
	})
	return out, err
}

// AssociatedImages returns the slide's associated image table. Decoding
// through the table fails with ErrClosed once the session is closed.
func (s *Session) AssociatedImages() (*associated.Table, error) {
	var out *associated.Table
	err := s.read(func() error {
		out = s.assoc
		return nil
	})
	return out, err
}

// SetCache attaches c, replacing any attached cache. A nil c detaches.
func (s *Session) SetCache(c *cache.RegionCache) error {
	return s.read(func() error {
		s.cache.Store(c)
		s.log.Debug().Bool("attached", c != nil).Msg("region cache set")
		return nil
	})
}

// UseGlobalCache attaches the process-wide region cache.
func (s *Session) UseGlobalCache() error {
	return s.SetCache(cache.Global())
}

// Cache returns the attached cache, or nil. It does not fail after Close;
// a closed session has no cache.
func (s *Session) Cache() *cache.RegionCache {
	return s.cache.Load()
}

// CacheEnabled reports whether a cache is attached. It is false after Close.
func (s *Session) CacheEnabled() bool {
	return s.cache.Load() != nil
}

// RegionKey returns the cache key used for r.
func (s *Session) RegionKey(r pyramid.Region) cache.RegionKey {
	source := s.id
	if s.keyScope == KeyScopeSource && s.hash != "" {
		source = s.hash
	}
	return cache.RegionKey{
		Source: source,
		Level:  r.Level,
		X:      r.X,
		Y:      r.Y,
		Width:  r.Width,
		Height: r.Height,
	}
}

// ReadRegion returns the region as packed RGB bytes, Width*Height*3 long.
//
// Checks run in order: closed, level, size, bounds. With a cache attached
// the region is looked up first and stored after decoding; concurrent
// misses for the same key share one decode. The returned slice is owned by
// the caller.
func (s *Session) ReadRegion(r pyramid.Region) ([]byte, error) {
	start := time.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	if err := s.geometry.ValidateRegion(r); err != nil {
		return nil, err
	}

	c := s.cache.Load()
	if c == nil {
		pix, err := s.decode(r)
		metrics.RecordRegionRead(s.format, "decoder", time.Since(start), err)
		return pix, err
	}

	key := s.RegionKey(r)
	if pix, ok := c.Get(key); ok {
		metrics.RecordRegionRead(s.format, "cache", time.Since(start), nil)
		return clonePixels(pix), nil
	}

	v, err, _ := s.group.Do(key.String(), func() (any, error) {
		if pix, ok := c.Peek(key); ok {
			return pix, nil
		}
		pix, err := s.decode(r)
		if err != nil {
			return nil, err
		}
		c.Put(key, pix)
		return pix, nil
	})
	metrics.RecordRegionRead(s.format, "decoder", time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return clonePixels(v.([]byte)), nil
}

// ReadRegionImage is ReadRegion wrapped as an RGBImage.
func (s *Session) ReadRegionImage(r pyramid.Region) (*imaging.RGBImage, error) {
	pix, err := s.ReadRegion(r)
	if err != nil {
		return nil, err
	}
	return imaging.NewRGBImage(r.Width, r.Height, pix)
}

// decode must be called with the read lock held.
func (s *Session) decode(r pyramid.Region) ([]byte, error) {
	pix, err := s.res.ReadRegion(r)
	if err != nil {
		s.log.Warn().Err(err).Int("level", r.Level).Int64("x", r.X).Int64("y", r.Y).Msg("region decode failed")
		return nil, &ReadError{Region: r, Err: err}
	}
	if len(pix) != r.RGBSize() {
		return nil, &ReadError{Region: r, Err: fmt.Errorf("decoder returned %d bytes, want %d", len(pix), r.RGBSize())}
	}
	return pix, nil
}

func clonePixels(pix []byte) []byte {
	out := make([]byte, len(pix))
	copy(out, pix)
	return out
}

// sessionSource guards associated image access with the session state.
type sessionSource struct{ s *Session }

func (ss sessionSource) AssociatedNames() []string {
	return ss.s.res.AssociatedNames()
}

func (ss sessionSource) AssociatedDimensions(name string) (pyramid.Dimensions, bool) {
	return ss.s.res.AssociatedDimensions(name)
}

func (ss sessionSource) DecodeAssociated(name string) (*imaging.RGBImage, error) {
	var img *imaging.RGBImage
	err := ss.s.read(func() error {
		var err error
		img, err = ss.s.res.DecodeAssociated(name)
		return err
	})
	return img, err
}
