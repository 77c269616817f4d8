package slide

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ironsheep/slide-tools-mcp/internal/cache"
	"github.com/ironsheep/slide-tools-mcp/internal/imaging"
	"github.com/ironsheep/slide-tools-mcp/internal/logging"
)

// KeyScope decides what identifies a session in region cache keys.
type KeyScope int

const (
	// KeyScopeSession keys regions by session ID, so sessions never share
	// entries even when they read the same file.
	KeyScopeSession KeyScope = iota

	// KeyScopeSource keys regions by the file's quick hash, so every
	// session over the same content shares entries.
	KeyScopeSource
)

// String returns "session" or "source".
func (k KeyScope) String() string {
	if k == KeyScopeSource {
		return "source"
	}
	return "session"
}

// ParseKeyScope parses "session" or "source". The empty string is session.
func ParseKeyScope(s string) (KeyScope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "session":
		return KeyScopeSession, nil
	case "source":
		return KeyScopeSource, nil
	}
	return KeyScopeSession, fmt.Errorf("unknown cache key scope %q (want session or source)", s)
}

// Options configure Open. Formats receive them so they can read their own
// settings.
type Options struct {
	Registry *Registry
	Raster   imaging.RasterOptions
	KeyScope KeyScope
	Cache    *cache.RegionCache
	Logger   zerolog.Logger
}

// Option configures a session at open time.
type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		Raster: imaging.DefaultRasterOptions(),
		Logger: logging.Component("slide"),
	}
}

// WithRegistry opens through r instead of DefaultRegistry.
func WithRegistry(r *Registry) Option {
	return func(o *Options) { o.Registry = r }
}

// WithRasterOptions sets the options used by the raster format.
func WithRasterOptions(ro imaging.RasterOptions) Option {
	return func(o *Options) { o.Raster = ro }
}

// WithKeyScope sets the region cache key scope.
func WithKeyScope(k KeyScope) Option {
	return func(o *Options) { o.KeyScope = k }
}

// WithCache attaches c as soon as the session opens.
func WithCache(c *cache.RegionCache) Option {
	return func(o *Options) { o.Cache = c }
}

// WithGlobalCache attaches the process-wide cache as soon as the session
// opens.
func WithGlobalCache() Option {
	return func(o *Options) { o.Cache = cache.Global() }
}

// WithLogger sets the session logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func WithLogger(l zerolog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}
