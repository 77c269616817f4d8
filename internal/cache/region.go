package cache

import (
	"fmt"
	"sync"

	"github.com/ironsheep/slide-tools-mcp/internal/metrics"
)

// DefaultGlobalCapacity is the capacity of the process-wide cache until it is
// resized.
const DefaultGlobalCapacity = 1000

// RegionKey identifies a decoded region. Source scopes the key to a session
// or to a slide's content fingerprint, depending on the session's key scope.
type RegionKey struct {
	Source string `json:"source"`
	Level  int    `json:"level"`
	X      int64  `json:"x"`
	Y      int64  `json:"y"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// String renders the key as source/level/x,y/wxh.
func (k RegionKey) String() string {
	return fmt.Sprintf("%s/%d/%d,%d/%dx%d", k.Source, k.Level, k.X, k.Y, k.Width, k.Height)
}

// MarshalText lets RegionKey be used as a JSON object key.
func (k RegionKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// RegionCache caches raw RGB pixel buffers by region.
type RegionCache = Cache[RegionKey, []byte]

// NewRegionCache creates a region cache with the given capacity.
func NewRegionCache(capacity int, opts ...Option) (*RegionCache, error) {
	return New[RegionKey, []byte](capacity, opts...)
}

var (
	globalOnce  sync.Once
	globalCache *RegionCache
)

// Global returns the process-wide region cache, creating it on first use with
// DefaultGlobalCapacity. Every call returns the same instance; concurrent
// first calls construct it exactly once. It lives until the process exits.
func Global() *RegionCache {
	globalOnce.Do(func() {
		c, err := NewRegionCache(DefaultGlobalCapacity, WithObserver(metrics.NewCacheObserver("global")))
		if err != nil {
			panic(fmt.Sprintf("cache: creating global cache: %v", err))
		}
		globalCache = c
	})
	return globalCache
}
