package slide

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ironsheep/slide-tools-mcp/internal/associated"
	"github.com/ironsheep/slide-tools-mcp/internal/imaging"
	"github.com/ironsheep/slide-tools-mcp/internal/pyramid"
)

// Resource is an opened pyramidal slide as supplied by a format.
// Implementations must serve concurrent reads; Close is never called
// concurrently with other methods.
type Resource interface {
	associated.Source

	Format() string
	Geometry() *pyramid.Geometry
	MPP() (x, y float64)
	Properties() map[string]string

	// ReadRegion decodes a validated region into packed RGB bytes of
	// length Width*Height*3.
	ReadRegion(r pyramid.Region) ([]byte, error)

	Close() error
}

// OpenFunc opens path as a Resource.
type OpenFunc func(path string, opts *Options) (Resource, error)

// Format describes a registered slide format.
type Format struct {
	Name       string
	Extensions []string // with or without leading dot, any case
	Open       OpenFunc
}

// Registry maps file extensions to formats. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	formats map[string]Format // normalized extension -> format
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{formats: make(map[string]Format)}
}

// NormalizeExtension lower-cases ext and ensures a leading dot.
// The empty string stays empty.
func NormalizeExtension(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// Register adds f under each of its extensions. An extension already
// claimed by another format is taken over by f.
func (r *Registry) Register(f Format) error {
	if f.Name == "" {
		return errors.New("format name is empty")
	}
	if f.Open == nil {
		return fmt.Errorf("format %s has no open function", f.Name)
	}
	if len(f.Extensions) == 0 {
		return fmt.Errorf("format %s has no extensions", f.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range f.Extensions {
		norm := NormalizeExtension(ext)
		if norm == "" || norm == "." {
			return fmt.Errorf("format %s has an empty extension", f.Name)
		}
		r.formats[norm] = f
	}
	return nil
}

// Lookup returns the format registered for path's extension.
func (r *Registry) Lookup(path string) (Format, error) {
	ext := filepath.Ext(path)
	if ext == "" {
		return Format{}, fmt.Errorf("%w: %s has no extension", ErrUnsupportedFormat, path)
	}

	r.mu.RLock()
	f, ok := r.formats[NormalizeExtension(ext)]
	r.mu.RUnlock()
	if !ok {
		return Format{}, fmt.Errorf("%w: no reader registered for extension %s", ErrUnsupportedFormat, ext)
	}
	return f, nil
}

// Supports reports whether ext has a registered format.
func (r *Registry) Supports(ext string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.formats[NormalizeExtension(ext)]
	return ok
}

// Formats returns the unique registered format names, sorted.
func (r *Registry) Formats() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	names := make([]string, 0, len(r.formats))
	for _, f := range r.formats {
		if _, ok := seen[f.Name]; ok {
			continue
		}
		seen[f.Name] = struct{}{}
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names
}

// Extensions returns every registered extension, sorted.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exts := make([]string, 0, len(r.formats))
	for ext := range r.formats {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// RasterFormat is the built-in format serving ordinary image files.
func RasterFormat() Format {
	return Format{
		Name:       imaging.RasterFormat,
		Extensions: imaging.RasterExtensions,
		Open: func(path string, opts *Options) (Resource, error) {
			r, err := imaging.OpenRaster(path, opts.Raster)
			if err != nil {
				return nil, err
			}
			return r, nil
		},
	}
}

var (
	defaultRegistryOnce sync.Once
	defaultRegistry     *Registry
)

// DefaultRegistry returns the process-wide registry with the built-in
// formats registered.
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
		if err := defaultRegistry.Register(RasterFormat()); err != nil {
			panic(fmt.Sprintf("slide: registering raster format: %v", err))
		}
	})
	return defaultRegistry
}
