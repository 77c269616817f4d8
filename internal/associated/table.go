// Package associated provides the lazily decoded table of a slide's
// non-pyramidal images, such as its thumbnail and label.
package associated

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/ironsheep/slide-tools-mcp/internal/imaging"
	"github.com/ironsheep/slide-tools-mcp/internal/pyramid"
)

// ErrNotFound is returned for names the slide does not carry.
var ErrNotFound = errors.New("associated image not found")

// Source supplies associated image metadata and decodes on demand.
type Source interface {
	AssociatedNames() []string
	AssociatedDimensions(name string) (pyramid.Dimensions, bool)
	DecodeAssociated(name string) (*imaging.RGBImage, error)
}

// State describes what the table knows about a name.
type State int

const (
	NotFound  State = iota // the slide has no such image
	Available              // known, not decoded yet
	Decoded                // decoded and held by the table
)

func (s State) String() string {
	switch s {
	case Available:
		return "available"
	case Decoded:
		return "decoded"
	}
	return "not_found"
}

// Fetched is the result of Fetch.
type Fetched struct {
	Image *imaging.RGBImage
	// Cached is true when the image was already decoded before the call.
	Cached bool
}

// Table holds the names of a slide's associated images and memoizes their
// decoded pixels. Listing, membership and dimension queries never decode.
//
// Table is safe for concurrent use.
type Table struct {
	src   Source
	names []string
	known map[string]struct{}

	mu     sync.RWMutex
	loaded map[string]*imaging.RGBImage
	gen    uint64 // bumped by ClearCache

	group singleflight.Group
}

// New reads the available names from src. Nothing is decoded.
func New(src Source) *Table {
	names := src.AssociatedNames()
	t := &Table{
		src:    src,
		names:  append([]string(nil), names...),
		known:  make(map[string]struct{}, len(names)),
		loaded: make(map[string]*imaging.RGBImage),
	}
	for _, n := range names {
		t.known[n] = struct{}{}
	}
	return t
}

// Keys returns the available names.
func (t *Table) Keys() []string {
	return append([]string(nil), t.names...)
}

// Len returns the number of available names.
func (t *Table) Len() int { return len(t.names) }

// Contains reports whether name is available.
func (t *Table) Contains(name string) bool {
	_, ok := t.known[name]
	return ok
}

// Dimensions returns the size of name from metadata.
func (t *Table) Dimensions(name string) (pyramid.Dimensions, error) {
	if !t.Contains(name) {
		return pyramid.Dimensions{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	d, ok := t.src.AssociatedDimensions(name)
	if !ok {
		return pyramid.Dimensions{}, fmt.Errorf("%w: %q has no dimensions", ErrNotFound, name)
	}
	return d, nil
}

// State reports whether name is unknown, available or already decoded.
func (t *Table) State(name string) State {
	if !t.Contains(name) {
		return NotFound
	}
	t.mu.RLock()
	_, ok := t.loaded[name]
	t.mu.RUnlock()
	if ok {
		return Decoded
	}
	return Available
}

// Get returns a copy of the decoded image, decoding it on first access.
func (t *Table) Get(name string) (*imaging.RGBImage, error) {
	f, err := t.Fetch(name)
	if err != nil {
		return nil, err
	}
	return f.Image, nil
}

// Fetch returns the decoded image, decoding and memoizing it if needed.
// Concurrent first fetches of one name share a single decode. The returned
// image is a copy the caller may modify.
func (t *Table) Fetch(name string) (Fetched, error) {
	if !t.Contains(name) {
		return Fetched{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}

	t.mu.RLock()
	img, ok := t.loaded[name]
	t.mu.RUnlock()
	if ok {
		return Fetched{Image: img.Clone(), Cached: true}, nil
	}

	v, err, _ := t.group.Do(name, func() (any, error) {
		t.mu.RLock()
		img, ok := t.loaded[name]
		gen := t.gen
		t.mu.RUnlock()
		if ok {
			return img, nil
		}

		img, err := t.src.DecodeAssociated(name)
		if err != nil {
			return nil, fmt.Errorf("decode associated image %q: %w", name, err)
		}

		t.mu.Lock()
		if t.gen == gen {
			t.loaded[name] = img
		}
		t.mu.Unlock()
		return img, nil
	})
	if err != nil {
		return Fetched{}, err
	}
	return Fetched{Image: v.(*imaging.RGBImage).Clone()}, nil
}

// CacheSize returns the number of decoded images held.
func (t *Table) CacheSize() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.loaded)
}

// ClearCache drops every decoded image. Names stay available. A decode in
// flight during the call is returned to its callers but not retained.
func (t *Table) ClearCache() {
	t.mu.Lock()
	t.loaded = make(map[string]*imaging.RGBImage)
	t.gen++
	t.mu.Unlock()
}
