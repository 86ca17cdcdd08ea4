package tsv

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps format tags to their implementations.
//
// Lookups are exact string matches; there is no content-based fallback.
type Registry struct {
	mu      sync.RWMutex
	formats map[FormatTag]Format
}

// NewRegistry returns a registry holding the given formats.
func NewRegistry(formats ...Format) *Registry {
	r := &Registry{formats: make(map[FormatTag]Format, len(formats))}
	for _, f := range formats {
		r.Register(f)
	}
	return r
}

// DefaultRegistry returns a registry with every known file generation.
func DefaultRegistry(logger Logger) *Registry {
	return NewRegistry(NewV002(logger), NewV003(logger))
}

// Register adds or replaces the format for its tag.
func (r *Registry) Register(f Format) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.formats[f.Tag()] = f
}

// Resolve returns the format registered for tag.
// Returns ErrUnsupportedFormat naming the tag if none is registered.
func (r *Registry) Resolve(tag string) (Format, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.formats[FormatTag(tag)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, tag)
	}
	return f, nil
}

// Tags returns the registered tags in sorted order.
func (r *Registry) Tags() []FormatTag {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tags := make([]FormatTag, 0, len(r.formats))
	for t := range r.formats {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}
