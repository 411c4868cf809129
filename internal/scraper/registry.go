package scraper

import (
	"fmt"
	"strings"
	"sync"

	"feedsync/internal/domain"
	"feedsync/internal/domain/listing"
)

// Registry holds adapters in registration order. It is safe for concurrent
// reads once populated.
type Registry struct {
	mu       sync.RWMutex
	adapters []Adapter
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) Register(a Adapter) error {
	if a == nil {
		return fmt.Errorf("register: nil adapter")
	}
	name := strings.TrimSpace(a.Name())
	if name == "" {
		return fmt.Errorf("register: empty adapter name")
	}
	if !a.Kind().Valid() {
		return fmt.Errorf("register %q: invalid kind %q", name, a.Kind())
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.adapters {
		if strings.EqualFold(existing.Name(), name) {
			return fmt.Errorf("register %q: duplicate adapter name", name)
		}
	}
	r.adapters = append(r.adapters, a)
	return nil
}

// List returns the adapters of kind in registration order.
func (r *Registry) List(kind listing.Kind) []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Adapter, 0, len(r.adapters))
	for _, a := range r.adapters {
		if a.Kind() == kind {
			out = append(out, a)
		}
	}
	return out
}

// Resolve finds an adapter of kind by exact case-insensitive name, falling
// back to the first adapter whose name contains the query.
func (r *Registry) Resolve(name string, kind listing.Kind) (Adapter, error) {
	q := strings.ToLower(strings.TrimSpace(name))
	candidates := r.List(kind)
	if q != "" {
		for _, a := range candidates {
			if strings.ToLower(a.Name()) == q {
				return a, nil
			}
		}
		for _, a := range candidates {
			if strings.Contains(strings.ToLower(a.Name()), q) {
				return a, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: adapter %q not found", domain.ErrNotFound, name)
}

func (r *Registry) Sources() []SourceInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SourceInfo, 0, len(r.adapters))
	for _, a := range r.adapters {
		if d, ok := a.(Describer); ok {
			out = append(out, d.Describe())
			continue
		}
		out = append(out, SourceInfo{Name: a.Name(), Kind: a.Kind()})
	}
	return out
}
