// Package registry holds the candidate types a round-trip run checks.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"alma.local/roundtrip/codec"
	"alma.local/roundtrip/codec/detect"
)

// Factory returns a fresh, addressable zero value, normally new(T).
type Factory func() any

type Entry struct {
	Name string
	New  Factory

	// Codec overrides detection when set.
	Codec codec.Codec
}

// Resolve returns the codec to check e with. Detection runs on a fresh value
// and falls back to fallback, which may be nil.
func (e Entry) Resolve(fallback codec.Codec) (codec.Codec, error) {
	if e.Codec != nil {
		return e.Codec, nil
	}
	c, err := detect.ForOr(e.New(), fallback)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.Name, err)
	}
	return c, nil
}

type EntryOption func(*Entry)

func WithCodec(c codec.Codec) EntryOption {
	return func(e *Entry) {
		e.Codec = c
	}
}

// Provider supplies entries sorted by name.
type Provider interface {
	Entries() []Entry
}

// Registry is an in-memory Provider. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func New() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

var (
	ErrDuplicate = errors.New("registry: duplicate entry")
	errNoFactory = errors.New("registry: nil factory")
)

func (r *Registry) Register(name string, factory Factory, opts ...EntryOption) error {
	if name == "" {
		return errors.New("registry: empty name")
	}
	if factory == nil {
		return fmt.Errorf("%w for %q", errNoFactory, name)
	}
	e := Entry{Name: name, New: factory}
	for _, opt := range opts {
		opt(&e)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicate, name)
	}
	r.entries[name] = e
	return nil
}

// MustRegister is Register for generated code, where a failure is a
// programming error.
func (r *Registry) MustRegister(name string, factory Factory, opts ...EntryOption) *Registry {
	if err := r.Register(name, factory, opts...); err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Filter returns a Provider restricted to the named entries. Unknown names
// are reported as an error.
func Filter(p Provider, names []string) (Provider, error) {
	if len(names) == 0 {
		return p, nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	sub := New()
	for _, e := range p.Entries() {
		if want[e.Name] {
			sub.entries[e.Name] = e
			delete(want, e.Name)
		}
	}
	if len(want) > 0 {
		missing := make([]string, 0, len(want))
		for n := range want {
			missing = append(missing, n)
		}
		sort.Strings(missing)
		return nil, fmt.Errorf("registry: unknown types %v", missing)
	}
	return sub, nil
}
