package adapter

import (
	"sort"
	"strings"
	"sync"
)

// Factory builds a fresh adapter instance. The registry never hands the
// same instance out twice, so adapters cannot share mutable state (or a
// session) across invocations.
type Factory func() Adapter

// Registry is the static table mapping source codes to adapter
// factories, populated once at process start.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under the lowercased code. Registering the
// same code again replaces the previous factory.
func (r *Registry) Register(code string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[strings.ToLower(code)] = f
}

// Get builds an adapter for code. Lookup is case-insensitive.
func (r *Registry) Get(code string) (Adapter, bool) {
	r.mu.RLock()
	f, ok := r.factories[strings.ToLower(code)]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return f(), true
}

// Codes lists the registered source codes, sorted.
func (r *Registry) Codes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	codes := make([]string, 0, len(r.factories))
	for code := range r.factories {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// All builds one fresh instance per registered code.
func (r *Registry) All() []Adapter {
	codes := r.Codes()
	out := make([]Adapter, 0, len(codes))
	for _, code := range codes {
		if a, ok := r.Get(code); ok {
			out = append(out, a)
		}
	}
	return out
}
