package native

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrNotFound is returned by Lookup for unknown operation names.
var ErrNotFound = errors.New("operation not found")

// DefaultCacheMax is the default number of built operations kept for reuse.
const DefaultCacheMax = 100

// Registry holds operation classes, the build cache and the error buffer.
//
// Thread-safety: all methods are safe for concurrent use. The cache and the
// error buffer have their own locks; callers never need to hold them.
// BuildOrFetch does not hold a lock across lookup, build and insert, so two
// concurrent calls with identical inputs may both build. The first insert
// stays cached; the other caller keeps its own operation uncached.
type Registry struct {
	mu      sync.RWMutex
	classes map[string]*OperationClass

	cache *operationCache

	errMu  sync.Mutex
	errBuf strings.Builder
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		classes: make(map[string]*OperationClass),
		cache:   newOperationCache(DefaultCacheMax),
	}
}

// NewStandardRegistry creates a registry holding the built-in operations.
func NewStandardRegistry() *Registry {
	r := NewRegistry()
	for _, c := range standardOperations() {
		if err := r.Register(c); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds an operation class.
func (r *Registry) Register(c *OperationClass) error {
	if c.Name == "" {
		return fmt.Errorf("operation class has no name")
	}
	if c.Build == nil {
		return fmt.Errorf("operation %q has no build function", c.Name)
	}
	seen := make(map[string]bool, len(c.Params))
	for _, p := range c.Params {
		if seen[p.Name] {
			return fmt.Errorf("operation %q declares %q twice", c.Name, p.Name)
		}
		seen[p.Name] = true
		if p.Input() == p.Output() {
			return fmt.Errorf("operation %q: %q must be exactly one of input or output", c.Name, p.Name)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.classes[c.Name]; exists {
		return fmt.Errorf("operation %q already registered", c.Name)
	}
	r.classes[c.Name] = c
	return nil
}

// Names lists registered operations in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.classes))
	for name := range r.classes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup creates a new, unbuilt instance of the named operation. The caller
// owns the returned reference.
func (r *Registry) Lookup(name string) (*Operation, error) {
	r.mu.RLock()
	c, ok := r.classes[name]
	r.mu.RUnlock()
	if !ok {
		r.errorf("VipsOperation", "class %q not found", name)
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return newOperation(c), nil
}

// BuildOrFetch is the single build entry point. If an equivalent operation
// (same class, same input values) was built before, the new operation is
// released and the cached one is returned with a reference for the caller.
// Otherwise op is built and, on success, added to the cache.
//
// On error the caller still owns op.
func (r *Registry) BuildOrFetch(op *Operation) (*Operation, error) {
	if op.class.NoCache {
		if err := op.build(); err != nil {
			r.errorf(op.Name(), "%v", err)
			return nil, err
		}
		return op, nil
	}

	key := op.inputKey()
	if hit := r.cache.get(key); hit != nil {
		op.Release()
		return hit, nil
	}

	if err := op.build(); err != nil {
		r.errorf(op.Name(), "%v", err)
		return nil, err
	}
	r.cache.put(key, op)
	return op, nil
}

// Forget drops the cache's reference to op, if it holds one. Used when a
// caller could not read a built operation's outputs.
func (r *Registry) Forget(op *Operation) {
	r.cache.remove(op)
}

// SetCacheMax changes the cache capacity, trimming if needed.
func (r *Registry) SetCacheMax(n int) {
	r.cache.setMax(n)
}

// CacheSize returns the number of cached operations.
func (r *Registry) CacheSize() int {
	return r.cache.size()
}

// DropAll empties the cache.
func (r *Registry) DropAll() {
	r.cache.dropAll()
}

// LastError returns the accumulated error text.
func (r *Registry) LastError() string {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	return strings.TrimRight(r.errBuf.String(), "\n")
}

// ClearError empties the error buffer.
func (r *Registry) ClearError() {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	r.errBuf.Reset()
}

func (r *Registry) errorf(domain, format string, args ...any) {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	fmt.Fprintf(&r.errBuf, "%s: %s\n", domain, fmt.Sprintf(format, args...))
}
