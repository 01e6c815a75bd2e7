// Package registry provides thread-safe named-store registration and
// URI-scheme dispatch, the thin outer collaborator that turns a
// connection string or a loaded Config into a ready store.Store.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/dittoblocks/blocks/pkg/config"
	"github.com/dittoblocks/blocks/pkg/store"
)

// Registry holds named, already-constructed stores for lookup by
// consumers that don't want to carry a *store.Store reference around
// directly (e.g. a CLI resolving a flag to a store by name).
type Registry struct {
	mu     sync.RWMutex
	stores map[string]store.Store
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{stores: make(map[string]store.Store)}
}

// Register adds a named store. Returns an error if the name is already
// registered.
func (r *Registry) Register(name string, s store.Store) error {
	if s == nil {
		return fmt.Errorf("registry: cannot register a nil store")
	}
	if name == "" {
		return fmt.Errorf("registry: cannot register a store with an empty name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.stores[name]; exists {
		return fmt.Errorf("registry: store %q already registered", name)
	}
	r.stores[name] = s
	return nil
}

// Get retrieves a named store.
func (r *Registry) Get(name string) (store.Store, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, exists := r.stores[name]
	if !exists {
		return nil, fmt.Errorf("registry: store %q not found", name)
	}
	return s, nil
}

// Remove drops a named store from the registry without stopping it;
// callers that need it stopped must do so themselves via
// store.Lifecycle before or after removal.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.stores, name)
}

// List returns every registered store name. The returned slice is a
// copy and safe to modify.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.stores))
	for name := range r.stores {
		names = append(names, name)
	}
	return names
}

// Count returns the number of registered stores.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.stores)
}

// Initialize constructs every store cfg.Stores names and registers
// each under its configured name. Each name is built by its own
// config.CreateStore call, which constructs a composite's (buffer,
// cache, replica) inner stores afresh; a store that a composite
// references is therefore built again for that composite, separately
// from the instance registered under its own name.
func Initialize(ctx context.Context, cfg *config.Config) (*Registry, error) {
	r := New()
	for name := range cfg.Stores {
		s, err := config.CreateStore(ctx, cfg, name)
		if err != nil {
			return nil, fmt.Errorf("registry: initializing store %q: %w", name, err)
		}
		if err := r.Register(name, s); err != nil {
			return nil, err
		}
	}
	return r, nil
}
