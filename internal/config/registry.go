package config

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/saalsai1/SER598-Group2-ma/pkg/preference"
)

// ErrBackendNotRegistered is returned by [Registry.CreateStore] when no
// factory has been registered for the requested backend.
var ErrBackendNotRegistered = errors.New("config: preference backend not registered")

// StoreFactory builds a preference store from its configuration.
type StoreFactory func(ctx context.Context, cfg PreferencesConfig) (preference.Store, error)

// Registry maps preference backends to their factories. It is safe for
// concurrent use.
type Registry struct {
	mu     sync.RWMutex
	stores map[Backend]StoreFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{stores: make(map[Backend]StoreFactory)}
}

// RegisterStore registers factory under backend, replacing any previous one.
func (r *Registry) RegisterStore(backend Backend, factory StoreFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stores[backend] = factory
}

// CreateStore builds the store selected by cfg.Backend.
func (r *Registry) CreateStore(ctx context.Context, cfg PreferencesConfig) (preference.Store, error) {
	r.mu.RLock()
	factory, ok := r.stores[cfg.Backend]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBackendNotRegistered, cfg.Backend)
	}
	s, err := factory(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("config: create %s preference store: %w", cfg.Backend, err)
	}
	return s, nil
}

// Backends returns the registered backend names in sorted order.
func (r *Registry) Backends() []Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Backend, 0, len(r.stores))
	for b := range r.stores {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
