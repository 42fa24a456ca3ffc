// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package square

import (
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Registry maps names to strategies. Hosts build one at startup and pass it
// to whatever dispatches the request and callback routes.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]*Strategy
}

// NewRegistry returns a registry holding strategies.
func NewRegistry(strategies ...*Strategy) (*Registry, error) {
	r := &Registry{strategies: make(map[string]*Strategy, len(strategies))}
	for _, s := range strategies {
		if err := r.Register(s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds s under its name. Names must be unique.
func (r *Registry) Register(s *Strategy) error {
	if s == nil {
		return fmt.Errorf("strategy is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.strategies[s.Name()]; exists {
		return fmt.Errorf("strategy %q is already registered", s.Name())
	}
	r.strategies[s.Name()] = s
	return nil
}

// Lookup returns the strategy registered under name.
func (r *Registry) Lookup(name string) (*Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.strategies[name]
	return s, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Sorted(maps.Keys(r.strategies))
}
