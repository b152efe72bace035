//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package tool

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrDuplicateCapability is returned when two providers declare the same name.
	ErrDuplicateCapability = errors.New("tool: duplicate capability name")
	// ErrInvalidProvider is returned for a nil provider or one without an ID.
	ErrInvalidProvider = errors.New("tool: invalid provider")
)

// Registry maps capability names to the provider that serves them.
// Registration order is preserved so that requests list tools stably.
type Registry struct {
	mu        sync.RWMutex
	byName    map[string]*Capability
	order     []string
	providers map[string]Provider
}

// NewRegistry creates a registry and registers the given providers.
func NewRegistry(providers ...Provider) (*Registry, error) {
	r := &Registry{
		byName:    make(map[string]*Capability),
		providers: make(map[string]Provider),
	}
	for _, p := range providers {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds every declaration of p. Nothing is registered if any name
// collides with an existing capability.
func (r *Registry) Register(p Provider) error {
	if p == nil || p.ID() == "" {
		return ErrInvalidProvider
	}
	decls := p.Declarations()
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]struct{}, len(decls))
	for _, d := range decls {
		if d == nil || d.Name == "" {
			return fmt.Errorf("%w: provider %s has an unnamed declaration", ErrInvalidProvider, p.ID())
		}
		if _, ok := r.byName[d.Name]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateCapability, d.Name)
		}
		if _, ok := seen[d.Name]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateCapability, d.Name)
		}
		seen[d.Name] = struct{}{}
	}
	for _, d := range decls {
		r.byName[d.Name] = &Capability{ProviderID: p.ID(), Declaration: d, Provider: p}
		r.order = append(r.order, d.Name)
	}
	r.providers[p.ID()] = p
	return nil
}

// Lookup resolves a capability by name.
func (r *Registry) Lookup(name string) (*Capability, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byName[name]
	return c, ok
}

// Capabilities returns all capabilities in registration order.
func (r *Registry) Capabilities() []*Capability {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Capability, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// Provider returns the provider registered under id.
func (r *Registry) Provider(id string) (Provider, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	return p, ok
}

// Len returns the number of registered capabilities.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Subset returns a registry restricted to names. Unknown names are skipped.
// With no names the full registry is copied.
func (r *Registry) Subset(names ...string) *Registry {
	sub := &Registry{
		byName:    make(map[string]*Capability),
		providers: make(map[string]Provider),
	}
	if r == nil {
		return sub
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(names) == 0 {
		names = r.order
	}
	for _, name := range names {
		c, ok := r.byName[name]
		if !ok {
			continue
		}
		if _, dup := sub.byName[name]; dup {
			continue
		}
		sub.byName[name] = c
		sub.order = append(sub.order, name)
		sub.providers[c.ProviderID] = c.Provider
	}
	return sub
}
