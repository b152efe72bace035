//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package graph

import (
	"context"

	"trpc.group/trpc-go/trpc-agent-graph/state"
)

// RouterKind distinguishes statically resolvable routers from dynamic ones.
type RouterKind string

// Router kinds.
const (
	RouterKindFixed     RouterKind = "fixed"
	RouterKindPredicate RouterKind = "predicate"
)

// Router picks zero or one next node after its source node ran.
type Router interface {
	Kind() RouterKind
	// Route returns the next node name, or "" for none.
	Route(ctx context.Context, st *state.State) (string, error)
}

// Fixed always routes to the same target.
type Fixed struct {
	target string
}

// NewFixed creates a fixed router.
func NewFixed(target string) *Fixed { return &Fixed{target: target} }

// Kind implements Router.
func (r *Fixed) Kind() RouterKind { return RouterKindFixed }

// Target returns the target node name.
func (r *Fixed) Target() string { return r.target }

// Route implements Router.
func (r *Fixed) Route(context.Context, *state.State) (string, error) { return r.target, nil }

// PredicateFunc decides the next node from the state. "" means none.
type PredicateFunc func(ctx context.Context, st *state.State) (string, error)

// Predicate routes by evaluating a function against the state.
type Predicate struct {
	fn           PredicateFunc
	destinations []string
}

// PredicateOption configures a Predicate.
type PredicateOption func(*Predicate)

// WithDestinations declares the targets the predicate can return. They are
// used for visualization and reachability checks only.
func WithDestinations(targets ...string) PredicateOption {
	return func(p *Predicate) { p.destinations = append(p.destinations, targets...) }
}

// NewPredicate creates a predicate router.
func NewPredicate(fn PredicateFunc, opts ...PredicateOption) *Predicate {
	p := &Predicate{fn: fn}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Kind implements Router.
func (r *Predicate) Kind() RouterKind { return RouterKindPredicate }

// Destinations returns the declared targets.
func (r *Predicate) Destinations() []string {
	return append([]string(nil), r.destinations...)
}

// Route implements Router.
func (r *Predicate) Route(ctx context.Context, st *state.State) (string, error) {
	if r.fn == nil {
		return "", nil
	}
	return r.fn(ctx, st)
}

// destinationsOf returns the targets a router is known to produce.
func destinationsOf(r Router) []string {
	if t, ok := fixedTarget(r); ok {
		return []string{t}
	}
	if d, ok := r.(interface{ Destinations() []string }); ok {
		return d.Destinations()
	}
	return nil
}

// fixedTarget returns the target of a statically resolvable router.
func fixedTarget(r Router) (string, bool) {
	if r.Kind() != RouterKindFixed {
		return "", false
	}
	t, ok := r.(interface{ Target() string })
	if !ok {
		return "", false
	}
	return t.Target(), true
}
