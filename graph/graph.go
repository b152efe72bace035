//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package graph builds, validates and executes graphs of nodes connected by
// routers. A Graph is a mutable builder; Compile freezes it into a
// CompiledGraph that any number of executions can share.
package graph

import (
	"fmt"
	"sync"
)

// Graph is the mutable builder of nodes and routers.
//
// Registration problems are collected and reported by Compile, so calls can
// be chained:
//
//	g := graph.New().
//	  AddNode(graph.NewFuncNode("entry", entry)).
//	  AddNode(graph.NewFuncNode("exit", exit)).
//	  AddEdge("entry", "exit").
//	  SetEntryPoint("entry")
//	compiled, err := g.Compile()
type Graph struct {
	mu      sync.Mutex
	nodes   map[string]Node
	order   []string
	routers map[string][]Router
	entry   string
	errs    []error
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes:   make(map[string]Node),
		routers: make(map[string][]Router),
	}
}

// AddNode registers a node under its name.
func (g *Graph) AddNode(n Node) *Graph {
	g.mu.Lock()
	defer g.mu.Unlock()
	if n == nil {
		g.errs = append(g.errs, fmt.Errorf("%w: nil node", ErrInvalidNode))
		return g
	}
	name := n.Name()
	if name == "" {
		g.errs = append(g.errs, fmt.Errorf("%w: empty node name", ErrInvalidNode))
		return g
	}
	if _, exists := g.nodes[name]; exists {
		g.errs = append(g.errs, fmt.Errorf("%w: node %s already exists", ErrInvalidNode, name))
		return g
	}
	g.nodes[name] = n
	g.order = append(g.order, name)
	return g
}

// AddRouter registers a router on source. The source may be added later;
// Compile ignores routers whose source never becomes a node. A source may
// hold several routers; all of them are evaluated after every visit.
func (g *Graph) AddRouter(source string, r Router) *Graph {
	g.mu.Lock()
	defer g.mu.Unlock()
	if r == nil {
		g.errs = append(g.errs, fmt.Errorf("%w: nil router on %s", ErrInvalidRouter, source))
		return g
	}
	g.routers[source] = append(g.routers[source], r)
	return g
}

// AddEdge adds a fixed router from one node to another.
func (g *Graph) AddEdge(from, to string) *Graph {
	if to == "" {
		g.mu.Lock()
		g.errs = append(g.errs, fmt.Errorf("%w: empty target on %s", ErrInvalidRouter, from))
		g.mu.Unlock()
		return g
	}
	return g.AddRouter(from, NewFixed(to))
}

// AddConditionalEdge adds a predicate router. destinations declares the
// targets fn can return.
func (g *Graph) AddConditionalEdge(from string, fn PredicateFunc, destinations ...string) *Graph {
	if fn == nil {
		g.mu.Lock()
		g.errs = append(g.errs, fmt.Errorf("%w: nil predicate on %s", ErrInvalidRouter, from))
		g.mu.Unlock()
		return g
	}
	return g.AddRouter(from, NewPredicate(fn, WithDestinations(destinations...)))
}

// SetEntryPoint sets the node execution starts from. It is checked by
// Compile.
func (g *Graph) SetEntryPoint(name string) *Graph {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.entry = name
	return g
}
