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
	"errors"
	"fmt"
	"sort"

	"trpc.group/trpc-go/trpc-agent-graph/log"
)

// CompiledGraph is the validated, immutable form of a Graph. It is safe for
// concurrent use by any number of executions.
type CompiledGraph struct {
	nodes    map[string]Node
	names    []string
	routers  map[string][]Router
	entry    string
	inDegree map[string]int
	warnings []string
}

// Compile validates the graph and freezes a copy of it.
//
// Validation runs in this order:
//  1. the entry node must exist;
//  2. registration errors collected by the builder are reported;
//  3. fixed edges must not form a cycle.
//
// Nodes unreachable from the entry through fixed edges and declared
// predicate destinations, routers to undefined nodes, and routers on
// undefined sources are reported as warnings only. Routers on undefined
// sources are dropped.
func (g *Graph) Compile() (*CompiledGraph, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[g.entry]; !ok {
		return nil, &GraphDefinitionError{
			Err: fmt.Errorf("%w: %q", ErrEntryNotFound, g.entry),
		}
	}
	if len(g.errs) > 0 {
		return nil, &GraphDefinitionError{Err: errors.Join(g.errs...)}
	}

	cg := &CompiledGraph{
		nodes:    make(map[string]Node, len(g.nodes)),
		names:    append([]string(nil), g.order...),
		routers:  make(map[string][]Router, len(g.routers)),
		entry:    g.entry,
		inDegree: make(map[string]int),
	}
	sort.Strings(cg.names)
	for name, n := range g.nodes {
		if c, ok := n.(Cloner); ok {
			n = c.Clone()
		}
		cg.nodes[name] = n
	}
	var orphans []string
	for source, rs := range g.routers {
		if _, ok := g.nodes[source]; !ok {
			orphans = append(orphans, source)
			continue
		}
		cg.routers[source] = append([]Router(nil), rs...)
	}
	sort.Strings(orphans)
	for _, source := range orphans {
		cg.warnings = append(cg.warnings, fmt.Sprintf("routers on undefined node %s are ignored", source))
	}

	if cycle := cg.findFixedCycle(); cycle != nil {
		return nil, &GraphDefinitionError{Err: ErrCycleDetected, Cycle: cycle}
	}
	cg.computeInDegree()
	cg.checkTargets()
	cg.checkReachability()
	for _, w := range cg.warnings {
		log.Warnf("graph compile: %s", w)
	}
	return cg, nil
}

// fixedEdges returns the distinct fixed targets of source, in router order.
func (cg *CompiledGraph) fixedEdges(source string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, r := range cg.routers[source] {
		t, ok := fixedTarget(r)
		if !ok || t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// findFixedCycle runs a depth-first search with a recursion stack over the
// fixed edges and returns the first cycle found.
func (cg *CompiledGraph) findFixedCycle() []string {
	const (
		unvisited = iota
		onStack
		done
	)
	mark := make(map[string]int, len(cg.nodes))
	var stack []string
	var cycle []string

	var visit func(name string) bool
	visit = func(name string) bool {
		mark[name] = onStack
		stack = append(stack, name)
		for _, next := range cg.fixedEdges(name) {
			if _, ok := cg.nodes[next]; !ok {
				continue
			}
			switch mark[next] {
			case onStack:
				for i := len(stack) - 1; i >= 0; i-- {
					if stack[i] == next {
						cycle = append(append([]string(nil), stack[i:]...), next)
						break
					}
				}
				return true
			case unvisited:
				if visit(next) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		mark[name] = done
		return false
	}

	for _, name := range cg.names {
		if mark[name] == unvisited && visit(name) {
			return cycle
		}
	}
	return nil
}

// computeInDegree counts the distinct fixed predecessors of every node.
func (cg *CompiledGraph) computeInDegree() {
	for _, source := range cg.names {
		for _, target := range cg.fixedEdges(source) {
			if _, ok := cg.nodes[target]; ok {
				cg.inDegree[target]++
			}
		}
	}
}

func (cg *CompiledGraph) checkTargets() {
	for _, source := range cg.names {
		for _, r := range cg.routers[source] {
			for _, target := range destinationsOf(r) {
				if _, ok := cg.nodes[target]; !ok {
					cg.warnings = append(cg.warnings,
						fmt.Sprintf("%s router on %s targets undefined node %s", r.Kind(), source, target))
				}
			}
		}
	}
}

// checkReachability runs a breadth-first sweep from the entry over fixed
// edges and declared predicate destinations.
func (cg *CompiledGraph) checkReachability() {
	seen := map[string]bool{cg.entry: true}
	queue := []string{cg.entry}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		for _, r := range cg.routers[name] {
			for _, next := range destinationsOf(r) {
				if _, ok := cg.nodes[next]; !ok || seen[next] {
					continue
				}
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	for _, name := range cg.names {
		if !seen[name] {
			cg.warnings = append(cg.warnings,
				fmt.Sprintf("node %s is not statically reachable from %s", name, cg.entry))
		}
	}
}

// Entry returns the entry node name.
func (cg *CompiledGraph) Entry() string { return cg.entry }

// Node returns the node registered under name.
func (cg *CompiledGraph) Node(name string) (Node, bool) {
	n, ok := cg.nodes[name]
	return n, ok
}

// Nodes returns the node names in sorted order.
func (cg *CompiledGraph) Nodes() []string {
	return append([]string(nil), cg.names...)
}

// Routers returns the routers of source in registration order.
func (cg *CompiledGraph) Routers(source string) []Router {
	return append([]Router(nil), cg.routers[source]...)
}

// InDegree returns the number of distinct fixed predecessors of name.
func (cg *CompiledGraph) InDegree(name string) int { return cg.inDegree[name] }

// IsJoin reports whether name waits for several fixed predecessors.
func (cg *CompiledGraph) IsJoin(name string) bool { return cg.inDegree[name] > 1 }

// Warnings returns the non-fatal findings of Compile.
func (cg *CompiledGraph) Warnings() []string {
	return append([]string(nil), cg.warnings...)
}
