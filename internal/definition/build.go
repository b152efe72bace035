//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package definition

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"trpc.group/trpc-go/trpc-agent-graph/graph"
	"trpc.group/trpc-go/trpc-agent-graph/log"
	"trpc.group/trpc-go/trpc-agent-graph/model"
	"trpc.group/trpc-go/trpc-agent-graph/planner"
	"trpc.group/trpc-go/trpc-agent-graph/planner/plan"
	"trpc.group/trpc-go/trpc-agent-graph/planner/react"
	"trpc.group/trpc-go/trpc-agent-graph/state"
	"trpc.group/trpc-go/trpc-agent-graph/tool"
	"trpc.group/trpc-go/trpc-agent-graph/tool/a2a"
	"trpc.group/trpc-go/trpc-agent-graph/tool/mcp"
)

// Env supplies what a definition refers to by name.
type Env struct {
	// Registry holds the capabilities model nodes may bind. MCP servers and
	// A2A providers of the definition are added to it. Nil starts from an
	// empty registry.
	Registry *tool.Registry
	// Models replaces declared models by name, typically in tests.
	Models map[string]model.Model
	// Functions adds function factories to the builtins.
	Functions map[string]FunctionFactory
	// ModelNodeOptions are applied to every model node, after its own.
	ModelNodeOptions []graph.ModelNodeOption
	// Offline skips connecting MCP servers and A2A agents. Capabilities
	// they would serve are then missing from the registry.
	Offline bool
}

// Built is a definition turned into a graph builder.
type Built struct {
	Graph    *graph.Graph
	Registry *tool.Registry
	servers  []*mcp.Provider
}

// Close disconnects the MCP servers of the definition.
func (b *Built) Close() error {
	var errs []error
	for _, s := range b.servers {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}

// Build creates the builder of the graph. Call Compile on the result.
func (def *Definition) Build(ctx context.Context, env Env) (*Built, error) {
	b := &Built{Registry: env.Registry}
	if b.Registry == nil {
		b.Registry, _ = tool.NewRegistry()
	}
	if !env.Offline {
		if err := def.connectServers(ctx, b); err != nil {
			b.Close()
			return nil, err
		}
	}

	functions := Builtins()
	for name, f := range env.Functions {
		functions[name] = f
	}
	models := make(map[string]model.Model)
	g := graph.New()
	for _, n := range def.Nodes {
		node, err := def.buildNode(n, env, b.Registry, functions, models)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("graph %s: %w", def.Name, err)
		}
		g.AddNode(node)
	}
	for _, e := range def.Edges {
		if e.When == nil {
			g.AddEdge(e.From, e.To)
			continue
		}
		g.AddConditionalEdge(e.From, e.When.route(e.To), e.To)
	}
	g.SetEntryPoint(def.Entry)
	b.Graph = g
	log.Debugf("graph %s built: %d nodes, %d edges", def.Name, len(def.Nodes), len(def.Edges))
	return b, nil
}

// ExecutorOptions returns the executor bounds declared by the definition.
func (def *Definition) ExecutorOptions() []graph.ExecutorOption {
	var opts []graph.ExecutorOption
	if def.MaxSteps > 0 {
		opts = append(opts, graph.WithMaxSteps(def.MaxSteps))
	}
	if def.MaxConcurrency > 0 {
		opts = append(opts, graph.WithMaxConcurrency(def.MaxConcurrency))
	}
	return opts
}

func (def *Definition) connectServers(ctx context.Context, b *Built) error {
	for _, s := range def.MCPServers {
		var opts []mcp.Option
		if len(s.Tools) > 0 {
			opts = append(opts, mcp.WithToolFilter(mcp.IncludeTools(s.Tools...)))
		}
		p, err := mcp.New(ctx, s.ID, s.Connection, opts...)
		if err != nil {
			return fmt.Errorf("graph %s: connect mcp server %s: %w", def.Name, s.ID, err)
		}
		b.servers = append(b.servers, p)
		if err := b.Registry.Register(p); err != nil {
			return fmt.Errorf("graph %s: register mcp server %s: %w", def.Name, s.ID, err)
		}
	}
	for _, pd := range def.A2AProviders {
		p, err := a2a.New(ctx, pd.ID, pd.Agents, a2a.WithTransferStateKeys(pd.TransferState...))
		if err != nil {
			return fmt.Errorf("graph %s: connect a2a provider %s: %w", def.Name, pd.ID, err)
		}
		if err := b.Registry.Register(p); err != nil {
			return fmt.Errorf("graph %s: register a2a provider %s: %w", def.Name, pd.ID, err)
		}
	}
	return nil
}

func (def *Definition) buildNode(
	n NodeDef,
	env Env,
	registry *tool.Registry,
	functions map[string]FunctionFactory,
	models map[string]model.Model,
) (graph.Node, error) {
	if n.Type == NodeTypeFunction {
		factory, ok := functions[n.Function]
		if !ok {
			return nil, fmt.Errorf("node %s: unknown function %q", n.Name, n.Function)
		}
		fn, err := factory(n.Params)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", n.Name, err)
		}
		return graph.NewFuncNode(n.Name, fn, graph.WithDescription(n.Description)), nil
	}

	m, err := resolveModel(n.Model, def.Models[n.Model], env, models)
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", n.Name, err)
	}
	opts := []graph.ModelNodeOption{
		graph.WithModelDescription(n.Description),
		graph.WithSystemPrompt(n.SystemPrompt),
		graph.WithModelID(def.Models[n.Model].Model),
	}
	if len(n.Capabilities) > 0 {
		opts = append(opts, graph.WithCapabilities(n.Capabilities...))
	}
	if n.MaxIterations > 0 {
		opts = append(opts, graph.WithMaxIterations(n.MaxIterations))
	}
	if n.ParallelTools > 0 {
		opts = append(opts, graph.WithParallelTools(n.ParallelTools))
	}
	if n.Generation != nil {
		opts = append(opts, graph.WithGenerationConfig(*n.Generation))
	}
	if p := newPlanner(n.Planner); p != nil {
		opts = append(opts, graph.WithPlanner(p))
	}
	opts = append(opts, env.ModelNodeOptions...)
	return graph.NewModelNode(n.Name, m, registry, opts...), nil
}

func resolveModel(name string, cfg model.Config, env Env, cache map[string]model.Model) (model.Model, error) {
	if m, ok := env.Models[name]; ok {
		return m, nil
	}
	if m, ok := cache[name]; ok {
		return m, nil
	}
	m, err := model.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", name, err)
	}
	cache[name] = m
	return m, nil
}

func newPlanner(name string) planner.Planner {
	switch name {
	case PlannerReAct:
		return react.New()
	case PlannerPlan:
		return plan.New()
	}
	return nil
}

// route returns the predicate routing to target while c holds.
func (c *Condition) route(target string) graph.PredicateFunc {
	return func(_ context.Context, st *state.State) (string, error) {
		if c.holds(st) {
			return target, nil
		}
		return "", nil
	}
}

func (c *Condition) holds(st *state.State) bool {
	v, ok := st.Get(c.Key)
	if !ok {
		return false
	}
	s, isString := v.(string)
	if !isString {
		s = fmt.Sprint(v)
	}
	switch {
	case c.Equals != "":
		return strings.TrimSpace(s) == c.Equals
	case c.Contains != "":
		return strings.Contains(strings.ToLower(s), strings.ToLower(c.Contains))
	}
	return true
}
