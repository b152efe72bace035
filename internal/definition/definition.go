//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package definition loads graphs declared in YAML and builds them into
// graph builders.
package definition

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"trpc.group/trpc-go/trpc-agent-graph/model"
	"trpc.group/trpc-go/trpc-agent-graph/tool/a2a"
	"trpc.group/trpc-go/trpc-agent-graph/tool/mcp"
)

// Node types.
const (
	NodeTypeModel    = "model"
	NodeTypeFunction = "function"
)

// Planner names.
const (
	PlannerReAct = "react"
	PlannerPlan  = "plan"
)

// Definition is the top-level YAML structure of a graph.
type Definition struct {
	Name           string                  `yaml:"name"`
	Description    string                  `yaml:"description,omitempty"`
	Entry          string                  `yaml:"entry"`
	MaxSteps       int                     `yaml:"max_steps,omitempty"`
	MaxConcurrency int                     `yaml:"max_concurrency,omitempty"`
	Models         map[string]model.Config `yaml:"models,omitempty"`
	MCPServers     []MCPServerDef          `yaml:"mcp_servers,omitempty"`
	A2AProviders   []A2AProviderDef        `yaml:"a2a_providers,omitempty"`
	Nodes          []NodeDef               `yaml:"nodes"`
	Edges          []EdgeDef               `yaml:"edges,omitempty"`
}

// MCPServerDef declares a capability provider served over MCP.
type MCPServerDef struct {
	ID         string               `yaml:"id"`
	Connection mcp.ConnectionConfig `yaml:"connection"`
	// Tools, when set, keeps only the named server tools.
	Tools []string `yaml:"tools,omitempty"`
}

// A2AProviderDef declares a capability provider whose capabilities are
// remote A2A agents.
type A2AProviderDef struct {
	ID     string      `yaml:"id"`
	Agents []a2a.Agent `yaml:"agents"`
	// TransferState lists state keys sent along as message metadata.
	TransferState []string `yaml:"transfer_state,omitempty"`
}

// NodeDef declares a node.
type NodeDef struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Description string `yaml:"description,omitempty"`

	// Model node fields.
	Model         string                  `yaml:"model,omitempty"`
	SystemPrompt  string                  `yaml:"system_prompt,omitempty"`
	Capabilities  []string                `yaml:"capabilities,omitempty"`
	MaxIterations int                     `yaml:"max_iterations,omitempty"`
	Planner       string                  `yaml:"planner,omitempty"`
	ParallelTools int                     `yaml:"parallel_tools,omitempty"`
	Generation    *model.GenerationConfig `yaml:"generation,omitempty"`

	// Function node fields.
	Function string         `yaml:"function,omitempty"`
	Params   map[string]any `yaml:"params,omitempty"`
}

// EdgeDef declares a router. Without a condition it is a fixed edge;
// with one it routes to To only when the condition holds.
type EdgeDef struct {
	From string     `yaml:"from"`
	To   string     `yaml:"to"`
	When *Condition `yaml:"when,omitempty"`
}

// Condition tests a state value. Exactly one test is expected; with none
// the condition holds when the key is set.
type Condition struct {
	Key      string `yaml:"key"`
	Equals   string `yaml:"equals,omitempty"`
	Contains string `yaml:"contains,omitempty"`
}

// Parse decodes and validates a YAML definition.
func Parse(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse graph definition: %w", err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Load reads and parses the definition file at path.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read graph definition %s: %w", path, err)
	}
	return Parse(data)
}

// Marshal serializes the definition back to YAML.
func (def *Definition) Marshal() ([]byte, error) {
	return yaml.Marshal(def)
}

// Validate checks the fields the graph compiler does not:
//   - name and entry are set
//   - nodes have a name and a known type
//   - model nodes reference a declared model and a known planner
//   - function nodes name a function
//   - edges have both ends and conditions have a key
//
// Entry existence, duplicate names and cycles are left to graph.Compile.
func (def *Definition) Validate() error {
	if def.Name == "" {
		return fmt.Errorf("graph name is required")
	}
	if def.Entry == "" {
		return fmt.Errorf("graph %s: entry node is required", def.Name)
	}
	if len(def.Nodes) == 0 {
		return fmt.Errorf("graph %s: at least one node is required", def.Name)
	}
	for _, n := range def.Nodes {
		if err := def.validateNode(n); err != nil {
			return fmt.Errorf("graph %s: %w", def.Name, err)
		}
	}
	for i, e := range def.Edges {
		if e.From == "" || e.To == "" {
			return fmt.Errorf("graph %s: edge %d needs from and to", def.Name, i)
		}
		if e.When != nil && e.When.Key == "" {
			return fmt.Errorf("graph %s: edge %s -> %s: condition key is required", def.Name, e.From, e.To)
		}
	}
	for _, s := range def.MCPServers {
		if s.ID == "" {
			return fmt.Errorf("graph %s: mcp server id is required", def.Name)
		}
	}
	for _, p := range def.A2AProviders {
		if p.ID == "" {
			return fmt.Errorf("graph %s: a2a provider id is required", def.Name)
		}
		for _, a := range p.Agents {
			if a.URL == "" {
				return fmt.Errorf("graph %s: a2a provider %s: agent url is required", def.Name, p.ID)
			}
		}
	}
	return nil
}

func (def *Definition) validateNode(n NodeDef) error {
	if n.Name == "" {
		return fmt.Errorf("node name is required")
	}
	switch n.Type {
	case NodeTypeModel:
		if _, ok := def.Models[n.Model]; !ok {
			return fmt.Errorf("node %s: model %q is not declared", n.Name, n.Model)
		}
		switch n.Planner {
		case "", PlannerReAct, PlannerPlan:
		default:
			return fmt.Errorf("node %s: unknown planner %q", n.Name, n.Planner)
		}
	case NodeTypeFunction:
		if n.Function == "" {
			return fmt.Errorf("node %s: function is required", n.Name)
		}
	default:
		return fmt.Errorf("node %s: unknown type %q", n.Name, n.Type)
	}
	return nil
}
