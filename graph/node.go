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
	"trpc.group/trpc-go/trpc-agent-graph/workflow"
)

// NodeType classifies nodes for callbacks and visualization.
type NodeType string

// Node types.
const (
	NodeTypeFunction NodeType = "function"
	NodeTypeModel    NodeType = "model"
)

// Node is a named unit of work.
type Node interface {
	// Name is the unique key of the node in its graph.
	Name() string
	// Process runs the node against the shared state. cfg may be nil.
	Process(ctx context.Context, st *state.State, cfg *workflow.Config) error
}

// Typed is implemented by nodes that report their type. Other nodes are
// treated as NodeTypeFunction.
type Typed interface {
	Type() NodeType
}

// Cloner is implemented by nodes that hold mutable configuration. Compile
// stores the clone so later changes to the original do not leak into a
// compiled graph.
type Cloner interface {
	Clone() Node
}

func typeOf(n Node) NodeType {
	if t, ok := n.(Typed); ok {
		return t.Type()
	}
	return NodeTypeFunction
}

func describe(n Node) string {
	if d, ok := n.(interface{ Description() string }); ok {
		return d.Description()
	}
	return ""
}

// NodeFunc is the body of a plain node.
type NodeFunc func(ctx context.Context, st *state.State, cfg *workflow.Config) error

// FuncNode is a plain node backed by a function.
type FuncNode struct {
	name        string
	description string
	fn          NodeFunc
}

// FuncNodeOption configures a FuncNode.
type FuncNodeOption func(*FuncNode)

// WithDescription sets the description of the node.
func WithDescription(description string) FuncNodeOption {
	return func(n *FuncNode) { n.description = description }
}

// NewFuncNode creates a plain node. A nil fn does nothing.
func NewFuncNode(name string, fn NodeFunc, opts ...FuncNodeOption) *FuncNode {
	n := &FuncNode{name: name, fn: fn}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Name implements Node.
func (n *FuncNode) Name() string { return n.name }

// Description returns the description of the node.
func (n *FuncNode) Description() string { return n.description }

// Type implements Typed.
func (n *FuncNode) Type() NodeType { return NodeTypeFunction }

// Process implements Node.
func (n *FuncNode) Process(ctx context.Context, st *state.State, cfg *workflow.Config) error {
	if n.fn == nil {
		return nil
	}
	return n.fn(ctx, st, cfg)
}

// Clone implements Cloner.
func (n *FuncNode) Clone() Node {
	c := *n
	return &c
}
