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

	"trpc.group/trpc-go/trpc-agent-graph/flow/llmflow"
	"trpc.group/trpc-go/trpc-agent-graph/log"
	"trpc.group/trpc-go/trpc-agent-graph/model"
	"trpc.group/trpc-go/trpc-agent-graph/model/retry"
	"trpc.group/trpc-go/trpc-agent-graph/planner"
	"trpc.group/trpc-go/trpc-agent-graph/state"
	"trpc.group/trpc-go/trpc-agent-graph/tool"
	"trpc.group/trpc-go/trpc-agent-graph/workflow"
)

// State keys written by model nodes.
const (
	// StateKeyLastAnswer holds the answer of the most recent model node.
	StateKeyLastAnswer = "last_answer"
	// answerKeySuffix is appended to the node name to form its answer key.
	answerKeySuffix = ".answer"
)

// AnswerKey is the state key under which the model node name stores its
// answer.
func AnswerKey(name string) string { return name + answerKeySuffix }

// ModelNode runs the turn loop against a model and the capabilities bound
// to the node.
type ModelNode struct {
	name         string
	description  string
	capabilities []string
	flow         *llmflow.Flow
}

// ModelNodeOption configures a ModelNode.
type ModelNodeOption func(*modelNodeOptions)

type modelNodeOptions struct {
	description  string
	capabilities []string
	flowOpts     []llmflow.Option
}

// WithModelDescription sets the description of the node.
func WithModelDescription(description string) ModelNodeOption {
	return func(o *modelNodeOptions) { o.description = description }
}

// WithCapabilities binds the named capabilities of the registry to the node.
// Without it every capability of the registry is bound.
func WithCapabilities(names ...string) ModelNodeOption {
	return func(o *modelNodeOptions) { o.capabilities = append(o.capabilities, names...) }
}

// WithSystemPrompt sets the node's default system prompt.
func WithSystemPrompt(prompt string) ModelNodeOption {
	return withFlowOption(llmflow.WithSystemPrompt(prompt))
}

// WithGenerationConfig sets the node's default sampling parameters.
func WithGenerationConfig(cfg model.GenerationConfig) ModelNodeOption {
	return withFlowOption(llmflow.WithGenerationConfig(cfg))
}

// WithModelID sets the model identifier sent to the backend.
func WithModelID(id string) ModelNodeOption {
	return withFlowOption(llmflow.WithModelID(id))
}

// WithMaxIterations bounds the model round trips of one turn.
func WithMaxIterations(n int) ModelNodeOption {
	return withFlowOption(llmflow.WithMaxIterations(n))
}

// WithPlanner sets the turn strategy of the node.
func WithPlanner(p planner.Planner) ModelNodeOption {
	return withFlowOption(llmflow.WithPlanner(p))
}

// WithParallelTools runs tool calls of one response concurrently.
func WithParallelTools(limit int) ModelNodeOption {
	return withFlowOption(llmflow.WithParallelTools(limit))
}

// WithRetry configures backend retries of the node.
func WithRetry(opts ...retry.Option) ModelNodeOption {
	return withFlowOption(llmflow.WithRetry(opts...))
}

// WithModelCallbacks sets callbacks run around every model call of the node.
func WithModelCallbacks(cb *model.Callbacks) ModelNodeOption {
	return withFlowOption(llmflow.WithModelCallbacks(cb))
}

// WithToolCallbacks sets callbacks run around every capability call of the node.
func WithToolCallbacks(cb *tool.Callbacks) ModelNodeOption {
	return withFlowOption(llmflow.WithToolCallbacks(cb))
}

// WithFlowOptions passes options straight to the turn loop.
func WithFlowOptions(opts ...llmflow.Option) ModelNodeOption {
	return func(o *modelNodeOptions) { o.flowOpts = append(o.flowOpts, opts...) }
}

func withFlowOption(opt llmflow.Option) ModelNodeOption {
	return func(o *modelNodeOptions) { o.flowOpts = append(o.flowOpts, opt) }
}

// NewModelNode creates a model node. The bound capability set is resolved
// from registry once, here.
func NewModelNode(name string, m model.Model, registry *tool.Registry, opts ...ModelNodeOption) *ModelNode {
	o := &modelNodeOptions{}
	for _, opt := range opts {
		opt(o)
	}
	bound := registry.Subset(o.capabilities...)
	return &ModelNode{
		name:         name,
		description:  o.description,
		capabilities: append([]string(nil), o.capabilities...),
		flow:         llmflow.New(m, bound, o.flowOpts...),
	}
}

// Name implements Node.
func (n *ModelNode) Name() string { return n.name }

// Description returns the description of the node.
func (n *ModelNode) Description() string { return n.description }

// Type implements Typed.
func (n *ModelNode) Type() NodeType { return NodeTypeModel }

// Flow returns the turn loop of the node.
func (n *ModelNode) Flow() *llmflow.Flow { return n.flow }

// Clone implements Cloner. The turn loop is immutable and shared.
func (n *ModelNode) Clone() Node {
	c := *n
	c.capabilities = append([]string(nil), n.capabilities...)
	return &c
}

// Process implements Node. It runs one turn and stores the answer under
// AnswerKey(name) and StateKeyLastAnswer. A degraded backend is logged and
// does not fail the node.
func (n *ModelNode) Process(ctx context.Context, st *state.State, cfg *workflow.Config) error {
	res, err := n.flow.Run(ctx, st, cfg, OverridesFromContext(ctx, n.name))
	if err != nil {
		return err
	}
	if res.Err != nil {
		log.Warnf("model node %s degraded: %v", n.name, res.Err)
	}
	if !res.Done {
		log.Infof("model node %s stopped after %d iterations without a final answer", n.name, res.Iterations)
	}
	st.Set(AnswerKey(n.name), res.Answer)
	st.Set(StateKeyLastAnswer, res.Answer)
	return nil
}

type overridesKey struct{}

// ContextWithOverrides attaches per-node turn overrides to ctx.
func ContextWithOverrides(ctx context.Context, overrides map[string]*llmflow.Overrides) context.Context {
	if len(overrides) == 0 {
		return ctx
	}
	return context.WithValue(ctx, overridesKey{}, overrides)
}

// OverridesFromContext returns the overrides for node, or nil.
func OverridesFromContext(ctx context.Context, node string) *llmflow.Overrides {
	m, _ := ctx.Value(overridesKey{}).(map[string]*llmflow.Overrides)
	return m[node]
}
