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
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-agent-graph/state"
	"trpc.group/trpc-go/trpc-agent-graph/workflow"
)

func TestNodeCallbacksNilSafe(t *testing.T) {
	var cb *NodeCallbacks
	ctx := context.Background()
	assert.NoError(t, cb.RunBeforeNode(ctx, &NodeCallbackContext{}, nil))
	boom := errors.New("boom")
	assert.Equal(t, boom, cb.RunAfterNode(ctx, &NodeCallbackContext{}, nil, boom))
	cb.RunOnNodeError(ctx, &NodeCallbackContext{}, nil, boom)
}

func TestNodeCallbacksMerge(t *testing.T) {
	var calls []string
	a := NewNodeCallbacks().RegisterBeforeNode(func(context.Context, *NodeCallbackContext, *state.State) error {
		calls = append(calls, "a")
		return nil
	})
	b := NewNodeCallbacks().RegisterBeforeNode(func(context.Context, *NodeCallbackContext, *state.State) error {
		calls = append(calls, "b")
		return errors.New("stop")
	})
	a.Merge(b).Merge(nil)
	err := a.RunBeforeNode(context.Background(), &NodeCallbackContext{}, nil)
	assert.EqualError(t, err, "stop")
	assert.Equal(t, []string{"a", "b"}, calls)
}

func TestExecuteWithNodeCallbacks(t *testing.T) {
	rec := newRecorder()
	var mu sync.Mutex
	var before, after []string
	var failures []string
	var steps []int

	cb := NewNodeCallbacks().
		RegisterBeforeNode(func(_ context.Context, c *NodeCallbackContext, _ *state.State) error {
			mu.Lock()
			defer mu.Unlock()
			before = append(before, c.NodeName)
			steps = append(steps, c.StepNumber)
			assert.Equal(t, "tenant", c.TenantID)
			assert.Equal(t, NodeTypeFunction, c.NodeType)
			assert.False(t, c.ExecutionStartTime.IsZero())
			if c.NodeName == "skipped" {
				return ErrSkipNode
			}
			return nil
		}).
		RegisterAfterNode(func(_ context.Context, c *NodeCallbackContext, _ *state.State, err error) error {
			mu.Lock()
			after = append(after, c.NodeName)
			mu.Unlock()
			if c.NodeName == "recovered" {
				return nil
			}
			return err
		}).
		RegisterOnNodeError(func(_ context.Context, c *NodeCallbackContext, _ *state.State, _ error) {
			mu.Lock()
			failures = append(failures, c.NodeName)
			mu.Unlock()
		})

	failing := func(context.Context, *state.State, *workflow.Config) error { return errors.New("fail") }
	g := New().
		AddNode(rec.node("skipped", nil)).
		AddNode(rec.node("recovered", failing)).
		AddNode(rec.node("failed", failing)).
		AddNode(rec.node("unreached", nil)).
		AddEdge("skipped", "recovered").
		AddEdge("recovered", "failed").
		AddEdge("failed", "unreached").
		SetEntryPoint("skipped")

	res, _ := execute(t, g, WithNodeCallbacks(cb))
	assert.Equal(t, 0, rec.count("skipped"), "skipped node must not run")
	assert.Equal(t, 1, rec.count("recovered"))
	assert.Equal(t, 1, rec.count("failed"))
	assert.Equal(t, 0, rec.count("unreached"))
	assert.Equal(t, []string{"skipped", "recovered", "failed"}, before)
	assert.Equal(t, []string{"skipped", "recovered", "failed"}, after)
	assert.Equal(t, []int{1, 2, 3}, steps)
	assert.Equal(t, []string{"failed"}, failures)
	require.Len(t, res.Errors, 1)
}
