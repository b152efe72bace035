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
	"time"

	"trpc.group/trpc-go/trpc-agent-graph/state"
)

// NodeCallbackContext provides context information for node callbacks.
type NodeCallbackContext struct {
	// NodeName is the name of the node being executed.
	NodeName string
	// NodeType is the type of the node being executed.
	NodeType NodeType
	// StepNumber is the 1-based step of the execution that runs the node.
	StepNumber int
	// ExecutionStartTime is when the node execution started.
	ExecutionStartTime time.Time
	// TenantID and ThreadID identify the state the node runs against.
	TenantID string
	ThreadID string
}

// BeforeNodeCallback is called before a node is executed. Returning
// ErrSkipNode skips Process; any other error fails the node.
type BeforeNodeCallback func(
	ctx context.Context,
	callbackCtx *NodeCallbackContext,
	st *state.State,
) error

// AfterNodeCallback is called after a node is executed with the error of
// Process. The returned error replaces it.
type AfterNodeCallback func(
	ctx context.Context,
	callbackCtx *NodeCallbackContext,
	st *state.State,
	nodeErr error,
) error

// OnNodeErrorCallback is called when a node execution fails.
// This callback cannot change the error but can be used for logging, monitoring, etc.
type OnNodeErrorCallback func(
	ctx context.Context,
	callbackCtx *NodeCallbackContext,
	st *state.State,
	err error,
)

// NodeCallbacks holds callbacks for node operations.
type NodeCallbacks struct {
	// BeforeNode is a list of callbacks that are called before the node is executed.
	BeforeNode []BeforeNodeCallback
	// AfterNode is a list of callbacks that are called after the node is executed.
	AfterNode []AfterNodeCallback
	// OnNodeError is a list of callbacks that are called when a node execution fails.
	OnNodeError []OnNodeErrorCallback
}

// NewNodeCallbacks creates a new NodeCallbacks instance.
func NewNodeCallbacks() *NodeCallbacks {
	return &NodeCallbacks{}
}

// RegisterBeforeNode registers a before node callback.
func (c *NodeCallbacks) RegisterBeforeNode(cb BeforeNodeCallback) *NodeCallbacks {
	c.BeforeNode = append(c.BeforeNode, cb)
	return c
}

// RegisterAfterNode registers an after node callback.
func (c *NodeCallbacks) RegisterAfterNode(cb AfterNodeCallback) *NodeCallbacks {
	c.AfterNode = append(c.AfterNode, cb)
	return c
}

// RegisterOnNodeError registers an on node error callback.
func (c *NodeCallbacks) RegisterOnNodeError(cb OnNodeErrorCallback) *NodeCallbacks {
	c.OnNodeError = append(c.OnNodeError, cb)
	return c
}

// Merge appends the callbacks of other to c.
func (c *NodeCallbacks) Merge(other *NodeCallbacks) *NodeCallbacks {
	if other == nil {
		return c
	}
	c.BeforeNode = append(c.BeforeNode, other.BeforeNode...)
	c.AfterNode = append(c.AfterNode, other.AfterNode...)
	c.OnNodeError = append(c.OnNodeError, other.OnNodeError...)
	return c
}

// RunBeforeNode runs the before callbacks in order and stops at the first
// error.
func (c *NodeCallbacks) RunBeforeNode(
	ctx context.Context,
	callbackCtx *NodeCallbackContext,
	st *state.State,
) error {
	if c == nil {
		return nil
	}
	for _, cb := range c.BeforeNode {
		if err := cb(ctx, callbackCtx, st); err != nil {
			return err
		}
	}
	return nil
}

// RunAfterNode runs the after callbacks in order, threading the error
// through them.
func (c *NodeCallbacks) RunAfterNode(
	ctx context.Context,
	callbackCtx *NodeCallbackContext,
	st *state.State,
	nodeErr error,
) error {
	if c == nil {
		return nodeErr
	}
	for _, cb := range c.AfterNode {
		nodeErr = cb(ctx, callbackCtx, st, nodeErr)
	}
	return nodeErr
}

// RunOnNodeError runs all on node error callbacks in order.
func (c *NodeCallbacks) RunOnNodeError(
	ctx context.Context,
	callbackCtx *NodeCallbackContext,
	st *state.State,
	err error,
) {
	if c == nil {
		return
	}
	for _, cb := range c.OnNodeError {
		cb(ctx, callbackCtx, st, err)
	}
}
