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
	"context"
)

// BeforeToolCallback runs before a capability is invoked. A non-nil result
// short-circuits the invocation. The args map may be modified in place.
type BeforeToolCallback func(ctx context.Context, decl *Declaration, args map[string]any) (any, error)

// AfterToolCallback runs after a capability returns. A non-nil result
// replaces the capability result.
type AfterToolCallback func(ctx context.Context, decl *Declaration, args map[string]any, result any, runErr error) (any, error)

// Callbacks holds callbacks run around capability invocations.
type Callbacks struct {
	// BeforeTool is a list of callbacks that are called before the tool is executed.
	BeforeTool []BeforeToolCallback
	// AfterTool is a list of callbacks that are called after the tool is executed.
	AfterTool []AfterToolCallback
}

// NewCallbacks creates a new callbacks instance for tool.
func NewCallbacks() *Callbacks {
	return &Callbacks{}
}

// RegisterBeforeTool registers a before tool callback.
func (c *Callbacks) RegisterBeforeTool(cb BeforeToolCallback) *Callbacks {
	c.BeforeTool = append(c.BeforeTool, cb)
	return c
}

// RegisterAfterTool registers an after tool callback.
func (c *Callbacks) RegisterAfterTool(cb AfterToolCallback) *Callbacks {
	c.AfterTool = append(c.AfterTool, cb)
	return c
}

// RunBeforeTool runs before callbacks in order and stops at the first one
// that returns a result or an error.
func (c *Callbacks) RunBeforeTool(ctx context.Context, decl *Declaration, args map[string]any) (any, error) {
	if c == nil {
		return nil, nil
	}
	for _, cb := range c.BeforeTool {
		custom, err := cb(ctx, decl, args)
		if err != nil {
			return nil, err
		}
		if custom != nil {
			return custom, nil
		}
	}
	return nil, nil
}

// RunAfterTool runs after callbacks in order and stops at the first one that
// returns a result or an error.
func (c *Callbacks) RunAfterTool(
	ctx context.Context,
	decl *Declaration,
	args map[string]any,
	result any,
	runErr error,
) (any, error) {
	if c == nil {
		return nil, nil
	}
	for _, cb := range c.AfterTool {
		custom, err := cb(ctx, decl, args, result, runErr)
		if err != nil {
			return nil, err
		}
		if custom != nil {
			return custom, nil
		}
	}
	return nil, nil
}
