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
	"strings"
)

// Errors.
var (
	ErrEntryNotFound    = errors.New("entry node not found")
	ErrCycleDetected    = errors.New("cycle detected among fixed edges")
	ErrInvalidNode      = errors.New("invalid node")
	ErrInvalidRouter    = errors.New("invalid router")
	ErrNilState         = errors.New("state is nil")
	ErrMaxStepsExceeded = errors.New("maximum execution steps exceeded")
	// ErrSkipNode, returned by a before-node callback, skips Process but
	// still evaluates the node's routers.
	ErrSkipNode = errors.New("skip node")
)

// GraphDefinitionError reports a graph that cannot be compiled. It is only
// returned by Compile.
type GraphDefinitionError struct {
	// Err wraps one or more of ErrEntryNotFound, ErrCycleDetected,
	// ErrInvalidNode and ErrInvalidRouter.
	Err error
	// Cycle lists the nodes of the detected cycle, first node repeated last.
	Cycle []string
}

func (e *GraphDefinitionError) Error() string {
	if len(e.Cycle) > 0 {
		return fmt.Sprintf("graph definition: %v: %s", e.Err, strings.Join(e.Cycle, " -> "))
	}
	return fmt.Sprintf("graph definition: %v", e.Err)
}

func (e *GraphDefinitionError) Unwrap() error { return e.Err }

// RoutingError reports a router that could not deliver a branch. The branch
// ends and sibling branches continue.
type RoutingError struct {
	Source string
	Target string
	Err    error
}

func (e *RoutingError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("routing %s -> %s: %v", e.Source, e.Target, e.Err)
	}
	return fmt.Sprintf("routing from %s: %v", e.Source, e.Err)
}

func (e *RoutingError) Unwrap() error { return e.Err }

// errUnknownTarget is wrapped by a RoutingError for a target that is not in
// the graph.
var errUnknownTarget = errors.New("target node does not exist")

// IsUnknownTarget reports whether err is a RoutingError for a missing node.
func IsUnknownTarget(err error) bool {
	return errors.Is(err, errUnknownTarget)
}

// NodeError reports a node whose Process failed or panicked.
type NodeError struct {
	Node string
	Err  error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %v", e.Node, e.Err)
}

func (e *NodeError) Unwrap() error { return e.Err }
