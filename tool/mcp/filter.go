//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package mcp

import (
	"github.com/bmatcuk/doublestar/v4"
)

// ToolFilter decides which server tools a provider exposes.
type ToolFilter interface {
	Keep(name string) bool
}

// ToolFilterFunc adapts a function to ToolFilter.
type ToolFilterFunc func(name string) bool

// Keep implements ToolFilter.
func (f ToolFilterFunc) Keep(name string) bool { return f(name) }

// IncludeTools keeps tools whose name matches one of patterns.
func IncludeTools(patterns ...string) ToolFilter {
	return ToolFilterFunc(func(name string) bool { return matchAny(patterns, name) })
}

// ExcludeTools drops tools whose name matches one of patterns.
func ExcludeTools(patterns ...string) ToolFilter {
	return ToolFilterFunc(func(name string) bool { return !matchAny(patterns, name) })
}

func matchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if p == name {
			return true
		}
		if ok, err := doublestar.Match(p, name); err == nil && ok {
			return true
		}
	}
	return false
}
