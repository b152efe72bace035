//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package tool defines capability declarations, providers and the registry
// that resolves capability names for the turn loop.
package tool

import (
	"context"
)

// Error type tags attached to tool messages that report a failed call.
const (
	ErrorTypeNotFound  = "tool_not_found"
	ErrorTypeDisabled  = "capability_disabled"
	ErrorTypeExecution = "tool_execution"
)

// Provider groups a set of capabilities served by one backend, for example
// a table of Go functions or a remote MCP server.
type Provider interface {
	// ID identifies the provider in workflow configuration.
	ID() string
	// Declarations lists the capabilities the provider serves.
	Declarations() []*Declaration
	// Invoke runs the named capability. The live state of the running
	// execution is available through state.FromContext(ctx).
	Invoke(ctx context.Context, name string, args map[string]any) (any, error)
}

// Declaration describes a single capability.
type Declaration struct {
	// Name is the unique identifier of the capability.
	Name string `json:"name"`

	// Description explains the capability to the model.
	Description string `json:"description"`

	// Parameters are the ordered parameters of the capability.
	Parameters []Parameter `json:"parameters,omitempty"`

	// Schema, when set, is used verbatim instead of one derived from Parameters.
	Schema *Schema `json:"schema,omitempty"`
}

// Parameter describes one argument of a capability.
type Parameter struct {
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Description string  `json:"description,omitempty"`
	Required    bool    `json:"required,omitempty"`
	Items       *Schema `json:"items,omitempty"`
	Enum        []any   `json:"enum,omitempty"`
}

// Schema is the JSON-schema shape sent to model backends.
type Schema struct {
	// Type specifies the data type (e.g., "object", "array", "string", "number").
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Required    []string `json:"required,omitempty"`
	// Properties of the arguments, each with its own schema.
	Properties map[string]*Schema `json:"properties,omitempty"`
	// Items defines the schema of array elements.
	Items *Schema `json:"items,omitempty"`
	Enum  []any   `json:"enum,omitempty"`
	// AdditionalProperties controls whether undeclared properties are allowed.
	AdditionalProperties any `json:"additionalProperties,omitempty"`
}

// Capability is a declaration resolved to the provider that serves it.
type Capability struct {
	ProviderID  string
	Declaration *Declaration
	Provider    Provider
}

// Invoke calls the capability through its provider.
func (c *Capability) Invoke(ctx context.Context, args map[string]any) (any, error) {
	return c.Provider.Invoke(ctx, c.Declaration.Name, args)
}
