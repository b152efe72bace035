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
	"fmt"
	"time"

	mcp "trpc.group/trpc-go/trpc-mcp-go"
)

type transport string

const (
	transportStdio      transport = "stdio"
	transportSSE        transport = "sse"
	transportStreamable transport = "streamable"
)

var defaultClientInfo = mcp.Implementation{
	Name:    "trpc-agent-graph",
	Version: "1.0.0",
}

// ConnectionConfig describes how to reach an MCP server.
type ConnectionConfig struct {
	// Transport is one of "stdio", "sse" or "streamable".
	Transport string `json:"transport" yaml:"transport"`

	ServerURL string            `json:"server_url,omitempty" yaml:"server_url,omitempty"`
	Headers   map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`

	Command string   `json:"command,omitempty" yaml:"command,omitempty"`
	Args    []string `json:"args,omitempty" yaml:"args,omitempty"`

	// Timeout bounds every MCP request that has no deadline of its own.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	ClientInfo mcp.Implementation `json:"client_info,omitempty" yaml:"-"`
}

type providerConfig struct {
	filter     ToolFilter
	mcpOptions []mcp.ClientOption
	reconnect  bool
	session    session
}

// Option configures a Provider.
type Option func(*providerConfig)

// WithToolFilter keeps only the server tools accepted by filter.
func WithToolFilter(filter ToolFilter) Option {
	return func(c *providerConfig) { c.filter = filter }
}

// WithMCPOptions passes client options to the underlying MCP client.
func WithMCPOptions(options ...mcp.ClientOption) Option {
	return func(c *providerConfig) { c.mcpOptions = append(c.mcpOptions, options...) }
}

// WithReconnect makes the provider recreate the session once when a call
// fails because the session or transport went away.
func WithReconnect(enabled bool) Option {
	return func(c *providerConfig) { c.reconnect = enabled }
}

func withSession(s session) Option {
	return func(c *providerConfig) { c.session = s }
}

func validateTransport(t string) (transport, error) {
	switch t {
	case "stdio":
		return transportStdio, nil
	case "sse":
		return transportSSE, nil
	case "streamable", "streamable_http":
		return transportStreamable, nil
	default:
		return "", fmt.Errorf("unsupported transport: %s, supported: stdio, sse, streamable", t)
	}
}
