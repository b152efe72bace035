//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package mcp provides a capability provider whose capabilities are the
// tools of an MCP server.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	mcp "trpc.group/trpc-go/trpc-mcp-go"

	"trpc.group/trpc-go/trpc-agent-graph/log"
	"trpc.group/trpc-go/trpc-agent-graph/tool"
)

// Provider exposes the tools of one MCP server as capabilities.
type Provider struct {
	id      string
	cfg     providerConfig
	session session

	mu    sync.RWMutex
	decls []*tool.Declaration
}

// New connects to the server described by conn and lists its tools. The
// declarations are fixed until Refresh is called.
func New(ctx context.Context, id string, conn ConnectionConfig, opts ...Option) (*Provider, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty provider id", tool.ErrInvalidProvider)
	}
	cfg := providerConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	sess := cfg.session
	if sess == nil {
		if _, err := validateTransport(conn.Transport); err != nil {
			return nil, err
		}
		sess = newClientSession(conn, cfg.mcpOptions)
	}
	p := &Provider{id: id, cfg: cfg, session: sess}
	if err := p.Refresh(ctx); err != nil {
		if closeErr := sess.close(); closeErr != nil {
			log.Warnf("close MCP provider %s: %v", id, closeErr)
		}
		return nil, err
	}
	return p, nil
}

// Refresh reloads the tool list from the server.
func (p *Provider) Refresh(ctx context.Context) error {
	tools, err := p.session.listTools(ctx)
	if err != nil && p.cfg.reconnect && shouldReconnect(err) {
		if rerr := p.session.reconnect(ctx); rerr == nil {
			tools, err = p.session.listTools(ctx)
		}
	}
	if err != nil {
		return fmt.Errorf("mcp provider %s: %w", p.id, err)
	}
	decls := make([]*tool.Declaration, 0, len(tools))
	for _, t := range tools {
		if p.cfg.filter != nil && !p.cfg.filter.Keep(t.Name) {
			continue
		}
		decls = append(decls, &tool.Declaration{
			Name:        t.Name,
			Description: t.Description,
			Schema:      convertSchema(t.InputSchema),
		})
	}
	p.mu.Lock()
	p.decls = decls
	p.mu.Unlock()
	log.Debugf("mcp provider %s exposes %d tool(s)", p.id, len(decls))
	return nil
}

// ID implements tool.Provider.
func (p *Provider) ID() string { return p.id }

// Declarations implements tool.Provider.
func (p *Provider) Declarations() []*tool.Declaration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]*tool.Declaration(nil), p.decls...)
}

// Invoke implements tool.Provider. Text content is joined with newlines.
func (p *Provider) Invoke(ctx context.Context, name string, args map[string]any) (any, error) {
	if args == nil {
		args = map[string]any{}
	}
	contents, err := p.session.callTool(ctx, name, args)
	if err != nil && p.cfg.reconnect && shouldReconnect(err) && ctx.Err() == nil {
		log.Debugf("mcp provider %s reconnecting after: %v", p.id, err)
		if rerr := p.session.reconnect(ctx); rerr != nil {
			return nil, errors.Join(err, rerr)
		}
		contents, err = p.session.callTool(ctx, name, args)
	}
	if err != nil {
		return nil, err
	}
	return contentText(contents), nil
}

// Close releases the MCP session.
func (p *Provider) Close() error {
	return p.session.close()
}

func contentText(contents []mcp.Content) string {
	var parts []string
	for _, c := range contents {
		switch tc := c.(type) {
		case mcp.TextContent:
			parts = append(parts, tc.Text)
		case *mcp.TextContent:
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}
