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
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	mcp "trpc.group/trpc-go/trpc-mcp-go"

	"trpc.group/trpc-go/trpc-agent-graph/tool"
)

type fakeSession struct {
	tools      []mcp.Tool
	listErr    error
	callErrs   []error
	calls      []string
	reconnects int
	closed     bool
}

func (f *fakeSession) listTools(context.Context) ([]mcp.Tool, error) {
	return f.tools, f.listErr
}

func (f *fakeSession) callTool(_ context.Context, name string, args map[string]any) ([]mcp.Content, error) {
	f.calls = append(f.calls, name)
	if len(f.callErrs) > 0 {
		err := f.callErrs[0]
		f.callErrs = f.callErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return []mcp.Content{
		mcp.NewTextContent("echo " + name),
		mcp.NewTextContent("args " + args["q"].(string)),
	}, nil
}

func (f *fakeSession) reconnect(context.Context) error {
	f.reconnects++
	return nil
}

func (f *fakeSession) close() error {
	f.closed = true
	return nil
}

func TestProviderDeclarationsAndInvoke(t *testing.T) {
	sess := &fakeSession{tools: []mcp.Tool{
		{Name: "search", Description: "web search"},
		{Name: "admin_reset", Description: "dangerous"},
	}}
	p, err := New(context.Background(), "web", ConnectionConfig{}, withSession(sess), WithToolFilter(ExcludeTools("admin_*")))
	require.NoError(t, err)
	assert.Equal(t, "web", p.ID())

	decls := p.Declarations()
	require.Len(t, decls, 1)
	assert.Equal(t, "search", decls[0].Name)
	assert.Equal(t, tool.TypeObject, decls[0].InputSchema().Type)

	out, err := p.Invoke(context.Background(), "search", map[string]any{"q": "go"})
	require.NoError(t, err)
	assert.Equal(t, "echo search\nargs go", out)

	require.NoError(t, p.Close())
	assert.True(t, sess.closed)
}

func TestProviderReconnectsOnSessionError(t *testing.T) {
	sess := &fakeSession{
		tools:    []mcp.Tool{{Name: "search"}},
		callErrs: []error{errors.New("session_expired: gone")},
	}
	p, err := New(context.Background(), "web", ConnectionConfig{}, withSession(sess), WithReconnect(true))
	require.NoError(t, err)
	out, err := p.Invoke(context.Background(), "search", map[string]any{"q": "x"})
	require.NoError(t, err)
	assert.Equal(t, "echo search\nargs x", out)
	assert.Equal(t, 1, sess.reconnects)
	assert.Equal(t, []string{"search", "search"}, sess.calls)
}

func TestProviderReturnsCallErrorWithoutReconnect(t *testing.T) {
	boom := errors.New("tool failed")
	sess := &fakeSession{tools: []mcp.Tool{{Name: "search"}}, callErrs: []error{boom}}
	p, err := New(context.Background(), "web", ConnectionConfig{}, withSession(sess))
	require.NoError(t, err)
	_, err = p.Invoke(context.Background(), "search", nil)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, sess.reconnects)
}

func TestNewFailures(t *testing.T) {
	_, err := New(context.Background(), "", ConnectionConfig{})
	assert.ErrorIs(t, err, tool.ErrInvalidProvider)

	_, err = New(context.Background(), "x", ConnectionConfig{Transport: "carrier-pigeon"})
	assert.Error(t, err)

	sess := &fakeSession{listErr: errors.New("down")}
	_, err = New(context.Background(), "x", ConnectionConfig{}, withSession(sess))
	assert.Error(t, err)
	assert.True(t, sess.closed)
}

func TestConvertSchema(t *testing.T) {
	s := convertSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"q":    map[string]any{"type": "string", "description": "query"},
			"tags": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required": []string{"q"},
	})
	assert.Equal(t, "object", s.Type)
	assert.Equal(t, []string{"q"}, s.Required)
	assert.Equal(t, "query", s.Properties["q"].Description)
	assert.Equal(t, "string", s.Properties["tags"].Items.Type)

	assert.Equal(t, tool.TypeObject, convertSchema(nil).Type)
	assert.Equal(t, tool.TypeObject, convertSchema(func() {}).Type)
}

func TestFiltersAndTransport(t *testing.T) {
	assert.True(t, IncludeTools("get*").Keep("getWeather"))
	assert.False(t, IncludeTools("get*").Keep("setWeather"))
	assert.True(t, ExcludeTools("admin").Keep("search"))

	for _, tr := range []string{"stdio", "sse", "streamable", "streamable_http"} {
		_, err := validateTransport(tr)
		assert.NoError(t, err, tr)
	}
	assert.True(t, shouldReconnect(errors.New("read: EOF")))
	assert.False(t, shouldReconnect(errors.New("bad arguments")))
	assert.False(t, shouldReconnect(nil))
}
