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
	"fmt"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
	mcp "trpc.group/trpc-go/trpc-mcp-go"

	"trpc.group/trpc-go/trpc-agent-graph/log"
)

var errSessionClosed = errors.New("transport is closed")

// Errors whose text signals that the session has to be recreated.
var sessionReconnectErrorPatterns = []string{
	"session_expired:",
	"transport is closed",
	"not initialized",
	"connection refused",
	"connection reset",
	"EOF",
	"broken pipe",
	"HTTP 404",
	"session not found",
}

type session interface {
	listTools(ctx context.Context) ([]mcp.Tool, error)
	callTool(ctx context.Context, name string, args map[string]any) ([]mcp.Content, error)
	reconnect(ctx context.Context) error
	close() error
}

// clientSession owns one MCP client connection.
type clientSession struct {
	config     ConnectionConfig
	mcpOptions []mcp.ClientOption

	mu             sync.RWMutex
	client         mcp.Connector
	reconnectGroup singleflight.Group
}

func newClientSession(config ConnectionConfig, mcpOptions []mcp.ClientOption) *clientSession {
	if config.ClientInfo.Name == "" {
		config.ClientInfo = defaultClientInfo
	}
	return &clientSession{config: config, mcpOptions: mcpOptions}
}

func (s *clientSession) connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return nil
	}
	log.Debugf("connecting to MCP server via %s", s.config.Transport)
	client, err := s.createClient()
	if err != nil {
		return fmt.Errorf("create MCP client: %w", err)
	}
	initCtx, cancel := s.timeoutContext(ctx)
	defer cancel()
	initResp, err := client.Initialize(initCtx, &mcp.InitializeRequest{})
	if err != nil {
		if closeErr := client.Close(); closeErr != nil {
			log.Warnf("close MCP client after failed initialize: %v", closeErr)
		}
		return fmt.Errorf("initialize MCP session: %w", err)
	}
	log.Debugf("MCP session initialized with %s %s", initResp.ServerInfo.Name, initResp.ServerInfo.Version)
	s.client = client
	return nil
}

func (s *clientSession) createClient() (mcp.Connector, error) {
	transportType, err := validateTransport(s.config.Transport)
	if err != nil {
		return nil, err
	}
	switch transportType {
	case transportStdio:
		config := mcp.StdioTransportConfig{
			ServerParams: mcp.StdioServerParameters{
				Command: s.config.Command,
				Args:    s.config.Args,
			},
			Timeout: s.config.Timeout,
		}
		return mcp.NewStdioClient(config, s.config.ClientInfo)
	case transportSSE:
		return mcp.NewSSEClient(s.config.ServerURL, s.config.ClientInfo, s.httpOptions()...)
	default:
		return mcp.NewClient(s.config.ServerURL, s.config.ClientInfo, s.httpOptions()...)
	}
}

func (s *clientSession) httpOptions() []mcp.ClientOption {
	var options []mcp.ClientOption
	if len(s.config.Headers) > 0 {
		headers := http.Header{}
		for k, v := range s.config.Headers {
			headers.Set(k, v)
		}
		options = append(options, mcp.WithHTTPHeaders(headers))
	}
	return append(options, s.mcpOptions...)
}

func (s *clientSession) timeoutContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.Timeout > 0 {
		if _, ok := ctx.Deadline(); !ok {
			return context.WithTimeout(ctx, s.config.Timeout)
		}
	}
	return ctx, func() {}
}

func (s *clientSession) listTools(ctx context.Context) ([]mcp.Tool, error) {
	if err := s.connect(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.client == nil {
		return nil, errSessionClosed
	}
	listCtx, cancel := s.timeoutContext(ctx)
	defer cancel()
	rsp, err := s.client.ListTools(listCtx, &mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}
	return rsp.Tools, nil
}

func (s *clientSession) callTool(ctx context.Context, name string, args map[string]any) ([]mcp.Content, error) {
	if err := s.connect(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.client == nil {
		return nil, errSessionClosed
	}
	callCtx, cancel := s.timeoutContext(ctx)
	defer cancel()
	req := &mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	rsp, err := s.client.CallTool(callCtx, req)
	if err != nil {
		return nil, fmt.Errorf("call tool %s: %w", name, err)
	}
	return rsp.Content, nil
}

func (s *clientSession) reconnect(ctx context.Context) error {
	_, err, _ := s.reconnectGroup.Do("reconnect", func() (any, error) {
		if err := s.close(); err != nil {
			log.Warnf("close MCP session before reconnect: %v", err)
		}
		return nil, s.connect(ctx)
	})
	return err
}

func (s *clientSession) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	if err != nil {
		return fmt.Errorf("close MCP client: %w", err)
	}
	return nil
}

func shouldReconnect(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, p := range sessionReconnectErrorPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
