//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package telemetry holds the names and span helpers shared by the trace
// and metric packages and by instrumented code.
package telemetry

import (
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Resource and instrumentation names.
const (
	ServiceName      = "agentgraph"
	ServiceVersion   = "v0.1.0"
	ServiceNamespace = "trpc-go-agent"
	InstrumentName   = "trpc.agent.graph"
)

// Span names.
const (
	SpanNameExecuteGraph      = "execute_graph"
	SpanNamePrefixExecuteNode = "execute_node"
	SpanNameCallLLM           = "call_llm"
	SpanNamePrefixExecuteTool = "execute_tool"
	SpanNameTurn              = "turn"
)

// Exporter protocols.
const (
	ProtocolGRPC string = "grpc"
	ProtocolHTTP string = "http"
)

// Attribute keys.
const (
	KeyTenantID    = "trpc.go.agent.tenant_id"
	KeyThreadID    = "trpc.go.agent.thread_id"
	KeyNodeName    = "trpc.go.agent.node"
	KeyStatus      = "trpc.go.agent.status"
	KeyIteration   = "trpc.go.agent.iteration"
	KeyLLMRequest  = "trpc.go.agent.llm_request"
	KeyLLMResponse = "trpc.go.agent.llm_response"
	KeyToolName    = "gen_ai.tool.name"
	KeyToolCallID  = "gen_ai.tool.call.id"
	KeyToolArgs    = "trpc.go.agent.tool_call_args"
	KeyToolResult  = "trpc.go.agent.tool_response"
	KeyErrorType   = "error.type"
	KeyModelName   = "gen_ai.request.model"
)

// Metric instrument names.
const (
	MetricNodeExecutions = "agentgraph.node.executions"
	MetricTurnIterations = "agentgraph.turn.iterations"
	MetricToolCalls      = "agentgraph.tool.calls"
	MetricModelRetries   = "agentgraph.model.retries"
)

// TraceToolCall records a capability invocation on span.
func TraceToolCall(span trace.Span, name, callID string, args map[string]any, result string, errType string) {
	span.SetAttributes(
		attribute.String("gen_ai.operation.name", "tool.execute"),
		attribute.String(KeyToolName, name),
		attribute.String(KeyToolCallID, callID),
		attribute.String(KeyToolArgs, jsonOr(args)),
		attribute.String(KeyToolResult, result),
	)
	if errType != "" {
		span.SetAttributes(attribute.String(KeyErrorType, errType))
		span.SetStatus(codes.Error, result)
	}
}

// TraceCallLLM records a model call on span.
func TraceCallLLM(span trace.Span, modelName string, req, rsp any) {
	span.SetAttributes(
		attribute.String("gen_ai.operation.name", "chat"),
		attribute.String(KeyModelName, modelName),
		attribute.String(KeyLLMRequest, jsonOr(req)),
		attribute.String(KeyLLMResponse, jsonOr(rsp)),
	)
}

func jsonOr(v any) string {
	bts, err := json.Marshal(v)
	if err != nil {
		return "<not json serializable>"
	}
	return string(bts)
}

// NewGRPCConn connects to an OpenTelemetry collector.
func NewGRPCConn(endpoint string) (*grpc.ClientConn, error) {
	conn, err := grpc.NewClient(endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection to collector: %w", err)
	}
	return conn, nil
}
