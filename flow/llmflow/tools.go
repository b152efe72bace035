//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package llmflow

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"trpc.group/trpc-go/trpc-agent-graph/log"
	"trpc.group/trpc-go/trpc-agent-graph/model"
	"trpc.group/trpc-go/trpc-agent-graph/telemetry"
	"trpc.group/trpc-go/trpc-agent-graph/telemetry/metric"
	"trpc.group/trpc-go/trpc-agent-graph/telemetry/trace"
	"trpc.group/trpc-go/trpc-agent-graph/tool"
	"trpc.group/trpc-go/trpc-agent-graph/workflow"
)

// Error payloads of tool messages.
const (
	errToolNotFound       = "Error: tool %q not found"
	errCapabilityDisabled = "Error: tool %q is not enabled for this workflow"
	errToolExecution      = "Error: tool %q failed: %v"
)

// executeToolCalls answers every call with exactly one tool message. The
// returned messages follow the order of calls.
func (f *Flow) executeToolCalls(ctx context.Context, cfg *workflow.Config, calls []model.ToolCall) []model.Message {
	msgs := make([]model.Message, len(calls))
	if !f.parallelTools || len(calls) == 1 {
		for i, tc := range calls {
			msgs[i] = f.executeToolCall(ctx, cfg, tc)
		}
		return msgs
	}
	var g errgroup.Group
	if f.toolLimit > 0 {
		g.SetLimit(f.toolLimit)
	}
	for i, tc := range calls {
		g.Go(func() error {
			msgs[i] = f.executeToolCall(ctx, cfg, tc)
			return nil
		})
	}
	_ = g.Wait()
	return msgs
}

// executeToolCall resolves, gates and invokes one call inside its own span.
func (f *Flow) executeToolCall(ctx context.Context, cfg *workflow.Config, tc model.ToolCall) (msg model.Message) {
	ctx, span := trace.Tracer.Start(ctx, fmt.Sprintf("%s %s", telemetry.SpanNamePrefixExecuteTool, tc.Name))
	defer span.End()
	defer func() {
		errType, _ := msg.Metadata[model.MetadataErrorType].(string)
		telemetry.TraceToolCall(span, tc.Name, tc.ID, tc.Arguments, msg.Content, errType)
		metric.RecordToolCall(ctx, tc.Name, errType)
	}()

	c, ok := f.registry.Lookup(tc.Name)
	if !ok {
		log.Errorf("tool %s not found (call %s)", tc.Name, tc.ID)
		return model.NewToolErrorMessage(tc.ID, tc.Name, tool.ErrorTypeNotFound,
			fmt.Sprintf(errToolNotFound, tc.Name))
	}
	if !cfg.IsEnabled(c.ProviderID, tc.Name) {
		log.Warnf("tool %s of provider %s is disabled for tenant %s", tc.Name, c.ProviderID, tenantOf(cfg))
		return model.NewToolErrorMessage(tc.ID, tc.Name, tool.ErrorTypeDisabled,
			fmt.Sprintf(errCapabilityDisabled, tc.Name))
	}

	log.Debugf("executing tool %s with args: %v", tc.Name, tc.Arguments)
	result, err := f.invoke(ctx, c, tc.Arguments)
	if err != nil {
		log.Errorf("tool %s failed (call %s): %v", tc.Name, tc.ID, err)
		return model.NewToolErrorMessage(tc.ID, tc.Name, tool.ErrorTypeExecution,
			fmt.Sprintf(errToolExecution, tc.Name, err))
	}
	content, err := formatResult(result)
	if err != nil {
		log.Errorf("tool %s returned an unencodable result: %v", tc.Name, err)
		return model.NewToolErrorMessage(tc.ID, tc.Name, tool.ErrorTypeExecution,
			fmt.Sprintf(errToolExecution, tc.Name, err))
	}
	return model.NewToolMessage(tc.ID, tc.Name, content)
}

// invoke runs the capability with the tool callbacks around it. Panics are
// turned into errors.
func (f *Flow) invoke(ctx context.Context, c *tool.Capability, args map[string]any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	if args == nil {
		args = map[string]any{}
	}
	custom, err := f.toolCallbacks.RunBeforeTool(ctx, c.Declaration, args)
	if err != nil {
		return nil, fmt.Errorf("before tool callback: %w", err)
	}
	if custom != nil {
		result = custom
	} else {
		result, err = c.Invoke(ctx, args)
	}
	after, cbErr := f.toolCallbacks.RunAfterTool(ctx, c.Declaration, args, result, err)
	if cbErr != nil {
		return nil, fmt.Errorf("after tool callback: %w", cbErr)
	}
	if after != nil {
		return after, nil
	}
	return result, err
}

func formatResult(result any) (string, error) {
	switch v := result.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case fmt.Stringer:
		return v.String(), nil
	}
	bts, err := json.Marshal(result)
	if err != nil {
		return "", err
	}
	return string(bts), nil
}

func tenantOf(cfg *workflow.Config) string {
	if cfg == nil {
		return ""
	}
	return cfg.TenantID
}
