//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package planner defines turn strategies. A strategy reframes the system
// prompt, may inject messages before the turn loop starts and may rewrite
// each model response. It never changes how tool calls are executed.
package planner

import (
	"context"
	"strings"

	"trpc.group/trpc-go/trpc-agent-graph/model"
	"trpc.group/trpc-go/trpc-agent-graph/state"
)

// MetadataPlanning marks messages injected by a planner.
const MetadataPlanning = "planning"

// Planner is the interface that all turn strategies implement.
type Planner interface {
	// BuildPlanningInstruction returns text appended to the system
	// instruction of every request. Empty means nothing is appended.
	BuildPlanningInstruction(ctx context.Context, st *state.State, req *model.Request) string

	// PlanningMessages returns messages appended to the log once, before
	// the first model call of a turn.
	PlanningMessages(ctx context.Context, st *state.State) []model.Message

	// ProcessPlanningResponse rewrites a model response. Returning nil keeps
	// the response unchanged.
	ProcessPlanningResponse(ctx context.Context, st *state.State, rsp *model.Response) *model.Response
}

// JoinInstruction appends a planning instruction to a system prompt.
func JoinInstruction(system, instruction string) string {
	switch {
	case instruction == "":
		return system
	case system == "":
		return instruction
	default:
		return strings.TrimRight(system, "\n") + "\n\n" + instruction
	}
}

// SplitByLastTag splits text at the last occurrence of tag. The tag itself is
// dropped. found is false when text does not contain tag.
func SplitByLastTag(text, tag string) (before, after string, found bool) {
	idx := strings.LastIndex(text, tag)
	if idx == -1 {
		return text, "", false
	}
	return text[:idx], text[idx+len(tag):], true
}

// RewriteText applies fn to the content of every choice that carries text.
// Tool calls with an empty name are dropped. The input is not modified.
func RewriteText(rsp *model.Response, fn func(string) string) *model.Response {
	if rsp == nil || len(rsp.Choices) == 0 {
		return nil
	}
	out := rsp.Clone()
	for i := range out.Choices {
		msg := &out.Choices[i].Message
		if len(msg.ToolCalls) > 0 {
			calls := msg.ToolCalls[:0]
			for _, tc := range msg.ToolCalls {
				if tc.Name != "" {
					calls = append(calls, tc)
				}
			}
			msg.ToolCalls = calls
		}
		if msg.Content != "" {
			msg.Content = fn(msg.Content)
		}
	}
	return out
}
