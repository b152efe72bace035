//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package plan implements the plan-then-execute strategy. Before the first
// model call a planning message asks the model to write a numbered plan under
// PlanTag and then execute it. The plan is recorded in the state and removed
// from the assistant text.
package plan

import (
	"context"
	"strings"

	"trpc.group/trpc-go/trpc-agent-graph/model"
	"trpc.group/trpc-go/trpc-agent-graph/planner"
	"trpc.group/trpc-go/trpc-agent-graph/state"
)

// Tags used to structure the model response.
const (
	PlanTag        = "/*PLAN*/"
	ExecuteTag     = "/*EXECUTE*/"
	FinalAnswerTag = "/*FINAL_ANSWER*/"
)

// StateKeyPlan holds the most recent plan written by the model.
const StateKeyPlan = "plan.current"

const defaultPlanningPrompt = "Before doing anything else, write a short numbered plan under " +
	PlanTag + ". Each step should name the tool it uses, if any. Then execute the plan " +
	"step by step under " + ExecuteTag + " and finish with the answer under " +
	FinalAnswerTag + "."

var _ planner.Planner = (*Planner)(nil)

// Planner is the plan-then-execute strategy.
type Planner struct {
	prompt      string
	instruction string
}

// Option configures the planner.
type Option func(*Planner)

// WithPlanningPrompt replaces the injected planning message.
func WithPlanningPrompt(prompt string) Option {
	return func(p *Planner) { p.prompt = prompt }
}

// WithInstruction sets text appended to the system prompt.
func WithInstruction(instruction string) Option {
	return func(p *Planner) { p.instruction = instruction }
}

// New creates a plan-then-execute planner.
func New(opts ...Option) *Planner {
	p := &Planner{prompt: defaultPlanningPrompt}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// BuildPlanningInstruction implements planner.Planner.
func (p *Planner) BuildPlanningInstruction(context.Context, *state.State, *model.Request) string {
	return p.instruction
}

// PlanningMessages implements planner.Planner.
func (p *Planner) PlanningMessages(context.Context, *state.State) []model.Message {
	if p.prompt == "" {
		return nil
	}
	msg := model.NewUserMessage(p.prompt)
	msg.Metadata = map[string]any{planner.MetadataPlanning: true}
	return []model.Message{msg}
}

// ProcessPlanningResponse implements planner.Planner.
func (p *Planner) ProcessPlanningResponse(
	_ context.Context,
	st *state.State,
	rsp *model.Response,
) *model.Response {
	return planner.RewriteText(rsp, func(content string) string {
		plan, rest := extractPlan(content)
		if plan != "" && st != nil {
			st.Set(StateKeyPlan, plan)
		}
		if _, answer, found := planner.SplitByLastTag(rest, FinalAnswerTag); found {
			return strings.TrimSpace(answer)
		}
		return strings.TrimSpace(strings.Replace(rest, ExecuteTag, "", 1))
	})
}

// extractPlan cuts the section that starts at PlanTag and ends at the next
// ExecuteTag or FinalAnswerTag.
func extractPlan(content string) (plan, rest string) {
	start := strings.Index(content, PlanTag)
	if start == -1 {
		return "", content
	}
	body := content[start+len(PlanTag):]
	end := len(body)
	for _, tag := range []string{ExecuteTag, FinalAnswerTag} {
		if i := strings.Index(body, tag); i != -1 && i < end {
			end = i
		}
	}
	return strings.TrimSpace(body[:end]), content[:start] + body[end:]
}
