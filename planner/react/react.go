//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package react implements the reasoning-trace strategy. The model is asked
// to plan under PlanningTag, reason between tool calls under ReasoningTag and
// give its answer under FinalAnswerTag. Only the final answer is kept in the
// assistant message when the tag is present.
package react

import (
	"context"
	"strings"

	"trpc.group/trpc-go/trpc-agent-graph/model"
	"trpc.group/trpc-go/trpc-agent-graph/planner"
	"trpc.group/trpc-go/trpc-agent-graph/state"
)

// Tags used to structure the model response.
const (
	PlanningTag    = "/*PLANNING*/"
	ReplanningTag  = "/*REPLANNING*/"
	ReasoningTag   = "/*REASONING*/"
	ActionTag      = "/*ACTION*/"
	FinalAnswerTag = "/*FINAL_ANSWER*/"
)

// StateKeyReasoning holds the reasoning trace stripped from the last answer.
const StateKeyReasoning = "react.reasoning"

var _ planner.Planner = (*Planner)(nil)

// Planner is the reasoning-trace strategy.
type Planner struct {
	keepTrace bool
}

// Option configures the planner.
type Option func(*Planner)

// WithKeepTrace stores the text preceding the final answer in the state
// under StateKeyReasoning.
func WithKeepTrace(keep bool) Option {
	return func(p *Planner) { p.keepTrace = keep }
}

// New creates a reasoning-trace planner.
func New(opts ...Option) *Planner {
	p := &Planner{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// BuildPlanningInstruction implements planner.Planner.
func (p *Planner) BuildPlanningInstruction(context.Context, *state.State, *model.Request) string {
	return instruction
}

// PlanningMessages implements planner.Planner. The strategy works through the
// system prompt only.
func (p *Planner) PlanningMessages(context.Context, *state.State) []model.Message {
	return nil
}

// ProcessPlanningResponse implements planner.Planner.
func (p *Planner) ProcessPlanningResponse(
	_ context.Context,
	st *state.State,
	rsp *model.Response,
) *model.Response {
	return planner.RewriteText(rsp, func(content string) string {
		trace, answer, found := planner.SplitByLastTag(content, FinalAnswerTag)
		if !found {
			return content
		}
		if p.keepTrace && st != nil {
			st.Set(StateKeyReasoning, strings.TrimSpace(trace))
		}
		return strings.TrimSpace(answer)
	})
}

var instruction = strings.Join([]string{
	"When answering the question, try to leverage the available tools " +
		"to gather the information instead of your memorized knowledge.",
	"",
	"Follow this process: (1) first come up with a plan in natural language; " +
		"(2) then use tools to execute the plan, writing a short reasoning " +
		"between tool calls that summarizes the current state and the next step; " +
		"(3) in the end, return one final answer.",
	"",
	"Follow this format: the plan goes under " + PlanningTag + ", tool usage " +
		"notes under " + ActionTag + ", the reasoning under " + ReasoningTag +
		" and the final answer under " + FinalAnswerTag + ".",
	"",
	"If the plan cannot be executed, learn from the tool results and write a " +
		"revised plan under " + ReplanningTag + ", then follow it.",
	"",
	"The final answer must be precise. If the question cannot be answered with " +
		"the available tools and information, say why and ask for what is missing.",
}, "\n")
