//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package llmflow implements the bounded tool-calling turn loop that drives a
// single node's conversation with a model backend.
package llmflow

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"trpc.group/trpc-go/trpc-agent-graph/internal/inject"
	"trpc.group/trpc-go/trpc-agent-graph/log"
	"trpc.group/trpc-go/trpc-agent-graph/model"
	"trpc.group/trpc-go/trpc-agent-graph/model/retry"
	"trpc.group/trpc-go/trpc-agent-graph/planner"
	"trpc.group/trpc-go/trpc-agent-graph/state"
	"trpc.group/trpc-go/trpc-agent-graph/telemetry"
	"trpc.group/trpc-go/trpc-agent-graph/telemetry/metric"
	"trpc.group/trpc-go/trpc-agent-graph/telemetry/trace"
	"trpc.group/trpc-go/trpc-agent-graph/tool"
	"trpc.group/trpc-go/trpc-agent-graph/workflow"
)

// DefaultMaxIterations bounds the model round trips of one turn.
const DefaultMaxIterations = 10

// ErrNilState is returned by Run when no state is given.
var ErrNilState = errors.New("llmflow: state is nil")

// Flow runs turns against one model and one capability registry. A Flow is
// immutable after New and may run many turns concurrently.
type Flow struct {
	model          model.Model
	registry       *tool.Registry
	modelID        string
	systemPrompt   string
	genConfig      model.GenerationConfig
	extras         map[string]any
	maxIterations  int
	planner        planner.Planner
	parallelTools  bool
	toolLimit      int
	retryOpts      []retry.Option
	modelCallbacks *model.Callbacks
	toolCallbacks  *tool.Callbacks
}

// Option configures a Flow.
type Option func(*Flow)

// WithModelID sets the model identifier put in every request.
func WithModelID(id string) Option {
	return func(f *Flow) { f.modelID = id }
}

// WithSystemPrompt sets the default system prompt. Placeholders such as
// {key} or {key?} are filled from the state at the start of every turn.
func WithSystemPrompt(prompt string) Option {
	return func(f *Flow) { f.systemPrompt = prompt }
}

// WithGenerationConfig sets the default sampling parameters.
func WithGenerationConfig(cfg model.GenerationConfig) Option {
	return func(f *Flow) { f.genConfig = cfg }
}

// WithExtras sets backend specific request fields.
func WithExtras(extras map[string]any) Option {
	return func(f *Flow) { f.extras = extras }
}

// WithMaxIterations bounds the model round trips of one turn.
func WithMaxIterations(n int) Option {
	return func(f *Flow) {
		if n > 0 {
			f.maxIterations = n
		}
	}
}

// WithPlanner sets the turn strategy.
func WithPlanner(p planner.Planner) Option {
	return func(f *Flow) { f.planner = p }
}

// WithParallelTools runs the tool calls of one response concurrently, at
// most limit at a time. A limit of zero or less means no limit. Tool
// messages are appended in call order either way.
func WithParallelTools(limit int) Option {
	return func(f *Flow) {
		f.parallelTools = true
		f.toolLimit = limit
	}
}

// WithRetry configures the retry decorator placed around the model.
func WithRetry(opts ...retry.Option) Option {
	return func(f *Flow) { f.retryOpts = append(f.retryOpts, opts...) }
}

// WithModelCallbacks sets callbacks run around every model call.
func WithModelCallbacks(cb *model.Callbacks) Option {
	return func(f *Flow) { f.modelCallbacks = cb }
}

// WithToolCallbacks sets callbacks run around every capability invocation.
func WithToolCallbacks(cb *tool.Callbacks) Option {
	return func(f *Flow) { f.toolCallbacks = cb }
}

// New creates a Flow. The model is wrapped with retries unless it already
// is a *retry.Model. A nil registry exposes no capabilities.
func New(m model.Model, registry *tool.Registry, opts ...Option) *Flow {
	f := &Flow{
		registry:      registry,
		maxIterations: DefaultMaxIterations,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.registry == nil {
		f.registry, _ = tool.NewRegistry()
	}
	if rm, ok := m.(*retry.Model); ok {
		f.model = rm
	} else {
		name := m.Info().Name
		retryOpts := append([]retry.Option{
			retry.WithOnRetry(func(ctx context.Context, _ int, _ error) {
				metric.RecordModelRetry(ctx, name)
			}),
		}, f.retryOpts...)
		f.model = retry.Wrap(m, retryOpts...)
	}
	return f
}

// Registry returns the capabilities bound to the flow.
func (f *Flow) Registry() *tool.Registry { return f.registry }

// Overrides replace node defaults for a single turn.
type Overrides struct {
	SystemPrompt     string
	GenerationConfig *model.GenerationConfig
}

// TurnResult is the outcome of one turn.
type TurnResult struct {
	// Answer is the final assistant text, or the last assistant text seen
	// when the iteration bound was reached.
	Answer string
	// Iterations counts model round trips.
	Iterations int
	// ToolCalls counts the tool calls answered during the turn.
	ToolCalls int
	// Done is false when the turn stopped at the iteration bound or was
	// cancelled.
	Done bool
	// Err holds the degraded backend error or the cancellation cause.
	Err error
}

// Run executes one turn against st. Backend failures end in a result with
// Err set. Run returns an error only for a nil state or a done context.
func (f *Flow) Run(
	ctx context.Context,
	st *state.State,
	cfg *workflow.Config,
	ov *Overrides,
) (*TurnResult, error) {
	if st == nil {
		return nil, ErrNilState
	}
	ctx, span := trace.Tracer.Start(ctx, telemetry.SpanNameTurn)
	defer span.End()
	span.SetAttributes(
		attribute.String(telemetry.KeyTenantID, st.TenantID()),
		attribute.String(telemetry.KeyThreadID, st.ThreadID()),
		attribute.String(telemetry.KeyNodeName, st.CurrentNode()),
	)
	ctx = state.NewContext(ctx, st)

	system, genConfig := f.systemPrompt, f.genConfig
	if ov != nil {
		if ov.SystemPrompt != "" {
			system = ov.SystemPrompt
		}
		genConfig = genConfig.Merge(ov.GenerationConfig)
	}
	system = inject.Instruction(system, st)
	active := f.activeDeclarations(cfg)
	if f.planner != nil {
		st.AppendMessages(f.planner.PlanningMessages(ctx, st)...)
	}

	res := &TurnResult{}
	var lastText string
	seenIDs := make(map[string]struct{})
	for res.Iterations < f.maxIterations {
		if err := ctx.Err(); err != nil {
			return cancelled(res, span, err)
		}
		req := &model.Request{
			Model:             f.modelID,
			SystemInstruction: system,
			Messages:          st.Messages(),
			Tools:             active,
			GenerationConfig:  genConfig,
			Extras:            f.extras,
		}
		if f.planner != nil {
			req.SystemInstruction = planner.JoinInstruction(system,
				f.planner.BuildPlanningInstruction(ctx, st, req))
		}
		rsp, err := f.callModel(ctx, req)
		res.Iterations++
		metric.RecordTurnIteration(ctx, f.model.Info().Name)
		if err != nil {
			return cancelled(res, span, err)
		}
		if rsp.Error != nil {
			msg := model.NewAssistantMessage(rsp.Error.Message)
			msg.Metadata = map[string]any{
				model.MetadataError:     true,
				model.MetadataErrorType: rsp.Error.Type,
			}
			st.AppendMessages(msg)
			res.Err = &model.BackendError{Type: rsp.Error.Type, Message: rsp.Error.Message}
			res.Done = true
			span.SetStatus(codes.Error, rsp.Error.Message)
			log.Warnf("turn on node %s ended with backend error: %s", st.CurrentNode(), rsp.Error.Message)
			return res, nil
		}
		if f.planner != nil {
			if processed := f.planner.ProcessPlanningResponse(ctx, st, rsp); processed != nil {
				rsp = processed
			}
		}
		text, calls := rsp.Text(), ensureCallIDs(rsp.ToolCalls(), seenIDs)
		if text != "" {
			lastText = text
		}
		if len(calls) == 0 {
			st.AppendMessages(model.NewAssistantMessage(text))
			res.Answer = text
			res.Done = true
			span.SetAttributes(attribute.Int(telemetry.KeyIteration, res.Iterations))
			return res, nil
		}
		st.AppendMessages(model.NewToolCallMessage(text, calls))
		st.AppendMessages(f.executeToolCalls(ctx, cfg, calls)...)
		res.ToolCalls += len(calls)
	}

	res.Answer = lastText
	span.SetAttributes(attribute.Int(telemetry.KeyIteration, res.Iterations))
	log.Warnf("turn on node %s reached the iteration bound %d", st.CurrentNode(), f.maxIterations)
	return res, nil
}

func cancelled(res *TurnResult, span oteltrace.Span, err error) (*TurnResult, error) {
	res.Err = err
	span.SetStatus(codes.Error, err.Error())
	return res, err
}

// activeDeclarations returns the bound capabilities enabled by cfg, in
// registration order.
func (f *Flow) activeDeclarations(cfg *workflow.Config) []*tool.Declaration {
	var decls []*tool.Declaration
	for _, c := range f.registry.Capabilities() {
		if cfg.IsEnabled(c.ProviderID, c.Declaration.Name) {
			decls = append(decls, c.Declaration)
		}
	}
	return decls
}

// callModel runs the model callbacks around one retried backend call.
func (f *Flow) callModel(ctx context.Context, req *model.Request) (*model.Response, error) {
	ctx, span := trace.Tracer.Start(ctx, telemetry.SpanNameCallLLM)
	defer span.End()

	rsp, err := f.modelCallbacks.RunBeforeModel(ctx, req)
	if err != nil {
		rsp = model.NewErrorResponse(model.ErrorTypeBackend, fmt.Sprintf("before model callback: %v", err))
	}
	if rsp == nil {
		rsp, err = f.model.GenerateContent(ctx, req)
		if err != nil {
			return nil, err
		}
	}
	if custom, err := f.modelCallbacks.RunAfterModel(ctx, req, rsp, nil); err != nil {
		rsp = model.NewErrorResponse(model.ErrorTypeBackend, fmt.Sprintf("after model callback: %v", err))
	} else if custom != nil {
		rsp = custom
	}
	if rsp == nil {
		rsp = model.NewErrorResponse(model.ErrorTypeBackend, "model returned no response")
	}
	telemetry.TraceCallLLM(span, f.model.Info().Name, req, rsp)
	return rsp, nil
}

// ensureCallIDs fills in ids the backend left empty and replaces ids already
// in seen, which spans every response of one turn.
func ensureCallIDs(calls []model.ToolCall, seen map[string]struct{}) []model.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]model.ToolCall, len(calls))
	for i, tc := range calls {
		if _, dup := seen[tc.ID]; tc.ID == "" || dup {
			tc.ID = model.NewToolCallID()
		}
		if tc.Type == "" {
			tc.Type = model.ToolCallTypeFunction
		}
		seen[tc.ID] = struct{}{}
		out[i] = tc
	}
	return out
}
