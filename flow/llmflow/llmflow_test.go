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
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-agent-graph/model"
	"trpc.group/trpc-go/trpc-agent-graph/model/retry"
	"trpc.group/trpc-go/trpc-agent-graph/planner/plan"
	"trpc.group/trpc-go/trpc-agent-graph/planner/react"
	"trpc.group/trpc-go/trpc-agent-graph/state"
	"trpc.group/trpc-go/trpc-agent-graph/tool"
	"trpc.group/trpc-go/trpc-agent-graph/tool/function"
	"trpc.group/trpc-go/trpc-agent-graph/workflow"
)

type step func(req *model.Request) (*model.Response, error)

// scriptedModel answers with steps in order and repeats the last one.
type scriptedModel struct {
	mu       sync.Mutex
	steps    []step
	requests []*model.Request
}

func (m *scriptedModel) GenerateContent(_ context.Context, req *model.Request) (*model.Response, error) {
	m.mu.Lock()
	i := len(m.requests)
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	if i >= len(m.steps) {
		i = len(m.steps) - 1
	}
	return m.steps[i](req)
}

func (m *scriptedModel) Info() model.Info { return model.Info{Name: "scripted"} }

func (m *scriptedModel) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func text(s string) step {
	return func(*model.Request) (*model.Response, error) {
		return &model.Response{Choices: []model.Choice{{Message: model.NewAssistantMessage(s)}}}, nil
	}
}

func callTools(content string, calls ...model.ToolCall) step {
	return func(*model.Request) (*model.Response, error) {
		return &model.Response{Choices: []model.Choice{{Message: model.NewToolCallMessage(content, calls)}}}, nil
	}
}

func fail(status int) step {
	return func(*model.Request) (*model.Response, error) {
		return nil, model.NewStatusError(status, "backend unavailable", nil)
	}
}

type cityInput struct {
	City string `json:"city"`
}

func weatherRegistry(t *testing.T, forecastCalls *atomic.Int32) *tool.Registry {
	t.Helper()
	p, err := function.NewProvider("weather",
		function.New("getWeather", func(_ context.Context, in cityInput) (string, error) {
			return "sunny in " + in.City, nil
		}, function.WithParameters(tool.Parameter{Name: "city", Type: tool.TypeString, Required: true})),
		function.New("getForecast", func(_ context.Context, in cityInput) (string, error) {
			if forecastCalls != nil {
				forecastCalls.Add(1)
			}
			return "rain in " + in.City, nil
		}),
	)
	require.NoError(t, err)
	reg, err := tool.NewRegistry(p)
	require.NoError(t, err)
	return reg
}

func newState(input string) *state.State {
	st := state.New("tenant", "thread")
	st.AppendMessages(model.NewUserMessage(input))
	return st
}

// assertPaired checks that every tool call has exactly one tool message with
// its id and that every tool message answers an earlier call.
func assertPaired(t *testing.T, msgs []model.Message) {
	t.Helper()
	issued := map[string]int{}
	answered := map[string]int{}
	for _, m := range msgs {
		for _, tc := range m.ToolCalls {
			issued[tc.ID]++
		}
		if m.Role == model.RoleTool {
			require.Contains(t, issued, m.ToolID, "tool message without a preceding call")
			answered[m.ToolID]++
		}
	}
	for id, n := range issued {
		assert.Equal(t, 1, n, "call id %s issued more than once", id)
		assert.Equal(t, 1, answered[id], "call id %s answered %d times", id, answered[id])
	}
}

func TestRunFinalAnswer(t *testing.T) {
	m := &scriptedModel{steps: []step{text("hello there")}}
	f := New(m, nil, WithSystemPrompt("be nice"), WithModelID("gpt-test"))
	st := newState("hi")

	res, err := f.Run(context.Background(), st, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "hello there", res.Answer)
	assert.True(t, res.Done)
	assert.Equal(t, 1, res.Iterations)
	assert.NoError(t, res.Err)

	msgs := st.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, model.RoleAssistant, msgs[1].Role)
	require.Len(t, m.requests, 1)
	assert.Equal(t, "be nice", m.requests[0].SystemInstruction)
	assert.Equal(t, "gpt-test", m.requests[0].Model)
	assert.Empty(t, m.requests[0].Tools)
}

func TestMissingAndValidCapability(t *testing.T) {
	m := &scriptedModel{steps: []step{
		callTools("", model.ToolCall{ID: "c1", Name: "lookupStock"},
			model.ToolCall{ID: "c2", Name: "getWeather", Arguments: map[string]any{"city": "Paris"}}),
		text("it is sunny"),
	}}
	cfg := workflow.New("tenant").Enable("weather", workflow.Wildcard)
	st := newState("weather?")

	res, err := New(m, weatherRegistry(t, nil)).Run(context.Background(), st, cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "it is sunny", res.Answer)
	assert.Equal(t, 2, res.Iterations)
	assert.Equal(t, 2, res.ToolCalls)

	msgs := st.Messages()
	require.Len(t, msgs, 5)
	assert.Len(t, msgs[1].ToolCalls, 2)
	assert.Empty(t, msgs[1].Content)

	missing, found := msgs[2], msgs[3]
	assert.Equal(t, "c1", missing.ToolID)
	assert.True(t, missing.IsError())
	assert.Equal(t, tool.ErrorTypeNotFound, missing.Metadata[model.MetadataErrorType])
	assert.Equal(t, "c2", found.ToolID)
	assert.False(t, found.IsError())
	assert.Equal(t, "sunny in Paris", found.Content)
	assertPaired(t, msgs)

	// The second request carries both answers.
	require.Len(t, m.requests, 2)
	assert.Len(t, m.requests[1].Messages, 4)
}

func TestTransientBackendErrorsRetried(t *testing.T) {
	m := &scriptedModel{steps: []step{fail(429), fail(429), text("third time lucky")}}
	f := New(m, nil, WithRetry(retry.WithMaxAttempts(3), retry.WithDelay(0)))

	res, err := f.Run(context.Background(), newState("hi"), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, m.calls())
	assert.Equal(t, 1, res.Iterations)
	assert.True(t, res.Done)
	assert.NoError(t, res.Err)
	assert.Equal(t, "third time lucky", res.Answer)
}

func TestBackendExhaustionDegrades(t *testing.T) {
	m := &scriptedModel{steps: []step{fail(503)}}
	f := New(m, nil, WithRetry(retry.WithMaxAttempts(2), retry.WithDelay(0)))
	st := newState("hi")

	res, err := f.Run(context.Background(), st, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, m.calls())
	assert.True(t, res.Done)
	var be *model.BackendError
	require.ErrorAs(t, res.Err, &be)
	assert.Equal(t, model.ErrorTypeBackend, be.Type)

	last, ok := st.LastMessage()
	require.True(t, ok)
	assert.Equal(t, model.RoleAssistant, last.Role)
	assert.True(t, last.IsError())
}

func TestDisabledCapabilityRejected(t *testing.T) {
	var forecastCalls atomic.Int32
	m := &scriptedModel{steps: []step{
		callTools("", model.ToolCall{ID: "f1", Name: "getForecast", Arguments: map[string]any{"city": "Oslo"}}),
		text("cannot forecast"),
	}}
	cfg := workflow.New("tenant").Enable("weather", "getWeather")
	st := newState("forecast?")

	_, err := New(m, weatherRegistry(t, &forecastCalls)).Run(context.Background(), st, cfg, nil)
	require.NoError(t, err)
	assert.Zero(t, forecastCalls.Load())

	require.Len(t, m.requests[0].Tools, 1)
	assert.Equal(t, "getWeather", m.requests[0].Tools[0].Name)

	msgs := st.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, "f1", msgs[2].ToolID)
	assert.True(t, msgs[2].IsError())
	assert.Equal(t, tool.ErrorTypeDisabled, msgs[2].Metadata[model.MetadataErrorType])
	assertPaired(t, msgs)
}

func TestNilConfigExposesNothing(t *testing.T) {
	m := &scriptedModel{steps: []step{
		callTools("", model.ToolCall{ID: "w1", Name: "getWeather"}),
		text("ok"),
	}}
	st := newState("weather?")
	_, err := New(m, weatherRegistry(t, nil)).Run(context.Background(), st, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, m.requests[0].Tools)
	assert.Equal(t, tool.ErrorTypeDisabled, st.Messages()[2].Metadata[model.MetadataErrorType])
}

func TestIterationBound(t *testing.T) {
	m := &scriptedModel{steps: []step{
		callTools("still thinking", model.ToolCall{Name: "getWeather", Arguments: map[string]any{"city": "Rome"}}),
	}}
	cfg := workflow.New("tenant").Enable("weather", "get*")
	st := newState("loop")

	res, err := New(m, weatherRegistry(t, nil), WithMaxIterations(3)).Run(context.Background(), st, cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Iterations)
	assert.Equal(t, 3, m.calls())
	assert.False(t, res.Done)
	assert.Equal(t, "still thinking", res.Answer)
	assert.Equal(t, 3, res.ToolCalls)

	msgs := st.Messages()
	// user + 3 * (assistant with call + tool answer), nothing appended at the bound.
	require.Len(t, msgs, 7)
	assert.Equal(t, model.RoleTool, msgs[len(msgs)-1].Role)
	assertPaired(t, msgs)
}

func TestIterationBoundUsesOnlyThisTurn(t *testing.T) {
	m := &scriptedModel{steps: []step{
		callTools("", model.ToolCall{ID: "call_0", Name: "getWeather", Arguments: map[string]any{"city": "Rome"}}),
	}}
	st := newState("earlier question")
	st.AppendMessages(model.NewAssistantMessage("earlier answer"), model.NewUserMessage("loop"))

	res, err := New(m, weatherRegistry(t, nil), WithMaxIterations(2)).Run(context.Background(), st,
		workflow.New("tenant").Enable("weather", "*"), nil)
	require.NoError(t, err)
	assert.False(t, res.Done)
	assert.Equal(t, 2, res.Iterations)
	assert.Empty(t, res.Answer)

	msgs := st.Messages()
	require.Len(t, msgs, 7)
	assert.Equal(t, "call_0", msgs[3].ToolCalls[0].ID)
	assert.NotEqual(t, "call_0", msgs[5].ToolCalls[0].ID)
	assert.Equal(t, msgs[5].ToolCalls[0].ID, msgs[6].ToolID)
	assertPaired(t, msgs)
}

func TestToolFailuresAreContained(t *testing.T) {
	p, err := function.NewProvider("misc",
		function.NewRaw("boom", func(context.Context, map[string]any) (any, error) {
			return nil, errors.New("exploded")
		}),
		function.NewRaw("panics", func(context.Context, map[string]any) (any, error) {
			panic("bad tool")
		}),
		function.NewRaw("count", func(_ context.Context, args map[string]any) (any, error) {
			return map[string]any{"n": len(args)}, nil
		}),
	)
	require.NoError(t, err)
	reg, err := tool.NewRegistry(p)
	require.NoError(t, err)

	m := &scriptedModel{steps: []step{
		callTools("trying", model.ToolCall{ID: "a", Name: "boom"},
			model.ToolCall{ID: "b", Name: "panics"},
			model.ToolCall{ID: "c", Name: "count", Arguments: map[string]any{"x": 1}}),
		text("done"),
	}}
	st := newState("go")
	res, err := New(m, reg).Run(context.Background(), st, workflow.New("tenant").Enable("misc", "*"), nil)
	require.NoError(t, err)
	assert.Equal(t, "done", res.Answer)

	msgs := st.Messages()
	require.Len(t, msgs, 6)
	assert.Equal(t, tool.ErrorTypeExecution, msgs[2].Metadata[model.MetadataErrorType])
	assert.Contains(t, msgs[2].Content, "exploded")
	assert.Equal(t, tool.ErrorTypeExecution, msgs[3].Metadata[model.MetadataErrorType])
	assert.Contains(t, msgs[3].Content, "bad tool")
	assert.False(t, msgs[4].IsError())
	assert.JSONEq(t, `{"n":1}`, msgs[4].Content)
	assertPaired(t, msgs)
}

func TestParallelToolsKeepCallOrder(t *testing.T) {
	p, err := function.NewProvider("slow",
		function.NewRaw("slow", func(context.Context, map[string]any) (any, error) {
			time.Sleep(30 * time.Millisecond)
			return "slow", nil
		}),
		function.NewRaw("fast", func(context.Context, map[string]any) (any, error) {
			return "fast", nil
		}),
	)
	require.NoError(t, err)
	reg, err := tool.NewRegistry(p)
	require.NoError(t, err)

	m := &scriptedModel{steps: []step{
		callTools("", model.ToolCall{ID: "1", Name: "slow"}, model.ToolCall{ID: "2", Name: "fast"}),
		text("ok"),
	}}
	st := newState("go")
	_, err = New(m, reg, WithParallelTools(0)).Run(context.Background(), st,
		workflow.New("tenant").Enable("slow", "*"), nil)
	require.NoError(t, err)

	msgs := st.Messages()
	require.Len(t, msgs, 5)
	assert.Equal(t, "1", msgs[2].ToolID)
	assert.Equal(t, "slow", msgs[2].Content)
	assert.Equal(t, "2", msgs[3].ToolID)
	assertPaired(t, msgs)
}

func TestMissingCallIDsGeneratedAndStateInContext(t *testing.T) {
	var seen *state.State
	p, err := function.NewProvider("ctx",
		function.NewRaw("whoami", func(ctx context.Context, _ map[string]any) (any, error) {
			seen, _ = state.FromContext(ctx)
			return seen.TenantID(), nil
		}),
	)
	require.NoError(t, err)
	reg, err := tool.NewRegistry(p)
	require.NoError(t, err)

	m := &scriptedModel{steps: []step{
		callTools("", model.ToolCall{Name: "whoami"}, model.ToolCall{Name: "whoami"}),
		text("ok"),
	}}
	st := newState("who")
	_, err = New(m, reg).Run(context.Background(), st, workflow.New("tenant").Enable("ctx", "whoami"), nil)
	require.NoError(t, err)
	assert.Same(t, st, seen)

	msgs := st.Messages()
	ids := msgs[1].ToolCalls
	require.Len(t, ids, 2)
	assert.NotEmpty(t, ids[0].ID)
	assert.NotEqual(t, ids[0].ID, ids[1].ID)
	assert.Equal(t, "tenant", msgs[2].Content)
	assertPaired(t, msgs)
}

func TestOverrides(t *testing.T) {
	m := &scriptedModel{steps: []step{text("ok")}}
	temp, maxTokens := 0.1, 64
	f := New(m, nil,
		WithSystemPrompt("default"),
		WithGenerationConfig(model.GenerationConfig{Temperature: &temp}))

	over := 0.9
	_, err := f.Run(context.Background(), newState("hi"), nil, &Overrides{
		SystemPrompt:     "override",
		GenerationConfig: &model.GenerationConfig{Temperature: &over, MaxTokens: &maxTokens},
	})
	require.NoError(t, err)
	req := m.requests[0]
	assert.Equal(t, "override", req.SystemInstruction)
	require.NotNil(t, req.Temperature)
	assert.Equal(t, 0.9, *req.Temperature)
	assert.Equal(t, 64, *req.MaxTokens)
}

func TestPlannerStrategies(t *testing.T) {
	t.Run("react reframes the system prompt", func(t *testing.T) {
		m := &scriptedModel{steps: []step{text(react.ReasoningTag + " easy " + react.FinalAnswerTag + " 7")}}
		st := newState("3+4?")
		res, err := New(m, nil, WithSystemPrompt("calc"), WithPlanner(react.New())).
			Run(context.Background(), st, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, "7", res.Answer)
		assert.Contains(t, m.requests[0].SystemInstruction, "calc")
		assert.Contains(t, m.requests[0].SystemInstruction, react.FinalAnswerTag)
		last, _ := st.LastMessage()
		assert.Equal(t, "7", last.Content)
	})

	t.Run("plan injects a planning message", func(t *testing.T) {
		m := &scriptedModel{steps: []step{text(plan.PlanTag + " 1. answer " + plan.FinalAnswerTag + " yes")}}
		st := newState("ok?")
		res, err := New(m, nil, WithPlanner(plan.New())).Run(context.Background(), st, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, "yes", res.Answer)
		require.Len(t, m.requests[0].Messages, 2)
		assert.Contains(t, m.requests[0].Messages[1].Content, plan.PlanTag)
		got, _ := st.GetString(plan.StateKeyPlan)
		assert.Equal(t, "1. answer", got)
	})
}

func TestCallbacks(t *testing.T) {
	m := &scriptedModel{steps: []step{
		callTools("", model.ToolCall{ID: "w", Name: "getWeather", Arguments: map[string]any{"city": "Lima"}}),
		text("ok"),
	}}
	var modelCalls atomic.Int32
	mcb := model.NewCallbacks().RegisterBeforeModel(func(context.Context, *model.Request) (*model.Response, error) {
		modelCalls.Add(1)
		return nil, nil
	})
	tcb := tool.NewCallbacks().RegisterAfterTool(
		func(_ context.Context, _ *tool.Declaration, _ map[string]any, result any, _ error) (any, error) {
			return "patched " + result.(string), nil
		})
	st := newState("go")
	_, err := New(m, weatherRegistry(t, nil), WithModelCallbacks(mcb), WithToolCallbacks(tcb)).
		Run(context.Background(), st, workflow.New("tenant").Enable("weather", "*"), nil)
	require.NoError(t, err)
	assert.Equal(t, int32(2), modelCalls.Load())
	assert.Equal(t, "patched sunny in Lima", st.Messages()[2].Content)
}

func TestRunCancelledAndNilState(t *testing.T) {
	_, err := New(&scriptedModel{steps: []step{text("x")}}, nil).Run(context.Background(), nil, nil, nil)
	assert.ErrorIs(t, err, ErrNilState)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := &scriptedModel{steps: []step{text("x")}}
	res, err := New(m, nil).Run(ctx, newState("hi"), nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.False(t, res.Done)
	assert.Zero(t, m.calls())
}

func TestRunInjectsStateIntoSystemPrompt(t *testing.T) {
	m := &scriptedModel{steps: []step{text("ok")}}
	f := New(m, nil, WithSystemPrompt("Customer tier: {tier}. Notes: {notes?}"))
	st := newState("hi")
	st.Set("tier", "gold")

	_, err := f.Run(context.Background(), st, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "Customer tier: gold. Notes: ", m.requests[0].SystemInstruction)
}
