//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package graph

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-agent-graph/flow/llmflow"
	"trpc.group/trpc-go/trpc-agent-graph/model"
	"trpc.group/trpc-go/trpc-agent-graph/model/retry"
	"trpc.group/trpc-go/trpc-agent-graph/state"
	"trpc.group/trpc-go/trpc-agent-graph/tool"
	"trpc.group/trpc-go/trpc-agent-graph/tool/function"
	"trpc.group/trpc-go/trpc-agent-graph/workflow"
)

// echoModel calls lookup once, then answers with the tool result.
type echoModel struct {
	mu       sync.Mutex
	requests []*model.Request
	err      error
}

func (m *echoModel) GenerateContent(_ context.Context, req *model.Request) (*model.Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	last := req.Messages[len(req.Messages)-1]
	if last.Role == model.RoleTool {
		return &model.Response{Choices: []model.Choice{{Message: model.NewAssistantMessage("answer: " + last.Content)}}}, nil
	}
	call := model.ToolCall{
		ID:        "call-1",
		Type:      model.ToolCallTypeFunction,
		Name:      "lookup",
		Arguments: map[string]any{"key": "x"},
	}
	return &model.Response{Choices: []model.Choice{{Message: model.NewToolCallMessage("", []model.ToolCall{call})}}}, nil
}

func (m *echoModel) Info() model.Info { return model.Info{Name: "echo"} }

func (m *echoModel) lastRequest() *model.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[len(m.requests)-1]
}

type keyInput struct {
	Key string `json:"key"`
}

func kvRegistry(t *testing.T) *tool.Registry {
	t.Helper()
	p, err := function.NewProvider("kv",
		function.New("lookup", func(_ context.Context, in keyInput) (string, error) { return "value-" + in.Key, nil }),
		function.New("erase", func(_ context.Context, in keyInput) (string, error) { return "erased", nil }),
	)
	require.NoError(t, err)
	reg, err := tool.NewRegistry(p)
	require.NoError(t, err)
	return reg
}

func TestModelNodeInGraph(t *testing.T) {
	m := &echoModel{}
	node := NewModelNode("assistant", m, kvRegistry(t),
		WithModelDescription("answers questions"),
		WithCapabilities("lookup"),
		WithSystemPrompt("default prompt"),
		WithModelID("echo-1"),
		WithMaxIterations(4),
		WithRetry(retry.WithMaxAttempts(1)),
	)
	assert.Equal(t, NodeTypeModel, node.Type())
	assert.Equal(t, "answers questions", node.Description())
	assert.Equal(t, 1, node.Flow().Registry().Len())

	var got string
	g := New().
		AddNode(node).
		AddNode(NewFuncNode("report", func(_ context.Context, st *state.State, _ *workflow.Config) error {
			got, _ = st.GetString(StateKeyLastAnswer)
			return nil
		})).
		AddEdge("assistant", "report").
		SetEntryPoint("assistant")
	cg, err := g.Compile()
	require.NoError(t, err)
	exec, err := NewExecutor(cg)
	require.NoError(t, err)

	st := state.New("tenant", "thread")
	st.AppendMessages(model.NewUserMessage("what is x?"))
	cfg := workflow.New("tenant").Enable("kv", workflow.Wildcard)
	temp := 0.1
	res, err := exec.Execute(context.Background(), st, cfg,
		WithOverrides("assistant", &llmflow.Overrides{
			SystemPrompt:     "override prompt",
			GenerationConfig: &model.GenerationConfig{Temperature: &temp},
		}))
	require.NoError(t, err)
	require.Empty(t, res.Errors)

	assert.Equal(t, "answer: value-x", got)
	answer, ok := st.GetString(AnswerKey("assistant"))
	require.True(t, ok)
	assert.Equal(t, "answer: value-x", answer)

	req := m.lastRequest()
	assert.Equal(t, "override prompt", req.SystemInstruction)
	assert.Equal(t, "echo-1", req.Model)
	require.NotNil(t, req.Temperature)
	assert.Equal(t, 0.1, *req.Temperature)
	require.Len(t, req.Tools, 1, "only bound capabilities are declared")
	assert.Equal(t, "lookup", req.Tools[0].Name)

	// user, assistant call, tool result, final answer
	assert.Equal(t, 4, st.MessageCount())
}

func TestModelNodeDegradedBackend(t *testing.T) {
	m := &echoModel{err: model.NewStatusError(503, "down", nil)}
	node := NewModelNode("assistant", m, nil, WithRetry(retry.WithMaxAttempts(1)))
	st := state.New("tenant", "thread")
	st.AppendMessages(model.NewUserMessage("hi"))

	err := node.Process(context.Background(), st, nil)
	require.NoError(t, err)
	_, ok := st.Get(AnswerKey("assistant"))
	assert.True(t, ok)
	last, ok := st.LastMessage()
	require.True(t, ok)
	assert.True(t, last.IsError())
}

func TestModelNodeCancelled(t *testing.T) {
	node := NewModelNode("assistant", &echoModel{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := node.Process(ctx, state.New("t", "c"), nil)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestModelNodeClone(t *testing.T) {
	node := NewModelNode("assistant", &echoModel{}, kvRegistry(t), WithCapabilities("lookup"))
	c, ok := node.Clone().(*ModelNode)
	require.True(t, ok)
	assert.Equal(t, node.Name(), c.Name())
	assert.Same(t, node.Flow(), c.Flow())
}

func TestOverridesFromContext(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, OverridesFromContext(ctx, "a"))
	assert.Equal(t, ctx, ContextWithOverrides(ctx, nil))
	ov := &llmflow.Overrides{SystemPrompt: "p"}
	ctx = ContextWithOverrides(ctx, map[string]*llmflow.Overrides{"a": ov})
	assert.Same(t, ov, OverridesFromContext(ctx, "a"))
	assert.Nil(t, OverridesFromContext(ctx, "b"))
}
