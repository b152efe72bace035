//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package function

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-agent-graph/model"
	"trpc.group/trpc-go/trpc-agent-graph/state"
	"trpc.group/trpc-go/trpc-agent-graph/tool"
)

type addInput struct {
	A int `json:"a"`
	B int `json:"b"`
}

type addOutput struct {
	Sum int `json:"sum"`
}

func add(_ context.Context, in addInput) (addOutput, error) {
	return addOutput{Sum: in.A + in.B}, nil
}

func TestTypedFunction(t *testing.T) {
	p, err := NewProvider("calc",
		New("add", add,
			WithDescription("adds two numbers"),
			WithParameters(
				tool.Parameter{Name: "a", Type: tool.TypeInteger, Required: true},
				tool.Parameter{Name: "b", Type: tool.TypeInteger, Required: true},
			)),
	)
	require.NoError(t, err)
	assert.Equal(t, "calc", p.ID())
	require.Len(t, p.Declarations(), 1)
	assert.Equal(t, "adds two numbers", p.Declarations()[0].Description)
	assert.Equal(t, []string{"a", "b"}, p.Declarations()[0].InputSchema().Required)

	// JSON numbers arrive as float64, and models sometimes send strings.
	out, err := p.Invoke(context.Background(), "add", map[string]any{"a": float64(2), "b": "3"})
	require.NoError(t, err)
	assert.Equal(t, addOutput{Sum: 5}, out)

	_, err = p.Invoke(context.Background(), "add", map[string]any{"a": "two"})
	assert.Error(t, err)

	_, err = p.Invoke(context.Background(), "sub", nil)
	assert.ErrorIs(t, err, ErrUnknownFunction)
}

func TestRawFunctionReadsStateFromContext(t *testing.T) {
	p, err := NewProvider("notes", NewRaw("remember", func(ctx context.Context, args map[string]any) (any, error) {
		st, ok := state.FromContext(ctx)
		if !ok {
			return nil, errors.New("no state")
		}
		st.Set("note", args["text"])
		return "ok", nil
	}, WithSchema(&tool.Schema{Type: tool.TypeObject})))
	require.NoError(t, err)

	st := state.New("acme", "t1")
	st.AppendMessages(model.NewUserMessage("remember milk"))
	out, err := p.Invoke(state.NewContext(context.Background(), st), "remember", map[string]any{"text": "milk"})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	note, _ := st.GetString("note")
	assert.Equal(t, "milk", note)

	_, err = p.Invoke(context.Background(), "remember", nil)
	assert.EqualError(t, err, "no state")
}

func TestNewProviderValidation(t *testing.T) {
	_, err := NewProvider("")
	assert.ErrorIs(t, err, tool.ErrInvalidProvider)

	_, err = NewProvider("x", Entry{Declaration: &tool.Declaration{Name: "a"}})
	assert.ErrorIs(t, err, tool.ErrInvalidProvider)

	_, err = NewProvider("x", New("add", add), New("add", add))
	assert.ErrorIs(t, err, tool.ErrDuplicateCapability)
}

func TestProviderInRegistry(t *testing.T) {
	p, err := NewProvider("calc", New("add", add))
	require.NoError(t, err)
	r, err := tool.NewRegistry(p)
	require.NoError(t, err)
	c, ok := r.Lookup("add")
	require.True(t, ok)
	out, err := c.Invoke(context.Background(), map[string]any{"a": 1, "b": 1})
	require.NoError(t, err)
	assert.Equal(t, addOutput{Sum: 2}, out)
}
