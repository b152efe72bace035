//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package model

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleIsValid(t *testing.T) {
	for _, r := range []Role{RoleSystem, RoleUser, RoleAssistant, RoleTool} {
		assert.True(t, r.IsValid(), r.String())
	}
	assert.False(t, Role("robot").IsValid())
}

func TestMessageConstructors(t *testing.T) {
	u := NewUserMessage("hi")
	assert.Equal(t, RoleUser, u.Role)
	assert.NotEmpty(t, u.ID)
	assert.False(t, u.Timestamp.IsZero())

	calls := []ToolCall{{ID: "c1", Type: ToolCallTypeFunction, Name: "add"}}
	a := NewToolCallMessage("", calls)
	assert.Equal(t, RoleAssistant, a.Role)
	assert.Empty(t, a.Content)
	require.Len(t, a.ToolCalls, 1)
	calls[0].Name = "changed"
	assert.Equal(t, "add", a.ToolCalls[0].Name)

	tm := NewToolMessage("c1", "add", "3")
	assert.Equal(t, RoleTool, tm.Role)
	assert.Equal(t, "c1", tm.ToolID)
	assert.Equal(t, "add", tm.ToolName)
	assert.False(t, tm.IsError())

	em := NewToolErrorMessage("c2", "nope", "tool_not_found", "Error: tool not found")
	assert.True(t, em.IsError())
	assert.Equal(t, "tool_not_found", em.Metadata[MetadataErrorType])

	assert.True(t, strings.HasPrefix(NewToolCallID(), "call_"))
	assert.NotEqual(t, NewToolCallID(), NewToolCallID())
}

func TestMessageClone(t *testing.T) {
	m := NewToolCallMessage("x", []ToolCall{{ID: "1", Arguments: map[string]any{"a": 1}}})
	m.Metadata = map[string]any{"k": "v"}
	c := m.Clone()
	c.ToolCalls[0].Arguments["a"] = 2
	c.Metadata["k"] = "w"
	assert.Equal(t, 1, m.ToolCalls[0].Arguments["a"])
	assert.Equal(t, "v", m.Metadata["k"])
}

func TestGenerationConfigMerge(t *testing.T) {
	temp := 0.2
	maxTokens := 100
	base := GenerationConfig{Temperature: &temp, MaxTokens: &maxTokens}
	assert.Equal(t, base, base.Merge(nil))

	hot := 1.5
	merged := base.Merge(&GenerationConfig{Temperature: &hot, Stop: []string{"END"}})
	assert.Equal(t, 1.5, *merged.Temperature)
	assert.Equal(t, 100, *merged.MaxTokens)
	assert.Equal(t, []string{"END"}, merged.Stop)
	assert.Equal(t, 0.2, *base.Temperature)
}

func TestResponseAccessors(t *testing.T) {
	var nilRsp *Response
	assert.Empty(t, nilRsp.Text())
	assert.False(t, nilRsp.IsToolCallResponse())
	assert.Nil(t, nilRsp.Clone())

	rsp := &Response{
		Choices: []Choice{{Message: Message{
			Role:      RoleAssistant,
			Content:   "hello",
			ToolCalls: []ToolCall{{ID: "a"}, {ID: "b"}},
		}}},
		Usage: &Usage{TotalTokens: 3},
		Error: &ResponseError{Type: ErrorTypeAPIError},
	}
	assert.Equal(t, "hello", rsp.Text())
	assert.True(t, rsp.IsToolCallResponse())
	assert.Equal(t, []string{"a", "b"}, rsp.GetToolCallIDs())

	c := rsp.Clone()
	c.Usage.TotalTokens = 9
	c.Error.Type = "x"
	c.Choices[0].Message.ToolCalls[0].ID = "z"
	assert.Equal(t, 3, rsp.Usage.TotalTokens)
	assert.Equal(t, ErrorTypeAPIError, rsp.Error.Type)
	assert.Equal(t, "a", rsp.Choices[0].Message.ToolCalls[0].ID)

	er := NewErrorResponse(ErrorTypeBackend, "down")
	assert.Equal(t, ErrorTypeBackend, er.Error.Type)
	assert.Empty(t, er.Text())
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"cancelled", context.Canceled, false},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), true},
		{"rate limited", NewStatusError(http.StatusTooManyRequests, "slow down", nil), true},
		{"server error", NewStatusError(http.StatusBadGateway, "bad gateway", nil), true},
		{"gateway timeout", NewStatusError(http.StatusGatewayTimeout, "", nil), true},
		{"bad request", NewStatusError(http.StatusBadRequest, "bad", nil), false},
		{"unauthorized", NewStatusError(http.StatusUnauthorized, "no", nil), false},
		{"net timeout", fmt.Errorf("dial: %w", timeoutErr{}), true},
		{"wrapped net timeout", &BackendError{Type: ErrorTypeAPIError, Err: timeoutErr{}}, true},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestStatusErrorClassification(t *testing.T) {
	inner := errors.New("inner")
	e := NewStatusError(http.StatusServiceUnavailable, "unavailable", inner)
	assert.Equal(t, ErrorTypeServerError, e.Type)
	assert.ErrorIs(t, e, inner)
	assert.Contains(t, e.Error(), "503")
	assert.Equal(t, ErrorTypeInvalidRequest, NewStatusError(http.StatusNotFound, "", nil).Type)
	assert.Equal(t, ErrorTypeAPIError, NewStatusError(0, "odd", nil).Type)
	assert.NotContains(t, NewStatusError(0, "odd", nil).Error(), "status")
}

type fakeModel struct{ name string }

func (f *fakeModel) GenerateContent(context.Context, *Request) (*Response, error) {
	return &Response{Model: f.name}, nil
}
func (f *fakeModel) Info() Info { return Info{Name: f.name, Provider: "fake"} }

func TestRegistry(t *testing.T) {
	Register("fake-test", func(cfg Config) (Model, error) {
		return &fakeModel{name: cfg.Model}, nil
	})
	m, err := New(Config{Provider: "fake-test", Model: "m1", Timeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, "m1", m.Info().Name)
	assert.Contains(t, Providers(), "fake-test")

	_, err = New(Config{Provider: "missing"})
	assert.ErrorIs(t, err, ErrUnknownProvider)

	assert.Panics(t, func() { Register("nil", nil) })
}

func TestCallbacks(t *testing.T) {
	req := &Request{Model: "m"}
	canned := &Response{ID: "canned"}
	cbs := NewCallbacks().
		RegisterBeforeModel(func(context.Context, *Request) (*Response, error) { return nil, nil }).
		RegisterBeforeModel(func(context.Context, *Request) (*Response, error) { return canned, nil })
	rsp, err := cbs.RunBeforeModel(context.Background(), req)
	require.NoError(t, err)
	assert.Same(t, canned, rsp)

	boom := errors.New("boom")
	cbs.RegisterAfterModel(func(_ context.Context, _ *Request, _ *Response, modelErr error) (*Response, error) {
		return nil, modelErr
	})
	_, err = cbs.RunAfterModel(context.Background(), req, nil, boom)
	assert.ErrorIs(t, err, boom)

	var nilCbs *Callbacks
	rsp, err = nilCbs.RunBeforeModel(context.Background(), req)
	assert.NoError(t, err)
	assert.Nil(t, rsp)
}
