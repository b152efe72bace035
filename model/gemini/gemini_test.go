//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-agent-graph/model"
	"trpc.group/trpc-go/trpc-agent-graph/tool"
)

func newServer(t *testing.T, status int, body any, captured *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, ":generateContent"), r.URL.Path)
		if captured != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(captured))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGenerateContent(t *testing.T) {
	var captured map[string]any
	srv := newServer(t, http.StatusOK, map[string]any{
		"candidates": []any{map[string]any{
			"content": map[string]any{
				"role": "model",
				"parts": []any{
					map[string]any{"text": "checking"},
					map[string]any{"functionCall": map[string]any{"name": "getWeather", "args": map[string]any{"city": "Paris"}}},
				},
			},
			"finishReason": "STOP",
		}},
		"usageMetadata": map[string]any{"promptTokenCount": 3, "candidatesTokenCount": 4, "totalTokenCount": 7},
	}, &captured)

	m, err := New(context.Background(), "gemini-2.0-flash", WithAPIKey("dummy"), WithBaseURL(srv.URL))
	require.NoError(t, err)
	assert.Equal(t, Provider, m.Info().Provider)

	rsp, err := m.GenerateContent(context.Background(), &model.Request{
		SystemInstruction: "be brief",
		Messages: []model.Message{
			model.NewSystemMessage("extra rules"),
			model.NewUserMessage("weather?"),
			model.NewToolCallMessage("", []model.ToolCall{{ID: "c1", Name: "getWeather", Arguments: map[string]any{"city": "Rome"}}}),
			model.NewToolMessage("c1", "getWeather", "sunny"),
		},
		Tools: []*tool.Declaration{{
			Name:       "getWeather",
			Parameters: []tool.Parameter{{Name: "city", Type: tool.TypeString, Required: true}},
		}},
	})
	require.NoError(t, err)

	contents, ok := captured["contents"].([]any)
	require.True(t, ok)
	assert.Len(t, contents, 3, "system messages are lifted out of the contents")
	sys := captured["systemInstruction"].(map[string]any)
	sysText := sys["parts"].([]any)[0].(map[string]any)["text"]
	assert.Equal(t, "be brief\nextra rules", sysText)
	assert.NotNil(t, captured["tools"])

	assert.Equal(t, "checking", rsp.Text())
	calls := rsp.ToolCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "getWeather", calls[0].Name)
	assert.Equal(t, "Paris", calls[0].Arguments["city"])
	assert.NotEmpty(t, calls[0].ID)
	assert.Equal(t, 7, rsp.Usage.TotalTokens)
	assert.Equal(t, "stop", *rsp.Choices[0].FinishReason)
}

func TestGenerateContentServerError(t *testing.T) {
	srv := newServer(t, http.StatusServiceUnavailable, map[string]any{
		"error": map[string]any{"code": 503, "message": "overloaded", "status": "UNAVAILABLE"},
	}, nil)
	m, err := New(context.Background(), "", WithAPIKey("dummy"), WithBaseURL(srv.URL))
	require.NoError(t, err)
	assert.Equal(t, defaultModel, m.Info().Name)
	_, err = m.GenerateContent(context.Background(), &model.Request{Messages: []model.Message{model.NewUserMessage("hi")}})
	require.Error(t, err)
	assert.True(t, model.IsTransient(err))
}

func TestNewRequiresKey(t *testing.T) {
	t.Setenv(APIKeyEnv, "")
	t.Setenv(GoogleAPIKeyEnv, "")
	_, err := New(context.Background(), "gemini-2.0-flash")
	assert.Error(t, err)
}

func TestConvertSchema(t *testing.T) {
	s := convertSchema(&tool.Schema{
		Type:     tool.TypeObject,
		Required: []string{"unit"},
		Properties: map[string]*tool.Schema{
			"unit": {Type: tool.TypeString, Enum: []any{"c", "f"}},
			"days": {Type: tool.TypeArray, Items: &tool.Schema{Type: tool.TypeInteger}},
		},
	})
	assert.Equal(t, "OBJECT", string(s.Type))
	assert.Equal(t, []string{"c", "f"}, s.Properties["unit"].Enum)
	assert.Equal(t, "INTEGER", string(s.Properties["days"].Items.Type))
	assert.Nil(t, convertSchema(nil))
}
