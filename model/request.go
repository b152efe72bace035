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
	"time"

	"github.com/google/uuid"

	"trpc.group/trpc-go/trpc-agent-graph/tool"
)

// Role is the role of a message author.
type Role string

// Role constants for message authors.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Metadata keys set on messages produced by the runtime.
const (
	MetadataError     = "error"
	MetadataErrorType = "error_type"
)

// ToolCallTypeFunction is the only tool call type produced by the runtime.
const ToolCallTypeFunction = "function"

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// IsValid checks if the role is one of the defined constants.
func (r Role) IsValid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	default:
		return false
	}
}

// Message is one entry of the conversation log.
type Message struct {
	ID        string         `json:"id"`
	Role      Role           `json:"role"`
	Content   string         `json:"content"`
	ToolName  string         `json:"tool_name,omitempty"` // Set on tool messages only
	ToolID    string         `json:"tool_id,omitempty"`   // Set on tool messages only
	ToolCalls []ToolCall     `json:"tool_calls,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// ToolCall is a request from the model to invoke a capability.
type ToolCall struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// NewToolCallID generates an id for a tool call the backend did not name.
func NewToolCallID() string {
	return "call_" + uuid.NewString()
}

func newMessage(role Role, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) Message {
	return newMessage(RoleSystem, content)
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) Message {
	return newMessage(RoleUser, content)
}

// NewAssistantMessage creates a new assistant message.
func NewAssistantMessage(content string) Message {
	return newMessage(RoleAssistant, content)
}

// NewToolCallMessage creates the assistant message announcing tool calls.
func NewToolCallMessage(content string, calls []ToolCall) Message {
	m := newMessage(RoleAssistant, content)
	m.ToolCalls = append([]ToolCall(nil), calls...)
	return m
}

// NewToolMessage creates the result message paired to a tool call.
func NewToolMessage(toolID, toolName, content string) Message {
	m := newMessage(RoleTool, content)
	m.ToolID = toolID
	m.ToolName = toolName
	return m
}

// NewToolErrorMessage creates a tool message reporting a failed call.
func NewToolErrorMessage(toolID, toolName, errorType, content string) Message {
	m := NewToolMessage(toolID, toolName, content)
	m.Metadata = map[string]any{
		MetadataError:     true,
		MetadataErrorType: errorType,
	}
	return m
}

// IsError reports whether the message was tagged as an error by the runtime.
func (m Message) IsError() bool {
	v, _ := m.Metadata[MetadataError].(bool)
	return v
}

// Clone returns a copy that shares no mutable slices or maps with m.
func (m Message) Clone() Message {
	c := m
	if m.ToolCalls != nil {
		c.ToolCalls = make([]ToolCall, len(m.ToolCalls))
		for i, tc := range m.ToolCalls {
			c.ToolCalls[i] = tc
			c.ToolCalls[i].Arguments = cloneMap(tc.Arguments)
		}
	}
	c.Metadata = cloneMap(m.Metadata)
	return c
}

func cloneMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// GenerationConfig contains tuning parameters forwarded to the backend.
type GenerationConfig struct {
	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens *int `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`

	// Temperature controls randomness (0.0 to 2.0).
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`

	// TopP controls nucleus sampling (0.0 to 1.0).
	TopP *float64 `json:"top_p,omitempty" yaml:"top_p,omitempty"`

	// Stop sequences where the API will stop generating further tokens.
	Stop []string `json:"stop,omitempty" yaml:"stop,omitempty"`

	PresencePenalty  *float64 `json:"presence_penalty,omitempty" yaml:"presence_penalty,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty" yaml:"frequency_penalty,omitempty"`
}

// Merge returns c with every field that is set in override replaced.
func (c GenerationConfig) Merge(override *GenerationConfig) GenerationConfig {
	if override == nil {
		return c
	}
	if override.MaxTokens != nil {
		c.MaxTokens = override.MaxTokens
	}
	if override.Temperature != nil {
		c.Temperature = override.Temperature
	}
	if override.TopP != nil {
		c.TopP = override.TopP
	}
	if override.Stop != nil {
		c.Stop = override.Stop
	}
	if override.PresencePenalty != nil {
		c.PresencePenalty = override.PresencePenalty
	}
	if override.FrequencyPenalty != nil {
		c.FrequencyPenalty = override.FrequencyPenalty
	}
	return c
}

// Request is the backend-neutral model request.
type Request struct {
	// Model is the backend model id. Empty means the backend default.
	Model string `json:"model,omitempty"`

	// SystemInstruction is sent ahead of Messages.
	SystemInstruction string `json:"system_instruction,omitempty"`

	// Messages is the conversation so far, oldest first.
	Messages []Message `json:"messages"`

	// Tools lists the capabilities the model may call.
	Tools []*tool.Declaration `json:"tools,omitempty"`

	GenerationConfig `json:",inline"`

	// Extras carries backend specific fields.
	Extras map[string]any `json:"extras,omitempty"`
}
