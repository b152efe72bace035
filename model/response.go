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
)

// Choice represents a single completion choice.
type Choice struct {
	// Index is the index of the choice in the list of choices.
	Index int `json:"index"`

	// Message is the completion message.
	Message Message `json:"message"`

	// FinishReason is the reason the model stopped generating tokens.
	FinishReason *string `json:"finish_reason,omitempty"`
}

// Usage represents token usage information.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ResponseError represents an error reported inside a response.
type ResponseError struct {
	// Message is the human-readable error message.
	Message string `json:"message"`

	// Type is the error type, see the ErrorType constants.
	Type string `json:"type"`

	// Code is the status code reported by the backend, if any.
	Code int `json:"code,omitempty"`
}

// Response is a complete model response.
type Response struct {
	// ID is the unique identifier for this response.
	ID string `json:"id"`

	// Created is the Unix timestamp when the response was created.
	Created int64 `json:"created"`

	// Model is the model used for the completion.
	Model string `json:"model"`

	// Choices contains the completion choices; the runtime reads the first.
	Choices []Choice `json:"choices"`

	// Usage contains token usage information.
	Usage *Usage `json:"usage,omitempty"`

	// Error contains error information if the request failed.
	Error *ResponseError `json:"error,omitempty"`

	// Timestamp is when the response was received.
	Timestamp time.Time `json:"timestamp"`
}

// NewErrorResponse builds a response that carries only an error.
func NewErrorResponse(errType, message string) *Response {
	return &Response{
		Error:     &ResponseError{Type: errType, Message: message},
		Timestamp: time.Now(),
	}
}

// Text returns the assistant text of the first choice.
func (rsp *Response) Text() string {
	if rsp == nil || len(rsp.Choices) == 0 {
		return ""
	}
	return rsp.Choices[0].Message.Content
}

// ToolCalls returns the tool calls of the first choice.
func (rsp *Response) ToolCalls() []ToolCall {
	if rsp == nil || len(rsp.Choices) == 0 {
		return nil
	}
	return rsp.Choices[0].Message.ToolCalls
}

// IsToolCallResponse checks if the response is related to a tool call.
func (rsp *Response) IsToolCallResponse() bool {
	return len(rsp.ToolCalls()) > 0
}

// GetToolCallIDs gets the IDs of tool calls from the response.
func (rsp *Response) GetToolCallIDs() []string {
	var ids []string
	for _, tc := range rsp.ToolCalls() {
		ids = append(ids, tc.ID)
	}
	return ids
}

// Clone creates a deep copy of the response.
func (rsp *Response) Clone() *Response {
	if rsp == nil {
		return nil
	}
	clone := *rsp
	clone.Choices = make([]Choice, len(rsp.Choices))
	for i, c := range rsp.Choices {
		clone.Choices[i] = c
		clone.Choices[i].Message = c.Message.Clone()
	}
	if rsp.Usage != nil {
		u := *rsp.Usage
		clone.Usage = &u
	}
	if rsp.Error != nil {
		e := *rsp.Error
		clone.Error = &e
	}
	return &clone
}
