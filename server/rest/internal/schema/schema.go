//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package schema defines the JSON payloads of the REST server.
package schema

import "trpc.group/trpc-go/trpc-agent-graph/model"

// RunRequest starts one run on a thread.
type RunRequest struct {
	Input    string          `json:"input"`
	RunID    string          `json:"run_id,omitempty"`
	Messages []model.Message `json:"messages,omitempty"`
	// Overrides maps model node names to the defaults replaced for this run.
	Overrides map[string]Override `json:"overrides,omitempty"`
}

// Override replaces the defaults of one model node.
type Override struct {
	SystemPrompt string                  `json:"system_prompt,omitempty"`
	Generation   *model.GenerationConfig `json:"generation,omitempty"`
}

// RunResponse reports the outcome of a run.
type RunResponse struct {
	RunID   string   `json:"run_id"`
	Status  string   `json:"status"`
	Answer  string   `json:"answer,omitempty"`
	Steps   int      `json:"steps"`
	Visited []string `json:"visited"`
	// Errors lists node and routing failures, which do not fail the run.
	Errors []string `json:"errors,omitempty"`
	// Error is set when the run stopped early.
	Error string `json:"error,omitempty"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Health is the body of the health check.
type Health struct {
	Status string `json:"status"`
}
