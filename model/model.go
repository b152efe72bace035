//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package model defines the backend-neutral request and response types and
// the interface every model backend implements.
package model

import "context"

// Model is the interface that all language model backends implement.
type Model interface {
	// GenerateContent sends one request and returns one complete response.
	// A backend must be idempotent for a given request so that callers may
	// retry it. Transport failures are returned as errors; API failures may
	// also be reported through Response.Error.
	GenerateContent(ctx context.Context, request *Request) (*Response, error)

	// Info returns basic information about the model.
	Info() Info
}

// Info contains basic information about the model.
type Info struct {
	Name     string
	Provider string
}
