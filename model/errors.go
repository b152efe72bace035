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
)

// Error types carried by BackendError and ResponseError.
const (
	ErrorTypeRateLimited    = "rate_limited"
	ErrorTypeServerError    = "server_error"
	ErrorTypeTimeout        = "timeout"
	ErrorTypeInvalidRequest = "invalid_request"
	ErrorTypeAPIError       = "api_error"
	// ErrorTypeBackend marks the synthetic response produced once retries
	// are exhausted.
	ErrorTypeBackend = "backend_error"
)

// BackendError is a classified failure of a model backend call.
type BackendError struct {
	Type       string
	StatusCode int
	Message    string
	Err        error
}

// NewStatusError classifies an HTTP status code reported by a backend.
func NewStatusError(statusCode int, message string, err error) *BackendError {
	typ := ErrorTypeAPIError
	switch {
	case statusCode == http.StatusTooManyRequests:
		typ = ErrorTypeRateLimited
	case statusCode == http.StatusRequestTimeout || statusCode == http.StatusGatewayTimeout:
		typ = ErrorTypeTimeout
	case statusCode >= http.StatusInternalServerError:
		typ = ErrorTypeServerError
	case statusCode >= http.StatusBadRequest:
		typ = ErrorTypeInvalidRequest
	}
	return &BackendError{Type: typ, StatusCode: statusCode, Message: message, Err: err}
}

// Error implements error.
func (e *BackendError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("model backend %s (status %d): %s", e.Type, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("model backend %s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error.
func (e *BackendError) Unwrap() error { return e.Err }

// IsTransient reports whether err is worth retrying: timeouts, rate
// limiting and server side failures. Cancellation is never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var be *BackendError
	if errors.As(err, &be) {
		switch be.Type {
		case ErrorTypeRateLimited, ErrorTypeServerError, ErrorTypeTimeout:
			return true
		}
		if be.StatusCode == http.StatusTooManyRequests || be.StatusCode >= http.StatusInternalServerError {
			return true
		}
	}
	return isNetTimeout(err)
}

func isNetTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
