//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package retry wraps a model backend with fixed-delay, bounded retries.
// Once attempts are exhausted the wrapper degrades to a synthetic response
// carrying a backend_error instead of returning an error.
package retry

import (
	"context"
	"fmt"
	"time"

	"trpc.group/trpc-go/trpc-agent-graph/log"
	"trpc.group/trpc-go/trpc-agent-graph/model"
)

// Defaults applied by Wrap.
const (
	DefaultMaxAttempts = 3
	DefaultDelay       = time.Second
)

// Condition decides whether an error is worth another attempt.
type Condition func(err error) bool

// Option configures the retrying model.
type Option func(*Model)

// WithMaxAttempts sets the total number of attempts, including the first.
func WithMaxAttempts(n int) Option {
	return func(m *Model) {
		if n < 1 {
			n = 1
		}
		m.maxAttempts = n
	}
}

// WithDelay sets the fixed delay between attempts.
func WithDelay(d time.Duration) Option {
	return func(m *Model) {
		if d < 0 {
			d = 0
		}
		m.delay = d
	}
}

// WithAttemptTimeout bounds every single attempt. Zero means no bound.
func WithAttemptTimeout(d time.Duration) Option {
	return func(m *Model) { m.attemptTimeout = d }
}

// WithCondition replaces model.IsTransient as the retry condition.
func WithCondition(c Condition) Option {
	return func(m *Model) {
		if c != nil {
			m.shouldRetry = c
		}
	}
}

// WithOnRetry registers a hook called before every repeated attempt.
func WithOnRetry(fn func(ctx context.Context, attempt int, err error)) Option {
	return func(m *Model) { m.onRetry = fn }
}

// Model is a model.Model that retries transient failures of the wrapped backend.
type Model struct {
	next           model.Model
	maxAttempts    int
	delay          time.Duration
	attemptTimeout time.Duration
	shouldRetry    Condition
	onRetry        func(ctx context.Context, attempt int, err error)
}

// Wrap decorates next with retries.
func Wrap(next model.Model, opts ...Option) *Model {
	m := &Model{
		next:        next,
		maxAttempts: DefaultMaxAttempts,
		delay:       DefaultDelay,
		shouldRetry: model.IsTransient,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Info implements model.Model.
func (m *Model) Info() model.Info {
	return m.next.Info()
}

// GenerateContent implements model.Model. It only returns an error when ctx
// is done; every backend failure ends in a response.
func (m *Model) GenerateContent(ctx context.Context, req *model.Request) (*model.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var lastErr error
	attempt := 1
	for ; ; attempt++ {
		rsp, err := m.attempt(ctx, req)
		if err == nil {
			return rsp, nil
		}
		lastErr = err
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if attempt >= m.maxAttempts || !m.shouldRetry(err) {
			break
		}
		log.Warnf("model %s attempt %d/%d failed, retrying in %s: %v",
			m.next.Info().Name, attempt, m.maxAttempts, m.delay, err)
		if m.onRetry != nil {
			m.onRetry(ctx, attempt, err)
		}
		if err := sleep(ctx, m.delay); err != nil {
			return nil, err
		}
	}
	log.Errorf("model %s failed after %d attempt(s): %v", m.next.Info().Name, attempt, lastErr)
	rsp := model.NewErrorResponse(model.ErrorTypeBackend,
		fmt.Sprintf("model backend failed after %d attempt(s): %v", attempt, lastErr))
	rsp.Model = req.Model
	return rsp, nil
}

func (m *Model) attempt(ctx context.Context, req *model.Request) (*model.Response, error) {
	actx := ctx
	if m.attemptTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, m.attemptTimeout)
		defer cancel()
	}
	rsp, err := m.next.GenerateContent(actx, req)
	if err != nil {
		return nil, err
	}
	if rsp == nil {
		return nil, &model.BackendError{Type: model.ErrorTypeAPIError, Message: "empty response"}
	}
	if rsp.Error != nil {
		if rsp.Error.Code != 0 {
			return nil, model.NewStatusError(rsp.Error.Code, rsp.Error.Message, nil)
		}
		return nil, &model.BackendError{Type: rsp.Error.Type, Message: rsp.Error.Message}
	}
	return rsp, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
