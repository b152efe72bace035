//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package runner runs a compiled graph against persisted conversation
// threads: it loads the tenant config and thread state, appends the user
// input, executes the graph and saves the state back.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"trpc.group/trpc-go/trpc-agent-graph/flow/llmflow"
	"trpc.group/trpc-go/trpc-agent-graph/graph"
	"trpc.group/trpc-go/trpc-agent-graph/log"
	"trpc.group/trpc-go/trpc-agent-graph/model"
	"trpc.group/trpc-go/trpc-agent-graph/state"
	"trpc.group/trpc-go/trpc-agent-graph/storage"
	"trpc.group/trpc-go/trpc-agent-graph/storage/inmemory"
	"trpc.group/trpc-go/trpc-agent-graph/telemetry"
	"trpc.group/trpc-go/trpc-agent-graph/telemetry/trace"
	"trpc.group/trpc-go/trpc-agent-graph/workflow"
)

// spanNameRun is the span opened around one run.
const spanNameRun = "run"

// Errors.
var (
	ErrTenantRequired = errors.New("runner: tenant id is required")
	ErrThreadRequired = errors.New("runner: thread id is required")
)

// Option is a function that configures a Runner.
type Option func(*Options)

// Options is the options for the Runner.
type Options struct {
	states        storage.StateRepository
	configs       storage.ConfigRepository
	defaultConfig *workflow.Config
	timeout       time.Duration
}

// WithStateRepository sets where thread states are loaded from and saved to.
func WithStateRepository(repo storage.StateRepository) Option {
	return func(o *Options) { o.states = repo }
}

// WithConfigRepository sets where tenant workflow configs are loaded from.
func WithConfigRepository(repo storage.ConfigRepository) Option {
	return func(o *Options) { o.configs = repo }
}

// WithDefaultConfig sets the config used for tenants without a stored one.
// Its tenant id is replaced by the tenant of the run. Without it such
// tenants run with every capability disabled.
func WithDefaultConfig(cfg *workflow.Config) Option {
	return func(o *Options) { o.defaultConfig = cfg }
}

// WithTimeout bounds each run. Zero means no bound.
func WithTimeout(timeout time.Duration) Option {
	return func(o *Options) { o.timeout = timeout }
}

// RunOption configures a single run.
type RunOption func(*runOptions)

type runOptions struct {
	messages []model.Message
	execOpts []graph.ExecuteOption
	runID    string
}

// WithMessages appends extra messages after the user input.
func WithMessages(msgs ...model.Message) RunOption {
	return func(o *runOptions) { o.messages = append(o.messages, msgs...) }
}

// WithOverrides replaces the defaults of a model node for this run.
func WithOverrides(node string, ov *llmflow.Overrides) RunOption {
	return func(o *runOptions) {
		o.execOpts = append(o.execOpts, graph.WithOverrides(node, ov))
	}
}

// WithRunID sets the run id instead of a generated one.
func WithRunID(id string) RunOption {
	return func(o *runOptions) { o.runID = id }
}

// Result is the outcome of one run.
type Result struct {
	*graph.Result
	// RunID identifies the run in logs and traces.
	RunID string
	// Answer is the answer of the last model node that ran, if any.
	Answer string
}

// Runner is the interface for running graphs on conversation threads.
type Runner interface {
	Run(ctx context.Context, tenantID, threadID, input string, opts ...RunOption) (*Result, error)
}

// runner runs one executor on persisted threads.
type runner struct {
	executor *graph.Executor
	opts     Options
	// configLoads collapses concurrent config reads of one tenant.
	configLoads singleflight.Group
	// threads serialises runs of the same thread.
	threadsMu sync.Mutex
	threads   map[string]*threadLock
}

type threadLock struct {
	mu   sync.Mutex
	refs int
}

// NewRunner creates a new Runner. Without repositories the runner keeps
// states and configs in memory.
func NewRunner(executor *graph.Executor, opts ...Option) Runner {
	var options Options
	for _, opt := range opts {
		opt(&options)
	}
	if options.states == nil || options.configs == nil {
		store := inmemory.NewStore()
		if options.states == nil {
			options.states = storage.NewStateRepository(store)
		}
		if options.configs == nil {
			options.configs = storage.NewConfigRepository(store)
		}
	}
	return &runner{
		executor: executor,
		opts:     options,
		threads:  make(map[string]*threadLock),
	}
}

// Run executes the graph once on the thread. Failures of nodes and routers
// are reported in the result; an error is returned when the thread cannot
// be loaded or saved.
func (r *runner) Run(
	ctx context.Context,
	tenantID string,
	threadID string,
	input string,
	opts ...RunOption,
) (*Result, error) {
	if tenantID == "" {
		return nil, ErrTenantRequired
	}
	if threadID == "" {
		return nil, ErrThreadRequired
	}
	ro := &runOptions{}
	for _, opt := range opts {
		opt(ro)
	}
	if ro.runID == "" {
		ro.runID = "run-" + uuid.New().String()
	}

	ctx, span := trace.Tracer.Start(ctx, spanNameRun)
	defer span.End()
	span.SetAttributes(
		attribute.String(telemetry.KeyTenantID, tenantID),
		attribute.String(telemetry.KeyThreadID, threadID),
		attribute.String("trpc.go.agent.run_id", ro.runID),
	)
	if r.opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.timeout)
		defer cancel()
	}

	unlock := r.lockThread(tenantID + "/" + threadID)
	defer unlock()

	cfg, err := r.loadConfig(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	st, err := r.loadState(ctx, tenantID, threadID)
	if err != nil {
		return nil, err
	}
	if input != "" {
		st.AppendMessages(model.NewUserMessage(input))
	}
	st.AppendMessages(ro.messages...)
	// Only a model node of this run may provide the answer.
	st.Delete(graph.StateKeyLastAnswer)

	res, err := r.executor.Execute(ctx, st, cfg, ro.execOpts...)
	if err != nil {
		return nil, err
	}
	// The thread is saved even when the run was cancelled.
	if err := r.opts.states.Save(context.WithoutCancel(ctx), st); err != nil {
		return nil, fmt.Errorf("runner: save thread %s/%s: %w", tenantID, threadID, err)
	}
	answer, _ := st.GetString(graph.StateKeyLastAnswer)
	log.Infof("run %s on %s/%s: status=%s steps=%d errors=%d",
		ro.runID, tenantID, threadID, res.Status, res.Steps, len(res.Errors))
	return &Result{Result: res, RunID: ro.runID, Answer: answer}, nil
}

func (r *runner) loadConfig(ctx context.Context, tenantID string) (*workflow.Config, error) {
	v, err, _ := r.configLoads.Do(tenantID, func() (any, error) {
		cfg, err := r.opts.configs.FindByID(ctx, tenantID)
		if errors.Is(err, storage.ErrNotFound) {
			return r.fallbackConfig(tenantID), nil
		}
		return cfg, err
	})
	if err != nil {
		return nil, fmt.Errorf("runner: load config of %s: %w", tenantID, err)
	}
	cfg, _ := v.(*workflow.Config)
	return cfg, nil
}

func (r *runner) fallbackConfig(tenantID string) *workflow.Config {
	if r.opts.defaultConfig == nil {
		log.Debugf("runner: no config for tenant %s, capabilities disabled", tenantID)
		return nil
	}
	cfg := workflow.New(tenantID)
	for provider, patterns := range r.opts.defaultConfig.Capabilities {
		cfg.Enable(provider, patterns...)
	}
	return cfg
}

func (r *runner) loadState(ctx context.Context, tenantID, threadID string) (*state.State, error) {
	st, err := r.opts.states.FindByID(ctx, tenantID, threadID)
	if errors.Is(err, storage.ErrNotFound) {
		return state.New(tenantID, threadID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("runner: load thread %s/%s: %w", tenantID, threadID, err)
	}
	return st, nil
}

// lockThread blocks until no other run holds key and returns the release
// function.
func (r *runner) lockThread(key string) func() {
	r.threadsMu.Lock()
	l, ok := r.threads[key]
	if !ok {
		l = &threadLock{}
		r.threads[key] = l
	}
	l.refs++
	r.threadsMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		r.threadsMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(r.threads, key)
		}
		r.threadsMu.Unlock()
	}
}
