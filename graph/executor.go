//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package graph

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"trpc.group/trpc-go/trpc-agent-graph/flow/llmflow"
	"trpc.group/trpc-go/trpc-agent-graph/log"
	"trpc.group/trpc-go/trpc-agent-graph/state"
	"trpc.group/trpc-go/trpc-agent-graph/telemetry"
	"trpc.group/trpc-go/trpc-agent-graph/telemetry/metric"
	"trpc.group/trpc-go/trpc-agent-graph/telemetry/trace"
	"trpc.group/trpc-go/trpc-agent-graph/workflow"
)

// Executor defaults.
const (
	DefaultMaxSteps       = 100
	DefaultMaxConcurrency = 16
)

// Node outcomes recorded in metrics.
const (
	nodeStatusOK      = "ok"
	nodeStatusError   = "error"
	nodeStatusSkipped = "skipped"
)

// Status is the terminal status of an execution.
type Status string

// Execution statuses.
const (
	// StatusCompleted means no branch was left to run. Failed nodes and
	// routing errors are listed in Result.Errors.
	StatusCompleted Status = "completed"
	// StatusCancelled means the context was done before the run finished.
	StatusCancelled Status = "cancelled"
	// StatusStepLimit means the step bound stopped the run.
	StatusStepLimit Status = "step_limit"
)

// Result is the outcome of one execution.
type Result struct {
	State   *state.State
	Status  Status
	Err     error
	Steps   int
	Visited []string
	Errors  []error
}

// Executor runs a compiled graph. One Executor may run many executions
// concurrently.
type Executor struct {
	graph          *CompiledGraph
	maxSteps       int
	maxConcurrency int
	callbacks      *NodeCallbacks
}

// ExecutorOption is a function that configures an Executor.
type ExecutorOption func(*Executor)

// WithMaxSteps bounds the number of node executions of one run.
func WithMaxSteps(maxSteps int) ExecutorOption {
	return func(e *Executor) {
		if maxSteps > 0 {
			e.maxSteps = maxSteps
		}
	}
}

// WithMaxConcurrency bounds the number of nodes running at once.
func WithMaxConcurrency(n int) ExecutorOption {
	return func(e *Executor) {
		if n > 0 {
			e.maxConcurrency = n
		}
	}
}

// WithNodeCallbacks sets callbacks run around every node.
func WithNodeCallbacks(cb *NodeCallbacks) ExecutorOption {
	return func(e *Executor) { e.callbacks = cb }
}

// NewExecutor creates a new graph executor.
func NewExecutor(g *CompiledGraph, opts ...ExecutorOption) (*Executor, error) {
	if g == nil {
		return nil, errors.New("graph: compiled graph is nil")
	}
	e := &Executor{
		graph:          g,
		maxSteps:       DefaultMaxSteps,
		maxConcurrency: DefaultMaxConcurrency,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Graph returns the compiled graph the executor runs.
func (e *Executor) Graph() *CompiledGraph { return e.graph }

// ExecuteOption configures a single execution.
type ExecuteOption func(*executeOptions)

type executeOptions struct {
	overrides map[string]*llmflow.Overrides
}

// WithOverrides replaces the defaults of the model node named node for this
// execution only.
func WithOverrides(node string, ov *llmflow.Overrides) ExecuteOption {
	return func(o *executeOptions) {
		if o.overrides == nil {
			o.overrides = make(map[string]*llmflow.Overrides)
		}
		o.overrides[node] = ov
	}
}

// Execute runs the graph from its entry node against st until no branch is
// left, the step bound is hit or ctx is done. Node and routing failures end
// their branch and are collected in the result. An error is returned only
// for invalid arguments.
func (e *Executor) Execute(
	ctx context.Context,
	st *state.State,
	cfg *workflow.Config,
	opts ...ExecuteOption,
) (*Result, error) {
	if st == nil {
		return nil, ErrNilState
	}
	o := &executeOptions{}
	for _, opt := range opts {
		opt(o)
	}
	ctx = ContextWithOverrides(ctx, o.overrides)

	ctx, span := trace.Tracer.Start(ctx, telemetry.SpanNameExecuteGraph)
	defer span.End()
	span.SetAttributes(
		attribute.String(telemetry.KeyTenantID, st.TenantID()),
		attribute.String(telemetry.KeyThreadID, st.ThreadID()),
	)

	pool, err := ants.NewPool(e.maxConcurrency)
	if err != nil {
		return nil, fmt.Errorf("graph: create worker pool: %w", err)
	}
	defer pool.Release()

	x := &execution{
		Executor: e,
		pool:     pool,
		st:       st,
		cfg:      cfg,
		done:     make(chan completion, e.maxConcurrency),
		barriers: make(map[string]*barrier),
		result:   &Result{State: st, Status: StatusCompleted},
	}
	x.dispatch(ctx)

	res := x.result
	span.SetAttributes(
		attribute.String(telemetry.KeyStatus, string(res.Status)),
		attribute.Int("trpc.go.agent.steps", res.Steps),
	)
	if res.Err != nil {
		span.SetStatus(codes.Error, res.Err.Error())
	}
	log.Debugf("graph execution %s/%s finished: status=%s steps=%d errors=%d",
		st.TenantID(), st.ThreadID(), res.Status, res.Steps, len(res.Errors))
	return res, nil
}

// arrival is a branch reaching target after source ran.
type arrival struct {
	source string
	target string
	kind   RouterKind
}

// completion is what a worker reports back after running one node.
type completion struct {
	node     string
	arrivals []arrival
	errs     []error
}

// barrier tracks the arrivals at a join node during one round.
type barrier struct {
	pending int
	from    map[string]struct{}
	count   int
}

// execution is the dispatcher state of one run. It is owned by the
// dispatcher goroutine; workers only send completions.
type execution struct {
	*Executor
	pool     *ants.Pool
	st       *state.State
	cfg      *workflow.Config
	done     chan completion
	queue    []string
	running  int
	stopped  bool
	barriers map[string]*barrier
	result   *Result
}

func (x *execution) dispatch(ctx context.Context) {
	x.queue = append(x.queue, x.graph.entry)
	cancelled := ctx.Done()
	for {
		if !x.stopped {
			x.schedule(ctx)
		}
		if x.running == 0 {
			if x.stopped || !x.releaseBarriers() {
				break
			}
			continue
		}
		select {
		case c := <-x.done:
			x.running--
			x.complete(c)
		case <-cancelled:
			cancelled = nil
			x.stop(StatusCancelled, ctx.Err())
		}
	}
	if x.result.Status == StatusCompleted && ctx.Err() != nil {
		x.stop(StatusCancelled, ctx.Err())
	}
}

// schedule submits queued nodes while workers are free.
func (x *execution) schedule(ctx context.Context) {
	for len(x.queue) > 0 && x.running < x.maxConcurrency {
		if err := ctx.Err(); err != nil {
			x.stop(StatusCancelled, err)
			return
		}
		if x.result.Steps >= x.maxSteps {
			log.Warnf("graph execution %s/%s stopped after %d steps",
				x.st.TenantID(), x.st.ThreadID(), x.result.Steps)
			x.stop(StatusStepLimit, fmt.Errorf("%w (%d)", ErrMaxStepsExceeded, x.maxSteps))
			return
		}
		name := x.queue[0]
		x.queue = x.queue[1:]
		x.result.Steps++
		x.result.Visited = append(x.result.Visited, name)
		step := x.result.Steps
		x.running++
		if err := x.pool.Submit(func() { x.done <- x.runNode(ctx, name, step) }); err != nil {
			x.running--
			x.result.Errors = append(x.result.Errors, &NodeError{Node: name, Err: err})
			log.Errorf("graph: submit node %s: %v", name, err)
		}
	}
}

func (x *execution) stop(status Status, err error) {
	if !x.stopped {
		x.result.Status = status
		x.result.Err = err
	}
	x.stopped = true
	x.queue = nil
}

// complete records a finished node and routes its branches.
func (x *execution) complete(c completion) {
	x.result.Errors = append(x.result.Errors, c.errs...)
	if x.stopped {
		return
	}
	for _, a := range c.arrivals {
		x.arrive(a)
	}
}

// arrive delivers a branch to its target. Nodes with more than one fixed
// predecessor run once all of them arrived; every other node runs on each
// arrival.
func (x *execution) arrive(a arrival) {
	if _, ok := x.graph.nodes[a.target]; !ok {
		err := &RoutingError{Source: a.source, Target: a.target, Err: errUnknownTarget}
		log.Errorf("graph: %v", err)
		x.result.Errors = append(x.result.Errors, err)
		return
	}
	n := x.graph.inDegree[a.target]
	if n <= 1 {
		x.queue = append(x.queue, a.target)
		return
	}
	b, ok := x.barriers[a.target]
	if !ok {
		b = &barrier{pending: n, from: make(map[string]struct{})}
		x.barriers[a.target] = b
	}
	b.count++
	if a.kind == RouterKindFixed {
		if _, dup := b.from[a.source]; !dup {
			b.from[a.source] = struct{}{}
			b.pending--
		}
	}
	if b.pending > 0 {
		log.Debugf("graph: join %s waiting for %d more branch(es)", a.target, b.pending)
		return
	}
	delete(x.barriers, a.target)
	x.queue = append(x.queue, a.target)
}

// releaseBarriers runs, in name order, every join that holds at least one
// arrival once nothing else can arrive. It reports whether any was released.
func (x *execution) releaseBarriers() bool {
	if len(x.barriers) == 0 {
		return false
	}
	names := make([]string, 0, len(x.barriers))
	for name := range x.barriers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		b := x.barriers[name]
		log.Debugf("graph: releasing join %s with %d of %d fixed branch(es)",
			name, len(b.from), x.graph.inDegree[name])
		delete(x.barriers, name)
		x.queue = append(x.queue, name)
	}
	return true
}

// runNode runs one node on a worker and evaluates its routers.
func (x *execution) runNode(ctx context.Context, name string, step int) (c completion) {
	c.node = name
	node := x.graph.nodes[name]
	cbCtx := &NodeCallbackContext{
		NodeName:           name,
		NodeType:           typeOf(node),
		StepNumber:         step,
		ExecutionStartTime: time.Now(),
		TenantID:           x.st.TenantID(),
		ThreadID:           x.st.ThreadID(),
	}

	ctx, span := trace.Tracer.Start(ctx, fmt.Sprintf("%s %s", telemetry.SpanNamePrefixExecuteNode, name))
	defer span.End()
	span.SetAttributes(
		attribute.String(telemetry.KeyNodeName, name),
		attribute.String("trpc.go.agent.node_type", string(cbCtx.NodeType)),
		attribute.String("trpc.go.agent.node_description", describe(node)),
		attribute.Int("trpc.go.agent.step", step),
	)

	defer func() {
		if r := recover(); r != nil {
			err := &NodeError{Node: name, Err: fmt.Errorf("panic: %v", r)}
			log.Errorf("graph: %v", err)
			x.callbacks.RunOnNodeError(ctx, cbCtx, x.st, err)
			span.SetStatus(codes.Error, err.Error())
			metric.RecordNodeExecution(ctx, name, nodeStatusError)
			c = completion{node: name, errs: []error{err}}
		}
	}()

	x.st.SetCurrentNode(name)
	status := nodeStatusOK
	err := x.callbacks.RunBeforeNode(ctx, cbCtx, x.st)
	switch {
	case errors.Is(err, ErrSkipNode):
		status = nodeStatusSkipped
		err = nil
	case err == nil:
		err = node.Process(ctx, x.st, x.cfg)
	}
	err = x.callbacks.RunAfterNode(ctx, cbCtx, x.st, err)
	if err != nil {
		nodeErr := &NodeError{Node: name, Err: err}
		log.Errorf("graph: %v", nodeErr)
		x.callbacks.RunOnNodeError(ctx, cbCtx, x.st, nodeErr)
		span.SetStatus(codes.Error, err.Error())
		metric.RecordNodeExecution(ctx, name, nodeStatusError)
		c.errs = append(c.errs, nodeErr)
		return c
	}
	metric.RecordNodeExecution(ctx, name, status)

	seen := make(map[string]struct{})
	for _, r := range x.graph.routers[name] {
		target, err := r.Route(ctx, x.st)
		if err != nil {
			routeErr := &RoutingError{Source: name, Err: err}
			log.Errorf("graph: %v", routeErr)
			c.errs = append(c.errs, routeErr)
			continue
		}
		if target == "" {
			continue
		}
		if _, dup := seen[target]; dup {
			continue
		}
		seen[target] = struct{}{}
		c.arrivals = append(c.arrivals, arrival{source: name, target: target, kind: r.Kind()})
	}
	span.SetAttributes(attribute.Int("trpc.go.agent.branches", len(c.arrivals)))
	return c
}
