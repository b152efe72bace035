//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package prom exposes graph, capability and model activity as Prometheus
// metrics. The collector is fed by the callback hooks of the graph
// executor and the turn loop.
package prom

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"trpc.group/trpc-go/trpc-agent-graph/graph"
	"trpc.group/trpc-go/trpc-agent-graph/model"
	"trpc.group/trpc-go/trpc-agent-graph/state"
	"trpc.group/trpc-go/trpc-agent-graph/tool"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "agentgraph"

const (
	statusOK    = "ok"
	statusError = "error"
)

// Collector owns the Prometheus instruments and the registry they live in.
type Collector struct {
	registry     *prometheus.Registry
	nodeVisits   *prometheus.CounterVec
	nodeDuration *prometheus.HistogramVec
	toolCalls    *prometheus.CounterVec
	modelCalls   *prometheus.CounterVec
}

// Option configures a Collector.
type Option func(*options)

type options struct {
	namespace string
	buckets   []float64
}

// WithNamespace overrides DefaultNamespace.
func WithNamespace(ns string) Option {
	return func(o *options) { o.namespace = ns }
}

// WithBuckets sets the node duration histogram buckets, in seconds.
func WithBuckets(buckets ...float64) Option {
	return func(o *options) { o.buckets = buckets }
}

// New creates a collector registered on a fresh registry.
func New(opts ...Option) *Collector {
	o := &options{namespace: DefaultNamespace, buckets: prometheus.DefBuckets}
	for _, opt := range opts {
		opt(o)
	}
	c := &Collector{
		registry: prometheus.NewRegistry(),
		nodeVisits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: o.namespace,
				Name:      "node_visits_total",
				Help:      "Total number of node visits",
			},
			[]string{"node_id"},
		),
		nodeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: o.namespace,
				Name:      "node_duration_seconds",
				Help:      "Duration of node executions",
				Buckets:   o.buckets,
			},
			[]string{"node_id", "status"},
		),
		toolCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: o.namespace,
				Name:      "tool_calls_total",
				Help:      "Total number of capability invocations",
			},
			[]string{"tool_name", "status"},
		),
		modelCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: o.namespace,
				Name:      "model_calls_total",
				Help:      "Total number of model round trips",
			},
			[]string{"model", "status"},
		),
	}
	c.registry.MustRegister(c.nodeVisits, c.nodeDuration, c.toolCalls, c.modelCalls)
	return c
}

// Registry returns the registry the instruments are registered on.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the collected metrics in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// NodeCallbacks returns executor hooks that count visits and time nodes.
func (c *Collector) NodeCallbacks() *graph.NodeCallbacks {
	return graph.NewNodeCallbacks().
		RegisterBeforeNode(func(_ context.Context, cbCtx *graph.NodeCallbackContext, _ *state.State) error {
			c.nodeVisits.WithLabelValues(cbCtx.NodeName).Inc()
			return nil
		}).
		RegisterAfterNode(func(
			_ context.Context,
			cbCtx *graph.NodeCallbackContext,
			_ *state.State,
			nodeErr error,
		) error {
			status := statusOK
			if nodeErr != nil {
				status = statusError
			}
			c.nodeDuration.WithLabelValues(cbCtx.NodeName, status).
				Observe(time.Since(cbCtx.ExecutionStartTime).Seconds())
			return nodeErr
		})
}

// ToolCallbacks returns turn loop hooks that count capability invocations.
func (c *Collector) ToolCallbacks() *tool.Callbacks {
	return tool.NewCallbacks().RegisterAfterTool(func(
		_ context.Context,
		decl *tool.Declaration,
		_ map[string]any,
		_ any,
		runErr error,
	) (any, error) {
		status := statusOK
		if runErr != nil {
			status = statusError
		}
		c.toolCalls.WithLabelValues(decl.Name, status).Inc()
		return nil, nil
	})
}

// ModelCallbacks returns turn loop hooks that count model round trips by
// outcome. Failed round trips are labelled with their error type.
func (c *Collector) ModelCallbacks() *model.Callbacks {
	return model.NewCallbacks().RegisterAfterModel(func(
		_ context.Context,
		req *model.Request,
		rsp *model.Response,
		modelErr error,
	) (*model.Response, error) {
		status := statusOK
		switch {
		case modelErr != nil:
			status = statusError
		case rsp != nil && rsp.Error != nil:
			status = rsp.Error.Type
		}
		c.modelCalls.WithLabelValues(req.Model, status).Inc()
		return nil, nil
	})
}
