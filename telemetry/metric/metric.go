//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package metric exposes the meter and the engine's instruments. Instruments
// are no-ops until Start installs an OTLP exporter.
package metric

import (
	"context"
	"fmt"
	"os"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	noopm "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"

	"trpc.group/trpc-go/trpc-agent-graph/log"
	"trpc.group/trpc-go/trpc-agent-graph/telemetry"
)

var (
	mu    sync.RWMutex
	meter metric.Meter = noopm.Meter{}
	inst               = newInstruments(noopm.Meter{})
)

type instruments struct {
	nodeExecutions metric.Int64Counter
	turnIterations metric.Int64Counter
	toolCalls      metric.Int64Counter
	modelRetries   metric.Int64Counter
}

func newInstruments(m metric.Meter) *instruments {
	i := &instruments{}
	var err error
	if i.nodeExecutions, err = m.Int64Counter(telemetry.MetricNodeExecutions,
		metric.WithDescription("Node executions by node and outcome")); err != nil {
		log.Warnf("create counter %s: %v", telemetry.MetricNodeExecutions, err)
		i.nodeExecutions, _ = noopm.Meter{}.Int64Counter(telemetry.MetricNodeExecutions)
	}
	if i.turnIterations, err = m.Int64Counter(telemetry.MetricTurnIterations,
		metric.WithDescription("Model round trips made by turn loops")); err != nil {
		log.Warnf("create counter %s: %v", telemetry.MetricTurnIterations, err)
		i.turnIterations, _ = noopm.Meter{}.Int64Counter(telemetry.MetricTurnIterations)
	}
	if i.toolCalls, err = m.Int64Counter(telemetry.MetricToolCalls,
		metric.WithDescription("Capability invocations by tool and outcome")); err != nil {
		log.Warnf("create counter %s: %v", telemetry.MetricToolCalls, err)
		i.toolCalls, _ = noopm.Meter{}.Int64Counter(telemetry.MetricToolCalls)
	}
	if i.modelRetries, err = m.Int64Counter(telemetry.MetricModelRetries,
		metric.WithDescription("Repeated model backend attempts")); err != nil {
		log.Warnf("create counter %s: %v", telemetry.MetricModelRetries, err)
		i.modelRetries, _ = noopm.Meter{}.Int64Counter(telemetry.MetricModelRetries)
	}
	return i
}

// Meter returns the current meter.
func Meter() metric.Meter {
	mu.RLock()
	defer mu.RUnlock()
	return meter
}

// SetMeterProvider rebuilds the instruments on provider.
func SetMeterProvider(provider metric.MeterProvider) {
	m := provider.Meter(telemetry.InstrumentName)
	i := newInstruments(m)
	mu.Lock()
	meter, inst = m, i
	mu.Unlock()
}

func current() *instruments {
	mu.RLock()
	defer mu.RUnlock()
	return inst
}

// RecordNodeExecution counts one node execution.
func RecordNodeExecution(ctx context.Context, node, status string) {
	current().nodeExecutions.Add(ctx, 1, metric.WithAttributes(
		attribute.String(telemetry.KeyNodeName, node),
		attribute.String(telemetry.KeyStatus, status),
	))
}

// RecordTurnIteration counts one model round trip of a turn loop.
func RecordTurnIteration(ctx context.Context, modelName string) {
	current().turnIterations.Add(ctx, 1, metric.WithAttributes(
		attribute.String(telemetry.KeyModelName, modelName),
	))
}

// RecordToolCall counts one capability invocation. errType is empty on success.
func RecordToolCall(ctx context.Context, toolName, errType string) {
	status := "ok"
	if errType != "" {
		status = errType
	}
	current().toolCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String(telemetry.KeyToolName, toolName),
		attribute.String(telemetry.KeyStatus, status),
	))
}

// RecordModelRetry counts one repeated backend attempt.
func RecordModelRetry(ctx context.Context, modelName string) {
	current().modelRetries.Add(ctx, 1, metric.WithAttributes(
		attribute.String(telemetry.KeyModelName, modelName),
	))
}

// Option configures Start.
type Option func(*options)

type options struct {
	endpoint         string
	protocol         string
	serviceName      string
	serviceVersion   string
	serviceNamespace string
}

// WithEndpoint sets the collector endpoint (host:port).
func WithEndpoint(endpoint string) Option {
	return func(o *options) { o.endpoint = endpoint }
}

// WithProtocol selects "grpc" (default) or "http".
func WithProtocol(protocol string) Option {
	return func(o *options) { o.protocol = protocol }
}

// WithServiceName overrides the service name resource attribute.
func WithServiceName(name string) Option {
	return func(o *options) { o.serviceName = name }
}

// Start installs a periodic OTLP meter provider and returns its shutdown.
func Start(ctx context.Context, opts ...Option) (clean func() error, err error) {
	o := &options{
		protocol:         telemetry.ProtocolGRPC,
		serviceName:      telemetry.ServiceName,
		serviceVersion:   telemetry.ServiceVersion,
		serviceNamespace: telemetry.ServiceNamespace,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.endpoint == "" {
		o.endpoint = endpointFromEnv(o.protocol)
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceNamespace(o.serviceNamespace),
		semconv.ServiceName(o.serviceName),
		semconv.ServiceVersion(o.serviceVersion),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	exporter, err := newExporter(ctx, o)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(provider)
	SetMeterProvider(provider)
	return func() error {
		if err := provider.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown MeterProvider: %w", err)
		}
		return nil
	}, nil
}

func newExporter(ctx context.Context, o *options) (sdkmetric.Exporter, error) {
	if o.protocol == telemetry.ProtocolHTTP {
		return otlpmetrichttp.New(ctx,
			otlpmetrichttp.WithEndpoint(o.endpoint),
			otlpmetrichttp.WithInsecure(),
		)
	}
	conn, err := telemetry.NewGRPCConn(o.endpoint)
	if err != nil {
		return nil, err
	}
	return otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithGRPCConn(conn))
}

func endpointFromEnv(protocol string) string {
	for _, key := range []string{"OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	if protocol == telemetry.ProtocolHTTP {
		return "localhost:4318"
	}
	return "localhost:4317"
}
