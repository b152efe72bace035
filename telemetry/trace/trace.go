//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package trace exposes the tracer used across the engine. It is a no-op
// until Start installs an OTLP exporter.
package trace

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"trpc.group/trpc-go/trpc-agent-graph/telemetry"
)

// Tracer is the tracer used by instrumented packages.
var Tracer trace.Tracer = noop.NewTracerProvider().Tracer("")

// Option configures Start.
type Option func(*options)

type options struct {
	endpoint         string
	protocol         string
	headers          map[string]string
	serviceName      string
	serviceVersion   string
	serviceNamespace string
	sampler          sdktrace.Sampler
}

// WithEndpoint sets the collector endpoint (host:port).
func WithEndpoint(endpoint string) Option {
	return func(o *options) { o.endpoint = endpoint }
}

// WithProtocol selects "grpc" (default) or "http".
func WithProtocol(protocol string) Option {
	return func(o *options) { o.protocol = protocol }
}

// WithHeaders sets headers sent with every export.
func WithHeaders(headers map[string]string) Option {
	return func(o *options) { o.headers = headers }
}

// WithServiceName overrides the service name resource attribute.
func WithServiceName(name string) Option {
	return func(o *options) { o.serviceName = name }
}

// WithSampler overrides the always-on sampler.
func WithSampler(s sdktrace.Sampler) Option {
	return func(o *options) { o.sampler = s }
}

// Start installs a batching OTLP tracer provider and returns its shutdown.
func Start(ctx context.Context, opts ...Option) (clean func() error, err error) {
	o := &options{
		protocol:         telemetry.ProtocolGRPC,
		serviceName:      telemetry.ServiceName,
		serviceVersion:   telemetry.ServiceVersion,
		serviceNamespace: telemetry.ServiceNamespace,
		sampler:          sdktrace.AlwaysSample(),
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
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(o.sampler),
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	Tracer = provider.Tracer(telemetry.InstrumentName)
	return func() error {
		if err := provider.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown TracerProvider: %w", err)
		}
		return nil
	}, nil
}

// SetTracerProvider points Tracer at provider, typically an in-memory one
// in tests.
func SetTracerProvider(provider trace.TracerProvider) {
	Tracer = provider.Tracer(telemetry.InstrumentName)
}

func newExporter(ctx context.Context, o *options) (sdktrace.SpanExporter, error) {
	if o.protocol == telemetry.ProtocolHTTP {
		endpoint, path := splitEndpoint(o.endpoint)
		httpOpts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(endpoint),
			otlptracehttp.WithInsecure(),
			otlptracehttp.WithHeaders(o.headers),
		}
		if path != "" {
			httpOpts = append(httpOpts, otlptracehttp.WithURLPath(path))
		}
		return otlptracehttp.New(ctx, httpOpts...)
	}
	conn, err := telemetry.NewGRPCConn(o.endpoint)
	if err != nil {
		return nil, err
	}
	return otlptracegrpc.New(ctx,
		otlptracegrpc.WithGRPCConn(conn),
		otlptracegrpc.WithHeaders(o.headers),
	)
}

func endpointFromEnv(protocol string) string {
	for _, key := range []string{"OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	if protocol == telemetry.ProtocolHTTP {
		return "localhost:4318"
	}
	return "localhost:4317"
}

// splitEndpoint turns "http://host:port/path" into host:port and path.
func splitEndpoint(endpoint string) (string, string) {
	endpoint = strings.TrimPrefix(strings.TrimPrefix(endpoint, "http://"), "https://")
	if i := strings.Index(endpoint, "/"); i >= 0 {
		return endpoint[:i], endpoint[i:]
	}
	return endpoint, ""
}
