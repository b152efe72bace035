//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package trace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSplitEndpoint(t *testing.T) {
	host, path := splitEndpoint("http://collector:4318/v1/traces")
	assert.Equal(t, "collector:4318", host)
	assert.Equal(t, "/v1/traces", path)

	host, path = splitEndpoint("collector:4317")
	assert.Equal(t, "collector:4317", host)
	assert.Empty(t, path)
}

func TestEndpointFromEnv(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	assert.Equal(t, "localhost:4317", endpointFromEnv("grpc"))
	assert.Equal(t, "localhost:4318", endpointFromEnv("http"))

	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "otel:4317")
	assert.Equal(t, "otel:4317", endpointFromEnv("grpc"))
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "traces:4317")
	assert.Equal(t, "traces:4317", endpointFromEnv("grpc"))
}

func TestSetTracerProvider(t *testing.T) {
	old := Tracer
	defer func() { Tracer = old }()

	recorder := tracetest.NewSpanRecorder()
	SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	_, span := Tracer.Start(context.Background(), "unit")
	span.End()
	ended := recorder.Ended()
	assert.Len(t, ended, 1)
	assert.Equal(t, "unit", ended[0].Name())
}
