//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package main

import (
	"context"
	"errors"
	"fmt"

	"trpc.group/trpc-go/trpc-agent-graph/graph"
	"trpc.group/trpc-go/trpc-agent-graph/internal/definition"
	"trpc.group/trpc-go/trpc-agent-graph/log"
	"trpc.group/trpc-go/trpc-agent-graph/model"
	"trpc.group/trpc-go/trpc-agent-graph/runner"
	"trpc.group/trpc-go/trpc-agent-graph/storage"
	"trpc.group/trpc-go/trpc-agent-graph/storage/cos"
	"trpc.group/trpc-go/trpc-agent-graph/storage/inmemory"
	"trpc.group/trpc-go/trpc-agent-graph/storage/redis"
	"trpc.group/trpc-go/trpc-agent-graph/storage/sqlite"
	"trpc.group/trpc-go/trpc-agent-graph/telemetry/metric"
	"trpc.group/trpc-go/trpc-agent-graph/telemetry/prom"
	"trpc.group/trpc-go/trpc-agent-graph/telemetry/trace"
	"trpc.group/trpc-go/trpc-agent-graph/workflow"
)

// errOffline is returned by the models of a graph loaded offline.
var errOffline = errors.New("model backends are not connected in offline mode")

// offlineModel stands in for declared models when a graph is only inspected.
type offlineModel struct{ name string }

func (m offlineModel) GenerateContent(context.Context, *model.Request) (*model.Response, error) {
	return nil, errOffline
}

func (m offlineModel) Info() model.Info { return model.Info{Name: m.name} }

// engine is a loaded and compiled graph.
type engine struct {
	def   *definition.Definition
	built *definition.Built
	graph *graph.CompiledGraph
}

func (e *engine) Close() error { return e.built.Close() }

// loadEngine reads, builds and compiles the graph file. Offline engines
// reach neither model backends nor MCP servers.
func (f *rootFlags) loadEngine(ctx context.Context, offline bool, nodeOpts ...graph.ModelNodeOption) (*engine, error) {
	def, err := definition.Load(f.graphPath)
	if err != nil {
		return nil, err
	}
	env := definition.Env{ModelNodeOptions: nodeOpts, Offline: offline}
	if offline {
		env.Models = make(map[string]model.Model, len(def.Models))
		for name := range def.Models {
			env.Models[name] = offlineModel{name: name}
		}
	}
	built, err := def.Build(ctx, env)
	if err != nil {
		return nil, err
	}
	cg, err := built.Graph.Compile()
	if err != nil {
		built.Close()
		return nil, err
	}
	for _, w := range cg.Warnings() {
		log.Warnf("graph %s: %s", def.Name, w)
	}
	return &engine{def: def, built: built, graph: cg}, nil
}

// openStore opens the storage backend selected by the flags.
func (f *rootFlags) openStore() (storage.Store, error) {
	switch f.storage {
	case storageMemory:
		return inmemory.NewStore(inmemory.WithTTL(f.ttl)), nil
	case storageRedis:
		return redis.NewStore(redis.WithURL(f.redisURL), redis.WithTTL(f.ttl))
	case storageSQLite:
		return sqlite.Open(f.sqlitePath)
	case storageCOS:
		return cos.NewStore(f.cosBucket, cos.WithPrefix(f.cosPrefix))
	default:
		return nil, fmt.Errorf("unknown storage %q", f.storage)
	}
}

// newRunner wires the executor of e to the selected storage.
func (f *rootFlags) newRunner(e *engine, store storage.Store, execOpts ...graph.ExecutorOption) (
	runner.Runner, storage.StateRepository, storage.ConfigRepository, error) {
	exec, err := graph.NewExecutor(e.graph, append(e.def.ExecutorOptions(), execOpts...)...)
	if err != nil {
		return nil, nil, nil, err
	}
	states := storage.NewStateRepository(store)
	configs := storage.NewConfigRepository(store)
	opts := []runner.Option{
		runner.WithStateRepository(states),
		runner.WithConfigRepository(configs),
	}
	if f.configPath != "" {
		cfg, err := workflow.Load(f.configPath)
		if err != nil {
			return nil, nil, nil, err
		}
		opts = append(opts, runner.WithDefaultConfig(cfg))
	}
	return runner.NewRunner(exec, opts...), states, configs, nil
}

// startTelemetry starts OTLP export when an endpoint is configured and
// returns the shutdown.
func (f *rootFlags) startTelemetry(ctx context.Context) (func(), error) {
	if f.otlpEndpoint == "" {
		return func() {}, nil
	}
	stopTrace, err := trace.Start(ctx, trace.WithEndpoint(f.otlpEndpoint), trace.WithProtocol(f.otlpProtocol))
	if err != nil {
		return nil, err
	}
	stopMetric, err := metric.Start(ctx, metric.WithEndpoint(f.otlpEndpoint), metric.WithProtocol(f.otlpProtocol))
	if err != nil {
		stopTrace()
		return nil, err
	}
	return func() {
		if err := stopMetric(); err != nil {
			log.Warnf("stop metrics: %v", err)
		}
		if err := stopTrace(); err != nil {
			log.Warnf("stop traces: %v", err)
		}
	}, nil
}

// instrument returns the options that report a run to c.
func instrument(c *prom.Collector) ([]graph.ExecutorOption, []graph.ModelNodeOption) {
	return []graph.ExecutorOption{graph.WithNodeCallbacks(c.NodeCallbacks())},
		[]graph.ModelNodeOption{
			graph.WithModelCallbacks(c.ModelCallbacks()),
			graph.WithToolCallbacks(c.ToolCallbacks()),
		}
}
