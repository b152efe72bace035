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
	"os"
	"time"

	"github.com/spf13/cobra"

	"trpc.group/trpc-go/trpc-agent-graph/log"
	"trpc.group/trpc-go/trpc-agent-graph/telemetry"
)

// Storage backends.
const (
	storageMemory = "memory"
	storageRedis  = "redis"
	storageSQLite = "sqlite"
	storageCOS    = "cos"
)

// rootFlags are shared by every subcommand.
type rootFlags struct {
	graphPath  string
	logLevel   string
	logFormat  string
	configPath string

	storage    string
	redisURL   string
	sqlitePath string
	cosBucket  string
	cosPrefix  string
	ttl        time.Duration

	otlpEndpoint string
	otlpProtocol string
}

func newRootCmd() *cobra.Command {
	f := &rootFlags{}
	cmd := &cobra.Command{
		Use:           "agentgraph",
		Short:         "Run model and tool workflows declared as graphs",
		Long:          `agentgraph compiles a YAML graph of model and function nodes and runs it on persisted conversation threads.`,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(*cobra.Command, []string) {
			// Logs go to stderr so run output stays parseable.
			log.Default = log.New(os.Stderr, f.logFormat)
			log.SetLevel(f.logLevel)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&f.graphPath, "file", "f", "graph.yaml", "Graph definition file")
	pf.StringVar(&f.logLevel, "log-level", log.LevelInfo, "Log level: debug, info, warn, error")
	pf.StringVar(&f.logFormat, "log-format", log.FormatConsole, "Log format: console or json")
	pf.StringVar(&f.configPath, "config", "", "Default workflow config for tenants without a stored one")
	pf.StringVar(&f.storage, "storage", storageMemory, "State storage: memory, redis, sqlite or cos")
	pf.StringVar(&f.redisURL, "redis-url", "redis://localhost:6379/0", "Redis URL for --storage=redis")
	pf.StringVar(&f.sqlitePath, "sqlite-path", "agentgraph.db", "Database file for --storage=sqlite")
	pf.StringVar(&f.cosBucket, "cos-bucket-url", "", "Bucket URL for --storage=cos; credentials from COS_SECRETID and COS_SECRETKEY")
	pf.StringVar(&f.cosPrefix, "cos-prefix", "agentgraph", "Object name prefix for --storage=cos")
	pf.DurationVar(&f.ttl, "ttl", 0, "Expire idle threads after this long (memory and redis)")
	pf.StringVar(&f.otlpEndpoint, "otlp-endpoint", "", "OTLP collector endpoint; empty disables export")
	pf.StringVar(&f.otlpProtocol, "otlp-protocol", telemetry.ProtocolGRPC, "OTLP protocol: grpc or http")

	cmd.AddCommand(
		newValidateCmd(f),
		newGraphCmd(f),
		newRunCmd(f),
		newServeCmd(f),
	)
	return cmd
}
