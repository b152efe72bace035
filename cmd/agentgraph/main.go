//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Command agentgraph validates, renders, runs and serves graphs declared
// in YAML.
package main

import (
	"os"

	_ "trpc.group/trpc-go/trpc-agent-graph/model/gemini"
	_ "trpc.group/trpc-go/trpc-agent-graph/model/openai"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
