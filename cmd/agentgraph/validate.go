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
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the graph definition and compile it",
		Long: `Parses the graph file, builds every node and compiles the graph. ` +
			`Model backends and MCP servers are not contacted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := f.loadEngine(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer e.Close()

			joins := 0
			for _, name := range e.graph.Nodes() {
				if e.graph.IsJoin(name) {
					joins++
				}
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "graph %s is valid: %d nodes, %d joins, entry %s\n",
				e.def.Name, len(e.graph.Nodes()), joins, e.graph.Entry())
			for _, w := range e.graph.Warnings() {
				fmt.Fprintf(out, "warning: %s\n", w)
			}
			return nil
		},
	}
}
