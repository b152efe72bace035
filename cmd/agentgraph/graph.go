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
	"github.com/spf13/cobra"

	"trpc.group/trpc-go/trpc-agent-graph/graph"
)

func newGraphCmd(f *rootFlags) *cobra.Command {
	var (
		rankDir      string
		format       string
		output       string
		destinations bool
	)
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Export the graph visualization",
		Long: `Writes the compiled graph in Graphviz DOT format to stdout. ` +
			`With --format png or svg the image is rendered to --output by the dot binary.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := f.loadEngine(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer e.Close()

			opts := []graph.VizOption{
				graph.WithRankDir(rankDir),
				graph.WithIncludeDestinations(destinations),
				graph.WithGraphLabel(e.def.Name),
			}
			if format == "dot" {
				return e.graph.WriteDOT(cmd.OutOrStdout(), opts...)
			}
			return e.graph.RenderImage(cmd.Context(), format, output, opts...)
		},
	}
	cmd.Flags().StringVar(&rankDir, "rankdir", graph.RankDirLR, "Layout direction: LR or TB")
	cmd.Flags().StringVar(&format, "format", "dot", "Output format: dot, png or svg")
	cmd.Flags().StringVarP(&output, "output", "o", "graph.png", "Image path for png and svg")
	cmd.Flags().BoolVar(&destinations, "destinations", true, "Draw declared predicate destinations")
	return cmd
}
