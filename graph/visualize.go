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
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Public constants for common string literals to avoid magic strings.
const (
	// RankDirLR sets a left-to-right layout in Graphviz.
	RankDirLR = "LR"
	// RankDirTB sets a top-to-bottom layout in Graphviz.
	RankDirTB = "TB"

	// ImageFormatPNG is the PNG output format for Graphviz.
	ImageFormatPNG = "png"
	// ImageFormatSVG is the SVG output format for Graphviz.
	ImageFormatSVG = "svg"
)

// startNode is the virtual node drawn in front of the entry.
const startNode = "__start__"

const (
	shapeBox     = "box"
	shapeDiamond = "diamond"
	shapeOval    = "oval"

	colorModelFill     = "#e3f2fd"
	colorModelBorder   = "#2196f3"
	colorFuncFill      = "#fff3e0"
	colorFuncBorder    = "#ff9800"
	colorJoinFill      = "#f3e5f5"
	colorJoinBorder    = "#9c27b0"
	colorStartFill     = "#e1f5e1"
	colorStartBorder   = "#4caf50"
	colorPredicateEdge = "#999999"
)

// VizOptions configures DOT export and rendering.
type VizOptions struct {
	// RankDir sets DOT graph direction: "LR" (left-to-right) or "TB" (top-to-bottom).
	RankDir string
	// IncludeDestinations toggles the dashed edges of declared predicate
	// destinations.
	IncludeDestinations bool
	// IncludeStart toggles the virtual start node.
	IncludeStart bool
	// GraphLabel optionally labels the whole graph.
	GraphLabel string
}

// VizOption mutates VizOptions.
type VizOption func(*VizOptions)

// WithRankDir sets DOT graph direction. Valid values: "LR", "TB".
func WithRankDir(dir string) VizOption {
	return func(o *VizOptions) {
		if dir == RankDirLR || dir == RankDirTB {
			o.RankDir = dir
		}
	}
}

// WithIncludeDestinations toggles rendering of declared predicate destinations.
func WithIncludeDestinations(include bool) VizOption {
	return func(o *VizOptions) { o.IncludeDestinations = include }
}

// WithIncludeStart toggles rendering of the virtual start node.
func WithIncludeStart(include bool) VizOption {
	return func(o *VizOptions) { o.IncludeStart = include }
}

// WithGraphLabel sets an optional label for the graph.
func WithGraphLabel(label string) VizOption {
	return func(o *VizOptions) { o.GraphLabel = label }
}

func defaultVizOptions() *VizOptions {
	return &VizOptions{
		RankDir:             RankDirLR,
		IncludeDestinations: true,
		IncludeStart:        true,
	}
}

// DOT returns a Graphviz DOT representation of the graph. Fixed edges are
// solid, declared predicate destinations dashed, and join nodes are drawn
// as diamonds labelled with their fixed in-degree.
func (cg *CompiledGraph) DOT(opts ...VizOption) string {
	o := defaultVizOptions()
	for _, fn := range opts {
		fn(o)
	}
	var b strings.Builder
	b.WriteString("digraph G {\n")
	fmt.Fprintf(&b, "  rankdir=%s;\n", escapeLabel(o.RankDir))
	b.WriteString("  node [fontname=\"Helvetica\"];\n")
	b.WriteString("  edge [fontname=\"Helvetica\"];\n")
	if o.GraphLabel != "" {
		fmt.Fprintf(&b, "  label=\"%s\";\n  labelloc=t;\n", escapeLabel(o.GraphLabel))
	}
	if o.IncludeStart {
		fmt.Fprintf(&b, "  \"%s\" [label=\"start\", shape=%s, style=filled, fillcolor=\"%s\", color=\"%s\"];\n",
			startNode, shapeOval, colorStartFill, colorStartBorder)
	}
	cg.writeNodes(&b)
	if o.IncludeStart {
		fmt.Fprintf(&b, "  \"%s\" -> \"%s\";\n", startNode, escapeLabel(cg.entry))
	} else {
		fmt.Fprintf(&b, "  \"%s\" [peripheries=2];\n", escapeLabel(cg.entry))
	}
	cg.writeEdges(&b, o)
	b.WriteString("}\n")
	return b.String()
}

func (cg *CompiledGraph) writeNodes(b *strings.Builder) {
	for _, name := range cg.names {
		shape, fill, color := shapeBox, colorFuncFill, colorFuncBorder
		if typeOf(cg.nodes[name]) == NodeTypeModel {
			fill, color = colorModelFill, colorModelBorder
		}
		label := name
		if cg.IsJoin(name) {
			shape, fill, color = shapeDiamond, colorJoinFill, colorJoinBorder
			label = fmt.Sprintf("%s (join %d)", name, cg.inDegree[name])
		}
		fmt.Fprintf(b, "  \"%s\" [label=\"%s\", shape=%s, style=filled, fillcolor=\"%s\", color=\"%s\"];\n",
			escapeLabel(name), escapeLabel(label), shape, fill, color)
	}
}

func (cg *CompiledGraph) writeEdges(b *strings.Builder, o *VizOptions) {
	for _, source := range cg.names {
		for _, target := range cg.fixedEdges(source) {
			fmt.Fprintf(b, "  \"%s\" -> \"%s\";\n", escapeLabel(source), escapeLabel(target))
		}
		if !o.IncludeDestinations {
			continue
		}
		for _, r := range cg.routers[source] {
			if r.Kind() == RouterKindFixed {
				continue
			}
			for _, target := range destinationsOf(r) {
				fmt.Fprintf(b, "  \"%s\" -> \"%s\" [style=dashed, color=\"%s\", label=\"%s\"];\n",
					escapeLabel(source), escapeLabel(target), colorPredicateEdge, RouterKindPredicate)
			}
		}
	}
}

// WriteDOT writes the DOT representation to the provided writer.
func (cg *CompiledGraph) WriteDOT(w io.Writer, opts ...VizOption) error {
	_, err := io.WriteString(w, cg.DOT(opts...))
	return err
}

// RenderImage renders the graph to an image by invoking Graphviz's `dot` binary.
// The format should be a valid Graphviz output format (e.g., "png", "svg").
// It returns an error if `dot` is not found or the command fails.
func (cg *CompiledGraph) RenderImage(ctx context.Context, format, outputPath string, opts ...VizOption) error {
	if format == "" {
		format = ImageFormatPNG
	}
	dotPath, err := exec.LookPath("dot")
	if err != nil {
		return fmt.Errorf("graphviz 'dot' binary not found in PATH: %w", err)
	}
	cmd := exec.CommandContext(ctx, dotPath, "-T"+format, "-o", outputPath)
	cmd.Stdin = bytes.NewBufferString(cg.DOT(opts...))
	out, runErr := cmd.CombinedOutput()
	if runErr != nil {
		return fmt.Errorf("dot render failed: %w, output: %s", runErr, string(out))
	}
	return nil
}

// escapeLabel escapes label strings for DOT.
func escapeLabel(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}
