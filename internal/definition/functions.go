//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package definition

import (
	"context"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"

	"trpc.group/trpc-go/trpc-agent-graph/graph"
	"trpc.group/trpc-go/trpc-agent-graph/internal/inject"
	"trpc.group/trpc-go/trpc-agent-graph/state"
	"trpc.group/trpc-go/trpc-agent-graph/workflow"
)

// FunctionFactory builds the body of a function node from its params.
type FunctionFactory func(params map[string]any) (graph.NodeFunc, error)

// Builtin function names.
const (
	FunctionSet      = "set"
	FunctionTemplate = "template"
	FunctionJoin     = "join"
)

// Builtins returns the function factories available to every definition.
func Builtins() map[string]FunctionFactory {
	return map[string]FunctionFactory{
		FunctionSet:      newSet,
		FunctionTemplate: newTemplate,
		FunctionJoin:     newJoin,
	}
}

// decodeParams decodes params into out, rejecting unknown keys.
func decodeParams(params map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "yaml",
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(params)
}

type setParams struct {
	Key   string `yaml:"key"`
	Value any    `yaml:"value"`
}

// newSet stores a constant under key.
func newSet(params map[string]any) (graph.NodeFunc, error) {
	var p setParams
	if err := decodeParams(params, &p); err != nil {
		return nil, fmt.Errorf("set: %w", err)
	}
	if p.Key == "" {
		return nil, fmt.Errorf("set: key is required")
	}
	return func(_ context.Context, st *state.State, _ *workflow.Config) error {
		st.Set(p.Key, p.Value)
		return nil
	}, nil
}

type templateParams struct {
	Key      string `yaml:"key"`
	Template string `yaml:"template"`
}

// newTemplate renders a template with state placeholders into key.
func newTemplate(params map[string]any) (graph.NodeFunc, error) {
	var p templateParams
	if err := decodeParams(params, &p); err != nil {
		return nil, fmt.Errorf("template: %w", err)
	}
	if p.Key == "" {
		return nil, fmt.Errorf("template: key is required")
	}
	return func(_ context.Context, st *state.State, _ *workflow.Config) error {
		st.Set(p.Key, inject.Instruction(p.Template, st))
		return nil
	}, nil
}

type joinParams struct {
	Keys      []string `yaml:"keys"`
	Into      string   `yaml:"into"`
	Separator string   `yaml:"separator"`
}

// newJoin concatenates the string values of keys into one value, skipping
// missing keys. It is the usual body of a fan-in node.
func newJoin(params map[string]any) (graph.NodeFunc, error) {
	p := joinParams{Separator: "\n"}
	if err := decodeParams(params, &p); err != nil {
		return nil, fmt.Errorf("join: %w", err)
	}
	if p.Into == "" || len(p.Keys) == 0 {
		return nil, fmt.Errorf("join: keys and into are required")
	}
	return func(_ context.Context, st *state.State, _ *workflow.Config) error {
		parts := make([]string, 0, len(p.Keys))
		for _, k := range p.Keys {
			if v, ok := st.GetString(k); ok {
				parts = append(parts, v)
			}
		}
		st.Set(p.Into, strings.Join(parts, p.Separator))
		return nil
	}, nil
}
