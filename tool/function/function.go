//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package function provides a capability provider backed by an explicit
// table of Go functions. Each entry pairs a declaration with its handler;
// typed handlers receive arguments decoded with mapstructure.
package function

import (
	"context"
	"errors"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"trpc.group/trpc-go/trpc-agent-graph/tool"
)

// ErrUnknownFunction is returned when Invoke names an unregistered function.
var ErrUnknownFunction = errors.New("function: unknown function")

// Handler is the untyped form of a registered function.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Entry pairs a declaration with its handler.
type Entry struct {
	Declaration *tool.Declaration
	Handler     Handler
}

// Option configures an entry built by New.
type Option func(*tool.Declaration)

// WithDescription sets the description of the function.
func WithDescription(description string) Option {
	return func(d *tool.Declaration) { d.Description = description }
}

// WithParameters declares the ordered parameters of the function.
func WithParameters(params ...tool.Parameter) Option {
	return func(d *tool.Declaration) { d.Parameters = append(d.Parameters, params...) }
}

// WithSchema sets an explicit input schema.
func WithSchema(s *tool.Schema) Option {
	return func(d *tool.Declaration) { d.Schema = s }
}

// New builds an entry for a typed function. Arguments are decoded into I
// using the json tags of I; numeric strings and float values are coerced.
func New[I, O any](name string, fn func(ctx context.Context, in I) (O, error), opts ...Option) Entry {
	decl := &tool.Declaration{Name: name}
	for _, opt := range opts {
		opt(decl)
	}
	return Entry{
		Declaration: decl,
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			var in I
			if err := Decode(args, &in); err != nil {
				return nil, fmt.Errorf("function %s: decode arguments: %w", name, err)
			}
			return fn(ctx, in)
		},
	}
}

// NewRaw builds an entry for a handler that works on the raw argument map.
func NewRaw(name string, h Handler, opts ...Option) Entry {
	decl := &tool.Declaration{Name: name}
	for _, opt := range opts {
		opt(decl)
	}
	return Entry{Declaration: decl, Handler: h}
}

// Decode decodes an argument map into out.
func Decode(args map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(args)
}

// Provider serves a fixed table of functions.
type Provider struct {
	id       string
	decls    []*tool.Declaration
	handlers map[string]Handler
}

// NewProvider creates a provider from entries.
func NewProvider(id string, entries ...Entry) (*Provider, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty provider id", tool.ErrInvalidProvider)
	}
	p := &Provider{id: id, handlers: make(map[string]Handler, len(entries))}
	for _, e := range entries {
		if e.Declaration == nil || e.Declaration.Name == "" || e.Handler == nil {
			return nil, fmt.Errorf("%w: incomplete entry in provider %s", tool.ErrInvalidProvider, id)
		}
		if _, ok := p.handlers[e.Declaration.Name]; ok {
			return nil, fmt.Errorf("%w: %s", tool.ErrDuplicateCapability, e.Declaration.Name)
		}
		p.handlers[e.Declaration.Name] = e.Handler
		p.decls = append(p.decls, e.Declaration)
	}
	return p, nil
}

// ID implements tool.Provider.
func (p *Provider) ID() string { return p.id }

// Declarations implements tool.Provider.
func (p *Provider) Declarations() []*tool.Declaration { return p.decls }

// Invoke implements tool.Provider.
func (p *Provider) Invoke(ctx context.Context, name string, args map[string]any) (any, error) {
	h, ok := p.handlers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFunction, name)
	}
	if args == nil {
		args = map[string]any{}
	}
	return h(ctx, args)
}
