//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package model

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// ErrUnknownProvider is returned by New for an unregistered provider name.
var ErrUnknownProvider = errors.New("model: unknown provider")

// Config selects and configures a backend.
type Config struct {
	Provider string         `json:"provider" yaml:"provider"`
	Model    string         `json:"model" yaml:"model"`
	APIKey   string         `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL  string         `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Timeout  time.Duration  `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Extras   map[string]any `json:"extras,omitempty" yaml:"extras,omitempty"`
}

// Factory builds a backend from configuration.
type Factory func(cfg Config) (Model, error)

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]Factory)
)

// Register makes a backend available under provider. Adapters call it from
// init, so a binary selects backends with blank imports.
func Register(provider string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	if f == nil {
		panic("model: Register factory is nil")
	}
	factories[provider] = f
}

// New builds the backend named by cfg.Provider.
func New(cfg Config) (Model, error) {
	factoriesMu.RLock()
	f, ok := factories[cfg.Provider]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
	return f(cfg)
}

// Providers returns the registered provider names, sorted.
func Providers() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
