//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package workflow holds the per-tenant configuration that decides which
// capabilities a tenant may use.
package workflow

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// Wildcard enables every method of a provider.
const Wildcard = "*"

// Config gates capabilities per provider. Patterns are exact method names,
// the wildcard, or glob patterns such as "get*".
type Config struct {
	TenantID     string              `json:"tenant_id" yaml:"tenant_id"`
	Capabilities map[string][]string `json:"capabilities" yaml:"capabilities"`
}

// New creates an empty config for tenantID.
func New(tenantID string) *Config {
	return &Config{TenantID: tenantID, Capabilities: make(map[string][]string)}
}

// Enable adds method patterns for providerID.
func (c *Config) Enable(providerID string, patterns ...string) *Config {
	if c.Capabilities == nil {
		c.Capabilities = make(map[string][]string)
	}
	c.Capabilities[providerID] = append(c.Capabilities[providerID], patterns...)
	return c
}

// IsEnabled reports whether method of providerID is enabled. A nil config
// enables nothing.
func (c *Config) IsEnabled(providerID, method string) bool {
	if c == nil {
		return false
	}
	for _, p := range c.Capabilities[providerID] {
		if p == Wildcard || p == method {
			return true
		}
		if ok, err := doublestar.Match(p, method); err == nil && ok {
			return true
		}
	}
	return false
}

// Providers returns the configured provider ids, sorted.
func (c *Config) Providers() []string {
	if c == nil {
		return nil
	}
	ids := make([]string, 0, len(c.Capabilities))
	for id := range c.Capabilities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Validate checks that every pattern is a well formed glob.
func (c *Config) Validate() error {
	for _, id := range c.Providers() {
		for _, p := range c.Capabilities[id] {
			if p == "" {
				return fmt.Errorf("workflow: empty pattern for provider %q", id)
			}
			if !doublestar.ValidatePattern(p) {
				return fmt.Errorf("workflow: invalid pattern %q for provider %q", p, id)
			}
		}
	}
	return nil
}

// Parse decodes a YAML (or JSON, which is valid YAML) config.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("workflow: parse config: %w", err)
	}
	if cfg.Capabilities == nil {
		cfg.Capabilities = make(map[string][]string)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads and parses the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("workflow: read %s: %w", path, err)
	}
	return Parse(data)
}

// Marshal encodes the config as JSON for repositories.
func (c *Config) Marshal() ([]byte, error) {
	return json.Marshal(c)
}

// Unmarshal decodes a config encoded with Marshal.
func Unmarshal(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("workflow: unmarshal config: %w", err)
	}
	return cfg, nil
}
