//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package storage defines the repositories that persist execution state and
// tenant workflow configs, and the key-value Store contract the backends in
// the subpackages implement.
package storage

import (
	"context"
	"errors"
	"fmt"

	"trpc.group/trpc-go/trpc-agent-graph/state"
	"trpc.group/trpc-go/trpc-agent-graph/workflow"
)

// Errors.
var (
	ErrNotFound       = errors.New("storage: not found")
	ErrTenantRequired = errors.New("storage: tenant id is required")
	ErrThreadRequired = errors.New("storage: thread id is required")
	ErrNilValue       = errors.New("storage: value is nil")
)

// Kind partitions the key space of a Store.
type Kind string

// Record kinds.
const (
	KindState  Kind = "state"
	KindConfig Kind = "config"
)

// Key addresses one record in a Store.
type Key struct {
	Kind Kind
	ID   string
}

// String renders the key as "<kind>:<id>".
func (k Key) String() string { return string(k.Kind) + ":" + k.ID }

// StateKey is the key of the state of a tenant thread.
func StateKey(tenantID, threadID string) Key {
	return Key{Kind: KindState, ID: tenantID + "/" + threadID}
}

// ConfigKey is the key of the workflow config of a tenant.
func ConfigKey(tenantID string) Key {
	return Key{Kind: KindConfig, ID: tenantID}
}

// Store is a byte-oriented key-value backend.
type Store interface {
	// Put writes value under key, replacing any previous value.
	Put(ctx context.Context, key Key, value []byte) error
	// Get returns the value under key or ErrNotFound.
	Get(ctx context.Context, key Key) ([]byte, error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key Key) error
	// Exists reports whether key holds a live value.
	Exists(ctx context.Context, key Key) (bool, error)
	// Close releases the backend.
	Close() error
}

// StateRepository persists state containers keyed by tenant and thread.
type StateRepository interface {
	Save(ctx context.Context, st *state.State) error
	// FindByID returns ErrNotFound when no state is stored.
	FindByID(ctx context.Context, tenantID, threadID string) (*state.State, error)
	Delete(ctx context.Context, tenantID, threadID string) error
	Exists(ctx context.Context, tenantID, threadID string) (bool, error)
}

// ConfigRepository persists workflow configs keyed by tenant.
type ConfigRepository interface {
	Save(ctx context.Context, cfg *workflow.Config) error
	// FindByID returns ErrNotFound when no config is stored.
	FindByID(ctx context.Context, tenantID string) (*workflow.Config, error)
	Delete(ctx context.Context, tenantID string) error
	Exists(ctx context.Context, tenantID string) (bool, error)
}

func checkThread(tenantID, threadID string) error {
	if tenantID == "" {
		return ErrTenantRequired
	}
	if threadID == "" {
		return ErrThreadRequired
	}
	return nil
}

// States is the StateRepository over a Store.
type States struct {
	store Store
}

// NewStateRepository creates a StateRepository over s.
func NewStateRepository(s Store) *States { return &States{store: s} }

// Save implements StateRepository.
func (r *States) Save(ctx context.Context, st *state.State) error {
	if st == nil {
		return ErrNilValue
	}
	if err := checkThread(st.TenantID(), st.ThreadID()); err != nil {
		return err
	}
	data, err := st.Marshal()
	if err != nil {
		return err
	}
	if err := r.store.Put(ctx, StateKey(st.TenantID(), st.ThreadID()), data); err != nil {
		return fmt.Errorf("save state %s/%s: %w", st.TenantID(), st.ThreadID(), err)
	}
	return nil
}

// FindByID implements StateRepository.
func (r *States) FindByID(ctx context.Context, tenantID, threadID string) (*state.State, error) {
	if err := checkThread(tenantID, threadID); err != nil {
		return nil, err
	}
	data, err := r.store.Get(ctx, StateKey(tenantID, threadID))
	if err != nil {
		return nil, fmt.Errorf("find state %s/%s: %w", tenantID, threadID, err)
	}
	return state.Unmarshal(data)
}

// Delete implements StateRepository.
func (r *States) Delete(ctx context.Context, tenantID, threadID string) error {
	if err := checkThread(tenantID, threadID); err != nil {
		return err
	}
	return r.store.Delete(ctx, StateKey(tenantID, threadID))
}

// Exists implements StateRepository.
func (r *States) Exists(ctx context.Context, tenantID, threadID string) (bool, error) {
	if err := checkThread(tenantID, threadID); err != nil {
		return false, err
	}
	return r.store.Exists(ctx, StateKey(tenantID, threadID))
}

// Configs is the ConfigRepository over a Store.
type Configs struct {
	store Store
}

// NewConfigRepository creates a ConfigRepository over s.
func NewConfigRepository(s Store) *Configs { return &Configs{store: s} }

// Save implements ConfigRepository.
func (r *Configs) Save(ctx context.Context, cfg *workflow.Config) error {
	if cfg == nil {
		return ErrNilValue
	}
	if cfg.TenantID == "" {
		return ErrTenantRequired
	}
	data, err := cfg.Marshal()
	if err != nil {
		return fmt.Errorf("encode config %s: %w", cfg.TenantID, err)
	}
	if err := r.store.Put(ctx, ConfigKey(cfg.TenantID), data); err != nil {
		return fmt.Errorf("save config %s: %w", cfg.TenantID, err)
	}
	return nil
}

// FindByID implements ConfigRepository.
func (r *Configs) FindByID(ctx context.Context, tenantID string) (*workflow.Config, error) {
	if tenantID == "" {
		return nil, ErrTenantRequired
	}
	data, err := r.store.Get(ctx, ConfigKey(tenantID))
	if err != nil {
		return nil, fmt.Errorf("find config %s: %w", tenantID, err)
	}
	return workflow.Unmarshal(data)
}

// Delete implements ConfigRepository.
func (r *Configs) Delete(ctx context.Context, tenantID string) error {
	if tenantID == "" {
		return ErrTenantRequired
	}
	return r.store.Delete(ctx, ConfigKey(tenantID))
}

var (
	_ StateRepository  = (*States)(nil)
	_ ConfigRepository = (*Configs)(nil)
)

// Exists implements ConfigRepository.
func (r *Configs) Exists(ctx context.Context, tenantID string) (bool, error) {
	if tenantID == "" {
		return false, ErrTenantRequired
	}
	return r.store.Exists(ctx, ConfigKey(tenantID))
}
