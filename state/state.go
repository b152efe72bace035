//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package state provides the mutable container shared by every node of one
// graph execution: a key/value map, the append-only message log, the
// execution cursor and the immutable tenant and thread identity.
package state

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"trpc.group/trpc-go/trpc-agent-graph/model"
)

// State is safe for concurrent use by parallel branches. Value writes are
// last-write-wins; messages are only ever appended.
type State struct {
	mu           sync.RWMutex
	tenantID     string
	threadID     string
	values       map[string]any
	messages     []model.Message
	currentNode  string
	previousNode string
	updatedAt    time.Time
}

// New creates an empty state for tenantID and threadID.
func New(tenantID, threadID string) *State {
	return &State{
		tenantID:  tenantID,
		threadID:  threadID,
		values:    make(map[string]any),
		updatedAt: time.Now(),
	}
}

// TenantID returns the tenant the state belongs to.
func (s *State) TenantID() string { return s.tenantID }

// ThreadID returns the conversation thread of the state.
func (s *State) ThreadID() string { return s.threadID }

// Get returns the value stored under key.
func (s *State) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// GetString returns the value under key if it is a string.
func (s *State) GetString(key string) (string, bool) {
	v, ok := s.Get(key)
	if !ok {
		return "", false
	}
	str, ok := v.(string)
	return str, ok
}

// Set stores value under key.
func (s *State) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	s.updatedAt = time.Now()
}

// Delete removes key.
func (s *State) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	s.updatedAt = time.Now()
}

// Values returns a shallow copy of all values.
func (s *State) Values() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// AppendMessages appends msgs to the log in order. Messages without an id
// or timestamp get one.
func (s *State) AppendMessages(msgs ...model.Message) {
	if len(msgs) == 0 {
		return
	}
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range msgs {
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		if m.Timestamp.IsZero() {
			m.Timestamp = now
		}
		s.messages = append(s.messages, m)
	}
	s.updatedAt = now
}

// Messages returns a copy of the message log.
func (s *State) Messages() []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Message, len(s.messages))
	for i, m := range s.messages {
		out[i] = m.Clone()
	}
	return out
}

// MessageCount returns the length of the message log.
func (s *State) MessageCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// LastMessage returns the most recent message.
func (s *State) LastMessage() (model.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.messages) == 0 {
		return model.Message{}, false
	}
	return s.messages[len(s.messages)-1].Clone(), true
}

// SetCurrentNode moves the cursor to name, remembering the previous node.
func (s *State) SetCurrentNode(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.previousNode = s.currentNode
	s.currentNode = name
	s.updatedAt = time.Now()
}

// CurrentNode returns the node most recently entered.
func (s *State) CurrentNode() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentNode
}

// PreviousNode returns the node entered before the current one.
func (s *State) PreviousNode() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.previousNode
}

// UpdatedAt returns the time of the last mutation.
func (s *State) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}

// Clone returns an independent copy. Values are copied shallowly.
func (s *State) Clone() *State {
	return FromSnapshot(s.Snapshot())
}

type contextKey struct{}

// NewContext returns a context carrying s.
func NewContext(ctx context.Context, s *State) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the state carried by ctx, if any.
func FromContext(ctx context.Context) (*State, bool) {
	s, ok := ctx.Value(contextKey{}).(*State)
	return s, ok && s != nil
}
