//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package state

import (
	"encoding/json"
	"fmt"
	"time"

	"trpc.group/trpc-go/trpc-agent-graph/model"
)

// Snapshot is the serialisable form of a State.
type Snapshot struct {
	TenantID     string          `json:"tenant_id"`
	ThreadID     string          `json:"thread_id"`
	Values       map[string]any  `json:"values"`
	Messages     []model.Message `json:"messages"`
	CurrentNode  string          `json:"current_node,omitempty"`
	PreviousNode string          `json:"previous_node,omitempty"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Snapshot captures the current contents of s.
func (s *State) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := &Snapshot{
		TenantID:     s.tenantID,
		ThreadID:     s.threadID,
		Values:       make(map[string]any, len(s.values)),
		Messages:     make([]model.Message, len(s.messages)),
		CurrentNode:  s.currentNode,
		PreviousNode: s.previousNode,
		UpdatedAt:    s.updatedAt,
	}
	for k, v := range s.values {
		snap.Values[k] = v
	}
	for i, m := range s.messages {
		snap.Messages[i] = m.Clone()
	}
	return snap
}

// FromSnapshot rebuilds a State from snap.
func FromSnapshot(snap *Snapshot) *State {
	s := New(snap.TenantID, snap.ThreadID)
	for k, v := range snap.Values {
		s.values[k] = v
	}
	s.messages = make([]model.Message, len(snap.Messages))
	for i, m := range snap.Messages {
		s.messages[i] = m.Clone()
	}
	s.currentNode = snap.CurrentNode
	s.previousNode = snap.PreviousNode
	if !snap.UpdatedAt.IsZero() {
		s.updatedAt = snap.UpdatedAt
	}
	return s
}

// record is the persisted form of a Snapshot. Values carry their Go kind so
// they decode to the same types they were stored with.
type record struct {
	Snapshot
	Values map[string]typedValue `json:"values"`
}

// Marshal encodes s as JSON.
func (s *State) Marshal() ([]byte, error) {
	snap := s.Snapshot()
	rec := record{Snapshot: *snap, Values: make(map[string]typedValue, len(snap.Values))}
	rec.Snapshot.Values = nil
	for k, v := range snap.Values {
		tv, err := encodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("marshal state %s/%s: value %s: %w", s.tenantID, s.threadID, k, err)
		}
		rec.Values[k] = tv
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal state %s/%s: %w", s.tenantID, s.threadID, err)
	}
	return data, nil
}

// Unmarshal decodes a State previously encoded with Marshal.
func Unmarshal(data []byte) (*State, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}
	snap := rec.Snapshot
	snap.Values = make(map[string]any, len(rec.Values))
	for k, tv := range rec.Values {
		v, err := decodeValue(tv)
		if err != nil {
			return nil, fmt.Errorf("unmarshal state: value %s: %w", k, err)
		}
		snap.Values[k] = v
	}
	return FromSnapshot(&snap), nil
}
