//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package inmemory provides a process-local storage.Store with optional
// expiry.
package inmemory

import (
	"context"
	"sync"
	"time"

	"trpc.group/trpc-go/trpc-agent-graph/storage"
)

const defaultCleanupInterval = 5 * time.Minute

type entry struct {
	value     []byte
	expiredAt time.Time
}

type options struct {
	ttl             time.Duration
	cleanupInterval time.Duration
}

// Option configures a Store.
type Option func(*options)

// WithTTL sets how long a record lives after its last write. Zero keeps
// records forever.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) { o.ttl = ttl }
}

// WithCleanupInterval sets how often expired records are purged. When a TTL
// is set and no interval is given, records are purged every five minutes.
func WithCleanupInterval(interval time.Duration) Option {
	return func(o *options) { o.cleanupInterval = interval }
}

// Store keeps records in a map guarded by a mutex.
type Store struct {
	mu            sync.RWMutex
	opts          options
	records       map[storage.Key]entry
	cleanupTicker *time.Ticker
	cleanupDone   chan struct{}
	closeOnce     sync.Once
}

// NewStore creates an in-memory store.
func NewStore(opts ...Option) *Store {
	s := &Store{records: make(map[storage.Key]entry)}
	for _, opt := range opts {
		opt(&s.opts)
	}
	interval := s.opts.cleanupInterval
	if interval <= 0 && s.opts.ttl > 0 {
		interval = defaultCleanupInterval
	}
	if interval > 0 {
		s.cleanupTicker = time.NewTicker(interval)
		s.cleanupDone = make(chan struct{})
		go s.cleanupLoop()
	}
	return s
}

func calculateExpiredAt(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return time.Now().Add(ttl)
}

func isExpired(expiredAt time.Time) bool {
	return !expiredAt.IsZero() && time.Now().After(expiredAt)
}

// Put implements storage.Store.
func (s *Store) Put(_ context.Context, key storage.Key, value []byte) error {
	if value == nil {
		return storage.ErrNilValue
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = entry{
		value:     append([]byte(nil), value...),
		expiredAt: calculateExpiredAt(s.opts.ttl),
	}
	return nil
}

// Get implements storage.Store.
func (s *Store) Get(_ context.Context, key storage.Key) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.records[key]
	if !ok || isExpired(e.expiredAt) {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), e.value...), nil
}

// Delete implements storage.Store.
func (s *Store) Delete(_ context.Context, key storage.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

// Exists implements storage.Store.
func (s *Store) Exists(_ context.Context, key storage.Key) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.records[key]
	return ok && !isExpired(e.expiredAt), nil
}

// Len returns the number of records, expired ones included until purged.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Close stops the cleanup loop.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		if s.cleanupTicker != nil {
			s.cleanupTicker.Stop()
			close(s.cleanupDone)
		}
	})
	return nil
}

func (s *Store) cleanupLoop() {
	for {
		select {
		case <-s.cleanupTicker.C:
			s.cleanupExpired()
		case <-s.cleanupDone:
			return
		}
	}
}

func (s *Store) cleanupExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, e := range s.records {
		if isExpired(e.expiredAt) {
			delete(s.records, key)
		}
	}
}

var _ storage.Store = (*Store)(nil)
