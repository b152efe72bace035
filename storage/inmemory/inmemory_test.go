//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package inmemory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-agent-graph/storage"
	"trpc.group/trpc-go/trpc-agent-graph/storage/storagetest"
)

func TestStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		s := NewStore()
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestStoreTTL(t *testing.T) {
	s := NewStore(WithTTL(20*time.Millisecond), WithCleanupInterval(10*time.Millisecond))
	defer s.Close()
	ctx := context.Background()
	key := storage.ConfigKey("tenant")

	require.NoError(t, s.Put(ctx, key, []byte("cfg")))
	ok, err := s.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Eventually(t, func() bool {
		_, err := s.Get(ctx, key)
		return err == storage.ErrNotFound
	}, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestStoreWithoutTTLHasNoCleanup(t *testing.T) {
	s := NewStore()
	assert.Nil(t, s.cleanupTicker)
	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())

	withTTL := NewStore(WithTTL(time.Hour))
	assert.NotNil(t, withTTL.cleanupTicker)
	assert.NoError(t, withTTL.Close())
}

func TestStoreCopiesValues(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	key := storage.StateKey("t", "c")
	buf := []byte("abc")
	require.NoError(t, s.Put(ctx, key, buf))
	buf[0] = 'x'
	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
	got[1] = 'y'
	again, _ := s.Get(ctx, key)
	assert.Equal(t, "abc", string(again))
	assert.ErrorIs(t, s.Put(ctx, key, nil), storage.ErrNilValue)
}

func TestExpiry(t *testing.T) {
	assert.True(t, calculateExpiredAt(0).IsZero())
	assert.False(t, isExpired(time.Time{}))
	assert.True(t, isExpired(time.Now().Add(-time.Second)))
	assert.False(t, isExpired(calculateExpiredAt(time.Hour)))
}
