//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-agent-graph/storage"
	"trpc.group/trpc-go/trpc-agent-graph/storage/storagetest"
)

func setupTestRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return mr
}

func TestStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		mr := setupTestRedis(t)
		s, err := NewStore(WithURL("redis://" + mr.Addr()))
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestStoreKeysAndTTL(t *testing.T) {
	mr := setupTestRedis(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	s, err := NewStore(WithRedisClient(client), WithPrefix("app"), WithTTL(time.Minute))
	require.NoError(t, err)
	ctx := context.Background()
	key := storage.StateKey("tenant", "thread")

	require.NoError(t, s.Put(ctx, key, []byte("payload")))
	assert.True(t, mr.Exists("app:state:tenant/thread"))
	assert.Equal(t, time.Minute, mr.TTL("app:state:tenant/thread"))

	mr.FastForward(30 * time.Second)
	require.NoError(t, s.Touch(ctx, key))
	assert.Equal(t, time.Minute, mr.TTL("app:state:tenant/thread"))

	mr.FastForward(2 * time.Minute)
	_, err = s.Get(ctx, key)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// A store built on a caller's client leaves it open.
	require.NoError(t, s.Close())
	assert.NoError(t, client.Ping(ctx).Err())
}

func TestStoreWithoutPrefixOrTTL(t *testing.T) {
	mr := setupTestRedis(t)
	s, err := NewStore(WithURL("redis://"+mr.Addr()), WithPrefix(""))
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Put(ctx, storage.ConfigKey("tenant"), []byte("{}")))
	assert.True(t, mr.Exists("config:tenant"))
	assert.Equal(t, time.Duration(0), mr.TTL("config:tenant"))
	assert.NoError(t, s.Touch(ctx, storage.ConfigKey("tenant")))
	assert.ErrorIs(t, s.Put(ctx, storage.ConfigKey("tenant"), nil), storage.ErrNilValue)
}

func TestNewStoreFromInstance(t *testing.T) {
	isolate(t)
	mr := setupTestRedis(t)

	_, err := NewStore()
	assert.Error(t, err)
	_, err = NewStore(WithInstanceName("missing"))
	assert.Error(t, err)

	RegisterRedisInstance("main", WithClientBuilderURL("redis://"+mr.Addr()))
	s, err := NewStore(WithInstanceName("main"))
	require.NoError(t, err)
	defer s.Close()
	ok, err := s.Exists(context.Background(), storage.ConfigKey("x"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreBackendDown(t *testing.T) {
	mr := setupTestRedis(t)
	s, err := NewStore(WithURL("redis://" + mr.Addr()))
	require.NoError(t, err)
	defer s.Close()
	mr.Close()

	_, err = s.Get(context.Background(), storage.ConfigKey("tenant"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, storage.ErrNotFound)
}
