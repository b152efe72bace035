//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package storagetest holds the behaviour every storage.Store backend must
// share. Backend tests call Run with a constructor for a fresh store.
package storagetest

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-agent-graph/model"
	"trpc.group/trpc-go/trpc-agent-graph/state"
	"trpc.group/trpc-go/trpc-agent-graph/storage"
	"trpc.group/trpc-go/trpc-agent-graph/workflow"
)

// Run exercises a Store and the repositories built on it.
func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	t.Run("store", func(t *testing.T) { testStore(t, newStore(t)) })
	t.Run("states", func(t *testing.T) { testStates(t, newStore(t)) })
	t.Run("configs", func(t *testing.T) { testConfigs(t, newStore(t)) })
	t.Run("concurrent", func(t *testing.T) { testConcurrent(t, newStore(t)) })
}

func testStore(t *testing.T, s storage.Store) {
	ctx := context.Background()
	key := storage.Key{Kind: storage.KindState, ID: "t/1"}

	_, err := s.Get(ctx, key)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	ok, err := s.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, key, []byte("one")))
	require.NoError(t, s.Put(ctx, key, []byte("two")))
	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "two", string(got))

	other := storage.Key{Kind: storage.KindConfig, ID: "t/1"}
	_, err = s.Get(ctx, other)
	assert.ErrorIs(t, err, storage.ErrNotFound, "kinds must not share keys")

	require.NoError(t, s.Delete(ctx, key))
	require.NoError(t, s.Delete(ctx, key))
	ok, err = s.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func testStates(t *testing.T, s storage.Store) {
	ctx := context.Background()
	repo := storage.NewStateRepository(s)

	st := state.New("tenant", "thread")
	st.Set("count", 2.0)
	st.SetCurrentNode("entry")
	st.AppendMessages(
		model.NewUserMessage("hi"),
		model.NewAssistantMessage("hello"),
	)
	require.NoError(t, repo.Save(ctx, st))

	ok, err := repo.Exists(ctx, "tenant", "thread")
	require.NoError(t, err)
	assert.True(t, ok)

	loaded, err := repo.FindByID(ctx, "tenant", "thread")
	require.NoError(t, err)
	assert.Equal(t, "tenant", loaded.TenantID())
	assert.Equal(t, "thread", loaded.ThreadID())
	assert.Equal(t, "entry", loaded.CurrentNode())
	v, _ := loaded.Get("count")
	assert.Equal(t, 2.0, v)
	msgs := loaded.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "hi", msgs[0].Content)
	assert.Equal(t, "hello", msgs[1].Content)

	_, err = repo.FindByID(ctx, "tenant", "other")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = repo.FindByID(ctx, "", "thread")
	assert.ErrorIs(t, err, storage.ErrTenantRequired)
	assert.ErrorIs(t, repo.Save(ctx, state.New("tenant", "")), storage.ErrThreadRequired)
	assert.ErrorIs(t, repo.Save(ctx, nil), storage.ErrNilValue)

	require.NoError(t, repo.Delete(ctx, "tenant", "thread"))
	ok, err = repo.Exists(ctx, "tenant", "thread")
	require.NoError(t, err)
	assert.False(t, ok)
}

func testConfigs(t *testing.T, s storage.Store) {
	ctx := context.Background()
	repo := storage.NewConfigRepository(s)

	ok, err := repo.Exists(ctx, "tenant")
	require.NoError(t, err)
	assert.False(t, ok)

	cfg := workflow.New("tenant").Enable("weather", "get*").Enable("kv", workflow.Wildcard)
	require.NoError(t, repo.Save(ctx, cfg))
	ok, err = repo.Exists(ctx, "tenant")
	require.NoError(t, err)
	assert.True(t, ok)
	_, err = repo.Exists(ctx, "")
	assert.ErrorIs(t, err, storage.ErrTenantRequired)

	loaded, err := repo.FindByID(ctx, "tenant")
	require.NoError(t, err)
	assert.Equal(t, cfg.Capabilities, loaded.Capabilities)
	assert.True(t, loaded.IsEnabled("weather", "getForecast"))
	assert.False(t, loaded.IsEnabled("weather", "setAlarm"))

	_, err = repo.FindByID(ctx, "nobody")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, repo.Save(ctx, workflow.New("")), storage.ErrTenantRequired)

	require.NoError(t, repo.Delete(ctx, "tenant"))
	_, err = repo.FindByID(ctx, "tenant")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	ok, err = repo.Exists(ctx, "tenant")
	require.NoError(t, err)
	assert.False(t, ok)
}

func testConcurrent(t *testing.T, s storage.Store) {
	ctx := context.Background()
	repo := storage.NewStateRepository(s)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			st := state.New("tenant", string(rune('a'+i)))
			st.AppendMessages(model.NewUserMessage("hi"))
			assert.NoError(t, repo.Save(ctx, st))
			_, err := repo.FindByID(ctx, "tenant", st.ThreadID())
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
}
