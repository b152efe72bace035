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
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"trpc.group/trpc-go/trpc-agent-graph/storage"
)

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "agentgraph"

// Options is the options for the redis store.
type Options struct {
	client       redis.UniversalClient
	url          string
	instanceName string
	prefix       string
	ttl          time.Duration
}

// Option is the option for the redis store.
type Option func(*Options)

// WithRedisClient uses an existing client. The store does not close it.
func WithRedisClient(client redis.UniversalClient) Option {
	return func(o *Options) { o.client = client }
}

// WithURL builds the client from a redis URL with the current client
// builder.
func WithURL(url string) Option {
	return func(o *Options) { o.url = url }
}

// WithInstanceName builds the client from options registered with
// RegisterRedisInstance.
func WithInstanceName(name string) Option {
	return func(o *Options) { o.instanceName = name }
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(o *Options) { o.prefix = prefix }
}

// WithTTL expires records this long after their last write. Zero keeps
// them forever.
func WithTTL(ttl time.Duration) Option {
	return func(o *Options) { o.ttl = ttl }
}

// Store is a storage.Store on redis. Each record is one string key:
//
//	<prefix>:<kind>:<id> -> value (expires after ttl)
type Store struct {
	client    redis.UniversalClient
	ownClient bool
	prefix    string
	ttl       time.Duration
}

// NewStore creates a redis store. Exactly one of WithRedisClient, WithURL
// or WithInstanceName is expected; the first one set wins in that order.
func NewStore(opts ...Option) (*Store, error) {
	o := Options{prefix: DefaultPrefix}
	for _, opt := range opts {
		opt(&o)
	}
	s := &Store{client: o.client, prefix: o.prefix, ttl: o.ttl}
	if s.client != nil {
		return s, nil
	}
	var builderOpts []ClientBuilderOpt
	switch {
	case o.url != "":
		builderOpts = []ClientBuilderOpt{WithClientBuilderURL(o.url)}
	case o.instanceName != "":
		registered, ok := GetRedisInstance(o.instanceName)
		if !ok {
			return nil, fmt.Errorf("redis: instance %s not found", o.instanceName)
		}
		builderOpts = registered
	default:
		return nil, errors.New("redis: client, url or instance name is required")
	}
	client, err := GetClientBuilder()(builderOpts...)
	if err != nil {
		return nil, fmt.Errorf("redis: create client: %w", err)
	}
	s.client, s.ownClient = client, true
	return s, nil
}

func (s *Store) key(k storage.Key) string {
	if s.prefix == "" {
		return k.String()
	}
	return s.prefix + ":" + k.String()
}

// Put implements storage.Store.
func (s *Store) Put(ctx context.Context, key storage.Key, value []byte) error {
	if value == nil {
		return storage.ErrNilValue
	}
	if err := s.client.Set(ctx, s.key(key), value, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set %s: %w", key, err)
	}
	return nil
}

// Get implements storage.Store.
func (s *Store) Get(ctx context.Context, key storage.Key) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis: get %s: %w", key, err)
	}
	return data, nil
}

// Delete implements storage.Store.
func (s *Store) Delete(ctx context.Context, key storage.Key) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("redis: del %s: %w", key, err)
	}
	return nil
}

// Exists implements storage.Store.
func (s *Store) Exists(ctx context.Context, key storage.Key) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("redis: exists %s: %w", key, err)
	}
	return n > 0, nil
}

// Touch resets the expiry of several records in one round trip.
func (s *Store) Touch(ctx context.Context, keys ...storage.Key) error {
	if s.ttl <= 0 || len(keys) == 0 {
		return nil
	}
	pipe := s.client.TxPipeline()
	for _, k := range keys {
		pipe.Expire(ctx, s.key(k), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: touch: %w", err)
	}
	return nil
}

// Close closes the client when the store created it.
func (s *Store) Close() error {
	if s.ownClient {
		return s.client.Close()
	}
	return nil
}

var _ storage.Store = (*Store)(nil)
