//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package cos provides a storage.Store on Tencent Cloud Object Storage.
//
// Each record is one JSON object named {prefix}/{kind}/{id}, so the state
// of a thread lives at agentgraph/state/{tenant}/{thread}.
//
// Credentials come from WithSecretID and WithSecretKey or from the
// COS_SECRETID and COS_SECRETKEY environment variables:
//
//	store, err := cos.NewStore("https://bucket-1250000000.cos.ap-guangzhou.myqcloud.com")
package cos

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	cos "github.com/tencentyun/cos-go-sdk-v5"

	"trpc.group/trpc-go/trpc-agent-graph/storage"
)

// Store keeps records as objects of one COS bucket.
type Store struct {
	client client
	prefix string
}

// NewStore creates a store on the bucket at bucketURL.
func NewStore(bucketURL string, opts ...Option) (*Store, error) {
	o := &options{
		timeout:   defaultTimeout,
		secretID:  os.Getenv("COS_SECRETID"),
		secretKey: os.Getenv("COS_SECRETKEY"),
		prefix:    defaultPrefix,
	}
	for _, opt := range opts {
		opt(o)
	}
	prefix := strings.Trim(o.prefix, "/")
	if o.client != nil {
		return &Store{client: o.client, prefix: prefix}, nil
	}

	u, err := url.Parse(bucketURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("cos: invalid bucket url %q", bucketURL)
	}
	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &cos.AuthorizationTransport{
				SecretID:  o.secretID,
				SecretKey: o.secretKey,
			},
		}
	}
	if o.timeout > 0 {
		httpClient.Timeout = o.timeout
	}
	c := cos.NewClient(&cos.BaseURL{BucketURL: u}, httpClient)
	return &Store{client: newCosClient(c), prefix: prefix}, nil
}

func (s *Store) objectName(key storage.Key) string {
	name := string(key.Kind) + "/" + key.ID
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

// Put implements storage.Store.
func (s *Store) Put(ctx context.Context, key storage.Key, value []byte) error {
	if value == nil {
		return storage.ErrNilValue
	}
	if err := s.client.PutObject(ctx, s.objectName(key), bytes.NewReader(value)); err != nil {
		return fmt.Errorf("cos: put %s: %w", key, err)
	}
	return nil
}

// Get implements storage.Store.
func (s *Store) Get(ctx context.Context, key storage.Key) ([]byte, error) {
	body, err := s.client.GetObject(ctx, s.objectName(key))
	if cos.IsNotFoundError(err) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("cos: get %s: %w", key, err)
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("cos: read %s: %w", key, err)
	}
	return data, nil
}

// Delete implements storage.Store.
func (s *Store) Delete(ctx context.Context, key storage.Key) error {
	err := s.client.DeleteObject(ctx, s.objectName(key))
	if err != nil && !cos.IsNotFoundError(err) {
		return fmt.Errorf("cos: delete %s: %w", key, err)
	}
	return nil
}

// Exists implements storage.Store.
func (s *Store) Exists(ctx context.Context, key storage.Key) (bool, error) {
	err := s.client.HeadObject(ctx, s.objectName(key))
	switch {
	case err == nil:
		return true, nil
	case cos.IsNotFoundError(err):
		return false, nil
	default:
		return false, fmt.Errorf("cos: head %s: %w", key, err)
	}
}

// Close implements storage.Store. The store holds no connections.
func (s *Store) Close() error { return nil }

var _ storage.Store = (*Store)(nil)
