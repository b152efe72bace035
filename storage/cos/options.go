//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package cos

import (
	"net/http"
	"time"

	cos "github.com/tencentyun/cos-go-sdk-v5"
)

const (
	defaultTimeout = 60 * time.Second
	defaultPrefix  = "agentgraph"
	contentType    = "application/json"
)

// Option configures a Store.
type Option func(*options)

type options struct {
	client     client
	httpClient *http.Client
	timeout    time.Duration
	secretID   string
	secretKey  string
	prefix     string
}

// WithClient uses a configured COS client. It takes precedence over the
// other connection options.
func WithClient(c *cos.Client) Option {
	return func(o *options) {
		o.client = newCosClient(c)
	}
}

// WithHTTPClient sets the HTTP client for COS requests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithTimeout sets the timeout of each request.
func WithTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.timeout = timeout
	}
}

// WithSecretID sets the secret id. It defaults to $COS_SECRETID.
func WithSecretID(id string) Option {
	return func(o *options) {
		o.secretID = id
	}
}

// WithSecretKey sets the secret key. It defaults to $COS_SECRETKEY.
func WithSecretKey(key string) Option {
	return func(o *options) {
		o.secretKey = key
	}
}

// WithPrefix sets the object name prefix shared by all records.
func WithPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}
