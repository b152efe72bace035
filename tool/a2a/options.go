//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package a2a

import (
	"trpc.group/trpc-go/trpc-a2a-go/client"
	"trpc.group/trpc-go/trpc-a2a-go/server"
)

const defaultTenantHeader = "X-Tenant-ID"

// Agent describes one remote agent served as a capability.
type Agent struct {
	// URL is the base URL of the agent. Its card is fetched from there
	// unless Card is set.
	URL string `yaml:"url" json:"url"`
	// Name is the capability name. It defaults to the card name.
	Name string `yaml:"name,omitempty" json:"name,omitempty"`
	// Description defaults to the card description.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	// Card skips fetching the agent card.
	Card *server.AgentCard `yaml:"-" json:"-"`
}

// Option configures a Provider.
type Option func(*options)

type options struct {
	clientOpts   []client.Option
	stateKeys    []string
	tenantHeader string
}

// WithClientOptions adds options to every A2A client of the provider.
func WithClientOptions(opts ...client.Option) Option {
	return func(o *options) {
		o.clientOpts = append(o.clientOpts, opts...)
	}
}

// WithTransferStateKeys copies the named state values into the metadata of
// every message sent.
func WithTransferStateKeys(keys ...string) Option {
	return func(o *options) {
		o.stateKeys = append(o.stateKeys, keys...)
	}
}

// WithTenantHeader sets the HTTP header carrying the tenant id. An empty
// header sends none.
func WithTenantHeader(header string) Option {
	return func(o *options) {
		o.tenantHeader = header
	}
}
