//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package a2a provides a capability provider whose capabilities are remote
// agents reached over the A2A protocol. A capability takes one text message
// and returns the text of the agent's reply.
package a2a

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"trpc.group/trpc-go/trpc-a2a-go/client"
	"trpc.group/trpc-go/trpc-a2a-go/protocol"

	"trpc.group/trpc-go/trpc-agent-graph/log"
	"trpc.group/trpc-go/trpc-agent-graph/state"
	"trpc.group/trpc-go/trpc-agent-graph/tool"
)

// ParamMessage is the single parameter of an agent capability.
const ParamMessage = "message"

// ErrUnknownAgent is returned when invoking a name the provider lacks.
var ErrUnknownAgent = errors.New("a2a: unknown agent")

// Provider exposes remote A2A agents as capabilities.
type Provider struct {
	id     string
	opts   options
	decls  []*tool.Declaration
	agents map[string]*remoteAgent
}

type remoteAgent struct {
	url    string
	client *client.A2AClient
}

// New resolves the cards of agents and creates their clients.
func New(ctx context.Context, id string, agents []Agent, opts ...Option) (*Provider, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty provider id", tool.ErrInvalidProvider)
	}
	o := options{tenantHeader: defaultTenantHeader}
	for _, opt := range opts {
		opt(&o)
	}
	p := &Provider{id: id, opts: o, agents: make(map[string]*remoteAgent, len(agents))}
	for _, a := range agents {
		ra, decl, err := p.connect(ctx, a)
		if err != nil {
			return nil, fmt.Errorf("a2a provider %s: %w", id, err)
		}
		if _, dup := p.agents[decl.Name]; dup {
			return nil, fmt.Errorf("%w: a2a provider %s: duplicate agent %s", tool.ErrInvalidProvider, id, decl.Name)
		}
		p.agents[decl.Name] = ra
		p.decls = append(p.decls, decl)
	}
	log.Debugf("a2a provider %s exposes %d agent(s)", id, len(p.decls))
	return p, nil
}

func (p *Provider) connect(ctx context.Context, a Agent) (*remoteAgent, *tool.Declaration, error) {
	url := normalizeURL(a.URL)
	card := a.Card
	if card != nil && card.URL != "" {
		url = normalizeURL(card.URL)
	}
	if url == "" {
		return nil, nil, errors.New("agent url is required")
	}
	c, err := client.NewA2AClient(url, p.opts.clientOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("client for %s: %w", url, err)
	}
	if card == nil {
		card, err = c.GetAgentCard(ctx, "")
		if err != nil {
			return nil, nil, fmt.Errorf("fetch agent card from %s: %w", url, err)
		}
		if card.URL != "" && normalizeURL(card.URL) != url {
			url = normalizeURL(card.URL)
			if c, err = client.NewA2AClient(url, p.opts.clientOpts...); err != nil {
				return nil, nil, fmt.Errorf("client for %s: %w", url, err)
			}
		}
	}
	name, desc := a.Name, a.Description
	if name == "" {
		name = card.Name
	}
	if desc == "" {
		desc = card.Description
	}
	if name == "" {
		return nil, nil, fmt.Errorf("agent at %s has no name", url)
	}
	decl := &tool.Declaration{
		Name:        name,
		Description: desc,
		Parameters: []tool.Parameter{{
			Name:        ParamMessage,
			Type:        tool.TypeString,
			Description: "Message sent to the agent",
			Required:    true,
		}},
	}
	return &remoteAgent{url: url, client: c}, decl, nil
}

// ID implements tool.Provider.
func (p *Provider) ID() string { return p.id }

// Declarations implements tool.Provider.
func (p *Provider) Declarations() []*tool.Declaration {
	return append([]*tool.Declaration(nil), p.decls...)
}

// Invoke implements tool.Provider. The thread of the running state is the
// A2A context, so one thread keeps one remote conversation.
func (p *Provider) Invoke(ctx context.Context, name string, args map[string]any) (any, error) {
	ra, ok := p.agents[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAgent, name)
	}
	text, _ := args[ParamMessage].(string)
	if text == "" {
		return nil, fmt.Errorf("a2a agent %s: %s is required", name, ParamMessage)
	}
	msg := protocol.NewMessage(protocol.MessageRoleUser, []protocol.Part{protocol.NewTextPart(text)})
	var reqOpts []client.RequestOption
	if st, ok := state.FromContext(ctx); ok {
		contextID := st.TenantID() + "/" + st.ThreadID()
		msg.ContextID = &contextID
		if p.opts.tenantHeader != "" {
			reqOpts = append(reqOpts, client.WithRequestHeader(p.opts.tenantHeader, st.TenantID()))
		}
		for _, key := range p.opts.stateKeys {
			v, ok := st.Get(key)
			if !ok {
				continue
			}
			if msg.Metadata == nil {
				msg.Metadata = make(map[string]any)
			}
			msg.Metadata[key] = v
		}
	}
	result, err := ra.client.SendMessage(ctx, protocol.SendMessageParams{Message: msg}, reqOpts...)
	if err != nil {
		return nil, fmt.Errorf("a2a agent %s at %s: %w", name, ra.url, err)
	}
	return replyText(result), nil
}

// replyText joins the text parts of a message reply, or of the artifacts
// of a task reply, with newlines.
func replyText(result *protocol.MessageResult) string {
	if result == nil {
		return ""
	}
	var parts []protocol.Part
	switch v := result.Result.(type) {
	case *protocol.Message:
		parts = v.Parts
	case *protocol.Task:
		for _, a := range v.Artifacts {
			parts = append(parts, a.Parts...)
		}
		if len(parts) == 0 && v.Status.Message != nil {
			parts = v.Status.Message.Parts
		}
	default:
		log.Warnf("a2a: unexpected reply type %T", result.Result)
	}
	var texts []string
	for _, part := range parts {
		if tp, ok := part.(*protocol.TextPart); ok {
			texts = append(texts, tp.Text)
		}
	}
	return strings.Join(texts, "\n")
}

func normalizeURL(url string) string {
	url = strings.TrimSpace(url)
	if url == "" || strings.Contains(url, "://") {
		return url
	}
	return "http://" + url
}
