//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package gemini provides a Gemini model backend built on google genai.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"google.golang.org/genai"

	"trpc.group/trpc-go/trpc-agent-graph/model"
	"trpc.group/trpc-go/trpc-agent-graph/tool"
)

// Provider is the name this backend registers under.
const Provider = "gemini"

// Environment variables read when no API key is configured.
const (
	APIKeyEnv       = "GEMINI_API_KEY"
	GoogleAPIKeyEnv = "GOOGLE_API_KEY"
)

const (
	defaultModel   = "gemini-2.0-flash"
	defaultTimeout = 60 * time.Second
)

func init() {
	model.Register(Provider, func(cfg model.Config) (model.Model, error) {
		opts := []Option{WithAPIKey(cfg.APIKey), WithBaseURL(cfg.BaseURL)}
		if cfg.Timeout > 0 {
			opts = append(opts, WithTimeout(cfg.Timeout))
		}
		return New(context.Background(), cfg.Model, opts...)
	})
}

type options struct {
	apiKey        string
	baseURL       string
	timeout       time.Duration
	clientOptions *genai.ClientConfig
}

// Option configures the backend.
type Option func(*options)

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(o *options) { o.apiKey = key }
}

// WithBaseURL overrides the API endpoint.
func WithBaseURL(url string) Option {
	return func(o *options) { o.baseURL = url }
}

// WithTimeout bounds every HTTP request.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithClientOptions replaces the genai client configuration.
func WithClientOptions(cfg *genai.ClientConfig) Option {
	return func(o *options) { o.clientOptions = cfg }
}

// Model is a model.Model backed by the Gemini API.
type Model struct {
	client *genai.Client
	name   string
}

// New creates a Gemini backend for the model called name.
func New(ctx context.Context, name string, opts ...Option) (*Model, error) {
	o := &options{timeout: defaultTimeout, clientOptions: &genai.ClientConfig{}}
	for _, opt := range opts {
		opt(o)
	}
	cfg := *o.clientOptions
	if cfg.APIKey == "" {
		cfg.APIKey = o.apiKey
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv(APIKeyEnv)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv(GoogleAPIKeyEnv)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: %s is not provided", APIKeyEnv)
	}
	if cfg.Backend == genai.BackendUnspecified {
		cfg.Backend = genai.BackendGeminiAPI
	}
	if o.baseURL != "" {
		cfg.HTTPOptions.BaseURL = o.baseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: o.timeout}
	}
	client, err := genai.NewClient(ctx, &cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	if name == "" {
		name = defaultModel
	}
	return &Model{client: client, name: name}, nil
}

// Info implements model.Model.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.name, Provider: Provider}
}

// GenerateContent implements model.Model.
func (m *Model) GenerateContent(ctx context.Context, req *model.Request) (*model.Response, error) {
	if req == nil {
		return nil, errors.New("gemini: request is nil")
	}
	name := req.Model
	if name == "" {
		name = m.name
	}
	name = strings.TrimPrefix(name, "models/")
	contents, system := convertMessages(req.Messages)
	if req.SystemInstruction != "" {
		system = append([]string{req.SystemInstruction}, system...)
	}
	rsp, err := m.client.Models.GenerateContent(ctx, name, contents, buildConfig(req, system))
	if err != nil {
		return nil, classify(err)
	}
	return convertResponse(name, rsp), nil
}

func buildConfig(req *model.Request, system []string) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if len(system) > 0 {
		cfg.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n"), genai.RoleUser)
	}
	if req.Temperature != nil {
		t := float32(*req.Temperature)
		cfg.Temperature = &t
	}
	if req.TopP != nil {
		p := float32(*req.TopP)
		cfg.TopP = &p
	}
	if req.MaxTokens != nil {
		cfg.MaxOutputTokens = int32(*req.MaxTokens)
	}
	if len(req.Stop) > 0 {
		cfg.StopSequences = req.Stop
	}
	if req.PresencePenalty != nil {
		p := float32(*req.PresencePenalty)
		cfg.PresencePenalty = &p
	}
	if req.FrequencyPenalty != nil {
		p := float32(*req.FrequencyPenalty)
		cfg.FrequencyPenalty = &p
	}
	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, d := range req.Tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  convertSchema(d.InputSchema()),
			})
		}
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}
	return cfg
}

// convertMessages maps the log onto Gemini contents. System messages are
// lifted into the system instruction; tool results become function
// responses on the user side.
func convertMessages(messages []model.Message) ([]*genai.Content, []string) {
	var (
		contents []*genai.Content
		system   []string
	)
	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			system = append(system, msg.Content)
		case model.RoleAssistant:
			c := &genai.Content{Role: string(genai.RoleModel)}
			if msg.Content != "" {
				c.Parts = append(c.Parts, genai.NewPartFromText(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				c.Parts = append(c.Parts, &genai.Part{FunctionCall: &genai.FunctionCall{
					ID:   tc.ID,
					Name: tc.Name,
					Args: tc.Arguments,
				}})
			}
			if len(c.Parts) > 0 {
				contents = append(contents, c)
			}
		case model.RoleTool:
			response := map[string]any{"output": msg.Content}
			if msg.IsError() {
				response = map[string]any{"error": msg.Content}
			}
			contents = append(contents, &genai.Content{
				Role: string(genai.RoleUser),
				Parts: []*genai.Part{{FunctionResponse: &genai.FunctionResponse{
					ID:       msg.ToolID,
					Name:     msg.ToolName,
					Response: response,
				}}},
			})
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}
	return contents, system
}

func convertSchema(s *tool.Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:        genai.Type(strings.ToUpper(s.Type)),
		Description: s.Description,
		Required:    s.Required,
		Items:       convertSchema(s.Items),
	}
	for _, e := range s.Enum {
		out.Enum = append(out.Enum, fmt.Sprint(e))
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, p := range s.Properties {
			out.Properties[name] = convertSchema(p)
		}
	}
	return out
}

func convertResponse(name string, rsp *genai.GenerateContentResponse) *model.Response {
	out := &model.Response{
		Model:     name,
		Timestamp: time.Now(),
	}
	for i, cand := range rsp.Candidates {
		msg := model.Message{Role: model.RoleAssistant, Timestamp: out.Timestamp}
		if cand.Content != nil {
			var text []string
			for _, part := range cand.Content.Parts {
				if part == nil {
					continue
				}
				if part.Text != "" && !part.Thought {
					text = append(text, part.Text)
				}
				if fc := part.FunctionCall; fc != nil {
					id := fc.ID
					if id == "" {
						id = model.NewToolCallID()
					}
					args := fc.Args
					if args == nil {
						args = map[string]any{}
					}
					msg.ToolCalls = append(msg.ToolCalls, model.ToolCall{
						ID:        id,
						Type:      model.ToolCallTypeFunction,
						Name:      fc.Name,
						Arguments: args,
					})
				}
			}
			msg.Content = strings.Join(text, "")
		}
		choice := model.Choice{Index: i, Message: msg}
		if cand.FinishReason != "" {
			reason := strings.ToLower(string(cand.FinishReason))
			choice.FinishReason = &reason
		}
		out.Choices = append(out.Choices, choice)
	}
	if u := rsp.UsageMetadata; u != nil {
		out.Usage = &model.Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out
}

func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return model.NewStatusError(apiErr.Code, apiErr.Message, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return model.NewStatusError(apiErrPtr.Code, apiErrPtr.Message, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &model.BackendError{Type: model.ErrorTypeAPIError, Message: err.Error(), Err: err}
}
