//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package openai provides an OpenAI-compatible model backend.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"time"

	openai "github.com/openai/openai-go"
	openaiopt "github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"trpc.group/trpc-go/trpc-agent-graph/log"
	"trpc.group/trpc-go/trpc-agent-graph/model"
	"trpc.group/trpc-go/trpc-agent-graph/tool"
)

// Provider is the name this backend registers under.
const Provider = "openai"

// APIKeyEnv is read when no API key is configured.
const APIKeyEnv = "OPENAI_API_KEY"

const defaultTimeout = 60 * time.Second

func init() {
	model.Register(Provider, func(cfg model.Config) (model.Model, error) {
		opts := []Option{WithAPIKey(cfg.APIKey), WithBaseURL(cfg.BaseURL)}
		if cfg.Timeout > 0 {
			opts = append(opts, WithTimeout(cfg.Timeout))
		}
		return New(cfg.Model, opts...), nil
	})
}

type options struct {
	APIKey        string
	BaseURL       string
	Timeout       time.Duration
	HTTPClient    *http.Client
	OpenAIOptions []openaiopt.RequestOption
}

// Option configures the backend.
type Option func(*options)

// WithAPIKey sets the API key. Empty falls back to OPENAI_API_KEY.
func WithAPIKey(key string) Option {
	return func(o *options) { o.APIKey = key }
}

// WithBaseURL sets the base URL of an OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(o *options) { o.BaseURL = url }
}

// WithTimeout bounds every HTTP request.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.Timeout = d }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.HTTPClient = c }
}

// WithOpenAIOptions appends raw openai-go request options.
func WithOpenAIOptions(openaiOpts ...openaiopt.RequestOption) Option {
	return func(o *options) { o.OpenAIOptions = append(o.OpenAIOptions, openaiOpts...) }
}

// Model is a model.Model backed by the chat completions API.
type Model struct {
	client openai.Client
	name   string
}

// New creates a backend for the model called name. Retries are left to the
// caller, so the client's own retry loop is disabled.
func New(name string, opts ...Option) *Model {
	o := &options{Timeout: defaultTimeout}
	for _, opt := range opts {
		opt(o)
	}
	if o.APIKey == "" {
		o.APIKey = os.Getenv(APIKeyEnv)
	}
	httpClient := o.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: o.Timeout}
	}
	clientOpts := []openaiopt.RequestOption{
		openaiopt.WithHTTPClient(httpClient),
		openaiopt.WithMaxRetries(0),
	}
	if o.APIKey != "" {
		clientOpts = append(clientOpts, openaiopt.WithAPIKey(o.APIKey))
	}
	if o.BaseURL != "" {
		clientOpts = append(clientOpts, openaiopt.WithBaseURL(o.BaseURL))
	}
	clientOpts = append(clientOpts, o.OpenAIOptions...)
	return &Model{client: openai.NewClient(clientOpts...), name: name}
}

// Info implements model.Model.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.name, Provider: Provider}
}

// GenerateContent implements model.Model.
func (m *Model) GenerateContent(ctx context.Context, req *model.Request) (*model.Response, error) {
	if req == nil {
		return nil, errors.New("openai: request is nil")
	}
	chatRequest := m.buildRequest(req)
	var opts []openaiopt.RequestOption
	for key, value := range req.Extras {
		opts = append(opts, openaiopt.WithJSONSet(key, value))
	}
	completion, err := m.client.Chat.Completions.New(ctx, chatRequest, opts...)
	if err != nil {
		return nil, classify(err)
	}
	return convertCompletion(completion), nil
}

func (m *Model) buildRequest(req *model.Request) openai.ChatCompletionNewParams {
	name := req.Model
	if name == "" {
		name = m.name
	}
	messages := req.Messages
	if req.SystemInstruction != "" {
		messages = append([]model.Message{model.NewSystemMessage(req.SystemInstruction)}, messages...)
	}
	chatRequest := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(name),
		Messages: convertMessages(messages),
		Tools:    convertTools(req.Tools),
	}
	if req.MaxTokens != nil {
		chatRequest.MaxCompletionTokens = openai.Int(int64(*req.MaxTokens))
	}
	if req.Temperature != nil {
		chatRequest.Temperature = openai.Float(*req.Temperature)
	}
	if req.TopP != nil {
		chatRequest.TopP = openai.Float(*req.TopP)
	}
	if len(req.Stop) > 0 {
		chatRequest.Stop = openai.ChatCompletionNewParamsStopUnion{OfStringArray: req.Stop}
	}
	if req.PresencePenalty != nil {
		chatRequest.PresencePenalty = openai.Float(*req.PresencePenalty)
	}
	if req.FrequencyPenalty != nil {
		chatRequest.FrequencyPenalty = openai.Float(*req.FrequencyPenalty)
	}
	return chatRequest
}

func convertMessages(messages []model.Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			result = append(result, openai.SystemMessage(msg.Content))
		case model.RoleAssistant:
			assistant := &openai.ChatCompletionAssistantMessageParam{
				ToolCalls: convertToolCalls(msg.ToolCalls),
			}
			if msg.Content != "" || len(msg.ToolCalls) == 0 {
				assistant.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
					OfString: openai.String(msg.Content),
				}
			}
			result = append(result, openai.ChatCompletionMessageParamUnion{OfAssistant: assistant})
		case model.RoleTool:
			result = append(result, openai.ToolMessage(msg.Content, msg.ToolID))
		default:
			result = append(result, openai.UserMessage(msg.Content))
		}
	}
	return result
}

func convertToolCalls(toolCalls []model.ToolCall) []openai.ChatCompletionMessageToolCallParam {
	var result []openai.ChatCompletionMessageToolCallParam
	for _, tc := range toolCalls {
		args, err := json.Marshal(tc.Arguments)
		if err != nil || tc.Arguments == nil {
			args = []byte("{}")
		}
		result = append(result, openai.ChatCompletionMessageToolCallParam{
			ID: tc.ID,
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      tc.Name,
				Arguments: string(args),
			},
		})
	}
	return result
}

func convertTools(decls []*tool.Declaration) []openai.ChatCompletionToolParam {
	var result []openai.ChatCompletionToolParam
	for _, decl := range decls {
		schemaBytes, err := json.Marshal(decl.InputSchema())
		if err != nil {
			log.Errorf("failed to marshal tool schema for %s: %v", decl.Name, err)
			continue
		}
		var parameters shared.FunctionParameters
		if err := json.Unmarshal(schemaBytes, &parameters); err != nil {
			log.Errorf("failed to unmarshal tool schema for %s: %v", decl.Name, err)
			continue
		}
		result = append(result, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        decl.Name,
				Description: openai.String(decl.Description),
				Parameters:  parameters,
			},
		})
	}
	return result
}

func convertCompletion(completion *openai.ChatCompletion) *model.Response {
	rsp := &model.Response{
		ID:        completion.ID,
		Created:   completion.Created,
		Model:     completion.Model,
		Timestamp: time.Now(),
	}
	rsp.Choices = make([]model.Choice, len(completion.Choices))
	for i, choice := range completion.Choices {
		msg := model.Message{
			Role:      model.RoleAssistant,
			Content:   choice.Message.Content,
			Timestamp: rsp.Timestamp,
		}
		for _, tc := range choice.Message.ToolCalls {
			id := tc.ID
			if id == "" {
				id = model.NewToolCallID()
			}
			msg.ToolCalls = append(msg.ToolCalls, model.ToolCall{
				ID:        id,
				Type:      model.ToolCallTypeFunction,
				Name:      tc.Function.Name,
				Arguments: decodeArguments(tc.Function.Name, tc.Function.Arguments),
			})
		}
		rsp.Choices[i] = model.Choice{Index: int(choice.Index), Message: msg}
		if choice.FinishReason != "" {
			finishReason := choice.FinishReason
			rsp.Choices[i].FinishReason = &finishReason
		}
	}
	if completion.Usage.PromptTokens > 0 || completion.Usage.CompletionTokens > 0 {
		rsp.Usage = &model.Usage{
			PromptTokens:     int(completion.Usage.PromptTokens),
			CompletionTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:      int(completion.Usage.TotalTokens),
		}
	}
	return rsp
}

// decodeArguments never fails: malformed JSON is kept under "_raw" so the
// capability can report it.
func decodeArguments(name, raw string) map[string]any {
	args := map[string]any{}
	if raw == "" {
		return args
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		log.Warnf("tool call %s has malformed arguments: %v", name, err)
		return map[string]any{"_raw": raw}
	}
	return args
}

func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return model.NewStatusError(apiErr.StatusCode, apiErr.Message, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &model.BackendError{Type: model.ErrorTypeAPIError, Message: err.Error(), Err: err}
}

var _ model.Model = (*Model)(nil)
