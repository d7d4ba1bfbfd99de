package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/azure"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/openai/openai-go/v3/shared"
	"github.com/sweetpotato0/ai-devteam/backend"
	"github.com/sweetpotato0/ai-devteam/message"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o-mini"

// Config holds OpenAI provider configuration
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int64
	Temperature float64
	MaxRetries  int
}

// AzureConfig selects an Azure OpenAI deployment.
type AzureConfig struct {
	Endpoint   string
	APIKey     string
	Deployment string
	APIVersion string
}

// Provider implements backend.Client for OpenAI compatible endpoints.
type Provider struct {
	config Config
	client openai.Client
}

// New creates a new OpenAI provider using the official SDK.
func New(config Config) *Provider {
	if config.Model == "" {
		config.Model = DefaultModel
	}
	opts := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	if config.MaxRetries > 0 {
		opts = append(opts, option.WithMaxRetries(config.MaxRetries))
	}
	return &Provider{config: config, client: openai.NewClient(opts...)}
}

// NewAzure creates a provider talking to an Azure OpenAI deployment. The
// deployment name is sent as the model.
func NewAzure(cfg AzureConfig) *Provider {
	version := cfg.APIVersion
	if version == "" {
		version = "2024-10-21"
	}
	client := openai.NewClient(
		azure.WithEndpoint(cfg.Endpoint, version),
		azure.WithAPIKey(cfg.APIKey),
	)
	return &Provider{config: Config{Model: cfg.Deployment}, client: client}
}

// Model returns the configured model or deployment name.
func (p *Provider) Model() string {
	return p.config.Model
}

// Generate implements backend.Client.
func (p *Provider) Generate(ctx context.Context, req *backend.Request) (*message.Message, error) {
	if req == nil {
		return nil, errors.New("generate request cannot be nil")
	}
	params, err := p.buildParams(req)
	if err != nil {
		return nil, err
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, errors.New("openai: no choices returned")
	}

	choice := completion.Choices[0]
	resp := message.NewMessage(message.RoleAssistant, choice.Message.Content)
	for _, tc := range choice.Message.ToolCalls {
		args := map[string]any{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				return nil, fmt.Errorf("openai: parse tool arguments for %s: %w", tc.Function.Name, err)
			}
		}
		resp.ToolCalls = append(resp.ToolCalls, message.ToolCall{
			ID:   tc.ID,
			Name: tc.Function.Name,
			Args: args,
		})
	}
	return resp, nil
}

func (p *Provider) buildParams(req *backend.Request) (openai.ChatCompletionNewParams, error) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, msg := range req.Messages {
		switch msg.Role {
		case message.RoleSystem:
			msgs = append(msgs, openai.SystemMessage(msg.Content))
		case message.RoleUser:
			msgs = append(msgs, openai.UserMessage(msg.Content))
		case message.RoleAssistant:
			assistant := openai.AssistantMessage(msg.Content)
			if len(msg.ToolCalls) > 0 && assistant.OfAssistant != nil {
				calls, err := encodeToolCalls(msg.ToolCalls)
				if err != nil {
					return openai.ChatCompletionNewParams{}, err
				}
				assistant.OfAssistant.ToolCalls = calls
			}
			msgs = append(msgs, assistant)
		case message.RoleTool:
			msgs = append(msgs, openai.ToolMessage(msg.Content, msg.ToolID))
		}
	}

	params := openai.ChatCompletionNewParams{
		Messages: msgs,
		Model:    openai.ChatModel(p.config.Model),
	}
	switch {
	case req.Temperature > 0:
		params.Temperature = param.NewOpt(req.Temperature)
	case p.config.Temperature > 0:
		params.Temperature = param.NewOpt(p.config.Temperature)
	}
	if p.config.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(p.config.MaxTokens)
	}
	if req.JSON {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}
	for _, t := range req.Tools {
		params.Tools = append(params.Tools, openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        t.Name,
			Description: openai.String(t.Description),
			Parameters:  openai.FunctionParameters(t.InputSchema()),
		}))
	}
	return params, nil
}

func encodeToolCalls(calls []message.ToolCall) ([]openai.ChatCompletionMessageToolCallUnionParam, error) {
	out := make([]openai.ChatCompletionMessageToolCallUnionParam, 0, len(calls))
	for _, tc := range calls {
		args := tc.Args
		if args == nil {
			args = map[string]any{}
		}
		raw, err := json.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("openai: encode tool call %s: %w", tc.Name, err)
		}
		out = append(out, openai.ChatCompletionMessageToolCallUnionParam{
			OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
				ID: tc.ID,
				Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
					Name:      tc.Name,
					Arguments: string(raw),
				},
			},
		})
	}
	return out, nil
}
